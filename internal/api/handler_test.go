package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/nodeflow/internal/api"
	"github.com/gyaneshwarpardhi/nodeflow/internal/config"
	"github.com/gyaneshwarpardhi/nodeflow/internal/dataflow"
	"github.com/gyaneshwarpardhi/nodeflow/internal/engine"
	"github.com/gyaneshwarpardhi/nodeflow/internal/nodes"
	"github.com/gyaneshwarpardhi/nodeflow/internal/nodetype"
)

const greet = `
description: says hello
nodes:
  - id: name
    type: graph_input
    data: {default: world}
  - id: render
    type: template
    data: {template: "hello {{value}}"}
    inputs:
      - {id: value, type: any, data_required_if_connected: true}
  - id: out
    type: graph_output
connections:
  - {from: {node: name, port: value}, to: {node: render, port: value}}
  - {from: {node: render, port: text}, to: {node: out, port: value}}
`

type server struct {
	*httptest.Server
	dir string
}

func newServer(t *testing.T) *server {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "greet.yaml"), []byte(greet), 0o644))
	lib, err := config.NewLibrary(dir)
	require.NoError(t, err)

	reg := nodetype.NewRegistry()
	nodes.RegisterBuiltins(reg)
	graphs := engine.LibraryGraphs(lib, reg)
	ctx, cancel := context.WithCancel(context.Background())
	svc := engine.New(ctx, dataflow.New(reg, dataflow.WithGraphProvider(graphs)), graphs,
		config.EngineConf{RunWorkers: 2, QueueDepth: 8}, nil)

	srv := httptest.NewServer(api.New(svc, lib))
	t.Cleanup(func() {
		srv.Close()
		svc.Shutdown()
		cancel()
	})
	return &server{Server: srv, dir: dir}
}

func (s *server) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, bytes.NewBufferString(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func TestRunSyncEndpoint(t *testing.T) {
	s := newServer(t)

	code, body := s.do(t, http.MethodPost, "/v1/workflows/greet/runs", `{"inputs": {"name": "api"}}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, map[string]any{"out": "hello api"}, body["outputs"])

	code, body = s.do(t, http.MethodPost, "/v1/workflows/greet/runs", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"out": "hello world"}, body["outputs"])
}

func TestRunErrors(t *testing.T) {
	s := newServer(t)

	code, body := s.do(t, http.MethodPost, "/v1/workflows/missing/runs", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, body["error"], "workflow not found")

	code, _ = s.do(t, http.MethodPost, "/v1/workflows/greet/runs", "{not json")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodGet, "/v1/runs/nope", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodPost, "/v1/runs/nope/cancel", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRunAsyncEndpoint(t *testing.T) {
	s := newServer(t)

	code, body := s.do(t, http.MethodPost, "/v1/workflows/greet/runs/async", `{"inputs": {"name": "later"}}`)
	require.Equal(t, http.StatusAccepted, code)
	id, _ := body["run_id"].(string)
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		code, body := s.do(t, http.MethodGet, "/v1/runs/"+id, "")
		return code == http.StatusOK && body["status"] == "completed"
	}, 2*time.Second, 10*time.Millisecond)

	_, body = s.do(t, http.MethodGet, "/v1/runs/"+id, "")
	assert.Equal(t, map[string]any{"out": "hello later"}, body["outputs"])
	assert.Equal(t, "greet", body["workflow_id"])
}

func TestWorkflowsEndpoints(t *testing.T) {
	s := newServer(t)

	code, body := s.do(t, http.MethodGet, "/v1/workflows", "")
	require.Equal(t, http.StatusOK, code)
	list, _ := body["workflows"].([]any)
	require.Len(t, list, 1)
	first, _ := list[0].(map[string]any)
	assert.Equal(t, "greet", first["id"])
	assert.Equal(t, "says hello", first["description"])
	assert.Equal(t, float64(3), first["nodes"])

	require.NoError(t, os.WriteFile(filepath.Join(s.dir, "again.yml"), []byte(greet), 0o644))
	code, body = s.do(t, http.MethodPost, "/v1/workflows/reload", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), body["workflows_count"])

	code, _ = s.do(t, http.MethodPost, "/v1/workflows/again/runs", "")
	assert.Equal(t, http.StatusOK, code)

	require.NoError(t, os.WriteFile(filepath.Join(s.dir, "broken.yaml"), []byte("nodes: [{type: start}]"), 0o644))
	code, _ = s.do(t, http.MethodPost, "/v1/workflows/reload", "")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestProbes(t *testing.T) {
	s := newServer(t)

	code, body := s.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	code, body = s.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", body["status"])

	code, _ = s.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, code)
}
