package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/nodeflow/internal/config"
	"github.com/gyaneshwarpardhi/nodeflow/internal/graph"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := config.Parse([]byte(`
version: "1"
llm:
  provider: openai
`))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Engine.RunWorkers)
	assert.Equal(t, 256, cfg.Engine.QueueDepth)
	assert.Equal(t, 8, cfg.Engine.MaxSubGraphDepth)
	assert.Equal(t, "workflows", cfg.WorkflowsDir)
	assert.Equal(t, "OPENAI_API_KEY", cfg.LLM.APIKeyEnv)
	assert.NoError(t, config.Validate(cfg))
}

func TestValidate(t *testing.T) {
	cfg := &config.ServiceConfig{
		Engine: config.EngineConf{RunWorkers: -1},
		LLM:    config.LLMConf{Provider: "carrier-pigeon"},
	}
	err := config.Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version is required")
	assert.Contains(t, err.Error(), "engine.run_workers")
	assert.Contains(t, err.Error(), "carrier-pigeon")
}

func TestValidateWorkflow(t *testing.T) {
	w := &config.Workflow{
		ID: "bad",
		Nodes: []config.NodeDef{
			{ID: "a", Type: "start"},
			{ID: "a", Type: "start"},
			{ID: "b", Inputs: []graph.Port{{ID: "x", Type: "colour"}}},
		},
		Connections: []config.ConnectionDef{
			{From: config.EndpointDef{Node: "a", Port: "flow"}, To: config.EndpointDef{Node: "ghost", Port: "in"}},
			{From: config.EndpointDef{Node: "a", Port: "flow"}, To: config.EndpointDef{Node: "b", Port: "x"}},
			{From: config.EndpointDef{Node: "b", Port: "x", Side: graph.SideInput}, To: config.EndpointDef{Node: "a", Port: "flow"}},
		},
	}
	err := config.ValidateWorkflow(w)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `duplicate node id "a"`)
	assert.Contains(t, msg, "node b: type is required")
	assert.Contains(t, msg, `unknown port type "colour"`)
	assert.Contains(t, msg, `unknown node "ghost"`)
	assert.Contains(t, msg, "connections[2]: duplicates connections[1]")
}

func TestBuild(t *testing.T) {
	w, err := config.ParseWorkflow([]byte(`
id: wired
nodes:
  - id: a
    type: src
    outputs: [{id: out, type: string}]
  - id: b
    type: sink
    inputs: [{id: in, type: string, required: true}]
connections:
  - from: {node: b, port: in, side: input}
    to: {node: a, port: out}
`))
	require.NoError(t, err)

	g, err := w.Build(nil)
	require.NoError(t, err)
	conns := g.Connections()
	require.Len(t, conns, 1)
	assert.Equal(t, graph.PortRef{NodeID: "a", PortID: "out"}, conns[0].Source)
	assert.Equal(t, graph.PortTypeString, conns[0].DataType)

	// Every build is independent.
	g2, err := w.Build(nil)
	require.NoError(t, err)
	require.NoError(t, g.UpdateData("a", map[string]any{"touched": true}))
	assert.Empty(t, g2.Data("a"))
}

const minimal = `
nodes:
  - id: s
    type: start
`

func TestLibraryLoadAndReload(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.yaml"), []byte(minimal), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	lib, err := config.NewLibrary(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, lib.IDs())
	_, err = lib.Workflow("two")
	assert.ErrorIs(t, err, config.ErrWorkflowNotFound)

	var seen int
	lib.OnChange(func(docs map[string]*config.Workflow) { seen = len(docs) })
	require.NoError(t, os.WriteFile(filepath.Join(dir, "two.yml"), []byte(minimal), 0o644))
	_, err = lib.Reload()
	require.NoError(t, err)
	assert.Equal(t, 2, seen)
	assert.Equal(t, []string{"one", "two"}, lib.IDs())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "dup.yaml"), []byte("id: one\n"+minimal), 0o644))
	_, err = lib.Reload()
	assert.ErrorContains(t, err, `duplicate workflow id "one"`)
	assert.Equal(t, []string{"one", "two"}, lib.IDs(), "failed reload keeps the previous library")
}

func TestLibraryWatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.yaml"), []byte(minimal), 0o644))
	lib, err := config.NewLibrary(dir)
	require.NoError(t, err)

	stop, err := lib.Watch()
	require.NoError(t, err)
	defer stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "two.yaml"), []byte(minimal), 0o644))
	assert.Eventually(t, func() bool { return len(lib.IDs()) == 2 }, 2*time.Second, 10*time.Millisecond)
}
