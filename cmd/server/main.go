package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/gyaneshwarpardhi/nodeflow/internal/api"
	"github.com/gyaneshwarpardhi/nodeflow/internal/config"
	"github.com/gyaneshwarpardhi/nodeflow/internal/dataflow"
	"github.com/gyaneshwarpardhi/nodeflow/internal/engine"
	"github.com/gyaneshwarpardhi/nodeflow/internal/nodes"
	"github.com/gyaneshwarpardhi/nodeflow/internal/nodetype"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	cfgPath := flag.String("config", "configs/nodeflow.yaml", "Path to service YAML config")
	debug := flag.Bool("debug", false, "Log scheduling decisions")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// ── Load config ──────────────────────────────────────────────────────────
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}

	// ── Workflow library ─────────────────────────────────────────────────────
	lib, err := config.NewLibrary(cfg.WorkflowsDir)
	if err != nil {
		slog.Error("failed to load workflows", "err", err)
		os.Exit(1)
	}
	slog.Info("workflows loaded", "dir", cfg.WorkflowsDir, "count", len(lib.IDs()))

	// ── Node types ───────────────────────────────────────────────────────────
	reg := nodetype.NewRegistry()
	nodes.RegisterBuiltins(reg)

	// ── Dataflow engine + run service ────────────────────────────────────────
	graphs := engine.LibraryGraphs(lib, reg)
	opts := []dataflow.Option{
		dataflow.WithGraphProvider(graphs),
		dataflow.WithLogger(logger),
		dataflow.WithMaxSubGraphDepth(cfg.Engine.MaxSubGraphDepth),
	}
	if model, err := textGenerator(cfg.LLM); err != nil {
		slog.Warn("text generation disabled", "err", err)
	} else if model != nil {
		opts = append(opts, dataflow.WithTextGenerator(model))
		slog.Info("text generation enabled", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := engine.New(ctx, dataflow.New(reg, opts...), graphs, cfg.Engine, logger)

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	lib.OnChange(func(docs map[string]*config.Workflow) {
		slog.Info("workflows hot-reloaded", "count", len(docs))
	})
	stopWatch, err := lib.Watch()
	if err != nil {
		slog.Warn("workflow watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         *addr,
		Handler:      api.New(svc, lib),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	go func() {
		<-shutCtx.Done()
		cancel() // stop runs that outlive the grace period
	}()
	svc.Shutdown()
	slog.Info("goodbye")
}

// textGenerator builds the configured model, or nil when none is configured.
func textGenerator(conf config.LLMConf) (llms.Model, error) {
	if conf.Provider == "" {
		return nil, nil
	}
	opts := []openai.Option{openai.WithToken(os.Getenv(conf.APIKeyEnv))}
	if conf.Model != "" {
		opts = append(opts, openai.WithModel(conf.Model))
	}
	if conf.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(conf.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	return llm, nil
}
