package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dwizi/pmt-assistant/internal/config"
	"github.com/dwizi/pmt-assistant/internal/heartbeat"
	"github.com/dwizi/pmt-assistant/internal/httpapi"
	"github.com/dwizi/pmt-assistant/internal/ingest"
	"github.com/dwizi/pmt-assistant/internal/llm/safety"
	"github.com/dwizi/pmt-assistant/internal/mcpserver"
	"github.com/dwizi/pmt-assistant/internal/scheduler"
	"github.com/dwizi/pmt-assistant/internal/watcher"
)

const (
	heartbeatStaleAfter = 2 * time.Minute
	heartbeatInterval   = 30 * time.Second
	beatInterval        = 20 * time.Second
)

type Runtime struct {
	cfg        config.Config
	logger     *slog.Logger
	components *Components
	httpServer *http.Server
	watcher    *watcher.Service
	scheduler  *scheduler.Service
	heartbeat  *heartbeat.Registry
	monitor    *heartbeat.Monitor
}

func New(cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.DocumentsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create documents dir: %w", err)
	}
	components, err := Build(cfg, logger)
	if err != nil {
		return nil, err
	}

	registry := heartbeat.NewRegistry()
	runtime := &Runtime{
		cfg:        cfg,
		logger:     logger,
		components: components,
		heartbeat:  registry,
		monitor:    heartbeat.NewMonitor(registry, heartbeatInterval, heartbeatStaleAfter, logger),
	}

	if cfg.WatchDocuments {
		debounce := time.Duration(cfg.WatchDebounceMS) * time.Millisecond
		runtime.watcher, err = watcher.New([]string{cfg.DocumentsDir}, ingest.Supported, components.Indexer, debounce, logger)
		if err != nil {
			components.Close()
			return nil, err
		}
	}
	if cfg.ReindexSchedule != "" {
		runtime.scheduler, err = scheduler.New(cfg.ReindexSchedule, cfg.DocumentsDir, components.Indexer, logger)
		if err != nil {
			components.Close()
			return nil, err
		}
	}

	tools := mcpserver.New(components.Assistant, components.Retriever, mcpserver.Config{Version: Version}, logger)
	handler := httpapi.NewRouter(httpapi.Dependencies{
		Config:    cfg,
		Version:   Version,
		Assistant: components.Assistant,
		Documents: components.Responder,
		Store:     components.Store,
		Indexer:   components.Indexer,
		Limiter: safety.New(safety.Config{
			Enabled:   cfg.RateLimitPerSecond > 0,
			PerSecond: cfg.RateLimitPerSecond,
			Burst:     cfg.RateLimitBurst,
		}),
		MCP:                 mcpserver.Handler(tools),
		Logger:              logger,
		Heartbeat:           registry,
		HeartbeatStaleAfter: heartbeatStaleAfter,
	})
	runtime.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return runtime, nil
}

func (r *Runtime) Run(ctx context.Context) error {
	r.logger.Info("pmt-assistant runtime starting",
		"addr", r.cfg.HTTPAddr,
		"documents_dir", r.cfg.DocumentsDir,
		"llm", describeProvider(r.cfg),
		"version", Version,
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		r.waitForModel(groupCtx)
		return nil
	})
	group.Go(func() error {
		r.initialIndex(groupCtx)
		return nil
	})
	if r.watcher != nil {
		group.Go(func() error {
			return runMonitored(groupCtx, r.heartbeat, "watcher", beatInterval, r.watcher.Start)
		})
	} else {
		r.heartbeat.Disabled("watcher", "document watching is off")
	}
	if r.scheduler != nil {
		group.Go(func() error {
			return runMonitored(groupCtx, r.heartbeat, "scheduler", beatInterval, r.scheduler.Start)
		})
	} else {
		r.heartbeat.Disabled("scheduler", "no reindex schedule")
	}
	group.Go(func() error {
		return runMonitored(groupCtx, r.heartbeat, "api", beatInterval, func(context.Context) error {
			err := r.httpServer.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
	})
	group.Go(func() error {
		return r.monitor.Start(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return r.httpServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func (r *Runtime) Close() error {
	return r.components.Close()
}

// waitForModel records the model server's readiness and keeps the llm
// component beating afterwards. Requests arriving before it is ready still
// wait inside the client.
func (r *Runtime) waitForModel(ctx context.Context) {
	r.heartbeat.Starting("llm", "waiting for model server")
	if err := r.components.WaitReady(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		r.logger.Warn("model server not ready", "error", err)
		r.heartbeat.Degrade("llm", "model server not ready", err)
		return
	}
	ticker := time.NewTicker(beatInterval)
	defer ticker.Stop()
	for {
		r.heartbeat.Beat("llm", "ready")
		select {
		case <-ctx.Done():
			r.heartbeat.Stopped("llm", "stopped")
			return
		case <-ticker.C:
		}
	}
}

// initialIndex brings the document store in line with the documents
// directory once at startup; the watcher and scheduler keep it current.
func (r *Runtime) initialIndex(ctx context.Context) {
	r.heartbeat.Starting("documents", "indexing documents")
	report, err := r.components.Indexer.IndexDir(ctx, r.cfg.DocumentsDir)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.logger.Error("initial document index failed", "dir", r.cfg.DocumentsDir, "error", err)
		r.heartbeat.Degrade("documents", "initial index failed", err)
		return
	}
	if len(report.Failed) > 0 {
		r.heartbeat.Degrade("documents", "some documents failed to index", fmt.Errorf("%d failed, first %s", len(report.Failed), report.Failed[0]))
		return
	}
	r.heartbeat.Stopped("documents", "initial index complete")
}

func runMonitored(
	ctx context.Context,
	reporter heartbeat.Reporter,
	component string,
	every time.Duration,
	run func(context.Context) error,
) error {
	reporter.Starting(component, "starting")
	reporter.Beat(component, "running")

	stop := func() {}
	if every > 0 {
		beatCtx, cancel := context.WithCancel(ctx)
		stop = cancel
		go func() {
			ticker := time.NewTicker(every)
			defer ticker.Stop()
			for {
				select {
				case <-beatCtx.Done():
					return
				case <-ticker.C:
					reporter.Beat(component, "running")
				}
			}
		}()
	}

	err := run(ctx)
	stop()
	if err != nil && ctx.Err() == nil {
		reporter.Degrade(component, "component failed", err)
		return err
	}
	reporter.Stopped(component, "stopped")
	return err
}
