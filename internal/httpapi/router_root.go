package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dwizi/pmt-assistant/internal/assistant"
	"github.com/dwizi/pmt-assistant/internal/config"
	"github.com/dwizi/pmt-assistant/internal/heartbeat"
	"github.com/dwizi/pmt-assistant/internal/ingest"
	"github.com/dwizi/pmt-assistant/internal/llm/safety"
)

type Assistant interface {
	Answer(ctx context.Context, req assistant.Request) assistant.Response
}

type DocumentAnswerer interface {
	AnswerFromDocuments(ctx context.Context, query string) (string, error)
}

type DocumentStore interface {
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (int, int, error)
}

type Reindexer interface {
	IndexDir(ctx context.Context, dir string) (ingest.Report, error)
}

type Dependencies struct {
	Config              config.Config
	Version             string
	Assistant           Assistant
	Documents           DocumentAnswerer
	Store               DocumentStore
	Indexer             Reindexer
	Limiter             *safety.Policy
	MCP                 http.Handler
	Logger              *slog.Logger
	Heartbeat           *heartbeat.Registry
	HeartbeatStaleAfter time.Duration
}

type router struct {
	deps   Dependencies
	logger *slog.Logger
}

func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rt := &router{deps: deps, logger: logger.With("component", "httpapi")}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.handleHealth)
	mux.HandleFunc("/readyz", rt.handleReady)
	mux.HandleFunc("/api/v1/heartbeat", rt.handleHeartbeat)
	mux.HandleFunc("/api/v1/info", rt.handleInfo)
	mux.HandleFunc("/api/v1/assistant/query", rt.handleQuery)
	mux.HandleFunc("/api/v1/assistant/ws", rt.handleQuerySocket)
	mux.HandleFunc("/api/v1/generate-insight", rt.handleGenerateInsight)
	mux.HandleFunc("/api/v1/run", rt.handleRun)
	mux.HandleFunc("/api/v1/documents/reindex", rt.handleReindex)
	if deps.MCP != nil {
		mux.Handle("/mcp", deps.MCP)
		mux.Handle("/mcp/", deps.MCP)
	}
	return withRequestID(withCORS(rt.withRateLimit(mux)))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
