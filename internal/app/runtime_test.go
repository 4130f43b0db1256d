package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dwizi/pmt-assistant/internal/assistant"
	"github.com/dwizi/pmt-assistant/internal/config"
	"github.com/dwizi/pmt-assistant/internal/heartbeat"
	"github.com/dwizi/pmt-assistant/internal/intent"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newModelServer fakes an OpenAI-compatible server: every text embeds to the
// same vector and every completion returns reply.
func newModelServer(t *testing.T, reply string, completions *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/models":
			_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
		case "/embeddings":
			var body struct {
				Input []string `json:"input"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			data := make([]map[string]any, 0, len(body.Input))
			for index := range body.Input {
				data = append(data, map[string]any{"index": index, "embedding": []float32{0.6, 0.8}})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
		case "/chat/completions":
			completions.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{{"message": map[string]any{"content": reply}}},
			})
		default:
			http.NotFound(w, req)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func testConfig(t *testing.T, baseURL string) config.Config {
	t.Helper()
	root := t.TempDir()
	return config.Config{
		Environment:        "test",
		HTTPAddr:           "127.0.0.1:0",
		DataDir:            root,
		DBPath:             filepath.Join(root, "documents.sqlite"),
		DocumentsDir:       filepath.Join(root, "documents"),
		LLMProvider:        "openai",
		LLMBaseURL:         baseURL,
		LLMModel:           "llama3",
		LLMTimeoutSec:      5,
		EmbedModel:         "all-minilm",
		EmbedBaseURL:       baseURL,
		RetrievalTopK:      3,
		RetrievalMinScore:  0.2,
		PromptMaxTokens:    3000,
		DocExcerptMaxBytes: 1200,
		ChunkSize:          200,
		ChunkOverlap:       20,
		IngestParallelism:  2,
		RateLimitPerSecond: 100,
		RateLimitBurst:     100,
	}
}

func TestBuildAnswersFromTemplatesAndModel(t *testing.T) {
	var completions atomic.Int32
	server := newModelServer(t, "The quarterly goals are retention and launch.", &completions)
	components, err := Build(testConfig(t, server.URL), testLogger())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer components.Close()

	ctx := context.Background()
	tasks := components.Assistant.Answer(ctx, assistant.Request{
		Query:   "What should I complete today?",
		Context: "YOUR ACTIVE TASKS:\n• [OVERDUE] Finish report (Priority: High, Due: 2020-01-01)",
	})
	if tasks.Intent != intent.TaskQuery || !strings.Contains(tasks.Text, "Finish report") {
		t.Fatalf("unexpected task answer: %+v", tasks)
	}
	if completions.Load() != 0 {
		t.Fatalf("template answers must not call the model, got %d calls", completions.Load())
	}

	general := components.Assistant.Answer(ctx, assistant.Request{Query: "Summarize the quarterly goals."})
	if !general.UsedFallback || general.Text != "The quarterly goals are retention and launch." {
		t.Fatalf("unexpected general answer: %+v", general)
	}
}

func TestBuildIndexesAndAnswersFromDocuments(t *testing.T) {
	var completions atomic.Int32
	server := newModelServer(t, "Use the Forgot password link on the login page.", &completions)
	cfg := testConfig(t, server.URL)
	if err := os.MkdirAll(cfg.DocumentsDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	faq := "# PMT Pro FAQ\n\nHow do I reset my password? Use the Forgot password link on the login page."
	if err := os.WriteFile(filepath.Join(cfg.DocumentsDir, "faq.md"), []byte(faq), 0o644); err != nil {
		t.Fatalf("write doc: %v", err)
	}

	components, err := Build(cfg, testLogger())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer components.Close()

	ctx := context.Background()
	report, err := components.Indexer.IndexDir(ctx, cfg.DocumentsDir)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if report.Documents != 1 || report.Indexed != 1 || report.Chunks == 0 {
		t.Fatalf("unexpected report: %+v", report)
	}

	answer, err := components.Responder.AnswerFromDocuments(ctx, "How do I reset my password?")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if answer != "Use the Forgot password link on the login page." || completions.Load() != 1 {
		t.Fatalf("unexpected document answer %q after %d completions", answer, completions.Load())
	}
	if err := components.WaitReady(ctx); err != nil {
		t.Fatalf("wait ready: %v", err)
	}
}

func TestBuildRejectsBrokenLexicon(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.LexiconFile = filepath.Join(t.TempDir(), "lexicon.yaml")
	if err := os.WriteFile(cfg.LexiconFile, []byte("headers: [unterminated"), 0o644); err != nil {
		t.Fatalf("write lexicon: %v", err)
	}
	if _, err := Build(cfg, testLogger()); err == nil {
		t.Fatal("expected invalid lexicon to fail the build")
	}
}

func TestNewServesHealthAndHeartbeat(t *testing.T) {
	var completions atomic.Int32
	server := newModelServer(t, "ok", &completions)
	cfg := testConfig(t, server.URL)
	cfg.ReindexSchedule = "@hourly"
	cfg.WatchDocuments = true

	runtime, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	defer runtime.Close()
	if runtime.watcher == nil || runtime.scheduler == nil {
		t.Fatal("expected watcher and scheduler to be configured")
	}
	if _, err := os.Stat(cfg.DocumentsDir); err != nil {
		t.Fatalf("expected documents dir to exist: %v", err)
	}

	runtime.heartbeat.Beat("api", "listening")
	for _, path := range []string{"/healthz", "/readyz", "/api/v1/heartbeat", "/api/v1/info"} {
		res := httptest.NewRecorder()
		runtime.httpServer.Handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, path, nil))
		if res.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d body=%s", path, res.Code, res.Body.String())
		}
	}
}

func TestNewRejectsInvalidSchedule(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.ReindexSchedule = "every tuesday"
	if _, err := New(cfg, testLogger()); err == nil {
		t.Fatal("expected invalid schedule to fail")
	}
}

func TestRunMonitoredReportsStates(t *testing.T) {
	registry := heartbeat.NewRegistry()

	err := runMonitored(context.Background(), registry, "scheduler", 0, func(context.Context) error {
		return errors.New("cron loop crashed")
	})
	if err == nil {
		t.Fatal("expected run error to be returned")
	}
	snapshot := registry.Snapshot(0)
	if snapshot.Components[0].State != heartbeat.StateDegraded || snapshot.Components[0].Error != "cron loop crashed" {
		t.Fatalf("unexpected state after failure: %+v", snapshot.Components[0])
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runMonitored(ctx, registry, "watcher", 5*time.Millisecond, func(runCtx context.Context) error {
			<-runCtx.Done()
			return nil
		})
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("expected clean stop, got %v", err)
	}
	for _, component := range registry.Snapshot(0).Components {
		if component.Name == "watcher" && component.State != heartbeat.StateStopped {
			t.Fatalf("expected watcher stopped, got %s", component.State)
		}
	}
}
