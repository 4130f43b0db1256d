package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, entry := range os.Environ() {
		name, _, _ := strings.Cut(entry, "=")
		if strings.HasPrefix(name, "PMT_ASSISTANT_") {
			t.Setenv(name, "")
		}
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg := FromEnv()
	if cfg.HTTPAddr != ":8000" {
		t.Fatalf("expected default http addr :8000, got %s", cfg.HTTPAddr)
	}
	if cfg.DataDir != "/data" {
		t.Fatalf("expected default data dir /data, got %s", cfg.DataDir)
	}
	if cfg.DBPath != filepath.Join("/data", "pmt-assistant", "documents.sqlite") {
		t.Fatalf("unexpected default db path: %s", cfg.DBPath)
	}
	if cfg.DocumentsDir != filepath.Join("/data", "documents") {
		t.Fatalf("unexpected default documents dir: %s", cfg.DocumentsDir)
	}
	if cfg.LLMProvider != "openai" || cfg.LLMBaseURL != "http://localhost:11434/v1" || cfg.LLMModel != "llama3" {
		t.Fatalf("unexpected llm defaults: %+v", cfg)
	}
	if cfg.EmbedModel != "all-minilm" || cfg.EmbedBaseURL != cfg.LLMBaseURL || cfg.RetrievalTopK != 3 {
		t.Fatalf("unexpected retrieval defaults: %+v", cfg)
	}
	if cfg.RetrievalMinScore != 0.2 {
		t.Fatalf("expected default min score 0.2, got %f", cfg.RetrievalMinScore)
	}
	if cfg.ChunkSize != 1000 || cfg.ChunkOverlap != 100 || cfg.IngestParallelism != 4 {
		t.Fatalf("unexpected ingest defaults: %+v", cfg)
	}
	if cfg.ReindexSchedule != "" || !cfg.WatchDocuments {
		t.Fatalf("unexpected background defaults: %+v", cfg)
	}
	if cfg.LexiconFile != "" || cfg.LLMAPIKey != "" {
		t.Fatalf("expected empty optional values: %+v", cfg)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PMT_ASSISTANT_DATA_DIR", "/srv/pmt")
	t.Setenv("PMT_ASSISTANT_LLM_PROVIDER", "Anthropic")
	t.Setenv("PMT_ASSISTANT_LLM_API_KEY", "  secret  ")
	t.Setenv("PMT_ASSISTANT_CHUNK_OVERLAP", "0")
	t.Setenv("PMT_ASSISTANT_RETRIEVAL_MIN_SCORE", "0.45")
	t.Setenv("PMT_ASSISTANT_REINDEX_SCHEDULE", "*/30 * * * *")
	t.Setenv("PMT_ASSISTANT_WATCH_DOCUMENTS", "off")
	t.Setenv("PMT_ASSISTANT_LLM_READY_TIMEOUT_SECONDS", "0")

	cfg := FromEnv()
	if cfg.DBPath != filepath.Join("/srv/pmt", "pmt-assistant", "documents.sqlite") {
		t.Fatalf("expected db path under data dir, got %s", cfg.DBPath)
	}
	if cfg.LLMProvider != "anthropic" || cfg.LLMAPIKey != "secret" || cfg.EmbedBaseURL != "http://localhost:11434/v1" {
		t.Fatalf("unexpected llm overrides: %+v", cfg)
	}
	if cfg.LLMBaseURL != "https://api.anthropic.com/v1" || cfg.LLMModel != "claude-3-5-sonnet-latest" {
		t.Fatalf("unexpected llm overrides: %+v", cfg)
	}
	if cfg.ChunkOverlap != 0 || cfg.LLMReadyTimeoutSec != 0 {
		t.Fatalf("expected zero values to be accepted: %+v", cfg)
	}
	if cfg.RetrievalMinScore != 0.45 || cfg.ReindexSchedule != "*/30 * * * *" || cfg.WatchDocuments {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
}

func TestFromEnvRejectsInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PMT_ASSISTANT_LLM_PROVIDER", "zai")
	t.Setenv("PMT_ASSISTANT_RETRIEVAL_TOP_K", "0")
	t.Setenv("PMT_ASSISTANT_CHUNK_SIZE", "lots")
	t.Setenv("PMT_ASSISTANT_CHUNK_OVERLAP", "-5")
	t.Setenv("PMT_ASSISTANT_RATE_LIMIT_PER_SECOND", "fast")

	cfg := FromEnv()
	if cfg.LLMProvider != "openai" {
		t.Fatalf("expected provider fallback, got %s", cfg.LLMProvider)
	}
	if cfg.RetrievalTopK != 3 || cfg.ChunkSize != 1000 || cfg.ChunkOverlap != 100 {
		t.Fatalf("expected numeric fallbacks, got %+v", cfg)
	}
	if cfg.RateLimitPerSecond != 5 {
		t.Fatalf("expected rate fallback, got %f", cfg.RateLimitPerSecond)
	}
}

func TestProviderOrDefaultMapsOllama(t *testing.T) {
	t.Setenv("PMT_ASSISTANT_LLM_PROVIDER", "ollama")
	if got := providerOrDefault("PMT_ASSISTANT_LLM_PROVIDER", "anthropic"); got != "openai" {
		t.Fatalf("expected ollama to use the openai-compatible client, got %s", got)
	}
}

func TestLoadLexicon(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	content := `headers:
  messages: ["standup notes"]
  team: ["squad board"]
  personal: ["sprint backlog"]
keywords:
  task: ["roadmap"]
  message: ["ping me"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write lexicon: %v", err)
	}
	lexicon, err := LoadLexicon(path)
	if err != nil {
		t.Fatalf("load lexicon: %v", err)
	}
	if diff := cmp.Diff([]string{"sprint backlog"}, lexicon.Headers.PersonalHeaders); diff != "" {
		t.Fatalf("personal headers mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"squad board"}, lexicon.Headers.TeamHeaders); diff != "" {
		t.Fatalf("team headers mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"standup notes"}, lexicon.Headers.MessageHeaders); diff != "" {
		t.Fatalf("message headers mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"roadmap"}, lexicon.Keywords.Task); diff != "" {
		t.Fatalf("task keywords mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadLexiconMissingFile(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "absent.yaml")} {
		lexicon, err := LoadLexicon(path)
		if err != nil {
			t.Fatalf("expected no error for %q, got %v", path, err)
		}
		if len(lexicon.Headers.PersonalHeaders) != 0 || len(lexicon.Keywords.Task) != 0 {
			t.Fatalf("expected empty lexicon for %q, got %+v", path, lexicon)
		}
	}
}

func TestLoadLexiconInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	if err := os.WriteFile(path, []byte("headers: [unterminated"), 0o644); err != nil {
		t.Fatalf("write lexicon: %v", err)
	}
	if _, err := LoadLexicon(path); err == nil {
		t.Fatal("expected parse error")
	}
}
