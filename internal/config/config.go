package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	Environment  string
	HTTPAddr     string
	DataDir      string
	DBPath       string
	DocumentsDir string
	LogLevel     string

	LLMProvider         string // openai | anthropic
	LLMBaseURL          string
	LLMAPIKey           string
	LLMModel            string
	LLMTimeoutSec       int
	LLMReadyTimeoutSec  int
	LLMReadyPollSec     int
	LLMSystemPrompt     string
	EmbedModel          string
	EmbedBaseURL        string
	RetrievalTopK       int
	RetrievalMinScore   float64
	PromptMaxTokens     int
	DocExcerptMaxBytes  int

	ChunkSize         int
	ChunkOverlap      int
	IngestParallelism int
	ReindexSchedule   string
	WatchDocuments    bool
	WatchDebounceMS   int

	RateLimitPerSecond float64
	RateLimitBurst     int

	LexiconFile string
}

func FromEnv() Config {
	dataDir := stringOrDefault("PMT_ASSISTANT_DATA_DIR", "/data")
	dbPath := stringOrDefault("PMT_ASSISTANT_DB_PATH", filepath.Join(dataDir, "pmt-assistant", "documents.sqlite"))
	provider := providerOrDefault("PMT_ASSISTANT_LLM_PROVIDER", "openai")
	baseURL := stringOrDefault("PMT_ASSISTANT_LLM_BASE_URL", "http://localhost:11434/v1")
	model := stringOrDefault("PMT_ASSISTANT_LLM_MODEL", "llama3")
	embedBaseURL := baseURL
	if provider == "anthropic" {
		baseURL = stringOrDefault("PMT_ASSISTANT_LLM_BASE_URL", "https://api.anthropic.com/v1")
		model = stringOrDefault("PMT_ASSISTANT_LLM_MODEL", "claude-3-5-sonnet-latest")
		embedBaseURL = "http://localhost:11434/v1"
	}

	return Config{
		Environment:  stringOrDefault("PMT_ASSISTANT_ENV", "development"),
		HTTPAddr:     stringOrDefault("PMT_ASSISTANT_HTTP_ADDR", ":8000"),
		DataDir:      dataDir,
		DBPath:       dbPath,
		DocumentsDir: stringOrDefault("PMT_ASSISTANT_DOCUMENTS_DIR", filepath.Join(dataDir, "documents")),
		LogLevel:     stringOrDefault("PMT_ASSISTANT_LOG_LEVEL", "info"),

		LLMProvider:        provider,
		LLMBaseURL:         baseURL,
		LLMAPIKey:          strings.TrimSpace(os.Getenv("PMT_ASSISTANT_LLM_API_KEY")),
		LLMModel:           model,
		LLMTimeoutSec:      intOrDefault("PMT_ASSISTANT_LLM_TIMEOUT_SECONDS", 60),
		LLMReadyTimeoutSec: nonNegativeIntOrDefault("PMT_ASSISTANT_LLM_READY_TIMEOUT_SECONDS", 30),
		LLMReadyPollSec:    intOrDefault("PMT_ASSISTANT_LLM_READY_POLL_SECONDS", 2),
		LLMSystemPrompt:    strings.TrimSpace(os.Getenv("PMT_ASSISTANT_SYSTEM_PROMPT")),
		EmbedModel:         stringOrDefault("PMT_ASSISTANT_EMBED_MODEL", "all-minilm"),
		EmbedBaseURL:       stringOrDefault("PMT_ASSISTANT_EMBED_BASE_URL", embedBaseURL),
		RetrievalTopK:      intOrDefault("PMT_ASSISTANT_RETRIEVAL_TOP_K", 3),
		RetrievalMinScore:  floatOrDefault("PMT_ASSISTANT_RETRIEVAL_MIN_SCORE", 0.2),
		PromptMaxTokens:    intOrDefault("PMT_ASSISTANT_PROMPT_MAX_TOKENS", 3000),
		DocExcerptMaxBytes: intOrDefault("PMT_ASSISTANT_DOC_EXCERPT_MAX_BYTES", 1200),

		ChunkSize:         intOrDefault("PMT_ASSISTANT_CHUNK_SIZE", 1000),
		ChunkOverlap:      nonNegativeIntOrDefault("PMT_ASSISTANT_CHUNK_OVERLAP", 100),
		IngestParallelism: intOrDefault("PMT_ASSISTANT_INGEST_PARALLELISM", 4),
		ReindexSchedule:   strings.TrimSpace(os.Getenv("PMT_ASSISTANT_REINDEX_SCHEDULE")),
		WatchDocuments:    boolOrDefault("PMT_ASSISTANT_WATCH_DOCUMENTS", true),
		WatchDebounceMS:   intOrDefault("PMT_ASSISTANT_WATCH_DEBOUNCE_MS", 500),

		RateLimitPerSecond: floatOrDefault("PMT_ASSISTANT_RATE_LIMIT_PER_SECOND", 5),
		RateLimitBurst:     intOrDefault("PMT_ASSISTANT_RATE_LIMIT_BURST", 10),

		LexiconFile: strings.TrimSpace(os.Getenv("PMT_ASSISTANT_LEXICON_FILE")),
	}
}

func stringOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func intOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}

// nonNegativeIntOrDefault accepts zero, which callers treat as "disabled".
func nonNegativeIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func boolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func providerOrDefault(name, fallback string) string {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	switch value {
	case "openai", "anthropic":
		return value
	case "ollama":
		return "openai"
	default:
		return fallback
	}
}

func floatOrDefault(name string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
