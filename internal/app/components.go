package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dwizi/pmt-assistant/internal/assistant"
	"github.com/dwizi/pmt-assistant/internal/config"
	"github.com/dwizi/pmt-assistant/internal/docstore"
	"github.com/dwizi/pmt-assistant/internal/ingest"
	"github.com/dwizi/pmt-assistant/internal/intent"
	"github.com/dwizi/pmt-assistant/internal/llm"
	"github.com/dwizi/pmt-assistant/internal/llm/anthropic"
	"github.com/dwizi/pmt-assistant/internal/llm/grounded"
	"github.com/dwizi/pmt-assistant/internal/llm/openai"
	"github.com/dwizi/pmt-assistant/internal/pmcontext"
)

const Version = "0.1.0"

type readinessWaiter interface {
	WaitReady(ctx context.Context) error
}

// Components is the assistant wired from configuration, shared by the server
// and the one-shot CLI commands.
type Components struct {
	Config    config.Config
	Store     *docstore.Store
	Retriever *docstore.Retriever
	Completer llm.Completer
	Embedder  llm.Embedder
	Responder *grounded.Responder
	Assistant *assistant.Service
	Indexer   *ingest.Indexer
}

func Build(cfg config.Config, logger *slog.Logger) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}
	lexicon, err := config.LoadLexicon(cfg.LexiconFile)
	if err != nil {
		return nil, err
	}

	store, err := docstore.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := store.AutoMigrate(context.Background()); err != nil {
		store.Close()
		return nil, err
	}

	completer := newCompleter(cfg, logger)
	embedder := newEmbedder(cfg, logger)
	retriever := docstore.NewRetriever(store, embedder, cfg.RetrievalMinScore)
	responder := grounded.New(completer, retriever, grounded.Config{
		TopK:            cfg.RetrievalTopK,
		MaxDocExcerpt:   cfg.DocExcerptMaxBytes,
		MaxPromptTokens: cfg.PromptMaxTokens,
	}, logger)

	parser := pmcontext.NewParser(logger, pmcontext.WithLexicon(lexicon.Headers))
	classifier := intent.NewClassifier(lexicon.Keywords)
	service := assistant.New(parser, classifier, responder, logger)

	indexer := ingest.NewIndexer(store, embedder, ingest.Config{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		Parallelism:  cfg.IngestParallelism,
		EmbedModel:   cfg.EmbedModel,
	}, logger)

	return &Components{
		Config:    cfg,
		Store:     store,
		Retriever: retriever,
		Completer: completer,
		Embedder:  embedder,
		Responder: responder,
		Assistant: service,
		Indexer:   indexer,
	}, nil
}

// WaitReady blocks until the completion server answers, for providers that
// support polling. Others are treated as ready.
func (c *Components) WaitReady(ctx context.Context) error {
	waiter, ok := c.Completer.(readinessWaiter)
	if !ok {
		return nil
	}
	return waiter.WaitReady(ctx)
}

func (c *Components) Close() error {
	if c == nil || c.Store == nil {
		return nil
	}
	return c.Store.Close()
}

func newCompleter(cfg config.Config, logger *slog.Logger) llm.Completer {
	timeout := time.Duration(cfg.LLMTimeoutSec) * time.Second
	switch cfg.LLMProvider {
	case "anthropic":
		return anthropic.New(anthropic.Config{
			APIKey:       cfg.LLMAPIKey,
			BaseURL:      cfg.LLMBaseURL,
			Model:        cfg.LLMModel,
			Timeout:      timeout,
			SystemPrompt: cfg.LLMSystemPrompt,
		}, logger)
	default:
		return openai.New(openai.Config{
			APIKey:         cfg.LLMAPIKey,
			BaseURL:        cfg.LLMBaseURL,
			Model:          cfg.LLMModel,
			EmbedModel:     cfg.EmbedModel,
			Timeout:        timeout,
			SystemPrompt:   cfg.LLMSystemPrompt,
			ReadyTimeout:   time.Duration(cfg.LLMReadyTimeoutSec) * time.Second,
			ReadyPollEvery: time.Duration(cfg.LLMReadyPollSec) * time.Second,
		}, logger)
	}
}

// newEmbedder always speaks the OpenAI embeddings API. With the openai
// provider it shares the completion server and key.
func newEmbedder(cfg config.Config, logger *slog.Logger) llm.Embedder {
	apiKey := ""
	if cfg.LLMProvider == "openai" || cfg.EmbedBaseURL == cfg.LLMBaseURL {
		apiKey = cfg.LLMAPIKey
	}
	return openai.New(openai.Config{
		APIKey:     apiKey,
		BaseURL:    cfg.EmbedBaseURL,
		Model:      cfg.LLMModel,
		EmbedModel: cfg.EmbedModel,
		Timeout:    time.Duration(cfg.LLMTimeoutSec) * time.Second,
	}, logger)
}

func describeProvider(cfg config.Config) string {
	return fmt.Sprintf("%s:%s", cfg.LLMProvider, cfg.LLMModel)
}
