package grounded

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dwizi/pmt-assistant/internal/docstore"
	"github.com/dwizi/pmt-assistant/internal/llm"
)

const (
	NoDocumentsMessage = "⚠️ Sorry, I couldn't find anything relevant in the documents."
	LLMFailedMessage   = "⚠️ LLM failed to generate a response. Please check the backend."
)

type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]docstore.SearchResult, error)
}

type Config struct {
	ProductName        string
	TopK               int
	MaxDocExcerpt      int
	MaxPromptTokens    int
	ContextMaxTokens   int
	DocumentsMaxTokens int
}

type PromptMetrics struct {
	Strategy        Strategy
	Reason          string
	UsedContext     bool
	UsedDocuments   bool
	DocumentResults int
	ContextTokens   int
	DocumentTokens  int
	PromptTokens    int
}

// Responder composes prompts around the workspace context and the document
// store before handing them to the base completer.
type Responder struct {
	base      llm.Completer
	retriever Retriever
	cfg       Config
	logger    *slog.Logger
}

func New(base llm.Completer, retriever Retriever, cfg Config, logger *slog.Logger) *Responder {
	if strings.TrimSpace(cfg.ProductName) == "" {
		cfg.ProductName = "PMT Pro"
	}
	if cfg.TopK < 1 {
		cfg.TopK = 3
	}
	if cfg.MaxDocExcerpt < 200 {
		cfg.MaxDocExcerpt = 1200
	}
	if cfg.MaxPromptTokens < 400 {
		cfg.MaxPromptTokens = 3000
	}
	if cfg.ContextMaxTokens < 100 {
		cfg.ContextMaxTokens = maxInt(200, cfg.MaxPromptTokens/2)
	}
	if cfg.DocumentsMaxTokens < 100 {
		cfg.DocumentsMaxTokens = maxInt(200, cfg.MaxPromptTokens-cfg.ContextMaxTokens-200)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{
		base:      base,
		retriever: retriever,
		cfg:       cfg,
		logger:    logger.With("component", "grounded"),
	}
}

// Answer asks the model about the workspace context, adding document excerpts
// when the query looks like it needs them. Errors are returned to the caller,
// which owns the user-facing fallback text.
func (r *Responder) Answer(ctx context.Context, query, rawContext string) (string, error) {
	if r.base == nil {
		return "", fmt.Errorf("%w: base completer missing", llm.ErrUnavailable)
	}
	prompt, metrics := r.buildContextPrompt(ctx, query, rawContext)
	r.logger.Debug("grounding prompt assembled",
		"strategy", string(metrics.Strategy),
		"reason", metrics.Reason,
		"used_context", metrics.UsedContext,
		"used_documents", metrics.UsedDocuments,
		"document_results", metrics.DocumentResults,
		"tokens_context", metrics.ContextTokens,
		"tokens_documents", metrics.DocumentTokens,
		"tokens_total", metrics.PromptTokens,
	)
	start := time.Now()
	reply, err := r.base.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	r.logger.Info("llm answered", "latency_ms", time.Since(start).Milliseconds())
	return strings.TrimSpace(reply), nil
}

// AnswerFromDocuments answers strictly from retrieved documents. Missing
// documents and model failures become fixed messages; only a retrieval
// failure is returned as an error.
func (r *Responder) AnswerFromDocuments(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if r.retriever == nil {
		return NoDocumentsMessage, nil
	}
	results, err := r.retriever.Search(ctx, query, r.cfg.TopK)
	if err != nil {
		return "", fmt.Errorf("search documents: %w", err)
	}
	for index, result := range results {
		r.logger.Debug("document match", "rank", index+1, "score", result.Score, "source", result.Source)
	}
	documents := r.documentBlocks(results, r.cfg.DocumentsMaxTokens)
	if documents == "" {
		r.logger.Info("no relevant documents", "results", len(results))
		return NoDocumentsMessage, nil
	}
	if r.base == nil {
		return LLMFailedMessage, nil
	}

	start := time.Now()
	reply, err := r.base.Complete(ctx, r.buildDocumentPrompt(query, documents))
	if err != nil {
		if errors.Is(err, llm.ErrUnavailable) {
			r.logger.Warn("llm unavailable for document answer", "error", err)
		} else {
			r.logger.Error("llm call failed", "error", err)
		}
		return LLMFailedMessage, nil
	}
	r.logger.Info("llm answered from documents", "latency_ms", time.Since(start).Milliseconds(), "documents", len(results))
	return strings.TrimSpace(reply), nil
}
