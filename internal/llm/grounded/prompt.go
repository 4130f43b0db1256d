package grounded

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dwizi/pmt-assistant/internal/docstore"
	"github.com/dwizi/pmt-assistant/internal/llm"
)

func (r *Responder) buildContextPrompt(ctx context.Context, query, rawContext string) (llm.Prompt, PromptMetrics) {
	query = strings.TrimSpace(query)
	decision := DecideStrategy(query)
	metrics := PromptMetrics{Strategy: decision.Strategy, Reason: decision.Reason}

	system := fmt.Sprintf(
		"You are a helpful project management assistant for %s. Answer the user's question using the workspace context provided. "+
			"Be concise and practical, prefer bullet points, and say so plainly when the context does not contain the answer.",
		r.cfg.ProductName,
	)
	sections := []string{}

	contextText := clipToTokenBudget(strings.TrimSpace(rawContext), r.cfg.ContextMaxTokens)
	if contextText != "" {
		sections = append(sections, "--- WORKSPACE CONTEXT ---", contextText, "")
		metrics.UsedContext = true
		metrics.ContextTokens = estimateTokens(contextText)
	}

	if decision.Strategy == StrategyDocuments && r.retriever != nil {
		results, err := r.retriever.Search(ctx, query, r.cfg.TopK)
		switch {
		case err != nil && errors.Is(err, llm.ErrUnavailable):
			r.logger.Debug("document retrieval unavailable", "error", err)
		case err != nil:
			r.logger.Warn("document retrieval failed", "error", err)
		default:
			if documents := r.documentBlocks(results, r.cfg.DocumentsMaxTokens); documents != "" {
				sections = append(sections, "--- REFERENCE DOCUMENTS ---", documents, "")
				metrics.UsedDocuments = true
				metrics.DocumentResults = len(results)
				metrics.DocumentTokens = estimateTokens(documents)
			}
		}
	}

	sections = append(sections, "--- QUESTION ---", query)
	user := clipToTokenBudget(strings.Join(sections, "\n"), r.cfg.MaxPromptTokens)
	metrics.PromptTokens = estimateTokens(system) + estimateTokens(user)
	return llm.Prompt{System: system, User: user}, metrics
}

func (r *Responder) buildDocumentPrompt(query, documents string) llm.Prompt {
	user := strings.Join([]string{
		fmt.Sprintf("You are a helpful assistant for %s. Use ONLY the below documents to answer the question.", r.cfg.ProductName),
		"",
		"--- DOCUMENTS ---",
		documents,
		"",
		"--- QUESTION ---",
		query,
		"",
		`Only answer from the documents above. If you can't find the answer, say: "I'm sorry, I couldn't find that information in the reference documents."`,
	}, "\n")
	return llm.Prompt{User: user}
}

// documentBlocks joins result excerpts with "---" separators, clipping each
// excerpt so the whole block stays within tokenBudget.
func (r *Responder) documentBlocks(results []docstore.SearchResult, tokenBudget int) string {
	if len(results) == 0 || tokenBudget < 1 {
		return ""
	}
	perDocBudget := maxInt(80, tokenBudget/maxInt(1, len(results)))
	blocks := []string{}
	for _, result := range results {
		excerpt := clipToTokenBudget(compactWhitespace(result.Content), minInt(perDocBudget, r.cfg.MaxDocExcerpt/4))
		if excerpt == "" {
			continue
		}
		source := strings.TrimSpace(result.Title)
		if source == "" {
			source = strings.TrimSpace(result.Source)
		}
		if source != "" {
			excerpt = "[" + source + "] " + excerpt
		}
		blocks = append(blocks, excerpt)
		if estimateTokens(strings.Join(blocks, "\n---\n")) >= tokenBudget {
			break
		}
	}
	return strings.Join(blocks, "\n---\n")
}

func compactWhitespace(input string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(input)), " ")
}

func estimateTokens(input string) int {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return 0
	}
	charBased := (len(trimmed) + 3) / 4
	wordBased := maxInt(1, len(strings.Fields(trimmed)))
	if wordBased > charBased {
		return wordBased
	}
	return charBased
}

func clipToTokenBudget(input string, maxTokens int) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" || maxTokens < 1 {
		return ""
	}
	if estimateTokens(trimmed) <= maxTokens {
		return trimmed
	}
	maxBytes := maxInt(64, maxTokens*4)
	if len(trimmed) <= maxBytes {
		return trimmed
	}
	clipped := strings.TrimSpace(trimmed[:maxBytes])
	if idx := strings.LastIndexAny(clipped, " \n\t"); idx > maxBytes/2 {
		clipped = strings.TrimSpace(clipped[:idx])
	}
	if clipped == "" {
		return ""
	}
	if strings.HasSuffix(clipped, "...") {
		return clipped
	}
	return clipped + "..."
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
