package docstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/dwizi/pmt-assistant/internal/llm"
)

// Retriever embeds a free-text query and looks it up in the store.
type Retriever struct {
	store    *Store
	embedder llm.Embedder
	minScore float64
}

func NewRetriever(store *Store, embedder llm.Embedder, minScore float64) *Retriever {
	return &Retriever{store: store, embedder: embedder, minScore: minScore}
}

func (r *Retriever) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" || k <= 0 {
		return nil, nil
	}
	if r.store == nil || r.embedder == nil {
		return nil, fmt.Errorf("%w: retriever not configured", llm.ErrUnavailable)
	}
	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	return r.store.Search(ctx, vectors[0], k, r.minScore)
}
