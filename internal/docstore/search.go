package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

type SearchResult struct {
	ChunkID    string
	DocumentID string
	Source     string
	Title      string
	Content    string
	Score      float64
}

// Search scores every chunk with the query's dimension by cosine similarity
// and returns the best k at or above minScore, highest first.
func (s *Store) Search(ctx context.Context, query []float32, k int, minScore float64) ([]SearchResult, error) {
	if len(query) == 0 || k <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT c.id, c.document_id, d.source, d.title, c.content, c.embedding
		 FROM chunks c JOIN documents d ON d.id = c.document_id
		 WHERE c.dim = ?`,
		len(query),
	)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	results := []SearchResult{}
	for rows.Next() {
		var result SearchResult
		var encoded string
		if err := rows.Scan(&result.ChunkID, &result.DocumentID, &result.Source, &result.Title, &result.Content, &encoded); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		var vector []float32
		if err := json.Unmarshal([]byte(encoded), &vector); err != nil || len(vector) != len(query) {
			continue
		}
		result.Score = cosine(query, vector)
		if result.Score < minScore {
			continue
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score == results[j].Score {
			return results[i].ChunkID < results[j].ChunkID
		}
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
