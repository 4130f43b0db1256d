package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Document struct {
	ID         string
	Source     string
	Title      string
	Checksum   string
	ChunkCount int
	EmbedModel string
	IndexedAt  time.Time
}

type Chunk struct {
	ID        string
	Position  int
	Content   string
	Embedding []float32
}

// DocumentID derives a stable id from the document source path so that
// re-ingesting a file replaces its previous chunks.
func DocumentID(source string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("pmt-doc:"+strings.TrimSpace(source))).String()
}

// ReplaceDocument stores doc and swaps its chunks in a single transaction.
func (s *Store) ReplaceDocument(ctx context.Context, doc Document, chunks []Chunk) (Document, error) {
	doc.Source = strings.TrimSpace(doc.Source)
	if doc.Source == "" {
		return Document{}, fmt.Errorf("replace document: empty source")
	}
	if strings.TrimSpace(doc.ID) == "" {
		doc.ID = DocumentID(doc.Source)
	}
	if strings.TrimSpace(doc.Title) == "" {
		doc.Title = doc.Source
	}
	if doc.IndexedAt.IsZero() {
		doc.IndexedAt = time.Now().UTC()
	}
	doc.ChunkCount = len(chunks)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Document{}, fmt.Errorf("begin replace document: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, doc.ID); err != nil {
		return Document{}, fmt.Errorf("delete old chunks: %w", err)
	}
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO documents (id, source, title, checksum, chunk_count, embed_model, indexed_at_unix)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title,
		   checksum = excluded.checksum,
		   chunk_count = excluded.chunk_count,
		   embed_model = excluded.embed_model,
		   indexed_at_unix = excluded.indexed_at_unix`,
		doc.ID, doc.Source, doc.Title, doc.Checksum, doc.ChunkCount, doc.EmbedModel, doc.IndexedAt.Unix(),
	); err != nil {
		return Document{}, fmt.Errorf("upsert document: %w", err)
	}
	for index, chunk := range chunks {
		if strings.TrimSpace(chunk.ID) == "" {
			chunk.ID = uuid.NewString()
		}
		vector, err := json.Marshal(chunk.Embedding)
		if err != nil {
			return Document{}, fmt.Errorf("encode embedding: %w", err)
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO chunks (id, document_id, position, content, dim, embedding) VALUES (?, ?, ?, ?, ?, ?)`,
			chunk.ID, doc.ID, index, chunk.Content, len(chunk.Embedding), string(vector),
		); err != nil {
			return Document{}, fmt.Errorf("insert chunk: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Document{}, fmt.Errorf("commit replace document: %w", err)
	}
	return doc, nil
}

func (s *Store) LookupDocument(ctx context.Context, source string) (Document, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, source, title, checksum, chunk_count, embed_model, indexed_at_unix
		 FROM documents WHERE source = ?`,
		strings.TrimSpace(source),
	)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("lookup document: %w", err)
	}
	return doc, nil
}

func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, source, title, checksum, chunk_count, embed_model, indexed_at_unix
		 FROM documents ORDER BY source`,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	documents := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		documents = append(documents, doc)
	}
	return documents, rows.Err()
}

func (s *Store) DeleteDocument(ctx context.Context, source string) error {
	source = strings.TrimSpace(source)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id IN (SELECT id FROM documents WHERE source = ?)`, source); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE source = ?`, source)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats returns the number of stored documents and chunks.
func (s *Store) Stats(ctx context.Context) (int, int, error) {
	var documents, chunks int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&documents); err != nil {
		return 0, 0, fmt.Errorf("count documents: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&chunks); err != nil {
		return 0, 0, fmt.Errorf("count chunks: %w", err)
	}
	return documents, chunks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var indexedAt int64
	if err := row.Scan(&doc.ID, &doc.Source, &doc.Title, &doc.Checksum, &doc.ChunkCount, &doc.EmbedModel, &indexedAt); err != nil {
		return Document{}, err
	}
	doc.IndexedAt = time.Unix(indexedAt, 0).UTC()
	return doc, nil
}
