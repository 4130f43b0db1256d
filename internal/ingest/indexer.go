package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dwizi/pmt-assistant/internal/docstore"
	"github.com/dwizi/pmt-assistant/internal/llm"
)

type Store interface {
	LookupDocument(ctx context.Context, source string) (docstore.Document, error)
	ListDocuments(ctx context.Context) ([]docstore.Document, error)
	ReplaceDocument(ctx context.Context, doc docstore.Document, chunks []docstore.Chunk) (docstore.Document, error)
	DeleteDocument(ctx context.Context, source string) error
}

type Config struct {
	ChunkSize    int
	ChunkOverlap int
	Parallelism  int
	BatchSize    int
	EmbedModel   string
}

type Outcome string

const (
	OutcomeIndexed   Outcome = "indexed"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeEmpty     Outcome = "empty"
)

// Report summarises one directory pass.
type Report struct {
	Documents int
	Indexed   int
	Unchanged int
	Removed   int
	Chunks    int
	Failed    []string
	Duration  time.Duration
}

type Indexer struct {
	store    Store
	embedder llm.Embedder
	cfg      Config
	logger   *slog.Logger
	mu       sync.Mutex
}

func NewIndexer(store Store, embedder llm.Embedder, cfg Config, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = defaultChunkOverlap
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	return &Indexer{
		store:    store,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger.With("component", "ingest"),
	}
}

// IndexDir loads every supported file under dir, re-embeds the ones whose
// checksum changed and drops stored documents whose file is gone. A single
// bad file is recorded in the report and does not stop the pass.
func (i *Indexer) IndexDir(ctx context.Context, dir string) (Report, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	started := time.Now()
	paths, err := documentPaths(dir)
	if err != nil {
		return Report{}, err
	}
	report := Report{}
	present := map[string]struct{}{}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		present[path] = struct{}{}
		outcome, chunks, err := i.indexFile(ctx, path)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return report, err
			}
			i.logger.Warn("document index failed", "path", path, "error", err)
			report.Failed = append(report.Failed, path)
			continue
		}
		report.Documents++
		switch outcome {
		case OutcomeIndexed:
			report.Indexed++
			report.Chunks += chunks
		case OutcomeUnchanged:
			report.Unchanged++
		}
	}

	removed, err := i.pruneMissing(ctx, dir, present)
	if err != nil {
		return report, err
	}
	report.Removed = removed
	report.Duration = time.Since(started)
	i.logger.Info("documents loaded into vector store",
		"dir", dir,
		"documents", report.Documents,
		"indexed", report.Indexed,
		"unchanged", report.Unchanged,
		"removed", report.Removed,
		"failed", len(report.Failed),
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report, nil
}

// IndexFile indexes a single document, typically after a file change.
func (i *Indexer) IndexFile(ctx context.Context, path string) (Outcome, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	outcome, _, err := i.indexFile(ctx, path)
	return outcome, err
}

// RemoveFile forgets a deleted document. Unknown paths are not an error.
func (i *Indexer) RemoveFile(ctx context.Context, path string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	err := i.store.DeleteDocument(ctx, filepath.Clean(path))
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return err
	}
	if err == nil {
		i.logger.Info("document removed", "path", path)
	}
	return nil
}

func (i *Indexer) indexFile(ctx context.Context, path string) (Outcome, int, error) {
	path = filepath.Clean(path)
	source, err := Load(path)
	if err != nil {
		return "", 0, err
	}
	existing, err := i.store.LookupDocument(ctx, path)
	switch {
	case err == nil && existing.Checksum == source.Checksum && existing.EmbedModel == i.cfg.EmbedModel:
		i.logger.Debug("document unchanged", "path", path)
		return OutcomeUnchanged, existing.ChunkCount, nil
	case err != nil && !errors.Is(err, docstore.ErrNotFound):
		return "", 0, err
	}

	pieces := Split(source.Text, i.cfg.ChunkSize, i.cfg.ChunkOverlap)
	chunks, err := i.embedChunks(ctx, pieces)
	if err != nil {
		return "", 0, err
	}
	doc := docstore.Document{
		Source:     path,
		Title:      source.Title,
		Checksum:   source.Checksum,
		EmbedModel: i.cfg.EmbedModel,
	}
	if _, err := i.store.ReplaceDocument(ctx, doc, chunks); err != nil {
		return "", 0, err
	}
	i.logger.Info("document indexed", "path", path, "chunks", len(chunks))
	if len(chunks) == 0 {
		return OutcomeEmpty, 0, nil
	}
	return OutcomeIndexed, len(chunks), nil
}

// embedChunks embeds pieces in batches, running up to Parallelism batches at
// once. Chunk order is preserved.
func (i *Indexer) embedChunks(ctx context.Context, pieces []string) ([]docstore.Chunk, error) {
	if len(pieces) == 0 {
		return nil, nil
	}
	if i.embedder == nil {
		return nil, fmt.Errorf("%w: no embedder configured", llm.ErrUnavailable)
	}
	chunks := make([]docstore.Chunk, len(pieces))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(i.cfg.Parallelism)
	for start := 0; start < len(pieces); start += i.cfg.BatchSize {
		end := start + i.cfg.BatchSize
		if end > len(pieces) {
			end = len(pieces)
		}
		batchStart, batch := start, pieces[start:end]
		group.Go(func() error {
			vectors, err := i.embedder.Embed(groupCtx, batch)
			if err != nil {
				return fmt.Errorf("embed chunks %d-%d: %w", batchStart, batchStart+len(batch)-1, err)
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("embed chunks %d-%d: got %d vectors for %d inputs", batchStart, batchStart+len(batch)-1, len(vectors), len(batch))
			}
			for offset, vector := range vectors {
				chunks[batchStart+offset] = docstore.Chunk{
					Position:  batchStart + offset,
					Content:   batch[offset],
					Embedding: vector,
				}
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return chunks, nil
}

func (i *Indexer) pruneMissing(ctx context.Context, dir string, present map[string]struct{}) (int, error) {
	documents, err := i.store.ListDocuments(ctx)
	if err != nil {
		return 0, err
	}
	root := filepath.Clean(dir) + string(filepath.Separator)
	removed := 0
	for _, doc := range documents {
		if !strings.HasPrefix(doc.Source, root) {
			continue
		}
		if _, ok := present[doc.Source]; ok {
			continue
		}
		if err := i.store.DeleteDocument(ctx, doc.Source); err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func documentPaths(dir string) ([]string, error) {
	dir = filepath.Clean(strings.TrimSpace(dir))
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("documents dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("documents dir %s is not a directory", dir)
	}
	paths := []string{}
	err = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() {
			if path != dir && strings.HasPrefix(entry.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if Supported(path) && !isHidden(path) {
			paths = append(paths, filepath.Clean(path))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk documents dir: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}
