package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dwizi/pmt-assistant/internal/ingest"
)

// Indexer is the part of the ingest pipeline the watcher drives.
type Indexer interface {
	IndexFile(ctx context.Context, path string) (ingest.Outcome, error)
	RemoveFile(ctx context.Context, path string) error
}

// Service watches document roots and reindexes files once they have been
// quiet for the debounce interval. Events for the same path are coalesced.
type Service struct {
	roots    []string
	logger   *slog.Logger
	accept   func(path string) bool
	indexer  Indexer
	debounce time.Duration
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
}

func New(roots []string, accept func(string) bool, indexer Indexer, debounce time.Duration, logger *slog.Logger) (*Service, error) {
	fileWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if accept == nil {
		accept = func(string) bool { return true }
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Service{
		roots:    roots,
		logger:   logger.With("component", "watcher"),
		accept:   accept,
		indexer:  indexer,
		debounce: debounce,
		watcher:  fileWatcher,
		pending:  map[string]*time.Timer{},
	}, nil
}

func (s *Service) Start(ctx context.Context) error {
	defer s.watcher.Close()
	defer s.stopPending()

	for _, root := range s.roots {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return fmt.Errorf("create documents dir: %w", err)
		}
		if err := s.addRecursive(root); err != nil {
			return err
		}
	}
	s.logger.Info("document watcher started", "roots", strings.Join(s.roots, ","), "debounce", s.debounce.String())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("document watcher stopped")
			return nil
		case event, ok := <-s.watcher.Events:
			if !ok {
				return nil
			}
			s.handleEvent(ctx, event)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return nil
			}
			if err != nil {
				s.logger.Error("file watcher error", "error", err)
			}
		}
	}
}

func (s *Service) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, entry os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !entry.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(entry.Name(), ".") {
			return filepath.SkipDir
		}
		if err := s.watcher.Add(path); err != nil {
			return fmt.Errorf("watch path %s: %w", path, err)
		}
		return nil
	})
}

func (s *Service) handleEvent(ctx context.Context, event fsnotify.Event) {
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := s.addRecursive(event.Name); err != nil {
				s.logger.Error("failed to add new directory to watcher", "path", event.Name, "error", err)
			}
			return
		}
	}
	if !s.accept(event.Name) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return
	}
	s.logger.Debug("document changed", "path", event.Name, "op", event.Op.String())
	s.schedule(ctx, event.Name)
}

func (s *Service) schedule(ctx context.Context, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.pending[path]; ok {
		timer.Stop()
	}
	s.pending[path] = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		delete(s.pending, path)
		s.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		s.sync(ctx, path)
	})
}

// sync reindexes path if it still exists and forgets it otherwise; a rename
// shows up as a remove of the old name plus a create of the new one.
func (s *Service) sync(ctx context.Context, path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.indexer.RemoveFile(ctx, path); err != nil {
			s.logger.Error("document removal failed", "path", path, "error", err)
		}
		return
	}
	outcome, err := s.indexer.IndexFile(ctx, path)
	if err != nil {
		s.logger.Error("document reindex failed", "path", path, "error", err)
		return
	}
	s.logger.Info("document reindexed", "path", path, "outcome", string(outcome))
}

func (s *Service) stopPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for path, timer := range s.pending {
		timer.Stop()
		delete(s.pending, path)
	}
}
