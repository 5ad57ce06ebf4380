package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces bursts of file events (editors often write,
// rename and chmod in quick succession).
const reloadDebounce = 200 * time.Millisecond

type cacheKey struct {
	target  string
	purpose Purpose
}

// WatchingStore caches pools loaded from an underlying [Store].
//
// The cache is dropped whenever a file in the watched directory changes
// (see [WatchingStore.Watch]) or when [WatchingStore.Invalidate] is called.
// Load always returns a fresh copy so callers cannot mutate cached pools.
type WatchingStore struct {
	next   Store
	dir    string
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[cacheKey][]Credential
	gen   uint64 // bumped by Invalidate
}

var _ Store = (*WatchingStore)(nil)

// NewWatchingStore wraps next with a cache invalidated by changes in dir.
func NewWatchingStore(next Store, dir string, logger *slog.Logger) *WatchingStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &WatchingStore{
		next:   next,
		dir:    dir,
		logger: logger,
		cache:  make(map[cacheKey][]Credential),
	}
}

// Load returns the cached pool or loads it from the underlying store.
// Empty pools are not cached so a missing file is picked up once created.
func (s *WatchingStore) Load(ctx context.Context, target string, purpose Purpose) []Credential {
	key := cacheKey{target: target, purpose: purpose}

	s.mu.RLock()
	creds, ok := s.cache[key]
	gen := s.gen
	s.mu.RUnlock()
	if ok {
		return Clone(creds)
	}

	creds = s.next.Load(ctx, target, purpose)
	if len(creds) > 0 {
		s.mu.Lock()
		// an Invalidate during the load means creds may predate the change
		if s.gen == gen {
			s.cache[key] = Clone(creds)
		}
		s.mu.Unlock()
	}
	return creds
}

// Invalidate drops every cached pool.
func (s *WatchingStore) Invalidate() {
	s.mu.Lock()
	s.cache = make(map[cacheKey][]Credential)
	s.gen++
	s.mu.Unlock()
}

// Watch blocks, invalidating the cache on every change in the pool
// directory, until ctx is cancelled. It returns an error only if the
// watcher cannot be set up.
func (s *WatchingStore) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create pool watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	if err := w.Add(s.dir); err != nil {
		return fmt.Errorf("watch pool dir %s: %w", s.dir, err)
	}
	s.logger.Debug("pool watcher started", "dir", s.dir)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			name := ev.Name
			timer = time.AfterFunc(reloadDebounce, func() {
				s.Invalidate()
				s.logger.Info("pool cache invalidated", "file", name)
			})

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			// we may have missed events, so drop the cache rather than serve stale pools
			s.logger.Warn("pool watcher error", "dir", s.dir, "error", err)
			s.Invalidate()
		}
	}
}
