package pool

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

type countingStore struct {
	loads atomic.Int32
	creds []Credential
}

func (c *countingStore) Load(ctx context.Context, target string, purpose Purpose) []Credential {
	c.loads.Add(1)
	return Clone(c.creds)
}

func TestWatchingStore_CachesNonEmpty(t *testing.T) {
	next := &countingStore{creds: []Credential{{Token: "a"}}}
	store := NewWatchingStore(next, t.TempDir(), testLogger())

	for i := 0; i < 3; i++ {
		store.Load(context.Background(), "IND", PurposeAction)
	}
	if got := next.loads.Load(); got != 1 {
		t.Errorf("underlying loads = %d, want 1", got)
	}

	store.Invalidate()
	store.Load(context.Background(), "IND", PurposeAction)
	if got := next.loads.Load(); got != 2 {
		t.Errorf("underlying loads after Invalidate = %d, want 2", got)
	}
}

// invalidatingStore calls Invalidate on the wrapping store during its first
// load, as a file event landing mid-read would.
type invalidatingStore struct {
	countingStore
	outer *WatchingStore
}

func (s *invalidatingStore) Load(ctx context.Context, target string, purpose Purpose) []Credential {
	creds := s.countingStore.Load(ctx, target, purpose)
	if s.loads.Load() == 1 {
		s.outer.Invalidate()
	}
	return creds
}

func TestWatchingStore_InvalidateDuringLoadSkipsCache(t *testing.T) {
	next := &invalidatingStore{countingStore: countingStore{creds: []Credential{{Token: "old"}}}}
	store := NewWatchingStore(next, t.TempDir(), testLogger())
	next.outer = store

	got := store.Load(context.Background(), "IND", PurposeAction)
	if len(got) != 1 || got[0].Token != "old" {
		t.Fatalf("first Load() = %v, want [old]", got)
	}

	next.creds = []Credential{{Token: "new"}}
	got = store.Load(context.Background(), "IND", PurposeAction)
	if len(got) != 1 || got[0].Token != "new" {
		t.Errorf("second Load() = %v, want [new]", got)
	}
	if n := next.loads.Load(); n != 2 {
		t.Errorf("underlying loads = %d, want 2", n)
	}

	// generation is stable now, so the next pool is cached
	store.Load(context.Background(), "IND", PurposeAction)
	if n := next.loads.Load(); n != 2 {
		t.Errorf("underlying loads after caching = %d, want 2", n)
	}
}

func TestWatchingStore_DoesNotCacheEmpty(t *testing.T) {
	next := &countingStore{}
	store := NewWatchingStore(next, t.TempDir(), testLogger())

	store.Load(context.Background(), "IND", PurposeAction)
	store.Load(context.Background(), "IND", PurposeAction)
	if got := next.loads.Load(); got != 2 {
		t.Errorf("underlying loads = %d, want 2", got)
	}
}

func TestWatchingStore_ReturnsCopies(t *testing.T) {
	next := &countingStore{creds: []Credential{{Token: "a"}}}
	store := NewWatchingStore(next, t.TempDir(), testLogger())

	first := store.Load(context.Background(), "IND", PurposeAction)
	first[0].Token = "mutated"

	second := store.Load(context.Background(), "IND", PurposeAction)
	if second[0].Token != "a" {
		t.Errorf("cached token = %q, want %q", second[0].Token, "a")
	}
}

func TestWatchingStore_WatchInvalidatesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pool.json")
	if err := os.WriteFile(path, []byte(`["a"]`), 0o600); err != nil {
		t.Fatal(err)
	}

	fileStore := NewFileStore(dir, staticResolver(map[Purpose]string{PurposeAction: "pool.json"}), testLogger())
	store := NewWatchingStore(fileStore, dir, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- store.Watch(ctx) }()

	if got := store.Load(ctx, "IND", PurposeAction); len(got) != 1 {
		t.Fatalf("initial Load() = %v, want 1 credential", got)
	}

	// give the watcher a moment to register before writing
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte(`["a","b","c"]`), 0o600); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(store.Load(ctx, "IND", PurposeAction)) == 3 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if got := store.Load(ctx, "IND", PurposeAction); len(got) != 3 {
		t.Errorf("Load() after write = %d credentials, want 3", len(got))
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Watch() did not return after cancel")
	}
}

func TestWatchingStore_WatchMissingDir(t *testing.T) {
	store := NewWatchingStore(&countingStore{}, filepath.Join(t.TempDir(), "nope"), testLogger())
	if err := store.Watch(context.Background()); err == nil {
		t.Error("Watch() expected error for missing dir, got nil")
	}
}
