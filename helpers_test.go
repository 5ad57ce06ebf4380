package tokenfan

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

const (
	testKey = "000102030405060708090a0b0c0d0e0f"
	testIV  = "f0e0d0c0b0a090807060504030201000"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRemote counts accepted action calls and reports the count from its
// status endpoint.
type fakeRemote struct {
	*httptest.Server

	likes       atomic.Int64
	actionCalls atomic.Int64
	statusCalls atomic.Int64
	failStatus  atomic.Bool

	mu       sync.Mutex
	tokens   map[string]int
	releases map[string]int
}

func newFakeRemote(t *testing.T) *fakeRemote {
	t.Helper()
	r := &fakeRemote{tokens: make(map[string]int), releases: make(map[string]int)}
	mux := http.NewServeMux()
	mux.HandleFunc("/action", func(w http.ResponseWriter, req *http.Request) {
		r.actionCalls.Add(1)
		token := strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
		r.mu.Lock()
		r.tokens[token]++
		r.releases[req.Header.Get(ReleaseHeader)]++
		r.mu.Unlock()
		if strings.HasPrefix(token, "bad") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		r.likes.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, req *http.Request) {
		r.statusCalls.Add(1)
		r.mu.Lock()
		r.releases[req.Header.Get(ReleaseHeader)]++
		r.mu.Unlock()
		if r.failStatus.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{"AccountInfo":{"Likes":%d}}`, r.likes.Load())
	})
	r.Server = httptest.NewServer(mux)
	t.Cleanup(r.Close)
	return r
}

// releasesSeen returns how many calls carried each release header value.
func (r *fakeRemote) releasesSeen() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.releases))
	for k, v := range r.releases {
		out[k] = v
	}
	return out
}

func (r *fakeRemote) distinctTokens() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}

// writePool writes a JSON pool file of tokens into dir.
func writePool(t *testing.T, dir, name string, tokens ...string) {
	t.Helper()
	entries := make([]map[string]string, len(tokens))
	for i, tok := range tokens {
		entries[i] = map[string]string{"token": tok}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
		t.Fatal(err)
	}
}

func makeTokens(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s-%03d", prefix, i)
	}
	return out
}

// newTestShim builds a Shim with one "ind" family pointed at remote and
// pools under a fresh temp dir.
func newTestShim(t *testing.T, remote *fakeRemote, actionTokens []string, opts ...Option) *Shim {
	t.Helper()
	return newTestShimWithFamily(t, remote, nil, actionTokens, opts...)
}

// newTestShimWithFamily is newTestShim with extra options for the "ind" family.
func newTestShimWithFamily(t *testing.T, remote *fakeRemote, famOpts []FamilyOption, actionTokens []string, opts ...Option) *Shim {
	t.Helper()
	dir := t.TempDir()
	writePool(t, dir, "token_ind.json", actionTokens...)
	writePool(t, dir, "token_ind_visit.json", "visit-1")

	famOpts = append([]FamilyOption{WithTargets("IND")}, famOpts...)
	fam, err := NewFamily("ind", remote.URL+"/action", remote.URL+"/status", famOpts...)
	if err != nil {
		t.Fatalf("NewFamily() error = %v", err)
	}

	base := []Option{
		WithFamily(fam),
		WithPoolDir(dir),
		WithEnvelopeKeys(testKey, testIV),
		WithLogger(testLogger()),
	}
	shim, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(shim.Close)
	return shim
}
