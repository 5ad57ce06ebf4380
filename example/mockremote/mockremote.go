// Package mockremote is a stand-in for the remote service, used by the
// examples. It decrypts action envelopes, counts one like per token per
// subject, and reports the count from its status endpoint.
package mockremote

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jpalmerr/tokenfan/internal/envelope"
)

// Remote is an in-memory counter service.
type Remote struct {
	sealer *envelope.Sealer
	logger *slog.Logger

	mu    sync.Mutex
	likes map[uint64]map[string]struct{}
}

// New creates a Remote that opens envelopes with the given hex key and IV.
func New(keyHex, ivHex string, logger *slog.Logger) (*Remote, error) {
	s, err := envelope.NewSealerHex(keyHex, ivHex)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Remote{sealer: s, logger: logger, likes: make(map[uint64]map[string]struct{})}, nil
}

// Handler serves POST /action and POST /status.
func (r *Remote) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /action", r.handleAction)
	mux.HandleFunc("POST /status", r.handleStatus)
	return mux
}

func (r *Remote) handleAction(w http.ResponseWriter, req *http.Request) {
	token := strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var msg struct {
		Subject uint64 `json:"subject"`
	}
	if err := r.open(req, &msg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// simulate small latency variance
	time.Sleep(time.Duration(20+rand.IntN(80)) * time.Millisecond)

	r.mu.Lock()
	seen, ok := r.likes[msg.Subject]
	if !ok {
		seen = make(map[string]struct{})
		r.likes[msg.Subject] = seen
	}
	_, dup := seen[token]
	seen[token] = struct{}{}
	r.mu.Unlock()

	if dup {
		w.WriteHeader(http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (r *Remote) handleStatus(w http.ResponseWriter, req *http.Request) {
	var msg struct {
		Subject uint64 `json:"subject"`
	}
	if err := r.open(req, &msg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	r.mu.Lock()
	n := len(r.likes[msg.Subject])
	r.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]any{
		"AccountInfo": map[string]any{
			"AccountId": msg.Subject,
			"Likes":     n,
		},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		r.logger.Error("failed to encode status", "error", err)
	}
}

func (r *Remote) open(req *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(req.Body, 4096))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	plain, err := r.sealer.Open(body)
	if err != nil {
		return fmt.Errorf("open envelope: %w", err)
	}
	return json.Unmarshal(plain, v)
}
