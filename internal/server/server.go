package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jpalmerr/tokenfan/internal/store"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// This prevents goroutine leaks when clients are slow or disconnected.
	sseWriteTimeout = 5 * time.Second

	shutdownTimeout = 5 * time.Second
)

// PoolSize reports the credential pool sizes of one target.
type PoolSize struct {
	Target string
	Action int
	Status int
}

// Service is the work behind the HTTP surface.
type Service interface {
	// Like runs one reconciliation. random selects the random batch policy.
	Like(ctx context.Context, subject, target string, random bool) (store.Record, error)

	// PoolSizes reports pool sizes for every known target.
	PoolSizes(ctx context.Context) []PoolSize
}

// Config holds the server settings.
type Config struct {
	// Port is the TCP port to listen on. 0 picks a free port.
	Port int

	// RatePerSecond limits /like requests per target. 0 disables limiting.
	RatePerSecond float64

	// Burst is the token bucket size for RatePerSecond.
	Burst int
}

// Server handles HTTP requests for the tokenfan API.
type Server struct {
	service    Service
	store      store.Store
	cfg        Config
	limiter    *targetLimiter
	httpServer *http.Server
	addr       net.Addr
	logger     *slog.Logger
}

// NewServer creates a new HTTP [Server]. The server is not started until
// [Server.Start] is called.
func NewServer(svc Service, st store.Store, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		service: svc,
		store:   st,
		cfg:     cfg,
		limiter: newTargetLimiter(cfg.RatePerSecond, cfg.Burst),
		logger:  logger,
	}
}

// Handler returns the router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/like", s.handleLike)
	r.Get("/token_info", s.handleTokenInfo)
	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/results", s.handleResults)
		r.Get("/sse", s.handleSSE)
	})

	return r
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns once the listener is bound. The server
// runs until ctx is cancelled, then shuts down gracefully with a 5-second
// timeout. Returns an error if the port cannot be bound.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.cfg.Port, err)
	}
	s.addr = ln.Addr()

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts derive from ctx so SSE streams end on shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// handleLike validates the query, applies the per-target rate limit and
// runs one reconciliation.
func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	subject := strings.TrimSpace(q.Get("uid"))
	target := strings.ToUpper(strings.TrimSpace(q.Get("server_name")))
	random := strings.EqualFold(q.Get("random"), "true")

	if subject == "" || target == "" {
		s.writeError(w, http.StatusBadRequest, "uid & server_name required")
		return
	}

	if !s.limiter.Allow(target) {
		w.Header().Set("Retry-After", "1")
		s.writeError(w, http.StatusTooManyRequests, fmt.Sprintf("%s for %s", ErrRateLimited, target))
		return
	}

	record, err := s.service.Like(r.Context(), subject, target, random)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Warn("like request failed",
				"request_id", middleware.GetReqID(r.Context()),
				"target", target,
				"error", err,
			)
		}
		s.writeError(w, status, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, record)
}

type poolCounts struct {
	Regular int `json:"regular"`
	Visit   int `json:"visit"`
}

// handleTokenInfo reports pool sizes per target. Read-only.
func (s *Server) handleTokenInfo(w http.ResponseWriter, r *http.Request) {
	sizes := s.service.PoolSizes(r.Context())

	out := make(map[string]poolCounts, len(sizes))
	for _, ps := range sizes {
		out[ps.Target] = poolCounts{Regular: ps.Action, Visit: ps.Status}
	}
	s.writeJSON(w, http.StatusOK, out)
}

// handleResults returns the latest reconciliation per target.
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	s.writeJSON(w, http.StatusOK, s.store.GetAll())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSSE streams reconciliation records via Server-Sent Events.
//
// Write deadlines keep a slow or vanished client from pinning the handler
// goroutine past shutdown.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	for _, record := range s.store.GetAll() {
		data, err := json.Marshal(record)
		if err != nil {
			continue
		}
		if err := writeAndFlush(data); err != nil {
			return
		}
	}

	for {
		select {
		case record, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(record)
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}

		case <-r.Context().Done():
			// fires on client disconnect and on server shutdown (BaseContext)
			return
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
