package tokenfan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/tokenfan/internal/batch"
	"github.com/jpalmerr/tokenfan/internal/dispatch"
	"github.com/jpalmerr/tokenfan/internal/envelope"
	"github.com/jpalmerr/tokenfan/internal/pool"
	"github.com/jpalmerr/tokenfan/internal/reconcile"
	"github.com/jpalmerr/tokenfan/internal/route"
	"github.com/jpalmerr/tokenfan/internal/server"
	"github.com/jpalmerr/tokenfan/internal/store"
)

// ReleaseHeader carries the release tag on every outbound call.
const ReleaseHeader = "ReleaseVersion"

const (
	defaultPort    = 5001
	defaultRelease = "OB52"
	defaultPoolDir = "."
)

// Shim fans one request out over a batch of credentials and reports how far
// the remote counter moved.
//
// Shim is created using [New] with functional options. [Shim.Like] can be
// called directly from Go; [Shim.Start] serves the same operation over HTTP.
//
// The typical lifecycle is:
//
//	shim, err := tokenfan.New(
//	    tokenfan.WithFamily(fam),
//	    tokenfan.WithEnvelopeKeys(keyHex, ivHex),
//	)
//	if err != nil {
//	    slog.Error("failed to create shim", "error", err)
//	    os.Exit(1)
//	}
//	defer shim.Close()
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	shim.Start(ctx) // blocks until context cancelled
type Shim struct {
	families      []Family
	table         *route.Table
	port          int
	release       string
	batchSize     int
	timeout       time.Duration
	ratePerSecond float64
	rateBurst     int
	logger        *slog.Logger

	pools   pool.Store
	watcher *pool.WatchingStore
	builder EnvelopeBuilder

	client     *dispatch.Client
	selector   *batch.Selector
	dispatcher *dispatch.Dispatcher
	counter    *dispatch.CounterReader

	results   *store.MemoryStore
	callbacks []func(Summary)
}

// New creates a new [Shim] with the given options.
//
// At least one family must be configured via [WithFamily] or
// [WithFamilies], and an envelope builder via [WithEnvelopeKeys] or
// [WithEnvelopeBuilder]. Other options have defaults:
//   - Port: 5001
//   - Batch size: 189
//   - Request timeout: 10 seconds
//   - Release tag: "OB52"
//   - Counter extractor: JSON path "AccountInfo.Likes"
//
// Returns an error if an option is invalid or the families conflict
// (duplicate names, a target in two families, two fallbacks).
func New(opts ...Option) (*Shim, error) {
	cfg := &shimConfig{
		port:           defaultPort,
		release:        defaultRelease,
		batchSize:      batch.DefaultSize,
		requestTimeout: dispatch.DefaultTimeout,
		poolDir:        defaultPoolDir,
		headers:        make(map[string]string),
		counter:        DefaultCounterExtractor,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.families) == 0 {
		return nil, errors.New("at least one family is required")
	}
	if cfg.builder == nil {
		return nil, errors.New("an envelope builder is required (WithEnvelopeKeys or WithEnvelopeBuilder)")
	}

	table, err := route.NewTable(toRouteFamilies(cfg.families, cfg.release, cfg.headers))
	if err != nil {
		return nil, err
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		pools   pool.Store = pool.NewFileStore(cfg.poolDir, table, logger)
		watcher *pool.WatchingStore
	)
	if cfg.watchPools {
		watcher = pool.NewWatchingStore(pools, cfg.poolDir, logger)
		pools = watcher
	}

	client := dispatch.NewClient()

	return &Shim{
		families:      append([]Family(nil), cfg.families...),
		table:         table,
		port:          cfg.port,
		release:       cfg.release,
		batchSize:     cfg.batchSize,
		timeout:       cfg.requestTimeout,
		ratePerSecond: cfg.ratePerSecond,
		rateBurst:     cfg.rateBurst,
		logger:        logger,
		pools:         pools,
		watcher:       watcher,
		builder:       cfg.builder,
		client:        client,
		selector:      batch.NewSelector(batch.NewCursors(), cfg.batchSize),
		dispatcher:    dispatch.NewDispatcher(client, cfg.requestTimeout, logger),
		counter:       dispatch.NewCounterReader(client, cfg.requestTimeout, dispatch.CounterExtractor(cfg.counter), logger),
		results:       store.NewMemoryStore(),
		callbacks:     cfg.callbacks,
	}, nil
}

// toRouteFamilies converts families to route definitions. Each family's
// headers override the global ones, which override the release header.
func toRouteFamilies(families []Family, release string, global map[string]string) []route.Family {
	out := make([]route.Family, len(families))
	for i, f := range families {
		h := make(http.Header, len(global)+len(f.headers)+1)
		h.Set(ReleaseHeader, release)
		for k, v := range global {
			h.Set(k, v)
		}
		for k, v := range f.headers {
			h.Set(k, v)
		}
		out[i] = route.Family{
			Name:       f.name,
			Targets:    f.Targets(),
			Fallback:   f.fallback,
			ActionURL:  f.actionURL,
			StatusURL:  f.statusURL,
			ActionPool: f.actionPool,
			StatusPool: f.statusPool,
			Header:     h,
		}
	}
	return out
}

// Like runs one reconciliation for subject on target.
//
// The input is validated before any network call. Both credential pools for
// the target must be non-empty, otherwise [ErrNoCredentials] is returned.
// Caller cancellation is not propagated: once started, the cycle runs to
// completion, bounded by the per-call timeout.
func (s *Shim) Like(ctx context.Context, subject, target string, policy Policy) (Summary, error) {
	subject = strings.TrimSpace(subject)
	target = route.Normalize(target)

	if subject == "" {
		return Summary{}, ErrMissingSubject
	}
	if target == "" {
		return Summary{}, ErrMissingTarget
	}
	if _, err := envelope.ParseSubject(subject); err != nil {
		return Summary{}, fmt.Errorf("%w: %q", ErrInvalidSubject, subject)
	}

	fam, ok := s.table.Resolve(target)
	if !ok {
		return Summary{}, fmt.Errorf("%w: %s", ErrUnknownTarget, target)
	}

	ctx = context.WithoutCancel(ctx)

	visit := s.pools.Load(ctx, target, pool.PurposeStatus)
	action := s.pools.Load(ctx, target, pool.PurposeAction)
	if len(visit) == 0 || len(action) == 0 {
		return Summary{}, fmt.Errorf("%w for %s (action %d, status %d)", ErrNoCredentials, target, len(action), len(visit))
	}

	actionBody, err := s.builder.ActionEnvelope(subject, target)
	if err != nil {
		return Summary{}, fmt.Errorf("build action envelope: %w", err)
	}
	statusBody, err := s.builder.StatusEnvelope(subject)
	if err != nil {
		return Summary{}, fmt.Errorf("build status envelope: %w", err)
	}

	requestID := uuid.NewString()
	logger := s.logger.With("request_id", requestID)

	res := reconcile.New(s.selector, s.dispatcher, s.counter, logger).Reconcile(ctx, reconcile.Request{
		SubjectID:         subject,
		Target:            target,
		Action:            dispatch.Call{URL: fam.ActionURL, Body: actionBody, Header: fam.Header},
		Status:            dispatch.Call{URL: fam.StatusURL, Body: statusBody, Header: fam.Header},
		VisitCredentials:  visit,
		ActionCredentials: action,
		Policy:            policy.batch(),
	})

	// store update first (callbacks fire after data is published)
	summary := recordToSummary(s.results.Update(store.NewRecord(res, s.release, requestID)))
	summary.Outcomes = outcomeCodes(res.Outcomes)
	summary.Duration = res.Duration
	for _, cb := range s.callbacks {
		invokeCallbackSafe(cb, summary, logger)
	}

	logger.Info("reconciliation complete",
		"target", target,
		"family", fam.Name,
		"subject", subject,
		"policy", summary.Policy,
		"before", summary.Before,
		"after", summary.After,
		"delta", summary.Delta,
		"batch_size", summary.Batch.Size,
		"succeeded", summary.Batch.Succeeded,
		"duration_ms", summary.Duration.Milliseconds(),
	)

	return summary, nil
}

// PoolSizes reports the action and status pool sizes for every explicitly
// listed target, in declaration order. Read-only.
func (s *Shim) PoolSizes(ctx context.Context) []PoolSize {
	targets := s.table.Targets()
	sizes := make([]PoolSize, len(targets))
	for i, t := range targets {
		sizes[i] = PoolSize{
			Target: t,
			Action: len(s.pools.Load(ctx, t, pool.PurposeAction)),
			Status: len(s.pools.Load(ctx, t, pool.PurposeStatus)),
		}
	}
	return sizes
}

// Results returns the latest [Summary] per target, ordered by target.
func (s *Shim) Results() []Summary {
	records := s.results.GetAll()
	out := make([]Summary, len(records))
	for i, r := range records {
		out[i] = recordToSummary(r)
	}
	return out
}

// Start serves the HTTP API and, if enabled, watches the pool directory.
//
// Start is a blocking call that runs until the provided context is
// cancelled. Returns nil on graceful shutdown. Returns an error if the HTTP
// server fails to start.
func (s *Shim) Start(ctx context.Context) error {
	s.logger.Info("tokenfan starting",
		"families", len(s.families),
		"targets", len(s.table.Targets()),
		"batch_size", s.batchSize,
		"release", s.release,
	)

	if ctx.Err() != nil {
		return nil
	}

	var wg sync.WaitGroup
	if s.watcher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.watcher.Watch(ctx); err != nil {
				s.logger.Warn("pool watcher disabled", "error", err)
			}
		}()
	}

	httpServer := server.NewServer(service{s}, s.results, server.Config{
		Port:          s.port,
		RatePerSecond: s.ratePerSecond,
		Burst:         s.rateBurst,
	}, s.logger)
	if err := httpServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	s.logger.Info("api available", "url", fmt.Sprintf("http://localhost:%d", s.port))

	<-ctx.Done()
	wg.Wait()
	s.logger.Info("tokenfan stopped")
	return nil
}

// Close releases idle outbound connections.
func (s *Shim) Close() {
	s.client.Close()
}

// Families returns a copy of the configured families.
func (s *Shim) Families() []Family {
	return append([]Family(nil), s.families...)
}

// Port returns the configured HTTP port.
func (s *Shim) Port() int {
	return s.port
}

// BatchSize returns the maximum batch size.
func (s *Shim) BatchSize() int {
	return s.batchSize
}

// Release returns the release tag echoed in summaries.
func (s *Shim) Release() string {
	return s.release
}

// service adapts a Shim to the HTTP layer.
type service struct {
	shim *Shim
}

var _ server.Service = service{}

func (a service) Like(ctx context.Context, subject, target string, random bool) (store.Record, error) {
	sum, err := a.shim.Like(ctx, subject, target, policyFrom(batch.PolicyFromFlag(random)))
	if err != nil {
		return store.Record{}, err
	}
	return summaryToRecord(sum), nil
}

func (a service) PoolSizes(ctx context.Context) []server.PoolSize {
	return toServerPoolSizes(a.shim.PoolSizes(ctx))
}

// invokeCallbackSafe calls a summary callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(Summary), summary Summary, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("summary callback panicked",
				"panic", r,
				"target", summary.Target,
			)
		}
	}()
	cb(summary)
}
