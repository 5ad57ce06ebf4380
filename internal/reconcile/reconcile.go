// Package reconcile measures the effect of one batch fan-out.
//
// A reconciliation reads the remote counter, selects and dispatches a batch,
// reads the counter again and reports the difference. The five steps run
// strictly in sequence; only the dispatch step is internally concurrent.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/jpalmerr/tokenfan/internal/batch"
	"github.com/jpalmerr/tokenfan/internal/dispatch"
	"github.com/jpalmerr/tokenfan/internal/pool"
)

// Selector draws a batch from a pool. Implemented by *batch.Selector.
type Selector interface {
	Select(target string, creds []pool.Credential, policy batch.Policy) []pool.Credential
}

// Dispatcher fans a call out over a batch. Implemented by *dispatch.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, call dispatch.Call, batch []pool.Credential) []dispatch.Outcome
}

// CounterReader reads the remote counter. Implemented by *dispatch.CounterReader.
type CounterReader interface {
	Read(ctx context.Context, call dispatch.Call, creds []pool.Credential) (int64, error)
}

// Request carries everything one reconciliation needs. The envelopes are
// opaque, already-encrypted bodies.
type Request struct {
	SubjectID         string
	Target            string
	Action            dispatch.Call
	Status            dispatch.Call
	VisitCredentials  []pool.Credential
	ActionCredentials []pool.Credential
	Policy            batch.Policy
}

// Result is the immutable outcome of one reconciliation.
type Result struct {
	SubjectID string
	Target    string
	Policy    batch.Policy

	Before int64
	After  int64
	Delta  int64

	// BeforeOK and AfterOK report whether each counter read succeeded.
	// A failed read is replaced by a fallback value (see Reconcile).
	BeforeOK bool
	AfterOK  bool

	Outcomes []dispatch.Outcome
	Tally    dispatch.Tally

	StartedAt time.Time
	Duration  time.Duration
}

// Reconciler runs the read / select / dispatch / read / assemble sequence.
type Reconciler struct {
	selector   Selector
	dispatcher Dispatcher
	counter    CounterReader
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a [Reconciler]. If logger is nil, slog.Default() is used.
func New(selector Selector, dispatcher Dispatcher, counter CounterReader, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		selector:   selector,
		dispatcher: dispatcher,
		counter:    counter,
		logger:     logger,
		now:        time.Now,
	}
}

// Reconcile executes the sequence exactly once.
//
// Counter read failures never abort the sequence. A failed before-read
// counts as 0. A failed after-read falls back to the before value, so the
// delta is 0 rather than a spurious negative. The two fallbacks are not
// symmetric: a failed before-read with a good after-read reports the whole
// counter as the delta.
func (r *Reconciler) Reconcile(ctx context.Context, req Request) Result {
	started := r.now()
	logger := r.logger.With("target", req.Target, "subject", req.SubjectID)

	before, err := r.counter.Read(ctx, req.Status, req.VisitCredentials)
	beforeOK := err == nil
	if !beforeOK {
		logger.Warn("before-read failed, assuming 0", "error", err)
		before = 0
	}

	selected := r.selector.Select(req.Target, req.ActionCredentials, req.Policy)
	logger.Debug("batch selected",
		"policy", req.Policy.String(),
		"pool_size", len(req.ActionCredentials),
		"batch_size", len(selected),
	)

	outcomes := r.dispatcher.Dispatch(ctx, req.Action, selected)
	tally := dispatch.Summarize(outcomes)
	logger.Debug("batch dispatched",
		"succeeded", tally.Succeeded,
		"codes", tally.SortedCodes(),
	)

	after, err := r.counter.Read(ctx, req.Status, req.VisitCredentials)
	afterOK := err == nil
	if !afterOK {
		logger.Warn("after-read failed, falling back to before value", "error", err)
		after = before
	}

	return Result{
		SubjectID: req.SubjectID,
		Target:    req.Target,
		Policy:    req.Policy,
		Before:    before,
		After:     after,
		Delta:     after - before,
		BeforeOK:  beforeOK,
		AfterOK:   afterOK,
		Outcomes:  outcomes,
		Tally:     tally,
		StartedAt: started,
		Duration:  r.now().Sub(started),
	}
}
