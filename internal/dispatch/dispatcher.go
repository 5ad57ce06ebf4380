package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jpalmerr/tokenfan/internal/pool"
)

// DefaultTimeout bounds every individual outbound call.
const DefaultTimeout = 10 * time.Second

// Call describes one outbound request shape: where to send it, the opaque
// encrypted body, and the headers shared by every credential. The bearer
// Authorization header is added per credential.
type Call struct {
	URL    string
	Body   []byte
	Header http.Header
}

// Dispatcher fans a [Call] out over a batch of credentials.
//
// Dispatcher holds no per-batch state and is safe for concurrent use.
type Dispatcher struct {
	client  *Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewDispatcher creates a [Dispatcher]. A non-positive timeout falls back to
// [DefaultTimeout]; a nil client or logger gets a default.
func NewDispatcher(client *Client, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if client == nil {
		client = NewClient()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{client: client, timeout: timeout, logger: logger}
}

// Dispatch sends call once per credential, all concurrently, and returns
// one [Outcome] per credential in batch order.
//
// Dispatch returns only after every call has completed or failed. Caller
// cancellation is not propagated to in-flight calls; each call is bounded
// by the dispatcher's per-call timeout instead.
func (d *Dispatcher) Dispatch(ctx context.Context, call Call, batch []pool.Credential) []Outcome {
	outcomes := make([]Outcome, len(batch))
	if len(batch) == 0 {
		return outcomes
	}

	ctx = context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i, cred := range batch {
		if !cred.Usable() {
			outcomes[i] = MissingToken
			continue
		}

		wg.Add(1)
		go func(i int, cred pool.Credential) {
			defer wg.Done()
			outcomes[i] = d.send(ctx, call, cred)
		}(i, cred)
	}
	wg.Wait()

	return outcomes
}

// send performs a single call. Panics are recovered and reported as
// [TransportFailure] so the batch always completes.
func (d *Dispatcher) send(ctx context.Context, call Call, cred pool.Credential) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			d.logger.Error("dispatch panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			outcome = TransportFailure
		}
	}()

	resp := d.client.Post(ctx, call.URL, authorize(call.Header, cred), call.Body, d.timeout)
	if resp.Error != nil {
		d.logger.Debug("dispatch call failed", "url", call.URL, "error", resp.Error)
		return TransportFailure
	}
	return Outcome(resp.StatusCode)
}

// authorize returns a copy of base with the credential's bearer token set.
func authorize(base http.Header, cred pool.Credential) http.Header {
	h := base.Clone()
	if h == nil {
		h = make(http.Header, 1)
	}
	h.Set("Authorization", "Bearer "+cred.Token)
	return h
}
