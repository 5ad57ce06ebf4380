package tokenfan

import (
	"time"

	"github.com/jpalmerr/tokenfan/internal/batch"
	"github.com/jpalmerr/tokenfan/internal/dispatch"
	"github.com/jpalmerr/tokenfan/internal/server"
	"github.com/jpalmerr/tokenfan/internal/store"
)

// Policy selects how a batch is drawn from the action pool.
type Policy int

const (
	// PolicyRotating takes consecutive credentials from a per-target cursor,
	// so repeated calls walk the whole pool.
	PolicyRotating Policy = iota

	// PolicyRandom draws distinct credentials uniformly at random.
	PolicyRandom
)

// String returns "rotating" or "random".
func (p Policy) String() string {
	return p.batch().String()
}

// ParsePolicy parses "rotating" or "random" (case-insensitive).
func ParsePolicy(s string) (Policy, error) {
	p, err := batch.ParsePolicy(s)
	if err != nil {
		return PolicyRotating, err
	}
	return policyFrom(p), nil
}

func policyFrom(p batch.Policy) Policy {
	if p == batch.Random {
		return PolicyRandom
	}
	return PolicyRotating
}

func (p Policy) batch() batch.Policy {
	if p == PolicyRandom {
		return batch.Random
	}
	return batch.Rotating
}

// BatchCounts summarises the outcomes of one dispatched batch.
type BatchCounts struct {
	Size             int `json:"size"`
	Succeeded        int `json:"succeeded"`
	MissingToken     int `json:"missing_token"`
	TransportFailure int `json:"transport_failure"`
	Rejected         int `json:"rejected"`
}

// Summary is the outcome of one [Shim.Like] call.
//
// Delta is After minus Before. When BeforeOK is false Before was assumed
// to be 0; when AfterOK is false After was set equal to Before.
type Summary struct {
	Subject   string      `json:"subject"`
	Target    string      `json:"target"`
	Before    int64       `json:"count_before"`
	After     int64       `json:"count_after"`
	Delta     int64       `json:"delta"`
	BeforeOK  bool        `json:"before_ok"`
	AfterOK   bool        `json:"after_ok"`
	Release   string      `json:"release"`
	Policy    string      `json:"policy"`
	RequestID string      `json:"request_id"`
	Batch     BatchCounts `json:"batch"`

	// Runs and TotalDelta are running totals for Target since start.
	Runs       int   `json:"runs"`
	TotalDelta int64 `json:"total_delta"`

	// Outcomes holds one entry per dispatched credential: an HTTP status,
	// or 999 (no token) or 998 (transport failure).
	Outcomes []int `json:"-"`

	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"-"`
}

// PoolSize reports the credential pool sizes of one target.
type PoolSize struct {
	Target string `json:"target"`
	Action int    `json:"action"`
	Status int    `json:"status"`
}

// outcomeCodes flattens dispatch outcomes to their status codes.
func outcomeCodes(outcomes []dispatch.Outcome) []int {
	codes := make([]int, len(outcomes))
	for i, o := range outcomes {
		codes[i] = int(o)
	}
	return codes
}

// summaryToRecord converts a public summary to a store record.
func summaryToRecord(s Summary) store.Record {
	return store.Record{
		Subject:   s.Subject,
		Target:    s.Target,
		Before:    s.Before,
		After:     s.After,
		Delta:     s.Delta,
		BeforeOK:  s.BeforeOK,
		AfterOK:   s.AfterOK,
		Release:   s.Release,
		Policy:    s.Policy,
		RequestID: s.RequestID,
		Batch: store.BatchCounts{
			Size:             s.Batch.Size,
			Succeeded:        s.Batch.Succeeded,
			MissingToken:     s.Batch.MissingToken,
			TransportFailure: s.Batch.TransportFailure,
			Rejected:         s.Batch.Rejected,
		},
		CompletedAt: s.CompletedAt,
		DurationMs:  s.Duration.Milliseconds(),
		Runs:        s.Runs,
		TotalDelta:  s.TotalDelta,
	}
}

func toServerPoolSizes(sizes []PoolSize) []server.PoolSize {
	out := make([]server.PoolSize, len(sizes))
	for i, ps := range sizes {
		out[i] = server.PoolSize{Target: ps.Target, Action: ps.Action, Status: ps.Status}
	}
	return out
}

func recordToSummary(r store.Record) Summary {
	return Summary{
		Subject:   r.Subject,
		Target:    r.Target,
		Before:    r.Before,
		After:     r.After,
		Delta:     r.Delta,
		BeforeOK:  r.BeforeOK,
		AfterOK:   r.AfterOK,
		Release:   r.Release,
		Policy:    r.Policy,
		RequestID: r.RequestID,
		Batch: BatchCounts{
			Size:             r.Batch.Size,
			Succeeded:        r.Batch.Succeeded,
			MissingToken:     r.Batch.MissingToken,
			TransportFailure: r.Batch.TransportFailure,
			Rejected:         r.Batch.Rejected,
		},
		Runs:        r.Runs,
		TotalDelta:  r.TotalDelta,
		CompletedAt: r.CompletedAt,
		Duration:    time.Duration(r.DurationMs) * time.Millisecond,
	}
}
