package store

import (
	"time"

	"github.com/jpalmerr/tokenfan/internal/reconcile"
)

// BatchCounts summarises the outcomes of one dispatched batch.
type BatchCounts struct {
	Size             int `json:"size"`
	Succeeded        int `json:"succeeded"`
	MissingToken     int `json:"missing_token"`
	TransportFailure int `json:"transport_failure"`
	Rejected         int `json:"rejected"`
}

// Record is the storage and wire representation of one reconciliation.
// It is what the HTTP API returns and what SSE subscribers receive.
//
// Runs and TotalDelta are running totals for the target, stamped by the
// store on Update; callers leave them zero.
type Record struct {
	Subject     string      `json:"subject"`
	Target      string      `json:"target"`
	Before      int64       `json:"count_before"`
	After       int64       `json:"count_after"`
	Delta       int64       `json:"delta"`
	BeforeOK    bool        `json:"before_ok"`
	AfterOK     bool        `json:"after_ok"`
	Release     string      `json:"release"`
	Policy      string      `json:"policy"`
	RequestID   string      `json:"request_id"`
	Batch       BatchCounts `json:"batch"`
	CompletedAt time.Time   `json:"completed_at"`
	DurationMs  int64       `json:"duration_ms"`

	Runs       int   `json:"runs"`
	TotalDelta int64 `json:"total_delta"`
}

// NewRecord flattens a reconciliation result into a Record.
func NewRecord(res reconcile.Result, release, requestID string) Record {
	return Record{
		Subject:   res.SubjectID,
		Target:    res.Target,
		Before:    res.Before,
		After:     res.After,
		Delta:     res.Delta,
		BeforeOK:  res.BeforeOK,
		AfterOK:   res.AfterOK,
		Release:   release,
		Policy:    res.Policy.String(),
		RequestID: requestID,
		Batch: BatchCounts{
			Size:             res.Tally.Total,
			Succeeded:        res.Tally.Succeeded,
			MissingToken:     res.Tally.MissingToken,
			TransportFailure: res.Tally.TransportFailure,
			Rejected:         res.Tally.Rejected,
		},
		CompletedAt: res.StartedAt.Add(res.Duration),
		DurationMs:  res.Duration.Milliseconds(),
	}
}
