package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jpalmerr/tokenfan/internal/pool"
)

// ErrNoStatusCredential is returned by [CounterReader.Read] when the status
// pool holds no usable credential.
var ErrNoStatusCredential = errors.New("no usable status credential")

// CounterExtractor decodes the counter value from a status response body.
type CounterExtractor func(body []byte) (int64, error)

// CounterReader performs the status query that brackets a batch.
type CounterReader struct {
	client    *Client
	timeout   time.Duration
	extractor CounterExtractor
	logger    *slog.Logger
}

// NewCounterReader creates a [CounterReader]. extractor must not be nil.
func NewCounterReader(client *Client, timeout time.Duration, extractor CounterExtractor, logger *slog.Logger) *CounterReader {
	if client == nil {
		client = NewClient()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CounterReader{client: client, timeout: timeout, extractor: extractor, logger: logger}
}

// Read sends call with the first usable credential in creds and decodes the
// counter from the reply. Any failure, including a non-2xx status, is
// returned as an error; callers decide the fallback value.
func (r *CounterReader) Read(ctx context.Context, call Call, creds []pool.Credential) (int64, error) {
	cred, ok := firstUsable(creds)
	if !ok {
		return 0, ErrNoStatusCredential
	}

	resp := r.client.Post(ctx, call.URL, authorize(call.Header, cred), call.Body, r.timeout)
	if resp.Error != nil {
		return 0, resp.Error
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("status query returned HTTP %d", resp.StatusCode)
	}

	value, err := r.extract(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("decode counter: %w", err)
	}
	return value, nil
}

// extract runs the extractor with panic recovery.
func (r *CounterReader) extract(body []byte) (value int64, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("counter extractor panic", "panic", fmt.Sprintf("%v", p))
			value, err = 0, fmt.Errorf("extractor panic: %v", p)
		}
	}()
	return r.extractor(body)
}

func firstUsable(creds []pool.Credential) (pool.Credential, bool) {
	for _, c := range creds {
		if c.Usable() {
			return c, true
		}
	}
	return pool.Credential{}, false
}
