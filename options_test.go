package tokenfan

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestOptions_Validation(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"port zero", WithPort(0)},
		{"port too high", WithPort(70000)},
		{"empty release", WithRelease("")},
		{"batch size zero", WithBatchSize(0)},
		{"negative timeout", WithRequestTimeout(-time.Second)},
		{"nil logger", WithLogger(nil)},
		{"empty pool dir", WithPoolDir("")},
		{"bad key hex", WithEnvelopeKeys("zz", testIV)},
		{"short key", WithEnvelopeKeys("0011", testIV)},
		{"short iv", WithEnvelopeKeys(testKey, "0011")},
		{"nil builder", WithEnvelopeBuilder(nil)},
		{"odd headers", WithHeaders("X-A")},
		{"nil extractor", WithCounterExtractor(nil)},
		{"negative rate", WithRateLimit(-1, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &shimConfig{headers: make(map[string]string)}
			if err := tt.opt(cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestOptions_Apply(t *testing.T) {
	cfg := &shimConfig{headers: make(map[string]string)}
	opts := []Option{
		WithPort(9000),
		WithRelease("OB53"),
		WithBatchSize(50),
		WithRequestTimeout(3 * time.Second),
		WithPoolDir("/var/pools"),
		WithPoolWatch(),
		WithHeaders("User-Agent", "tf/1"),
		WithRateLimit(2, 4),
		WithSummaryCallback(nil),
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			t.Fatalf("option error = %v", err)
		}
	}

	if cfg.port != 9000 || cfg.release != "OB53" || cfg.batchSize != 50 {
		t.Errorf("port/release/batch = %d/%q/%d", cfg.port, cfg.release, cfg.batchSize)
	}
	if cfg.requestTimeout != 3*time.Second {
		t.Errorf("requestTimeout = %v", cfg.requestTimeout)
	}
	if cfg.poolDir != "/var/pools" || !cfg.watchPools {
		t.Errorf("poolDir/watchPools = %q/%v", cfg.poolDir, cfg.watchPools)
	}
	if cfg.headers["User-Agent"] != "tf/1" {
		t.Errorf("headers = %v", cfg.headers)
	}
	if cfg.ratePerSecond != 2 || cfg.rateBurst != 4 {
		t.Errorf("rate = %v/%d", cfg.ratePerSecond, cfg.rateBurst)
	}
	if len(cfg.callbacks) != 0 {
		t.Error("nil callback should be ignored")
	}
}

// stubBuilder returns fixed bodies, or an error for every envelope.
type stubBuilder struct {
	err error
}

func (b stubBuilder) ActionEnvelope(subjectID, target string) ([]byte, error) {
	return []byte("action:" + subjectID + ":" + target), b.err
}

func (b stubBuilder) StatusEnvelope(subjectID string) ([]byte, error) {
	return []byte("status:" + subjectID), b.err
}

func TestWithEnvelopeBuilder_ErrorStopsBeforeDispatch(t *testing.T) {
	remote := newFakeRemote(t)
	shim := newTestShim(t, remote, makeTokens("tok", 2),
		WithEnvelopeBuilder(stubBuilder{err: errors.New("boom")}),
	)

	if _, err := shim.Like(context.Background(), "1", "IND", PolicyRotating); err == nil {
		t.Fatal("expected envelope error")
	}
	if remote.actionCalls.Load() != 0 || remote.statusCalls.Load() != 0 {
		t.Error("no remote calls expected when envelopes fail")
	}
}

func TestWithCounterExtractor(t *testing.T) {
	remote := newFakeRemote(t)
	shim := newTestShim(t, remote, makeTokens("tok", 2),
		WithCounterExtractor(MustRegexCounterExtractor(`"Likes":(\d+)`)),
		WithRelease("OB53"),
	)

	sum, err := shim.Like(context.Background(), "1", "IND", PolicyRotating)
	if err != nil {
		t.Fatalf("Like() error = %v", err)
	}
	if sum.Delta != 2 || sum.Release != "OB53" {
		t.Errorf("delta %d release %q, want 2 OB53", sum.Delta, sum.Release)
	}
}
