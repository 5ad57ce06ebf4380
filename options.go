package tokenfan

import (
	"errors"
	"log/slog"
	"time"

	"github.com/jpalmerr/tokenfan/internal/envelope"
)

// EnvelopeBuilder produces the opaque request bodies for the two request
// kinds. The default builder is configured with [WithEnvelopeKeys].
type EnvelopeBuilder interface {
	ActionEnvelope(subjectID, target string) ([]byte, error)
	StatusEnvelope(subjectID string) ([]byte, error)
}

var _ EnvelopeBuilder = (*envelope.Sealer)(nil)

// shimConfig holds mutable state during Shim construction.
type shimConfig struct {
	families       []Family
	port           int
	release        string
	batchSize      int
	requestTimeout time.Duration
	logger         *slog.Logger
	poolDir        string
	watchPools     bool
	builder        EnvelopeBuilder
	headers        map[string]string
	counter        CounterExtractor
	ratePerSecond  float64
	rateBurst      int
	callbacks      []func(Summary)
}

// Option is a function that configures a [Shim] during construction.
//
// Options return an error if validation fails.
type Option func(*shimConfig) error

// WithFamily adds a single [Family] to the routing table.
//
// At least one family must be configured for [New] to succeed.
func WithFamily(f Family) Option {
	return func(cfg *shimConfig) error {
		cfg.families = append(cfg.families, f)
		return nil
	}
}

// WithFamilies adds multiple [Family] values to the routing table.
func WithFamilies(families ...Family) Option {
	return func(cfg *shimConfig) error {
		cfg.families = append(cfg.families, families...)
		return nil
	}
}

// WithPort sets the HTTP port. Defaults to 5001.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *shimConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithRelease sets the release tag sent as the [ReleaseHeader] on every
// outbound call and echoed in every [Summary]. Global or family headers
// naming ReleaseHeader take precedence. Defaults to "OB52".
func WithRelease(tag string) Option {
	return func(cfg *shimConfig) error {
		if tag == "" {
			return errors.New("release tag cannot be empty")
		}
		cfg.release = tag
		return nil
	}
}

// WithBatchSize sets the maximum number of credentials dispatched per call.
// Defaults to 189.
//
// Returns an error if n is zero or negative.
func WithBatchSize(n int) Option {
	return func(cfg *shimConfig) error {
		if n < 1 {
			return errors.New("batch size must be positive")
		}
		cfg.batchSize = n
		return nil
	}
}

// WithRequestTimeout sets the timeout of each outbound call, both the
// batch fan-out and the counter reads. Defaults to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithRequestTimeout(d time.Duration) Option {
	return func(cfg *shimConfig) error {
		if d <= 0 {
			return errors.New("request timeout must be positive")
		}
		cfg.requestTimeout = d
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default]
// is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *shimConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithPoolDir sets the directory relative pool files are resolved against.
// Defaults to the working directory.
func WithPoolDir(dir string) Option {
	return func(cfg *shimConfig) error {
		if dir == "" {
			return errors.New("pool directory cannot be empty")
		}
		cfg.poolDir = dir
		return nil
	}
}

// WithPoolWatch caches loaded pools and drops the cache whenever a file in
// the pool directory changes. Without it every call reads the pool files.
func WithPoolWatch() Option {
	return func(cfg *shimConfig) error {
		cfg.watchPools = true
		return nil
	}
}

// WithEnvelopeKeys configures the default AES-CBC envelope builder from a
// hex-encoded key (16, 24 or 32 bytes) and IV (16 bytes).
func WithEnvelopeKeys(keyHex, ivHex string) Option {
	return func(cfg *shimConfig) error {
		s, err := envelope.NewSealerHex(keyHex, ivHex)
		if err != nil {
			return err
		}
		cfg.builder = s
		return nil
	}
}

// WithEnvelopeBuilder sets a custom [EnvelopeBuilder].
//
// Returns an error if b is nil.
func WithEnvelopeBuilder(b EnvelopeBuilder) Option {
	return func(cfg *shimConfig) error {
		if b == nil {
			return errors.New("envelope builder cannot be nil")
		}
		cfg.builder = b
		return nil
	}
}

// WithHeaders adds request headers sent with every outbound call.
// Family headers (see [WithFamilyHeaders]) take precedence.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
func WithHeaders(keyValues ...string) Option {
	return func(cfg *shimConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithHeaders requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithCounterExtractor sets how the counter is read from a status response.
// Defaults to [DefaultCounterExtractor].
func WithCounterExtractor(e CounterExtractor) Option {
	return func(cfg *shimConfig) error {
		if e == nil {
			return errors.New("counter extractor cannot be nil")
		}
		cfg.counter = e
		return nil
	}
}

// WithRateLimit limits /like requests per target to perSecond with the
// given burst. Excess requests are answered with 429 before any work is
// done. Disabled by default.
//
// Returns an error if perSecond is negative.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(cfg *shimConfig) error {
		if perSecond < 0 {
			return errors.New("rate limit must not be negative")
		}
		cfg.ratePerSecond = perSecond
		cfg.rateBurst = burst
		return nil
	}
}

// WithSummaryCallback registers a function called after every completed
// reconciliation, once the result is published.
//
// Callbacks run synchronously on the calling goroutine and must not block.
// Panics within callbacks are recovered and logged. Nil callbacks are
// silently ignored.
func WithSummaryCallback(cb func(Summary)) Option {
	return func(cfg *shimConfig) error {
		if cb == nil {
			return nil
		}
		cfg.callbacks = append(cfg.callbacks, cb)
		return nil
	}
}
