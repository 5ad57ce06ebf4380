package batch

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/jpalmerr/tokenfan/internal/pool"
)

// DefaultSize is the default upper bound on batch length.
const DefaultSize = 189

// Policy chooses how a batch is drawn from a pool.
type Policy int

const (
	// Rotating takes consecutive credentials starting at the target's cursor.
	Rotating Policy = iota

	// Random takes a uniform sample without replacement.
	Random
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case Rotating:
		return "rotating"
	case Random:
		return "random"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy parses a policy name. The empty string means [Rotating].
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rotating":
		return Rotating, nil
	case "random":
		return Random, nil
	default:
		return Rotating, fmt.Errorf("unknown batch policy %q", s)
	}
}

// PolicyFromFlag maps a "random" boolean flag to a policy.
func PolicyFromFlag(random bool) Policy {
	if random {
		return Random
	}
	return Rotating
}

// Selector draws batches from credential pools.
//
// Selector is safe for concurrent use. Calls for different targets never
// contend; calls for the same target serialise only on the cursor update.
type Selector struct {
	cursors *Cursors
	size    int

	randMu sync.Mutex
	rng    *rand.Rand
}

// SelectorOption configures a [Selector].
type SelectorOption func(*Selector)

// WithRand makes the [Random] policy draw from r instead of the global
// source. Use it for reproducible tests.
func WithRand(r *rand.Rand) SelectorOption {
	return func(s *Selector) {
		s.rng = r
	}
}

// NewSelector creates a [Selector] that rotates through cursors and returns
// batches of at most size credentials. A size below 1 falls back to
// [DefaultSize]. If cursors is nil a private table is created.
func NewSelector(cursors *Cursors, size int, opts ...SelectorOption) *Selector {
	if cursors == nil {
		cursors = NewCursors()
	}
	if size < 1 {
		size = DefaultSize
	}
	s := &Selector{cursors: cursors, size: size}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Size returns the maximum batch length.
func (s *Selector) Size() int {
	return s.size
}

// Select returns a batch of min(len(creds), Size()) credentials.
//
// A pool no larger than the batch size is returned whole under either
// policy. The returned slice never shares a backing array with creds, and
// creds itself is never reordered.
func (s *Selector) Select(target string, creds []pool.Credential, policy Policy) []pool.Credential {
	if len(creds) == 0 {
		return []pool.Credential{}
	}
	if len(creds) <= s.size {
		return pool.Clone(creds)
	}

	if policy == Random {
		return s.sample(creds)
	}
	return s.rotate(target, creds)
}

func (s *Selector) rotate(target string, creds []pool.Credential) []pool.Credential {
	n := len(creds)
	start := s.cursors.Advance(target, n, s.size)

	batch := make([]pool.Credential, 0, s.size)
	end := start + s.size
	if end > n {
		batch = append(batch, creds[start:]...)
		batch = append(batch, creds[:end-n]...)
	} else {
		batch = append(batch, creds[start:end]...)
	}
	return batch
}

// sample runs a partial Fisher-Yates shuffle over an index slice.
func (s *Selector) sample(creds []pool.Credential) []pool.Credential {
	n := len(creds)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	batch := make([]pool.Credential, s.size)
	for i := 0; i < s.size; i++ {
		j := i + s.intN(n-i)
		idx[i], idx[j] = idx[j], idx[i]
		batch[i] = creds[idx[i]]
	}
	return batch
}

func (s *Selector) intN(n int) int {
	if s.rng == nil {
		return rand.IntN(n)
	}
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return s.rng.IntN(n)
}
