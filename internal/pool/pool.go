package pool

import (
	"context"
	"strings"
)

// Purpose selects which pool of a target is loaded.
type Purpose string

const (
	// PurposeAction is the pool used to fan out the primary action.
	PurposeAction Purpose = "action"

	// PurposeStatus is the pool used for counter reads.
	PurposeStatus Purpose = "status"
)

// String returns the string representation of the purpose.
func (p Purpose) String() string {
	return string(p)
}

// Credential is a single pre-issued bearer token.
//
// Credentials are immutable once loaded. The dispatch core only borrows them
// for the duration of one call.
type Credential struct {
	Token string `json:"token" toml:"token"`
}

// Usable reports whether the credential carries a non-blank token.
func (c Credential) Usable() bool {
	return strings.TrimSpace(c.Token) != ""
}

// Store loads credential pools.
//
// Implementations must be safe for concurrent use and must return an empty
// slice rather than an error when a pool cannot be loaded.
type Store interface {
	Load(ctx context.Context, target string, purpose Purpose) []Credential
}

// Resolver maps a target and purpose to a pool file path.
// ok is false when the target has no pool for that purpose.
type Resolver interface {
	PoolFile(target string, purpose Purpose) (path string, ok bool)
}

// ResolverFunc adapts a function to the [Resolver] interface.
type ResolverFunc func(target string, purpose Purpose) (string, bool)

// PoolFile calls f(target, purpose).
func (f ResolverFunc) PoolFile(target string, purpose Purpose) (string, bool) {
	return f(target, purpose)
}

// Clone returns a copy of creds that shares no backing array with it.
func Clone(creds []Credential) []Credential {
	if creds == nil {
		return nil
	}
	return append([]Credential(nil), creds...)
}
