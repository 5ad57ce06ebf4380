// Package route maps target identifiers to server families.
//
// A family is a group of targets that share the same remote URLs and
// credential pool files. The mapping is an explicit table built once at
// startup; one family may be marked as the fallback for targets that are
// not listed anywhere.
package route

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jpalmerr/tokenfan/internal/pool"
)

// Family describes one server family.
type Family struct {
	Name       string
	Targets    []string
	Fallback   bool
	ActionURL  string
	StatusURL  string
	ActionPool string
	StatusPool string
	Header     http.Header
}

// Table resolves targets to families. It is immutable after [NewTable] and
// safe for concurrent use.
type Table struct {
	families []Family
	byTarget map[string]int
	fallback int
	targets  []string
}

var _ pool.Resolver = (*Table)(nil)

// Normalize canonicalises a target identifier.
func Normalize(target string) string {
	return strings.ToUpper(strings.TrimSpace(target))
}

// NewTable validates families and builds the lookup table.
//
// Family names must be unique, every target may appear in only one family,
// and at most one family may be the fallback.
func NewTable(families []Family) (*Table, error) {
	if len(families) == 0 {
		return nil, errors.New("at least one family is required")
	}

	t := &Table{
		families: make([]Family, len(families)),
		byTarget: make(map[string]int),
		fallback: -1,
	}

	names := make(map[string]struct{}, len(families))
	for i, f := range families {
		if strings.TrimSpace(f.Name) == "" {
			return nil, fmt.Errorf("families[%d]: name is required", i)
		}
		if _, dup := names[f.Name]; dup {
			return nil, fmt.Errorf("duplicate family name %q", f.Name)
		}
		names[f.Name] = struct{}{}

		if f.ActionURL == "" || f.StatusURL == "" {
			return nil, fmt.Errorf("family %q: action and status URLs are required", f.Name)
		}
		if len(f.Targets) == 0 && !f.Fallback {
			return nil, fmt.Errorf("family %q: needs at least one target or must be the fallback", f.Name)
		}

		if f.Fallback {
			if t.fallback >= 0 {
				return nil, fmt.Errorf("families %q and %q are both marked fallback", t.families[t.fallback].Name, f.Name)
			}
			t.fallback = i
		}

		f.Targets = append([]string(nil), f.Targets...)
		for j, target := range f.Targets {
			key := Normalize(target)
			if key == "" {
				return nil, fmt.Errorf("family %q: targets[%d] is empty", f.Name, j)
			}
			if prev, dup := t.byTarget[key]; dup {
				return nil, fmt.Errorf("target %q listed in families %q and %q", key, t.families[prev].Name, f.Name)
			}
			f.Targets[j] = key
			t.byTarget[key] = i
			t.targets = append(t.targets, key)
		}
		f.Header = f.Header.Clone()
		t.families[i] = f
	}

	return t, nil
}

// Resolve returns the family serving target. Unknown targets resolve to the
// fallback family if one exists.
func (t *Table) Resolve(target string) (Family, bool) {
	if i, ok := t.byTarget[Normalize(target)]; ok {
		return t.families[i], true
	}
	if t.fallback >= 0 {
		return t.families[t.fallback], true
	}
	return Family{}, false
}

// Targets returns every explicitly listed target in declaration order.
func (t *Table) Targets() []string {
	return append([]string(nil), t.targets...)
}

// PoolFile implements [pool.Resolver].
func (t *Table) PoolFile(target string, purpose pool.Purpose) (string, bool) {
	f, ok := t.Resolve(target)
	if !ok {
		return "", false
	}
	switch purpose {
	case pool.PurposeAction:
		return f.ActionPool, f.ActionPool != ""
	case pool.PurposeStatus:
		return f.StatusPool, f.StatusPool != ""
	default:
		return "", false
	}
}
