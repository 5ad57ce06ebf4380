package tokenfan

import (
	"errors"
	"net/url"
	"strings"
)

// Family is a group of targets served by the same remote URLs and credential
// pool files.
//
// Family is immutable after creation via [NewFamily]. Getters return copies
// of mutable data.
type Family struct {
	name       string
	actionURL  string
	statusURL  string
	targets    []string
	fallback   bool
	actionPool string
	statusPool string
	headers    map[string]string
}

// Name returns the family name.
func (f Family) Name() string {
	return f.name
}

// ActionURL returns the URL the batch fan-out is sent to.
func (f Family) ActionURL() string {
	return f.actionURL
}

// StatusURL returns the URL the counter is read from.
func (f Family) StatusURL() string {
	return f.statusURL
}

// Targets returns a copy of the member targets, upper-cased.
func (f Family) Targets() []string {
	return append([]string(nil), f.targets...)
}

// Fallback reports whether the family serves targets not listed anywhere.
func (f Family) Fallback() bool {
	return f.fallback
}

// ActionPool returns the pool file holding the action credentials.
func (f Family) ActionPool() string {
	return f.actionPool
}

// StatusPool returns the pool file holding the status (visit) credentials.
func (f Family) StatusPool() string {
	return f.statusPool
}

// Headers returns a copy of the extra request headers for this family.
func (f Family) Headers() map[string]string {
	return copyMap(f.headers)
}

// familyConfig holds mutable state during family construction.
type familyConfig struct {
	targets    []string
	fallback   bool
	actionPool string
	statusPool string
	headers    map[string]string
}

// FamilyOption configures a [Family] during construction.
type FamilyOption func(*familyConfig) error

// NewFamily creates a [Family] with the given name and remote URLs.
//
// Both URLs must be absolute with an http or https scheme. A family needs at
// least one target via [WithTargets] unless it is marked [AsFallback].
//
// Example:
//
//	fam, err := tokenfan.NewFamily("asia", "https://asia.example.com/like", "https://asia.example.com/info",
//	    tokenfan.WithTargets("IND", "SG"),
//	    tokenfan.WithPools("asia_action.json", "asia_visit.json"),
//	)
func NewFamily(name, actionURL, statusURL string, opts ...FamilyOption) (Family, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Family{}, errors.New("family name cannot be empty")
	}
	if err := checkURL(actionURL); err != nil {
		return Family{}, errors.New("action URL: " + err.Error())
	}
	if err := checkURL(statusURL); err != nil {
		return Family{}, errors.New("status URL: " + err.Error())
	}

	cfg := &familyConfig{headers: make(map[string]string)}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Family{}, err
		}
	}

	if len(cfg.targets) == 0 && !cfg.fallback {
		return Family{}, errors.New("family needs at least one target or must be the fallback")
	}
	if cfg.actionPool == "" {
		base := "token_" + strings.ToLower(name)
		cfg.actionPool = base + ".json"
		cfg.statusPool = base + "_visit.json"
	}

	return Family{
		name:       name,
		actionURL:  actionURL,
		statusURL:  statusURL,
		targets:    cfg.targets,
		fallback:   cfg.fallback,
		actionPool: cfg.actionPool,
		statusPool: cfg.statusPool,
		headers:    cfg.headers,
	}, nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.New("invalid URL: " + err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("URL must have a scheme (http:// or https://)")
	}
	return nil
}

// WithTargets adds member targets. Targets are case-insensitive and stored
// upper-cased.
//
// Returns an error if a target is blank.
func WithTargets(targets ...string) FamilyOption {
	return func(cfg *familyConfig) error {
		for _, t := range targets {
			t = strings.ToUpper(strings.TrimSpace(t))
			if t == "" {
				return errors.New("target cannot be empty")
			}
			cfg.targets = append(cfg.targets, t)
		}
		return nil
	}
}

// AsFallback marks the family as the destination for unlisted targets.
// At most one family per [Shim] may be the fallback.
func AsFallback() FamilyOption {
	return func(cfg *familyConfig) error {
		cfg.fallback = true
		return nil
	}
}

// WithPools sets the action and status pool files. Relative paths are
// resolved against the pool directory (see [WithPoolDir]). Without it a
// family named "ind" reads token_ind.json and token_ind_visit.json.
//
// Returns an error if either path is empty.
func WithPools(actionPool, statusPool string) FamilyOption {
	return func(cfg *familyConfig) error {
		if actionPool == "" || statusPool == "" {
			return errors.New("both action and status pool files are required")
		}
		cfg.actionPool = actionPool
		cfg.statusPool = statusPool
		return nil
	}
}

// WithFamilyHeaders adds request headers sent with every call to this
// family. They override global headers set via [WithHeaders].
//
// Accepts variadic key-value pairs. The number of arguments must be even.
func WithFamilyHeaders(keyValues ...string) FamilyOption {
	return func(cfg *familyConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithFamilyHeaders requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
