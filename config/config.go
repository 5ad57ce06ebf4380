// Package config provides YAML configuration parsing for tokenfan.
//
// This package enables running tokenfan as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	port: 5001
//	release: OB52
//	batch_size: 189
//	request_timeout: 10s
//	pool_dir: /var/lib/tokenfan
//	watch_pools: true
//
//	envelope:
//	  key: ${TOKENFAN_KEY}
//	  iv: ${TOKENFAN_IV}
//
//	counter: json:AccountInfo.Likes
//
//	families:
//	  - name: ind
//	    targets: [IND]
//	    action_url: https://ind.example.com/like
//	    status_url: https://ind.example.com/info
//	  - name: bd
//	    fallback: true
//	    action_url: https://bd.example.com/like
//	    status_url: https://bd.example.com/info
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort           = 5001
	defaultRelease        = "OB52"
	defaultBatchSize      = 189
	defaultRequestTimeout = 10 * time.Second
	defaultPoolDir        = "."
	defaultCounterPath    = "AccountInfo.Likes"

	// maxRequestTimeout bounds how long a single reconciliation can hang on
	// one remote call.
	maxRequestTimeout = 2 * time.Minute
)

// Config is the root configuration structure for tokenfan.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Port is the HTTP server port. Defaults to 5001.
	Port int `yaml:"port"`

	// Release is the tag echoed in every summary. Defaults to "OB52".
	Release string `yaml:"release"`

	// BatchSize caps the credentials dispatched per call. Defaults to 189.
	BatchSize int `yaml:"batch_size"`

	// RequestTimeout bounds each outbound call. Defaults to 10s.
	RequestTimeout Duration `yaml:"request_timeout"`

	// PoolDir is the directory relative pool files are resolved against.
	// Defaults to the working directory.
	PoolDir string `yaml:"pool_dir"`

	// WatchPools caches pools and reloads them when files in PoolDir change.
	WatchPools bool `yaml:"watch_pools"`

	// RateLimit throttles /like requests per target.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Envelope holds the request body encryption keys.
	Envelope EnvelopeConfig `yaml:"envelope"`

	// Counter determines how the counter is read from a status response.
	// Defaults to json:AccountInfo.Likes.
	Counter CounterConfig `yaml:"counter"`

	// Headers are sent with every outbound call.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`

	// Families groups targets by remote URLs and pool files.
	Families []FamilyConfig `yaml:"families"`
}

// RateLimitConfig configures per-target request throttling.
// A zero PerSecond disables it.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// EnvelopeConfig holds hex-encoded AES key and IV.
// Both support environment variable substitution.
type EnvelopeConfig struct {
	Key string `yaml:"key"`
	IV  string `yaml:"iv"`
}

// FamilyConfig defines one server family.
type FamilyConfig struct {
	// Name identifies the family. Default pool files derive from it.
	Name string `yaml:"name"`

	// Targets lists member target identifiers (case-insensitive).
	Targets []string `yaml:"targets"`

	// Fallback marks the family serving every unlisted target.
	Fallback bool `yaml:"fallback"`

	// ActionURL receives the batch fan-out.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	ActionURL string `yaml:"action_url"`

	// StatusURL is read for the counter before and after the fan-out.
	StatusURL string `yaml:"status_url"`

	// ActionPool and StatusPool are pool file paths. Both or neither must be
	// set; when unset, token_<name>.json and token_<name>_visit.json are used.
	ActionPool string `yaml:"action_pool"`
	StatusPool string `yaml:"status_pool"`

	// Headers override global headers for this family.
	Headers map[string]string `yaml:"headers"`
}

// CounterConfig specifies how to read the counter from a response.
//
// It supports two formats in YAML:
//
// Shorthand string:
//
//	counter: json:AccountInfo.Likes
//	counter: regex:"likes":\s*(\d+)
//
// Structured object:
//
//	counter:
//	  type: json
//	  path: AccountInfo.Likes
type CounterConfig struct {
	// Type is the extractor type: "json" or "regex".
	Type string

	// Path is the JSON field path (for type: json).
	Path string

	// Pattern is a regular expression with one capture group (for type: regex).
	Pattern string
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML implements yaml.Unmarshaler for CounterConfig.
func (c *CounterConfig) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		return c.parseShorthand(s)

	case yaml.MappingNode:
		// temporary struct to avoid infinite recursion
		var raw struct {
			Type    string `yaml:"type"`
			Path    string `yaml:"path"`
			Pattern string `yaml:"pattern"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		c.Type = raw.Type
		c.Path = raw.Path
		c.Pattern = raw.Pattern
		return nil

	default:
		return fmt.Errorf("counter must be a string or object, got %v", node.Kind)
	}
}

// parseShorthand parses "json:path" or "regex:pattern".
func (c *CounterConfig) parseShorthand(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	idx := strings.Index(s, ":")
	if idx == -1 {
		return fmt.Errorf("unknown counter %q (expected 'json:path' or 'regex:pattern')", s)
	}

	c.Type = s[:idx]
	value := s[idx+1:]
	switch c.Type {
	case "json":
		c.Path = value
	case "regex":
		c.Pattern = value
	default:
		return fmt.Errorf("unknown counter type %q", c.Type)
	}
	return nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in URLs, pool paths, header values,
// the pool directory and the envelope keys. Defaults are applied before
// validation.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.Release == "" {
		c.Release = defaultRelease
	}
	if c.BatchSize == 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = Duration(defaultRequestTimeout)
	}
	if c.PoolDir == "" {
		c.PoolDir = defaultPoolDir
	}
	if c.Counter.Type == "" {
		c.Counter = CounterConfig{Type: "json", Path: defaultCounterPath}
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if d := c.RequestTimeout.Duration(); d <= 0 || d > maxRequestTimeout {
		return fmt.Errorf("request_timeout must be between 0 and %s, got %s", maxRequestTimeout, d)
	}
	if c.RateLimit.PerSecond < 0 {
		return fmt.Errorf("rate_limit.per_second cannot be negative, got %v", c.RateLimit.PerSecond)
	}
	if c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit.burst cannot be negative, got %d", c.RateLimit.Burst)
	}

	var err error
	if c.PoolDir, err = expandEnvVars(c.PoolDir); err != nil {
		return fmt.Errorf("pool_dir: %w", err)
	}
	if c.Envelope.Key, err = expandEnvVars(c.Envelope.Key); err != nil {
		return fmt.Errorf("envelope.key: %w", err)
	}
	if c.Envelope.IV, err = expandEnvVars(c.Envelope.IV); err != nil {
		return fmt.Errorf("envelope.iv: %w", err)
	}
	if c.Envelope.Key == "" || c.Envelope.IV == "" {
		return errors.New("envelope.key and envelope.iv are required")
	}

	if err := expandHeaders(c.Headers, "headers"); err != nil {
		return err
	}
	if err := validateCounter(c.Counter); err != nil {
		return err
	}

	if len(c.Families) == 0 {
		return errors.New("at least one family must be defined")
	}

	names := make(map[string]struct{}, len(c.Families))
	fallback := ""
	for i := range c.Families {
		f := &c.Families[i]

		if f.Name == "" {
			return fmt.Errorf("families[%d]: name is required", i)
		}
		where := fmt.Sprintf("families[%d] (%s)", i, f.Name)

		if _, dup := names[f.Name]; dup {
			return fmt.Errorf("%s: duplicate family name", where)
		}
		names[f.Name] = struct{}{}

		if f.Fallback {
			if fallback != "" {
				return fmt.Errorf("%s: family %q is already the fallback", where, fallback)
			}
			fallback = f.Name
		}
		if len(f.Targets) == 0 && !f.Fallback {
			return fmt.Errorf("%s: at least one target is required unless fallback is set", where)
		}

		if f.ActionURL, err = expandURL(f.ActionURL, where+": action_url"); err != nil {
			return err
		}
		if f.StatusURL, err = expandURL(f.StatusURL, where+": status_url"); err != nil {
			return err
		}

		if (f.ActionPool == "") != (f.StatusPool == "") {
			return fmt.Errorf("%s: action_pool and status_pool must be set together", where)
		}
		if f.ActionPool, err = expandEnvVars(f.ActionPool); err != nil {
			return fmt.Errorf("%s: action_pool: %w", where, err)
		}
		if f.StatusPool, err = expandEnvVars(f.StatusPool); err != nil {
			return fmt.Errorf("%s: status_pool: %w", where, err)
		}

		if err := expandHeaders(f.Headers, where+": headers"); err != nil {
			return err
		}
	}

	return nil
}

// expandURL expands environment variables and checks for an http(s) URL.
func expandURL(raw, field string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("%s is required", field)
	}
	expanded, err := expandEnvVars(raw)
	if err != nil {
		return "", fmt.Errorf("%s: %w", field, err)
	}

	parsedURL, err := url.Parse(expanded)
	if err != nil {
		return "", fmt.Errorf("%s: invalid url: %w", field, err)
	}
	if parsedURL.Scheme == "" {
		return "", fmt.Errorf("%s: url must have a scheme (http:// or https://)", field)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "", fmt.Errorf("%s: url scheme must be http or https, got %q", field, parsedURL.Scheme)
	}
	return expanded, nil
}

func expandHeaders(h map[string]string, field string) error {
	for k, v := range h {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("%s[%s]: %w", field, k, err)
		}
		h[k] = expanded
	}
	return nil
}

// validateCounter validates a counter configuration.
func validateCounter(c CounterConfig) error {
	switch c.Type {
	case "json":
		if c.Path == "" {
			return errors.New("counter: type 'json' requires a path")
		}
	case "regex":
		if c.Pattern == "" {
			return errors.New("counter: type 'regex' requires a pattern")
		}
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return fmt.Errorf("counter: invalid pattern: %w", err)
		}
		if re.NumSubexp() < 1 {
			return errors.New("counter: pattern must contain a capture group")
		}
	default:
		return fmt.Errorf("counter: unknown type %q", c.Type)
	}
	return nil
}
