package config

import (
	"fmt"
	"sort"

	"github.com/jpalmerr/tokenfan"
)

// BuildOptions converts parsed configuration into SDK options for
// [tokenfan.New].
func BuildOptions(cfg *Config) ([]tokenfan.Option, error) {
	families, err := BuildFamilies(cfg)
	if err != nil {
		return nil, err
	}

	counter, err := buildCounter(cfg.Counter)
	if err != nil {
		return nil, err
	}

	opts := []tokenfan.Option{
		tokenfan.WithFamilies(families...),
		tokenfan.WithPort(cfg.Port),
		tokenfan.WithRelease(cfg.Release),
		tokenfan.WithBatchSize(cfg.BatchSize),
		tokenfan.WithRequestTimeout(cfg.RequestTimeout.Duration()),
		tokenfan.WithPoolDir(cfg.PoolDir),
		tokenfan.WithEnvelopeKeys(cfg.Envelope.Key, cfg.Envelope.IV),
		tokenfan.WithCounterExtractor(counter),
	}

	if len(cfg.Headers) > 0 {
		opts = append(opts, tokenfan.WithHeaders(mapToKeyValuePairs(cfg.Headers)...))
	}
	if cfg.WatchPools {
		opts = append(opts, tokenfan.WithPoolWatch())
	}
	if cfg.RateLimit.PerSecond > 0 {
		opts = append(opts, tokenfan.WithRateLimit(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst))
	}

	return opts, nil
}

// BuildFamilies converts family configuration into SDK families.
func BuildFamilies(cfg *Config) ([]tokenfan.Family, error) {
	families := make([]tokenfan.Family, 0, len(cfg.Families))
	for i, fc := range cfg.Families {
		f, err := buildFamily(fc)
		if err != nil {
			return nil, fmt.Errorf("families[%d] (%s): %w", i, fc.Name, err)
		}
		families = append(families, f)
	}
	return families, nil
}

// buildFamily converts a single FamilyConfig to an SDK Family.
func buildFamily(fc FamilyConfig) (tokenfan.Family, error) {
	var opts []tokenfan.FamilyOption

	if len(fc.Targets) > 0 {
		opts = append(opts, tokenfan.WithTargets(fc.Targets...))
	}
	if fc.Fallback {
		opts = append(opts, tokenfan.AsFallback())
	}
	if fc.ActionPool != "" {
		opts = append(opts, tokenfan.WithPools(fc.ActionPool, fc.StatusPool))
	}
	if len(fc.Headers) > 0 {
		opts = append(opts, tokenfan.WithFamilyHeaders(mapToKeyValuePairs(fc.Headers)...))
	}

	return tokenfan.NewFamily(fc.Name, fc.ActionURL, fc.StatusURL, opts...)
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	// sort keys for deterministic ordering
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}

// buildCounter converts CounterConfig to a CounterExtractor.
func buildCounter(cc CounterConfig) (tokenfan.CounterExtractor, error) {
	switch cc.Type {
	case "", "json":
		path := cc.Path
		if path == "" {
			path = tokenfan.DefaultCounterPath
		}
		return tokenfan.JSONCounterExtractor(path), nil
	case "regex":
		return tokenfan.RegexCounterExtractor(cc.Pattern)
	default:
		return nil, fmt.Errorf("unknown counter type %q", cc.Type)
	}
}
