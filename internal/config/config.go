// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config loads the typed service configuration through viper.
//
// The built-in defaults (types.DefaultConfig) are registered as viper
// defaults, so a config file or TERMSOURCE_* environment variable only
// needs to name the keys it changes: providers.brave.enabled=false leaves
// every other brave setting at its default.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/termsource/pkg/types"
)

// EnvPrefix is the prefix of environment overrides, e.g. TERMSOURCE_LOG_LEVEL.
const EnvPrefix = "TERMSOURCE"

// SetDefaults registers types.DefaultConfig on v and enables environment
// overrides.
func SetDefaults(v *viper.Viper) error {
	defaults, err := toMap(types.DefaultConfig())
	if err != nil {
		return err
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return nil
}

// Load decodes v into a Config and validates it. SetDefaults must have
// been called on v.
func Load(v *viper.Viper) (types.Config, error) {
	var cfg types.Config
	err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
		dc.Squash = true
	})
	if err != nil {
		return types.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	for name, p := range cfg.Providers {
		if p.Name == "" {
			p.Name = name
			cfg.Providers[name] = p
		}
	}
	if err := Validate(cfg); err != nil {
		return types.Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func Validate(cfg types.Config) error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		errs = append(errs, err)
	}
	check(cfg.HTTP.Timeout > 0, "http.timeout must be positive")

	enabled := 0
	for name, p := range cfg.Providers {
		if p.Name != name {
			errs = append(errs, fmt.Errorf("provider %s: name %q does not match its key", name, p.Name))
		}
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
		}
		if p.Enabled {
			enabled++
		}
	}
	check(enabled > 0, "no provider is enabled")

	check(cfg.Sanitize.MaxSnippetChars > 0, "sanitize.max_snippet_chars must be positive")

	b := cfg.Boost
	check(b.QualityGate >= 0 && b.QualityGate <= 1, "boost.quality_gate %v outside [0,1]", b.QualityGate)
	check(b.KeywordBonus >= 0, "boost.keyword_bonus must not be negative")
	check(b.KeywordBonusCap >= 0, "boost.keyword_bonus_cap must not be negative")
	check(b.CitationBonus >= 0, "boost.citation_bonus must not be negative")
	check(b.AuthoritativeBonus >= 0, "boost.authoritative_bonus must not be negative")
	check(b.MaxFactor >= 1, "boost.max_factor %v below 1", b.MaxFactor)
	if b.CitationPattern != "" {
		if _, err := regexp.Compile(b.CitationPattern); err != nil {
			errs = append(errs, fmt.Errorf("boost.citation_pattern: %w", err))
		}
	}

	r := cfg.Rank
	check(r.SimilarityThreshold > 0 && r.SimilarityThreshold <= 1,
		"rank.similarity_threshold %v outside (0,1]", r.SimilarityThreshold)
	check(r.ScoreEpsilon >= 0, "rank.score_epsilon must not be negative")

	s := cfg.Selector
	check(s.TokenBudget > 0, "selector.token_budget must be positive")
	check(s.TopK > 0, "selector.top_k must be positive")
	check(s.CharsPerToken > 0, "selector.chars_per_token must be positive")
	check(s.CitationOverhead >= 0, "selector.citation_overhead must not be negative")

	c := cfg.Cache
	check(c.Grace >= 0, "cache.grace must not be negative")
	switch c.Backend {
	case types.CacheMemory:
	case types.CacheSQLite:
		check(c.SQLitePath != "", "cache.sqlite_path is required for the sqlite backend")
	case types.CacheRedis:
		check(c.RedisURL != "", "cache.redis_url is required for the redis backend")
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is not one of memory, sqlite, redis", c.Backend))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// ParseLevel maps a log_level setting to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level %q: %w", s, err)
	}
	return level, nil
}

// Marshal renders cfg as YAML. Durations are written as strings ("5s").
func Marshal(v any) ([]byte, error) {
	return yaml.Marshal(v)
}

// toMap converts a config value to the nested map form viper stores.
func toMap(v any) (map[string]any, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding defaults: %w", err)
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding defaults: %w", err)
	}
	return m, nil
}
