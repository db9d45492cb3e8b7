package types

import (
	"fmt"
	"time"
)

// HTTPConfig holds shared HTTP settings used by the provider adapters.
type HTTPConfig struct {
	// Timeout bounds a single HTTP round trip. The per-provider timeout
	// still applies on top of it.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent to every provider.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// ProviderProfile describes how one external source is queried, trusted
// and cached. One profile exists per adapter.
type ProviderProfile struct {
	// Name is the provider identifier. When profiles are loaded from a map
	// the map key fills it.
	Name string `json:"name" yaml:"name"`

	// Enabled controls whether the registry builds this adapter.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Weight is the authority weight in (0,1], applied once during ranking.
	Weight float64 `json:"weight" yaml:"weight"`

	// Timeout is the default per-call timeout for this provider.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// CacheTTL is how long results stay fresh in the cache.
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl"`

	// IsLegalSource marks legal/official registries for tie-breaking.
	IsLegalSource bool `json:"is_legal_source" yaml:"is_legal_source"`

	// BaseURL overrides the adapter's built-in endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Language is the default language edition (e.g. "nl" for Wikipedia).
	Language string `json:"language,omitempty" yaml:"language,omitempty"`

	// RatePerSecond limits outbound calls. Zero means unlimited.
	RatePerSecond float64 `json:"rate_per_second,omitempty" yaml:"rate_per_second,omitempty"`

	// APIKey authenticates keyed providers. Usually supplied through
	// the secrets directory instead.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
}

// Validate checks the profile invariants: weight in (0,1], positive
// timeout and TTL.
func (p ProviderProfile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("provider profile has no name")
	}
	if p.Weight <= 0 || p.Weight > 1 {
		return fmt.Errorf("provider %s: weight %v outside (0,1]", p.Name, p.Weight)
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("provider %s: timeout must be positive", p.Name)
	}
	if p.CacheTTL <= 0 {
		return fmt.Errorf("provider %s: cache_ttl must be positive", p.Name)
	}
	if p.RatePerSecond < 0 {
		return fmt.Errorf("provider %s: rate_per_second must not be negative", p.Name)
	}
	return nil
}

// SanitizeConfig controls how untrusted provider text is cleaned.
type SanitizeConfig struct {
	// MaxSnippetChars hard-truncates snippets (in runes).
	MaxSnippetChars int `json:"max_snippet_chars" yaml:"max_snippet_chars"`

	// OfficialDomains lists host suffixes whose web results are flagged
	// authoritative.
	OfficialDomains []string `json:"official_domains" yaml:"official_domains"`
}

// BoostConfig holds the content boost parameters.
type BoostConfig struct {
	// QualityGate is the raw confidence below which the authoritative
	// bonus is halved.
	QualityGate float64 `json:"quality_gate" yaml:"quality_gate"`

	KeywordBonus       float64 `json:"keyword_bonus" yaml:"keyword_bonus"`
	KeywordBonusCap    float64 `json:"keyword_bonus_cap" yaml:"keyword_bonus_cap"`
	CitationBonus      float64 `json:"citation_bonus" yaml:"citation_bonus"`
	AuthoritativeBonus float64 `json:"authoritative_bonus" yaml:"authoritative_bonus"`

	// MaxFactor caps the total boost factor.
	MaxFactor float64 `json:"max_factor" yaml:"max_factor"`

	// Keywords are the legal-domain keywords matched in title and snippet.
	Keywords []string `json:"keywords" yaml:"keywords"`

	// CitationPattern is a regular expression for article references.
	CitationPattern string `json:"citation_pattern" yaml:"citation_pattern"`
}

// RankConfig holds ranking and deduplication parameters.
type RankConfig struct {
	// SimilarityThreshold is the snippet token overlap at or above which
	// two results are duplicates.
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold"`

	// ScoreEpsilon is the largest score difference still treated as a tie.
	ScoreEpsilon float64 `json:"score_epsilon" yaml:"score_epsilon"`

	// PreferLegalOnTie breaks score ties in favor of legal-source providers.
	PreferLegalOnTie bool `json:"prefer_legal_on_tie" yaml:"prefer_legal_on_tie"`
}

// SelectorConfig holds the prompt source selection defaults.
type SelectorConfig struct {
	TokenBudget int `json:"token_budget" yaml:"token_budget"`
	TopK        int `json:"top_k" yaml:"top_k"`

	// CharsPerToken converts snippet length into an estimated token cost.
	CharsPerToken int `json:"chars_per_token" yaml:"chars_per_token"`

	// CitationOverhead is the fixed token cost of a citation header.
	CitationOverhead int `json:"citation_overhead" yaml:"citation_overhead"`
}

// CacheBackend selects the cache store implementation.
type CacheBackend string

const (
	CacheMemory CacheBackend = "memory"
	CacheSQLite CacheBackend = "sqlite"
	CacheRedis  CacheBackend = "redis"
)

// CacheConfig holds cache settings. Per-provider TTLs live on the
// provider profiles.
type CacheConfig struct {
	Backend CacheBackend `json:"backend" yaml:"backend"`

	// Grace is how long an expired entry may still be served while a
	// background refresh runs.
	Grace time.Duration `json:"grace" yaml:"grace"`

	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `json:"sqlite_path" yaml:"sqlite_path"`

	// RedisURL is the connection URL for the redis backend.
	RedisURL string `json:"redis_url" yaml:"redis_url"`

	// KeyPrefix namespaces redis keys.
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// Config groups all settings of the lookup service.
type Config struct {
	LogLevel  string                     `json:"log_level" yaml:"log_level"`
	HTTP      HTTPConfig                 `json:"http" yaml:"http"`
	Providers map[string]ProviderProfile `json:"providers" yaml:"providers"`
	Sanitize  SanitizeConfig             `json:"sanitize" yaml:"sanitize"`
	Boost     BoostConfig                `json:"boost" yaml:"boost"`
	Rank      RankConfig                 `json:"rank" yaml:"rank"`
	Selector  SelectorConfig             `json:"selector" yaml:"selector"`
	Cache     CacheConfig                `json:"cache" yaml:"cache"`
	Server    ServerConfig               `json:"server" yaml:"server"`
}

// DefaultConfig returns the built-in configuration. Encyclopedic and
// lexical sources refresh hourly; legal registries daily.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		HTTP: HTTPConfig{
			Timeout:   10 * time.Second,
			UserAgent: "termsource/0.1",
		},
		Providers: map[string]ProviderProfile{
			"wikipedia": {
				Name: "wikipedia", Enabled: true, Weight: 0.85,
				Timeout: 5 * time.Second, CacheTTL: time.Hour, Language: "nl",
			},
			"wiktionary": {
				Name: "wiktionary", Enabled: true, Weight: 0.9,
				Timeout: 5 * time.Second, CacheTTL: time.Hour, Language: "nl",
			},
			"overheid": {
				Name: "overheid", Enabled: true, Weight: 1.0, IsLegalSource: true,
				Timeout: 8 * time.Second, CacheTTL: 24 * time.Hour,
			},
			"rechtspraak": {
				Name: "rechtspraak", Enabled: true, Weight: 0.95, IsLegalSource: true,
				Timeout: 8 * time.Second, CacheTTL: 24 * time.Hour,
			},
			"brave": {
				Name: "brave", Enabled: true, Weight: 0.7,
				Timeout: 5 * time.Second, CacheTTL: time.Hour, RatePerSecond: 1,
			},
		},
		Sanitize: SanitizeConfig{
			MaxSnippetChars: 500,
			OfficialDomains: []string{"overheid.nl", "rijksoverheid.nl", "rechtspraak.nl"},
		},
		Boost: BoostConfig{
			QualityGate:        0.65,
			KeywordBonus:       0.1,
			KeywordBonusCap:    0.3,
			CitationBonus:      0.15,
			AuthoritativeBonus: 0.2,
			MaxFactor:          1.3,
			Keywords: []string{
				"wet", "wetboek", "artikel", "besluit", "rechter", "uitspraak",
				"beroep", "bezwaar", "vonnis", "beschikking", "rechtsmiddel", "strafrecht",
			},
			CitationPattern: `(?i)\b(?:art\.|artikel)\s*\d+[a-z]?(?::\d+)?`,
		},
		Rank: RankConfig{
			SimilarityThreshold: 0.9,
			ScoreEpsilon:        1e-9,
			PreferLegalOnTie:    true,
		},
		Selector: SelectorConfig{
			TokenBudget:      1000,
			TopK:             3,
			CharsPerToken:    4,
			CitationOverhead: 8,
		},
		Cache: CacheConfig{
			Backend:    CacheMemory,
			Grace:      300 * time.Second,
			SQLitePath: "termsource-cache.db",
			KeyPrefix:  "termsource",
		},
		Server: ServerConfig{Addr: ":8080"},
	}
}
