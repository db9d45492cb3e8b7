// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the data structures shared by the lookup pipeline:
// requests, the per-stage result types, and configuration.
//
// Each pipeline stage produces a new type wrapping the previous one
// (RawResult → BoostedResult → RankedResult → SelectedSource) instead of
// mutating its input.
package types

import (
	"fmt"
	"strings"
	"time"
)

// LookupRequest describes a single reference lookup for a term. It is
// created once per generation cycle and treated as immutable.
type LookupRequest struct {
	// Term is the term being defined (e.g. "onherroepelijk").
	Term string `json:"term" yaml:"term"`

	// Language is a language hint for providers that serve several
	// languages (e.g. "nl"). Empty means the provider default.
	Language string `json:"language,omitempty" yaml:"language,omitempty"`

	// ContextTags are domain markers (e.g. "strafrecht", "bestuursrecht")
	// that the boost stage treats as additional keywords.
	ContextTags []string `json:"context_tags,omitempty" yaml:"context_tags,omitempty"`

	// MaxResults caps the number of results each provider returns.
	MaxResults int `json:"max_results,omitempty" yaml:"max_results,omitempty"`

	// Timeout overrides every provider's default per-call timeout when > 0.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Providers names the providers to query. Empty means all registered.
	Providers []string `json:"providers,omitempty" yaml:"providers,omitempty"`
}

// Validate reports whether the request can be dispatched.
func (r LookupRequest) Validate() error {
	if strings.TrimSpace(r.Term) == "" {
		return fmt.Errorf("lookup term is empty")
	}
	if r.MaxResults < 0 {
		return fmt.Errorf("max results must not be negative, got %d", r.MaxResults)
	}
	if r.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", r.Timeout)
	}
	return nil
}

// ResultStatus records whether a provider call produced the result.
type ResultStatus string

const (
	StatusOK     ResultStatus = "ok"
	StatusFailed ResultStatus = "failed"
)

// RawResult is a provider's normalized answer. RawConfidence is the
// provider's own relevance signal mapped into [0,1]; it never includes
// the provider's authority weight.
type RawResult struct {
	Term     string `json:"term" yaml:"term"`
	Provider string `json:"provider" yaml:"provider"`
	URL      string `json:"url" yaml:"url"`
	Title    string `json:"title" yaml:"title"`
	Snippet  string `json:"snippet" yaml:"snippet"`

	// Identifier is a record id extracted from the source, such as a
	// BWB id for legislation or an ECLI for case law.
	Identifier string `json:"identifier,omitempty" yaml:"identifier,omitempty"`

	RawConfidence   float64      `json:"raw_confidence" yaml:"raw_confidence"`
	IsAuthoritative bool         `json:"is_authoritative" yaml:"is_authoritative"`
	FetchedAt       time.Time    `json:"fetched_at" yaml:"fetched_at"`
	Status          ResultStatus `json:"status" yaml:"status"`
}

// BoostedResult adds the content-derived boost to a RawResult.
type BoostedResult struct {
	RawResult `yaml:",inline"`

	// BoostFactor is the content multiplier in [1.0, cap].
	BoostFactor float64 `json:"boost_factor" yaml:"boost_factor"`

	// BoostedConfidence is RawConfidence × BoostFactor.
	BoostedConfidence float64 `json:"boosted_confidence" yaml:"boosted_confidence"`
}

// RankedResult adds the provider authority weight to a BoostedResult.
// FinalScore is the only place ProviderWeight enters a score.
type RankedResult struct {
	BoostedResult `yaml:",inline"`

	ProviderWeight float64 `json:"provider_weight" yaml:"provider_weight"`
	FinalScore     float64 `json:"final_score" yaml:"final_score"`
}

// SelectedSource is a ranked result accepted for the generation prompt.
type SelectedSource struct {
	RankedResult `yaml:",inline"`

	// TokenCost is the estimated prompt tokens this source consumes.
	TokenCost int `json:"token_cost" yaml:"token_cost"`

	// CitationIndex is the 1-based index the prompt refers to.
	CitationIndex int `json:"citation_index" yaml:"citation_index"`
}
