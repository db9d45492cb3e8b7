// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package boost applies content-derived multipliers to raw provider
// confidence. The factor depends only on the result's text and flags;
// which provider returned the result is never consulted.
package boost

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/pdiddy/termsource/pkg/types"
)

// Breakdown itemizes the bonuses that make up a boost factor.
type Breakdown struct {
	Keyword       float64
	Citation      float64
	Authoritative float64
	// Factor is 1 + the bonuses, capped at the configured maximum.
	Factor float64
}

// Booster computes content boost factors.
type Booster struct {
	cfg      types.BoostConfig
	keywords []string
	citation *regexp.Regexp
}

// New compiles the citation pattern and normalizes the keyword list.
func New(cfg types.BoostConfig) (*Booster, error) {
	var citation *regexp.Regexp
	if cfg.CitationPattern != "" {
		re, err := regexp.Compile(cfg.CitationPattern)
		if err != nil {
			return nil, fmt.Errorf("compiling citation pattern: %w", err)
		}
		citation = re
	}
	return &Booster{
		cfg:      cfg,
		keywords: normalizeKeywords(cfg.Keywords),
		citation: citation,
	}, nil
}

// Boost returns one BoostedResult per input, in input order. contextTags
// count as additional keywords for this call only.
func (b *Booster) Boost(raw []types.RawResult, contextTags []string) []types.BoostedResult {
	extra := normalizeKeywords(contextTags)
	out := make([]types.BoostedResult, 0, len(raw))
	for _, r := range raw {
		bd := b.Explain(r, extra)
		out = append(out, types.BoostedResult{
			RawResult:         r,
			BoostFactor:       bd.Factor,
			BoostedConfidence: r.RawConfidence * bd.Factor,
		})
	}
	return out
}

// Explain computes the bonuses for r. extraKeywords must already be
// normalized (lowercase, trimmed).
func (b *Booster) Explain(r types.RawResult, extraKeywords []string) Breakdown {
	text := r.Title + " " + r.Snippet
	var bd Breakdown

	matched := countKeywords(text, b.keywords, extraKeywords)
	bd.Keyword = math.Min(float64(matched)*b.cfg.KeywordBonus, b.cfg.KeywordBonusCap)

	if b.citation != nil && b.citation.MatchString(text) {
		bd.Citation = b.cfg.CitationBonus
	}

	if r.IsAuthoritative {
		bd.Authoritative = b.cfg.AuthoritativeBonus
		if r.RawConfidence < b.cfg.QualityGate {
			bd.Authoritative /= 2
		}
	}

	bd.Factor = 1.0 + bd.Keyword + bd.Citation + bd.Authoritative
	if b.cfg.MaxFactor > 0 && bd.Factor > b.cfg.MaxFactor {
		bd.Factor = b.cfg.MaxFactor
	}
	return bd
}

// countKeywords counts distinct keywords present in text. Single-word
// keywords must match a whole word; phrases match on word boundaries.
func countKeywords(text string, lists ...[]string) int {
	words := tokenize(text)
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	joined := " " + strings.Join(words, " ") + " "

	seen := make(map[string]bool)
	count := 0
	for _, list := range lists {
		for _, kw := range list {
			if seen[kw] {
				continue
			}
			seen[kw] = true
			var hit bool
			if strings.Contains(kw, " ") {
				hit = strings.Contains(joined, " "+kw+" ")
			} else {
				hit = set[kw]
			}
			if hit {
				count++
			}
		}
	}
	return count
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, kw := range in {
		kw = strings.Join(tokenize(kw), " ")
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
