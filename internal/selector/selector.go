// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package selector picks the ranked results that fit a prompt's token
// budget and numbers them for citation.
package selector

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/termsource/pkg/types"
)

// Selector holds the cost model and defaults.
type Selector struct {
	cfg types.SelectorConfig
}

// New returns a Selector. Non-positive cost parameters fall back to the
// defaults of types.DefaultConfig.
func New(cfg types.SelectorConfig) *Selector {
	def := types.DefaultConfig().Selector
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = def.TokenBudget
	}
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.CharsPerToken <= 0 {
		cfg.CharsPerToken = def.CharsPerToken
	}
	if cfg.CitationOverhead < 0 {
		cfg.CitationOverhead = def.CitationOverhead
	}
	return &Selector{cfg: cfg}
}

// Cost estimates the prompt tokens a result consumes as a citation.
func (s *Selector) Cost(r types.RankedResult) int {
	chars := utf8.RuneCountInString(r.Title + r.Snippet)
	return (chars+s.cfg.CharsPerToken-1)/s.cfg.CharsPerToken + s.cfg.CitationOverhead
}

// Select walks ranked in order and keeps each result whose cost still
// fits the remaining budget, until topK are kept or the budget is spent.
// A result that does not fit is skipped; a later, cheaper one may still
// be taken. Zero budget or topK means the configured default.
func (s *Selector) Select(ranked []types.RankedResult, tokenBudget, topK int) []types.SelectedSource {
	if tokenBudget <= 0 {
		tokenBudget = s.cfg.TokenBudget
	}
	if topK <= 0 {
		topK = s.cfg.TopK
	}

	remaining := tokenBudget
	var out []types.SelectedSource
	for _, r := range ranked {
		if len(out) == topK || remaining <= 0 {
			break
		}
		cost := s.Cost(r)
		if cost > remaining {
			continue
		}
		remaining -= cost
		out = append(out, types.SelectedSource{
			RankedResult:  r,
			TokenCost:     cost,
			CitationIndex: len(out) + 1,
		})
	}
	return out
}

// Render writes the citation block handed to the prompt composer:
//
//	[1] Title (provider) URL
//	    snippet
func Render(w io.Writer, sources []types.SelectedSource) error {
	for _, s := range sources {
		if _, err := fmt.Fprintf(w, "[%d] %s (%s) %s\n", s.CitationIndex, s.Title, s.Provider, s.URL); err != nil {
			return err
		}
		if s.Snippet == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "    %s\n", s.Snippet); err != nil {
			return err
		}
	}
	return nil
}

// RenderString is Render into a string.
func RenderString(sources []types.SelectedSource) string {
	var b strings.Builder
	_ = Render(&b, sources)
	return b.String()
}
