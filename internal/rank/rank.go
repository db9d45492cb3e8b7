// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rank turns boosted results into the final ordered list. It is
// the only place a provider's authority weight enters a score.
package rank

import (
	"log/slog"
	"math"
	"net/url"
	"sort"
	"strings"
	"unicode"

	"github.com/pdiddy/termsource/pkg/types"
)

// Ranker applies provider weights, orders and deduplicates results.
type Ranker struct {
	profiles map[string]types.ProviderProfile
	cfg      types.RankConfig
	logger   *slog.Logger
}

// New returns a Ranker over the given provider profiles.
func New(profiles map[string]types.ProviderProfile, cfg types.RankConfig, logger *slog.Logger) *Ranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ranker{profiles: profiles, cfg: cfg, logger: logger}
}

// Rank computes FinalScore = BoostedConfidence × provider weight, sorts
// descending, and removes duplicates. Nothing is truncated. Results from
// providers without a profile are dropped.
func (r *Ranker) Rank(boosted []types.BoostedResult) []types.RankedResult {
	ranked := make([]types.RankedResult, 0, len(boosted))
	for _, b := range boosted {
		p, ok := r.profiles[b.Provider]
		if !ok {
			r.logger.Warn("rank_unknown_provider", slog.String("provider", b.Provider), slog.String("url", b.URL))
			continue
		}
		ranked = append(ranked, types.RankedResult{
			BoostedResult:  b,
			ProviderWeight: p.Weight,
			FinalScore:     b.BoostedConfidence * p.Weight,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return r.less(ranked[i], ranked[j])
	})
	return Dedup(ranked, r.cfg.SimilarityThreshold)
}

// less orders by score, then legal source, then fetch time. The remaining
// keys only make the order independent of input order.
func (r *Ranker) less(a, b types.RankedResult) bool {
	if math.Abs(a.FinalScore-b.FinalScore) > r.cfg.ScoreEpsilon {
		return a.FinalScore > b.FinalScore
	}
	if r.cfg.PreferLegalOnTie {
		la, lb := r.profiles[a.Provider].IsLegalSource, r.profiles[b.Provider].IsLegalSource
		if la != lb {
			return la
		}
	}
	if !a.FetchedAt.Equal(b.FetchedAt) {
		return a.FetchedAt.Before(b.FetchedAt)
	}
	if a.Provider != b.Provider {
		return a.Provider < b.Provider
	}
	return a.URL < b.URL
}

// Dedup walks an already ordered list and drops every result that
// duplicates an earlier kept one, so the higher-ranked copy survives.
// Applying it to its own output returns the same list.
func Dedup(ranked []types.RankedResult, threshold float64) []types.RankedResult {
	type seen struct {
		provider string
		url      string
		tokens   map[string]struct{}
	}
	kept := make([]types.RankedResult, 0, len(ranked))
	var keys []seen

	for _, r := range ranked {
		cur := seen{provider: r.Provider, url: NormalizeURL(r.URL), tokens: tokenSet(r.Snippet)}
		dup := false
		for _, k := range keys {
			if k.provider == cur.provider && k.url != "" && k.url == cur.url {
				dup = true
				break
			}
			if threshold > 0 && Overlap(k.tokens, cur.tokens) >= threshold {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		kept = append(kept, r)
		keys = append(keys, cur)
	}
	return kept
}

// NormalizeURL reduces a URL to the parts that identify a document:
// scheme, "www.", default ports, fragment and trailing slashes are dropped
// and query parameters are sorted.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if port := u.Port(); port != "" && port != "80" && port != "443" {
		host += ":" + port
	}
	path := strings.TrimRight(u.EscapedPath(), "/")
	out := host + path
	if q := u.Query(); len(q) > 0 {
		out += "?" + q.Encode()
	}
	return out
}

// Overlap is the Jaccard similarity |a ∩ b| / |a ∪ b|. A short snippet
// contained in a long one stays well below 1. Empty sets never overlap.
func Overlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for t := range a {
		if _, ok := b[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(a)+len(b)-shared)
}

func tokenSet(s string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
