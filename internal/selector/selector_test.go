// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package selector

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/termsource/pkg/types"
)

func ranked(title, snippet string, score float64) types.RankedResult {
	return types.RankedResult{
		BoostedResult: types.BoostedResult{RawResult: types.RawResult{
			Provider: "wikipedia",
			URL:      "https://nl.wikipedia.org/wiki/" + title,
			Title:    title,
			Snippet:  snippet,
		}},
		FinalScore: score,
	}
}

func testSelector() *Selector {
	return New(types.SelectorConfig{TokenBudget: 1000, TopK: 3, CharsPerToken: 4, CitationOverhead: 8})
}

func TestCost(t *testing.T) {
	s := testSelector()
	// 4 + 4 runes → 2 tokens + 8 overhead.
	assert.Equal(t, 10, s.Cost(ranked("abcd", "efgh", 1)))
	// 9 runes round up to 3 tokens.
	assert.Equal(t, 11, s.Cost(ranked("abcd", "efghi", 1)))
	// Runes, not bytes.
	assert.Equal(t, 9, s.Cost(ranked("één", "", 1)))
}

func TestSelectTopK(t *testing.T) {
	s := testSelector()
	in := []types.RankedResult{
		ranked("a", "x", 0.9), ranked("b", "x", 0.8), ranked("c", "x", 0.7), ranked("d", "x", 0.6),
	}
	got := s.Select(in, 0, 0)
	require.Len(t, got, 3)
	for i, src := range got {
		assert.Equal(t, i+1, src.CitationIndex)
		assert.Equal(t, in[i].Title, src.Title)
	}
}

// Three candidates each costing 400 with a 1000 budget: two fit.
func TestSelectBudgetScenario(t *testing.T) {
	s := testSelector()
	long := strings.Repeat("w", (400-8)*4)
	in := []types.RankedResult{ranked("", long, 0.9), ranked("", long, 0.8), ranked("", long, 0.7)}
	require.Equal(t, 400, s.Cost(in[0]))

	got := s.Select(in, 1000, 3)
	require.Len(t, got, 2)
	assert.Equal(t, []int{1, 2}, []int{got[0].CitationIndex, got[1].CitationIndex})
	assert.Equal(t, 800, got[0].TokenCost+got[1].TokenCost)
}

func TestSelectSkipsWhatDoesNotFit(t *testing.T) {
	s := testSelector()
	in := []types.RankedResult{
		ranked("big", strings.Repeat("w", 4000), 0.9),
		ranked("small", "kort", 0.5),
	}
	got := s.Select(in, 100, 3)
	require.Len(t, got, 1)
	assert.Equal(t, "small", got[0].Title)
	assert.Equal(t, 1, got[0].CitationIndex)
}

func TestSelectNeverExceedsBudget(t *testing.T) {
	s := testSelector()
	var in []types.RankedResult
	for i := range 40 {
		in = append(in, ranked("t", strings.Repeat("z", i*37%500), 1-float64(i)/100))
	}
	for _, budget := range []int{10, 50, 137, 400, 1000} {
		got := s.Select(in, budget, 10)
		total := 0
		for _, src := range got {
			total += src.TokenCost
		}
		assert.LessOrEqual(t, total, budget, "budget %d", budget)
	}
}

func TestSelectEmpty(t *testing.T) {
	assert.Empty(t, testSelector().Select(nil, 100, 3))
}

func TestSelectKeepsRankedFields(t *testing.T) {
	s := testSelector()
	in := []types.RankedResult{ranked("vonnis", "uitspraak van de rechter", 0.77)}
	in[0].ProviderWeight = 0.85
	got := s.Select(in, 0, 0)

	want := []types.SelectedSource{{RankedResult: in[0], TokenCost: s.Cost(in[0]), CitationIndex: 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Select mismatch (-want +got):\n%s", diff)
	}
}

func TestNewDefaults(t *testing.T) {
	def := types.DefaultConfig().Selector
	s := New(types.SelectorConfig{CitationOverhead: -1})
	assert.Equal(t, def, s.cfg)

	s = New(types.SelectorConfig{})
	assert.Equal(t, 0, s.cfg.CitationOverhead, "zero overhead is a valid setting")
}

func TestRender(t *testing.T) {
	s := testSelector()
	in := []types.RankedResult{
		ranked("Vonnis", "Uitspraak van de rechter.", 0.9),
		ranked("Beroep", "", 0.8),
	}
	got := RenderString(s.Select(in, 0, 0))
	want := "[1] Vonnis (wikipedia) https://nl.wikipedia.org/wiki/Vonnis\n" +
		"    Uitspraak van de rechter.\n" +
		"[2] Beroep (wikipedia) https://nl.wikipedia.org/wiki/Beroep\n"
	assert.Equal(t, want, got)
}
