// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package lookup

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/termsource/internal/selector"
)

// FormatTable writes ranked results as a human-readable table to w.
func FormatTable(out Output, w io.Writer) {
	if len(out.Results) == 0 {
		fmt.Fprintln(w, "No results found.")
		formatFooter(w, out.ProviderErrors, out.Degraded)
		return
	}

	fmt.Fprintf(w, "%-4s  %-50s  %-12s  %-5s  %-5s  %-6s  %s\n",
		"Rank", "Title", "Provider", "Raw", "Boost", "Score", "URL")
	fmt.Fprintln(w, strings.Repeat("-", 110))

	for i, r := range out.Results {
		fmt.Fprintf(w, "%-4d  %-50s  %-12s  %-5.2f  %-5.2f  %-6.3f  %s\n",
			i+1, truncate(r.Title, 50), r.Provider, r.RawConfidence, r.BoostFactor, r.FinalScore, r.URL)
	}

	fmt.Fprintf(w, "\n%d results\n", len(out.Results))
	formatFooter(w, out.ProviderErrors, out.Degraded)
}

// FormatSources writes the selected citations in prompt form to w.
func FormatSources(src Sources, w io.Writer) {
	if len(src.Sources) == 0 {
		fmt.Fprintln(w, "No sources selected.")
	} else {
		_ = selector.Render(w, src.Sources)
	}
	formatFooter(w, src.ProviderErrors, src.Degraded)
}

// FormatJSON writes v as indented JSON to w.
func FormatJSON(v any, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatFooter(w io.Writer, providerErrors []string, degraded bool) {
	for _, e := range providerErrors {
		fmt.Fprintf(w, "warning: %s\n", e)
	}
	if degraded {
		fmt.Fprintln(w, "warning: every provider failed; results are degraded")
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}
