// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/pdiddy/termsource/pkg/types"
)

const (
	defaultMaxSnippetChars = 500
	maxSanitizePasses      = 4
)

// Sanitizer cleans untrusted provider text before it enters the pipeline.
type Sanitizer struct {
	policy          *bluemonday.Policy
	maxChars        int
	officialDomains []string
}

// NewSanitizer builds a Sanitizer that strips all markup.
func NewSanitizer(cfg types.SanitizeConfig) *Sanitizer {
	maxChars := cfg.MaxSnippetChars
	if maxChars <= 0 {
		maxChars = defaultMaxSnippetChars
	}
	domains := make([]string, 0, len(cfg.OfficialDomains))
	for _, d := range cfg.OfficialDomains {
		d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "."))
		if d != "" {
			domains = append(domains, d)
		}
	}
	return &Sanitizer{
		policy:          bluemonday.StrictPolicy(),
		maxChars:        maxChars,
		officialDomains: domains,
	}
}

// Text strips markup, decodes entities and collapses whitespace.
// Decoding can surface markup that was entity-encoded or split around a
// stripped tag, so stripping repeats until the text stops changing.
func (s *Sanitizer) Text(raw string) string {
	text := html.UnescapeString(raw)
	for range maxSanitizePasses {
		next := html.UnescapeString(s.policy.Sanitize(text))
		if next == text {
			return strings.Join(strings.Fields(text), " ")
		}
		text = next
	}
	// Still unstable: keep the escaped form rather than decoded markup.
	return strings.Join(strings.Fields(s.policy.Sanitize(text)), " ")
}

// Snippet is Text hard-truncated to the configured rune length.
func (s *Sanitizer) Snippet(raw string) string {
	return truncateRunes(s.Text(raw), s.maxChars)
}

// URL returns the cleaned URL and true when it is an absolute http(s)
// URL. Script, data, file and every other scheme are rejected.
func (s *Sanitizer) URL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", false
	}
	if u.Host == "" {
		return "", false
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.User = nil
	return u.String(), true
}

// IsOfficial reports whether rawURL's host is, or is a subdomain of, one
// of the configured official domains.
func (s *Sanitizer) IsOfficial(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range s.officialDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
