// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/termsource/internal/httputil"
	"github.com/pdiddy/termsource/pkg/types"
)

// WiktionaryName is the provider identifier of the Wiktionary adapter.
const WiktionaryName = "wiktionary"

var (
	wiktionaryAPIBase  = "https://%s.wiktionary.org/w/api.php"
	wiktionaryPageBase = "https://%s.wiktionary.org/wiki/"
)

const (
	// wiktionaryDefinitionConfidence applies when the page lists numbered
	// definitions; wiktionaryProseConfidence when only prose was found.
	wiktionaryDefinitionConfidence = 0.9
	wiktionaryProseConfidence      = 0.5
	maxDefinitions                 = 3
)

// WiktionaryAdapter reads the definitions section of a Wiktionary entry.
type WiktionaryAdapter struct {
	base
}

// NewWiktionary returns the lexical adapter.
func NewWiktionary(profile types.ProviderProfile, opts Options) *WiktionaryAdapter {
	return &WiktionaryAdapter{base: newBase(WiktionaryName, profile, opts)}
}

// Fetch looks up the entry titled exactly as the term, then the
// alternate-case title with the fallback penalty. A term with no entry
// is a not-found failure.
func (a *WiktionaryAdapter) Fetch(ctx context.Context, req types.LookupRequest) ([]types.RawResult, error) {
	lang := a.language(req)

	titles := []string{req.Term}
	if alt := alternateCase(req.Term); alt != req.Term {
		titles = append(titles, alt)
	}

	for i, title := range titles {
		page, err := a.page(ctx, lang, title)
		if err != nil {
			return nil, err
		}
		if page == nil {
			continue
		}
		penalty := 1.0
		if i > 0 {
			penalty = fallbackPenalty
		}
		return a.toResults(req.Term, lang, page, penalty), nil
	}
	return nil, notFound(a.name, req.Term)
}

func (a *WiktionaryAdapter) toResults(term, lang string, page *wiktionaryPage, penalty float64) []types.RawResult {
	snippet, confidence, err := extractDefinitions(page.Extract)
	if err != nil || snippet == "" {
		return nil
	}
	pageURL := fmt.Sprintf(wiktionaryPageBase, lang) + url.PathEscape(strings.ReplaceAll(page.Title, " ", "_"))
	r, ok := a.result(term, pageURL, page.Title, snippet, confidence*penalty)
	if !ok {
		return nil
	}
	r.Identifier = "wiktionary:" + page.Title
	return []types.RawResult{r}
}

// page returns nil without error when the entry does not exist.
func (a *WiktionaryAdapter) page(ctx context.Context, lang, title string) (*wiktionaryPage, error) {
	params := url.Values{
		"action":        {"query"},
		"prop":          {"extracts"},
		"titles":        {title},
		"redirects":     {"1"},
		"format":        {"json"},
		"formatversion": {"2"},
	}
	reqURL := a.endpoint(fmt.Sprintf(wiktionaryAPIBase, lang)) + "?" + params.Encode()

	resp, err := a.get(ctx, reqURL, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var wr wiktionaryResponse
	if err := json.NewDecoder(httputil.LimitedBody(resp)).Decode(&wr); err != nil {
		return nil, malformed(a.name, fmt.Errorf("parsing Wiktionary response: %w", err))
	}
	if wr.Error != nil {
		return nil, malformed(a.name, fmt.Errorf("Wiktionary API error %s: %s", wr.Error.Code, wr.Error.Info))
	}
	for _, p := range wr.Query.Pages {
		if !p.Missing && strings.TrimSpace(p.Extract) != "" {
			return &p, nil
		}
	}
	return nil, nil
}

// extractDefinitions pulls the first numbered definitions out of the
// entry HTML. Nested example lists are dropped.
func extractDefinitions(extract string) (string, float64, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(extract))
	if err != nil {
		return "", 0, err
	}

	var defs []string
	doc.Find("ol > li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
		li = li.Clone()
		li.Find("ul, ol, dl").Remove()
		text := strings.Join(strings.Fields(li.Text()), " ")
		if text != "" {
			defs = append(defs, fmt.Sprintf("%d. %s", len(defs)+1, text))
		}
		return len(defs) < maxDefinitions
	})
	if len(defs) > 0 {
		return strings.Join(defs, " "), wiktionaryDefinitionConfidence, nil
	}

	prose := strings.Join(strings.Fields(doc.Find("p").First().Text()), " ")
	return prose, wiktionaryProseConfidence, nil
}

// alternateCase lowercases a capitalized term, or capitalizes a lowercase one.
func alternateCase(term string) string {
	r, size := utf8.DecodeRuneInString(term)
	if r == utf8.RuneError {
		return term
	}
	if unicode.IsUpper(r) {
		return strings.ToLower(term)
	}
	return string(unicode.ToUpper(r)) + term[size:]
}

// MediaWiki extracts JSON structures (formatversion=2).
type wiktionaryResponse struct {
	Query struct {
		Pages []wiktionaryPage `json:"pages"`
	} `json:"query"`
	Error *mediaWikiError `json:"error,omitempty"`
}

type wiktionaryPage struct {
	PageID  int    `json:"pageid"`
	Title   string `json:"title"`
	Missing bool   `json:"missing"`
	Extract string `json:"extract"`
}
