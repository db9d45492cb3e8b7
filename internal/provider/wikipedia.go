// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/termsource/internal/httputil"
	"github.com/pdiddy/termsource/pkg/types"
)

// WikipediaName is the provider identifier of the Wikipedia adapter.
const WikipediaName = "wikipedia"

// wikipediaAPIBase and wikipediaPageBase are formatted with the language
// edition. Declared as vars so tests can substitute an httptest server.
var (
	wikipediaAPIBase  = "https://%s.wikipedia.org/w/api.php"
	wikipediaPageBase = "https://%s.wikipedia.org/wiki/"
)

// WikipediaAdapter queries the MediaWiki search API of a Wikipedia edition.
type WikipediaAdapter struct {
	base
}

// NewWikipedia returns the encyclopedic adapter.
func NewWikipedia(profile types.ProviderProfile, opts Options) *WikipediaAdapter {
	return &WikipediaAdapter{base: newBase(WikipediaName, profile, opts)}
}

// Fetch searches for the term as an exact phrase first. When that finds
// nothing it retries with a fuzzy full-text query whose results carry the
// fallback penalty.
func (a *WikipediaAdapter) Fetch(ctx context.Context, req types.LookupRequest) ([]types.RawResult, error) {
	lang := a.language(req)
	limit := maxResults(req)

	hits, err := a.search(ctx, lang, `"`+req.Term+`"`, limit)
	if err != nil {
		return nil, err
	}
	penalty := 1.0
	if len(hits) == 0 {
		hits, err = a.search(ctx, lang, req.Term+"~", limit)
		if err != nil {
			return nil, err
		}
		penalty = fallbackPenalty
	}

	pageBase := fmt.Sprintf(wikipediaPageBase, lang)
	var results []types.RawResult
	for i, h := range hits {
		pageURL := pageBase + url.PathEscape(strings.ReplaceAll(h.Title, " ", "_"))
		confidence := positionScore(i, len(hits)) * titleMatch(req.Term, h.Title) * penalty
		r, ok := a.result(req.Term, pageURL, h.Title, h.Snippet, confidence)
		if !ok {
			continue
		}
		r.Identifier = "wikipedia:" + strconv.Itoa(h.PageID)
		results = append(results, r)
	}
	return results, nil
}

func (a *WikipediaAdapter) search(ctx context.Context, lang, query string, limit int) ([]wikipediaHit, error) {
	params := url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {strconv.Itoa(limit)},
		"srprop":   {"snippet"},
		"format":   {"json"},
		"utf8":     {"1"},
	}
	reqURL := a.endpoint(fmt.Sprintf(wikipediaAPIBase, lang)) + "?" + params.Encode()

	resp, err := a.get(ctx, reqURL, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var wr wikipediaResponse
	if err := json.NewDecoder(httputil.LimitedBody(resp)).Decode(&wr); err != nil {
		return nil, malformed(a.name, fmt.Errorf("parsing Wikipedia response: %w", err))
	}
	if wr.Error != nil {
		return nil, malformed(a.name, fmt.Errorf("Wikipedia API error %s: %s", wr.Error.Code, wr.Error.Info))
	}
	return wr.Query.Search, nil
}

// MediaWiki search JSON structures.
type wikipediaResponse struct {
	Query struct {
		Search []wikipediaHit `json:"search"`
	} `json:"query"`
	Error *mediaWikiError `json:"error,omitempty"`
}

type wikipediaHit struct {
	PageID  int    `json:"pageid"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

type mediaWikiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}
