// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/termsource/internal/httputil"
	"github.com/pdiddy/termsource/pkg/types"
)

// RechtspraakName is the provider identifier of the case-law adapter.
const RechtspraakName = "rechtspraak"

var (
	rechtspraakSearchBase = "https://data.rechtspraak.nl/uitspraken/zoeken"
	rechtspraakDetailBase = "https://uitspraken.rechtspraak.nl/details?id="
)

var ecliPattern = regexp.MustCompile(`ECLI:[A-Z]{2}:[A-Z0-9]+:\d{4}:[A-Z0-9.]+`)

// RechtspraakAdapter searches published court decisions.
type RechtspraakAdapter struct {
	base
}

// NewRechtspraak returns the case-law adapter.
func NewRechtspraak(profile types.ProviderProfile, opts Options) *RechtspraakAdapter {
	return &RechtspraakAdapter{base: newBase(RechtspraakName, profile, opts)}
}

// Fetch queries the decision feed. A decision whose title and summary do
// not mention the term is scored lower than one that does.
func (a *RechtspraakAdapter) Fetch(ctx context.Context, req types.LookupRequest) ([]types.RawResult, error) {
	params := url.Values{
		"q":      {req.Term},
		"max":    {strconv.Itoa(maxResults(req))},
		"return": {"DOC"},
	}
	reqURL := a.endpoint(rechtspraakSearchBase) + "?" + params.Encode()

	resp, err := a.get(ctx, reqURL, http.Header{"Accept": {"application/atom+xml"}})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var feed atomFeed
	if err := xml.NewDecoder(httputil.LimitedBody(resp)).Decode(&feed); err != nil {
		return nil, malformed(a.name, fmt.Errorf("parsing Rechtspraak feed: %w", err))
	}

	term := foldText(req.Term)
	var results []types.RawResult
	for i, e := range feed.Entries {
		ecli := ecliPattern.FindString(e.ID)
		if ecli == "" {
			ecli = ecliPattern.FindString(e.Title)
		}
		link := e.Link.Href
		if link == "" && ecli != "" {
			link = rechtspraakDetailBase + url.QueryEscape(ecli)
		}

		mention := 0.8
		if strings.Contains(foldText(e.Title+" "+e.Summary), term) {
			mention = 1.0
		}
		r, ok := a.result(req.Term, link, e.Title, e.Summary, positionScore(i, len(feed.Entries))*mention)
		if !ok {
			continue
		}
		r.Identifier = ecli
		r.IsAuthoritative = true
		results = append(results, r)
	}
	return results, nil
}

// Atom feed XML structures.
type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID      string   `xml:"id"`
	Title   string   `xml:"title"`
	Summary string   `xml:"summary"`
	Updated string   `xml:"updated"`
	Link    atomLink `xml:"link"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
}
