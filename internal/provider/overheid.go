// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/termsource/internal/httputil"
	"github.com/pdiddy/termsource/pkg/types"
)

// OverheidName is the provider identifier of the official legislation
// registry adapter.
const OverheidName = "overheid"

// overheidSRUBase is the SRU endpoint of the official publications
// search service. Declared as a var so tests can substitute an httptest server.
var overheidSRUBase = "https://zoekservice.overheid.nl/sru/Search"

const (
	overheidConnection = "BWB"
	overheidSRUVersion = "1.2"
)

var bwbIDPattern = regexp.MustCompile(`BWB[RV]\d{7}`)

// OverheidAdapter queries consolidated legislation (BWB) over SRU.
type OverheidAdapter struct {
	base
}

// NewOverheid returns the legislation registry adapter.
func NewOverheid(profile types.ProviderProfile, opts Options) *OverheidAdapter {
	return &OverheidAdapter{base: newBase(OverheidName, profile, opts)}
}

// Fetch searches regulation titles for the term and falls back to a
// full-text query with the fallback penalty.
func (a *OverheidAdapter) Fetch(ctx context.Context, req types.LookupRequest) ([]types.RawResult, error) {
	limit := maxResults(req)
	quoted := cqlQuote(req.Term)

	records, err := a.searchRetrieve(ctx, "dcterms.title="+quoted, limit)
	if err != nil {
		return nil, err
	}
	penalty := 1.0
	if len(records) == 0 {
		records, err = a.searchRetrieve(ctx, "cql.textAndIndexes="+quoted, limit)
		if err != nil {
			return nil, err
		}
		penalty = fallbackPenalty
	}

	var results []types.RawResult
	for i, rec := range records {
		id := bwbIDPattern.FindString(rec.Identifier)
		if id == "" {
			id = bwbIDPattern.FindString(rec.PreferredURL)
		}
		link := rec.PreferredURL
		if link == "" && id != "" {
			link = "https://wetten.overheid.nl/" + id
		}

		confidence := positionScore(i, len(records)) * titleMatch(req.Term, rec.Title) * penalty
		r, ok := a.result(req.Term, link, rec.Title, recordSnippet(rec), confidence)
		if !ok {
			continue
		}
		r.Identifier = id
		r.IsAuthoritative = true
		results = append(results, r)
	}
	return results, nil
}

func (a *OverheidAdapter) searchRetrieve(ctx context.Context, query string, limit int) ([]sruRecord, error) {
	params := url.Values{
		"operation":      {"searchRetrieve"},
		"version":        {overheidSRUVersion},
		"x-connection":   {overheidConnection},
		"query":          {query},
		"maximumRecords": {strconv.Itoa(limit)},
	}
	reqURL := a.endpoint(overheidSRUBase) + "?" + params.Encode()

	resp, err := a.get(ctx, reqURL, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var sr sruResponse
	if err := xml.NewDecoder(httputil.LimitedBody(resp)).Decode(&sr); err != nil {
		return nil, malformed(a.name, fmt.Errorf("parsing SRU response: %w", err))
	}
	if len(sr.Diagnostics) > 0 {
		return nil, malformed(a.name, fmt.Errorf("SRU diagnostic: %s", strings.TrimSpace(sr.Diagnostics[0].Message)))
	}
	return sr.Records, nil
}

func recordSnippet(rec sruRecord) string {
	var parts []string
	if rec.Type != "" {
		parts = append(parts, rec.Type+":")
	}
	parts = append(parts, rec.Title)
	if rec.Abstract != "" {
		parts = append(parts, "-", rec.Abstract)
	}
	return strings.Join(parts, " ")
}

// cqlQuote wraps the term in a CQL string literal.
func cqlQuote(term string) string {
	escaped := strings.ReplaceAll(term, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return `"` + escaped + `"`
}

// SRU searchRetrieve XML structures. Tags name local elements only so
// the decoder ignores the sru/gzd/dcterms namespaces.
type sruResponse struct {
	NumberOfRecords int             `xml:"numberOfRecords"`
	Records         []sruRecord     `xml:"records>record"`
	Diagnostics     []sruDiagnostic `xml:"diagnostics>diagnostic"`
}

type sruRecord struct {
	Identifier   string `xml:"recordData>gzd>originalData>meta>owmskern>identifier"`
	Title        string `xml:"recordData>gzd>originalData>meta>owmskern>title"`
	Type         string `xml:"recordData>gzd>originalData>meta>owmskern>type"`
	Abstract     string `xml:"recordData>gzd>originalData>meta>owmsmantel>abstract"`
	PreferredURL string `xml:"recordData>gzd>enrichedData>preferredUrl"`
}

type sruDiagnostic struct {
	Message string `xml:"message"`
}
