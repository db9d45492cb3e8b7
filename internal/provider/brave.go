// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pdiddy/termsource/internal/httputil"
	"github.com/pdiddy/termsource/pkg/types"
)

// BraveName is the provider identifier of the web search adapter.
const BraveName = "brave"

// BraveSecretKey is the secrets file holding the API token.
const BraveSecretKey = "brave-api-key"

var braveAPIBase = "https://api.search.brave.com/res/v1/web/search"

// BraveAdapter queries a keyed web search API. Results from official
// government domains are flagged authoritative.
type BraveAdapter struct {
	base
	apiKey string
}

// NewBrave returns the web search adapter.
func NewBrave(profile types.ProviderProfile, apiKey string, opts Options) *BraveAdapter {
	return &BraveAdapter{base: newBase(BraveName, profile, opts), apiKey: apiKey}
}

func newBraveFromSecrets(profile types.ProviderProfile, opts Options) (Adapter, error) {
	key := profile.APIKey
	if key == "" {
		key = opts.Secrets[BraveSecretKey]
	}
	if key == "" {
		return nil, fmt.Errorf("no API key: set providers.brave.api_key or .secrets/%s", BraveSecretKey)
	}
	return NewBrave(profile, key, opts), nil
}

// Fetch runs a web search for the term.
func (a *BraveAdapter) Fetch(ctx context.Context, req types.LookupRequest) ([]types.RawResult, error) {
	params := url.Values{
		"q":           {req.Term},
		"count":       {strconv.Itoa(maxResults(req))},
		"search_lang": {a.language(req)},
	}
	reqURL := a.endpoint(braveAPIBase) + "?" + params.Encode()

	header := http.Header{
		"Accept":               {"application/json"},
		"X-Subscription-Token": {a.apiKey},
	}
	resp, err := a.get(ctx, reqURL, header)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var br braveResponse
	if err := json.NewDecoder(httputil.LimitedBody(resp)).Decode(&br); err != nil {
		return nil, malformed(a.name, fmt.Errorf("parsing Brave response: %w", err))
	}

	hits := br.Web.Results
	var results []types.RawResult
	for i, h := range hits {
		confidence := positionScore(i, len(hits)) * titleMatch(req.Term, h.Title)
		r, ok := a.result(req.Term, h.URL, h.Title, h.Description, confidence)
		if !ok {
			continue
		}
		r.IsAuthoritative = a.sanitizer.IsOfficial(r.URL)
		results = append(results, r)
	}
	return results, nil
}

// Brave web search JSON structures.
type braveResponse struct {
	Web struct {
		Results []braveHit `json:"results"`
	} `json:"web"`
}

type braveHit struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}
