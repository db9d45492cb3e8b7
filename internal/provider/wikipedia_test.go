// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/termsource/pkg/types"
)

const wikipediaExactJSON = `{
  "query": {
    "search": [
      {"pageid": 101, "title": "Onherroepelijk", "snippet": "Een <span class=\"searchmatch\">onherroepelijk</span> vonnis &amp; meer"},
      {"pageid": 102, "title": "Rechtskracht", "snippet": "Kracht van gewijsde"}
    ]
  }
}`

func TestWikipediaFetch(t *testing.T) {
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("srsearch")
		assert.Equal(t, "termsource/test", r.Header.Get("User-Agent"))
		w.Write([]byte(wikipediaExactJSON))
	}))
	defer ts.Close()

	a := NewWikipedia(testProfile(WikipediaName, ts.URL), testOptions(ts.Client()))
	results, err := a.Fetch(context.Background(), types.LookupRequest{Term: "onherroepelijk"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, `"onherroepelijk"`, gotQuery)

	first := results[0]
	assert.Equal(t, WikipediaName, first.Provider)
	assert.Equal(t, "https://nl.wikipedia.org/wiki/Onherroepelijk", first.URL)
	assert.Equal(t, "Een onherroepelijk vonnis & meer", first.Snippet)
	assert.Equal(t, "wikipedia:101", first.Identifier)
	assert.InDelta(t, 1.0, first.RawConfidence, 1e-9)
	assert.False(t, first.IsAuthoritative)
	assert.Equal(t, fixedNow, first.FetchedAt)
	assert.Equal(t, types.StatusOK, first.Status)

	// Second position, unrelated title.
	assert.InDelta(t, 0.1*0.75, results[1].RawConfidence, 1e-9)
}

func TestWikipediaFallbackAppliesPenalty(t *testing.T) {
	var queries []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("srsearch")
		queries = append(queries, q)
		if strings.HasPrefix(q, `"`) {
			w.Write([]byte(`{"query":{"search":[]}}`))
			return
		}
		w.Write([]byte(`{"query":{"search":[{"pageid":7,"title":"Onherroepelijkheid","snippet":"x"}]}}`))
	}))
	defer ts.Close()

	a := NewWikipedia(testProfile(WikipediaName, ts.URL), testOptions(ts.Client()))
	results, err := a.Fetch(context.Background(), types.LookupRequest{Term: "onherroepelijk"})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, []string{`"onherroepelijk"`, "onherroepelijk~"}, queries)
	assert.InDelta(t, 0.9*fallbackPenalty, results[0].RawConfidence, 1e-9)
}

func TestWikipediaErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   Kind
	}{
		{"unavailable", http.StatusServiceUnavailable, "", KindUnavailable},
		{"rate limited", http.StatusTooManyRequests, "", KindRateLimited},
		{"malformed", http.StatusOK, "{not json", KindMalformedResponse},
		{"api error", http.StatusOK, `{"error":{"code":"badvalue","info":"nope"}}`, KindMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			a := NewWikipedia(testProfile(WikipediaName, ts.URL), testOptions(ts.Client()))
			_, err := a.Fetch(context.Background(), types.LookupRequest{Term: "x"})
			require.Error(t, err)
			assert.Equal(t, tt.want, KindOf(err))
		})
	}
}
