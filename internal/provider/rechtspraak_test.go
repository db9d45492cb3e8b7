// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/termsource/pkg/types"
)

const rechtspraakFeed = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>ECLI:NL:HR:2019:1234</id>
    <title type="text">ECLI:NL:HR:2019:1234, Hoge Raad, 01-01-2019</title>
    <summary type="html">Het vonnis is &lt;b&gt;onherroepelijk&lt;/b&gt; geworden.</summary>
    <updated>2019-01-02T00:00:00Z</updated>
    <link rel="alternate" href="https://uitspraken.rechtspraak.nl/details?id=ECLI:NL:HR:2019:1234"/>
  </entry>
  <entry>
    <id>ECLI:NL:RBAMS:2020:99</id>
    <title type="text">ECLI:NL:RBAMS:2020:99, Rechtbank Amsterdam</title>
    <summary>Geen relevante tekst.</summary>
    <updated>2020-05-01T00:00:00Z</updated>
  </entry>
</feed>`

func TestRechtspraakFetch(t *testing.T) {
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Write([]byte(rechtspraakFeed))
	}))
	defer ts.Close()

	a := NewRechtspraak(testProfile(RechtspraakName, ts.URL), testOptions(ts.Client()))
	results, err := a.Fetch(context.Background(), types.LookupRequest{Term: "onherroepelijk", MaxResults: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "onherroepelijk", gotQuery)

	first := results[0]
	assert.Equal(t, "ECLI:NL:HR:2019:1234", first.Identifier)
	assert.Equal(t, "Het vonnis is onherroepelijk geworden.", first.Snippet)
	assert.True(t, first.IsAuthoritative)
	assert.InDelta(t, 1.0, first.RawConfidence, 1e-9)

	second := results[1]
	assert.Equal(t, "ECLI:NL:RBAMS:2020:99", second.Identifier)
	assert.Equal(t, "https://uitspraken.rechtspraak.nl/details?id=ECLI%3ANL%3ARBAMS%3A2020%3A99", second.URL)
	assert.InDelta(t, 0.1*0.8, second.RawConfidence, 1e-9)
}

func TestRechtspraakMalformedFeed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<feed><entry><id>unterminated"))
	}))
	defer ts.Close()

	a := NewRechtspraak(testProfile(RechtspraakName, ts.URL), testOptions(ts.Client()))
	_, err := a.Fetch(context.Background(), types.LookupRequest{Term: "x"})
	require.Error(t, err)
	assert.Equal(t, KindMalformedResponse, KindOf(err))
}
