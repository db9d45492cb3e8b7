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

const sruOneRecord = `<?xml version="1.0" encoding="UTF-8"?>
<sru:searchRetrieveResponse xmlns:sru="http://www.loc.gov/zing/srw/"
    xmlns:gzd="http://standaarden.overheid.nl/sru"
    xmlns:dcterms="http://purl.org/dc/terms/"
    xmlns:overheidwetgeving="http://standaarden.overheid.nl/wetgeving/">
  <sru:numberOfRecords>1</sru:numberOfRecords>
  <sru:records>
    <sru:record>
      <sru:recordData>
        <gzd:gzd>
          <gzd:originalData>
            <overheidwetgeving:meta>
              <owmskern>
                <dcterms:identifier>BWBR0005537</dcterms:identifier>
                <dcterms:title>Algemene wet bestuursrecht</dcterms:title>
                <dcterms:type>wet</dcterms:type>
              </owmskern>
            </overheidwetgeving:meta>
          </gzd:originalData>
          <gzd:enrichedData>
            <gzd:preferredUrl>https://wetten.overheid.nl/BWBR0005537/2024-01-01</gzd:preferredUrl>
          </gzd:enrichedData>
        </gzd:gzd>
      </sru:recordData>
    </sru:record>
  </sru:records>
</sru:searchRetrieveResponse>`

const sruEmpty = `<?xml version="1.0" encoding="UTF-8"?>
<sru:searchRetrieveResponse xmlns:sru="http://www.loc.gov/zing/srw/">
  <sru:numberOfRecords>0</sru:numberOfRecords>
  <sru:records/>
</sru:searchRetrieveResponse>`

func TestOverheidFetch(t *testing.T) {
	var gotQuery, gotConnection, gotVersion string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotConnection = r.URL.Query().Get("x-connection")
		gotVersion = r.URL.Query().Get("version")
		w.Write([]byte(sruOneRecord))
	}))
	defer ts.Close()

	a := NewOverheid(testProfile(OverheidName, ts.URL), testOptions(ts.Client()))
	results, err := a.Fetch(context.Background(), types.LookupRequest{Term: "bestuursrecht"})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, `dcterms.title="bestuursrecht"`, gotQuery)
	assert.Equal(t, "BWB", gotConnection)
	assert.Equal(t, "1.2", gotVersion)

	r := results[0]
	assert.Equal(t, "BWBR0005537", r.Identifier)
	assert.Equal(t, "https://wetten.overheid.nl/BWBR0005537/2024-01-01", r.URL)
	assert.Equal(t, "wet: Algemene wet bestuursrecht", r.Snippet)
	assert.True(t, r.IsAuthoritative)
	assert.InDelta(t, 0.9, r.RawConfidence, 1e-9)
}

func TestOverheidFallbackToFullText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Query().Get("query"), "dcterms.title=") {
			w.Write([]byte(sruEmpty))
			return
		}
		w.Write([]byte(sruOneRecord))
	}))
	defer ts.Close()

	a := NewOverheid(testProfile(OverheidName, ts.URL), testOptions(ts.Client()))
	results, err := a.Fetch(context.Background(), types.LookupRequest{Term: "bestuursrecht"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 0.9*fallbackPenalty, results[0].RawConfidence, 1e-9)
}

func TestOverheidDiagnosticIsMalformed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<searchRetrieveResponse><diagnostics><diagnostic><message>Query syntax error</message></diagnostic></diagnostics></searchRetrieveResponse>`))
	}))
	defer ts.Close()

	a := NewOverheid(testProfile(OverheidName, ts.URL), testOptions(ts.Client()))
	_, err := a.Fetch(context.Background(), types.LookupRequest{Term: "x"})
	require.Error(t, err)
	assert.Equal(t, KindMalformedResponse, KindOf(err))
	assert.Contains(t, err.Error(), "Query syntax error")
}

func TestCQLQuote(t *testing.T) {
	assert.Equal(t, `"wet"`, cqlQuote("wet"))
	assert.Equal(t, `"a \"b\" c"`, cqlQuote(`a "b" c`))
}
