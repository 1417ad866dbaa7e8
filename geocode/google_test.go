// Copyright 2026 The MedGeo Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

// The google client hits a fixed host, so the test transport rewrites every
// request to the local server.
type rewriteTransport struct {
	target *url.URL
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = t.target.Scheme
	req.URL.Host = t.target.Host

	return http.DefaultTransport.RoundTrip(req)
}

func newTestGoogle(t *testing.T, handler http.HandlerFunc) *GoogleGeocoder {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	target, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	g := NewGoogleGeocoder("test-key", &http.Client{Transport: &rewriteTransport{target: target}})
	g.gate.MinInterval = 0
	g.retry = RetryPolicy{MaxAttempts: 1}

	return g
}

const googlePayload = `{
  "status": "OK",
  "results": [
    {
      "formatted_address": "ul. Ivan Vazov 15, 1000 Sofia, Bulgaria",
      "geometry": {
        "location": {"lat": 42.6952278, "lng": 23.3233441},
        "location_type": "ROOFTOP"
      },
      "address_components": [
        {"long_name": "15", "types": ["street_number"]},
        {"long_name": "ulitsa Ivan Vazov", "types": ["route"]},
        {"long_name": "Sofia", "types": ["locality", "political"]}
      ]
    },
    {
      "formatted_address": "Sofia, Bulgaria",
      "geometry": {
        "location": {"lat": 42.6977, "lng": 23.3219},
        "location_type": "APPROXIMATE"
      },
      "address_components": [
        {"long_name": "Sofia", "types": ["locality", "political"]}
      ]
    }
  ]
}`

func TestGoogleSearch(t *testing.T) {
	var gotQuery url.Values

	g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(googlePayload))
	})

	cands, err := g.Search(context.Background(), "ул. Иван Вазов 15, София", 10)
	if err != nil {
		t.Fatalf("Search(): %v", err)
	}

	if gotQuery.Get("key") != "test-key" || gotQuery.Get("region") != "bg" {
		t.Errorf("request parameters wrong: %v", gotQuery)
	}

	if len(cands) != 2 {
		t.Fatalf("Search() returned %d candidates, want 2", len(cands))
	}

	rooftop := cands[0]
	if rooftop.HouseNumber != "15" || rooftop.Road != "ulitsa Ivan Vazov" || rooftop.Locality != "Sofia" {
		t.Errorf("components not mapped: %+v", rooftop)
	}

	if rooftop.OSMType != "node" || rooftop.Class != "building" {
		t.Errorf("ROOFTOP precision not mapped: %+v", rooftop)
	}

	approximate := cands[1]
	if approximate.Class != "place" {
		t.Errorf("road-less APPROXIMATE result should look like a place: %+v", approximate)
	}
}

func TestGoogleOverQueryLimit(t *testing.T) {
	g := newTestGoogle(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status": "OVER_QUERY_LIMIT", "results": []}`))
	})

	_, err := g.Search(context.Background(), "София", 5)
	if err == nil || Retryable(err) {
		t.Errorf("Search() = %v, want a final quota error", err)
	}

	if err != nil && !strings.Contains(err.Error(), "OVER_QUERY_LIMIT") {
		t.Errorf("error does not name the upstream status: %v", err)
	}
}

func TestGoogleZeroResults(t *testing.T) {
	g := newTestGoogle(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status": "ZERO_RESULTS", "results": []}`))
	})

	cands, err := g.Search(context.Background(), "няма такъв адрес", 5)
	if err != nil {
		t.Fatalf("Search(): %v", err)
	}

	if len(cands) != 0 {
		t.Errorf("ZERO_RESULTS produced %d candidates", len(cands))
	}
}
