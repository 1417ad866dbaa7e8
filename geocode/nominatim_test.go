// Copyright 2026 The MedGeo Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestNominatim(t *testing.T, handler http.HandlerFunc) *NominatimClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewNominatimClient(srv.Client())
	c.BaseURL = srv.URL
	c.gate.MinInterval = 0
	c.retry = RetryPolicy{MaxAttempts: 1}

	return c
}

const nominatimPayload = `[
  {
    "lat": "42.6952278",
    "lon": "23.3233441",
    "display_name": "15, улица Иван Вазов, София, България",
    "osm_type": "node",
    "class": "building",
    "type": "yes",
    "address": {
      "house_number": "15",
      "road": "улица Иван Вазов",
      "city": "София"
    }
  },
  {
    "lat": "42.69",
    "lon": "23.32",
    "display_name": "София, България",
    "osm_type": "relation",
    "class": "place",
    "type": "city",
    "address": {
      "city": "София"
    }
  }
]`

func TestNominatimSearch(t *testing.T) {
	var gotQuery url.Values

	c := newTestNominatim(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(nominatimPayload))
	})

	cands, err := c.Search(context.Background(), "ул. Иван Вазов 15, София, България", 10)
	if err != nil {
		t.Fatalf("Search(): %v", err)
	}

	if gotQuery.Get("countrycodes") != "bg" {
		t.Errorf("countrycodes = %q, want bg", gotQuery.Get("countrycodes"))
	}

	if gotQuery.Get("addressdetails") != "1" || gotQuery.Get("dedupe") != "0" {
		t.Errorf("missing search parameters: %v", gotQuery)
	}

	want := []Candidate{
		{
			Lat:          42.6952278,
			Lng:          23.3233441,
			DisplayName:  "15, улица Иван Вазов, София, България",
			Provider:     ProviderNominatimFree,
			HouseNumber:  "15",
			Road:         "улица Иван Вазов",
			Locality:     "София",
			OSMType:      "node",
			Class:        "building",
			Type:         "yes",
			LatPrecision: 7,
			LngPrecision: 7,
		},
		{
			Lat:          42.69,
			Lng:          23.32,
			DisplayName:  "София, България",
			Provider:     ProviderNominatimFree,
			Locality:     "София",
			OSMType:      "relation",
			Class:        "place",
			Type:         "city",
			LatPrecision: 2,
			LngPrecision: 2,
		},
	}

	if diff := cmp.Diff(want, cands); diff != "" {
		t.Errorf("Search() candidates mismatch (-want +got):\n%s", diff)
	}
}

func TestNominatimSearchStructured(t *testing.T) {
	var gotQuery url.Values

	c := newTestNominatim(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := c.SearchStructured(context.Background(), "Иван Вазов", "София", "15", 7)
	if err != nil {
		t.Fatalf("SearchStructured(): %v", err)
	}

	if got := gotQuery.Get("street"); got != "Иван Вазов 15" {
		t.Errorf("street = %q, want house number appended", got)
	}

	if got := gotQuery.Get("limit"); got != "7" {
		t.Errorf("limit = %q, want the caller's candidate limit", got)
	}

	if gotQuery.Get("city") != "София" || gotQuery.Get("country") != "Bulgaria" {
		t.Errorf("structured parameters wrong: %v", gotQuery)
	}
}

func TestNominatimRateLimitResponse(t *testing.T) {
	c := newTestNominatim(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Search(context.Background(), "София", 5)
	if !IsRateLimitError(err) {
		t.Errorf("Search() error = %v, want a rate-limit classification", err)
	}
}

func TestNominatimBadPayload(t *testing.T) {
	c := newTestNominatim(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>surprise</html>"))
	})

	_, err := c.Search(context.Background(), "София", 5)
	if err == nil {
		t.Fatal("Search() accepted a non-JSON payload")
	}
}
