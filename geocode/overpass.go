// Copyright 2026 The MedGeo Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// OverpassClient searches OpenStreetMap for named medical points of interest
// inside a settlement. The settlement name is resolved to an administrative
// area by the Overpass engine itself (the area clause of the query), which
// confines the search to that city's bounding geometry.
type OverpassClient struct {
	BaseURL string
	// Amenities is the tag filter for matching elements.
	Amenities string

	httpClient *http.Client
	gate       *RateGate
	retry      RetryPolicy
}

// NewOverpassClient builds a client for the public interpreter endpoint.
func NewOverpassClient(httpClient *http.Client) *OverpassClient {
	return &OverpassClient{
		BaseURL:    "https://overpass-api.de/api/interpreter",
		Amenities:  "hospital|clinic|doctors",
		httpClient: httpClient,
		gate:       NewRateGate(1100 * time.Millisecond),
		retry:      DefaultRetryPolicy(),
	}
}

// ID implements POIAdapter.
func (o *OverpassClient) ID() string {
	return ProviderOverpass
}

type overpassResponse struct {
	Elements []struct {
		Lat    float64 `json:"lat"`
		Lon    float64 `json:"lon"`
		Center struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"center"`
		Tags map[string]string `json:"tags"`
	} `json:"elements"`
}

var overpassEscaper = regexp.MustCompile(`[\\"]`)

func overpassQuote(s string) string {
	return overpassEscaper.ReplaceAllString(s, `\$0`)
}

// SearchPOI implements POIAdapter: finds elements whose name resembles the
// facility name within the given settlement.
func (o *OverpassClient) SearchPOI(ctx context.Context, name, city string) ([]Candidate, error) {
	if name == "" || city == "" {
		return nil, nil
	}

	query := fmt.Sprintf(`[out:json][timeout:25];
area["name"=%q]["place"~"city|town"]->.searchArea;
(
  nwr["name"~"%s",i]["amenity"~"%s"](area.searchArea);
);
out center;`, city, overpassQuote(regexp.QuoteMeta(name)), o.Amenities)

	var out []Candidate

	err := o.retry.Do(ctx, func() error {
		if err := o.gate.Wait(ctx); err != nil {
			return err
		}

		form := url.Values{}
		form.Set("data", query)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL, strings.NewReader(form.Encode()))
		if err != nil {
			return fmt.Errorf("building overpass request: %w", err)
		}

		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := o.httpClient.Do(req)
		if err != nil {
			return &GeocodingError{Type: ErrorTypeNetwork, Message: "overpass request failed", Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return ClassifyHTTPStatus(resp.StatusCode)
		}

		var decoded overpassResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return &GeocodingError{Type: ErrorTypeBadPayload, Message: "decoding overpass response", Err: err}
		}

		out = convertOverpass(decoded)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func convertOverpass(resp overpassResponse) []Candidate {
	out := make([]Candidate, 0, len(resp.Elements))

	for _, el := range resp.Elements {
		lat, lng := el.Lat, el.Lon
		if lat == 0 && lng == 0 {
			lat, lng = el.Center.Lat, el.Center.Lon
		}

		if lat == 0 && lng == 0 {
			continue
		}

		out = append(out, Candidate{
			Lat:         lat,
			Lng:         lng,
			DisplayName: el.Tags["name"],
			Provider:    ProviderOverpass,
			Road:        el.Tags["addr:street"],
			Locality:    el.Tags["addr:city"],
			HouseNumber: el.Tags["addr:housenumber"],
			Class:       "amenity",
			Type:        el.Tags["amenity"],
			// OSM elements store full-precision coordinates.
			LatPrecision: 7,
			LngPrecision: 7,
		})
	}

	return out
}
