// Copyright 2026 The MedGeo Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/medgeo-bg/medgeo/spatial"
)

// Provider identifiers reported on candidates and cached entries.
const (
	ProviderNominatimFree       = "nominatim_free"
	ProviderNominatimStructured = "nominatim_structured"
	ProviderOverpass            = "overpass"
	ProviderGoogle              = "google"
	ProviderCityFallback        = "city_fallback"
	ProviderManual              = "manual"
)

// NominatimClient queries the public Nominatim search endpoint, both as free
// text and as a structured field query. Nominatim's usage policy allows one
// request per second per client, enforced here with a serial rate gate.
type NominatimClient struct {
	BaseURL      string
	CountryCodes string // ISO codes passed as the countrycodes restriction
	Country      string // country name for structured queries

	httpClient *http.Client
	gate       *RateGate
	retry      RetryPolicy
}

// NewNominatimClient builds a client for the public endpoint. The supplied
// http.Client must already inject a descriptive User-Agent; Nominatim blocks
// anonymous default agents.
func NewNominatimClient(httpClient *http.Client) *NominatimClient {
	return &NominatimClient{
		BaseURL:      "https://nominatim.openstreetmap.org",
		CountryCodes: "bg",
		Country:      "Bulgaria",
		httpClient:   httpClient,
		gate:         NewRateGate(1100 * time.Millisecond),
		retry:        DefaultRetryPolicy(),
	}
}

// ID implements Adapter.
func (n *NominatimClient) ID() string {
	return "nominatim"
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	OSMType     string `json:"osm_type"`
	Class       string `json:"class"`
	Type        string `json:"type"`
	Address     struct {
		HouseNumber string `json:"house_number"`
		Road        string `json:"road"`
		Street      string `json:"street"`
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
	} `json:"address"`
}

// Search implements Adapter using the q= free-text form.
func (n *NominatimClient) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("addressdetails", "1")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("countrycodes", n.CountryCodes)
	params.Set("dedupe", "0")

	return n.search(ctx, params, ProviderNominatimFree)
}

// SearchStructured implements StructuredAdapter with discrete street and
// city fields. The house number rides along on the street field, which is
// what the endpoint expects.
func (n *NominatimClient) SearchStructured(ctx context.Context, street, city, houseNumber string, limit int) ([]Candidate, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("addressdetails", "1")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("country", n.Country)
	params.Set("countrycodes", n.CountryCodes)

	if city != "" {
		params.Set("city", city)
	}

	if street != "" {
		if houseNumber != "" {
			params.Set("street", street+" "+houseNumber)
		} else {
			params.Set("street", street)
		}
	}

	return n.search(ctx, params, ProviderNominatimStructured)
}

func (n *NominatimClient) search(ctx context.Context, params url.Values, provider string) ([]Candidate, error) {
	var out []Candidate

	err := n.retry.Do(ctx, func() error {
		if err := n.gate.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.BaseURL+"/search?"+params.Encode(), nil)
		if err != nil {
			return fmt.Errorf("building nominatim request: %w", err)
		}

		resp, err := n.httpClient.Do(req)
		if err != nil {
			return &GeocodingError{Type: ErrorTypeNetwork, Message: "nominatim request failed", Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return ClassifyHTTPStatus(resp.StatusCode)
		}

		var results []nominatimResult
		if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
			return &GeocodingError{Type: ErrorTypeBadPayload, Message: "decoding nominatim response", Err: err}
		}

		out = convertNominatim(results, provider)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func convertNominatim(results []nominatimResult, provider string) []Candidate {
	out := make([]Candidate, 0, len(results))

	for _, r := range results {
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(r.Lat), 64)
		lng, errLng := strconv.ParseFloat(strings.TrimSpace(r.Lon), 64)

		if errLat != nil || errLng != nil {
			continue
		}

		road := r.Address.Road
		if road == "" {
			road = r.Address.Street
		}

		locality := r.Address.City
		if locality == "" {
			locality = r.Address.Town
		}

		if locality == "" {
			locality = r.Address.Village
		}

		out = append(out, Candidate{
			Lat:          lat,
			Lng:          lng,
			DisplayName:  r.DisplayName,
			Provider:     provider,
			HouseNumber:  r.Address.HouseNumber,
			Road:         road,
			Locality:     locality,
			OSMType:      r.OSMType,
			Class:        r.Class,
			Type:         r.Type,
			LatPrecision: spatial.DecimalPlaces(r.Lat),
			LngPrecision: spatial.DecimalPlaces(r.Lon),
		})
	}

	return out
}
