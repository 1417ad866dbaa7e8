// Copyright 2026 The MedGeo Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	apikeys "cloud.google.com/go/apikeys/apiv2"
	"cloud.google.com/go/apikeys/apiv2/apikeyspb"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"
)

// GoogleGeocoder is the commercial tier: the Google Maps Geocoding API.
// It is optional and only wired in when a key is available.
type GoogleGeocoder struct {
	Region string // region bias, ccTLD form

	apiKey     string
	httpClient *http.Client
	gate       *RateGate
	retry      RetryPolicy
}

// NewGoogleGeocoder builds the adapter. The paid API tolerates a much higher
// rate than the community backends, but stays serial like everything else.
func NewGoogleGeocoder(apiKey string, httpClient *http.Client) *GoogleGeocoder {
	return &GoogleGeocoder{
		Region:     "bg",
		apiKey:     apiKey,
		httpClient: httpClient,
		gate:       NewRateGate(200 * time.Millisecond),
		retry:      DefaultRetryPolicy(),
	}
}

// ID implements Adapter.
func (g *GoogleGeocoder) ID() string {
	return ProviderGoogle
}

type googleMapsResponse struct {
	Results []struct {
		Geometry struct {
			Location struct {
				Lat json.Number `json:"lat"`
				Lng json.Number `json:"lng"`
			} `json:"location"`
			LocationType string `json:"location_type"` // ROOFTOP, RANGE_INTERPOLATED, GEOMETRIC_CENTER, APPROXIMATE
		} `json:"geometry"`
		FormattedAddress  string `json:"formatted_address"`
		AddressComponents []struct {
			LongName string   `json:"long_name"`
			Types    []string `json:"types"`
		} `json:"address_components"`
	} `json:"results"`
	Status string `json:"status"` // OK, ZERO_RESULTS, OVER_QUERY_LIMIT, ...
}

// Search implements Adapter.
func (g *GoogleGeocoder) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	params := url.Values{}
	params.Set("address", query)
	params.Set("key", g.apiKey)
	params.Set("region", g.Region)

	var out []Candidate

	err := g.retry.Do(ctx, func() error {
		if err := g.gate.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			"https://maps.googleapis.com/maps/api/geocode/json?"+params.Encode(), nil)
		if err != nil {
			return fmt.Errorf("building google request: %w", err)
		}

		resp, err := g.httpClient.Do(req)
		if err != nil {
			return &GeocodingError{Type: ErrorTypeNetwork, Message: "google request failed", Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return ClassifyHTTPStatus(resp.StatusCode)
		}

		var gmResp googleMapsResponse
		if err := json.NewDecoder(resp.Body).Decode(&gmResp); err != nil {
			return &GeocodingError{Type: ErrorTypeBadPayload, Message: "decoding google response", Err: err}
		}

		switch gmResp.Status {
		case "OK", "ZERO_RESULTS":
		case "OVER_QUERY_LIMIT":
			return &GeocodingError{Type: ErrorTypeQuotaExceeded, Message: "google: OVER_QUERY_LIMIT"}
		default:
			return &GeocodingError{Type: ErrorTypeUnknown, Message: "google status: " + gmResp.Status}
		}

		out = convertGoogle(gmResp, limit)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func convertGoogle(resp googleMapsResponse, limit int) []Candidate {
	out := make([]Candidate, 0, len(resp.Results))

	for _, r := range resp.Results {
		if limit > 0 && len(out) >= limit {
			break
		}

		lat, errLat := r.Geometry.Location.Lat.Float64()
		lng, errLng := r.Geometry.Location.Lng.Float64()

		if errLat != nil || errLng != nil {
			continue
		}

		c := Candidate{
			Lat:          lat,
			Lng:          lng,
			DisplayName:  r.FormattedAddress,
			Provider:     ProviderGoogle,
			LatPrecision: 7,
			LngPrecision: 7,
		}

		for _, comp := range r.AddressComponents {
			for _, t := range comp.Types {
				switch t {
				case "street_number":
					c.HouseNumber = comp.LongName
				case "route":
					c.Road = comp.LongName
				case "locality":
					c.Locality = comp.LongName
				}
			}
		}

		// Map location_type onto the precision vocabulary the scorer
		// understands: a rooftop fix is as good as an OSM address node.
		switch r.Geometry.LocationType {
		case "ROOFTOP":
			c.OSMType = "node"
			c.Class = "building"
		case "RANGE_INTERPOLATED", "GEOMETRIC_CENTER":
			c.OSMType = "way"
		case "APPROXIMATE":
			if c.Road == "" && c.HouseNumber == "" {
				c.Class = "place"
			}
		}

		out = append(out, c)
	}

	return out
}

// GoogleAPIKey resolves the Maps key: the environment wins, then a lookup
// through Application Default Credentials. An empty string means the
// commercial tier stays disabled.
func GoogleAPIKey(ctx context.Context) string {
	if key := os.Getenv("GOOGLE_MAPS_API_KEY"); key != "" {
		return key
	}

	key, err := apiKeyFromADC(ctx)
	if err != nil {
		log.Printf("google tier disabled: no GOOGLE_MAPS_API_KEY and ADC lookup failed: %v", err)

		return ""
	}

	return key
}

func apiKeyFromADC(ctx context.Context) (string, error) {
	creds, err := google.FindDefaultCredentials(ctx, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return "", fmt.Errorf("finding default credentials: %w", err)
	}

	projectID := creds.ProjectID
	if projectID == "" {
		projectID = os.Getenv("GOOGLE_CLOUD_PROJECT")
	}

	if projectID == "" {
		return "", errors.New("no project ID in credentials or GOOGLE_CLOUD_PROJECT")
	}

	client, err := apikeys.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("creating apikeys client: %w", err)
	}
	defer client.Close()

	displayName := os.Getenv("MEDGEO_GOOGLE_KEY_NAME")
	if displayName == "" {
		displayName = "MedGeo Geocoding Key"
	}

	it := client.ListKeys(ctx, &apikeyspb.ListKeysRequest{
		Parent: fmt.Sprintf("projects/%s/locations/global", projectID),
	})

	for {
		key, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}

		if err != nil {
			return "", fmt.Errorf("listing keys: %w", err)
		}

		if key.DisplayName != displayName {
			continue
		}

		// ListKeys redacts the secret; GetKeyString returns it.
		resp, err := client.GetKeyString(ctx, &apikeyspb.GetKeyStringRequest{Name: key.Name})
		if err != nil {
			return "", fmt.Errorf("getting key string: %w", err)
		}

		if resp.KeyString == "" {
			return "", fmt.Errorf("key %q found but the key string is empty", displayName)
		}

		return resp.KeyString, nil
	}

	return "", fmt.Errorf("key with display name %q not found in project %s", displayName, projectID)
}
