// Copyright 2026 The MedGeo Authors
// SPDX-License-Identifier: Apache-2.0

// Package geocode resolves Bulgarian postal addresses into coordinates using
// a cascade of external geocoding backends with candidate scoring, ambiguity
// detection and a durable resolution cache.
package geocode

import (
	"context"
	"errors"
	"strings"

	"github.com/medgeo-bg/medgeo/spatial"
)

// Status classifies the outcome of one resolution.
type Status int

const (
	// StatusFailed means every tier was exhausted without an acceptable candidate.
	StatusFailed Status = iota
	// StatusResolved means an address-level candidate was accepted.
	StatusResolved
	// StatusCityLevel means only a settlement-level fix was found.
	StatusCityLevel
)

func (s Status) String() string {
	switch s {
	case StatusResolved:
		return "resolved"
	case StatusCityLevel:
		return "city_level"
	default:
		return "failed"
	}
}

// AddressQuery is one normalized address to resolve. Values are expected to
// have passed through NormalizeAddress / NormalizeCity already.
type AddressQuery struct {
	Street   string // street address line, may include the house number
	City     string // settlement
	Region   string // oblast
	NameHint string // facility name, used by the POI tier
}

// NewAddressQuery builds a query. At least one of street or city must be
// non-empty; anything less is unresolvable by every backend.
func NewAddressQuery(street, city, region, nameHint string) (AddressQuery, error) {
	street = strings.TrimSpace(street)
	city = strings.TrimSpace(city)

	if street == "" && city == "" {
		return AddressQuery{}, errors.New("address query needs a street or a city")
	}

	return AddressQuery{
		Street:   street,
		City:     city,
		Region:   strings.TrimSpace(region),
		NameHint: strings.TrimSpace(nameHint),
	}, nil
}

// CacheKey is the stable identity of the query in the resolution cache.
func (q AddressQuery) CacheKey() string {
	return q.Street + "||" + q.City + "||" + q.Region
}

// Candidate is one raw result from a provider, before scoring.
type Candidate struct {
	Lat         float64
	Lng         float64
	DisplayName string
	Provider    string

	// Address components as exposed by the backend, empty when absent.
	HouseNumber string
	Road        string
	Locality    string // city/town/village field

	// Precision indicators.
	OSMType      string // node, way, relation
	Class        string // building, amenity, place, ...
	Type         string // house, hospital, clinic, ...
	LatPrecision int    // fractional digits of the raw latitude
	LngPrecision int
}

// Point returns the candidate coordinate.
func (c *Candidate) Point() spatial.Point {
	return spatial.Point{Lat: c.Lat, Lng: c.Lng}
}

// ScoredCandidate is a Candidate after the scorer and the acceptance gate.
type ScoredCandidate struct {
	Candidate

	Score        int
	RejectReason string // empty when the candidate passed the gate
}

// ResolutionResult is the final outcome for one query. Point is non-nil iff
// Status != StatusFailed.
type ResolutionResult struct {
	Status      Status
	Point       *spatial.Point
	Provider    string
	DisplayName string
	Confidence  int // the 0-100 score of the accepted candidate
}

// Adapter wraps one external geocoding backend behind a free-text search.
// Implementations retry transient failures internally; a returned error means
// the attempt is exhausted and the caller should treat it as zero candidates.
type Adapter interface {
	ID() string
	Search(ctx context.Context, query string, limit int) ([]Candidate, error)
}

// StructuredAdapter is an Adapter that also supports discrete-field queries.
type StructuredAdapter interface {
	Adapter
	SearchStructured(ctx context.Context, street, city, houseNumber string, limit int) ([]Candidate, error)
}

// POIAdapter searches for a named point of interest within a settlement.
type POIAdapter interface {
	ID() string
	SearchPOI(ctx context.Context, name, city string) ([]Candidate, error)
}
