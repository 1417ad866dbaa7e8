// Copyright 2026 The MedGeo Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"strings"
	"unicode/utf8"
)

// Scorer assigns a 0-100 confidence score to a raw candidate. The rubric is
// additive/subtractive: a candidate is rewarded for matching the queried
// city, house number and street tokens, and for precision signals, and is
// penalized for signals of a wrong-place or city-centroid result.
type Scorer struct {
	// MinCityRunes excludes short settlement names from the city match and
	// penalty computation; they produce too many false signals either way.
	MinCityRunes int
}

// NewScorer returns a scorer with the default city-name cutoff.
func NewScorer() *Scorer {
	return &Scorer{MinCityRunes: 4}
}

// Score rates one candidate against the query. houseNumber is the number
// extracted from the query street line, empty when the query has none.
func (s *Scorer) Score(c *Candidate, q AddressQuery, houseNumber string) int {
	score := 0
	display := foldText(c.DisplayName)

	score += s.cityScore(c, q.City, display)
	score += houseNumberScore(c, houseNumber, display)
	score += streetScore(c, q.Street, display)

	// Address-field quality: a candidate that carries its own house number
	// and road is an address node, not an area.
	if c.HouseNumber != "" {
		score += 8
	}

	if c.Road != "" {
		score += 7
	}

	score += precisionScore(c)
	score += typeScore(c)

	if score < 0 {
		return 0
	}

	if score > 100 {
		return 100
	}

	return score
}

func (s *Scorer) cityScore(c *Candidate, city, display string) int {
	city = strings.TrimSpace(city)
	if city == "" || utf8.RuneCountInString(city) < s.MinCityRunes {
		return 0
	}

	if c.Locality != "" && cityInText(city, c.Locality) {
		return 30
	}

	if cityInText(city, display) {
		return 20
	}

	// Wrong city is not a neutral signal: long settlement names missing
	// from the result text mean the geocoder wandered off.
	return -30
}

func houseNumberScore(c *Candidate, houseNumber, display string) int {
	if houseNumber == "" {
		return 0
	}

	if c.HouseNumber != "" {
		switch {
		case strings.EqualFold(c.HouseNumber, houseNumber):
			return 40
		case digitsOnly(c.HouseNumber) == digitsOnly(houseNumber):
			return 35
		case strings.Contains(display, strings.ToLower(houseNumber)):
			return 25
		}
	}

	if strings.Contains(display, strings.ToLower(houseNumber)) {
		return 20
	}

	// The query had a number but the candidate lost it.
	return -10
}

func streetScore(c *Candidate, street, display string) int {
	name := ExtractStreetName(street)
	if utf8.RuneCountInString(name) <= 3 {
		return 0
	}

	nameLower := foldText(name)
	road := foldText(c.Road)

	if road != "" && (strings.Contains(road, nameLower) || strings.Contains(nameLower, road)) {
		return 25
	}

	if strings.Contains(display, nameLower) {
		return 15
	}

	matches := 0

	for _, tok := range significantTokens(name) {
		tok = foldText(tok)
		if strings.Contains(display, tok) || strings.Contains(road, tok) {
			matches++
		}
	}

	if got := matches * 7; got < 15 {
		return got
	}

	return 15
}

func precisionScore(c *Candidate) int {
	avg := (c.LatPrecision + c.LngPrecision) / 2

	switch {
	case avg >= 7:
		return 10
	case avg >= 5:
		return 5
	default:
		return 0
	}
}

func typeScore(c *Candidate) int {
	score := 0

	switch c.OSMType {
	case "node": // exact point
		score += 5
	case "way": // building outline
		score += 3
	}

	switch {
	case c.Class == "building" || c.Type == "house":
		score += 5
	case c.Class == "amenity" && isMedicalAmenity(c.Type):
		score += 5
	case c.Class == "place":
		// A bare place result is a city centroid dressed up as an answer.
		score -= 20
	}

	return score
}

func isMedicalAmenity(t string) bool {
	switch t {
	case "hospital", "clinic", "doctors":
		return true
	default:
		return false
	}
}
