// Copyright 2026 The MedGeo Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import "testing"

func testQuery(t *testing.T, street, city string) AddressQuery {
	t.Helper()

	q, err := NewAddressQuery(street, city, "", "")
	if err != nil {
		t.Fatalf("NewAddressQuery: %v", err)
	}

	return q
}

func TestScoreExactAddressHit(t *testing.T) {
	scorer := NewScorer()
	q := testQuery(t, "ул. Иван Вазов 15", "София")

	c := Candidate{
		Lat:          42.6952,
		Lng:          23.3233,
		DisplayName:  "15, улица Иван Вазов, София, България",
		HouseNumber:  "15",
		Road:         "улица Иван Вазов",
		Locality:     "София",
		OSMType:      "node",
		Class:        "building",
		LatPrecision: 7,
		LngPrecision: 7,
	}

	if got := scorer.Score(&c, q, "15"); got != 100 {
		t.Errorf("Score() = %d, want 100 for an exact address hit", got)
	}
}

func TestScoreWrongCityIsWorthless(t *testing.T) {
	scorer := NewScorer()
	q := testQuery(t, "ул. Иван Вазов 15", "София")

	c := Candidate{
		DisplayName: "Варна, България",
		Locality:    "Варна",
		Class:       "place",
	}

	if got := scorer.Score(&c, q, "15"); got != 0 {
		t.Errorf("Score() = %d, want 0 for a wrong-city centroid", got)
	}
}

func TestScoreClampsToZero(t *testing.T) {
	scorer := NewScorer()
	q := testQuery(t, "ул. Иван Вазов 15", "София")

	// City miss, number miss and a place-class penalty go well below zero.
	c := Candidate{DisplayName: "Русе, България", Class: "place"}

	if got := scorer.Score(&c, q, "15"); got != 0 {
		t.Errorf("Score() = %d, want clamp at 0", got)
	}
}

func TestScoreHouseNumberLadder(t *testing.T) {
	scorer := NewScorer()
	// No city in the query: the ladder must be visible below the clamp.
	q := testQuery(t, "ул. Шипка 15", "")

	base := Candidate{
		DisplayName: "улица Шипка, София, България",
		Road:        "улица Шипка",
	}

	exact := base
	exact.HouseNumber = "15"

	digits := base
	digits.HouseNumber = "15А"

	missing := base

	exactScore := scorer.Score(&exact, q, "15")
	digitsScore := scorer.Score(&digits, q, "15")
	missingScore := scorer.Score(&missing, q, "15")

	if exactScore <= digitsScore {
		t.Errorf("exact house number (%d) should outscore digit-only match (%d)", exactScore, digitsScore)
	}

	if digitsScore <= missingScore {
		t.Errorf("digit-only match (%d) should outscore missing number (%d)", digitsScore, missingScore)
	}
}

func TestScoreCityLadder(t *testing.T) {
	scorer := NewScorer()
	q := testQuery(t, "ул. Шипка 15", "София")

	locality := Candidate{Locality: "София", DisplayName: "улица Шипка"}
	display := Candidate{DisplayName: "улица Шипка, София"}
	miss := Candidate{DisplayName: "улица Шипка, Варна"}

	locScore := scorer.Score(&locality, q, "")
	dispScore := scorer.Score(&display, q, "")
	missScore := scorer.Score(&miss, q, "")

	if locScore <= dispScore {
		t.Errorf("locality match (%d) should outscore display-only match (%d)", locScore, dispScore)
	}

	if dispScore <= missScore {
		t.Errorf("display match (%d) should outscore city miss (%d)", dispScore, missScore)
	}
}

func TestScoreShortCityIsNeutral(t *testing.T) {
	scorer := NewScorer()
	q := testQuery(t, "ул. Шипка 15", "Бов")

	match := Candidate{Locality: "Бов", DisplayName: "улица Шипка, Бов"}
	miss := Candidate{DisplayName: "улица Шипка, Варна"}

	if a, b := scorer.Score(&match, q, ""), scorer.Score(&miss, q, ""); a != b {
		t.Errorf("short settlement names must not move the score: match=%d miss=%d", a, b)
	}
}

func TestScorePrecisionAndType(t *testing.T) {
	scorer := NewScorer()
	q := testQuery(t, "ул. Шипка 15", "София")

	precise := Candidate{
		Locality:     "София",
		DisplayName:  "улица Шипка, София",
		OSMType:      "node",
		LatPrecision: 7,
		LngPrecision: 7,
	}

	coarse := Candidate{
		Locality:     "София",
		DisplayName:  "улица Шипка, София",
		OSMType:      "way",
		LatPrecision: 3,
		LngPrecision: 3,
	}

	if p, c := scorer.Score(&precise, q, ""), scorer.Score(&coarse, q, ""); p <= c {
		t.Errorf("precise node (%d) should outscore coarse way (%d)", p, c)
	}
}

func TestScoreMedicalAmenityBonus(t *testing.T) {
	scorer := NewScorer()
	q := testQuery(t, "ул. Шипка 15", "София")

	amenity := Candidate{
		Locality:    "София",
		DisplayName: "МБАЛ Света Анна, улица Шипка, София",
		Class:       "amenity",
		Type:        "hospital",
	}

	plain := amenity
	plain.Class = ""
	plain.Type = ""

	if a, p := scorer.Score(&amenity, q, ""), scorer.Score(&plain, q, ""); a <= p {
		t.Errorf("medical amenity (%d) should outscore plain result (%d)", a, p)
	}
}
