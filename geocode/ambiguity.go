// Copyright 2026 The MedGeo Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// AmbiguityDetector catches systemic false positives: a backend that answers
// many unrelated queries with the same coordinate (a city centroid, usually)
// or with generically-worded category results. It indexes the coordinates of
// everything accepted so far, including the loaded cache.
type AmbiguityDetector struct {
	// Threshold is the duplicate-cluster size at which a coordinate stops
	// being believable as a distinct address.
	Threshold int
	// MinCityRunes mirrors the scorer's city-name cutoff.
	MinCityRunes int

	clusters map[string]int
}

// NewAmbiguityDetector builds a detector seeded from existing cache entries.
func NewAmbiguityDetector(threshold int, cache *Cache) *AmbiguityDetector {
	d := &AmbiguityDetector{
		Threshold:    threshold,
		MinCityRunes: 4,
		clusters:     make(map[string]int),
	}

	if cache != nil {
		for _, e := range cache.Entries() {
			d.Observe(e.Lat, e.Lng)
		}
	}

	return d
}

// Observe records an accepted coordinate.
func (d *AmbiguityDetector) Observe(lat, lng float64) {
	d.clusters[coordKey(lat, lng)]++
}

// ClusterSize returns how many accepted results share this coordinate.
func (d *AmbiguityDetector) ClusterSize(lat, lng float64) int {
	return d.clusters[coordKey(lat, lng)]
}

// Check flags a scored candidate as ambiguous. The returned reason is empty
// when the candidate is clean.
func (d *AmbiguityDetector) Check(c *ScoredCandidate, q AddressQuery) string {
	if n := d.ClusterSize(c.Lat, c.Lng); n >= d.Threshold {
		return fmt.Sprintf("coordinate shared by %d earlier results", n)
	}

	if IsGenericDisplay(c.DisplayName) {
		return "generic category result"
	}

	if !ValidateCityMatch(&c.Candidate, q.City, d.MinCityRunes) {
		return fmt.Sprintf("display does not mention city %q", q.City)
	}

	return ""
}

// coordKey buckets coordinates at ~1e-6 degree, about 10cm. Two results
// closer than that are the same point for duplicate-counting purposes.
func coordKey(lat, lng float64) string {
	return fmt.Sprintf("%.6f,%.6f", lat, lng)
}

// genericTerms are category words that dominate centroid-style fallback
// results ("Болница", "Medical Center") instead of a concrete place name.
var genericTerms = map[string]bool{
	"болница":      true,
	"мбал":         true,
	"дкц":          true,
	"клиника":      true,
	"поликлиника":  true,
	"медицински":   true,
	"център":       true,
	"здравен":      true,
	"hospital":     true,
	"clinic":       true,
	"medical":      true,
	"center":       true,
	"centre":       true,
	"health":       true,
	"doctors":      true,
}

// IsGenericDisplay reports whether a short display text consists mostly of
// category words. Long display texts carry road and settlement context and
// are never considered generic.
func IsGenericDisplay(display string) bool {
	display = foldText(display)
	if display == "" || utf8.RuneCountInString(display) > 64 {
		return false
	}

	total := 0
	generic := 0

	for _, tok := range strings.FieldsFunc(display, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '"' || r == '-'
	}) {
		if utf8.RuneCountInString(tok) < 3 {
			continue
		}

		total++

		if genericTerms[tok] {
			generic++
		}
	}

	return total > 0 && generic*2 >= total
}

// PruneCache removes entries whose coordinate cluster has reached the
// threshold, plus entries with generic display texts, and returns the
// removed keys so the caller can re-resolve them. This is the recovery path
// after a backend has been feeding the cache centroids.
func (d *AmbiguityDetector) PruneCache(cache *Cache) []string {
	entries := cache.Entries()

	groups := make(map[string][]string, len(entries))
	for key, e := range entries {
		ck := coordKey(e.Lat, e.Lng)
		groups[ck] = append(groups[ck], key)
	}

	doomed := make(map[string]bool)

	for _, keys := range groups {
		if len(keys) >= d.Threshold {
			for _, k := range keys {
				doomed[k] = true
			}
		}
	}

	for key, e := range entries {
		if IsGenericDisplay(e.DisplayName) {
			doomed[key] = true
		}
	}

	removed := make([]string, 0, len(doomed))

	for key := range doomed {
		cache.Delete(key)
		removed = append(removed, key)
	}

	return removed
}
