// Copyright 2026 The MedGeo Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// cityTranslit maps Bulgarian settlement names to the Latin form the free
// geocoders return in display texts. Validation needs both directions: a
// Cyrillic query must accept a Latin display and vice versa.
var cityTranslit = map[string]string{
	"софия":         "sofia",
	"пловдив":       "plovdiv",
	"варна":         "varna",
	"бургас":        "burgas",
	"русе":          "ruse",
	"стара загора":  "stara zagora",
	"плевен":        "pleven",
	"сливен":        "sliven",
	"добрич":        "dobrich",
	"шумен":         "shumen",
	"хасково":       "haskovo",
	"враца":         "vratsa",
	"велико търново": "veliko tarnovo",
	"габрово":       "gabrovo",
	"благоевград":   "blagoevgrad",
	"видин":         "vidin",
	"кърджали":      "kardzhali",
	"кюстендил":     "kyustendil",
	"монтана":       "montana",
	"пазарджик":     "pazardzhik",
	"перник":        "pernik",
	"разград":       "razgrad",
	"силистра":      "silistra",
	"смолян":        "smolyan",
	"търговище":     "targovishte",
	"ямбол":         "yambol",
	"ловеч":         "lovech",
	"албена":        "albena",
	"балчик":        "balchik",
	"казанлък":      "kazanlak",
	"димитровград":  "dimitrovgrad",
	"асеновград":    "asenovgrad",
	"горна оряховица": "gorna oryahovitsa",
	"дупница":       "dupnitsa",
	"свищов":        "svishtov",
	"петрич":        "petrich",
	"сандански":     "sandanski",
	"банкя":         "bankya",
}

var cityTranslitReverse = func() map[string]string {
	m := make(map[string]string, len(cityTranslit))
	for cyr, lat := range cityTranslit {
		m[lat] = cyr
	}

	return m
}()

// foldText lowercases, trims and strips combining marks so Latin display
// texts with accents compare cleanly.
func foldText(s string) string {
	s, _, _ = transform.String(
		transform.Chain(
			norm.NFD,
			runes.Remove(runes.In(unicode.Mn)),
			norm.NFC,
		),
		strings.TrimSpace(strings.ToLower(s)),
	)

	return s
}

// cityInText reports whether text mentions the given settlement, in either
// script. The transliteration table is consulted before giving up.
func cityInText(city, text string) bool {
	city = foldText(city)
	text = foldText(text)

	if city == "" || text == "" {
		return false
	}

	if strings.Contains(text, city) {
		return true
	}

	if lat, ok := cityTranslit[city]; ok && strings.Contains(text, lat) {
		return true
	}

	if cyr, ok := cityTranslitReverse[city]; ok && strings.Contains(text, cyr) {
		return true
	}

	return false
}

// ValidateCityMatch checks that a candidate belongs to the queried
// settlement. Names shorter than minRunes are too ambiguous to validate and
// are treated as a pass, per the engine's acceptance policy.
func ValidateCityMatch(c *Candidate, city string, minRunes int) bool {
	city = strings.TrimSpace(city)
	if city == "" || utf8.RuneCountInString(city) < minRunes {
		return true
	}

	if c.Locality != "" && cityInText(city, c.Locality) {
		return true
	}

	return cityInText(city, c.DisplayName)
}
