// Copyright 2026 The MedGeo Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// The rewrite tables below encode one specific corpus: Bulgarian facility
// addresses as published in the official register. They are deliberately a
// flat, testable table instead of ad-hoc replacements sprinkled through the
// network code.

// interiorDetail matches floor/entrance/apartment/office noise that confuses
// every geocoder.
var interiorDetail = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s+ет\.\s*\d+`),
	regexp.MustCompile(`(?i)\s+етаж\s+\d+`),
	regexp.MustCompile(`(?i)\s+вх\.\s*[А-Яа-я\d]+`),
	regexp.MustCompile(`(?i)\s+ап\.\s*\d+`),
	regexp.MustCompile(`(?i)\s+апартамент\s+\d+`),
	regexp.MustCompile(`(?i)\s+каб\.\s*\d+`),
	regexp.MustCompile(`(?i)\s+кабинет\s*\d*`),
	regexp.MustCompile(`(?i)\s+партер.*$`),
	regexp.MustCompile(`(?i)\s+сутерен.*$`),
}

// typoFixes corrects recurring OCR damage in the source register.
var typoFixes = map[string]string{
	"Боо Божилов":       "Божко Божилов",
	"Боo Божилов":       "Божко Божилов",
	"Христо Смиpненски": "Христо Смирненски",
	"Христо Смирнeнски": "Христо Смирненски",
	"Цаp Симеон":        "Цар Симеон",
	"Цаp Освободител":   "Цар Освободител",
	"пл.пл.":            "пл.",
	"ул.ул.":            "ул.",
	"бул.бул.":          "бул.",
}

// specificFixes rewrites whole known-bad address fragments.
var specificFixes = map[string]string{
	"к.к. Албена МЦ Медика-Албена": "Албена",
	"к.к.Албена МЦ Медика-Албена":  "Албена",
	"парк Кайлъка местност Стражата": "парк Кайлъка",
}

// RE2's \b is ASCII-only and never fires next to Cyrillic letters, so the
// abbreviation patterns anchor on start-of-string or whitespace instead.
var (
	reUl       = regexp.MustCompile(`(^|[\s,])ул\.\s*`)
	reBul      = regexp.MustCompile(`(^|[\s,])бул\.\s*`)
	reBl       = regexp.MustCompile(`(^|[\s,])бл\.\s*`)
	rePl       = regexp.MustCompile(`(^|[\s,])пл\.\s*`)
	reZhk      = regexp.MustCompile(`(?i)ж\.к\.\s*|жк\s+`)
	reBlockNum = regexp.MustCompile(`(?i)(?:^|\s)(?:бл\.|блок)\s*(\d+[А-Яа-я]?)`)
	reSpaces   = regexp.MustCompile(`\s+`)
	reTrailPct = regexp.MustCompile(`[,.]+$`)
	reStuckNum = regexp.MustCompile(`([А-Яа-я])(\d)`)

	// trailing house number: "15", "15А", "23-25", "5/1"
	reHouseNumber = regexp.MustCompile(`(?:^|\s)(\d+[А-Яа-яA-Za-z]?(?:[-/]\d+[А-Яа-яA-Za-z]?)?)\s*$`)
	reStreetPfx   = regexp.MustCompile(`(?i)^(?:ул\.|бул\.|жк|пл\.)\s*`)
	reAfterNumber = regexp.MustCompile(`\s+\d+.*$`)
	reAfterBlock  = regexp.MustCompile(`(?i)\s+бл\..*$`)

	reCityGr   = regexp.MustCompile(`(?i)^ГР\.\s*|^Г[РP]\s+`)
	reCitySelo = regexp.MustCompile(`(?i)^С\.\s*|^СЕЛ[ОO]\s+`)
	reCityKK   = regexp.MustCompile(`(?i)^К\.К\.\s*`)
)

// cityFixes maps register spellings of settlement names to their common form.
var cityFixes = map[string]string{
	"СОФИЯ - ГРАД":        "София",
	"СОФИЯ-ГРАД":          "София",
	"СОФИЯ ГРАД":          "София",
	"ПЛОВДИВ - ГРАД":      "Пловдив",
	"ПЛОВДИВ-ГРАД":        "Пловдив",
	"ВАРНА - ГРАД":        "Варна",
	"ВАРНА-ГРАД":          "Варна",
	"БУРГАС - ГРАД":       "Бургас",
	"БУРГАС-ГРАД":         "Бургас",
	"ДОБРИЧ-ГРАД":         "Добрич",
	"ОБРОЧИЩЕ К.К.АЛБЕНА": "Албена",
	"ОБРОЧИЩЕ АЛБЕНА":     "Албена",
}

// NormalizeAddress cleans a raw street address line for geocoding: strips
// symbols and interior detail, standardizes abbreviations and fixes known
// typos. The house number is kept.
func NormalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}

	for old, repl := range specificFixes {
		addr = strings.ReplaceAll(addr, old, repl)
	}

	addr = strings.ReplaceAll(addr, "№", "")
	addr = strings.ReplaceAll(addr, "No.", "")
	addr = strings.ReplaceAll(addr, "N.", "")

	for _, re := range interiorDetail {
		addr = re.ReplaceAllString(addr, "")
	}

	for old, repl := range typoFixes {
		addr = strings.ReplaceAll(addr, old, repl)
	}

	addr = reZhk.ReplaceAllString(addr, "жк ")
	addr = reUl.ReplaceAllString(addr, "${1}ул. ")
	addr = reBul.ReplaceAllString(addr, "${1}бул. ")
	addr = rePl.ReplaceAllString(addr, "${1}пл. ")
	addr = reBl.ReplaceAllString(addr, "${1}бл. ")

	// "ул. Название123" -> "ул. Название 123"
	addr = reStuckNum.ReplaceAllString(addr, "$1 $2")

	addr = reSpaces.ReplaceAllString(addr, " ")
	addr = reTrailPct.ReplaceAllString(addr, "")

	return strings.TrimSpace(addr)
}

// NormalizeCity cleans a settlement name: strips гр./с./к.к. prefixes,
// resolves compound "-ГРАД" forms and title-cases all-caps input.
func NormalizeCity(city string) string {
	city = strings.TrimSpace(city)
	if city == "" {
		return ""
	}

	upper := strings.ToUpper(reSpaces.ReplaceAllString(city, " "))
	for old, repl := range cityFixes {
		if upper == old || strings.Contains(upper, old) {
			return repl
		}
	}

	city = reCityGr.ReplaceAllString(city, "")
	city = reCitySelo.ReplaceAllString(city, "")
	city = reCityKK.ReplaceAllString(city, "")
	city = reSpaces.ReplaceAllString(city, " ")
	city = strings.TrimSpace(city)

	if isAllUpper(city) && utf8.RuneCountInString(city) > 2 {
		city = titleCase(city)
	}

	return city
}

// ExtractHouseNumber pulls the building number out of an address line.
// Block numbers ("бл. 20") win over a trailing street number.
func ExtractHouseNumber(addr string) string {
	if m := reBlockNum.FindStringSubmatch(addr); m != nil {
		return m[1]
	}

	if m := reHouseNumber.FindStringSubmatch(addr); m != nil {
		return m[1]
	}

	return ""
}

// ExtractStreetName returns the bare street name: no ул./бул. prefix, no
// number, nothing after a block marker.
func ExtractStreetName(addr string) string {
	addr = reStreetPfx.ReplaceAllString(addr, "")
	addr = reAfterBlock.ReplaceAllString(addr, "")
	addr = reAfterNumber.ReplaceAllString(addr, "")

	return strings.TrimSpace(addr)
}

// trimTrailingNumber drops the trailing house number from a street line, for
// the loosened fallback queries.
func trimTrailingNumber(addr string) string {
	return strings.TrimSpace(reHouseNumber.ReplaceAllString(addr, ""))
}

// significantTokens splits a street name into the tokens worth matching on.
// Short tokens (<= 3 runes) are connectives and abbreviations; they match
// everything and validate nothing.
func significantTokens(s string) []string {
	var out []string

	for _, tok := range strings.Fields(s) {
		if utf8.RuneCountInString(tok) > 3 {
			out = append(out, tok)
		}
	}

	return out
}

// digitsOnly strips everything but digits, for loose house-number matching
// ("15А" vs "15", "23-25" vs "2325").
func digitsOnly(s string) string {
	var b strings.Builder

	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	return b.String()
}

func isAllUpper(s string) bool {
	hasLetter := false

	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true

			if !unicode.IsUpper(r) {
				return false
			}
		}
	}

	return hasLetter
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}

	return strings.Join(words, " ")
}
