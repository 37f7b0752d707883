// Package extract recovers structured fields from free-text outbreak
// titles ("Cholera – situation update – Nigeria"): a country identity
// (name plus ISO alpha-2/alpha-3) and a disease label.
//
// Titles come from a news-style feed with no stable format, so this is
// a deterministic rule cascade, not NLP: an ordered list of strategies
// is tried until one produces a match, and a miss is a valid outcome
// (all fields null), never an error.
package extract

import (
	"regexp"
	"strings"
)

// CountryID is the three-way country identity derived from a title.
type CountryID struct {
	Name string
	ISO2 string
	ISO3 string
}

// maxCandidateLen guards against matching a long descriptive clause as
// if it were a country name.
const maxCandidateLen = 40

// dashes covers the dash-like characters seen in feed titles: ASCII
// hyphen, unicode hyphens, en/em/horizontal-bar dashes, minus sign.
var dashes = regexp.MustCompile("[-‐‑‒–—―−]")

// leadIn strips boilerplate phrases that precede the location in a
// segment ("situation in Nigeria" -> "Nigeria").
var leadIn = regexp.MustCompile(`(?i)^(?:situation in|cases in|outbreak in|reported in)\s+`)

// preposition is the stage-2 fallback: "in|from|reported in" followed by
// a capitalized phrase of 2..40 characters.
var preposition = regexp.MustCompile(`(?:reported in|in|from)\s+([A-Z][A-Za-z .,'-]{1,39})`)

// countryStrategy attempts one extraction approach on a raw title.
type countryStrategy func(title string) (CountryID, bool)

var countryStrategies = []countryStrategy{
	countryFromDashSegments,
	countryFromPreposition,
}

// Country runs the strategy cascade over a title. ok is false when no
// strategy matched; all CountryID fields are then empty.
func Country(title string) (CountryID, bool) {
	for _, strat := range countryStrategies {
		if id, ok := strat(title); ok {
			return id, true
		}
	}
	return CountryID{}, false
}

// countryFromDashSegments splits the title on dash-like characters and
// tries segments right-to-left, since titles conventionally end with the
// location. The first successful lookup wins.
func countryFromDashSegments(title string) (CountryID, bool) {
	segs := dashes.Split(title, -1)
	for i := len(segs) - 1; i >= 0; i-- {
		cand := strings.TrimSpace(segs[i])
		cand = leadIn.ReplaceAllString(cand, "")
		if id, ok := lookupCountry(cand); ok {
			return id, true
		}
	}
	return CountryID{}, false
}

// countryFromPreposition searches the whole title for a preposition
// followed by a capitalized phrase and attempts the same lookup.
func countryFromPreposition(title string) (CountryID, bool) {
	for _, m := range preposition.FindAllStringSubmatch(title, -1) {
		cand := strings.TrimSpace(m[1])
		if id, ok := lookupCountry(cand); ok {
			return id, true
		}
		// The capture is greedy to the character-class limit; a trailing
		// clause after punctuation can hide a clean match.
		if cut := strings.IndexAny(cand, ",.:;("); cut > 0 {
			if id, ok := lookupCountry(strings.TrimSpace(cand[:cut])); ok {
				return id, true
			}
		}
	}
	return CountryID{}, false
}

// diseaseTrailing removes trailing boilerplate from the first dash
// segment ("Cholera situation update" -> "Cholera").
var diseaseTrailing = regexp.MustCompile(`(?i)(?:^|\s+)(?:situation|update[sd]?|cases?)\b.*$`)

// Disease derives the disease label: the first dash-delimited segment
// with trailing boilerplate stripped, used verbatim. ok is false when
// nothing is left after stripping.
func Disease(title string) (string, bool) {
	seg := dashes.Split(title, 2)[0]
	seg = strings.TrimSpace(seg)
	seg = diseaseTrailing.ReplaceAllString(seg, "")
	seg = strings.TrimSpace(strings.Trim(seg, " \t–-"))
	if seg == "" {
		return "", false
	}
	return seg, true
}
