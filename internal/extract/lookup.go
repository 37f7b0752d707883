package extract

import (
	"strings"
	"unicode"

	"github.com/biter777/countries"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// aliases maps colloquial or short names (lower-cased, accent-folded) to
// the designation the country table resolves. This is the main defense
// against false negatives on common alternate names in feed titles.
var aliases = map[string]string{
	"bolivia (plurinational state of)":      "Bolivia",
	"democratic republic of the congo":      "Congo Democratic Republic",
	"drc":                                   "Congo Democratic Republic",
	"republic of the congo":                 "Congo",
	"ivory coast":                           "Cote d'Ivoire",
	"iran (islamic republic of)":            "Iran",
	"laos":                                  "Lao People's Democratic Republic",
	"north korea":                           "Korea North",
	"democratic people's republic of korea": "Korea North",
	"republic of korea":                     "Korea South",
	"south korea":                           "Korea South",
	"russia":                                "Russian Federation",
	"syria":                                 "Syrian Arab Republic",
	"tanzania":                              "United Republic of Tanzania",
	"united republic of tanzania":           "United Republic of Tanzania",
	"the united kingdom":                    "United Kingdom",
	"uk":                                    "United Kingdom",
	"united states of america":              "United States",
	"usa":                                   "United States",
	"venezuela (bolivarian republic of)":    "Venezuela",
	"vietnam":                               "Viet Nam",
	"turkiye":                               "Turkey",
	"occupied palestinian territory":        "Palestine",
}

var accentFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldAccents strips combining marks so "Côte d'Ivoire" and
// "Cote d'Ivoire" resolve identically.
func foldAccents(s string) string {
	out, _, err := transform.String(accentFold, s)
	if err != nil {
		return s
	}
	return out
}

// lookupCountry resolves a candidate phrase against the alias table and
// the ISO-3166 country table. Candidates longer than maxCandidateLen are
// rejected outright.
func lookupCountry(candidate string) (CountryID, bool) {
	candidate = strings.TrimSpace(strings.Trim(candidate, " \t\"'()[].,:;!?"))
	if candidate == "" || len(candidate) > maxCandidateLen {
		return CountryID{}, false
	}

	folded := foldAccents(candidate)
	name := folded
	if official, ok := aliases[strings.ToLower(folded)]; ok {
		name = official
	}

	cc := countries.ByName(name)
	if cc == countries.Unknown {
		cc = countries.ByName(candidate)
	}
	if cc == countries.Unknown {
		return CountryID{}, false
	}

	return CountryID{
		Name: cc.String(),
		ISO2: cc.Alpha2(),
		ISO3: cc.Alpha3(),
	}, true
}
