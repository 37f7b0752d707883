package extract

import "testing"

func TestCountryFromTitles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		title    string
		wantISO3 string
		wantOK   bool
	}{
		{
			name:     "dash_segment_with_lead_in",
			title:    "Cholera – situation in Nigeria",
			wantISO3: "NGA",
			wantOK:   true,
		},
		{
			name:     "bare_trailing_segment",
			title:    "Middle East respiratory syndrome coronavirus (MERS-CoV) – Saudi Arabia",
			wantISO3: "SAU",
			wantOK:   true,
		},
		{
			name:     "rightmost_segment_wins",
			title:    "Ebola – Guinea – Liberia",
			wantISO3: "LBR",
			wantOK:   true,
		},
		{
			name:     "outbreak_in_lead_in",
			title:    "Yellow fever – outbreak in Brazil",
			wantISO3: "BRA",
			wantOK:   true,
		},
		{
			name:     "ascii_hyphen",
			title:    "Measles - Sudan",
			wantISO3: "SDN",
			wantOK:   true,
		},
		{
			name:     "preposition_fallback_no_dash",
			title:    "Update on cholera cases reported in Bangladesh",
			wantISO3: "BGD",
			wantOK:   true,
		},
		{
			name:   "no_match_is_not_an_error",
			title:  "Update on outbreak",
			wantOK: false,
		},
		{
			name:   "empty_title",
			title:  "",
			wantOK: false,
		},
		{
			name: "overlong_candidate_rejected",
			// The trailing segment exceeds 40 characters so it must not be
			// considered, even though it mentions a country.
			title:  "Cholera – a long descriptive clause mentioning Nigeria among several other things entirely",
			wantOK: false,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			id, ok := Country(tc.title)
			if ok != tc.wantOK {
				t.Fatalf("Country(%q): ok=%v, want %v (id=%+v)", tc.title, ok, tc.wantOK, id)
			}
			if !tc.wantOK {
				if id != (CountryID{}) {
					t.Fatalf("Country(%q): id=%+v, want zero value on miss", tc.title, id)
				}
				return
			}
			if id.ISO3 != tc.wantISO3 {
				t.Fatalf("Country(%q): ISO3=%q, want %q", tc.title, id.ISO3, tc.wantISO3)
			}
			if len(id.ISO2) != 2 {
				t.Fatalf("Country(%q): ISO2=%q, want 2 characters", tc.title, id.ISO2)
			}
			if id.Name == "" {
				t.Fatalf("Country(%q): empty Name", tc.title)
			}
		})
	}
}

func TestCountryIsDeterministic(t *testing.T) {
	t.Parallel()

	first, ok1 := Country("Cholera – situation in Nigeria")
	second, ok2 := Country("Cholera – situation in Nigeria")
	if !ok1 || !ok2 || first != second {
		t.Fatalf("repeated extraction differs: %+v/%v vs %+v/%v", first, ok1, second, ok2)
	}
}

func TestDisease(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		title  string
		want   string
		wantOK bool
	}{
		{"plain", "Cholera – Nigeria", "Cholera", true},
		{"strips_situation", "Cholera situation update – Nigeria", "Cholera", true},
		{"strips_cases", "Measles cases – Sudan", "Measles", true},
		{"multiword_disease", "Middle East respiratory syndrome coronavirus – Oman", "Middle East respiratory syndrome coronavirus", true},
		{"em_dash", "Yellow fever — Brazil", "Yellow fever", true},
		{"empty_after_strip", "Update – Nigeria", "", false},
		{"empty_title", "", "", false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, ok := Disease(tc.title)
			if ok != tc.wantOK || got != tc.want {
				t.Fatalf("Disease(%q)=%q,%v, want %q,%v", tc.title, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestLookupCountryLengthGuard(t *testing.T) {
	t.Parallel()

	long := "the republic with an improbably long ceremonial name"
	if _, ok := lookupCountry(long); ok {
		t.Fatalf("lookupCountry accepted %d-char candidate", len(long))
	}
}
