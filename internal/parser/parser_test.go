package parser

import (
	"testing"

	"healthlake/internal/table"
)

func col(t *testing.T, tbl *table.Table, name string) int {
	t.Helper()
	i := tbl.Col(name)
	if i < 0 {
		t.Fatalf("column %q missing from %v", name, tbl.Columns)
	}
	return i
}

func TestGHO(t *testing.T) {
	t.Parallel()

	payload := []byte(`{
		"value": [
			{"SpatialDim":"NGA","TimeDim":"2021","NumericValue":"52.3","IndicatorCode":"X1"},
			{"SpatialDim":"KEN","TimeDim":2020,"NumericValue":12.5,"IndicatorCode":"X1"},
			{"SpatialDim":"GLOBAL","TimeDim":"2021","NumericValue":"1","IndicatorCode":"X1"},
			{"SpatialDim":"EU","TimeDim":"2021","NumericValue":"1","IndicatorCode":"X1"},
			{"SpatialDim":"BRA","TimeDim":"n/a","NumericValue":"3","IndicatorCode":"X1"},
			{"SpatialDim":"ETH","TimeDim":"2019","NumericValue":"not a number","IndicatorCode":"X1"},
			{"SpatialDim":null,"TimeDim":"2019","NumericValue":"3","IndicatorCode":"X1"}
		]
	}`)

	tbl, err := GHO(payload)
	if err != nil {
		t.Fatalf("GHO: %v", err)
	}

	// NGA, KEN, and ETH survive; aggregates, bad year, null country drop.
	if tbl.Len() != 3 {
		t.Fatalf("rows=%d, want 3: %+v", tbl.Len(), tbl.Rows)
	}

	codeIx := col(t, tbl, "country_code")
	yearIx := col(t, tbl, "year")
	valIx := col(t, tbl, "value")
	indIx := col(t, tbl, "indicator_code")

	for _, row := range tbl.Rows {
		code, ok := row[codeIx].(string)
		if !ok || len(code) != 3 {
			t.Fatalf("country_code=%v, want 3-char string", row[codeIx])
		}
		if _, ok := row[yearIx].(int); !ok {
			t.Fatalf("year=%v (%T), want int", row[yearIx], row[yearIx])
		}
	}

	first := tbl.Rows[0]
	if first[codeIx] != "NGA" || first[yearIx] != 2021 || first[valIx] != 52.3 || first[indIx] != "X1" {
		t.Fatalf("first row=%v", first)
	}

	// ETH has an unparseable value: preserved as null, not dropped.
	last := tbl.Rows[2]
	if last[codeIx] != "ETH" || last[valIx] != nil {
		t.Fatalf("ETH row=%v, want nil value", last)
	}
}

func TestGHOEmptyAndMalformed(t *testing.T) {
	t.Parallel()

	tbl, err := GHO([]byte(`{"value": []}`))
	if err != nil || tbl.Len() != 0 {
		t.Fatalf("empty envelope: rows=%d err=%v, want 0 rows, nil", tbl.Len(), err)
	}

	tbl, err = GHO([]byte(`{}`))
	if err != nil || tbl.Len() != 0 {
		t.Fatalf("missing value key: rows=%d err=%v, want 0 rows, nil", tbl.Len(), err)
	}

	if _, err = GHO([]byte(`{"value": [`)); err == nil {
		t.Fatal("truncated JSON: err=nil, want decode error")
	}
}

func TestWorldBank(t *testing.T) {
	t.Parallel()

	payload := []byte(`[
		{"page":1,"pages":1,"per_page":20000,"total":4},
		[
			{"countryiso3code":"NGA","date":"2020","value":0.38,"indicator":{"id":"SH.MED.BEDS.ZS"}},
			{"countryiso3code":"NGA","date":"2019","value":null,"indicator":{"id":"SH.MED.BEDS.ZS"}},
			{"countryiso3code":"ZH","date":"2020","value":1.2,"indicator":{"id":"SH.MED.BEDS.ZS"}},
			{"countryiso3code":"","date":"2020","value":1.2,"indicator":{"id":"SH.MED.BEDS.ZS"}},
			{"countryiso3code":"KEN","date":"","value":1.2,"indicator":{"id":"SH.MED.BEDS.ZS"}}
		]
	]`)

	tbl, err := WorldBank(payload)
	if err != nil {
		t.Fatalf("WorldBank: %v", err)
	}
	if tbl.Len() != 2 {
		t.Fatalf("rows=%d, want 2: %+v", tbl.Len(), tbl.Rows)
	}

	valIx := col(t, tbl, "value")
	indIx := col(t, tbl, "indicator_id")
	if tbl.Rows[0][valIx] != 0.38 || tbl.Rows[0][indIx] != "SH.MED.BEDS.ZS" {
		t.Fatalf("first row=%v", tbl.Rows[0])
	}
	if tbl.Rows[1][valIx] != nil {
		t.Fatalf("null value not preserved: %v", tbl.Rows[1])
	}
}

func TestWorldBankShortEnvelope(t *testing.T) {
	t.Parallel()

	// Error responses come back as a one-element array.
	tbl, err := WorldBank([]byte(`[{"message":[{"id":"120"}]}]`))
	if err != nil || tbl.Len() != 0 {
		t.Fatalf("short envelope: rows=%d err=%v, want 0 rows, nil", tbl.Len(), err)
	}
}

func TestOutbreaks(t *testing.T) {
	t.Parallel()

	payload := []byte(`{
		"value": [
			{
				"Id": 101,
				"Title": "Cholera – situation in Nigeria",
				"Summary": "<p>Cases &amp; deaths are <b>rising</b>.</p>",
				"PublicationDateAndTime": "2023-02-10T08:00:00Z",
				"ItemDefaultUrl": "/2023-don101"
			},
			{
				"Id": 102,
				"Title": "Update on outbreak",
				"Overview": "No location given.",
				"PublicationDate": "2022-11-03",
				"ItemDefaultUrl": "/2022-don102"
			},
			{
				"Id": 103,
				"Title": "Measles – somewhere",
				"PublicationDateAndTime": "not a date",
				"ItemDefaultUrl": "/don103"
			}
		]
	}`)

	tbl, err := Outbreaks(payload)
	if err != nil {
		t.Fatalf("Outbreaks: %v", err)
	}
	// Record 103 has an unparseable date and is dropped.
	if tbl.Len() != 2 {
		t.Fatalf("rows=%d, want 2: %+v", tbl.Len(), tbl.Rows)
	}

	iso3Ix := col(t, tbl, "country_iso3")
	disIx := col(t, tbl, "disease")
	sumIx := col(t, tbl, "summary")
	yearIx := col(t, tbl, "year")
	pubIx := col(t, tbl, "published_at")

	first := tbl.Rows[0]
	if first[iso3Ix] != "NGA" || first[disIx] != "Cholera" {
		t.Fatalf("first row extraction: %v", first)
	}
	if first[sumIx] != "Cases & deaths are rising." {
		t.Fatalf("summary=%q, want HTML-stripped text", first[sumIx])
	}
	if first[yearIx] != 2023 || first[pubIx] != "2023-02-10" {
		t.Fatalf("date fields: year=%v published_at=%v", first[yearIx], first[pubIx])
	}

	// Failed extraction leaves nulls; the record is kept.
	second := tbl.Rows[1]
	if second[iso3Ix] != nil {
		t.Fatalf("second row country_iso3=%v, want nil", second[iso3Ix])
	}
	if second[yearIx] != 2022 {
		t.Fatalf("second row year=%v", second[yearIx])
	}
}
