package parser

import (
	"bytes"
	"encoding/json"
	"fmt"

	"healthlake/internal/table"
)

var (
	wbColumns = []string{"country_code", "year", "value", "indicator_id"}
	wbKinds   = []table.Kind{table.KindString, table.KindInt, table.KindFloat, table.KindString}
)

// WorldBank parses the World Bank indicator API shape: a two-element
// array [paging-metadata, records]. Each record carries
// countryiso3code, date (the year as a string), value, and a nested
// indicator object with the indicator id.
//
// A payload that is not a two-element array (e.g. an API error object
// that still decodes as JSON) yields an empty table.
func WorldBank(data []byte) (*table.Table, error) {
	var root []json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("worldbank: decode: %w", err)
	}

	t := table.New(wbColumns, wbKinds)
	if len(root) < 2 {
		return t, nil
	}

	var records []map[string]any
	rdec := json.NewDecoder(bytes.NewReader(root[1]))
	rdec.UseNumber()
	if err := rdec.Decode(&records); err != nil {
		return nil, fmt.Errorf("worldbank: decode records: %w", err)
	}

	for _, rec := range records {
		year, ok := toYear(rec["date"])
		if !ok {
			continue
		}
		code := asString(rec["countryiso3code"])
		if len(code) != 3 {
			continue
		}

		var indicatorID string
		if ind, ok := rec["indicator"].(map[string]any); ok {
			indicatorID = asString(ind["id"])
		}

		t.Append(
			code,
			year,
			nullableFloat(toFloat(rec["value"])),
			nullableString(indicatorID),
		)
	}
	return t, nil
}
