package parser

import (
	"bytes"
	"encoding/json"
	"fmt"

	"healthlake/internal/table"
)

// ghoColumns is the canonical column set for WHO GHO indicator feeds.
var (
	ghoColumns = []string{"country_code", "year", "value", "indicator_code"}
	ghoKinds   = []table.Kind{table.KindString, table.KindInt, table.KindFloat, table.KindString}
)

// GHO parses a WHO Global Health Observatory OData envelope:
//
//	{"value": [{"SpatialDim": "NGA", "TimeDim": "2021",
//	            "NumericValue": "52.3", "IndicatorCode": "X1"}, ...]}
//
// Coercion per the shared tabular contract; SpatialDim values that are
// not exactly 3 characters (regional aggregates, malformed codes) drop
// the row.
func GHO(data []byte) (*table.Table, error) {
	var envelope struct {
		Value []map[string]any `json:"value"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&envelope); err != nil {
		return nil, fmt.Errorf("gho: decode: %w", err)
	}

	t := table.New(ghoColumns, ghoKinds)
	for _, rec := range envelope.Value {
		year, ok := toYear(rec["TimeDim"])
		if !ok {
			continue
		}
		code := asString(rec["SpatialDim"])
		if len(code) != 3 {
			continue
		}
		t.Append(
			code,
			year,
			nullableFloat(toFloat(rec["NumericValue"])),
			nullableString(asString(rec["IndicatorCode"])),
		)
	}
	return t, nil
}
