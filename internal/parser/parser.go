// Package parser turns raw payload bytes into canonical tables.
//
// Each source family has one parser with a fixed column set. The two
// tabular families (WHO GHO, World Bank) share the same contract:
//
//	country_code  ISO alpha-3, exactly 3 characters, rows failing this
//	              are dropped (this also rejects regional aggregates,
//	              which use non-ISO codes of other lengths)
//	year          integer, required; unparseable year drops the row
//	value         float, nullable; unparseable value becomes null
//
// plus one source-specific identifier column. The outbreak family has a
// different, mostly best-effort contract (see outbreaks.go).
//
// A payload that decodes but matches no records yields an empty table,
// which the orchestrator records as processed-with-zero-rows. Bytes
// that do not decode at all are an error.
package parser

import "healthlake/internal/table"

// Func is a format parser: decoded payload bytes in, canonical table out.
type Func func(data []byte) (*table.Table, error)
