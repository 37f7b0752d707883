// Package partition materializes a normalized table as year-partitioned
// Parquet blobs under the clean store.
//
// The path shape <endpoint>/year=<Y>/data.parquet is load-bearing:
// downstream engines glob on the year=* directories. Each write is a
// full overwrite of that exact path; partitions from different raw
// objects are never merged here (documented last-write-wins limitation,
// reconciled by downstream readers).
package partition

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/parquet-go/parquet-go"

	"healthlake/internal/blob"
	"healthlake/internal/table"
)

const contentType = "application/parquet"

// Writer groups rows by year and writes one Parquet object per group.
type Writer struct {
	clean blob.Store
}

func NewWriter(clean blob.Store) *Writer {
	return &Writer{clean: clean}
}

// Key returns the clean-store key for one partition.
func Key(endpoint string, year int) string {
	return fmt.Sprintf("%s/year=%d/data.parquet", endpoint, year)
}

// Write partitions tbl by its year column and writes each group.
// Returns the number of partitions written. Years are processed in
// ascending order so repeated runs write in a deterministic sequence.
func (w *Writer) Write(ctx context.Context, endpoint string, tbl *table.Table) (int, error) {
	yearIx := tbl.Col("year")
	if yearIx < 0 {
		return 0, fmt.Errorf("partition: table for %s has no year column", endpoint)
	}

	groups := map[int][][]any{}
	for _, row := range tbl.Rows {
		year, ok := row[yearIx].(int)
		if !ok {
			// Parsers guarantee an int year; anything else is a bug upstream.
			return 0, fmt.Errorf("partition: non-integer year %v (%T)", row[yearIx], row[yearIx])
		}
		groups[year] = append(groups[year], row)
	}

	years := make([]int, 0, len(groups))
	for y := range groups {
		years = append(years, y)
	}
	sort.Ints(years)

	schema := schemaFor(endpoint, tbl)

	written := 0
	for _, year := range years {
		body, err := encode(schema, tbl, groups[year])
		if err != nil {
			return written, fmt.Errorf("partition: encode %s year=%d: %w", endpoint, year, err)
		}
		if err := w.clean.Put(ctx, Key(endpoint, year), body, contentType); err != nil {
			return written, fmt.Errorf("partition: write %s year=%d: %w", endpoint, year, err)
		}
		written++
	}
	return written, nil
}

// schemaFor maps the table's declared column kinds to a Parquet schema.
// Every column is optional: nullability is a per-cell concern and the
// parsers already enforce required fields.
func schemaFor(endpoint string, tbl *table.Table) *parquet.Schema {
	group := parquet.Group{}
	for i, col := range tbl.Columns {
		var node parquet.Node
		switch tbl.Kinds[i] {
		case table.KindInt:
			node = parquet.Int(64)
		case table.KindFloat:
			node = parquet.Leaf(parquet.DoubleType)
		default:
			node = parquet.String()
		}
		group[col] = parquet.Optional(node)
	}
	return parquet.NewSchema(endpoint, group)
}

func encode(schema *parquet.Schema, tbl *table.Table, rows [][]any) ([]byte, error) {
	var buf bytes.Buffer
	pw := parquet.NewGenericWriter[map[string]any](&buf, schema)

	records := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		rec := make(map[string]any, len(tbl.Columns))
		for i, col := range tbl.Columns {
			v := row[i]
			if v == nil {
				continue
			}
			if tbl.Kinds[i] == table.KindInt {
				if iv, ok := v.(int); ok {
					v = int64(iv)
				}
			}
			rec[col] = v
		}
		records = append(records, rec)
	}

	if _, err := pw.Write(records); err != nil {
		return nil, err
	}
	if err := pw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
