// Package query runs analytical SQL against the clean partitions of
// the lake and exports each result set to an evidence sink.
//
// Two engines implement the same contract: an embedded DuckDB database
// reading local parquet partitions, and AWS Athena querying the same
// partitions in S3. The runner is engine-agnostic; queries are written
// in Athena's dialect and each engine prepares the text for itself.
package query

import "context"

// Engine executes one SQL query at a time against registered datasets.
//
// When to use: construct exactly one engine per run based on execution
// mode and hand it to Runner. Engines are not safe for concurrent use.
//
// Errors: Execute returns an error when the query fails; the runner
// treats that as fatal for the query, not for the run.
type Engine interface {
	// Name identifies the engine in logs and run metrics.
	Name() string

	// Prepare rewrites query text for this engine's dialect. The
	// returned text is what Execute should be given.
	Prepare(sql string) string

	// Execute runs one query. name is the query's logical name and is
	// used only for diagnostics.
	Execute(ctx context.Context, name, sql string) (*Result, error)

	Close() error
}

// Result is one query's materialized result set. Values are plain Go
// scalars (string, int64, float64, bool) or nil for SQL NULL.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Records converts the result to one map per row, for JSON export.
func (r *Result) Records() []map[string]any {
	out := make([]map[string]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		rec := make(map[string]any, len(r.Columns))
		for i, col := range r.Columns {
			if i < len(row) {
				rec[col] = row[i]
			} else {
				rec[col] = nil
			}
		}
		out = append(out, rec)
	}
	return out
}
