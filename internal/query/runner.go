package query

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"healthlake/internal/blob"
	"healthlake/internal/metrics"
)

// Runner executes every .sql file in a directory against one engine
// and writes each result set to the evidence sink. The file stem is
// the result's logical name.
type Runner struct {
	Engine   Engine
	SQLDir   string
	Evidence blob.Store

	ExportJSON bool
	ExportCSV  bool

	Log *log.Logger

	// Now is a clock seam for duration measurement.
	Now func() time.Time
}

// QueryMetric is one entry of the aggregate run-metrics document.
type QueryMetric struct {
	Query      string          `json:"query"`
	Rows       int             `json:"rows"`
	DurationMS int64           `json:"duration_ms"`
	Outputs    []string        `json:"outputs"`
	Formats    map[string]bool `json:"formats"`
	Translated bool            `json:"translated"`
}

const metricsKey = "_query_metrics.json"

// Run loads queries, executes them in lexical order, and exports
// results plus the aggregate metrics document.
//
// Errors: a missing or empty SQL directory aborts the run. A single
// query's failure is logged and skipped; the run continues and such
// failures appear only in logs, not in the metrics document.
func (r *Runner) Run(ctx context.Context) error {
	logger := r.Log
	if logger == nil {
		logger = log.Default()
	}
	now := r.Now
	if now == nil {
		now = time.Now
	}

	if !r.ExportJSON && !r.ExportCSV {
		logger.Printf("warning: both JSON and CSV exports are disabled")
	}

	files, err := listSQLFiles(r.SQLDir)
	if err != nil {
		return err
	}
	logger.Printf("found %d sql files in %s", len(files), r.SQLDir)

	var runMetrics []QueryMetric

	for _, path := range files {
		name := strings.TrimSuffix(filepath.Base(path), ".sql")

		raw, err := os.ReadFile(path)
		if err != nil {
			logger.Printf("query %s: read failed: %v", name, err)
			continue
		}
		original := strings.TrimSpace(string(raw))
		prepared := r.Engine.Prepare(original)

		start := now()
		res, err := r.Engine.Execute(ctx, name, prepared)
		durationMS := now().Sub(start).Milliseconds()

		if err != nil {
			logger.Printf("query %s failed on %s: %v", name, r.Engine.Name(), err)
			continue
		}

		metrics.ObserveHistogram("query_duration_ms", float64(durationMS), metrics.Labels{"query": name})

		outputs, err := r.export(ctx, name, res)
		if err != nil {
			logger.Printf("query %s: export failed: %v", name, err)
			continue
		}

		runMetrics = append(runMetrics, QueryMetric{
			Query:      name,
			Rows:       len(res.Rows),
			DurationMS: durationMS,
			Outputs:    outputs,
			Formats:    map[string]bool{"json": r.ExportJSON, "csv": r.ExportCSV},
			Translated: prepared != original,
		})

		logger.Printf("query %s: %d rows (%d ms)", name, len(res.Rows), durationMS)
	}

	body, err := json.MarshalIndent(runMetrics, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run metrics: %w", err)
	}
	if err := r.Evidence.Put(ctx, metricsKey, body, "application/json"); err != nil {
		return fmt.Errorf("write run metrics: %w", err)
	}

	logger.Printf("analytics complete: %d queries executed", len(runMetrics))
	return nil
}

func listSQLFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("sql directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .sql files in %s", dir)
	}
	sort.Strings(files)
	return files, nil
}

func (r *Runner) export(ctx context.Context, name string, res *Result) ([]string, error) {
	var outputs []string

	if r.ExportJSON {
		key := name + ".json"
		body, err := json.MarshalIndent(res.Records(), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
		if err := r.Evidence.Put(ctx, key, body, "application/json"); err != nil {
			return nil, fmt.Errorf("write %s: %w", key, err)
		}
		outputs = append(outputs, key)
	}

	if r.ExportCSV {
		key := name + ".csv"
		body, err := encodeCSV(res)
		if err != nil {
			return nil, fmt.Errorf("encode csv: %w", err)
		}
		if err := r.Evidence.Put(ctx, key, body, "text/csv"); err != nil {
			return nil, fmt.Errorf("write %s: %w", key, err)
		}
		outputs = append(outputs, key)
	}

	return outputs, nil
}

func encodeCSV(res *Result) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(res.Columns); err != nil {
		return nil, err
	}
	record := make([]string, len(res.Columns))
	for _, row := range res.Rows {
		for i := range record {
			if i < len(row) {
				record[i] = formatCSV(row[i])
			} else {
				record[i] = ""
			}
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func formatCSV(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(x)
	}
}
