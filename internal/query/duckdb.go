package query

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb"
)

const duckSchema = "lake_db"

// DuckDB is the local execution engine. It opens an in-memory database
// and registers one view per dataset directory under the clean root,
// each reading the year-partitioned parquet files by glob.
type DuckDB struct {
	db  *sql.DB
	log *log.Logger
}

// OpenDuckDB registers every dataset found under cleanDir. A clean root
// with no dataset directories is a structural failure and aborts.
func OpenDuckDB(ctx context.Context, cleanDir string, logger *log.Logger) (*DuckDB, error) {
	if logger == nil {
		logger = log.Default()
	}

	entries, err := os.ReadDir(cleanDir)
	if err != nil {
		return nil, fmt.Errorf("read clean dir %s: %w", cleanDir, err)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	if _, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+duckSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	var registered []string
	for _, e := range entries {
		if !e.IsDir() || e.Name() == "manifest" {
			continue
		}
		name := e.Name()
		glob := filepath.ToSlash(filepath.Join(cleanDir, name, "year=*", "data.parquet"))

		stmt := fmt.Sprintf(
			`CREATE OR REPLACE VIEW %s.%q AS SELECT * FROM read_parquet('%s')`,
			duckSchema, name, glob,
		)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("register dataset %s: %w", name, err)
		}
		logger.Printf("registered dataset %s", name)
		registered = append(registered, name)
	}

	if len(registered) == 0 {
		db.Close()
		return nil, fmt.Errorf("no datasets under %s", cleanDir)
	}
	logger.Printf("registered datasets: %s", strings.Join(registered, ", "))

	return &DuckDB{db: db, log: logger}, nil
}

func (d *DuckDB) Name() string { return "duckdb" }

// Prepare translates Athena SQL to DuckDB's dialect.
func (d *DuckDB) Prepare(sql string) string {
	out := Translate(sql)
	if out != sql {
		d.log.Printf("translated query to duckdb dialect")
	}
	return out
}

func (d *DuckDB) Execute(ctx context.Context, name, query string) (*Result, error) {
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query %s: columns: %w", name, err)
	}

	res := &Result{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("query %s: scan: %w", name, err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	return res, nil
}

func (d *DuckDB) Close() error { return d.db.Close() }

var _ Engine = (*DuckDB)(nil)
