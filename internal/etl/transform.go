// Package etl orchestrates the raw-to-clean transform: hash the raw
// object, consult the manifest, route to a parser, partition by year,
// write parquet, record the outcome.
package etl

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"healthlake/internal/blob"
	"healthlake/internal/manifest"
	"healthlake/internal/metrics"
	"healthlake/internal/parser"
	"healthlake/internal/partition"
	"healthlake/internal/runlog"
)

// Outcome is the terminal state of one transform invocation.
type Outcome string

const (
	// OutcomeUnchanged: content hash matches the manifest, nothing done.
	OutcomeUnchanged Outcome = "unchanged"

	// OutcomeInvalidPayload: bytes did not decode. The manifest is NOT
	// updated, so a corrected re-fetch will be retried.
	OutcomeInvalidPayload Outcome = "invalid-payload"

	// OutcomeEmptyResult: payload decoded but yielded zero rows. The
	// manifest IS updated so the same content is not retried.
	OutcomeEmptyResult Outcome = "empty-result"

	// OutcomeProcessed: rows were partitioned and written.
	OutcomeProcessed Outcome = "processed"
)

// Route binds a source family to its parser. Routing matches the
// family name as a substring of the raw key.
type Route struct {
	Endpoint string
	Parse    parser.Func
}

// DefaultRoutes covers the six upstream source families. Order is the
// match order; first match wins.
var DefaultRoutes = []Route{
	{"life_expectancy", parser.GHO},
	{"malaria_incidence", parser.GHO},
	{"cholera", parser.GHO},
	{"wb_hospital_beds_per_1000", parser.WorldBank},
	{"wb_physicians_per_1000", parser.WorldBank},
	{"who_outbreaks", parser.Outbreaks},
}

// Transformer executes transforms against injected collaborators.
//
// When to use: construct one per invocation with the environment's raw
// store, manifest, and writer. Not safe for concurrent use on the same
// manifest document.
type Transformer struct {
	Raw      blob.Store
	Manifest *manifest.Store
	Writer   *partition.Writer
	Routes   []Route

	// RunLog, when non-nil, receives one entry per transform outcome.
	RunLog *runlog.Log

	Log *log.Logger
	Now func() time.Time
}

func (t *Transformer) logger() *log.Logger {
	if t.Log != nil {
		return t.Log
	}
	return log.Default()
}

func (t *Transformer) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// ProcessKey routes rawKey to its source family and transforms it.
// A key matching no route is ignored with a log line, not an error.
func (t *Transformer) ProcessKey(ctx context.Context, rawKey string) (bool, error) {
	routes := t.Routes
	if routes == nil {
		routes = DefaultRoutes
	}
	for _, r := range routes {
		if strings.Contains(rawKey, r.Endpoint) {
			return t.TransformRawObject(ctx, rawKey, r.Endpoint, r.Parse)
		}
	}
	t.logger().Printf("no route for raw key %s, ignoring", rawKey)
	return false, nil
}

// ProcessAll transforms every object in the raw store, in key order.
func (t *Transformer) ProcessAll(ctx context.Context) error {
	keys, err := t.Raw.List(ctx, "")
	if err != nil {
		return fmt.Errorf("list raw objects: %w", err)
	}
	for _, k := range keys {
		if _, err := t.ProcessKey(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// TransformRawObject is the per-object state machine. It returns true
// only for OutcomeProcessed.
//
// Errors: storage and manifest failures are invocation-level errors.
// A payload that fails to parse is not: it is logged, counted, and
// skipped so the rest of the batch continues.
func (t *Transformer) TransformRawObject(ctx context.Context, rawKey, endpoint string, parse parser.Func) (bool, error) {
	start := t.now()

	doc, err := t.Manifest.Load(ctx)
	if err != nil {
		return false, err
	}

	body, err := t.Raw.Get(ctx, rawKey)
	if err != nil {
		return false, fmt.Errorf("read raw object %s: %w", rawKey, err)
	}

	sum := sha256.Sum256(body)
	hash := hex.EncodeToString(sum[:])

	if prev, ok := doc.Processed[rawKey]; ok && prev.Hash == hash {
		t.logger().Printf("skipped unchanged: %s", rawKey)
		t.finish(ctx, rawKey, endpoint, OutcomeUnchanged, 0, 0, start)
		return false, nil
	}

	tbl, err := parse(body)
	if err != nil {
		t.logger().Printf("invalid payload %s: %v", rawKey, err)
		t.finish(ctx, rawKey, endpoint, OutcomeInvalidPayload, 0, 0, start)
		return false, nil
	}

	if tbl.Len() == 0 {
		t.logger().Printf("no valid rows parsed: %s", rawKey)
		if err := t.Manifest.Record(ctx, rawKey, hash, 0, 0); err != nil {
			return false, err
		}
		t.finish(ctx, rawKey, endpoint, OutcomeEmptyResult, 0, 0, start)
		return false, nil
	}

	partitions, err := t.Writer.Write(ctx, endpoint, tbl)
	if err != nil {
		return false, fmt.Errorf("write partitions for %s: %w", rawKey, err)
	}
	if err := t.Manifest.Record(ctx, rawKey, hash, tbl.Len(), partitions); err != nil {
		return false, err
	}

	t.logger().Printf("processed %s: %d rows, %d partitions", rawKey, tbl.Len(), partitions)
	t.finish(ctx, rawKey, endpoint, OutcomeProcessed, tbl.Len(), partitions, start)
	return true, nil
}

func (t *Transformer) finish(ctx context.Context, rawKey, endpoint string, outcome Outcome, rows, partitions int, start time.Time) {
	durationMS := t.now().Sub(start).Milliseconds()

	metrics.IncCounter("lake_transform_total", 1, metrics.Labels{
		"endpoint": endpoint,
		"outcome":  string(outcome),
	})
	if outcome == OutcomeProcessed {
		metrics.IncCounter("lake_rows_total", float64(rows), metrics.Labels{"endpoint": endpoint})
		metrics.IncCounter("lake_partitions_total", float64(partitions), metrics.Labels{"endpoint": endpoint})
	}

	if t.RunLog == nil {
		return
	}
	err := t.RunLog.Record(ctx, runlog.Entry{
		RawKey:     rawKey,
		Endpoint:   endpoint,
		Outcome:    string(outcome),
		Rows:       rows,
		Partitions: partitions,
		DurationMS: durationMS,
		At:         start.UTC(),
	})
	if err != nil {
		t.logger().Printf("run log write failed for %s: %v", rawKey, err)
	}
}
