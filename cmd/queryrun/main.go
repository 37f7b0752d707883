// Command queryrun executes every .sql file in the configured query
// directory against the mode's engine (DuckDB locally, Athena in the
// cloud) and writes result sets plus a run-metrics document to the
// evidence sink.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"healthlake/internal/config"
	"healthlake/internal/lake"
	"healthlake/internal/metrics"
	"healthlake/internal/metrics/datadog"
	"healthlake/internal/query"
)

func main() {
	var (
		cfgPath        string
		metricsBackend string
		validate       bool
	)
	flag.StringVar(&cfgPath, "config", "configs/lake.json", "lake config JSON path")
	flag.StringVar(&metricsBackend, "metrics-backend", "", "metrics backend (datadog, none)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}

	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasError(issues) {
		log.Printf("configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	closeMetrics := setupMetrics(metricsBackend, cfg.Job, *verbose)
	defer closeMetrics()

	ctx := context.Background()
	start := time.Now()

	env, err := lake.New(ctx, cfg, log.Default())
	if err != nil {
		fatalf("%v", err)
	}

	engine, err := env.NewEngine(ctx)
	if err != nil {
		fatalf("%v", err)
	}
	defer engine.Close()

	log.Printf("running analytics on %s", engine.Name())

	r := &query.Runner{
		Engine:     engine,
		SQLDir:     cfg.Query.SQLDir,
		Evidence:   env.Evidence,
		ExportJSON: cfg.Query.JSONEnabled(),
		ExportCSV:  cfg.Query.CSVEnabled(),
	}
	if err := r.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}

	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

func setupMetrics(name, job string, verbose bool) func() {
	if name == "" {
		name = os.Getenv("METRICS_BACKEND")
	}

	switch name {
	case "datadog":
		if job == "" {
			job = "healthlake"
		}
		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			JobName: job,
			Tags:    datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS")),
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return func() {}
		}
		log.Printf("metrics: backend=datadog job_name=%v", job)
		metrics.SetBackend(b)
		return func() {
			if err := b.Close(); err != nil {
				log.Printf("metrics: datadog close/flush error: %v", err)
			}
		}

	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", name)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", name)
	}
	return func() {}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
