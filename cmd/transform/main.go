// Command transform runs the raw-to-clean normalization over the raw
// store: every raw object (or the keys given as arguments) is hashed,
// checked against the manifest, parsed, partitioned by year, and
// written as parquet to the clean store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"healthlake/internal/config"
	"healthlake/internal/etl"
	"healthlake/internal/lake"
	"healthlake/internal/manifest"
	"healthlake/internal/metrics"
	"healthlake/internal/metrics/datadog"
	"healthlake/internal/partition"
	"healthlake/internal/runlog"
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

	tr := &etl.Transformer{
		Raw:      env.Raw,
		Manifest: manifest.NewStore(env.Clean),
		Writer:   partition.NewWriter(env.Clean),
	}

	if cfg.RunLog.Path != "" {
		rl, err := runlog.Open(ctx, cfg.RunLog.Path)
		if err != nil {
			log.Printf("run log disabled: %v", err)
		} else {
			defer rl.Close()
			tr.RunLog = rl
		}
	}

	if keys := flag.Args(); len(keys) > 0 {
		for _, k := range keys {
			if _, err := tr.ProcessKey(ctx, k); err != nil {
				log.Fatalf("%v", err)
			}
		}
	} else if err := tr.ProcessAll(ctx); err != nil {
		log.Fatalf("%v", err)
	}

	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

// setupMetrics wires the configured backend and returns its shutdown
// function. Backend selection: flag, then METRICS_BACKEND, then none.
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
