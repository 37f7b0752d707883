// Command ingest fetches the upstream public-health datasets and
// stores the unmodified payloads as raw objects. Each run writes new
// timestamped keys; the transform step decides what actually changed.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"healthlake/internal/config"
	"healthlake/internal/ingest"
	"healthlake/internal/lake"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "configs/lake.json", "lake config JSON path")
	only := flag.String("only", "", "ingest a single named dataset")
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

	ctx := context.Background()
	env, err := lake.New(ctx, cfg, log.Default())
	if err != nil {
		fatalf("%v", err)
	}

	endpoints := ingest.DefaultEndpoints
	if *only != "" {
		endpoints = nil
		for _, ep := range ingest.DefaultEndpoints {
			if ep.Name == *only {
				endpoints = []ingest.Endpoint{ep}
			}
		}
		if endpoints == nil {
			fatalf("unknown dataset %q", *only)
		}
	}

	f := &ingest.Fetcher{Raw: env.Raw}
	results := f.IngestAll(ctx, endpoints)

	out, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		fatalf("encode results: %v", err)
	}
	fmt.Println(string(out))

	for _, r := range results {
		if r.Err != "" {
			os.Exit(1)
		}
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
