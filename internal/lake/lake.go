// Package lake builds the execution environment from configuration:
// the raw, clean, and evidence stores plus the query engine, all
// selected once by the mode switch. Components below this package
// never branch on mode.
package lake

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/athena"

	"healthlake/internal/blob"
	"healthlake/internal/config"
	"healthlake/internal/query"
)

// Environment is the resolved set of collaborators for one mode.
type Environment struct {
	Raw      blob.Store
	Clean    blob.Store
	Evidence blob.Store

	cfg config.Config
	log *log.Logger
}

// New constructs the stores for cfg.Mode. Validate the config first;
// New assumes required fields are present.
func New(ctx context.Context, cfg config.Config, logger *log.Logger) (*Environment, error) {
	if logger == nil {
		logger = log.Default()
	}
	env := &Environment{cfg: cfg, log: logger}

	var rawCfg, cleanCfg, evidenceCfg blob.Config
	switch cfg.Mode {
	case config.ModeLocal:
		rawCfg = blob.Config{Kind: "fs", Root: cfg.Local.RawDir}
		cleanCfg = blob.Config{Kind: "fs", Root: cfg.Local.CleanDir}
		evidenceCfg = blob.Config{Kind: "fs", Root: cfg.Local.EvidenceDir}

	case config.ModeCloud:
		c := cfg.Cloud
		rawCfg = blob.Config{Kind: "s3", Region: c.Region, Bucket: c.RawBucket, Prefix: c.RawPrefix}
		cleanCfg = blob.Config{Kind: "s3", Region: c.Region, Bucket: c.CleanBucket, Prefix: c.CleanPrefix}
		evidenceCfg = blob.Config{Kind: "s3", Region: c.Region, Bucket: c.EvidenceBucket, Prefix: c.EvidencePrefix}

	default:
		return nil, fmt.Errorf("lake: unknown mode %q", cfg.Mode)
	}

	var err error
	if env.Raw, err = blob.New(ctx, rawCfg); err != nil {
		return nil, fmt.Errorf("lake: raw store: %w", err)
	}
	if env.Clean, err = blob.New(ctx, cleanCfg); err != nil {
		return nil, fmt.Errorf("lake: clean store: %w", err)
	}
	if env.Evidence, err = blob.New(ctx, evidenceCfg); err != nil {
		return nil, fmt.Errorf("lake: evidence store: %w", err)
	}

	logger.Printf("environment ready: mode=%s", cfg.Mode)
	return env, nil
}

// NewEngine constructs the query engine for the environment's mode:
// embedded DuckDB over the local clean directory, or Athena over the
// cloud clean bucket.
func (e *Environment) NewEngine(ctx context.Context) (query.Engine, error) {
	switch e.cfg.Mode {
	case config.ModeLocal:
		return query.OpenDuckDB(ctx, e.cfg.Local.CleanDir, e.log)

	case config.ModeCloud:
		sess, err := session.NewSession(&aws.Config{Region: aws.String(e.cfg.Cloud.Region)})
		if err != nil {
			return nil, fmt.Errorf("lake: aws session: %w", err)
		}
		return query.NewAthena(athena.New(sess), query.AthenaOptions{
			Database:       e.cfg.Cloud.Athena.Database,
			WorkGroup:      e.cfg.Cloud.Athena.WorkGroup,
			OutputLocation: e.cfg.Cloud.Athena.OutputLocation,
			CleanBucket:    e.cfg.Cloud.CleanBucket,
		}, e.log), nil

	default:
		return nil, fmt.Errorf("lake: unknown mode %q", e.cfg.Mode)
	}
}
