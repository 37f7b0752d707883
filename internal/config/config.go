// Package config defines the lake's runtime configuration: one JSON
// document selecting the execution mode and parameterizing both
// environments. Environment variables in string values are expanded at
// load time, so the same file works across deployments.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Modes. The mode is the single switch between the local filesystem
// environment and the cloud object-store environment.
const (
	ModeLocal = "local"
	ModeCloud = "cloud"
)

// Config is the root configuration document.
type Config struct {
	// Job is the logical job name for metrics tagging.
	Job string `json:"job"`

	Mode string `json:"mode"`

	Local Local `json:"local"`
	Cloud Cloud `json:"cloud"`

	Query  Query  `json:"query"`
	RunLog RunLog `json:"runlog"`
}

// Local parameterizes mode "local".
type Local struct {
	RawDir      string `json:"raw_dir"`
	CleanDir    string `json:"clean_dir"`
	EvidenceDir string `json:"evidence_dir"`
}

// Cloud parameterizes mode "cloud".
type Cloud struct {
	Region string `json:"region"`

	RawBucket   string `json:"raw_bucket"`
	RawPrefix   string `json:"raw_prefix"`
	CleanBucket string `json:"clean_bucket"`
	CleanPrefix string `json:"clean_prefix"`

	EvidenceBucket string `json:"evidence_bucket"`
	EvidencePrefix string `json:"evidence_prefix"`

	Athena Athena `json:"athena"`
}

// Athena parameterizes the managed query engine.
type Athena struct {
	Database       string `json:"database"`
	WorkGroup      string `json:"workgroup"`
	OutputLocation string `json:"output_location"`
}

// Query controls the analytics run.
type Query struct {
	SQLDir string `json:"sql_dir"`

	// Export toggles default to true when omitted.
	ExportJSON *bool `json:"export_json"`
	ExportCSV  *bool `json:"export_csv"`
}

func (q Query) JSONEnabled() bool { return q.ExportJSON == nil || *q.ExportJSON }
func (q Query) CSVEnabled() bool  { return q.ExportCSV == nil || *q.ExportCSV }

// RunLog configures the local run ledger. An empty path disables it.
type RunLog struct {
	Path string `json:"path"`
}

// Load reads and decodes a config file. ${VAR} references anywhere in
// the document are expanded from the environment before decoding.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal([]byte(os.ExpandEnv(string(raw))), &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}

	if cfg.Mode == "" {
		cfg.Mode = ModeLocal
	}
	return cfg, nil
}

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding, with a JSON-ish path to the field.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

// Validate checks the config for structural problems. Errors make the
// config unusable; warnings flag likely misconfiguration.
func Validate(cfg Config) []Issue {
	var issues []Issue
	errf := func(path, format string, a ...any) {
		issues = append(issues, Issue{SeverityError, path, fmt.Sprintf(format, a...)})
	}
	warnf := func(path, format string, a ...any) {
		issues = append(issues, Issue{SeverityWarning, path, fmt.Sprintf(format, a...)})
	}

	switch cfg.Mode {
	case ModeLocal:
		if cfg.Local.RawDir == "" {
			errf("local.raw_dir", "required in local mode")
		}
		if cfg.Local.CleanDir == "" {
			errf("local.clean_dir", "required in local mode")
		}
		if cfg.Local.EvidenceDir == "" {
			warnf("local.evidence_dir", "empty; query evidence export will fail")
		}

	case ModeCloud:
		if cfg.Cloud.Region == "" {
			errf("cloud.region", "required in cloud mode")
		}
		if cfg.Cloud.RawBucket == "" {
			errf("cloud.raw_bucket", "required in cloud mode")
		}
		if cfg.Cloud.CleanBucket == "" {
			errf("cloud.clean_bucket", "required in cloud mode")
		}
		if cfg.Cloud.Athena.Database == "" {
			errf("cloud.athena.database", "required in cloud mode")
		}
		if cfg.Cloud.Athena.OutputLocation == "" {
			errf("cloud.athena.output_location", "required in cloud mode")
		}

	default:
		errf("mode", "unknown mode %q (want %q or %q)", cfg.Mode, ModeLocal, ModeCloud)
	}

	if cfg.Query.SQLDir == "" {
		warnf("query.sql_dir", "empty; analytics run will have no queries")
	}
	if !cfg.Query.JSONEnabled() && !cfg.Query.CSVEnabled() {
		warnf("query", "both JSON and CSV exports disabled")
	}

	return issues
}

// HasError reports whether any issue is an error.
func HasError(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}
