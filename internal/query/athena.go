package query

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/athena"
	"github.com/aws/aws-sdk-go/service/athena/athenaiface"
)

// AthenaOptions configures the managed cloud engine.
type AthenaOptions struct {
	Database       string
	WorkGroup      string
	OutputLocation string

	// CleanBucket substitutes the <CLEAN_BUCKET> placeholder in query
	// text, so the same .sql files work across environments.
	CleanBucket string

	// PollEvery and MaxPolls bound the completion wait. Defaults: 2s
	// between checks, 60 checks (120s total).
	PollEvery time.Duration
	MaxPolls  int
}

// AthenaEngine runs queries through AWS Athena with synchronous polling.
// Query text passes through untranslated; Athena's dialect is the
// source dialect.
type AthenaEngine struct {
	api  athenaiface.AthenaAPI
	opts AthenaOptions
	log  *log.Logger

	sleep func(time.Duration)
}

func NewAthena(api athenaiface.AthenaAPI, opts AthenaOptions, logger *log.Logger) *AthenaEngine {
	if opts.PollEvery <= 0 {
		opts.PollEvery = 2 * time.Second
	}
	if opts.MaxPolls <= 0 {
		opts.MaxPolls = 60
	}
	if opts.WorkGroup == "" {
		opts.WorkGroup = "primary"
	}
	if logger == nil {
		logger = log.Default()
	}
	return &AthenaEngine{api: api, opts: opts, log: logger, sleep: time.Sleep}
}

func (a *AthenaEngine) Name() string { return "athena" }

func (a *AthenaEngine) Prepare(sql string) string {
	if a.opts.CleanBucket == "" {
		return sql
	}
	return strings.ReplaceAll(sql, "<CLEAN_BUCKET>", a.opts.CleanBucket)
}

func (a *AthenaEngine) Execute(ctx context.Context, name, query string) (*Result, error) {
	start, err := a.api.StartQueryExecutionWithContext(ctx, &athena.StartQueryExecutionInput{
		QueryString: aws.String(query),
		QueryExecutionContext: &athena.QueryExecutionContext{
			Database: aws.String(a.opts.Database),
		},
		ResultConfiguration: &athena.ResultConfiguration{
			OutputLocation: aws.String(a.opts.OutputLocation),
		},
		WorkGroup: aws.String(a.opts.WorkGroup),
	})
	if err != nil {
		return nil, fmt.Errorf("start query %s: %w", name, err)
	}
	qid := aws.StringValue(start.QueryExecutionId)
	a.log.Printf("submitted athena query %s (%s)", name, qid)

	if err := a.waitDone(ctx, name, qid); err != nil {
		return nil, err
	}
	return a.fetchResults(ctx, name, qid)
}

func (a *AthenaEngine) waitDone(ctx context.Context, name, qid string) error {
	for i := 0; i < a.opts.MaxPolls; i++ {
		out, err := a.api.GetQueryExecutionWithContext(ctx, &athena.GetQueryExecutionInput{
			QueryExecutionId: aws.String(qid),
		})
		if err != nil {
			return fmt.Errorf("poll query %s: %w", name, err)
		}

		status := out.QueryExecution.Status
		switch aws.StringValue(status.State) {
		case athena.QueryExecutionStateSucceeded:
			return nil
		case athena.QueryExecutionStateFailed, athena.QueryExecutionStateCancelled:
			return fmt.Errorf("query %s %s: %s",
				name,
				strings.ToLower(aws.StringValue(status.State)),
				aws.StringValue(status.StateChangeReason))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		a.sleep(a.opts.PollEvery)
	}
	return fmt.Errorf("query %s (%s) timed out after %s",
		name, qid, time.Duration(a.opts.MaxPolls)*a.opts.PollEvery)
}

func (a *AthenaEngine) fetchResults(ctx context.Context, name, qid string) (*Result, error) {
	res := &Result{}
	first := true

	err := a.api.GetQueryResultsPagesWithContext(ctx, &athena.GetQueryResultsInput{
		QueryExecutionId: aws.String(qid),
	}, func(page *athena.GetQueryResultsOutput, _ bool) bool {
		if page.ResultSet == nil {
			return true
		}
		if first && page.ResultSet.ResultSetMetadata != nil {
			for _, ci := range page.ResultSet.ResultSetMetadata.ColumnInfo {
				res.Columns = append(res.Columns, aws.StringValue(ci.Name))
			}
		}

		rows := page.ResultSet.Rows
		// Athena repeats the header as the first data row of the first page.
		if first && len(rows) > 0 {
			rows = rows[1:]
		}
		first = false

		for _, r := range rows {
			vals := make([]any, len(r.Data))
			for i, d := range r.Data {
				if d.VarCharValue == nil {
					vals[i] = nil
				} else {
					vals[i] = *d.VarCharValue
				}
			}
			res.Rows = append(res.Rows, vals)
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("fetch results %s: %w", name, err)
	}
	return res, nil
}

func (a *AthenaEngine) Close() error { return nil }

var _ Engine = (*AthenaEngine)(nil)
