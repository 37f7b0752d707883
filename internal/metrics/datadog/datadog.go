// Package datadog implements a Datadog backend for internal/metrics.
//
// The backend buffers observations in memory, submits them on a ticker
// (default once per minute) and one final time on Close. Short commands
// get a single tail submission; long transform runs get a time series.
//
// Concurrency model:
//   - pipeline goroutines call IncCounter/ObserveHistogram at any time
//   - Flush snapshots and resets buffers under a mutex, then submits
//     out-of-lock
//   - Close stops the flush loop and performs the final Flush
package datadog

import (
	"context"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"healthlake/internal/metrics"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric. Defaults to "healthlake".
	JobName string

	// Tags are extra Datadog tags (e.g. []string{"env:prod"}).
	Tags []string

	// FlushEvery controls submission cadence. If <= 0, defaults to 60s.
	FlushEvery time.Duration

	// Unexported test seams; production code never sets them.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the minimal slice of the Datadog SDK this backend
// needs, kept private so tests can substitute a fake without HTTP.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api api
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	baseTags []string

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu sync.Mutex

	// endpoint\x00outcome -> count
	transformCounts map[string]float64
	// endpoint -> rows / partitions written
	rowCounts       map[string]float64
	partitionCounts map[string]float64
	// query name -> duration samples (ms)
	queryDur map[string][]float64
	// ingest HTTP counters by status
	httpReqCounts map[string]float64
	httpErrCounts map[string]float64
}

type api = metricsSubmitter

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

// NewBackend constructs a Datadog backend using the official client and
// starts its periodic flush goroutine.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	job := opts.JobName
	if job == "" {
		job = "healthlake"
	}

	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, resolveEnvTag(), "job:"+job)
	baseTags = append(baseTags, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}

	submitter := opts.submitter
	if submitter == nil {
		cfg := dd.NewConfiguration()
		client := dd.NewAPIClient(cfg)
		submitter = datadogV2.NewMetricsApi(client)
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),

		baseTags: baseTags,

		now:       nowFn,
		newTicker: newTicker,

		transformCounts: make(map[string]float64),
		rowCounts:       make(map[string]float64),
		partitionCounts: make(map[string]float64),
		queryDur:        make(map[string][]float64),
		httpReqCounts:   make(map[string]float64),
		httpErrCounts:   make(map[string]float64),
	}

	go b.loop()
	return b, nil
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the flush loop and performs one final Flush. Call once.
func (b *Backend) Close() error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case "lake_transform_total":
		b.transformCounts[pairKey(labels["endpoint"], labels["outcome"])] += delta

	case "lake_rows_total":
		if ep := labels["endpoint"]; ep != "" {
			b.rowCounts[ep] += delta
		}

	case "lake_partitions_total":
		if ep := labels["endpoint"]; ep != "" {
			b.partitionCounts[ep] += delta
		}

	case "ingest_http_requests_total":
		b.httpReqCounts[statusOr(labels)] += delta

	case "ingest_http_errors_total":
		b.httpErrCounts[statusOr(labels)] += delta

	default:
		// Unknown metrics are ignored.
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case "query_duration_ms":
		q := labels["query"]
		if q == "" {
			q = "unknown"
		}
		b.queryDur[q] = append(b.queryDur[q], value)

	default:
		// Unknown histograms are ignored.
	}
}

type snapshot struct {
	transformCounts map[string]float64
	rowCounts       map[string]float64
	partitionCounts map[string]float64
	queryDur        map[string][]float64
	httpReqCounts   map[string]float64
	httpErrCounts   map[string]float64
}

func (b *Backend) snapshotAndReset() snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := snapshot{
		transformCounts: b.transformCounts,
		rowCounts:       b.rowCounts,
		partitionCounts: b.partitionCounts,
		queryDur:        b.queryDur,
		httpReqCounts:   b.httpReqCounts,
		httpErrCounts:   b.httpErrCounts,
	}

	b.transformCounts = make(map[string]float64)
	b.rowCounts = make(map[string]float64)
	b.partitionCounts = make(map[string]float64)
	b.queryDur = make(map[string][]float64)
	b.httpReqCounts = make(map[string]float64)
	b.httpErrCounts = make(map[string]float64)

	return s
}

func (s snapshot) isEmpty() bool {
	return len(s.transformCounts) == 0 &&
		len(s.rowCounts) == 0 &&
		len(s.partitionCounts) == 0 &&
		len(s.queryDur) == 0 &&
		len(s.httpReqCounts) == 0 &&
		len(s.httpErrCounts) == 0
}

// Flush submits buffered metrics and resets buffers. Buffers reset even
// if submission fails, to keep the pipeline from blocking on telemetry.
func (b *Backend) Flush() error {
	snap := b.snapshotAndReset()
	if snap.isEmpty() {
		return nil
	}

	series := b.buildSeries(snap, b.now().Unix())
	payload := datadogV2.MetricPayload{Series: series}

	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// buildSeries is pure (no locks, clocks, or network) so tests can
// assert naming and tagging, which are an operational contract.
func (b *Backend) buildSeries(s snapshot, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, 32)

	count := func(metric string, value float64, tags []string) {
		series = append(series, datadogV2.MetricSeries{
			Metric: metric,
			Type:   datadogV2.METRICINTAKETYPE_COUNT.Ptr(),
			Points: []datadogV2.MetricPoint{
				{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
			},
			Tags: tags,
		})
	}
	gauge := func(metric string, value float64, tags []string) {
		series = append(series, datadogV2.MetricSeries{
			Metric: metric,
			Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
			Points: []datadogV2.MetricPoint{
				{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
			},
			Tags: tags,
		})
	}

	for k, v := range s.transformCounts {
		if v == 0 {
			continue
		}
		endpoint, outcome := splitPairKey(k)
		count("lake.transform.total", v, withTags(b.baseTags, "endpoint:"+endpoint, "outcome:"+outcome))
	}
	for ep, v := range s.rowCounts {
		count("lake.rows.total", v, withTags(b.baseTags, "endpoint:"+ep))
	}
	for ep, v := range s.partitionCounts {
		count("lake.partitions.total", v, withTags(b.baseTags, "endpoint:"+ep))
	}

	for q, samples := range s.queryDur {
		if len(samples) == 0 {
			continue
		}
		cp := append([]float64(nil), samples...)
		sort.Float64s(cp)
		tags := withTags(b.baseTags, "query:"+q)
		gauge("lake.query.duration_ms.p50", percentileNearestRank(cp, 0.50), tags)
		gauge("lake.query.duration_ms.p95", percentileNearestRank(cp, 0.95), tags)
		gauge("lake.query.duration_ms.max", cp[len(cp)-1], tags)
		gauge("lake.query.duration_ms.samples", float64(len(cp)), tags)
	}

	for status, v := range s.httpReqCounts {
		count("lake.ingest.http.requests.total", v, withTags(b.baseTags, "status:"+status))
	}
	for status, v := range s.httpErrCounts {
		count("lake.ingest.http.errors.total", v, withTags(b.baseTags, "status:"+status))
	}

	return series
}

func pairKey(a, b string) string { return a + "\x00" + b }

func splitPairKey(k string) (string, string) {
	parts := strings.SplitN(k, "\x00", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return k, "unknown"
}

func statusOr(labels metrics.Labels) string {
	if s := labels["status"]; s != "" {
		return s
	}
	return "unknown"
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	out = append(out, extras...)
	return out
}

func percentileNearestRank(s []float64, p float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return s[0]
	}
	if p >= 1 {
		return s[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return s[idx]
}

var _ metrics.Backend = (*Backend)(nil)

// ParseTagsCSV parses comma-separated tags like "env:prod,service:lake".
func ParseTagsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
