// Package ingest pulls the upstream public-health datasets and stores
// the unmodified payloads as raw objects. Raw objects are immutable:
// every fetch writes a new key, and the transform layer decides later
// whether the content actually changed.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"healthlake/internal/blob"
	"healthlake/internal/metrics"
)

// Endpoint is one upstream dataset source.
type Endpoint struct {
	Name string
	URL  string
}

// DefaultEndpoints is the authoritative source list.
var DefaultEndpoints = []Endpoint{
	{"life_expectancy", "https://ghoapi.azureedge.net/api/WHOSIS_000001?$filter=(TimeDim ge 2000)"},
	{"malaria_incidence", "https://ghoapi.azureedge.net/api/MALARIA_EST_INCIDENCE?$filter=(TimeDim ge 2020)"},
	{"cholera", "https://ghoapi.azureedge.net/api/CHOLERA_0000000001?$filter=(TimeDim ge 2000)"},
	{"who_outbreaks", "https://www.who.int/api/news/diseaseoutbreaknews"},
	{"wb_hospital_beds_per_1000", "https://api.worldbank.org/v2/country/all/indicator/SH.MED.BEDS.ZS?format=json&date=2000:2024&per_page=20000"},
	{"wb_physicians_per_1000", "https://api.worldbank.org/v2/country/all/indicator/SH.MED.PHYS.ZS?format=json&date=2000:2024&per_page=20000"},
}

// Result describes one stored raw object.
type Result struct {
	Dataset string `json:"dataset"`
	Key     string `json:"key"`
	Bytes   int    `json:"bytes"`
	Err     string `json:"error,omitempty"`
}

// Fetcher retrieves endpoints with bounded retries and writes raw
// objects through the blob store.
type Fetcher struct {
	Client *http.Client
	Raw    blob.Store

	// MaxAttempts bounds tries per endpoint (default 4: one try plus
	// three retries). Backoff is the first retry delay and grows 1.5x
	// per attempt (default 1s).
	MaxAttempts int
	Backoff     time.Duration

	Log *log.Logger

	// Seams for tests.
	Now   func() time.Time
	NewID func() string
	Sleep func(time.Duration)
}

func (f *Fetcher) defaults() {
	if f.Client == nil {
		f.Client = &http.Client{Timeout: 60 * time.Second}
	}
	if f.MaxAttempts <= 0 {
		f.MaxAttempts = 4
	}
	if f.Backoff <= 0 {
		f.Backoff = time.Second
	}
	if f.Log == nil {
		f.Log = log.Default()
	}
	if f.Now == nil {
		f.Now = time.Now
	}
	if f.NewID == nil {
		f.NewID = func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") }
	}
	if f.Sleep == nil {
		f.Sleep = time.Sleep
	}
}

// IngestAll fetches every endpoint. One endpoint's failure does not
// abort the rest; failures are reported in the per-endpoint results.
func (f *Fetcher) IngestAll(ctx context.Context, endpoints []Endpoint) []Result {
	f.defaults()
	if endpoints == nil {
		endpoints = DefaultEndpoints
	}

	results := make([]Result, 0, len(endpoints))
	for _, ep := range endpoints {
		res, err := f.FetchAndStore(ctx, ep)
		if err != nil {
			f.Log.Printf("ingest failed dataset=%s: %v", ep.Name, err)
			results = append(results, Result{Dataset: ep.Name, Err: err.Error()})
			continue
		}
		results = append(results, res)
	}
	return results
}

// FetchAndStore retrieves one endpoint and writes the raw object at
// <name>/<timestamp>-<id>.<ext>, extension derived from Content-Type.
func (f *Fetcher) FetchAndStore(ctx context.Context, ep Endpoint) (Result, error) {
	f.defaults()
	f.Log.Printf("fetching dataset=%s", ep.Name)

	body, contentType, err := f.get(ctx, ep)
	if err != nil {
		return Result{}, err
	}

	ts := f.Now().UTC().Format("20060102T150405Z")
	key := fmt.Sprintf("%s/%s-%s.%s", ep.Name, ts, f.NewID(), extensionFor(contentType))

	if contentType == "" {
		contentType = "application/json"
	}
	if err := f.Raw.Put(ctx, key, body, contentType); err != nil {
		return Result{}, fmt.Errorf("store %s: %w", ep.Name, err)
	}

	f.Log.Printf("stored dataset=%s bytes=%d key=%s", ep.Name, len(body), key)
	return Result{Dataset: ep.Name, Key: key, Bytes: len(body)}, nil
}

// Transient statuses worth another try.
var retryStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

func (f *Fetcher) get(ctx context.Context, ep Endpoint) ([]byte, string, error) {
	delay := f.Backoff
	var lastErr error

	for attempt := 1; attempt <= f.MaxAttempts; attempt++ {
		if attempt > 1 {
			f.Sleep(delay)
			delay = delay * 3 / 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.URL, nil)
		if err != nil {
			return nil, "", fmt.Errorf("build request for %s: %w", ep.Name, err)
		}

		resp, err := f.Client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("fetch %s: %w", ep.Name, err)
			f.Log.Printf("attempt %d/%d dataset=%s: %v", attempt, f.MaxAttempts, ep.Name, err)
			continue
		}

		metrics.IncCounter("ingest_http_requests_total", 1, metrics.Labels{
			"status": fmt.Sprintf("%d", resp.StatusCode),
		})

		if retryStatus[resp.StatusCode] {
			resp.Body.Close()
			lastErr = fmt.Errorf("fetch %s: HTTP %d", ep.Name, resp.StatusCode)
			f.Log.Printf("attempt %d/%d dataset=%s: HTTP %d", attempt, f.MaxAttempts, ep.Name, resp.StatusCode)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			metrics.IncCounter("ingest_http_errors_total", 1, metrics.Labels{
				"status": fmt.Sprintf("%d", resp.StatusCode),
			})
			return nil, "", fmt.Errorf("fetch %s: HTTP %d", ep.Name, resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read %s: %w", ep.Name, err)
			continue
		}
		return body, resp.Header.Get("Content-Type"), nil
	}

	metrics.IncCounter("ingest_http_errors_total", 1, metrics.Labels{"status": "exhausted"})
	return nil, "", fmt.Errorf("%w (after %d attempts)", lastErr, f.MaxAttempts)
}

func extensionFor(contentType string) string {
	if strings.Contains(strings.ToLower(contentType), "csv") {
		return "csv"
	}
	return "json"
}
