package etl

import (
	"context"
	"log"
	"strings"
	"testing"
	"time"

	"healthlake/internal/blob"
	"healthlake/internal/manifest"
	"healthlake/internal/partition"
)

const ghoNigeria = `{"value":[{"SpatialDim":"NGA","TimeDim":"2021","NumericValue":"52.3","IndicatorCode":"X1"}]}`

func quietLogger() *log.Logger {
	return log.New(&strings.Builder{}, "", 0)
}

func newTestTransformer(raw, clean *blob.Memory) *Transformer {
	return &Transformer{
		Raw:      raw,
		Manifest: manifest.NewStore(clean),
		Writer:   partition.NewWriter(clean),
		Log:      quietLogger(),
		Now:      func() time.Time { return time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC) },
	}
}

func TestTransformEndToEnd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	raw := blob.NewMemory()
	clean := blob.NewMemory()
	rawKey := "life_expectancy/20260801T000000Z-ab12.json"
	if err := raw.Put(ctx, rawKey, []byte(ghoNigeria), "application/json"); err != nil {
		t.Fatal(err)
	}

	tr := newTestTransformer(raw, clean)
	processed, err := tr.ProcessKey(ctx, rawKey)
	if err != nil {
		t.Fatalf("ProcessKey: %v", err)
	}
	if !processed {
		t.Fatal("ProcessKey = false, want true")
	}

	if _, err := clean.Get(ctx, "life_expectancy/year=2021/data.parquet"); err != nil {
		t.Errorf("partition missing: %v", err)
	}

	doc, err := tr.Manifest.Load(ctx)
	if err != nil {
		t.Fatalf("manifest load: %v", err)
	}
	entry, ok := doc.Processed[rawKey]
	if !ok {
		t.Fatal("manifest has no entry for raw key")
	}
	if entry.Rows != 1 || entry.WrittenPartitions != 1 {
		t.Errorf("entry = %+v, want rows=1 partitions=1", entry)
	}
	if entry.Hash == "" || entry.ProcessedAt == "" {
		t.Errorf("entry missing hash or timestamp: %+v", entry)
	}
}

func TestTransformIdempotence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	raw := blob.NewMemory()
	clean := blob.NewMemory()
	rawKey := "cholera/20260801T000000Z-cd34.json"
	if err := raw.Put(ctx, rawKey, []byte(ghoNigeria), "application/json"); err != nil {
		t.Fatal(err)
	}

	tr := newTestTransformer(raw, clean)
	if processed, err := tr.ProcessKey(ctx, rawKey); err != nil || !processed {
		t.Fatalf("first call = (%v, %v), want (true, nil)", processed, err)
	}

	before, err := tr.Manifest.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	writes := clean.PutCount()

	if processed, err := tr.ProcessKey(ctx, rawKey); err != nil || processed {
		t.Fatalf("second call = (%v, %v), want (false, nil)", processed, err)
	}
	if got := clean.PutCount(); got != writes {
		t.Errorf("second call performed %d additional writes, want 0", got-writes)
	}

	after, err := tr.Manifest.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if after.Processed[rawKey] != before.Processed[rawKey] {
		t.Errorf("manifest entry changed: %+v -> %+v", before.Processed[rawKey], after.Processed[rawKey])
	}
}

func TestTransformHashSensitivity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	raw := blob.NewMemory()
	clean := blob.NewMemory()
	rawKey := "cholera/20260801T000000Z-ef56.json"
	if err := raw.Put(ctx, rawKey, []byte(ghoNigeria), "application/json"); err != nil {
		t.Fatal(err)
	}

	tr := newTestTransformer(raw, clean)
	if _, err := tr.ProcessKey(ctx, rawKey); err != nil {
		t.Fatal(err)
	}
	first, _ := tr.Manifest.Load(ctx)

	changed := strings.Replace(ghoNigeria, "52.3", "52.4", 1)
	if err := raw.Put(ctx, rawKey, []byte(changed), "application/json"); err != nil {
		t.Fatal(err)
	}

	processed, err := tr.ProcessKey(ctx, rawKey)
	if err != nil {
		t.Fatalf("ProcessKey after change: %v", err)
	}
	if !processed {
		t.Fatal("changed content not reprocessed")
	}

	second, _ := tr.Manifest.Load(ctx)
	if first.Processed[rawKey].Hash == second.Processed[rawKey].Hash {
		t.Error("hash unchanged after content change")
	}
}

func TestTransformInvalidPayloadNotManifested(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	raw := blob.NewMemory()
	clean := blob.NewMemory()
	rawKey := "malaria_incidence/20260801T000000Z-0011.json"
	if err := raw.Put(ctx, rawKey, []byte("{not json"), "application/json"); err != nil {
		t.Fatal(err)
	}

	tr := newTestTransformer(raw, clean)
	processed, err := tr.ProcessKey(ctx, rawKey)
	if err != nil {
		t.Fatalf("invalid payload must not be an invocation error: %v", err)
	}
	if processed {
		t.Fatal("invalid payload reported as processed")
	}

	doc, _ := tr.Manifest.Load(ctx)
	if _, ok := doc.Processed[rawKey]; ok {
		t.Error("invalid payload recorded in manifest; corrected re-fetch would be skipped")
	}

	// A corrected payload at the same key is then processed.
	if err := raw.Put(ctx, rawKey, []byte(ghoNigeria), "application/json"); err != nil {
		t.Fatal(err)
	}
	if processed, err := tr.ProcessKey(ctx, rawKey); err != nil || !processed {
		t.Fatalf("corrected payload = (%v, %v), want (true, nil)", processed, err)
	}
}

func TestTransformEmptyResultManifested(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	raw := blob.NewMemory()
	clean := blob.NewMemory()
	rawKey := "cholera/20260801T000000Z-2233.json"
	if err := raw.Put(ctx, rawKey, []byte(`{"value":[]}`), "application/json"); err != nil {
		t.Fatal(err)
	}

	tr := newTestTransformer(raw, clean)
	if processed, err := tr.ProcessKey(ctx, rawKey); err != nil || processed {
		t.Fatalf("empty payload = (%v, %v), want (false, nil)", processed, err)
	}

	doc, _ := tr.Manifest.Load(ctx)
	entry, ok := doc.Processed[rawKey]
	if !ok {
		t.Fatal("empty result not recorded in manifest")
	}
	if entry.Rows != 0 {
		t.Errorf("rows = %d, want 0", entry.Rows)
	}

	// Second identical invocation is a no-op, not a retry.
	writes := clean.PutCount()
	if processed, err := tr.ProcessKey(ctx, rawKey); err != nil || processed {
		t.Fatalf("second call = (%v, %v), want (false, nil)", processed, err)
	}
	if clean.PutCount() != writes {
		t.Error("empty result reprocessed on identical content")
	}
}

func TestProcessKeyRouting(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	raw := blob.NewMemory()
	clean := blob.NewMemory()
	tr := newTestTransformer(raw, clean)

	// Unmatched keys are ignored silently, not errors.
	if processed, err := tr.ProcessKey(ctx, "somefeed/20260801T000000Z-4455.json"); err != nil || processed {
		t.Fatalf("unmatched key = (%v, %v), want (false, nil)", processed, err)
	}
	if clean.PutCount() != 0 {
		t.Error("unmatched key caused writes")
	}
}

func TestProcessAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	raw := blob.NewMemory()
	clean := blob.NewMemory()
	for _, k := range []string{
		"cholera/20260801T000000Z-a.json",
		"life_expectancy/20260801T000000Z-b.json",
		"unrouted/20260801T000000Z-c.json",
	} {
		if err := raw.Put(ctx, k, []byte(ghoNigeria), "application/json"); err != nil {
			t.Fatal(err)
		}
	}

	tr := newTestTransformer(raw, clean)
	if err := tr.ProcessAll(ctx); err != nil {
		t.Fatalf("ProcessAll: %v", err)
	}

	doc, _ := tr.Manifest.Load(ctx)
	if len(doc.Processed) != 2 {
		t.Errorf("manifest entries = %d, want 2 (unrouted key ignored)", len(doc.Processed))
	}
	for _, endpoint := range []string{"cholera", "life_expectancy"} {
		if _, err := clean.Get(ctx, endpoint+"/year=2021/data.parquet"); err != nil {
			t.Errorf("missing partition for %s: %v", endpoint, err)
		}
	}
}
