package runlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestRecordAndRecent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	l, err := Open(ctx, filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	entries := []Entry{
		{RawKey: "cholera/a.json", Endpoint: "cholera", Outcome: "processed", Rows: 10, Partitions: 2, DurationMS: 40, At: at},
		{RawKey: "cholera/a.json", Endpoint: "cholera", Outcome: "unchanged", At: at.Add(time.Hour)},
		{RawKey: "who_outbreaks/b.json", Endpoint: "who_outbreaks", Outcome: "invalid-payload", At: at.Add(2 * time.Hour)},
	}
	for _, e := range entries {
		if err := l.Record(ctx, e); err != nil {
			t.Fatalf("Record(%s): %v", e.Outcome, err)
		}
	}

	got, err := l.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent returned %d entries, want 2", len(got))
	}
	if got[0].Outcome != "invalid-payload" || got[1].Outcome != "unchanged" {
		t.Errorf("order = [%s, %s], want newest first", got[0].Outcome, got[1].Outcome)
	}
	if !got[1].At.Equal(at.Add(time.Hour)) {
		t.Errorf("At = %v, want %v", got[1].At, at.Add(time.Hour))
	}

	all, err := l.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Recent(10) = %d entries, want 3", len(all))
	}
	if all[2].Rows != 10 || all[2].Partitions != 2 || all[2].DurationMS != 40 {
		t.Errorf("oldest entry = %+v", all[2])
	}
}

func TestOpenReopensExistingLedger(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "runs.db")

	l, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := l.Record(ctx, Entry{RawKey: "k", Endpoint: "e", Outcome: "processed"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	l2, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l2.Close()

	got, err := l2.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 || got[0].RawKey != "k" {
		t.Errorf("entries after reopen = %+v", got)
	}
}
