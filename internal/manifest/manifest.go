// Package manifest is the idempotency ledger of the transform step: one
// JSON document in the clean store mapping each raw object key to the
// content hash and outcome of its last processing.
//
// The document is a whole-blob read-modify-write. A mutex on the Store
// serializes writers within the process; cross-process invocations on
// the same manifest must still be externally serialized (single-writer
// contract, see the orchestrator).
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"healthlake/internal/blob"
)

// Key is the fixed logical key of the manifest blob inside the clean store.
const Key = "manifest/etl_manifest.json"

// Entry records the last processing outcome for one raw object.
type Entry struct {
	Hash              string `json:"hash"`
	Rows              int    `json:"rows"`
	WrittenPartitions int    `json:"written_partitions"`
	ProcessedAt       string `json:"processed_at"`
}

// Document is the full manifest content.
type Document struct {
	Processed map[string]Entry `json:"processed"`
}

// Store loads and saves the manifest document through a blob store.
type Store struct {
	blobs blob.Store

	// Now is a clock seam for deterministic tests. Defaults to time.Now.
	Now func() time.Time

	mu sync.Mutex
}

func NewStore(blobs blob.Store) *Store {
	return &Store{blobs: blobs, Now: time.Now}
}

// Load reads the manifest. A missing blob is not an error: the lake has
// simply never processed anything, and an empty document is returned.
// A present-but-corrupt blob is fatal; silently resetting it would
// reprocess the whole lake.
func (s *Store) Load(ctx context.Context) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *Store) loadLocked(ctx context.Context) (Document, error) {
	b, err := s.blobs.Get(ctx, Key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return Document{Processed: map[string]Entry{}}, nil
		}
		return Document{}, fmt.Errorf("manifest: load: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return Document{}, fmt.Errorf("manifest: decode: %w", err)
	}
	if doc.Processed == nil {
		doc.Processed = map[string]Entry{}
	}
	return doc, nil
}

// Save overwrites the manifest blob with doc.
func (s *Store) Save(ctx context.Context, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, doc)
}

func (s *Store) saveLocked(ctx context.Context, doc Document) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: encode: %w", err)
	}
	if err := s.blobs.Put(ctx, Key, b, "application/json"); err != nil {
		return fmt.Errorf("manifest: save: %w", err)
	}
	return nil
}

// Record updates one entry under the store lock: load, set, save. The
// row/partition counts come from the caller; ProcessedAt is stamped here.
func (s *Store) Record(ctx context.Context, rawKey, hash string, rows, partitions int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	doc.Processed[rawKey] = Entry{
		Hash:              hash,
		Rows:              rows,
		WrittenPartitions: partitions,
		ProcessedAt:       s.Now().UTC().Format(time.RFC3339),
	}
	return s.saveLocked(ctx, doc)
}
