// Package blob abstracts "read bytes by logical key / write bytes by
// logical key" over the backends the lake runs on: a local directory
// tree, an S3 bucket+prefix, and an in-process map.
//
// Keys are slash-separated and relative to the store's root; the same
// key must resolve to the same object regardless of backend, so the
// transform and query layers never branch on execution mode.
package blob

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned by Get for keys that do not exist.
var ErrNotFound = errors.New("blob: not found")

// Store is the minimal byte-blob contract the lake needs.
type Store interface {
	// Get returns the full object body, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put overwrites the object at key. The write must not be observable
	// half-done by a subsequent Get (backends rename or rely on object
	// store atomicity).
	Put(ctx context.Context, key string, body []byte, contentType string) error

	// List returns all keys with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Config selects and parameterizes a backend.
//
// Edge cases:
//   - Kind must match a registered backend kind ("fs", "s3", "memory").
//   - Root is used by fs; Bucket/Prefix/Region by s3.
type Config struct {
	Kind   string
	Root   string
	Bucket string
	Prefix string
	Region string
}

type factory func(ctx context.Context, cfg Config) (Store, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend factory under a kind.
//
// Panics on empty kind, nil factory, or duplicate registration, to fail
// fast at init time rather than at first use.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("blob: Register called with empty kind")
	}
	if f == nil {
		panic("blob: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("blob: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New constructs a Store for the configured kind.
func New(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("blob: missing Kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("blob: unsupported kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
