package blob

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

func init() {
	Register("memory", func(_ context.Context, _ Config) (Store, error) {
		return NewMemory(), nil
	})
}

// Memory is an in-process Store. Used by tests and by dry runs that must
// not touch disk or the network.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func NewMemory() *Memory {
	return &Memory{objects: map[string][]byte{}}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp, nil
}

func (m *Memory) Put(_ context.Context, key string, body []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make([]byte, len(body))
	copy(cp, body)
	m.objects[key] = cp
	m.puts++
	return nil
}

func (m *Memory) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// PutCount reports the total number of Put calls; tests use it to assert
// "no additional writes happened".
func (m *Memory) PutCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}
