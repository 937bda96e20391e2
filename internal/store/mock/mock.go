// Package mock provides an in-memory store.Backend for tests.
package mock

import (
	"context"
	"sync"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/store"
)

var _ store.Backend = (*Backend)(nil)

// Backend keeps values in a map. Set PutErr or PingErr to inject failures.
type Backend struct {
	mu   sync.Mutex
	data map[string][]byte

	PutErr  error
	PingErr error

	// PutCalls lists the key of every Put in order.
	PutCalls []string
	// DeleteCalls lists the key of every Delete in order.
	DeleteCalls []string
	Closed      bool
}

// New returns a Backend pre-populated with seed.
func New(seed map[string]string) *Backend {
	b := &Backend{data: make(map[string][]byte, len(seed))}
	for k, v := range seed {
		b.data[k] = []byte(v)
	}
	return b
}

// Get implements store.Backend.
func (b *Backend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Put implements store.Backend.
func (b *Backend) Put(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.PutCalls = append(b.PutCalls, key)
	if b.PutErr != nil {
		return b.PutErr
	}
	if b.data == nil {
		b.data = make(map[string][]byte)
	}
	b.data[key] = append([]byte(nil), value...)
	return nil
}

// Delete implements store.Backend.
func (b *Backend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.DeleteCalls = append(b.DeleteCalls, key)
	delete(b.data, key)
	return nil
}

// Ping implements store.Backend.
func (b *Backend) Ping(_ context.Context) error { return b.PingErr }

// Close implements store.Backend.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Closed = true
	return nil
}

// Value returns the raw stored value for key.
func (b *Backend) Value(key string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	return string(v), ok
}
