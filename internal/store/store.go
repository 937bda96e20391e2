// Package store persists opaque JSON blobs under string keys.
//
// The chat layer keeps exactly two keys (chat sessions and the user profile),
// so a key/value shape is all a backend needs to provide. Two backends exist:
// [File], which writes one JSON file per key into a directory, and [Postgres],
// which keeps every key as a row of the kv_blobs table.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by [Backend.Get] when the key has never been written.
var ErrNotFound = errors.New("store: key not found")

// Backend is a durable key/value store for JSON documents.
//
// Implementations must be safe for concurrent use.
type Backend interface {
	// Get returns the value stored under key, or [ErrNotFound].
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any previous value. value must be
	// valid JSON.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Ping reports whether the backend is reachable. It is used by the
	// readiness probe.
	Ping(ctx context.Context) error

	// Close releases any resources held by the backend.
	Close() error
}
