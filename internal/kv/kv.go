// Package kv is the durable key-value boundary the order store persists through.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been written or was removed.
var ErrNotFound = errors.New("kv: key not found")

// Store is a get/set/remove-by-key interface over durable storage.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Close() error
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Pebble)(nil)
	_ Store = (*Mongo)(nil)
)
