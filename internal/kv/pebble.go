package kv

import (
	"context"
	"path/filepath"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
)

// Pebble implements Store on a local PebbleDB directory.
type Pebble struct {
	db *pebble.DB
}

func NewPebble(dir string) (*Pebble, error) {
	opts := &pebble.Options{
		// state blobs are small and written often; keep the memtable modest
		MemTableSize: 16 << 20,
	}
	d, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, errors.Wrap(err, "pebble open")
	}
	return &Pebble{db: d}, nil
}

func (p *Pebble) Close() error { return p.db.Close() }

func (p *Pebble) Get(_ context.Context, key string) ([]byte, error) {
	v, closer, err := p.db.Get([]byte(key))
	if err == pebble.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "pebble get %s", key)
	}
	defer closer.Close()
	return append([]byte(nil), v...), nil
}

func (p *Pebble) Set(_ context.Context, key string, value []byte) error {
	if err := p.db.Set([]byte(key), value, pebble.Sync); err != nil {
		return errors.Wrapf(err, "pebble set %s", key)
	}
	return nil
}

func (p *Pebble) Remove(_ context.Context, key string) error {
	if err := p.db.Delete([]byte(key), pebble.Sync); err != nil {
		return errors.Wrapf(err, "pebble delete %s", key)
	}
	return nil
}
