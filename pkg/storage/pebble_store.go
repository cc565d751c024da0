package storage

import (
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// PebbleStore is the Pebble-backed Backend, on disk or in memory.
type PebbleStore struct {
	db *pebble.DB
}

func defaultOptions(cache *pebble.Cache) *pebble.Options {
	return &pebble.Options{
		Cache:                    cache,
		MemTableSize:             32 << 20,
		MaxConcurrentCompactions: func() int { return 2 },
		L0CompactionThreshold:    2,
		L0StopWritesThreshold:    12,
		MaxOpenFiles:             1000,
		BytesPerSync:             512 << 10,
	}
}

// NewPebbleStore opens a Pebble database at the given path
func NewPebbleStore(path string) (*PebbleStore, error) {
	cache := pebble.NewCache(64 << 20) // 64MB cache
	defer cache.Unref()

	db, err := pebble.Open(path, defaultOptions(cache))
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", path, err)
	}
	return &PebbleStore{db: db}, nil
}

// NewPebbleMemStore opens a Pebble database on an in-memory filesystem.
// Nothing survives Close.
func NewPebbleMemStore() (*PebbleStore, error) {
	cache := pebble.NewCache(8 << 20)
	defer cache.Unref()

	opts := defaultOptions(cache)
	opts.FS = vfs.NewMem()
	db, err := pebble.Open("", opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory pebble db: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

// Get returns nil if the key doesn't exist
func (s *PebbleStore) Get(key []byte) ([]byte, error) {
	data, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}
	defer closer.Close()
	return clone(data), nil
}

// Apply writes the batch to Pebble atomically
func (s *PebbleStore) Apply(b *Batch) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	for _, op := range b.ops {
		var err error
		if op.delete {
			err = batch.Delete(op.key, nil)
		} else {
			err = batch.Set(op.key, op.value, nil)
		}
		if err != nil {
			return fmt.Errorf("failed to stage write: %w", err)
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// Iterate visits keys with the given prefix in ascending order until fn
// returns false.
func (s *PebbleStore) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: UpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("failed to open iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if !fn(clone(iter.Key()), clone(iter.Value())) {
			break
		}
	}
	return iter.Error()
}

var _ Backend = (*PebbleStore)(nil)
