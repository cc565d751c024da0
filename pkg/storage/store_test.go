package storage

import (
	"bytes"
	"testing"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	pebbleStore, err := NewPebbleStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open pebble: %v", err)
	}
	t.Cleanup(func() { pebbleStore.Close() })

	memStore, err := NewPebbleMemStore()
	if err != nil {
		t.Fatalf("failed to open in-memory pebble: %v", err)
	}
	t.Cleanup(func() { memStore.Close() })

	return map[string]Backend{
		"memory": memStore,
		"pebble": pebbleStore,
	}
}

func TestBackendApplyAndGet(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			got, err := b.Get([]byte("missing"))
			if err != nil {
				t.Fatalf("Get missing: %v", err)
			}
			if got != nil {
				t.Errorf("Get missing = %q, want nil", got)
			}

			batch := NewBatch()
			batch.Put([]byte("a"), []byte("1"))
			batch.Put([]byte("b"), []byte("2"))
			batch.Delete([]byte("a"))
			if err := b.Apply(batch); err != nil {
				t.Fatalf("Apply: %v", err)
			}

			if got, _ := b.Get([]byte("a")); got != nil {
				t.Errorf("a = %q, want deleted", got)
			}
			if got, _ := b.Get([]byte("b")); !bytes.Equal(got, []byte("2")) {
				t.Errorf("b = %q, want 2", got)
			}
		})
	}
}

func TestBackendIteratePrefix(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			batch := NewBatch()
			batch.Put([]byte("ord:02"), []byte("two"))
			batch.Put([]byte("ord:01"), []byte("one"))
			batch.Put([]byte("orc"), []byte("x"))
			batch.Put([]byte("ore"), []byte("y"))
			if err := b.Apply(batch); err != nil {
				t.Fatalf("Apply: %v", err)
			}

			var keys []string
			err := b.Iterate([]byte("ord:"), func(k, _ []byte) bool {
				keys = append(keys, string(k))
				return true
			})
			if err != nil {
				t.Fatalf("Iterate: %v", err)
			}
			if len(keys) != 2 || keys[0] != "ord:01" || keys[1] != "ord:02" {
				t.Errorf("keys = %v, want [ord:01 ord:02]", keys)
			}

			count := 0
			b.Iterate([]byte("ord:"), func(_, _ []byte) bool {
				count++
				return false
			})
			if count != 1 {
				t.Errorf("early stop visited %d keys, want 1", count)
			}
		})
	}
}

func TestUpperBound(t *testing.T) {
	tests := []struct {
		name   string
		prefix []byte
		want   []byte
	}{
		{"simple", []byte("ord:"), []byte("ord;")},
		{"trailing ff", []byte{0x01, 0xff}, []byte{0x02}},
		{"all ff", []byte{0xff, 0xff}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UpperBound(tt.prefix); !bytes.Equal(got, tt.want) {
				t.Errorf("UpperBound(%x) = %x, want %x", tt.prefix, got, tt.want)
			}
		})
	}
}

func TestPebbleMemStoreIsolated(t *testing.T) {
	a, err := NewPebbleMemStore()
	if err != nil {
		t.Fatalf("NewPebbleMemStore: %v", err)
	}
	defer a.Close()
	b, err := NewPebbleMemStore()
	if err != nil {
		t.Fatalf("NewPebbleMemStore: %v", err)
	}
	defer b.Close()

	batch := NewBatch()
	batch.Put([]byte("k"), []byte("v"))
	if err := a.Apply(batch); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got, _ := b.Get([]byte("k")); got != nil {
		t.Errorf("second store sees %q, want nil", got)
	}
}
