package storage

// Backend is the persistent key/value layer underneath the state database.
// Get returns (nil, nil) for a missing key. Apply must write the whole batch
// or nothing.
type Backend interface {
	Get(key []byte) ([]byte, error)
	Apply(b *Batch) error
	Iterate(prefix []byte, fn func(key, value []byte) bool) error
	Close() error
}

type batchOp struct {
	key    []byte
	value  []byte
	delete bool
}

// Batch collects writes that are applied atomically by a Backend.
type Batch struct {
	ops []batchOp
}

func NewBatch() *Batch { return &Batch{} }

// Put records a write. Key and value are copied.
func (b *Batch) Put(key, value []byte) {
	b.ops = append(b.ops, batchOp{key: clone(key), value: clone(value)})
}

// Delete records a removal.
func (b *Batch) Delete(key []byte) {
	b.ops = append(b.ops, batchOp{key: clone(key), delete: true})
}

// Len returns the number of recorded operations.
func (b *Batch) Len() int { return len(b.ops) }

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
