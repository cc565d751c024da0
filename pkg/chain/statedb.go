package chain

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"

	"github.com/uhyunpark/hypergate/pkg/storage"
)

var rootKey = []byte("chain/root")

// slot is an overlay value. A nil value with deleted=true shadows the
// backend entry.
type slot struct {
	value   []byte
	deleted bool
}

// StateDB is a journaled write overlay on top of a storage.Backend.
//
// All writes of one call stay in the overlay until Commit, which flushes
// them as a single batch. Snapshot/RevertToSnapshot undo writes (and logs)
// of a failed sub-call without touching the rest of the call.
type StateDB struct {
	backend storage.Backend
	dirty   map[string]slot
	journal journal
	logs    []Log

	// dbErr latches the first backend read failure; Commit refuses to
	// flush once it is set.
	dbErr error
}

func NewStateDB(backend storage.Backend) *StateDB {
	return &StateDB{
		backend: backend,
		dirty:   make(map[string]slot),
	}
}

func (s *StateDB) setError(err error) {
	if s.dbErr == nil {
		s.dbErr = err
	}
}

// Error returns the first backend error seen during the current call.
func (s *StateDB) Error() error { return s.dbErr }

// Snapshot returns an identifier for the current overlay revision.
func (s *StateDB) Snapshot() int { return s.journal.length() }

// RevertToSnapshot undoes every write and log made after the snapshot.
func (s *StateDB) RevertToSnapshot(id int) {
	if id < 0 || id > s.journal.length() {
		panic(fmt.Errorf("revision id %d cannot be reverted", id))
	}
	s.journal.revertTo(s, id)
}

// Get returns the current value of key or nil.
func (s *StateDB) Get(key []byte) []byte {
	if sl, ok := s.dirty[string(key)]; ok {
		if sl.deleted {
			return nil
		}
		return sl.value
	}
	v, err := s.backend.Get(key)
	if err != nil {
		s.setError(fmt.Errorf("failed to read %q: %w", key, err))
		return nil
	}
	return v
}

func (s *StateDB) Set(key, value []byte) {
	if value == nil {
		s.Delete(key)
		return
	}
	v := make([]byte, len(value))
	copy(v, value)
	s.write(string(key), slot{value: v})
}

func (s *StateDB) Delete(key []byte) {
	s.write(string(key), slot{deleted: true})
}

func (s *StateDB) write(key string, next slot) {
	prev, had := s.dirty[key]
	s.journal.append(storageChange{key: key, prev: prev, hadPrev: had})
	s.dirty[key] = next
}

// Iterate visits live keys under prefix in ascending order until fn
// returns false. Writes pending in the current call are included.
func (s *StateDB) Iterate(prefix []byte, fn func(key, value []byte) bool) {
	merged := make(map[string][]byte)
	if err := s.backend.Iterate(prefix, func(k, v []byte) bool {
		merged[string(k)] = v
		return true
	}); err != nil {
		s.setError(fmt.Errorf("failed to iterate %q: %w", prefix, err))
	}
	for k, sl := range s.dirty {
		if !strings.HasPrefix(k, string(prefix)) {
			continue
		}
		if sl.deleted {
			delete(merged, k)
		} else {
			merged[k] = sl.value
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !fn([]byte(k), merged[k]) {
			return
		}
	}
}

func (s *StateDB) GetUint64(key []byte) uint64 {
	return storage.BytesUint64(s.Get(key))
}

func (s *StateDB) SetUint64(key []byte, v uint64) {
	s.Set(key, storage.Uint64Bytes(v))
}

// GetBig returns a fresh big.Int; a missing key reads as zero.
func (s *StateDB) GetBig(key []byte) *big.Int {
	return new(big.Int).SetBytes(s.Get(key))
}

// SetBig stores a non-negative integer. Zero deletes the key.
func (s *StateDB) SetBig(key []byte, v *big.Int) {
	if v == nil || v.Sign() == 0 {
		s.Delete(key)
		return
	}
	if v.Sign() < 0 {
		panic(fmt.Errorf("negative value for %q", key))
	}
	s.Set(key, v.Bytes())
}

func (s *StateDB) GetBool(key []byte) bool {
	v := s.Get(key)
	return len(v) == 1 && v[0] == 1
}

func (s *StateDB) SetBool(key []byte, b bool) {
	if !b {
		s.Delete(key)
		return
	}
	s.Set(key, []byte{1})
}

func (s *StateDB) GetAddress(key []byte) common.Address {
	return common.BytesToAddress(s.Get(key))
}

func (s *StateDB) SetAddress(key []byte, addr common.Address) {
	if addr == (common.Address{}) {
		s.Delete(key)
		return
	}
	s.Set(key, addr.Bytes())
}

// GetJSON decodes the record at key into v. Returns false if missing.
func (s *StateDB) GetJSON(key []byte, v any) (bool, error) {
	data := s.Get(key)
	if data == nil {
		return false, nil
	}
	if err := storage.DecodeJSON(data, v); err != nil {
		return false, err
	}
	return true, nil
}

func (s *StateDB) SetJSON(key []byte, v any) error {
	data, err := storage.EncodeJSON(v)
	if err != nil {
		return err
	}
	s.Set(key, data)
	return nil
}

func (s *StateDB) addLog(l Log) {
	s.journal.append(addLogChange{})
	s.logs = append(s.logs, l)
}

// Logs returns the logs emitted so far in the current call.
func (s *StateDB) Logs() []Log {
	out := make([]Log, len(s.logs))
	copy(out, s.logs)
	return out
}

// Root returns the last committed state root.
func (s *StateDB) Root() common.Hash {
	v, err := s.backend.Get(rootKey)
	if err != nil {
		return common.Hash{}
	}
	return common.BytesToHash(v)
}

// Commit flushes the overlay to the backend in one batch and returns the
// new state root: keccak(prevRoot || key || value ...) over the sorted
// dirty keys.
func (s *StateDB) Commit() (common.Hash, error) {
	if s.dbErr != nil {
		return common.Hash{}, s.dbErr
	}
	prev := s.Root()

	keys := make([]string, 0, len(s.dirty))
	for k := range s.dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha3.NewLegacyKeccak256()
	h.Write(prev.Bytes())
	batch := storage.NewBatch()
	for _, k := range keys {
		sl := s.dirty[k]
		h.Write([]byte(k))
		if sl.deleted {
			h.Write([]byte{0})
			batch.Delete([]byte(k))
			continue
		}
		h.Write([]byte{1})
		h.Write(sl.value)
		batch.Put([]byte(k), sl.value)
	}
	root := common.BytesToHash(h.Sum(nil))
	if len(keys) == 0 {
		root = prev
	} else {
		batch.Put(rootKey, root.Bytes())
	}

	if err := s.backend.Apply(batch); err != nil {
		return common.Hash{}, fmt.Errorf("failed to commit state: %w", err)
	}
	s.Discard()
	return root, nil
}

// Discard drops every uncommitted write and log.
func (s *StateDB) Discard() {
	s.dirty = make(map[string]slot)
	s.journal.reset()
	s.logs = nil
	s.dbErr = nil
}
