package chain

// journalEntry is one undoable modification of the state overlay.
type journalEntry interface {
	revert(s *StateDB)
}

type journal struct {
	entries []journalEntry
}

func (j *journal) append(e journalEntry) { j.entries = append(j.entries, e) }

func (j *journal) length() int { return len(j.entries) }

// revertTo undoes entries in reverse order down to (but excluding) index n.
func (j *journal) revertTo(s *StateDB, n int) {
	for i := len(j.entries) - 1; i >= n; i-- {
		j.entries[i].revert(s)
	}
	j.entries = j.entries[:n]
}

func (j *journal) reset() { j.entries = j.entries[:0] }

type (
	// storageChange restores the previous overlay slot of key.
	storageChange struct {
		key     string
		prev    slot
		hadPrev bool
	}
	// addLogChange drops the most recent log.
	addLogChange struct{}
)

func (c storageChange) revert(s *StateDB) {
	if c.hadPrev {
		s.dirty[c.key] = c.prev
		return
	}
	delete(s.dirty, c.key)
}

func (addLogChange) revert(s *StateDB) {
	s.logs = s.logs[:len(s.logs)-1]
}
