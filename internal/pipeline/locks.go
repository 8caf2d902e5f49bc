package pipeline

import "sync"

// lockTable serializes concurrent mutations of the same scan id. Batch
// operations over disjoint scans never contend; two overlapping requests
// touching the same scan take turns instead of racing on its status.
// Entries are reference counted and dropped once the last holder releases,
// so the table stays proportional to in-flight work.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*lockEntry)}
}

// lock acquires the mutex for one scan id and returns its release func.
func (t *lockTable) lock(id string) func() {
	t.mu.Lock()
	e, ok := t.locks[id]
	if !ok {
		e = &lockEntry{}
		t.locks[id] = e
	}
	e.refs++
	t.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		t.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(t.locks, id)
		}
		t.mu.Unlock()
	}
}
