package storage

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

var (
	errReadOnly = errors.New("write in read-only transaction")
	errTxnDone  = errors.New("transaction already finished")
)

// MemoryDB implements DB using an in-memory map.
type MemoryDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates a new in-memory database.
func NewMemory() *MemoryDB {
	return &MemoryDB{
		data: make(map[string][]byte),
	}
}

// Begin opens a transaction that buffers writes until Commit.
func (m *MemoryDB) Begin(update bool) Txn {
	return &memTxn{db: m, update: update, pending: make(map[string]*[]byte)}
}

// Update runs fn in a read-write transaction.
func (m *MemoryDB) Update(fn func(txn Txn) error) error {
	return update(m, fn)
}

// View runs fn in a read-only transaction.
func (m *MemoryDB) View(fn func(txn Txn) error) error {
	return view(m, fn)
}

// Get retrieves a value by key.
func (m *MemoryDB) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte{}, v...), nil
}

// Put stores a key-value pair.
func (m *MemoryDB) Put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(key)] = append([]byte{}, value...)
	return nil
}

// Delete removes a key.
func (m *MemoryDB) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

// Has checks if a key exists.
func (m *MemoryDB) Has(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[string(key)]
	return ok, nil
}

// ForEach iterates over all keys with the given prefix in key order.
func (m *MemoryDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	return m.View(func(txn Txn) error { return txn.ForEach(prefix, fn) })
}

// DropPrefix removes every key under the given prefixes.
func (m *MemoryDB) DropPrefix(prefixes ...[]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.data {
		for _, p := range prefixes {
			if strings.HasPrefix(k, string(p)) {
				delete(m.data, k)
				break
			}
		}
	}
	return nil
}

// CleanLog has nothing to reclaim.
func (m *MemoryDB) CleanLog() (bool, error) { return false, nil }

// Checkpoint is a no-op.
func (m *MemoryDB) Checkpoint() error { return nil }

// EvictMemory is a no-op.
func (m *MemoryDB) EvictMemory() {}

// Close closes the database.
func (m *MemoryDB) Close() error {
	return nil
}

// memTxn overlays pending writes on the shared map. A nil entry in
// pending marks a delete.
type memTxn struct {
	db      *MemoryDB
	update  bool
	done    bool
	pending map[string]*[]byte
}

func (t *memTxn) Get(key []byte) ([]byte, error) {
	if p, ok := t.pending[string(key)]; ok {
		if p == nil {
			return nil, ErrNotFound
		}
		return append([]byte{}, (*p)...), nil
	}
	return t.db.Get(key)
}

func (t *memTxn) Put(key, value []byte) error {
	if t.done {
		return errTxnDone
	}
	if !t.update {
		return errReadOnly
	}
	v := append([]byte{}, value...)
	t.pending[string(key)] = &v
	return nil
}

func (t *memTxn) Delete(key []byte) error {
	if t.done {
		return errTxnDone
	}
	if !t.update {
		return errReadOnly
	}
	t.pending[string(key)] = nil
	return nil
}

func (t *memTxn) Has(key []byte) (bool, error) {
	if p, ok := t.pending[string(key)]; ok {
		return p != nil, nil
	}
	return t.db.Has(key)
}

func (t *memTxn) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	p := string(prefix)
	merged := make(map[string][]byte)

	t.db.mu.RLock()
	for k, v := range t.db.data {
		if strings.HasPrefix(k, p) {
			merged[k] = v
		}
	}
	t.db.mu.RUnlock()

	for k, v := range t.pending {
		if !strings.HasPrefix(k, p) {
			continue
		}
		if v == nil {
			delete(merged, k)
		} else {
			merged[k] = *v
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := fn([]byte(k), append([]byte{}, merged[k]...)); err != nil {
			return err
		}
	}
	return nil
}

func (t *memTxn) Commit() error {
	if t.done {
		return errTxnDone
	}
	t.done = true
	if !t.update {
		return nil
	}
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	for k, v := range t.pending {
		if v == nil {
			delete(t.db.data, k)
		} else {
			t.db.data[k] = *v
		}
	}
	return nil
}

func (t *memTxn) Discard() {
	t.done = true
	t.pending = nil
}
