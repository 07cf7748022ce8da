package storage

// Table wraps a KV and prepends a fixed prefix to all keys.
// Each logical table of a store lives under its own prefix.
type Table struct {
	inner  KV
	prefix []byte
}

// NewTable creates a new Table wrapping inner with the given prefix.
func NewTable(inner KV, prefix []byte) *Table {
	p := make([]byte, len(prefix))
	copy(p, prefix)
	return &Table{inner: inner, prefix: p}
}

// prefixed returns key with the prefix prepended.
func (p *Table) prefixed(key []byte) []byte {
	out := make([]byte, len(p.prefix)+len(key))
	copy(out, p.prefix)
	copy(out[len(p.prefix):], key)
	return out
}

// Get retrieves a value by key.
func (p *Table) Get(key []byte) ([]byte, error) {
	return p.inner.Get(p.prefixed(key))
}

// Put stores a key-value pair.
func (p *Table) Put(key, value []byte) error {
	return p.inner.Put(p.prefixed(key), value)
}

// Delete removes a key.
func (p *Table) Delete(key []byte) error {
	return p.inner.Delete(p.prefixed(key))
}

// Has checks if a key exists.
func (p *Table) Has(key []byte) (bool, error) {
	return p.inner.Has(p.prefixed(key))
}

// ForEach iterates over all keys with the given prefix (within the table).
// The callback receives keys with the table prefix stripped, so callers see
// only their logical keyspace.
func (p *Table) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	fullPrefix := p.prefixed(prefix)
	return p.inner.ForEach(fullPrefix, func(key, value []byte) error {
		return fn(key[len(p.prefix):], value)
	})
}

// Count returns the number of keys in the table.
func (p *Table) Count() (uint64, error) {
	var n uint64
	err := p.inner.ForEach(p.prefix, func(_, _ []byte) error {
		n++
		return nil
	})
	return n, err
}
