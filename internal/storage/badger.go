package storage

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// gcDiscardRatio is the fraction of stale data a value-log file needs
// before it is rewritten.
const gcDiscardRatio = 0.5

// BadgerOptions tunes the Badger engine.
type BadgerOptions struct {
	// MemTableSize in bytes. A block is committed in one transaction, so
	// this bounds the largest block that can be processed.
	MemTableSize int64
	// InMemory keeps everything in RAM. Used by tests.
	InMemory bool
}

// BadgerDB implements DB using Badger.
type BadgerDB struct {
	db       *badger.DB
	inMemory bool
}

// NewBadger creates a new Badger database at the given path.
func NewBadger(path string, o BadgerOptions) (*BadgerDB, error) {
	opts := badger.DefaultOptions(path)
	if o.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil // Disable badger's built-in logging.
	if o.MemTableSize > 0 {
		opts.MemTableSize = o.MemTableSize
	}

	db, err := badger.Open(opts)
	if err != nil {
		errMsg := err.Error()
		if strings.Contains(errMsg, "Cannot acquire directory lock") ||
			strings.Contains(errMsg, "resource temporarily unavailable") {
			return nil, fmt.Errorf("database at %s is locked by another process (is another preparator running?): %w", path, err)
		}
		return nil, fmt.Errorf("open database at %s: %w", path, err)
	}
	return &BadgerDB{db: db, inMemory: o.InMemory}, nil
}

// Begin opens a Badger transaction.
func (b *BadgerDB) Begin(update bool) Txn {
	return &badgerTxn{txn: b.db.NewTransaction(update)}
}

// Update runs fn in a read-write transaction.
func (b *BadgerDB) Update(fn func(txn Txn) error) error {
	return update(b, fn)
}

// View runs fn in a read-only transaction.
func (b *BadgerDB) View(fn func(txn Txn) error) error {
	return view(b, fn)
}

// Get retrieves a value by key. Returns ErrNotFound if the key does not exist.
func (b *BadgerDB) Get(key []byte) ([]byte, error) {
	var val []byte
	err := b.View(func(txn Txn) error {
		var err error
		val, err = txn.Get(key)
		return err
	})
	return val, err
}

// Put stores a key-value pair.
func (b *BadgerDB) Put(key, value []byte) error {
	return b.Update(func(txn Txn) error { return txn.Put(key, value) })
}

// Delete removes a key.
func (b *BadgerDB) Delete(key []byte) error {
	return b.Update(func(txn Txn) error { return txn.Delete(key) })
}

// Has checks if a key exists.
func (b *BadgerDB) Has(key []byte) (bool, error) {
	var exists bool
	err := b.View(func(txn Txn) error {
		var err error
		exists, err = txn.Has(key)
		return err
	})
	return exists, err
}

// ForEach iterates over all keys with the given prefix.
func (b *BadgerDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	return b.View(func(txn Txn) error { return txn.ForEach(prefix, fn) })
}

// DropPrefix removes every key under the given prefixes.
func (b *BadgerDB) DropPrefix(prefixes ...[]byte) error {
	if err := b.db.DropPrefix(prefixes...); err != nil {
		return fmt.Errorf("badger drop prefix: %w", err)
	}
	return nil
}

// CleanLog runs one value-log garbage collection pass.
func (b *BadgerDB) CleanLog() (bool, error) {
	err := b.db.RunValueLogGC(gcDiscardRatio)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrNoRewrite),
		errors.Is(err, badger.ErrRejected),
		errors.Is(err, badger.ErrGCInMemoryMode):
		return false, nil
	default:
		return false, fmt.Errorf("badger value log gc: %w", err)
	}
}

// Checkpoint syncs memtables and the value log to disk.
func (b *BadgerDB) Checkpoint() error {
	if b.inMemory {
		return nil
	}
	if err := b.db.Sync(); err != nil {
		return fmt.Errorf("badger sync: %w", err)
	}
	return nil
}

// EvictMemory returns freed heap to the operating system. Badger's block
// cache is sized at open time and has no eviction call of its own.
func (b *BadgerDB) EvictMemory() {
	debug.FreeOSMemory()
}

// Close closes the database.
func (b *BadgerDB) Close() error {
	return b.db.Close()
}

type badgerTxn struct {
	txn *badger.Txn
}

func (t *badgerTxn) Get(key []byte) ([]byte, error) {
	item, err := t.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, fmt.Errorf("badger value: %w", err)
	}
	return val, nil
}

func (t *badgerTxn) Put(key, value []byte) error {
	// Badger keeps references to the slices until commit.
	k := append([]byte(nil), key...)
	v := append([]byte(nil), value...)
	if err := t.txn.Set(k, v); err != nil {
		return fmt.Errorf("badger put: %w", err)
	}
	return nil
}

func (t *badgerTxn) Delete(key []byte) error {
	k := append([]byte(nil), key...)
	if err := t.txn.Delete(k); err != nil {
		return fmt.Errorf("badger delete: %w", err)
	}
	return nil
}

func (t *badgerTxn) Has(key []byte) (bool, error) {
	_, err := t.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("badger has: %w", err)
	}
	return true, nil
}

func (t *badgerTxn) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := t.txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		val, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("badger value: %w", err)
		}
		if err := fn(key, val); err != nil {
			return err
		}
	}
	return nil
}

func (t *badgerTxn) Commit() error {
	if err := t.txn.Commit(); err != nil {
		return fmt.Errorf("badger commit: %w", err)
	}
	return nil
}

func (t *badgerTxn) Discard() {
	t.txn.Discard()
}
