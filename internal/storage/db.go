// Package storage provides transactional key-value abstractions.
package storage

import "errors"

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

// KV is the set of key-value operations shared by databases, transactions
// and table views.
type KV interface {
	// Get returns ErrNotFound if the key does not exist.
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach iterates over all keys with the given prefix in key order.
	// The callback receives a copy of the key and value.
	// Return a non-nil error from fn to stop iteration early.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
}

// Txn is a unit of work. Reads observe the transaction's own pending writes.
// Nothing becomes durable until Commit succeeds.
type Txn interface {
	KV
	Commit() error
	// Discard releases the transaction. It is safe to call after Commit.
	Discard()
}

// DB is the interface for transactional key-value storage.
type DB interface {
	KV
	// Begin opens a transaction. Read-only transactions reject writes.
	Begin(update bool) Txn
	// Update runs fn in a read-write transaction and commits it if fn
	// returns nil.
	Update(fn func(txn Txn) error) error
	// View runs fn in a read-only transaction.
	View(fn func(txn Txn) error) error
	// DropPrefix removes every key under each prefix.
	DropPrefix(prefixes ...[]byte) error
	Close() error
}

// Maintainer is implemented by engines that need periodic housekeeping.
type Maintainer interface {
	// CleanLog reclaims log space. It reports whether anything was reclaimed.
	CleanLog() (bool, error)
	// Checkpoint flushes buffered writes to disk.
	Checkpoint() error
	// EvictMemory releases cached memory back to the operating system.
	EvictMemory()
}

func update(db DB, fn func(txn Txn) error) error {
	txn := db.Begin(true)
	defer txn.Discard()
	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

func view(db DB, fn func(txn Txn) error) error {
	txn := db.Begin(false)
	defer txn.Discard()
	return fn(txn)
}
