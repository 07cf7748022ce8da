// Package chain stores source blocks, their successor links and the named
// progress cursors of the pipeline.
package chain

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/wire"
	"github.com/radixdlt/mtps/internal/storage"
	"github.com/radixdlt/mtps/pkg/types"
)

// ErrBlockNotFound is returned when a block hash is not in the store.
var ErrBlockNotFound = errors.New("block not found")

// Key prefixes for the chain store.
var (
	prefixBlock     = []byte("b/") // b/<hash> -> raw block
	prefixSuccessor = []byte("n/") // n/<prev> -> hash
	prefixLoad      = []byte("p/") // p/<name> -> loader cursor
	prefixWork      = []byte("w/") // w/<name> -> walker cursor
)

// loaderCursors live under p/ and survive a work reset.
var loaderCursors = map[string]bool{
	CursorLastSegment:  true,
	CursorStoredBlocks: true,
	CursorTotalTx:      true,
}

// Store is the chain store. Reads and writes go through a storage
// transaction supplied by the caller so that block data, index mutations
// and cursors commit together.
type Store struct {
	db storage.DB
}

// NewStore creates a chain store on db.
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

// Begin opens a read-write transaction.
func (s *Store) Begin() storage.Txn {
	return s.db.Begin(true)
}

// Update runs fn in a read-write transaction.
func (s *Store) Update(fn func(txn storage.Txn) error) error {
	return s.db.Update(fn)
}

// View runs fn in a read-only transaction.
func (s *Store) View(fn func(txn storage.Txn) error) error {
	return s.db.View(fn)
}

// PutBlock stores raw under hash and links it as the successor of prev.
// It does nothing and reports false if the block is already stored.
func PutBlock(txn storage.KV, hash, prev types.Hash, raw []byte) (bool, error) {
	has, err := txn.Has(key(prefixBlock, hash[:]))
	if err != nil {
		return false, fmt.Errorf("block has: %w", err)
	}
	if has {
		return false, nil
	}
	if err := txn.Put(key(prefixBlock, hash[:]), raw); err != nil {
		return false, fmt.Errorf("block put: %w", err)
	}
	// A later fork block overwrites the link of an earlier one.
	if err := txn.Put(key(prefixSuccessor, prev[:]), hash[:]); err != nil {
		return false, fmt.Errorf("successor put: %w", err)
	}
	return true, nil
}

// HasBlock reports whether hash is stored.
func HasBlock(txn storage.KV, hash types.Hash) (bool, error) {
	return txn.Has(key(prefixBlock, hash[:]))
}

// GetBlock returns the raw bytes of a stored block.
func GetBlock(txn storage.KV, hash types.Hash) ([]byte, error) {
	data, err := txn.Get(key(prefixBlock, hash[:]))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrBlockNotFound, displayHash(hash))
	}
	if err != nil {
		return nil, fmt.Errorf("block get: %w", err)
	}
	return data, nil
}

// GetMsgBlock returns a stored block decoded.
func GetMsgBlock(txn storage.KV, hash types.Hash) (*wire.MsgBlock, error) {
	raw, err := GetBlock(txn, hash)
	if err != nil {
		return nil, err
	}
	var blk wire.MsgBlock
	if err := blk.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("block %s decode: %w", displayHash(hash), err)
	}
	return &blk, nil
}

// NextHash returns the successor of hash, if any.
func NextHash(txn storage.KV, hash types.Hash) (types.Hash, bool, error) {
	data, err := txn.Get(key(prefixSuccessor, hash[:]))
	if errors.Is(err, storage.ErrNotFound) {
		return types.Hash{}, false, nil
	}
	if err != nil {
		return types.Hash{}, false, fmt.Errorf("successor get: %w", err)
	}
	next, err := types.HashFromBytes(data)
	if err != nil {
		return types.Hash{}, false, fmt.Errorf("corrupt successor: %w", err)
	}
	return next, true, nil
}

// Cursor returns the named counter, or def if it was never set.
func Cursor(txn storage.KV, name string, def uint64) (uint64, error) {
	data, err := txn.Get(cursorKey(name))
	if errors.Is(err, storage.ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cursor %s get: %w", name, err)
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt cursor %s: got %d bytes", name, len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// SetCursor stores the named counter.
func SetCursor(txn storage.KV, name string, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	if err := txn.Put(cursorKey(name), buf[:]); err != nil {
		return fmt.Errorf("cursor %s put: %w", name, err)
	}
	return nil
}

// HashCursor returns the named hash cursor and whether it is set.
func HashCursor(txn storage.KV, name string) (types.Hash, bool, error) {
	data, err := txn.Get(cursorKey(name))
	if errors.Is(err, storage.ErrNotFound) {
		return types.Hash{}, false, nil
	}
	if err != nil {
		return types.Hash{}, false, fmt.Errorf("cursor %s get: %w", name, err)
	}
	h, err := types.HashFromBytes(data)
	if err != nil {
		return types.Hash{}, false, fmt.Errorf("corrupt cursor %s: %w", name, err)
	}
	return h, true, nil
}

// SetHashCursor stores the named hash cursor.
func SetHashCursor(txn storage.KV, name string, h types.Hash) error {
	if err := txn.Put(cursorKey(name), h[:]); err != nil {
		return fmt.Errorf("cursor %s put: %w", name, err)
	}
	return nil
}

// BlockCount returns the number of blocks stored by the loader.
func (s *Store) BlockCount() (uint64, error) {
	var n uint64
	err := s.db.View(func(txn storage.Txn) error {
		var err error
		n, err = Cursor(txn, CursorStoredBlocks, 0)
		return err
	})
	return n, err
}

// ResetBlocks removes every stored block, the successor links and the
// loader cursors.
func (s *Store) ResetBlocks() error {
	if err := s.db.DropPrefix(prefixBlock, prefixSuccessor, prefixLoad); err != nil {
		return fmt.Errorf("reset blocks: %w", err)
	}
	return nil
}

// ResetWork removes the walker cursors together with the given work tables.
func (s *Store) ResetWork(tables ...[]byte) error {
	prefixes := append([][]byte{prefixWork}, tables...)
	if err := s.db.DropPrefix(prefixes...); err != nil {
		return fmt.Errorf("reset work: %w", err)
	}
	return nil
}

// CleanLog reclaims log space. It reports false when there was nothing to
// reclaim or the engine needs no cleaning.
func (s *Store) CleanLog() (bool, error) {
	if m, ok := s.db.(storage.Maintainer); ok {
		return m.CleanLog()
	}
	return false, nil
}

// Checkpoint flushes buffered writes.
func (s *Store) Checkpoint() error {
	if m, ok := s.db.(storage.Maintainer); ok {
		return m.Checkpoint()
	}
	return nil
}

// EvictMemory releases cached memory.
func (s *Store) EvictMemory() {
	if m, ok := s.db.(storage.Maintainer); ok {
		m.EvictMemory()
	}
}

func cursorKey(name string) []byte {
	if loaderCursors[name] {
		return key(prefixLoad, []byte(name))
	}
	return key(prefixWork, []byte(name))
}

func key(prefix, k []byte) []byte {
	out := make([]byte, len(prefix)+len(k))
	copy(out, prefix)
	copy(out[len(prefix):], k)
	return out
}

// displayHash renders a wire-order hash the way explorers show it.
func displayHash(h types.Hash) string {
	return h.Reversed().String()
}
