package utxo

import (
	"errors"
	"fmt"

	"github.com/radixdlt/mtps/internal/storage"
	"github.com/radixdlt/mtps/pkg/types"
)

// Key prefixes of the work tables.
var (
	prefixUnspent = []byte("u/") // u/<output id> -> entry
	prefixBanned  = []byte("x/") // x/<output id> -> empty
	prefixIgnored = []byte("i/") // i/<output id> -> empty
	prefixAddr    = []byte("a/") // a/<pubkey> -> empty
)

// Tables returns the prefixes of every work table, for resets.
func Tables() [][]byte {
	return [][]byte{prefixUnspent, prefixBanned, prefixIgnored, prefixAddr}
}

// Index is the unspent index bound to one storage transaction.
type Index struct {
	unspent  *storage.Table
	banned   *storage.Table
	ignored  *storage.Table
	addrs    *storage.Table
	tokenRef string
}

// Bind returns the index as seen through kv. Decoded records carry tokenRef.
func Bind(kv storage.KV, tokenRef string) *Index {
	return &Index{
		unspent:  storage.NewTable(kv, prefixUnspent),
		banned:   storage.NewTable(kv, prefixBanned),
		ignored:  storage.NewTable(kv, prefixIgnored),
		addrs:    storage.NewTable(kv, prefixAddr),
		tokenRef: tokenRef,
	}
}

// Get returns the unspent entry of id. It returns ErrMissingEntry if there
// is none.
func (x *Index) Get(id types.OutputID) (*Entry, error) {
	data, err := x.unspent.Get(id[:])
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrMissingEntry, id)
	}
	if err != nil {
		return nil, fmt.Errorf("unspent get: %w", err)
	}
	e, err := UnmarshalEntry(data, x.tokenRef)
	if err != nil {
		return nil, fmt.Errorf("unspent %s: %w", id, err)
	}
	return e, nil
}

// Put stores the entry of id.
func (x *Index) Put(id types.OutputID, e *Entry) error {
	data, err := e.MarshalBinary()
	if err != nil {
		return err
	}
	if err := x.unspent.Put(id[:], data); err != nil {
		return fmt.Errorf("unspent put: %w", err)
	}
	return nil
}

// Delete removes the entry of id.
func (x *Index) Delete(id types.OutputID) error {
	if err := x.unspent.Delete(id[:]); err != nil {
		return fmt.Errorf("unspent delete: %w", err)
	}
	return nil
}

// Has reports whether id is unspent.
func (x *Index) Has(id types.OutputID) (bool, error) {
	return x.unspent.Has(id[:])
}

// ForEach calls fn for every unspent entry in output id order.
func (x *Index) ForEach(fn func(id types.OutputID, e *Entry) error) error {
	return x.unspent.ForEach(nil, func(key, value []byte) error {
		id, err := types.OutputIDFromBytes(key)
		if err != nil {
			return fmt.Errorf("corrupt unspent key: %w", err)
		}
		e, err := UnmarshalEntry(value, x.tokenRef)
		if err != nil {
			return fmt.Errorf("unspent %s: %w", id, err)
		}
		return fn(id, e)
	})
}

// Count returns the number of unspent entries.
func (x *Index) Count() (uint64, error) {
	return x.unspent.Count()
}

// Ban adds id to the banned set.
func (x *Index) Ban(id types.OutputID) error {
	if err := x.banned.Put(id[:], []byte{}); err != nil {
		return fmt.Errorf("banned put: %w", err)
	}
	return nil
}

// IsBanned reports whether id is banned.
func (x *Index) IsBanned(id types.OutputID) (bool, error) {
	return x.banned.Has(id[:])
}

// Ignore adds id to the ignored set.
func (x *Index) Ignore(id types.OutputID) error {
	if err := x.ignored.Put(id[:], []byte{}); err != nil {
		return fmt.Errorf("ignored put: %w", err)
	}
	return nil
}

// IsIgnored reports whether id is ignored.
func (x *Index) IsIgnored(id types.OutputID) (bool, error) {
	return x.ignored.Has(id[:])
}

// Unignore removes id from the ignored set.
func (x *Index) Unignore(id types.OutputID) error {
	if err := x.ignored.Delete(id[:]); err != nil {
		return fmt.Errorf("ignored delete: %w", err)
	}
	return nil
}

// SeeAddress records addr and reports whether it was seen for the first time.
func (x *Index) SeeAddress(addr types.Address) (bool, error) {
	seen, err := x.addrs.Has(addr[:])
	if err != nil {
		return false, fmt.Errorf("address has: %w", err)
	}
	if seen {
		return false, nil
	}
	if err := x.addrs.Put(addr[:], []byte{}); err != nil {
		return false, fmt.Errorf("address put: %w", err)
	}
	return true, nil
}
