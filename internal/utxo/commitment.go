package utxo

import (
	"fmt"

	"github.com/radixdlt/mtps/internal/storage"
	"github.com/radixdlt/mtps/pkg/types"
	"github.com/zeebo/blake3"
)

// Commitment hashes the unspent, banned and ignored sets. Two indexes
// with the same contents have the same commitment, whatever the order in
// which they were built.
func Commitment(x *Index) (types.Hash, error) {
	h := blake3.New()
	err := x.unspent.ForEach(nil, func(key, value []byte) error {
		h.Write(key)
		h.Write(value)
		return nil
	})
	if err != nil {
		return types.Hash{}, fmt.Errorf("utxo commitment: %w", err)
	}
	for _, t := range []*storage.Table{x.banned, x.ignored} {
		h.Write([]byte{'|'})
		if err := t.ForEach(nil, func(key, _ []byte) error {
			h.Write(key)
			return nil
		}); err != nil {
			return types.Hash{}, fmt.Errorf("utxo commitment: %w", err)
		}
	}
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out, nil
}
