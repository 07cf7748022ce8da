// Package builder turns resolved transactions into signed atom records.
package builder

import (
	"fmt"
	"sync"

	"github.com/radixdlt/mtps/internal/keys"
	"github.com/radixdlt/mtps/pkg/atom"
	"github.com/radixdlt/mtps/pkg/crypto"
	"github.com/radixdlt/mtps/pkg/types"
)

// Item is the unit of work of one source transaction: its consumed and
// produced records and the keys that must sign them.
type Item struct {
	// TxID is the source transaction hash in wire order.
	TxID            types.Hash
	BlockTimeMillis int64
	Particles       []atom.SpunRecord
	Signers         []keys.OwningKey

	once sync.Once
	rec  *atom.Record
	err  error
}

// NewItem creates an item. Duplicate signers are dropped.
func NewItem(txid types.Hash, blockTimeMillis int64, particles []atom.SpunRecord, signers []keys.OwningKey) *Item {
	return &Item{
		TxID:            txid,
		BlockTimeMillis: blockTimeMillis,
		Particles:       particles,
		Signers:         dedupe(signers),
	}
}

func dedupe(signers []keys.OwningKey) []keys.OwningKey {
	seen := make(map[types.Address]struct{}, len(signers))
	out := signers[:0:0]
	for _, k := range signers {
		if _, ok := seen[k.Pub]; ok {
			continue
		}
		seen[k.Pub] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Build signs the item and returns its record. The first call does the
// work; later calls return the cached result without signing again.
func (it *Item) Build(kh crypto.KeyHandler) (*atom.Record, error) {
	it.once.Do(func() {
		it.rec, it.err = build(it, kh)
	})
	return it.rec, it.err
}

// Record returns the built record, or nil if Build has not succeeded.
func (it *Item) Record() *atom.Record {
	return it.rec
}

func build(it *Item, kh crypto.KeyHandler) (*atom.Record, error) {
	rec := &atom.Record{
		TxID:            it.TxID.Reversed(),
		BlockTimeMillis: it.BlockTimeMillis,
		Shards:          atom.ShardsOf(it.Particles),
		Particles:       it.Particles,
		Signatures:      make([]atom.SignatureEntry, 0, len(it.Signers)),
	}
	hash := atom.ContentHash(rec.TxID, rec.BlockTimeMillis, rec.Particles)
	for _, k := range it.Signers {
		sig, err := kh.Sign(hash[:], k.Priv[:])
		if err != nil {
			return nil, fmt.Errorf("sign %s for %s: %w", rec.TxID, k.EUID(), err)
		}
		rec.Signatures = append(rec.Signatures, atom.SignatureEntry{Signer: k.EUID(), Signature: sig})
	}
	atom.SortSignatures(rec.Signatures)
	prometheusBuilderSignatures.Add(float64(len(rec.Signatures)))
	return rec, nil
}
