// Package resolver maps the consumed and produced outputs of each source
// transaction to derived records and owning keys, maintaining the unspent
// index on the way.
package resolver

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/radixdlt/mtps/internal/builder"
	"github.com/radixdlt/mtps/internal/keys"
	"github.com/radixdlt/mtps/internal/log"
	"github.com/radixdlt/mtps/internal/storage"
	"github.com/radixdlt/mtps/internal/utxo"
	"github.com/radixdlt/mtps/pkg/atom"
	"github.com/radixdlt/mtps/pkg/crypto"
	"github.com/radixdlt/mtps/pkg/types"
)

// Config configures a Resolver.
type Config struct {
	KeyHandler crypto.KeyHandler
	Generator  *keys.Generator
	Params     *chaincfg.Params
	TokenRef   string
}

// Resolver resolves blocks one at a time. It is not safe for concurrent
// use: block order is the order of index mutations.
type Resolver struct {
	cfg Config
}

// New creates a resolver.
func New(cfg Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// Resolve processes every transaction of blk in order against the index
// seen through txn and returns the items of the valid ones. Counters are
// advanced in c. On error the caller must discard txn.
func (r *Resolver) Resolve(txn storage.KV, blk *wire.MsgBlock, cache *KeyCache, c *Counters) ([]*builder.Item, error) {
	idx := utxo.Bind(txn, r.cfg.TokenRef)
	blockTime := blk.Header.Timestamp.UnixMilli()
	items := make([]*builder.Item, 0, len(blk.Transactions))

	for _, tx := range blk.Transactions {
		txid := types.Hash(tx.TxHash())
		coinbase := IsCoinbase(tx)

		valid, err := r.valid(idx, tx, coinbase)
		if err != nil {
			return nil, err
		}
		if !valid {
			if err := r.banOutputs(idx, txid, tx); err != nil {
				return nil, err
			}
			c.BannedTx++
			c.BannedBadInput += uint64(len(tx.TxOut))
			prometheusResolverTransactions.WithLabelValues("banned").Inc()
			continue
		}
		c.ValidTx++
		prometheusResolverTransactions.WithLabelValues("valid").Inc()

		item, err := r.resolveTx(idx, tx, txid, coinbase, blockTime, cache, c)
		if err != nil {
			return nil, fmt.Errorf("tx %s: %w", txid.Reversed(), err)
		}
		items = append(items, item)
	}
	return items, nil
}

// IsCoinbase reports whether tx creates coins: one input with a null
// previous output.
func IsCoinbase(tx *wire.MsgTx) bool {
	if len(tx.TxIn) != 1 {
		return false
	}
	prev := tx.TxIn[0].PreviousOutPoint
	return prev.Index == wire.MaxPrevOutIndex && prev.Hash == (chainhash.Hash{})
}

// valid reports false if any consumed output is banned.
func (r *Resolver) valid(idx *utxo.Index, tx *wire.MsgTx, coinbase bool) (bool, error) {
	if coinbase {
		return true, nil
	}
	for _, in := range tx.TxIn {
		banned, err := idx.IsBanned(inputID(in))
		if err != nil {
			return false, fmt.Errorf("banned lookup: %w", err)
		}
		if banned {
			return false, nil
		}
	}
	return true, nil
}

func (r *Resolver) banOutputs(idx *utxo.Index, txid types.Hash, tx *wire.MsgTx) error {
	for i := range tx.TxOut {
		if err := idx.Ban(types.NewOutputID(txid, uint32(i))); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolver) resolveTx(idx *utxo.Index, tx *wire.MsgTx, txid types.Hash, coinbase bool, blockTime int64, cache *KeyCache, c *Counters) (*builder.Item, error) {
	particles := make([]atom.SpunRecord, 0, len(tx.TxIn)+len(tx.TxOut))
	var signers []keys.OwningKey

	if !coinbase {
		for _, in := range tx.TxIn {
			id := inputID(in)
			ignored, err := idx.IsIgnored(id)
			if err != nil {
				return nil, fmt.Errorf("ignored lookup: %w", err)
			}
			if ignored {
				if err := idx.Unignore(id); err != nil {
					return nil, err
				}
				continue
			}
			entry, err := idx.Get(id)
			if err != nil {
				return nil, err
			}
			if err := idx.Delete(id); err != nil {
				return nil, err
			}
			c.Inputs++
			particles = append(particles, atom.SpunRecord{Spin: atom.SpinDown, Record: entry.Record})
			signers = append(signers, keys.OwningKey{Priv: entry.PrivKey, Pub: entry.Record.Address})
		}
	}

	needSigner := coinbase
	for i, out := range tx.TxOut {
		id := types.NewOutputID(txid, uint32(i))
		if out.Value <= 0 {
			if err := idx.Ignore(id); err != nil {
				return nil, err
			}
			c.Ignored++
			c.BannedZeroValue++
			continue
		}

		key, err := r.ownerKey(out.PkScript, cache, c)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		rec := atom.NewTransferRecord(uint64(out.Value), key.Pub, atom.NonceFor(id), r.cfg.TokenRef, blockTime)
		dup, err := idx.Has(id)
		if err != nil {
			return nil, err
		}
		if dup {
			log.Resolver.Warn().
				Str("txid", txid.Reversed().String()).
				Int("output", i).
				Msg("Output replaces a live entry with the same id")
			c.Duplicates++
		}
		if err := idx.Put(id, &utxo.Entry{PrivKey: key.Priv, Record: rec}); err != nil {
			return nil, err
		}
		first, err := idx.SeeAddress(key.Pub)
		if err != nil {
			return nil, err
		}
		if first {
			c.UniqueAddresses++
		}
		c.Outputs++
		particles = append(particles, atom.SpunRecord{Spin: atom.SpinUp, Record: rec})

		if needSigner {
			signers = append(signers, key)
			needSigner = false
		}
	}

	if needSigner {
		log.Resolver.Warn().Str("txid", txid.Reversed().String()).Msg("Coinbase has no output to sign with")
	}
	if len(signers) == 0 {
		log.Resolver.Warn().Str("txid", txid.Reversed().String()).Msg("Transaction has no signer")
		c.UnsignedTx++
	}
	return builder.NewItem(txid, blockTime, particles, signers), nil
}

// ownerKey returns the owning key of an output script: derived from its
// address hash when it has one, otherwise the next generated key.
func (r *Resolver) ownerKey(pkScript []byte, cache *KeyCache, c *Counters) (keys.OwningKey, error) {
	class, hash := keys.Classify(pkScript, r.cfg.Params)
	switch class {
	case keys.ClassP2SH:
		c.ScriptP2SH++
	case keys.ClassP2WSH:
		c.ScriptP2WSH++
	case keys.ClassP2WPKH:
		c.ScriptP2WPKH++
	case keys.ClassBadPubKey:
		c.BadPubKey++
	case keys.ClassOther:
		c.ScriptOther++
	}

	if hash != nil {
		if k, ok := cache.Get(hash); ok {
			return k, nil
		}
		k, err := keys.Deterministic(r.cfg.KeyHandler, hash)
		if err != nil {
			return keys.OwningKey{}, err
		}
		cache.put(hash, k)
		return k, nil
	}

	k, err := r.cfg.Generator.Key(c.GeneratedKeys)
	if err != nil {
		return keys.OwningKey{}, err
	}
	c.GeneratedKeys++
	prometheusResolverGeneratedKeys.Inc()
	return k, nil
}

func inputID(in *wire.TxIn) types.OutputID {
	return types.NewOutputID(types.Hash(in.PreviousOutPoint.Hash), in.PreviousOutPoint.Index)
}
