package resolver

import (
	"github.com/radixdlt/mtps/internal/chain"
	"github.com/radixdlt/mtps/internal/storage"
)

// Counters are the walker totals persisted with every block.
type Counters struct {
	Blocks          uint64
	ValidTx         uint64
	BannedTx        uint64
	Inputs          uint64
	Outputs         uint64
	GeneratedKeys   uint64
	Ignored         uint64
	UnsignedTx      uint64
	UniqueAddresses uint64

	BannedBadInput  uint64
	BannedZeroValue uint64
	BadPubKey       uint64
	ScriptP2SH      uint64
	ScriptP2WSH     uint64
	ScriptP2WPKH    uint64
	ScriptOther     uint64

	// Duplicates counts outputs that replaced a live entry with the same
	// id (a repeated coinbase txid).
	Duplicates uint64
}

type counterField struct {
	name string
	v    *uint64
}

func (c *Counters) fields() []counterField {
	return []counterField{
		{chain.CursorBlocks, &c.Blocks},
		{chain.CursorValidTx, &c.ValidTx},
		{chain.CursorBannedTx, &c.BannedTx},
		{chain.CursorInputs, &c.Inputs},
		{chain.CursorOutputs, &c.Outputs},
		{chain.CursorGeneratedKey, &c.GeneratedKeys},
		{chain.CursorIgnored, &c.Ignored},
		{chain.CursorUnsignedTx, &c.UnsignedTx},
		{chain.CursorAddresses, &c.UniqueAddresses},
		{chain.CursorBannedBadInput, &c.BannedBadInput},
		{chain.CursorBannedZeroValue, &c.BannedZeroValue},
		{chain.CursorBadPubKey, &c.BadPubKey},
		{chain.CursorScriptP2SH, &c.ScriptP2SH},
		{chain.CursorScriptP2WSH, &c.ScriptP2WSH},
		{chain.CursorScriptP2WPKH, &c.ScriptP2WPKH},
		{chain.CursorScriptOther, &c.ScriptOther},
		{chain.CursorDuplicates, &c.Duplicates},
	}
}

// LoadCounters reads the persisted counters; unset ones are zero.
func LoadCounters(txn storage.KV) (Counters, error) {
	var c Counters
	for _, f := range c.fields() {
		v, err := chain.Cursor(txn, f.name, 0)
		if err != nil {
			return Counters{}, err
		}
		*f.v = v
	}
	return c, nil
}

// Save writes every counter in txn.
func (c *Counters) Save(txn storage.KV) error {
	for _, f := range c.fields() {
		if err := chain.SetCursor(txn, f.name, *f.v); err != nil {
			return err
		}
	}
	return nil
}

// Transactions returns the number of transactions processed.
func (c *Counters) Transactions() uint64 {
	return c.ValidTx + c.BannedTx
}

// Unspent returns the expected size of the unspent index. A replaced
// entry is counted as an output but no longer occupies the index.
func (c *Counters) Unspent() uint64 {
	return c.Outputs - c.Inputs - c.Duplicates
}
