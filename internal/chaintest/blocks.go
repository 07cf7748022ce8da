// Package chaintest builds synthetic source blocks and block files for tests.
package chaintest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/radixdlt/mtps/pkg/types"
)

// Magic is the network magic used by test block files (mainnet).
const Magic = uint32(wire.MainNet)

// Coinbase returns a coinbase transaction paying value to pkScript.
// tag makes otherwise identical coinbases distinct.
func Coinbase(tag uint32, outs ...*wire.TxOut) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	var sig [4]byte
	binary.LittleEndian.PutUint32(sig[:], tag)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: wire.MaxPrevOutIndex},
		SignatureScript:  append([]byte{0x04}, sig[:]...),
		Sequence:         wire.MaxTxInSequenceNum,
	})
	for _, out := range outs {
		tx.AddTxOut(out)
	}
	return tx
}

// Spend returns a transaction consuming prevs and producing outs.
func Spend(prevs []wire.OutPoint, outs ...*wire.TxOut) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	for _, p := range prevs {
		tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: p.Hash, Index: p.Index}, nil, nil))
	}
	for _, out := range outs {
		tx.AddTxOut(out)
	}
	return tx
}

// Out returns the outpoint of output index of tx.
func Out(tx *wire.MsgTx, index uint32) wire.OutPoint {
	return wire.OutPoint{Hash: tx.TxHash(), Index: index}
}

// OutputID returns the output identifier of output index of tx.
func OutputID(tx *wire.MsgTx, index uint32) types.OutputID {
	return types.NewOutputID(types.Hash(tx.TxHash()), index)
}

// Block assembles a block on top of prev.
func Block(prev chainhash.Hash, ts time.Time, txs ...*wire.MsgTx) *wire.MsgBlock {
	hashes := make([]*chainhash.Hash, 0, len(txs))
	for _, tx := range txs {
		h := tx.TxHash()
		hashes = append(hashes, &h)
	}
	var merkle chainhash.Hash
	if len(hashes) > 0 {
		merkle = *hashes[0]
	}
	blk := wire.NewMsgBlock(wire.NewBlockHeader(1, &prev, &merkle, 0x1d00ffff, 0))
	blk.Header.Timestamp = ts
	for _, tx := range txs {
		blk.AddTransaction(tx)
	}
	return blk
}

// Raw serializes a block.
func Raw(blk *wire.MsgBlock) []byte {
	var buf bytes.Buffer
	if err := blk.Serialize(&buf); err != nil {
		panic(fmt.Sprintf("serialize block: %v", err))
	}
	return buf.Bytes()
}

// Hash returns the block hash in wire order.
func Hash(blk *wire.MsgBlock) types.Hash {
	return types.Hash(blk.BlockHash())
}

// P2PKH returns a pay-to-pubkey-hash output worth value.
func P2PKH(value int64, hash160 []byte) *wire.TxOut {
	addr, err := btcutil.NewAddressPubKeyHash(hash160, &chaincfg.MainNetParams)
	if err != nil {
		panic(err)
	}
	return payTo(value, addr)
}

// P2SH returns a pay-to-script-hash output worth value.
func P2SH(value int64, hash160 []byte) *wire.TxOut {
	addr, err := btcutil.NewAddressScriptHashFromHash(hash160, &chaincfg.MainNetParams)
	if err != nil {
		panic(err)
	}
	return payTo(value, addr)
}

// P2PK returns a pay-to-pubkey output worth value.
func P2PK(value int64, pubKey []byte) *wire.TxOut {
	script, err := txscript.NewScriptBuilder().AddData(pubKey).AddOp(txscript.OP_CHECKSIG).Script()
	if err != nil {
		panic(err)
	}
	return wire.NewTxOut(value, script)
}

// NonStandard returns an output whose script carries no address.
func NonStandard(value int64) *wire.TxOut {
	return wire.NewTxOut(value, []byte{txscript.OP_TRUE})
}

func payTo(value int64, addr btcutil.Address) *wire.TxOut {
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		panic(err)
	}
	return wire.NewTxOut(value, script)
}

// SegmentName returns the file name of block file i.
func SegmentName(i int) string {
	return fmt.Sprintf("blk%05d.dat", i)
}

// WriteSegment writes blocks as block file i in dir, framed with magic.
// Trailing zero padding is appended when pad > 0.
func WriteSegment(dir string, i int, magic uint32, pad int, blocks ...*wire.MsgBlock) error {
	var buf bytes.Buffer
	for _, blk := range blocks {
		raw := Raw(blk)
		var hdr [8]byte
		binary.LittleEndian.PutUint32(hdr[:4], magic)
		binary.LittleEndian.PutUint32(hdr[4:], uint32(len(raw)))
		buf.Write(hdr[:])
		buf.Write(raw)
	}
	buf.Write(make([]byte, pad))
	return os.WriteFile(filepath.Join(dir, SegmentName(i)), buf.Bytes(), 0644)
}
