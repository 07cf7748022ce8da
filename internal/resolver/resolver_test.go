package resolver

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/radixdlt/mtps/internal/builder"
	"github.com/radixdlt/mtps/internal/chaintest"
	"github.com/radixdlt/mtps/internal/keys"
	"github.com/radixdlt/mtps/internal/storage"
	"github.com/radixdlt/mtps/internal/utxo"
	"github.com/radixdlt/mtps/pkg/atom"
	"github.com/radixdlt/mtps/pkg/crypto"
)

const testToken = "/native/XRD"

var genesisTime = time.Unix(1231006505, 0)

type fixture struct {
	r   *Resolver
	gen *keys.Generator
	kh  crypto.KeyHandler
	txn storage.Txn
	c   Counters
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	seed, err := keys.SeedFromMnemonic("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about")
	if err != nil {
		t.Fatal(err)
	}
	gen, err := keys.NewGenerator(seed)
	if err != nil {
		t.Fatal(err)
	}
	kh := crypto.NewKeyHandler()
	txn := storage.NewMemory().Begin(true)
	t.Cleanup(txn.Discard)
	return &fixture{
		r:   New(Config{KeyHandler: kh, Generator: gen, Params: &chaincfg.MainNetParams, TokenRef: testToken}),
		gen: gen,
		kh:  kh,
		txn: txn,
	}
}

func (f *fixture) resolve(t *testing.T, blk *wire.MsgBlock) []*builder.Item {
	t.Helper()
	cache, err := DeriveKeys(context.Background(), f.kh, &chaincfg.MainNetParams, blk, 4)
	if err != nil {
		t.Fatalf("DeriveKeys() error: %v", err)
	}
	items, err := f.r.Resolve(f.txn, blk, cache, &f.c)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	f.c.Blocks++
	return items
}

func (f *fixture) index() *utxo.Index {
	return utxo.Bind(f.txn, testToken)
}

func hash160(b byte) []byte {
	return bytes.Repeat([]byte{b}, 20)
}

func ownerOf(t *testing.T, h []byte) keys.OwningKey {
	t.Helper()
	k, err := keys.Deterministic(crypto.NewKeyHandler(), h)
	if err != nil {
		t.Fatal(err)
	}
	return k
}

func TestIsCoinbase(t *testing.T) {
	cb := chaintest.Coinbase(1, chaintest.P2PKH(50, hash160(1)))
	if !IsCoinbase(cb) {
		t.Error("IsCoinbase(coinbase) = false")
	}
	spend := chaintest.Spend([]wire.OutPoint{chaintest.Out(cb, 0)}, chaintest.P2PKH(50, hash160(2)))
	if IsCoinbase(spend) {
		t.Error("IsCoinbase(spend) = true")
	}
	// A null hash alone is not enough.
	odd := chaintest.Spend([]wire.OutPoint{{Index: 0}}, chaintest.P2PKH(1, hash160(2)))
	if IsCoinbase(odd) {
		t.Error("IsCoinbase(index 0) = true")
	}
}

func TestResolve_TwoBlocks(t *testing.T) {
	f := newFixture(t)
	alice, bob := hash160(0xa1), hash160(0xb0)

	cb1 := chaintest.Coinbase(1, chaintest.P2PKH(5_000_000_000, alice))
	b1 := chaintest.Block(chainhash.Hash{}, genesisTime, cb1)
	items := f.resolve(t, b1)
	if len(items) != 1 {
		t.Fatalf("block 1 items = %d, want 1", len(items))
	}
	if len(items[0].Signers) != 1 || items[0].Signers[0] != ownerOf(t, alice) {
		t.Error("coinbase signer is not the owner of its first output")
	}

	cb2 := chaintest.Coinbase(2, chaintest.P2PKH(5_000_000_000, bob))
	spend := chaintest.Spend([]wire.OutPoint{chaintest.Out(cb1, 0)},
		chaintest.P2PKH(3_000_000_000, bob),
		chaintest.P2PKH(2_000_000_000, alice))
	b2 := chaintest.Block(b1.BlockHash(), genesisTime.Add(10*time.Minute), cb2, spend)
	items = f.resolve(t, b2)
	if len(items) != 2 {
		t.Fatalf("block 2 items = %d, want 2", len(items))
	}

	it := items[1]
	if it.TxID != chaintest.OutputID(spend, 0).TxID() {
		t.Error("item txid mismatch")
	}
	if len(it.Particles) != 3 {
		t.Fatalf("particles = %d, want 1 down and 2 up", len(it.Particles))
	}
	if it.Particles[0].Spin != atom.SpinDown || it.Particles[1].Spin != atom.SpinUp {
		t.Error("consumed records must precede produced records")
	}
	if it.Particles[0].Record.Address != ownerOf(t, alice).Pub {
		t.Error("consumed record has the wrong owner")
	}
	if len(it.Signers) != 1 || it.Signers[0] != ownerOf(t, alice) {
		t.Error("spend must be signed by the owner of the consumed output")
	}
	if want := atom.PlanckFromMillis(b2.Header.Timestamp.UnixMilli()); it.Particles[1].Record.Planck != want {
		t.Errorf("planck = %d, want %d", it.Particles[1].Record.Planck, want)
	}

	x := f.index()
	if ok, _ := x.Has(chaintest.OutputID(cb1, 0)); ok {
		t.Error("spent output still in the index")
	}
	n, _ := x.Count()
	if n != 3 || f.c.Unspent() != 3 {
		t.Errorf("index size = %d, counters unspent = %d, want 3", n, f.c.Unspent())
	}
	if f.c.ValidTx != 3 || f.c.Inputs != 1 || f.c.Outputs != 4 || f.c.UniqueAddresses != 2 {
		t.Errorf("counters = %+v", f.c)
	}
	if f.c.GeneratedKeys != 0 || f.c.UnsignedTx != 0 {
		t.Errorf("unexpected anomalies: %+v", f.c)
	}
}

func TestResolve_MissingInput(t *testing.T) {
	f := newFixture(t)
	ghost := chaintest.Coinbase(9, chaintest.P2PKH(10, hash160(1)))
	spend := chaintest.Spend([]wire.OutPoint{chaintest.Out(ghost, 0)}, chaintest.P2PKH(10, hash160(2)))
	blk := chaintest.Block(chainhash.Hash{}, genesisTime, chaintest.Coinbase(1, chaintest.P2PKH(1, hash160(3))), spend)

	_, err := f.r.Resolve(f.txn, blk, NewKeyCache(), &f.c)
	if !errors.Is(err, utxo.ErrMissingEntry) {
		t.Fatalf("Resolve() error = %v, want ErrMissingEntry", err)
	}
}

func TestResolve_DoubleSpend(t *testing.T) {
	f := newFixture(t)
	cb := chaintest.Coinbase(1, chaintest.P2PKH(100, hash160(1)))
	f.resolve(t, chaintest.Block(chainhash.Hash{}, genesisTime, cb))

	first := chaintest.Spend([]wire.OutPoint{chaintest.Out(cb, 0)}, chaintest.P2PKH(100, hash160(2)))
	second := chaintest.Spend([]wire.OutPoint{chaintest.Out(cb, 0)}, chaintest.P2PKH(100, hash160(3)))
	blk := chaintest.Block(chainhash.Hash{}, genesisTime, chaintest.Coinbase(2, chaintest.P2PKH(1, hash160(4))), first, second)

	if _, err := f.r.Resolve(f.txn, blk, NewKeyCache(), &f.c); !errors.Is(err, utxo.ErrMissingEntry) {
		t.Fatalf("second spend error = %v, want ErrMissingEntry", err)
	}
}

func TestResolve_BanPropagates(t *testing.T) {
	f := newFixture(t)
	cb := chaintest.Coinbase(1, chaintest.P2PKH(100, hash160(1)), chaintest.P2PKH(50, hash160(2)))
	f.resolve(t, chaintest.Block(chainhash.Hash{}, genesisTime, cb))

	x := f.index()
	if err := x.Ban(chaintest.OutputID(cb, 0)); err != nil {
		t.Fatal(err)
	}
	if err := x.Delete(chaintest.OutputID(cb, 0)); err != nil {
		t.Fatal(err)
	}

	tainted := chaintest.Spend([]wire.OutPoint{chaintest.Out(cb, 0), chaintest.Out(cb, 1)},
		chaintest.P2PKH(120, hash160(3)), chaintest.P2PKH(30, hash160(4)))
	child := chaintest.Spend([]wire.OutPoint{chaintest.Out(tainted, 1)}, chaintest.P2PKH(30, hash160(5)))
	blk := chaintest.Block(chainhash.Hash{}, genesisTime, chaintest.Coinbase(2, chaintest.P2PKH(1, hash160(6))), tainted, child)
	before := f.c
	items := f.resolve(t, blk)

	if len(items) != 1 {
		t.Fatalf("items = %d, want only the coinbase", len(items))
	}
	for _, id := range []struct {
		tx  *wire.MsgTx
		idx uint32
	}{{tainted, 0}, {tainted, 1}, {child, 0}} {
		if banned, _ := x.IsBanned(chaintest.OutputID(id.tx, id.idx)); !banned {
			t.Errorf("output %d of %s not banned", id.idx, id.tx.TxHash())
		}
	}
	if f.c.BannedTx-before.BannedTx != 2 || f.c.BannedBadInput-before.BannedBadInput != 3 {
		t.Errorf("banned counters = %+v", f.c)
	}
	// The unbanned input of the invalid transaction stays spendable.
	if ok, _ := x.Has(chaintest.OutputID(cb, 1)); !ok {
		t.Error("unbanned input of an invalid transaction was removed")
	}
}

func TestResolve_ZeroValueIgnored(t *testing.T) {
	f := newFixture(t)
	cb := chaintest.Coinbase(1, chaintest.P2PKH(0, hash160(1)), chaintest.P2PKH(100, hash160(2)))
	items := f.resolve(t, chaintest.Block(chainhash.Hash{}, genesisTime, cb))

	if len(items[0].Particles) != 1 {
		t.Errorf("particles = %d, want the zero output skipped", len(items[0].Particles))
	}
	if items[0].Signers[0] != ownerOf(t, hash160(2)) {
		t.Error("coinbase signer should be the first non-zero output")
	}
	x := f.index()
	if ok, _ := x.IsIgnored(chaintest.OutputID(cb, 0)); !ok {
		t.Fatal("zero output not in the ignored set")
	}
	if f.c.Ignored != 1 || f.c.BannedZeroValue != 1 {
		t.Errorf("counters = %+v", f.c)
	}

	spend := chaintest.Spend([]wire.OutPoint{chaintest.Out(cb, 0), chaintest.Out(cb, 1)}, chaintest.P2PKH(100, hash160(3)))
	items = f.resolve(t, chaintest.Block(chainhash.Hash{}, genesisTime, chaintest.Coinbase(2, chaintest.P2PKH(1, hash160(4))), spend))
	if got := items[1].Particles; len(got) != 2 || got[0].Spin != atom.SpinDown {
		t.Errorf("spend particles = %d, want the ignored input skipped", len(got))
	}
	if ok, _ := x.IsIgnored(chaintest.OutputID(cb, 0)); ok {
		t.Error("consumed ignored output still in the ignored set")
	}
	if f.c.Inputs != 1 {
		t.Errorf("Inputs = %d, want 1", f.c.Inputs)
	}
}

func TestResolve_GeneratedKey(t *testing.T) {
	f := newFixture(t)
	cb := chaintest.Coinbase(1, chaintest.NonStandard(100), chaintest.NonStandard(200), chaintest.P2SH(300, hash160(7)))
	items := f.resolve(t, chaintest.Block(chainhash.Hash{}, genesisTime, cb))

	k0, _ := f.gen.Key(0)
	k1, _ := f.gen.Key(1)
	p := items[0].Particles
	if p[0].Record.Address != k0.Pub || p[1].Record.Address != k1.Pub {
		t.Error("non-standard outputs did not take the generated keys in order")
	}
	if items[0].Signers[0] != k0 {
		t.Error("coinbase signer should be the first generated key")
	}
	if f.c.GeneratedKeys != 2 || f.c.ScriptOther != 2 || f.c.ScriptP2SH != 1 {
		t.Errorf("counters = %+v", f.c)
	}
	e, err := f.index().Get(chaintest.OutputID(cb, 1))
	if err != nil {
		t.Fatal(err)
	}
	if e.PrivKey != k1.Priv {
		t.Error("generated key not persisted with its output")
	}
}

func TestResolve_Unsigned(t *testing.T) {
	f := newFixture(t)
	cb := chaintest.Coinbase(1, chaintest.P2PKH(0, hash160(1)))
	items := f.resolve(t, chaintest.Block(chainhash.Hash{}, genesisTime, cb))

	if len(items) != 1 || len(items[0].Signers) != 0 {
		t.Fatal("coinbase without a paid output should yield an unsigned item")
	}
	if f.c.UnsignedTx != 1 {
		t.Errorf("UnsignedTx = %d, want 1", f.c.UnsignedTx)
	}
}

func TestResolve_RepeatedCoinbase(t *testing.T) {
	f := newFixture(t)
	alice := hash160(0xa1)

	cb := chaintest.Coinbase(1, chaintest.P2PKH(5_000_000_000, alice))
	b1 := chaintest.Block(chainhash.Hash{}, genesisTime, cb)
	f.resolve(t, b1)
	b2 := chaintest.Block(b1.BlockHash(), genesisTime.Add(10*time.Minute), cb)
	f.resolve(t, b2)

	if f.c.Duplicates != 1 || f.c.Outputs != 2 {
		t.Errorf("Duplicates = %d, Outputs = %d, want 1 and 2", f.c.Duplicates, f.c.Outputs)
	}
	n, _ := f.index().Count()
	if n != 1 || f.c.Unspent() != n {
		t.Errorf("index size = %d, counters unspent = %d, want 1", n, f.c.Unspent())
	}
}

func TestCounters_SaveLoad(t *testing.T) {
	f := newFixture(t)
	f.c = Counters{Blocks: 3, ValidTx: 7, Outputs: 10, Inputs: 2, GeneratedKeys: 4, ScriptP2WSH: 1, Duplicates: 1}
	if err := f.c.Save(f.txn); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, err := LoadCounters(f.txn)
	if err != nil {
		t.Fatalf("LoadCounters() error: %v", err)
	}
	if got != f.c {
		t.Errorf("LoadCounters() = %+v, want %+v", got, f.c)
	}
	if got.Transactions() != 7 || got.Unspent() != 7 {
		t.Errorf("Transactions() = %d, Unspent() = %d", got.Transactions(), got.Unspent())
	}
}

func TestDeriveKeys(t *testing.T) {
	kh := crypto.NewKeyHandler()
	blk := chaintest.Block(chainhash.Hash{}, genesisTime,
		chaintest.Coinbase(1, chaintest.P2PKH(1, hash160(1)), chaintest.P2PKH(2, hash160(1)), chaintest.P2PKH(0, hash160(2)), chaintest.NonStandard(5)))
	cache, err := DeriveKeys(context.Background(), kh, &chaincfg.MainNetParams, blk, 2)
	if err != nil {
		t.Fatalf("DeriveKeys() error: %v", err)
	}
	if cache.Len() != 1 {
		t.Errorf("cache size = %d, want one distinct non-zero address", cache.Len())
	}
	if k, ok := cache.Get(hash160(1)); !ok || k != ownerOf(t, hash160(1)) {
		t.Error("cached key mismatch")
	}
}
