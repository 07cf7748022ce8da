package chain

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/radixdlt/mtps/internal/chaintest"
	"github.com/radixdlt/mtps/internal/storage"
	"github.com/radixdlt/mtps/pkg/types"
)

func testBlock(t *testing.T, prev types.Hash, tag uint32) (types.Hash, []byte) {
	t.Helper()
	cb := chaintest.Coinbase(tag, chaintest.NonStandard(50))
	blk := chaintest.Block(chainhash.Hash(prev), time.Unix(1231006505, 0), cb)
	return chaintest.Hash(blk), chaintest.Raw(blk)
}

func TestPutBlock_InsertOnce(t *testing.T) {
	s := NewStore(storage.NewMemory())
	hash, raw := testBlock(t, types.Hash{}, 1)

	var inserted bool
	err := s.Update(func(txn storage.Txn) error {
		var err error
		inserted, err = PutBlock(txn, hash, types.Hash{}, raw)
		return err
	})
	if err != nil {
		t.Fatalf("PutBlock() error: %v", err)
	}
	if !inserted {
		t.Fatal("first PutBlock() should insert")
	}

	err = s.Update(func(txn storage.Txn) error {
		var err error
		inserted, err = PutBlock(txn, hash, types.Hash{}, []byte("other"))
		return err
	})
	if err != nil {
		t.Fatalf("PutBlock() again error: %v", err)
	}
	if inserted {
		t.Error("second PutBlock() should be a no-op")
	}

	s.View(func(txn storage.Txn) error {
		got, err := GetBlock(txn, hash)
		if err != nil {
			t.Fatalf("GetBlock() error: %v", err)
		}
		if !bytes.Equal(got, raw) {
			t.Error("GetBlock() returned overwritten bytes")
		}
		return nil
	})
}

func TestNextHash(t *testing.T) {
	s := NewStore(storage.NewMemory())
	h1, raw1 := testBlock(t, types.Hash{}, 1)
	h2, raw2 := testBlock(t, h1, 2)

	err := s.Update(func(txn storage.Txn) error {
		if _, err := PutBlock(txn, h1, types.Hash{}, raw1); err != nil {
			return err
		}
		_, err := PutBlock(txn, h2, h1, raw2)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	s.View(func(txn storage.Txn) error {
		next, ok, err := NextHash(txn, h1)
		if err != nil || !ok {
			t.Fatalf("NextHash(h1) = %v, %v", ok, err)
		}
		if next != h2 {
			t.Errorf("NextHash(h1) = %s, want %s", next, h2)
		}
		if _, ok, _ := NextHash(txn, h2); ok {
			t.Error("NextHash(tip) should report no successor")
		}
		blk, err := GetMsgBlock(txn, h2)
		if err != nil {
			t.Fatalf("GetMsgBlock() error: %v", err)
		}
		if types.Hash(blk.Header.PrevBlock) != h1 {
			t.Error("decoded block has wrong predecessor")
		}
		return nil
	})
}

func TestNextHash_ForkLastWriterWins(t *testing.T) {
	s := NewStore(storage.NewMemory())
	parent, rawP := testBlock(t, types.Hash{}, 1)
	a, rawA := testBlock(t, parent, 2)
	b, rawB := testBlock(t, parent, 3)

	s.Update(func(txn storage.Txn) error {
		PutBlock(txn, parent, types.Hash{}, rawP)
		PutBlock(txn, a, parent, rawA)
		PutBlock(txn, b, parent, rawB)
		return nil
	})
	s.View(func(txn storage.Txn) error {
		next, _, _ := NextHash(txn, parent)
		if next != b {
			t.Errorf("successor = %s, want the later block %s", next, b)
		}
		return nil
	})
}

func TestGetBlock_NotFound(t *testing.T) {
	s := NewStore(storage.NewMemory())
	s.View(func(txn storage.Txn) error {
		_, err := GetBlock(txn, types.Hash{1})
		if !errors.Is(err, ErrBlockNotFound) {
			t.Errorf("GetBlock(missing) error = %v, want ErrBlockNotFound", err)
		}
		return nil
	})
}

func TestCursors(t *testing.T) {
	s := NewStore(storage.NewMemory())
	s.Update(func(txn storage.Txn) error {
		v, err := Cursor(txn, CursorBlocks, 7)
		if err != nil || v != 7 {
			t.Errorf("Cursor(unset) = %d, %v, want default 7", v, err)
		}
		if err := SetCursor(txn, CursorBlocks, 42); err != nil {
			t.Fatal(err)
		}
		if _, ok, _ := HashCursor(txn, CursorLastWalked); ok {
			t.Error("HashCursor(unset) should report unset")
		}
		return SetHashCursor(txn, CursorLastWalked, types.Hash{9})
	})

	s.View(func(txn storage.Txn) error {
		if v, _ := Cursor(txn, CursorBlocks, 0); v != 42 {
			t.Errorf("Cursor() = %d, want 42", v)
		}
		h, ok, err := HashCursor(txn, CursorLastWalked)
		if err != nil || !ok || h != (types.Hash{9}) {
			t.Errorf("HashCursor() = %s, %v, %v", h, ok, err)
		}
		return nil
	})
}

func TestCursor_Discarded(t *testing.T) {
	s := NewStore(storage.NewMemory())
	txn := s.Begin()
	SetCursor(txn, CursorBlocks, 5)
	txn.Discard()

	s.View(func(txn storage.Txn) error {
		if v, _ := Cursor(txn, CursorBlocks, 0); v != 0 {
			t.Errorf("Cursor() after discard = %d, want 0", v)
		}
		return nil
	})
}

func TestResetWork_KeepsBlocks(t *testing.T) {
	db := storage.NewMemory()
	s := NewStore(db)
	h, raw := testBlock(t, types.Hash{}, 1)
	table := []byte("u/")

	s.Update(func(txn storage.Txn) error {
		PutBlock(txn, h, types.Hash{}, raw)
		SetCursor(txn, CursorStoredBlocks, 1)
		SetCursor(txn, CursorValidTx, 3)
		SetHashCursor(txn, CursorLastWalked, h)
		return txn.Put([]byte("u/entry"), []byte{1})
	})

	if err := s.ResetWork(table); err != nil {
		t.Fatalf("ResetWork() error: %v", err)
	}

	s.View(func(txn storage.Txn) error {
		if ok, _ := HasBlock(txn, h); !ok {
			t.Error("ResetWork() removed a block")
		}
		if v, _ := Cursor(txn, CursorStoredBlocks, 0); v != 1 {
			t.Error("ResetWork() removed a loader cursor")
		}
		if v, _ := Cursor(txn, CursorValidTx, 0); v != 0 {
			t.Error("ResetWork() kept a walker cursor")
		}
		if _, ok, _ := HashCursor(txn, CursorLastWalked); ok {
			t.Error("ResetWork() kept last-walked-hash")
		}
		if ok, _ := txn.Has([]byte("u/entry")); ok {
			t.Error("ResetWork() kept a work table entry")
		}
		return nil
	})

	n, err := s.BlockCount()
	if err != nil || n != 1 {
		t.Errorf("BlockCount() = %d, %v", n, err)
	}
}

func TestResetBlocks(t *testing.T) {
	s := NewStore(storage.NewMemory())
	h, raw := testBlock(t, types.Hash{}, 1)
	s.Update(func(txn storage.Txn) error {
		PutBlock(txn, h, types.Hash{}, raw)
		SetCursor(txn, CursorLastSegment, 4)
		return SetCursor(txn, CursorValidTx, 3)
	})

	if err := s.ResetBlocks(); err != nil {
		t.Fatalf("ResetBlocks() error: %v", err)
	}

	s.View(func(txn storage.Txn) error {
		if ok, _ := HasBlock(txn, h); ok {
			t.Error("ResetBlocks() kept a block")
		}
		if _, ok, _ := NextHash(txn, types.Hash{}); ok {
			t.Error("ResetBlocks() kept a successor link")
		}
		if v, _ := Cursor(txn, CursorLastSegment, 0); v != 0 {
			t.Error("ResetBlocks() kept the segment cursor")
		}
		if v, _ := Cursor(txn, CursorValidTx, 0); v != 3 {
			t.Error("ResetBlocks() removed a walker cursor")
		}
		return nil
	})
}

func TestMaintenance_Memory(t *testing.T) {
	s := NewStore(storage.NewMemory())
	if ok, err := s.CleanLog(); ok || err != nil {
		t.Errorf("CleanLog() = %v, %v", ok, err)
	}
	if err := s.Checkpoint(); err != nil {
		t.Errorf("Checkpoint() error: %v", err)
	}
	s.EvictMemory()
}
