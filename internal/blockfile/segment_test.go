package blockfile

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/radixdlt/mtps/internal/chaintest"
)

func testBlocks(n int) []*wire.MsgBlock {
	var prev chainhash.Hash
	blocks := make([]*wire.MsgBlock, 0, n)
	for i := 0; i < n; i++ {
		cb := chaintest.Coinbase(uint32(i), chaintest.NonStandard(50))
		blk := chaintest.Block(prev, time.Unix(1231006505+int64(i)*600, 0), cb)
		prev = blk.BlockHash()
		blocks = append(blocks, blk)
	}
	return blocks
}

func readAll(t *testing.T, s *Segment) []*Block {
	t.Helper()
	var out []*Block
	for {
		b, err := s.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		out = append(out, b)
	}
}

func TestSegment_ReadsFrames(t *testing.T) {
	dir := t.TempDir()
	blocks := testBlocks(3)
	if err := chaintest.WriteSegment(dir, 0, chaintest.Magic, 0, blocks...); err != nil {
		t.Fatal(err)
	}

	s, err := Open(dir, 0, chaintest.Magic, nil)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer s.Close()

	got := readAll(t, s)
	if len(got) != len(blocks) {
		t.Fatalf("read %d blocks, want %d", len(got), len(blocks))
	}
	for i, b := range got {
		if b.Hash != chaintest.Hash(blocks[i]) {
			t.Errorf("block %d hash mismatch", i)
		}
		if !bytes.Equal(b.Raw, chaintest.Raw(blocks[i])) {
			t.Errorf("block %d raw bytes mismatch", i)
		}
	}
	if got[1].Prev != got[0].Hash {
		t.Error("predecessor link not decoded")
	}
	if got[0].Offset != 0 {
		t.Errorf("first frame offset = %d, want 0", got[0].Offset)
	}
}

func TestSegment_ZeroPaddingEnds(t *testing.T) {
	dir := t.TempDir()
	chaintest.WriteSegment(dir, 0, chaintest.Magic, 4096, testBlocks(2)...)

	s, _ := Open(dir, 0, chaintest.Magic, nil)
	defer s.Close()
	if got := readAll(t, s); len(got) != 2 {
		t.Errorf("read %d blocks, want 2", len(got))
	}
}

func TestSegment_TruncatedFinalFrame(t *testing.T) {
	dir := t.TempDir()
	chaintest.WriteSegment(dir, 0, chaintest.Magic, 0, testBlocks(2)...)
	path := Path(dir, 0)
	st, _ := os.Stat(path)
	os.Truncate(path, st.Size()-10)

	s, _ := Open(dir, 0, chaintest.Magic, nil)
	defer s.Close()
	if got := readAll(t, s); len(got) != 1 {
		t.Errorf("read %d blocks, want 1 (truncated frame dropped)", len(got))
	}
}

func TestSegment_SkipsGarbage(t *testing.T) {
	dir := t.TempDir()
	blocks := testBlocks(1)
	chaintest.WriteSegment(dir, 0, chaintest.Magic, 0, blocks...)
	data, _ := os.ReadFile(Path(dir, 0))
	data = append([]byte{0xde, 0xad, 0xbe}, data...)
	os.WriteFile(Path(dir, 0), data, 0644)

	s, _ := Open(dir, 0, chaintest.Magic, nil)
	defer s.Close()
	got := readAll(t, s)
	if len(got) != 1 {
		t.Fatalf("read %d blocks, want 1", len(got))
	}
	if s.Skipped != 3 || got[0].Offset != 3 {
		t.Errorf("Skipped = %d, Offset = %d, want 3, 3", s.Skipped, got[0].Offset)
	}
}

func TestSegment_XOR(t *testing.T) {
	dir := t.TempDir()
	blocks := testBlocks(2)
	chaintest.WriteSegment(dir, 0, chaintest.Magic, 0, blocks...)

	key := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	data, _ := os.ReadFile(Path(dir, 0))
	for i := range data {
		data[i] ^= key[i%len(key)]
	}
	os.WriteFile(Path(dir, 0), data, 0644)
	os.WriteFile(filepath.Join(dir, XORKeyFile), key, 0644)

	loaded, err := LoadXORKey(dir)
	if err != nil || !bytes.Equal(loaded, key) {
		t.Fatalf("LoadXORKey() = %x, %v", loaded, err)
	}
	s, _ := Open(dir, 0, chaintest.Magic, loaded)
	defer s.Close()
	got := readAll(t, s)
	if len(got) != 2 || got[1].Hash != chaintest.Hash(blocks[1]) {
		t.Errorf("XOR segment decoded %d blocks", len(got))
	}
}

func TestLoadXORKey_ZeroOrMissing(t *testing.T) {
	dir := t.TempDir()
	if key, err := LoadXORKey(dir); key != nil || err != nil {
		t.Errorf("LoadXORKey(missing) = %x, %v", key, err)
	}
	os.WriteFile(filepath.Join(dir, XORKeyFile), make([]byte, 8), 0644)
	if key, err := LoadXORKey(dir); key != nil || err != nil {
		t.Errorf("LoadXORKey(zero) = %x, %v", key, err)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	chaintest.WriteSegment(dir, 3, chaintest.Magic, 0)
	if !Exists(dir, 3) || Exists(dir, 4) {
		t.Error("Exists() mismatch")
	}
	if Name(3) != "blk00003.dat" {
		t.Errorf("Name(3) = %s", Name(3))
	}
}
