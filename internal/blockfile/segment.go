// Package blockfile reads the numbered block files of a source node:
// blkNNNNN.dat segments of [magic | size | block] frames, optionally
// obfuscated with the key in xor.dat.
package blockfile

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/wire"
	"github.com/radixdlt/mtps/pkg/types"
)

// XORKeyFile is the name of the obfuscation key file in the blocks dir.
const XORKeyFile = "xor.dat"

// maxFrameSize bounds the size field of a frame.
const maxFrameSize = 32 << 20

// Block is one decoded frame.
type Block struct {
	Hash types.Hash
	Prev types.Hash
	Msg  *wire.MsgBlock
	Raw  []byte
	// Offset is the position of the frame in its segment.
	Offset int64
}

// Name returns the file name of segment i.
func Name(i int) string {
	return fmt.Sprintf("blk%05d.dat", i)
}

// Path returns the path of segment i in dir.
func Path(dir string, i int) string {
	return filepath.Join(dir, Name(i))
}

// Exists reports whether segment i is present in dir.
func Exists(dir string, i int) bool {
	st, err := os.Stat(Path(dir, i))
	return err == nil && st.Mode().IsRegular()
}

// LoadXORKey reads xor.dat from dir. It returns nil when the file is
// missing or the key is all zeroes.
func LoadXORKey(dir string) ([]byte, error) {
	key, err := os.ReadFile(filepath.Join(dir, XORKeyFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read xor key: %w", err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("read xor key: empty %s", XORKeyFile)
	}
	for _, b := range key {
		if b != 0 {
			return key, nil
		}
	}
	return nil, nil
}

// Segment reads the frames of one block file in order.
type Segment struct {
	f     *os.File
	r     *bufio.Reader
	src   *xorReader
	magic uint32
	// Skipped counts bytes passed over to find a frame start.
	Skipped int64
}

// Open opens segment i of dir. Frames must carry magic; key may be nil.
func Open(dir string, i int, magic uint32, key []byte) (*Segment, error) {
	f, err := os.Open(Path(dir, i))
	if err != nil {
		return nil, err
	}
	src := &xorReader{r: f, key: key}
	return &Segment{
		f:     f,
		r:     bufio.NewReaderSize(src, 1<<20),
		src:   src,
		magic: magic,
	}, nil
}

// Close closes the segment file.
func (s *Segment) Close() error {
	return s.f.Close()
}

// Next returns the next block. It returns io.EOF at the end of the
// segment, which is the end of the file, a zero magic in pre-allocated
// space or a truncated final frame.
func (s *Segment) Next() (*Block, error) {
	offset, err := s.seekMagic()
	if err != nil {
		return nil, err
	}
	var size [4]byte
	if _, err := io.ReadFull(s.r, size[:]); err != nil {
		return nil, io.EOF
	}
	n := binary.LittleEndian.Uint32(size[:])
	if n == 0 || n > maxFrameSize {
		return nil, fmt.Errorf("%s offset %d: bad frame size %d", s.f.Name(), offset, n)
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(s.r, raw); err != nil {
		return nil, io.EOF
	}

	var msg wire.MsgBlock
	if err := msg.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("%s offset %d: decode block: %w", s.f.Name(), offset, err)
	}
	return &Block{
		Hash:   types.Hash(msg.BlockHash()),
		Prev:   types.Hash(msg.Header.PrevBlock),
		Msg:    &msg,
		Raw:    raw,
		Offset: offset,
	}, nil
}

// seekMagic consumes bytes up to and including the next frame magic and
// returns the frame offset.
func (s *Segment) seekMagic() (int64, error) {
	var win [4]byte
	if _, err := io.ReadFull(s.r, win[:]); err != nil {
		return 0, io.EOF
	}
	for {
		m := binary.LittleEndian.Uint32(win[:])
		if m == s.magic {
			return s.pos() - 4, nil
		}
		if m == 0 {
			return 0, io.EOF
		}
		b, err := s.r.ReadByte()
		if err != nil {
			return 0, io.EOF
		}
		copy(win[:], win[1:])
		win[3] = b
		s.Skipped++
	}
}

// pos returns the number of bytes consumed from the segment.
func (s *Segment) pos() int64 {
	return s.src.off - int64(s.r.Buffered())
}

// xorReader reverses the block file obfuscation.
type xorReader struct {
	r   io.Reader
	key []byte
	off int64
}

func (x *xorReader) Read(p []byte) (int, error) {
	n, err := x.r.Read(p)
	if len(x.key) > 0 {
		for i := 0; i < n; i++ {
			p[i] ^= x.key[(x.off+int64(i))%int64(len(x.key))]
		}
	}
	x.off += int64(n)
	return n, err
}
