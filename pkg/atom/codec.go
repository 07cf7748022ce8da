package atom

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/radixdlt/mtps/pkg/types"
	"github.com/zeebo/blake3"
)

// Stream header.
const (
	Magic      = "ATOM"
	Version    = uint32(1)
	HeaderSize = 8
)

// Decoder limits. A value above them means the stream is corrupt.
const (
	maxShards    = 1 << 20
	maxBodySize  = 256 << 20
	maxScalarLen = 33
)

var (
	// ErrBadHeader is returned when a stream does not start with a known header.
	ErrBadHeader = errors.New("atom: bad stream header")
	// ErrTornRecord is returned when the stream ends inside a record.
	ErrTornRecord = errors.New("atom: torn trailing record")
	// ErrCorrupt is returned when a record violates the layout.
	ErrCorrupt = errors.New("atom: corrupt record")
)

// WriteHeader writes the stream header.
func WriteHeader(w io.Writer) error {
	var hdr [HeaderSize]byte
	copy(hdr[:4], Magic)
	binary.BigEndian.PutUint32(hdr[4:], Version)
	_, err := w.Write(hdr[:])
	return err
}

// ReadHeader reads and checks the stream header.
func ReadHeader(r io.Reader) error {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: %v", ErrBadHeader, err)
		}
		return err
	}
	if string(hdr[:4]) != Magic {
		return fmt.Errorf("%w: magic %q", ErrBadHeader, hdr[:4])
	}
	if v := binary.BigEndian.Uint32(hdr[4:]); v != Version {
		return fmt.Errorf("%w: unsupported version %d", ErrBadHeader, v)
	}
	return nil
}

// MarshalBinary encodes the record in stream layout.
func (r *Record) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes the record in stream layout:
//
//	int32 len | txid | int64 time | int32 n | n x int64 shard | int32 bodyLen | body
//
// where body holds the particles followed by the signatures.
func (r *Record) Encode(w io.Writer) error {
	var body bytes.Buffer
	writeParticles(&body, r.Particles)
	writeInt32(&body, int32(len(r.Signatures)))
	for _, e := range r.Signatures {
		body.Write(e.Signer[:])
		writeScalar(&body, e.Signature.R)
		writeScalar(&body, e.Signature.S)
	}

	var head bytes.Buffer
	writeInt32(&head, types.HashSize)
	head.Write(r.TxID[:])
	writeInt64(&head, r.BlockTimeMillis)
	writeInt32(&head, int32(len(r.Shards)))
	for _, s := range r.Shards {
		writeInt64(&head, s)
	}
	writeInt32(&head, int32(body.Len()))

	if _, err := w.Write(head.Bytes()); err != nil {
		return err
	}
	_, err := w.Write(body.Bytes())
	return err
}

// ContentHash is the hash the signers sign: BLAKE3 over the transaction id,
// the timestamp and the particles in stream layout.
func ContentHash(txid types.Hash, blockTimeMillis int64, particles []SpunRecord) types.Hash {
	var buf bytes.Buffer
	buf.Write(txid[:])
	writeInt64(&buf, blockTimeMillis)
	writeParticles(&buf, particles)
	return blake3.Sum256(buf.Bytes())
}

func writeParticles(buf *bytes.Buffer, particles []SpunRecord) {
	writeInt32(buf, int32(len(particles)))
	for i := range particles {
		p := &particles[i]
		if p.Spin == SpinUp {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		buf.Write(p.Record.Address[:])
		// uint256 limbs are little-endian; the stream wants high to low.
		a := p.Record.Amount
		writeInt64(buf, int64(a[3]))
		writeInt64(buf, int64(a[2]))
		writeInt64(buf, int64(a[1]))
		writeInt64(buf, int64(a[0]))
		writeInt64(buf, p.Record.Nonce)
		writeInt64(buf, p.Record.Planck)
	}
}

// writeScalar writes a signature scalar as a length-prefixed two's
// complement big-endian integer with no redundant leading bytes.
func writeScalar(buf *bytes.Buffer, v [32]byte) {
	b := v[:]
	for len(b) > 0 && b[0] == 0 {
		b = b[1:]
	}
	if len(b) == 0 || b[0]&0x80 != 0 {
		b = append([]byte{0}, b...)
	}
	writeInt32(buf, int32(len(b)))
	buf.Write(b)
}

func writeInt32(buf *bytes.Buffer, v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	buf.Write(b[:])
}

func writeInt64(buf *bytes.Buffer, v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	buf.Write(b[:])
}

// Decode reads one record. It returns io.EOF at a clean end of stream and
// ErrTornRecord when the stream ends inside a record.
func Decode(r io.Reader) (*Record, error) {
	var rec Record

	txLen, err := readInt32(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, torn(err)
	}
	if txLen != types.HashSize {
		return nil, fmt.Errorf("%w: txid length %d", ErrCorrupt, txLen)
	}
	if _, err := io.ReadFull(r, rec.TxID[:]); err != nil {
		return nil, torn(err)
	}
	if rec.BlockTimeMillis, err = readInt64(r); err != nil {
		return nil, torn(err)
	}
	n, err := readInt32(r)
	if err != nil {
		return nil, torn(err)
	}
	if n < 0 || n > maxShards {
		return nil, fmt.Errorf("%w: shard count %d", ErrCorrupt, n)
	}
	rec.Shards = make([]int64, n)
	for i := range rec.Shards {
		if rec.Shards[i], err = readInt64(r); err != nil {
			return nil, torn(err)
		}
	}
	bodyLen, err := readInt32(r)
	if err != nil {
		return nil, torn(err)
	}
	if bodyLen < 0 || bodyLen > maxBodySize {
		return nil, fmt.Errorf("%w: body length %d", ErrCorrupt, bodyLen)
	}
	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, torn(err)
	}
	if err := decodeBody(bytes.NewReader(body), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func decodeBody(br *bytes.Reader, rec *Record) error {
	corrupt := func(what string, err error) error {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, what, err)
	}

	n, err := readInt32(br)
	if err != nil {
		return corrupt("particle count", err)
	}
	// Each particle takes 82 bytes.
	if n < 0 || int64(n)*82 > int64(br.Len()) {
		return fmt.Errorf("%w: particle count %d", ErrCorrupt, n)
	}
	rec.Particles = make([]SpunRecord, n)
	for i := range rec.Particles {
		p := &rec.Particles[i]
		spin, err := br.ReadByte()
		if err != nil {
			return corrupt("spin", err)
		}
		if spin > byte(SpinUp) {
			return fmt.Errorf("%w: spin %d", ErrCorrupt, spin)
		}
		p.Spin = Spin(spin)
		if _, err := io.ReadFull(br, p.Record.Address[:]); err != nil {
			return corrupt("address", err)
		}
		for limb := 3; limb >= 0; limb-- {
			v, err := readInt64(br)
			if err != nil {
				return corrupt("amount", err)
			}
			p.Record.Amount[limb] = uint64(v)
		}
		if p.Record.Nonce, err = readInt64(br); err != nil {
			return corrupt("nonce", err)
		}
		if p.Record.Planck, err = readInt64(br); err != nil {
			return corrupt("planck", err)
		}
		p.Record.Granularity.SetOne()
		p.Record.Permissions = DefaultPermissions
	}

	k, err := readInt32(br)
	if err != nil {
		return corrupt("signature count", err)
	}
	if k < 0 || int64(k)*(types.EUIDSize+10) > int64(br.Len()) {
		return fmt.Errorf("%w: signature count %d", ErrCorrupt, k)
	}
	rec.Signatures = make([]SignatureEntry, k)
	for i := range rec.Signatures {
		e := &rec.Signatures[i]
		if _, err := io.ReadFull(br, e.Signer[:]); err != nil {
			return corrupt("signer", err)
		}
		if e.Signature.R, err = readScalar(br); err != nil {
			return corrupt("r", err)
		}
		if e.Signature.S, err = readScalar(br); err != nil {
			return corrupt("s", err)
		}
	}
	if br.Len() != 0 {
		return fmt.Errorf("%w: %d trailing body bytes", ErrCorrupt, br.Len())
	}
	return nil
}

func readScalar(r io.Reader) ([32]byte, error) {
	var out [32]byte
	n, err := readInt32(r)
	if err != nil {
		return out, err
	}
	if n <= 0 || n > maxScalarLen {
		return out, fmt.Errorf("scalar length %d", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return out, err
	}
	if n == maxScalarLen {
		if b[0] != 0 {
			return out, fmt.Errorf("scalar overflows 256 bits")
		}
		b = b[1:]
	}
	copy(out[32-len(b):], b)
	return out, nil
}

func readInt32(r io.Reader) (int32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b[:])), nil
}

func readInt64(r io.Reader) (int64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b[:])), nil
}

func torn(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTornRecord
	}
	return err
}
