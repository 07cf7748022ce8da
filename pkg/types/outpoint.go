package types

import (
	"encoding/binary"
	"fmt"
)

// OutputIDSize is the length of an encoded output identifier.
const OutputIDSize = HashSize + 4

// OutputID identifies one transaction output: the transaction hash in
// internal byte order followed by the big-endian output index. A produced
// output and the input that later consumes it encode to the same bytes.
type OutputID [OutputIDSize]byte

// NewOutputID builds the identifier of output index of transaction txid.
func NewOutputID(txid Hash, index uint32) OutputID {
	var id OutputID
	copy(id[:HashSize], txid[:])
	binary.BigEndian.PutUint32(id[HashSize:], index)
	return id
}

// OutputIDFromBytes parses an encoded identifier.
func OutputIDFromBytes(b []byte) (OutputID, error) {
	var id OutputID
	if len(b) != OutputIDSize {
		return id, fmt.Errorf("output id must be %d bytes, got %d", OutputIDSize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// TxID returns the transaction hash part.
func (o OutputID) TxID() Hash {
	var h Hash
	copy(h[:], o[:HashSize])
	return h
}

// Index returns the output index part.
func (o OutputID) Index() uint32 {
	return binary.BigEndian.Uint32(o[HashSize:])
}

// Bytes returns a copy of the encoded identifier.
func (o OutputID) Bytes() []byte {
	b := make([]byte, OutputIDSize)
	copy(b, o[:])
	return b
}

// String returns "txid:index" with the txid in display order.
func (o OutputID) String() string {
	return fmt.Sprintf("%s:%d", o.TxID().Reversed().String(), o.Index())
}
