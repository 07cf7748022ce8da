package types

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/mr-tron/base58"
)

// AddressSize is the length of an address in bytes.
const AddressSize = 33

// Address is the owner of a transfer record: a compressed secp256k1
// public key.
type Address [AddressSize]byte

// AddressFromBytes copies a 33-byte compressed key into an Address.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressSize {
		return a, fmt.Errorf("address must be %d bytes, got %d", AddressSize, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// ParseAddress decodes a base58 address string.
func ParseAddress(s string) (Address, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("invalid base58 address: %w", err)
	}
	return AddressFromBytes(b)
}

// IsZero returns true if the address is all zeros.
func (a Address) IsZero() bool {
	return a == Address{}
}

// String returns the base58-encoded address.
func (a Address) String() string {
	return base58.Encode(a[:])
}

// Bytes returns a copy of the address as a byte slice.
func (a Address) Bytes() []byte {
	b := make([]byte, AddressSize)
	copy(b, a[:])
	return b
}

// EUIDSize is the length of an entity identifier in bytes.
const EUIDSize = 16

// EUID is the 128-bit entity identifier derived from an address.
type EUID [EUIDSize]byte

// Shard returns the shard number of the entity: the first eight bytes of
// the identifier read as a big-endian signed integer.
func (e EUID) Shard() int64 {
	return int64(binary.BigEndian.Uint64(e[:8]))
}

// String returns the hex-encoded identifier.
func (e EUID) String() string {
	return hex.EncodeToString(e[:])
}

// Less orders identifiers bytewise.
func (e EUID) Less(o EUID) bool {
	for i := 0; i < EUIDSize; i++ {
		if e[i] != o[i] {
			return e[i] < o[i]
		}
	}
	return false
}
