// Package utxo manages the unspent-output index and the banned and ignored
// output sets.
package utxo

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/radixdlt/mtps/pkg/atom"
	"github.com/radixdlt/mtps/pkg/crypto"
	"github.com/radixdlt/mtps/pkg/types"
)

// ErrMissingEntry is returned when a consumed output is in none of the sets.
// It means the chain store or the index is inconsistent.
var ErrMissingEntry = errors.New("missing unspent entry")

// entryVersion is the first byte of every encoded entry.
const entryVersion = 1

// entrySize is version + priv + pub + nonce + planck + amount.
const entrySize = 1 + 32 + types.AddressSize + 8 + 8 + 32

// Entry is the owning key and derived record of one unspent output.
// The public key of the owning key is the record address.
type Entry struct {
	PrivKey [32]byte
	Record  atom.TransferRecord
}

// MarshalBinary encodes the entry. Granularity, token reference and
// permissions are constant per run and are not stored.
func (e *Entry) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, entrySize)
	buf = append(buf, entryVersion)
	buf = append(buf, e.PrivKey[:]...)
	buf = append(buf, e.Record.Address[:]...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(e.Record.Nonce))
	buf = binary.BigEndian.AppendUint64(buf, uint64(e.Record.Planck))
	amount := e.Record.Amount.Bytes32()
	buf = append(buf, amount[:]...)
	return buf, nil
}

// UnmarshalEntry decodes an entry, filling the constant record fields
// with tokenRef and the default permissions.
func UnmarshalEntry(data []byte, tokenRef string) (*Entry, error) {
	if len(data) != entrySize {
		return nil, fmt.Errorf("entry: got %d bytes, want %d", len(data), entrySize)
	}
	if data[0] != entryVersion {
		return nil, fmt.Errorf("entry: unknown version %d", data[0])
	}
	e := &Entry{}
	off := 1
	copy(e.PrivKey[:], data[off:off+32])
	if !crypto.ValidPrivateKey(e.PrivKey[:]) {
		return nil, fmt.Errorf("entry: invalid private key")
	}
	off += 32
	copy(e.Record.Address[:], data[off:off+types.AddressSize])
	off += types.AddressSize
	e.Record.Nonce = int64(binary.BigEndian.Uint64(data[off:]))
	off += 8
	e.Record.Planck = int64(binary.BigEndian.Uint64(data[off:]))
	off += 8
	e.Record.Amount.SetBytes(data[off : off+32])
	e.Record.Granularity = *uint256.NewInt(1)
	e.Record.TokenRef = tokenRef
	e.Record.Permissions = atom.DefaultPermissions
	return e, nil
}
