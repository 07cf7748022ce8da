// Package keys provides the owning keys of derived records: deterministic
// keys for outputs with an address, and HD-generated keys for the rest.
package keys

import (
	"fmt"

	"github.com/radixdlt/mtps/pkg/crypto"
	"github.com/radixdlt/mtps/pkg/types"
)

// OwningKey is a secp256k1 key pair. Pub is the compressed public key.
type OwningKey struct {
	Priv [32]byte
	Pub  types.Address
}

// EUID returns the entity identifier of the key.
func (k OwningKey) EUID() types.EUID {
	return crypto.EUIDFromPubKey(k.Pub[:])
}

// FromPrivate completes a key pair from its private scalar.
func FromPrivate(kh crypto.KeyHandler, priv [32]byte) (OwningKey, error) {
	pub, err := kh.PublicKey(priv[:])
	if err != nil {
		return OwningKey{}, err
	}
	addr, err := types.AddressFromBytes(pub)
	if err != nil {
		return OwningKey{}, fmt.Errorf("public key: %w", err)
	}
	return OwningKey{Priv: priv, Pub: addr}, nil
}

// Deterministic derives the owning key of an address hash. The private
// scalar is BLAKE3 of the hash, so the same address always maps to the
// same key.
func Deterministic(kh crypto.KeyHandler, addrHash []byte) (OwningKey, error) {
	priv := crypto.Hash(addrHash)
	k, err := FromPrivate(kh, priv)
	if err != nil {
		return OwningKey{}, fmt.Errorf("derive key for %x: %w", addrHash, err)
	}
	return k, nil
}
