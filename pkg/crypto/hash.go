// Package crypto provides the hashing and signing primitives of the atom
// stream.
package crypto

import (
	"github.com/radixdlt/mtps/pkg/types"
	"github.com/zeebo/blake3"
)

// Hash computes a BLAKE3-256 hash of the input data.
func Hash(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// EUIDFromPubKey derives the entity identifier of a compressed public key.
// EUID = BLAKE3(compressed_pubkey)[:16].
func EUIDFromPubKey(pubKey []byte) types.EUID {
	h := Hash(pubKey)
	var e types.EUID
	copy(e[:], h[:types.EUIDSize])
	return e
}

// ShardOf returns the shard of the entity owning pubKey.
func ShardOf(pubKey []byte) int64 {
	return EUIDFromPubKey(pubKey).Shard()
}
