package keys

import (
	"fmt"

	"github.com/radixdlt/mtps/pkg/crypto"
	"github.com/radixdlt/mtps/pkg/types"
	"github.com/tyler-smith/go-bip32"
)

// BIP-44 derivation path of generated keys: m/44'/1'/0'/0/index.
const (
	// PurposeBIP44 is the BIP-44 purpose field (hardened).
	PurposeBIP44 = bip32.FirstHardenedChild + 44

	// CoinTypeTest is the BIP-44 coin type for test networks (hardened).
	CoinTypeTest = bip32.FirstHardenedChild + 1

	// Account is the only account used (hardened 0).
	Account = bip32.FirstHardenedChild

	// ChangeExternal is the external chain.
	ChangeExternal = 0
)

// MaxGenerated is the number of keys a generator can produce.
const MaxGenerated = uint64(bip32.FirstHardenedChild)

// Generator derives owning keys for outputs without an address. Key i is
// the child i of the external chain, so the sequence is reproducible from
// the seed and a persisted counter.
type Generator struct {
	chain *bip32.Key
}

// NewGenerator creates a generator from a 64-byte BIP-39 seed.
func NewGenerator(seed []byte) (*Generator, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	k := master
	for _, idx := range []uint32{PurposeBIP44, CoinTypeTest, Account, ChangeExternal} {
		if k, err = k.NewChildKey(idx); err != nil {
			return nil, fmt.Errorf("derive child %d: %w", idx, err)
		}
	}
	return &Generator{chain: k}, nil
}

// Key returns generated key number index.
func (g *Generator) Key(index uint64) (OwningKey, error) {
	if index >= MaxGenerated {
		return OwningKey{}, fmt.Errorf("generated key index %d out of range", index)
	}
	child, err := g.chain.NewChildKey(uint32(index))
	if err != nil {
		return OwningKey{}, fmt.Errorf("derive generated key %d: %w", index, err)
	}
	// bip32 stores private keys as 33 bytes with a leading zero.
	raw := child.Key
	if len(raw) == 33 && raw[0] == 0 {
		raw = raw[1:]
	}
	if len(raw) != crypto.PrivateKeySize {
		return OwningKey{}, fmt.Errorf("generated key %d: bad private key length %d", index, len(raw))
	}
	var k OwningKey
	copy(k.Priv[:], raw)
	pub, err := types.AddressFromBytes(child.PublicKey().Key)
	if err != nil {
		return OwningKey{}, fmt.Errorf("generated key %d: %w", index, err)
	}
	k.Pub = pub
	return k, nil
}
