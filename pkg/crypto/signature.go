package crypto

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// PrivateKeySize is the length of a serialized private scalar.
const PrivateKeySize = 32

// Signature is an ECDSA signature as its two 32-byte big-endian scalars.
type Signature struct {
	R [32]byte
	S [32]byte
}

// KeyHandler signs content hashes and derives public keys. Implementations
// must be safe for concurrent use.
type KeyHandler interface {
	// Sign produces an ECDSA signature over a 32-byte hash.
	Sign(hash, privKey []byte) (Signature, error)
	// PublicKey returns the compressed 33-byte public key of privKey.
	PublicKey(privKey []byte) ([]byte, error)
	// Verify checks a signature against a hash and compressed public key.
	Verify(hash []byte, sig Signature, pubKey []byte) bool
}

// ECDSAKeyHandler implements KeyHandler with deterministic (RFC 6979)
// ECDSA over secp256k1.
type ECDSAKeyHandler struct{}

// NewKeyHandler returns the default key handler.
func NewKeyHandler() ECDSAKeyHandler {
	return ECDSAKeyHandler{}
}

// Sign produces an ECDSA signature over a 32-byte hash.
func (ECDSAKeyHandler) Sign(hash, privKey []byte) (Signature, error) {
	if len(hash) != 32 {
		return Signature{}, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}
	key, err := parsePrivateKey(privKey)
	if err != nil {
		return Signature{}, err
	}
	sig := ecdsa.Sign(key, hash)
	r, s := sig.R(), sig.S()
	return Signature{R: r.Bytes(), S: s.Bytes()}, nil
}

// PublicKey returns the compressed 33-byte public key.
func (ECDSAKeyHandler) PublicKey(privKey []byte) ([]byte, error) {
	key, err := parsePrivateKey(privKey)
	if err != nil {
		return nil, err
	}
	return key.PubKey().SerializeCompressed(), nil
}

// Verify checks an ECDSA signature. Returns false on any error.
func (ECDSAKeyHandler) Verify(hash []byte, sig Signature, pubKey []byte) bool {
	pub, err := secp256k1.ParsePubKey(pubKey)
	if err != nil {
		return false
	}
	var r, s secp256k1.ModNScalar
	if overflow := r.SetBytes(&sig.R); overflow != 0 || r.IsZero() {
		return false
	}
	if overflow := s.SetBytes(&sig.S); overflow != 0 || s.IsZero() {
		return false
	}
	return ecdsa.NewSignature(&r, &s).Verify(hash, pub)
}

// parsePrivateKey rejects scalars that are zero or not below the group order.
func parsePrivateKey(b []byte) (*secp256k1.PrivateKey, error) {
	if len(b) != PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", PrivateKeySize, len(b))
	}
	var k secp256k1.ModNScalar
	if overflow := k.SetByteSlice(b); overflow || k.IsZero() {
		return nil, fmt.Errorf("private key out of range")
	}
	return secp256k1.NewPrivateKey(&k), nil
}

// ValidPrivateKey reports whether b can be used as a private key.
func ValidPrivateKey(b []byte) bool {
	_, err := parsePrivateKey(b)
	return err == nil
}
