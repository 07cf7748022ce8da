package keys

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// SaltSize is the Argon2id salt length.
const SaltSize = 16

// Sealed layout: salt | memory(4) | iterations(4) | parallelism(1) | nonce(24) | ciphertext
const sealHeaderSize = SaltSize + 4 + 4 + 1

// Ceilings of stored parameters. Open rejects anything above them before
// deriving a key, since the header is only authenticated after derivation.
const (
	MaxSealMemory      = 1 << 20 // KiB
	MaxSealIterations  = 16
	MaxSealParallelism = 64
)

// SealParams holds Argon2id parameters.
type SealParams struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
}

// DefaultSealParams returns the parameters used for new seed files.
func DefaultSealParams() SealParams {
	return SealParams{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
	}
}

func deriveSealKey(passphrase, salt []byte, p SealParams) []byte {
	return argon2.IDKey(passphrase, salt, p.Iterations, p.Memory, p.Parallelism, chacha20poly1305.KeySize)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Seal encrypts data under passphrase with Argon2id and XChaCha20-Poly1305.
// The parameters are stored in the output so Open needs only the passphrase.
func Seal(data, passphrase []byte, p SealParams) ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	key := deriveSealKey(passphrase, salt, p)
	defer zero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, sealHeaderSize+len(nonce)+len(data)+aead.Overhead())
	out = append(out, salt...)
	out = binary.BigEndian.AppendUint32(out, p.Memory)
	out = binary.BigEndian.AppendUint32(out, p.Iterations)
	out = append(out, p.Parallelism)
	out = append(out, nonce...)
	// The header is authenticated so the parameters cannot be swapped.
	header := append([]byte(nil), out[:sealHeaderSize]...)
	return aead.Seal(out, nonce, data, header), nil
}

// Open decrypts the output of Seal.
func Open(sealed, passphrase []byte) ([]byte, error) {
	minSize := sealHeaderSize + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead
	if len(sealed) < minSize {
		return nil, fmt.Errorf("sealed data too short: %d bytes, need at least %d", len(sealed), minSize)
	}
	p := SealParams{
		Memory:      binary.BigEndian.Uint32(sealed[SaltSize:]),
		Iterations:  binary.BigEndian.Uint32(sealed[SaltSize+4:]),
		Parallelism: sealed[SaltSize+8],
	}
	if p.Iterations == 0 || p.Parallelism == 0 {
		return nil, fmt.Errorf("sealed data has invalid parameters")
	}
	if p.Memory > MaxSealMemory || p.Iterations > MaxSealIterations || p.Parallelism > MaxSealParallelism {
		return nil, fmt.Errorf("sealed data parameters out of range: memory=%d iterations=%d parallelism=%d",
			p.Memory, p.Iterations, p.Parallelism)
	}
	key := deriveSealKey(passphrase, sealed[:SaltSize], p)
	defer zero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	nonce := sealed[sealHeaderSize : sealHeaderSize+chacha20poly1305.NonceSizeX]
	plain, err := aead.Open(nil, nonce, sealed[sealHeaderSize+len(nonce):], sealed[:sealHeaderSize])
	if err != nil {
		return nil, fmt.Errorf("decrypt: wrong passphrase or corrupt data")
	}
	return plain, nil
}
