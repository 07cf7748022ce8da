package keys

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/radixdlt/mtps/internal/chaintest"
	"github.com/radixdlt/mtps/pkg/crypto"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func fastParams() SealParams {
	return SealParams{Memory: 64, Iterations: 1, Parallelism: 1}
}

func testGenerator(t *testing.T) *Generator {
	t.Helper()
	seed, err := SeedFromMnemonic(testMnemonic)
	if err != nil {
		t.Fatalf("SeedFromMnemonic() error: %v", err)
	}
	g, err := NewGenerator(seed)
	if err != nil {
		t.Fatalf("NewGenerator() error: %v", err)
	}
	return g
}

func TestDeterministic(t *testing.T) {
	kh := crypto.NewKeyHandler()
	hash := bytes.Repeat([]byte{0xab}, 20)

	a, err := Deterministic(kh, hash)
	if err != nil {
		t.Fatalf("Deterministic() error: %v", err)
	}
	b, _ := Deterministic(kh, hash)
	if a != b {
		t.Error("Deterministic() is not deterministic")
	}
	want := crypto.Hash(hash)
	if a.Priv != [32]byte(want) {
		t.Error("private key is not blake3 of the address hash")
	}
	pub, _ := kh.PublicKey(a.Priv[:])
	if !bytes.Equal(pub, a.Pub[:]) {
		t.Error("public key does not match the private key")
	}

	other, _ := Deterministic(kh, bytes.Repeat([]byte{0xac}, 20))
	if other.Pub == a.Pub {
		t.Error("different hashes gave the same key")
	}
}

func TestGenerator_Reproducible(t *testing.T) {
	g1 := testGenerator(t)
	g2 := testGenerator(t)
	kh := crypto.NewKeyHandler()

	seen := make(map[[32]byte]bool)
	for i := uint64(0); i < 5; i++ {
		a, err := g1.Key(i)
		if err != nil {
			t.Fatalf("Key(%d) error: %v", i, err)
		}
		b, _ := g2.Key(i)
		if a != b {
			t.Errorf("Key(%d) differs between generators of one seed", i)
		}
		if seen[a.Priv] {
			t.Errorf("Key(%d) repeats an earlier key", i)
		}
		seen[a.Priv] = true

		pub, _ := kh.PublicKey(a.Priv[:])
		if !bytes.Equal(pub, a.Pub[:]) {
			t.Errorf("Key(%d) public key mismatch", i)
		}
	}

	if _, err := g1.Key(MaxGenerated); err == nil {
		t.Error("Key(MaxGenerated) should fail")
	}
}

func TestNewGenerator_BadSeed(t *testing.T) {
	if _, err := NewGenerator(make([]byte, 32)); err == nil {
		t.Error("NewGenerator() should reject a 32-byte seed")
	}
}

func TestSeedFromMnemonic_Vector(t *testing.T) {
	seed, err := SeedFromMnemonic(testMnemonic)
	if err != nil {
		t.Fatal(err)
	}
	// BIP-39 vector for the mnemonic with an empty passphrase.
	want := "5eb00bbddcf069084889a8ab9155568165f5c453ccb85e70811aaed6f6da5fc19a5ac40b389cd370d086206dec8aa6c43daea6690f20ad3d8d48b2d2ce9e38e4"
	if hex.EncodeToString(seed) != want {
		t.Errorf("seed = %x", seed)
	}
	if _, err := SeedFromMnemonic("abandon abandon"); err == nil {
		t.Error("SeedFromMnemonic() should reject an invalid mnemonic")
	}
}

func TestClassify(t *testing.T) {
	params := &chaincfg.MainNetParams
	h20 := bytes.Repeat([]byte{0x11}, 20)

	kh := crypto.NewKeyHandler()
	k, _ := Deterministic(kh, h20)
	badPub := append([]byte{0x02}, bytes.Repeat([]byte{0xff}, 32)...)

	tests := []struct {
		name   string
		script []byte
		class  ScriptClass
	}{
		{"p2pkh", chaintest.P2PKH(1, h20).PkScript, ClassP2PKH},
		{"p2sh", chaintest.P2SH(1, h20).PkScript, ClassP2SH},
		{"p2pk", chaintest.P2PK(1, k.Pub[:]).PkScript, ClassP2PK},
		{"bad p2pk", chaintest.P2PK(1, badPub).PkScript, ClassBadPubKey},
		{"p2wpkh", append([]byte{0x00, 0x14}, h20...), ClassP2WPKH},
		{"p2wsh", append([]byte{0x00, 0x20}, bytes.Repeat([]byte{0x22}, 32)...), ClassP2WSH},
		{"nonstandard", chaintest.NonStandard(1).PkScript, ClassOther},
		{"empty", nil, ClassOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class, hash := Classify(tt.script, params)
			if class != tt.class {
				t.Fatalf("Classify() = %s, want %s", class, tt.class)
			}
			derivable := class != ClassOther && class != ClassBadPubKey
			if derivable != (hash != nil) {
				t.Errorf("hash = %x for class %s", hash, class)
			}
		})
	}
}

func TestClassify_P2PKMatchesP2PKH(t *testing.T) {
	kh := crypto.NewKeyHandler()
	k, _ := Deterministic(kh, []byte("owner"))
	_, pkHash := Classify(chaintest.P2PK(1, k.Pub[:]).PkScript, &chaincfg.MainNetParams)
	_, pkhHash := Classify(chaintest.P2PKH(1, pkHash).PkScript, &chaincfg.MainNetParams)
	if !bytes.Equal(pkHash, pkhHash) {
		t.Error("P2PK and P2PKH of one key derive different owners")
	}
}

func TestSealOpen(t *testing.T) {
	sealed, err := Seal([]byte("secret"), []byte("pass"), fastParams())
	if err != nil {
		t.Fatalf("Seal() error: %v", err)
	}
	plain, err := Open(sealed, []byte("pass"))
	if err != nil || string(plain) != "secret" {
		t.Fatalf("Open() = %q, %v", plain, err)
	}
	if _, err := Open(sealed, []byte("wrong")); err == nil {
		t.Error("Open() with a wrong passphrase should fail")
	}

	tampered := append([]byte(nil), sealed...)
	tampered[SaltSize+7] ^= 2 // iterations 1 -> 3
	if _, err := Open(tampered, []byte("pass")); err == nil {
		t.Error("Open() should reject tampered parameters")
	}
	if _, err := Open(sealed[:10], []byte("pass")); err == nil {
		t.Error("Open() should reject short data")
	}
}

func TestOpen_ParametersOutOfRange(t *testing.T) {
	sealed, err := Seal([]byte("secret"), []byte("pass"), fastParams())
	if err != nil {
		t.Fatalf("Seal() error: %v", err)
	}
	tests := []struct {
		name string
		pos  int
	}{
		{"memory", SaltSize},
		{"iterations", SaltSize + 4},
		{"parallelism", SaltSize + 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tampered := append([]byte(nil), sealed...)
			tampered[tt.pos] |= 0x80
			start := time.Now()
			if _, err := Open(tampered, []byte("pass")); err == nil {
				t.Error("Open() should reject oversized parameters")
			}
			if d := time.Since(start); d > time.Second {
				t.Errorf("Open() took %v, want an early rejection", d)
			}
		})
	}
}

func TestLoadOrCreateSeed_Plain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.seed")
	first, err := LoadOrCreateSeed(path, SeedOptions{})
	if err != nil {
		t.Fatalf("LoadOrCreateSeed(create) error: %v", err)
	}
	second, err := LoadOrCreateSeed(path, SeedOptions{})
	if err != nil {
		t.Fatalf("LoadOrCreateSeed(load) error: %v", err)
	}
	if !bytes.Equal(first, second) || len(first) != SeedSize {
		t.Error("reloaded seed differs")
	}
	st, _ := os.Stat(path)
	if st.Mode().Perm() != 0600 {
		t.Errorf("seed file mode = %v, want 0600", st.Mode().Perm())
	}
}

func TestLoadOrCreateSeed_Encrypted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.seed")
	calls := 0
	pass := func(confirm bool) ([]byte, error) {
		calls++
		return []byte("hunter2"), nil
	}
	opts := SeedOptions{Encrypt: true, Passphrase: pass, Params: fastParams()}

	first, err := LoadOrCreateSeed(path, opts)
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "mnemonic") {
		t.Error("encrypted seed file stores the mnemonic in clear")
	}

	second, err := LoadOrCreateSeed(path, SeedOptions{Passphrase: pass})
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("reloaded seed differs")
	}
	if calls != 2 {
		t.Errorf("passphrase asked %d times, want 2", calls)
	}

	if _, err := LoadOrCreateSeed(path, SeedOptions{}); err == nil {
		t.Error("loading an encrypted seed without a passphrase source should fail")
	}
	wrong := func(bool) ([]byte, error) { return []byte("nope"), nil }
	if _, err := LoadOrCreateSeed(path, SeedOptions{Passphrase: wrong}); err == nil {
		t.Error("loading with a wrong passphrase should fail")
	}
}

func TestEnvOrPrompt_Env(t *testing.T) {
	t.Setenv(PassphraseEnv, "from-env")
	pass, err := EnvOrPrompt(true)
	if err != nil || string(pass) != "from-env" {
		t.Errorf("EnvOrPrompt() = %q, %v", pass, err)
	}
	t.Setenv(PassphraseEnv, "")
	if _, err := EnvOrPrompt(false); err == nil {
		t.Error("EnvOrPrompt() should reject an empty variable")
	}
}
