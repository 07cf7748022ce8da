package keys

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/radixdlt/mtps/internal/log"
)

// seedFile is the on-disk JSON format of the generator seed.
type seedFile struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Encrypted bool      `json:"encrypted"`
	Mnemonic  string    `json:"mnemonic,omitempty"`
	Sealed    []byte    `json:"sealed,omitempty"`
}

// PassphraseFunc supplies the seed passphrase when it is needed.
type PassphraseFunc func(confirm bool) ([]byte, error)

// SeedOptions controls LoadOrCreateSeed.
type SeedOptions struct {
	// Encrypt seals a newly created seed file. Existing files keep their mode.
	Encrypt    bool
	Passphrase PassphraseFunc
	Params     SealParams
}

// LoadOrCreateSeed returns the generator seed stored at path, creating the
// file with a fresh mnemonic on first use.
func LoadOrCreateSeed(path string, opts SeedOptions) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return createSeed(path, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var sf seedFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if sf.Version != 1 {
		return nil, fmt.Errorf("seed file: unsupported version %d", sf.Version)
	}
	mnemonic := sf.Mnemonic
	if sf.Encrypted {
		if opts.Passphrase == nil {
			return nil, fmt.Errorf("seed file is encrypted and no passphrase source is configured")
		}
		pass, err := opts.Passphrase(false)
		if err != nil {
			return nil, fmt.Errorf("read passphrase: %w", err)
		}
		plain, err := Open(sf.Sealed, pass)
		zero(pass)
		if err != nil {
			return nil, fmt.Errorf("open seed file: %w", err)
		}
		mnemonic = string(plain)
	}
	return SeedFromMnemonic(mnemonic)
}

func createSeed(path string, opts SeedOptions) ([]byte, error) {
	mnemonic, err := GenerateMnemonic()
	if err != nil {
		return nil, err
	}
	sf := seedFile{Version: 1, CreatedAt: time.Now().UTC()}
	if opts.Encrypt {
		if opts.Passphrase == nil {
			return nil, fmt.Errorf("seed encryption requested and no passphrase source is configured")
		}
		pass, err := opts.Passphrase(true)
		if err != nil {
			return nil, fmt.Errorf("read passphrase: %w", err)
		}
		params := opts.Params
		if params.Iterations == 0 {
			params = DefaultSealParams()
		}
		sealed, err := Seal([]byte(mnemonic), pass, params)
		zero(pass)
		if err != nil {
			return nil, fmt.Errorf("seal seed: %w", err)
		}
		sf.Encrypted = true
		sf.Sealed = sealed
	} else {
		sf.Mnemonic = mnemonic
	}

	if err := writeSeedFile(path, &sf); err != nil {
		return nil, err
	}
	log.Keys.Info().Str("path", path).Bool("encrypted", sf.Encrypted).Msg("Created generator seed")
	return SeedFromMnemonic(mnemonic)
}

// writeSeedFile writes atomically: a crash leaves either no file or a
// complete one.
func writeSeedFile(path string, sf *seedFile) error {
	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal seed file: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".seed-*")
	if err != nil {
		return fmt.Errorf("create seed file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write seed file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod seed file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync seed file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close seed file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("install seed file: %w", err)
	}
	return nil
}
