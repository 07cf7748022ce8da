package keys

import (
	"bytes"
	"fmt"
	"os"

	"golang.org/x/term"
)

// PassphraseEnv names the environment variable holding the seed passphrase.
const PassphraseEnv = "MTPS_KEY_PASSPHRASE"

// EnvOrPrompt reads the passphrase from PassphraseEnv, falling back to a
// hidden prompt on the terminal.
func EnvOrPrompt(confirm bool) ([]byte, error) {
	if v, ok := os.LookupEnv(PassphraseEnv); ok {
		if v == "" {
			return nil, fmt.Errorf("%s is empty", PassphraseEnv)
		}
		return []byte(v), nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("no terminal for a passphrase prompt; set %s", PassphraseEnv)
	}
	pass, err := readPassword(fd, "Key seed passphrase: ")
	if err != nil {
		return nil, err
	}
	if len(pass) == 0 {
		return nil, fmt.Errorf("empty passphrase")
	}
	if confirm {
		again, err := readPassword(fd, "Repeat passphrase: ")
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(pass, again) {
			return nil, fmt.Errorf("passphrases do not match")
		}
	}
	return pass, nil
}

func readPassword(fd int, prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, err
	}
	return password, nil
}
