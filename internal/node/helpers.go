package node

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/radixdlt/mtps/config"
)

// defaultTotalTx is the ETA denominator when no block file was loaded in
// this work dir.
const defaultTotalTx = 408_000_000

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// removeOutputs deletes the atom stream and both stats files.
func removeOutputs(cfg *config.Config) error {
	for _, path := range []string{cfg.AtomsPath(), cfg.StatsFile(), cfg.BannedStatsFile()} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("reset %s: %w", path, err)
		}
	}
	return nil
}
