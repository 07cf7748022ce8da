package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFile loads configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a config value by key.
func setConfigValue(cfg *Config, key, value string) error {
	var err error
	switch key {
	// Core
	case "network":
		cfg.Network = NetworkType(strings.ToLower(value))
	case "blocks":
		cfg.BlocksDir = value
	case "workdir":
		cfg.WorkDir = value
	case "atoms":
		cfg.AtomsFile = value
	case "genesis":
		cfg.Genesis = value
	case "workers":
		cfg.Workers, err = strconv.Atoi(value)
	case "skip_blocks":
		cfg.SkipBlocks = parseBool(value)

	// Pipeline
	case "token.rri":
		cfg.Token.RRI = value
	case "stats.interval":
		cfg.Stats.Interval, err = strconv.ParseUint(value, 10, 64)
	case "checkpoint.interval":
		cfg.Checkpoint.Interval, err = time.ParseDuration(value)
	case "checkpoint.budget":
		cfg.Checkpoint.Budget, err = time.ParseDuration(value)
	case "checkpoint.pause":
		cfg.Checkpoint.Pause, err = time.ParseDuration(value)
	case "writer.queue":
		cfg.Writer.Queue, err = strconv.Atoi(value)
	case "writer.drain_timeout":
		cfg.Writer.DrainTimeout, err = time.ParseDuration(value)
	case "store.memtable_mb":
		cfg.Store.MemTableMB, err = strconv.Atoi(value)
	case "keys.encrypt":
		cfg.Keys.Encrypt = parseBool(value)
	case "metrics.addr":
		cfg.Metrics.Addr = value

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored
	}
	return err
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// WriteDefaultConfig writes a default configuration file.
func WriteDefaultConfig(path string, network NetworkType) error {
	content := `# Preparator configuration
#
# Command-line flags override every value in this file.

# Source network: mainnet, testnet, regtest or signet
network = ` + string(network) + `

# Directory containing blkNNNNN.dat files
# blocks = ~/.bitcoin/blocks

# Output stream (default: <workdir>/atoms)
# atoms =

# Genesis block hash override (hex, as shown by block explorers)
# genesis =

# Worker goroutines per block (default: number of CPUs)
# workers = 8

# Walk stored blocks without loading block files
skip_blocks = false

# ============================================================================
# Pipeline
# ============================================================================

# Token reference of derived records
# token.rri = ` + DefaultTokenRRI + `

# Blocks between rows of stats.csv and banned_stats.csv
stats.interval = 1000

# Store maintenance: one cycle per interval, cleaning for at most budget
checkpoint.interval = 1m
checkpoint.budget = 1m
checkpoint.pause = 10s

# Writer queue capacity and shutdown drain timeout
writer.queue = 4096
writer.drain_timeout = 1s

# Store memtable size in MB. Bounds the largest block that can be processed.
store.memtable_mb = 256

# Encrypt the generated-key seed (passphrase from MTPS_KEY_PASSPHRASE)
keys.encrypt = false

# ============================================================================
# Metrics
# ============================================================================

# Prometheus listen address (empty disables)
# metrics.addr = 127.0.0.1:9100

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
