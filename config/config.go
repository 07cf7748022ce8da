// Package config handles application configuration.
//
// Settings come from four layers, later layers winning:
//   - Defaults for the selected network
//   - The conf file in the work directory (created on first start)
//   - Command-line flags
//   - Positional arguments: <blocks-dir> [<work-dir>]
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds the preparator runtime configuration.
type Config struct {
	// Core
	Network   NetworkType `conf:"network"`
	BlocksDir string      `conf:"blocks"`
	WorkDir   string      `conf:"workdir"`
	AtomsFile string      `conf:"atoms"`
	// Genesis overrides the network genesis hash (hex, display order).
	Genesis string `conf:"genesis"`
	Workers int    `conf:"workers"`

	// SkipBlocks skips the loading phase and walks already stored blocks.
	SkipBlocks bool `conf:"skip_blocks"`

	// Maintenance (not persisted in config file)
	ResetAtoms    bool
	RebuildBlocks bool

	Token      TokenConfig
	Stats      StatsConfig
	Checkpoint CheckpointConfig
	Writer     WriterConfig
	Store      StoreConfig
	Keys       KeysConfig
	Metrics    MetricsConfig
	Log        LogConfig
}

// TokenConfig describes the target-ledger token.
type TokenConfig struct {
	RRI string `conf:"token.rri"`
}

// StatsConfig controls the statistics side files.
type StatsConfig struct {
	Interval uint64 `conf:"stats.interval"` // Blocks between stats rows
}

// CheckpointConfig controls the background maintenance loop.
type CheckpointConfig struct {
	Interval time.Duration `conf:"checkpoint.interval"` // One cycle per interval
	Budget   time.Duration `conf:"checkpoint.budget"`   // Max time spent cleaning per cycle
	Pause    time.Duration `conf:"checkpoint.pause"`    // Sleep between cleanings
}

// WriterConfig controls the atom writer.
type WriterConfig struct {
	Queue        int           `conf:"writer.queue"`
	DrainTimeout time.Duration `conf:"writer.drain_timeout"`
}

// StoreConfig tunes the chain store.
type StoreConfig struct {
	MemTableMB int `conf:"store.memtable_mb"`
}

// KeysConfig controls the generated-key seed.
type KeysConfig struct {
	// Encrypt protects the seed file with a passphrase.
	Encrypt bool `conf:"keys.encrypt"`
}

// MetricsConfig enables the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `conf:"metrics.addr"` // Empty disables the endpoint
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// StoreDir returns the chain store directory.
func (c *Config) StoreDir() string {
	return filepath.Join(c.WorkDir, "store")
}

// AtomsPath returns the output stream path.
func (c *Config) AtomsPath() string {
	if c.AtomsFile != "" {
		return c.AtomsFile
	}
	return filepath.Join(c.WorkDir, "atoms")
}

// StatsFile returns the progress statistics file.
func (c *Config) StatsFile() string {
	return filepath.Join(c.WorkDir, "stats.csv")
}

// BannedStatsFile returns the anomaly statistics file.
func (c *Config) BannedStatsFile() string {
	return filepath.Join(c.WorkDir, "banned_stats.csv")
}

// StopFile returns the path of the stop sentinel.
func (c *Config) StopFile() string {
	return filepath.Join(c.WorkDir, "STOP")
}

// StopRequested reports whether the stop sentinel exists.
func (c *Config) StopRequested() bool {
	_, err := os.Stat(c.StopFile())
	return err == nil
}

// SeedFile returns the generated-key seed file.
func (c *Config) SeedFile() string {
	return filepath.Join(c.WorkDir, "keys.seed")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.WorkDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.WorkDir, "preparator.conf")
}
