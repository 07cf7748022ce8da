package config

import (
	"fmt"
	"net"

	"github.com/radixdlt/mtps/internal/log"
)

// Validate checks the runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if _, err := cfg.Network.Params(); err != nil {
		return err
	}
	if cfg.BlocksDir == "" && !cfg.SkipBlocks {
		return fmt.Errorf("blocks directory is required unless skip_blocks is set")
	}
	if cfg.WorkDir == "" {
		return fmt.Errorf("workdir is required")
	}
	if _, err := cfg.GenesisHash(); err != nil {
		return err
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if cfg.Token.RRI == "" {
		return fmt.Errorf("token.rri must not be empty")
	}
	if cfg.Stats.Interval == 0 {
		return fmt.Errorf("stats.interval must be at least 1")
	}
	if cfg.Checkpoint.Interval <= 0 || cfg.Checkpoint.Budget <= 0 || cfg.Checkpoint.Pause <= 0 {
		return fmt.Errorf("checkpoint durations must be positive")
	}
	if cfg.Writer.Queue < 1 {
		return fmt.Errorf("writer.queue must be at least 1")
	}
	if cfg.Writer.DrainTimeout < 0 {
		return fmt.Errorf("writer.drain_timeout must not be negative")
	}
	if cfg.Store.MemTableMB < 1 {
		return fmt.Errorf("store.memtable_mb must be at least 1")
	}
	if cfg.Metrics.Addr != "" {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Addr); err != nil {
			return fmt.Errorf("metrics.addr: %w", err)
		}
	}
	if !log.ValidLevel(cfg.Log.Level) {
		return fmt.Errorf("log.level must be debug, info, warn or error")
	}
	return nil
}
