package config

import (
	"os"
	"runtime"
	"time"
)

// DefaultTokenRRI is the native token of a local universe.
const DefaultTokenRRI = "/native/XRD"

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	workDir, err := os.Getwd()
	if err != nil {
		workDir = "."
	}
	return &Config{
		Network: network,
		WorkDir: workDir,
		Workers: runtime.NumCPU(),
		Token: TokenConfig{
			RRI: DefaultTokenRRI,
		},
		Stats: StatsConfig{
			Interval: 1000,
		},
		Checkpoint: CheckpointConfig{
			Interval: time.Minute,
			Budget:   time.Minute,
			Pause:    10 * time.Second,
		},
		Writer: WriterConfig{
			Queue:        4096,
			DrainTimeout: time.Second,
		},
		Store: StoreConfig{
			MemTableMB: 256,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}
