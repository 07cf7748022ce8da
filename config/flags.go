package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	Network   string
	BlocksDir string
	WorkDir   string
	Config    string
	Atoms     string
	Genesis   string
	Workers   int

	// Phases
	SkipBlocks    bool
	ResetAtoms    bool
	RebuildBlocks bool

	// Pipeline tuning
	Token              string
	StatsInterval      uint64
	CheckpointInterval time.Duration
	WriterQueue        int
	DrainTimeout       time.Duration
	MemTableMB         int

	// Keys
	EncryptKeys bool

	// Metrics
	MetricsAddr string

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args
	Args []string

	// Explicitly-set bool flags (for true/false overrides).
	SetSkipBlocks  bool
	SetEncryptKeys bool
	SetLogJSON     bool
}

// ParseFlags parses command-line flags from args (without the program name).
func ParseFlags(args []string) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("preparator", flag.ContinueOnError)

	// Commands
	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")

	// Core
	fs.StringVar(&f.Network, "network", "", "Source network (mainnet, testnet, regtest, signet)")
	fs.StringVar(&f.BlocksDir, "blocks", "", "Directory containing blkNNNNN.dat files")
	fs.StringVar(&f.WorkDir, "workdir", "", "Work directory")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")
	fs.StringVar(&f.Atoms, "atoms", "", "Output stream path")
	fs.StringVar(&f.Genesis, "genesis", "", "Genesis block hash override")
	fs.IntVar(&f.Workers, "workers", 0, "Worker goroutines per block")

	// Phases
	fs.BoolVar(&f.SkipBlocks, "skip-blocks", false, "Skip loading block files")
	fs.BoolVar(&f.ResetAtoms, "reset-atoms", false, "Clear walk state and output files before starting")
	fs.BoolVar(&f.RebuildBlocks, "rebuild-blocks", false, "Clear stored blocks and reload all block files")

	// Pipeline tuning
	fs.StringVar(&f.Token, "token", "", "Token reference of derived records")
	fs.Uint64Var(&f.StatsInterval, "stats-interval", 0, "Blocks between stats rows")
	fs.DurationVar(&f.CheckpointInterval, "checkpoint-interval", 0, "Checkpoint cycle length")
	fs.IntVar(&f.WriterQueue, "writer-queue", 0, "Writer queue capacity")
	fs.DurationVar(&f.DrainTimeout, "drain-timeout", 0, "Max wait for the writer queue on shutdown")
	fs.IntVar(&f.MemTableMB, "memtable-mb", 0, "Store memtable size in MB")

	// Keys
	fs.BoolVar(&f.EncryptKeys, "encrypt-keys", false, "Encrypt the generated-key seed with a passphrase")

	// Metrics
	fs.StringVar(&f.MetricsAddr, "metrics-addr", "", "Prometheus listen address (e.g. 127.0.0.1:9100)")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	fs.Usage = func() {
		printUsage()
	}

	// Positional arguments come first: <blocks-dir> [<work-dir>] [options].
	var positional []string
	for len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		positional = append(positional, args[0])
		args = args[1:]
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	f.SetSkipBlocks = isFlagSet(fs, "skip-blocks")
	f.SetEncryptKeys = isFlagSet(fs, "encrypt-keys")
	f.SetLogJSON = isFlagSet(fs, "log-json")

	f.Args = append(positional, fs.Args()...)
	for _, arg := range fs.Args() {
		if strings.HasPrefix(arg, "-") {
			return nil, fmt.Errorf("flag %q was not parsed (positional argument stopped parsing)", arg)
		}
	}
	if len(f.Args) > 2 {
		return nil, fmt.Errorf("unexpected arguments: %v", f.Args[2:])
	}
	if len(f.Args) > 0 && f.BlocksDir == "" {
		f.BlocksDir = f.Args[0]
	}
	if len(f.Args) > 1 && f.WorkDir == "" {
		f.WorkDir = f.Args[1]
	}

	return f, nil
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) {
	// Core
	if f.Network != "" {
		cfg.Network = NetworkType(f.Network)
	}
	if f.BlocksDir != "" {
		cfg.BlocksDir = f.BlocksDir
	}
	if f.WorkDir != "" {
		cfg.WorkDir = f.WorkDir
	}
	if f.Atoms != "" {
		cfg.AtomsFile = f.Atoms
	}
	if f.Genesis != "" {
		cfg.Genesis = f.Genesis
	}
	if f.Workers != 0 {
		cfg.Workers = f.Workers
	}

	// Phases
	if f.SetSkipBlocks {
		cfg.SkipBlocks = f.SkipBlocks
	}
	cfg.ResetAtoms = f.ResetAtoms
	cfg.RebuildBlocks = f.RebuildBlocks

	// Pipeline tuning
	if f.Token != "" {
		cfg.Token.RRI = f.Token
	}
	if f.StatsInterval != 0 {
		cfg.Stats.Interval = f.StatsInterval
	}
	if f.CheckpointInterval != 0 {
		cfg.Checkpoint.Interval = f.CheckpointInterval
	}
	if f.WriterQueue != 0 {
		cfg.Writer.Queue = f.WriterQueue
	}
	if f.DrainTimeout != 0 {
		cfg.Writer.DrainTimeout = f.DrainTimeout
	}
	if f.MemTableMB != 0 {
		cfg.Store.MemTableMB = f.MemTableMB
	}

	if f.SetEncryptKeys {
		cfg.Keys.Encrypt = f.EncryptKeys
	}
	if f.MetricsAddr != "" {
		cfg.Metrics.Addr = f.MetricsAddr
	}

	// Logging
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func printUsage() {
	usage := `preparator - converts a block-file chain into a signed atom stream

Usage:
  preparator <blocks-dir> [<work-dir>] [options]
  preparator --help

Commands:
  --help, -h      Show this help message
  --version       Show version information

Core Options:
  --network       Source network: mainnet (default), testnet, regtest, signet
  --blocks        Directory containing blkNNNNN.dat files
  --workdir       Work directory (default: current directory)
  --config, -c    Config file path (default: <workdir>/preparator.conf)
  --atoms         Output stream path (default: <workdir>/atoms)
  --genesis       Genesis block hash override (hex)
  --workers       Worker goroutines per block (default: number of CPUs)

Phase Options:
  --skip-blocks     Walk stored blocks without loading block files
  --reset-atoms     Clear walk state, atoms and stats files, then start over
  --rebuild-blocks  Clear stored blocks and reload every block file

Tuning Options:
  --token                Token reference of derived records
  --stats-interval       Blocks between stats rows (default: 1000)
  --checkpoint-interval  Checkpoint cycle length (default: 1m)
  --writer-queue         Writer queue capacity (default: 4096)
  --drain-timeout        Max wait for the writer on shutdown (default: 1s)
  --memtable-mb          Store memtable size in MB (default: 256)

Keys Options:
  --encrypt-keys  Encrypt the generated-key seed (passphrase from
                  MTPS_KEY_PASSPHRASE or an interactive prompt)

Metrics Options:
  --metrics-addr  Serve Prometheus metrics on this address

Logging Options:
  --log-level     Log level: debug, info, warn, error (default: info)
  --log-file      Log file path (rotated)
  --log-json      Output logs as JSON

Examples:
  preparator ~/.bitcoin/blocks /data/work
  preparator ~/.bitcoin/blocks /data/work --skip-blocks
  preparator ~/.bitcoin/testnet3/blocks /data/work-test --network=testnet

Note:
  Create a file named STOP in the work directory to stop safely after the
  current block. Progress is resumed on the next start.
`
	fmt.Print(usage)
}

// Load loads configuration with the following precedence:
// 1. Default values
// 2. Auto-create work dirs + default config (idempotent)
// 3. Config file
// 4. Command-line flags
func Load(args []string) (*Config, *Flags, error) {
	flags, err := ParseFlags(args)
	if err != nil {
		return nil, nil, err
	}

	if flags.Help {
		printUsage()
		os.Exit(0)
	}
	if flags.Version {
		fmt.Println("preparator version 0.1.0")
		os.Exit(0)
	}

	network := Mainnet
	if flags.Network != "" {
		network = NetworkType(strings.ToLower(flags.Network))
	}

	cfg := Default(network)
	if flags.WorkDir != "" {
		cfg.WorkDir = flags.WorkDir
	}

	if err := EnsureWorkDirs(cfg); err != nil {
		return nil, nil, fmt.Errorf("ensuring work dirs: %w", err)
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}

	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, nil, fmt.Errorf("applying config file: %w", err)
	}

	// Apply flags (highest precedence)
	ApplyFlags(cfg, flags)
	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, flags, nil
}

// EnsureWorkDirs creates the work directory structure and a default config
// file if they don't already exist. Safe to call on every startup.
func EnsureWorkDirs(cfg *Config) error {
	for _, dir := range []string{cfg.WorkDir, cfg.StoreDir(), cfg.LogsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}
	return nil
}
