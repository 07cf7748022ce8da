// Package node wires the pipeline together: store, loader, walker, writer,
// checkpoint supervisor and stats, for embedding in the preparator binary.
package node

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/radixdlt/mtps/config"
	"github.com/radixdlt/mtps/internal/chain"
	"github.com/radixdlt/mtps/internal/checkpoint"
	"github.com/radixdlt/mtps/internal/keys"
	"github.com/radixdlt/mtps/internal/loader"
	mlog "github.com/radixdlt/mtps/internal/log"
	"github.com/radixdlt/mtps/internal/resolver"
	"github.com/radixdlt/mtps/internal/stats"
	"github.com/radixdlt/mtps/internal/storage"
	"github.com/radixdlt/mtps/internal/utxo"
	"github.com/radixdlt/mtps/internal/walker"
	"github.com/radixdlt/mtps/internal/writer"
	"github.com/radixdlt/mtps/pkg/crypto"
	"github.com/radixdlt/mtps/pkg/types"
	"github.com/rs/zerolog"
)

// Node is a fully-initialized pipeline.
type Node struct {
	cfg    *config.Config
	logger zerolog.Logger

	// Core
	db      *storage.BadgerDB
	store   *chain.Store
	params  *chaincfg.Params
	magic   uint32
	genesis types.Hash

	// Keys
	kh  crypto.KeyHandler
	gen *keys.Generator

	// Metrics
	metrics *stats.Server

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Result summarizes one run.
type Result struct {
	Load   loader.Result
	Walk   walker.Result
	Loaded bool
	Walked bool
	// Drained is false when the writer queue did not empty before the
	// drain timeout.
	Drained bool
}

// New creates and initializes a Node. It performs all setup steps
// (logger, resets, storage, keys, metrics) but does not process any block.
// Call Run for that.
func New(cfg *config.Config) (*Node, error) {
	// ── 1. Init logger ──────────────────────────────────────────────
	logFile := cfg.Log.File
	if logFile == "" {
		logFile = filepath.Join(cfg.LogsDir(), "preparator.log")
	}
	if err := mlog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := mlog.Node

	// ── 2. Network ──────────────────────────────────────────────────
	params, err := cfg.Network.Params()
	if err != nil {
		return nil, err
	}
	magic, err := cfg.Network.Magic()
	if err != nil {
		return nil, err
	}
	genesis, err := cfg.GenesisHash()
	if err != nil {
		return nil, err
	}
	cfg.BlocksDir = expandHome(cfg.BlocksDir)

	logger.Info().
		Str("network", string(cfg.Network)).
		Str("genesis", genesis.String()).
		Str("blocks", cfg.BlocksDir).
		Str("workdir", cfg.WorkDir).
		Int("workers", cfg.Workers).
		Msg("Starting preparator")

	// ── 3. Output resets ────────────────────────────────────────────
	if cfg.ResetAtoms {
		if err := removeOutputs(cfg); err != nil {
			return nil, err
		}
	}

	// ── 4. Open storage ─────────────────────────────────────────────
	db, err := storage.NewBadger(cfg.StoreDir(), storage.BadgerOptions{
		MemTableSize: int64(cfg.Store.MemTableMB) << 20,
	})
	if err != nil {
		return nil, err
	}
	store := chain.NewStore(db)
	logger.Info().Str("path", cfg.StoreDir()).Msg("Database opened")

	if cfg.RebuildBlocks {
		if err := store.ResetBlocks(); err != nil {
			db.Close()
			return nil, err
		}
		logger.Warn().Msg("Stored blocks cleared, every block file will be reloaded")
	}
	if cfg.ResetAtoms {
		if err := store.ResetWork(utxo.Tables()...); err != nil {
			db.Close()
			return nil, err
		}
		logger.Warn().Msg("Walk state cleared, the walk restarts from genesis")
	}

	// ── 5. Generated-key seed ───────────────────────────────────────
	seed, err := keys.LoadOrCreateSeed(cfg.SeedFile(), keys.SeedOptions{
		Encrypt:    cfg.Keys.Encrypt,
		Passphrase: keys.EnvOrPrompt,
		Params:     keys.DefaultSealParams(),
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load key seed: %w", err)
	}
	gen, err := keys.NewGenerator(seed)
	if err != nil {
		db.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	n := &Node{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		store:   store,
		params:  params,
		magic:   magic,
		genesis: types.Hash(genesis),
		kh:      crypto.NewKeyHandler(),
		gen:     gen,
		ctx:     ctx,
		cancel:  cancel,
	}

	// ── 6. Metrics ──────────────────────────────────────────────────
	if cfg.Metrics.Addr != "" {
		n.metrics, err = stats.Serve(cfg.Metrics.Addr)
		if err != nil {
			n.Stop()
			return nil, fmt.Errorf("metrics server: %w", err)
		}
	}

	return n, nil
}

// Run loads the block files, unless skip_blocks is set, then walks the
// stored chain. It returns when the walk is up to date, a stop is
// requested or a step fails.
func (n *Node) Run(ctx context.Context) (Result, error) {
	var res Result
	ctx, cancel := n.runContext(ctx)
	defer cancel()

	n.startCheckpoints(ctx)
	start := time.Now()

	// ── Load ────────────────────────────────────────────────────────
	if !n.cfg.SkipBlocks {
		l, err := loader.New(n.store, loader.Config{
			Dir:   n.cfg.BlocksDir,
			Magic: n.magic,
			Stop:  n.cfg.StopRequested,
		})
		if err != nil {
			return res, err
		}
		res.Load, err = l.Run(ctx)
		if err != nil {
			return res, fmt.Errorf("load: %w", err)
		}
		res.Loaded = true
		if res.Load.Stopped {
			return res, nil
		}
	} else {
		n.logger.Info().Msg("Skipping block files")
	}

	// ── Walk ────────────────────────────────────────────────────────
	walk, err := n.walk(ctx)
	res.Walk, res.Walked = walk.Result, true
	res.Drained = walk.drained
	if err != nil {
		return res, fmt.Errorf("walk: %w", err)
	}

	n.logger.Info().
		Str("last", res.Walk.Last.Reversed().String()).
		Uint64("blocks", res.Walk.Counters.Blocks).
		Int64("offset", res.Walk.Offset).
		Dur("elapsed", time.Since(start)).
		Msg("Run finished")
	return res, nil
}

type walkOutcome struct {
	walker.Result
	drained bool
}

func (n *Node) walk(ctx context.Context) (walkOutcome, error) {
	var out walkOutcome
	tot, err := loadTotals(n.store)
	if err != nil {
		return out, err
	}

	offset, err := walker.CommittedOffset(n.store)
	if err != nil {
		return out, err
	}
	w, err := writer.Open(n.cfg.AtomsPath(), offset, n.cfg.Writer.Queue)
	if err != nil {
		return out, err
	}
	n.logger.Info().Str("path", w.Path()).Int64("offset", w.Offset()).Msg("Atom stream opened")

	rep, err := stats.Open(stats.Config{
		StatsPath:   n.cfg.StatsFile(),
		BannedPath:  n.cfg.BannedStatsFile(),
		Interval:    n.cfg.Stats.Interval,
		TotalBlocks: tot.blocks,
		TotalTx:     tot.transactions,
		QueueLen:    w.QueueLen,
	})
	if err != nil {
		w.Close(n.cfg.Writer.DrainTimeout)
		return out, err
	}
	defer rep.Close()
	rep.Start(tot.counters)

	wk := walker.New(n.store, w, walker.Config{
		Genesis:    n.genesis,
		Params:     n.params,
		Workers:    n.cfg.Workers,
		KeyHandler: n.kh,
		Generator:  n.gen,
		TokenRef:   n.cfg.Token.RRI,
		Stop:       n.cfg.StopRequested,
		OnBlock: func(p walker.Progress) {
			if err := rep.Record(p); err != nil {
				n.logger.Warn().Err(err).Msg("Failed to write stats")
			}
		},
	})
	out.Result, err = wk.Run(ctx)

	drained, cerr := w.Close(n.cfg.Writer.DrainTimeout)
	out.drained = drained
	if err == nil && cerr != nil {
		err = fmt.Errorf("close atoms: %w", cerr)
	}
	return out, err
}

// runContext derives the run context from ctx and the node lifetime.
func (n *Node) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(n.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
		n.wg.Wait()
	}
}

func (n *Node) startCheckpoints(ctx context.Context) {
	sup := checkpoint.New(n.store, checkpoint.Config{
		Interval: n.cfg.Checkpoint.Interval,
		Budget:   n.cfg.Checkpoint.Budget,
		Pause:    n.cfg.Checkpoint.Pause,
		Stop:     n.cfg.StopRequested,
	})
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		sup.Run(ctx)
	}()
}

// Stop performs graceful shutdown in reverse order.
func (n *Node) Stop() {
	n.cancel()
	n.wg.Wait()

	if n.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := n.metrics.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			n.logger.Warn().Err(err).Msg("Metrics server shutdown failed")
		}
		cancel()
	}
	if n.db != nil {
		if err := n.db.Close(); err != nil {
			n.logger.Error().Err(err).Msg("Failed to close database")
		}
		n.db = nil
	}

	n.logger.Info().Msg("Goodbye!")
}

// MetricsAddr returns the address the metrics server listens on.
func (n *Node) MetricsAddr() string {
	if n.metrics == nil {
		return ""
	}
	return n.metrics.Addr()
}

// Store returns the chain store.
func (n *Node) Store() *chain.Store {
	return n.store
}

type totals struct {
	blocks       uint64
	transactions uint64
	counters     resolver.Counters
}

func loadTotals(store *chain.Store) (totals, error) {
	var t totals
	err := store.View(func(txn storage.Txn) error {
		var err error
		if t.blocks, err = chain.Cursor(txn, chain.CursorStoredBlocks, 0); err != nil {
			return err
		}
		if t.transactions, err = chain.Cursor(txn, chain.CursorTotalTx, defaultTotalTx); err != nil {
			return err
		}
		t.counters, err = resolver.LoadCounters(txn)
		return err
	})
	return t, err
}
