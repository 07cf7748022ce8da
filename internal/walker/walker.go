// Package walker follows the stored chain from genesis, one committed
// store transaction per block.
package walker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/radixdlt/mtps/internal/builder"
	"github.com/radixdlt/mtps/internal/chain"
	"github.com/radixdlt/mtps/internal/keys"
	"github.com/radixdlt/mtps/internal/log"
	"github.com/radixdlt/mtps/internal/resolver"
	"github.com/radixdlt/mtps/internal/storage"
	"github.com/radixdlt/mtps/internal/writer"
	"github.com/radixdlt/mtps/pkg/crypto"
	"github.com/radixdlt/mtps/pkg/types"
)

// ErrGenesisMissing is returned when a walk from scratch finds no genesis
// block in the store.
var ErrGenesisMissing = errors.New("genesis block not in store")

// Config configures a Walker.
type Config struct {
	// Genesis is the first block of the walk, in wire order.
	Genesis    types.Hash
	Params     *chaincfg.Params
	Workers    int
	KeyHandler crypto.KeyHandler
	Generator  *keys.Generator
	TokenRef   string
	// Stop is polled after every committed block. Optional.
	Stop func() bool
	// OnBlock is called after every committed block. Optional.
	OnBlock func(Progress)
}

// Progress describes the last committed block.
type Progress struct {
	Hash      types.Hash
	BlockTime time.Time
	Counters  resolver.Counters
	Offset    int64
}

// Result summarizes one walk.
type Result struct {
	// UpToDate is set when the last walked block has no successor.
	UpToDate bool
	Stopped  bool
	Blocks   uint64
	Last     types.Hash
	Counters resolver.Counters
	Offset   int64
}

// Walker drives the resolver, builder and writer over the chain. The
// writer must have been opened at CommittedOffset.
type Walker struct {
	store *chain.Store
	out   *writer.Writer
	res   *resolver.Resolver
	pool  *builder.Pool
	cfg   Config
}

// New creates a walker.
func New(store *chain.Store, out *writer.Writer, cfg Config) *Walker {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Walker{
		store: store,
		out:   out,
		res: resolver.New(resolver.Config{
			KeyHandler: cfg.KeyHandler,
			Generator:  cfg.Generator,
			Params:     cfg.Params,
			TokenRef:   cfg.TokenRef,
		}),
		pool: builder.NewPool(cfg.KeyHandler, cfg.Workers),
		cfg:  cfg,
	}
}

// CommittedOffset returns the stream offset committed with the last
// walked block, zero before the first one.
func CommittedOffset(store *chain.Store) (int64, error) {
	var off uint64
	err := store.View(func(txn storage.Txn) error {
		var err error
		off, err = chain.Cursor(txn, chain.CursorOutputOffset, 0)
		return err
	})
	return int64(off), err
}

// Run walks from the successor of the last walked block, or from genesis,
// until the chain ends or a stop is requested. A failed block leaves every
// cursor where it was; the writer then holds uncommitted bytes and must be
// reopened before walking again.
func (w *Walker) Run(ctx context.Context) (Result, error) {
	var res Result
	current, ok, err := w.start(&res)
	if err != nil {
		return res, err
	}
	if !ok {
		res.UpToDate = true
		log.Walker.Info().Str("last", res.Last.Reversed().String()).Msg("Walk up to date")
		return res, nil
	}

	log.Walker.Info().
		Str("from", current.Reversed().String()).
		Uint64("blocks", res.Counters.Blocks).
		Int64("offset", res.Offset).
		Msg("Walking chain")

	for {
		if err := w.step(ctx, current, &res); err != nil {
			if ctx.Err() != nil {
				res.Stopped = true
				log.Walker.Info().Str("hash", current.Reversed().String()).Msg("Walk cancelled, block not committed")
				return res, nil
			}
			return res, fmt.Errorf("block %s: %w", current.Reversed(), err)
		}
		res.Blocks++

		if ctx.Err() != nil || (w.cfg.Stop != nil && w.cfg.Stop()) {
			res.Stopped = true
			log.Walker.Info().Uint64("blocks", res.Counters.Blocks).Msg("Stop requested, walk interrupted")
			return res, nil
		}

		var next types.Hash
		err := w.store.View(func(txn storage.Txn) error {
			var err error
			next, ok, err = chain.NextHash(txn, current)
			return err
		})
		if err != nil {
			return res, err
		}
		if !ok {
			res.UpToDate = true
			log.Walker.Info().
				Uint64("blocks", res.Counters.Blocks).
				Uint64("walked", res.Blocks).
				Msg("Walk complete")
			return res, nil
		}
		current = next
	}
}

// start loads the committed state and returns the first block to walk.
// It reports false when the last walked block has no successor yet.
func (w *Walker) start(res *Result) (types.Hash, bool, error) {
	var current types.Hash
	var ok bool
	err := w.store.View(func(txn storage.Txn) error {
		var err error
		if res.Counters, err = resolver.LoadCounters(txn); err != nil {
			return err
		}
		off, err := chain.Cursor(txn, chain.CursorOutputOffset, 0)
		if err != nil {
			return err
		}
		res.Offset = int64(off)

		last, walked, err := chain.HashCursor(txn, chain.CursorLastWalked)
		if err != nil {
			return err
		}
		if walked {
			res.Last = last
			current, ok, err = chain.NextHash(txn, last)
			return err
		}

		has, err := chain.HasBlock(txn, w.cfg.Genesis)
		if err != nil {
			return err
		}
		if !has {
			return fmt.Errorf("%w: %s", ErrGenesisMissing, w.cfg.Genesis.Reversed())
		}
		current, ok = w.cfg.Genesis, true
		return nil
	})
	return current, ok, err
}

// step processes one block in a single store transaction.
func (w *Walker) step(ctx context.Context, hash types.Hash, res *Result) error {
	start := time.Now()
	txn := w.store.Begin()
	defer txn.Discard()

	blk, err := chain.GetMsgBlock(txn, hash)
	if err != nil {
		return err
	}
	cache, err := resolver.DeriveKeys(ctx, w.cfg.KeyHandler, w.cfg.Params, blk, w.cfg.Workers)
	if err != nil {
		return fmt.Errorf("derive keys: %w", err)
	}

	counters := res.Counters
	items, err := w.res.Resolve(txn, blk, cache, &counters)
	if err != nil {
		return err
	}
	counters.Blocks++

	if err := w.pool.BuildAll(ctx, items, w.out.Enqueue); err != nil {
		return fmt.Errorf("build: %w", err)
	}
	offset, err := w.out.Flush(ctx)
	if err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	if err := counters.Save(txn); err != nil {
		return err
	}
	if err := chain.SetHashCursor(txn, chain.CursorLastWalked, hash); err != nil {
		return err
	}
	if err := chain.SetCursor(txn, chain.CursorOutputOffset, uint64(offset)); err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	res.Counters = counters
	res.Last = hash
	res.Offset = offset
	prometheusWalkerBlocks.Inc()
	prometheusWalkerHeight.Set(float64(counters.Blocks))
	prometheusWalkerBlock.Observe(time.Since(start).Seconds())

	log.Walker.Debug().
		Str("hash", hash.Reversed().String()).
		Int("txs", len(blk.Transactions)).
		Int("items", len(items)).
		Int("derived", cache.Len()).
		Int64("offset", offset).
		Msg("Block committed")

	if w.cfg.OnBlock != nil {
		w.cfg.OnBlock(Progress{
			Hash:      hash,
			BlockTime: blk.Header.Timestamp,
			Counters:  counters,
			Offset:    offset,
		})
	}
	return nil
}
