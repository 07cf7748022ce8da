// Package loader copies source block files into the chain store.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/radixdlt/mtps/internal/blockfile"
	"github.com/radixdlt/mtps/internal/chain"
	"github.com/radixdlt/mtps/internal/log"
	"github.com/radixdlt/mtps/internal/storage"
)

// progressEvery is the number of stored blocks between progress lines.
const progressEvery = 1000

// Config configures a Loader.
type Config struct {
	// Dir holds the blkNNNNN.dat segments.
	Dir string
	// Magic is the network magic of every frame.
	Magic uint32
	// Stop is polled after every block. Optional.
	Stop func() bool
}

// Result summarizes one load.
type Result struct {
	FirstSegment int
	Segments     int
	Inserted     uint64
	Duplicates   uint64
	StoredBlocks uint64
	Transactions uint64
	Stopped      bool
}

// Loader reads segments in order and stores every block not yet present,
// one store transaction per block.
type Loader struct {
	store *chain.Store
	cfg   Config
	xor   []byte
}

// New creates a loader. The obfuscation key is read from the blocks dir.
func New(store *chain.Store, cfg Config) (*Loader, error) {
	key, err := blockfile.LoadXORKey(cfg.Dir)
	if err != nil {
		return nil, err
	}
	if key != nil {
		log.Loader.Info().Int("key_len", len(key)).Msg("Block files are obfuscated")
	}
	return &Loader{store: store, cfg: cfg, xor: key}, nil
}

// Run loads from the last complete segment up to the first missing one.
// Segments before the last complete one are never reread; the two most
// recent are, since the source node may still have been appending to them.
func (l *Loader) Run(ctx context.Context) (Result, error) {
	var res Result
	var first uint64
	err := l.store.View(func(txn storage.Txn) error {
		var err error
		if first, err = chain.Cursor(txn, chain.CursorLastSegment, 0); err != nil {
			return err
		}
		if res.StoredBlocks, err = chain.Cursor(txn, chain.CursorStoredBlocks, 0); err != nil {
			return err
		}
		res.Transactions, err = chain.Cursor(txn, chain.CursorTotalTx, 0)
		return err
	})
	if err != nil {
		return res, fmt.Errorf("load progress: %w", err)
	}
	res.FirstSegment = int(first)

	log.Loader.Info().
		Str("from", blockfile.Name(res.FirstSegment)).
		Uint64("stored", res.StoredBlocks).
		Msg("Loading block files")

	start := time.Now()
	i := res.FirstSegment
	for ; blockfile.Exists(l.cfg.Dir, i); i++ {
		stopped, err := l.loadSegment(ctx, i, &res)
		if err != nil {
			return res, err
		}
		res.Segments++
		if stopped {
			res.Stopped = true
			log.Loader.Info().Str("segment", blockfile.Name(i)).Msg("Stop requested, loading interrupted")
			return res, nil
		}
	}

	last := i - 2
	if last < 0 {
		last = 0
	}
	err = l.store.Update(func(txn storage.Txn) error {
		return chain.SetCursor(txn, chain.CursorLastSegment, uint64(last))
	})
	if err != nil {
		return res, fmt.Errorf("store segment cursor: %w", err)
	}

	log.Loader.Info().
		Int("segments", res.Segments).
		Uint64("inserted", res.Inserted).
		Uint64("duplicates", res.Duplicates).
		Uint64("stored", res.StoredBlocks).
		Uint64("transactions", res.Transactions).
		Dur("elapsed", time.Since(start)).
		Msg("Chain built")
	return res, nil
}

// loadSegment stores the blocks of segment i. It reports whether a stop was
// requested.
func (l *Loader) loadSegment(ctx context.Context, i int, res *Result) (bool, error) {
	seg, err := blockfile.Open(l.cfg.Dir, i, l.cfg.Magic, l.xor)
	if err != nil {
		return false, fmt.Errorf("open segment: %w", err)
	}
	defer seg.Close()
	defer log.Benchmark("segment " + blockfile.Name(i))()

	for {
		blk, err := seg.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return false, err
		}

		inserted, err := l.storeBlock(blk, res)
		if err != nil {
			return false, fmt.Errorf("store block %s: %w", blk.Hash.Reversed(), err)
		}
		if inserted {
			res.Inserted++
			prometheusLoaderBlocks.Inc()
			if res.StoredBlocks%progressEvery == 0 {
				log.Loader.Info().
					Uint64("stored", res.StoredBlocks).
					Str("segment", blockfile.Name(i)).
					Msg("Loaded blocks")
			}
		} else {
			res.Duplicates++
			prometheusLoaderDuplicates.Inc()
		}

		if ctx.Err() != nil || (l.cfg.Stop != nil && l.cfg.Stop()) {
			return true, nil
		}
	}
	if seg.Skipped > 0 {
		log.Loader.Warn().
			Str("segment", blockfile.Name(i)).
			Int64("bytes", seg.Skipped).
			Msg("Skipped bytes between frames")
	}
	return false, nil
}

func (l *Loader) storeBlock(blk *blockfile.Block, res *Result) (bool, error) {
	txn := l.store.Begin()
	defer txn.Discard()

	inserted, err := chain.PutBlock(txn, blk.Hash, blk.Prev, blk.Raw)
	if err != nil || !inserted {
		return false, err
	}
	stored := res.StoredBlocks + 1
	total := res.Transactions + uint64(len(blk.Msg.Transactions))
	if err := chain.SetCursor(txn, chain.CursorStoredBlocks, stored); err != nil {
		return false, err
	}
	if err := chain.SetCursor(txn, chain.CursorTotalTx, total); err != nil {
		return false, err
	}
	if err := txn.Commit(); err != nil {
		return false, err
	}
	res.StoredBlocks, res.Transactions = stored, total
	return true, nil
}
