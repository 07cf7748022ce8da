package resolver

import (
	"context"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/radixdlt/mtps/internal/keys"
	"github.com/radixdlt/mtps/pkg/crypto"
	"golang.org/x/sync/errgroup"
)

// KeyCache holds the deterministic owning keys of one block, keyed by
// address hash.
type KeyCache struct {
	mu   sync.RWMutex
	keys map[string]keys.OwningKey
}

// NewKeyCache returns an empty cache.
func NewKeyCache() *KeyCache {
	return &KeyCache{keys: make(map[string]keys.OwningKey)}
}

// Get returns the cached key of hash.
func (c *KeyCache) Get(hash []byte) (keys.OwningKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	k, ok := c.keys[string(hash)]
	return k, ok
}

func (c *KeyCache) put(hash []byte, k keys.OwningKey) {
	c.mu.Lock()
	c.keys[string(hash)] = k
	c.mu.Unlock()
}

// Len returns the number of cached keys.
func (c *KeyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}

// DeriveKeys derives the deterministic keys of every non-zero output of
// blk in parallel. It does not touch the store, so a key may be derived for
// an output whose transaction later turns out to be banned.
func DeriveKeys(ctx context.Context, kh crypto.KeyHandler, params *chaincfg.Params, blk *wire.MsgBlock, workers int) (*KeyCache, error) {
	start := time.Now()
	defer func() { prometheusResolverDerive.Observe(time.Since(start).Seconds()) }()

	cache := NewKeyCache()
	hashes := make(map[string]struct{})
	for _, tx := range blk.Transactions {
		for _, out := range tx.TxOut {
			if out.Value <= 0 {
				continue
			}
			if _, hash := keys.Classify(out.PkScript, params); hash != nil {
				hashes[string(hash)] = struct{}{}
			}
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for h := range hashes {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			k, err := keys.Deterministic(kh, []byte(h))
			if err != nil {
				return err
			}
			cache.put([]byte(h), k)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cache, nil
}
