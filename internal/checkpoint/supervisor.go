// Package checkpoint runs periodic store maintenance alongside the walk.
package checkpoint

import (
	"context"
	"time"

	"github.com/radixdlt/mtps/internal/log"
)

// Store is the maintenance surface of the chain store.
type Store interface {
	CleanLog() (bool, error)
	Checkpoint() error
	EvictMemory()
}

// Config paces the supervisor.
type Config struct {
	// Interval is the length of one cycle.
	Interval time.Duration
	// Budget bounds the time spent cleaning in one cycle.
	Budget time.Duration
	// Pause separates two cleanings in one cycle.
	Pause time.Duration
	// Stop is polled between cycles. Optional.
	Stop func() bool
}

// Supervisor cleans the store log within a budget, then checkpoints and
// releases memory, once per interval. Maintenance errors are logged and
// never stop the supervisor.
type Supervisor struct {
	store Store
	cfg   Config
}

// New creates a supervisor.
func New(store Store, cfg Config) *Supervisor {
	return &Supervisor{store: store, cfg: cfg}
}

// Run loops until ctx is cancelled or Stop reports true.
func (s *Supervisor) Run(ctx context.Context) {
	log.Checkpoint.Info().
		Dur("interval", s.cfg.Interval).
		Dur("budget", s.cfg.Budget).
		Msg("Checkpoint supervisor started")

	for {
		start := time.Now()
		s.cycle(ctx)
		prometheusCheckpointCycles.Inc()
		prometheusCheckpointDuration.Observe(time.Since(start).Seconds())

		if s.stopped(ctx) {
			break
		}
		if !sleep(ctx, time.Until(start.Add(s.cfg.Interval))) {
			break
		}
		if s.stopped(ctx) {
			break
		}
	}
	log.Checkpoint.Info().Msg("Checkpoint supervisor stopped")
}

func (s *Supervisor) stopped(ctx context.Context) bool {
	return ctx.Err() != nil || (s.cfg.Stop != nil && s.cfg.Stop())
}

// cycle runs one clean, checkpoint and evict round.
func (s *Supervisor) cycle(ctx context.Context) {
	deadline := time.Now().Add(s.cfg.Budget)
	cleaned := 0
	for time.Now().Before(deadline) {
		reclaimed, err := s.store.CleanLog()
		if err != nil {
			log.Checkpoint.Warn().Err(err).Msg("Log cleaning failed")
			break
		}
		if !reclaimed {
			break
		}
		cleaned++
		prometheusCheckpointCleanings.Inc()
		if !sleep(ctx, s.cfg.Pause) {
			return
		}
	}

	if err := s.store.Checkpoint(); err != nil {
		log.Checkpoint.Warn().Err(err).Msg("Checkpoint failed")
	}
	s.store.EvictMemory()
	log.Checkpoint.Debug().Int("cleanings", cleaned).Msg("Checkpoint cycle done")
}

// sleep waits for d or until ctx is done. It reports false if ctx ended
// the wait.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
