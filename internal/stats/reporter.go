// Package stats writes the periodic statistics side files and exposes the
// pipeline metrics.
package stats

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/radixdlt/mtps/internal/log"
	"github.com/radixdlt/mtps/internal/resolver"
	"github.com/radixdlt/mtps/internal/walker"
)

var (
	statsHeader  = []string{"block", "validTx", "bannedTx", "totalInputs", "totalOutputs", "unusedOutputs", "uniqueAddresses", "generatedAddresses"}
	bannedHeader = []string{"block", "badInput", "zeroValue", "badPk", "p2sh", "p2wsh", "p2wpkh", "other"}
)

// Config configures a Reporter.
type Config struct {
	StatsPath  string
	BannedPath string
	// Interval is the number of blocks between rows.
	Interval uint64
	// TotalBlocks and TotalTx are the loaded totals the ETA is computed
	// against.
	TotalBlocks uint64
	TotalTx     uint64
	// QueueLen reports the writer queue length. Optional.
	QueueLen func() int
}

// Reporter appends one row to each side file every Interval blocks and
// logs throughput.
type Reporter struct {
	cfg    Config
	files  []*os.File
	stats  *csv.Writer
	banned *csv.Writer

	lastTime time.Time
	lastTx   uint64
	now      func() time.Time
}

// Open opens both side files for appending. The header is written only
// when a file is new or empty.
func Open(cfg Config) (*Reporter, error) {
	if cfg.Interval == 0 {
		cfg.Interval = 1
	}
	r := &Reporter{cfg: cfg, now: time.Now}
	var err error
	if r.stats, err = r.open(cfg.StatsPath, statsHeader); err != nil {
		r.Close()
		return nil, err
	}
	if r.banned, err = r.open(cfg.BannedPath, bannedHeader); err != nil {
		r.Close()
		return nil, err
	}
	r.lastTime = r.now()
	return r, nil
}

func (r *Reporter) open(path string, header []string) (*csv.Writer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	r.files = append(r.files, f)
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			return nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Start sets the baseline of the throughput figures.
func (r *Reporter) Start(c resolver.Counters) {
	r.lastTime = r.now()
	r.lastTx = c.Transactions()
	updateGauges(c)
}

// Record handles one committed block.
func (r *Reporter) Record(p walker.Progress) error {
	c := p.Counters
	updateGauges(c)
	if c.Blocks%r.cfg.Interval != 0 {
		return nil
	}

	if err := writeRow(r.stats, c.Blocks, c.ValidTx, c.BannedTx, c.Inputs, c.Outputs, c.Unspent(), c.UniqueAddresses, c.GeneratedKeys); err != nil {
		return fmt.Errorf("stats row: %w", err)
	}
	if err := writeRow(r.banned, c.Blocks, c.BannedBadInput, c.BannedZeroValue, c.BadPubKey, c.ScriptP2SH, c.ScriptP2WSH, c.ScriptP2WPKH, c.ScriptOther); err != nil {
		return fmt.Errorf("banned stats row: %w", err)
	}
	r.logProgress(p)
	return nil
}

func (r *Reporter) logProgress(p walker.Progress) {
	now := r.now()
	done := p.Counters.Transactions()
	elapsed := now.Sub(r.lastTime).Seconds()
	var tps float64
	if elapsed > 0 {
		tps = float64(done-r.lastTx) / elapsed
	}

	ev := log.Stats.Info().
		Uint64("block", p.Counters.Blocks).
		Uint64("blocks_total", r.cfg.TotalBlocks).
		Uint64("tx", done).
		Uint64("tx_total", r.cfg.TotalTx).
		Str("tps", strconv.FormatFloat(tps, 'f', 2, 64)).
		Str("block_time", p.BlockTime.UTC().Format(time.RFC3339)).
		Int64("offset", p.Offset)
	if r.cfg.TotalTx > 0 {
		ev = ev.Str("done", fmt.Sprintf("%.2f%%", float64(done)*100/float64(r.cfg.TotalTx)))
	}
	if eta, ok := ETA(done, r.cfg.TotalTx, tps); ok {
		ev = ev.Str("left", FormatETA(eta))
	}
	if r.cfg.QueueLen != nil {
		ev = ev.Int("queue", r.cfg.QueueLen())
	}
	ev.Msg("Progress")

	r.lastTime = now
	r.lastTx = done
}

// maxETA caps estimates made at a near-zero rate.
const maxETA = 100 * 365 * 24 * time.Hour

// ETA returns the time left to process total transactions at tps, at most
// maxETA.
func ETA(done, total uint64, tps float64) (time.Duration, bool) {
	if tps <= 0 || total <= done {
		return 0, false
	}
	secs := float64(total-done) / tps
	if secs >= maxETA.Seconds() {
		return maxETA, true
	}
	return time.Duration(secs * float64(time.Second)), true
}

// FormatETA renders d as h:mm:ss.
func FormatETA(d time.Duration) string {
	secs := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", secs/3600, secs/60%60, secs%60)
}

func writeRow(w *csv.Writer, values ...uint64) error {
	row := make([]string, len(values))
	for i, v := range values {
		row[i] = strconv.FormatUint(v, 10)
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// Close closes both side files.
func (r *Reporter) Close() error {
	var first error
	for _, f := range r.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	r.files = nil
	return first
}
