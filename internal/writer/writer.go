// Package writer appends built atom records to the output stream from a
// single goroutine.
package writer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/radixdlt/mtps/internal/builder"
	"github.com/radixdlt/mtps/internal/log"
	"github.com/radixdlt/mtps/pkg/atom"
)

// ErrClosed is returned by Enqueue and Flush after Close.
var ErrClosed = errors.New("writer closed")

const bufferSize = 4 << 20

type request struct {
	item  *builder.Item
	flush chan flushResult
}

type flushResult struct {
	offset int64
	err    error
}

// Writer is an append-only writer of the atom stream. Items are encoded
// in the order they are enqueued.
type Writer struct {
	path string
	file *os.File
	bw   *bufio.Writer

	queue chan request
	done  chan struct{}

	mu     sync.RWMutex
	closed bool

	// offset is the durable end of the stream after the last flush.
	offset atomic.Int64
	// pending is the write position, touched only by the loop.
	pending int64
	err     error
}

// Open opens the stream at path and positions it at committed, the offset
// recorded with the last committed block. Bytes past committed belong to a
// block that was never committed and are truncated. A committed offset
// below the header size starts a new stream.
func Open(path string, committed int64, queueSize int) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open atoms: %w", err)
	}
	offset, err := position(f, committed)
	if err != nil {
		f.Close()
		return nil, err
	}
	if queueSize < 1 {
		queueSize = 1
	}

	w := &Writer{
		path:    path,
		file:    f,
		bw:      bufio.NewWriterSize(f, bufferSize),
		queue:   make(chan request, queueSize),
		done:    make(chan struct{}),
		pending: offset,
	}
	w.offset.Store(offset)
	go w.loop()

	log.Writer.Info().Str("path", path).Int64("offset", offset).Msg("Atom stream opened")
	return w, nil
}

// position truncates f to committed and seeks to its end, writing the
// stream header when the stream is new.
func position(f *os.File, committed int64) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	size := info.Size()

	if committed < atom.HeaderSize {
		if err := f.Truncate(0); err != nil {
			return 0, fmt.Errorf("truncate atoms: %w", err)
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return 0, err
		}
		if err := atom.WriteHeader(f); err != nil {
			return 0, fmt.Errorf("write header: %w", err)
		}
		if err := f.Sync(); err != nil {
			return 0, err
		}
		return atom.HeaderSize, nil
	}

	if size < committed {
		return 0, fmt.Errorf("atoms file is %d bytes, committed offset is %d", size, committed)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	if err := atom.ReadHeader(f); err != nil {
		return 0, err
	}
	if size > committed {
		log.Writer.Warn().Int64("offset", committed).Int64("dropped", size-committed).
			Msg("Truncating uncommitted tail of the atom stream")
		if err := f.Truncate(committed); err != nil {
			return 0, fmt.Errorf("truncate atoms: %w", err)
		}
		if err := f.Sync(); err != nil {
			return 0, err
		}
	}
	if _, err := f.Seek(committed, io.SeekStart); err != nil {
		return 0, err
	}
	return committed, nil
}

// Enqueue queues a built item. It blocks while the queue is full.
func (w *Writer) Enqueue(it *builder.Item) error {
	if it.Record() == nil {
		return fmt.Errorf("enqueue %s: item not built", it.TxID.Reversed())
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrClosed
	}
	w.queue <- request{item: it}
	return nil
}

// Flush waits until every item enqueued before the call is on disk and
// returns the resulting end offset of the stream.
func (w *Writer) Flush(ctx context.Context) (int64, error) {
	reply := make(chan flushResult, 1)
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return 0, ErrClosed
	}
	select {
	case w.queue <- request{flush: reply}:
	case <-ctx.Done():
		w.mu.RUnlock()
		return 0, ctx.Err()
	}
	w.mu.RUnlock()

	select {
	case res := <-reply:
		return res.offset, res.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Close stops accepting items and waits up to timeout for the queue to
// drain. It reports whether the queue was drained. Items still queued at
// the timeout are lost; they belong to a block that is not committed.
func (w *Writer) Close(timeout time.Duration) (bool, error) {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return true, w.err
	case <-time.After(timeout):
		log.Writer.Warn().Int("queued", len(w.queue)).Msg("Atom queue not drained before timeout")
		return false, nil
	}
}

// QueueLen returns the number of queued requests.
func (w *Writer) QueueLen() int {
	return len(w.queue)
}

// Offset returns the end offset of the stream as of the last flush.
func (w *Writer) Offset() int64 {
	return w.offset.Load()
}

// Path returns the stream path.
func (w *Writer) Path() string {
	return w.path
}

func (w *Writer) loop() {
	defer close(w.done)
	defer func() {
		if err := w.file.Close(); err != nil && w.err == nil {
			w.err = err
		}
	}()

	for req := range w.queue {
		prometheusWriterQueue.Set(float64(len(w.queue)))
		if req.flush != nil {
			req.flush <- w.sync()
			continue
		}
		w.write(req.item)
	}
	if res := w.sync(); res.err != nil {
		log.Writer.Error().Err(res.err).Msg("Final flush failed")
	}
}

func (w *Writer) write(it *builder.Item) {
	if w.err != nil {
		return
	}
	data, err := it.Record().MarshalBinary()
	if err != nil {
		w.err = fmt.Errorf("encode %s: %w", it.TxID.Reversed(), err)
		return
	}
	if _, err := w.bw.Write(data); err != nil {
		w.err = fmt.Errorf("write atoms: %w", err)
		return
	}
	w.pending += int64(len(data))
	prometheusWriterRecords.Inc()
	prometheusWriterBytes.Add(float64(len(data)))
}

func (w *Writer) sync() flushResult {
	if w.err != nil {
		return flushResult{err: w.err}
	}
	start := time.Now()
	if err := w.bw.Flush(); err != nil {
		w.err = fmt.Errorf("flush atoms: %w", err)
		return flushResult{err: w.err}
	}
	if err := w.file.Sync(); err != nil {
		w.err = fmt.Errorf("sync atoms: %w", err)
		return flushResult{err: w.err}
	}
	prometheusWriterSync.Observe(time.Since(start).Seconds())
	w.offset.Store(w.pending)
	return flushResult{offset: w.pending}
}
