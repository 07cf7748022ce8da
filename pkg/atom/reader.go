package atom

import (
	"bufio"
	"errors"
	"io"
	"os"
)

// Reader decodes records from an atom stream.
type Reader struct {
	r      *bufio.Reader
	cr     *countingReader
	offset int64
}

// NewReader checks the header and returns a reader positioned at the
// first record.
func NewReader(r io.Reader) (*Reader, error) {
	cr := &countingReader{r: r}
	br := bufio.NewReaderSize(cr, 1<<20)
	if err := ReadHeader(br); err != nil {
		return nil, err
	}
	return &Reader{r: br, cr: cr, offset: HeaderSize}, nil
}

// Next returns the next record, io.EOF at the end of the stream, or
// ErrTornRecord if the stream ends inside a record. After ErrTornRecord,
// Offset is where the stream should be truncated.
func (r *Reader) Next() (*Record, error) {
	rec, err := Decode(r.r)
	if err != nil {
		return nil, err
	}
	r.offset = r.cr.n - int64(r.r.Buffered())
	return rec, nil
}

// Offset returns the byte offset just past the last complete record.
func (r *Reader) Offset() int64 {
	return r.offset
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Scan summarizes a stream file.
type Scan struct {
	Records    uint64
	Particles  uint64
	Signatures uint64
	// End is the offset just past the last complete record.
	End int64
	// Size is the file size. Size > End means the tail is torn.
	Size int64
}

// Torn reports whether the file ends inside a record.
func (s Scan) Torn() bool {
	return s.Size > s.End
}

// ScanFile reads every record of the file at path, calling fn for each one
// when fn is non-nil. A torn tail is reported in the result, not as an error.
func ScanFile(path string, fn func(*Record) error) (Scan, error) {
	var s Scan
	f, err := os.Open(path)
	if err != nil {
		return s, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return s, err
	}
	s.Size = info.Size()

	r, err := NewReader(f)
	if err != nil {
		return s, err
	}
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, ErrTornRecord) {
			break
		}
		if err != nil {
			s.End = r.Offset()
			return s, err
		}
		s.Records++
		s.Particles += uint64(len(rec.Particles))
		s.Signatures += uint64(len(rec.Signatures))
		if fn != nil {
			if err := fn(rec); err != nil {
				s.End = r.Offset()
				return s, err
			}
		}
	}
	s.End = r.Offset()
	return s, nil
}

// Repair truncates a torn tail. It returns the number of bytes removed.
func Repair(path string) (int64, error) {
	s, err := ScanFile(path, nil)
	if err != nil {
		return 0, err
	}
	if !s.Torn() {
		return 0, nil
	}
	if err := os.Truncate(path, s.End); err != nil {
		return 0, err
	}
	return s.Size - s.End, nil
}
