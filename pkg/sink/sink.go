// Package sink persists drained buffer data.
package sink

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ChunkSize is the size of a single write.
const ChunkSize = 4096

var (
	// ErrClosed indicates the sink is closed.
	ErrClosed = errors.New("sink closed")
)

// Sink is an append-only destination for buffer data.
type Sink interface {
	// Persist appends n bytes read from src and returns how many were
	// written. A short count is reported, never retried.
	Persist(n int, src io.Reader) (int, error)
	Close() error
}

// WriterSink persists into an io.Writer in chunks.
type WriterSink struct {
	W io.Writer

	lock   sync.Mutex
	buf    []byte
	closed bool
}

// NewWriterSink wraps w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{W: w}
}

// Persist implements Sink.
func (s *WriterSink) Persist(n int, src io.Reader) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if s.buf == nil {
		s.buf = make([]byte, ChunkSize)
	}
	written := 0
	for written < n {
		size := n - written
		if size > len(s.buf) {
			size = len(s.buf)
		}
		got, err := io.ReadFull(src, s.buf[:size])
		if got > 0 {
			w, werr := s.W.Write(s.buf[:got])
			written += w
			if werr != nil {
				return written, werr
			}
			if w < got {
				return written, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				err = io.EOF
			}
			return written, err
		}
	}
	return written, nil
}

// Close implements Sink. The wrapped writer is closed if it is an
// io.Closer.
func (s *WriterSink) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	if c, ok := s.W.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// TimestampedName builds prefix_YYYYMMDD-HHMMSS.ext.
func TimestampedName(prefix, ext string, t time.Time) string {
	return fmt.Sprintf("%s_%s.%s", prefix, t.Format("20060102-150405"), ext)
}

// FileSink persists into a raw data file.
type FileSink struct {
	*WriterSink
	Path string
}

// NewFileSink creates sdb_demo_<timestamp>.dat in dir.
func NewFileSink(dir string, now time.Time) (*FileSink, error) {
	path := filepath.Join(dir, TimestampedName("sdb_demo", "dat", now))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	return &FileSink{WriterSink: NewWriterSink(f), Path: path}, nil
}

// Close flushes the file to disk and closes it.
func (s *FileSink) Close() error {
	if f, ok := s.W.(*os.File); ok {
		f.Sync()
	}
	return s.WriterSink.Close()
}
