package sink

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogSink records control channel traffic with a timestamp relative to
// its creation.
type LogSink struct {
	W     io.Writer
	Path  string
	Start time.Time

	lock   sync.Mutex
	closed bool
}

// NewLogSink wraps w.
func NewLogSink(w io.Writer, start time.Time) *LogSink {
	return &LogSink{W: w, Start: start}
}

// OpenLogSink creates sdb_log_<timestamp>.txt in dir.
func OpenLogSink(dir string, now time.Time) (*LogSink, error) {
	path := filepath.Join(dir, TimestampedName("sdb_log", "txt", now))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	l := NewLogSink(f, now)
	l.Path = path
	return l, nil
}

// Record writes a received message.
func (l *LogSink) Record(at time.Time, msg []byte) error {
	elapsed := at.Sub(l.Start)
	if elapsed < 0 {
		elapsed = 0
	}
	line := fmt.Sprintf("[%d.%06d] virtTTY_RX %d bytes: %s\n",
		int64(elapsed/time.Second), int64(elapsed%time.Second/time.Microsecond),
		len(msg), strings.TrimRight(string(msg), "\r\n"))
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.closed {
		return ErrClosed
	}
	_, err := io.WriteString(l.W, line)
	return err
}

// Close closes the underlying writer if it is an io.Closer.
func (l *LogSink) Close() error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.closed {
		return ErrClosed
	}
	l.closed = true
	if c, ok := l.W.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
