package sink

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type chunkRecorder struct {
	bytes.Buffer
	writes []int
	limit  int
}

func (r *chunkRecorder) Write(p []byte) (int, error) {
	r.writes = append(r.writes, len(p))
	if r.limit > 0 && r.Len()+len(p) > r.limit {
		n := r.limit - r.Len()
		r.Buffer.Write(p[:n])
		return n, errors.New("disk full")
	}
	return r.Buffer.Write(p)
}

func TestWriterSinkChunks(t *testing.T) {
	rec := &chunkRecorder{}
	s := NewWriterSink(rec)
	data := bytes.Repeat([]byte{7}, ChunkSize*2+10)
	n, err := s.Persist(len(data), bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, []int{ChunkSize, ChunkSize, 10}, rec.writes)
	require.Equal(t, data, rec.Bytes())
}

func TestWriterSinkShortWrite(t *testing.T) {
	rec := &chunkRecorder{limit: 5000}
	s := NewWriterSink(rec)
	n, err := s.Persist(8192, bytes.NewReader(make([]byte, 8192)))
	require.Error(t, err)
	require.Equal(t, 5000, n)

	s = NewWriterSink(&bytes.Buffer{})
	n, err = s.Persist(100, bytes.NewReader(make([]byte, 60)))
	require.Equal(t, io.EOF, err)
	require.Equal(t, 60, n)

	require.NoError(t, s.Close())
	require.Equal(t, ErrClosed, s.Close())
	_, err = s.Persist(1, bytes.NewReader([]byte{1}))
	require.Equal(t, ErrClosed, err)
}

func TestFileSink(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 9, 7, 5, 1, 0, time.Local)
	s, err := NewFileSink(dir, now)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "sdb_demo_20240309-070501.dat"), s.Path)
	n, err := s.Persist(3, bytes.NewReader([]byte("abc")))
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.NoError(t, s.Close())
	content, err := os.ReadFile(s.Path)
	require.NoError(t, err)
	require.Equal(t, "abc", string(content))
}

func TestLogSink(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2024, 3, 9, 7, 5, 1, 0, time.Local)
	l, err := OpenLogSink(dir, start)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "sdb_log_20240309-070501.txt"), l.Path)
	require.NoError(t, l.Record(start.Add(1500*time.Millisecond), []byte("START command\n")))
	require.NoError(t, l.Close())
	require.Equal(t, ErrClosed, l.Record(start, nil))
	content, err := os.ReadFile(l.Path)
	require.NoError(t, err)
	require.Equal(t, "[1.500000] virtTTY_RX 14 bytes: START command\n", string(content))
}
