package link

import (
	"os"
	"time"
)

// DefaultMaxMessage is the largest message read at once from a stream.
const DefaultMaxMessage = 512

// FileConn adapts a character device to Conn. Each read returns what
// the device delivered in one chunk, which for rpmsg ttys is exactly
// one message.
type FileConn struct {
	File       *os.File
	MaxMessage int
}

// NewFileConn wraps f.
func NewFileConn(f *os.File) *FileConn {
	return &FileConn{File: f, MaxMessage: DefaultMaxMessage}
}

// ReadMessage implements Conn.
func (c *FileConn) ReadMessage() ([]byte, error) {
	size := c.MaxMessage
	if size <= 0 {
		size = DefaultMaxMessage
	}
	buf := make([]byte, size)
	n, err := c.File.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// WriteMessage implements Conn.
func (c *FileConn) WriteMessage(msg []byte) error {
	_, err := c.File.Write(msg)
	return err
}

// SetReadDeadline implements Conn.
func (c *FileConn) SetReadDeadline(t time.Time) error {
	return c.File.SetReadDeadline(t)
}

// Close implements Conn.
func (c *FileConn) Close() error {
	return c.File.Close()
}
