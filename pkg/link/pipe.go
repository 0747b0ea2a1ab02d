package link

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultPipeDepth is the number of messages a pipe end buffers.
const DefaultPipeDepth = 64

// PipeConn is one end of an in-memory link.
type PipeConn struct {
	recv chan []byte
	peer *PipeConn

	closed    chan struct{}
	closeOnce sync.Once
	deadline  atomic.Int64
}

// Pipe creates a pair of connected in-memory links.
func Pipe() (*PipeConn, *PipeConn) {
	return PipeWithDepth(DefaultPipeDepth)
}

// PipeWithDepth creates a pipe with depth messages buffered in
// each direction.
func PipeWithDepth(depth int) (*PipeConn, *PipeConn) {
	a := &PipeConn{recv: make(chan []byte, depth), closed: make(chan struct{})}
	b := &PipeConn{recv: make(chan []byte, depth), closed: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

// ReadMessage implements Conn.
func (c *PipeConn) ReadMessage() ([]byte, error) {
	var expired <-chan time.Time
	if d := c.deadline.Load(); d != 0 {
		wait := time.Until(time.Unix(0, d))
		if wait <= 0 {
			select {
			case msg := <-c.recv:
				return msg, nil
			default:
				return nil, timeoutError{}
			}
		}
		timer := time.NewTimer(wait)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case msg := <-c.recv:
		return msg, nil
	case <-c.closed:
		return nil, ErrClosed
	case <-c.peer.closed:
		select {
		case msg := <-c.recv:
			return msg, nil
		default:
			return nil, ErrClosed
		}
	case <-expired:
		return nil, timeoutError{}
	}
}

// WriteMessage implements Conn.
func (c *PipeConn) WriteMessage(msg []byte) error {
	buf := make([]byte, len(msg))
	copy(buf, msg)
	select {
	case <-c.closed:
		return ErrClosed
	case <-c.peer.closed:
		return ErrClosed
	default:
	}
	select {
	case c.peer.recv <- buf:
		return nil
	case <-c.closed:
		return ErrClosed
	case <-c.peer.closed:
		return ErrClosed
	}
}

// Write implements io.Writer, one message per call.
func (c *PipeConn) Write(p []byte) (int, error) {
	if err := c.WriteMessage(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// SetReadDeadline implements Conn. A zero time disables the deadline.
func (c *PipeConn) SetReadDeadline(t time.Time) error {
	if t.IsZero() {
		c.deadline.Store(0)
	} else {
		c.deadline.Store(t.UnixNano())
	}
	return nil
}

// Close implements Conn.
func (c *PipeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}
