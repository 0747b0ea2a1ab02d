package link

import (
	"context"
	"errors"
	"os"
	"time"
)

var (
	// ErrClosed indicates the link has been closed.
	ErrClosed = errors.New("link closed")
)

// Conn is a bi-directional message link. Each Write is delivered as one
// message to the peer.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage([]byte) error
	SetReadDeadline(time.Time) error
	Close() error
}

// MessageHandler is called when a message is received.
type MessageHandler interface {
	HandleMessage(context.Context, []byte)
}

// HandleMessageFunc is func type of MessageHandler.
type HandleMessageFunc func(context.Context, []byte)

// HandleMessage implements MessageHandler.
func (f HandleMessageFunc) HandleMessage(ctx context.Context, msg []byte) {
	f(ctx, msg)
}

// IsTimeout determines if err is a read deadline expiry.
func IsTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "link read timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
