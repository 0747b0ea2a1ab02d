package link

import (
	"context"
	"time"

	"github.com/golang/glog"
)

// DefaultPollInterval is the read deadline applied by Reader.
const DefaultPollInterval = 10 * time.Millisecond

// Reader drains a Conn and dispatches messages to Handler. Reads never
// block longer than PollInterval so cancellation is observed promptly.
type Reader struct {
	Conn         Conn
	Handler      MessageHandler
	PollInterval time.Duration
	Name         string
}

// NewReader creates a Reader.
func NewReader(name string, conn Conn, handler MessageHandler) *Reader {
	return &Reader{Conn: conn, Handler: handler, PollInterval: DefaultPollInterval, Name: name}
}

// Run implements Runnable.
func (r *Reader) Run(ctx context.Context) error {
	interval := r.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := r.Conn.SetReadDeadline(time.Now().Add(interval)); err != nil {
			return err
		}
		msg, err := r.Conn.ReadMessage()
		if err != nil {
			if IsTimeout(err) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if len(msg) == 0 {
			continue
		}
		if glog.V(4) {
			glog.Infof("%s recv %q", r.Name, msg)
		}
		if h := r.Handler; h != nil {
			h.HandleMessage(ctx, msg)
		}
	}
}

