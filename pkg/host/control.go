package host

import (
	"bytes"
	"context"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/sdb.go/pkg/sink"
	"github.com/robotalks/sdb.go/pkg/wire"
)

// ControlHandler handles replies received on the control channel.
type ControlHandler struct {
	// Log records every reply, optional.
	Log *sink.LogSink
	// OnReply is invoked for every non-empty reply, optional.
	OnReply func(wire.Reply)
	// Now is the clock of log records.
	Now func() time.Time
}

// HandleMessage implements link.MessageHandler.
func (h *ControlHandler) HandleMessage(ctx context.Context, msg []byte) {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	if h.Log != nil {
		if err := h.Log.Record(now(), msg); err != nil {
			glog.Errorf("control log: %v", err)
		}
	}
	// a tty read may carry several replies
	for _, line := range bytes.Split(msg, []byte{'\n'}) {
		reply := wire.ParseReply(line)
		if reply == "" {
			continue
		}
		glog.Infof("copro: %s", reply)
		if fn := h.OnReply; fn != nil {
			fn(reply)
		}
	}
}
