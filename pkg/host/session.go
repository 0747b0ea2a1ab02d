// Package host implements the host side of the buffer exchange: a
// session maps the shared buffers, requests transfers on the control
// channel and drains each announced buffer into a sink.
package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/sdb.go/pkg/bridge"
	fx "github.com/robotalks/sdb.go/pkg/framework"
	"github.com/robotalks/sdb.go/pkg/link"
	"github.com/robotalks/sdb.go/pkg/remoteproc"
	"github.com/robotalks/sdb.go/pkg/sink"
	"github.com/robotalks/sdb.go/pkg/telemetry"
	"github.com/robotalks/sdb.go/pkg/wire"
)

// Mode is the high level mode of a session.
type Mode int32

// Session modes.
const (
	ModeIdle Mode = iota
	ModeSampling
	ModeStopped
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeSampling:
		return "sampling"
	case ModeStopped:
		return "stopped"
	}
	return fmt.Sprintf("mode(%d)", int32(m))
}

// coprocessor states named in a start rejection which won't be
// followed by an announcement.
const (
	coproInit  = "INIT"
	coproAbort = "ABORT"
)

var (
	// ErrNotOpen indicates Run before Open.
	ErrNotOpen = errors.New("session not open")
	// ErrShutdown indicates the session was shut down.
	ErrShutdown = errors.New("session shut down")
	// ErrShutdownTimeout indicates workers didn't stop within the grace
	// period.
	ErrShutdownTimeout = errors.New("workers didn't stop in time")
)

// Session is a host sampling session.
type Session struct {
	Config  *Config
	Bridge  bridge.Bridge
	Events  bridge.EventSet
	Control link.Conn
	Sink    sink.Sink

	// Optional collaborators.
	Log       *sink.LogSink
	Firmware  remoteproc.Firmware
	Telemetry *telemetry.Emitter

	Consumer *Consumer

	mode     atomic.Int32
	mappings []*onceMapping
	drained  chan struct{}
	rearm    chan struct{}
	retry    chan struct{}

	lock     sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	shutdown bool
}

// NewSession creates a Session.
func NewSession(conf *Config, b bridge.Bridge, events bridge.EventSet, control link.Conn, s sink.Sink) *Session {
	return &Session{
		Config:  conf,
		Bridge:  b,
		Events:  events,
		Control: control,
		Sink:    s,
		drained: make(chan struct{}, 1),
		rearm:   make(chan struct{}, 1),
		retry:   make(chan struct{}, 1),
	}
}

// Mode returns the current mode.
func (s *Session) Mode() Mode {
	return Mode(s.mode.Load())
}

func (s *Session) setMode(m Mode) {
	if prev := Mode(s.mode.Swap(int32(m))); prev != m {
		glog.V(2).Infof("session mode %s -> %s", prev, m)
	}
}

func (s *Session) sampling() bool {
	return s.Mode() == ModeSampling
}

// Stats returns the session counters.
func (s *Session) Stats() Stats {
	if s.Consumer == nil {
		return Stats{}
	}
	return s.Consumer.Stats()
}

// Open performs the handshake and maps and registers every buffer.
// On failure, Shutdown releases what was acquired.
func (s *Session) Open() error {
	if err := s.Control.WriteMessage(wire.OpReset.Bytes()); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	mappings := make([]bridge.Mapping, 0, s.Config.Buffers)
	for i := 0; i < s.Config.Buffers; i++ {
		m, err := s.Bridge.Map(i, s.Config.BufferSize)
		if err != nil {
			return fmt.Errorf("map buffer %d: %w", i, err)
		}
		om := &onceMapping{Mapping: m}
		s.mappings = append(s.mappings, om)
		mappings = append(mappings, om)
		if err := s.Bridge.RegisterEvent(i, s.Events.Event(i)); err != nil {
			return fmt.Errorf("register buffer %d event: %w", i, err)
		}
		glog.V(2).Infof("buffer %d mapped, %d bytes", i, len(m.Bytes()))
	}
	c, err := NewConsumer(s.Bridge, s.Events, mappings, s.Sink)
	if err != nil {
		return err
	}
	c.Timeout, c.Backoff = s.Config.WaitTimeout, s.Config.PollInterval
	c.Telemetry = s.Telemetry
	c.OnDrained = func(int) { notify(s.drained) }
	c.OnTimeout = func() { notify(s.rearm) }
	s.Consumer = c
	glog.Infof("session open: %d buffers of %d bytes", s.Config.Buffers, s.Config.BufferSize)
	s.Telemetry.Emit(telemetry.KindSessionStart, map[string]interface{}{
		"buffers":     s.Config.Buffers,
		"buffer_size": s.Config.BufferSize,
	})
	return nil
}

// Run runs the control channel reader, the buffer consumer and the
// mode switch until ctx is done, a worker fails or Shutdown.
func (s *Session) Run(ctx context.Context) error {
	if s.Consumer == nil {
		return ErrNotOpen
	}
	s.lock.Lock()
	if s.shutdown {
		s.lock.Unlock()
		return ErrShutdown
	}
	ctx, s.cancel = context.WithCancel(ctx)
	done := make(chan struct{})
	s.done = done
	s.lock.Unlock()
	defer close(done)

	reader := link.NewReader("host-control", s.Control, &ControlHandler{Log: s.Log, OnReply: s.handleReply})
	reader.PollInterval = s.Config.PollInterval
	err := fx.NewRunnerWith(ctx).Go(
		fx.NamedRun("host-control", reader),
		fx.NamedRun("host-consumer", fx.RunFunc(func(ctx context.Context) error {
			return s.Consumer.Run(ctx, s.sampling)
		})),
		fx.NamedRun("host-mode", fx.RunFunc(s.switchMode)),
	).Wait()
	s.setMode(ModeStopped)
	return err
}

// switchMode requests a transfer whenever the session is idle. The
// session returns to idle once a buffer is drained, so the coprocessor
// never runs more than one transfer ahead of the consumer.
func (s *Session) switchMode(ctx context.Context) error {
	for {
		if s.Mode() == ModeIdle {
			if err := s.Control.WriteMessage(wire.OpStart.Bytes()); err != nil {
				return fmt.Errorf("request start: %w", err)
			}
			s.setMode(ModeSampling)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.drained:
			s.setMode(ModeIdle)
		case <-s.rearm:
			s.setMode(ModeIdle)
		case <-s.retry:
			if err := sleep(ctx, s.Config.RetryInterval); err != nil {
				return err
			}
			s.setMode(ModeIdle)
		}
	}
}

func (s *Session) handleReply(r wire.Reply) {
	if state, ok := r.RejectedState(); ok {
		// a busy coprocessor will announce, only retry when it is
		// still waiting for registrations or finishing an abort
		if state == coproInit || state == coproAbort {
			notify(s.retry)
		}
		return
	}
	if r.IsTransferAbort() {
		notify(s.rearm)
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
