package host

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/sdb.go/pkg/bridge"
	fx "github.com/robotalks/sdb.go/pkg/framework"
	"github.com/robotalks/sdb.go/pkg/remoteproc"
	"github.com/robotalks/sdb.go/pkg/telemetry"
	"github.com/robotalks/sdb.go/pkg/wire"
)

// onceMapping releases the underlying mapping at most once.
type onceMapping struct {
	bridge.Mapping
	released atomic.Bool
}

func (m *onceMapping) Unmap() error {
	if !m.released.CompareAndSwap(false, true) {
		return nil
	}
	return m.Mapping.Unmap()
}

// Shutdown stops the session in order: workers are canceled and waited
// for, every buffer is unmapped, the coprocessor is asked to exit, the
// channels and sinks are closed and the firmware is stopped. Every step
// is attempted even if an earlier one failed. Only the first call has
// any effect.
func (s *Session) Shutdown() error {
	s.lock.Lock()
	if s.shutdown {
		s.lock.Unlock()
		return nil
	}
	s.shutdown = true
	cancel, done := s.cancel, s.done
	s.lock.Unlock()

	glog.Info("session shutdown")
	var errs fx.AggregatedError
	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-time.After(s.Config.ShutdownGrace):
			glog.Errorf("workers still running after %s", s.Config.ShutdownGrace)
			errs.Add(ErrShutdownTimeout)
		}
	}

	for _, m := range s.mappings {
		errs.Add(m.Unmap())
	}

	if s.Control != nil {
		if err := s.Control.WriteMessage(wire.OpExit.Bytes()); err != nil {
			glog.Warningf("exit request: %v", err)
		}
	}
	for _, c := range []io.Closer{s.Events, s.Bridge, s.Control, s.Sink} {
		if c != nil {
			errs.Add(c.Close())
		}
	}
	if s.Log != nil {
		errs.Add(s.Log.Close())
	}

	if s.Firmware != nil {
		errs.Add(remoteproc.StopIfRunning(s.Firmware))
	}

	stats := s.Stats()
	glog.Infof("session stats: %s", stats)
	s.Telemetry.Emit(telemetry.KindShutdown, stats.Fields())
	return errs.Aggregate()
}
