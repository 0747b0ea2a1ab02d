package host

import (
	"fmt"
	"sync/atomic"
)

// Stats are the counters of a session.
type Stats struct {
	BytesReceived  uint64
	BytesPersisted uint64
	Buffers        uint64
	Empty          uint64
	Timeouts       uint64
	WrongIndex     uint64
	// Overruns counts announcements overwritten before being drained.
	Overruns uint64
	// ShortWrite is sticky once fewer bytes were persisted than
	// announced.
	ShortWrite bool
}

func (s Stats) String() string {
	return fmt.Sprintf("buffers=%d received=%d persisted=%d empty=%d timeouts=%d wrong-index=%d overruns=%d short-write=%v",
		s.Buffers, s.BytesReceived, s.BytesPersisted, s.Empty, s.Timeouts, s.WrongIndex, s.Overruns, s.ShortWrite)
}

// Fields converts stats to telemetry fields.
func (s Stats) Fields() map[string]interface{} {
	return map[string]interface{}{
		"buffers":         s.Buffers,
		"bytes_received":  s.BytesReceived,
		"bytes_persisted": s.BytesPersisted,
		"empty":           s.Empty,
		"timeouts":        s.Timeouts,
		"wrong_index":     s.WrongIndex,
		"overruns":        s.Overruns,
		"short_write":     s.ShortWrite,
	}
}

// counters are written by the consumer only and read by anyone.
type counters struct {
	received   atomic.Uint64
	persisted  atomic.Uint64
	buffers    atomic.Uint64
	empty      atomic.Uint64
	timeouts   atomic.Uint64
	wrongIndex atomic.Uint64
	overruns   atomic.Uint64
	shortWrite atomic.Bool
}

func (c *counters) snapshot() Stats {
	return Stats{
		BytesReceived:  c.received.Load(),
		BytesPersisted: c.persisted.Load(),
		Buffers:        c.buffers.Load(),
		Empty:          c.empty.Load(),
		Timeouts:       c.timeouts.Load(),
		WrongIndex:     c.wrongIndex.Load(),
		Overruns:       c.overruns.Load(),
		ShortWrite:     c.shortWrite.Load(),
	}
}
