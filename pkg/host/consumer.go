package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/sdb.go/pkg/bridge"
	"github.com/robotalks/sdb.go/pkg/pool"
	"github.com/robotalks/sdb.go/pkg/sink"
	"github.com/robotalks/sdb.go/pkg/telemetry"
)

var (
	// ErrMappings indicates the mappings don't match the event set.
	ErrMappings = errors.New("one mapping per event required")
)

// Consumer drains filled buffers in round-robin order into a sink.
type Consumer struct {
	Bridge    bridge.Bridge
	Events    bridge.EventSet
	Mappings  []bridge.Mapping
	Sink      sink.Sink
	Timeout   time.Duration
	Backoff   time.Duration
	Telemetry *telemetry.Emitter

	// OnDrained is invoked after buffer index was handed back.
	OnDrained func(index int)
	// OnTimeout is invoked when no buffer was ready within Timeout.
	OnTimeout func()

	pool  *pool.Pool
	ring  pool.Ring
	stats counters
}

// NewConsumer creates a Consumer over mapped buffers.
func NewConsumer(b bridge.Bridge, events bridge.EventSet, mappings []bridge.Mapping, s sink.Sink) (*Consumer, error) {
	if len(mappings) != events.Len() {
		return nil, ErrMappings
	}
	p, err := pool.New(len(mappings))
	if err != nil {
		return nil, err
	}
	for i, m := range mappings {
		if err := p.Register(i, 0, uint32(len(m.Bytes()))); err != nil {
			return nil, err
		}
	}
	return &Consumer{
		Bridge:   b,
		Events:   events,
		Mappings: mappings,
		Sink:     s,
		Timeout:  defaultConfig.WaitTimeout,
		Backoff:  defaultConfig.PollInterval,
		pool:     p,
		ring:     pool.NewRing(len(mappings)),
	}, nil
}

// Expected returns the index of the next buffer to drain.
func (c *Consumer) Expected() int {
	return c.ring.Current()
}

// Stats returns a snapshot of the counters.
func (c *Consumer) Stats() Stats {
	return c.stats.snapshot()
}

// Run drains buffers while active reports true, until ctx is done or
// the bridge fails.
func (c *Consumer) Run(ctx context.Context, active func() bool) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if active != nil && !active() {
			if err := sleep(ctx, c.Backoff); err != nil {
				return err
			}
			continue
		}
		if err := c.Drain(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}

// Drain performs a single wait and drains the expected buffer if it
// is signaled. Timeouts and out of order signals are not errors.
func (c *Consumer) Drain(ctx context.Context) error {
	mask, err := c.Events.Wait(ctx, c.Timeout)
	if err != nil {
		return err
	}
	if mask == 0 {
		c.stats.timeouts.Add(1)
		glog.Warningf("no buffer ready within %s", c.Timeout)
		c.Telemetry.Emit(telemetry.KindTimeout, map[string]interface{}{"timeout": c.Timeout})
		if fn := c.OnTimeout; fn != nil {
			fn()
		}
		return nil
	}

	index := c.ring.Current()
	if !mask.Has(index) {
		c.stats.wrongIndex.Add(1)
		glog.Errorf("wrong buffer received index:%s awaited index:%d", mask, index)
		c.Telemetry.Emit(telemetry.KindWrongIndex, map[string]interface{}{
			"signaled": mask.String(),
			"expected": index,
		})
		return sleep(ctx, c.Backoff)
	}
	count, err := c.Events.Clear(index)
	if err != nil {
		return fmt.Errorf("clear buffer %d event: %w", index, err)
	}
	if count > 1 {
		// the coprocessor refilled the buffer before it was drained
		lost := count - 1
		c.stats.overruns.Add(lost)
		glog.Errorf("buffer %d: %d announcements overwritten before drain", index, lost)
		c.Telemetry.Emit(telemetry.KindOverrun, map[string]interface{}{
			"index": index,
			"lost":  lost,
		})
	}
	size, err := c.Bridge.QueryReadySize(index)
	if err != nil {
		return fmt.Errorf("query buffer %d size: %w", index, err)
	}
	return c.drain(index, size)
}

func (c *Consumer) drain(index int, size uint32) error {
	data := c.Mappings[index].Bytes()
	short := false
	if uint64(size) > uint64(len(data)) {
		glog.Errorf("buffer %d: ready size %d exceeds mapping %d", index, size, len(data))
		size, short = uint32(len(data)), true
	}
	if err := c.pool.MarkAnnounced(index, size); err != nil {
		return err
	}
	if err := c.pool.BeginDrain(index); err != nil {
		return err
	}

	var persisted int
	if size == 0 {
		c.stats.empty.Add(1)
		glog.Warningf("buffer %d is empty", index)
		c.Telemetry.Emit(telemetry.KindBufferEmpty, map[string]interface{}{"index": index})
	} else {
		n, err := c.Sink.Persist(int(size), bytes.NewReader(data[:size]))
		if err != nil {
			glog.Errorf("buffer %d: persist: %v", index, err)
		}
		persisted = n
		c.stats.received.Add(uint64(size))
		c.stats.persisted.Add(uint64(n))
		if n != int(size) {
			short = true
		}
	}
	if short {
		c.stats.shortWrite.Store(true)
		glog.Warningf("buffer %d: %d of %d bytes persisted", index, persisted, size)
		c.Telemetry.Emit(telemetry.KindShortWrite, map[string]interface{}{
			"index":     index,
			"size":      size,
			"persisted": persisted,
		})
	}

	if err := c.pool.Release(index); err != nil {
		return err
	}
	c.stats.buffers.Add(1)
	c.ring.Advance()
	glog.V(2).Infof("buffer %d drained: %d bytes", index, persisted)
	c.Telemetry.Emit(telemetry.KindBufferDrained, map[string]interface{}{
		"index":     index,
		"size":      size,
		"persisted": persisted,
	})
	if fn := c.OnDrained; fn != nil {
		fn(index)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
