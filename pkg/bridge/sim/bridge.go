// Package sim provides an in-process event bridge which plays the role
// of the kernel driver: it carves buffers out of a simulated memory
// region, registers them with the coprocessor and turns announcements
// into buffer events.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/sdb.go/pkg/bridge"
	"github.com/robotalks/sdb.go/pkg/link"
	"github.com/robotalks/sdb.go/pkg/shm"
	"github.com/robotalks/sdb.go/pkg/wire"
)

var (
	// ErrAddress indicates an announcement for an unexpected address.
	ErrAddress = errors.New("announced address doesn't match buffer")
	// ErrLength indicates an announced length exceeding the buffer.
	ErrLength = errors.New("announced length exceeds buffer")
	// ErrNotMapped indicates an operation on a buffer not mapped yet.
	ErrNotMapped = errors.New("buffer not mapped")
)

type buffer struct {
	addr   uint32
	size   uint32
	data   []byte
	event  bridge.Event
	ready  uint32
	unmaps int
}

// Bridge implements bridge.Bridge over a shm.Region.
type Bridge struct {
	Memory *shm.Region
	// Notify is the host end of the notification channel.
	Notify link.Conn

	lock    sync.Mutex
	buffers []*buffer
	expect  int
	dropped int
	closed  bool
}

// New creates a Bridge.
func New(memory *shm.Region, notify link.Conn) *Bridge {
	return &Bridge{Memory: memory, Notify: notify}
}

// Map implements bridge.Bridge.
func (b *Bridge) Map(index int, size uint32) (bridge.Mapping, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.closed {
		return nil, bridge.ErrClosed
	}
	if index != len(b.buffers) {
		return nil, bridge.ErrMapOrder
	}
	addr, err := b.Memory.Alloc(size)
	if err != nil {
		return nil, fmt.Errorf("map buffer %d: %w", index, err)
	}
	data, err := b.Memory.Slice(addr, size)
	if err != nil {
		return nil, err
	}
	d := wire.Descriptor{Index: index, Addr: addr, Length: size}
	if _, err := d.WriteTo(messageWriter{b.Notify}); err != nil {
		return nil, fmt.Errorf("register buffer %d: %w", index, err)
	}
	glog.V(2).Infof("sim bridge: mapped %s", d)
	buf := &buffer{addr: addr, size: size, data: data}
	b.buffers = append(b.buffers, buf)
	return &mapping{bridge: b, buf: buf}, nil
}

// RegisterEvent implements bridge.Bridge.
func (b *Bridge) RegisterEvent(index int, ev bridge.Event) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	buf, err := b.buffer(index)
	if err != nil {
		return err
	}
	buf.event = ev
	return nil
}

// QueryReadySize implements bridge.Bridge.
func (b *Bridge) QueryReadySize(index int) (uint32, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	buf, err := b.buffer(index)
	if err != nil {
		return 0, err
	}
	return buf.ready, nil
}

// Close implements bridge.Bridge.
func (b *Bridge) Close() error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.closed {
		return bridge.ErrClosed
	}
	b.closed = true
	return nil
}

// Unmaps returns how many times buffer index was unmapped.
func (b *Bridge) Unmaps(index int) int {
	b.lock.Lock()
	defer b.lock.Unlock()
	if index < 0 || index >= len(b.buffers) {
		return 0
	}
	return b.buffers[index].unmaps
}

// Dropped returns the number of rejected announcements.
func (b *Bridge) Dropped() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.dropped
}

func (b *Bridge) buffer(index int) (*buffer, error) {
	if b.closed {
		return nil, bridge.ErrClosed
	}
	if index < 0 || index >= len(b.buffers) {
		return nil, ErrNotMapped
	}
	return b.buffers[index], nil
}

// HandleMessage implements link.MessageHandler for announcements.
func (b *Bridge) HandleMessage(ctx context.Context, msg []byte) {
	if err := b.Announce(msg); err != nil {
		glog.Errorf("sim bridge: announcement %q dropped: %v", msg, err)
	}
}

// Announce processes one announcement from the coprocessor.
func (b *Bridge) Announce(msg []byte) error {
	b.lock.Lock()
	ev, err := b.announce(msg)
	if err != nil {
		b.dropped++
	}
	b.lock.Unlock()
	if err != nil {
		return err
	}
	if ev != nil {
		return ev.Signal()
	}
	return nil
}

func (b *Bridge) announce(msg []byte) (bridge.Event, error) {
	if b.closed {
		return nil, bridge.ErrClosed
	}
	if len(b.buffers) == 0 {
		return nil, ErrNotMapped
	}
	d, err := wire.DecodeDescriptor(msg, b.expect)
	if err != nil {
		return nil, err
	}
	buf := b.buffers[d.Index]
	if d.Addr != buf.addr {
		return nil, fmt.Errorf("%w: 0x%08x", ErrAddress, d.Addr)
	}
	if d.Length > buf.size {
		return nil, fmt.Errorf("%w: %d > %d", ErrLength, d.Length, buf.size)
	}
	buf.ready = d.Length
	if b.expect++; b.expect >= len(b.buffers) {
		b.expect = 0
	}
	return buf.event, nil
}

// Run reads announcements from Notify until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	return link.NewReader("sim-bridge", b.Notify, b).Run(ctx)
}

type mapping struct {
	bridge *Bridge
	buf    *buffer
}

func (m *mapping) Bytes() []byte {
	return m.buf.data
}

func (m *mapping) Unmap() error {
	m.bridge.lock.Lock()
	defer m.bridge.lock.Unlock()
	if m.buf.unmaps++; m.buf.unmaps > 1 {
		return bridge.ErrUnmapped
	}
	return nil
}

type messageWriter struct {
	conn link.Conn
}

func (w messageWriter) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(p); err != nil {
		return 0, err
	}
	return len(p), nil
}
