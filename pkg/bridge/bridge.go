// Package bridge defines the host event bridge: the facility turning a
// coprocessor announcement into a waitable per-buffer event and
// answering how many bytes of a buffer are valid.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"strings"
	"time"
)

var (
	// ErrClosed indicates the bridge or event set is closed.
	ErrClosed = errors.New("bridge closed")
	// ErrUnmapped indicates a mapping which was already released.
	ErrUnmapped = errors.New("buffer already unmapped")
	// ErrMapOrder indicates buffers mapped out of index order.
	ErrMapOrder = errors.New("buffers must be mapped in index order")
	// ErrEventType indicates an event handle the bridge can't signal.
	ErrEventType = errors.New("unsupported event handle")
)

// Bridge is the host side contract of the event bridge.
type Bridge interface {
	// Map maps buffer index of size bytes. Buffers are mapped in index
	// order; mapping registers the buffer with the coprocessor.
	Map(index int, size uint32) (Mapping, error)
	// RegisterEvent binds the ready event of buffer index.
	RegisterEvent(index int, ev Event) error
	// QueryReadySize returns the valid bytes of buffer index.
	QueryReadySize(index int) (uint32, error)
	Close() error
}

// Mapping is a read-only view of one shared buffer.
type Mapping interface {
	Bytes() []byte
	Unmap() error
}

// Event is a per-buffer counter signaled by the bridge.
type Event interface {
	Signal() error
}

// EventSet is a fixed set of events waited on together.
type EventSet interface {
	Len() int
	Event(index int) Event
	// Wait blocks until at least one event is signaled, the timeout
	// expires (empty Mask, nil error) or ctx is done.
	Wait(ctx context.Context, timeout time.Duration) (Mask, error)
	// Clear reads and resets the counter of event index.
	Clear(index int) (uint64, error)
	Close() error
}

// Mask is a bitmask of signaled events.
type Mask uint32

// Has determines if event index is signaled.
func (m Mask) Has(index int) bool {
	return index >= 0 && index < 32 && m&(1<<uint(index)) != 0
}

// Count returns the number of signaled events.
func (m Mask) Count() int {
	return bits.OnesCount32(uint32(m))
}

func (m Mask) String() string {
	var idx []string
	for i := 0; i < 32; i++ {
		if m.Has(i) {
			idx = append(idx, fmt.Sprint(i))
		}
	}
	return "[" + strings.Join(idx, ",") + "]"
}
