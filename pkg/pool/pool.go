// Package pool models the fixed set of shared buffers exchanged between
// the coprocessor and the host.
//
// Each side keeps its own Pool: only payload bytes live in shared memory,
// descriptor metadata does not. The coprocessor owns Free→Filling→Ready,
// the host owns Ready→Draining→Free, and the protocol turn-taking decides
// who may act. Descriptors are addressed by index only.
package pool

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// MaxBuffers is the largest pool size; the wire index is a single digit.
const MaxBuffers = 10

var (
	// ErrPoolSize indicates an invalid number of buffers.
	ErrPoolSize = fmt.Errorf("buffer count must be within 1..%d", MaxBuffers)
	// ErrIndex indicates a buffer index out of range.
	ErrIndex = errors.New("buffer index out of range")
	// ErrFilling indicates another buffer is already being filled.
	ErrFilling = errors.New("another buffer is filling")
	// ErrLength indicates a length exceeding the buffer capacity.
	ErrLength = errors.New("length exceeds buffer capacity")
)

// Descriptor describes one shared buffer slot.
type Descriptor struct {
	Index    int
	PhysAddr uint32
	PhysLen  uint32

	state  atomic.Int32
	length atomic.Uint32
	reg    atomic.Bool
}

// State returns current state.
func (d *Descriptor) State() State {
	return State(d.state.Load())
}

// Length returns the valid bytes announced for the buffer.
func (d *Descriptor) Length() uint32 {
	return d.length.Load()
}

// Registered indicates the buffer address/size is known.
func (d *Descriptor) Registered() bool {
	return d.reg.Load()
}

func (d *Descriptor) transit(from, to State) error {
	if !d.state.CompareAndSwap(int32(from), int32(to)) {
		return &TransitionError{Index: d.Index, From: d.State(), To: to}
	}
	return nil
}

// Pool is an arena of descriptors.
type Pool struct {
	descs      []Descriptor
	registered atomic.Int32
	// index+1 of the filling buffer, 0 if none.
	filling atomic.Int32
}

// New creates a Pool with n buffers.
func New(n int) (*Pool, error) {
	if n < 1 || n > MaxBuffers {
		return nil, ErrPoolSize
	}
	p := &Pool{descs: make([]Descriptor, n)}
	for i := range p.descs {
		p.descs[i].Index = i
	}
	return p, nil
}

// Len returns the number of buffers.
func (p *Pool) Len() int {
	return len(p.descs)
}

// Descriptor returns the descriptor at index i.
func (p *Pool) Descriptor(i int) (*Descriptor, error) {
	if i < 0 || i >= len(p.descs) {
		return nil, ErrIndex
	}
	return &p.descs[i], nil
}

// Register records the physical location of buffer i.
// Registering an already registered buffer only updates the location.
func (p *Pool) Register(i int, addr, size uint32) error {
	d, err := p.Descriptor(i)
	if err != nil {
		return err
	}
	d.PhysAddr, d.PhysLen = addr, size
	if d.reg.CompareAndSwap(false, true) {
		p.registered.Add(1)
	}
	return nil
}

// Registered returns how many buffers have been registered.
func (p *Pool) Registered() int {
	return int(p.registered.Load())
}

// Complete indicates all buffers are registered.
func (p *Pool) Complete() bool {
	return p.Registered() == len(p.descs)
}

// BeginFill moves buffer i Free→Filling. Only one buffer may be
// filling at any time.
func (p *Pool) BeginFill(i int) error {
	d, err := p.Descriptor(i)
	if err != nil {
		return err
	}
	if !p.filling.CompareAndSwap(0, int32(i+1)) {
		return ErrFilling
	}
	if err := d.transit(StateFree, StateFilling); err != nil {
		p.filling.Store(0)
		return err
	}
	return nil
}

// MarkReady moves buffer i Filling→Ready with length valid bytes.
func (p *Pool) MarkReady(i int, length uint32) error {
	d, err := p.Descriptor(i)
	if err != nil {
		return err
	}
	if length > d.PhysLen {
		return ErrLength
	}
	d.length.Store(length)
	if err := d.transit(StateFilling, StateReady); err != nil {
		return err
	}
	p.filling.Store(0)
	return nil
}

// AbortFill returns a filling buffer to Free, discarding its content.
// It is a no-op if no buffer is filling.
func (p *Pool) AbortFill() {
	i := int(p.filling.Swap(0)) - 1
	if i < 0 {
		return
	}
	p.descs[i].length.Store(0)
	p.descs[i].state.CompareAndSwap(int32(StateFilling), int32(StateFree))
}

// Filling returns the index of the buffer being filled, or -1.
func (p *Pool) Filling() int {
	return int(p.filling.Load()) - 1
}

// MarkAnnounced records an announcement seen by the consumer side:
// buffer i becomes Ready with length valid bytes. The consumer never
// observes Filling, so this is valid from Free only.
func (p *Pool) MarkAnnounced(i int, length uint32) error {
	d, err := p.Descriptor(i)
	if err != nil {
		return err
	}
	if d.Registered() && length > d.PhysLen {
		return ErrLength
	}
	d.length.Store(length)
	return d.transit(StateFree, StateReady)
}

// BeginDrain moves buffer i Ready→Draining.
func (p *Pool) BeginDrain(i int) error {
	d, err := p.Descriptor(i)
	if err != nil {
		return err
	}
	return d.transit(StateReady, StateDraining)
}

// Release moves buffer i Draining→Free.
func (p *Pool) Release(i int) error {
	d, err := p.Descriptor(i)
	if err != nil {
		return err
	}
	if err := d.transit(StateDraining, StateFree); err != nil {
		return err
	}
	d.length.Store(0)
	return nil
}

// Reclaim moves buffer i Ready→Free on the producer side once the peer
// handed the slot back. Reclaiming a Free buffer is a no-op.
func (p *Pool) Reclaim(i int) error {
	d, err := p.Descriptor(i)
	if err != nil {
		return err
	}
	if d.State() == StateFree {
		return nil
	}
	if err := d.transit(StateReady, StateFree); err != nil {
		return err
	}
	d.length.Store(0)
	return nil
}
