// Package copro implements the coprocessor side of the buffer exchange:
// a transfer state machine which fills one shared buffer at a time
// through a DMA engine and announces each filled buffer to the host.
package copro

import (
	"errors"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/sdb.go/pkg/pool"
	"github.com/robotalks/sdb.go/pkg/wire"
)

// DefaultVersion is the firmware version reported on handshake.
const DefaultVersion = "1.0.0"

var (
	// ErrStagingSize indicates an empty staging buffer.
	ErrStagingSize = errors.New("staging buffer size must be positive")
)

// MessageWriter sends one message on a link.
type MessageWriter interface {
	WriteMessage([]byte) error
}

// Machine is the coprocessor transfer state machine.
//
// All methods except TransferComplete, TransferError and State must be
// called from a single goroutine, the main loop. TransferComplete and
// TransferError are the interrupt context; the only state change they
// perform is Wait→Done.
type Machine struct {
	// Control receives replies to control commands.
	Control MessageWriter
	// Notify receives descriptor announcements.
	Notify  MessageWriter
	Sampler Sampler
	Version string
	// Wake is invoked from interrupt context after a state change so
	// the main loop runs promptly.
	Wake func()

	state    atomic.Int32
	shutdown atomic.Bool
	dmaErr   atomic.Pointer[error]

	pool     *pool.Pool
	ring     pool.Ring
	staging  []byte
	dma      DMA
	inflight uint32
	// reply reporting the aborted transfer, sent once the machine has
	// left Abort so a following start is accepted
	abortReply wire.Reply

	announced atomic.Uint64
}

// NewMachine creates a Machine for n buffers using dma for transfers.
func NewMachine(n, stagingSize int, dma DMA) (*Machine, error) {
	p, err := pool.New(n)
	if err != nil {
		return nil, err
	}
	if stagingSize <= 0 {
		return nil, ErrStagingSize
	}
	m := &Machine{
		Sampler: &CounterSampler{},
		Version: DefaultVersion,
		pool:    p,
		ring:    pool.NewRing(n),
		staging: make([]byte, stagingSize),
		dma:     dma,
	}
	dma.SetCallbacks(m.TransferComplete, m.TransferError)
	return m, nil
}

// State returns the current transfer state.
func (m *Machine) State() State {
	return State(m.state.Load())
}

// Pool returns the coprocessor's view of the buffers.
func (m *Machine) Pool() *pool.Pool {
	return m.pool
}

// NextIndex returns the round-robin index of the next transfer.
func (m *Machine) NextIndex() int {
	return m.ring.Current()
}

// Announced returns the number of buffers announced so far.
func (m *Machine) Announced() uint64 {
	return m.announced.Load()
}

func (m *Machine) setState(s State) {
	if prev := State(m.state.Swap(int32(s))); prev != s {
		glog.V(2).Infof("copro state %s -> %s", prev, s)
	}
}

// HandleCommand processes one control channel message.
func (m *Machine) HandleCommand(msg []byte) {
	op, err := wire.ParseCommand(msg)
	if err != nil {
		var unknown *wire.UnknownOpcodeError
		if errors.As(err, &unknown) {
			glog.Errorf("copro: %v", err)
			m.reply(wire.ReplyUnknown(unknown.Byte))
		}
		return
	}
	switch op {
	case wire.OpStart:
		if s := m.State(); s != StateIdle {
			glog.Errorf("copro: START rejected in state %s", s)
			m.reply(wire.ReplyStartRejected(s))
			return
		}
		m.setState(StateStart)
		m.reply(wire.ReplyStart())
	case wire.OpExit:
		m.setState(StateAbort)
		m.reply(wire.ReplyExit())
	case wire.OpReset:
		m.reply(wire.ReplyReset(m.Version))
	}
}

// HandleRegistration processes one notification channel message from
// the host registering the next buffer.
func (m *Machine) HandleRegistration(msg []byte) {
	expect := m.pool.Registered()
	d, err := wire.DecodeDescriptor(msg, expect)
	if err == nil {
		err = m.pool.Register(d.Index, d.Addr, d.Length)
	}
	if err != nil {
		glog.Errorf("copro: registration dropped: %v", err)
		m.reply(wire.ReplyRegistrationError(err))
		return
	}
	count := m.pool.Registered()
	glog.Infof("copro: buffer %d registered at 0x%08x size %d", d.Index, d.Addr, d.Length)
	m.reply(wire.ReplyRegistered(d, count))
	if m.pool.Complete() && m.State() == StateInit {
		m.setState(StateIdle)
	}
}

// Step advances the state machine once.
func (m *Machine) Step() {
	switch m.State() {
	case StateStart:
		m.startTransfer()
	case StateWait:
		if errp := m.dmaErr.Swap(nil); errp != nil {
			glog.Errorf("copro: DMA transfer error: %v", *errp)
			m.abort(wire.ReplyTransferError(*errp))
		}
	case StateDone:
		m.announce()
	case StateAbort:
		if err := m.dma.Abort(); err != nil {
			glog.Errorf("copro: DMA abort error: %v", err)
		}
		m.pool.AbortFill()
		m.dmaErr.Store(nil)
		if m.pool.Complete() {
			m.setState(StateIdle)
		} else {
			m.setState(StateInit)
		}
		if r := m.abortReply; r != "" {
			m.abortReply = ""
			m.reply(r)
		}
	}
}

func (m *Machine) abort(r wire.Reply) {
	m.abortReply = r
	m.setState(StateAbort)
}

func (m *Machine) startTransfer() {
	index := m.ring.Current()
	desc, _ := m.pool.Descriptor(index)
	err := m.pool.Reclaim(index)
	if err == nil {
		err = m.pool.BeginFill(index)
	}
	if err != nil {
		glog.Errorf("copro: buffer %d unavailable: %v", index, err)
		m.abort(wire.ReplyDMAStartError(err))
		return
	}

	length := uint32(len(m.staging))
	if desc.PhysLen < length {
		length = desc.PhysLen
	}
	m.inflight = length
	m.Sampler.Sample(m.staging[:length])

	// Wait is published before issuing so a fast completion can't
	// be lost.
	m.setState(StateWait)
	if err := m.dma.Start(m.staging[:length], desc.PhysAddr); err != nil {
		glog.Errorf("copro: DMA start error: %v", err)
		m.abort(wire.ReplyDMAStartError(err))
	}
}

func (m *Machine) announce() {
	index := m.ring.Current()
	desc, _ := m.pool.Descriptor(index)
	if err := m.pool.MarkReady(index, m.inflight); err != nil {
		glog.Errorf("copro: %v", err)
		m.setState(StateAbort)
		return
	}
	d := wire.Descriptor{Index: index, Addr: desc.PhysAddr, Length: m.inflight}
	if msg, err := d.Encode(); err != nil {
		glog.Errorf("copro: encode %d: %v", index, err)
	} else if err = m.write(m.Notify, msg); err != nil {
		glog.Errorf("copro: announce %s: %v", d, err)
	} else {
		glog.V(2).Infof("copro: announced %s", d)
	}
	m.announced.Add(1)
	m.ring.Advance()
	m.setState(StateIdle)
}

// TransferComplete is the DMA completion interrupt handler.
func (m *Machine) TransferComplete() {
	if m.shutdown.Load() {
		return
	}
	if m.state.CompareAndSwap(int32(StateWait), int32(StateDone)) {
		m.wake()
	}
}

// TransferError is the DMA error interrupt handler. The error is
// handed to the main loop which aborts the transfer.
func (m *Machine) TransferError(err error) {
	if m.shutdown.Load() {
		return
	}
	m.dmaErr.Store(&err)
	m.wake()
}

// Shutdown disables completion handling and cancels any transfer.
func (m *Machine) Shutdown() error {
	if !m.shutdown.CompareAndSwap(false, true) {
		return nil
	}
	glog.Info("copro: shutdown")
	return m.dma.Abort()
}

// IsShutdown determines if Shutdown was called.
func (m *Machine) IsShutdown() bool {
	return m.shutdown.Load()
}

func (m *Machine) wake() {
	if fn := m.Wake; fn != nil {
		fn()
	}
}

func (m *Machine) reply(r wire.Reply) {
	if err := m.write(m.Control, r.Bytes()); err != nil {
		glog.Errorf("copro: reply %q: %v", r, err)
	}
}

func (m *Machine) write(w MessageWriter, msg []byte) error {
	if w == nil {
		return nil
	}
	return w.WriteMessage(msg)
}
