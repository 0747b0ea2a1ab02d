package copro

import (
	"errors"
	"sync"
	"time"

	"github.com/robotalks/sdb.go/pkg/shm"
)

var (
	// ErrDMABusy indicates a transfer is already in flight.
	ErrDMABusy = errors.New("dma transfer in progress")
)

// DMA is a memory-to-memory transfer engine. Callbacks are invoked from
// the engine's own context, never from the caller of Start.
type DMA interface {
	// Start issues a transfer of src to the physical address dst.
	Start(src []byte, dst uint32) error
	// Abort cancels the in-flight transfer, if any. No callback is
	// invoked for an aborted transfer.
	Abort() error
	// SetCallbacks sets the completion and error handlers.
	SetCallbacks(complete func(), fail func(error))
}

// MemDMA is a DMA engine copying into a simulated memory region.
type MemDMA struct {
	Memory  *shm.Region
	Latency time.Duration

	lock     sync.Mutex
	gen      uint64
	busy     bool
	failNext error
	complete func()
	fail     func(error)
}

// NewMemDMA creates a MemDMA over region.
func NewMemDMA(region *shm.Region, latency time.Duration) *MemDMA {
	return &MemDMA{Memory: region, Latency: latency}
}

// SetCallbacks implements DMA.
func (d *MemDMA) SetCallbacks(complete func(), fail func(error)) {
	d.lock.Lock()
	d.complete, d.fail = complete, fail
	d.lock.Unlock()
}

// FailNext makes the next transfer report err through the error
// callback instead of completing.
func (d *MemDMA) FailNext(err error) {
	d.lock.Lock()
	d.failNext = err
	d.lock.Unlock()
}

// Busy determines if a transfer is in flight.
func (d *MemDMA) Busy() bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.busy
}

// Start implements DMA.
func (d *MemDMA) Start(src []byte, dst uint32) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.busy {
		return ErrDMABusy
	}
	target, err := d.Memory.Slice(dst, uint32(len(src)))
	if err != nil {
		return err
	}
	data := make([]byte, len(src))
	copy(data, src)
	d.busy = true
	d.gen++
	go d.transfer(d.gen, data, target)
	return nil
}

func (d *MemDMA) transfer(gen uint64, data, target []byte) {
	if d.Latency > 0 {
		time.Sleep(d.Latency)
	}
	d.lock.Lock()
	if d.gen != gen || !d.busy {
		d.lock.Unlock()
		return
	}
	d.busy = false
	failure := d.failNext
	d.failNext = nil
	complete, fail := d.complete, d.fail
	if failure == nil {
		copy(target, data)
	}
	d.lock.Unlock()

	if failure != nil {
		if fail != nil {
			fail(failure)
		}
		return
	}
	if complete != nil {
		complete()
	}
}

// Abort implements DMA.
func (d *MemDMA) Abort() error {
	d.lock.Lock()
	if d.busy {
		d.busy = false
		d.gen++
	}
	d.lock.Unlock()
	return nil
}
