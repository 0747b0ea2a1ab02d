// Package shm simulates the physical memory window shared by the host
// and the coprocessor.
package shm

import (
	"errors"
	"fmt"
	"sync"
)

// ReservedBase is the start of the memory reserved for sample buffers.
const ReservedBase uint32 = 0xdb000000

var (
	// ErrOutOfRange indicates an access outside the region.
	ErrOutOfRange = errors.New("physical range outside region")
	// ErrExhausted indicates the region has no room for an allocation.
	ErrExhausted = errors.New("region exhausted")
)

// Region is a window of physical memory starting at Base.
type Region struct {
	Base uint32
	data []byte

	lock sync.Mutex
	next uint32
}

// NewRegion creates a zeroed region of size bytes at base.
func NewRegion(base uint32, size uint32) *Region {
	return &Region{Base: base, data: make([]byte, size)}
}

// Size returns the region size.
func (r *Region) Size() uint32 {
	return uint32(len(r.data))
}

// Contains determines if [addr, addr+n) is inside the region.
func (r *Region) Contains(addr, n uint32) bool {
	if addr < r.Base {
		return false
	}
	off := uint64(addr - r.Base)
	return off+uint64(n) <= uint64(len(r.data))
}

// Slice returns the bytes backing [addr, addr+n).
func (r *Region) Slice(addr, n uint32) ([]byte, error) {
	if !r.Contains(addr, n) {
		return nil, fmt.Errorf("%w: 0x%08x+0x%x", ErrOutOfRange, addr, n)
	}
	off := addr - r.Base
	return r.data[off : off+n : off+n], nil
}

// Alloc reserves size bytes and returns their physical address.
// Allocations are 4 KiB aligned and never released.
func (r *Region) Alloc(size uint32) (uint32, error) {
	const align = 4096
	r.lock.Lock()
	defer r.lock.Unlock()
	start := (r.next + align - 1) &^ (align - 1)
	if uint64(start)+uint64(size) > uint64(len(r.data)) {
		return 0, ErrExhausted
	}
	r.next = start + size
	return r.Base + start, nil
}
