package sdb

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/golang/glog"
	"golang.org/x/sys/unix"

	"github.com/robotalks/sdb.go/pkg/bridge"
)

// Bridge implements bridge.Bridge over the rpmsg-sdb driver.
type Bridge struct {
	fd     int
	lock   sync.Mutex
	mapped int
	closed bool
}

// Open opens the driver device.
func Open(path string) (*Bridge, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Bridge{fd: fd}, nil
}

// Map implements bridge.Bridge. Each mmap of the device makes the
// driver allocate the next buffer and register it with the
// coprocessor.
func (b *Bridge) Map(index int, size uint32) (bridge.Mapping, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.closed {
		return nil, bridge.ErrClosed
	}
	if index != b.mapped {
		return nil, bridge.ErrMapOrder
	}
	data, err := unix.Mmap(b.fd, 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap buffer %d: %w", index, err)
	}
	b.mapped++
	glog.V(2).Infof("sdb: buffer %d mapped %d bytes", index, size)
	return &mapping{data: data}, nil
}

// RegisterEvent implements bridge.Bridge. ev must be an eventfd from
// an EventSet of this package.
func (b *Bridge) RegisterEvent(index int, ev bridge.Event) error {
	efd, ok := ev.(*eventFD)
	if !ok {
		return bridge.ErrEventType
	}
	arg := setEventFD{BufferID: int32(index), EventFD: int32(efd.fd)}
	return ioctlPtr(b.fd, ioctlSetEventFD, unsafe.Pointer(&arg))
}

// QueryReadySize implements bridge.Bridge.
func (b *Bridge) QueryReadySize(index int) (uint32, error) {
	arg := getDataSize{BufferID: int32(index)}
	if err := ioctlPtr(b.fd, ioctlGetDataSize, unsafe.Pointer(&arg)); err != nil {
		return 0, err
	}
	return arg.Size, nil
}

// Close implements bridge.Bridge.
func (b *Bridge) Close() error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.closed {
		return bridge.ErrClosed
	}
	b.closed = true
	return unix.Close(b.fd)
}

type mapping struct {
	lock sync.Mutex
	data []byte
}

func (m *mapping) Bytes() []byte {
	return m.data
}

func (m *mapping) Unmap() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.data == nil {
		return bridge.ErrUnmapped
	}
	err := unix.Munmap(m.data)
	m.data = nil
	return err
}
