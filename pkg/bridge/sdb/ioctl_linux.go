package sdb

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	iocWrite     = 1
	iocReadWrite = 3
	iocType      = 'R'
	// the driver declares its requests with a pointer argument type.
	iocSize = unsafe.Sizeof(uintptr(0))
)

func ioc(dir, nr uintptr) uint {
	return uint(dir<<30 | iocSize<<16 | iocType<<8 | nr)
}

var (
	ioctlSetEventFD  = ioc(iocWrite, 0)
	ioctlGetDataSize = ioc(iocReadWrite, 1)
)

type setEventFD struct {
	BufferID int32
	EventFD  int32
}

type getDataSize struct {
	BufferID int32
	Size     uint32
}

func ioctlPtr(fd int, req uint, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
	if errno != 0 {
		return fmt.Errorf("ioctl 0x%08x: %w", req, errno)
	}
	return nil
}
