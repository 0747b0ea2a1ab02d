package sdb

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/robotalks/sdb.go/pkg/bridge"
)

// DefaultPollSlice bounds a single poll so cancellation is observed.
const DefaultPollSlice = 100 * time.Millisecond

type eventFD struct {
	fd int
}

// Signal implements bridge.Event.
func (e *eventFD) Signal() error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(e.fd, buf[:])
	return err
}

// EventSet implements bridge.EventSet with one eventfd per buffer.
type EventSet struct {
	PollSlice time.Duration

	events []*eventFD
	lock   sync.Mutex
	closed bool
}

// NewEventSet creates n eventfds.
func NewEventSet(n int) (*EventSet, error) {
	s := &EventSet{PollSlice: DefaultPollSlice}
	for i := 0; i < n; i++ {
		fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.events = append(s.events, &eventFD{fd: fd})
	}
	return s, nil
}

// Len implements bridge.EventSet.
func (s *EventSet) Len() int {
	return len(s.events)
}

// Event implements bridge.EventSet.
func (s *EventSet) Event(index int) bridge.Event {
	return s.events[index]
}

// Wait implements bridge.EventSet.
func (s *EventSet) Wait(ctx context.Context, timeout time.Duration) (bridge.Mask, error) {
	fds := make([]unix.PollFd, len(s.events))
	for i, ev := range s.events {
		fds[i] = unix.PollFd{Fd: int32(ev.fd), Events: unix.POLLIN}
	}
	slice := s.PollSlice
	if slice <= 0 {
		slice = DefaultPollSlice
	}
	deadline := time.Now().Add(timeout)
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if s.isClosed() {
			return 0, bridge.ErrClosed
		}
		wait := time.Until(deadline)
		if wait <= 0 {
			return 0, nil
		}
		if wait > slice {
			wait = slice
		}
		n, err := unix.Poll(fds, int(wait/time.Millisecond))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return 0, err
		}
		if n == 0 {
			continue
		}
		var m bridge.Mask
		for i, fd := range fds {
			if fd.Revents&unix.POLLIN != 0 {
				m |= 1 << uint(i)
			}
		}
		return m, nil
	}
}

// Clear implements bridge.EventSet.
func (s *EventSet) Clear(index int) (uint64, error) {
	var buf [8]byte
	n, err := unix.Read(s.events[index].fd, buf[:])
	if errors.Is(err, unix.EAGAIN) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if n != len(buf) {
		return 0, unix.EIO
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// Close implements bridge.EventSet.
func (s *EventSet) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return bridge.ErrClosed
	}
	s.closed = true
	var err error
	for _, ev := range s.events {
		if e := unix.Close(ev.fd); e != nil && err == nil {
			err = e
		}
	}
	return err
}

func (s *EventSet) isClosed() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.closed
}
