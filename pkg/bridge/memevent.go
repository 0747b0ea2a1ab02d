package bridge

import (
	"context"
	"sync"
	"time"
)

// MemEventSet is an in-process EventSet.
type MemEventSet struct {
	lock     sync.Mutex
	counters []uint64
	closed   bool
	wakeCh   chan struct{}
	closeCh  chan struct{}
}

// NewMemEventSet creates n events.
func NewMemEventSet(n int) *MemEventSet {
	return &MemEventSet{
		counters: make([]uint64, n),
		wakeCh:   make(chan struct{}, 1),
		closeCh:  make(chan struct{}),
	}
}

type memEvent struct {
	set   *MemEventSet
	index int
}

// Signal implements Event.
func (e *memEvent) Signal() error {
	s := e.set
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return ErrClosed
	}
	s.counters[e.index]++
	s.lock.Unlock()
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
	return nil
}

// Len implements EventSet.
func (s *MemEventSet) Len() int {
	return len(s.counters)
}

// Event implements EventSet.
func (s *MemEventSet) Event(index int) Event {
	return &memEvent{set: s, index: index}
}

func (s *MemEventSet) pending() (m Mask, err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	for i, c := range s.counters {
		if c != 0 {
			m |= 1 << uint(i)
		}
	}
	return m, nil
}

// Wait implements EventSet.
func (s *MemEventSet) Wait(ctx context.Context, timeout time.Duration) (Mask, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		m, err := s.pending()
		if err != nil || m != 0 {
			return m, err
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-s.closeCh:
			return 0, ErrClosed
		case <-timer.C:
			return 0, nil
		case <-s.wakeCh:
		}
	}
}

// Clear implements EventSet.
func (s *MemEventSet) Clear(index int) (uint64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	c := s.counters[index]
	s.counters[index] = 0
	return c, nil
}

// Close implements EventSet.
func (s *MemEventSet) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	close(s.closeCh)
	return nil
}
