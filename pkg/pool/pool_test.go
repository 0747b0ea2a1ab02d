package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPoolSize(t *testing.T) {
	for _, n := range []int{0, -1, MaxBuffers + 1} {
		_, err := New(n)
		require.Equal(t, ErrPoolSize, err, "n=%d", n)
	}
	p, err := New(MaxBuffers)
	require.NoError(t, err)
	require.Equal(t, MaxBuffers, p.Len())
}

func TestRegister(t *testing.T) {
	p, err := New(2)
	require.NoError(t, err)
	require.False(t, p.Complete())
	require.NoError(t, p.Register(0, 0xdb000000, 0x1000))
	require.NoError(t, p.Register(0, 0xdb000000, 0x1000))
	require.Equal(t, 1, p.Registered())
	require.NoError(t, p.Register(1, 0xdb001000, 0x1000))
	require.True(t, p.Complete())
	require.Equal(t, ErrIndex, p.Register(2, 0, 0))

	d, err := p.Descriptor(1)
	require.NoError(t, err)
	require.Equal(t, uint32(0xdb001000), d.PhysAddr)
	require.True(t, d.Registered())
}

func TestProducerCycle(t *testing.T) {
	p, err := New(2)
	require.NoError(t, err)
	require.NoError(t, p.Register(0, 0x1000, 16))
	require.NoError(t, p.Register(1, 0x2000, 16))

	require.NoError(t, p.BeginFill(0))
	require.Equal(t, 0, p.Filling())
	require.Equal(t, ErrFilling, p.BeginFill(1))
	require.Equal(t, ErrLength, p.MarkReady(0, 17))
	require.NoError(t, p.MarkReady(0, 16))
	require.Equal(t, -1, p.Filling())

	d, _ := p.Descriptor(0)
	require.Equal(t, StateReady, d.State())
	require.Equal(t, uint32(16), d.Length())

	var terr *TransitionError
	require.ErrorAs(t, p.BeginFill(0), &terr)
	require.Equal(t, StateReady, terr.From)
	require.Equal(t, -1, p.Filling())

	require.NoError(t, p.Reclaim(0))
	require.Equal(t, StateFree, d.State())
	require.NoError(t, p.Reclaim(0))
	require.NoError(t, p.BeginFill(0))
}

func TestAbortFill(t *testing.T) {
	p, err := New(1)
	require.NoError(t, err)
	require.NoError(t, p.Register(0, 0x1000, 16))
	p.AbortFill()
	require.NoError(t, p.BeginFill(0))
	p.AbortFill()
	d, _ := p.Descriptor(0)
	require.Equal(t, StateFree, d.State())
	require.Equal(t, -1, p.Filling())
	require.NoError(t, p.BeginFill(0))
}

func TestConsumerCycle(t *testing.T) {
	p, err := New(1)
	require.NoError(t, err)
	require.NoError(t, p.Register(0, 0xdb000000, 0x1000000))
	require.Equal(t, ErrLength, p.MarkAnnounced(0, 0x1000001))
	require.NoError(t, p.MarkAnnounced(0, 0x1000000))

	var terr *TransitionError
	require.ErrorAs(t, p.Release(0), &terr)
	require.NoError(t, p.BeginDrain(0))
	require.ErrorAs(t, p.BeginDrain(0), &terr)
	require.NoError(t, p.Release(0))

	d, _ := p.Descriptor(0)
	require.Equal(t, StateFree, d.State())
	require.Zero(t, d.Length())
}

func TestRingSequence(t *testing.T) {
	r := NewRing(3)
	var seq []int
	for i := 0; i < 7; i++ {
		seq = append(seq, r.Advance())
	}
	require.Equal(t, []int{0, 1, 2, 0, 1, 2, 0}, seq)
	require.Equal(t, 1, r.Current())

	single := NewRing(1)
	require.Equal(t, 0, single.Advance())
	require.Equal(t, 0, single.Current())
}

func TestStateString(t *testing.T) {
	require.Equal(t, "Draining", StateDraining.String())
	require.Equal(t, "State(9)", State(9).String())
}
