package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/sdb.go/pkg/bridge"
	"github.com/robotalks/sdb.go/pkg/link"
	"github.com/robotalks/sdb.go/pkg/shm"
	"github.com/robotalks/sdb.go/pkg/wire"
)

func newTestBridge(t *testing.T, n int, size uint32) (*Bridge, *link.PipeConn, *bridge.MemEventSet, []bridge.Mapping) {
	host, copro := link.Pipe()
	b := New(shm.NewRegion(shm.ReservedBase, uint32(n)*size), host)
	events := bridge.NewMemEventSet(n)
	var maps []bridge.Mapping
	for i := 0; i < n; i++ {
		m, err := b.Map(i, size)
		require.NoError(t, err)
		require.NoError(t, b.RegisterEvent(i, events.Event(i)))
		maps = append(maps, m)
	}
	return b, copro, events, maps
}

func TestMapRegisters(t *testing.T) {
	b, copro, _, maps := newTestBridge(t, 2, 0x1000)
	for i := 0; i < 2; i++ {
		msg, err := copro.ReadMessage()
		require.NoError(t, err)
		d, err := wire.DecodeDescriptor(msg, i)
		require.NoError(t, err)
		require.Equal(t, shm.ReservedBase+uint32(i)*0x1000, d.Addr)
		require.Equal(t, uint32(0x1000), d.Length)
		require.Len(t, maps[i].Bytes(), 0x1000)
	}

	_, err := b.Map(3, 0x1000)
	require.Equal(t, bridge.ErrMapOrder, err)
	_, err = b.Map(2, 0x1000)
	require.ErrorIs(t, err, shm.ErrExhausted)
	_, err = b.QueryReadySize(5)
	require.Equal(t, ErrNotMapped, err)
}

func TestAnnounceSignalsInOrder(t *testing.T) {
	b, _, events, _ := newTestBridge(t, 2, 0x1000)

	require.NoError(t, b.Announce([]byte("B0Adb000000L00000800")))
	size, err := b.QueryReadySize(0)
	require.NoError(t, err)
	require.Equal(t, uint32(0x800), size)
	m, err := events.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	require.Equal(t, bridge.Mask(1), m)

	// index 0 again is out of order
	require.ErrorIs(t, b.Announce([]byte("B0Adb000000L00000800")), wire.ErrUnexpectedIndex)
	require.ErrorIs(t, b.Announce([]byte("B1Adb000000L00000800")), ErrAddress)
	require.ErrorIs(t, b.Announce([]byte("B1Adb001000L00001001")), ErrLength)
	require.Equal(t, 3, b.Dropped())

	require.NoError(t, b.Announce([]byte("B1Adb001000L00001000")))
	require.NoError(t, b.Announce([]byte("B0Adb000000L00000000")))
	size, err = b.QueryReadySize(0)
	require.NoError(t, err)
	require.Zero(t, size)
	c, err := events.Clear(0)
	require.NoError(t, err)
	require.Equal(t, uint64(2), c)
}

func TestRunAndUnmap(t *testing.T) {
	b, copro, events, maps := newTestBridge(t, 1, 0x1000)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	require.NoError(t, copro.WriteMessage([]byte("B0Adb000000L00000010")))
	m, err := events.Wait(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, m.Has(0))

	require.NoError(t, maps[0].Unmap())
	require.Equal(t, bridge.ErrUnmapped, maps[0].Unmap())
	require.Equal(t, 2, b.Unmaps(0))

	require.NoError(t, b.Close())
	require.Equal(t, bridge.ErrClosed, b.Close())
	_, err = b.QueryReadySize(0)
	require.Equal(t, bridge.ErrClosed, err)
}
