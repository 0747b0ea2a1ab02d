package host

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/sdb.go/pkg/bridge"
	"github.com/robotalks/sdb.go/pkg/bridge/sim"
	"github.com/robotalks/sdb.go/pkg/copro"
	fx "github.com/robotalks/sdb.go/pkg/framework"
	"github.com/robotalks/sdb.go/pkg/link"
	"github.com/robotalks/sdb.go/pkg/shm"
	"github.com/robotalks/sdb.go/pkg/sink"
	"github.com/robotalks/sdb.go/pkg/telemetry"
	"github.com/robotalks/sdb.go/pkg/wire"
)

type fakeFirmware struct {
	running bool
	name    string
	stops   int
}

func (f *fakeFirmware) Running() (bool, error) { return f.running, nil }
func (f *fakeFirmware) Name() (string, error)  { return f.name, nil }
func (f *fakeFirmware) SetName(n string) error { f.name = n; return nil }
func (f *fakeFirmware) Start() error           { f.running = true; return nil }
func (f *fakeFirmware) Stop() error            { f.running = false; f.stops++; return nil }

type syncBuffer struct {
	lock sync.Mutex
	buf  bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.String()
}

type systemTestEnv struct {
	bridge   *sim.Bridge
	machine  *copro.Machine
	dma      *copro.MemDMA
	session  *Session
	firmware *fakeFirmware
	events   *telemetry.Recorder
	out      bytes.Buffer
	log      syncBuffer
	cancel   context.CancelFunc
}

func testConfig(n int, size uint32) *Config {
	conf := NewConfig()
	conf.Buffers = n
	conf.BufferSize = size
	conf.WaitTimeout = time.Second
	conf.PollInterval = time.Millisecond
	conf.RetryInterval = 5 * time.Millisecond
	conf.ShutdownGrace = time.Second
	return conf
}

// newSystemTestEnv wires a simulated coprocessor to a host session.
func newSystemTestEnv(t *testing.T, n int, size uint32) *systemTestEnv {
	hostCtl, coproCtl := link.Pipe()
	hostNotify, coproNotify := link.Pipe()
	region := shm.NewRegion(shm.ReservedBase, uint32(n)*size)

	e := &systemTestEnv{
		firmware: &fakeFirmware{running: true, name: "test.elf"},
		events:   &telemetry.Recorder{},
	}
	e.dma = copro.NewMemDMA(region, 0)
	m, err := copro.NewMachine(n, testBufSize, e.dma)
	require.NoError(t, err)
	e.machine = m
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	t.Cleanup(cancel)
	go fx.NewLoop().Add(copro.NewRuntime(m, coproCtl, coproNotify)).Run(ctx)

	e.bridge = sim.New(region, hostNotify)
	go e.bridge.Run(ctx)

	e.session = NewSession(testConfig(n, size), e.bridge, bridge.NewMemEventSet(n), hostCtl, sink.NewWriterSink(&e.out))
	e.session.Log = sink.NewLogSink(&e.log, time.Now())
	e.session.Firmware = e.firmware
	e.session.Telemetry = &telemetry.Emitter{Session: "test", Reporter: e.events}
	require.NoError(t, e.session.Open())
	return e
}

func (e *systemTestEnv) run(t *testing.T) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.session.Run(context.Background())
	}()
	return errCh
}

func (e *systemTestEnv) waitBuffers(t *testing.T, n uint64) {
	require.Eventually(t, func() bool {
		return e.session.Stats().Buffers >= n
	}, 5*time.Second, time.Millisecond)
}

func TestSessionStreamsRoundRobin(t *testing.T) {
	e := newSystemTestEnv(t, 3, testBufSize)
	errCh := e.run(t)
	e.waitBuffers(t, 7)

	require.NoError(t, e.session.Shutdown())
	require.NoError(t, <-errCh)
	require.Equal(t, ModeStopped, e.session.Mode())

	stats := e.session.Stats()
	require.False(t, stats.ShortWrite)
	require.Zero(t, stats.WrongIndex)
	require.Equal(t, uint64(e.out.Len()), stats.BytesPersisted)
	require.Equal(t, int(stats.Buffers)*testBufSize, e.out.Len())
	require.GreaterOrEqual(t, e.machine.Announced(), stats.Buffers)

	// every transfer fills a buffer with the next counter value
	data := e.out.Bytes()
	for k := 0; k < int(stats.Buffers); k++ {
		chunk := data[k*testBufSize : (k+1)*testBufSize]
		require.Equal(t, bytes.Repeat([]byte{byte(k)}, testBufSize), chunk, "buffer #%d", k)
	}

	kinds := e.events.Kinds()
	require.Equal(t, telemetry.KindSessionStart, kinds[0])
	require.Equal(t, telemetry.KindShutdown, kinds[len(kinds)-1])
}

func TestSessionSingleLargeBuffer(t *testing.T) {
	e := newSystemTestEnv(t, 1, 0x1000000)
	errCh := e.run(t)
	e.waitBuffers(t, 2)
	require.Eventually(t, func() bool {
		log := e.log.String()
		return strings.Contains(log, "registration OK physAddr=0xdb000000 physSize=16777216 count=1") &&
			strings.Contains(log, "boot successful with firmware version: v"+copro.DefaultVersion)
	}, 5*time.Second, time.Millisecond)
	require.NoError(t, e.session.Shutdown())
	require.NoError(t, <-errCh)

	stats := e.session.Stats()
	require.Zero(t, stats.WrongIndex)
	require.Equal(t, stats.Buffers*testBufSize, stats.BytesPersisted)
}

func TestSessionRearmsAfterDMAError(t *testing.T) {
	e := newSystemTestEnv(t, 2, testBufSize)
	e.dma.FailNext(errors.New("bus error"))
	start := time.Now()
	errCh := e.run(t)
	e.waitBuffers(t, 2)
	elapsed := time.Since(start)
	require.True(t, elapsed < e.session.Config.WaitTimeout/2, "drained after %s", elapsed)
	require.NoError(t, e.session.Shutdown())
	require.NoError(t, <-errCh)

	stats := e.session.Stats()
	require.Zero(t, stats.Timeouts)
	require.Zero(t, stats.WrongIndex)
	require.Contains(t, e.log.String(), "DMA transfer error: bus error")
}

func TestSessionShutdownIsReentrant(t *testing.T) {
	e := newSystemTestEnv(t, 2, testBufSize)
	errCh := e.run(t)
	e.waitBuffers(t, 1)

	require.NoError(t, e.session.Shutdown())
	require.NoError(t, e.session.Shutdown())
	require.NoError(t, <-errCh)
	for i := 0; i < 2; i++ {
		require.Equal(t, 1, e.bridge.Unmaps(i))
	}
	require.Equal(t, 1, e.firmware.stops)
	require.Equal(t, ErrShutdown, e.session.Run(context.Background()))

	kinds := e.events.Kinds()
	shutdowns := 0
	for _, k := range kinds {
		if k == telemetry.KindShutdown {
			shutdowns++
		}
	}
	require.Equal(t, 1, shutdowns)
}

func TestShutdownWithoutRun(t *testing.T) {
	hostCtl, coproCtl := link.Pipe()
	hostNotify, _ := link.Pipe()
	b := sim.New(shm.NewRegion(shm.ReservedBase, 2*testBufSize), hostNotify)
	s := NewSession(testConfig(2, testBufSize), b, bridge.NewMemEventSet(2), hostCtl, sink.NewWriterSink(&bytes.Buffer{}))
	require.NoError(t, s.Open())
	require.NoError(t, s.Shutdown())

	var cmds []string
	for {
		msg, err := coproCtl.ReadMessage()
		if err != nil {
			require.ErrorIs(t, err, link.ErrClosed)
			break
		}
		cmds = append(cmds, string(msg))
	}
	require.Equal(t, []string{"R", "E"}, cmds)
	require.Equal(t, 1, b.Unmaps(0))
	require.Equal(t, 1, b.Unmaps(1))
}

func TestRunBeforeOpen(t *testing.T) {
	hostCtl, _ := link.Pipe()
	s := NewSession(testConfig(1, testBufSize), nil, nil, hostCtl, nil)
	require.Equal(t, ErrNotOpen, s.Run(context.Background()))
}

func TestOpenMapFailure(t *testing.T) {
	hostCtl, _ := link.Pipe()
	hostNotify, _ := link.Pipe()
	// room for one buffer only
	b := sim.New(shm.NewRegion(shm.ReservedBase, testBufSize), hostNotify)
	s := NewSession(testConfig(2, testBufSize), b, bridge.NewMemEventSet(2), hostCtl, sink.NewWriterSink(&bytes.Buffer{}))
	require.ErrorIs(t, s.Open(), shm.ErrExhausted)
	require.NoError(t, s.Shutdown())
	require.Equal(t, 1, b.Unmaps(0))
}

func TestHandleReply(t *testing.T) {
	s := NewSession(testConfig(1, testBufSize), nil, nil, nil, nil)
	pending := func(ch chan struct{}) bool {
		select {
		case <-ch:
			return true
		default:
			return false
		}
	}

	s.handleReply(wire.Reply("START with error status:WAIT"))
	require.False(t, pending(s.retry))
	require.False(t, pending(s.rearm))

	s.handleReply(wire.Reply("START with error status:INIT"))
	require.True(t, pending(s.retry))
	s.handleReply(wire.Reply("START with error status:ABORT"))
	require.True(t, pending(s.retry))
	s.handleReply(wire.Reply("CM4 : START with error status:0 !!!"))
	require.True(t, pending(s.retry))
	s.handleReply(wire.Reply("CM4 : START with error status:3 !!!"))
	require.False(t, pending(s.retry))

	s.handleReply(wire.ReplyTransferError(copro.ErrDMABusy))
	require.True(t, pending(s.rearm))

	s.handleReply(wire.ReplyStart())
	require.False(t, pending(s.retry))
	require.False(t, pending(s.rearm))
}

func TestControlHandler(t *testing.T) {
	var log bytes.Buffer
	start := time.Unix(100, 0)
	var replies []wire.Reply
	h := &ControlHandler{
		Log:     sink.NewLogSink(&log, start),
		OnReply: func(r wire.Reply) { replies = append(replies, r) },
		Now:     func() time.Time { return start.Add(1500 * time.Millisecond) },
	}
	h.HandleMessage(context.Background(), []byte("START command\nEXIT command\n"))
	require.Equal(t, []wire.Reply{"START command", "EXIT command"}, replies)
	require.True(t, strings.HasPrefix(log.String(), "[1.500000] virtTTY_RX 27 bytes: START command"))
}

func TestModeString(t *testing.T) {
	require.Equal(t, "idle", ModeIdle.String())
	require.Equal(t, "sampling", ModeSampling.String())
	require.Equal(t, "stopped", ModeStopped.String())
}
