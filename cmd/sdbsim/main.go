package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/sdb.go/pkg/bridge"
	"github.com/robotalks/sdb.go/pkg/bridge/sim"
	"github.com/robotalks/sdb.go/pkg/copro"
	fx "github.com/robotalks/sdb.go/pkg/framework"
	"github.com/robotalks/sdb.go/pkg/host"
	"github.com/robotalks/sdb.go/pkg/link"
	"github.com/robotalks/sdb.go/pkg/shm"
	"github.com/robotalks/sdb.go/pkg/sink"
	"github.com/robotalks/sdb.go/pkg/telemetry"
	"github.com/robotalks/sdb.go/pkg/telemetry/mqtt"
)

var (
	consoleAddr string
	duration    time.Duration
)

func init() {
	host.SetupFlags()
	copro.SetupFlags()
	flag.StringVar(&consoleAddr, "console", consoleAddr, "Serve the status console over websocket on this address.")
	flag.DurationVar(&duration, "duration", duration, "Stop after this long, 0 runs until interrupted.")
}

func main() {
	flag.Parse()
	defer glog.Flush()

	hostConf := host.NewConfig()
	coproConf := copro.NewConfig()
	coproConf.Buffers = hostConf.Buffers
	if need := uint64(hostConf.Buffers) * uint64(hostConf.BufferSize); need > uint64(coproConf.MemorySize) {
		if need > 1<<32-uint64(shm.ReservedBase) {
			glog.Fatalf("%d buffers of %d bytes don't fit the reserved region", hostConf.Buffers, hostConf.BufferSize)
		}
		coproConf.MemorySize = uint32(need)
	}
	region := coproConf.NewRegion()
	machine, _, err := coproConf.NewMachine(region)
	if err != nil {
		glog.Fatalf("coprocessor: %v", err)
	}

	hostCtl, coproCtl := link.Pipe()
	hostNotify, coproNotify := link.Pipe()
	rt := copro.NewRuntime(machine, coproCtl, coproNotify)
	b := sim.New(region, hostNotify)

	now := time.Now()
	data, err := sink.NewFileSink(hostConf.OutputDir, now)
	if err != nil {
		glog.Fatalf("data file: %v", err)
	}
	logSink, err := sink.OpenLogSink(hostConf.OutputDir, now)
	if err != nil {
		data.Close()
		glog.Fatalf("log file: %v", err)
	}
	s := host.NewSession(hostConf, b, bridge.NewMemEventSet(hostConf.Buffers), hostCtl, data)
	s.Log = logSink
	if hostConf.MQTTURL != "" {
		q, pub, err := mqtt.Dial(hostConf.MQTTURL, 5*time.Second)
		if err != nil {
			glog.Warningf("telemetry disabled: %v", err)
		} else {
			defer q.Close()
			s.Telemetry = telemetry.NewEmitter(pub)
		}
	}

	runner := fx.NewRunner().HandleSignals(nil)
	runner.Go(
		fx.NamedRun("copro", fx.NewLoop().Add(rt)),
		fx.NamedRun("sim-bridge", fx.RunFunc(b.Run)),
	)
	if err := s.Open(); err != nil {
		runner.Stop()
		s.Shutdown()
		glog.Fatalf("open session: %v", err)
	}
	runner.Go(fx.NamedRun("session", fx.RunFunc(s.Run)))
	if consoleAddr != "" {
		runner.Go(fx.NamedRun("console", &Console{Addr: consoleAddr, Session: s}))
	}
	if duration > 0 {
		runner.Go(fx.NamedRun("timer", fx.RunFunc(func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(duration):
				return nil
			}
		})))
	}

	var errs fx.AggregatedError
	errs.Add(runner.Wait())
	errs.Add(s.Shutdown())
	errs.Add(rt.Shutdown())
	glog.Infof("done: %s, %d buffers announced", s.Stats(), machine.Announced())
	if err := errs.Aggregate(); err != nil {
		glog.Fatal(err)
	}
}
