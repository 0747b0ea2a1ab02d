//go:build linux

package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/sdb.go/pkg/bridge/sdb"
	fx "github.com/robotalks/sdb.go/pkg/framework"
	"github.com/robotalks/sdb.go/pkg/host"
	"github.com/robotalks/sdb.go/pkg/link"
	"github.com/robotalks/sdb.go/pkg/remoteproc"
	"github.com/robotalks/sdb.go/pkg/sink"
	"github.com/robotalks/sdb.go/pkg/telemetry"
	"github.com/robotalks/sdb.go/pkg/telemetry/mqtt"
)

const mqttTimeout = 5 * time.Second

func init() {
	host.SetupFlags()
}

type closers []func() error

func (c closers) closeAll() {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			glog.Warningf("cleanup: %v", err)
		}
	}
}

func main() {
	flag.Parse()
	defer glog.Flush()
	conf := host.NewConfig()

	var cleanup closers
	fail := func(format string, args ...interface{}) {
		cleanup.closeAll()
		glog.Fatalf(format, args...)
	}

	var fw remoteproc.Firmware
	if conf.Firmware != "" {
		fw = remoteproc.NewSysfs(conf.RemoteprocRoot)
		if err := host.StartFirmware(fw, conf.Firmware, conf.BootDelay); err != nil {
			fail("firmware: %v", err)
		}
		cleanup = append(cleanup, func() error { return remoteproc.StopIfRunning(fw) })
	}

	control, err := link.OpenTTY(conf.ControlDevice)
	if err != nil {
		fail("open %s: %v", conf.ControlDevice, err)
	}
	cleanup = append(cleanup, control.Close)

	b, err := sdb.Open(conf.SDBDevice)
	if err != nil {
		fail("open %s: %v", conf.SDBDevice, err)
	}
	cleanup = append(cleanup, b.Close)

	events, err := sdb.NewEventSet(conf.Buffers)
	if err != nil {
		fail("eventfd: %v", err)
	}
	cleanup = append(cleanup, events.Close)

	now := time.Now()
	data, err := sink.NewFileSink(conf.OutputDir, now)
	if err != nil {
		fail("data file: %v", err)
	}
	cleanup = append(cleanup, data.Close)
	logSink, err := sink.OpenLogSink(conf.OutputDir, now)
	if err != nil {
		fail("log file: %v", err)
	}
	cleanup = append(cleanup, logSink.Close)

	s := host.NewSession(conf, b, events, control, data)
	s.Log, s.Firmware = logSink, fw
	if conf.MQTTURL != "" {
		q, pub, err := mqtt.Dial(conf.MQTTURL, mqttTimeout)
		if err != nil {
			glog.Warningf("telemetry disabled: %v", err)
		} else {
			defer q.Close()
			s.Telemetry = telemetry.NewEmitter(pub)
		}
	}

	glog.Infof("writing %s, log %s", data.Path, logSink.Path)
	if err := s.Open(); err != nil {
		s.Shutdown()
		glog.Fatalf("open session: %v", err)
	}

	runner := fx.NewRunner().HandleSignals(nil)
	runner.Go(fx.NamedRun("session", fx.RunFunc(s.Run)))
	err = runner.Wait()
	if serr := s.Shutdown(); serr != nil {
		glog.Errorf("shutdown: %v", serr)
	}
	if err != nil {
		glog.Fatalf("session: %v", err)
	}
	glog.Infof("done: %s", s.Stats())
}
