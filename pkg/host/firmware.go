package host

import (
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/sdb.go/pkg/remoteproc"
)

// StartFirmware makes fw run the named firmware and waits for it to
// boot if it had to be started.
func StartFirmware(fw remoteproc.Firmware, name string, bootDelay time.Duration) error {
	started, err := remoteproc.Ensure(fw, name)
	if err != nil {
		return err
	}
	if started {
		glog.V(2).Infof("waiting %s for %s to boot", bootDelay, name)
		time.Sleep(bootDelay)
	}
	return nil
}
