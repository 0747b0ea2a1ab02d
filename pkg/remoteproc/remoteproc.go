// Package remoteproc controls the coprocessor firmware lifecycle.
package remoteproc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
)

// DefaultRoot is the sysfs directory of the first remote processor.
const DefaultRoot = "/sys/class/remoteproc/remoteproc0"

// Firmware is the lifecycle contract of a remote processor.
type Firmware interface {
	Running() (bool, error)
	Name() (string, error)
	SetName(string) error
	Start() error
	Stop() error
}

// Sysfs implements Firmware through the remoteproc sysfs files.
type Sysfs struct {
	Root string
}

// NewSysfs creates a Sysfs rooted at root.
func NewSysfs(root string) *Sysfs {
	return &Sysfs{Root: root}
}

func (s *Sysfs) read(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.Root, name))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *Sysfs) write(name, value string) error {
	return os.WriteFile(filepath.Join(s.Root, name), []byte(value), 0644)
}

// Running implements Firmware.
func (s *Sysfs) Running() (bool, error) {
	state, err := s.read("state")
	if err != nil {
		return false, err
	}
	return state == "running", nil
}

// Name implements Firmware.
func (s *Sysfs) Name() (string, error) {
	return s.read("firmware")
}

// SetName implements Firmware.
func (s *Sysfs) SetName(name string) error {
	return s.write("firmware", name)
}

// Start implements Firmware.
func (s *Sysfs) Start() error {
	return s.write("state", "start")
}

// Stop implements Firmware.
func (s *Sysfs) Stop() error {
	return s.write("state", "stop")
}

// Ensure makes fw run the named firmware. A different running firmware
// is stopped first. It returns true if the firmware was (re)started.
func Ensure(fw Firmware, name string) (bool, error) {
	running, err := fw.Running()
	if err != nil {
		return false, fmt.Errorf("firmware state: %w", err)
	}
	if running {
		current, err := fw.Name()
		if err != nil {
			return false, fmt.Errorf("firmware name: %w", err)
		}
		if current == name {
			glog.Infof("%s is already running", name)
			return false, nil
		}
		glog.Warningf("wrong firmware %s running, stopping", current)
		if err := fw.Stop(); err != nil {
			return false, fmt.Errorf("stop firmware %s: %w", current, err)
		}
	}
	if err := fw.SetName(name); err != nil {
		return false, fmt.Errorf("set firmware name: %w", err)
	}
	if err := fw.Start(); err != nil {
		return false, fmt.Errorf("start firmware %s: %w", name, err)
	}
	glog.Infof("firmware %s started", name)
	return true, nil
}

// StopIfRunning stops fw when it is running.
func StopIfRunning(fw Firmware) error {
	running, err := fw.Running()
	if err != nil || !running {
		return err
	}
	glog.Info("stop the firmware before exit")
	return fw.Stop()
}
