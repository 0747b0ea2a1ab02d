package host

import (
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/robotalks/sdb.go/pkg/bridge/sdb"
	"github.com/robotalks/sdb.go/pkg/remoteproc"
)

// Config defines a host session.
type Config struct {
	Buffers    int
	BufferSize uint32
	// WaitTimeout bounds a single wait for buffer events.
	WaitTimeout time.Duration
	// PollInterval is the control channel read interval and the back
	// off after a wrong buffer index.
	PollInterval time.Duration
	// RetryInterval delays a start request rejected before the
	// coprocessor has all buffers registered.
	RetryInterval time.Duration
	ShutdownGrace time.Duration
	BootDelay     time.Duration

	ControlDevice  string
	SDBDevice      string
	OutputDir      string
	Firmware       string
	RemoteprocRoot string
	MQTTURL        string
}

var defaultConfig = Config{
	Buffers:        3,
	BufferSize:     0x1000000,
	WaitTimeout:    60 * time.Second,
	PollInterval:   10 * time.Millisecond,
	RetryInterval:  100 * time.Millisecond,
	ShutdownGrace:  2 * time.Second,
	BootDelay:      time.Second,
	ControlDevice:  "/dev/ttyRPMSG0",
	SDBDevice:      sdb.DefaultDevice,
	OutputDir:      ".",
	Firmware:       "exchange_large_buf_CM4.elf",
	RemoteprocRoot: remoteproc.DefaultRoot,
}

func init() {
	if val, err := strconv.Atoi(os.Getenv("SDB_BUFFERS")); err == nil {
		defaultConfig.Buffers = val
	}
	if val, err := strconv.ParseUint(os.Getenv("SDB_BUFFER_SIZE"), 0, 32); err == nil {
		defaultConfig.BufferSize = uint32(val)
	}
	if val, err := time.ParseDuration(os.Getenv("SDB_WAIT_TIMEOUT")); err == nil {
		defaultConfig.WaitTimeout = val
	}
	if val := os.Getenv("SDB_CONTROL_DEVICE"); val != "" {
		defaultConfig.ControlDevice = val
	}
	if val := os.Getenv("SDB_DEVICE"); val != "" {
		defaultConfig.SDBDevice = val
	}
	if val := os.Getenv("SDB_OUTPUT_DIR"); val != "" {
		defaultConfig.OutputDir = val
	}
	if val := os.Getenv("SDB_FIRMWARE"); val != "" {
		defaultConfig.Firmware = val
	}
	if val := os.Getenv("SDB_REMOTEPROC"); val != "" {
		defaultConfig.RemoteprocRoot = val
	}
	defaultConfig.MQTTURL = os.Getenv("SDB_MQTT_URL")
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.IntVar(&defaultConfig.Buffers, "buffers", defaultConfig.Buffers, "Number of shared buffers (1-10).")
	flag.Func("buffer-size", "Size of each shared buffer in bytes (default 0x1000000).", func(s string) error {
		v, err := strconv.ParseUint(s, 0, 32)
		if err == nil {
			defaultConfig.BufferSize = uint32(v)
		}
		return err
	})
	flag.DurationVar(&defaultConfig.WaitTimeout, "wait-timeout", defaultConfig.WaitTimeout, "Timeout waiting for a filled buffer.")
	flag.DurationVar(&defaultConfig.PollInterval, "poll-interval", defaultConfig.PollInterval, "Control channel poll interval.")
	flag.DurationVar(&defaultConfig.RetryInterval, "retry-interval", defaultConfig.RetryInterval, "Delay before retrying a rejected start.")
	flag.DurationVar(&defaultConfig.ShutdownGrace, "shutdown-grace", defaultConfig.ShutdownGrace, "Time to wait for workers on shutdown.")
	flag.StringVar(&defaultConfig.ControlDevice, "control", defaultConfig.ControlDevice, "Control channel tty device.")
	flag.StringVar(&defaultConfig.SDBDevice, "sdb", defaultConfig.SDBDevice, "Shared buffer driver device.")
	flag.StringVar(&defaultConfig.OutputDir, "out", defaultConfig.OutputDir, "Directory of data and log files.")
	flag.StringVar(&defaultConfig.Firmware, "firmware", defaultConfig.Firmware, "Coprocessor firmware name, empty to skip firmware control.")
	flag.StringVar(&defaultConfig.RemoteprocRoot, "remoteproc", defaultConfig.RemoteprocRoot, "Remote processor sysfs directory.")
	flag.StringVar(&defaultConfig.MQTTURL, "mqtt", defaultConfig.MQTTURL, "MQTT broker URL for telemetry.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}
