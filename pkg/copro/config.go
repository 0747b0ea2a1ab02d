package copro

import (
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/robotalks/sdb.go/pkg/shm"
)

// Config defines the simulated coprocessor.
type Config struct {
	Buffers     int
	StagingSize int
	DMALatency  time.Duration
	Version     string
	// MemorySize is the size of the reserved physical region.
	MemorySize uint32
}

var defaultConfig = Config{
	Buffers:     3,
	StagingSize: 4096,
	DMALatency:  time.Millisecond,
	Version:     DefaultVersion,
	MemorySize:  0x1000000,
}

func init() {
	if val, err := strconv.Atoi(os.Getenv("SDB_BUFFERS")); err == nil {
		defaultConfig.Buffers = val
	}
	if val, err := strconv.Atoi(os.Getenv("SDB_COPRO_STAGING")); err == nil {
		defaultConfig.StagingSize = val
	}
	if val, err := time.ParseDuration(os.Getenv("SDB_COPRO_DMA_LATENCY")); err == nil {
		defaultConfig.DMALatency = val
	}
	if val := os.Getenv("SDB_COPRO_VERSION"); val != "" {
		defaultConfig.Version = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.IntVar(&defaultConfig.StagingSize, "copro-staging", defaultConfig.StagingSize, "Coprocessor staging buffer size in bytes.")
	flag.DurationVar(&defaultConfig.DMALatency, "copro-dma-latency", defaultConfig.DMALatency, "Simulated DMA transfer latency.")
	flag.StringVar(&defaultConfig.Version, "copro-version", defaultConfig.Version, "Firmware version reported on handshake.")
	flag.Func("copro-memory", "Reserved memory size in bytes (default 0x1000000).", func(s string) error {
		v, err := strconv.ParseUint(s, 0, 32)
		if err == nil {
			defaultConfig.MemorySize = uint32(v)
		}
		return err
	})
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

// NewMachine creates a Machine with a MemDMA over region.
func (c *Config) NewMachine(region *shm.Region) (*Machine, *MemDMA, error) {
	dma := NewMemDMA(region, c.DMALatency)
	m, err := NewMachine(c.Buffers, c.StagingSize, dma)
	if err != nil {
		return nil, nil, err
	}
	m.Version = c.Version
	return m, dma, nil
}

// NewRegion creates the reserved memory region.
func (c *Config) NewRegion() *shm.Region {
	return shm.NewRegion(shm.ReservedBase, c.MemorySize)
}
