// Package config holds the tester configuration.
//
// A configuration file is either JSON or a Starlark script (".star"). Keys
// that are missing keep their defaults and unknown keys are ignored:
//
//	{"memoryCells": 16, "registerRange": [1, 12], "workerCount": 8}
//
// The Starlark form assigns the same names as globals and may compute them:
//
//	workerCount = 2 * 4
//	iverilogFlags = ["-g2012", "-Wall"]
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sarchlab/cputester/cache"
	"github.com/sarchlab/cputester/gen"
	"github.com/sarchlab/cputester/oracle"
)

// Oracle kinds.
const (
	OracleVerilog   = "verilog"
	OracleDocker    = "docker"
	OracleReference = "reference"
)

// Config holds every tester parameter.
type Config struct {
	// MemoryCells is the data memory size and the number of cells compared.
	MemoryCells int `json:"memoryCells"`
	// RegisterCount is fixed at 32.
	RegisterCount int `json:"registerCount"`
	// MaxInstructions is the instruction memory size of the design.
	// Generated programs hold MaxInstructions-1 instructions.
	MaxInstructions int `json:"maxInstructions"`
	// RegisterRange bounds generated register operands, inclusive.
	RegisterRange [2]int32 `json:"registerRange"`
	// TestCount is the number of programs to run.
	TestCount int `json:"testCount"`
	// WorkerCount is the number of parallel workers.
	WorkerCount int `json:"workerCount"`
	// TimeoutMillis bounds each emulator and oracle run.
	TimeoutMillis int `json:"timeoutMillis"`
	// FailuresDirectory receives {tag}_bin and {tag}_asm for failing programs.
	FailuresDirectory string `json:"failuresDirectory"`

	// Oracle selects verilog, docker or reference.
	Oracle                string   `json:"oracle"`
	Iverilog              string   `json:"iverilog"`
	Vvp                   string   `json:"vvp"`
	TestbenchPath         string   `json:"testbenchPath"`
	CPUFolder             string   `json:"cpuFolder"`
	IverilogFlags         []string `json:"iverilogFlags"`
	BuildDirectory        string   `json:"buildDirectory"`
	InstructionsDirectory string   `json:"instructionsDirectory"`
	MemoryArrayName       string   `json:"memoryArrayName"`
	RegistersArrayName    string   `json:"registersArrayName"`
	InstructionsArrayName string   `json:"instructionsArrayName"`
	DockerImage           string   `json:"dockerImage"`

	// QueueDepth is the job channel capacity; 0 means 4 per worker.
	QueueDepth int `json:"queueDepth"`
	// PollMillis is how long an idle worker waits before re-checking for
	// shutdown, and the coordinator's idle sleep.
	PollMillis int `json:"pollMillis"`
	// Seed seeds program generation and artifact tags; 0 picks one from
	// the clock.
	Seed int64 `json:"seed"`

	// Data cache locality model; CacheSize 0 disables it.
	CacheSize      int `json:"cacheSize"`
	CacheWays      int `json:"cacheWays"`
	CacheBlockSize int `json:"cacheBlockSize"`

	// ReportPath receives a JSON run summary when set.
	ReportPath string `json:"reportPath"`
}

// Default returns the default configuration.
func Default() *Config {
	verilog := oracle.DefaultVerilogConfig()
	dataCache := cache.DefaultConfig()

	return &Config{
		MemoryCells:       10,
		RegisterCount:     32,
		MaxInstructions:   200,
		RegisterRange:     [2]int32{1, 10},
		TestCount:         10000,
		WorkerCount:       4,
		TimeoutMillis:     5000,
		FailuresDirectory: "./fails",

		Oracle:                OracleVerilog,
		Iverilog:              verilog.Iverilog,
		Vvp:                   verilog.Vvp,
		TestbenchPath:         verilog.TestbenchPath,
		CPUFolder:             verilog.CPUFolder,
		IverilogFlags:         verilog.Flags,
		BuildDirectory:        verilog.BuildDirectory,
		InstructionsDirectory: verilog.InstructionsDirectory,
		DockerImage:           "cputester/iverilog:latest",

		PollMillis: 100,

		CacheSize:      dataCache.Size,
		CacheWays:      dataCache.Associativity,
		CacheBlockSize: dataCache.BlockSize,
	}
}

// Load reads a configuration file over the defaults. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	config := Default()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if filepath.Ext(path) == ".star" {
		data, err = starlarkToJSON(path, data)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate config script: %w", err)
		}
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// Save writes the configuration as JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the configuration before any job runs.
func (c *Config) Validate() error {
	low, high := c.RegisterRange[0], c.RegisterRange[1]

	switch {
	case c.MemoryCells < 1:
		return fmt.Errorf("memoryCells must be > 0")
	case c.RegisterCount != 32:
		return fmt.Errorf("registerCount must be 32")
	case low < 0 || high > 31 || low > high:
		return fmt.Errorf("registerRange [%d, %d] must lie within [0, 31] with low <= high", low, high)
	case high >= gen.LoopCompareReg:
		return fmt.Errorf("registerRange [%d, %d] overlaps loop registers 29-31", low, high)
	case c.MaxInstructions < 2:
		return fmt.Errorf("maxInstructions must be >= 2")
	case c.WorkerCount < 1:
		return fmt.Errorf("workerCount must be > 0")
	case c.TimeoutMillis < 1:
		return fmt.Errorf("timeoutMillis must be > 0")
	case c.TestCount < 0:
		return fmt.Errorf("testCount must be >= 0")
	case c.QueueDepth < 0:
		return fmt.Errorf("queueDepth must be >= 0")
	case c.PollMillis < 1:
		return fmt.Errorf("pollMillis must be > 0")
	}

	switch c.Oracle {
	case OracleVerilog, OracleDocker, OracleReference:
	default:
		return fmt.Errorf("unknown oracle %q", c.Oracle)
	}

	if c.CacheSize > 0 {
		if err := c.CacheConfig().Validate(); err != nil {
			return fmt.Errorf("invalid data cache: %w", err)
		}
	}

	return nil
}

// Timeout returns the per-run timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMillis) * time.Millisecond
}

// PollInterval returns the worker and coordinator poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollMillis) * time.Millisecond
}

// JobQueueDepth returns the job channel capacity.
func (c *Config) JobQueueDepth() int {
	if c.QueueDepth > 0 {
		return c.QueueDepth
	}
	return 4 * c.WorkerCount
}

// CacheEnabled reports whether the data cache model is attached.
func (c *Config) CacheEnabled() bool {
	return c.CacheSize > 0
}

// CacheConfig returns the data cache geometry.
func (c *Config) CacheConfig() cache.Config {
	config := cache.DefaultConfig()
	config.Size = c.CacheSize
	config.Associativity = c.CacheWays
	config.BlockSize = c.CacheBlockSize
	return config
}

// GeneratorConfig returns the program generator parameters.
func (c *Config) GeneratorConfig() gen.Config {
	return gen.Config{
		MemoryCells:  c.MemoryCells,
		Amount:       c.MaxInstructions - 1,
		RegisterLow:  c.RegisterRange[0],
		RegisterHigh: c.RegisterRange[1],
	}
}

// VerilogConfig returns the hardware testbench parameters.
func (c *Config) VerilogConfig() oracle.VerilogConfig {
	return oracle.VerilogConfig{
		Iverilog:              c.Iverilog,
		Vvp:                   c.Vvp,
		TestbenchPath:         c.TestbenchPath,
		CPUFolder:             c.CPUFolder,
		Flags:                 c.IverilogFlags,
		BuildDirectory:        c.BuildDirectory,
		InstructionsDirectory: c.InstructionsDirectory,
		MaxInstructions:       c.MaxInstructions,
		MemoryArrayName:       c.MemoryArrayName,
		RegistersArrayName:    c.RegistersArrayName,
		InstructionsArrayName: c.InstructionsArrayName,
	}
}

// DockerMounts returns the host paths the container needs to see.
func (c *Config) DockerMounts() []string {
	return []string{
		c.CPUFolder,
		filepath.Dir(c.TestbenchPath),
		c.BuildDirectory,
		c.InstructionsDirectory,
	}
}
