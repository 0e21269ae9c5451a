// Package config provides the unified configuration system for stratum.
// A single Config structure covers the execution engine and the ambient
// services around it.
//
// The configuration is organized into logical sections:
//   - Engine: worker count, partition grain, memory limit
//   - Regex: program size threshold and large-program concurrency
//   - Logging, Metrics, Tracing: observability
//   - IO: Arrow IPC and Parquet settings used by the CLI
//
// Example usage:
//
//	cfg := config.Default()
//	cfg.Engine.Workers = 8
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"runtime"
	"time"

	"github.com/ajitpratap0/stratum/pkg/errors"
	"github.com/ajitpratap0/stratum/pkg/logger"
)

// Config is the root configuration structure.
type Config struct {
	// Engine controls how kernels are partitioned and executed
	Engine EngineConfig `yaml:"engine" json:"engine"`

	// Regex controls program selection for backreference replacement
	Regex RegexConfig `yaml:"regex" json:"regex"`

	// Logging configures the global zap logger
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Metrics configures the prometheus endpoint
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Tracing configures the OpenTelemetry tracer provider
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`

	// IO configures columnar file reading and writing
	IO IOConfig `yaml:"io" json:"io"`
}

// EngineConfig contains execution settings of a stream.
type EngineConfig struct {
	// Workers is the maximum number of ranges executed concurrently (0 = NumCPU)
	Workers int `yaml:"workers" json:"workers"`
	// GrainSize is the number of elements per range, rounded up to a multiple of 64
	GrainSize int `yaml:"grain_size" json:"grain_size"`
	// MemoryLimitMB caps the bytes a stream may hold at once (0 = unlimited)
	MemoryLimitMB int `yaml:"memory_limit_mb" json:"memory_limit_mb"`
	// AutoMemoryLimit derives the limit from available system memory
	AutoMemoryLimit bool `yaml:"auto_memory_limit" json:"auto_memory_limit"`
	// MemoryFraction is the share of available memory used by AutoMemoryLimit
	MemoryFraction float64 `yaml:"memory_fraction" json:"memory_fraction"`
}

// RegexConfig contains settings of the backreference replacement kernel.
type RegexConfig struct {
	// SmallProgramThreshold is the largest instruction count run as a small program
	SmallProgramThreshold int `yaml:"small_program_threshold" json:"small_program_threshold"`
	// LargeProgramWorkers bounds concurrency for large programs (0 = Engine.Workers/2)
	LargeProgramWorkers int `yaml:"large_program_workers" json:"large_program_workers"`
}

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	Level       string   `yaml:"level" json:"level"`
	Encoding    string   `yaml:"encoding" json:"encoding"`
	Development bool     `yaml:"development" json:"development"`
	OutputPaths []string `yaml:"output_paths" json:"output_paths"`
}

// MetricsConfig contains prometheus settings.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	Enabled        bool          `yaml:"enabled" json:"enabled"`
	ServiceName    string        `yaml:"service_name" json:"service_name"`
	ServiceVersion string        `yaml:"service_version" json:"service_version"`
	SamplingRate   float64       `yaml:"sampling_rate" json:"sampling_rate"`
	BatchTimeout   time.Duration `yaml:"batch_timeout" json:"batch_timeout"`
}

// IOConfig contains columnar file settings.
type IOConfig struct {
	// IPCCompression compresses Arrow IPC record bodies: none, lz4 or zstd
	IPCCompression string `yaml:"ipc_compression" json:"ipc_compression"`
	// ParquetCompression is the Parquet column codec: none, snappy, gzip, zstd, lz4
	ParquetCompression string `yaml:"parquet_compression" json:"parquet_compression"`
	// ParquetDictionary enables dictionary encoding by default
	ParquetDictionary bool `yaml:"parquet_dictionary" json:"parquet_dictionary"`
	// ParquetStatistics enables column chunk statistics
	ParquetStatistics bool `yaml:"parquet_statistics" json:"parquet_statistics"`
	// RowGroupSize is the number of rows per Parquet row group
	RowGroupSize int64 `yaml:"row_group_size" json:"row_group_size"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Workers:        runtime.NumCPU(),
			GrainSize:      4096,
			MemoryFraction: 0.7,
		},
		Regex: RegexConfig{
			SmallProgramThreshold: 100,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
		Metrics: MetricsConfig{
			ListenAddr: ":9090",
		},
		Tracing: TracingConfig{
			ServiceName:    "stratum",
			ServiceVersion: "0.1.0",
			SamplingRate:   1.0,
			BatchTimeout:   5 * time.Second,
		},
		IO: IOConfig{
			IPCCompression:     "none",
			ParquetCompression: "snappy",
			ParquetDictionary:  true,
			ParquetStatistics:  true,
			RowGroupSize:       64 * 1024,
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Engine.Workers < 0 {
		return configError("engine.workers cannot be negative", c.Engine.Workers)
	}
	if c.Engine.GrainSize <= 0 {
		return configError("engine.grain_size must be positive", c.Engine.GrainSize)
	}
	if c.Engine.MemoryLimitMB < 0 {
		return configError("engine.memory_limit_mb cannot be negative", c.Engine.MemoryLimitMB)
	}
	if c.Engine.AutoMemoryLimit && (c.Engine.MemoryFraction <= 0 || c.Engine.MemoryFraction > 1) {
		return configError("engine.memory_fraction must be in (0, 1]", c.Engine.MemoryFraction)
	}
	if c.Regex.SmallProgramThreshold <= 0 {
		return configError("regex.small_program_threshold must be positive", c.Regex.SmallProgramThreshold)
	}
	if c.Regex.LargeProgramWorkers < 0 {
		return configError("regex.large_program_workers cannot be negative", c.Regex.LargeProgramWorkers)
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return configError("tracing.sampling_rate must be in [0, 1]", c.Tracing.SamplingRate)
	}
	switch c.IO.IPCCompression {
	case "", "none", "lz4", "zstd":
	default:
		return configError("io.ipc_compression must be none, lz4 or zstd", c.IO.IPCCompression)
	}
	switch c.IO.ParquetCompression {
	case "", "none", "snappy", "gzip", "zstd", "lz4":
	default:
		return configError("io.parquet_compression is not a known codec", c.IO.ParquetCompression)
	}
	if c.IO.RowGroupSize < 0 {
		return configError("io.row_group_size cannot be negative", c.IO.RowGroupSize)
	}
	return nil
}

// GetWorkers returns the effective worker count.
func (e *EngineConfig) GetWorkers() int {
	if e.Workers <= 0 {
		return runtime.NumCPU()
	}
	return e.Workers
}

// GetLargeProgramWorkers returns the effective worker count for large regex programs.
func (r *RegexConfig) GetLargeProgramWorkers(engineWorkers int) int {
	if r.LargeProgramWorkers > 0 {
		return r.LargeProgramWorkers
	}
	if engineWorkers/2 < 1 {
		return 1
	}
	return engineWorkers / 2
}

// Logger converts the logging section to a logger configuration.
func (l LoggingConfig) Logger() logger.Config {
	return logger.Config{
		Level:       l.Level,
		Development: l.Development,
		Encoding:    l.Encoding,
		OutputPaths: l.OutputPaths,
	}
}

func configError(msg string, value interface{}) error {
	return errors.New(errors.ErrorTypeConfig, msg).WithDetail("value", value)
}
