// Package config loads the workload description of ringpool-stress.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/damnever/ringpool"
)

// FileConfig is the layout of a config file.
type FileConfig struct {
	Pool     PoolConfig     `yaml:"pool" json:"pool"`
	Workload WorkloadConfig `yaml:"workload" json:"workload"`
	LogLevel string         `yaml:"log_level" json:"log_level"`
}

// PoolConfig mirrors ringpool.Options.
type PoolConfig struct {
	Workers   int    `yaml:"workers" json:"workers"`
	QueueSize uint64 `yaml:"queue_size" json:"queue_size"`
	Headroom  int    `yaml:"headroom" json:"headroom"`
}

// WorkloadConfig describes the tasks submitted to the pool.
type WorkloadConfig struct {
	Tasks        int    `yaml:"tasks" json:"tasks"`
	Producers    int    `yaml:"producers" json:"producers"`
	TaskDuration string `yaml:"task_duration" json:"task_duration"`
}

// Config is the validated, ready to use form of FileConfig.
type Config struct {
	Pool         ringpool.Options
	Tasks        int
	Producers    int
	TaskDuration time.Duration
	LogLevel     slog.Level
}

// Default returns the config used when there is no config file.
func Default() Config {
	return Config{
		Pool:      ringpool.Options{QueueSize: ringpool.DefaultQueueSize},
		Tasks:     100000,
		Producers: 4,
		LogLevel:  slog.LevelInfo,
	}
}

// LoadFile reads a YAML or JSON file, the format is chosen by the extension.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config FileConfig
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return &config, nil
}

// Validate checks the values which can not be defaulted.
func (f *FileConfig) Validate() error {
	if f.Pool.Workers < 0 {
		return fmt.Errorf("pool.workers must be non-negative")
	}
	if q := f.Pool.QueueSize; q != 0 && q&(q-1) != 0 {
		return fmt.Errorf("pool.queue_size must be a power of two")
	}
	if f.Workload.Tasks < 0 {
		return fmt.Errorf("workload.tasks must be non-negative")
	}
	if f.Workload.Producers < 0 {
		return fmt.Errorf("workload.producers must be non-negative")
	}
	return nil
}

// ToConfig overlays the file values on Default.
func (f *FileConfig) ToConfig() (Config, error) {
	if err := f.Validate(); err != nil {
		return Config{}, err
	}

	config := Default()
	config.Pool.Workers = f.Pool.Workers
	config.Pool.Headroom = f.Pool.Headroom
	if f.Pool.QueueSize > 0 {
		config.Pool.QueueSize = f.Pool.QueueSize
	}
	if f.Workload.Tasks > 0 {
		config.Tasks = f.Workload.Tasks
	}
	if f.Workload.Producers > 0 {
		config.Producers = f.Workload.Producers
	}
	if f.Workload.TaskDuration != "" {
		d, err := time.ParseDuration(f.Workload.TaskDuration)
		if err != nil {
			return config, fmt.Errorf("invalid task duration: %w", err)
		}
		config.TaskDuration = d
	}
	if f.LogLevel != "" {
		level, err := ParseLevel(f.LogLevel)
		if err != nil {
			return config, err
		}
		config.LogLevel = level
	}
	return config, nil
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("unknown log level: %s", s)
	}
	return level, nil
}
