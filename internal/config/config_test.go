package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFileYAML(t *testing.T) {
	path := writeFile(t, "stress.yaml", `
pool:
  workers: 4
  queue_size: 256
  headroom: -1
workload:
  tasks: 1000
  producers: 8
  task_duration: 1ms
log_level: debug
`)
	fc, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, 4, fc.Pool.Workers)
	require.Equal(t, uint64(256), fc.Pool.QueueSize)

	cfg, err := fc.ToConfig()
	require.NoError(t, err)
	require.Equal(t, 4, cfg.Pool.Workers)
	require.Equal(t, uint64(256), cfg.Pool.QueueSize)
	require.Equal(t, -1, cfg.Pool.Headroom)
	require.Equal(t, 1000, cfg.Tasks)
	require.Equal(t, 8, cfg.Producers)
	require.Equal(t, time.Millisecond, cfg.TaskDuration)
	require.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadFileJSON(t *testing.T) {
	path := writeFile(t, "stress.json", `{
  "pool": {"workers": 2},
  "workload": {"tasks": 10}
}`)
	fc, err := LoadFile(path)
	require.NoError(t, err)

	cfg, err := fc.ToConfig()
	require.NoError(t, err)
	require.Equal(t, 2, cfg.Pool.Workers)
	require.Equal(t, uint64(1024), cfg.Pool.QueueSize)
	require.Equal(t, 10, cfg.Tasks)
	require.Equal(t, Default().Producers, cfg.Producers)
	require.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile("/nonexistent/stress.yaml")
	require.ErrorContains(t, err, "failed to read config file")

	_, err = LoadFile(writeFile(t, "stress.toml", "workers = 1"))
	require.ErrorContains(t, err, "unsupported config format")

	_, err = LoadFile(writeFile(t, "stress.yaml", "pool: [1, 2"))
	require.ErrorContains(t, err, "failed to parse YAML")

	_, err = LoadFile(writeFile(t, "stress.json", "{"))
	require.ErrorContains(t, err, "failed to parse JSON")
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name string
		fc   FileConfig
		err  string
	}{
		{"workers", FileConfig{Pool: PoolConfig{Workers: -1}}, "pool.workers"},
		{"queue size", FileConfig{Pool: PoolConfig{QueueSize: 1000}}, "power of two"},
		{"tasks", FileConfig{Workload: WorkloadConfig{Tasks: -1}}, "workload.tasks"},
		{"producers", FileConfig{Workload: WorkloadConfig{Producers: -1}}, "workload.producers"},
		{"duration", FileConfig{Workload: WorkloadConfig{TaskDuration: "soon"}}, "invalid task duration"},
		{"log level", FileConfig{LogLevel: "loud"}, "unknown log level"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.fc.ToConfig()
			require.ErrorContains(t, err, tc.err)
		})
	}
}
