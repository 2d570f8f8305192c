// Package main is a stress driver for the ringpool worker pool.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/damnever/ringpool"
	"github.com/damnever/ringpool/internal/config"
)

func main() {
	var (
		configFile = flag.String("config", "", "config file path (YAML/JSON)")
		workers    = flag.Int("workers", 0, "number of workers, defaults to the CPU count")
		queueSize  = flag.Uint64("queue-size", 0, "task queue size, a power of two")
		tasks      = flag.Int("tasks", 0, "total number of tasks")
		producers  = flag.Int("producers", 0, "number of submitting goroutines")
		logLevel   = flag.String("log-level", "", "debug, info, warn or error")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage:\n  ringpool-stress [options]\n\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := buildConfig(*configFile, *workers, *queueSize, *tasks, *producers, *logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	cfg.Pool.Logger = logger
	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("stress run failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func buildConfig(configFile string, workers int, queueSize uint64, tasks, producers int, logLevel string) (config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		fc, err := config.LoadFile(configFile)
		if err != nil {
			return cfg, err
		}
		if cfg, err = fc.ToConfig(); err != nil {
			return cfg, err
		}
	}

	// Flags win over the file.
	if workers > 0 {
		cfg.Pool.Workers = workers
	}
	if queueSize > 0 {
		if queueSize&(queueSize-1) != 0 {
			return cfg, fmt.Errorf("queue-size must be a power of two")
		}
		cfg.Pool.QueueSize = queueSize
	}
	if tasks > 0 {
		cfg.Tasks = tasks
	}
	if producers > 0 {
		cfg.Producers = producers
	}
	if logLevel != "" {
		level, err := config.ParseLevel(logLevel)
		if err != nil {
			return cfg, err
		}
		cfg.LogLevel = level
	}
	return cfg, nil
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	pool := ringpool.New(cfg.Pool)
	defer pool.Close()

	var (
		counter atomic.Int64
		wg      sync.WaitGroup
		errc    = make(chan error, cfg.Producers)
	)
	task := func(context.Context) (int64, error) {
		if cfg.TaskDuration > 0 {
			time.Sleep(cfg.TaskDuration)
		}
		return counter.Add(1), nil
	}

	start := time.Now()
	for i := 0; i < cfg.Producers; i++ {
		n := cfg.Tasks / cfg.Producers
		if i < cfg.Tasks%cfg.Producers {
			n++
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			futures := make([]*ringpool.Future[int64], 0, n)
			for j := 0; j < n; j++ {
				f, err := ringpool.Async(ctx, pool, task)
				if err != nil {
					errc <- err
					return
				}
				futures = append(futures, f)
			}
			for _, f := range futures {
				if _, err := f.Wait(ctx); err != nil {
					errc <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errc)
	if err := <-errc; err != nil {
		return err
	}
	elapsed := time.Since(start)

	stats := pool.Stats()
	logger.Info("stress run finished",
		slog.Int("workers", stats.Workers),
		slog.Uint64("submitted", stats.Submitted),
		slog.Uint64("completed", stats.Completed),
		slog.Int64("counter", counter.Load()),
		slog.Duration("elapsed", elapsed),
		slog.Float64("tasks_per_sec", float64(cfg.Tasks)/elapsed.Seconds()),
	)
	if got := counter.Load(); got != int64(cfg.Tasks) {
		return fmt.Errorf("counter is %d, expected %d", got, cfg.Tasks)
	}
	return nil
}
