package main

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/zhangyunhao116/fastrand"

	"stripecache/internal/config"
	"stripecache/pkg/store"
)

type BenchmarkResult struct {
	TotalOps      int
	SuccessfulOps int
	FailedOps     int
	Duration      time.Duration
	OpsPerSec     float64
}

func main() {
	path := "config.yaml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	initLogger(&cfg)

	s, err := store.New(cfg.Engine.StoreConfig())
	if err != nil {
		slog.Error("store construction failed", "err", err)
		os.Exit(1)
	}
	defer s.Close()

	slog.Info("store ready",
		"shards", cfg.Engine.Shards,
		"initial_capacity", cfg.Engine.InitialCapacity,
		"sweep_interval_ms", cfg.Engine.SweepIntervalMs,
	)

	fmt.Println("Test 1: Sequential Writes (100000 operations)")
	printResult("Writes", runWrites(s, 100000, 1))

	fmt.Println("\nTest 2: Concurrent Writes (100000 operations, 16 goroutines)")
	printResult("Concurrent Writes", runWrites(s, 100000, 16))

	fmt.Println("\nTest 3: Concurrent Mixed 80/20 Read/Write (200000 operations, 16 goroutines)")
	printResult("Mixed", runMixed(s, 200000, 16))

	slog.Info("benchmark complete", "entries", s.Len())
}

func runWrites(s *store.Store, totalOps, concurrency int) BenchmarkResult {
	start := time.Now()
	var wg sync.WaitGroup
	var mu sync.Mutex

	successful := 0
	failed := 0

	opsPerGoroutine := totalOps / concurrency

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(goroutineID int) {
			defer wg.Done()

			ok, bad := 0, 0
			for j := 0; j < opsPerGoroutine; j++ {
				key := fmt.Appendf(nil, "bench_key_%d_%d", goroutineID, j)
				value := fmt.Appendf(nil, "bench_value_%d_%d", goroutineID, j)
				if err := s.Set(key, value, 0); err != nil {
					bad++
				} else {
					ok++
				}
			}

			mu.Lock()
			successful += ok
			failed += bad
			mu.Unlock()
		}(i)
	}

	wg.Wait()
	duration := time.Since(start)

	return BenchmarkResult{
		TotalOps:      totalOps,
		SuccessfulOps: successful,
		FailedOps:     failed,
		Duration:      duration,
		OpsPerSec:     float64(successful) / duration.Seconds(),
	}
}

func runMixed(s *store.Store, totalOps, concurrency int) BenchmarkResult {
	const keySpace = 100000

	start := time.Now()
	var wg sync.WaitGroup
	var mu sync.Mutex

	successful := 0
	failed := 0

	opsPerGoroutine := totalOps / concurrency

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			ok, bad := 0, 0
			for j := 0; j < opsPerGoroutine; j++ {
				key := fmt.Appendf(nil, "mixed_key_%d", fastrand.Intn(keySpace))
				if fastrand.Intn(100) < 80 {
					if _, _, err := s.Get(key); err != nil {
						bad++
					} else {
						ok++
					}
				} else {
					if err := s.Set(key, key, time.Minute); err != nil {
						bad++
					} else {
						ok++
					}
				}
			}

			mu.Lock()
			successful += ok
			failed += bad
			mu.Unlock()
		}()
	}

	wg.Wait()
	duration := time.Since(start)

	return BenchmarkResult{
		TotalOps:      totalOps,
		SuccessfulOps: successful,
		FailedOps:     failed,
		Duration:      duration,
		OpsPerSec:     float64(successful) / duration.Seconds(),
	}
}

func printResult(testName string, result BenchmarkResult) {
	fmt.Printf("  Total Operations: %d\n", result.TotalOps)
	fmt.Printf("  Successful: %d\n", result.SuccessfulOps)
	fmt.Printf("  Failed: %d\n", result.FailedOps)
	fmt.Printf("  Duration: %v\n", result.Duration)
	fmt.Printf("  Operations/sec: %.2f\n", result.OpsPerSec)
}
