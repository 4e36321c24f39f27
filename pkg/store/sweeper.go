package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"stripecache/pkg/metrics"
)

// sweeper reclaims expired entries in the background so memory does
// not grow unboundedly from lazy expiry alone. It holds at most one
// shard's write lock at a time and releases it before moving on, so
// foreground traffic is never blocked for longer than one shard scan.
//
// Failures never reach foreground callers; they are reported through
// the log and the sweep error counter.
type sweeper struct {
	store    *Store
	interval time.Duration

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func newSweeper(s *Store, interval time.Duration) *sweeper {
	return &sweeper{
		store:    s,
		interval: interval,
		cancel:   func() {},
	}
}

func (w *sweeper) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.store.sweepPass(ctx)
			}
		}
	}()
}

// Stop cancels the sweep loop and waits for it to exit. A pass in
// flight finishes its current shard first; no shard is ever left
// locked or half-scanned.
func (w *sweeper) Stop() {
	w.cancel()
	w.wg.Wait()
}

// sweepPass visits every shard in turn and reclaims its expired
// entries. The stop signal is checked between shards, never mid-scan,
// so a shard's tombstone state is always consistent. Running a pass
// twice with no intervening writes is a no-op the second time.
func (s *Store) sweepPass(ctx context.Context) int {
	defer func() {
		if r := recover(); r != nil {
			metrics.SweepErrorsTotal.Inc()
			slog.Error("sweep pass failed", "panic", r)
		}
	}()

	reclaimed := 0
	for _, sh := range s.shards {
		select {
		case <-ctx.Done():
			return reclaimed
		default:
		}
		reclaimed += sh.sweep(nowNanos())
	}

	metrics.SweepPassesTotal.Inc()
	if reclaimed > 0 {
		metrics.SweptEntriesTotal.Add(float64(reclaimed))
		slog.Debug("sweep pass complete", "reclaimed", reclaimed, "shards", len(s.shards))
	}
	return reclaimed
}
