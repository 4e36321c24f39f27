// Package store implements the key-value engine: lock-striped shards
// behind a deterministic router, TTL expiry applied lazily on reads
// and reclaimed by a background sweeper. Keys and values are opaque
// byte sequences, copied on the way in and on the way out.
package store

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"stripecache/pkg/kverrors"
	"stripecache/pkg/metrics"
	"stripecache/pkg/sharding"
	"stripecache/pkg/types"
)

// Store composes the shards behind the router and validates all input
// at the boundary. Safe for concurrent use. There is no global lock;
// an operation only contends on the single shard owning its key,
// except Clear, which transiently holds every shard.
type Store struct {
	cfg    Config
	router *sharding.Router
	shards []*shard
	sweep  *sweeper
	closed atomic.Bool
}

// New constructs a store and starts its expiry sweeper. Shard count
// and per-shard tables are fixed here; only tables grow afterwards.
// Fails with kverrors.ErrInvalidArgument on a shard count that is not
// a power of two or a non-positive capacity.
func New(cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	router := sharding.NewRouter(cfg.ShardCount, cfg.HashSeed)
	s := &Store{
		cfg:    cfg,
		router: router,
		shards: make([]*shard, cfg.ShardCount),
	}
	for i := range s.shards {
		id := types.ShardID(i)
		s.shards[i] = newShard(id, cfg.InitialCapacity, router.TableSeed(id))
	}

	s.sweep = newSweeper(s, cfg.SweepInterval)
	s.sweep.Start(context.Background())

	return s, nil
}

// Close stops the background sweeper. Mutations on a closed store
// fail with kverrors.ErrClosed; reads keep working. Idempotent.
func (s *Store) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.sweep.Stop()
	}
}

// Set stores value under key. A positive ttl sets the expiry deadline
// to now+ttl; a non-positive ttl means the entry never expires.
// Overwrites bump the entry version; last writer on a key wins.
func (s *Store) Set(key types.Key, value types.Value, ttl time.Duration) error {
	if err := s.checkWritable(key); err != nil {
		return err
	}
	if err := s.validateValue(value); err != nil {
		return err
	}
	metrics.OpsTotal.WithLabelValues("set").Inc()

	var expiresAt int64
	if ttl > 0 {
		expiresAt = nowNanos() + int64(ttl)
	}
	return s.shardFor(key).set(key, value, expiresAt)
}

// Get returns the value stored under key. Absence is a normal result,
// not an error; an entry past its deadline reads as absent even
// before the sweeper reclaims it.
func (s *Store) Get(key types.Key) (types.Value, bool, error) {
	if err := s.validateKey(key); err != nil {
		return nil, false, err
	}
	metrics.OpsTotal.WithLabelValues("get").Inc()

	value, ok := s.shardFor(key).get(key, nowNanos())
	return value, ok, nil
}

// Delete removes key and reports whether a live entry was present.
// Lazy-expired entries report false.
func (s *Store) Delete(key types.Key) (bool, error) {
	if err := s.checkWritable(key); err != nil {
		return false, err
	}
	metrics.OpsTotal.WithLabelValues("delete").Inc()

	return s.shardFor(key).delete(key, nowNanos()), nil
}

// Contains reports whether a live entry exists under key.
func (s *Store) Contains(key types.Key) (bool, error) {
	if err := s.validateKey(key); err != nil {
		return false, err
	}
	metrics.OpsTotal.WithLabelValues("contains").Inc()

	return s.shardFor(key).contains(key, nowNanos()), nil
}

// Len returns the total entry count across shards. Approximate under
// concurrent mutation: shards are summed without a global lock, and
// expired-but-unswept entries are included.
func (s *Store) Len() int {
	total := 0
	for _, sh := range s.shards {
		total += sh.size()
	}
	return total
}

// Clear resets every shard to its initial capacity. The only
// operation that holds all shard locks at once; they are acquired in
// ascending shard-index order so any future multi-shard operation
// using the same order cannot deadlock against it.
func (s *Store) Clear() {
	metrics.OpsTotal.WithLabelValues("clear").Inc()

	for _, sh := range s.shards {
		sh.mu.Lock()
	}
	for _, sh := range s.shards {
		sh.table.Reset(s.cfg.InitialCapacity)
	}
	for _, sh := range s.shards {
		sh.mu.Unlock()
	}
}

// TTL returns the remaining time to live of key. NoExpiration means
// the key has no deadline. ok is false when the key is absent or
// lazy-expired.
func (s *Store) TTL(key types.Key) (ttl time.Duration, ok bool, err error) {
	if err := s.validateKey(key); err != nil {
		return 0, false, err
	}
	metrics.OpsTotal.WithLabelValues("ttl").Inc()

	ttl, ok = s.shardFor(key).ttl(key, nowNanos())
	return ttl, ok, nil
}

// Expire replaces the deadline of an existing key with now+ttl and
// reports whether the key was present. A non-positive ttl deletes the
// key immediately.
func (s *Store) Expire(key types.Key, ttl time.Duration) (bool, error) {
	if err := s.checkWritable(key); err != nil {
		return false, err
	}
	metrics.OpsTotal.WithLabelValues("expire").Inc()

	return s.shardFor(key).expire(key, ttl, nowNanos()), nil
}

// Persist removes the deadline of key, making it live until deleted.
// Reports true only if the key existed and had a deadline.
func (s *Store) Persist(key types.Key) (bool, error) {
	if err := s.checkWritable(key); err != nil {
		return false, err
	}
	metrics.OpsTotal.WithLabelValues("persist").Inc()

	return s.shardFor(key).persist(key, nowNanos()), nil
}

// IncrBy interprets the value under key as a base-10 int64 and adds
// delta, creating the key at delta when absent. The deadline, if any,
// is preserved. Arithmetic saturates at the int64 bounds. Fails with
// kverrors.ErrValueNotInteger on a non-numeric value.
func (s *Store) IncrBy(key types.Key, delta int64) (int64, error) {
	if err := s.checkWritable(key); err != nil {
		return 0, err
	}
	metrics.OpsTotal.WithLabelValues("incrby").Inc()

	return s.shardFor(key).incrBy(key, delta, nowNanos())
}

// DecrBy is IncrBy with a negated delta.
func (s *Store) DecrBy(key types.Key, delta int64) (int64, error) {
	if delta == math.MinInt64 {
		return 0, fmt.Errorf("decrement %d overflows: %w", delta, kverrors.ErrInvalidArgument)
	}
	return s.IncrBy(key, -delta)
}

// MGet returns one value per key, nil for keys that are absent or
// expired. Fails up front if any key is invalid.
func (s *Store) MGet(keys ...types.Key) ([]types.Value, error) {
	for _, key := range keys {
		if err := s.validateKey(key); err != nil {
			return nil, err
		}
	}
	metrics.OpsTotal.WithLabelValues("mget").Inc()

	now := nowNanos()
	values := make([]types.Value, len(keys))
	for i, key := range keys {
		if v, ok := s.shardFor(key).get(key, now); ok {
			values[i] = v
		}
	}
	return values, nil
}

// MSet stores every pair without a TTL. All pairs are validated
// before any is applied; application itself is per shard and not
// atomic across shards.
func (s *Store) MSet(pairs ...types.Pair) error {
	if s.closed.Load() {
		return kverrors.ErrClosed
	}
	for _, p := range pairs {
		if err := s.validateKey(p.Key); err != nil {
			return err
		}
		if err := s.validateValue(p.Value); err != nil {
			return err
		}
	}
	metrics.OpsTotal.WithLabelValues("mset").Inc()

	for _, p := range pairs {
		if err := s.shardFor(p.Key).set(p.Key, p.Value, 0); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) shardFor(key types.Key) *shard {
	return s.shards[s.router.ShardForKey(key)]
}

func (s *Store) checkWritable(key types.Key) error {
	if s.closed.Load() {
		return kverrors.ErrClosed
	}
	return s.validateKey(key)
}

func (s *Store) validateKey(key types.Key) error {
	if len(key) == 0 {
		return fmt.Errorf("empty key: %w", kverrors.ErrInvalidArgument)
	}
	if len(key) > s.cfg.MaxKeyBytes {
		return fmt.Errorf("key size %d exceeds limit %d: %w", len(key), s.cfg.MaxKeyBytes, kverrors.ErrInvalidArgument)
	}
	return nil
}

func (s *Store) validateValue(value types.Value) error {
	if len(value) > s.cfg.MaxValueBytes {
		return fmt.Errorf("value size %d exceeds limit %d: %w", len(value), s.cfg.MaxValueBytes, kverrors.ErrInvalidArgument)
	}
	return nil
}

func nowNanos() int64 {
	return time.Now().UnixNano()
}
