package store

import (
	"math"
	"strconv"
	"sync"
	"time"

	"stripecache/pkg/clock"
	"stripecache/pkg/kverrors"
	"stripecache/pkg/metrics"
	"stripecache/pkg/slottable"
	"stripecache/pkg/types"
)

// shard is one independently lockable partition of the keyspace. All
// access to its slot table goes through mu: reads share, mutations
// (including table growth and sweeper reclamation) exclude. An entry
// is owned solely by the shard holding it.
type shard struct {
	id    types.ShardID
	mu    sync.RWMutex
	table *slottable.Table
	ver   *clock.VersionClock
}

func newShard(id types.ShardID, capacity int, tableSeed uint64) *shard {
	return &shard{
		id:    id,
		table: slottable.New(capacity, tableSeed),
		ver:   clock.NewVersion(0),
	}
}

// get returns a copy of the value under key. An entry whose deadline
// has passed is treated as absent without being deleted; deletion is
// a mutation and never happens on the read path.
func (s *shard) get(key types.Key, now int64) (types.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.table.Lookup(key)
	if !ok || e.Expired(now) {
		return nil, false
	}
	return append(types.Value(nil), e.Value...), true
}

func (s *shard) contains(key types.Key, now int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.table.Lookup(key)
	return ok && !e.Expired(now)
}

func (s *shard) set(key types.Key, value types.Value, expiresAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	grows := s.table.Grows()
	err := s.table.Insert(key, value, expiresAt, s.ver.Next())
	if s.table.Grows() > grows {
		metrics.TableGrowsTotal.Inc()
	}
	return err
}

// delete removes key if present. A lazy-expired entry is reclaimed
// (delete holds the write lock anyway) but reported as absent.
func (s *shard) delete(key types.Key, now int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.table.Lookup(key)
	if !ok {
		return false
	}
	expired := e.Expired(now)
	s.table.Remove(key)
	return !expired
}

// size returns the shard's entry count. Approximate: expired entries
// count until swept, and concurrent mutations may race the read.
func (s *shard) size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.Len()
}

func (s *shard) ttl(key types.Key, now int64) (time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.table.Lookup(key)
	if !ok || e.Expired(now) {
		return 0, false
	}
	if e.ExpiresAt == 0 {
		return NoExpiration, true
	}
	return time.Duration(e.ExpiresAt - now), true
}

// expire sets a new deadline on a live key. A non-positive ttl
// removes the key immediately, mirroring the delete-on-expire
// convention of TTL commands.
func (s *shard) expire(key types.Key, ttl time.Duration, now int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.table.Lookup(key)
	if !ok || e.Expired(now) {
		return false
	}
	if ttl <= 0 {
		s.table.Remove(key)
		return true
	}
	return s.table.SetExpiry(key, now+int64(ttl), s.ver.Next())
}

// persist clears the deadline of a live key. Reports true only when
// the key existed and actually had one.
func (s *shard) persist(key types.Key, now int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.table.Lookup(key)
	if !ok || e.Expired(now) || e.ExpiresAt == 0 {
		return false
	}
	return s.table.SetExpiry(key, 0, s.ver.Next())
}

// incrBy adjusts the integer value under key by delta, creating the
// key at delta when absent. The existing deadline is preserved;
// arithmetic saturates instead of wrapping.
func (s *shard) incrBy(key types.Key, delta int64, now int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.table.Lookup(key)
	if !ok || e.Expired(now) {
		grows := s.table.Grows()
		err := s.table.Insert(key, strconv.AppendInt(nil, delta, 10), 0, s.ver.Next())
		if s.table.Grows() > grows {
			metrics.TableGrowsTotal.Inc()
		}
		if err != nil {
			return 0, err
		}
		return delta, nil
	}

	cur, err := strconv.ParseInt(string(e.Value), 10, 64)
	if err != nil {
		return 0, kverrors.ErrValueNotInteger
	}
	next := saturatingAdd(cur, delta)
	s.table.Update(key, strconv.AppendInt(nil, next, 10), s.ver.Next())
	return next, nil
}

// sweep reclaims every expired entry in the shard. Runs under the
// write lock for at most one table scan.
func (s *shard) sweep(now int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.SweepExpired(now)
}

func saturatingAdd(a, b int64) int64 {
	sum := a + b
	if b > 0 && sum < a {
		return math.MaxInt64
	}
	if b < 0 && sum > a {
		return math.MinInt64
	}
	return sum
}
