// Package slottable implements the open-addressed storage cell array
// backing one shard. The table itself is not safe for concurrent use;
// the owning shard serializes access to it.
package slottable

import (
	"bytes"
	"fmt"
	"math/bits"
	"time"

	"github.com/cespare/xxhash/v2"

	"stripecache/pkg/kverrors"
	"stripecache/pkg/types"
)

const (
	// MinCapacity is the smallest slot count a table is created with.
	MinCapacity = 8

	// maxCapacity bounds growth; a grow past it fails with
	// kverrors.ErrOutOfMemory instead of attempting the allocation.
	maxCapacity = 1 << 30
)

const (
	slotEmpty byte = iota
	slotLive
	slotTombstone
)

// Entry is one stored key-value pair. ExpiresAt is a unix-nanosecond
// deadline; zero means the entry never expires.
type Entry struct {
	Key       types.Key
	Value     types.Value
	ExpiresAt int64
	Version   types.Version
}

// Expired reports whether the entry's deadline has passed at now.
func (e *Entry) Expired(now int64) bool {
	return e.ExpiresAt != 0 && e.ExpiresAt <= now
}

type slot struct {
	state byte
	hash  uint64
	entry Entry
}

// Table stores entries in a contiguous slot array with linear probing.
// Deletion leaves a tombstone so probe sequences stay intact until the
// next rehash. The probe sequence is deterministic for a given seed
// and capacity.
type Table struct {
	seed  uint64
	slots []slot
	live  int // live entries, including expired ones not yet swept
	used  int // live + tombstones; drives the load factor
	grows int
}

// New creates a table with at least capacity slots, rounded up to a
// power of two and clamped to MinCapacity.
func New(capacity int, seed uint64) *Table {
	return &Table{
		seed:  seed,
		slots: make([]slot, roundCapacity(capacity)),
	}
}

func roundCapacity(capacity int) int {
	if capacity < MinCapacity {
		return MinCapacity
	}
	if capacity&(capacity-1) == 0 {
		return capacity
	}
	return 1 << bits.Len(uint(capacity))
}

func (t *Table) hashKey(key types.Key) uint64 {
	var d xxhash.Digest
	d.ResetWithSeed(t.seed)
	_, _ = d.Write(key)
	return d.Sum64()
}

// find probes from hash mod capacity, skipping tombstones, and stops
// at the first empty slot or the live slot holding key.
func (t *Table) find(key types.Key, hash uint64) (int, bool) {
	mask := uint64(len(t.slots) - 1)
	for i := hash & mask; ; i = (i + 1) & mask {
		s := &t.slots[i]
		switch s.state {
		case slotEmpty:
			return -1, false
		case slotLive:
			if s.hash == hash && bytes.Equal(s.entry.Key, key) {
				return int(i), true
			}
		}
	}
}

// Lookup returns the entry stored under key. The returned slices are
// owned by the table; callers copy before releasing shard access.
func (t *Table) Lookup(key types.Key) (Entry, bool) {
	if i, ok := t.find(key, t.hashKey(key)); ok {
		return t.slots[i].entry, true
	}
	return Entry{}, false
}

// Insert writes key/value, overwriting any existing live entry in
// place. Key and value bytes are copied; the table owns its entries.
// Grows the table first when the insertion would push the load factor
// past 3/4.
func (t *Table) Insert(key types.Key, value types.Value, expiresAt int64, version types.Version) error {
	hash := t.hashKey(key)
	if i, ok := t.find(key, hash); ok {
		e := &t.slots[i].entry
		e.Value = append(e.Value[:0], value...)
		e.ExpiresAt = expiresAt
		e.Version = version
		return nil
	}

	if (t.used+1)*4 > len(t.slots)*3 {
		if err := t.grow(); err != nil {
			return err
		}
	}

	i, reused := t.findInsertSlot(key, hash)
	t.slots[i] = slot{
		state: slotLive,
		hash:  hash,
		entry: Entry{
			Key:       append(types.Key(nil), key...),
			Value:     append(types.Value(nil), value...),
			ExpiresAt: expiresAt,
			Version:   version,
		},
	}
	t.live++
	if !reused {
		t.used++
	}
	return nil
}

// findInsertSlot returns the first tombstone on the probe sequence,
// or the terminating empty slot when there is none. Callers have
// already established that key is absent.
func (t *Table) findInsertSlot(key types.Key, hash uint64) (idx int, reusedTombstone bool) {
	mask := uint64(len(t.slots) - 1)
	firstTomb := -1
	for i := hash & mask; ; i = (i + 1) & mask {
		switch t.slots[i].state {
		case slotEmpty:
			if firstTomb >= 0 {
				return firstTomb, true
			}
			return int(i), false
		case slotTombstone:
			if firstTomb < 0 {
				firstTomb = int(i)
			}
		}
	}
}

// Update overwrites the value of an existing live entry, preserving
// its expiry deadline. Reports whether the key was present.
func (t *Table) Update(key types.Key, value types.Value, version types.Version) bool {
	i, ok := t.find(key, t.hashKey(key))
	if !ok {
		return false
	}
	e := &t.slots[i].entry
	e.Value = append(e.Value[:0], value...)
	e.Version = version
	return true
}

// SetExpiry replaces the expiry deadline of an existing live entry.
// Reports whether the key was present.
func (t *Table) SetExpiry(key types.Key, expiresAt int64, version types.Version) bool {
	i, ok := t.find(key, t.hashKey(key))
	if !ok {
		return false
	}
	e := &t.slots[i].entry
	e.ExpiresAt = expiresAt
	e.Version = version
	return true
}

// Remove marks the slot holding key as a tombstone. Reports whether
// an entry was present. The table never shrinks on removal.
func (t *Table) Remove(key types.Key) bool {
	i, ok := t.find(key, t.hashKey(key))
	if !ok {
		return false
	}
	t.slots[i] = slot{state: slotTombstone}
	t.live--
	return true
}

// SweepExpired converts every live slot whose deadline has passed at
// now into a tombstone and returns how many entries were reclaimed.
func (t *Table) SweepExpired(now int64) int {
	reclaimed := 0
	for i := range t.slots {
		s := &t.slots[i]
		if s.state == slotLive && s.entry.Expired(now) {
			t.slots[i] = slot{state: slotTombstone}
			t.live--
			reclaimed++
		}
	}
	return reclaimed
}

// grow rehashes all live, non-expired entries into a table of double
// capacity. Tombstones and expired entries are dropped. Must run
// under the shard's exclusive access, like every other mutation.
func (t *Table) grow() error {
	newCap, err := grownCapacity(len(t.slots))
	if err != nil {
		return err
	}

	now := time.Now().UnixNano()
	old := t.slots
	t.slots = make([]slot, newCap)
	t.live = 0
	t.used = 0
	t.grows++

	mask := uint64(newCap - 1)
	for i := range old {
		s := &old[i]
		if s.state != slotLive || s.entry.Expired(now) {
			continue
		}
		for j := s.hash & mask; ; j = (j + 1) & mask {
			if t.slots[j].state == slotEmpty {
				t.slots[j] = slot{state: slotLive, hash: s.hash, entry: s.entry}
				break
			}
		}
		t.live++
		t.used++
	}
	return nil
}

func grownCapacity(cur int) (int, error) {
	if cur >= maxCapacity {
		return 0, fmt.Errorf("slot table grow past %d slots: %w", maxCapacity, kverrors.ErrOutOfMemory)
	}
	return cur * 2, nil
}

// Len returns the number of live entries. Expired entries count until
// a sweep or rehash reclaims them.
func (t *Table) Len() int {
	return t.live
}

// Capacity returns the current slot count.
func (t *Table) Capacity() int {
	return len(t.slots)
}

// Grows returns how many times the table has rehashed into a larger
// slot array.
func (t *Table) Grows() int {
	return t.grows
}

// Reset discards all entries and reallocates the slot array at the
// given capacity.
func (t *Table) Reset(capacity int) {
	t.slots = make([]slot, roundCapacity(capacity))
	t.live = 0
	t.used = 0
}
