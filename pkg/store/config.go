package store

import (
	"fmt"
	"time"

	"stripecache/pkg/kverrors"
)

// Defaults and limits. Key and value sizes are validated at the store
// boundary against these (or the configured overrides); the slot
// table never sees an oversize entry.
const (
	DefaultShardCount      = 16
	DefaultInitialCapacity = 1024
	DefaultSweepInterval   = time.Second
	DefaultMaxKeyBytes     = 64 << 10 // 64 KiB
	DefaultMaxValueBytes   = 16 << 20 // 16 MiB
)

// NoExpiration is returned by TTL for keys that have no expiry set.
const NoExpiration time.Duration = -1

// Config controls store construction. The zero value of any field is
// replaced by its default; New validates the result.
type Config struct {
	// ShardCount is the number of lock-striped partitions. Must be a
	// power of two. Fixed for the store's lifetime.
	ShardCount int

	// InitialCapacity is the starting slot count of each shard's
	// table. Tables grow independently; shards never do.
	InitialCapacity int

	// SweepInterval is the period of the background expiry sweeper.
	SweepInterval time.Duration

	// HashSeed seeds key routing and slot probing. Zero draws a
	// random per-process seed; set a fixed value for deterministic
	// tests.
	HashSeed uint64

	MaxKeyBytes   int
	MaxValueBytes int
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() Config {
	return Config{
		ShardCount:      DefaultShardCount,
		InitialCapacity: DefaultInitialCapacity,
		SweepInterval:   DefaultSweepInterval,
		MaxKeyBytes:     DefaultMaxKeyBytes,
		MaxValueBytes:   DefaultMaxValueBytes,
	}
}

func (c Config) withDefaults() Config {
	if c.ShardCount == 0 {
		c.ShardCount = DefaultShardCount
	}
	if c.InitialCapacity == 0 {
		c.InitialCapacity = DefaultInitialCapacity
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.MaxKeyBytes == 0 {
		c.MaxKeyBytes = DefaultMaxKeyBytes
	}
	if c.MaxValueBytes == 0 {
		c.MaxValueBytes = DefaultMaxValueBytes
	}
	return c
}

func (c Config) validate() error {
	if c.ShardCount < 1 || c.ShardCount&(c.ShardCount-1) != 0 {
		return fmt.Errorf("shard count %d is not a power of two: %w", c.ShardCount, kverrors.ErrInvalidArgument)
	}
	if c.InitialCapacity < 1 {
		return fmt.Errorf("initial capacity %d: %w", c.InitialCapacity, kverrors.ErrInvalidArgument)
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("sweep interval %v: %w", c.SweepInterval, kverrors.ErrInvalidArgument)
	}
	if c.MaxKeyBytes < 1 || c.MaxValueBytes < 1 {
		return fmt.Errorf("size limits must be positive: %w", kverrors.ErrInvalidArgument)
	}
	return nil
}
