package clock

import (
	"sync/atomic"

	"stripecache/pkg/types"
)

// VersionClock hands out monotonically increasing entry versions.
// Safe for concurrent use.
type VersionClock struct {
	v atomic.Uint64
}

// NewVersion returns a clock whose next version is init+1.
func NewVersion(init types.Version) *VersionClock {
	var c VersionClock
	c.v.Store(uint64(init))
	return &c
}

// Next returns the next version.
func (c *VersionClock) Next() types.Version {
	return types.Version(c.v.Add(1))
}

// Current returns the most recently issued version.
func (c *VersionClock) Current() types.Version {
	return types.Version(c.v.Load())
}
