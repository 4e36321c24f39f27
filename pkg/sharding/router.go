package sharding

import (
	"github.com/cespare/xxhash/v2"
	"github.com/zhangyunhao116/fastrand"

	"stripecache/pkg/types"
)

// KeyHasher deterministically maps keys to shard IDs.
type KeyHasher interface {
	ShardForKey(key types.Key) types.ShardID
}

// Router maps keys to shards with seeded xxhash64. For a fixed seed
// and shard count, ShardForKey is a pure function: the same key maps
// to the same shard for the router's lifetime.
type Router struct {
	seed uint64
	mask uint64
}

// NewRouter builds a router over shardCount shards. shardCount must
// be a power of two; the store validates it before construction.
//
// A zero seed draws a random per-process seed, which defends against
// hash flooding. Pass a fixed non-zero seed when tests need a
// reproducible key-to-shard mapping.
func NewRouter(shardCount int, seed uint64) *Router {
	for seed == 0 {
		seed = fastrand.Uint64()
	}
	return &Router{
		seed: seed,
		mask: uint64(shardCount - 1),
	}
}

// Seed returns the routing seed in use.
func (r *Router) Seed() uint64 {
	return r.seed
}

// ShardForKey returns hash(key) mod shardCount.
func (r *Router) ShardForKey(key types.Key) types.ShardID {
	var d xxhash.Digest
	d.ResetWithSeed(r.seed)
	_, _ = d.Write(key)
	return types.ShardID(d.Sum64() & r.mask)
}

// TableSeed derives the seed slot tables hash with. Keys within one
// shard share their low routing-hash bits, so probing with the
// routing seed would cluster; remixing decorrelates the two.
func (r *Router) TableSeed(id types.ShardID) uint64 {
	x := r.seed ^ (uint64(id)+1)*0x9e3779b97f4a7c15
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	return x
}
