package sharding

import (
	"fmt"
	"testing"

	"stripecache/pkg/types"
)

func TestShardForKeyDeterministic(t *testing.T) {
	a := NewRouter(16, 42)
	b := NewRouter(16, 42)

	for i := 0; i < 1000; i++ {
		key := fmt.Appendf(nil, "key%d", i)
		got := a.ShardForKey(key)
		if got != a.ShardForKey(key) {
			t.Fatalf("router not stable for key %s", key)
		}
		if got != b.ShardForKey(key) {
			t.Fatalf("routers with equal seeds disagree for key %s", key)
		}
		if int(got) >= 16 {
			t.Fatalf("shard %d out of range", got)
		}
	}
}

func TestShardForKeySeedSensitive(t *testing.T) {
	a := NewRouter(16, 1)
	b := NewRouter(16, 2)

	same := 0
	for i := 0; i < 1000; i++ {
		key := fmt.Appendf(nil, "key%d", i)
		if a.ShardForKey(key) == b.ShardForKey(key) {
			same++
		}
	}
	// Different seeds should not produce the same mapping; ~1/16 of
	// keys will still agree by chance.
	if same > 300 {
		t.Fatalf("mappings with different seeds agree on %d/1000 keys", same)
	}
}

func TestShardDistribution(t *testing.T) {
	const shards = 16
	const keys = 16000

	r := NewRouter(shards, 42)
	counts := make([]int, shards)
	for i := 0; i < keys; i++ {
		counts[r.ShardForKey(fmt.Appendf(nil, "user:%d:profile", i))]++
	}

	// Loose bounds: each shard should land within 2x of the mean.
	mean := keys / shards
	for id, n := range counts {
		if n < mean/2 || n > mean*2 {
			t.Fatalf("shard %d holds %d keys, mean is %d", id, n, mean)
		}
	}
}

func TestZeroSeedDrawsRandom(t *testing.T) {
	a := NewRouter(16, 0)
	b := NewRouter(16, 0)

	if a.Seed() == 0 || b.Seed() == 0 {
		t.Fatal("zero seed was not replaced")
	}
	if a.Seed() == b.Seed() {
		t.Fatal("two routers drew the same random seed")
	}
}

func TestTableSeedDecorrelated(t *testing.T) {
	r := NewRouter(16, 42)

	seen := map[uint64]bool{r.Seed(): true}
	for id := 0; id < 16; id++ {
		ts := r.TableSeed(types.ShardID(id))
		if seen[ts] {
			t.Fatalf("table seed for shard %d collides", id)
		}
		seen[ts] = true
	}
}
