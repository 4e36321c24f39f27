package types

// Key is an immutable byte slice type alias used for clarity.
type Key = []byte

// Value is an immutable byte slice type alias used for clarity.
type Value = []byte

// ShardID identifies a logical shard.
type ShardID uint32

// Version is a monotonically increasing per-entry counter, bumped on
// every write to the entry.
type Version uint64

// Pair couples a key with a value for bulk operations.
type Pair struct {
	Key   Key
	Value Value
}
