package matching

import "sync"

// DefaultLockShards is the number of mutexes in a LockTable when none is configured.
const DefaultLockShards = 64

// LockTable serializes work per item id over a fixed set of mutexes.
// Items that hash to the same shard also serialize with each other.
type LockTable struct {
	shards []sync.Mutex
}

// NewLockTable creates a table with n shards (DefaultLockShards if n < 1).
func NewLockTable(n int) *LockTable {
	if n < 1 {
		n = DefaultLockShards
	}
	return &LockTable{shards: make([]sync.Mutex, n)}
}

// Lock acquires the shard owning id and returns its release function.
func (t *LockTable) Lock(id int64) func() {
	m := &t.shards[t.shard(id)]
	m.Lock()
	return m.Unlock
}

func (t *LockTable) shard(id int64) int {
	return int(uint64(id) % uint64(len(t.shards)))
}
