package matching

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockTable_SerializesSameID(t *testing.T) {
	locks := NewLockTable(4)
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(42)
			defer unlock()
			v := counter
			counter = v + 1
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestLockTable_DefaultShards(t *testing.T) {
	locks := NewLockTable(0)
	assert.Len(t, locks.shards, DefaultLockShards)
	assert.Equal(t, locks.shard(3), locks.shard(3+DefaultLockShards))
}
