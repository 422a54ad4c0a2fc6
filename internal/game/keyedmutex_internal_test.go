package game

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyedMutex(t *testing.T) {
	t.Parallel()
	k := newKeyedMutex()
	keys := []string{"a", "b"}
	counters := make([]int, len(keys))

	var wg sync.WaitGroup
	for range 50 {
		for i, key := range keys {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := k.Lock(key)
				defer unlock()
				counters[i]++
			}()
		}
	}
	wg.Wait()

	require.Equal(t, []int{50, 50}, counters)
	require.Zero(t, k.len())
}
