package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTrip(t *testing.T) {
	c := New(time.Minute)

	c.Set("k", "v", 0)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestGetMissingKey(t *testing.T) {
	c := New(time.Minute)

	_, ok := c.Get("absent")
	assert.False(t, ok)
}

func TestLazyExpiry(t *testing.T) {
	c := New(time.Minute)
	clock := time.Now()
	c.now = func() time.Time { return clock }

	c.Set("k", "v", 10*time.Second)

	clock = clock.Add(9 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	clock = clock.Add(2 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry must be evicted on read")
}

func TestDeleteAndClear(t *testing.T) {
	c := New(time.Minute)

	c.Set("a", 1, 0)
	c.Set("b", 2, 0)

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestSweeperEvictsExpired(t *testing.T) {
	c := New(time.Minute)
	var mu sync.Mutex
	clock := time.Now()
	c.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	}

	c.Set("stale", "v", 5*time.Millisecond)
	c.Set("fresh", "v", time.Hour)

	mu.Lock()
	clock = clock.Add(time.Second)
	mu.Unlock()

	stop := c.StartSweeper(5 * time.Millisecond)
	defer stop()

	require.Eventually(t, func() bool {
		return c.Len() == 1
	}, time.Second, 5*time.Millisecond)

	_, ok := c.Get("fresh")
	assert.True(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	c := New(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("k%d", j%10)
				c.Set(key, n, 0)
				c.Get(key)
				if j%50 == 0 {
					c.Delete(key)
				}
			}
		}(i)
	}
	wg.Wait()
}
