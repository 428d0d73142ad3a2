package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheHitAndMiss(t *testing.T) {
	c := NewTTLCache(0)
	defer c.Close()

	var calls int32
	resolve := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return "resolved", nil
	}

	v, err := c.GetOrResolve(context.Background(), "k", time.Minute, resolve)
	require.NoError(t, err)
	assert.Equal(t, "resolved", v)

	v, err = c.GetOrResolve(context.Background(), "k", time.Minute, resolve)
	require.NoError(t, err)
	assert.Equal(t, "resolved", v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache(0)
	defer c.Close()

	var calls int32
	resolve := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return atomic.LoadInt32(&calls), nil
	}

	_, err := c.GetOrResolve(context.Background(), "k", time.Millisecond, resolve)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = c.GetOrResolve(context.Background(), "k", time.Millisecond, resolve)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

// TestTTLCacheCollapsesConcurrentMisses is the cache-layer half of the
// "M concurrent lookups, one resolve call" guarantee: launch many
// concurrent GetOrResolve calls on the same key before any of them has
// populated the cache and confirm resolve only ran once.
func TestTTLCacheCollapsesConcurrentMisses(t *testing.T) {
	c := NewTTLCache(0)
	defer c.Close()

	var calls int32
	release := make(chan struct{})
	resolve := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "value", nil
	}

	const n = 20
	var wg sync.WaitGroup
	results := make([]any, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrResolve(context.Background(), "shared-key", time.Minute, resolve)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, v := range results {
		assert.Equal(t, "value", v)
	}
}
