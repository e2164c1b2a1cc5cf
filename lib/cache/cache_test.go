package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGetOrFetchWithinTTL(t *testing.T) {
	now := time.Now()
	mem := NewMemory(16)
	mem.now = func() time.Time { return now }

	svc := New(mem, zap.NewNop())
	class := Class{Name: "test", TTL: time.Minute}

	var fetches int32

	fn := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&fetches, 1)

		return []byte(`"value"`), nil
	}

	ctx := context.Background()

	for i := 0; i < 2; i++ {
		val, err := svc.GetOrFetch(ctx, "k", class, fn)
		require.NoError(t, err)
		assert.Equal(t, []byte(`"value"`), val)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&fetches), "second read within TTL must not fetch")

	// move past the TTL: the stale entry is evicted lazily and refetched
	now = now.Add(2 * time.Minute)

	_, err := svc.GetOrFetch(ctx, "k", class, fn)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fetches))
}

func TestGetOrFetchSingleFlight(t *testing.T) {
	mem := NewMemory(16)
	svc := New(mem, zap.NewNop())
	class := Class{Name: "test", TTL: time.Minute}

	var fetches int32

	release := make(chan struct{})
	fn := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&fetches, 1)
		<-release

		return []byte(`1`), nil
	}

	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			val, err := svc.GetOrFetch(context.Background(), "cold", class, fn)
			assert.NoError(t, err)
			assert.Equal(t, []byte(`1`), val)
		}()
	}

	time.Sleep(50 * time.Millisecond) // let all goroutines reach the flight
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&fetches), "concurrent cold reads must share one fetch")
}

func TestMemoryLRUBound(t *testing.T) {
	mem := NewMemory(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, mem.Set(ctx, fmt.Sprintf("k%d", i), []byte{byte(i)}, time.Minute))
	}

	assert.Equal(t, 3, mem.Len())

	// oldest entries were evicted
	_, ok, _ := mem.Get(ctx, "k0")
	assert.False(t, ok)
	_, ok, _ = mem.Get(ctx, "k4")
	assert.True(t, ok)
}

func TestFetchTyped(t *testing.T) {
	svc := New(NewMemory(16), zap.NewNop())

	type quote struct {
		USD float64 `json:"USD"`
	}

	var fetches int

	got, err := Fetch(context.Background(), svc, "ATOM/USD", ClassLiveQuote, func(ctx context.Context) (quote, error) {
		fetches++

		return quote{USD: 4.2}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, quote{USD: 4.2}, got)
	assert.Equal(t, 1, fetches)
}
