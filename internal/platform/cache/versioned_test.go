package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Value string `json:"value"`
}

func newTestCache(t *testing.T) (*Versioned, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewVersioned(client, "ledger", time.Minute), mr
}

func TestVersionedFetchJSONCachesUntilBump(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	var calls int32
	loader := func(context.Context) (any, error) {
		n := atomic.AddInt32(&calls, 1)
		return payload{Value: string(rune('a' + n - 1))}, nil
	}

	key, err := c.BuildKey(ctx, "acct", "1")
	require.NoError(t, err)
	assert.Equal(t, "ledger:acct:1:v1", key)

	var first, second payload
	require.NoError(t, c.FetchJSON(ctx, key, &first, loader))
	require.NoError(t, c.FetchJSON(ctx, key, &second, loader))
	assert.Equal(t, "a", first.Value)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	require.NoError(t, c.Bump(ctx))
	key, err = c.BuildKey(ctx, "acct", "1")
	require.NoError(t, err)
	assert.Equal(t, "ledger:acct:1:v2", key)

	var third payload
	require.NoError(t, c.FetchJSON(ctx, key, &third, loader))
	assert.Equal(t, "b", third.Value)
}

func TestVersionedFetchJSONCoalescesConcurrentMisses(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	var calls int32
	release := make(chan struct{})
	loader := func(context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return payload{Value: "x"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var out payload
			assert.NoError(t, c.FetchJSON(ctx, "ledger:k:v1", &out, loader))
			assert.Equal(t, "x", out.Value)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestVersionedNilClientCallsLoader(t *testing.T) {
	c := NewVersioned(nil, "ledger", time.Minute)
	var out payload
	err := c.FetchJSON(context.Background(), "k", &out, func(context.Context) (any, error) {
		return payload{Value: "direct"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "direct", out.Value)
	assert.NoError(t, c.Bump(context.Background()))
}
