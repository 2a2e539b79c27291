package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-insights/internal/analytics"
)

type fakeResult struct {
	Title string  `json:"title"`
	Gain  float64 `json:"gain"`
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewWithClient(rdb, 5*time.Minute)
}

func TestKey_ChangesWithGenerationAndParams(t *testing.T) {
	dc1 := analytics.NewDataContext("ds-1", 1, nil, nil, nil)
	dc2 := analytics.NewDataContext("ds-1", 2, nil, nil, nil)

	k1 := Key(dc1, "audience", "30d", 4)
	k2 := Key(dc2, "audience", "30d", 4)
	k3 := Key(dc1, "audience", "90d", 4)
	k4 := Key(dc1, "frequency", "30d", 4)

	assert.NotEqual(t, k1, k2, "generation bump must invalidate")
	assert.NotEqual(t, k1, k3, "window change must miss")
	assert.NotEqual(t, k1, k4, "analyzer name must separate results")
}

func TestGetSet_RoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	var out fakeResult
	hit, err := c.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, "k", fakeResult{Title: "scale up", Gain: 1234.5}))

	hit, err = c.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "scale up", out.Title)
	assert.InDelta(t, 1234.5, out.Gain, 0.001)
}

func TestDo_ComputesOnceThenServesCached(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	calls := 0
	compute := func() (interface{}, error) {
		calls++
		return fakeResult{Title: "computed", Gain: 9.5}, nil
	}

	var first, second fakeResult
	require.NoError(t, c.Do(ctx, "k", &first, compute))
	require.NoError(t, c.Do(ctx, "k", &second, compute))

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestDo_PropagatesComputeError(t *testing.T) {
	c := newTestCache(t)
	var out fakeResult
	err := c.Do(context.Background(), "k", &out, func() (interface{}, error) {
		return nil, assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestNilCacheIsDisabled(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	hit, err := c.Get(ctx, "k", &fakeResult{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, c.Set(ctx, "k", fakeResult{}))

	calls := 0
	var out fakeResult
	require.NoError(t, c.Do(ctx, "k", &out, func() (interface{}, error) {
		calls++
		return fakeResult{Title: "fresh"}, nil
	}))
	require.NoError(t, c.Do(ctx, "k", &out, func() (interface{}, error) {
		calls++
		return fakeResult{Title: "fresh"}, nil
	}))
	assert.Equal(t, 2, calls, "nil cache always recomputes")
	assert.Equal(t, "fresh", out.Title)
	assert.NoError(t, c.Close())
}
