package projector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/columnbase/projector/pkg/backend"
	"github.com/columnbase/projector/pkg/selection"
)

func TestCacheGetPut(t *testing.T) {
	c, err := newCache(8)
	require.NoError(t, err)

	schema, exprs := freshSumInputs()
	key := newCacheKey(schema, backend.DefaultConfig(), exprs, selection.ModeNone)

	_, ok := c.get(key)
	require.False(t, ok)

	p := &Projector{}
	c.put(key, p, time.Millisecond)

	got, ok := c.get(key)
	require.True(t, ok)
	require.Same(t, p, got)
	require.Equal(t, 1, c.len())
}

func TestCachePutReplacesEqualKey(t *testing.T) {
	c, err := newCache(8)
	require.NoError(t, err)

	schema, exprs := freshSumInputs()
	cfg := backend.DefaultConfig()
	k1 := newCacheKey(schema, cfg, exprs, selection.ModeNone)
	k2 := newCacheKey(schema, cfg, exprs, selection.ModeNone)
	require.True(t, k1.Equal(k2))

	first, second := &Projector{}, &Projector{}
	c.put(k1, first, time.Millisecond)
	c.put(k2, second, time.Millisecond)

	// Last write wins; the chain does not grow.
	got, ok := c.get(k1)
	require.True(t, ok)
	require.Same(t, second, got)
	require.Equal(t, 1, c.len())
}

func TestCacheHashCollisionDoesNotAlias(t *testing.T) {
	c, err := newCache(8)
	require.NoError(t, err)

	schema, exprs := freshSumInputs()
	cfg := backend.DefaultConfig()

	// Forge two keys with identical digests but different expression
	// lists: a collision must chain, never alias.
	k1 := newCacheKey(schema, cfg, exprs, selection.ModeNone)
	k2 := &cacheKey{
		hash:        k1.hash,
		schema:      schema,
		cfg:         cfg,
		exprStrings: []string{"int32 subtract((int32) a, (int32) b) => diff"},
		mode:        selection.ModeNone,
	}
	require.False(t, k1.Equal(k2))

	p1, p2 := &Projector{}, &Projector{}
	c.put(k1, p1, time.Millisecond)

	_, ok := c.get(k2)
	require.False(t, ok)

	c.put(k2, p2, time.Millisecond)

	got1, ok := c.get(k1)
	require.True(t, ok)
	require.Same(t, p1, got1)

	got2, ok := c.get(k2)
	require.True(t, ok)
	require.Same(t, p2, got2)
	require.Equal(t, 2, c.len())
}

func TestCacheBounded(t *testing.T) {
	c, err := newCache(2)
	require.NoError(t, err)

	cfg := backend.DefaultConfig()
	var keys []*cacheKey
	for _, mode := range []selection.Mode{selection.ModeNone, selection.ModeUint16, selection.ModeUint32} {
		schema, exprs := freshSumInputs()
		key := newCacheKey(schema, cfg, exprs, mode)
		c.put(key, &Projector{}, time.Millisecond)
		keys = append(keys, key)
	}

	// The eviction policy is the store's own; only the bound matters here.
	require.LessOrEqual(t, c.len(), 2)

	_, ok := c.get(keys[2])
	require.True(t, ok, "most recent entry must survive")
}
