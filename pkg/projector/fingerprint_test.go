package projector

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/require"

	"github.com/columnbase/projector/pkg/backend"
	"github.com/columnbase/projector/pkg/expr"
	"github.com/columnbase/projector/pkg/selection"
)

// freshSumInputs builds structurally equal but distinct key inputs on each
// call.
func freshSumInputs() (*arrow.Schema, []*expr.Expression) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "a", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
		{Name: "b", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
	}, nil)
	a := expr.NewField(arrow.Field{Name: "a", Type: arrow.PrimitiveTypes.Int32, Nullable: true})
	b := expr.NewField(arrow.Field{Name: "b", Type: arrow.PrimitiveTypes.Int32, Nullable: true})
	sum := expr.NewProjection(expr.NewCall("add", []expr.Node{a, b}, arrow.PrimitiveTypes.Int32), "sum")
	return schema, []*expr.Expression{sum}
}

func likeExpr() *expr.Expression {
	s := expr.NewField(arrow.Field{Name: "s", Type: arrow.BinaryTypes.String, Nullable: true})
	pattern := expr.NewLiteral("%foo%", arrow.BinaryTypes.String)
	return expr.NewProjection(expr.NewCall("like", []expr.Node{s, pattern}, arrow.FixedWidthTypes.Boolean), "match")
}

func TestCacheKeyEquality(t *testing.T) {
	cfg := backend.DefaultConfig()

	schema1, exprs1 := freshSumInputs()
	schema2, exprs2 := freshSumInputs()
	schema3, exprs3 := freshSumInputs()

	k1 := newCacheKey(schema1, cfg, exprs1, selection.ModeNone)
	k2 := newCacheKey(schema2, cfg, exprs2, selection.ModeNone)
	k3 := newCacheKey(schema3, cfg, exprs3, selection.ModeNone)

	// Reflexive, symmetric, transitive over structurally equal inputs.
	require.True(t, k1.Equal(k1))
	require.True(t, k1.Equal(k2))
	require.True(t, k2.Equal(k1))
	require.True(t, k2.Equal(k3))
	require.True(t, k1.Equal(k3))

	// Hash is consistent with equality.
	require.Equal(t, k1.Hash(), k2.Hash())
}

func TestCacheKeyInequality(t *testing.T) {
	schema, exprs := freshSumInputs()
	cfg := backend.DefaultConfig()
	base := newCacheKey(schema, cfg, exprs, selection.ModeNone)

	t.Run("different mode", func(t *testing.T) {
		other := newCacheKey(schema, cfg, exprs, selection.ModeUint32)
		require.False(t, base.Equal(other))
		require.NotEqual(t, base.Hash(), other.Hash())
	})

	t.Run("different configuration", func(t *testing.T) {
		other := newCacheKey(schema, backend.NewConfig(backend.WithOptimize(false)), exprs, selection.ModeNone)
		require.False(t, base.Equal(other))
		require.NotEqual(t, base.Hash(), other.Hash())
	})

	t.Run("different schema", func(t *testing.T) {
		wider := arrow.NewSchema([]arrow.Field{
			{Name: "a", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
			{Name: "b", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
			{Name: "c", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		}, nil)
		other := newCacheKey(wider, cfg, exprs, selection.ModeNone)
		require.False(t, base.Equal(other))
	})

	t.Run("different expression order", func(t *testing.T) {
		_, more := freshSumInputs()
		reversed := []*expr.Expression{more[0], exprs[0]}
		forward := []*expr.Expression{exprs[0], more[0]}
		k1 := newCacheKey(schema, cfg, forward, selection.ModeNone)
		k2 := newCacheKey(schema, cfg, reversed, selection.ModeNone)
		// Both orders contain structurally equal expressions, so the keys
		// are equal; a genuinely different list is not.
		require.True(t, k1.Equal(k2))

		shorter := newCacheKey(schema, cfg, exprs, selection.ModeNone)
		require.False(t, k1.Equal(shorter))
	})
}

func TestCacheKeyShard(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "s", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)
	cfg := backend.DefaultConfig()

	t.Run("plain expressions stay in shard zero", func(t *testing.T) {
		sumSchema, exprs := freshSumInputs()
		for range 32 {
			k := newCacheKey(sumSchema, cfg, exprs, selection.ModeNone)
			require.Zero(t, k.shard)
		}
	})

	t.Run("contention-prone expressions shard within bounds", func(t *testing.T) {
		for range 64 {
			k := newCacheKey(schema, cfg, []*expr.Expression{likeExpr()}, selection.ModeNone)
			require.Less(t, k.shard, uint32(shardSlots))
		}
	})

	t.Run("keys are equal only within one shard", func(t *testing.T) {
		k1 := newCacheKey(schema, cfg, []*expr.Expression{likeExpr()}, selection.ModeNone)
		k2 := newCacheKey(schema, cfg, []*expr.Expression{likeExpr()}, selection.ModeNone)
		if k1.shard == k2.shard {
			require.True(t, k1.Equal(k2))
			require.Equal(t, k1.Hash(), k2.Hash())
		} else {
			require.False(t, k1.Equal(k2))
		}
	})
}
