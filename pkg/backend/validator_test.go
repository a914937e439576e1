package backend

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/require"

	"github.com/columnbase/projector/pkg/expr"
)

// numericTypes supports only int32 and int64, to exercise unsupported-type
// rejections.
type numericTypes struct{}

func (numericTypes) Supported(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.INT32, arrow.INT64:
		return true
	default:
		return false
	}
}

func testSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "a", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
		{Name: "b", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "s", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)
}

func TestValidateAccepts(t *testing.T) {
	v := NewValidator(numericTypes{}, testSchema())

	a := expr.NewField(arrow.Field{Name: "a", Type: arrow.PrimitiveTypes.Int32, Nullable: true})
	five := expr.NewLiteral(int32(5), arrow.PrimitiveTypes.Int32)
	e := expr.NewProjection(expr.NewCall("add", []expr.Node{a, five}, arrow.PrimitiveTypes.Int32), "sum")

	require.NoError(t, v.Validate(e))
}

func TestValidateRejects(t *testing.T) {
	v := NewValidator(numericTypes{}, testSchema())

	t.Run("nil expression", func(t *testing.T) {
		require.Error(t, v.Validate(nil))
	})

	t.Run("unknown field", func(t *testing.T) {
		missing := expr.NewField(arrow.Field{Name: "missing", Type: arrow.PrimitiveTypes.Int32, Nullable: true})
		err := v.Validate(expr.NewProjection(missing, "out"))
		require.ErrorContains(t, err, "missing")
		require.ErrorContains(t, err, "not found")
	})

	t.Run("field type mismatch", func(t *testing.T) {
		// "a" is int32 in the schema, the node declares int64.
		wrong := expr.NewField(arrow.Field{Name: "a", Type: arrow.PrimitiveTypes.Int64, Nullable: true})
		err := v.Validate(expr.NewProjection(wrong, "out"))
		require.ErrorContains(t, err, "has type int32")
	})

	t.Run("unsupported result type", func(t *testing.T) {
		s := expr.NewField(arrow.Field{Name: "s", Type: arrow.BinaryTypes.String, Nullable: true})
		err := v.Validate(expr.NewProjection(s, "out"))
		require.ErrorContains(t, err, "not supported")
	})

	t.Run("unsupported argument inside call", func(t *testing.T) {
		s := expr.NewField(arrow.Field{Name: "s", Type: arrow.BinaryTypes.String, Nullable: true})
		call := expr.NewCall("length", []expr.Node{s}, arrow.PrimitiveTypes.Int32)
		err := v.Validate(expr.NewProjection(call, "out"))
		require.ErrorContains(t, err, "not supported")
	})
}
