package interp

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// colVector is a column of evaluated values. Value returns nil for null
// slots; an error aborts the evaluation of the whole batch.
type colVector interface {
	Value(i int) (any, error)
}

// scalarVec repeats a single value for every row.
type scalarVec struct {
	value any
}

// Value implements colVector.
func (v *scalarVec) Value(int) (any, error) { return v.value, nil }

// arrayVec adapts an arrow.Array into a colVector.
type arrayVec struct {
	arr arrow.Array
}

// Value implements colVector.
func (v *arrayVec) Value(i int) (any, error) {
	if v.arr.IsNull(i) {
		return nil, nil
	}
	switch arr := v.arr.(type) {
	case *array.Boolean:
		return arr.Value(i), nil
	case *array.Int32:
		return arr.Value(i), nil
	case *array.Int64:
		return arr.Value(i), nil
	case *array.Float64:
		return arr.Value(i), nil
	case *array.String:
		return arr.Value(i), nil
	default:
		return nil, fmt.Errorf("unsupported column type %s", v.arr.DataType())
	}
}

// funcVec computes values lazily per row.
type funcVec func(i int) (any, error)

// Value implements colVector.
func (f funcVec) Value(i int) (any, error) { return f(i) }

// kernel produces an output vector from argument vectors. Kernels receive
// the backend for access to shared execution state (the LIKE pattern
// cache).
type kernel func(b *Backend, args []colVector) (colVector, error)

// signature identifies a kernel by function name and the Arrow type of its
// first argument.
type signature struct {
	name string
	arg  arrow.Type
}

type kernelRegistry map[signature]kernel

// GetForSignature resolves the kernel for the given function name and
// first-argument type.
func (r kernelRegistry) GetForSignature(name string, arg arrow.DataType) (kernel, error) {
	fn, ok := r[signature{name: name, arg: arg.ID()}]
	if !ok {
		return nil, fmt.Errorf("no function registered for signature %s(%s)", name, arg)
	}
	return fn, nil
}

var kernels = kernelRegistry{
	{"add", arrow.INT32}:        arith[int32]("add"),
	{"add", arrow.INT64}:        arith[int64]("add"),
	{"add", arrow.FLOAT64}:      arith[float64]("add"),
	{"subtract", arrow.INT32}:   arith[int32]("subtract"),
	{"subtract", arrow.INT64}:   arith[int64]("subtract"),
	{"subtract", arrow.FLOAT64}: arith[float64]("subtract"),
	{"multiply", arrow.INT32}:   arith[int32]("multiply"),
	{"multiply", arrow.INT64}:   arith[int64]("multiply"),
	{"multiply", arrow.FLOAT64}: arith[float64]("multiply"),
	{"divide", arrow.INT32}:     arith[int32]("divide"),
	{"divide", arrow.INT64}:     arith[int64]("divide"),
	{"divide", arrow.FLOAT64}:   arith[float64]("divide"),

	{"equal", arrow.INT32}:          compare[int32]("equal"),
	{"equal", arrow.INT64}:          compare[int64]("equal"),
	{"equal", arrow.FLOAT64}:        compare[float64]("equal"),
	{"less_than", arrow.INT32}:      compare[int32]("less_than"),
	{"less_than", arrow.INT64}:      compare[int64]("less_than"),
	{"less_than", arrow.FLOAT64}:    compare[float64]("less_than"),
	{"greater_than", arrow.INT32}:   compare[int32]("greater_than"),
	{"greater_than", arrow.INT64}:   compare[int64]("greater_than"),
	{"greater_than", arrow.FLOAT64}: compare[float64]("greater_than"),

	{"upper", arrow.STRING}: mapString(strings.ToUpper),
	{"lower", arrow.STRING}: mapString(strings.ToLower),
	{"like", arrow.STRING}:  likeKernel,
}

// arith builds a binary arithmetic kernel over one numeric type. Nulls
// propagate; integer and float division by zero is an execution failure.
func arith[T int32 | int64 | float64](op string) kernel {
	return func(_ *Backend, args []colVector) (colVector, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("%s expects 2 arguments, got %d", op, len(args))
		}
		lhs, rhs := args[0], args[1]
		return funcVec(func(i int) (any, error) {
			lv, err := lhs.Value(i)
			if err != nil {
				return nil, err
			}
			rv, err := rhs.Value(i)
			if err != nil {
				return nil, err
			}
			if lv == nil || rv == nil {
				return nil, nil
			}
			l, r := lv.(T), rv.(T)
			switch op {
			case "add":
				return l + r, nil
			case "subtract":
				return l - r, nil
			case "multiply":
				return l * r, nil
			case "divide":
				if r == 0 {
					return nil, fmt.Errorf("division by zero at row %d", i)
				}
				return l / r, nil
			default:
				return nil, fmt.Errorf("unknown arithmetic operation %s", op)
			}
		}), nil
	}
}

// compare builds a binary comparison kernel over one numeric type,
// producing booleans. Nulls propagate.
func compare[T int32 | int64 | float64](op string) kernel {
	return func(_ *Backend, args []colVector) (colVector, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("%s expects 2 arguments, got %d", op, len(args))
		}
		lhs, rhs := args[0], args[1]
		return funcVec(func(i int) (any, error) {
			lv, err := lhs.Value(i)
			if err != nil {
				return nil, err
			}
			rv, err := rhs.Value(i)
			if err != nil {
				return nil, err
			}
			if lv == nil || rv == nil {
				return nil, nil
			}
			l, r := lv.(T), rv.(T)
			switch op {
			case "equal":
				return l == r, nil
			case "less_than":
				return l < r, nil
			case "greater_than":
				return l > r, nil
			default:
				return nil, fmt.Errorf("unknown comparison operation %s", op)
			}
		}), nil
	}
}

// mapString builds a unary string transformation kernel. Nulls propagate.
func mapString(fn func(string) string) kernel {
	return func(_ *Backend, args []colVector) (colVector, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("string function expects 1 argument, got %d", len(args))
		}
		arg := args[0]
		return funcVec(func(i int) (any, error) {
			v, err := arg.Value(i)
			if err != nil {
				return nil, err
			}
			if v == nil {
				return nil, nil
			}
			return fn(v.(string)), nil
		}), nil
	}
}

// likeKernel matches a string column against a constant LIKE pattern. The
// pattern's regexp lives in the backend's mutex-guarded cache, so
// concurrent evaluations of one backend instance serialize on it.
func likeKernel(b *Backend, args []colVector) (colVector, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("like expects 2 arguments, got %d", len(args))
	}
	pv, err := args[1].Value(0)
	if err != nil {
		return nil, err
	}
	pattern, ok := pv.(string)
	if !ok {
		return nil, fmt.Errorf("like pattern must be a non-null string literal, got %T", pv)
	}
	arg := args[0]
	return funcVec(func(i int) (any, error) {
		v, err := arg.Value(i)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, nil
		}
		return b.matchLike(pattern, v.(string))
	}), nil
}
