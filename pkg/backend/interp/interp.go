// Package interp provides a vectorized tree-walking interpreter that
// implements the backend contract. It exists so expression sets can be
// compiled and evaluated without a native code generator; optimizing
// backends plug into the same interfaces.
package interp

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/bitutil"

	"github.com/columnbase/projector/pkg/backend"
	"github.com/columnbase/projector/pkg/expr"
	"github.com/columnbase/projector/pkg/selection"
)

// typeSet is the interpreter's type system.
type typeSet struct{}

// Supported implements backend.TypeSet.
func (typeSet) Supported(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.BOOL, arrow.INT32, arrow.INT64, arrow.FLOAT64, arrow.STRING:
		return true
	default:
		return false
	}
}

// boundExpr evaluates a bound expression tree against one batch.
type boundExpr func(batch arrow.Record) (colVector, error)

// Backend interprets expression trees over record batches.
//
// LIKE patterns are compiled to regexps held in a per-instance cache;
// matching serializes on mu. Concurrent callers that want independent
// locks must execute against distinct Backend instances.
type Backend struct {
	cfg   *backend.Config
	exprs []*expr.Expression
	mode  selection.Mode
	progs []boundExpr

	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

var _ backend.Backend = (*Backend)(nil)

// New returns an uncompiled interpreter backend. It satisfies
// backend.Factory.
func New(cfg *backend.Config) (backend.Backend, error) {
	if cfg == nil {
		return nil, errors.New("configuration cannot be nil")
	}
	return &Backend{cfg: cfg, patterns: make(map[string]*regexp.Regexp)}, nil
}

// Types implements backend.Backend.
func (b *Backend) Types() backend.TypeSet { return typeSet{} }

// Compile implements backend.Backend. It resolves every function call to a
// kernel and binds one evaluation closure per expression.
func (b *Backend) Compile(exprs []*expr.Expression, mode selection.Mode) error {
	if len(exprs) == 0 {
		return errors.New("expressions cannot be empty")
	}

	progs := make([]boundExpr, len(exprs))
	for i, e := range exprs {
		prog, err := b.bind(e.Root())
		if err != nil {
			return fmt.Errorf("binding expression %s: %w", e, err)
		}
		progs[i] = prog
	}

	b.exprs, b.mode, b.progs = exprs, mode, progs
	return nil
}

func (b *Backend) bind(n expr.Node) (boundExpr, error) {
	switch n := n.(type) {
	case *expr.FieldNode:
		name, dt := n.Field().Name, n.Field().Type
		return func(batch arrow.Record) (colVector, error) {
			indices := batch.Schema().FieldIndices(name)
			if len(indices) == 0 {
				return nil, fmt.Errorf("column %s not found in batch", name)
			}
			col := batch.Column(indices[0])
			if !arrow.TypeEqual(col.DataType(), dt) {
				return nil, fmt.Errorf("column %s has type %s, expression declares %s", name, col.DataType(), dt)
			}
			return &arrayVec{arr: col}, nil
		}, nil

	case *expr.LiteralNode:
		v := n.Value()
		return func(arrow.Record) (colVector, error) {
			return &scalarVec{value: v}, nil
		}, nil

	case *expr.FuncNode:
		if len(n.Args()) == 0 {
			return nil, fmt.Errorf("function %s has no arguments", n.Name())
		}
		fn, err := kernels.GetForSignature(n.Name(), n.Args()[0].ReturnType())
		if err != nil {
			return nil, err
		}
		args := make([]boundExpr, len(n.Args()))
		for i, arg := range n.Args() {
			bound, err := b.bind(arg)
			if err != nil {
				return nil, err
			}
			args[i] = bound
		}
		return func(batch arrow.Record) (colVector, error) {
			vecs := make([]colVector, len(args))
			for i, arg := range args {
				vec, err := arg(batch)
				if err != nil {
					return nil, err
				}
				vecs[i] = vec
			}
			return fn(b, vecs)
		}, nil

	default:
		return nil, fmt.Errorf("unknown expression node %T", n)
	}
}

// Execute implements backend.Backend. It evaluates every compiled
// expression over batch and writes the results into the caller-shaped
// buffer sets of out.
func (b *Backend) Execute(batch arrow.Record, sel selection.Vector, out []arrow.ArrayData) error {
	if b.progs == nil {
		return errors.New("backend has not been compiled")
	}
	if len(out) != len(b.progs) {
		return fmt.Errorf("got %d output buffer sets, compiled for %d expressions", len(out), len(b.progs))
	}

	switch {
	case sel == nil && b.mode != selection.ModeNone:
		return fmt.Errorf("compiled for selection mode %s, but no selection vector supplied", b.mode)
	case sel != nil && b.mode == selection.ModeNone:
		return errors.New("selection vector supplied, but compiled for mode NONE")
	case sel != nil && sel.Mode() != b.mode:
		return fmt.Errorf("selection vector mode %s does not match compiled mode %s", sel.Mode(), b.mode)
	}

	rows := batch.NumRows()
	if sel != nil {
		rows = sel.NumSlots()
	}

	for i, prog := range b.progs {
		vec, err := prog(batch)
		if err != nil {
			return err
		}
		if err := writeColumn(out[i], vec, batch, sel, rows); err != nil {
			return fmt.Errorf("writing output field %s: %w", b.exprs[i].Result().Name, err)
		}
	}
	return nil
}

// writeColumn materializes vec into the buffer set of data for rows output
// slots, mapping each slot through sel when present.
func writeColumn(data arrow.ArrayData, vec colVector, batch arrow.Record, sel selection.Vector, rows int64) error {
	var (
		buffers = data.Buffers()
		bitmap  = buffers[0].Buf()
		id      = data.DataType().ID()
	)

	// Variable-length output appends into a resizable data buffer; offsets
	// carry one entry per slot plus a sentinel.
	if id == arrow.STRING {
		var (
			offsets = arrow.Int32Traits.CastFromBytes(buffers[1].Buf()[:int(rows+1)*arrow.Int32SizeBytes])
			dataBuf = buffers[2]
			length  int
		)
		offsets[0] = 0
		for slot := int64(0); slot < rows; slot++ {
			row, err := inputRow(slot, batch, sel)
			if err != nil {
				return err
			}
			v, err := vec.Value(int(row))
			if err != nil {
				return err
			}
			if v == nil {
				bitutil.ClearBit(bitmap, int(slot))
				offsets[slot+1] = int32(length)
				continue
			}
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("expected string value, got %T", v)
			}
			bitutil.SetBit(bitmap, int(slot))
			dataBuf.Resize(length + len(s))
			copy(dataBuf.Bytes()[length:], s)
			length += len(s)
			offsets[slot+1] = int32(length)
		}
		return nil
	}

	dataBuf := buffers[1].Buf()
	for slot := int64(0); slot < rows; slot++ {
		row, err := inputRow(slot, batch, sel)
		if err != nil {
			return err
		}
		v, err := vec.Value(int(row))
		if err != nil {
			return err
		}
		if v == nil {
			bitutil.ClearBit(bitmap, int(slot))
			continue
		}
		bitutil.SetBit(bitmap, int(slot))

		switch id {
		case arrow.BOOL:
			bitutil.SetBitTo(dataBuf, int(slot), v.(bool))
		case arrow.INT32:
			arrow.Int32Traits.CastFromBytes(dataBuf)[slot] = v.(int32)
		case arrow.INT64:
			arrow.Int64Traits.CastFromBytes(dataBuf)[slot] = v.(int64)
		case arrow.FLOAT64:
			arrow.Float64Traits.CastFromBytes(dataBuf)[slot] = v.(float64)
		default:
			return fmt.Errorf("unsupported output type %s", data.DataType())
		}
	}
	return nil
}

func inputRow(slot int64, batch arrow.Record, sel selection.Vector) (int64, error) {
	if sel == nil {
		return slot, nil
	}
	row := sel.Index(slot)
	if row < 0 || row >= batch.NumRows() {
		return 0, fmt.Errorf("selection index %d out of range for batch of %d rows", row, batch.NumRows())
	}
	return row, nil
}

// Dump implements backend.Backend. The interpreter's "generated code" is
// the set of bound expression forms.
func (b *Backend) Dump() string {
	var sb strings.Builder
	for i, e := range b.exprs {
		fmt.Fprintf(&sb, "expr %d: %s\n", i, e)
	}
	return sb.String()
}

// matchLike matches s against a LIKE pattern, compiling and caching the
// pattern's regexp on first use. The cache and the match itself serialize
// on b.mu.
func (b *Backend) matchLike(pattern, s string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	re, ok := b.patterns[pattern]
	if !ok {
		var err error
		re, err = regexp.Compile(likeToRegexp(pattern))
		if err != nil {
			return false, fmt.Errorf("invalid like pattern %q: %w", pattern, err)
		}
		b.patterns[pattern] = re
	}
	return re.MatchString(s), nil
}

// likeToRegexp translates a SQL LIKE pattern into an anchored regexp:
// % matches any run of characters, _ matches exactly one.
func likeToRegexp(pattern string) string {
	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return sb.String()
}
