package projector

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// bufferShape describes the buffer set one output column needs for a given
// row count: a validity bitmap, an offsets buffer for variable-length
// types, and a data buffer. It is a pure function of (type, rows); the
// allocator and the capacity validator both derive from it so they can
// never disagree.
type bufferShape struct {
	bitmapBytes  int64
	hasOffsets   bool
	offsetsBytes int64
	dataBytes    int64 // zero for variable-length types
	varlen       bool
}

// planShape computes the buffer shape for one output column.
func planShape(dt arrow.DataType, rows int64) (bufferShape, error) {
	shape := bufferShape{bitmapBytes: bitutil.BytesForBits(rows)}

	id := dt.ID()
	switch {
	case arrow.IsBinaryLike(id):
		// The content size of varlen output is unknown before execution;
		// only the offsets buffer has a fixed minimum (one 32-bit offset
		// per row plus a sentinel).
		shape.varlen = true
		shape.hasOffsets = true
		shape.offsetsBytes = bitutil.BytesForBits((rows + 1) * 32)

	case isFixedWidth(dt):
		width := dt.(arrow.FixedWidthDataType).BitWidth()
		shape.dataBytes = bitutil.BytesForBits(rows * int64(width))

	default:
		return bufferShape{}, fmt.Errorf("%w %s", ErrUnsupportedType, dt)
	}
	return shape, nil
}

func isFixedWidth(dt arrow.DataType) bool {
	if _, ok := dt.(arrow.FixedWidthDataType); !ok {
		return false
	}
	return arrow.IsPrimitive(dt.ID()) || arrow.IsDecimal(dt.ID())
}

// allocArrayData allocates a buffer set shaped for one output column of
// rows rows from mem. Variable-length data buffers start empty and grow
// during execution; all buffers are resizable.
func allocArrayData(dt arrow.DataType, rows int64, mem memory.Allocator) (arrow.ArrayData, error) {
	shape, err := planShape(dt, rows)
	if err != nil {
		return nil, err
	}

	bitmap := memory.NewResizableBuffer(mem)
	bitmap.Resize(int(shape.bitmapBytes))
	buffers := []*memory.Buffer{bitmap}

	if shape.hasOffsets {
		offsets := memory.NewResizableBuffer(mem)
		offsets.Resize(int(shape.offsetsBytes))
		buffers = append(buffers, offsets)
	}

	data := memory.NewResizableBuffer(mem)
	data.Resize(int(shape.dataBytes))
	if dt.ID() == arrow.BOOL {
		// Bit-packed storage may be only partially written during
		// execution; unwritten trailing bits must not expose uninitialized
		// memory.
		memory.Set(data.Bytes(), 0)
	}
	buffers = append(buffers, data)

	out := array.NewData(dt, int(rows), buffers, nil, array.UnknownNullCount, 0)
	for _, b := range buffers {
		b.Release()
	}
	return out, nil
}

// validateArrayData checks a caller-supplied buffer set against the shape
// contract for rows rows. Buffers may be larger than the minimum; the
// variable-length data buffer must additionally be resizable since its
// content size is unknown before execution.
func validateArrayData(data arrow.ArrayData, field arrow.Field, rows int64) error {
	shape, err := planShape(field.Type, rows)
	if err != nil {
		return err
	}

	buffers := data.Buffers()
	if len(buffers) < 2 {
		return fmt.Errorf("%w: buffer set for field %s must have at least 2 buffers, got %d",
			ErrInvalidArgument, field.Name, len(buffers))
	}

	bitmap := buffers[0]
	if bitmap == nil || int64(bitmap.Cap()) < shape.bitmapBytes {
		return fmt.Errorf("%w: bitmap buffer too small for field %s, expected minimum %d, actual %d",
			ErrInvalidArgument, field.Name, shape.bitmapBytes, bufferCap(bitmap))
	}

	if shape.varlen {
		if len(buffers) < 3 {
			return fmt.Errorf("%w: buffer set for variable-length field %s must have 3 buffers, got %d",
				ErrInvalidArgument, field.Name, len(buffers))
		}
		offsets := buffers[1]
		if offsets == nil || int64(offsets.Cap()) < shape.offsetsBytes {
			return fmt.Errorf("%w: offsets buffer too small for field %s, minimum required %d, actual %d",
				ErrInvalidArgument, field.Name, shape.offsetsBytes, bufferCap(offsets))
		}
		if data := buffers[2]; data == nil || !data.Mutable() {
			return fmt.Errorf("%w: data buffer for variable-length field %s must be resizable",
				ErrInvalidArgument, field.Name)
		}
		return nil
	}

	if data := buffers[1]; data == nil || int64(data.Cap()) < shape.dataBytes {
		return fmt.Errorf("%w: data buffer too small for field %s, expected minimum %d, actual %d",
			ErrInvalidArgument, field.Name, shape.dataBytes, bufferCap(data))
	}
	return nil
}

func bufferCap(b *memory.Buffer) int64 {
	if b == nil {
		return 0
	}
	return int64(b.Cap())
}
