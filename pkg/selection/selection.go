// Package selection provides selection vectors, which narrow evaluation to
// a subset of input rows, and the execution modes a projector can be
// compiled for.
package selection

import "fmt"

// Mode describes whether evaluation covers all batch rows or a
// selection-filtered subset, and for the latter, the slot width of the
// selection vector the compiled code expects.
type Mode int

const (
	// ModeNone evaluates every batch row in order; no selection vector is
	// supplied.
	ModeNone Mode = iota
	// ModeUint16 evaluates the rows named by a uint16 selection vector.
	ModeUint16
	// ModeUint32 evaluates the rows named by a uint32 selection vector.
	ModeUint32
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "NONE"
	case ModeUint16:
		return "UINT16"
	case ModeUint32:
		return "UINT32"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Vector maps output slots to input rows. Slot i of the evaluation output
// is produced from input row Index(i).
type Vector interface {
	// Mode returns the slot width mode of the vector.
	Mode() Mode

	// NumSlots returns the number of selected rows.
	NumSlots() int64

	// Index returns the input row for the given output slot.
	Index(slot int64) int64
}

// Uint16Vector is a selection vector with 16-bit slots.
type Uint16Vector struct {
	indices []uint16
}

var _ Vector = (*Uint16Vector)(nil)

// NewUint16 returns a selection vector over the given row indices. The
// slice is not copied; the caller must not mutate it during evaluation.
func NewUint16(indices []uint16) *Uint16Vector {
	return &Uint16Vector{indices: indices}
}

// Mode implements Vector.
func (v *Uint16Vector) Mode() Mode { return ModeUint16 }

// NumSlots implements Vector.
func (v *Uint16Vector) NumSlots() int64 { return int64(len(v.indices)) }

// Index implements Vector.
func (v *Uint16Vector) Index(slot int64) int64 { return int64(v.indices[slot]) }

// Uint32Vector is a selection vector with 32-bit slots.
type Uint32Vector struct {
	indices []uint32
}

var _ Vector = (*Uint32Vector)(nil)

// NewUint32 returns a selection vector over the given row indices. The
// slice is not copied; the caller must not mutate it during evaluation.
func NewUint32(indices []uint32) *Uint32Vector {
	return &Uint32Vector{indices: indices}
}

// Mode implements Vector.
func (v *Uint32Vector) Mode() Mode { return ModeUint32 }

// NumSlots implements Vector.
func (v *Uint32Vector) NumSlots() int64 { return int64(len(v.indices)) }

// Index implements Vector.
func (v *Uint32Vector) Index(slot int64) int64 { return int64(v.indices[slot]) }
