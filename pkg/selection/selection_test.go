package selection

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModeString(t *testing.T) {
	require.Equal(t, "NONE", ModeNone.String())
	require.Equal(t, "UINT16", ModeUint16.String())
	require.Equal(t, "UINT32", ModeUint32.String())
	require.Equal(t, "Mode(42)", Mode(42).String())
}

func TestUint16Vector(t *testing.T) {
	v := NewUint16([]uint16{3, 1, 4})

	require.Equal(t, ModeUint16, v.Mode())
	require.Equal(t, int64(3), v.NumSlots())
	require.Equal(t, int64(3), v.Index(0))
	require.Equal(t, int64(1), v.Index(1))
	require.Equal(t, int64(4), v.Index(2))
}

func TestUint32Vector(t *testing.T) {
	v := NewUint32([]uint32{0, 2})

	require.Equal(t, ModeUint32, v.Mode())
	require.Equal(t, int64(2), v.NumSlots())
	require.Equal(t, int64(0), v.Index(0))
	require.Equal(t, int64(2), v.Index(1))
}

func TestEmptyVector(t *testing.T) {
	require.Equal(t, int64(0), NewUint32(nil).NumSlots())
}
