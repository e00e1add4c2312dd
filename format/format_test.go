package format

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDtypeWidthAndKind(t *testing.T) {
	cases := []struct {
		d        Dtype
		width    int
		isFloat  bool
		isSigned bool
	}{
		{DtypeU16, 16, false, false},
		{DtypeI16, 16, false, true},
		{DtypeF16, 16, true, false},
		{DtypeU32, 32, false, false},
		{DtypeI32, 32, false, true},
		{DtypeF32, 32, true, false},
		{DtypeU64, 64, false, false},
		{DtypeI64, 64, false, true},
		{DtypeF64, 64, true, false},
	}
	for _, c := range cases {
		require.Equal(t, c.width, c.d.Width())
		require.Equal(t, c.isFloat, c.d.IsFloat())
		require.Equal(t, c.isSigned, c.d.IsSigned())
		require.True(t, c.d.Valid())
	}

	require.False(t, Dtype(0).Valid())
	require.False(t, Dtype(200).Valid())
}

func TestModeLatentCountAndTieBreakOrder(t *testing.T) {
	require.Equal(t, 1, ModeClassic.LatentCount())
	require.Equal(t, 2, ModeIntMult.LatentCount())
	require.Equal(t, 2, ModeFloatMult.LatentCount())
	require.Equal(t, 2, ModeFloatQuant.LatentCount())

	require.True(t, ModeClassic < ModeIntMult)
	require.True(t, ModeIntMult < ModeFloatMult)
	require.True(t, ModeFloatMult < ModeFloatQuant)

	require.True(t, ModeFloatQuant.Valid())
	require.False(t, Mode(4).Valid())
}

func TestDeltaKindValid(t *testing.T) {
	require.True(t, DeltaLookback.Valid())
	require.False(t, DeltaKind(3).Valid())
}

func TestStandaloneMagic(t *testing.T) {
	require.Equal(t, "pco!", string(StandaloneMagic[:]))
}
