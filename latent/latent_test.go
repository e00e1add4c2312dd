package latent

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignedRoundTrip(t *testing.T) {
	for _, v := range []int16{math.MinInt16, -1000, -1, 0, 1, 1000, math.MaxInt16} {
		l := ToLatentI16(v)
		require.Equal(t, v, FromLatentI16(l))
	}
}

func TestSignedOrderPreserving(t *testing.T) {
	values := []int32{math.MinInt32, -100, -1, 0, 1, 100, math.MaxInt32}
	var prev uint64
	for i, v := range values {
		l := ToLatentI32(v)
		if i > 0 {
			require.Less(t, prev, l)
		}
		prev = l
	}
}

func TestFloatRoundTrip(t *testing.T) {
	values := []float64{
		math.Inf(-1), -1e300, -1.5, -0.0, 0.0, 1.5, 1e300, math.Inf(1),
		math.NaN(), math.Copysign(math.NaN(), -1),
	}
	for _, v := range values {
		l := ToLatentF64(v)
		got := FromLatentF64(l)
		if math.IsNaN(v) {
			require.True(t, math.IsNaN(got))
			require.Equal(t, math.Signbit(v), math.Signbit(got))
		} else {
			require.Equal(t, v, got)
		}
	}
}

func TestFloatTotalOrder(t *testing.T) {
	negNaN := math.Copysign(math.NaN(), -1)
	posNaN := math.NaN()
	ordered := []float64{negNaN, math.Inf(-1), -1.0, -0.0, 0.0, 1.0, math.Inf(1), posNaN}

	var prev uint64
	for i, v := range ordered {
		l := ToLatentF64(v)
		if i > 0 {
			require.LessOrEqual(t, prev, l, "index %d (%v) should sort >= previous", i, v)
		}
		prev = l
	}
}

func TestFloat32RoundTrip(t *testing.T) {
	for _, v := range []float32{-3.25, -0.0, 0.0, 3.25, float32(math.Inf(1)), float32(math.Inf(-1))} {
		l := ToLatentF32(v)
		require.Equal(t, v, FromLatentF32(l))
	}
}

func TestFloat16RoundTrip(t *testing.T) {
	for _, v := range []Float16{0x0000, 0x8000, 0x3C00, 0xBC00, 0x7BFF, 0xFBFF} {
		l := ToLatentF16(v)
		require.Equal(t, v, FromLatentF16(l))
	}
}

func TestUnsignedRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, math.MaxUint32, math.MaxUint64} {
		require.Equal(t, v, FromLatentU64(ToLatentU64(v)))
	}
}
