package binner

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBinWeightsSumToTableSize(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	latents := make([]uint64, 2000)
	for i := range latents {
		latents[i] = uint64(rng.Intn(500))
	}

	res, err := Bin(latents, 64)
	require.NoError(t, err)

	var sum uint32
	for _, b := range res.Bins {
		require.GreaterOrEqual(t, b.Weight, uint32(1))
		sum += b.Weight
	}
	require.Equal(t, uint32(1)<<uint(res.TableLog), sum)
}

func TestBinAssignmentCoversAllInputs(t *testing.T) {
	latents := []uint64{1, 5, 5, 9, 100, 1000, 1000, 1000}
	res, err := Bin(latents, 4)
	require.NoError(t, err)
	require.Len(t, res.BinIndices, len(latents))

	for i, v := range latents {
		b := res.Bins[res.BinIndices[i]]
		require.GreaterOrEqual(t, v, b.Lower)
		require.Equal(t, v-b.Lower, res.Offsets[i])
		if b.OffsetBits < 64 {
			require.Less(t, res.Offsets[i], uint64(1)<<b.OffsetBits)
		}
	}
}

func TestBinSingleValue(t *testing.T) {
	latents := []uint64{42, 42, 42, 42}
	res, err := Bin(latents, 8)
	require.NoError(t, err)
	require.Len(t, res.Bins, 1)
	require.Equal(t, uint8(0), res.Bins[0].OffsetBits)
}

func TestBinEmptyRejected(t *testing.T) {
	_, err := Bin(nil, 8)
	require.Error(t, err)
}

func TestBinRespectsMaxBins(t *testing.T) {
	latents := make([]uint64, 5000)
	for i := range latents {
		latents[i] = uint64(i)
	}
	res, err := Bin(latents, 16)
	require.NoError(t, err)
	require.LessOrEqual(t, len(res.Bins), 16)
}
