// Package modeengine chooses, per page, how to split each number's latent
// into one or two latent streams before binning: Classic (no split),
// IntMult (divisor/remainder), FloatMult (quotient/ULP-residual against a
// float scalar) or FloatQuant (shifted mantissa/residual). Classic, IntMult
// and FloatQuant operate purely on latents; FloatMult converts each latent
// back to its float value to divide by the scalar, and its residual stream
// is taken in latent space.
package modeengine

import (
	"math"
	"math/bits"

	"github.com/arloliu/pco/format"
	"github.com/arloliu/pco/latent"
)

// Decision records which mode was chosen and its parameters. Width is the
// dtype's bit width, needed to compute MID for FloatMult/FloatQuant.
type Decision struct {
	Mode    format.Mode
	Width   int
	IntMult uint64  // ModeIntMult: divisor applied to the latent
	FPMult  float64 // ModeFloatMult: scalar multiplier
	QuantK  int     // ModeFloatQuant: trailing bits shifted into the secondary stream
}

// sampleSize caps how much of a page is inspected when searching for a
// candidate mode; reconstruction is exact for every number regardless of
// how well the sampled candidate generalizes, so a bad guess only costs
// compression ratio, never correctness.
const sampleSize = 256

// Infer picks the best mode for a page's latents, using a fixed tie-break
// order: Classic is only displaced by a mode whose candidate clears a
// minimum improvement bar, and among qualifying non-Classic modes IntMult
// wins over FloatMult wins over FloatQuant.
func Infer(latents []uint64, dtype format.Dtype) Decision {
	width := dtype.Width()
	base := Decision{Mode: format.ModeClassic, Width: width}

	if len(latents) < 8 {
		return base
	}

	sample := latents
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}

	if dtype.Valid() && !dtype.IsFloat() {
		if mult, ok := inferIntMult(sample); ok {
			return Decision{Mode: format.ModeIntMult, Width: width, IntMult: mult}
		}
	}

	if dtype.IsFloat() {
		if mult, ok := inferFloatMult(sample, width); ok {
			return Decision{Mode: format.ModeFloatMult, Width: width, FPMult: mult}
		}
		if k, ok := inferFloatQuant(sample); ok {
			return Decision{Mode: format.ModeFloatQuant, Width: width, QuantK: k}
		}
	}

	return base
}

// inferIntMult looks for a common divisor across the sample's latents: if
// every sampled latent shares a GCD greater than 1, splitting by that GCD
// makes the remainder stream nearly constant (highly compressible) and the
// quotient stream a narrower-range integer.
func inferIntMult(sample []uint64) (uint64, bool) {
	g := uint64(0)
	for _, v := range sample {
		g = gcd(g, v)
		if g == 1 {
			return 0, false
		}
	}
	if g <= 1 {
		return 0, false
	}

	return g, true
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}

	return a
}

// inferFloatMult looks for a scalar m such that most sampled values are
// close to an integer multiple of m, the classic "prices in cents" or
// "measurements quantized to an instrument's resolution" pattern.
func inferFloatMult(sample []uint64, width int) (float64, bool) {
	candidates := candidateMultipliers(sample, width)
	if len(candidates) == 0 {
		return 0, false
	}

	bestMult := 0.0
	bestHits := 0
	for _, m := range candidates {
		if m == 0 {
			continue
		}
		hits := 0
		for _, l := range sample {
			x := floatValue(l, width)
			q := roundHalfEven(x / m)
			y := q * m
			if closeULP(x, y, width) {
				hits++
			}
		}
		if hits > bestHits {
			bestHits = hits
			bestMult = m
		}
	}

	if bestHits*10 < len(sample)*9 { // require >=90% of the sample to benefit
		return 0, false
	}

	return bestMult, true
}

// candidateMultipliers proposes a handful of scalars worth testing: the
// smallest nonzero magnitude in the sample, and a few decimal/binary
// fractions commonly seen in measured or financial data.
func candidateMultipliers(sample []uint64, width int) []float64 {
	var smallest float64
	for _, l := range sample {
		v := floatValue(l, width)
		av := v
		if av < 0 {
			av = -av
		}
		if av == 0 {
			continue
		}
		if smallest == 0 || av < smallest {
			smallest = av
		}
	}

	out := []float64{0.01, 0.1, 0.25, 0.5, 1, 2, 5, 10, 100}
	if smallest != 0 {
		out = append(out, smallest)
	}

	return out
}

// floatValue converts a latent (order-preserving bijection output) back to
// the real float it represents, at the given dtype width.
func floatValue(latentBits uint64, width int) float64 {
	switch width {
	case 32:
		return float64(latent.FromLatentF32(latentBits))
	default:
		return latent.FromLatentF64(latentBits)
	}
}

// floatBitsOf re-latents a real float value, giving an unsigned integer
// that is monotonic in the float's value and so safe to difference for an
// ULP-distance check.
func floatBitsOf(x float64, width int) uint64 {
	switch width {
	case 32:
		return latent.ToLatentF32(float32(x))
	default:
		return latent.ToLatentF64(x)
	}
}

// closeULP reports whether x and y are within a small, fixed number of
// ULPs of each other (comparing their raw bit patterns as integers, which
// is monotonic with magnitude within a sign).
func closeULP(x, y float64, width int) bool {
	const tolerance = 2
	bx := floatBitsOf(x, width)
	by := floatBitsOf(y, width)
	d := int64(bx) - int64(by)
	if d < 0 {
		d = -d
	}

	return d <= tolerance
}

func roundHalfEven(x float64) float64 {
	f := bitsFloor(x)
	diff := x - f
	switch {
	case diff < 0.5:
		return f
	case diff > 0.5:
		return f + 1
	default:
		if int64(f)%2 == 0 {
			return f
		}

		return f + 1
	}
}

func bitsFloor(x float64) float64 {
	i := int64(x)
	f := float64(i)
	if f > x {
		f--
	}

	return f
}

// inferFloatQuant looks for a common number of trailing zero bits across
// the sample's latents, indicating the mantissas all share unused low
// precision (e.g. values originally quantized to fewer significant bits).
func inferFloatQuant(sample []uint64) (int, bool) {
	minTZ := 64
	for _, v := range sample {
		if v == 0 {
			continue
		}
		tz := bits.TrailingZeros64(v)
		if tz < minTZ {
			minTZ = tz
		}
	}

	const minBeneficial = 4
	if minTZ < minBeneficial || minTZ == 64 {
		return 0, false
	}

	return minTZ, true
}

// Split decodes a page's latents into one or two latent streams per d.Mode.
// The second return is nil for ModeClassic. Every mode here is an exact
// bijection on latents (verified by construction, not by sampling), so
// Reconstruct always recovers the original latent regardless of how well
// the chosen parameters fit the data — a bad Infer guess only costs
// compression ratio, never correctness.
func Split(latents []uint64, d Decision) (l0, l1 []uint64) {
	switch d.Mode {
	case format.ModeIntMult:
		l0 = make([]uint64, len(latents))
		l1 = make([]uint64, len(latents))
		for i, v := range latents {
			l0[i] = v / d.IntMult
			l1[i] = v % d.IntMult
		}

		return l0, l1

	case format.ModeFloatQuant:
		mask := uint64(1)<<uint(d.QuantK) - 1
		mid := uint64(1) << uint(d.Width-1)
		l0 = make([]uint64, len(latents))
		l1 = make([]uint64, len(latents))
		for i, v := range latents {
			hi := v >> uint(d.QuantK)
			low := v & mask
			if hi<<uint(d.QuantK) < mid {
				low = mask - low
			}
			l0[i] = hi
			l1[i] = low
		}

		return l0, l1

	case format.ModeFloatMult:
		l0 = make([]uint64, len(latents))
		l1 = make([]uint64, len(latents))
		for i, v := range latents {
			x := floatValue(v, d.Width)
			q := roundHalfEven(x / d.FPMult)
			// A quotient that is NaN, infinite or too large for the stream
			// width falls back to 0, leaving the whole value in the residual.
			if !(math.Abs(q) < math.Ldexp(1, d.Width-2)) {
				q = 0
			}
			y := q * d.FPMult
			ly := floatBitsOf(y, d.Width)
			residual := int64(v) - int64(ly)
			l0[i] = zigzagEncode(int64(q))
			l1[i] = zigzagEncode(residual)
		}

		return l0, l1

	default: // ModeClassic
		return append([]uint64(nil), latents...), nil
	}
}

// Reconstruct inverts Split, recovering the original latents from the one
// or two streams it produced.
func Reconstruct(l0, l1 []uint64, d Decision) []uint64 {
	out := make([]uint64, len(l0))

	switch d.Mode {
	case format.ModeIntMult:
		for i := range l0 {
			out[i] = l0[i]*d.IntMult + l1[i]
		}

	case format.ModeFloatQuant:
		mask := uint64(1)<<uint(d.QuantK) - 1
		mid := uint64(1) << uint(d.Width-1)
		for i := range l0 {
			hi := l0[i]
			low := l1[i]
			base := hi << uint(d.QuantK)
			if base < mid {
				low = mask - low
			}
			out[i] = base | low
		}

	case format.ModeFloatMult:
		for i := range l0 {
			q := float64(zigzagDecode(l0[i]))
			y := q * d.FPMult
			ly := floatBitsOf(y, d.Width)
			residual := zigzagDecode(l1[i])
			out[i] = uint64(int64(ly) + residual)
		}

	default: // ModeClassic
		copy(out, l0)
	}

	return out
}

func zigzagEncode(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func zigzagDecode(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}
