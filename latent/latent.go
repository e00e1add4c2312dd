// Package latent implements the order-preserving bijections between each
// supported numeric type and an unsigned integer "latent" of equal width.
// Binning, delta and the tANS codec all operate purely on latents; nothing
// downstream of this package ever looks at a signed or floating-point bit
// pattern again. Latents are always carried in a uint64, in the low bits up
// to their declared width (the unused high bits are always zero).
package latent

import "math"

// Float16 is the raw bit pattern of an IEEE 754 binary16 value. Pco never
// performs floating-point arithmetic on float16 values directly (Go has no
// native type for it); FloatMult/FloatQuant reconstruction for this dtype
// operates entirely in latent (integer) space, same as every other dtype.
type Float16 uint16

// widthMask returns a mask with the low width bits set.
func widthMask(width uint) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}

	return (uint64(1) << width) - 1
}

// ToLatentUnsigned maps an unsigned integer bit pattern to its latent: the
// identity, since unsigned integers are already order-preserving.
func ToLatentUnsigned(bits uint64) uint64 { return bits }

// FromLatentUnsigned is the inverse of ToLatentUnsigned.
func FromLatentUnsigned(l uint64) uint64 { return l }

// ToLatentSigned maps a two's-complement signed integer bit pattern (zero
// extended into a uint64) to an order-preserving unsigned latent by flipping
// the sign bit at the given width.
func ToLatentSigned(bits uint64, width uint) uint64 {
	signBit := uint64(1) << (width - 1)

	return (bits ^ signBit) & widthMask(width)
}

// FromLatentSigned is the inverse of ToLatentSigned: XOR is its own inverse.
func FromLatentSigned(l uint64, width uint) uint64 {
	signBit := uint64(1) << (width - 1)

	return (l ^ signBit) & widthMask(width)
}

// ToLatentFloat maps an IEEE 754 bit pattern to an order-preserving unsigned
// latent: negative values (sign bit set) are bitwise-inverted, positive
// values have their sign bit set. This yields a total order where negative
// NaNs sort below every negative number, +0 sits immediately below every
// positive number, +Inf sits below positive NaNs, matching spec's required
// total float order.
func ToLatentFloat(bits uint64, width uint) uint64 {
	signBit := uint64(1) << (width - 1)
	if bits&signBit != 0 {
		return (^bits) & widthMask(width)
	}

	return (bits ^ signBit) & widthMask(width)
}

// FromLatentFloat is the inverse of ToLatentFloat.
func FromLatentFloat(l uint64, width uint) uint64 {
	signBit := uint64(1) << (width - 1)
	if l&signBit == 0 {
		return (^l) & widthMask(width)
	}

	return (l ^ signBit) & widthMask(width)
}

// The functions below are the monomorphized, dtype-specific entry points
// the chunk assembler dispatches to via the format.Dtype tag. Each pairs a
// concrete Go numeric type with the generic bit-pattern transforms above.

func ToLatentU16(x uint16) uint64  { return ToLatentUnsigned(uint64(x)) }
func FromLatentU16(l uint64) uint16 { return uint16(FromLatentUnsigned(l)) }

func ToLatentU32(x uint32) uint64   { return ToLatentUnsigned(uint64(x)) }
func FromLatentU32(l uint64) uint32 { return uint32(FromLatentUnsigned(l)) }

func ToLatentU64(x uint64) uint64   { return ToLatentUnsigned(x) }
func FromLatentU64(l uint64) uint64 { return FromLatentUnsigned(l) }

func ToLatentI16(x int16) uint64   { return ToLatentSigned(uint64(uint16(x)), 16) }
func FromLatentI16(l uint64) int16 { return int16(uint16(FromLatentSigned(l, 16))) }

func ToLatentI32(x int32) uint64   { return ToLatentSigned(uint64(uint32(x)), 32) }
func FromLatentI32(l uint64) int32 { return int32(uint32(FromLatentSigned(l, 32))) }

func ToLatentI64(x int64) uint64   { return ToLatentSigned(uint64(x), 64) }
func FromLatentI64(l uint64) int64 { return int64(FromLatentSigned(l, 64)) }

func ToLatentF16(x Float16) uint64   { return ToLatentFloat(uint64(x), 16) }
func FromLatentF16(l uint64) Float16 { return Float16(FromLatentFloat(l, 16)) }

func ToLatentF32(x float32) uint64 { return ToLatentFloat(uint64(math.Float32bits(x)), 32) }
func FromLatentF32(l uint64) float32 {
	return math.Float32frombits(uint32(FromLatentFloat(l, 32)))
}

func ToLatentF64(x float64) uint64 { return ToLatentFloat(math.Float64bits(x), 64) }
func FromLatentF64(l uint64) float64 {
	return math.Float64frombits(FromLatentFloat(l, 64))
}
