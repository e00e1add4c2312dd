// Package format holds the wire-level tag enums and version constants
// shared by the standalone and wrapped container layouts: dtype tags, mode
// tags, delta-kind tags and the format version history. Nothing in this
// package touches bits or bytes directly; bitio and container do that.
package format

import "fmt"

// Dtype identifies the on-wire numeric type of a chunk's numbers. Values
// are stable across format versions; new dtypes are only ever appended.
type Dtype uint8

const (
	DtypeU32 Dtype = 1
	DtypeU64 Dtype = 2
	DtypeI32 Dtype = 3
	DtypeI64 Dtype = 4
	DtypeF32 Dtype = 5
	DtypeF64 Dtype = 6
	DtypeU16 Dtype = 7
	DtypeI16 Dtype = 8
	DtypeF16 Dtype = 9
)

// Width returns the bit width of the dtype's latent representation.
func (d Dtype) Width() int {
	switch d {
	case DtypeU16, DtypeI16, DtypeF16:
		return 16
	case DtypeU32, DtypeI32, DtypeF32:
		return 32
	case DtypeU64, DtypeI64, DtypeF64:
		return 64
	default:
		return 0
	}
}

// IsFloat reports whether d is one of the floating-point dtypes.
func (d Dtype) IsFloat() bool {
	return d == DtypeF16 || d == DtypeF32 || d == DtypeF64
}

// IsSigned reports whether d is a signed integer dtype. Floats are not
// considered signed for the purposes of mode selection: IntMult only
// applies to integer dtypes regardless of signedness.
func (d Dtype) IsSigned() bool {
	return d == DtypeI16 || d == DtypeI32 || d == DtypeI64
}

// Valid reports whether d is a recognized dtype tag.
func (d Dtype) Valid() bool {
	return d.Width() != 0
}

func (d Dtype) String() string {
	switch d {
	case DtypeU16:
		return "u16"
	case DtypeI16:
		return "i16"
	case DtypeF16:
		return "f16"
	case DtypeU32:
		return "u32"
	case DtypeI32:
		return "i32"
	case DtypeF32:
		return "f32"
	case DtypeU64:
		return "u64"
	case DtypeI64:
		return "i64"
	case DtypeF64:
		return "f64"
	default:
		return fmt.Sprintf("dtype(%d)", uint8(d))
	}
}

// Mode identifies how a page's numbers are split into one or two latent
// streams before binning and entropy coding. The tie-break order when more
// than one mode clears its selection threshold is the declaration order
// here: Classic, then IntMult, then FloatMult, then FloatQuant.
type Mode uint8

const (
	ModeClassic    Mode = 0
	ModeIntMult    Mode = 1
	ModeFloatMult  Mode = 2
	ModeFloatQuant Mode = 3
)

// LatentCount returns how many latent streams a page encoded in this mode
// carries: one for Classic, two for every other mode (primary + secondary).
func (m Mode) LatentCount() int {
	if m == ModeClassic {
		return 1
	}

	return 2
}

func (m Mode) String() string {
	switch m {
	case ModeClassic:
		return "classic"
	case ModeIntMult:
		return "int_mult"
	case ModeFloatMult:
		return "float_mult"
	case ModeFloatQuant:
		return "float_quant"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Valid reports whether m is a recognized mode tag.
func (m Mode) Valid() bool {
	return m <= ModeFloatQuant
}

// DeltaKind identifies which delta transform, if any, was applied to a
// page's latent streams after mode splitting and before binning.
type DeltaKind uint8

const (
	DeltaNone        DeltaKind = 0
	DeltaConsecutive DeltaKind = 1
	DeltaLookback    DeltaKind = 2
)

func (d DeltaKind) String() string {
	switch d {
	case DeltaNone:
		return "none"
	case DeltaConsecutive:
		return "consecutive"
	case DeltaLookback:
		return "lookback"
	default:
		return fmt.Sprintf("delta(%d)", uint8(d))
	}
}

// Valid reports whether d is a recognized delta-kind tag.
func (d DeltaKind) Valid() bool {
	return d <= DeltaLookback
}

const (
	// MinDeltaOrder and MaxDeltaOrder bound the Consecutive delta order.
	MinDeltaOrder = 1
	MaxDeltaOrder = 7

	// MaxAnsSizeLog is the largest allowed ans_size_log; the tANS table
	// never exceeds 2^14 rows.
	MaxAnsSizeLog = 14

	// MaxBinCount is the largest number of bins a single latent stream
	// may be partitioned into.
	MaxBinCount = 1 << 15

	// BatchSize is the fixed number of latents that make up one decode
	// batch (and one tANS interleave group of 4 lanes).
	BatchSize = 256

	// AnsLanes is the fixed interleave factor of the tANS codec.
	AnsLanes = 4

	// CurrentVersion is the format version this implementation writes.
	// Readers accept any version <= CurrentVersion.
	CurrentVersion uint8 = 1
)

// StandaloneMagic identifies a standalone Pco file independent of any
// surrounding wrapped container.
var StandaloneMagic = [4]byte{'p', 'c', 'o', '!'}
