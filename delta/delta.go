// Package delta applies (and inverts) a page's chosen delta transform on
// each latent stream produced by mode splitting, before binning. Three kinds are
// supported: None (identity), Consecutive (order-k finite difference,
// generalizing the delta-of-delta scheme time-series encoders use) and
// Lookback (difference against a fixed distance back, for periodic data).
// All arithmetic happens in latent space modulo 2^width, so encode and
// decode never need to reason about the original signed/float value.
package delta

import (
	"math/bits"

	"github.com/arloliu/pco/errs"
	"github.com/arloliu/pco/format"
)

// Config describes one page's delta transform and its parameters.
type Config struct {
	Kind      format.DeltaKind
	Order     int // Consecutive: finite-difference order, MinDeltaOrder..MaxDeltaOrder
	WindowLog int // Lookback: lookback distance is 1<<WindowLog
	StateLog  int // Lookback: carried on the wire; Encode and Decode do not use it
}

// maxWindowLog bounds how far back Lookback may reach: 1<<20 positions,
// i.e. 4096 batches of the fixed BatchSize.
const maxWindowLog = 20

// Encode applies cfg's delta transform to latents (each a width-bit latent
// value). It returns the transformed stream (same length as latents minus
// however many leading values were absorbed into moments) and the moments
// needed by Decode to invert the transform.
func Encode(latents []uint64, width int, cfg Config) (out []uint64, moments []uint64, err error) {
	switch cfg.Kind {
	case format.DeltaNone:
		return append([]uint64(nil), latents...), nil, nil

	case format.DeltaConsecutive:
		if cfg.Order < format.MinDeltaOrder || cfg.Order > format.MaxDeltaOrder {
			return nil, nil, errs.Wrap(errs.KindInvalidConfig, errs.ErrInvalidConfig, "delta.Encode", "order out of range")
		}
		if len(latents) <= cfg.Order {
			return nil, nil, errs.Wrap(errs.KindInvalidConfig, errs.ErrInvalidConfig, "delta.Encode", "too few values for order")
		}

		return encodeConsecutive(latents, width, cfg.Order)

	case format.DeltaLookback:
		window := 1 << uint(cfg.WindowLog)
		if cfg.WindowLog < 1 || cfg.WindowLog > maxWindowLog {
			return nil, nil, errs.Wrap(errs.KindInvalidConfig, errs.ErrInvalidConfig, "delta.Encode", "window_n_log out of range")
		}
		if len(latents) <= window {
			return nil, nil, errs.Wrap(errs.KindInvalidConfig, errs.ErrInvalidConfig, "delta.Encode", "too few values for window")
		}

		return encodeLookback(latents, width, cfg)

	default:
		return nil, nil, errs.Wrap(errs.KindInvalidConfig, errs.ErrInvalidConfig, "delta.Encode", "unknown delta kind")
	}
}

// Decode inverts Encode, given the transformed stream, the moments Encode
// produced, and n (the original, pre-transform length).
func Decode(transformed []uint64, moments []uint64, n int, width int, cfg Config) ([]uint64, error) {
	switch cfg.Kind {
	case format.DeltaNone:
		return append([]uint64(nil), transformed...), nil

	case format.DeltaConsecutive:
		if len(moments) != cfg.Order {
			return nil, errs.Wrap(errs.KindCorruption, errs.ErrCorruption, "delta.Decode", "moment count mismatch")
		}

		return decodeConsecutive(transformed, moments, width, cfg.Order)

	case format.DeltaLookback:
		if cfg.WindowLog < 1 || cfg.WindowLog > maxWindowLog {
			return nil, errs.Wrap(errs.KindCorruption, errs.ErrCorruption, "delta.Decode", "window log out of bounds")
		}

		window := 1 << uint(cfg.WindowLog)
		if len(moments) != window {
			return nil, errs.Wrap(errs.KindCorruption, errs.ErrCorruption, "delta.Decode", "moment count mismatch")
		}

		return decodeLookback(transformed, moments, width, cfg)

	default:
		return nil, errs.Wrap(errs.KindInvalidConfig, errs.ErrInvalidConfig, "delta.Decode", "unknown delta kind")
	}
}

func mask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}

	return uint64(1)<<uint(width) - 1
}

// diffOnce computes the first difference of level (mod 2^width), returning
// it alongside level's first element (the moment needed to integrate back).
func diffOnce(level []uint64, width int) (diffed []uint64, first uint64) {
	m := mask(width)
	diffed = make([]uint64, len(level)-1)
	for i := 1; i < len(level); i++ {
		diffed[i-1] = (level[i] - level[i-1]) & m
	}

	return diffed, level[0]
}

// integrate inverts diffOnce: given a first difference and the moment that
// preceded it, reconstructs the original level.
func integrate(diffed []uint64, first uint64, width int) []uint64 {
	m := mask(width)
	level := make([]uint64, len(diffed)+1)
	level[0] = first
	for i, d := range diffed {
		level[i+1] = (level[i] + d) & m
	}

	return level
}

func encodeConsecutive(latents []uint64, width, order int) ([]uint64, []uint64, error) {
	moments := make([]uint64, order)
	cur := latents
	for lvl := 0; lvl < order; lvl++ {
		moments[lvl] = cur[0]
		cur, _ = diffOnce(cur, width)
	}

	return cur, moments, nil
}

func decodeConsecutive(transformed []uint64, moments []uint64, width, order int) ([]uint64, error) {
	cur := transformed
	for lvl := order - 1; lvl >= 0; lvl-- {
		cur = integrate(cur, moments[lvl], width)
	}

	return cur, nil
}

// encodeLookback stores the first `window` latents verbatim as moments and
// replaces every later value with its difference from the value `window`
// positions earlier. StateLog is not read here and does not change the
// encoded bytes.
func encodeLookback(latents []uint64, width int, cfg Config) ([]uint64, []uint64, error) {
	window := 1 << uint(cfg.WindowLog)
	m := mask(width)

	moments := append([]uint64(nil), latents[:window]...)
	out := make([]uint64, len(latents)-window)
	for i := window; i < len(latents); i++ {
		out[i-window] = (latents[i] - latents[i-window]) & m
	}

	return out, moments, nil
}

func decodeLookback(transformed []uint64, moments []uint64, width int, cfg Config) ([]uint64, error) {
	window := 1 << uint(cfg.WindowLog)
	m := mask(width)

	out := make([]uint64, window+len(transformed))
	copy(out, moments)
	for i := 0; i < len(transformed); i++ {
		out[window+i] = (transformed[i] + out[i]) & m
	}

	return out, nil
}

// InferOrder samples latents and picks the Consecutive order (1..maxOrder)
// whose finite difference has the smallest total zigzag bit-length, a
// cheap proxy for how well it will entropy-code. The undifferenced sample's
// cost is the starting baseline: an order is chosen only if it beats that
// baseline and every lower order, and 1 is returned when none does. It
// never returns an order that would need moments exceeding the sample itself.
func InferOrder(latents []uint64, width int, maxOrder int) int {
	if maxOrder > format.MaxDeltaOrder {
		maxOrder = format.MaxDeltaOrder
	}
	if maxOrder < format.MinDeltaOrder {
		return format.MinDeltaOrder
	}

	sample := latents
	const sampleCap = 512
	if len(sample) > sampleCap {
		sample = sample[:sampleCap]
	}

	best := format.MinDeltaOrder
	bestCost := costOf(sample, width)

	cur := sample
	for order := 1; order <= maxOrder && len(cur) > 1; order++ {
		next, _ := diffOnce(cur, width)
		cost := costOf(next, width)
		if cost < bestCost {
			bestCost = cost
			best = order
		}
		cur = next
	}

	return best
}

// costOf estimates the total bits needed to entropy-code values as signed
// magnitudes (their latent deltas reinterpreted as two's complement), a
// proxy that favors sequences clustered near zero.
func costOf(latents []uint64, width int) uint64 {
	m := mask(width)
	half := m>>1 + 1

	var total uint64
	for _, v := range latents {
		signed := v
		if v > half {
			signed = (m - v) + 1
		}
		total += uint64(bits.Len64(signed)) + 1
	}

	return total
}
