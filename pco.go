// Package pco provides a lossless compression codec for sequences of
// numeric values (16/32/64-bit signed/unsigned integers and floats). It
// exploits numeric structure — smooth distributions, affine relationships,
// quantized precision — through mode splitting, delta encoding, quantile
// binning and a 4-way interleaved tANS entropy coder, rather than
// byte-level redundancy the way general-purpose compressors do.
//
// # Basic usage
//
//	data, _, err := pco.Compress([]int64{0, 1, 2, 3, 4, 5})
//	values, err := pco.Decompress[int64](data)
//
// This package provides convenient top-level wrappers around the
// container/chunk/latent packages, simplifying the common single-chunk
// case. For multi-chunk streams or fine-grained control over bin budgets,
// use the container package directly.
package pco

import (
	"reflect"

	"github.com/arloliu/pco/container"
	"github.com/arloliu/pco/errs"
	"github.com/arloliu/pco/format"
	"github.com/arloliu/pco/internal/digest"
	"github.com/arloliu/pco/latent"
)

// Number is the set of numeric types pco can compress directly. 16-bit
// floats have no native Go type; use the latent package's Float16 helpers
// and the chunk/container packages directly for that dtype.
type Number interface {
	~uint16 | ~int16 | ~uint32 | ~int32 | ~uint64 | ~int64 | ~float32 | ~float64
}

var defaultOptions = []container.EncodeOption{}

// Compress encodes values as a single standalone-format chunk. The chunk's
// dtype is inferred from T.
func Compress[T Number](values []T, opts ...container.EncodeOption) ([]byte, *container.Stats, error) {
	if len(values) == 0 {
		return nil, nil, errs.Wrap(errs.KindInvalidConfig, errs.ErrEmptyChunk, "pco.Compress", "")
	}

	dtype, err := dtypeOf(values[0])
	if err != nil {
		return nil, nil, err
	}

	latents := toLatents(values, dtype)

	allOpts := append(append([]container.EncodeOption(nil), defaultOptions...), opts...)
	allOpts = append(allOpts, container.WithCountHint(uint64(len(values))))

	return container.Encode([]container.ChunkInput{{Dtype: dtype, Latents: latents}}, allOpts...)
}

// Decompress decodes a standalone-format stream produced by Compress back
// into values of type T. It returns an Incompatibility error (via errs) if
// the encoded dtype does not match T, and a Corruption error if the stream
// does not hold exactly one chunk.
func Decompress[T Number](data []byte) ([]T, error) {
	chunks, err := container.Decode(data)
	if err != nil {
		return nil, err
	}
	if len(chunks) != 1 {
		return nil, errs.Wrap(errs.KindCorruption, errs.ErrCorruption, "pco.Decompress", "expected exactly one chunk")
	}

	var zero T
	wantDtype, err := dtypeOf(zero)
	if err != nil {
		return nil, err
	}
	if chunks[0].Dtype != wantDtype {
		return nil, errs.Wrap(errs.KindIncompatibility, errs.ErrIncompatibility, "pco.Decompress", "encoded dtype does not match requested type")
	}

	return fromLatents[T](chunks[0].Latents, wantDtype), nil
}

// Checksum returns a 64-bit content digest of data, an out-of-band
// integrity aid for callers who persist or transmit compressed bytes. It
// is independent of the wire format and not checked during Decompress.
func Checksum(data []byte) uint64 {
	return digest.Checksum(data)
}

func dtypeOf(v any) (format.Dtype, error) {
	switch reflect.TypeOf(v).Kind() {
	case reflect.Uint16:
		return format.DtypeU16, nil
	case reflect.Int16:
		return format.DtypeI16, nil
	case reflect.Uint32:
		return format.DtypeU32, nil
	case reflect.Int32:
		return format.DtypeI32, nil
	case reflect.Float32:
		return format.DtypeF32, nil
	case reflect.Uint64:
		return format.DtypeU64, nil
	case reflect.Int64:
		return format.DtypeI64, nil
	case reflect.Float64:
		return format.DtypeF64, nil
	default:
		return 0, errs.Wrap(errs.KindInvalidConfig, errs.ErrUnsupportedDtype, "pco.dtypeOf", "")
	}
}

func toLatents[T Number](values []T, dtype format.Dtype) []uint64 {
	out := make([]uint64, len(values))
	switch dtype {
	case format.DtypeU16:
		for i, v := range values {
			out[i] = latent.ToLatentU16(uint16(v))
		}
	case format.DtypeI16:
		for i, v := range values {
			out[i] = latent.ToLatentI16(int16(v))
		}
	case format.DtypeU32:
		for i, v := range values {
			out[i] = latent.ToLatentU32(uint32(v))
		}
	case format.DtypeI32:
		for i, v := range values {
			out[i] = latent.ToLatentI32(int32(v))
		}
	case format.DtypeF32:
		for i, v := range values {
			out[i] = latent.ToLatentF32(float32(v))
		}
	case format.DtypeU64:
		for i, v := range values {
			out[i] = latent.ToLatentU64(uint64(v))
		}
	case format.DtypeI64:
		for i, v := range values {
			out[i] = latent.ToLatentI64(int64(v))
		}
	case format.DtypeF64:
		for i, v := range values {
			out[i] = latent.ToLatentF64(float64(v))
		}
	}

	return out
}

func fromLatents[T Number](latents []uint64, dtype format.Dtype) []T {
	out := make([]T, len(latents))
	switch dtype {
	case format.DtypeU16:
		for i, l := range latents {
			out[i] = T(latent.FromLatentU16(l))
		}
	case format.DtypeI16:
		for i, l := range latents {
			out[i] = T(latent.FromLatentI16(l))
		}
	case format.DtypeU32:
		for i, l := range latents {
			out[i] = T(latent.FromLatentU32(l))
		}
	case format.DtypeI32:
		for i, l := range latents {
			out[i] = T(latent.FromLatentI32(l))
		}
	case format.DtypeF32:
		for i, l := range latents {
			out[i] = T(latent.FromLatentF32(l))
		}
	case format.DtypeU64:
		for i, l := range latents {
			out[i] = T(latent.FromLatentU64(l))
		}
	case format.DtypeI64:
		for i, l := range latents {
			out[i] = T(latent.FromLatentI64(l))
		}
	case format.DtypeF64:
		for i, l := range latents {
			out[i] = T(latent.FromLatentF64(l))
		}
	}

	return out
}
