// Package container frames one or more chunks into the standalone Pco file
// layout: a magic + version + optional total-count hint, a wrapped header,
// then each chunk prefixed by its dtype tag and length, terminated by a
// zero byte. It is the only package that knows about the on-disk byte
// layout; chunk knows nothing about framing beyond its own meta/page.
package container

import (
	"math/bits"

	"github.com/arloliu/pco/bitio"
	"github.com/arloliu/pco/chunk"
	"github.com/arloliu/pco/errs"
	"github.com/arloliu/pco/format"
	"github.com/arloliu/pco/internal/options"
)

// EncodeOption configures Encode, built on the same functional options
// helper chunk.EncodeOption uses.
type EncodeOption = options.Option[*encodeConfig]

type encodeConfig struct {
	nHint   uint64
	maxBins int
}

// WithCountHint records the total number count in the standalone header,
// letting a decoder preallocate. Pass 0 (the default) when unknown.
func WithCountHint(n uint64) EncodeOption {
	return options.NoError(func(c *encodeConfig) { c.nHint = n })
}

// WithMaxBins forwards a per-chunk bin budget override to chunk.EncodeChunk.
func WithMaxBins(n int) EncodeOption {
	return options.NoError(func(c *encodeConfig) { c.maxBins = n })
}

// ChunkInput is one chunk to encode: its dtype and the latents already
// produced by that dtype's to_latent_ordered bijection.
type ChunkInput struct {
	Dtype   format.Dtype
	Latents []uint64
}

// Stats summarizes one Encode call.
type Stats struct {
	ChunkStats []*chunk.Stats
	TotalBytes int
}

// Encode writes the standalone framing (magic, version, count hint, wrapped
// header, chunks, terminator) for chunks, in order.
func Encode(chunks []ChunkInput, opts ...EncodeOption) ([]byte, *Stats, error) {
	cfg := encodeConfig{maxBins: 256}
	if err := options.Apply(&cfg, opts...); err != nil {
		return nil, nil, err
	}

	// A standalone stream concatenates every chunk's pages, so it is sized
	// like an assembled chunk rather than a single page: use the chunk pool.
	w := bitio.NewChunkWriter()
	defer w.Release()

	for _, b := range format.StandaloneMagic {
		w.WriteUint(uint64(b), 8)
	}
	w.WriteUint(uint64(format.CurrentVersion), 8)

	hintLog := 0
	if cfg.nHint > 0 {
		hintLog = bits.Len64(cfg.nHint)
	}
	if hintLog == 0 {
		hintLog = 1
	}
	w.WriteUint(uint64(hintLog-1), 6)
	w.WriteUint(cfg.nHint, uint(hintLog))
	w.AlignToByte()

	writeWrappedHeader(w)

	chunkStats := make([]*chunk.Stats, len(chunks))
	var chunkOpts []chunk.EncodeOption
	if cfg.maxBins > 0 {
		chunkOpts = append(chunkOpts, chunk.WithMaxBins(cfg.maxBins))
	}

	for i, c := range chunks {
		if len(c.Latents) == 0 {
			return nil, nil, errs.Wrap(errs.KindInvalidConfig, errs.ErrEmptyChunk, "container.Encode", "")
		}
		if len(c.Latents) > 1<<24 {
			return nil, nil, errs.Wrap(errs.KindInvalidConfig, errs.ErrInvalidConfig, "container.Encode", "chunk too large")
		}

		w.WriteUint(uint64(c.Dtype), 8)
		w.WriteUint(uint64(len(c.Latents)-1), 24)

		st, err := chunk.EncodeChunk(w, c.Latents, c.Dtype, chunkOpts...)
		if err != nil {
			return nil, nil, err
		}
		chunkStats[i] = st
	}

	w.AlignToByte()
	w.WriteUint(0, 8) // terminator

	data := append([]byte(nil), w.Bytes()...)

	return data, &Stats{ChunkStats: chunkStats, TotalBytes: len(data)}, nil
}

// Decode reads back every chunk framed by Encode, in order.
func Decode(data []byte) ([]ChunkInput, error) {
	r := bitio.NewReader(data)

	for _, want := range format.StandaloneMagic {
		got, err := r.ReadUint(8)
		if err != nil {
			return nil, err
		}
		if byte(got) != want {
			return nil, errs.Wrap(errs.KindCorruption, errs.ErrBadMagic, "container.Decode", "")
		}
	}

	version, err := r.ReadUint(8)
	if err != nil {
		return nil, err
	}
	if version > uint64(format.CurrentVersion) {
		return nil, errs.Wrap(errs.KindIncompatibility, errs.ErrVersionTooNew, "container.Decode", "")
	}

	hintLogMinus1, err := r.ReadUint(6)
	if err != nil {
		return nil, err
	}
	hintLog := hintLogMinus1 + 1
	if _, err := r.ReadUint(uint(hintLog)); err != nil { // n_hint, informational only
		return nil, err
	}
	r.AlignToByte()

	if err := readWrappedHeader(r); err != nil {
		return nil, err
	}

	var out []ChunkInput
	for {
		dtypeVal, err := r.ReadUint(8)
		if err != nil {
			return nil, err
		}
		if dtypeVal == 0 {
			break // terminator
		}

		dtype := format.Dtype(dtypeVal)
		if !dtype.Valid() {
			return nil, errs.Wrap(errs.KindCorruption, errs.ErrUnsupportedDtype, "container.Decode", "")
		}

		nMinus1, err := r.ReadUint(24)
		if err != nil {
			return nil, err
		}
		n := int(nMinus1) + 1

		latents, err := chunk.DecodeChunk(r, dtype, n)
		if err != nil {
			return nil, err
		}

		out = append(out, ChunkInput{Dtype: dtype, Latents: latents})
	}

	return out, nil
}

// writeWrappedHeader writes the 8-bit wrapped-format version shared by both
// the standalone and (future) embedded-in-another-container layouts.
func writeWrappedHeader(w *bitio.Writer) {
	w.WriteUint(uint64(format.CurrentVersion), 8)
}

func readWrappedHeader(r *bitio.Reader) error {
	v, err := r.ReadUint(8)
	if err != nil {
		return err
	}
	if v > uint64(format.CurrentVersion) {
		return errs.Wrap(errs.KindIncompatibility, errs.ErrVersionTooNew, "container.readWrappedHeader", "")
	}

	return nil
}
