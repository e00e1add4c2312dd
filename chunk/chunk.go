// Package chunk drives a single chunk's numbers through mode inference,
// delta encoding, binning and tANS entropy coding, and frames the result as
// the wrapped "chunk meta" + "page" components described for the
// container package. It never reads or writes the container-level dtype
// tag or chunk length prefix — those belong to container, which calls into
// EncodeChunk/DecodeChunk once it has already framed that much.
package chunk

import (
	"math"
	"math/bits"

	"github.com/arloliu/pco/ans"
	"github.com/arloliu/pco/binner"
	"github.com/arloliu/pco/bitio"
	"github.com/arloliu/pco/delta"
	"github.com/arloliu/pco/errs"
	"github.com/arloliu/pco/format"
	"github.com/arloliu/pco/internal/options"
	"github.com/arloliu/pco/modeengine"
)

// Stats is returned alongside a successful EncodeChunk call, observability
// for callers rather than a new wire field.
type Stats struct {
	Mode            format.Mode
	DeltaKind       format.DeltaKind
	DeltaOrder      int
	LatentBinCounts []int
	AnsSizeLogs     []int
	PayloadBits     uint64
}

// EncodeOption configures EncodeChunk, built on the shared functional
// options helper so it composes the same way container.EncodeOption does.
type EncodeOption = options.Option[*encodeConfig]

type encodeConfig struct {
	maxBins int
}

// WithMaxBins overrides the default per-latent-stream bin budget.
func WithMaxBins(n int) EncodeOption {
	return options.NoError(func(c *encodeConfig) { c.maxBins = n })
}

const defaultMaxBins = 256

// streamState holds everything needed to encode or decode one latent
// stream (a mode-latent, post-delta) within a page.
type streamState struct {
	width      int
	deltaCfg   delta.Config
	moments    []uint64
	bins       []binner.BinInfo
	ansSizeLog int
	table      *ans.Table
	binIdx     []uint32
	offsets    []uint64
	n          int // number of values in this stream before delta shrank it
}

// EncodeChunk transforms latents (the to_latent_ordered output for n
// numbers of the given dtype) and writes the chunk-meta and page wire
// components to w. latents must have length n.
func EncodeChunk(w *bitio.Writer, latents []uint64, dtype format.Dtype, opts ...EncodeOption) (*Stats, error) {
	n := len(latents)
	if n == 0 {
		return nil, errs.Wrap(errs.KindInvalidConfig, errs.ErrEmptyChunk, "chunk.EncodeChunk", "")
	}

	cfg := encodeConfig{maxBins: defaultMaxBins}
	if err := options.Apply(&cfg, opts...); err != nil {
		return nil, err
	}

	width := dtype.Width()
	decision := modeengine.Infer(latents, dtype)
	l0, l1 := modeengine.Split(latents, decision)

	streams := [][]uint64{l0}
	if l1 != nil {
		streams = append(streams, l1)
	}

	deltaCfg := chooseDelta(l0, width)

	states := make([]*streamState, len(streams))
	for i, s := range streams {
		st, err := buildStream(s, width, deltaCfg, cfg.maxBins)
		if err != nil {
			return nil, err
		}
		states[i] = st
	}

	writeModeAndDelta(w, decision, deltaCfg)

	for _, st := range states {
		writeBinDescriptor(w, st)
	}

	for _, st := range states {
		for _, m := range st.moments {
			w.WriteUint(m, uint(width))
		}
		groupStates := computeGroupStates(st)
		for _, gs := range groupStates {
			for _, s := range gs {
				w.WriteUint(uint64(s), uint(st.ansSizeLog))
			}
		}
	}

	w.AlignToByte()

	binCounts := make([]int, len(states))
	sizeLogs := make([]int, len(states))
	start := w.BitsWritten()
	for i, st := range states {
		_, err := ans.EncodeBatch(w, st.table, st.binIdx)
		if err != nil {
			return nil, err
		}
		for j, idx := range st.binIdx {
			b := st.bins[idx]
			if b.OffsetBits > 0 {
				w.WriteUint(st.offsets[j], uint(b.OffsetBits))
			}
		}
		binCounts[i] = len(st.bins)
		sizeLogs[i] = st.ansSizeLog
	}

	return &Stats{
		Mode:            decision.Mode,
		DeltaKind:       deltaCfg.Kind,
		DeltaOrder:      deltaCfg.Order,
		LatentBinCounts: binCounts,
		AnsSizeLogs:     sizeLogs,
		PayloadBits:     w.BitsWritten() - start,
	}, nil
}

// DecodeChunk reads back n latents of the given dtype from r, mirroring
// EncodeChunk's wire layout exactly.
func DecodeChunk(r *bitio.Reader, dtype format.Dtype, n int) ([]uint64, error) {
	if n <= 0 {
		return nil, errs.Wrap(errs.KindInvalidConfig, errs.ErrEmptyChunk, "chunk.DecodeChunk", "")
	}

	width := dtype.Width()

	decision, deltaCfg, err := readModeAndDelta(r, width)
	if err != nil {
		return nil, err
	}

	numStreams := decision.Mode.LatentCount()
	streamLens := splitLengths(n, deltaCfg)

	descs := make([]*binDescriptor, numStreams)
	for i := 0; i < numStreams; i++ {
		d, err := readBinDescriptor(r, width)
		if err != nil {
			return nil, err
		}
		descs[i] = d
	}

	streamValues := make([][]uint64, numStreams)
	for i := 0; i < numStreams; i++ {
		momentCount := momentsFor(deltaCfg)
		moments := make([]uint64, momentCount)
		for j := range moments {
			v, err := r.ReadUint(uint(width))
			if err != nil {
				return nil, err
			}
			moments[j] = v
		}

		table, err := ans.NewTable(weightsOf(descs[i].bins), descs[i].ansSizeLog)
		if err != nil {
			return nil, errs.Wrap(errs.KindCorruption, errs.ErrCorruption, "chunk.DecodeChunk", "bad bin weights")
		}

		numGroups := ans.NumGroups(streamLens[i])
		groupStates := make(ans.GroupStates, numGroups)
		for g := 0; g < numGroups; g++ {
			var gs [format.AnsLanes]uint32
			for j := range gs {
				v, err := r.ReadUint(uint(descs[i].ansSizeLog))
				if err != nil {
					return nil, err
				}
				gs[j] = uint32(v)
			}
			groupStates[g] = gs
		}

		descs[i].table = table
		descs[i].groupStates = groupStates
		descs[i].moments = moments
		descs[i].streamLen = streamLens[i]
	}

	r.AlignToByte()

	for i := 0; i < numStreams; i++ {
		d := descs[i]
		binIdx, err := ans.DecodeBatch(r, d.table, d.groupStates, d.streamLen)
		if err != nil {
			return nil, err
		}

		out := make([]uint64, d.streamLen)
		for j, idx := range binIdx {
			if int(idx) >= len(d.bins) {
				return nil, errs.Wrap(errs.KindCorruption, errs.ErrCorruption, "chunk.DecodeChunk", "bin index out of range")
			}
			b := d.bins[idx]
			var off uint64
			if b.OffsetBits > 0 {
				off, err = r.ReadUint(uint(b.OffsetBits))
				if err != nil {
					return nil, err
				}
			}
			out[j] = b.Lower + off
		}

		transformed, err := delta.Decode(out, d.moments, d.streamLen+momentsForLen(deltaCfg), width, deltaCfg)
		if err != nil {
			return nil, err
		}
		streamValues[i] = transformed
	}

	l0 := streamValues[0]
	var l1 []uint64
	if numStreams > 1 {
		l1 = streamValues[1]
	}

	return modeengine.Reconstruct(l0, l1, decision), nil
}

func momentsFor(cfg delta.Config) int {
	switch cfg.Kind {
	case format.DeltaConsecutive:
		return cfg.Order
	case format.DeltaLookback:
		return 1 << uint(cfg.WindowLog)
	default:
		return 0
	}
}

func momentsForLen(cfg delta.Config) int { return momentsFor(cfg) }

func splitLengths(n int, cfg delta.Config) []int {
	m := momentsFor(cfg)
	transformedLen := n - m
	if transformedLen < 0 {
		transformedLen = 0
	}

	return []int{transformedLen, transformedLen}
}

func chooseDelta(sample []uint64, width int) delta.Config {
	if len(sample) < 16 {
		return delta.Config{Kind: format.DeltaNone}
	}
	order := delta.InferOrder(sample, width, format.MaxDeltaOrder)

	return delta.Config{Kind: format.DeltaConsecutive, Order: order}
}

func buildStream(latents []uint64, width int, deltaCfg delta.Config, maxBins int) (*streamState, error) {
	transformed, moments, err := delta.Encode(latents, width, deltaCfg)
	if err != nil {
		return nil, err
	}

	res, err := binner.Bin(transformed, maxBins)
	if err != nil {
		return nil, err
	}

	table, err := ans.NewTable(weightsOf(res.Bins), res.TableLog)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternalFailure, errs.ErrInternalFailure, "chunk.buildStream", "table construction failed")
	}

	return &streamState{
		width:      width,
		deltaCfg:   deltaCfg,
		moments:    moments,
		bins:       res.Bins,
		ansSizeLog: res.TableLog,
		table:      table,
		binIdx:     res.BinIndices,
		offsets:    res.Offsets,
		n:          len(latents),
	}, nil
}

func weightsOf(bins []binner.BinInfo) []uint32 {
	w := make([]uint32, len(bins))
	for i, b := range bins {
		w[i] = b.Weight
	}

	return w
}

// computeGroupStates runs the backward encode pass once on a scratch writer
// purely to obtain the per-group states EncodeChunk must persist into the
// page header before the real (identical, deterministic) payload pass
// writes the actual tokens. This trades a second cheap pass for never
// needing to splice two non-byte-aligned bit writers together. One state
// vector is recorded per format.BatchSize-sized group, per SPEC_FULL.md's
// batch-streaming contract, so a decoder can resume at any group boundary
// using only that group's own recorded state.
func computeGroupStates(st *streamState) ans.GroupStates {
	scratch := bitio.NewWriter()
	defer scratch.Release()
	states, _ := ans.EncodeBatch(scratch, st.table, st.binIdx)

	return states
}

func writeModeAndDelta(w *bitio.Writer, decision modeengine.Decision, deltaCfg delta.Config) {
	w.WriteUint(uint64(decision.Mode), 4)
	switch decision.Mode {
	case format.ModeIntMult:
		w.WriteUint(decision.IntMult, uint(decision.Width))
	case format.ModeFloatMult:
		w.WriteUint(float64Bits(decision.FPMult), 64)
	case format.ModeFloatQuant:
		w.WriteUint(uint64(decision.QuantK), 8)
	}

	w.WriteUint(uint64(deltaCfg.Kind), 4)
	switch deltaCfg.Kind {
	case format.DeltaConsecutive:
		w.WriteUint(uint64(deltaCfg.Order-1), 3)
	case format.DeltaLookback:
		w.WriteUint(uint64(deltaCfg.WindowLog-1), 5)
		w.WriteUint(uint64(deltaCfg.StateLog), 4)
	}
}

func readModeAndDelta(r *bitio.Reader, width int) (modeengine.Decision, delta.Config, error) {
	modeVal, err := r.ReadUint(4)
	if err != nil {
		return modeengine.Decision{}, delta.Config{}, err
	}
	mode := format.Mode(modeVal)
	if !mode.Valid() {
		return modeengine.Decision{}, delta.Config{}, errs.Wrap(errs.KindCorruption, errs.ErrUnsupportedMode, "chunk.readModeAndDelta", "")
	}

	decision := modeengine.Decision{Mode: mode, Width: width}
	switch mode {
	case format.ModeIntMult:
		v, err := r.ReadUint(uint(width))
		if err != nil {
			return modeengine.Decision{}, delta.Config{}, err
		}
		decision.IntMult = v
	case format.ModeFloatMult:
		v, err := r.ReadUint(64)
		if err != nil {
			return modeengine.Decision{}, delta.Config{}, err
		}
		decision.FPMult = float64FromBits(v)
	case format.ModeFloatQuant:
		v, err := r.ReadUint(8)
		if err != nil {
			return modeengine.Decision{}, delta.Config{}, err
		}
		decision.QuantK = int(v)
	}

	deltaVal, err := r.ReadUint(4)
	if err != nil {
		return modeengine.Decision{}, delta.Config{}, err
	}
	deltaKind := format.DeltaKind(deltaVal)
	if !deltaKind.Valid() {
		return modeengine.Decision{}, delta.Config{}, errs.Wrap(errs.KindCorruption, errs.ErrCorruption, "chunk.readModeAndDelta", "reserved delta kind")
	}

	deltaCfg := delta.Config{Kind: deltaKind}
	switch deltaKind {
	case format.DeltaConsecutive:
		v, err := r.ReadUint(3)
		if err != nil {
			return modeengine.Decision{}, delta.Config{}, err
		}
		deltaCfg.Order = int(v) + 1
	case format.DeltaLookback:
		v, err := r.ReadUint(5)
		if err != nil {
			return modeengine.Decision{}, delta.Config{}, err
		}
		deltaCfg.WindowLog = int(v) + 1
		s, err := r.ReadUint(4)
		if err != nil {
			return modeengine.Decision{}, delta.Config{}, err
		}
		deltaCfg.StateLog = int(s)
	}

	return decision, deltaCfg, nil
}

func writeBinDescriptor(w *bitio.Writer, st *streamState) {
	w.WriteUint(uint64(st.ansSizeLog), 4)
	w.WriteUint(uint64(len(st.bins)-1), 15)

	offsetBitsWidth := uint(bits.Len(uint(st.width))) + 1
	for _, b := range st.bins {
		w.WriteUint(uint64(b.Weight-1), uint(st.ansSizeLog))
		w.WriteUint(b.Lower, uint(st.width))
		w.WriteUint(uint64(b.OffsetBits), offsetBitsWidth)
	}
}

type binDescriptor struct {
	ansSizeLog  int
	bins        []binner.BinInfo
	table       *ans.Table
	groupStates ans.GroupStates
	moments     []uint64
	streamLen   int
}

func readBinDescriptor(r *bitio.Reader, width int) (*binDescriptor, error) {
	sizeLogVal, err := r.ReadUint(4)
	if err != nil {
		return nil, err
	}
	ansSizeLog := int(sizeLogVal)
	if ansSizeLog > format.MaxAnsSizeLog {
		return nil, errs.Wrap(errs.KindCorruption, errs.ErrCorruption, "chunk.readBinDescriptor", "ans_size_log too large")
	}

	countVal, err := r.ReadUint(15)
	if err != nil {
		return nil, err
	}
	binCount := int(countVal) + 1

	offsetBitsWidth := uint(bits.Len(uint(width))) + 1

	bins := make([]binner.BinInfo, binCount)
	for i := 0; i < binCount; i++ {
		wVal, err := r.ReadUint(uint(ansSizeLog))
		if err != nil {
			return nil, err
		}
		lower, err := r.ReadUint(uint(width))
		if err != nil {
			return nil, err
		}
		obVal, err := r.ReadUint(offsetBitsWidth)
		if err != nil {
			return nil, err
		}
		if obVal > uint64(width) {
			return nil, errs.Wrap(errs.KindCorruption, errs.ErrCorruption, "chunk.readBinDescriptor", "offset_bits exceeds width")
		}

		bins[i] = binner.BinInfo{Lower: lower, OffsetBits: uint8(obVal), Weight: uint32(wVal) + 1}
	}

	var sum uint64
	for _, b := range bins {
		sum += uint64(b.Weight)
	}
	if sum != uint64(1)<<uint(ansSizeLog) {
		return nil, errs.Wrap(errs.KindCorruption, errs.ErrBinWeightOverflow, "chunk.readBinDescriptor", "")
	}

	return &binDescriptor{ansSizeLog: ansSizeLog, bins: bins}, nil
}

func float64Bits(f float64) uint64     { return math.Float64bits(f) }
func float64FromBits(b uint64) float64 { return math.Float64frombits(b) }
