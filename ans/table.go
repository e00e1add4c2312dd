// Package ans implements the 4-way interleaved tabled asymmetric numeral
// system (tANS) entropy coder used to pack per-bin token indices. A Table
// is built once per page per latent stream from that stream's normalized
// bin weights (which must already sum to the table size) and then used for
// both encoding and decoding; the two directions never disagree because
// both are derived from the same spread-table construction.
package ans

import (
	"math/bits"
	"sort"

	"github.com/arloliu/pco/errs"
	"github.com/arloliu/pco/internal/pool"
)

// decEntry is one row of the decode table, indexed by the current decoder
// state (an index into [0, tableSize)).
type decEntry struct {
	symbol       uint32
	nbBits       uint8
	newStateBase uint32
}

// encRange is one contiguous span of encoder states that all decode (given
// the right low bits) back to the same source state for a given symbol.
// A symbol's ranges, sorted by base, exactly tile [0, tableSize).
type encRange struct {
	base   uint32
	nbBits uint8
	state  uint32 // the decode-table index this range inverts into
}

// Table is a built tANS table: the decode side is a flat array indexed by
// state, the encode side is, per symbol, a sorted list of ranges found by
// grouping the decode table by symbol. Building the encode side this way
// (rather than via a closed-form formula) makes correctness follow directly
// from construction: every encRange for symbol s is, by definition, a state
// at which the decode table emits s.
type Table struct {
	tableLog int
	size     uint32
	decode   []decEntry
	encode   [][]encRange
}

// TableLog returns log2 of the table size (ans_size_log).
func (t *Table) TableLog() int { return t.tableLog }

// Size returns the table size L = 2^TableLog.
func (t *Table) Size() uint32 { return t.size }

// spreadStateTokens assigns each of the L table slots to a bin, walking the
// table in the canonical order seeded at position (5*s+3) mod L. Since 3 is
// odd and 5-1 is a multiple of 4, this affine step has full period for any
// power-of-two L and visits every slot exactly once. The returned slice and its release func are handed back to
// the caller, since NewTable only needs it as scratch while building decode.
func spreadStateTokens(weights []uint32, tableSize uint32) ([]uint32, func()) {
	slotSymbol, release := pool.GetUint32Slice(int(tableSize))
	pos := uint32(0)
	for sym, w := range weights {
		for j := uint32(0); j < w; j++ {
			slotSymbol[pos] = uint32(sym)
			pos = (5*pos + 3) % tableSize
		}
	}

	return slotSymbol, release
}

// NewTable builds a tANS table from per-bin weights. Weights must all be
// >= 1 and sum to exactly 2^tableLog; the binner is responsible for that
// normalization, so any violation here is an internal invariant failure
// rather than a caller input error.
func NewTable(weights []uint32, tableLog int) (*Table, error) {
	if tableLog < 0 || tableLog > 14 {
		return nil, errs.Wrap(errs.KindInvalidConfig, errs.ErrInvalidConfig, "ans.NewTable", "tableLog out of range")
	}

	size := uint32(1) << uint(tableLog)

	var sum uint32
	for _, w := range weights {
		if w == 0 {
			return nil, errs.Wrap(errs.KindInternalFailure, errs.ErrBinWeightOverflow, "ans.NewTable", "zero weight bin")
		}
		sum += w
	}
	if sum != size {
		return nil, errs.Wrap(errs.KindInternalFailure, errs.ErrBinWeightOverflow, "ans.NewTable", "")
	}

	slotSymbol, releaseSlots := spreadStateTokens(weights, size)
	defer releaseSlots()

	next, releaseNext := pool.GetUint32Slice(len(weights))
	defer releaseNext()
	copy(next, weights)

	decode := make([]decEntry, size)
	for i := uint32(0); i < size; i++ {
		s := slotSymbol[i]
		nextState := next[s]
		next[s]++

		lead := bits.Len32(nextState) - 1 // floor(log2(nextState))
		nb := tableLog - lead
		newStateBase := (nextState << uint(nb)) - size

		decode[i] = decEntry{symbol: s, nbBits: uint8(nb), newStateBase: newStateBase}
	}

	encode := make([][]encRange, len(weights))
	for i := uint32(0); i < size; i++ {
		e := decode[i]
		encode[e.symbol] = append(encode[e.symbol], encRange{base: e.newStateBase, nbBits: e.nbBits, state: i})
	}
	for s := range encode {
		sort.Slice(encode[s], func(a, b int) bool { return encode[s][a].base < encode[s][b].base })
	}

	return &Table{tableLog: tableLog, size: size, decode: decode, encode: encode}, nil
}

// encodeStep inverts one decode step: given the encoder's current state
// (itself a decode-table index) and the symbol to encode, it returns the
// previous decode-table index along with the bits that must be emitted so
// that decoding from that previous index reproduces (symbol, state).
func (t *Table) encodeStep(state uint32, symbol uint32) (prevState uint32, nbBits uint8, low uint32, err error) {
	ranges := t.encode[symbol]
	idx := sort.Search(len(ranges), func(k int) bool { return ranges[k].base > state }) - 1
	if idx < 0 {
		return 0, 0, 0, errs.Wrap(errs.KindInternalFailure, errs.ErrInternalFailure, "ans.Table.encodeStep", "no range covers state")
	}

	r := ranges[idx]

	return r.state, r.nbBits, state - r.base, nil
}
