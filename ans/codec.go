package ans

import (
	"github.com/arloliu/pco/bitio"
	"github.com/arloliu/pco/errs"
	"github.com/arloliu/pco/format"
)

// token is one symbol's emission, recorded during the backward encode pass
// and replayed forward afterward so the bitstream ends up in the order a
// forward-reading decoder expects. ANS is inherently LIFO: a state machine
// run forward over the symbol sequence would produce a decode order that is
// the reverse of encode order, so the encoder runs backward over the
// symbols and this replay corrects the bit order without needing a raw
// byte- or bit-reversal of the output buffer.
type token struct {
	nbBits uint8
	low    uint32
}

// GroupStates holds one per-lane state vector per format.BatchSize-sized
// group of a stream. Every group is encoded and decoded independently: a
// group's states depend only on the symbols inside that group, never on any
// other group, so a decoder can start at any group offset using only
// GroupStates[g] without replaying the groups before it.
type GroupStates [][format.AnsLanes]uint32

// EncodeBatch tANS-encodes symbols into w using table, processing them in
// successive format.BatchSize-sized groups (the last group may be shorter).
// Within a group, positions are interleaved across format.AnsLanes lanes by
// local index (lane = localIndex % AnsLanes), and each group's lane states
// start fresh at zero, so groups never carry state across their boundary.
// It returns one state vector per group, which the caller must persist
// (e.g. in the page header) as the initial decode states DecodeBatch needs
// to resume at that group.
func EncodeBatch(w *bitio.Writer, table *Table, symbols []uint32) (GroupStates, error) {
	var groups GroupStates

	for start := 0; start < len(symbols); start += format.BatchSize {
		end := start + format.BatchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		group := symbols[start:end]

		var state [format.AnsLanes]uint32
		tokens := make([]token, len(group))
		for i := len(group) - 1; i >= 0; i-- {
			lane := i % format.AnsLanes
			prev, nb, low, err := table.encodeStep(state[lane], group[i])
			if err != nil {
				return nil, err
			}

			state[lane] = prev
			tokens[i] = token{nbBits: nb, low: low}
		}

		for _, tk := range tokens {
			w.WriteUint(uint64(tk.low), uint(tk.nbBits))
		}

		groups = append(groups, state)
	}

	return groups, nil
}

// DecodeBatch decodes n symbols from r using table, given the per-group
// initial states written by the matching EncodeBatch call. Each group is
// decoded starting fresh from its own recorded state vector, independent of
// any other group's symbols.
func DecodeBatch(r *bitio.Reader, table *Table, groups GroupStates, n int) ([]uint32, error) {
	out := make([]uint32, 0, n)

	remaining := n
	for g := 0; remaining > 0; g++ {
		groupLen := format.BatchSize
		if groupLen > remaining {
			groupLen = remaining
		}
		if g >= len(groups) {
			return nil, errs.Wrap(errs.KindCorruption, errs.ErrCorruption, "ans.DecodeBatch", "missing group state")
		}

		state := groups[g]
		for i := 0; i < groupLen; i++ {
			lane := i % format.AnsLanes
			idx := state[lane]
			if idx >= table.size {
				return nil, errs.Wrap(errs.KindCorruption, errs.ErrCorruption, "ans.DecodeBatch", "state out of range")
			}

			e := table.decode[idx]
			out = append(out, e.symbol)

			if e.nbBits > 0 {
				low, err := r.ReadUint(uint(e.nbBits))
				if err != nil {
					return nil, err
				}
				state[lane] = e.newStateBase + uint32(low)
			} else {
				state[lane] = e.newStateBase
			}
		}

		remaining -= groupLen
	}

	return out, nil
}

// NumGroups returns how many format.BatchSize-sized groups a stream of n
// symbols splits into, the same arithmetic both EncodeBatch and DecodeBatch
// use internally — callers need it to know how many GroupStates entries to
// read back from the wire before calling DecodeBatch.
func NumGroups(n int) int {
	if n <= 0 {
		return 0
	}

	return (n + format.BatchSize - 1) / format.BatchSize
}
