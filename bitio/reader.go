package bitio

import "github.com/arloliu/pco/errs"

// Reader consumes bits from a byte slice in the same little-endian,
// LSB-first order Writer produces. It does not own the underlying slice and
// never copies it. A Reader is not safe for concurrent use.
type Reader struct {
	data     []byte
	pos      int
	acc      uint64
	nbits    uint
	consumed uint64
}

// NewReader wraps data for bit-level reads. data is not copied or retained
// beyond the lifetime of the Reader's caller.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// ReadUint reads the next n bits, n in [0, 64], and returns them as the low
// bits of the result. Returns errs.ErrInsufficientData if fewer than n bits
// remain.
func (r *Reader) ReadUint(n uint) (uint64, error) {
	if n == 0 {
		return 0, nil
	}

	var result uint64
	var got uint
	for got < n {
		if r.nbits == 0 {
			if r.pos >= len(r.data) {
				return 0, errs.Wrap(errs.KindInsufficientData, errs.ErrInsufficientData, "bitio.Reader.ReadUint", "")
			}
			r.acc = uint64(r.data[r.pos])
			r.pos++
			r.nbits = 8
		}

		take := n - got
		if take > r.nbits {
			take = r.nbits
		}

		mask := (uint64(1) << take) - 1
		chunk := r.acc & mask
		result |= chunk << got

		r.acc >>= take
		r.nbits -= take
		got += take
	}

	r.consumed += uint64(n)

	return result, nil
}

// AlignToByte discards any unread bits remaining in the current partial
// byte, advancing the logical cursor to the next byte boundary. It mirrors
// Writer.AlignToByte's zero-padding on the read side.
func (r *Reader) AlignToByte() {
	if r.nbits == 0 {
		return
	}

	r.consumed += uint64(r.nbits)
	r.acc = 0
	r.nbits = 0
}

// BitsConsumed returns the number of bits logically consumed so far via
// ReadUint and AlignToByte.
func (r *Reader) BitsConsumed() uint64 {
	return r.consumed
}

// Remaining returns an upper bound on the number of bits left unread,
// including any bits staged in the internal register.
func (r *Reader) Remaining() uint64 {
	return uint64(len(r.data)-r.pos)*8 + uint64(r.nbits)
}
