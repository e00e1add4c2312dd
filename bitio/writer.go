// Package bitio implements the little-endian, LSB-first bit stream that
// every other Pco component packs its integers into. Bits are appended
// low-order-first within each byte, matching the accumulator style used by
// stream-oriented entropy coders (see the interleaved-ANS reference this
// package is grounded on) rather than the MSB-first big-endian bit packing
// a timestamp/value delta codec would use.
package bitio

import "github.com/arloliu/pco/internal/pool"

// Writer accumulates bits into a byte buffer. The zero value is not usable;
// construct one with NewWriter or NewChunkWriter. A Writer is not safe for
// concurrent use.
type Writer struct {
	buf       *pool.ByteBuffer
	chunkPool bool   // true if buf came from the chunk pool, not the page pool
	acc       uint64 // low nbits bits valid, rest zero
	nbits     uint   // 0..63, bits currently staged in acc
}

// NewWriter returns a Writer backed by a pooled page buffer, sized for a
// single page's worth of bits. Call Release once the caller has taken
// ownership of Bytes() and no longer needs the Writer, so the backing
// buffer can return to the pool.
func NewWriter() *Writer {
	return &Writer{buf: pool.GetPageBuffer()}
}

// NewChunkWriter returns a Writer backed by a pooled chunk buffer, sized for
// an assembled chunk's (or, in container.Encode's case, a whole standalone
// stream's) worth of concatenated pages — larger than NewWriter's page
// buffer, so callers that grow a single Writer across many EncodeChunk
// calls avoid repeated reallocation. Call Release the same way NewWriter's
// callers do.
func NewChunkWriter() *Writer {
	return &Writer{buf: pool.GetChunkBuffer(), chunkPool: true}
}

// WriteUint appends the low n bits of value to the stream, n in [0, 64].
// Bits are written least-significant-bit first: the first WriteUint call's
// bit 0 becomes bit 0 of the first output byte.
func (w *Writer) WriteUint(value uint64, n uint) {
	if n == 0 {
		return
	}
	if n < 64 {
		value &= (uint64(1) << n) - 1
	}

	for n > 0 {
		free := 64 - w.nbits
		take := n
		if take > free {
			take = free
		}

		mask := (uint64(1) << take) - 1
		chunk := value & mask

		w.acc |= chunk << w.nbits
		w.nbits += take
		value >>= take
		n -= take

		for w.nbits >= 8 {
			w.buf.MustWrite([]byte{byte(w.acc)})
			w.acc >>= 8
			w.nbits -= 8
		}
	}
}

// AlignToByte flushes any partial byte, zero-padding the unused high bits.
// Subsequent writes start at the next byte boundary.
func (w *Writer) AlignToByte() {
	if w.nbits == 0 {
		return
	}

	w.buf.MustWrite([]byte{byte(w.acc)})
	w.acc = 0
	w.nbits = 0
}

// BitsWritten returns the total number of bits written so far, including
// any bits currently staged but not yet flushed to a whole byte.
func (w *Writer) BitsWritten() uint64 {
	return uint64(w.buf.Len())*8 + uint64(w.nbits)
}

// Bytes returns the bytes written so far. AlignToByte must be called first
// if a byte-aligned view is required; otherwise any staged partial byte is
// not included. The returned slice aliases the Writer's internal buffer and
// is only valid until the Writer is reused or released.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Release returns the Writer's backing buffer to the pool it came from. The
// Writer must not be used afterward.
func (w *Writer) Release() {
	if w.buf == nil {
		return
	}
	if w.chunkPool {
		pool.PutChunkBuffer(w.buf)
	} else {
		pool.PutPageBuffer(w.buf)
	}
	w.buf = nil
}
