// Package digest computes a content digest over encoded Pco bytes, an
// out-of-band integrity aid for callers who persist or transmit chunks. It
// is never consulted by the decoder and is not part of the bit-exact wire
// layout — two callers can disagree about whether to check it without
// affecting interoperability.
package digest

import "github.com/cespare/xxhash/v2"

// Checksum returns the 64-bit xxHash digest of data.
func Checksum(data []byte) uint64 {
	return xxhash.Sum64(data)
}
