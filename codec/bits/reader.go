/*
DESCRIPTION
  reader.go provides a bit reader over one or more byte segments that are
  treated as a single logical stream.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package bits provides bit level readers and writers for compressed video
// bitstreams.
package bits

import "github.com/pkg/errors"

// ErrOverrun is recorded by a Reader or RBSP when a read asks for more bits
// than the source holds. The read returns zero bits in place of the missing
// ones.
var ErrOverrun = errors.New("read past end of bitstream")

// maxCache is the number of bits the Reader cache can hold.
const maxCache = 64

// Reader is an MSB first bit reader over a list of byte segments. Bits are
// moved from the segments into a 64 bit cache by FillBits, and reads are
// served from the cache. Reads that exceed the cache refill it as required.
type Reader struct {
	segs   [][]byte
	seg    int    // Segment holding the next byte to load.
	off    int    // Offset of the next byte to load within segs[seg].
	total  int    // Total bytes across all segments.
	loaded int    // Bytes loaded into the cache so far.
	cache  uint64 // Valid bits are the low valid bits.
	valid  int
	err    error
}

// NewReader returns a new Reader over segs. The segments are read in order as
// one stream.
func NewReader(segs ...[]byte) *Reader {
	r := &Reader{segs: segs}
	for _, s := range segs {
		r.total += len(s)
	}
	r.FillBits()
	return r
}

// FillBits tops up the cache from the segments.
func (r *Reader) FillBits() {
	for r.valid <= maxCache-8 && r.loaded < r.total {
		for r.off >= len(r.segs[r.seg]) {
			r.seg++
			r.off = 0
		}
		r.cache = r.cache<<8 | uint64(r.segs[r.seg][r.off])
		r.off++
		r.loaded++
		r.valid += 8
	}
}

// ValidBits returns the number of bits currently held in the cache.
func (r *Reader) ValidBits() int { return r.valid }

// BitsLeft returns the number of unread bits in the stream.
func (r *Reader) BitsLeft() int { return r.valid + 8*(r.total-r.loaded) }

// PeekBits returns the next n bits, 0 <= n <= 32, without consuming them.
// Bits beyond the end of the stream read as zero.
func (r *Reader) PeekBits(n int) uint32 {
	if n == 0 {
		return 0
	}
	if r.valid < n {
		r.FillBits()
	}
	if r.valid >= n {
		return uint32((r.cache >> uint(r.valid-n)) & mask(n))
	}
	return uint32((r.cache & mask(r.valid)) << uint(n-r.valid))
}

// EatBits discards the next n bits. If fewer than n bits remain, the stream is
// drained and ErrOverrun is recorded.
func (r *Reader) EatBits(n int) {
	for n > 0 {
		if r.valid == 0 {
			r.FillBits()
			if r.valid == 0 {
				r.err = ErrOverrun
				return
			}
		}
		k := n
		if k > r.valid {
			k = r.valid
		}
		r.valid -= k
		n -= k
	}
}

// GetBits reads n bits, 0 <= n <= 32, MSB first.
func (r *Reader) GetBits(n int) uint32 {
	v := r.PeekBits(n)
	r.EatBits(n)
	return v
}

// Flag reads a single bit as a bool.
func (r *Reader) Flag() bool { return r.GetBits(1) == 1 }

// Aligned returns true if the read position is on a byte boundary.
func (r *Reader) Aligned() bool { return r.valid%8 == 0 }

// Align discards bits up to the next byte boundary.
func (r *Reader) Align() { r.EatBits(r.valid % 8) }

// Pos returns the number of whole bytes consumed from the start of the stream.
func (r *Reader) Pos() int { return (r.loaded*8 - r.valid) / 8 }

// Len returns the total length of the stream in bytes.
func (r *Reader) Len() int { return r.total }

// Err returns ErrOverrun if any read has run past the end of the stream.
func (r *Reader) Err() error { return r.err }

// SearchByte scans forward byte by byte for value, examining at most
// limit/8 bytes, or the rest of the stream if limit is negative. The reader
// must be byte aligned. On success the reader is left positioned at the
// matching byte and true is returned. Otherwise the scanned bytes are consumed
// and false is returned.
func (r *Reader) SearchByte(limit int, value byte) bool {
	for {
		if r.BitsLeft() < 8 || (limit >= 0 && limit < 8) {
			return false
		}
		if byte(r.PeekBits(8)) == value {
			return true
		}
		r.EatBits(8)
		if limit >= 0 {
			limit -= 8
			if limit == 0 {
				return false
			}
		}
	}
}

// Bytes returns a copy of the stream bytes in the logical range [from, to).
func (r *Reader) Bytes(from, to int) []byte {
	if from < 0 {
		from = 0
	}
	if to > r.total {
		to = r.total
	}
	if to <= from {
		return nil
	}
	out := make([]byte, 0, to-from)
	base := 0
	for _, s := range r.segs {
		end := base + len(s)
		if end > from && base < to {
			lo, hi := from-base, to-base
			if lo < 0 {
				lo = 0
			}
			if hi > len(s) {
				hi = len(s)
			}
			out = append(out, s[lo:hi]...)
		}
		base = end
	}
	return out
}

// SegmentEnd returns the logical offset one past the end of the segment that
// holds the byte at pos.
func (r *Reader) SegmentEnd(pos int) int {
	base := 0
	for _, s := range r.segs {
		base += len(s)
		if pos < base {
			return base
		}
	}
	return r.total
}

func mask(n int) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}
	return (1 << uint(n)) - 1
}
