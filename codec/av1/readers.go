/*
DESCRIPTION
  readers.go provides the AV1 syntax element descriptors of section 4.10 of
  the AV1 bitstream specification (f, uvlc, le, leb128, su, ns) and the
  subexponential codes used for global motion parameters.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package av1

import "github.com/ausocean/hwdec/codec/bits"

// maxLEB128Bytes is the most bytes a leb128 value may occupy.
const maxLEB128Bytes = 8

// reader reads AV1 syntax elements from a bits.Reader.
type reader struct {
	br *bits.Reader
}

func newReader(br *bits.Reader) *reader { return &reader{br: br} }

// f reads an n bit unsigned value, n <= 32.
func (r *reader) f(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.br.GetBits(n))
}

// flag reads f(1) as a bool.
func (r *reader) flag() bool { return r.f(1) == 1 }

// uvlc reads a variable length unsigned value. A value with 32 or more
// leading zeros reads as 0xffffffff.
func (r *reader) uvlc() uint32 {
	leadingZeros := 0
	for !r.flag() {
		if r.br.Err() != nil {
			return 0
		}
		leadingZeros++
	}
	if leadingZeros >= 32 {
		return 0xffffffff
	}
	v := uint32(r.f(leadingZeros))
	return v + (1 << uint(leadingZeros)) - 1
}

// le reads an n byte little-endian value.
func (r *reader) le(n int) int {
	t := 0
	for i := 0; i < n; i++ {
		t += r.f(8) << uint(i*8)
	}
	return t
}

// uleb128 reads an unsigned little-endian base 128 value of up to eight bytes.
func (r *reader) uleb128() uint64 {
	var v uint64
	for i := 0; i < maxLEB128Bytes; i++ {
		b := r.f(8)
		v |= uint64(b&0x7f) << uint(i*7)
		if b&0x80 == 0 {
			break
		}
	}
	return v
}

// su reads an n bit two's complement signed value.
func (r *reader) su(n int) int {
	v := r.f(n)
	signMask := 1 << uint(n-1)
	if v&signMask != 0 {
		v -= 2 * signMask
	}
	return v
}

// ns reads a non-symmetric unsigned value in the range [0, n), n >= 1.
func (r *reader) ns(n int) int {
	w := floorLog2(n) + 1
	m := (1 << uint(w)) - n
	v := r.f(w - 1)
	if v < m {
		return v
	}
	extra := r.f(1)
	return (v << 1) - m + extra
}

// align discards bits up to the next byte boundary, i.e. byte_alignment().
func (r *reader) align() { r.br.Align() }

// decodeSubexp reads a subexponential code of k = 3 for a value in
// [0, numSyms).
func (r *reader) decodeSubexp(numSyms int) int {
	const k = 3
	i, mk := 0, 0
	for {
		b2 := k
		if i != 0 {
			b2 = k + i - 1
		}
		a := 1 << uint(b2)
		if numSyms <= mk+3*a {
			return r.ns(numSyms-mk) + mk
		}
		if !r.flag() {
			return r.f(b2) + mk
		}
		i++
		mk += a
	}
}

// decodeUnsignedSubexpWithRef reads a value in [0, mx) coded relative to the
// reference value ref.
func (r *reader) decodeUnsignedSubexpWithRef(mx, ref int) int {
	v := r.decodeSubexp(mx)
	if ref<<1 <= mx {
		return inverseRecenter(ref, v)
	}
	return mx - 1 - inverseRecenter(mx-1-ref, v)
}

// decodeSignedSubexpWithRef reads a value in [low, high) coded relative to
// the reference value ref.
func (r *reader) decodeSignedSubexpWithRef(low, high, ref int) int {
	return r.decodeUnsignedSubexpWithRef(high-low, ref-low) + low
}

// inverseRecenter maps v back to a value centred on r.
func inverseRecenter(r, v int) int {
	switch {
	case v > 2*r:
		return v
	case v&1 != 0:
		return r - ((v + 1) >> 1)
	default:
		return r + (v >> 1)
	}
}

// floorLog2 returns floor(log2(x)) for x >= 1.
func floorLog2(x int) int {
	s := 0
	for x > 1 {
		x >>= 1
		s++
	}
	return s
}

// tileLog2 returns the smallest k such that blkSize << k >= target.
func tileLog2(blkSize, target int) int {
	k := 0
	for (blkSize << uint(k)) < target {
		k++
	}
	return k
}
