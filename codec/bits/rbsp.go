/*
DESCRIPTION
  rbsp.go provides a reader for raw byte sequence payloads, i.e. NAL unit
  payloads with emulation prevention bytes removed, and the Exp-Golomb
  descriptors used by ITU-T H.264 and H.265 syntax.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package bits

// RBSP reads syntax elements from a NAL unit payload. It carries a sticky
// error so that a series of reads may be made and the error checked once at
// the end of a syntax structure.
type RBSP struct {
	buf []byte
	pos int // Bit position.
	err error
}

// NewRBSP returns an RBSP reading from the escaped NAL payload b. Emulation
// prevention bytes (the 0x03 in 0x000003) are removed.
func NewRBSP(b []byte) *RBSP {
	return &RBSP{buf: Unescape(b)}
}

// ReadRBSP consumes bytes from r up to the next start code prefix, or until
// limit bits have been consumed if limit is non-negative, and returns an RBSP
// over them. Zero bytes ending r are left unread, as they may begin a start
// code completed by later input. r must be byte aligned.
func ReadRBSP(r *Reader, limit int) *RBSP {
	start := r.Pos()
	for r.BitsLeft() >= 8 && (limit < 0 || limit >= 8) {
		left := r.BitsLeft()
		if left >= 24 && r.PeekBits(24) == 0x000001 {
			break
		}
		if left >= 32 && r.PeekBits(32) == 0x00000001 {
			break
		}
		if left < 32 && r.PeekBits(left) == 0 {
			break
		}
		r.EatBits(8)
		if limit >= 0 {
			limit -= 8
		}
	}
	return NewRBSP(r.Bytes(start, r.Pos()))
}

// Unescape returns a copy of b with emulation prevention bytes removed.
func Unescape(b []byte) []byte {
	out := make([]byte, 0, len(b))
	zeros := 0
	for _, c := range b {
		if zeros >= 2 && c == 0x03 {
			zeros = 0
			continue
		}
		if c == 0 {
			zeros++
		} else {
			zeros = 0
		}
		out = append(out, c)
	}
	return out
}

// U reads an n bit unsigned integer, u(n), for n <= 32.
func (r *RBSP) U(n int) int {
	if r.err != nil {
		return 0
	}
	v := 0
	for i := 0; i < n; i++ {
		if r.pos >= len(r.buf)*8 {
			r.err = ErrOverrun
			return 0
		}
		b := (r.buf[r.pos/8] >> uint(7-r.pos%8)) & 1
		v = v<<1 | int(b)
		r.pos++
	}
	return v
}

// Flag reads a u(1) syntax element as a bool.
func (r *RBSP) Flag() bool { return r.U(1) == 1 }

// Skip discards n bits.
func (r *RBSP) Skip(n int) {
	for ; n > 32; n -= 32 {
		r.U(32)
	}
	r.U(n)
}

// UE parses a syntax element of ue(v) descriptor, i.e. an unsigned integer
// Exp-Golomb-coded element using the method specified in section 9.1 of ITU-T
// H.264.
func (r *RBSP) UE() int {
	nZeros := 0
	for r.err == nil && r.U(1) == 0 {
		nZeros++
		if nZeros > 31 {
			r.err = ErrOverrun
			return 0
		}
	}
	if r.err != nil {
		return 0
	}
	return (1 << uint(nZeros)) - 1 + r.U(nZeros)
}

// SE parses a syntax element with descriptor se(v), i.e. a signed integer
// Exp-Golomb-coded syntax element, using the method described in sections
// 9.1 and 9.1.1 of ITU-T H.264.
func (r *RBSP) SE() int {
	k := r.UE()
	if k%2 == 0 {
		return -(k / 2)
	}
	return (k + 1) / 2
}

// MoreData implements more_rbsp_data() from section 7.2 of ITU-T H.264, i.e.
// it returns true if there is data before the rbsp_stop_one_bit.
func (r *RBSP) MoreData() bool {
	if r.err != nil {
		return false
	}
	last := -1
	for i := len(r.buf) - 1; i >= 0; i-- {
		if r.buf[i] != 0 {
			for b := 0; b < 8; b++ {
				if r.buf[i]&(1<<uint(b)) != 0 {
					last = i*8 + 7 - b
					break
				}
			}
			break
		}
	}
	return r.pos < last
}

// BitsLeft returns the number of unread bits.
func (r *RBSP) BitsLeft() int { return len(r.buf)*8 - r.pos }

// Err returns the first error encountered by a read.
func (r *RBSP) Err() error { return r.err }
