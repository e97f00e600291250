/*
DESCRIPTION
  writer.go provides a bit writer used to build bitstreams, i.e. parameter
  sets, slice headers and OBUs, for testing parsers.

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

// Writer writes bits MSB first.
type Writer struct {
	data []byte
	n    int // Bits used in the last byte, 0 if byte aligned.
}

// WriteBits writes the low n bits of v.
func (w *Writer) WriteBits(v uint64, n int) {
	for i := n - 1; i >= 0; i-- {
		if w.n == 0 {
			w.data = append(w.data, 0)
		}
		if v&(1<<uint(i)) != 0 {
			w.data[len(w.data)-1] |= 0x80 >> uint(w.n)
		}
		w.n = (w.n + 1) % 8
	}
}

// WriteFlag writes b as a single bit.
func (w *Writer) WriteFlag(b bool) {
	if b {
		w.WriteBits(1, 1)
		return
	}
	w.WriteBits(0, 1)
}

// WriteUE writes v as an unsigned Exp-Golomb code.
func (w *Writer) WriteUE(v uint) {
	v++
	lz := 0
	for t := v; t > 1; t >>= 1 {
		lz++
	}
	w.WriteBits(0, lz)
	w.WriteBits(uint64(v), lz+1)
}

// WriteSE writes v as a signed Exp-Golomb code.
func (w *Writer) WriteSE(v int) {
	if v <= 0 {
		w.WriteUE(uint(-v) * 2)
		return
	}
	w.WriteUE(uint(v)*2 - 1)
}

// WriteLEB128 writes v as an unsigned little-endian base 128 value.
func (w *Writer) WriteLEB128(v uint64) {
	for {
		b := v & 0x7f
		v >>= 7
		if v != 0 {
			w.WriteBits(b|0x80, 8)
			continue
		}
		w.WriteBits(b, 8)
		return
	}
}

// WriteBytes writes b after aligning to a byte boundary.
func (w *Writer) WriteBytes(b []byte) {
	w.Align()
	w.data = append(w.data, b...)
}

// Align pads with zero bits to the next byte boundary.
func (w *Writer) Align() {
	if w.n != 0 {
		w.WriteBits(0, 8-w.n)
	}
}

// TrailingBits writes a stop bit followed by zero bits to the byte boundary.
func (w *Writer) TrailingBits() {
	w.WriteBits(1, 1)
	w.Align()
}

// Len returns the number of bits written.
func (w *Writer) Len() int {
	if w.n == 0 {
		return len(w.data) * 8
	}
	return (len(w.data)-1)*8 + w.n
}

// Bytes returns the written data.
func (w *Writer) Bytes() []byte { return w.data }

// Escape returns a copy of b with emulation prevention bytes inserted, i.e.
// the inverse of Unescape.
func Escape(b []byte) []byte {
	out := make([]byte, 0, len(b)+len(b)/2)
	zeros := 0
	for _, c := range b {
		if zeros >= 2 && c <= 0x03 {
			out = append(out, 0x03)
			zeros = 0
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
