/*
DESCRIPTION
  readers_test.go provides testing for the AV1 syntax element readers and the
  OBU header functions.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
*/

package av1

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/ausocean/hwdec/codec/bits"
)

func readerFor(s string) *reader { return newReader(bits.NewReader(binToBytes(s))) }

func TestNS(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{in: "00", want: 0},
		{in: "01", want: 1},
		{in: "10", want: 2},
		{in: "110", want: 3},
		{in: "111", want: 4},
	}

	for i, test := range tests {
		got := readerFor(test.in).ns(5)
		if got != test.want {
			t.Errorf("did not get expected result for test: %v\nGot: %v\nWant: %v\n", i, got, test.want)
		}
	}
}

func TestSU(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{in: "0111", want: 7},
		{in: "1111", want: -1},
		{in: "1000", want: -8},
		{in: "0000", want: 0},
	}

	for i, test := range tests {
		got := readerFor(test.in).su(4)
		if got != test.want {
			t.Errorf("did not get expected result for test: %v\nGot: %v\nWant: %v\n", i, got, test.want)
		}
	}
}

func TestUVLC(t *testing.T) {
	tests := []struct {
		in   string
		want uint32
	}{
		{in: "1", want: 0},
		{in: "010", want: 1},
		{in: "011", want: 2},
		{in: "00100", want: 3},
		{in: "0001000", want: 7},
	}

	for i, test := range tests {
		got := readerFor(test.in).uvlc()
		if got != test.want {
			t.Errorf("did not get expected result for test: %v\nGot: %v\nWant: %v\n", i, got, test.want)
		}
	}
}

func TestLEAndLEB128(t *testing.T) {
	r := newReader(bits.NewReader([]byte{0x34, 0x12, 0xe5, 0x8e, 0x26, 0x7f}))
	if got := r.le(2); got != 0x1234 {
		t.Errorf("unexpected le(2) result, got: %#x, want: 0x1234", got)
	}
	if got := r.uleb128(); got != 624485 {
		t.Errorf("unexpected uleb128 result, got: %d, want: 624485", got)
	}
	if got := r.uleb128(); got != 127 {
		t.Errorf("unexpected uleb128 result, got: %d, want: 127", got)
	}
}

func TestInverseRecenter(t *testing.T) {
	tests := []struct {
		r, v int
		want int
	}{
		{r: 5, v: 0, want: 5},
		{r: 5, v: 1, want: 4},
		{r: 5, v: 2, want: 6},
		{r: 5, v: 3, want: 3},
		{r: 5, v: 10, want: 10},
		{r: 5, v: 11, want: 11},
	}

	for i, test := range tests {
		got := inverseRecenter(test.r, test.v)
		if got != test.want {
			t.Errorf("did not get expected result for test: %v\nGot: %v\nWant: %v\n", i, got, test.want)
		}
	}
}

func TestDecodeSubexp(t *testing.T) {
	tests := []struct {
		in      string
		numSyms int
		want    int
	}{
		{in: "111", numSyms: 5, want: 4},
		{in: "0101", numSyms: 100, want: 5},
		{in: "10011", numSyms: 100, want: 11},
		{in: "110000", numSyms: 100, want: 16},
	}

	for i, test := range tests {
		got := readerFor(test.in).decodeSubexp(test.numSyms)
		if got != test.want {
			t.Errorf("did not get expected result for test: %v\nGot: %v\nWant: %v\n", i, got, test.want)
		}
	}
}

func TestTileLog2(t *testing.T) {
	tests := []struct {
		blk, target int
		want        int
	}{
		{blk: 1, target: 1, want: 0},
		{blk: 1, target: 2, want: 1},
		{blk: 1, target: 5, want: 3},
		{blk: 64, target: 2, want: 0},
	}

	for i, test := range tests {
		got := tileLog2(test.blk, test.target)
		if got != test.want {
			t.Errorf("did not get expected result for test: %v\nGot: %v\nWant: %v\n", i, got, test.want)
		}
	}
}

func TestReadOBUHeader(t *testing.T) {
	// OBU_FRAME with extension, temporal id 2, spatial id 1, size 300.
	b := []byte{0x36, 0x48, 0xac, 0x02}
	h := readOBUHeader(newReader(bits.NewReader(b)))
	want := OBUHeader{Type: OBUFrame, Extension: true, HasSizeField: true, TemporalID: 2, SpatialID: 1, Size: 300}
	if h != want {
		t.Errorf("unexpected header\nGot: %+v\nWant: %+v", h, want)
	}

	h = readOBUHeader(newReader(bits.NewReader([]byte{0x10})))
	if h.Type != OBUTemporalDelimiter || h.HasSizeField || h.Size != -1 {
		t.Errorf("unexpected header for OBU without size: %+v", h)
	}
}

func TestNextTemporalUnit(t *testing.T) {
	tu1 := join(td(), seqOBU(64, 64), frameOBU(frameOpts{show: true}, []byte{1, 2, 3}))
	tu2 := join(td(), frameOBU(frameOpts{show: true, orderHint: 1}, []byte{4, 5}))

	n, err := NextTemporalUnit(join(tu1, tu2))
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if n != len(tu1) {
		t.Errorf("unexpected first unit length, got: %d, want: %d", n, len(tu1))
	}

	n, err = NextTemporalUnit(tu2)
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if n != len(tu2) {
		t.Errorf("unexpected last unit length, got: %d, want: %d", n, len(tu2))
	}

	_, err = NextTemporalUnit(tu2[:len(tu2)-1])
	if !errors.Is(err, ErrShortOBU) {
		t.Errorf("unexpected error for truncated unit, got: %v, want: %v", err, ErrShortOBU)
	}
}
