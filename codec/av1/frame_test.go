/*
DESCRIPTION
  frame_test.go provides testing for sequence and frame header parsing.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
*/

package av1

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ausocean/hwdec/codec/bits"
)

// payload returns a reader positioned at the payload of OBU b.
func payload(t *testing.T, b []byte) (*reader, OBUHeader) {
	r := newReader(bits.NewReader(b))
	h := readOBUHeader(r)
	if r.br.Err() != nil {
		t.Fatalf("could not read OBU header: %v", r.br.Err())
	}
	return r, h
}

func TestParseSequenceHeader(t *testing.T) {
	r, h := payload(t, seqOBU(1920, 1080))
	if h.Type != OBUSequenceHeader {
		t.Fatalf("unexpected OBU type: %v", h.Type)
	}
	seq, err := parseSequenceHeader(r)
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}

	got := struct {
		W, H, HintBits, Level, SCT, IntMV int
		OrderHint                         bool
		Color                             ColorConfig
	}{seq.MaxWidth(), seq.MaxHeight(), seq.OrderHintBits, seq.SeqLevelIdx[0], seq.ForceScreenContentTools, seq.ForceIntegerMV, seq.EnableOrderHint, seq.Color}
	want := struct {
		W, H, HintBits, Level, SCT, IntMV int
		OrderHint                         bool
		Color                             ColorConfig
	}{1920, 1080, orderHintBits, 4, selectScreenContentTools, selectIntegerMV, true, ColorConfig{
		BitDepth:                8,
		NumPlanes:               3,
		ColorPrimaries:          cpUnspecified,
		TransferCharacteristics: tcUnspecified,
		MatrixCoefficients:      mcUnspecified,
		SubsamplingX:            1,
		SubsamplingY:            1,
	}}
	if !cmp.Equal(got, want) {
		t.Errorf("unexpected sequence header fields\n%s", cmp.Diff(want, got))
	}
}

func TestParseSequenceHeaderBadProfile(t *testing.T) {
	var w bits.Writer
	w.WriteBits(5, 3) // seq_profile
	w.WriteBits(0, 13)
	_, err := parseSequenceHeader(newReader(bits.NewReader(w.Bytes())))
	if err == nil {
		t.Error("expected error for reserved profile")
	}
}

func TestParseKeyFrameHeader(t *testing.T) {
	sr, _ := payload(t, seqOBU(128, 64))
	seq, err := parseSequenceHeader(sr)
	if err != nil {
		t.Fatalf("could not parse sequence header: %v", err)
	}

	tests := []struct {
		opts        frameOpts
		wantRefresh int
		wantTiles   int
		wantSize    int
	}{
		{opts: frameOpts{show: true, wide: true}, wantRefresh: allFrames, wantTiles: 1},
		{opts: frameOpts{show: false, refresh: 0x05, orderHint: 9, wide: true}, wantRefresh: 0x05, wantTiles: 1},
		{opts: frameOpts{show: true, wide: true, twoTiles: true}, wantRefresh: allFrames, wantTiles: 2, wantSize: 1},
	}

	var refs [numRefFrames]FrameHeader
	for i, test := range tests {
		var w bits.Writer
		writeKeyFrame(&w, test.opts)
		w.Align()
		r := newReader(bits.NewReader(w.Bytes()))
		h, err := parseFrameHeader(r, seq, &refs, OBUHeader{Type: OBUFrame})
		if err != nil {
			t.Errorf("did not expect error for test %d: %v", i, err)
			continue
		}

		if h.FrameType != KeyFrame || !h.FrameIsIntra || h.ShowFrame != test.opts.show {
			t.Errorf("unexpected frame type for test %d: type %d, intra %v, show %v", i, h.FrameType, h.FrameIsIntra, h.ShowFrame)
		}
		if h.ShowableFrame != !test.opts.show {
			t.Errorf("unexpected showable_frame for test %d: %v", i, h.ShowableFrame)
		}
		if h.RefreshFrameFlags != test.wantRefresh {
			t.Errorf("unexpected refresh flags for test %d, got: %#x, want: %#x", i, h.RefreshFrameFlags, test.wantRefresh)
		}
		if h.OrderHint != test.opts.orderHint {
			t.Errorf("unexpected order hint for test %d, got: %d, want: %d", i, h.OrderHint, test.opts.orderHint)
		}
		if h.FrameWidth != 128 || h.FrameHeight != 64 || h.UpscaledWidth != 128 || h.RenderWidth != 128 {
			t.Errorf("unexpected frame size for test %d: %dx%d", i, h.FrameWidth, h.FrameHeight)
		}
		if h.MiCols != 32 || h.MiRows != 16 {
			t.Errorf("unexpected mode info size for test %d: %dx%d", i, h.MiCols, h.MiRows)
		}
		if h.Tile.NumTiles() != test.wantTiles || h.Tile.TileSizeBytes != test.wantSize {
			t.Errorf("unexpected tiles for test %d, got: %d of %d bytes, want: %d of %d bytes", i, h.Tile.NumTiles(), h.Tile.TileSizeBytes, test.wantTiles, test.wantSize)
		}
		if h.Quant.BaseQIdx != baseQIdx || h.CodedLossless {
			t.Errorf("unexpected quantizer for test %d: %d, lossless %v", i, h.Quant.BaseQIdx, h.CodedLossless)
		}
		if h.PrimaryRefFrame != primaryRefNone || h.TxMode != TxModeLargest {
			t.Errorf("unexpected primary ref %d or tx mode %d for test %d", h.PrimaryRefFrame, h.TxMode, i)
		}
		if !cmp.Equal(h.LoopFilter.RefDeltas, defaultRefDeltas) {
			t.Errorf("unexpected loop filter ref deltas for test %d: %v", i, h.LoopFilter.RefDeltas)
		}
		if r.br.BitsLeft() >= 8 {
			t.Errorf("unexpected unread bits for test %d: %d", i, r.br.BitsLeft())
		}
	}
}

func TestShowExistingHeader(t *testing.T) {
	sr, _ := payload(t, seqOBU(64, 64))
	seq, err := parseSequenceHeader(sr)
	if err != nil {
		t.Fatalf("could not parse sequence header: %v", err)
	}

	var refs [numRefFrames]FrameHeader
	refs[3].FrameType = IntraOnlyFrame
	r, obu := payload(t, showExistingOBU(3))
	h, err := parseFrameHeader(r, seq, &refs, obu)
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if !h.ShowExistingFrame || h.FrameToShowMapIdx != 3 || h.FrameType != IntraOnlyFrame {
		t.Errorf("unexpected header: show existing %v, idx %d, type %d", h.ShowExistingFrame, h.FrameToShowMapIdx, h.FrameType)
	}
}

func TestRelativeDist(t *testing.T) {
	seq := &SequenceHeader{EnableOrderHint: true, OrderHintBits: 7}
	tests := []struct {
		a, b int
		want int
	}{
		{a: 10, b: 8, want: 2},
		{a: 8, b: 10, want: -2},
		{a: 1, b: 127, want: 2},
		{a: 127, b: 1, want: -2},
	}

	for i, test := range tests {
		got := relativeDist(seq, test.a, test.b)
		if got != test.want {
			t.Errorf("did not get expected result for test: %v\nGot: %v\nWant: %v\n", i, got, test.want)
		}
	}

	if got := relativeDist(&SequenceHeader{}, 10, 8); got != 0 {
		t.Errorf("expected zero distance without order hints, got: %d", got)
	}
}

func TestSetFrameRefs(t *testing.T) {
	p := &headerParser{
		seq: &SequenceHeader{EnableOrderHint: true, OrderHintBits: 7},
		h: &FrameHeader{
			OrderHint:    10,
			RefOrderHint: [numRefFrames]int{9, 8, 7, 6, 12, 11, 5, 4},
			LastFrameIdx: 0,
			GoldFrameIdx: 3,
		},
	}
	p.setFrameRefs()

	// LAST, LAST2, LAST3, GOLDEN, BWDREF, ALTREF2, ALTREF.
	want := [refsPerFrame]int{0, 1, 2, 3, 5, 6, 4}
	if p.h.RefFrameIdx != want {
		t.Errorf("unexpected ref_frame_idx\nGot: %v\nWant: %v", p.h.RefFrameIdx, want)
	}
}
