/*
DESCRIPTION
  decode_test.go provides testing for the H.264 parser, in particular
  parameter set parsing, picture order count derivation and picture output
  order.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
*/

package h264

import (
	"testing"

	"github.com/ausocean/utils/logging"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/ausocean/hwdec/codec/bits"
	"github.com/ausocean/hwdec/hw"
	"github.com/ausocean/hwdec/hw/sim"
	"github.com/ausocean/hwdec/stream"
)

type dumbLogger struct{}

func (dl *dumbLogger) Log(l int8, m string, a ...interface{})  {}
func (dl *dumbLogger) SetLevel(l int8)                         {}
func (dl *dumbLogger) Debug(msg string, args ...interface{})   {}
func (dl *dumbLogger) Info(msg string, args ...interface{})    {}
func (dl *dumbLogger) Warning(msg string, args ...interface{}) {}
func (dl *dumbLogger) Error(msg string, args ...interface{})   {}
func (dl *dumbLogger) Fatal(msg string, args ...interface{})   {}

// Header bytes for the NAL units used in tests.
const (
	hdrSPS         = 0x67
	hdrPPS         = 0x68
	hdrIDR         = 0x65
	hdrRefSlice    = 0x41
	hdrNonRefSlice = 0x01
)

func nal(w *bits.Writer, header byte, rbsp *bits.Writer) {
	w.WriteBytes([]byte{0x00, 0x00, 0x00, 0x01, header})
	w.WriteBytes(bits.Escape(rbsp.Bytes()))
}

type spsOpts struct {
	id            int
	pocType       int
	refFrameCycle []int
	nonRefOffset  int
}

func writeSPS(o spsOpts) *bits.Writer {
	var w bits.Writer
	w.WriteBits(66, 8) // profile_idc
	w.WriteBits(0, 8)  // constraint flags
	w.WriteBits(30, 8) // level_idc
	w.WriteUE(uint(o.id))
	w.WriteUE(0) // log2_max_frame_num_minus4
	w.WriteUE(uint(o.pocType))
	switch o.pocType {
	case 0:
		w.WriteUE(0) // log2_max_pic_order_cnt_lsb_minus4
	case 1:
		w.WriteFlag(true) // delta_pic_order_always_zero_flag
		w.WriteSE(o.nonRefOffset)
		w.WriteSE(0) // offset_for_top_to_bottom_field
		w.WriteUE(uint(len(o.refFrameCycle)))
		for _, v := range o.refFrameCycle {
			w.WriteSE(v)
		}
	}
	w.WriteUE(1)       // max_num_ref_frames
	w.WriteFlag(false) // gaps_in_frame_num_value_allowed_flag
	w.WriteUE(1)       // pic_width_in_mbs_minus1
	w.WriteUE(0)       // pic_height_in_map_units_minus1
	w.WriteFlag(true)  // frame_mbs_only_flag
	w.WriteFlag(true)  // direct_8x8_inference_flag
	w.WriteFlag(false) // frame_cropping_flag
	w.WriteFlag(false) // vui_parameters_present_flag
	w.TrailingBits()
	return &w
}

func writePPS(id, spsID int) *bits.Writer {
	var w bits.Writer
	w.WriteUE(uint(id))
	w.WriteUE(uint(spsID))
	w.WriteFlag(false) // entropy_coding_mode_flag
	w.WriteFlag(false) // bottom_field_pic_order_in_frame_present_flag
	w.WriteUE(0)       // num_slice_groups_minus1
	w.WriteUE(2)       // num_ref_idx_l0_default_active_minus1
	w.WriteUE(0)       // num_ref_idx_l1_default_active_minus1
	w.WriteFlag(false) // weighted_pred_flag
	w.WriteBits(0, 2)  // weighted_bipred_idc
	w.WriteSE(0)       // pic_init_qp_minus26
	w.WriteSE(0)       // pic_init_qs_minus26
	w.WriteSE(-2)      // chroma_qp_index_offset
	w.WriteFlag(true)  // deblocking_filter_control_present_flag
	w.WriteFlag(false) // constrained_intra_pred_flag
	w.WriteFlag(false) // redundant_pic_cnt_present_flag
	w.TrailingBits()
	return &w
}

type sliceOpts struct {
	idr      bool
	sliceTyp int
	frameNum int
	pocLSB   int
	pocType  int
}

func writeSlice(o sliceOpts) *bits.Writer {
	var w bits.Writer
	w.WriteUE(0) // first_mb_in_slice
	w.WriteUE(uint(o.sliceTyp))
	w.WriteUE(0) // pic_parameter_set_id
	w.WriteBits(uint64(o.frameNum), 4)
	if o.idr {
		w.WriteUE(0) // idr_pic_id
	}
	if o.pocType == 0 {
		w.WriteBits(uint64(o.pocLSB), 4)
	}
	if o.sliceTyp%5 == sliceTypeP {
		w.WriteFlag(false) // num_ref_idx_active_override_flag
	}
	w.WriteBits(0xa55a, 16) // Slice data.
	w.TrailingBits()
	return &w
}

func decodeAll(d *Decoder, s *stream.Session, data []byte) {
	r := bits.NewReader(data)
	for r.BitsLeft() > 0 {
		d.Decode(r, 0)
		r.FillBits()
	}
	s.EndSlice(r)
	d.EndFrame()
}

func newTestDecoder(t *testing.T, dpbSize int) (*Decoder, *stream.Session, *sim.Device) {
	dev := sim.New()
	s := stream.NewSession(dev, (*logging.TestLogger)(t), 0, 0)
	s.In = stream.NewBuffer(0)
	return NewDecoder(s, dpbSize), s, dev
}

// pocs returns the top field order count of each frame decoded on dev.
func pocs(t *testing.T, dev *sim.Device) []int {
	codecs := dev.Codecs()
	if len(codecs) != 1 {
		t.Fatalf("unexpected number of codecs: %d", len(codecs))
	}
	var got []int
	for _, f := range codecs[0].Frames {
		if !f.Ended {
			t.Errorf("frame not ended")
		}
		got = append(got, f.Picture.(*Picture).FieldOrderCnt[0])
	}
	return got
}

func TestPOCType0Wraparound(t *testing.T) {
	var w bits.Writer
	nal(&w, hdrSPS, writeSPS(spsOpts{}))
	nal(&w, hdrPPS, writePPS(0, 0))
	nal(&w, hdrIDR, writeSlice(sliceOpts{idr: true, sliceTyp: 7}))
	for i, lsb := range []int{4, 8, 12, 0, 4} {
		nal(&w, hdrRefSlice, writeSlice(sliceOpts{sliceTyp: 5, frameNum: i + 1, pocLSB: lsb}))
	}

	d, s, dev := newTestDecoder(t, 5)
	decodeAll(d, s, w.Bytes())

	want := []int{0, 4, 8, 12, 16, 20}
	if got := pocs(t, dev); !cmp.Equal(got, want) {
		t.Errorf("unexpected POCs\ngot: %v\nwant: %v", got, want)
	}
	if d.st.picOrderCntMSB != 16 {
		t.Errorf("unexpected POC MSB, got: %d, want: 16", d.st.picOrderCntMSB)
	}

	// Six pictures with a buffer of five forces output of the IDR picture.
	frames := dev.Codecs()[0].Frames
	if !s.FrameFinished || s.In.Picture != frames[0].Target {
		t.Errorf("IDR picture not output on overflow")
	}
	for i := 1; i < len(frames); i++ {
		b, _ := d.Flush()
		if b != frames[i].Target {
			t.Errorf("unexpected flush order at picture %d", i)
		}
	}
	if b, _ := d.Flush(); b != nil {
		t.Errorf("expected empty buffer")
	}
}

func TestPOCType1(t *testing.T) {
	var w bits.Writer
	nal(&w, hdrSPS, writeSPS(spsOpts{pocType: 1, refFrameCycle: []int{2}, nonRefOffset: -1}))
	nal(&w, hdrPPS, writePPS(0, 0))
	nal(&w, hdrIDR, writeSlice(sliceOpts{idr: true, sliceTyp: 7, pocType: 1}))
	nal(&w, hdrRefSlice, writeSlice(sliceOpts{sliceTyp: 5, frameNum: 1, pocType: 1}))
	nal(&w, hdrRefSlice, writeSlice(sliceOpts{sliceTyp: 5, frameNum: 2, pocType: 1}))
	nal(&w, hdrNonRefSlice, writeSlice(sliceOpts{sliceTyp: 5, frameNum: 3, pocType: 1}))

	d, s, dev := newTestDecoder(t, 5)
	decodeAll(d, s, w.Bytes())

	// The non-reference picture uses the expected count of the previous
	// reference picture plus offset_for_non_ref_pic.
	want := []int{0, 2, 4, 3}
	if got := pocs(t, dev); !cmp.Equal(got, want) {
		t.Errorf("unexpected POCs\ngot: %v\nwant: %v", got, want)
	}
}

func TestPOCType2(t *testing.T) {
	var w bits.Writer
	nal(&w, hdrSPS, writeSPS(spsOpts{pocType: 2}))
	nal(&w, hdrPPS, writePPS(0, 0))
	nal(&w, hdrIDR, writeSlice(sliceOpts{idr: true, sliceTyp: 7, pocType: 2}))
	nal(&w, hdrRefSlice, writeSlice(sliceOpts{sliceTyp: 5, frameNum: 1, pocType: 2}))
	nal(&w, hdrNonRefSlice, writeSlice(sliceOpts{sliceTyp: 5, frameNum: 2, pocType: 2}))
	nal(&w, hdrRefSlice, writeSlice(sliceOpts{sliceTyp: 5, frameNum: 2, pocType: 2}))

	d, s, dev := newTestDecoder(t, 5)
	decodeAll(d, s, w.Bytes())

	want := []int{0, 2, 3, 4}
	if got := pocs(t, dev); !cmp.Equal(got, want) {
		t.Errorf("unexpected POCs\ngot: %v\nwant: %v", got, want)
	}
}

func TestSlicesOfOnePicture(t *testing.T) {
	var w bits.Writer
	nal(&w, hdrSPS, writeSPS(spsOpts{}))
	nal(&w, hdrPPS, writePPS(0, 0))
	nal(&w, hdrIDR, writeSlice(sliceOpts{idr: true, sliceTyp: 7}))
	nal(&w, hdrIDR, writeSlice(sliceOpts{idr: true, sliceTyp: 7}))

	d, s, dev := newTestDecoder(t, 5)
	decodeAll(d, s, w.Bytes())

	frames := dev.Codecs()[0].Frames
	if len(frames) != 1 {
		t.Fatalf("unexpected number of frames: %d", len(frames))
	}
	if len(frames[0].Data) != 2 {
		t.Errorf("unexpected number of slice submissions: %d", len(frames[0].Data))
	}
	if got := dev.Codecs()[0].Template.Profile; got != hw.ProfileH264Baseline {
		t.Errorf("unexpected codec profile, got: %v, want: %v", got, hw.ProfileH264Baseline)
	}
	p := frames[0].Picture.(*Picture)
	if p.SliceCount != 2 || p.NumRefIdxL0ActiveMinus1 != 2 {
		t.Errorf("unexpected picture parameters: %+v", p)
	}
	if d.dpb.Len() != 1 {
		t.Errorf("unexpected DPB size: %d", d.dpb.Len())
	}
}

func TestParameterSets(t *testing.T) {
	var w bits.Writer
	nal(&w, hdrSPS, writeSPS(spsOpts{id: 3}))
	nal(&w, hdrPPS, writePPS(7, 3))
	nal(&w, hdrPPS, writePPS(8, 4)) // Unknown SPS.
	nal(&w, hdrSPS, writeSPS(spsOpts{id: 32}))

	dev := sim.New()
	s := stream.NewSession(dev, &dumbLogger{}, 0, 0)
	d := NewDecoder(s, 0)
	decodeAll(d, s, w.Bytes())

	sps := d.SPS(3)
	if sps == nil {
		t.Fatalf("SPS not stored")
	}
	if sps.Width() != 32 || sps.Height() != 16 || sps.LevelIDC != 30 {
		t.Errorf("unexpected SPS: %+v", sps)
	}
	pps := d.PPS(7)
	if pps == nil || pps.SPSID != 3 || pps.ChromaQPIndexOffset != -2 || !pps.DeblockingFilterControlPresent {
		t.Errorf("unexpected PPS: %+v", pps)
	}
	if pps != nil && pps.SecondChromaQPIndexOffset != -2 {
		t.Errorf("second_chroma_qp_index_offset not inferred")
	}
	if d.PPS(8) != nil {
		t.Errorf("PPS with unknown SPS stored")
	}
	if len(dev.Codecs()) != 0 {
		t.Errorf("codec created without slices")
	}

	_, err := NewSPS(bits.NewRBSP(writeSPS(spsOpts{id: 32}).Bytes()))
	if !errors.Is(err, ErrInvalidSPSID) {
		t.Errorf("expected invalid SPS ID error, got: %v", err)
	}
}

func TestScalingLists(t *testing.T) {
	var w bits.Writer
	w.WriteBits(100, 8) // profile_idc
	w.WriteBits(0, 8)
	w.WriteBits(40, 8)
	w.WriteUE(0) // seq_parameter_set_id
	w.WriteUE(1) // chroma_format_idc
	w.WriteUE(0) // bit_depth_luma_minus8
	w.WriteUE(0) // bit_depth_chroma_minus8
	w.WriteFlag(false)
	w.WriteFlag(true) // seq_scaling_matrix_present_flag

	w.WriteFlag(true) // List 0 uses the default.
	w.WriteSE(-8)
	w.WriteFlag(false) // List 1 falls back to list 0.
	w.WriteFlag(true)  // List 2 is flat 8.
	for i := 0; i < 16; i++ {
		w.WriteSE(0)
	}
	w.WriteFlag(true) // List 3 is all 10, ending early.
	w.WriteSE(2)
	w.WriteSE(-10)
	for i := 4; i < 8; i++ {
		w.WriteFlag(false)
	}

	w.WriteUE(0) // log2_max_frame_num_minus4
	w.WriteUE(2) // pic_order_cnt_type
	w.WriteUE(1)
	w.WriteFlag(false)
	w.WriteUE(0)
	w.WriteUE(0)
	w.WriteFlag(true)
	w.WriteFlag(true)
	w.WriteFlag(false)
	w.WriteFlag(false)
	w.TrailingBits()

	sps, err := NewSPS(bits.NewRBSP(w.Bytes()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var flat8, ten [16]uint8
	for i := range flat8 {
		flat8[i], ten[i] = 8, 10
	}
	want := [6][16]uint8{default4x4Intra, default4x4Intra, flat8, ten, ten, ten}
	if !cmp.Equal(sps.ScalingList4x4, want) {
		t.Errorf("unexpected 4x4 lists\ngot: %v\nwant: %v", sps.ScalingList4x4, want)
	}
	if sps.ScalingList8x8[0] != default8x8Intra || sps.ScalingList8x8[1] != default8x8Inter {
		t.Errorf("unexpected 8x8 lists")
	}
	if sps.PicOrderCntType != 2 {
		t.Errorf("fields after scaling lists misread")
	}
}

func TestHWProfile(t *testing.T) {
	tests := []struct {
		profile     int
		constraints int
		want        hw.Profile
	}{
		{profile: 66, want: hw.ProfileH264Baseline},
		{profile: 66, constraints: 0x40, want: hw.ProfileH264ConstrainedBaseline},
		{profile: 77, want: hw.ProfileH264Main},
		{profile: 88, want: hw.ProfileH264Extended},
		{profile: 100, want: hw.ProfileH264High},
		{profile: 110, want: hw.ProfileH264High},
	}

	for i, test := range tests {
		sps := &SPS{Profile: test.profile, Constraints: test.constraints}
		if got := sps.HWProfile(); got != test.want {
			t.Errorf("unexpected profile for test: %d\nGot: %v\nWant: %v", i, got, test.want)
		}
		if got := (&Picture{SPS: sps}).Profile(); got != test.want {
			t.Errorf("unexpected picture profile for test: %d\nGot: %v\nWant: %v", i, got, test.want)
		}
	}
}

func TestCeilLog2(t *testing.T) {
	for n, want := range map[int]int{1: 0, 2: 1, 3: 2, 4: 2, 5: 3, 8: 3} {
		if got := ceilLog2(n); got != want {
			t.Errorf("unexpected result for %d, got: %d, want: %d", n, got, want)
		}
	}
}

func TestDecodeWaitsForNALUnit(t *testing.T) {
	var w bits.Writer
	nal(&w, hdrSPS, writeSPS(spsOpts{}))
	data := w.Bytes()

	tests := []struct {
		name        string
		minBitsLeft int
		wantPos     int
		wantSPS     bool
	}{
		{name: "more input to come", minBitsLeft: 32, wantPos: 1},
		{name: "end of stream", wantPos: len(data), wantSPS: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			d, _, _ := newTestDecoder(t, 0)
			r := bits.NewReader(data)
			for i := 0; i < 3 && r.BitsLeft() > test.minBitsLeft; i++ {
				d.Decode(r, test.minBitsLeft)
				r.FillBits()
			}
			if r.Pos() != test.wantPos {
				t.Errorf("unexpected position, got: %d, want: %d", r.Pos(), test.wantPos)
			}
			if got := d.SPS(0) != nil; got != test.wantSPS {
				t.Errorf("unexpected SPS stored, got: %v, want: %v", got, test.wantSPS)
			}
		})
	}
}
