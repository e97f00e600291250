/*
DESCRIPTION
  helpers_test.go provides bitstream writers for testing the AV1 parser.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
*/

package av1

import (
	"github.com/ausocean/hwdec/codec/bits"
)

const (
	orderHintBits = 7
	baseQIdx      = 100
)

type dumbLogger struct{}

func (dl *dumbLogger) Log(l int8, m string, a ...interface{})  {}
func (dl *dumbLogger) SetLevel(l int8)                         {}
func (dl *dumbLogger) Debug(msg string, args ...interface{})   {}
func (dl *dumbLogger) Info(msg string, args ...interface{})    {}
func (dl *dumbLogger) Warning(msg string, args ...interface{}) {}
func (dl *dumbLogger) Error(msg string, args ...interface{})   {}
func (dl *dumbLogger) Fatal(msg string, args ...interface{})   {}

// binToBytes converts a string of '0' and '1' characters to bytes, padding
// the last byte with zeros.
func binToBytes(s string) []byte {
	var w bits.Writer
	for _, c := range s {
		w.WriteFlag(c == '1')
	}
	w.Align()
	return w.Bytes()
}

// obu returns an OBU of type typ with a size field.
func obu(typ OBUType, payload []byte) []byte {
	var w bits.Writer
	w.WriteBits(uint64(typ)<<3|0x2, 8)
	w.WriteLEB128(uint64(len(payload)))
	w.WriteBytes(payload)
	return w.Bytes()
}

// td returns a temporal delimiter OBU.
func td() []byte { return obu(OBUTemporalDelimiter, nil) }

// seqOBU returns a profile 0 sequence header OBU for width by height frames
// with order hints and screen content tools chosen per frame.
func seqOBU(width, height int) []byte {
	var w bits.Writer
	w.WriteBits(0, 3)  // seq_profile
	w.WriteFlag(false) // still_picture
	w.WriteFlag(false) // reduced_still_picture_header
	w.WriteFlag(false) // timing_info_present_flag
	w.WriteFlag(false) // initial_display_delay_present_flag
	w.WriteBits(0, 5)  // operating_points_cnt_minus_1
	w.WriteBits(0, 12) // operating_point_idc[0]
	w.WriteBits(4, 5)  // seq_level_idx[0]
	w.WriteBits(15, 4) // frame_width_bits_minus_1
	w.WriteBits(15, 4) // frame_height_bits_minus_1
	w.WriteBits(uint64(width-1), 16)
	w.WriteBits(uint64(height-1), 16)
	w.WriteFlag(false) // frame_id_numbers_present_flag
	w.WriteFlag(false) // use_128x128_superblock
	w.WriteFlag(false) // enable_filter_intra
	w.WriteFlag(false) // enable_intra_edge_filter
	w.WriteFlag(false) // enable_interintra_compound
	w.WriteFlag(false) // enable_masked_compound
	w.WriteFlag(false) // enable_warped_motion
	w.WriteFlag(false) // enable_dual_filter
	w.WriteFlag(true)  // enable_order_hint
	w.WriteFlag(false) // enable_jnt_comp
	w.WriteFlag(false) // enable_ref_frame_mvs
	w.WriteFlag(true)  // seq_choose_screen_content_tools
	w.WriteFlag(true)  // seq_choose_integer_mv
	w.WriteBits(orderHintBits-1, 3)
	w.WriteFlag(false) // enable_superres
	w.WriteFlag(false) // enable_cdef
	w.WriteFlag(false) // enable_restoration
	w.WriteFlag(false) // high_bitdepth
	w.WriteFlag(false) // mono_chrome
	w.WriteFlag(false) // color_description_present_flag
	w.WriteFlag(false) // color_range
	w.WriteBits(0, 2)  // chroma_sample_position
	w.WriteFlag(false) // separate_uv_delta_q
	w.WriteFlag(false) // film_grain_params_present
	w.TrailingBits()
	return obu(OBUSequenceHeader, w.Bytes())
}

type frameOpts struct {
	show      bool
	refresh   int // Refresh flags, unused for shown key frames.
	orderHint int
	wide      bool // 128 sample wide frames, which may have two tile columns.
	twoTiles  bool
}

// writeKeyFrame writes the uncompressed header of a key frame for a sequence
// from seqOBU.
func writeKeyFrame(w *bits.Writer, o frameOpts) {
	w.WriteFlag(false) // show_existing_frame
	w.WriteBits(uint64(KeyFrame), 2)
	w.WriteFlag(o.show)
	if !o.show {
		w.WriteFlag(true)  // showable_frame
		w.WriteFlag(false) // error_resilient_mode
	}
	w.WriteFlag(false) // disable_cdf_update
	w.WriteFlag(false) // allow_screen_content_tools
	w.WriteFlag(false) // frame_size_override_flag
	w.WriteBits(uint64(o.orderHint), orderHintBits)
	if !o.show {
		w.WriteBits(uint64(o.refresh), 8)
	}
	w.WriteFlag(false) // render_and_frame_size_different
	w.WriteFlag(false) // disable_frame_end_update_cdf
	w.WriteFlag(true)  // uniform_tile_spacing_flag
	if o.wide {
		w.WriteFlag(o.twoTiles) // increment_tile_cols_log2
	}
	if o.twoTiles {
		w.WriteBits(0, 1) // context_update_tile_id
		w.WriteBits(0, 2) // tile_size_bytes_minus_1
	}
	w.WriteBits(baseQIdx, 8)
	w.WriteFlag(false) // DeltaQYDc delta_coded
	w.WriteFlag(false) // DeltaQUDc delta_coded
	w.WriteFlag(false) // DeltaQUAc delta_coded
	w.WriteFlag(false) // using_qmatrix
	w.WriteFlag(false) // segmentation_enabled
	w.WriteFlag(false) // delta_q_present
	w.WriteBits(0, 6)  // loop_filter_level[0]
	w.WriteBits(0, 6)  // loop_filter_level[1]
	w.WriteBits(0, 3)  // loop_filter_sharpness
	w.WriteFlag(false) // loop_filter_delta_enabled
	w.WriteFlag(false) // tx_mode_select
	w.WriteFlag(false) // reduced_tx_set
}

// frameOBU returns a frame OBU holding a key frame and the given tiles. The
// size of all tiles but the last is coded in one byte.
func frameOBU(o frameOpts, tiles ...[]byte) []byte {
	var w bits.Writer
	writeKeyFrame(&w, o)
	w.Align()
	if len(tiles) > 1 {
		w.WriteFlag(false) // tile_start_and_end_present_flag
		w.Align()
		for _, t := range tiles[:len(tiles)-1] {
			w.WriteBits(uint64(len(t)-1), 8)
			w.WriteBytes(t)
		}
	}
	w.WriteBytes(tiles[len(tiles)-1])
	return obu(OBUFrame, w.Bytes())
}

// showExistingOBU returns a frame header OBU showing the frame in slot idx.
func showExistingOBU(idx int) []byte {
	var w bits.Writer
	w.WriteFlag(true) // show_existing_frame
	w.WriteBits(uint64(idx), 3)
	w.TrailingBits()
	return obu(OBUFrameHeader, w.Bytes())
}

func join(b ...[]byte) []byte {
	var out []byte
	for _, v := range b {
		out = append(out, v...)
	}
	return out
}
