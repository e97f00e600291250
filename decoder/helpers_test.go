/*
DESCRIPTION
  helpers_test.go provides a test Client and MPEG-2, H.264, H.265 and AV1
  stream writers for testing the decode pump.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
*/

package decoder

import (
	"github.com/ausocean/hwdec/codec/av1"
	"github.com/ausocean/hwdec/codec/bits"
	"github.com/ausocean/hwdec/codec/mpeg2"
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

// client records the buffers handed back by a Decoder.
type client struct {
	outSize   int
	noOutput  bool
	returned  []*stream.Buffer
	delivered []*stream.Buffer
}

func (c *client) ReturnInput(in *stream.Buffer) { c.returned = append(c.returned, in) }

func (c *client) NextOutput() *stream.Buffer {
	if c.noOutput {
		return nil
	}
	return stream.NewBuffer(c.outSize)
}

func (c *client) Deliver(out *stream.Buffer) { c.delivered = append(c.delivered, out) }

// luma returns the first luma sample of each delivered picture, which the
// simulated device sets to the decode sequence number of the picture.
func (c *client) luma() []int {
	var l []int
	for _, out := range c.delivered {
		l = append(l, int(out.Data[0]))
	}
	return l
}

// chunks divides b into input buffers of n bytes. The last buffer is marked
// as the end of the stream, or an empty end of stream buffer is added if
// emptyEOS is set.
func chunks(b []byte, n int, emptyEOS bool) []*stream.Buffer {
	var bufs []*stream.Buffer
	for len(b) > 0 {
		c := min(n, len(b))
		in := stream.NewBuffer(c)
		in.Fill(b[:c])
		in.Timestamp = int64(len(bufs))
		bufs = append(bufs, in)
		b = b[c:]
	}
	if emptyEOS || len(bufs) == 0 {
		bufs = append(bufs, stream.NewBuffer(0))
	}
	bufs[len(bufs)-1].EOS = true
	return bufs
}

// MPEG-2 start codes.
const (
	codePicture  = 0x00
	codeSequence = 0xb3
)

func startCode(w *bits.Writer, code byte) {
	w.Align()
	w.WriteBytes([]byte{0x00, 0x00, 0x01, code})
}

func sequenceHeader(w *bits.Writer, width, height int) {
	startCode(w, codeSequence)
	w.WriteBits(uint64(width), 12)
	w.WriteBits(uint64(height), 12)
	w.WriteBits(1, 4)     // aspect_ratio_information
	w.WriteBits(3, 4)     // frame_rate_code
	w.WriteBits(1000, 18) // bit_rate_value
	w.WriteBits(1, 1)     // marker_bit
	w.WriteBits(10, 10)   // vbv_buffer_size_value
	w.WriteFlag(false)    // constrained_parameters_flag
	w.WriteFlag(false)    // load_intra_quantiser_matrix
	w.WriteFlag(false)    // load_non_intra_quantiser_matrix
}

func pictureHeader(w *bits.Writer, temporalRef, codingType int) {
	startCode(w, codePicture)
	w.WriteBits(uint64(temporalRef), 10)
	w.WriteBits(uint64(codingType), 3)
	w.WriteBits(0xffff, 16)
	if codingType == mpeg2.CodingTypeP || codingType == mpeg2.CodingTypeB {
		w.WriteFlag(false)
		w.WriteBits(2, 3)
	}
	if codingType == mpeg2.CodingTypeB {
		w.WriteFlag(false)
		w.WriteBits(3, 3)
	}
	w.WriteFlag(false) // extra_bit_picture
}

func slice(w *bits.Writer, payload ...byte) {
	startCode(w, 0x01)
	w.WriteBytes(payload)
}

// mpeg2Pictures returns a 16x16 MPEG-2 stream of an I picture followed by
// n-1 P pictures, one slice each.
func mpeg2Pictures(n int) []byte {
	var w bits.Writer
	sequenceHeader(&w, 16, 16)
	for i := 0; i < n; i++ {
		typ := mpeg2.CodingTypeP
		if i == 0 {
			typ = mpeg2.CodingTypeI
		}
		pictureHeader(&w, i, typ)
		slice(&w, byte(i+1), 0x34, 0x56, 0x78)
	}
	return w.Bytes()
}

// NAL unit headers of the H.264 test streams.
const (
	hdrSPS      = 0x67
	hdrPPS      = 0x68
	hdrIDR      = 0x65
	hdrRefSlice = 0x41
)

func h264NAL(w *bits.Writer, header byte, rbsp *bits.Writer) {
	w.WriteBytes([]byte{0x00, 0x00, 0x00, 0x01, header})
	w.WriteBytes(bits.Escape(rbsp.Bytes()))
}

// h264Stream returns a 32x16 constrained baseline H.264 stream of an IDR
// picture followed by n-1 P pictures, one slice each, with increasing
// picture order counts.
func h264Stream(n int) []byte {
	var sps bits.Writer
	sps.WriteBits(66, 8)   // profile_idc
	sps.WriteBits(0x40, 8) // constraint_set1_flag
	sps.WriteBits(30, 8)   // level_idc
	sps.WriteUE(0)         // seq_parameter_set_id
	sps.WriteUE(0)         // log2_max_frame_num_minus4
	sps.WriteUE(0)         // pic_order_cnt_type
	sps.WriteUE(0)         // log2_max_pic_order_cnt_lsb_minus4
	sps.WriteUE(1)         // max_num_ref_frames
	sps.WriteFlag(false)   // gaps_in_frame_num_value_allowed_flag
	sps.WriteUE(1)         // pic_width_in_mbs_minus1
	sps.WriteUE(0)         // pic_height_in_map_units_minus1
	sps.WriteFlag(true)    // frame_mbs_only_flag
	sps.WriteFlag(true)    // direct_8x8_inference_flag
	sps.WriteFlag(false)   // frame_cropping_flag
	sps.WriteFlag(false)   // vui_parameters_present_flag
	sps.TrailingBits()

	var pps bits.Writer
	pps.WriteUE(0)       // pic_parameter_set_id
	pps.WriteUE(0)       // seq_parameter_set_id
	pps.WriteFlag(false) // entropy_coding_mode_flag
	pps.WriteFlag(false) // bottom_field_pic_order_in_frame_present_flag
	pps.WriteUE(0)       // num_slice_groups_minus1
	pps.WriteUE(0)       // num_ref_idx_l0_default_active_minus1
	pps.WriteUE(0)       // num_ref_idx_l1_default_active_minus1
	pps.WriteFlag(false) // weighted_pred_flag
	pps.WriteBits(0, 2)  // weighted_bipred_idc
	pps.WriteSE(0)       // pic_init_qp_minus26
	pps.WriteSE(0)       // pic_init_qs_minus26
	pps.WriteSE(0)       // chroma_qp_index_offset
	pps.WriteFlag(true)  // deblocking_filter_control_present_flag
	pps.WriteFlag(false) // constrained_intra_pred_flag
	pps.WriteFlag(false) // redundant_pic_cnt_present_flag
	pps.TrailingBits()

	var w bits.Writer
	h264NAL(&w, hdrSPS, &sps)
	h264NAL(&w, hdrPPS, &pps)
	for i := 0; i < n; i++ {
		var sl bits.Writer
		sl.WriteUE(0) // first_mb_in_slice
		if i == 0 {
			sl.WriteUE(7) // slice_type I
		} else {
			sl.WriteUE(5) // slice_type P
		}
		sl.WriteUE(0) // pic_parameter_set_id
		sl.WriteBits(uint64(i), 4)
		if i == 0 {
			sl.WriteUE(0) // idr_pic_id
		}
		sl.WriteBits(uint64(2*i), 4) // pic_order_cnt_lsb
		if i != 0 {
			sl.WriteFlag(false) // num_ref_idx_active_override_flag
		}
		sl.WriteBits(0xa55a, 16) // Slice data.
		sl.TrailingBits()

		hdr := byte(hdrRefSlice)
		if i == 0 {
			hdr = hdrIDR
		}
		h264NAL(&w, hdr, &sl)
	}
	return w.Bytes()
}

// H.265 NAL unit types of the test streams.
const (
	nalTypeTrailR = 1
	nalTypeIDRNLP = 20
	nalTypeSPS    = 33
	nalTypePPS    = 34
)

func h265NAL(w *bits.Writer, typ int, rbsp *bits.Writer) {
	w.WriteBytes([]byte{0x00, 0x00, 0x00, 0x01, byte(typ << 1), 0x01})
	w.WriteBytes(bits.Escape(rbsp.Bytes()))
}

// h265Stream returns a 64x48 H.265 stream of an IDR picture followed by n-1
// TRAIL_R pictures, one slice each, each referring to the picture before it.
func h265Stream(n int) []byte {
	var sps bits.Writer
	sps.WriteBits(0, 4)           // sps_video_parameter_set_id
	sps.WriteBits(0, 3)           // sps_max_sub_layers_minus1
	sps.WriteFlag(true)           // sps_temporal_id_nesting_flag
	sps.WriteBits(0, 3)           // general_profile_space and general_tier_flag
	sps.WriteBits(1, 5)           // general_profile_idc
	sps.WriteBits(0x60000000, 32) // general_profile_compatibility_flag[j]
	sps.WriteBits(0x9, 4)
	sps.WriteBits(0, 32)
	sps.WriteBits(0, 12)
	sps.WriteBits(93, 8) // general_level_idc
	sps.WriteUE(0)       // sps_seq_parameter_set_id
	sps.WriteUE(1)       // chroma_format_idc
	sps.WriteUE(64)      // pic_width_in_luma_samples
	sps.WriteUE(48)      // pic_height_in_luma_samples
	sps.WriteFlag(false) // conformance_window_flag
	sps.WriteUE(0)       // bit_depth_luma_minus8
	sps.WriteUE(0)       // bit_depth_chroma_minus8
	sps.WriteUE(0)       // log2_max_pic_order_cnt_lsb_minus4
	sps.WriteFlag(true)  // sps_sub_layer_ordering_info_present_flag
	sps.WriteUE(1)       // sps_max_dec_pic_buffering_minus1
	sps.WriteUE(0)       // sps_max_num_reorder_pics
	sps.WriteUE(0)       // sps_max_latency_increase_plus1
	sps.WriteUE(0)       // log2_min_luma_coding_block_size_minus3
	sps.WriteUE(1)       // log2_diff_max_min_luma_coding_block_size
	sps.WriteUE(0)       // log2_min_luma_transform_block_size_minus2
	sps.WriteUE(1)       // log2_diff_max_min_luma_transform_block_size
	sps.WriteUE(0)       // max_transform_hierarchy_depth_inter
	sps.WriteUE(0)       // max_transform_hierarchy_depth_intra
	sps.WriteFlag(false) // scaling_list_enabled_flag
	sps.WriteFlag(false) // amp_enabled_flag
	sps.WriteFlag(false) // sample_adaptive_offset_enabled_flag
	sps.WriteFlag(false) // pcm_enabled_flag
	sps.WriteUE(1)       // num_short_term_ref_pic_sets
	sps.WriteUE(1)       // num_negative_pics
	sps.WriteUE(0)       // num_positive_pics
	sps.WriteUE(0)       // delta_poc_s0_minus1
	sps.WriteFlag(true)  // used_by_curr_pic_s0_flag
	sps.WriteFlag(false) // long_term_ref_pics_present_flag
	sps.WriteFlag(false) // sps_temporal_mvp_enabled_flag
	sps.WriteFlag(false) // strong_intra_smoothing_enabled_flag
	sps.WriteFlag(false) // vui_parameters_present_flag
	sps.TrailingBits()

	var pps bits.Writer
	pps.WriteUE(0)       // pps_pic_parameter_set_id
	pps.WriteUE(0)       // pps_seq_parameter_set_id
	pps.WriteFlag(false) // dependent_slice_segments_enabled_flag
	pps.WriteFlag(false) // output_flag_present_flag
	pps.WriteBits(0, 3)  // num_extra_slice_header_bits
	pps.WriteFlag(false) // sign_data_hiding_enabled_flag
	pps.WriteFlag(false) // cabac_init_present_flag
	pps.WriteUE(0)       // num_ref_idx_l0_default_active_minus1
	pps.WriteUE(0)       // num_ref_idx_l1_default_active_minus1
	pps.WriteSE(0)       // init_qp_minus26
	pps.WriteFlag(false) // constrained_intra_pred_flag
	pps.WriteFlag(false) // transform_skip_enabled_flag
	pps.WriteFlag(false) // cu_qp_delta_enabled_flag
	pps.WriteSE(0)       // pps_cb_qp_offset
	pps.WriteSE(0)       // pps_cr_qp_offset
	pps.WriteFlag(false) // pps_slice_chroma_qp_offsets_present_flag
	pps.WriteFlag(false) // weighted_pred_flag
	pps.WriteFlag(false) // weighted_bipred_flag
	pps.WriteFlag(false) // transquant_bypass_enabled_flag
	pps.WriteFlag(false) // tiles_enabled_flag
	pps.WriteFlag(false) // entropy_coding_sync_enabled_flag
	pps.WriteFlag(true)  // pps_loop_filter_across_slices_enabled_flag
	pps.WriteFlag(false) // deblocking_filter_control_present_flag
	pps.WriteFlag(false) // pps_scaling_list_data_present_flag
	pps.WriteFlag(false) // lists_modification_present_flag
	pps.WriteUE(0)       // log2_parallel_merge_level_minus2
	pps.WriteFlag(false) // slice_segment_header_extension_present_flag
	pps.WriteFlag(false) // pps_extension_present_flag
	pps.TrailingBits()

	var w bits.Writer
	h265NAL(&w, nalTypeSPS, &sps)
	h265NAL(&w, nalTypePPS, &pps)
	for i := 0; i < n; i++ {
		typ := nalTypeTrailR
		if i == 0 {
			typ = nalTypeIDRNLP
		}

		var sl bits.Writer
		sl.WriteFlag(true) // first_slice_segment_in_pic_flag
		if i == 0 {
			sl.WriteFlag(false) // no_output_of_prior_pics_flag
		}
		sl.WriteUE(0) // slice_pic_parameter_set_id
		sl.WriteUE(1) // slice_type P
		if i != 0 {
			sl.WriteBits(uint64(i), 4) // slice_pic_order_cnt_lsb
			sl.WriteFlag(true)         // short_term_ref_pic_set_sps_flag
		}
		sl.WriteBits(0xa55a, 16) // Slice data.
		sl.TrailingBits()
		h265NAL(&w, typ, &sl)
	}
	return w.Bytes()
}

// obu returns an AV1 OBU of type typ with a size field.
func obu(typ av1.OBUType, payload []byte) []byte {
	var w bits.Writer
	w.WriteBits(uint64(typ)<<3|0x2, 8)
	w.WriteLEB128(uint64(len(payload)))
	w.WriteBytes(payload)
	return w.Bytes()
}

func td() []byte { return obu(av1.OBUTemporalDelimiter, nil) }

// seqOBU returns a profile 0 sequence header OBU for width by height frames,
// with 7 bit order hints.
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
	w.WriteBits(6, 3)  // order_hint_bits_minus_1
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
	return obu(av1.OBUSequenceHeader, w.Bytes())
}

// keyFrameOBU returns a frame OBU holding a shown key frame of at most 64
// samples wide, and one tile.
func keyFrameOBU(orderHint int, tile ...byte) []byte {
	var w bits.Writer
	w.WriteFlag(false) // show_existing_frame
	w.WriteBits(uint64(av1.KeyFrame), 2)
	w.WriteFlag(true)  // show_frame
	w.WriteFlag(false) // disable_cdf_update
	w.WriteFlag(false) // allow_screen_content_tools
	w.WriteFlag(false) // frame_size_override_flag
	w.WriteBits(uint64(orderHint), 7)
	w.WriteFlag(false)  // render_and_frame_size_different
	w.WriteFlag(false)  // disable_frame_end_update_cdf
	w.WriteFlag(true)   // uniform_tile_spacing_flag
	w.WriteBits(100, 8) // base_q_idx
	w.WriteFlag(false)  // DeltaQYDc delta_coded
	w.WriteFlag(false)  // DeltaQUDc delta_coded
	w.WriteFlag(false)  // DeltaQUAc delta_coded
	w.WriteFlag(false)  // using_qmatrix
	w.WriteFlag(false)  // segmentation_enabled
	w.WriteFlag(false)  // delta_q_present
	w.WriteBits(0, 6)   // loop_filter_level[0]
	w.WriteBits(0, 6)   // loop_filter_level[1]
	w.WriteBits(0, 3)   // loop_filter_sharpness
	w.WriteFlag(false)  // loop_filter_delta_enabled
	w.WriteFlag(false)  // tx_mode_select
	w.WriteFlag(false)  // reduced_tx_set
	w.Align()
	w.WriteBytes(tile)
	return obu(av1.OBUFrame, w.Bytes())
}

// showExistingOBU returns a frame header OBU showing the frame in slot idx.
func showExistingOBU(idx int) []byte {
	var w bits.Writer
	w.WriteFlag(true) // show_existing_frame
	w.WriteBits(uint64(idx), 3)
	w.TrailingBits()
	return obu(av1.OBUFrameHeader, w.Bytes())
}

func join(b ...[]byte) []byte {
	var out []byte
	for _, v := range b {
		out = append(out, v...)
	}
	return out
}
