/*
DESCRIPTION
  sps.go provides parsing of H.264 sequence parameter sets.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package h264

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/ausocean/hwdec/codec/bits"
)

// Table sizes for parameter sets.
const (
	maxSPS = 32
	maxPPS = 256
)

// Errors for parameter sets with out of range IDs.
var (
	ErrInvalidSPSID = errors.New("invalid seq_parameter_set_id")
	ErrInvalidPPSID = errors.New("invalid pic_parameter_set_id")
)

// Chroma formats (chroma_format_idc).
const (
	chromaMonochrome = iota
	chroma420
	chroma422
	chroma444
)

// SPS describes a sequence parameter set as defined by section 7.3.2.1.1 in
// the Specifications. Only the fields needed to parse slice headers and
// configure the hardware decoder are kept.
type SPS struct {
	// profile_idc and level_idc indicate the profile and level to which the
	// coded video sequence conforms.
	Profile, LevelIDC int

	// The constraint_set0_flag to constraint_set5_flag bits, MSB first, and
	// the two reserved zero bits.
	Constraints int

	// seq_parameter_set_id identifies this sequence parameter set, and can then
	// be reference by the picture parameter set.
	ID int

	// chroma_format_idc specifies the chroma sampling relative to the luma
	// sampling as specified in clause 6.2.
	ChromaFormatIDC int

	// separate_colour_plane_flag if true specifies that the three components of
	// the 4:4:4 chroma format are coded separately.
	SeparateColourPlane bool

	BitDepthLumaMinus8   int
	BitDepthChromaMinus8 int

	// seq_scaling_matrix_present_flag equal to 1 specifies that
	// seq_scaling_list_present_flag[ i ] are present. When 0 the flat lists
	// are inferred.
	SeqScalingMatrixPresent bool

	// The sequence level scaling lists in raster order.
	ScalingList4x4 [6][16]uint8
	ScalingList8x8 [6][64]uint8

	// log2_max_frame_num_minus4 allows for derivation of MaxFrameNum using eq 7-10.
	Log2MaxFrameNumMinus4 int

	// pic_order_cnt_type specifies the method to decode picture order count.
	PicOrderCntType int

	// log2_max_pic_order_cnt_lsb_minus4 allows for the derivation of
	// MaxPicOrderCntLsb using eq 7-11.
	Log2MaxPicOrderCntLSBMinus4 int

	// delta_pic_order_always_zero_flag if true indicates delta_pic_order_cnt[0]
	// and delta_pic_order_cnt[1] are not present and inferred to be 0.
	DeltaPicOrderAlwaysZero bool

	// offset_for_non_ref_pic is used to calculate the picture order count of a
	// non-reference picture as specified in clause 8.2.1.
	OffsetForNonRefPic int

	// offset_for_top_to_bottom_field is used to calculate the picture order count
	// of a bottom field as specified in clause 8.2.1.
	OffsetForTopToBottomField int

	// offset_for_ref_frame[ i ], num_ref_frames_in_pic_order_cnt_cycle long.
	OffsetForRefFrame []int

	// max_num_ref_frames specifies the max number of short-term and long-term
	// reference frames that may be used for inter prediction.
	MaxNumRefFrames int

	GapsInFrameNumValueAllowed bool

	PicWidthInMBsMinus1       int
	PicHeightInMapUnitsMinus1 int

	// frame_mbs_only_flag if 0 coded pictures of the coded video sequence may be
	// coded fields or coded frames. If 1 every coded picture is a coded frame.
	FrameMBsOnly bool

	MBAdaptiveFrameField bool
	Direct8x8Inference   bool

	// Frame cropping offsets, zero when frame_cropping_flag is 0.
	FrameCropLeftOffset   int
	FrameCropRightOffset  int
	FrameCropTopOffset    int
	FrameCropBottomOffset int

	VUIParametersPresent bool
}

// Width returns the coded width in luma samples.
func (s *SPS) Width() int { return (s.PicWidthInMBsMinus1 + 1) * 16 }

// Height returns the coded frame height in luma samples.
func (s *SPS) Height() int {
	h := (s.PicHeightInMapUnitsMinus1 + 1) * 16
	if !s.FrameMBsOnly {
		h *= 2
	}
	return h
}

// MaxFrameNum returns MaxFrameNum as derived by eq 7-10.
func (s *SPS) MaxFrameNum() int { return 1 << uint(s.Log2MaxFrameNumMinus4+4) }

// highProfile returns true if profile_idc signals the presence of chroma
// format, bit depth and scaling matrix fields.
func highProfile(p int) bool {
	switch p {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128, 138, 139, 134, 135:
		return true
	}
	return false
}

// NewSPS parses a sequence parameter set raw byte sequence from r following
// the syntax structure specified in section 7.3.2.1.1, and returns as a new
// SPS.
func NewSPS(r *bits.RBSP) (*SPS, error) {
	sps := &SPS{}
	sps.Profile = r.U(8)
	sps.Constraints = r.U(8)
	sps.LevelIDC = r.U(8)
	sps.ID = r.UE()
	if sps.ID >= maxSPS {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSPSID, sps.ID)
	}

	flat4x4, flat8x8 := flatLists()
	if highProfile(sps.Profile) {
		sps.ChromaFormatIDC = r.UE()
		if sps.ChromaFormatIDC == chroma444 {
			sps.SeparateColourPlane = r.Flag()
		}
		sps.BitDepthLumaMinus8 = r.UE()
		sps.BitDepthChromaMinus8 = r.UE()
		r.Skip(1) // qpprime_y_zero_transform_bypass_flag
		sps.SeqScalingMatrixPresent = r.Flag()
		if sps.SeqScalingMatrixPresent {
			l4, l8 := &sps.ScalingList4x4, &sps.ScalingList8x8
			scalingList(r, l4[0][:], default4x4Intra[:], default4x4Intra[:])
			scalingList(r, l4[1][:], default4x4Intra[:], l4[0][:])
			scalingList(r, l4[2][:], default4x4Intra[:], l4[1][:])
			scalingList(r, l4[3][:], default4x4Inter[:], default4x4Inter[:])
			scalingList(r, l4[4][:], default4x4Inter[:], l4[3][:])
			scalingList(r, l4[5][:], default4x4Inter[:], l4[4][:])
			scalingList(r, l8[0][:], default8x8Intra[:], default8x8Intra[:])
			scalingList(r, l8[1][:], default8x8Inter[:], default8x8Inter[:])
			if sps.ChromaFormatIDC == chroma444 {
				scalingList(r, l8[2][:], default8x8Intra[:], l8[0][:])
				scalingList(r, l8[3][:], default8x8Inter[:], l8[1][:])
				scalingList(r, l8[4][:], default8x8Intra[:], l8[2][:])
				scalingList(r, l8[5][:], default8x8Inter[:], l8[3][:])
			}
		} else {
			sps.ScalingList4x4, sps.ScalingList8x8 = flat4x4, flat8x8
		}
	} else {
		sps.ChromaFormatIDC = chroma420
		sps.ScalingList4x4, sps.ScalingList8x8 = flat4x4, flat8x8
	}

	sps.Log2MaxFrameNumMinus4 = r.UE()
	sps.PicOrderCntType = r.UE()
	switch sps.PicOrderCntType {
	case 0:
		sps.Log2MaxPicOrderCntLSBMinus4 = r.UE()
	case 1:
		sps.DeltaPicOrderAlwaysZero = r.Flag()
		sps.OffsetForNonRefPic = r.SE()
		sps.OffsetForTopToBottomField = r.SE()
		n := r.UE()
		if n > 255 {
			return nil, errors.Errorf("num_ref_frames_in_pic_order_cnt_cycle %d out of range", n)
		}
		sps.OffsetForRefFrame = make([]int, n)
		for i := range sps.OffsetForRefFrame {
			sps.OffsetForRefFrame[i] = r.SE()
		}
	}

	sps.MaxNumRefFrames = r.UE()
	sps.GapsInFrameNumValueAllowed = r.Flag()
	sps.PicWidthInMBsMinus1 = r.UE()
	sps.PicHeightInMapUnitsMinus1 = r.UE()
	sps.FrameMBsOnly = r.Flag()
	if !sps.FrameMBsOnly {
		sps.MBAdaptiveFrameField = r.Flag()
	}
	sps.Direct8x8Inference = r.Flag()
	if r.Flag() {
		sps.FrameCropLeftOffset = r.UE()
		sps.FrameCropRightOffset = r.UE()
		sps.FrameCropTopOffset = r.UE()
		sps.FrameCropBottomOffset = r.UE()
	}
	sps.VUIParametersPresent = r.Flag()

	if r.Err() != nil {
		return nil, errors.Wrap(r.Err(), "could not read SPS")
	}
	if sps.Log2MaxFrameNumMinus4 > 12 || sps.Log2MaxPicOrderCntLSBMinus4 > 12 || sps.PicOrderCntType > 2 {
		return nil, errors.New("SPS field out of range")
	}
	return sps, nil
}
