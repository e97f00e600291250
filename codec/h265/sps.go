/*
DESCRIPTION
  sps.go provides parsing of H.265 sequence parameter sets, including
  profile_tier_level, scaling list data and short-term reference picture
  sets.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package h265

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/ausocean/hwdec/codec/bits"
)

// Table sizes for parameter sets.
const (
	maxSPS = 16
	maxPPS = 64

	// maxRPS is the maximum num_short_term_ref_pic_sets.
	maxRPS = 64

	// maxRefPics is the maximum number of pictures in a reference picture set.
	maxRefPics = 16
)

// Errors for parameter sets with out of range IDs.
var (
	ErrInvalidSPSID = errors.New("invalid sps_seq_parameter_set_id")
	ErrInvalidPPSID = errors.New("invalid pps_pic_parameter_set_id")
)

// ScalingLists holds the scaling factors of scaling_list_data() in coefficient
// scan order, with the DC coefficients of the 16x16 and 32x32 lists.
type ScalingLists struct {
	List4x4   [6][16]uint8
	List8x8   [6][64]uint8
	List16x16 [6][64]uint8
	List32x32 [2][64]uint8
	DC16x16   [6]uint8
	DC32x32   [2]uint8
}

// SPS describes a sequence parameter set as defined by section 7.3.2.2 of
// ITU-T H.265.
type SPS struct {
	ID                     int
	MaxSubLayersMinus1     int
	ProfileIDC             int
	LevelIDC               int
	ChromaFormatIDC        int
	SeparateColourPlane    bool
	PicWidthInLumaSamples  int
	PicHeightInLumaSamples int

	// Conformance window offsets, zero when conformance_window_flag is 0.
	ConfWinLeftOffset   int
	ConfWinRightOffset  int
	ConfWinTopOffset    int
	ConfWinBottomOffset int

	BitDepthLumaMinus8          int
	BitDepthChromaMinus8        int
	Log2MaxPicOrderCntLSBMinus4 int

	// Sub-layer ordering values of the highest sub-layer.
	MaxDecPicBufferingMinus1 int
	MaxNumReorderPics        int
	MaxLatencyIncreasePlus1  int

	Log2MinLumaCodingBlockSizeMinus3  int
	Log2DiffMaxMinLumaCodingBlockSize int
	Log2MinTransformBlockSizeMinus2   int
	Log2DiffMaxMinTransformBlockSize  int
	MaxTransformHierarchyDepthInter   int
	MaxTransformHierarchyDepthIntra   int

	ScalingListEnabled bool
	ScalingLists       ScalingLists

	AMPEnabled                           bool
	SampleAdaptiveOffsetEnabled          bool
	PCMEnabled                           bool
	PCMSampleBitDepthLumaMinus1          int
	PCMSampleBitDepthChromaMinus1        int
	Log2MinPCMLumaCodingBlockSizeMinus3  int
	Log2DiffMaxMinPCMLumaCodingBlockSize int
	PCMLoopFilterDisabled                bool

	// StRPS holds the num_short_term_ref_pic_sets reference picture sets.
	StRPS []RefPicSet

	LongTermRefPicsPresent bool
	LtRefPicPOCLSB         []int
	UsedByCurrPicLt        []bool

	TemporalMVPEnabled          bool
	StrongIntraSmoothingEnabled bool
	VUIParametersPresent        bool
}

// CtbSize returns the coding tree block size in luma samples.
func (s *SPS) CtbSize() int {
	return 1 << uint(s.Log2MinLumaCodingBlockSizeMinus3+3+s.Log2DiffMaxMinLumaCodingBlockSize)
}

// PicSizeInCtbs returns the number of coding tree blocks in a picture.
func (s *SPS) PicSizeInCtbs() int {
	size := s.CtbSize()
	return ((s.PicWidthInLumaSamples + size - 1) / size) * ((s.PicHeightInLumaSamples + size - 1) / size)
}

// NewSPS parses a sequence parameter set from r following section 7.3.2.2.
func NewSPS(r *bits.RBSP) (*SPS, error) {
	sps := &SPS{}
	r.Skip(4) // sps_video_parameter_set_id
	sps.MaxSubLayersMinus1 = r.U(3)
	r.Skip(1) // sps_temporal_id_nesting_flag
	sps.ProfileIDC, sps.LevelIDC = profileTierLevel(r, sps.MaxSubLayersMinus1)

	sps.ID = r.UE()
	if sps.ID >= maxSPS {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSPSID, sps.ID)
	}

	sps.ChromaFormatIDC = r.UE()
	if sps.ChromaFormatIDC == 3 {
		sps.SeparateColourPlane = r.Flag()
	}
	sps.PicWidthInLumaSamples = r.UE()
	sps.PicHeightInLumaSamples = r.UE()
	if r.Flag() { // conformance_window_flag
		sps.ConfWinLeftOffset = r.UE()
		sps.ConfWinRightOffset = r.UE()
		sps.ConfWinTopOffset = r.UE()
		sps.ConfWinBottomOffset = r.UE()
	}
	sps.BitDepthLumaMinus8 = r.UE()
	sps.BitDepthChromaMinus8 = r.UE()
	sps.Log2MaxPicOrderCntLSBMinus4 = r.UE()
	if sps.Log2MaxPicOrderCntLSBMinus4 > 12 {
		return nil, errors.Errorf("log2_max_pic_order_cnt_lsb_minus4 %d out of range", sps.Log2MaxPicOrderCntLSBMinus4)
	}

	i := sps.MaxSubLayersMinus1
	if r.Flag() { // sps_sub_layer_ordering_info_present_flag
		i = 0
	}
	for ; i <= sps.MaxSubLayersMinus1; i++ {
		sps.MaxDecPicBufferingMinus1 = r.UE()
		sps.MaxNumReorderPics = r.UE()
		sps.MaxLatencyIncreasePlus1 = r.UE()
	}

	sps.Log2MinLumaCodingBlockSizeMinus3 = r.UE()
	sps.Log2DiffMaxMinLumaCodingBlockSize = r.UE()
	sps.Log2MinTransformBlockSizeMinus2 = r.UE()
	sps.Log2DiffMaxMinTransformBlockSize = r.UE()
	sps.MaxTransformHierarchyDepthInter = r.UE()
	sps.MaxTransformHierarchyDepthIntra = r.UE()
	if sps.Log2MinLumaCodingBlockSizeMinus3+sps.Log2DiffMaxMinLumaCodingBlockSize > 3 {
		return nil, errors.New("coding tree block size out of range")
	}

	sps.ScalingListEnabled = r.Flag()
	if sps.ScalingListEnabled {
		sps.ScalingLists = defaultScalingLists()
		if r.Flag() { // sps_scaling_list_data_present_flag
			scalingListData(r, &sps.ScalingLists)
		}
	}

	sps.AMPEnabled = r.Flag()
	sps.SampleAdaptiveOffsetEnabled = r.Flag()
	sps.PCMEnabled = r.Flag()
	if sps.PCMEnabled {
		sps.PCMSampleBitDepthLumaMinus1 = r.U(4)
		sps.PCMSampleBitDepthChromaMinus1 = r.U(4)
		sps.Log2MinPCMLumaCodingBlockSizeMinus3 = r.UE()
		sps.Log2DiffMaxMinPCMLumaCodingBlockSize = r.UE()
		sps.PCMLoopFilterDisabled = r.Flag()
	}

	n := r.UE()
	if n > maxRPS {
		return nil, errors.Errorf("num_short_term_ref_pic_sets %d out of range", n)
	}
	sps.StRPS = make([]RefPicSet, n)
	for i := range sps.StRPS {
		rps, err := stRefPicSet(r, sps.StRPS[:i], i, n)
		if err != nil {
			return nil, errors.Wrap(err, "could not read short-term reference picture set")
		}
		sps.StRPS[i] = rps
	}

	sps.LongTermRefPicsPresent = r.Flag()
	if sps.LongTermRefPicsPresent {
		n := r.UE()
		if n > 32 {
			return nil, errors.Errorf("num_long_term_ref_pics_sps %d out of range", n)
		}
		for i := 0; i < n; i++ {
			sps.LtRefPicPOCLSB = append(sps.LtRefPicPOCLSB, r.U(sps.Log2MaxPicOrderCntLSBMinus4+4))
			sps.UsedByCurrPicLt = append(sps.UsedByCurrPicLt, r.Flag())
		}
	}

	sps.TemporalMVPEnabled = r.Flag()
	sps.StrongIntraSmoothingEnabled = r.Flag()
	sps.VUIParametersPresent = r.Flag()

	if r.Err() != nil {
		return nil, errors.Wrap(r.Err(), "could not read SPS")
	}
	return sps, nil
}

// profileTierLevel reads profile_tier_level() of section 7.3.3 and returns
// general_profile_idc and general_level_idc.
func profileTierLevel(r *bits.RBSP, maxSubLayersMinus1 int) (profile, level int) {
	r.Skip(3) // general_profile_space and general_tier_flag
	profile = r.U(5)
	r.Skip(32) // general_profile_compatibility_flag[j]
	r.Skip(4)  // progressive, interlaced, non packed and frame only flags
	r.Skip(43) // general_reserved_zero_43bits
	r.Skip(1)  // general_inbld_flag
	level = r.U(8)

	var profilePresent, levelPresent [8]bool
	for i := 0; i < maxSubLayersMinus1; i++ {
		profilePresent[i] = r.Flag()
		levelPresent[i] = r.Flag()
	}
	if maxSubLayersMinus1 > 0 {
		for i := maxSubLayersMinus1; i < 8; i++ {
			r.Skip(2) // reserved_zero_2bits
		}
	}
	for i := 0; i < maxSubLayersMinus1; i++ {
		if profilePresent[i] {
			r.Skip(88) // sub_layer profile fields
		}
		if levelPresent[i] {
			r.Skip(8) // sub_layer_level_idc
		}
	}
	return profile, level
}

// Default 8x8 scaling factors of table 7-6 in coefficient scan order.
var (
	default8x8Intra = [64]uint8{
		16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 17, 16, 17, 16, 17, 18,
		17, 18, 18, 17, 18, 21, 19, 20, 21, 20, 19, 21, 24, 22, 22, 24,
		24, 22, 22, 24, 25, 25, 27, 30, 27, 25, 25, 29, 31, 35, 35, 31,
		29, 36, 41, 44, 41, 36, 47, 54, 54, 47, 65, 70, 65, 88, 88, 115,
	}
	default8x8Inter = [64]uint8{
		16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 17, 17, 17, 17, 17, 18,
		18, 18, 18, 18, 18, 20, 20, 20, 20, 20, 20, 20, 24, 24, 24, 24,
		24, 24, 24, 24, 25, 25, 25, 25, 25, 25, 25, 28, 28, 28, 28, 28,
		28, 33, 33, 33, 33, 33, 41, 41, 41, 41, 54, 54, 54, 71, 71, 91,
	}
)

// defaultScalingLists returns the lists inferred when scaling lists are
// enabled but not signalled.
func defaultScalingLists() ScalingLists {
	var l ScalingLists
	for m := 0; m < 6; m++ {
		setDefaultList(&l, 0, m)
		setDefaultList(&l, 1, m)
		setDefaultList(&l, 2, m)
	}
	setDefaultList(&l, 3, 0)
	setDefaultList(&l, 3, 1)
	return l
}

// list returns the scaling list of the given size and matrix.
func (l *ScalingLists) list(sizeID, matrixID int) []uint8 {
	switch sizeID {
	case 0:
		return l.List4x4[matrixID][:]
	case 1:
		return l.List8x8[matrixID][:]
	case 2:
		return l.List16x16[matrixID][:]
	default:
		return l.List32x32[matrixID][:]
	}
}

// dc returns the DC coefficient of the given size and matrix, or nil for
// sizes without one.
func (l *ScalingLists) dc(sizeID, matrixID int) *uint8 {
	switch sizeID {
	case 2:
		return &l.DC16x16[matrixID]
	case 3:
		return &l.DC32x32[matrixID]
	}
	return nil
}

func setDefaultList(l *ScalingLists, sizeID, matrixID int) {
	dst := l.list(sizeID, matrixID)
	switch {
	case sizeID == 0:
		for i := range dst {
			dst[i] = 16
		}
	case (sizeID < 3 && matrixID < 3) || (sizeID == 3 && matrixID < 1):
		copy(dst, default8x8Intra[:])
	default:
		copy(dst, default8x8Inter[:])
	}
	if dc := l.dc(sizeID, matrixID); dc != nil {
		*dc = 16
	}
}

// scalingListData reads scaling_list_data() of section 7.3.4 into l.
func scalingListData(r *bits.RBSP, l *ScalingLists) {
	for sizeID := 0; sizeID < 4; sizeID++ {
		matrices := 6
		if sizeID == 3 {
			matrices = 2
		}
		for matrixID := 0; matrixID < matrices && r.Err() == nil; matrixID++ {
			if !r.Flag() { // scaling_list_pred_mode_flag
				ref := matrixID - r.UE()
				if ref < 0 {
					ref = matrixID
				}
				if ref == matrixID {
					setDefaultList(l, sizeID, matrixID)
					continue
				}
				copy(l.list(sizeID, matrixID), l.list(sizeID, ref))
				if dc := l.dc(sizeID, matrixID); dc != nil {
					*dc = *l.dc(sizeID, ref)
				}
				continue
			}

			next := 8
			if dc := l.dc(sizeID, matrixID); dc != nil {
				next = r.SE() + 8 // scaling_list_dc_coef_minus8
				*dc = uint8(next)
			}
			dst := l.list(sizeID, matrixID)
			for i := range dst {
				next = (next + r.SE() + 256) % 256 // scaling_list_delta_coef
				dst[i] = uint8(next)
			}
		}
	}
}
