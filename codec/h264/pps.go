/*
DESCRIPTION
  pps.go provides parsing of H.264 picture parameter sets.

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

// PPS describes a picture parameter set as defined by section 7.3.2.2.
type PPS struct {
	ID, SPSID                         int
	EntropyCodingMode                 bool
	BottomFieldPicOrderInFramePresent bool
	NumSliceGroupsMinus1              int
	SliceGroupMapType                 int
	RunLengthMinus1                   []int
	TopLeft                           []int
	BottomRight                       []int
	SliceGroupChangeDirection         bool
	SliceGroupChangeRateMinus1        int
	PicSizeInMapUnitsMinus1           int
	SliceGroupID                      []int
	NumRefIdxL0DefaultActiveMinus1    int
	NumRefIdxL1DefaultActiveMinus1    int
	WeightedPred                      bool
	WeightedBipredIDC                 int
	PicInitQPMinus26                  int
	PicInitQSMinus26                  int
	ChromaQPIndexOffset               int
	DeblockingFilterControlPresent    bool
	ConstrainedIntraPred              bool
	RedundantPicCntPresent            bool
	Transform8x8Mode                  bool
	PicScalingMatrixPresent           bool
	SecondChromaQPIndexOffset         int

	// Picture level scaling lists in raster order, inherited from the SPS
	// when not present.
	ScalingList4x4 [6][16]uint8
	ScalingList8x8 [6][64]uint8
}

// NewPPS parses a picture parameter set from r following section 7.3.2.2.
// sps is the table of parsed sequence parameter sets, indexed by ID, used to
// resolve the referenced SPS for scaling list fall-back.
func NewPPS(r *bits.RBSP, sps *[maxSPS]*SPS) (*PPS, error) {
	pps := &PPS{}
	pps.ID = r.UE()
	if pps.ID >= maxPPS {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPPSID, pps.ID)
	}
	pps.SPSID = r.UE()
	if pps.SPSID >= maxSPS {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSPSID, pps.SPSID)
	}
	s := sps[pps.SPSID]
	if s == nil {
		return nil, errors.Errorf("PPS %d refers to unknown SPS %d", pps.ID, pps.SPSID)
	}
	pps.ScalingList4x4, pps.ScalingList8x8 = s.ScalingList4x4, s.ScalingList8x8

	pps.EntropyCodingMode = r.Flag()
	pps.BottomFieldPicOrderInFramePresent = r.Flag()
	pps.NumSliceGroupsMinus1 = r.UE()
	if pps.NumSliceGroupsMinus1 > 7 {
		return nil, errors.Errorf("num_slice_groups_minus1 %d out of range", pps.NumSliceGroupsMinus1)
	}

	if pps.NumSliceGroupsMinus1 > 0 {
		pps.SliceGroupMapType = r.UE()
		switch {
		case pps.SliceGroupMapType == 0:
			for i := 0; i <= pps.NumSliceGroupsMinus1; i++ {
				pps.RunLengthMinus1 = append(pps.RunLengthMinus1, r.UE())
			}
		case pps.SliceGroupMapType == 2:
			for i := 0; i < pps.NumSliceGroupsMinus1; i++ {
				pps.TopLeft = append(pps.TopLeft, r.UE())
				pps.BottomRight = append(pps.BottomRight, r.UE())
			}
		case pps.SliceGroupMapType > 2 && pps.SliceGroupMapType < 6:
			pps.SliceGroupChangeDirection = r.Flag()
			pps.SliceGroupChangeRateMinus1 = r.UE()
		case pps.SliceGroupMapType == 6:
			pps.PicSizeInMapUnitsMinus1 = r.UE()
			n := ceilLog2(pps.NumSliceGroupsMinus1 + 1)
			for i := 0; i <= pps.PicSizeInMapUnitsMinus1 && r.Err() == nil; i++ {
				pps.SliceGroupID = append(pps.SliceGroupID, r.U(n))
			}
		}
	}

	pps.NumRefIdxL0DefaultActiveMinus1 = r.UE()
	pps.NumRefIdxL1DefaultActiveMinus1 = r.UE()
	pps.WeightedPred = r.Flag()
	pps.WeightedBipredIDC = r.U(2)
	pps.PicInitQPMinus26 = r.SE()
	pps.PicInitQSMinus26 = r.SE()
	pps.ChromaQPIndexOffset = r.SE()
	pps.DeblockingFilterControlPresent = r.Flag()
	pps.ConstrainedIntraPred = r.Flag()
	pps.RedundantPicCntPresent = r.Flag()

	if r.MoreData() {
		pps.Transform8x8Mode = r.Flag()
		pps.PicScalingMatrixPresent = r.Flag()
		if pps.PicScalingMatrixPresent {
			readPPSScalingLists(r, pps, s)
		}
		pps.SecondChromaQPIndexOffset = r.SE()
	} else {
		pps.SecondChromaQPIndexOffset = pps.ChromaQPIndexOffset
	}

	if r.Err() != nil {
		return nil, errors.Wrap(r.Err(), "could not read PPS")
	}
	return pps, nil
}

// readPPSScalingLists reads the picture level scaling lists using fall-back
// rule B of table 7-2, i.e. the first list of each type falls back to the
// sequence level list when the SPS carries a scaling matrix.
func readPPSScalingLists(r *bits.RBSP, pps *PPS, s *SPS) {
	intra4, inter4 := default4x4Intra[:], default4x4Inter[:]
	intra8, inter8 := default8x8Intra[:], default8x8Inter[:]
	if s.SeqScalingMatrixPresent {
		intra4, inter4 = s.ScalingList4x4[0][:], s.ScalingList4x4[3][:]
		intra8, inter8 = s.ScalingList8x8[0][:], s.ScalingList8x8[1][:]
	}

	l4, l8 := &pps.ScalingList4x4, &pps.ScalingList8x8
	scalingList(r, l4[0][:], default4x4Intra[:], intra4)
	scalingList(r, l4[1][:], default4x4Intra[:], l4[0][:])
	scalingList(r, l4[2][:], default4x4Intra[:], l4[1][:])
	scalingList(r, l4[3][:], default4x4Inter[:], inter4)
	scalingList(r, l4[4][:], default4x4Inter[:], l4[3][:])
	scalingList(r, l4[5][:], default4x4Inter[:], l4[4][:])

	if !pps.Transform8x8Mode {
		return
	}
	scalingList(r, l8[0][:], default8x8Intra[:], intra8)
	scalingList(r, l8[1][:], default8x8Inter[:], inter8)
	if s.ChromaFormatIDC == chroma444 {
		scalingList(r, l8[2][:], default8x8Intra[:], l8[0][:])
		scalingList(r, l8[3][:], default8x8Inter[:], l8[1][:])
		scalingList(r, l8[4][:], default8x8Intra[:], l8[2][:])
		scalingList(r, l8[5][:], default8x8Inter[:], l8[3][:])
	}
}

// ceilLog2 returns Ceil(Log2(n)) for n > 0.
func ceilLog2(n int) int {
	k := 0
	for 1<<uint(k) < n {
		k++
	}
	return k
}
