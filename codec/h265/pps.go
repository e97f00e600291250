/*
DESCRIPTION
  pps.go provides parsing of H.265 picture parameter sets.

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

// Tile grid limits, see table A.6.
const (
	maxTileColumns = 20
	maxTileRows    = 22
)

// PPS describes a picture parameter set as defined by section 7.3.2.3.
type PPS struct {
	ID, SPSID                      int
	DependentSliceSegmentsEnabled  bool
	OutputFlagPresent              bool
	NumExtraSliceHeaderBits        int
	SignDataHidingEnabled          bool
	CabacInitPresent               bool
	NumRefIdxL0DefaultActiveMinus1 int
	NumRefIdxL1DefaultActiveMinus1 int
	InitQPMinus26                  int
	ConstrainedIntraPred           bool
	TransformSkipEnabled           bool
	CuQPDeltaEnabled               bool
	DiffCuQPDeltaDepth             int
	CbQPOffset                     int
	CrQPOffset                     int
	SliceChromaQPOffsetsPresent    bool
	WeightedPred                   bool
	WeightedBipred                 bool
	TransquantBypassEnabled        bool
	TilesEnabled                   bool
	EntropyCodingSyncEnabled       bool

	// Tile grid, valid when TilesEnabled.
	NumTileColumnsMinus1         int
	NumTileRowsMinus1            int
	UniformSpacing               bool
	ColumnWidthMinus1            []int
	RowHeightMinus1              []int
	LoopFilterAcrossTilesEnabled bool

	LoopFilterAcrossSlicesEnabled   bool
	DeblockingFilterControlPresent  bool
	DeblockingFilterOverrideEnabled bool
	DeblockingFilterDisabled        bool
	BetaOffsetDiv2                  int
	TcOffsetDiv2                    int

	// ScalingLists are the picture level lists, inherited from the SPS when
	// pps_scaling_list_data_present_flag is 0.
	ScalingListDataPresent bool
	ScalingLists           ScalingLists

	ListsModificationPresent           bool
	Log2ParallelMergeLevelMinus2       int
	SliceSegmentHeaderExtensionPresent bool
}

// NewPPS parses a picture parameter set from r following section 7.3.2.3.
// sps is the table of parsed sequence parameter sets, indexed by ID.
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
	pps.ScalingLists = s.ScalingLists

	pps.DependentSliceSegmentsEnabled = r.Flag()
	pps.OutputFlagPresent = r.Flag()
	pps.NumExtraSliceHeaderBits = r.U(3)
	pps.SignDataHidingEnabled = r.Flag()
	pps.CabacInitPresent = r.Flag()
	pps.NumRefIdxL0DefaultActiveMinus1 = r.UE()
	pps.NumRefIdxL1DefaultActiveMinus1 = r.UE()
	pps.InitQPMinus26 = r.SE()
	pps.ConstrainedIntraPred = r.Flag()
	pps.TransformSkipEnabled = r.Flag()
	pps.CuQPDeltaEnabled = r.Flag()
	if pps.CuQPDeltaEnabled {
		pps.DiffCuQPDeltaDepth = r.UE()
	}
	pps.CbQPOffset = r.SE()
	pps.CrQPOffset = r.SE()
	pps.SliceChromaQPOffsetsPresent = r.Flag()
	pps.WeightedPred = r.Flag()
	pps.WeightedBipred = r.Flag()
	pps.TransquantBypassEnabled = r.Flag()
	pps.TilesEnabled = r.Flag()
	pps.EntropyCodingSyncEnabled = r.Flag()

	if pps.TilesEnabled {
		pps.NumTileColumnsMinus1 = r.UE()
		pps.NumTileRowsMinus1 = r.UE()
		if pps.NumTileColumnsMinus1 >= maxTileColumns || pps.NumTileRowsMinus1 >= maxTileRows {
			return nil, errors.Errorf("tile grid %dx%d out of range", pps.NumTileColumnsMinus1+1, pps.NumTileRowsMinus1+1)
		}
		pps.UniformSpacing = r.Flag()
		if !pps.UniformSpacing {
			for i := 0; i < pps.NumTileColumnsMinus1; i++ {
				pps.ColumnWidthMinus1 = append(pps.ColumnWidthMinus1, r.UE())
			}
			for i := 0; i < pps.NumTileRowsMinus1; i++ {
				pps.RowHeightMinus1 = append(pps.RowHeightMinus1, r.UE())
			}
		}
		pps.LoopFilterAcrossTilesEnabled = r.Flag()
	}

	pps.LoopFilterAcrossSlicesEnabled = r.Flag()
	pps.DeblockingFilterControlPresent = r.Flag()
	if pps.DeblockingFilterControlPresent {
		pps.DeblockingFilterOverrideEnabled = r.Flag()
		pps.DeblockingFilterDisabled = r.Flag()
		if !pps.DeblockingFilterDisabled {
			pps.BetaOffsetDiv2 = r.SE()
			pps.TcOffsetDiv2 = r.SE()
		}
	}

	pps.ScalingListDataPresent = r.Flag()
	if pps.ScalingListDataPresent {
		pps.ScalingLists = defaultScalingLists()
		scalingListData(r, &pps.ScalingLists)
	}

	pps.ListsModificationPresent = r.Flag()
	pps.Log2ParallelMergeLevelMinus2 = r.UE()
	pps.SliceSegmentHeaderExtensionPresent = r.Flag()

	if r.Err() != nil {
		return nil, errors.Wrap(r.Err(), "could not read PPS")
	}
	return pps, nil
}
