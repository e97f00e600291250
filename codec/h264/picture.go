/*
DESCRIPTION
  picture.go provides the H.264 picture decode parameters passed to the
  hardware codec.

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

import "github.com/ausocean/hwdec/hw"

// maxRefs is the size of the reference lists in Picture.
const maxRefs = 16

// Picture holds the parameters for decoding one picture.
type Picture struct {
	SPS *SPS
	PPS *PPS

	FrameNum    int
	FieldPic    bool
	BottomField bool
	IsReference bool

	NumRefIdxL0ActiveMinus1 int
	NumRefIdxL1ActiveMinus1 int

	// SliceCount is the number of slices submitted for the picture.
	SliceCount int

	// FieldOrderCnt holds TopFieldOrderCnt and BottomFieldOrderCnt.
	FieldOrderCnt [2]int

	NumRefFrames      int
	FrameNumList      [maxRefs]int
	FieldOrderCntList [maxRefs][2]int
}

// Profile implements hw.Picture.
func (p *Picture) Profile() hw.Profile {
	if p.SPS == nil {
		return hw.ProfileH264High
	}
	return p.SPS.HWProfile()
}

// constraintSet1 is the constraint_set1_flag bit of SPS.Constraints.
const constraintSet1 = 0x40

// HWProfile returns the hardware decoder profile for the profile_idc and
// constraint flags of s. Profiles above Extended decode as High.
func (s *SPS) HWProfile() hw.Profile {
	switch s.Profile {
	case 66:
		if s.Constraints&constraintSet1 != 0 {
			return hw.ProfileH264ConstrainedBaseline
		}
		return hw.ProfileH264Baseline
	case 77:
		return hw.ProfileH264Main
	case 88:
		return hw.ProfileH264Extended
	default:
		return hw.ProfileH264High
	}
}
