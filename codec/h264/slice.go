/*
DESCRIPTION
  slice.go provides parsing of the H.264 slice header fields that determine
  frame boundaries, and picture order count derivation (section 8.2.1).

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
	"math"

	"github.com/ausocean/hwdec/codec/bits"
)

// Slice types, slice_type % 5.
const (
	sliceTypeP  = 0
	sliceTypeB  = 1
	sliceTypeI  = 2
	sliceTypeSP = 3
	sliceTypeSI = 4
)

// unsetPOC marks a field order count that has not been derived.
const unsetPOC = math.MaxInt32

// pocState holds the slice header state carried between slices and pictures.
type pocState struct {
	nalRefIDC              int
	idrPic                 bool
	idrPicID               int
	picOrderCntMSB         int
	picOrderCntLSB         int
	deltaPicOrderCntBottom int
	deltaPicOrderCnt       [2]int
	prevFrameNumOffset     int
}

// sliceHeader parses the slice header in r up to num_ref_idx_active_override,
// ending the current frame whenever a field differs from the previous slice
// in a way that marks the first slice of a new picture (section 7.4.1.2.4).
// It returns false if the slice cannot be decoded.
func (d *Decoder) sliceHeader(r *bits.RBSP, nalRefIDC, nalType int) bool {
	idr := nalType == nalTypeIDR
	if idr != d.st.idrPic {
		d.EndFrame()
	}
	d.st.idrPic = idr

	r.UE() // first_mb_in_slice
	sliceType := r.UE() % 5

	ppsID := r.UE()
	if ppsID >= maxPPS || d.pps[ppsID] == nil {
		d.s.Log.Warning(pkg+"slice refers to unknown PPS", "id", ppsID)
		return false
	}
	pps := d.pps[ppsID]
	sps := d.sps[pps.SPSID]
	if sps == nil {
		d.s.Log.Warning(pkg+"PPS refers to unknown SPS", "id", pps.SPSID)
		return false
	}

	if ppsID != d.ppsID {
		d.EndFrame()
	}
	d.ppsID = ppsID
	d.pic.PPS, d.pic.SPS = pps, sps

	if sps.SeparateColourPlane {
		r.Skip(2) // colour_plane_id
	}

	frameNum := r.U(sps.Log2MaxFrameNumMinus4 + 4)
	if frameNum != d.pic.FrameNum {
		d.EndFrame()
	}
	prevFrameNum := d.pic.FrameNum
	d.pic.FrameNum = frameNum

	if !sps.FrameMBsOnly {
		field := r.Flag()
		if !field && field != d.pic.FieldPic {
			d.EndFrame()
		}
		d.pic.FieldPic = field

		if field {
			bottom := r.Flag()
			if bottom != d.pic.BottomField {
				d.EndFrame()
			}
			d.pic.BottomField = bottom
		}
	}

	if idr {
		id := r.UE()
		if id != d.st.idrPicID {
			d.EndFrame()
		}
		d.st.idrPicID = id
	}

	switch sps.PicOrderCntType {
	case 0:
		d.pocType0(r, sps, pps, idr)
	case 1:
		d.pocType1(r, sps, pps, idr, nalRefIDC, frameNum, prevFrameNum)
	case 2:
		d.pocType2(sps, idr, nalRefIDC, frameNum, prevFrameNum)
	}

	if pps.RedundantPicCntPresent {
		r.UE() // redundant_pic_cnt
	}
	if sliceType == sliceTypeB {
		r.Skip(1) // direct_spatial_mv_pred_flag
	}

	d.pic.NumRefIdxL0ActiveMinus1 = pps.NumRefIdxL0DefaultActiveMinus1
	d.pic.NumRefIdxL1ActiveMinus1 = pps.NumRefIdxL1DefaultActiveMinus1
	if sliceType == sliceTypeP || sliceType == sliceTypeSP || sliceType == sliceTypeB {
		if r.Flag() { // num_ref_idx_active_override_flag
			d.pic.NumRefIdxL0ActiveMinus1 = r.UE()
			if sliceType == sliceTypeB {
				d.pic.NumRefIdxL1ActiveMinus1 = r.UE()
			}
		}
	}
	d.pic.IsReference = nalRefIDC != 0

	if r.Err() != nil {
		d.s.Log.Debug(pkg+"slice header read past available data", "error", r.Err().Error())
	}
	return true
}

// pocType0 derives the picture order count from pic_order_cnt_lsb, correcting
// the MSB when the LSB wraps (section 8.2.1.1).
func (d *Decoder) pocType0(r *bits.RBSP, sps *SPS, pps *PPS, idr bool) {
	log2MaxLSB := sps.Log2MaxPicOrderCntLSBMinus4 + 4
	maxLSB := 1 << uint(log2MaxLSB)
	lsb := r.U(log2MaxLSB)

	if lsb != d.st.picOrderCntLSB {
		d.EndFrame()
	}

	if idr {
		d.st.picOrderCntMSB = 0
		d.st.picOrderCntLSB = 0
	}

	prevLSB, prevMSB := d.st.picOrderCntLSB, d.st.picOrderCntMSB
	var msb int
	switch {
	case lsb < prevLSB && prevLSB-lsb >= maxLSB/2:
		msb = prevMSB + maxLSB
	case lsb > prevLSB && lsb-prevLSB > maxLSB/2:
		msb = prevMSB - maxLSB
	default:
		msb = prevMSB
	}
	d.st.picOrderCntMSB = msb
	d.st.picOrderCntLSB = lsb

	if pps.BottomFieldPicOrderInFramePresent && !d.pic.FieldPic {
		delta := r.SE()
		if delta != d.st.deltaPicOrderCntBottom {
			d.EndFrame()
		}
		d.st.deltaPicOrderCntBottom = delta
	}

	switch {
	case !d.pic.FieldPic:
		d.pic.FieldOrderCnt[0] = msb + lsb
		d.pic.FieldOrderCnt[1] = d.pic.FieldOrderCnt[0] + d.st.deltaPicOrderCntBottom
	case !d.pic.BottomField:
		d.pic.FieldOrderCnt[0] = msb + lsb
	default:
		d.pic.FieldOrderCnt[1] = msb + lsb
	}
}

// frameNumOffset returns FrameNumOffset of equation 8-6 and records it as the
// previous offset.
func (d *Decoder) frameNumOffset(sps *SPS, idr bool, frameNum, prevFrameNum int) int {
	var off int
	switch {
	case idr:
		off = 0
	case prevFrameNum > frameNum:
		off = d.st.prevFrameNumOffset + sps.MaxFrameNum()
	default:
		off = d.st.prevFrameNumOffset
	}
	d.st.prevFrameNumOffset = off
	return off
}

// pocType1 derives the picture order count from frame_num and the expected
// deltas of the picture order count cycle (section 8.2.1.2).
func (d *Decoder) pocType1(r *bits.RBSP, sps *SPS, pps *PPS, idr bool, nalRefIDC, frameNum, prevFrameNum int) {
	if !sps.DeltaPicOrderAlwaysZero {
		delta := r.SE()
		if delta != d.st.deltaPicOrderCnt[0] {
			d.EndFrame()
		}
		d.st.deltaPicOrderCnt[0] = delta

		if pps.BottomFieldPicOrderInFramePresent && !d.pic.FieldPic {
			delta = r.SE()
			if delta != d.st.deltaPicOrderCnt[1] {
				d.EndFrame()
			}
			d.st.deltaPicOrderCnt[1] = delta
		}
	}

	off := d.frameNumOffset(sps, idr, frameNum, prevFrameNum)

	cycle := len(sps.OffsetForRefFrame)
	absFrameNum := 0
	if cycle != 0 {
		absFrameNum = off + frameNum
	}
	if nalRefIDC == 0 && absFrameNum > 0 {
		absFrameNum--
	}

	expected := 0
	if absFrameNum > 0 {
		cycleCnt := (absFrameNum - 1) / cycle
		inCycle := (absFrameNum - 1) % cycle
		deltaPerCycle := 0
		for _, o := range sps.OffsetForRefFrame {
			deltaPerCycle += o
		}
		expected = cycleCnt * deltaPerCycle
		for i := 0; i <= inCycle; i++ {
			expected += sps.OffsetForRefFrame[i]
		}
	}
	if nalRefIDC == 0 {
		expected += sps.OffsetForNonRefPic
	}

	switch {
	case !d.pic.FieldPic:
		d.pic.FieldOrderCnt[0] = expected + d.st.deltaPicOrderCnt[0]
		d.pic.FieldOrderCnt[1] = d.pic.FieldOrderCnt[0] + sps.OffsetForTopToBottomField + d.st.deltaPicOrderCnt[1]
	case !d.pic.BottomField:
		d.pic.FieldOrderCnt[0] = expected + d.st.deltaPicOrderCnt[0]
	default:
		d.pic.FieldOrderCnt[1] = expected + sps.OffsetForTopToBottomField + d.st.deltaPicOrderCnt[0]
	}
}

// pocType2 derives the picture order count directly from frame_num, so that
// output order equals decoding order (section 8.2.1.3).
func (d *Decoder) pocType2(sps *SPS, idr bool, nalRefIDC, frameNum, prevFrameNum int) {
	off := d.frameNumOffset(sps, idr, frameNum, prevFrameNum)

	var poc int
	switch {
	case idr:
		poc = 0
	case nalRefIDC == 0:
		poc = 2*(off+frameNum) - 1
	default:
		poc = 2 * (off + frameNum)
	}

	switch {
	case !d.pic.FieldPic:
		d.pic.FieldOrderCnt[0] = poc
		d.pic.FieldOrderCnt[1] = poc
	case !d.pic.BottomField:
		d.pic.FieldOrderCnt[0] = poc
	default:
		d.pic.FieldOrderCnt[1] = poc
	}
}
