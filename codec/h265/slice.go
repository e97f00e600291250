/*
DESCRIPTION
  slice.go provides parsing of the H.265 slice segment header fields that
  determine picture boundaries and reference picture sets, and picture order
  count derivation (section 8.3.1).

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
	"github.com/pkg/errors"

	"github.com/ausocean/hwdec/codec/bits"
)

// longTermRef is a long-term reference picture signalled in a slice header.
type longTermRef struct {
	poc  int
	mask int // Applied to DPB POCs before matching, -1 for a full POC.
	used bool
}

// matches returns true if a picture with the given POC is the reference.
func (l longTermRef) matches(poc int) bool { return poc&l.mask == l.poc }

// sliceHeader parses the slice segment header in r up to the long-term
// reference pictures, ending the current picture whenever a field differs
// from the previous slice in a way that marks the first slice of a new
// picture. It returns false if the slice cannot be decoded.
func (d *Decoder) sliceHeader(r *bits.RBSP, nalType, tid int) bool {
	first := r.Flag() // first_slice_segment_in_pic_flag
	if first {
		d.EndFrame()
	}

	idr := isIDR(nalType)
	if idr != d.pic.IDRPic {
		d.EndFrame()
	}
	d.pic.IDRPic = idr

	rap := isRAP(nalType)
	if rap {
		r.Skip(1) // no_output_of_prior_pics_flag
	}

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

	if rap != d.pic.RAPPic {
		d.EndFrame()
	}
	d.pic.RAPPic = rap
	d.pic.TemporalID = tid

	if !first {
		dependent := false
		if pps.DependentSliceSegmentsEnabled {
			dependent = r.Flag() // dependent_slice_segment_flag
		}
		r.Skip(ceilLog2(sps.PicSizeInCtbs())) // slice_segment_address
		if dependent {
			return r.Err() == nil
		}
	}

	r.Skip(pps.NumExtraSliceHeaderBits) // slice_reserved_flag
	r.UE()                              // slice_type
	if pps.OutputFlagPresent {
		r.Skip(1) // pic_output_flag
	}
	if sps.SeparateColourPlane {
		r.Skip(2) // colour_plane_id
	}

	if idr {
		if r.Err() != nil {
			d.s.Log.Warning(pkg+"truncated slice header", "error", r.Err().Error())
			return false
		}
		d.setPOC(nalType, tid, 0)
		d.rps, d.lt = RefPicSet{}, nil
		d.pic.CurrRpsIdx = 0
		d.pic.NumStRpsSliceHeaderBits = 0
		return true
	}

	lsbBits := sps.Log2MaxPicOrderCntLSBMinus4 + 4
	lsb := r.U(lsbBits) // slice_pic_order_cnt_lsb
	bla := isBLA(nalType)
	poc := d.derivePOC(lsb, 1<<uint(lsbBits), bla)

	num := len(sps.StRPS)
	var (
		rps    RefPicSet
		idx    = num
		stBits int
	)
	if !r.Flag() { // short_term_ref_pic_set_sps_flag
		var err error
		left := r.BitsLeft()
		rps, err = stRefPicSet(r, sps.StRPS, num, num)
		if err != nil {
			d.s.Log.Warning(pkg+"bad slice reference picture set", "error", err.Error())
			return false
		}
		stBits = left - r.BitsLeft()
	} else {
		idx = 0
		if num > 1 {
			idx = r.U(ceilLog2(num)) // short_term_ref_pic_set_idx
		}
		if idx >= num {
			d.s.Log.Warning(pkg+"slice refers to unknown reference picture set", "idx", idx)
			return false
		}
		rps = sps.StRPS[idx]
	}

	lt, err := longTermRefs(r, sps, poc, lsb, rps.NumPics)
	if err != nil {
		d.s.Log.Warning(pkg+"bad long-term reference pictures", "error", err.Error())
		return false
	}
	if r.Err() != nil {
		d.s.Log.Warning(pkg+"truncated slice header", "error", r.Err().Error())
		return false
	}

	if poc != d.pic.CurrPicOrderCntVal || idx != d.pic.CurrRpsIdx {
		d.EndFrame()
	}
	if bla {
		rps, lt = RefPicSet{}, nil
	}
	d.setPOC(nalType, tid, poc)
	d.pic.CurrRpsIdx = idx
	d.pic.NumStRpsSliceHeaderBits = stBits
	d.rps, d.lt = rps, lt
	return true
}

// derivePOC returns PicOrderCntVal from slice_pic_order_cnt_lsb and the POC
// of the previous temporal id 0 reference picture (section 8.3.1).
func (d *Decoder) derivePOC(lsb, maxLSB int, bla bool) int {
	prevLSB := d.prevPOC & (maxLSB - 1)
	prevMSB := d.prevPOC - prevLSB

	var msb int
	switch {
	case lsb < prevLSB && prevLSB-lsb >= maxLSB/2:
		msb = prevMSB + maxLSB
	case lsb > prevLSB && lsb-prevLSB > maxLSB/2:
		msb = prevMSB - maxLSB
	default:
		msb = prevMSB
	}
	if bla {
		msb = 0
	}
	return msb + lsb
}

// setPOC sets the POC of the current picture, recording it as the previous
// POC for prediction when the picture is a temporal id 0 reference picture
// that is not a RADL or RASL picture.
func (d *Decoder) setPOC(nalType, tid, poc int) {
	d.pic.CurrPicOrderCntVal = poc
	if tid != 0 {
		return
	}
	switch {
	case nalType == nalTypeTrailR, nalType == nalTypeTSAR, nalType == nalTypeSTSAR, isRAP(nalType):
		d.prevPOC = poc
	}
}

// longTermRefs parses the long-term reference pictures of a slice header.
// numSt is the number of pictures in the short-term set.
func longTermRefs(r *bits.RBSP, sps *SPS, poc, lsb, numSt int) ([]longTermRef, error) {
	if !sps.LongTermRefPicsPresent {
		return nil, nil
	}
	numLtSPS := 0
	if len(sps.LtRefPicPOCLSB) > 0 {
		numLtSPS = r.UE() // num_long_term_sps
	}
	numLtPics := r.UE() // num_long_term_pics
	if numLtSPS > len(sps.LtRefPicPOCLSB) || numSt+numLtSPS+numLtPics > maxRefPics {
		return nil, errors.Errorf("%d long-term pictures out of range", numLtSPS+numLtPics)
	}

	lsbBits := sps.Log2MaxPicOrderCntLSBMinus4 + 4
	maxLSB := 1 << uint(lsbBits)
	var (
		refs  []longTermRef
		cycle int
	)
	for i := 0; i < numLtSPS+numLtPics; i++ {
		var ref longTermRef
		if i < numLtSPS {
			idx := 0
			if len(sps.LtRefPicPOCLSB) > 1 {
				idx = r.U(ceilLog2(len(sps.LtRefPicPOCLSB))) // lt_idx_sps
			}
			if idx >= len(sps.LtRefPicPOCLSB) {
				return nil, errors.Errorf("lt_idx_sps %d out of range", idx)
			}
			ref.poc, ref.used = sps.LtRefPicPOCLSB[idx], sps.UsedByCurrPicLt[idx]
		} else {
			ref.poc = r.U(lsbBits) // poc_lsb_lt
			ref.used = r.Flag()    // used_by_curr_pic_lt_flag
		}
		ref.mask = maxLSB - 1

		msbPresent := r.Flag() // delta_poc_msb_present_flag
		delta := 0
		if msbPresent {
			delta = r.UE() // delta_poc_msb_cycle_lt
		}
		if i == 0 || i == numLtSPS {
			cycle = delta
		} else {
			cycle += delta
		}
		if msbPresent {
			ref.poc = poc - cycle*maxLSB - (lsb - ref.poc)
			ref.mask = -1
		}
		refs = append(refs, ref)
	}
	return refs, r.Err()
}

// ceilLog2 returns Ceil(Log2(n)).
func ceilLog2(n int) int {
	b := 0
	for 1<<uint(b) < n {
		b++
	}
	return b
}
