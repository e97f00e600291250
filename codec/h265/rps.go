/*
DESCRIPTION
  rps.go provides parsing of H.265 short-term reference picture sets, both
  explicitly coded and predicted from a previously parsed set.

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
	"sort"

	"github.com/pkg/errors"

	"github.com/ausocean/hwdec/codec/bits"
)

// RefPicSet is a short-term reference picture set. The first NumNegativePics
// entries of DeltaPOC are negative in decreasing order, the remainder are
// positive in increasing order.
type RefPicSet struct {
	NumNegativePics int
	NumPics         int
	DeltaPOC        [maxRefPics]int
	Used            [maxRefPics]bool

	// NumDeltaPocsOfRef is the number of pictures in the set this one was
	// predicted from, zero for explicitly coded sets.
	NumDeltaPocsOfRef int
}

// stRefPicSet parses st_ref_pic_set(idx) of section 7.3.7 where sets holds
// the sets parsed so far and num is num_short_term_ref_pic_sets. An idx equal
// to num denotes a set coded in a slice header.
func stRefPicSet(r *bits.RBSP, sets []RefPicSet, idx, num int) (RefPicSet, error) {
	var rps RefPicSet
	if idx != 0 && r.Flag() { // inter_ref_pic_set_prediction_flag
		deltaIdxMinus1 := 0
		if idx == num {
			deltaIdxMinus1 = r.UE()
		}
		refIdx := idx - (deltaIdxMinus1 + 1)
		if refIdx < 0 || refIdx >= len(sets) {
			return rps, errors.Errorf("delta_idx_minus1 %d out of range", deltaIdxMinus1)
		}
		ref := &sets[refIdx]

		sign := r.U(1)    // delta_rps_sign
		abs := r.UE() + 1 // abs_delta_rps_minus1
		deltaRPS := (1 - 2*sign) * abs

		type entry struct {
			delta int
			used  bool
		}
		var entries []entry
		for j := 0; j <= ref.NumPics; j++ {
			used := r.Flag() // used_by_curr_pic_flag
			useDelta := used
			if !used {
				useDelta = r.Flag() // use_delta_flag
			}
			if !useDelta {
				continue
			}
			d := deltaRPS
			if j < ref.NumPics {
				d += ref.DeltaPOC[j]
			}
			entries = append(entries, entry{delta: d, used: used})
		}
		if len(entries) > maxRefPics {
			return rps, errors.Errorf("predicted reference picture set holds %d pictures", len(entries))
		}
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].delta < entries[j].delta })

		rps.NumPics = len(entries)
		for i, e := range entries {
			if e.delta < 0 {
				rps.NumNegativePics++
			}
			rps.DeltaPOC[i], rps.Used[i] = e.delta, e.used
		}
		for i, j := 0, rps.NumNegativePics-1; i < j; i, j = i+1, j-1 {
			rps.DeltaPOC[i], rps.DeltaPOC[j] = rps.DeltaPOC[j], rps.DeltaPOC[i]
			rps.Used[i], rps.Used[j] = rps.Used[j], rps.Used[i]
		}
		rps.NumDeltaPocsOfRef = ref.NumPics
		return rps, r.Err()
	}

	neg := r.UE() // num_negative_pics
	pos := r.UE() // num_positive_pics
	if neg > maxRefPics || pos > maxRefPics || neg+pos > maxRefPics {
		return rps, errors.Errorf("reference picture set holds %d negative and %d positive pictures", neg, pos)
	}
	rps.NumNegativePics = neg
	rps.NumPics = neg + pos

	poc := 0
	for i := 0; i < neg; i++ {
		poc -= r.UE() + 1 // delta_poc_s0_minus1
		rps.DeltaPOC[i] = poc
		rps.Used[i] = r.Flag() // used_by_curr_pic_s0_flag
	}
	poc = 0
	for i := neg; i < rps.NumPics; i++ {
		poc += r.UE() + 1 // delta_poc_s1_minus1
		rps.DeltaPOC[i] = poc
		rps.Used[i] = r.Flag() // used_by_curr_pic_s1_flag
	}
	return rps, r.Err()
}
