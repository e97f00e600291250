/*
DESCRIPTION
  picture.go provides the H.265 picture parameters given to the hardware
  codec.

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

import "github.com/ausocean/hwdec/hw"

// maxCurrRefs is the size of the RefPicSet*Curr index lists.
const maxCurrRefs = 8

// Picture holds the parameters for decoding one picture.
type Picture struct {
	SPS *SPS
	PPS *PPS

	IDRPic     bool
	RAPPic     bool
	TemporalID int

	// CurrRpsIdx is short_term_ref_pic_set_idx, or num_short_term_ref_pic_sets
	// when the set is coded in the slice header.
	CurrRpsIdx int

	// NumStRpsSliceHeaderBits is the size of a slice header coded st_ref_pic_set.
	NumStRpsSliceHeaderBits int

	CurrPicOrderCntVal int

	// SliceCount is the number of slice segments submitted for the picture.
	SliceCount int

	// Reference pictures, filled when the picture ends. Entries of Ref are
	// nil for pictures missing from the decoded picture buffer.
	NumDeltaPocsOfRefRpsIdx int
	Ref                     [maxRefPics]hw.Buffer
	PicOrderCntVal          [maxRefPics]int
	IsLongTerm              [maxRefPics]bool
	NumPocStCurrBefore      int
	NumPocStCurrAfter       int
	NumPocLtCurr            int
	RefPicSetStCurrBefore   [maxCurrRefs]int
	RefPicSetStCurrAfter    [maxCurrRefs]int
	RefPicSetLtCurr         [maxCurrRefs]int
}

// Profile implements hw.Picture.
func (p *Picture) Profile() hw.Profile { return hw.ProfileHEVCMain }
