/*
DESCRIPTION
  frame.go provides parsing of the AV1 uncompressed frame header, section 5.9,
  including frame size, reference selection and the short signalling
  set_frame_refs process of section 7.8.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package av1

import (
	"github.com/pkg/errors"
)

// Frame types.
const (
	KeyFrame       = 0
	InterFrame     = 1
	IntraOnlyFrame = 2
	SwitchFrame    = 3
)

// Reference frame names, used to index per reference arrays.
const (
	intraFrame   = 0
	lastFrame    = 1
	last2Frame   = 2
	last3Frame   = 3
	goldenFrame  = 4
	bwdrefFrame  = 5
	altref2Frame = 6
	altrefFrame  = 7
)

const (
	numRefFrames   = 8
	refsPerFrame   = 7
	primaryRefNone = 7
	allFrames      = 1<<numRefFrames - 1

	superresNum       = 8
	superresDenomMin  = 9
	superresDenomBits = 3

	interpFilterSwitchable = 4

	noRef = -1
)

// FrameHeader is an uncompressed_header().
type FrameHeader struct {
	ShowExistingFrame bool
	FrameToShowMapIdx int

	FrameType               int
	FrameIsIntra            bool
	ShowFrame               bool
	ShowableFrame           bool
	ErrorResilientMode      bool
	DisableCDFUpdate        bool
	AllowScreenContentTools bool
	ForceIntegerMV          bool
	CurrentFrameID          int
	FrameSizeOverride       bool
	OrderHint               int
	PrimaryRefFrame         int
	RefreshFrameFlags       int
	RefOrderHint            [numRefFrames]int

	FrameWidth    int
	FrameHeight   int
	UpscaledWidth int
	RenderWidth   int
	RenderHeight  int
	UseSuperres   bool
	SuperresDenom int
	MiCols        int
	MiRows        int

	AllowIntrabc             bool
	FrameRefsShortSignaling  bool
	LastFrameIdx             int
	GoldFrameIdx             int
	RefFrameIdx              [refsPerFrame]int
	AllowHighPrecisionMV     bool
	InterpolationFilter      int
	IsMotionModeSwitchable   bool
	UseRefFrameMVs           bool
	DisableFrameEndUpdateCDF bool

	Tile          TileInfo
	Quant         QuantizationParams
	Segmentation  SegmentationParams
	DeltaQ        DeltaQParams
	DeltaLF       DeltaLFParams
	CodedLossless bool
	AllLossless   bool
	LoopFilter    LoopFilterParams
	CDEF          CDEFParams
	Restoration   LoopRestorationParams
	TxMode        int

	ReferenceSelect   bool
	SkipModePresent   bool
	AllowWarpedMotion bool
	ReducedTxSet      bool
	GlobalMotion      GlobalMotionParams
	FilmGrain         FilmGrainParams
}

// headerParser holds the state used while parsing one frame header.
type headerParser struct {
	r    *reader
	seq  *SequenceHeader
	refs *[numRefFrames]FrameHeader
	obu  OBUHeader
	h    *FrameHeader
	err  error

	// set_frame_refs state.
	usedFrame         [numRefFrames]bool
	curFrameHint      int
	shiftedOrderHints [numRefFrames]int
}

// parseFrameHeader parses an uncompressed header. refs holds the headers of
// the frames in the eight reference slots and obu the header of the OBU
// carrying the frame header.
func parseFrameHeader(r *reader, seq *SequenceHeader, refs *[numRefFrames]FrameHeader, obu OBUHeader) (*FrameHeader, error) {
	p := &headerParser{r: r, seq: seq, refs: refs, obu: obu, h: &FrameHeader{}}
	p.uncompressedHeader()
	if p.err != nil {
		return nil, p.err
	}
	if r.br.Err() != nil {
		return nil, errors.Wrap(r.br.Err(), "could not read frame header")
	}
	return p.h, nil
}

func (p *headerParser) uncompressedHeader() {
	r, seq, h := p.r, p.seq, p.h
	idLen := seq.idLen()

	if seq.ReducedStillPictureHeader {
		h.FrameType = KeyFrame
		h.FrameIsIntra = true
		h.ShowFrame = true
	} else {
		h.ShowExistingFrame = r.flag()
		if h.ShowExistingFrame {
			h.FrameToShowMapIdx = r.f(3)
			if seq.DecoderModelInfoPresent && !seq.EqualPictureInterval {
				r.f(seq.FramePresentationTimeLengthMinus1 + 1) // frame_presentation_time
			}
			if seq.FrameIDNumbersPresent {
				r.f(idLen) // display_frame_id
			}
			h.FrameType = p.refs[h.FrameToShowMapIdx].FrameType
			return
		}

		h.FrameType = r.f(2)
		h.FrameIsIntra = h.FrameType == IntraOnlyFrame || h.FrameType == KeyFrame
		h.ShowFrame = r.flag()
		if h.ShowFrame && seq.DecoderModelInfoPresent && !seq.EqualPictureInterval {
			r.f(seq.FramePresentationTimeLengthMinus1 + 1) // frame_presentation_time
		}
		if h.ShowFrame {
			h.ShowableFrame = h.FrameType != KeyFrame
		} else {
			h.ShowableFrame = r.flag()
		}
		if h.FrameType == SwitchFrame || (h.FrameType == KeyFrame && h.ShowFrame) {
			h.ErrorResilientMode = true
		} else {
			h.ErrorResilientMode = r.flag()
		}
	}

	if h.FrameType != KeyFrame || !h.ShowFrame {
		for i := range h.RefOrderHint {
			h.RefOrderHint[i] = p.refs[i].OrderHint
		}
	}

	h.DisableCDFUpdate = r.flag()
	if seq.ForceScreenContentTools == selectScreenContentTools {
		h.AllowScreenContentTools = r.flag()
	} else {
		h.AllowScreenContentTools = seq.ForceScreenContentTools == 1
	}
	if h.AllowScreenContentTools {
		if seq.ForceIntegerMV == selectIntegerMV {
			h.ForceIntegerMV = r.flag()
		} else {
			h.ForceIntegerMV = seq.ForceIntegerMV == 1
		}
	}
	if h.FrameIsIntra {
		h.ForceIntegerMV = true
	}

	if seq.FrameIDNumbersPresent {
		h.CurrentFrameID = r.f(idLen)
	}

	switch {
	case h.FrameType == SwitchFrame:
		h.FrameSizeOverride = true
	case seq.ReducedStillPictureHeader:
	default:
		h.FrameSizeOverride = r.flag()
	}

	h.OrderHint = r.f(seq.OrderHintBits)

	if h.FrameIsIntra || h.ErrorResilientMode {
		h.PrimaryRefFrame = primaryRefNone
	} else {
		h.PrimaryRefFrame = r.f(3)
	}

	if seq.DecoderModelInfoPresent && r.flag() { // buffer_removal_time_present_flag
		for i := 0; i <= seq.OperatingPointsCntMinus1; i++ {
			if !seq.DecoderModelPresentForThisOp[i] {
				continue
			}
			idc := seq.OperatingPointIDC[i]
			inTemporalLayer := (idc>>uint(p.obu.TemporalID))&1 == 1
			inSpatialLayer := (idc>>uint(p.obu.SpatialID+8))&1 == 1
			if idc == 0 || (inTemporalLayer && inSpatialLayer) {
				r.f(seq.BufferRemovalTimeLengthMinus1 + 1) // buffer_removal_time
			}
		}
	}

	if h.FrameType == SwitchFrame || (h.FrameType == KeyFrame && h.ShowFrame) {
		h.RefreshFrameFlags = allFrames
	} else {
		h.RefreshFrameFlags = r.f(numRefFrames)
	}

	if (!h.FrameIsIntra || h.RefreshFrameFlags != allFrames) && h.ErrorResilientMode && seq.EnableOrderHint {
		for i := range h.RefOrderHint {
			h.RefOrderHint[i] = r.f(seq.OrderHintBits) // ref_order_hint
		}
	}

	if h.FrameIsIntra {
		p.frameSize()
		p.renderSize()
		if h.AllowScreenContentTools && h.UpscaledWidth == h.FrameWidth {
			h.AllowIntrabc = r.flag()
		}
	} else {
		if seq.EnableOrderHint {
			h.FrameRefsShortSignaling = r.flag()
			if h.FrameRefsShortSignaling {
				h.LastFrameIdx = r.f(3)
				h.GoldFrameIdx = r.f(3)
				p.setFrameRefs()
			}
		}
		for i := 0; i < refsPerFrame; i++ {
			if !h.FrameRefsShortSignaling {
				h.RefFrameIdx[i] = r.f(3)
			}
			if seq.FrameIDNumbersPresent {
				r.f(seq.DeltaFrameIDLengthMinus2 + 2) // delta_frame_id_minus_1
			}
		}

		if h.FrameSizeOverride && !h.ErrorResilientMode {
			p.frameSizeWithRefs()
		} else {
			p.frameSize()
			p.renderSize()
		}

		if !h.ForceIntegerMV {
			h.AllowHighPrecisionMV = r.flag()
		}
		if r.flag() { // is_filter_switchable
			h.InterpolationFilter = interpFilterSwitchable
		} else {
			h.InterpolationFilter = r.f(2)
		}
		h.IsMotionModeSwitchable = r.flag()
		if !h.ErrorResilientMode && seq.EnableRefFrameMVs {
			h.UseRefFrameMVs = r.flag()
		}
	}

	if seq.ReducedStillPictureHeader || h.DisableCDFUpdate {
		h.DisableFrameEndUpdateCDF = true
	} else {
		h.DisableFrameEndUpdateCDF = r.flag()
	}

	p.tileInfo()
	if p.err != nil {
		return
	}
	p.quantizationParams()
	p.segmentationParams()
	p.deltaQParams()
	p.deltaLFParams()

	h.CodedLossless = true
	for seg := 0; seg < maxSegments; seg++ {
		q := p.qIndex(true, seg)
		lossless := q == 0 && h.Quant.DeltaQYDc == 0 &&
			h.Quant.DeltaQUAc == 0 && h.Quant.DeltaQUDc == 0 &&
			h.Quant.DeltaQVAc == 0 && h.Quant.DeltaQVDc == 0
		if !lossless {
			h.CodedLossless = false
		}
	}
	h.AllLossless = h.CodedLossless && h.FrameWidth == h.UpscaledWidth

	p.loopFilterParams()
	p.cdefParams()
	p.lrParams()
	p.readTxMode()
	p.frameReferenceMode()
	p.skipModeParams()

	if !h.FrameIsIntra && !h.ErrorResilientMode && seq.EnableWarpedMotion {
		h.AllowWarpedMotion = r.flag()
	}
	h.ReducedTxSet = r.flag()

	p.globalMotionParams()
	p.filmGrainParams()
}

func (p *headerParser) superresParams() {
	h := p.h
	h.UseSuperres = false
	if p.seq.EnableSuperres {
		h.UseSuperres = p.r.flag()
	}
	h.SuperresDenom = superresNum
	if h.UseSuperres {
		h.SuperresDenom = p.r.f(superresDenomBits) + superresDenomMin
	}
	h.UpscaledWidth = h.FrameWidth
	h.FrameWidth = (h.UpscaledWidth*superresNum + h.SuperresDenom/2) / h.SuperresDenom
}

func (p *headerParser) computeImageSize() {
	h := p.h
	h.MiCols = 2 * ((h.FrameWidth + 7) >> 3)
	h.MiRows = 2 * ((h.FrameHeight + 7) >> 3)
}

func (p *headerParser) frameSize() {
	h, seq := p.h, p.seq
	if h.FrameSizeOverride {
		h.FrameWidth = p.r.f(seq.FrameWidthBitsMinus1+1) + 1
		h.FrameHeight = p.r.f(seq.FrameHeightBitsMinus1+1) + 1
	} else {
		h.FrameWidth = seq.MaxWidth()
		h.FrameHeight = seq.MaxHeight()
	}
	p.superresParams()
	p.computeImageSize()
}

func (p *headerParser) renderSize() {
	h := p.h
	if p.r.flag() { // render_and_frame_size_different
		h.RenderWidth = p.r.f(16) + 1
		h.RenderHeight = p.r.f(16) + 1
		return
	}
	h.RenderWidth = h.UpscaledWidth
	h.RenderHeight = h.FrameHeight
}

func (p *headerParser) frameSizeWithRefs() {
	h := p.h
	for i := 0; i < refsPerFrame; i++ {
		if !p.r.flag() { // found_ref
			continue
		}
		ref := &p.refs[h.RefFrameIdx[i]]
		h.UpscaledWidth = ref.UpscaledWidth
		h.FrameWidth = h.UpscaledWidth
		h.FrameHeight = ref.FrameHeight
		h.RenderWidth = ref.RenderWidth
		h.RenderHeight = ref.RenderHeight
		p.superresParams()
		p.computeImageSize()
		return
	}
	p.frameSize()
	p.renderSize()
}

// relativeDist returns the signed distance between order hints a and b.
func (p *headerParser) relativeDist(a, b int) int {
	return relativeDist(p.seq, a, b)
}

func relativeDist(seq *SequenceHeader, a, b int) int {
	if !seq.EnableOrderHint {
		return 0
	}
	diff := a - b
	m := 1 << uint(seq.OrderHintBits-1)
	return (diff & (m - 1)) - (diff & m)
}

// setFrameRefs derives ref_frame_idx from the last and golden frame indices
// and the reference order hints, section 7.8.
func (p *headerParser) setFrameRefs() {
	h := p.h
	for i := range h.RefFrameIdx {
		h.RefFrameIdx[i] = noRef
	}
	h.RefFrameIdx[lastFrame-lastFrame] = h.LastFrameIdx
	h.RefFrameIdx[goldenFrame-lastFrame] = h.GoldFrameIdx

	p.usedFrame = [numRefFrames]bool{}
	p.usedFrame[h.LastFrameIdx] = true
	p.usedFrame[h.GoldFrameIdx] = true

	p.curFrameHint = 1 << uint(p.seq.OrderHintBits-1)
	for i := 0; i < numRefFrames; i++ {
		p.shiftedOrderHints[i] = p.curFrameHint + p.relativeDist(h.RefOrderHint[i], h.OrderHint)
	}

	if ref := p.findLatestBackward(); ref != noRef {
		h.RefFrameIdx[altrefFrame-lastFrame] = ref
		p.usedFrame[ref] = true
	}
	if ref := p.findEarliestBackward(); ref != noRef {
		h.RefFrameIdx[bwdrefFrame-lastFrame] = ref
		p.usedFrame[ref] = true
	}
	if ref := p.findEarliestBackward(); ref != noRef {
		h.RefFrameIdx[altref2Frame-lastFrame] = ref
		p.usedFrame[ref] = true
	}

	for _, f := range [...]int{last2Frame, last3Frame, bwdrefFrame, altref2Frame, altrefFrame} {
		if h.RefFrameIdx[f-lastFrame] != noRef {
			continue
		}
		if ref := p.findLatestForward(); ref != noRef {
			h.RefFrameIdx[f-lastFrame] = ref
			p.usedFrame[ref] = true
		}
	}

	ref, earliest := noRef, 0
	for i, hint := range p.shiftedOrderHints {
		if ref == noRef || hint < earliest {
			ref, earliest = i, hint
		}
	}
	for i := range h.RefFrameIdx {
		if h.RefFrameIdx[i] == noRef {
			h.RefFrameIdx[i] = ref
		}
	}
}

func (p *headerParser) findLatestBackward() int {
	ref, latest := noRef, 0
	for i, hint := range p.shiftedOrderHints {
		if !p.usedFrame[i] && hint >= p.curFrameHint && (ref == noRef || hint >= latest) {
			ref, latest = i, hint
		}
	}
	return ref
}

func (p *headerParser) findEarliestBackward() int {
	ref, earliest := noRef, 0
	for i, hint := range p.shiftedOrderHints {
		if !p.usedFrame[i] && hint >= p.curFrameHint && (ref == noRef || hint < earliest) {
			ref, earliest = i, hint
		}
	}
	return ref
}

func (p *headerParser) findLatestForward() int {
	ref, latest := noRef, 0
	for i, hint := range p.shiftedOrderHints {
		if !p.usedFrame[i] && hint < p.curFrameHint && (ref == noRef || hint >= latest) {
			ref, latest = i, hint
		}
	}
	return ref
}

func (p *headerParser) frameReferenceMode() {
	if p.h.FrameIsIntra {
		p.h.ReferenceSelect = false
		return
	}
	p.h.ReferenceSelect = p.r.flag()
}

// skipModeParams reads skip_mode_present when a forward and a backward
// reference, or two forward references, are available.
func (p *headerParser) skipModeParams() {
	h := p.h
	if h.FrameIsIntra || !h.ReferenceSelect || !p.seq.EnableOrderHint {
		return
	}

	forwardIdx, backwardIdx := noRef, noRef
	var forwardHint, backwardHint int
	for i := 0; i < refsPerFrame; i++ {
		refHint := h.RefOrderHint[h.RefFrameIdx[i]]
		switch d := p.relativeDist(refHint, h.OrderHint); {
		case d < 0:
			if forwardIdx == noRef || p.relativeDist(refHint, forwardHint) > 0 {
				forwardIdx, forwardHint = i, refHint
			}
		case d > 0:
			if backwardIdx == noRef || p.relativeDist(refHint, backwardHint) < 0 {
				backwardIdx, backwardHint = i, refHint
			}
		}
	}

	allowed := false
	switch {
	case forwardIdx == noRef:
	case backwardIdx != noRef:
		allowed = true
	default:
		secondIdx, secondHint := noRef, 0
		for i := 0; i < refsPerFrame; i++ {
			refHint := h.RefOrderHint[h.RefFrameIdx[i]]
			if p.relativeDist(refHint, forwardHint) < 0 &&
				(secondIdx == noRef || p.relativeDist(refHint, secondHint) > 0) {
				secondIdx, secondHint = i, refHint
			}
		}
		allowed = secondIdx != noRef
	}

	if allowed {
		h.SkipModePresent = p.r.flag()
	}
}
