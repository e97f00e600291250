/*
DESCRIPTION
  params.go provides parsing of the frame header sub-syntaxes: tile info,
  quantization, segmentation, delta q and lf, loop filter, cdef, loop
  restoration, tx mode, global motion and film grain.

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

import "github.com/pkg/errors"

const (
	maxTileWidth = 4096
	maxTileArea  = 4096 * 2304
	maxTileRows  = 64
	maxTileCols  = 64

	maxSegments = 8
	segLvlMax   = 8
	segLvlAltQ  = 0

	restorationTileSize = 256

	maxCDEFStrengths = 8

	warpedModelPrecBits = 16
	gmAbsAlphaBits      = 12
	gmAlphaPrecBits     = 15
	gmAbsTransOnlyBits  = 9
	gmTransOnlyPrecBits = 3
	gmAbsTransBits      = 12
	gmTransPrecBits     = 6

	maxNumYPoints   = 14
	maxNumCbrPoints = 10
	maxNumPosLuma   = 24
	maxNumPosChroma = 25
)

// Loop restoration types.
const (
	RestoreNone       = 0
	RestoreWiener     = 1
	RestoreSgrproj    = 2
	RestoreSwitchable = 3
)

// Tx modes.
const (
	TxModeOnly4x4 = 0
	TxModeLargest = 1
	TxModeSelect  = 2
)

// Global motion warp model types.
const (
	Identity    = 0
	Translation = 1
	RotZoom     = 2
	Affine      = 3
)

var (
	segmentationFeatureBits   = [segLvlMax]int{8, 6, 6, 6, 6, 3, 0, 0}
	segmentationFeatureSigned = [segLvlMax]bool{true, true, true, true, true, false, false, false}
	segmentationFeatureMax    = [segLvlMax]int{255, 63, 63, 63, 63, 7, 0, 0}

	remapLRType = [4]int{RestoreNone, RestoreSwitchable, RestoreWiener, RestoreSgrproj}

	// Default loop filter reference deltas indexed by reference frame.
	defaultRefDeltas = [numRefFrames]int{1, 0, 0, 0, -1, 0, -1, -1}
)

// errTooManyTiles is returned when a tile info syntax describes more tiles
// than allowed.
var errTooManyTiles = errors.New("too many tiles")

// TileInfo is a tile_info() structure.
type TileInfo struct {
	TileCols            int
	TileRows            int
	TileColsLog2        int
	TileRowsLog2        int
	ColStartSb          [maxTileCols + 1]int
	RowStartSb          [maxTileRows + 1]int
	ContextUpdateTileID int
	TileSizeBytes       int
}

// NumTiles returns the number of tiles in the frame.
func (t *TileInfo) NumTiles() int { return t.TileCols * t.TileRows }

// QuantizationParams is a quantization_params() structure.
type QuantizationParams struct {
	BaseQIdx     int
	DeltaQYDc    int
	DeltaQUDc    int
	DeltaQUAc    int
	DeltaQVDc    int
	DeltaQVAc    int
	UsingQMatrix bool
	QMY          int
	QMU          int
	QMV          int
}

// SegmentationParams is a segmentation_params() structure.
type SegmentationParams struct {
	Enabled        bool
	UpdateMap      bool
	TemporalUpdate bool
	UpdateData     bool
	FeatureEnabled [maxSegments][segLvlMax]bool
	FeatureData    [maxSegments][segLvlMax]int
	FeatureMask    [maxSegments]int
}

// DeltaQParams is a delta_q_params() structure.
type DeltaQParams struct {
	Present bool
	Res     int
}

// DeltaLFParams is a delta_lf_params() structure.
type DeltaLFParams struct {
	Present bool
	Res     int
	Multi   bool
}

// LoopFilterParams is a loop_filter_params() structure.
type LoopFilterParams struct {
	Level        [4]int
	Sharpness    int
	DeltaEnabled bool
	DeltaUpdate  bool
	RefDeltas    [numRefFrames]int
	ModeDeltas   [2]int
}

// CDEFParams is a cdef_params() structure.
type CDEFParams struct {
	DampingMinus3 int
	Bits          int
	YStrengths    [maxCDEFStrengths]int
	UVStrengths   [maxCDEFStrengths]int
}

// LoopRestorationParams is a lr_params() structure.
type LoopRestorationParams struct {
	Type [3]int
	Size [3]int
}

// GlobalMotionParams holds the warp model of each reference frame.
type GlobalMotionParams struct {
	Type   [numRefFrames]int
	Params [numRefFrames][6]int
}

// FilmGrainParams is a film_grain_params() structure.
type FilmGrainParams struct {
	ApplyGrain            bool
	GrainSeed             int
	UpdateGrain           bool
	NumYPoints            int
	PointYValue           [maxNumYPoints]int
	PointYScaling         [maxNumYPoints]int
	ChromaScalingFromLuma bool
	NumCbPoints           int
	PointCbValue          [maxNumCbrPoints]int
	PointCbScaling        [maxNumCbrPoints]int
	NumCrPoints           int
	PointCrValue          [maxNumCbrPoints]int
	PointCrScaling        [maxNumCbrPoints]int
	GrainScalingMinus8    int
	ARCoeffLag            int
	ARCoeffsY             [maxNumPosLuma]int
	ARCoeffsCb            [maxNumPosChroma]int
	ARCoeffsCr            [maxNumPosChroma]int
	ARCoeffShiftMinus6    int
	GrainScaleShift       int
	CbMult                int
	CbLumaMult            int
	CbOffset              int
	CrMult                int
	CrLumaMult            int
	CrOffset              int
	OverlapFlag           bool
	ClipToRestrictedRange bool
}

// primaryRef returns the saved header of the primary reference frame, or nil
// if there is none.
func (p *headerParser) primaryRef() *FrameHeader {
	if p.h.PrimaryRefFrame == primaryRefNone {
		return nil
	}
	return &p.refs[p.h.RefFrameIdx[p.h.PrimaryRefFrame]]
}

func (p *headerParser) tileInfo() {
	r, h, t := p.r, p.h, &p.h.Tile

	sbShift := 4
	if p.seq.Use128x128Superblock {
		sbShift = 5
	}
	sbCols := (h.MiCols + (1 << uint(sbShift)) - 1) >> uint(sbShift)
	sbRows := (h.MiRows + (1 << uint(sbShift)) - 1) >> uint(sbShift)
	sbSize := sbShift + 2
	maxTileWidthSb := maxTileWidth >> uint(sbSize)
	maxTileAreaSb := maxTileArea >> uint(2*sbSize)
	minLog2TileCols := tileLog2(maxTileWidthSb, sbCols)
	maxLog2TileCols := tileLog2(1, min(sbCols, maxTileCols))
	maxLog2TileRows := tileLog2(1, min(sbRows, maxTileRows))
	minLog2Tiles := max(minLog2TileCols, tileLog2(maxTileAreaSb, sbRows*sbCols))

	if r.flag() { // uniform_tile_spacing_flag
		t.TileColsLog2 = minLog2TileCols
		for t.TileColsLog2 < maxLog2TileCols && r.flag() {
			t.TileColsLog2++
		}
		tileWidthSb := (sbCols + (1 << uint(t.TileColsLog2)) - 1) >> uint(t.TileColsLog2)
		i := 0
		for start := 0; start < sbCols; start += tileWidthSb {
			if i >= maxTileCols {
				p.err = errTooManyTiles
				return
			}
			t.ColStartSb[i] = start
			i++
		}
		t.ColStartSb[i] = sbCols
		t.TileCols = i

		t.TileRowsLog2 = max(minLog2Tiles-t.TileColsLog2, 0)
		for t.TileRowsLog2 < maxLog2TileRows && r.flag() {
			t.TileRowsLog2++
		}
		tileHeightSb := (sbRows + (1 << uint(t.TileRowsLog2)) - 1) >> uint(t.TileRowsLog2)
		i = 0
		for start := 0; start < sbRows; start += tileHeightSb {
			if i >= maxTileRows {
				p.err = errTooManyTiles
				return
			}
			t.RowStartSb[i] = start
			i++
		}
		t.RowStartSb[i] = sbRows
		t.TileRows = i
	} else {
		widestTileSb := 0
		start, i := 0, 0
		for ; start < sbCols; i++ {
			if i >= maxTileCols {
				p.err = errTooManyTiles
				return
			}
			t.ColStartSb[i] = start
			size := r.ns(min(sbCols-start, maxTileWidthSb)) + 1
			widestTileSb = max(size, widestTileSb)
			start += size
		}
		t.ColStartSb[i] = start
		t.TileCols = i
		t.TileColsLog2 = tileLog2(1, t.TileCols)

		if minLog2Tiles > 0 {
			maxTileAreaSb = (sbRows * sbCols) >> uint(minLog2Tiles+1)
		} else {
			maxTileAreaSb = sbRows * sbCols
		}
		maxTileHeightSb := max(maxTileAreaSb/widestTileSb, 1)

		start, i = 0, 0
		for ; start < sbRows; i++ {
			if i >= maxTileRows {
				p.err = errTooManyTiles
				return
			}
			t.RowStartSb[i] = start
			start += r.ns(min(sbRows-start, maxTileHeightSb)) + 1
		}
		t.RowStartSb[i] = start
		t.TileRows = i
		t.TileRowsLog2 = tileLog2(1, t.TileRows)
	}

	if t.TileColsLog2 > 0 || t.TileRowsLog2 > 0 {
		t.ContextUpdateTileID = r.f(t.TileRowsLog2 + t.TileColsLog2)
		t.TileSizeBytes = r.f(2) + 1
	}
}

func (p *headerParser) readDeltaQ() int {
	if p.r.flag() { // delta_coded
		return p.r.su(7)
	}
	return 0
}

func (p *headerParser) quantizationParams() {
	r, q, c := p.r, &p.h.Quant, &p.seq.Color
	q.BaseQIdx = r.f(8)
	q.DeltaQYDc = p.readDeltaQ()
	if c.NumPlanes > 1 {
		diffUVDelta := false
		if c.SeparateUVDeltaQ {
			diffUVDelta = r.flag()
		}
		q.DeltaQUDc = p.readDeltaQ()
		q.DeltaQUAc = p.readDeltaQ()
		if diffUVDelta {
			q.DeltaQVDc = p.readDeltaQ()
			q.DeltaQVAc = p.readDeltaQ()
		} else {
			q.DeltaQVDc = q.DeltaQUDc
			q.DeltaQVAc = q.DeltaQUAc
		}
	}

	q.UsingQMatrix = r.flag()
	if !q.UsingQMatrix {
		q.QMY, q.QMU, q.QMV = 0xf, 0xf, 0xf
		return
	}
	q.QMY = r.f(4)
	q.QMU = r.f(4)
	if c.SeparateUVDeltaQ {
		q.QMV = r.f(4)
	} else {
		q.QMV = q.QMU
	}
}

func (p *headerParser) segmentationParams() {
	r, s := p.r, &p.h.Segmentation
	s.Enabled = r.flag()
	if !s.Enabled {
		*s = SegmentationParams{}
		return
	}

	if p.h.PrimaryRefFrame == primaryRefNone {
		s.UpdateMap = true
		s.UpdateData = true
	} else {
		s.UpdateMap = r.flag()
		if s.UpdateMap {
			s.TemporalUpdate = r.flag()
		}
		s.UpdateData = r.flag()
	}

	if !s.UpdateData {
		ref := p.primaryRef().Segmentation
		s.FeatureEnabled = ref.FeatureEnabled
		s.FeatureData = ref.FeatureData
		s.FeatureMask = ref.FeatureMask
		return
	}

	for i := 0; i < maxSegments; i++ {
		for j := 0; j < segLvlMax; j++ {
			s.FeatureEnabled[i][j] = r.flag()
			s.FeatureData[i][j] = 0
			if !s.FeatureEnabled[i][j] {
				continue
			}
			s.FeatureMask[i] |= 1 << uint(j)
			bitsToRead, limit := segmentationFeatureBits[j], segmentationFeatureMax[j]
			if segmentationFeatureSigned[j] {
				s.FeatureData[i][j] = clamp(r.su(1+bitsToRead), -limit, limit)
			} else {
				s.FeatureData[i][j] = clamp(r.f(bitsToRead), 0, limit)
			}
		}
	}
}

func (p *headerParser) deltaQParams() {
	d := &p.h.DeltaQ
	if p.h.Quant.BaseQIdx > 0 {
		d.Present = p.r.flag()
	}
	if d.Present {
		d.Res = p.r.f(2)
	}
}

func (p *headerParser) deltaLFParams() {
	d := &p.h.DeltaLF
	if !p.h.DeltaQ.Present {
		return
	}
	if !p.h.AllowIntrabc {
		d.Present = p.r.flag()
	}
	if d.Present {
		d.Res = p.r.f(2)
		d.Multi = p.r.flag()
	}
}

// qIndex returns the quantizer index of segment seg, i.e. get_qindex.
func (p *headerParser) qIndex(ignoreDeltaQ bool, seg int) int {
	h := p.h
	s := &h.Segmentation
	if s.Enabled && s.FeatureEnabled[seg][segLvlAltQ] {
		data := s.FeatureData[seg][segLvlAltQ]
		q := h.Quant.BaseQIdx + data
		if !ignoreDeltaQ && h.DeltaQ.Present {
			q = data
		}
		return clamp(q, 0, 255)
	}
	if !ignoreDeltaQ && h.DeltaQ.Present {
		return 0
	}
	return h.Quant.BaseQIdx
}

func (p *headerParser) loopFilterParams() {
	r, h, lf := p.r, p.h, &p.h.LoopFilter

	if h.CodedLossless || h.AllowIntrabc {
		lf.Level[0], lf.Level[1] = 0, 0
		lf.RefDeltas = defaultRefDeltas
		lf.ModeDeltas = [2]int{}
		return
	}

	if ref := p.primaryRef(); ref != nil {
		lf.RefDeltas = ref.LoopFilter.RefDeltas
		lf.ModeDeltas = ref.LoopFilter.ModeDeltas
	} else {
		lf.RefDeltas = defaultRefDeltas
		lf.ModeDeltas = [2]int{}
	}

	lf.Level[0] = r.f(6)
	lf.Level[1] = r.f(6)
	if p.seq.Color.NumPlanes > 1 && (lf.Level[0] != 0 || lf.Level[1] != 0) {
		lf.Level[2] = r.f(6)
		lf.Level[3] = r.f(6)
	}
	lf.Sharpness = r.f(3)
	lf.DeltaEnabled = r.flag()
	if !lf.DeltaEnabled {
		return
	}
	lf.DeltaUpdate = r.flag()
	if !lf.DeltaUpdate {
		return
	}
	for i := range lf.RefDeltas {
		if r.flag() { // update_ref_delta
			lf.RefDeltas[i] = r.su(7)
		}
	}
	for i := range lf.ModeDeltas {
		if r.flag() { // update_mode_delta
			lf.ModeDeltas[i] = r.su(7)
		}
	}
}

func (p *headerParser) cdefParams() {
	r, h, c := p.r, p.h, &p.h.CDEF
	if h.CodedLossless || h.AllowIntrabc || !p.seq.EnableCDEF {
		c.Bits = 0
		c.YStrengths[0] = 0
		c.UVStrengths[0] = 0
		return
	}
	c.DampingMinus3 = r.f(2)
	c.Bits = r.f(2)
	for i := 0; i < 1<<uint(c.Bits); i++ {
		c.YStrengths[i] = r.f(6)
		if p.seq.Color.NumPlanes > 1 {
			c.UVStrengths[i] = r.f(6)
		}
	}
}

func (p *headerParser) lrParams() {
	r, h, lr, seq := p.r, p.h, &p.h.Restoration, p.seq
	if h.AllLossless || h.AllowIntrabc || !seq.EnableRestoration {
		lr.Type = [3]int{RestoreNone, RestoreNone, RestoreNone}
		return
	}

	usesLR, usesChromaLR := false, false
	for i := 0; i < seq.Color.NumPlanes; i++ {
		lr.Type[i] = remapLRType[r.f(2)]
		if lr.Type[i] != RestoreNone {
			usesLR = true
			if i > 0 {
				usesChromaLR = true
			}
		}
	}

	if !usesLR {
		lr.Size = [3]int{1 << 8, 1 << 8, 1 << 8}
		return
	}

	var shift int
	if seq.Use128x128Superblock {
		shift = r.f(1) + 1
	} else {
		shift = r.f(1)
		if shift != 0 {
			shift += r.f(1) // lr_unit_extra_shift
		}
	}
	lr.Size[0] = restorationTileSize >> uint(2-shift)

	uvShift := 0
	if seq.Color.SubsamplingX == 1 && seq.Color.SubsamplingY == 1 && usesChromaLR {
		uvShift = r.f(1)
	}
	lr.Size[1] = lr.Size[0] >> uint(uvShift)
	lr.Size[2] = lr.Size[0] >> uint(uvShift)
}

func (p *headerParser) readTxMode() {
	switch {
	case p.h.CodedLossless:
		p.h.TxMode = TxModeOnly4x4
	case p.r.flag(): // tx_mode_select
		p.h.TxMode = TxModeSelect
	default:
		p.h.TxMode = TxModeLargest
	}
}

// defaultWarpParam returns the identity warp model value of parameter i.
func defaultWarpParam(i int) int {
	if i%3 == 2 {
		return 1 << warpedModelPrecBits
	}
	return 0
}

func (p *headerParser) globalMotionParams() {
	h, g := p.h, &p.h.GlobalMotion
	for ref := range g.Type {
		g.Type[ref] = Identity
		for i := range g.Params[ref] {
			g.Params[ref][i] = defaultWarpParam(i)
		}
	}
	if h.FrameIsIntra {
		return
	}

	var prev *GlobalMotionParams
	if ref := p.primaryRef(); ref != nil {
		prev = &ref.GlobalMotion
	}

	for ref := lastFrame; ref <= altrefFrame; ref++ {
		typ := Identity
		if p.r.flag() { // is_global
			switch {
			case p.r.flag(): // is_rot_zoom
				typ = RotZoom
			case p.r.flag(): // is_translation
				typ = Translation
			default:
				typ = Affine
			}
		}
		g.Type[ref] = typ

		if typ >= RotZoom {
			p.readGlobalParam(prev, typ, ref, 2)
			p.readGlobalParam(prev, typ, ref, 3)
			if typ == Affine {
				p.readGlobalParam(prev, typ, ref, 4)
				p.readGlobalParam(prev, typ, ref, 5)
			} else {
				g.Params[ref][4] = -g.Params[ref][3]
				g.Params[ref][5] = g.Params[ref][2]
			}
		}
		if typ >= Translation {
			p.readGlobalParam(prev, typ, ref, 0)
			p.readGlobalParam(prev, typ, ref, 1)
		}
	}
}

// readGlobalParam reads warp parameter idx of reference ref, coded relative
// to the same parameter of prev, or the identity model if prev is nil.
func (p *headerParser) readGlobalParam(prev *GlobalMotionParams, typ, ref, idx int) {
	absBits, precBits := gmAbsAlphaBits, gmAlphaPrecBits
	if idx < 2 {
		if typ == Translation {
			hp := 0
			if !p.h.AllowHighPrecisionMV {
				hp = 1
			}
			absBits = gmAbsTransOnlyBits - hp
			precBits = gmTransOnlyPrecBits - hp
		} else {
			absBits = gmAbsTransBits
			precBits = gmTransPrecBits
		}
	}

	precDiff := warpedModelPrecBits - precBits
	round, sub := 0, 0
	if idx%3 == 2 {
		round = 1 << warpedModelPrecBits
		sub = 1 << uint(precBits)
	}
	mx := 1 << uint(absBits)

	prevParam := defaultWarpParam(idx)
	if prev != nil {
		prevParam = prev.Params[ref][idx]
	}
	r := (prevParam >> uint(precDiff)) - sub
	p.h.GlobalMotion.Params[ref][idx] = (p.r.decodeSignedSubexpWithRef(-mx, mx+1, r) << uint(precDiff)) + round
}

func (p *headerParser) filmGrainParams() {
	r, h, f, c := p.r, p.h, &p.h.FilmGrain, &p.seq.Color
	if !p.seq.FilmGrainParamsPresent || (!h.ShowFrame && !h.ShowableFrame) {
		*f = FilmGrainParams{}
		return
	}

	f.ApplyGrain = r.flag()
	if !f.ApplyGrain {
		*f = FilmGrainParams{}
		return
	}

	f.GrainSeed = r.f(16)
	f.UpdateGrain = true
	if h.FrameType == InterFrame {
		f.UpdateGrain = r.flag()
	}
	if !f.UpdateGrain {
		idx := r.f(3) // film_grain_params_ref_idx
		seed := f.GrainSeed
		*f = p.refs[idx].FilmGrain
		f.GrainSeed = seed
		return
	}

	f.NumYPoints = r.f(4)
	if f.NumYPoints > maxNumYPoints {
		p.err = errors.Errorf("num_y_points %d out of range", f.NumYPoints)
		return
	}
	for i := 0; i < f.NumYPoints; i++ {
		f.PointYValue[i] = r.f(8)
		f.PointYScaling[i] = r.f(8)
	}

	if !c.MonoChrome {
		f.ChromaScalingFromLuma = r.flag()
	}
	if c.MonoChrome || f.ChromaScalingFromLuma || (c.SubsamplingX == 1 && c.SubsamplingY == 1 && f.NumYPoints == 0) {
		f.NumCbPoints, f.NumCrPoints = 0, 0
	} else {
		f.NumCbPoints = r.f(4)
		if f.NumCbPoints > maxNumCbrPoints {
			p.err = errors.Errorf("num_cb_points %d out of range", f.NumCbPoints)
			return
		}
		for i := 0; i < f.NumCbPoints; i++ {
			f.PointCbValue[i] = r.f(8)
			f.PointCbScaling[i] = r.f(8)
		}
		f.NumCrPoints = r.f(4)
		if f.NumCrPoints > maxNumCbrPoints {
			p.err = errors.Errorf("num_cr_points %d out of range", f.NumCrPoints)
			return
		}
		for i := 0; i < f.NumCrPoints; i++ {
			f.PointCrValue[i] = r.f(8)
			f.PointCrScaling[i] = r.f(8)
		}
	}

	f.GrainScalingMinus8 = r.f(2)
	f.ARCoeffLag = r.f(2)
	numPosLuma := 2 * f.ARCoeffLag * (f.ARCoeffLag + 1)
	numPosChroma := numPosLuma
	if f.NumYPoints > 0 {
		numPosChroma = numPosLuma + 1
		for i := 0; i < numPosLuma; i++ {
			f.ARCoeffsY[i] = r.f(8) - 128
		}
	}
	if f.ChromaScalingFromLuma || f.NumCbPoints > 0 {
		for i := 0; i < numPosChroma; i++ {
			f.ARCoeffsCb[i] = r.f(8) - 128
		}
	}
	if f.ChromaScalingFromLuma || f.NumCrPoints > 0 {
		for i := 0; i < numPosChroma; i++ {
			f.ARCoeffsCr[i] = r.f(8) - 128
		}
	}

	f.ARCoeffShiftMinus6 = r.f(2)
	f.GrainScaleShift = r.f(2)
	if f.NumCbPoints > 0 {
		f.CbMult = r.f(8)
		f.CbLumaMult = r.f(8)
		f.CbOffset = r.f(9)
	}
	if f.NumCrPoints > 0 {
		f.CrMult = r.f(8)
		f.CrLumaMult = r.f(8)
		f.CrOffset = r.f(9)
	}
	f.OverlapFlag = r.flag()
	f.ClipToRestrictedRange = r.flag()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
