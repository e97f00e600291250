/*
DESCRIPTION
  decode.go provides the H.265 Annex B byte stream parser. It scans NAL units,
  maintains the parameter set tables, detects picture boundaries from slice
  segment headers, submits slices to the hardware codec, resolves reference
  picture sets against the decoded picture buffer and reorders finished
  pictures for output.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package h265 provides a parser for H.265 (ITU-T H.265) Annex B byte streams
// that drives a hardware decoder.
package h265

import (
	"github.com/ausocean/hwdec/codec/bits"
	"github.com/ausocean/hwdec/codec/dpb"
	"github.com/ausocean/hwdec/hw"
	"github.com/ausocean/hwdec/stream"
)

// Used to indicate package in logging.
const pkg = "h265: "

// NAL unit types, see table 7-1.
const (
	nalTypeTrailN   = 0
	nalTypeTrailR   = 1
	nalTypeTSAN     = 2
	nalTypeTSAR     = 3
	nalTypeSTSAN    = 4
	nalTypeSTSAR    = 5
	nalTypeRADLN    = 6
	nalTypeRADLR    = 7
	nalTypeRASLN    = 8
	nalTypeRASLR    = 9
	nalTypeBLAWLP   = 16
	nalTypeBLAWRADL = 17
	nalTypeBLANLP   = 18
	nalTypeIDRWRADL = 19
	nalTypeIDRNLP   = 20
	nalTypeCRA      = 21
	nalTypeRsvIRAP  = 23
	nalTypeVPS      = 32
	nalTypeSPS      = 33
	nalTypePPS      = 34
	nalTypeAUD      = 35
)

const (
	startCodePrefix = 0x000001

	// minSliceHeaderBits is the least amount of slice NAL unit read when
	// parsing a slice segment header.
	minSliceHeaderBits = 512

	// minNALBits is the amount of stream, from a start code, held before a
	// NAL unit is parsed ahead of the end of the stream.
	minNALBits = 40 + minSliceHeaderBits

	// DefaultDPBSize is the number of pictures held for reference and
	// reordering before output is forced.
	DefaultDPBSize = 32
)

func isIDR(t int) bool { return t == nalTypeIDRWRADL || t == nalTypeIDRNLP }

// isBLA returns true for broken link access pictures.
func isBLA(t int) bool { return t >= nalTypeBLAWLP && t <= nalTypeBLANLP }

// isRAP returns true for intra random access point pictures.
func isRAP(t int) bool { return t >= nalTypeBLAWLP && t <= nalTypeRsvIRAP }

func isSlice(t int) bool { return t <= nalTypeRASLR || isRAP(t) }

// Decoder parses an H.265 byte stream.
type Decoder struct {
	s   *stream.Session
	sps [maxSPS]*SPS
	pps [maxPPS]*PPS

	pic   Picture  // Parameters as parsed from the latest slice header.
	cur   *Picture // Parameters of the picture being decoded, given to the codec.
	ppsID int

	prevPOC int
	rps     RefPicSet
	lt      []longTermRef

	dpb             *dpb.List
	timestamp       int64
	firstBufInFrame bool
}

// NewDecoder returns a new Decoder driving the codec of session s, holding up
// to dpbSize finished pictures for reference and reordering.
func NewDecoder(s *stream.Session, dpbSize int) *Decoder {
	if dpbSize <= 0 {
		dpbSize = DefaultDPBSize
	}
	return &Decoder{
		s:               s,
		ppsID:           -1,
		dpb:             dpb.New(dpbSize),
		timestamp:       stream.NoTimestamp,
		firstBufInFrame: true,
	}
}

// SPS returns the sequence parameter set with the given id, or nil.
func (d *Decoder) SPS(id int) *SPS {
	if id < 0 || id >= maxSPS {
		return nil
	}
	return d.sps[id]
}

// PPS returns the picture parameter set with the given id, or nil.
func (d *Decoder) PPS(id int) *PPS {
	if id < 0 || id >= maxPPS {
		return nil
	}
	return d.pps[id]
}

// Decode parses the next NAL unit from r, leaving at least minBitsLeft bits
// unread unless the unit extends into them. If minBitsLeft is not zero and r
// holds too little of the unit to parse, r is left at its start code.
func (d *Decoder) Decode(r *bits.Reader, minBitsLeft int) {
	if !r.SearchByte(r.BitsLeft()-minBitsLeft, 0x00) {
		return
	}
	if r.PeekBits(24) != startCodePrefix {
		r.EatBits(8)
		return
	}
	if minBitsLeft > 0 && r.BitsLeft() < minNALBits {
		return
	}

	if d.s.SlicePending() {
		d.s.EndSlice(r)
	}

	start := r.Pos()
	r.EatBits(24)
	r.EatBits(1) // forbidden_zero_bit
	nalType := int(r.GetBits(6))
	r.EatBits(6) // nuh_layer_id
	tid := int(r.GetBits(3)) - 1

	if !isSlice(nalType) {
		d.EndFrame()
	}

	switch {
	case nalType == nalTypeSPS:
		sps, err := NewSPS(bits.ReadRBSP(r, -1))
		if err != nil {
			d.s.Log.Warning(pkg+"dropping SPS", "error", err.Error())
			break
		}
		d.sps[sps.ID] = sps
		d.s.Log.Debug(pkg+"SPS", "id", sps.ID, "width", sps.PicWidthInLumaSamples, "height", sps.PicHeightInLumaSamples)

	case nalType == nalTypePPS:
		pps, err := NewPPS(bits.ReadRBSP(r, -1), &d.sps)
		if err != nil {
			d.s.Log.Warning(pkg+"dropping PPS", "error", err.Error())
			break
		}
		d.pps[pps.ID] = pps
		d.s.Log.Debug(pkg+"PPS", "id", pps.ID, "sps", pps.SPSID)

	case isSlice(nalType):
		limit := r.BitsLeft() - minBitsLeft
		if limit < minSliceHeaderBits {
			limit = minSliceHeaderBits
		}
		if !d.sliceHeader(bits.ReadRBSP(r, limit), nalType, tid) {
			break
		}
		d.beginFrame()
		if d.s.FrameStarted {
			d.pic.SliceCount++
			*d.cur = d.pic
			d.s.StartSlice(start)
		}
	}

	r.EatBits(r.ValidBits() % 8)
}

func (d *Decoder) beginFrame() {
	if d.s.FrameStarted {
		return
	}

	sps := d.pic.SPS
	if d.s.Codec == nil {
		d.s.Width, d.s.Height = sps.PicWidthInLumaSamples, sps.PicHeightInLumaSamples
	}
	err := d.s.CreateCodec(hw.CodecTemplate{
		Profile:             hw.ProfileHEVCMain,
		Level:               sps.LevelIDC,
		ChromaFormat:        hw.Chroma420,
		Width:               d.s.Width,
		Height:              d.s.Height,
		MaxReferences:       maxRefPics,
		ExpectChunkedDecode: true,
	})
	if err != nil {
		return
	}
	if d.s.NeedTarget() != nil {
		return
	}

	if d.firstBufInFrame && d.s.In != nil {
		d.timestamp = d.s.In.Timestamp
	}
	d.firstBufInFrame = false

	d.pic.SliceCount = 0
	cur := d.pic
	d.cur = &cur
	d.s.BeginFrame(d.cur)
}

// EndFrame completes the picture being decoded, if any, after resolving its
// reference picture set, and adds it to the decoded picture buffer. When the
// buffer is over capacity the picture with the lowest POC is output.
func (d *Decoder) EndFrame() {
	if !d.s.FrameStarted {
		return
	}
	d.resolveRefs(d.cur)
	d.s.EndFrame()

	d.firstBufInFrame = true
	poc := d.cur.CurrPicOrderCntVal
	d.dpb.Add(dpb.Entry{Buffer: d.s.Target, Timestamp: d.timestamp, POC: poc})
	d.s.Log.Debug(pkg+"picture decoded", "poc", poc, "slices", d.cur.SliceCount)
	d.s.Target = nil

	if !d.dpb.Overfull() || d.s.In == nil {
		return
	}

	in := d.s.In
	prev := in.Picture
	in.Picture, in.Timestamp = d.Flush()
	d.s.Target = prev
	d.s.FrameFinished = in.Picture != nil
}

// resolveRefs fills the reference picture fields of p from the current
// reference picture sets and the decoded picture buffer.
func (d *Decoder) resolveRefs(p *Picture) {
	p.Ref = [maxRefPics]hw.Buffer{}
	p.PicOrderCntVal = [maxRefPics]int{}
	p.IsLongTerm = [maxRefPics]bool{}
	p.RefPicSetStCurrBefore = [maxCurrRefs]int{}
	p.RefPicSetStCurrAfter = [maxCurrRefs]int{}
	p.RefPicSetLtCurr = [maxCurrRefs]int{}
	p.NumPocStCurrBefore, p.NumPocStCurrAfter, p.NumPocLtCurr = 0, 0, 0
	p.NumDeltaPocsOfRefRpsIdx = d.rps.NumDeltaPocsOfRef

	for i := 0; i < d.rps.NumPics; i++ {
		poc := p.CurrPicOrderCntVal + d.rps.DeltaPOC[i]
		p.PicOrderCntVal[i] = poc
		p.Ref[i] = d.dpb.Find(poc)
		if !d.rps.Used[i] {
			continue
		}
		switch {
		case i < d.rps.NumNegativePics && p.NumPocStCurrBefore < maxCurrRefs:
			p.RefPicSetStCurrBefore[p.NumPocStCurrBefore] = i
			p.NumPocStCurrBefore++
		case i >= d.rps.NumNegativePics && p.NumPocStCurrAfter < maxCurrRefs:
			p.RefPicSetStCurrAfter[p.NumPocStCurrAfter] = i
			p.NumPocStCurrAfter++
		}
	}

	for k, lt := range d.lt {
		i := d.rps.NumPics + k
		if i >= maxRefPics {
			break
		}
		p.PicOrderCntVal[i] = lt.poc
		p.IsLongTerm[i] = true
		for _, e := range d.dpb.Entries() {
			if lt.matches(e.POC) {
				p.Ref[i] = e.Buffer
				break
			}
		}
		if lt.used && p.NumPocLtCurr < maxCurrRefs {
			p.RefPicSetLtCurr[p.NumPocLtCurr] = i
			p.NumPocLtCurr++
		}
	}
}

// Flush removes and returns the picture with the lowest POC from the decoded
// picture buffer and its timestamp. It returns nil if the buffer is empty.
func (d *Decoder) Flush() (hw.Buffer, int64) {
	e, ok := d.dpb.Flush()
	if !ok {
		return nil, stream.NoTimestamp
	}
	return e.Buffer, e.Timestamp
}

// Close destroys the pictures held in the decoded picture buffer.
func (d *Decoder) Close() { d.dpb.Clear() }
