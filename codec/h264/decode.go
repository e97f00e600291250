/*
DESCRIPTION
  decode.go provides the H.264 Annex B byte stream parser. It scans NAL units,
  maintains the parameter set tables, detects picture boundaries from slice
  headers, submits slices to the hardware codec and reorders finished
  pictures for output through a decoded picture buffer.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package h264 provides a parser for H.264 (ITU-T H.264) Annex B byte streams
// that drives a hardware decoder.
package h264

import (
	"github.com/ausocean/hwdec/codec/bits"
	"github.com/ausocean/hwdec/codec/dpb"
	"github.com/ausocean/hwdec/hw"
	"github.com/ausocean/hwdec/stream"
)

// Used to indicate package in logging.
const pkg = "h264: "

// NAL unit types, see table 7-1.
const (
	nalTypeNonIDR = 1
	nalTypeIDR    = 5
	nalTypeSEI    = 6
	nalTypeSPS    = 7
	nalTypePPS    = 8
	nalTypeAUD    = 9
)

const (
	startCodePrefix = 0x000001

	// minSliceHeaderBits is the least amount of slice NAL unit read when
	// parsing a slice header.
	minSliceHeaderBits = 512

	// minNALBits is the amount of stream, from a start code, held before a
	// NAL unit is parsed ahead of the end of the stream.
	minNALBits = 32 + minSliceHeaderBits

	// DefaultDPBSize is the number of pictures held for reordering before
	// output is forced.
	DefaultDPBSize = 5
)

// Decoder parses an H.264 byte stream.
type Decoder struct {
	s   *stream.Session
	sps [maxSPS]*SPS
	pps [maxPPS]*PPS

	pic   Picture  // Parameters as parsed from the latest slice header.
	cur   *Picture // Parameters of the frame being decoded, given to the codec.
	ppsID int
	st    pocState

	dpb             *dpb.List
	timestamp       int64
	firstBufInFrame bool
}

// NewDecoder returns a new Decoder driving the codec of session s, holding up
// to dpbSize finished pictures for reordering.
func NewDecoder(s *stream.Session, dpbSize int) *Decoder {
	if dpbSize <= 0 {
		dpbSize = DefaultDPBSize
	}
	d := &Decoder{
		s:               s,
		ppsID:           -1,
		dpb:             dpb.New(dpbSize),
		timestamp:       stream.NoTimestamp,
		firstBufInFrame: true,
	}
	d.pic.FieldOrderCnt = [2]int{unsetPOC, unsetPOC}
	return d
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
	nalRefIDC := int(r.GetBits(2))
	if nalRefIDC != d.st.nalRefIDC && nalRefIDC*d.st.nalRefIDC == 0 {
		d.EndFrame()
	}
	d.st.nalRefIDC = nalRefIDC

	nalType := int(r.GetBits(5))
	if nalType != nalTypeNonIDR && nalType != nalTypeIDR {
		d.EndFrame()
	}

	switch nalType {
	case nalTypeSPS:
		sps, err := NewSPS(bits.ReadRBSP(r, -1))
		if err != nil {
			d.s.Log.Warning(pkg+"dropping SPS", "error", err.Error())
			break
		}
		d.sps[sps.ID] = sps
		d.s.Log.Debug(pkg+"SPS", "id", sps.ID, "width", sps.Width(), "height", sps.Height())

	case nalTypePPS:
		pps, err := NewPPS(bits.ReadRBSP(r, -1), &d.sps)
		if err != nil {
			d.s.Log.Warning(pkg+"dropping PPS", "error", err.Error())
			break
		}
		d.pps[pps.ID] = pps
		d.s.Log.Debug(pkg+"PPS", "id", pps.ID, "sps", pps.SPSID)

	case nalTypeNonIDR, nalTypeIDR:
		limit := r.BitsLeft() - minBitsLeft
		if limit < minSliceHeaderBits {
			limit = minSliceHeaderBits
		}
		if !d.sliceHeader(bits.ReadRBSP(r, limit), nalRefIDC, nalType) {
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
		d.s.Width, d.s.Height = sps.Width(), sps.Height()
	}
	err := d.s.CreateCodec(hw.CodecTemplate{
		Profile:             sps.HWProfile(),
		Level:               sps.LevelIDC,
		ChromaFormat:        hw.Chroma420,
		Width:               d.s.Width,
		Height:              d.s.Height,
		MaxReferences:       sps.MaxNumRefFrames,
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

	d.pic.NumRefFrames = sps.MaxNumRefFrames
	d.pic.SliceCount = 0
	cur := d.pic
	d.cur = &cur
	d.s.BeginFrame(d.cur)
}

// EndFrame completes the frame being decoded, if any, and adds it to the
// decoded picture buffer once both fields of a field pair are decoded. When
// the buffer is over capacity the picture with the lowest POC is output.
func (d *Decoder) EndFrame() {
	if !d.s.FrameStarted {
		return
	}
	d.s.EndFrame()

	d.pic.FrameNumList[0] = d.pic.FrameNum
	d.pic.FieldOrderCntList[0] = [2]int{d.pic.FrameNum, d.pic.FrameNum}

	topFieldFirst := d.pic.FieldOrderCnt[0] < d.pic.FieldOrderCnt[1]
	if d.pic.FieldPic && d.pic.BottomField != topFieldFirst {
		return
	}

	d.firstBufInFrame = true
	poc := d.pic.FieldOrderCnt[0]
	if d.pic.FieldOrderCnt[1] < poc {
		poc = d.pic.FieldOrderCnt[1]
	}
	d.dpb.Add(dpb.Entry{Buffer: d.s.Target, Timestamp: d.timestamp, POC: poc})
	d.s.Log.Debug(pkg+"picture decoded", "poc", poc, "frame_num", d.pic.FrameNum)
	d.s.Target = nil
	d.pic.FieldOrderCnt = [2]int{unsetPOC, unsetPOC}

	if !d.dpb.Overfull() || d.s.In == nil {
		return
	}

	in := d.s.In
	prev := in.Picture
	in.Picture, in.Timestamp = d.Flush()
	d.s.Target = prev
	d.s.FrameFinished = in.Picture != nil
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
