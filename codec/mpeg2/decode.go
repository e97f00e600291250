/*
DESCRIPTION
  decode.go provides the MPEG-2 video bitstream parser. It scans for start
  codes, parses sequence, picture and extension headers, submits slice data to
  the hardware codec and maintains the forward/backward reference chain that
  determines output order.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package mpeg2 provides a parser for MPEG-2 (ISO/IEC 13818-2) video
// elementary streams that drives a hardware decoder.
package mpeg2

import (
	"github.com/ausocean/hwdec/codec/bits"
	"github.com/ausocean/hwdec/hw"
	"github.com/ausocean/hwdec/stream"
)

// Used to indicate package in logging.
const pkg = "mpeg2: "

// Start code values, i.e. the byte following 0x000001.
const (
	codePicture      = 0x00
	codeSliceLast    = 0xaf
	codeSequence     = 0xb3
	codeExtension    = 0xb5
	startCodePrefix  = 0x000001
	maxReferences    = 2
	invalidFCode     = 14
	extQuantMatrix   = 0x3
	extPictureCoding = 0x8

	// minHeaderBits is the amount of stream, from a start code, held before
	// a header is parsed ahead of the end of the stream. It covers the
	// largest header, a quant matrix extension carrying four matrices.
	minHeaderBits = 32 + 4 + 4*(1+64*8)
)

// SequenceHeader holds the fields of a sequence header.
type SequenceHeader struct {
	Width                 int
	Height                int
	AspectRatio           int
	FrameRateCode         int
	BitRate               int
	VBVBufferSize         int
	ConstrainedParameters bool
}

// Decoder parses an MPEG-2 video elementary stream.
type Decoder struct {
	s   *stream.Session
	seq SequenceHeader
	pic Picture
}

// NewDecoder returns a new Decoder driving the codec of session s.
func NewDecoder(s *stream.Session) *Decoder {
	d := &Decoder{s: s}
	d.pic.IntraMatrix = defaultIntraMatrix
	d.pic.NonIntraMatrix = defaultNonIntraMatrix()
	return d
}

// Sequence returns the last parsed sequence header.
func (d *Decoder) Sequence() SequenceHeader { return d.seq }

// Decode parses the next start code and its header from r, leaving at least
// minBitsLeft bits unread unless a header extends into them. If minBitsLeft
// is not zero and r holds too little to parse the header, r is left at its
// start code.
func (d *Decoder) Decode(r *bits.Reader, minBitsLeft int) {
	if !r.SearchByte(r.BitsLeft()-minBitsLeft, 0x00) {
		return
	}
	if r.PeekBits(24) != startCodePrefix {
		r.EatBits(8)
		return
	}
	if minBitsLeft > 0 && r.BitsLeft() < minHeaderBits {
		return
	}

	if d.s.SlicePending() {
		d.s.EndSlice(r)
	}

	start := r.Pos()
	r.EatBits(24)
	code := r.GetBits(8)

	if d.s.FrameStarted && (code == codePicture || code > codeSliceLast) {
		d.EndFrame()
	}

	switch {
	case code == codeSequence:
		d.readSequenceHeader(r)
	case code == codePicture:
		d.readPictureHeader(r)
	case code == codeExtension:
		d.readExtension(r)
	case code <= codeSliceLast:
		if !d.s.FrameStarted {
			d.beginFrame()
		}
		if d.s.FrameStarted {
			d.pic.NumSlices++
			d.s.StartSlice(start)
		}
	}

	r.EatBits(r.ValidBits() % 8)
}

func (d *Decoder) readSequenceHeader(r *bits.Reader) {
	d.seq = SequenceHeader{
		Width:         int(r.GetBits(12)),
		Height:        int(r.GetBits(12)),
		AspectRatio:   int(r.GetBits(4)),
		FrameRateCode: int(r.GetBits(4)),
		BitRate:       int(r.GetBits(18)),
	}
	r.EatBits(1) // marker_bit
	d.seq.VBVBufferSize = int(r.GetBits(10))
	d.seq.ConstrainedParameters = r.Flag()

	if r.Flag() {
		readMatrix(r, &d.pic.IntraMatrix)
	} else {
		d.pic.IntraMatrix = defaultIntraMatrix
	}
	if r.Flag() {
		readMatrix(r, &d.pic.NonIntraMatrix)
	} else {
		d.pic.NonIntraMatrix = defaultNonIntraMatrix()
	}

	if r.Err() != nil {
		d.s.Log.Warning(pkg+"truncated sequence header", "error", r.Err().Error())
		return
	}
	if d.s.Codec == nil && d.seq.Width != 0 && d.seq.Height != 0 {
		d.s.Width, d.s.Height = d.seq.Width, d.seq.Height
	}
	d.s.Log.Debug(pkg+"sequence header", "width", d.seq.Width, "height", d.seq.Height)
}

func readMatrix(r *bits.Reader, m *[64]uint8) {
	for i := 0; i < 64; i++ {
		m[zigzag[i]] = uint8(r.GetBits(8))
	}
}

func (d *Decoder) readPictureHeader(r *bits.Reader) {
	r.EatBits(10) // temporal_reference
	d.pic.CodingType = int(r.GetBits(3))
	r.EatBits(16) // vbv_delay

	if d.pic.CodingType == CodingTypeP || d.pic.CodingType == CodingTypeB {
		d.pic.FullPelForwardVector = r.Flag()
		d.pic.FCode[0][0] = int(r.GetBits(3)) - 1
		d.pic.FCode[0][1] = d.pic.FCode[0][0]
	} else {
		d.pic.FullPelForwardVector = false
		d.pic.FCode[0][0], d.pic.FCode[0][1] = invalidFCode, invalidFCode
	}

	if d.pic.CodingType == CodingTypeB {
		d.pic.FullPelBackwardVector = r.Flag()
		d.pic.FCode[1][0] = int(r.GetBits(3)) - 1
		d.pic.FCode[1][1] = d.pic.FCode[1][0]
	} else {
		d.pic.FullPelBackwardVector = false
		d.pic.FCode[1][0], d.pic.FCode[1][1] = invalidFCode, invalidFCode
	}

	// extra_bit_picture and extra_information_picture.
	for r.Flag() {
		r.EatBits(8)
	}

	d.pic.Structure = StructureFrame
	d.pic.NumSlices = 0
}

func (d *Decoder) readExtension(r *bits.Reader) {
	switch r.GetBits(4) {
	case extQuantMatrix:
		if r.Flag() {
			readMatrix(r, &d.pic.IntraMatrix)
		}
		if r.Flag() {
			readMatrix(r, &d.pic.NonIntraMatrix)
		}
		// Chroma matrices apply to 4:2:2 and 4:4:4 only.
		var chroma [64]uint8
		if r.Flag() {
			readMatrix(r, &chroma)
		}
		if r.Flag() {
			readMatrix(r, &chroma)
		}
	case extPictureCoding:
		d.pic.FCode[0][0] = int(r.GetBits(4)) - 1
		d.pic.FCode[0][1] = int(r.GetBits(4)) - 1
		d.pic.FCode[1][0] = int(r.GetBits(4)) - 1
		d.pic.FCode[1][1] = int(r.GetBits(4)) - 1
		d.pic.IntraDCPrecision = int(r.GetBits(2))
		d.pic.Structure = int(r.GetBits(2))
		d.pic.TopFieldFirst = r.Flag()
		d.pic.FramePredFrameDCT = r.Flag()
		d.pic.ConcealmentMotionVectors = r.Flag()
		d.pic.QScaleType = r.Flag()
		d.pic.IntraVLCFormat = r.Flag()
		d.pic.AlternateScan = r.Flag()
	}
}

func (d *Decoder) beginFrame() {
	if d.pic.CodingType != CodingTypeB {
		d.pic.Ref[0] = d.pic.Ref[1]
		d.pic.Ref[1] = nil
	}

	if d.s.NeedTarget() != nil {
		return
	}
	err := d.s.CreateCodec(hw.CodecTemplate{
		Profile:             hw.ProfileMPEG2Main,
		ChromaFormat:        hw.Chroma420,
		Width:               d.s.Width,
		Height:              d.s.Height,
		MaxReferences:       maxReferences,
		ExpectChunkedDecode: true,
	})
	if err != nil {
		return
	}

	pic := d.pic
	d.s.BeginFrame(&pic)
}

// EndFrame completes the frame being decoded. A finished P or I picture
// becomes the backward reference and the previous backward reference is
// output. B pictures are output directly.
func (d *Decoder) EndFrame() {
	d.s.EndFrame()

	var done hw.Buffer
	if d.pic.CodingType != CodingTypeB {
		d.pic.Ref[1] = d.s.Target
		done = d.pic.Ref[0]
		if done == nil {
			d.s.Target = nil
			return
		}
	} else {
		done = d.s.Target
	}

	d.s.FrameFinished = true
	d.s.Target = d.s.In.Picture
	d.s.In.Picture = done
}

// Flush removes and returns the backward reference picture, or nil if there is
// none.
func (d *Decoder) Flush() (hw.Buffer, int64) {
	b := d.pic.Ref[1]
	d.pic.Ref[1] = nil
	return b, stream.NoTimestamp
}

// Close destroys the reference pictures still held.
func (d *Decoder) Close() {
	for i, b := range d.pic.Ref {
		if b != nil && b != d.s.Target {
			b.Destroy()
		}
		d.pic.Ref[i] = nil
	}
}
