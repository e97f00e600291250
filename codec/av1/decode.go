/*
DESCRIPTION
  decode.go provides the AV1 OBU stream parser. It parses sequence and frame
  headers, submits each frame OBU to the hardware codec together with any
  pending temporal delimiter and sequence header, maintains the reference
  slots and queues decoded pictures for output through the task pool.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package av1 provides a parser for AV1 low overhead bitstream format OBU
// streams that drives a hardware decoder.
package av1

import (
	"github.com/pkg/errors"

	"github.com/ausocean/hwdec/codec/bits"
	"github.com/ausocean/hwdec/hw"
	"github.com/ausocean/hwdec/stream"
)

// Used to indicate package in logging.
const pkg = "av1: "

// DefaultQueueDepth is the number of decoded frames held back from output
// so that they may be shown again by later frames.
const DefaultQueueDepth = 16

// Decoder parses an AV1 OBU stream. Input buffers must hold whole OBUs.
type Decoder struct {
	s      *stream.Session
	seq    *SequenceHeader
	frame  *FrameHeader
	refs   [numRefFrames]FrameHeader
	refBuf [numRefFrames]hw.Buffer

	// Temporal delimiter and sequence header OBUs to submit with the next
	// frame.
	td     []byte
	seqOBU []byte

	pool    *pool
	stacked bool
}

// NewDecoder returns a new Decoder driving the codec of session s, holding
// back up to queueDepth decoded frames before output.
func NewDecoder(s *stream.Session, queueDepth int) *Decoder {
	if queueDepth <= 0 {
		queueDepth = DefaultQueueDepth
	}
	return &Decoder{s: s, pool: newPool(s.Device, queueDepth)}
}

// SequenceHeader returns the active sequence header, or nil.
func (d *Decoder) SequenceHeader() *SequenceHeader { return d.seq }

// Decode parses the next OBU from r. minBitsLeft is the amount of r that
// belongs to later input; a frame followed by more than this is stacked with
// the frames after it for output.
func (d *Decoder) Decode(r *bits.Reader, minBitsLeft int) {
	r.Align()
	if r.BitsLeft() < 8 {
		r.EatBits(r.BitsLeft())
		return
	}

	ar := newReader(r)
	start := r.Pos()
	obu := readOBUHeader(ar)
	if r.Err() != nil {
		r.EatBits(r.BitsLeft())
		return
	}
	size := obu.Size
	if size < 0 {
		size = r.SegmentEnd(start) - r.Pos()
	}
	end := r.Pos() + size
	if end > r.Len() {
		d.s.Log.Warning(pkg+"dropping truncated OBU", "type", obu.Type.String(), "size", size)
		if n := r.SegmentEnd(start) - r.Pos(); n > 0 {
			r.EatBits(8 * n)
		}
		return
	}

	switch obu.Type {
	case OBUSequenceHeader:
		seq, err := parseSequenceHeader(ar)
		if err != nil {
			d.s.Log.Warning(pkg+"dropping sequence header", "error", err.Error())
			break
		}
		d.seq = seq
		d.seqOBU = r.Bytes(start, end)
		d.s.Log.Debug(pkg+"sequence header", "profile", seq.Profile, "width", seq.MaxWidth(), "height", seq.MaxHeight())

	case OBUTemporalDelimiter:
		d.td = r.Bytes(start, end)

	case OBUFrameHeader:
		if d.header(ar, obu) && d.frame.ShowExistingFrame {
			d.showExistingFrame()
		}

	case OBUFrame:
		d.decodeFrame(ar, obu, start, end, minBitsLeft)

	default:
		d.s.Log.Debug(pkg+"skipping OBU", "type", obu.Type.String(), "size", size)
	}

	r.Align()
	if n := end - r.Pos(); n > 0 {
		r.EatBits(8 * n)
	}
}

// header parses a frame header, returning false if it could not be.
func (d *Decoder) header(r *reader, obu OBUHeader) bool {
	if d.seq == nil {
		d.s.Log.Warning(pkg + "frame header before sequence header")
		return false
	}
	h, err := parseFrameHeader(r, d.seq, &d.refs, obu)
	if err != nil {
		d.s.Log.Warning(pkg+"dropping frame header", "error", err.Error())
		return false
	}
	d.frame = h
	return true
}

// decodeFrame parses and decodes the frame OBU spanning start to end.
func (d *Decoder) decodeFrame(r *reader, obu OBUHeader, start, end, minBitsLeft int) {
	if !d.header(r, obu) {
		return
	}
	h := d.frame
	if h.ShowExistingFrame {
		d.showExistingFrame()
		return
	}
	r.align()

	tg, err := parseTileGroup(r, &h.Tile, start, end, len(d.td)+len(d.seqOBU))
	if err != nil {
		d.s.Log.Warning(pkg+"dropping frame", "error", err.Error())
		return
	}

	pic := &Picture{Seq: d.seq, Frame: h, TileGroup: *tg, Ref: d.refBuf}
	t := d.beginFrame(pic)
	if t < 0 {
		return
	}

	var data [][]byte
	if d.td != nil {
		data = append(data, d.td)
	}
	if d.seqOBU != nil {
		data = append(data, d.seqOBU)
	}
	data = append(data, r.br.Bytes(start, end))
	d.s.Decode(data...)
	d.td, d.seqOBU = nil, nil

	d.stacked = r.br.BitsLeft()-8*(end-r.br.Pos()) > minBitsLeft
	d.endFrame(t)
}

// beginFrame creates the codec if needed and begins decoding pic into a task
// from the pool. It returns the task handle, or -1 on failure.
func (d *Decoder) beginFrame(pic *Picture) int {
	if d.s.FrameStarted {
		return -1
	}

	if d.s.Codec == nil && (d.s.Width == 0 || d.s.Height == 0) {
		d.s.Width, d.s.Height = d.seq.MaxWidth(), d.seq.MaxHeight()
	}
	err := d.s.CreateCodec(hw.CodecTemplate{
		Profile:             hw.ProfileAV1Main,
		Level:               d.seq.SeqLevelIdx[0],
		ChromaFormat:        hw.Chroma420,
		Width:               d.s.Width,
		Height:              d.s.Height,
		MaxReferences:       numRefFrames,
		ExpectChunkedDecode: true,
	})
	if err != nil {
		return -1
	}

	d.pool.tidy(&d.refBuf)
	t, err := d.pool.need(d.s.Width, d.s.Height)
	if err != nil {
		d.s.Fail(errors.Wrap(err, "could not get picture"))
		return -1
	}

	d.s.Target = d.pool.buffer(t)
	if d.s.BeginFrame(pic) != nil {
		d.s.Target = nil
		d.pool.abandon(t)
		return -1
	}
	return t
}

// endFrame completes decoding of task t, updates the reference slots and
// queues t for output.
func (d *Decoder) endFrame(t int) {
	if !d.s.FrameStarted {
		return
	}
	d.s.EndFrame()
	d.s.Target = nil

	h, buf := d.frame, d.pool.buffer(t)
	for i := 0; i < numRefFrames; i++ {
		if h.RefreshFrameFlags&(1<<uint(i)) != 0 {
			d.refs[i] = *h
			d.refBuf[i] = buf
		}
	}
	d.s.Log.Debug(pkg+"frame decoded", "type", h.FrameType, "show", h.ShowFrame, "refresh", h.RefreshFrameFlags)

	if d.pool.finish(t, !h.ShowFrame, d.s.In, d.stacked) {
		d.s.FrameFinished = true
	}
}

// showExistingFrame queues the picture in the slot named by the current frame
// header for output once more.
func (d *Decoder) showExistingFrame() {
	idx := d.frame.FrameToShowMapIdx
	b := d.refBuf[idx]
	if b == nil {
		d.s.Log.Warning(pkg+"show of empty reference slot", "slot", idx)
		return
	}
	found, err := d.pool.showExisting(d.s.In, &d.refBuf, b, d.s.Width, d.s.Height)
	if err != nil {
		d.s.Fail(err)
		return
	}
	if found {
		d.s.FrameFinished = true
	}

	if d.frame.FrameType == KeyFrame {
		ref := d.refs[idx]
		for i := range d.refs {
			d.refs[i] = ref
			d.refBuf[i] = b
		}
	}
}

// EndFrame is a no-op; frames are begun and completed within Decode.
func (d *Decoder) EndFrame() {}

// Flush moves the oldest queued frame to the current input buffer for output.
// It returns false if no frame is queued.
func (d *Decoder) Flush() bool {
	d.pool.mu.Lock()
	defer d.pool.mu.Unlock()
	return d.pool.next(d.s.In)
}

// Finished returns nil; finished frames are held with their input buffer
// until FrameDecoded.
func (d *Decoder) Finished(in *stream.Buffer) hw.Buffer { return nil }

// Outputs returns the number of outputs still pending for the picture held
// in reference slot slot.
func (d *Decoder) Outputs(slot int) int {
	if slot < 0 || slot >= numRefFrames || d.refBuf[slot] == nil {
		return 0
	}
	return d.pool.pending(d.refBuf[slot])
}

// FrameDecoded fills out with the next frame held for input buffer in and
// returns true if the input holds more frames. Frames decoded without
// show_frame leave out empty.
func (d *Decoder) FrameDecoded(in, out *stream.Buffer) bool {
	return d.pool.deliver(in, out, func(b hw.Buffer, out *stream.Buffer) error {
		return d.s.FillOutput(b, out)
	})
}

// FreeInput destroys any frames still held for input buffer in.
func (d *Decoder) FreeInput(in *stream.Buffer) { d.pool.freeInput(in) }

// Close destroys all pictures held by the decoder.
func (d *Decoder) Close() {
	d.pool.release()
	d.refBuf = [numRefFrames]hw.Buffer{}
}
