/*
DESCRIPTION
  parser.go defines the interface the decode pump drives codec parsers
  through, and adapts the parsers that park finished pictures on their input
  buffers to it.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package decoder

import (
	"github.com/ausocean/hwdec/codec/bits"
	"github.com/ausocean/hwdec/hw"
	"github.com/ausocean/hwdec/stream"
)

// parser is a codec parser driven by the decode pump.
type parser interface {
	// Decode parses the next unit of the stream from r, leaving at least
	// minBitsLeft bits unread unless the unit extends into them. Reading
	// nothing means the unit needs more input.
	Decode(r *bits.Reader, minBitsLeft int)

	// EndFrame completes the frame being decoded at the end of the stream.
	EndFrame()

	// Finished returns the picture finished by the last parse of in, to be
	// output straight away, or nil if finished pictures are held with in
	// until FrameDecoded.
	Finished(in *stream.Buffer) hw.Buffer

	// FrameDecoded fills out with the next picture ready on in and returns
	// true if there are more.
	FrameDecoded(in, out *stream.Buffer) bool

	// FreeInput releases the pictures held on in.
	FreeInput(in *stream.Buffer)

	Close()
}

// flusher is a parser that parks each finished picture on the current input
// buffer, and gives up the pictures it still holds one at a time on Flush.
type flusher interface {
	Decode(r *bits.Reader, minBitsLeft int)
	EndFrame()
	Flush() (hw.Buffer, int64)
	Close()
}

// parked adapts a flusher to the parser interface.
type parked struct {
	flusher
	s *stream.Session
}

// Finished implements parser. The picture stays parked on in once output, to
// be reused as a decode target.
func (p *parked) Finished(in *stream.Buffer) hw.Buffer { return in.Picture }

// FrameDecoded implements parser. Parked pictures are output as they finish,
// so nothing is ready until the end of the stream. There the parked picture
// is released and the held pictures are flushed one per call until there are
// none.
func (p *parked) FrameDecoded(in, out *stream.Buffer) bool {
	out.Filled = 0
	if !in.EOS {
		return false
	}

	p.FreeInput(in)
	var ts int64
	in.Picture, ts = p.Flush()
	if in.Picture == nil {
		return false
	}
	if ts != stream.NoTimestamp {
		in.Timestamp = ts
	}
	p.s.FillOutput(in.Picture, out)
	out.Timestamp = in.Timestamp
	return true
}

// FreeInput implements parser.
func (p *parked) FreeInput(in *stream.Buffer) {
	if in.Picture == nil {
		return
	}
	if in.Picture != p.s.Target {
		in.Picture.Destroy()
	}
	in.Picture = nil
}
