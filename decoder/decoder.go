/*
DESCRIPTION
  decoder.go provides Decoder, which pumps input buffers of compressed video
  through a codec parser that drives a hardware decoder, and hands decoded
  pictures back in output buffers.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package decoder provides the decode pump shared by all codecs. Input
// buffers of arbitrary size are queued two at a time, parsed by the codec
// parser for the configured codec, and finished frames are delivered to a
// Client in output buffers.
package decoder

import (
	"fmt"

	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"

	"github.com/ausocean/hwdec/codec/av1"
	"github.com/ausocean/hwdec/codec/bits"
	"github.com/ausocean/hwdec/codec/codecutil"
	"github.com/ausocean/hwdec/codec/h264"
	"github.com/ausocean/hwdec/codec/h265"
	"github.com/ausocean/hwdec/codec/mpeg2"
	"github.com/ausocean/hwdec/config"
	"github.com/ausocean/hwdec/hw"
	"github.com/ausocean/hwdec/stream"
)

// Used to indicate package in logging.
const pkg = "decoder: "

// minBitsLeft is the least amount of the next input buffer left unparsed
// while the current buffer is consumed.
const minBitsLeft = 32

// ErrNoOutput is returned when a frame is ready but the Client has no output
// buffer for it.
var ErrNoOutput = errors.New("no output buffer")

// Client owns the input and output buffers of a Decoder.
type Client interface {
	// ReturnInput hands back an input buffer once it has been consumed.
	ReturnInput(in *stream.Buffer)

	// NextOutput returns an empty output buffer, or nil if there is none.
	NextOutput() *stream.Buffer

	// Deliver hands over an output buffer holding a decoded picture.
	Deliver(out *stream.Buffer)
}

// Decoder decodes one stream.
type Decoder struct {
	log    logging.Logger
	codec  string
	s      *stream.Session
	p      parser
	client Client

	in    [2]*stream.Buffer // Queued input, in[0] being consumed.
	n     int               // Number of queued inputs.
	data  []byte            // Unconsumed bytes of in[0].
	spare *stream.Buffer    // Output buffer taken from the Client but not filled.
}

// New returns a new Decoder for the codec given by c, decoding with dev and
// exchanging buffers with client.
func New(c config.Config, dev hw.Device, client Client) (*Decoder, error) {
	if c.Logger == nil {
		return nil, errors.New("no logger")
	}
	if dev == nil || client == nil {
		return nil, errors.New("device and client must be provided")
	}

	s := stream.NewSession(dev, c.Logger, int(c.Width), int(c.Height))
	d := &Decoder{log: c.Logger, codec: c.Codec, s: s, client: client}
	switch c.Codec {
	case codecutil.MPEG2:
		d.p = &parked{flusher: mpeg2.NewDecoder(s), s: s}
	case codecutil.H264:
		d.p = &parked{flusher: h264.NewDecoder(s, int(c.H264DPBSize)), s: s}
	case codecutil.H265:
		d.p = &parked{flusher: h265.NewDecoder(s, int(c.H265DPBSize)), s: s}
	case codecutil.AV1:
		d.p = av1.NewDecoder(s, int(c.AV1QueueDepth))
	default:
		return nil, fmt.Errorf("unsupported codec: %s", c.Codec)
	}
	d.log.Debug(pkg+"decoder created", "codec", c.Codec)
	return d, nil
}

// DecodeBuffer queues in and parses the queued input while there is a
// following buffer, or while in marks the end of the stream. A frame is
// delivered as soon as it finishes, or for parsers that hold finished frames
// with their input, once the input is consumed. Consumed input is returned to
// the Client after the frames finished in it are delivered. A hardware
// failure met while parsing is returned once the buffer it occurred in has
// been handled.
func (d *Decoder) DecodeBuffer(in *stream.Buffer) error {
	if d.n == len(d.in) {
		return errors.New("input queue full")
	}
	d.in[d.n] = in
	if d.n == 0 {
		d.data = in.Bytes()
	}
	d.n++

	keep := 1
	if in.EOS {
		keep = 0
	}
	for d.n > keep {
		cur := d.in[0]
		eos := cur.EOS

		segs := [][]byte{d.data}
		if d.n > 1 {
			segs = append(segs, d.in[1].Bytes())
		}
		minBits := 0
		if !eos {
			minBits = minBitsLeft
			if d.n > 1 {
				minBits = max(d.in[1].Filled*8, minBitsLeft)
			}
		}

		var (
			held bool
			err  error
		)
		check := func() {
			h, e := d.finished(cur)
			held = held || h
			if err == nil {
				err = e
			}
		}

		r := bits.NewReader(segs...)
		d.s.In = cur
		for r.BitsLeft() > minBits {
			left := r.BitsLeft()
			d.p.Decode(r, minBits)
			r.FillBits()
			check()
			if r.BitsLeft() == left {
				// The parser is waiting for more input.
				break
			}
		}

		if eos {
			d.s.EndSlice(r)
			if d.s.FrameStarted {
				d.p.EndFrame()
				check()
			}
		} else {
			d.s.SubmitSlice(r)
			d.s.ContinueSlice()
		}
		rest := r.Bytes(r.Pos(), r.Len())

		if held || eos {
			if e := d.send(cur); err == nil {
				err = e
			}
		} else {
			cur.Filled = 0
			d.client.ReturnInput(cur)
		}

		d.n--
		d.in[0], d.in[1] = d.in[1], nil
		d.data = nil
		if d.n > 0 {
			d.data = rest
		}

		if e := d.s.TakeErr(); e != nil && err == nil {
			err = errors.Wrap(e, "decode failed")
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// finished delivers the frame finished by the last parse of in, if any. It
// returns true if the parser holds the frame with in instead.
func (d *Decoder) finished(in *stream.Buffer) (bool, error) {
	if !d.s.FrameFinished {
		return false, nil
	}
	d.s.FrameFinished = false
	pic := d.p.Finished(in)
	if pic == nil {
		return true, nil
	}

	out := d.output(in)
	if out == nil {
		return false, ErrNoOutput
	}
	d.s.FillOutput(pic, out)
	if out.Filled == 0 {
		d.spare = out
		return false, nil
	}
	out.Timestamp = in.Timestamp
	d.log.Debug(pkg+"frame delivered", "timestamp", out.Timestamp, "size", out.Filled)
	d.client.Deliver(out)
	return false, nil
}

// send delivers the frames held with in, then returns in to the Client.
func (d *Decoder) send(in *stream.Buffer) error {
	defer d.client.ReturnInput(in)
	for more := true; more; {
		out := d.output(in)
		if out == nil {
			return ErrNoOutput
		}

		more = d.FrameDecoded(in, out)
		if out.Filled == 0 {
			d.spare = out
			continue
		}
		d.log.Debug(pkg+"frame delivered", "timestamp", out.Timestamp, "size", out.Filled)
		d.client.Deliver(out)
	}
	return nil
}

// output returns an empty output buffer, or nil if the Client has none.
func (d *Decoder) output(in *stream.Buffer) *stream.Buffer {
	out := d.spare
	d.spare = nil
	if out == nil {
		out = d.client.NextOutput()
	}
	if out == nil {
		d.log.Error(pkg+"no output buffer for decoded frame", "timestamp", in.Timestamp)
	}
	return out
}

// FrameDecoded fills out with the next picture held with in. It returns true
// if there are more pictures to be taken from in, otherwise the filled length
// of in is set to zero. The filled length of out is zero if no picture was
// ready. At the end of the stream the pictures still held for reordering are
// taken one per call.
func (d *Decoder) FrameDecoded(in, out *stream.Buffer) bool {
	more := d.p.FrameDecoded(in, out)
	if !more {
		in.Filled = 0
	}
	return more
}

// FreeInputPrivate releases the pictures held on in. It must be called for
// each input buffer before the buffer is discarded.
func (d *Decoder) FreeInputPrivate(in *stream.Buffer) {
	d.p.FreeInput(in)
}

// Close releases the pictures held by the Decoder and its queued input, and
// the hardware codec session.
func (d *Decoder) Close() {
	for i := 0; i < d.n; i++ {
		d.p.FreeInput(d.in[i])
		d.in[i] = nil
	}
	d.n = 0
	d.data = nil
	d.p.Close()
	d.s.Close()
	d.log.Debug(pkg+"decoder closed", "codec", d.codec)
}
