/*
DESCRIPTION
  feed.go provides the input feeder and the decoder Client used by hwdec,
  and the decoded frame statistics reported at the end of a run.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package main

import (
	"io"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/ausocean/utils/pool"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/ausocean/hwdec/codec/av1"
	"github.com/ausocean/hwdec/codec/codecutil"
	"github.com/ausocean/hwdec/config"
	"github.com/ausocean/hwdec/hw/sim"
	"github.com/ausocean/hwdec/stream"
)

// client implements decoder.Client, writing delivered frames to w.
type client struct {
	log     logging.Logger
	w       io.Writer // Frames are not kept if nil.
	outSize int

	free   []*stream.Buffer // Input buffers handed back by the decoder.
	outs   []*stream.Buffer // Output buffers ready for reuse.
	frames int
	err    error // First error writing a frame.
}

func (c *client) ReturnInput(in *stream.Buffer) { c.free = append(c.free, in) }

func (c *client) NextOutput() *stream.Buffer {
	if n := len(c.outs); n != 0 {
		out := c.outs[n-1]
		c.outs = c.outs[:n-1]
		return out
	}
	return stream.NewBuffer(c.outSize)
}

func (c *client) Deliver(out *stream.Buffer) {
	c.frames++
	if c.w != nil && c.err == nil {
		_, err := c.w.Write(out.Bytes())
		if err != nil {
			c.log.Error(pkg+"could not write frame", "error", err.Error())
			c.err = err
		}
	}
	out.Filled = 0
	c.outs = append(c.outs, out)
}

// bufferDecoder is the part of decoder.Decoder driven by a feeder.
type bufferDecoder interface {
	DecodeBuffer(in *stream.Buffer) error
	FreeInputPrivate(in *stream.Buffer)
	Close()
}

// feeder divides the input into buffers for the decoder. Buffers hold
// ChunkSize bytes, or one temporal unit for AV1. The last buffer is held back
// until the end of the input so that it can be marked as the end of the
// stream.
type feeder struct {
	log   logging.Logger
	d     bufferDecoder
	c     *client
	codec string
	chunk int

	pending  []byte           // Input not yet given to a buffer.
	prev     *stream.Buffer   // Filled buffer not yet given to the decoder.
	all      []*stream.Buffer // Every input buffer allocated.
	seq      int64            // Timestamp of the next buffer.
	failures int              // Number of buffers whose decode failed.
}

func newFeeder(c config.Config, d bufferDecoder, cl *client) *feeder {
	return &feeder{log: c.Logger, d: d, c: cl, codec: c.Codec, chunk: int(c.ChunkSize)}
}

// drain feeds the input in rb to the decoder until rb is closed and empty.
func (f *feeder) drain(rb *pool.Buffer, timeout time.Duration) error {
	for {
		chunk, err := rb.Next(timeout)
		switch err {
		case nil:
		case pool.ErrTimeout:
			f.log.Debug(pkg + "pool buffer read timeout")
			continue
		case io.EOF:
			return nil
		default:
			return errors.Wrap(err, "unexpected pool buffer error")
		}

		err = f.feed(chunk.Bytes())
		chunk.Close()
		if err != nil {
			return err
		}
	}
}

// feed adds p to the pending input and gives the decoder every whole buffer
// of it.
func (f *feeder) feed(p []byte) error {
	f.pending = append(f.pending, p...)
	return f.split(false)
}

// finish gives the decoder the rest of the input and marks the end of the
// stream.
func (f *feeder) finish() error {
	err := f.split(true)
	if err != nil {
		return err
	}
	if f.prev == nil {
		f.prev = f.input(0)
	}
	f.prev.EOS = true
	f.decode(f.prev)
	f.prev = nil
	return nil
}

// split queues buffers from the pending input. If final is set, all of the
// pending input is queued.
func (f *feeder) split(final bool) error {
	for len(f.pending) != 0 {
		n := min(f.chunk, len(f.pending))
		if f.codec == codecutil.AV1 {
			var err error
			n, err = av1.NextTemporalUnit(f.pending)
			switch {
			case err == av1.ErrShortOBU && !final:
				return nil
			case err == av1.ErrShortOBU:
				f.log.Warning(pkg+"incomplete OBU at end of input", "size", len(f.pending))
				f.pending = f.pending[:0]
				return nil
			case err != nil:
				return errors.Wrap(err, "could not find temporal unit")
			case n == len(f.pending) && !final:
				return nil
			}
		} else if n < f.chunk && !final {
			return nil
		}

		f.queue(f.pending[:n])
		f.pending = f.pending[n:]
	}
	f.pending = f.pending[:0]
	return nil
}

// queue fills an input buffer with p and gives the decoder the buffer filled
// before it.
func (f *feeder) queue(p []byte) {
	in := f.input(len(p))
	in.Fill(p)
	in.Timestamp = f.seq
	f.seq++
	if f.prev != nil {
		f.decode(f.prev)
	}
	f.prev = in
}

// decode gives in to the decoder. Hardware failures are logged and decoding
// carries on with the next buffer.
func (f *feeder) decode(in *stream.Buffer) {
	err := f.d.DecodeBuffer(in)
	if err != nil {
		f.failures++
		f.log.Error(pkg+"could not decode buffer", "timestamp", in.Timestamp, "error", err.Error())
	}
}

// input returns an empty input buffer of at least n bytes, reusing buffers
// handed back by the decoder.
func (f *feeder) input(n int) *stream.Buffer {
	if k := len(f.c.free); k != 0 {
		in := f.c.free[k-1]
		f.c.free = f.c.free[:k-1]
		if in.Alloc() < n {
			in.Data = make([]byte, n)
		}
		in.Filled = 0
		in.EOS = false
		return in
	}
	in := stream.NewBuffer(max(n, f.chunk))
	f.all = append(f.all, in)
	return in
}

// close releases the pictures held on the input buffers and closes the
// decoder.
func (f *feeder) close() {
	for _, in := range f.all {
		f.d.FreeInputPrivate(in)
	}
	f.d.Close()
}

// frameStats returns the number of frames decoded by dev, and the mean and
// standard deviation of the bitstream bytes submitted per frame.
func frameStats(dev *sim.Device) (n int, mean, std float64) {
	var sizes []float64
	for _, c := range dev.Codecs() {
		for _, fr := range c.Frames {
			var size int
			for _, d := range fr.Data {
				size += len(d)
			}
			sizes = append(sizes, float64(size))
		}
	}
	switch len(sizes) {
	case 0:
		return 0, 0, 0
	case 1:
		return 1, sizes[0], 0
	}
	mean, std = stat.MeanStdDev(sizes, nil)
	return len(sizes), mean, std
}
