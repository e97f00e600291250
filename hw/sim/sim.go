/*
DESCRIPTION
  sim.go provides a software implementation of hw.Device that records the
  calls made to it and stamps each decoded picture with its decode order, so
  that parsers and the decode pump can be exercised without hardware.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package sim provides a simulated hardware decode device.
package sim

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/ausocean/hwdec/hw"
)

// Chroma value written to the chroma plane of decoded pictures.
const neutralChroma = 0x80

// Device is a simulated hw.Device. Buffers are NV12 in system memory. Each
// EndFrame fills the target luma plane with the low byte of the frame's decode
// sequence number, starting at 1.
type Device struct {
	// MaxBuffers limits the number of live buffers, 0 for no limit.
	MaxBuffers int

	// Unsupported lists profiles for which CreateCodec fails.
	Unsupported []hw.Profile

	mu      sync.Mutex
	live    int
	nextID  int
	decoded int
	codecs  []*Codec
	copies  int
}

// New returns a new simulated Device.
func New() *Device { return &Device{} }

// CreateCodec implements hw.Device.
func (d *Device) CreateCodec(t hw.CodecTemplate) (hw.Codec, error) {
	for _, p := range d.Unsupported {
		if p == t.Profile {
			return nil, errors.Wrapf(hw.ErrInsufficientResources, "profile %v not supported", p)
		}
	}
	c := &Codec{dev: d, Template: t}
	d.mu.Lock()
	d.codecs = append(d.codecs, c)
	d.mu.Unlock()
	return c, nil
}

// CreateBuffer implements hw.Device.
func (d *Device) CreateBuffer(t hw.BufferTemplate) (hw.Buffer, error) {
	if t.Width <= 0 || t.Height <= 0 {
		return nil, errors.Wrapf(hw.ErrInsufficientResources, "bad buffer size %dx%d", t.Width, t.Height)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.MaxBuffers > 0 && d.live >= d.MaxBuffers {
		return nil, errors.Wrap(hw.ErrInsufficientResources, "buffer limit reached")
	}
	d.live++
	d.nextID++
	return &Buffer{
		dev:    d,
		ID:     d.nextID,
		width:  t.Width,
		height: t.Height,
		Luma:   make([]byte, t.Width*t.Height),
		Chroma: make([]byte, chromaSize(t.Width, t.Height)),
	}, nil
}

// PreferredFormat implements hw.Device.
func (d *Device) PreferredFormat() hw.Format { return hw.FormatNV12 }

// CopyPlane implements hw.Device.
func (d *Device) CopyPlane(dst, src hw.Buffer, plane, width, height int) error {
	db, ok := dst.(*Buffer)
	if !ok {
		return errors.New("destination is not a simulated buffer")
	}
	sb, ok := src.(*Buffer)
	if !ok {
		return errors.New("source is not a simulated buffer")
	}

	var dp, sp []byte
	var dstride, sstride, bpp int
	switch plane {
	case 0:
		dp, sp, dstride, sstride, bpp = db.Luma, sb.Luma, db.width, sb.width, 1
	case 1:
		dp, sp, dstride, sstride, bpp = db.Chroma, sb.Chroma, 2*((db.width+1)/2), 2*((sb.width+1)/2), 2
	default:
		return errors.Errorf("invalid plane %d", plane)
	}

	row := width * bpp
	for y := 0; y < height; y++ {
		so, do := y*sstride, y*dstride
		if so+row > len(sp) || do+row > len(dp) {
			return errors.Errorf("copy region %dx%d exceeds plane %d", width, height, plane)
		}
		copy(dp[do:do+row], sp[so:so+row])
	}
	db.Seq = sb.Seq

	d.mu.Lock()
	d.copies++
	d.mu.Unlock()
	return nil
}

// Download implements hw.Device.
func (d *Device) Download(b hw.Buffer, dst []byte) (int, error) {
	sb, ok := b.(*Buffer)
	if !ok {
		return 0, errors.New("not a simulated buffer")
	}
	if sb.destroyed {
		return 0, errors.New("buffer destroyed")
	}
	n := copy(dst, sb.Luma)
	n += copy(dst[n:], sb.Chroma)
	return n, nil
}

// Codecs returns the codec sessions created so far.
func (d *Device) Codecs() []*Codec {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Codec(nil), d.codecs...)
}

// LiveBuffers returns the number of created buffers not yet destroyed.
func (d *Device) LiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

// Copies returns the number of CopyPlane calls made.
func (d *Device) Copies() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.copies
}

func chromaSize(w, h int) int { return 2 * ((w + 1) / 2) * ((h + 1) / 2) }

// Buffer is a simulated picture buffer.
type Buffer struct {
	dev       *Device
	ID        int
	Seq       int // Decode sequence number of the picture held, 0 if none.
	width     int
	height    int
	Luma      []byte
	Chroma    []byte
	destroyed bool
}

// Width implements hw.Buffer.
func (b *Buffer) Width() int { return b.width }

// Height implements hw.Buffer.
func (b *Buffer) Height() int { return b.height }

// Destroy implements hw.Buffer. Destroying a buffer twice is a no-op.
func (b *Buffer) Destroy() {
	if b.destroyed {
		return
	}
	b.destroyed = true
	b.dev.mu.Lock()
	b.dev.live--
	b.dev.mu.Unlock()
}

// Destroyed returns true if Destroy has been called.
func (b *Buffer) Destroyed() bool { return b.destroyed }

// Frame records one BeginFrame to EndFrame sequence on a Codec.
type Frame struct {
	Target  *Buffer
	Picture hw.Picture
	Data    [][]byte // Bitstream submitted, one entry per DecodeBitstream call.
	Ended   bool
}

// Codec is a simulated hw.Codec.
type Codec struct {
	dev       *Device
	Template  hw.CodecTemplate
	Frames    []*Frame
	cur       *Frame
	destroyed bool
}

// BeginFrame implements hw.Codec.
func (c *Codec) BeginFrame(target hw.Buffer, pic hw.Picture) error {
	b, err := c.check(target)
	if err != nil {
		return err
	}
	c.cur = &Frame{Target: b, Picture: pic}
	c.Frames = append(c.Frames, c.cur)
	return nil
}

// DecodeBitstream implements hw.Codec.
func (c *Codec) DecodeBitstream(target hw.Buffer, pic hw.Picture, data ...[]byte) error {
	b, err := c.check(target)
	if err != nil {
		return err
	}
	if c.cur == nil || c.cur.Target != b {
		return errors.New("bitstream submitted outside of frame")
	}
	var joined []byte
	for _, d := range data {
		joined = append(joined, d...)
	}
	c.cur.Data = append(c.cur.Data, joined)
	c.cur.Picture = pic
	return nil
}

// EndFrame implements hw.Codec.
func (c *Codec) EndFrame(target hw.Buffer, pic hw.Picture) error {
	b, err := c.check(target)
	if err != nil {
		return err
	}
	if c.cur == nil || c.cur.Target != b {
		return errors.New("end of frame without begin")
	}
	c.cur.Ended = true
	c.cur.Picture = pic
	c.cur = nil

	c.dev.mu.Lock()
	c.dev.decoded++
	seq := c.dev.decoded
	c.dev.mu.Unlock()

	b.Seq = seq
	for i := range b.Luma {
		b.Luma[i] = byte(seq)
	}
	for i := range b.Chroma {
		b.Chroma[i] = neutralChroma
	}
	return nil
}

// Destroy implements hw.Codec.
func (c *Codec) Destroy() { c.destroyed = true }

// Destroyed returns true if Destroy has been called.
func (c *Codec) Destroyed() bool { return c.destroyed }

func (c *Codec) check(target hw.Buffer) (*Buffer, error) {
	if c.destroyed {
		return nil, errors.New("codec destroyed")
	}
	b, ok := target.(*Buffer)
	if !ok || b == nil {
		return nil, errors.New("target is not a simulated buffer")
	}
	if b.destroyed {
		return nil, errors.New("target destroyed")
	}
	return b, nil
}
