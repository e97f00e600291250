/*
NAME
  demux.go

DESCRIPTION
  demux.go provides Demuxer, which extracts the elementary stream of the video
  stream carrying a given codec from MPEG-TS.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package mts

import (
	"bytes"
	"fmt"

	"github.com/Comcast/gots/packet"
	"github.com/Comcast/gots/pes"
	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"

	"github.com/ausocean/hwdec/codec/codecutil"
)

// Used to indicate package in logging.
const pkg = "mts: "

// ErrNoVideo is returned when the PMT, or the whole of the MPEG-TS, carries no
// stream for the codec being demultiplexed.
var ErrNoVideo = errors.New("no video stream for codec")

// noCC marks the expected continuity counter as unknown.
const noCC = 16

// Demuxer extracts the elementary stream of the first PMT stream whose stream
// type carries the configured codec. Packets of other PIDs are skipped. MPEG-TS
// may be given in pieces of any size.
type Demuxer struct {
	log        logging.Logger
	codec      string
	streamType uint8

	pmtPID  int    // PID of the PMT, or -1 until the PAT is seen.
	pid     int    // PID of the video stream, or -1 until the PMT is seen.
	started bool   // True once the first PES of the video stream has begun.
	expCC   int    // Expected continuity counter of the video PID.
	pts     uint64 // PTS of the most recent PES header.
	carry   []byte // Incomplete packet left from the last call to Demux.
}

// NewDemuxer returns a new Demuxer for the elementary stream of codec.
func NewDemuxer(log logging.Logger, codec string) (*Demuxer, error) {
	st, ok := codecutil.StreamType(codec)
	if !ok {
		return nil, fmt.Errorf("no MPEG-TS stream type for codec: %s", codec)
	}
	return &Demuxer{
		log:        log,
		codec:      codec,
		streamType: st,
		pmtPID:     -1,
		pid:        -1,
		expCC:      noCC,
	}, nil
}

// Demux appends the elementary stream data carried by p to dst and returns
// the extended slice. A trailing partial packet is held until the next call.
// ErrNoVideo is returned if the PMT has no stream for the codec.
func (d *Demuxer) Demux(dst, p []byte) ([]byte, error) {
	buf := p
	if len(d.carry) != 0 {
		buf = append(d.carry, p...)
		d.carry = nil
	}

	var pkt packet.Packet
	for len(buf) >= PacketSize {
		if buf[0] != SyncByte {
			i := bytes.IndexByte(buf[1:], SyncByte)
			if i == -1 {
				d.log.Warning(pkg+"lost sync", "skipped", len(buf))
				buf = nil
				break
			}
			d.log.Warning(pkg+"lost sync", "skipped", i+1)
			buf = buf[i+1:]
			continue
		}

		copy(pkt[:], buf[:PacketSize])
		buf = buf[PacketSize:]

		switch pid := int(pkt.PID()); {
		case pid == PatPid:
			if d.pmtPID != -1 {
				continue
			}
			pmtPID, err := PMTPid(pkt[:])
			if err != nil {
				d.log.Warning(pkg+"bad PAT", "error", err.Error())
				continue
			}
			d.pmtPID = int(pmtPID)
		case pid == d.pmtPID:
			if d.pid != -1 {
				continue
			}
			err := d.selectStream(pkt[:])
			if err != nil {
				return dst, err
			}
		case pid == d.pid:
			dst = d.media(dst, &pkt)
		}
	}

	if len(buf) != 0 {
		d.carry = append(make([]byte, 0, PacketSize), buf...)
	}
	return dst, nil
}

// selectStream takes the video PID from the PMT packet p.
func (d *Demuxer) selectStream(p []byte) error {
	streams, err := Streams(p)
	if err != nil {
		d.log.Warning(pkg+"bad PMT", "error", err.Error())
		return nil
	}
	for _, s := range streams {
		if s.StreamType() == d.streamType {
			d.pid = int(s.ElementaryPid())
			d.log.Debug(pkg+"selected video stream", "pid", d.pid, "codec", d.codec, "streamType", d.streamType)
			return nil
		}
	}
	return ErrNoVideo
}

// media appends the elementary stream data in the video packet pkt to dst.
// Data ahead of the first PES header is dropped.
func (d *Demuxer) media(dst []byte, pkt *packet.Packet) []byte {
	payload, err := pkt.Payload()
	if err != nil {
		return dst
	}

	cc := CC(pkt[:])
	if d.expCC != noCC && cc != d.expCC {
		d.log.Warning(pkg+"continuity counter discontinuity", "got", cc, "want", d.expCC)
	}
	d.expCC = (cc + 1) & 0xf

	if pkt.PayloadUnitStartIndicator() {
		h, err := pes.NewPESHeader(payload)
		if err != nil {
			d.log.Warning(pkg+"could not parse PES header", "error", err.Error())
			d.started = false
			return dst
		}
		d.started = true
		d.pts = h.PTS()
		return append(dst, h.Data()...)
	}
	if !d.started {
		return dst
	}
	return append(dst, payload...)
}

// PTS returns the PTS of the most recent PES header of the video stream.
func (d *Demuxer) PTS() uint64 { return d.pts }

// Close checks the end of the MPEG-TS. ErrNoVideo is returned if no video
// stream was found.
func (d *Demuxer) Close() error {
	if len(d.carry) != 0 {
		d.log.Warning(pkg+"partial packet at end of stream", "size", len(d.carry))
		d.carry = nil
	}
	if d.pid == -1 {
		return ErrNoVideo
	}
	return nil
}

// Video returns the elementary stream of the video stream carrying codec in
// the MPEG-TS clip p, which must contain only complete packets.
func Video(log logging.Logger, p []byte, codec string) ([]byte, error) {
	if len(p)%PacketSize != 0 {
		return nil, errors.New("MTS clip is not of valid size")
	}
	d, err := NewDemuxer(log, codec)
	if err != nil {
		return nil, err
	}
	es, err := d.Demux(nil, p)
	if err != nil {
		return nil, err
	}
	err = d.Close()
	if err != nil {
		return nil, err
	}
	return es, nil
}
