/*
NAME
  mts.go - provides MPEG-TS constants and functions for finding packets and
  reading the program specific information of a transport stream.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package mts provides MPEG-TS (mts) demultiplexing of the video elementary
// stream fed to the decoder.
package mts

import (
	"fmt"

	gotspsi "github.com/Comcast/gots/psi"
	"github.com/pkg/errors"
)

// PacketSize is the size of an MPEG-TS packet.
const PacketSize = 188

// SyncByte starts every MPEG-TS packet.
const SyncByte = 0x47

// Standard program IDs for program specific information MPEG-TS packets.
const (
	PatPid  = 0
	SdtPid  = 17
	NullPid = 0x1fff
)

// HeadSize is the size of an MPEG-TS packet header.
const HeadSize = 4

// Adaptation field control bits of octet 3.
const (
	HasPayload         = 0x1
	HasAdaptationField = 0x2
)

// Errors used by the find functions.
var (
	ErrInvalidLen       = errors.New("MPEG-TS data not of valid length")
	ErrMultiplePrograms = errors.New("more than one program not supported")
	ErrNoPrograms       = errors.New("no programs in PAT")
	ErrNoPayload        = errors.New("no payload")
)

// PID returns the packet identifier for the given packet.
func PID(p []byte) (uint16, error) {
	if len(p) < PacketSize {
		return 0, ErrInvalidLen
	}
	return uint16(p[1]&0x1f)<<8 | uint16(p[2]), nil
}

// CC returns the continuity counter of the given packet.
func CC(p []byte) int { return int(p[3] & 0x0f) }

// FindPid will take a clip of MPEG-TS and try to find a packet with given PID - if one
// is found, then it is returned along with its index, otherwise nil, -1 and an error is returned.
func FindPid(d []byte, pid uint16) (pkt []byte, i int, err error) {
	if len(d) < PacketSize {
		return nil, -1, ErrInvalidLen
	}
	for i = 0; i+PacketSize <= len(d); i += PacketSize {
		p := (uint16(d[i+1]&0x1f) << 8) | uint16(d[i+2])
		if p == pid {
			pkt = d[i : i+PacketSize]
			return
		}
	}
	return nil, -1, fmt.Errorf("could not find packet with PID %d", pid)
}

// Payload returns the payload of an MPEG-TS packet p.
// NB: this is not a copy of the payload in the interests of performance.
func Payload(p []byte) ([]byte, error) {
	if len(p) < PacketSize {
		return nil, ErrInvalidLen
	}
	afc := (p[3] >> 4) & 0x3
	if afc&HasPayload == 0 {
		return nil, ErrNoPayload
	}

	off := HeadSize
	if afc&HasAdaptationField != 0 {
		off += 1 + int(p[HeadSize])
	}
	if off >= PacketSize {
		return nil, ErrNoPayload
	}
	return p[off:PacketSize], nil
}

// PMTPid returns the PID of the PMT of the single program described by the
// given PAT packet.
func PMTPid(p []byte) (uint16, error) {
	pat, err := gotspsi.NewPAT(p)
	if err != nil {
		return 0, errors.Wrap(err, "could not parse PAT")
	}
	m := pat.ProgramMap()
	if len(m) > 1 {
		return 0, ErrMultiplePrograms
	}
	for _, pid := range m {
		return uint16(pid), nil
	}
	return 0, ErrNoPrograms
}

// Streams returns elementary streams defined in a given MPEG-TS PMT packet.
func Streams(p []byte) ([]gotspsi.PmtElementaryStream, error) {
	payload, err := Payload(p)
	if err != nil {
		return nil, errors.Wrap(err, "cannot get packet payload")
	}
	pmt, err := gotspsi.NewPMT(payload)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse PMT")
	}
	return pmt.ElementaryStreams(), nil
}
