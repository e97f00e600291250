/*
DESCRIPTION
  obu.go provides OBU types, the OBU header and a splitter that divides a low
  overhead bitstream into temporal units.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package av1

import (
	"github.com/pkg/errors"

	"github.com/ausocean/hwdec/codec/bits"
)

// OBUType is the type of an OBU, see section 6.2.2.
type OBUType int

// OBU types.
const (
	OBUSequenceHeader       OBUType = 1
	OBUTemporalDelimiter    OBUType = 2
	OBUFrameHeader          OBUType = 3
	OBUTileGroup            OBUType = 4
	OBUMetadata             OBUType = 5
	OBUFrame                OBUType = 6
	OBURedundantFrameHeader OBUType = 7
	OBUTileList             OBUType = 8
	OBUPadding              OBUType = 15
)

func (t OBUType) String() string {
	switch t {
	case OBUSequenceHeader:
		return "OBU_SEQUENCE_HEADER"
	case OBUTemporalDelimiter:
		return "OBU_TEMPORAL_DELIMITER"
	case OBUFrameHeader:
		return "OBU_FRAME_HEADER"
	case OBUTileGroup:
		return "OBU_TILE_GROUP"
	case OBUMetadata:
		return "OBU_METADATA"
	case OBUFrame:
		return "OBU_FRAME"
	case OBURedundantFrameHeader:
		return "OBU_REDUNDANT_FRAME_HEADER"
	case OBUTileList:
		return "OBU_TILE_LIST"
	case OBUPadding:
		return "OBU_PADDING"
	default:
		return "OBU_RESERVED"
	}
}

// ErrShortOBU is returned by NextTemporalUnit when an OBU extends past the
// end of the data.
var ErrShortOBU = errors.New("OBU extends past end of data")

// OBUHeader is an obu_header() and the OBU size that follows it.
type OBUHeader struct {
	Type         OBUType
	Extension    bool
	HasSizeField bool
	TemporalID   int
	SpatialID    int

	// Size is the size of the OBU payload in bytes. It is -1 when the header
	// has no size field.
	Size int
}

// readOBUHeader reads an OBU header and, if present, its size field.
func readOBUHeader(r *reader) OBUHeader {
	var h OBUHeader
	r.f(1) // obu_forbidden_bit
	h.Type = OBUType(r.f(4))
	h.Extension = r.flag()
	h.HasSizeField = r.flag()
	r.f(1) // obu_reserved_1bit
	if h.Extension {
		h.TemporalID = r.f(3)
		h.SpatialID = r.f(2)
		r.f(3) // extension_header_reserved_3bits
	}
	h.Size = -1
	if h.HasSizeField {
		h.Size = int(r.uleb128())
	}
	return h
}

// NextTemporalUnit returns the length of the temporal unit at the start of b,
// i.e. the bytes up to the second temporal delimiter OBU, or all of b if
// there is none. Every OBU must carry a size field.
func NextTemporalUnit(b []byte) (int, error) {
	off := 0
	for off < len(b) {
		r := newReader(bits.NewReader(b[off:]))
		h := readOBUHeader(r)
		if r.br.Err() != nil {
			return 0, ErrShortOBU
		}
		if !h.HasSizeField {
			return 0, errors.New("OBU has no size field")
		}
		if h.Type == OBUTemporalDelimiter && off != 0 {
			return off, nil
		}
		n := r.br.Pos() + h.Size
		if off+n > len(b) {
			return 0, ErrShortOBU
		}
		off += n
	}
	return off, nil
}
