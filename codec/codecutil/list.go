/*
NAME
  list.go

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package codecutil provides codec names and helpers shared by the codec
// packages.
package codecutil

// All codecs that may be decoded.
// When adding or removing a codec from this list, the IsValid function below must be updated.
const (
	MPEG2 = "mpeg2"
	H264  = "h264" // h264 Annex B bytestream.
	H265  = "h265" // h265 Annex B bytestream.
	AV1   = "av1"  // AV1 low overhead bitstream of OBUs.
)

// IsValid checks if a string is a known and valid codec in the right format.
func IsValid(s string) bool {
	switch s {
	case MPEG2, H264, H265, AV1:
		return true
	default:
		return false
	}
}

// StreamType returns the MPEG-TS PMT stream type carrying codec c, and false
// if the codec has no stream type.
func StreamType(c string) (uint8, bool) {
	switch c {
	case MPEG2:
		return 0x02, true
	case H264:
		return 0x1b, true
	case H265:
		return 0x24, true
	case AV1:
		return 0x06, true
	default:
		return 0, false
	}
}
