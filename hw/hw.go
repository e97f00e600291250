/*
DESCRIPTION
  hw.go defines the interfaces to the hardware video decoder and picture
  buffer allocator that the bitstream parsers drive.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package hw defines the hardware decode collaborators: a Device that creates
// decode sessions and picture buffers, the Codec session itself and the
// Buffers it decodes into.
package hw

import "github.com/pkg/errors"

// ErrInsufficientResources is returned when a device cannot create a codec
// session or picture buffer, e.g. for an unsupported profile or when memory is
// exhausted.
var ErrInsufficientResources = errors.New("insufficient resources")

// Profile identifies the codec profile a session decodes.
type Profile int

// Supported profiles.
const (
	ProfileUnknown Profile = iota
	ProfileMPEG2Main
	ProfileH264ConstrainedBaseline
	ProfileH264Baseline
	ProfileH264Main
	ProfileH264Extended
	ProfileH264High
	ProfileHEVCMain
	ProfileAV1Main
)

func (p Profile) String() string {
	switch p {
	case ProfileMPEG2Main:
		return "MPEG2Main"
	case ProfileH264ConstrainedBaseline:
		return "H264ConstrainedBaseline"
	case ProfileH264Baseline:
		return "H264Baseline"
	case ProfileH264Main:
		return "H264Main"
	case ProfileH264Extended:
		return "H264Extended"
	case ProfileH264High:
		return "H264High"
	case ProfileHEVCMain:
		return "HEVCMain"
	case ProfileAV1Main:
		return "AV1Main"
	default:
		return "Unknown"
	}
}

// ChromaFormat is the chroma subsampling of decoded pictures.
type ChromaFormat int

// Chroma formats.
const (
	Chroma420 ChromaFormat = iota
	Chroma400
	Chroma422
	Chroma444
)

// Format is the memory layout of a picture buffer.
type Format int

// Buffer formats.
const (
	FormatNV12 Format = iota // 8 bit luma plane then interleaved CbCr plane.
	FormatP010               // 16 bit container NV12 layout.
)

// CodecTemplate describes a decode session to create.
type CodecTemplate struct {
	Profile             Profile
	Level               int
	ChromaFormat        ChromaFormat
	Width               int
	Height              int
	MaxReferences       int
	ExpectChunkedDecode bool
}

// BufferTemplate describes a picture buffer to create.
type BufferTemplate struct {
	Width      int
	Height     int
	Format     Format
	Interlaced bool
}

// Picture holds the codec specific decode parameters for a frame, as passed
// to the Codec with each call.
type Picture interface {
	Profile() Profile
}

// Buffer is a decoded picture buffer owned by the device.
type Buffer interface {
	Width() int
	Height() int

	// Destroy releases the buffer. Calls after the first have no effect.
	Destroy()
}

// Codec is a hardware decode session.
type Codec interface {
	// BeginFrame starts decoding a frame into target.
	BeginFrame(target Buffer, pic Picture) error

	// DecodeBitstream submits compressed data for the frame being decoded
	// into target. The segments are concatenated by the session.
	DecodeBitstream(target Buffer, pic Picture, data ...[]byte) error

	// EndFrame completes decoding of the frame in target.
	EndFrame(target Buffer, pic Picture) error

	// Destroy releases the session.
	Destroy()
}

// Device creates decode sessions and picture buffers, and moves picture data.
type Device interface {
	CreateCodec(t CodecTemplate) (Codec, error)
	CreateBuffer(t BufferTemplate) (Buffer, error)

	// PreferredFormat returns the buffer format decoded pictures should use.
	PreferredFormat() Format

	// CopyPlane copies a width by height region of plane from src to dst.
	// Plane 0 is luma and plane 1 the interleaved chroma, where width and
	// height count chroma sample pairs.
	CopyPlane(dst, src Buffer, plane, width, height int) error

	// Download copies the picture in b to dst, luma plane first, and returns
	// the number of bytes written.
	Download(b Buffer, dst []byte) (int, error)
}
