/*
DESCRIPTION
  picture.go provides the MPEG-2 picture decode parameters passed to the
  hardware codec, and the default quantiser matrices.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package mpeg2

import "github.com/ausocean/hwdec/hw"

// Picture coding types.
const (
	CodingTypeI = 1
	CodingTypeP = 2
	CodingTypeB = 3
)

// Picture structures.
const (
	StructureTopField    = 1
	StructureBottomField = 2
	StructureFrame       = 3
)

// Picture holds the parameters for decoding one picture. Fields follow the
// picture header and picture coding extension of ISO/IEC 13818-2.
type Picture struct {
	CodingType               int
	Structure                int
	FramePredFrameDCT        bool
	QScaleType               bool
	AlternateScan            bool
	IntraVLCFormat           bool
	ConcealmentMotionVectors bool
	IntraDCPrecision         int

	// FCode is indexed by [forward/backward][horizontal/vertical] and holds
	// f_code minus one.
	FCode [2][2]int

	TopFieldFirst         bool
	FullPelForwardVector  bool
	FullPelBackwardVector bool
	NumSlices             int

	// Quantiser matrices in raster order.
	IntraMatrix    [64]uint8
	NonIntraMatrix [64]uint8

	// Ref holds the forward and backward reference pictures.
	Ref [2]hw.Buffer
}

// Profile implements hw.Picture.
func (p *Picture) Profile() hw.Profile { return hw.ProfileMPEG2Main }

// zigzag maps a coefficient's position in zigzag scan order to its raster
// position.
var zigzag = [64]int{
	0, 1, 8, 16, 9, 2, 3, 10,
	17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34,
	27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36,
	29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46,
	53, 60, 61, 54, 47, 55, 62, 63,
}

// defaultIntraMatrix is the default intra quantiser matrix in raster order.
var defaultIntraMatrix = [64]uint8{
	8, 16, 19, 22, 26, 27, 29, 34,
	16, 16, 22, 24, 27, 29, 34, 37,
	19, 22, 26, 27, 29, 34, 34, 38,
	22, 22, 26, 27, 29, 34, 37, 40,
	22, 26, 27, 29, 32, 35, 40, 48,
	26, 27, 29, 32, 35, 40, 48, 58,
	26, 27, 29, 34, 38, 46, 56, 69,
	27, 29, 35, 38, 46, 56, 69, 83,
}

func defaultNonIntraMatrix() (m [64]uint8) {
	for i := range m {
		m[i] = 16
	}
	return m
}
