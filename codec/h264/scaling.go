/*
DESCRIPTION
  scaling.go provides parsing of H.264 scaling lists and the default scaling
  matrices of tables 7-3 and 7-4.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package h264

import "github.com/ausocean/hwdec/codec/bits"

// Default scaling matrices in raster order.
var (
	default4x4Intra = [16]uint8{
		6, 13, 20, 28,
		13, 20, 28, 32,
		20, 28, 32, 37,
		28, 32, 37, 42,
	}
	default4x4Inter = [16]uint8{
		10, 14, 20, 24,
		14, 20, 24, 27,
		20, 24, 27, 30,
		24, 27, 30, 34,
	}
	default8x8Intra = [64]uint8{
		6, 10, 13, 16, 18, 23, 25, 27,
		10, 11, 16, 18, 23, 25, 27, 29,
		13, 16, 18, 23, 25, 27, 29, 31,
		16, 18, 23, 25, 27, 29, 31, 33,
		18, 23, 25, 27, 29, 31, 33, 36,
		23, 25, 27, 29, 31, 33, 36, 38,
		25, 27, 29, 31, 33, 36, 38, 40,
		27, 29, 31, 33, 36, 38, 40, 42,
	}
	default8x8Inter = [64]uint8{
		9, 13, 15, 17, 19, 21, 22, 24,
		13, 13, 17, 19, 21, 22, 24, 25,
		15, 17, 19, 21, 22, 24, 25, 27,
		17, 19, 21, 22, 24, 25, 27, 28,
		19, 21, 22, 24, 25, 27, 28, 30,
		21, 22, 24, 25, 27, 28, 30, 32,
		22, 24, 25, 27, 28, 30, 32, 33,
		24, 25, 27, 28, 30, 32, 33, 35,
	}
)

// Zigzag scans mapping scan position to raster position.
var (
	zigzag4x4 = [16]int{0, 1, 4, 8, 5, 2, 3, 6, 9, 12, 13, 10, 7, 11, 14, 15}
	zigzag8x8 = [64]int{
		0, 1, 8, 16, 9, 2, 3, 10,
		17, 24, 32, 25, 18, 11, 4, 5,
		12, 19, 26, 33, 40, 48, 41, 34,
		27, 20, 13, 6, 7, 14, 21, 28,
		35, 42, 49, 56, 57, 50, 43, 36,
		29, 22, 15, 23, 30, 37, 44, 51,
		58, 59, 52, 45, 38, 31, 39, 46,
		53, 60, 61, 54, 47, 55, 62, 63,
	}
)

// flatLists returns the Flat_4x4_16 and Flat_8x8_16 scaling lists.
func flatLists() (l4 [6][16]uint8, l8 [6][64]uint8) {
	for i := range l4 {
		for j := range l4[i] {
			l4[i][j] = 16
		}
	}
	for i := range l8 {
		for j := range l8[i] {
			l8[i][j] = 16
		}
	}
	return l4, l8
}

// scalingList reads a scaling list present flag and, if set, the
// scaling_list() syntax structure of section 7.3.2.1.1.1 into list in raster
// order. If the list is not present it is copied from fallback. If
// useDefaultScalingMatrixFlag is inferred the default list def is used.
func scalingList(r *bits.RBSP, list, def, fallback []uint8) {
	if !r.Flag() {
		copy(list, fallback)
		return
	}

	scan := zigzag8x8[:]
	if len(list) == 16 {
		scan = zigzag4x4[:]
	}

	last, next := 8, 8
	for i := range list {
		if next != 0 {
			delta := r.SE()
			next = (last + delta + 256) % 256
			if i == 0 && next == 0 {
				copy(list, def)
				return
			}
		}
		if next != 0 {
			list[scan[i]] = uint8(next)
		} else {
			list[scan[i]] = uint8(last)
		}
		last = int(list[scan[i]])
	}
}
