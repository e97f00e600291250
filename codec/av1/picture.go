/*
DESCRIPTION
  picture.go provides the AV1 picture parameters given to the hardware codec
  with each frame.

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

import "github.com/ausocean/hwdec/hw"

// Picture holds the parameters of one frame: the active sequence header, the
// frame header, the tile layout of the frame data and the pictures in the
// eight reference slots.
type Picture struct {
	Seq       *SequenceHeader
	Frame     *FrameHeader
	TileGroup TileGroup
	Ref       [numRefFrames]hw.Buffer
}

// Profile implements hw.Picture.
func (p *Picture) Profile() hw.Profile { return hw.ProfileAV1Main }
