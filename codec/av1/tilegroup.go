/*
DESCRIPTION
  tilegroup.go provides parsing of the tile group header that follows the
  frame header in a frame OBU, and the location of each tile's data.

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
	"fmt"

	"github.com/pkg/errors"
)

// ErrTileData is returned when the tile sizes of a tile group do not fit in
// its OBU.
var ErrTileData = errors.New("tile data exceeds OBU")

// TileGroup holds the tile range of a tile group and the offset and size of
// each tile's data within the bitstream submitted for the frame.
type TileGroup struct {
	Start  int
	End    int
	Offset []int
	Size   []int
}

// parseTileGroup parses the tile group header at the read position of r and
// consumes the tile data up to obuEnd. obuStart is the stream offset of the
// OBU and base the number of bytes submitted ahead of it.
func parseTileGroup(r *reader, t *TileInfo, obuStart, obuEnd, base int) (*TileGroup, error) {
	numTiles := t.NumTiles()
	g := &TileGroup{End: numTiles - 1}
	if numTiles > 1 && r.flag() { // tile_start_and_end_present_flag
		n := t.TileColsLog2 + t.TileRowsLog2
		g.Start = r.f(n)
		g.End = r.f(n)
	}
	r.align()
	if g.Start > g.End || g.End >= numTiles {
		return nil, fmt.Errorf("invalid tile range %d to %d of %d", g.Start, g.End, numTiles)
	}

	g.Offset = make([]int, numTiles)
	g.Size = make([]int, numTiles)
	off := base + r.br.Pos() - obuStart
	left := obuEnd - r.br.Pos()
	for i := g.Start; i <= g.End; i++ {
		size := left
		if i != g.End {
			size = r.le(t.TileSizeBytes) + 1
			off += t.TileSizeBytes
			left -= t.TileSizeBytes
		}
		if size > left || left < 0 {
			return nil, fmt.Errorf("%w: tile %d size %d, %d bytes left", ErrTileData, i, size, left)
		}
		g.Offset[i] = off
		g.Size[i] = size
		r.br.EatBits(8 * size)
		off += size
		left -= size
	}

	if r.br.Err() != nil {
		return nil, errors.Wrap(r.br.Err(), "could not read tile group")
	}
	return g, nil
}
