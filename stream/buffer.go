/*
DESCRIPTION
  buffer.go provides the buffer header exchanged with the client on the input
  (compressed) and output (decoded picture) sides of the decoder.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package stream provides the buffer headers and the per session decode state
// shared by the codec parsers and the decode pump.
package stream

import "github.com/ausocean/hwdec/hw"

// NoTimestamp marks a timestamp as unknown.
const NoTimestamp int64 = -1

// Buffer is a buffer header. On the input side Data[:Filled] holds compressed
// bitstream. On the output side Data receives a downloaded picture and Filled
// its size.
type Buffer struct {
	Data      []byte
	Filled    int
	Timestamp int64
	EOS       bool

	// Picture is a decoded picture parked on an input header after its frame
	// finished, waiting to be copied to an output buffer. The picture is
	// owned by the header until it is taken back for reuse or freed.
	Picture hw.Buffer
}

// NewBuffer returns a Buffer with an allocation of n bytes.
func NewBuffer(n int) *Buffer {
	return &Buffer{Data: make([]byte, n), Timestamp: NoTimestamp}
}

// Alloc returns the allocation length of the buffer.
func (b *Buffer) Alloc() int { return len(b.Data) }

// Bytes returns the filled region of the buffer.
func (b *Buffer) Bytes() []byte { return b.Data[:b.Filled] }

// Fill copies p into the buffer and returns the number of bytes copied.
func (b *Buffer) Fill(p []byte) int {
	b.Filled = copy(b.Data, p)
	return b.Filled
}
