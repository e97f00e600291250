/*
DESCRIPTION
  helpers_test.go provides an MPEG-TS writer for testing the Demuxer.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  Trek Hopton <trek@ausocean.org>
*/

package mts

import "encoding/binary"

type dumbLogger struct{}

func (dl *dumbLogger) Log(l int8, m string, a ...interface{})  {}
func (dl *dumbLogger) SetLevel(l int8)                         {}
func (dl *dumbLogger) Debug(msg string, args ...interface{})   {}
func (dl *dumbLogger) Info(msg string, args ...interface{})    {}
func (dl *dumbLogger) Warning(msg string, args ...interface{}) {}
func (dl *dumbLogger) Error(msg string, args ...interface{})   {}
func (dl *dumbLogger) Fatal(msg string, args ...interface{})   {}

const (
	pmtPID   = 0x1000
	videoPID = 0x100
	audioPID = 0x101
)

// tsPackets splits payload into MPEG-TS packets of the given PID. The PUSI is
// set on the first packet, and the last packet is padded with adaptation field
// stuffing. cc is advanced for each packet.
func tsPackets(pid int, cc *int, payload []byte) []byte {
	var out []byte
	for first := true; first || len(payload) > 0; first = false {
		n := min(len(payload), PacketSize-HeadSize)
		p := make([]byte, HeadSize, PacketSize)
		p[0] = SyncByte
		p[1] = byte(pid>>8) & 0x1f
		if first {
			p[1] |= 0x40
		}
		p[2] = byte(pid)
		if n == PacketSize-HeadSize {
			p[3] = HasPayload<<4 | byte(*cc&0xf)
		} else {
			p[3] = (HasPayload|HasAdaptationField)<<4 | byte(*cc&0xf)
			afl := PacketSize - HeadSize - 1 - n
			p = append(p, byte(afl))
			if afl > 0 {
				p = append(p, 0x00)
				for i := 1; i < afl; i++ {
					p = append(p, 0xff)
				}
			}
		}
		p = append(p, payload[:n]...)
		payload = payload[n:]
		*cc++
		out = append(out, p...)
	}
	return out
}

// psiPacket returns a packet holding the PSI section s, padded with 0xff.
func psiPacket(pid int, s []byte) []byte {
	p := []byte{SyncByte, 0x40 | byte(pid>>8)&0x1f, byte(pid), HasPayload << 4, 0x00}
	p = append(p, s...)
	for len(p) < PacketSize {
		p = append(p, 0xff)
	}
	return p
}

// section completes a PSI section with the given table ID and body, setting
// the section length and appending the CRC.
func section(id byte, body []byte) []byte {
	s := []byte{id, 0, 0}
	l := len(body) + 4
	s[1] = 0xb0 | byte(l>>8)&0x0f
	s[2] = byte(l)
	s = append(s, body...)
	return binary.BigEndian.AppendUint32(s, crc32MPEG(s))
}

func pat() []byte {
	body := []byte{
		0x00, 0x01, // transport_stream_id
		0xc1, 0x00, 0x00,
		0x00, 0x01, // program_number
		0xe0 | pmtPID>>8, pmtPID & 0xff,
	}
	return psiPacket(PatPid, section(0x00, body))
}

// pmt returns a PMT packet with streams given as stream type and PID pairs.
func pmt(streams ...[2]int) []byte {
	body := []byte{
		0x00, 0x01, // program_number
		0xc1, 0x00, 0x00,
		0xe0 | videoPID>>8, videoPID & 0xff, // PCR_PID
		0xf0, 0x00, // program_info_length
	}
	for _, s := range streams {
		body = append(body, byte(s[0]), 0xe0|byte(s[1]>>8), byte(s[1]), 0xf0, 0x00)
	}
	return psiPacket(pmtPID, section(0x02, body))
}

// pesPacket returns a PES packet with a PTS holding data.
func pesPacket(pts uint64, data []byte) []byte {
	p := []byte{0x00, 0x00, 0x01, 0xe0, 0x00, 0x00, 0x80, 0x80, 0x05}
	p = append(p,
		0x21|byte(pts>>29)&0x0e,
		byte(pts>>22),
		byte(pts>>14)|0x01,
		byte(pts>>7),
		byte(pts<<1)|0x01,
	)
	return append(p, data...)
}

func crc32MPEG(b []byte) uint32 {
	crc := uint32(0xffffffff)
	for _, v := range b {
		crc ^= uint32(v) << 24
		for i := 0; i < 8; i++ {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ 0x04c11db7
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// frame returns n bytes of media counting up from b.
func frame(b byte, n int) []byte {
	f := make([]byte, n)
	for i := range f {
		f[i] = b + byte(i)
	}
	return f
}
