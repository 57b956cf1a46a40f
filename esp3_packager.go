// Copyright (C) 2024  wwhai
//
// This program is free software; you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License along
// with this program; if not, see <https://www.gnu.org/licenses/>.

package enocean

import (
	"bytes"
	"errors"
	"fmt"
)

// ESP3 frame layout:
//
//	[sync 0x55] [dataLen hi] [dataLen lo] [optLen] [type] [CRC8 header]
//	[data ...] [optional ...] [CRC8 data+optional]
const (
	syncByte      = 0x55
	headerLen     = 4 // dataLen(2) + optLen(1) + type(1)
	frameOverhead = 1 + headerLen + 1 + 1 // sync + header + header CRC + payload CRC

	maxDataLength     = 0xFFFF
	maxOptionalLength = 0xFF
)

var (
	// ErrIncompleteFrame signals that more bytes are needed before a frame
	// can be parsed. It is a retry condition, not a failure.
	ErrIncompleteFrame = errors.New("incomplete frame")
	// ErrInvalidFrame signals a checksum mismatch. The failed sync byte is
	// consumed and scanning resumes at the next byte.
	ErrInvalidFrame = errors.New("invalid frame")
)

// ESP3Packager converts between byte windows and validated Packets.
type ESP3Packager struct{}

// NewESP3Packager creates a new ESP3 frame packager.
func NewESP3Packager() *ESP3Packager {
	return &ESP3Packager{}
}

// Pack builds a complete ESP3 frame for the given packet type and payload.
func (p *ESP3Packager) Pack(typ PacketType, data, optional []byte) ([]byte, error) {
	if len(data) > maxDataLength {
		return nil, fmt.Errorf("data too long: %d bytes (max %d)", len(data), maxDataLength)
	}
	if len(optional) > maxOptionalLength {
		return nil, fmt.Errorf("optional data too long: %d bytes (max %d)", len(optional), maxOptionalLength)
	}

	frame := make([]byte, 0, frameOverhead+len(data)+len(optional))
	frame = append(frame,
		syncByte,
		byte(len(data)>>8),
		byte(len(data)),
		byte(len(optional)),
		byte(typ),
	)
	frame = append(frame, CRC8(frame[1:5]))
	frame = append(frame, data...)
	frame = append(frame, optional...)
	frame = append(frame, CRC8(frame[6:]))
	return frame, nil
}

// PackPacket builds the ESP3 frame for an existing Packet.
func (p *ESP3Packager) PackPacket(pkt *Packet) ([]byte, error) {
	return p.Pack(pkt.typ, pkt.data, pkt.optional)
}

// TryUnpack scans buf for the next complete ESP3 frame.
//
// It returns the parsed Packet and the number of bytes consumed from the
// front of buf. On ErrIncompleteFrame the caller must keep the unconsumed
// bytes and retry once more input arrives; consumed may still be non-zero,
// because garbage before the sync marker is discarded. On ErrInvalidFrame
// exactly the bytes up to and including the failed sync marker are consumed,
// so scanning resumes at the following byte.
func (p *ESP3Packager) TryUnpack(buf []byte) (*Packet, int, error) {
	start := bytes.IndexByte(buf, syncByte)
	if start < 0 {
		// Nothing resembling a frame; the whole window is garbage.
		return nil, len(buf), ErrIncompleteFrame
	}

	rest := buf[start:]
	if len(rest) < 1+headerLen+1 {
		return nil, start, ErrIncompleteFrame
	}

	if rest[5] != CRC8(rest[1:5]) {
		// Either a corrupted header or a stray 0x55 inside other data.
		return nil, start + 1, fmt.Errorf("%w: header checksum mismatch", ErrInvalidFrame)
	}

	dataLen := int(rest[1])<<8 | int(rest[2])
	optLen := int(rest[3])
	total := frameOverhead + dataLen + optLen
	if len(rest) < total {
		return nil, start, ErrIncompleteFrame
	}

	payload := rest[6 : 6+dataLen+optLen]
	if rest[total-1] != CRC8(payload) {
		return nil, start + 1, fmt.Errorf("%w: payload checksum mismatch", ErrInvalidFrame)
	}

	pkt := NewPacket(PacketType(rest[4]), payload[:dataLen], payload[dataLen:])
	return pkt, start + total, nil
}
