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

// Package enocean implements the EnOcean Serial Protocol 3 (ESP3) framing
// layer and a profile-driven codec for radio telegram payloads.
package enocean

import (
	"bytes"
	"fmt"
)

// PacketType identifies the ESP3 packet type carried in the frame header.
type PacketType byte

// ESP3 packet types.
const (
	PacketRadioERP1        PacketType = 0x01
	PacketResponse         PacketType = 0x02
	PacketRadioSubTel      PacketType = 0x03
	PacketEvent            PacketType = 0x04
	PacketCommonCommand    PacketType = 0x05
	PacketSmartAckCommand  PacketType = 0x06
	PacketRemoteManCommand PacketType = 0x07
	PacketRadioMessage     PacketType = 0x09
	PacketRadioERP2        PacketType = 0x0A
)

// Radio telegram RORG bytes (first byte of a RADIO_ERP1 data block).
const (
	RORGRPS byte = 0xF6 // Repeated switch communication
	RORGBS1 byte = 0xD5 // 1-byte sensor communication
	RORGBS4 byte = 0xA5 // 4-byte sensor communication
	RORGVLD byte = 0xD2 // Variable length data
	RORGMSC byte = 0xD1 // Manufacturer specific communication
	RORGADT byte = 0xA6 // Addressing destination telegram
	RORGUTE byte = 0xD4 // Universal teach-in
)

// DeviceID is a 4-byte EnOcean module address.
type DeviceID [4]byte

// BroadcastID addresses all listening devices.
var BroadcastID = DeviceID{0xFF, 0xFF, 0xFF, 0xFF}

// String formats the ID as colon-separated hex, e.g. "01:82:5D:AB".
func (id DeviceID) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X", id[0], id[1], id[2], id[3])
}

// Uint32 returns the ID as a big-endian integer.
func (id DeviceID) Uint32() uint32 {
	return uint32(id[0])<<24 | uint32(id[1])<<16 | uint32(id[2])<<8 | uint32(id[3])
}

// Packet is one validated ESP3 frame payload. A Packet is immutable once
// framed: constructors copy their inputs and accessors return copies, so a
// Packet may be shared between goroutines without synchronization.
type Packet struct {
	typ      PacketType
	data     []byte
	optional []byte
}

// NewPacket creates a Packet of the given type. Data and optional-data are
// copied; nil slices are treated as empty.
func NewPacket(typ PacketType, data, optional []byte) *Packet {
	return &Packet{
		typ:      typ,
		data:     append([]byte(nil), data...),
		optional: append([]byte(nil), optional...),
	}
}

// Type returns the ESP3 packet type.
func (p *Packet) Type() PacketType {
	return p.typ
}

// Data returns a copy of the data block.
func (p *Packet) Data() []byte {
	return append([]byte(nil), p.data...)
}

// Optional returns a copy of the optional-data block.
func (p *Packet) Optional() []byte {
	return append([]byte(nil), p.optional...)
}

// Equal reports whether two packets carry the same type and payload.
func (p *Packet) Equal(other *Packet) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.typ == other.typ &&
		bytes.Equal(p.data, other.data) &&
		bytes.Equal(p.optional, other.optional)
}

// String returns a short human-readable summary of the packet.
func (p *Packet) String() string {
	return fmt.Sprintf("packet type=0x%02X data=% X optional=% X",
		byte(p.typ), p.data, p.optional)
}

// ReturnCode is the status byte of an ESP3 RESPONSE packet.
type ReturnCode byte

// Controller response codes.
const (
	RetOK              ReturnCode = 0x00
	RetError           ReturnCode = 0x01
	RetNotSupported    ReturnCode = 0x02
	RetWrongParam      ReturnCode = 0x03
	RetOperationDenied ReturnCode = 0x04
)

// String returns the conventional name of the return code.
func (r ReturnCode) String() string {
	switch r {
	case RetOK:
		return "OK"
	case RetError:
		return "ERROR"
	case RetNotSupported:
		return "NOT_SUPPORTED"
	case RetWrongParam:
		return "WRONG_PARAM"
	case RetOperationDenied:
		return "OPERATION_DENIED"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", byte(r))
	}
}

// Response is a typed view over a RESPONSE packet from the controller.
type Response struct {
	Code ReturnCode
	Data []byte
}

// AsResponse interprets a packet as a controller response.
func AsResponse(p *Packet) (*Response, error) {
	if p.typ != PacketResponse {
		return nil, fmt.Errorf("packet type 0x%02X is not a response", byte(p.typ))
	}
	if len(p.data) < 1 {
		return nil, fmt.Errorf("response packet has no return code")
	}
	return &Response{
		Code: ReturnCode(p.data[0]),
		Data: append([]byte(nil), p.data[1:]...),
	}, nil
}

// Event is a typed view over an EVENT packet from the controller.
type Event struct {
	Code byte
	Data []byte
}

// AsEvent interprets a packet as a controller event.
func AsEvent(p *Packet) (*Event, error) {
	if p.typ != PacketEvent {
		return nil, fmt.Errorf("packet type 0x%02X is not an event", byte(p.typ))
	}
	if len(p.data) < 1 {
		return nil, fmt.Errorf("event packet has no event code")
	}
	return &Event{
		Code: p.data[0],
		Data: append([]byte(nil), p.data[1:]...),
	}, nil
}
