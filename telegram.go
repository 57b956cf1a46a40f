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
	"fmt"
)

// Radio telegram data block layout (RADIO_ERP1):
//
//	[RORG] [user data ...] [sender 4 bytes] [status]
//
// Optional data block layout:
//
//	[subTelNum] [destination 4 bytes] [dBm] [security level]
const (
	radioTrailerLen  = 5 // sender(4) + status(1)
	radioMinDataLen  = 1 + radioTrailerLen
	radioOptionalLen = 7
)

// RadioTelegram is a typed view over a RADIO_ERP1 packet. It exposes the
// device-class identifier (RORG), the sender address, the signal status byte
// and the user-data payload that profile decoding operates on.
type RadioTelegram struct {
	pkt         *Packet
	rorg        byte
	userData    []byte
	sender      DeviceID
	status      byte
	subTelNum   byte
	destination DeviceID
	dBm         int
	security    byte
	hasOptional bool
}

// AsRadioTelegram interprets a packet as an ERP1 radio telegram.
func AsRadioTelegram(p *Packet) (*RadioTelegram, error) {
	if p.typ != PacketRadioERP1 {
		return nil, fmt.Errorf("packet type 0x%02X is not a radio telegram", byte(p.typ))
	}
	if len(p.data) < radioMinDataLen {
		return nil, fmt.Errorf("radio telegram too short: %d bytes (minimum %d)",
			len(p.data), radioMinDataLen)
	}

	t := &RadioTelegram{
		pkt:      p,
		rorg:     p.data[0],
		userData: p.data[1 : len(p.data)-radioTrailerLen],
		status:   p.data[len(p.data)-1],
	}
	copy(t.sender[:], p.data[len(p.data)-radioTrailerLen:len(p.data)-1])

	if len(p.optional) >= radioOptionalLen {
		t.hasOptional = true
		t.subTelNum = p.optional[0]
		copy(t.destination[:], p.optional[1:5])
		t.dBm = -int(p.optional[5])
		t.security = p.optional[6]
	}
	return t, nil
}

// NewRadioPacket builds a RADIO_ERP1 packet from a user-data payload. The
// optional block is filled with sub-telegram 3, the given destination,
// maximum dBm and no security, which is what the serial protocol expects
// for outgoing telegrams.
func NewRadioPacket(rorg byte, userData []byte, sender, destination DeviceID, status byte) *Packet {
	data := make([]byte, 0, 1+len(userData)+radioTrailerLen)
	data = append(data, rorg)
	data = append(data, userData...)
	data = append(data, sender[:]...)
	data = append(data, status)

	optional := make([]byte, 0, radioOptionalLen)
	optional = append(optional, 0x03)
	optional = append(optional, destination[:]...)
	optional = append(optional, 0xFF, 0x00)

	return NewPacket(PacketRadioERP1, data, optional)
}

// Packet returns the underlying validated packet.
func (t *RadioTelegram) Packet() *Packet {
	return t.pkt
}

// RORG returns the telegram's radio organization byte.
func (t *RadioTelegram) RORG() byte {
	return t.rorg
}

// UserData returns a copy of the payload between the RORG byte and the
// sender address. This is the buffer profile fields are defined against.
func (t *RadioTelegram) UserData() []byte {
	return append([]byte(nil), t.userData...)
}

// SenderID returns the transmitting module address.
func (t *RadioTelegram) SenderID() DeviceID {
	return t.sender
}

// Status returns the signal status byte.
func (t *RadioTelegram) Status() byte {
	return t.status
}

// RepeaterCount returns the repeater hop count from the status byte.
func (t *RadioTelegram) RepeaterCount() int {
	return int(t.status & 0x0F)
}

// DestinationID returns the destination address from the optional data, or
// the broadcast address when no optional data was received.
func (t *RadioTelegram) DestinationID() DeviceID {
	if !t.hasOptional {
		return BroadcastID
	}
	return t.destination
}

// DBm returns the received signal strength, or 0 when not available.
func (t *RadioTelegram) DBm() int {
	return t.dBm
}

// VLDCommand returns the command nibble of a VLD telegram.
func (t *RadioTelegram) VLDCommand() (byte, bool) {
	if t.rorg != RORGVLD || len(t.userData) < 1 {
		return 0, false
	}
	return t.userData[0] & 0x0F, true
}

// MSC telegram sub-field layout within the user data: the manufacturer id
// occupies bits 0-11, the command nibble bits 12-15.
const (
	mscManufacturerBits = 12
	mscCommandBits      = 4
	mscHeaderBits       = mscManufacturerBits + mscCommandBits
)

// MSCManufacturer returns the manufacturer id of an MSC telegram.
func (t *RadioTelegram) MSCManufacturer() (uint16, bool) {
	if t.rorg != RORGMSC {
		return 0, false
	}
	mid, err := ReadBits(t.userData, 0, mscManufacturerBits)
	if err != nil {
		return 0, false
	}
	return uint16(mid), true
}

// MSCCommand returns the command nibble of an MSC telegram.
func (t *RadioTelegram) MSCCommand() (byte, bool) {
	if t.rorg != RORGMSC {
		return 0, false
	}
	cmd, err := ReadBits(t.userData, mscManufacturerBits, mscCommandBits)
	if err != nil {
		return 0, false
	}
	return byte(cmd), true
}

// String returns a human-readable summary of the telegram.
func (t *RadioTelegram) String() string {
	return fmt.Sprintf("radio rorg=0x%02X %s->%s (%d dBm) data=% X",
		t.rorg, t.sender, t.DestinationID(), t.dBm, t.userData)
}
