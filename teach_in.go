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

// TeachInRequest is the request type carried by a UTE teach-in telegram.
type TeachInRequest byte

const (
	TeachInAdd          TeachInRequest = 0b00
	TeachInDelete       TeachInRequest = 0b01
	TeachInNotSpecified TeachInRequest = 0b10
)

// TeachInResponse is the response code sent back to a teach-in request.
type TeachInResponse byte

const (
	TeachInNotAccepted     TeachInResponse = 0b00
	TeachInAccepted        TeachInResponse = 0b01
	TeachInDeleteAccepted  TeachInResponse = 0b10
	TeachInEEPNotSupported TeachInResponse = 0b11
)

// uteUserDataLen is the fixed user-data length of a UTE telegram:
// DB6 flags, DB5 channel, DB4/DB3 manufacturer, DB2 TYPE, DB1 FUNC, DB0 RORG.
const uteUserDataLen = 7

// UTETeachIn is the parsed form of a universal teach-in telegram. It carries
// the equipment profile the device announces, which is how FUNC and TYPE
// become known for subsequent data telegrams from the same sender.
type UTETeachIn struct {
	Telegram         *RadioTelegram
	Unidirectional   bool
	ResponseExpected bool
	Request          TeachInRequest
	Channel          byte
	Manufacturer     uint16
	RORG             byte
	Func             byte
	Type             byte
}

// ParseUTETeachIn interprets a UTE radio telegram.
func ParseUTETeachIn(t *RadioTelegram) (*UTETeachIn, error) {
	if t.RORG() != RORGUTE {
		return nil, fmt.Errorf("telegram rorg 0x%02X is not a universal teach-in", t.RORG())
	}
	ud := t.userData
	if len(ud) < uteUserDataLen {
		return nil, fmt.Errorf("teach-in telegram too short: %d user-data bytes (need %d)",
			len(ud), uteUserDataLen)
	}

	return &UTETeachIn{
		Telegram:         t,
		Unidirectional:   ud[0]&0x80 == 0,
		ResponseExpected: ud[0]&0x40 == 0,
		Request:          TeachInRequest(ud[0] >> 4 & 0x03),
		Channel:          ud[1],
		Manufacturer:     uint16(ud[3]&0x07)<<8 | uint16(ud[2]),
		Type:             ud[4],
		Func:             ud[5],
		RORG:             ud[6],
	}, nil
}

// ProfileKey returns the registry key of the announced equipment profile.
func (u *UTETeachIn) ProfileKey() ProfileKey {
	return ProfileKey{RORG: u.RORG, Func: u.Func, Type: u.Type}
}

// ResponsePacket builds the teach-in response telegram addressed back to the
// requesting device. DB6 carries the bidirectional flag, the response code
// and the command identifier; the remaining bytes echo the request.
func (u *UTETeachIn) ResponsePacket(sender DeviceID, response TeachInResponse) *Packet {
	ud := make([]byte, uteUserDataLen)
	ud[0] = 0x81 | byte(response)<<4
	copy(ud[1:], u.Telegram.userData[1:uteUserDataLen])
	return NewRadioPacket(RORGUTE, ud, sender, u.Telegram.SenderID(), 0)
}
