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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// uteRequest builds a UTE teach-in telegram announcing profile A5-02-05.
func uteRequest(t *testing.T, sender DeviceID, flags byte) *RadioTelegram {
	t.Helper()
	ud := []byte{
		flags,
		0x01,       // channel
		0x79, 0x00, // manufacturer 0x079, little end first
		0x05, // TYPE
		0x02, // FUNC
		0xA5, // RORG
	}
	pkt := NewRadioPacket(RORGUTE, ud, sender, BroadcastID, 0x00)
	tg, err := AsRadioTelegram(pkt)
	require.NoError(t, err)
	return tg
}

func TestParseUTETeachIn(t *testing.T) {
	sender := DeviceID{0x01, 0x82, 0x5D, 0xAB}

	// Bidirectional, response expected, teach-in add request.
	ute, err := ParseUTETeachIn(uteRequest(t, sender, 0x80))
	require.NoError(t, err)

	assert.False(t, ute.Unidirectional)
	assert.True(t, ute.ResponseExpected)
	assert.Equal(t, TeachInAdd, ute.Request)
	assert.Equal(t, byte(0x01), ute.Channel)
	assert.Equal(t, uint16(0x079), ute.Manufacturer)
	assert.Equal(t, byte(0xA5), ute.RORG)
	assert.Equal(t, byte(0x02), ute.Func)
	assert.Equal(t, byte(0x05), ute.Type)
	assert.Equal(t, ProfileKey{RORG: 0xA5, Func: 0x02, Type: 0x05}, ute.ProfileKey())
}

func TestParseUTETeachIn_Flags(t *testing.T) {
	sender := DeviceID{0x01, 0x82, 0x5D, 0xAB}

	// Unidirectional, no response expected, delete request.
	ute, err := ParseUTETeachIn(uteRequest(t, sender, 0x50))
	require.NoError(t, err)
	assert.True(t, ute.Unidirectional)
	assert.False(t, ute.ResponseExpected)
	assert.Equal(t, TeachInDelete, ute.Request)

	ute, err = ParseUTETeachIn(uteRequest(t, sender, 0xA0))
	require.NoError(t, err)
	assert.Equal(t, TeachInNotSpecified, ute.Request)
}

func TestParseUTETeachIn_Errors(t *testing.T) {
	// Wrong RORG.
	pkt := NewRadioPacket(RORGBS4, []byte{0, 0, 0, 0}, DeviceID{1, 2, 3, 4}, BroadcastID, 0)
	tg, err := AsRadioTelegram(pkt)
	require.NoError(t, err)
	_, err = ParseUTETeachIn(tg)
	assert.Error(t, err)

	// Truncated user data.
	pkt = NewRadioPacket(RORGUTE, []byte{0x80, 0x01}, DeviceID{1, 2, 3, 4}, BroadcastID, 0)
	tg, err = AsRadioTelegram(pkt)
	require.NoError(t, err)
	_, err = ParseUTETeachIn(tg)
	assert.Error(t, err)
}

func TestUTETeachIn_ResponsePacket(t *testing.T) {
	device := DeviceID{0x01, 0x82, 0x5D, 0xAB}
	module := DeviceID{0xDE, 0xAD, 0xBE, 0xEF}

	ute, err := ParseUTETeachIn(uteRequest(t, device, 0x80))
	require.NoError(t, err)

	pkt := ute.ResponsePacket(module, TeachInAccepted)
	tg, err := AsRadioTelegram(pkt)
	require.NoError(t, err)

	assert.Equal(t, RORGUTE, tg.RORG())
	assert.Equal(t, module, tg.SenderID())
	assert.Equal(t, device, tg.DestinationID(), "response must be addressed to the requester")

	ud := tg.UserData()
	require.Len(t, ud, 7)
	// Bidirectional, command 1 (response), accepted.
	assert.Equal(t, byte(0x91), ud[0])
	// The profile announcement is echoed back.
	assert.Equal(t, []byte{0x01, 0x79, 0x00, 0x05, 0x02, 0xA5}, ud[1:])
}
