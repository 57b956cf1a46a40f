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

import "github.com/sigurn/crc8"

// ESP3 frames carry two independent CRC-8 checksums (header and payload),
// computed with polynomial 0x07, zero initial value, no reflection.
var crc8Table = crc8.MakeTable(crc8.Params{
	Poly:   0x07,
	Init:   0x00,
	RefIn:  false,
	RefOut: false,
	XorOut: 0x00,
	Check:  0xF4,
	Name:   "CRC-8/ESP3",
})

// CRC8 calculates the ESP3 CRC-8 checksum over the given bytes.
func CRC8(data []byte) byte {
	return crc8.Checksum(data, crc8Table)
}
