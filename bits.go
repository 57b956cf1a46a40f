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
	"errors"
	"fmt"
)

var (
	// ErrBitRange is returned when a bit range does not fit in the buffer.
	ErrBitRange = errors.New("bit range exceeds buffer")
	// ErrBitOverflow is returned when a value does not fit in the field width.
	ErrBitOverflow = errors.New("value exceeds field width")
)

// ReadBits extracts an unsigned integer of `width` bits starting at bit
// `offset` from buf. Bits are numbered MSB-first within each byte, so a field
// may span byte boundaries. The maximum supported width is 64 bits.
func ReadBits(buf []byte, offset, width int) (uint64, error) {
	if width < 1 || width > 64 {
		return 0, fmt.Errorf("invalid bit width %d (must be 1-64)", width)
	}
	if offset < 0 || offset+width > len(buf)*8 {
		return 0, fmt.Errorf("%w: offset=%d width=%d buffer=%d bits",
			ErrBitRange, offset, width, len(buf)*8)
	}

	var value uint64
	for i := 0; i < width; i++ {
		bit := offset + i
		value <<= 1
		value |= uint64(buf[bit/8]>>(7-uint(bit%8))) & 0x01
	}
	return value, nil
}

// WriteBits stores the low `width` bits of value into buf starting at bit
// `offset`, MSB-first. The value must fit in the field width; callers that
// want clamping must clamp before calling.
func WriteBits(buf []byte, offset, width int, value uint64) error {
	if width < 1 || width > 64 {
		return fmt.Errorf("invalid bit width %d (must be 1-64)", width)
	}
	if offset < 0 || offset+width > len(buf)*8 {
		return fmt.Errorf("%w: offset=%d width=%d buffer=%d bits",
			ErrBitRange, offset, width, len(buf)*8)
	}
	if width < 64 && value > (uint64(1)<<uint(width))-1 {
		return fmt.Errorf("%w: value=%d width=%d", ErrBitOverflow, value, width)
	}

	for i := 0; i < width; i++ {
		bit := offset + i
		mask := byte(1) << (7 - uint(bit%8))
		if value>>(uint(width-1-i))&0x01 == 1 {
			buf[bit/8] |= mask
		} else {
			buf[bit/8] &^= mask
		}
	}
	return nil
}

// maxForWidth returns the largest value representable in `width` bits.
func maxForWidth(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(width)) - 1
}
