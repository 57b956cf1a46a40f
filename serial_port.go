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
	"io"
	"time"

	serial "github.com/hootrhino/goserial"
)

// OpenSerial opens a serial port with the settings EnOcean transceiver
// modules use on their UART: 57600 baud, 8 data bits, no parity, 1 stop bit.
// The short read timeout keeps the communicator's read loop responsive.
func OpenSerial(address string) (io.ReadWriteCloser, error) {
	port, err := serial.Open(&serial.Config{
		Address:  address,
		BaudRate: 57600,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", address, err)
	}
	return port, nil
}
