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

// This file carries a small catalog of standard equipment profiles defined
// as data. It is sample coverage for common device classes, not a complete
// EEP database; applications supply their own Profile sets to NewRegistry
// the same way.

// ProfileF60201 describes the F6-02-01 rocker switch (2 rockers).
func ProfileF60201() *Profile {
	rocker := []EnumRange{
		{Low: 0, High: 0, Label: "AI"},
		{Low: 1, High: 1, Label: "AO"},
		{Low: 2, High: 2, Label: "BI"},
		{Low: 3, High: 3, Label: "BO"},
	}
	return &Profile{
		Key:        ProfileKey{RORG: RORGRPS, Func: 0x02, Type: 0x01},
		Name:       "Rocker Switch, 2 Rocker",
		DataLength: 1,
		Fields: []FieldSpec{
			{Name: "R1", Description: "Rocker 1st action", Offset: 0, Size: 3, Enum: rocker},
			{Name: "EB", Description: "Energy bow", Offset: 3, Size: 1, Enum: []EnumRange{
				{Low: 0, High: 0, Label: "released"},
				{Low: 1, High: 1, Label: "pressed"},
			}},
			{Name: "R2", Description: "Rocker 2nd action", Offset: 4, Size: 3, Enum: rocker},
			{Name: "SA", Description: "2nd action valid", Offset: 7, Size: 1, Bool: true},
		},
	}
}

// ProfileA50205 describes the A5-02-05 temperature sensor, 0..40 °C.
// Its raw range is inverted: raw 255 maps to 0 °C and raw 0 to 40 °C.
func ProfileA50205() *Profile {
	return &Profile{
		Key:        ProfileKey{RORG: RORGBS4, Func: 0x02, Type: 0x05},
		Name:       "Temperature Sensor Range 0C to +40C",
		DataLength: 4,
		Fields: []FieldSpec{
			{Name: "TMP", Description: "Temperature", Offset: 16, Size: 8, Unit: "C",
				Scale: &ScaleSpec{RawMin: 255, RawMax: 0, Min: 0, Max: 40}},
			{Name: "LRNB", Description: "Learn bit", Offset: 28, Size: 1, Enum: []EnumRange{
				{Low: 0, High: 0, Label: "teach-in"},
				{Low: 1, High: 1, Label: "data"},
			}},
		},
	}
}

// ProfileA50401 describes the A5-04-01 temperature and humidity sensor.
func ProfileA50401() *Profile {
	return &Profile{
		Key:        ProfileKey{RORG: RORGBS4, Func: 0x04, Type: 0x01},
		Name:       "Temperature and Humidity Sensor",
		DataLength: 4,
		Fields: []FieldSpec{
			{Name: "HUM", Description: "Relative humidity", Offset: 8, Size: 8, Unit: "%",
				Scale: &ScaleSpec{RawMin: 0, RawMax: 250, Min: 0, Max: 100}},
			{Name: "TMP", Description: "Temperature", Offset: 16, Size: 8, Unit: "C",
				Scale: &ScaleSpec{RawMin: 0, RawMax: 250, Min: 0, Max: 40}},
			{Name: "LRNB", Description: "Learn bit", Offset: 28, Size: 1, Enum: []EnumRange{
				{Low: 0, High: 0, Label: "teach-in"},
				{Low: 1, High: 1, Label: "data"},
			}},
			{Name: "TSN", Description: "Temperature sensor available", Offset: 30, Size: 1, Bool: true},
		},
	}
}

// ProfileD20101 describes the D2-01-01 electronic switch actuator status
// telegram (CMD 0x04, actuator status response).
func ProfileD20101() *Profile {
	return &Profile{
		Key:        ProfileKey{RORG: RORGVLD, Func: 0x01, Type: 0x01},
		Name:       "Electronic Switch with Energy Measurement",
		DataLength: 3,
		Fields: []FieldSpec{
			{Name: "CMD", Description: "Command identifier", Offset: 4, Size: 4},
			{Name: "IO", Description: "I/O channel", Offset: 11, Size: 5},
			{Name: "OV", Description: "Output value", Offset: 17, Size: 7, Unit: "%",
				Scale: &ScaleSpec{RawMin: 0, RawMax: 100, Min: 0, Max: 100}},
		},
	}
}

// VentilAirSec manufacturer id used by MSC ventilation units.
const ManufacturerVentilAirSec uint16 = 0x079

// ProfileMSCVentilAirSecControl describes the VentilAirSec MSC control
// command (command nibble 0). Field offsets include the 16-bit MSC prefix
// (manufacturer id + command) that the codec reads and writes itself.
func ProfileMSCVentilAirSecControl() *Profile {
	return &Profile{
		Key:        ProfileKey{RORG: RORGMSC, Func: 0x00, Manufacturer: ManufacturerVentilAirSec},
		Name:       "VentilAirSec Control",
		DataLength: 11,
		Fields: []FieldSpec{
			{Name: "MODEFONC", Description: "Operating mode", Offset: 16, Size: 8, Default: 0xFF,
				Enum: []EnumRange{
					{Low: 0, High: 0, Label: "stopped"},
					{Low: 1, High: 1, Label: "auto"},
					{Low: 2, High: 2, Label: "boost"},
					{Low: 3, High: 3, Label: "holiday"},
					{Low: 0xFF, High: 0xFF, Label: "unchanged"},
				}},
			{Name: "FONC", Description: "Function flags", Offset: 24, Size: 8, Default: 0xFF},
			{Name: "VACS", Description: "Holiday days", Offset: 32, Size: 8, Default: 0xFF},
			{Name: "BOOST", Description: "Boost duration", Offset: 40, Size: 8, Unit: "min", Default: 0xFF},
			{Name: "TEMPEL", Description: "Target temperature", Offset: 48, Size: 8, Unit: "C", Default: 0xFF,
				Scale: &ScaleSpec{RawMin: 0, RawMax: 250, Min: 0, Max: 50}},
			{Name: "TEMPSOUF", Description: "Blown air temperature", Offset: 56, Size: 8, Unit: "C", Default: 0xFF,
				Scale: &ScaleSpec{RawMin: 0, RawMax: 250, Min: 0, Max: 50}},
			{Name: "TEMPHYD", Description: "Hydraulic temperature", Offset: 64, Size: 8, Unit: "C", Default: 0xFF,
				Scale: &ScaleSpec{RawMin: 0, RawMax: 250, Min: 0, Max: 50}},
			{Name: "TEMPSOL", Description: "Ground temperature", Offset: 72, Size: 8, Unit: "C", Default: 0xFF,
				Scale: &ScaleSpec{RawMin: 0, RawMax: 250, Min: 0, Max: 50}},
			{Name: "COMMAND", Description: "Command byte", Offset: 80, Size: 8, Default: 0xFF},
		},
	}
}

// StandardProfiles returns fresh copies of the built-in profile catalog,
// ready to be passed to NewRegistry.
func StandardProfiles() []*Profile {
	return []*Profile{
		ProfileF60201(),
		ProfileA50205(),
		ProfileA50401(),
		ProfileD20101(),
		ProfileMSCVentilAirSecControl(),
	}
}
