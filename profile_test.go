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

func validProfile() *Profile {
	return &Profile{
		Key:        ProfileKey{RORG: RORGBS4, Func: 0x7F, Type: 0x01},
		Name:       "Test Profile",
		DataLength: 2,
		Fields: []FieldSpec{
			{Name: "A", Offset: 0, Size: 8},
			{Name: "B", Offset: 8, Size: 4},
		},
	}
}

func TestProfileKey_String(t *testing.T) {
	key := ProfileKey{RORG: 0xA5, Func: 0x02, Type: 0x05}
	assert.Equal(t, "A5-02-05", key.String())

	msc := ProfileKey{RORG: 0xD1, Func: 0x00, Manufacturer: 0x079}
	assert.Equal(t, "D1-00-00 (mfr 0x079)", msc.String())
}

func TestProfile_Validate_OK(t *testing.T) {
	assert.NoError(t, validProfile().Validate())
}

func TestProfile_Validate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Profile)
	}{
		{"zero data length", func(p *Profile) { p.DataLength = 0 }},
		{"no fields", func(p *Profile) { p.Fields = nil }},
		{"unnamed field", func(p *Profile) { p.Fields[0].Name = "" }},
		{"duplicate field name", func(p *Profile) { p.Fields[1].Name = "A" }},
		{"zero bit width", func(p *Profile) { p.Fields[0].Size = 0 }},
		{"width over 64", func(p *Profile) { p.Fields[0].Size = 65 }},
		{"field beyond declared length", func(p *Profile) { p.Fields[1].Offset = 14 }},
		{"negative offset", func(p *Profile) { p.Fields[0].Offset = -1 }},
		{"empty raw range", func(p *Profile) {
			p.Fields[0].Scale = &ScaleSpec{RawMin: 10, RawMax: 10, Min: 0, Max: 1}
		}},
		{"inverted enum range", func(p *Profile) {
			p.Fields[0].Enum = []EnumRange{{Low: 5, High: 2, Label: "bad"}}
		}},
		{"default exceeds width", func(p *Profile) { p.Fields[1].Default = 16 }},
		{"overlapping fields", func(p *Profile) { p.Fields[1].Offset = 7 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProfile()
			tt.mutate(p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestProfile_Validate_InvertedRawRangeAllowed(t *testing.T) {
	p := validProfile()
	p.Fields[0].Scale = &ScaleSpec{RawMin: 255, RawMax: 0, Min: 0, Max: 40}
	assert.NoError(t, p.Validate())
}

func TestProfile_Validate_OptionalFields(t *testing.T) {
	p := validProfile()
	p.OptionalLength = 1
	p.Fields = append(p.Fields, FieldSpec{Name: "O", Offset: 0, Size: 8, Source: SourceOptional})
	assert.NoError(t, p.Validate())

	// An optional-source field does not collide with a data-source field at
	// the same bit offset.
	p.Fields[2].Offset = 0
	assert.NoError(t, p.Validate())

	// But it must fit the declared optional length.
	p.Fields[2].Offset = 4
	assert.Error(t, p.Validate())
}

func TestProfile_Field(t *testing.T) {
	p := validProfile()
	f, ok := p.Field("B")
	require.True(t, ok)
	assert.Equal(t, 8, f.Offset)

	_, ok = p.Field("missing")
	assert.False(t, ok)
}

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry(StandardProfiles()...)
	require.NoError(t, err)
	assert.Equal(t, len(StandardProfiles()), reg.Len())
	assert.Len(t, reg.Keys(), reg.Len())

	p, err := reg.Lookup(ProfileKey{RORG: RORGBS4, Func: 0x02, Type: 0x05})
	require.NoError(t, err)
	assert.Equal(t, "Temperature Sensor Range 0C to +40C", p.Name)
}

func TestNewRegistry_DuplicateKey(t *testing.T) {
	_, err := NewRegistry(validProfile(), validProfile())
	assert.ErrorIs(t, err, ErrDuplicateProfile)
}

func TestNewRegistry_InvalidProfile(t *testing.T) {
	p := validProfile()
	p.Fields[1].Offset = 7 // overlaps field A
	_, err := NewRegistry(p)
	assert.Error(t, err)
}

func TestRegistry_LookupNotFound(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	_, err = reg.Lookup(ProfileKey{RORG: 0xA5, Func: 0x99, Type: 0x99})
	assert.ErrorIs(t, err, ErrProfileNotFound)
}
