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
	"math"

	"github.com/rs/zerolog"
)

// ErrFieldOverflow is returned by strict write paths when a raw value does
// not fit a field. The encoder itself clamps instead of failing; clamping is
// logged and observable through the produced payload.
var ErrFieldOverflow = errors.New("field value overflow")

// Encoder synthesizes raw telegram payloads from field maps using profile
// definitions. It is stateless apart from the registry reference and safe
// for concurrent use.
type Encoder struct {
	registry *Registry
	log      zerolog.Logger
}

// NewEncoder creates an encoder backed by the given registry.
func NewEncoder(registry *Registry) *Encoder {
	return &Encoder{registry: registry, log: zerolog.Nop()}
}

// SetLogger sets the logger used for clamping diagnostics.
func (e *Encoder) SetLogger(log zerolog.Logger) {
	e.log = log
}

// Encode produces the data and optional-data payloads for the profile
// identified by key. Fields absent from the input take the profile-declared
// default raw value; absence is not an error. Physical values are converted
// with the inverse linear mapping, rounded to the nearest integer and
// clamped to the declared raw range. Unknown enum labels fail the call.
func (e *Encoder) Encode(key ProfileKey, fields Fields) (data, optional []byte, err error) {
	profile, err := e.registry.Lookup(key)
	if err != nil {
		return nil, nil, err
	}

	data = make([]byte, profile.DataLength)
	if profile.OptionalLength > 0 {
		optional = make([]byte, profile.OptionalLength)
	}

	// MSC sub-profiles prefix the payload with manufacturer id and command.
	if key.RORG == RORGMSC && key.Manufacturer != 0 {
		if err := WriteBits(data, 0, mscManufacturerBits, uint64(key.Manufacturer)); err != nil {
			return nil, nil, fmt.Errorf("profile %s: manufacturer id: %w", key, err)
		}
		if err := WriteBits(data, mscManufacturerBits, mscCommandBits, uint64(key.Func)); err != nil {
			return nil, nil, fmt.Errorf("profile %s: command nibble: %w", key, err)
		}
	}

	for i := range profile.Fields {
		f := &profile.Fields[i]
		raw := f.Default
		if v, ok := fields[f.Name]; ok {
			raw, err = e.encodeFieldRaw(profile, f, v)
			if err != nil {
				return nil, nil, err
			}
		}

		if max := maxForWidth(f.Size); raw > max {
			e.log.Warn().Str("profile", profile.Key.String()).Str("field", f.Name).
				Uint64("raw", raw).Uint64("max", max).Msg("raw value clamped to field width")
			raw = max
		}

		dst := data
		if f.Source == SourceOptional {
			dst = optional
		}
		if err := WriteBits(dst, f.Offset, f.Size, raw); err != nil {
			// Validate() guarantees the range fits; this is a programming error.
			return nil, nil, fmt.Errorf("profile %s: field %q: %w", profile.Key, f.Name, err)
		}
	}
	return data, optional, nil
}

// encodeFieldRaw converts one field value into the raw integer to store.
func (e *Encoder) encodeFieldRaw(p *Profile, f *FieldSpec, v FieldValue) (uint64, error) {
	switch {
	case f.Scale != nil:
		// Raw inputs bypass the physical mapping.
		if v.Kind == KindRaw {
			return v.Raw, nil
		}
		return e.physicalToRaw(p, f, v.Number), nil

	case len(f.Enum) > 0:
		if v.Kind != KindEnum {
			return v.Raw, nil
		}
		for _, r := range f.Enum {
			if r.Label == v.Label {
				// The range's lower bound is its representative raw value.
				return r.Low, nil
			}
		}
		return 0, fmt.Errorf("profile %s: field %q: unknown enum label %q", p.Key, f.Name, v.Label)

	case f.Bool:
		if v.Kind == KindRaw {
			return v.Raw, nil
		}
		if v.Bool {
			return 1, nil
		}
		return 0, nil

	default:
		return v.Raw, nil
	}
}

// physicalToRaw inverts the linear scale mapping with nearest-integer
// rounding, clamping out-of-range physical inputs to the raw range.
func (e *Encoder) physicalToRaw(p *Profile, f *FieldSpec, phys float64) uint64 {
	s := f.Scale
	raw := math.Round((phys-s.Min)/(s.Max-s.Min)*float64(s.RawMax-s.RawMin)) + float64(s.RawMin)

	lo, hi := float64(s.RawMin), float64(s.RawMax)
	if lo > hi {
		lo, hi = hi, lo
	}
	clamped := math.Min(math.Max(raw, lo), hi)
	if clamped != raw {
		e.log.Warn().Str("profile", p.Key.String()).Str("field", f.Name).
			Float64("physical", phys).Float64("raw", raw).Float64("clamped", clamped).
			Msg("physical value out of range, raw value clamped")
	}
	return uint64(clamped)
}

// OutboundCommand pairs a profile reference with the field values to send.
// The gateway turns it into a radio telegram: the encoded payload becomes
// the telegram user data, framed with the sender and destination addresses.
type OutboundCommand struct {
	Key         ProfileKey
	Fields      Fields
	Sender      DeviceID
	Destination DeviceID // zero value means broadcast
	Status      byte
}
