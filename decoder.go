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

	"github.com/rs/zerolog"
)

// ValueKind tags the interpretation of a decoded field value.
type ValueKind int

const (
	// KindNumber is a scaled physical value.
	KindNumber ValueKind = iota
	// KindEnum is a raw value matched to an enumeration label.
	KindEnum
	// KindBool is a single-bit flag.
	KindBool
	// KindRaw is an uninterpreted bit field.
	KindRaw
	// KindBytes is an uninterpreted byte payload wider than 64 bits.
	KindBytes
	// KindUnknownEnum marks a raw value that matched no enumeration range.
	// The raw value is preserved; the decode as a whole still succeeds.
	KindUnknownEnum
	// KindMissing marks a field whose declared bit range lies beyond the
	// received data. Fields after it are still decoded independently.
	KindMissing
)

// String returns the kind name.
func (k ValueKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindEnum:
		return "enum"
	case KindBool:
		return "bool"
	case KindRaw:
		return "raw"
	case KindBytes:
		return "bytes"
	case KindUnknownEnum:
		return "unknown-enum"
	case KindMissing:
		return "missing"
	default:
		return fmt.Sprintf("ValueKind(%d)", int(k))
	}
}

// FieldValue is one decoded field. Which members are meaningful depends on
// Kind: Number/Unit for KindNumber, Label for KindEnum, Bool for KindBool,
// Bytes for KindBytes. Raw carries the extracted integer for every kind
// except KindMissing and KindBytes.
type FieldValue struct {
	Kind   ValueKind
	Raw    uint64
	Number float64
	Label  string
	Bool   bool
	Bytes  []byte
	Unit   string
}

// String renders the value according to its kind.
func (v FieldValue) String() string {
	switch v.Kind {
	case KindNumber:
		if v.Unit != "" {
			return fmt.Sprintf("%g %s", v.Number, v.Unit)
		}
		return fmt.Sprintf("%g", v.Number)
	case KindEnum:
		return v.Label
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindBytes:
		return fmt.Sprintf("% X", v.Bytes)
	case KindUnknownEnum:
		return fmt.Sprintf("unknown(%d)", v.Raw)
	case KindMissing:
		return "missing"
	default:
		return fmt.Sprintf("%d", v.Raw)
	}
}

// Number builds a numeric field value for the encoder.
func Number(v float64) FieldValue {
	return FieldValue{Kind: KindNumber, Number: v}
}

// Enum builds an enum-label field value for the encoder.
func Enum(label string) FieldValue {
	return FieldValue{Kind: KindEnum, Label: label}
}

// Bool builds a boolean field value for the encoder.
func Bool(b bool) FieldValue {
	return FieldValue{Kind: KindBool, Bool: b}
}

// Raw builds a raw field value for the encoder.
func Raw(v uint64) FieldValue {
	return FieldValue{Kind: KindRaw, Raw: v}
}

// Fields maps field names to decoded values. Each decode call returns a
// fresh, independently owned map.
type Fields map[string]FieldValue

// Names of the synthetic fields added when decoding MSC telegrams.
const (
	FieldMSCManufacturer = "MID"
	FieldMSCCommand      = "CMD"
	FieldMSCPayload      = "MSC_DATA"
)

// Decoder applies profile definitions to raw telegram payloads. It is
// stateless apart from the registry reference and safe for concurrent use.
type Decoder struct {
	registry *Registry
	log      zerolog.Logger
}

// NewDecoder creates a decoder backed by the given registry.
func NewDecoder(registry *Registry) *Decoder {
	return &Decoder{registry: registry, log: zerolog.Nop()}
}

// SetLogger sets the logger used for per-field diagnostics.
func (d *Decoder) SetLogger(log zerolog.Logger) {
	d.log = log
}

// Decode resolves the profile for key and decodes data/optional into a field
// map. Decoding is best-effort per field: short payloads yield KindMissing
// values and unmatched enum raw values yield KindUnknownEnum values, but the
// call itself only fails when the profile is unknown.
//
// For MSC keys (RORG 0xD1, Manufacturer zero) the manufacturer id and
// command nibble are read from the payload first and the matching
// manufacturer sub-profile is dispatched to. An unknown manufacturer decodes
// to raw bits only.
func (d *Decoder) Decode(key ProfileKey, data, optional []byte) (Fields, error) {
	if key.RORG == RORGMSC && key.Manufacturer == 0 {
		return d.decodeMSC(data, optional)
	}
	profile, err := d.registry.Lookup(key)
	if err != nil {
		return nil, err
	}
	return d.decodeProfile(profile, data, optional), nil
}

// DecodeTelegram decodes a radio telegram's user data with the profile
// identified by the telegram's RORG plus the supplied FUNC and TYPE.
func (d *Decoder) DecodeTelegram(t *RadioTelegram, fn, ty byte) (Fields, error) {
	key := ProfileKey{RORG: t.RORG(), Func: fn, Type: ty}
	return d.Decode(key, t.userData, t.pkt.optional)
}

func (d *Decoder) decodeProfile(p *Profile, data, optional []byte) Fields {
	out := make(Fields, len(p.Fields))
	for i := range p.Fields {
		f := &p.Fields[i]
		src := data
		if f.Source == SourceOptional {
			src = optional
		}
		raw, err := ReadBits(src, f.Offset, f.Size)
		if err != nil {
			if !errors.Is(err, ErrBitRange) {
				d.log.Warn().Str("profile", p.Key.String()).Str("field", f.Name).
					Err(err).Msg("field extraction failed")
			}
			out[f.Name] = FieldValue{Kind: KindMissing, Unit: f.Unit}
			continue
		}
		out[f.Name] = decodeFieldValue(f, raw)
	}
	return out
}

// decodeFieldValue interprets one extracted raw integer per the field spec.
func decodeFieldValue(f *FieldSpec, raw uint64) FieldValue {
	switch {
	case f.Scale != nil:
		span := float64(f.Scale.RawMax - f.Scale.RawMin)
		phys := (float64(raw)-float64(f.Scale.RawMin))*(f.Scale.Max-f.Scale.Min)/span + f.Scale.Min
		return FieldValue{Kind: KindNumber, Raw: raw, Number: phys, Unit: f.Unit}
	case len(f.Enum) > 0:
		for _, e := range f.Enum {
			if raw >= e.Low && raw <= e.High {
				return FieldValue{Kind: KindEnum, Raw: raw, Label: e.Label}
			}
		}
		return FieldValue{Kind: KindUnknownEnum, Raw: raw}
	case f.Bool:
		return FieldValue{Kind: KindBool, Raw: raw, Bool: raw != 0}
	default:
		return FieldValue{Kind: KindRaw, Raw: raw}
	}
}

// decodeMSC reads the manufacturer id and command nibble, then dispatches to
// the manufacturer-specific sub-profile registered under
// {RORG: 0xD1, Func: command, Manufacturer: id}.
func (d *Decoder) decodeMSC(data, optional []byte) (Fields, error) {
	mid, err := ReadBits(data, 0, mscManufacturerBits)
	if err != nil {
		return nil, fmt.Errorf("msc telegram too short for manufacturer id: %w", err)
	}
	cmd, err := ReadBits(data, mscManufacturerBits, mscCommandBits)
	if err != nil {
		return nil, fmt.Errorf("msc telegram too short for command: %w", err)
	}

	out := Fields{
		FieldMSCManufacturer: {Kind: KindRaw, Raw: mid},
		FieldMSCCommand:      {Kind: KindRaw, Raw: cmd},
	}

	key := ProfileKey{RORG: RORGMSC, Func: byte(cmd), Manufacturer: uint16(mid)}
	profile, err := d.registry.Lookup(key)
	if err != nil {
		// Unknown manufacturer: surface the remaining payload as raw bits.
		d.log.Debug().Uint64("manufacturer", mid).Uint64("command", cmd).
			Msg("no sub-profile for msc telegram")
		if len(data) > mscHeaderBits/8 {
			out[FieldMSCPayload] = FieldValue{
				Kind:  KindBytes,
				Bytes: append([]byte(nil), data[mscHeaderBits/8:]...),
			}
		}
		return out, nil
	}

	fields := d.decodeProfile(profile, data, optional)
	for name, value := range fields {
		out[name] = value
	}
	return out, nil
}
