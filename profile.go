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
	"sort"
)

var (
	// ErrProfileNotFound is returned when no profile matches a lookup key.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrDuplicateProfile is returned at registry construction time when two
	// profiles share the same key.
	ErrDuplicateProfile = errors.New("duplicate profile key")
)

// ProfileKey identifies an equipment profile. Standard profiles are keyed by
// the RORG/FUNC/TYPE triple with Manufacturer zero; manufacturer-specific
// sub-profiles (RORG 0xD1) additionally carry the manufacturer id, with Func
// holding the MSC command nibble.
type ProfileKey struct {
	RORG         byte
	Func         byte
	Type         byte
	Manufacturer uint16
}

// String formats the key in the conventional EEP notation, e.g. "A5-02-05".
func (k ProfileKey) String() string {
	if k.Manufacturer != 0 {
		return fmt.Sprintf("%02X-%02X-%02X (mfr 0x%03X)", k.RORG, k.Func, k.Type, k.Manufacturer)
	}
	return fmt.Sprintf("%02X-%02X-%02X", k.RORG, k.Func, k.Type)
}

// FieldSource selects which buffer a field is extracted from.
type FieldSource int

const (
	// SourceData extracts the field from the (user) data block.
	SourceData FieldSource = iota
	// SourceOptional extracts the field from the optional-data block.
	SourceOptional
)

// ScaleSpec maps a raw integer range linearly onto a physical value range.
// RawMin may be greater than RawMax; several standard profiles declare
// inverted raw ranges (e.g. A5-02 temperature sensors).
type ScaleSpec struct {
	RawMin, RawMax int64
	Min, Max       float64
}

// EnumRange maps a contiguous raw value range [Low, High] onto a label.
// Single-point entries use Low == High.
type EnumRange struct {
	Low, High uint64
	Label     string
}

// FieldSpec describes one logical value within a telegram payload. Exactly
// one interpretation applies, chosen in this order: Scale if set, Enum if
// non-empty, Bool if set, raw bits otherwise.
type FieldSpec struct {
	Name        string
	Description string
	Offset      int // bit offset within the source buffer
	Size        int // bit width
	Unit        string
	Source      FieldSource
	Scale       *ScaleSpec
	Enum        []EnumRange
	Bool        bool
	Default     uint64 // raw value used by the encoder when the field is absent
}

// Profile is the declarative description of one device class's telegram
// layout. Profiles are immutable after registry construction and safe to
// share across concurrent decode/encode calls.
type Profile struct {
	Key            ProfileKey
	Name           string
	DataLength     int // user-data length in bytes
	OptionalLength int // optional-data length in bytes, usually 0
	Fields         []FieldSpec
}

// Field returns the field spec with the given name.
func (p *Profile) Field(name string) (*FieldSpec, bool) {
	for i := range p.Fields {
		if p.Fields[i].Name == name {
			return &p.Fields[i], true
		}
	}
	return nil, false
}

// Validate checks the profile definition for internal consistency. A
// violation here is a definition error, never a per-packet condition.
func (p *Profile) Validate() error {
	if p.DataLength < 1 {
		return fmt.Errorf("profile %s: data length must be positive, got %d", p.Key, p.DataLength)
	}
	if p.OptionalLength < 0 {
		return fmt.Errorf("profile %s: negative optional length %d", p.Key, p.OptionalLength)
	}
	if len(p.Fields) == 0 {
		return fmt.Errorf("profile %s: no fields defined", p.Key)
	}

	names := make(map[string]struct{}, len(p.Fields))
	for i := range p.Fields {
		f := &p.Fields[i]
		if f.Name == "" {
			return fmt.Errorf("profile %s: field %d has no name", p.Key, i)
		}
		if _, dup := names[f.Name]; dup {
			return fmt.Errorf("profile %s: duplicate field name %q", p.Key, f.Name)
		}
		names[f.Name] = struct{}{}

		if f.Size < 1 || f.Size > 64 {
			return fmt.Errorf("profile %s: field %q has invalid bit width %d", p.Key, f.Name, f.Size)
		}
		limit := p.DataLength * 8
		if f.Source == SourceOptional {
			limit = p.OptionalLength * 8
		}
		if f.Offset < 0 || f.Offset+f.Size > limit {
			return fmt.Errorf("profile %s: field %q bits [%d,%d) exceed declared length of %d bits",
				p.Key, f.Name, f.Offset, f.Offset+f.Size, limit)
		}

		if f.Scale != nil && f.Scale.RawMin == f.Scale.RawMax {
			return fmt.Errorf("profile %s: field %q has an empty raw range", p.Key, f.Name)
		}
		for _, e := range f.Enum {
			if e.Low > e.High {
				return fmt.Errorf("profile %s: field %q enum range [%d,%d] is inverted",
					p.Key, f.Name, e.Low, e.High)
			}
		}
		if f.Default > maxForWidth(f.Size) {
			return fmt.Errorf("profile %s: field %q default %d exceeds %d bits",
				p.Key, f.Name, f.Default, f.Size)
		}
	}

	return p.checkOverlaps()
}

// checkOverlaps verifies that no two fields of the same source share bits.
func (p *Profile) checkOverlaps() error {
	for _, src := range []FieldSource{SourceData, SourceOptional} {
		type span struct {
			name     string
			lo, hi   int // [lo, hi)
		}
		var spans []span
		for i := range p.Fields {
			f := &p.Fields[i]
			if f.Source != src {
				continue
			}
			spans = append(spans, span{f.Name, f.Offset, f.Offset + f.Size})
		}
		sort.Slice(spans, func(i, j int) bool { return spans[i].lo < spans[j].lo })
		for i := 1; i < len(spans); i++ {
			if spans[i].lo < spans[i-1].hi {
				return fmt.Errorf("profile %s: fields %q and %q overlap at bit %d",
					p.Key, spans[i-1].name, spans[i].name, spans[i].lo)
			}
		}
	}
	return nil
}

// Registry maps profile keys to their definitions. It is read-only after
// construction and safe for concurrent lookups.
type Registry struct {
	profiles map[ProfileKey]*Profile
}

// NewRegistry indexes the supplied profiles by key. Every profile is
// validated; a duplicate key or an invalid definition fails construction.
func NewRegistry(profiles ...*Profile) (*Registry, error) {
	r := &Registry{profiles: make(map[ProfileKey]*Profile, len(profiles))}
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, exists := r.profiles[p.Key]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProfile, p.Key)
		}
		r.profiles[p.Key] = p
	}
	return r, nil
}

// Lookup returns the profile for the given key.
func (r *Registry) Lookup(key ProfileKey) (*Profile, error) {
	p, ok := r.profiles[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, key)
	}
	return p, nil
}

// Len returns the number of registered profiles.
func (r *Registry) Len() int {
	return len(r.profiles)
}

// Keys returns all registered profile keys in unspecified order.
func (r *Registry) Keys() []ProfileKey {
	keys := make([]ProfileKey, 0, len(r.profiles))
	for k := range r.profiles {
		keys = append(keys, k)
	}
	return keys
}
