/*
Copyright © 2026 the zdataset authors.
This file is part of zdataset.

zdataset is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

zdataset is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with zdataset.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package dtype represents the fixed set of scalar and structured element
// types a Variable can carry, and their Zarr v2 on-disk encodings.
package dtype

import (
	"encoding/base64"
	"fmt"

	"github.com/scigrid/zdataset/zerr"
)

// Scalar is one of the fixed set of permitted scalar element types.
type Scalar string

const (
	Bool       Scalar = "bool"
	Int8       Scalar = "int8"
	Int16      Scalar = "int16"
	Int32      Scalar = "int32"
	Int64      Scalar = "int64"
	Uint8      Scalar = "uint8"
	Uint16     Scalar = "uint16"
	Uint32     Scalar = "uint32"
	Uint64     Scalar = "uint64"
	Float16    Scalar = "float16"
	Float32    Scalar = "float32"
	Float64    Scalar = "float64"
	Complex64  Scalar = "complex64"
	Complex128 Scalar = "complex128"
)

// zarrCode is the Zarr v2 dtype string for each scalar, per spec §4.1.
var zarrCode = map[Scalar]string{
	Bool:       "|b1",
	Int8:       "|i1",
	Int16:      "<i2",
	Int32:      "<i4",
	Int64:      "<i8",
	Uint8:      "|u1",
	Uint16:     "<u2",
	Uint32:     "<u4",
	Uint64:     "<u8",
	Float16:    "<f2",
	Float32:    "<f4",
	Float64:    "<f8",
	Complex64:  "<c8",
	Complex128: "<c16",
}

// byteWidth is the storage width in bytes of one element of s.
var byteWidth = map[Scalar]int{
	Bool: 1, Int8: 1, Uint8: 1,
	Int16: 2, Uint16: 2, Float16: 2,
	Int32: 4, Uint32: 4, Float32: 4,
	Int64: 8, Uint64: 8, Float64: 8, Complex64: 8,
	Complex128: 16,
}

// Valid reports whether s is one of the permitted scalar types.
func (s Scalar) Valid() bool {
	_, ok := zarrCode[s]
	return ok
}

// ZarrCode returns the Zarr v2 dtype string for s, e.g. "<f4".
func (s Scalar) ZarrCode() (string, error) {
	c, ok := zarrCode[s]
	if !ok {
		return "", zerr.New(zerr.UnsupportedDtype, "unsupported scalar dtype %q", s)
	}
	return c, nil
}

// ByteWidth returns the per-element storage width of s in bytes.
func (s Scalar) ByteWidth() (int, error) {
	w, ok := byteWidth[s]
	if !ok {
		return 0, zerr.New(zerr.UnsupportedDtype, "unsupported scalar dtype %q", s)
	}
	return w, nil
}

func (s Scalar) isFloat() bool {
	return s == Float16 || s == Float32 || s == Float64
}

func (s Scalar) isComplex() bool {
	return s == Complex64 || s == Complex128
}

func (s Scalar) isIntegerOrBool() bool {
	return s.Valid() && !s.isFloat() && !s.isComplex()
}

// Field is one (name, scalar type) pair of a structured dtype.
type Field struct {
	Name string
	Type Scalar
}

// DType is either a scalar type (Fields is nil) or a structured record
// type made of an ordered sequence of named scalar fields.
type DType struct {
	Scalar Scalar
	Fields []Field // non-nil ⇒ structured
}

// FromScalar builds a scalar DType.
func FromScalar(s Scalar) DType { return DType{Scalar: s} }

// FromFields builds a structured DType, validating field name uniqueness
// and that every field type is a permitted, unnested scalar (spec
// invariant 6).
func FromFields(fields []Field) (DType, error) {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name] {
			return DType{}, zerr.New(zerr.UnsupportedDtype, "duplicate structured field name %q", f.Name)
		}
		seen[f.Name] = true
		if !f.Type.Valid() {
			return DType{}, zerr.New(zerr.UnsupportedDtype, "field %q has unsupported scalar type %q", f.Name, f.Type)
		}
	}
	cp := make([]Field, len(fields))
	copy(cp, fields)
	return DType{Fields: cp}, nil
}

// IsStructured reports whether d is a structured (record) dtype.
func (d DType) IsStructured() bool { return d.Fields != nil }

// RecordWidth returns the total byte width of a structured dtype (the sum
// of its fields' widths). It is an error to call this on a scalar dtype.
func (d DType) RecordWidth() (int, error) {
	if !d.IsStructured() {
		return 0, zerr.New(zerr.NotStructured, "dtype is not structured")
	}
	total := 0
	for _, f := range d.Fields {
		w, err := f.Type.ByteWidth()
		if err != nil {
			return 0, err
		}
		total += w
	}
	return total, nil
}

// Field looks up a structured dtype's field by name.
func (d DType) Field(name string) (Field, error) {
	if !d.IsStructured() {
		return Field{}, zerr.New(zerr.NotStructured, "dtype is not structured")
	}
	for _, f := range d.Fields {
		if f.Name == name {
			return f, nil
		}
	}
	return Field{}, zerr.New(zerr.UnknownField, "unknown field %q", name)
}

// Equal reports whether d and other describe the same dtype.
func (d DType) Equal(other DType) bool {
	if d.IsStructured() != other.IsStructured() {
		return false
	}
	if !d.IsStructured() {
		return d.Scalar == other.Scalar
	}
	if len(d.Fields) != len(other.Fields) {
		return false
	}
	for i := range d.Fields {
		if d.Fields[i] != other.Fields[i] {
			return false
		}
	}
	return true
}

// ZarrMetadataDType returns the `metadata.dtype` value for d as specified
// in spec §4.1: a single Zarr code string for scalars, or an ordered list
// of [field_name, zarr_code] pairs for structured types.
func (d DType) ZarrMetadataDType() (interface{}, error) {
	if !d.IsStructured() {
		return d.Scalar.ZarrCode()
	}
	out := make([][2]string, len(d.Fields))
	for i, f := range d.Fields {
		code, err := f.Type.ZarrCode()
		if err != nil {
			return nil, err
		}
		out[i] = [2]string{f.Name, code}
	}
	return out, nil
}

// FillValue derives the Zarr `metadata.fill_value` for d, per spec §4.1:
// null for integer/bool scalars, NaN for floats, base64 zero-bytes for
// complex scalars and for structured records (whose width is the sum of
// field widths).
func (d DType) FillValue() (interface{}, error) {
	if d.IsStructured() {
		w, err := d.RecordWidth()
		if err != nil {
			return nil, err
		}
		return base64.StdEncoding.EncodeToString(make([]byte, w)), nil
	}
	switch {
	case d.Scalar.isIntegerOrBool():
		return nil, nil
	case d.Scalar.isFloat():
		return "NaN", nil
	case d.Scalar.isComplex():
		w, err := d.Scalar.ByteWidth()
		if err != nil {
			return nil, err
		}
		return base64.StdEncoding.EncodeToString(make([]byte, w)), nil
	default:
		return nil, zerr.New(zerr.UnsupportedDtype, "unsupported scalar dtype %q", d.Scalar)
	}
}

var scalarByZarrCode = func() map[string]Scalar {
	m := make(map[string]Scalar, len(zarrCode))
	for s, code := range zarrCode {
		m[code] = s
	}
	return m
}()

// ParseZarrCode is the inverse of Scalar.ZarrCode, used when reconstructing
// a dtype from an on-disk `.zarray` document.
func ParseZarrCode(code string) (Scalar, error) {
	s, ok := scalarByZarrCode[code]
	if !ok {
		return "", zerr.New(zerr.UnsupportedDtype, "unrecognized zarr dtype code %q", code)
	}
	return s, nil
}

// FromZarrMetadata reconstructs a DType from a decoded `.zarray.dtype`
// value: either a plain Zarr code string (scalar) or a list of
// [field_name, zarr_code] pairs (structured), as produced by
// DType.ZarrMetadataDType and round-tripped through JSON.
func FromZarrMetadata(v interface{}) (DType, error) {
	switch t := v.(type) {
	case string:
		s, err := ParseZarrCode(t)
		if err != nil {
			return DType{}, err
		}
		return FromScalar(s), nil
	case []interface{}:
		fields := make([]Field, len(t))
		for i, raw := range t {
			pair, ok := raw.([]interface{})
			if !ok || len(pair) != 2 {
				return DType{}, zerr.New(zerr.UnsupportedDtype, "malformed structured dtype entry %v", raw)
			}
			name, _ := pair[0].(string)
			code, _ := pair[1].(string)
			s, err := ParseZarrCode(code)
			if err != nil {
				return DType{}, err
			}
			fields[i] = Field{Name: name, Type: s}
		}
		return FromFields(fields)
	default:
		return DType{}, zerr.New(zerr.UnsupportedDtype, "malformed dtype field %v", v)
	}
}

// ElemWidth returns the storage width in bytes of one element of d,
// whichever kind it is: Scalar.ByteWidth for scalars, RecordWidth for
// structured dtypes.
func (d DType) ElemWidth() (int64, error) {
	if d.IsStructured() {
		w, err := d.RecordWidth()
		return int64(w), err
	}
	w, err := d.Scalar.ByteWidth()
	return int64(w), err
}

func (d DType) String() string {
	if !d.IsStructured() {
		return string(d.Scalar)
	}
	return fmt.Sprintf("structured%v", d.Fields)
}
