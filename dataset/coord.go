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

package dataset

import (
	"encoding/binary"
	"math"

	"github.com/scigrid/zdataset/dtype"
	"github.com/scigrid/zdataset/zerr"
)

// decodeCoordValues decodes a 1-D coordinate variable's raw element bytes
// into comparable Go values (bool, int64, or float64) for use by sel's
// value/list/range resolution. Structured and complex dtypes aren't valid
// coordinate types and fail with NotStructured/UnsupportedDtype.
func decodeCoordValues(dt dtype.DType, elemSize int64, raw []byte) ([]interface{}, error) {
	if dt.IsStructured() {
		return nil, zerr.New(zerr.NotStructured, "sel: coordinate variable must have a scalar dtype")
	}
	n := int64(len(raw)) / elemSize
	out := make([]interface{}, n)
	for i := int64(0); i < n; i++ {
		b := raw[i*elemSize : (i+1)*elemSize]
		v, err := decodeScalar(dt.Scalar, b)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func decodeScalar(s dtype.Scalar, b []byte) (interface{}, error) {
	switch s {
	case dtype.Bool:
		return b[0] != 0, nil
	case dtype.Int8:
		return int64(int8(b[0])), nil
	case dtype.Uint8:
		return int64(b[0]), nil
	case dtype.Int16:
		return int64(int16(binary.LittleEndian.Uint16(b))), nil
	case dtype.Uint16:
		return int64(binary.LittleEndian.Uint16(b)), nil
	case dtype.Int32:
		return int64(int32(binary.LittleEndian.Uint32(b))), nil
	case dtype.Uint32:
		return int64(binary.LittleEndian.Uint32(b)), nil
	case dtype.Int64:
		return int64(binary.LittleEndian.Uint64(b)), nil
	case dtype.Uint64:
		return int64(binary.LittleEndian.Uint64(b)), nil
	case dtype.Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))), nil
	case dtype.Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
	default:
		return nil, zerr.New(zerr.UnsupportedDtype, "sel: unsupported coordinate scalar dtype %q", s)
	}
}

// valuesEqual compares two decoded coordinate values, tolerating the
// int64/float64 mix produced when a caller's literal (e.g. 3) is compared
// against a float64-decoded coordinate.
func valuesEqual(a, b interface{}) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

// valuesLess reports a < b under the same numeric coercion as valuesEqual.
func valuesLess(a, b interface{}) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af < bf
	}
	as, aok2 := a.(string)
	bs, bok2 := b.(string)
	if aok2 && bok2 {
		return as < bs
	}
	return false
}

func asFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}
