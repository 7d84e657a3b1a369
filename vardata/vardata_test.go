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

package vardata

import (
	"reflect"
	"testing"

	"github.com/scigrid/zdataset/backend"
	"github.com/scigrid/zdataset/dtype"
)

func int32Bytes(vals ...int32) []byte {
	out := make([]byte, 0, len(vals)*4)
	for _, v := range vals {
		out = append(out, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	}
	return out
}

func toInt32s(b []byte) []int32 {
	out := make([]int32, len(b)/4)
	for i := range out {
		out[i] = int32(b[i*4]) | int32(b[i*4+1])<<8 | int32(b[i*4+2])<<16 | int32(b[i*4+3])<<24
	}
	return out
}

func TestNewAndBytesContiguous(t *testing.T) {
	dims := backend.Domain{{Label: "x", Min: 0, Max: 3}}
	d := New("v", "", dtype.FromScalar(dtype.Int32), dims, 4, int32Bytes(1, 2, 3))
	if !d.IsContiguous() {
		t.Fatal("freshly built Data should be contiguous")
	}
	if got := toInt32s(d.Bytes()); !reflect.DeepEqual(got, []int32{1, 2, 3}) {
		t.Errorf("Bytes: have %v, want [1 2 3]", got)
	}
}

func TestSliceSingleClamp(t *testing.T) {
	dims := backend.Domain{{Label: "x", Min: 0, Max: 5}}
	d := New("v", "", dtype.FromScalar(dtype.Int32), dims, 4, int32Bytes(0, 1, 2, 3, 4))

	sliced, err := d.Slice(Descriptor{Label: "x", Start: -10, Stop: 2})
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if got := toInt32s(sliced.Bytes()); !reflect.DeepEqual(got, []int32{0, 1}) {
		t.Errorf("clamp-low: have %v, want [0 1]", got)
	}

	sliced2, err := d.Slice(Descriptor{Label: "x", Start: 3, Stop: 100})
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if got := toInt32s(sliced2.Bytes()); !reflect.DeepEqual(got, []int32{3, 4}) {
		t.Errorf("clamp-high: have %v, want [3 4]", got)
	}
}

func TestSliceRepeatedConcat(t *testing.T) {
	dims := backend.Domain{{Label: "x", Min: 0, Max: 5}}
	d := New("v", "", dtype.FromScalar(dtype.Int32), dims, 4, int32Bytes(0, 1, 2, 3, 4))

	out, err := d.Slice(
		Descriptor{Label: "x", Start: 0, Stop: 2},
		Descriptor{Label: "x", Start: 3, Stop: 5},
	)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if out.Rank() != 1 || out.Dimensions()[0].Size() != 4 {
		t.Fatalf("repeated-slice shape: have %v", out.Dimensions())
	}
	if got := toInt32s(out.Bytes()); !reflect.DeepEqual(got, []int32{0, 1, 3, 4}) {
		t.Errorf("concatenated bytes: have %v, want [0 1 3 4]", got)
	}
}

func TestSliceRepeatedOverlapRejected(t *testing.T) {
	dims := backend.Domain{{Label: "x", Min: 0, Max: 5}}
	d := New("v", "", dtype.FromScalar(dtype.Int32), dims, 4, int32Bytes(0, 1, 2, 3, 4))
	_, err := d.Slice(
		Descriptor{Label: "x", Start: 0, Stop: 3},
		Descriptor{Label: "x", Start: 2, Stop: 5},
	)
	if err == nil {
		t.Fatal("expected error for overlapping repeated slice descriptors")
	}
}

func TestAtRankMismatch(t *testing.T) {
	dims := backend.Domain{{Label: "x", Min: 0, Max: 2}, {Label: "y", Min: 0, Max: 2}}
	d := New("v", "", dtype.FromScalar(dtype.Int32), dims, 4, int32Bytes(0, 1, 2, 3))
	if _, err := d.At([]int64{0}); err == nil {
		t.Fatal("expected rank-mismatch error")
	}
	b, err := d.At([]int64{1, 0})
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	if got := toInt32s(b); got[0] != 2 {
		t.Errorf("At([1,0]): have %v, want [2]", got)
	}
	if _, err := d.At([]int64{5, 0}); err == nil {
		t.Fatal("expected out-of-bounds error")
	}
}

func TestBytesGatheredAfterRepeatedSlice(t *testing.T) {
	dims := backend.Domain{{Label: "x", Min: 0, Max: 2}, {Label: "y", Min: 0, Max: 4}}
	d := New("v", "", dtype.FromScalar(dtype.Int32), dims, 4, int32Bytes(
		0, 1, 2, 3,
		4, 5, 6, 7,
	))
	out, err := d.Slice(
		Descriptor{Label: "y", Start: 0, Stop: 1},
		Descriptor{Label: "y", Start: 2, Stop: 4},
	)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if got := toInt32s(out.Bytes()); !reflect.DeepEqual(got, []int32{0, 2, 3, 4, 6, 7}) {
		t.Errorf("gathered bytes: have %v, want [0 2 3 4 6 7]", got)
	}
}
