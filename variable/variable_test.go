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

package variable

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/scigrid/zdataset/backend"
	"github.com/scigrid/zdataset/backend/localzarr"
	"github.com/scigrid/zdataset/schema"
	"github.com/scigrid/zdataset/vardata"
)

func buildVariable(t *testing.T, kv *localzarr.MemKV, name string, dtypeName string, fields []schema.FieldSpec, size int64) *Variable {
	t.Helper()
	vs := schema.VariableSpec{Name: name, Dimensions: []schema.Dimension{{Label: name, Size: size}}}
	if len(fields) > 0 {
		vs.Fields = fields
	} else {
		vs.Dtype = dtypeName
	}
	spec := schema.DatasetSpec{Name: "toy", Variables: []schema.VariableSpec{vs}}
	_, specs, err := schema.Construct(spec, "toy")
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	v, err := Open(context.Background(), name, specs[0].Backend, specs[0].Attributes, backend.Create, kv, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return v
}

func i32Bytes(vals ...int32) []byte {
	out := make([]byte, len(vals)*4)
	for i, v := range vals {
		out[i*4] = byte(v)
		out[i*4+1] = byte(v >> 8)
		out[i*4+2] = byte(v >> 16)
		out[i*4+3] = byte(v >> 24)
	}
	return out
}

func toI32(b []byte) []int32 {
	out := make([]int32, len(b)/4)
	for i := range out {
		out[i] = int32(b[i*4]) | int32(b[i*4+1])<<8 | int32(b[i*4+2])<<16 | int32(b[i*4+3])<<24
	}
	return out
}

func TestVariableWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := localzarr.NewMemKV()
	v := buildVariable(t, kv, "x", "int32", nil, 4)

	data := vardata.New("x", "", v.Dtype(), v.Dimensions(), 4, i32Bytes(1, 2, 3, 4))
	if _, err := v.Write(ctx, data).Value(); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := v.Read(ctx).Value()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !reflect.DeepEqual(toI32(got.Bytes()), []int32{1, 2, 3, 4}) {
		t.Errorf("round trip: have %v, want [1 2 3 4]", toI32(got.Bytes()))
	}
}

func TestVariableSliceWindow(t *testing.T) {
	ctx := context.Background()
	kv := localzarr.NewMemKV()
	v := buildVariable(t, kv, "x", "int32", nil, 5)
	data := vardata.New("x", "", v.Dtype(), v.Dimensions(), 4, i32Bytes(0, 1, 2, 3, 4))
	if _, err := v.Write(ctx, data).Value(); err != nil {
		t.Fatalf("Write: %v", err)
	}

	sliced, err := v.Slice(vardata.Descriptor{Label: "x", Start: 1, Stop: 3})
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if sliced.StoreShape()[0] != 2 {
		t.Fatalf("sliced shape: have %v, want [2]", sliced.StoreShape())
	}
	got, err := sliced.Read(ctx).Value()
	if err != nil {
		t.Fatalf("Read sliced: %v", err)
	}
	if !reflect.DeepEqual(toI32(got.Bytes()), []int32{1, 2}) {
		t.Errorf("sliced read: have %v, want [1 2]", toI32(got.Bytes()))
	}
}

func TestVariableSelectFieldOnStructured(t *testing.T) {
	ctx := context.Background()
	kv := localzarr.NewMemKV()
	fields := []schema.FieldSpec{{Name: "cdp-x", Type: "int32"}, {Name: "cdp-y", Type: "int32"}}
	v := buildVariable(t, kv, "headers", "", fields, 2)

	if _, err := v.SelectField(ctx, "").Value(); err != nil {
		t.Fatalf("SelectField(\"\"): %v", err)
	}
	proj, err := v.SelectField(ctx, "cdp-y").Value()
	if err != nil {
		t.Fatalf("SelectField(cdp-y): %v", err)
	}
	if proj.Dtype().IsStructured() {
		t.Error("projected field view should not be structured")
	}
	if proj.Rank() != v.Rank() {
		t.Errorf("SelectField should not change rank: have %d, want %d", proj.Rank(), v.Rank())
	}
	if _, err := v.SelectField(ctx, "missing").Value(); err == nil {
		t.Error("expected UnknownField error")
	}
}

func TestVariableResizeUpdatesSpecAndState(t *testing.T) {
	ctx := context.Background()
	kv := localzarr.NewMemKV()
	v := buildVariable(t, kv, "x", "int32", nil, 4)

	if v.State() != Clean {
		t.Fatalf("initial State: have %v, want Clean", v.State())
	}
	if _, err := v.Resize(ctx, nil, []int64{2}, backend.ResizeMetadataOnly).Value(); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if v.State() != Dirty {
		t.Fatalf("State after Resize: have %v, want Dirty", v.State())
	}
	shape, ok := v.Spec().Metadata["shape"].([]int64)
	if !ok || len(shape) != 1 || shape[0] != 2 {
		t.Fatalf("Spec().Metadata[shape] not refreshed: have %v", v.Spec().Metadata["shape"])
	}

	if _, err := v.PublishMetadata(ctx, time.Now()).Value(); err != nil {
		t.Fatalf("PublishMetadata: %v", err)
	}
	if v.State() != Clean {
		t.Fatalf("State after PublishMetadata: have %v, want Clean", v.State())
	}
}
