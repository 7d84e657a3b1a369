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

package zutil

import (
	"context"
	"testing"

	"github.com/scigrid/zdataset/backend"
	"github.com/scigrid/zdataset/backend/localzarr"
	"github.com/scigrid/zdataset/dataset"
	"github.com/scigrid/zdataset/schema"
	"github.com/scigrid/zdataset/vardata"
)

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

func chunkGrid(shape ...int64) *schema.ChunkGrid {
	cg := &schema.ChunkGrid{}
	cg.Configuration.ChunkShape = shape
	return cg
}

func buildTrimmableDataset(t *testing.T, kv *localzarr.MemKV) *dataset.Dataset {
	t.Helper()
	spec := schema.DatasetSpec{
		Name: "survey",
		Variables: []schema.VariableSpec{
			{
				Name: "x", Dtype: "int32",
				Dimensions: []schema.Dimension{{Label: "x", Size: 4}},
				Metadata:   schema.VariableMetadata{ChunkGrid: chunkGrid(2)},
			},
			{
				Name: "temp", Dtype: "int32",
				Dimensions:  []schema.Dimension{{Label: "x", Size: 4}},
				Coordinates: []string{"x"},
				Metadata:    schema.VariableMetadata{ChunkGrid: chunkGrid(2)},
			},
		},
	}
	ds, err := dataset.FromJSON(context.Background(), spec, "survey", backend.Create, kv, nil)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	xvar, _ := ds.Variables().At("x")
	xdata := vardata.New("x", "", xvar.Dtype(), xvar.Dimensions(), 4, i32Bytes(0, 10, 20, 30))
	if _, err := xvar.Write(context.Background(), xdata).Value(); err != nil {
		t.Fatalf("write x: %v", err)
	}
	tvar, _ := ds.Variables().At("temp")
	tdata := vardata.New("temp", "", tvar.Dtype(), tvar.Dimensions(), 4, i32Bytes(100, 200, 300, 400))
	if _, err := tvar.Write(context.Background(), tdata).Value(); err != nil {
		t.Fatalf("write temp: %v", err)
	}
	return ds
}

func TestTrimDatasetMetadataOnly(t *testing.T) {
	kv := localzarr.NewMemKV()
	buildTrimmableDataset(t, kv)

	err := TrimDataset(context.Background(), "survey", false, []AxisResize{{Label: "x", Start: 0, Stop: 2}}, kv, nil)
	if err != nil {
		t.Fatalf("TrimDataset: %v", err)
	}

	reopened, err := dataset.Open(context.Background(), "survey", kv, nil)
	if err != nil {
		t.Fatalf("Open after trim: %v", err)
	}
	if reopened.Domain()[0].Size() != 2 {
		t.Fatalf("domain after trim: have size %d, want 2", reopened.Domain()[0].Size())
	}
}

func TestTrimDatasetDeletesOutOfBoundsChunks(t *testing.T) {
	kv := localzarr.NewMemKV()
	buildTrimmableDataset(t, kv)

	handle, err := kv.Open(context.Background(), map[string]interface{}{"path": "temp"})
	if err != nil {
		t.Fatalf("Open handle: %v", err)
	}
	before, err := handle.List(context.Background(), "").Value()
	if err != nil {
		t.Fatalf("List before: %v", err)
	}
	if len(before) < 3 {
		t.Fatalf("expected at least 2 chunk keys plus .zarray before trim, have %v", before)
	}

	err = TrimDataset(context.Background(), "survey", true, []AxisResize{{Label: "x", Start: 0, Stop: 2}}, kv, nil)
	if err != nil {
		t.Fatalf("TrimDataset: %v", err)
	}

	after, err := handle.List(context.Background(), "").Value()
	if err != nil {
		t.Fatalf("List after: %v", err)
	}
	if len(after) >= len(before) {
		t.Errorf("expected fewer keys after deleting out-of-bounds chunks: before %v, after %v", before, after)
	}
}

func TestTrimDatasetNoMatchingLabelIsNoop(t *testing.T) {
	kv := localzarr.NewMemKV()
	buildTrimmableDataset(t, kv)

	err := TrimDataset(context.Background(), "survey", false, []AxisResize{{Label: "unrelated", Start: 0, Stop: 1}}, kv, nil)
	if err != nil {
		t.Fatalf("TrimDataset with an unmatched label should be a no-op, not an error: %v", err)
	}

	reopened, err := dataset.Open(context.Background(), "survey", kv, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if reopened.Domain()[0].Size() != 4 {
		t.Errorf("domain should be unchanged: have size %d, want 4", reopened.Domain()[0].Size())
	}
}
