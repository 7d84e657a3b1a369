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

package schema

import (
	"testing"

	"github.com/scigrid/zdataset/zerr"
)

func threeDSpec() DatasetSpec {
	return DatasetSpec{
		Name: "survey",
		Variables: []VariableSpec{
			{Name: "x", Dtype: "float64", Dimensions: []Dimension{{Label: "x", Size: 4}}},
			{Name: "y", Dtype: "float64", Dimensions: []Dimension{{Label: "y", Size: 3}}},
			{Name: "z", Dtype: "float64", Dimensions: []Dimension{{Label: "z", Size: 2}}},
			{
				Name:  "temperature",
				Dtype: "float32",
				Dimensions: []Dimension{
					{Label: "x", Size: 4}, {Label: "y", Size: 3}, {Label: "z", Size: 2},
				},
				Coordinates: []string{"x", "y", "z"},
			},
		},
	}
}

func TestConstructHappyPath(t *testing.T) {
	meta, specs, err := Construct(threeDSpec(), "/tmp/survey")
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	if meta.Name != "survey" || meta.ApiVersion != ApiVersion {
		t.Errorf("Metadata: have %+v", meta)
	}
	if len(specs) != 4 {
		t.Fatalf("have %d variable specs, want 4", len(specs))
	}
	var temp *VariableBackendSpec
	for i := range specs {
		if specs[i].Name == "temperature" {
			temp = &specs[i]
		}
	}
	if temp == nil {
		t.Fatal("temperature variable spec missing")
	}
	if temp.Backend.Driver != "zarr" {
		t.Errorf("Backend.Driver: have %q", temp.Backend.Driver)
	}
	shape, ok := temp.Backend.Metadata["shape"].([]int64)
	if !ok || len(shape) != 3 {
		t.Fatalf("shape: have %v", temp.Backend.Metadata["shape"])
	}
	if temp.Attributes["coordinates"] != "x y z" {
		t.Errorf("coordinates attribute: have %v", temp.Attributes["coordinates"])
	}
}

func TestConstructMissingDimensionCoordinate(t *testing.T) {
	spec := DatasetSpec{
		Name: "bad",
		Variables: []VariableSpec{
			{Name: "temperature", Dtype: "float32", Dimensions: []Dimension{{Label: "x", Size: 4}}},
		},
	}
	_, _, err := Construct(spec, "/tmp/bad")
	kind, ok := zerr.Kindof(err)
	if !ok || kind != zerr.InconsistentDimensions {
		t.Fatalf("have kind %v, want InconsistentDimensions", kind)
	}
}

func TestConstructInconsistentSize(t *testing.T) {
	spec := DatasetSpec{
		Name: "bad",
		Variables: []VariableSpec{
			{Name: "x", Dtype: "float64", Dimensions: []Dimension{{Label: "x", Size: 4}}},
			{Name: "temperature", Dtype: "float32", Dimensions: []Dimension{{Label: "x", Size: 5}}},
		},
	}
	_, _, err := Construct(spec, "/tmp/bad")
	kind, ok := zerr.Kindof(err)
	if !ok || kind != zerr.InconsistentDimensions {
		t.Fatalf("have kind %v, want InconsistentDimensions", kind)
	}
}

func TestConstructUnknownCoordinate(t *testing.T) {
	spec := DatasetSpec{
		Name: "bad",
		Variables: []VariableSpec{
			{Name: "x", Dtype: "float64", Dimensions: []Dimension{{Label: "x", Size: 4}}, Coordinates: []string{"ghost"}},
		},
	}
	_, _, err := Construct(spec, "/tmp/bad")
	kind, ok := zerr.Kindof(err)
	if !ok || kind != zerr.UnknownCoordinate {
		t.Fatalf("have kind %v, want UnknownCoordinate", kind)
	}
}

func TestConstructCompressorValidation(t *testing.T) {
	badLevel := 42
	spec := threeDSpec()
	spec.Variables[3].Metadata.Compressor = &Compressor{Algorithm: "zstd", Level: &badLevel}
	_, _, err := Construct(spec, "/tmp/survey")
	kind, ok := zerr.Kindof(err)
	if !ok || kind != zerr.UnsupportedCompressor {
		t.Fatalf("bad level: have kind %v, want UnsupportedCompressor", kind)
	}

	spec2 := threeDSpec()
	spec2.Variables[3].Metadata.Compressor = &Compressor{Algorithm: "brotli"}
	_, _, err = Construct(spec2, "/tmp/survey")
	kind, ok = zerr.Kindof(err)
	if !ok || kind != zerr.UnsupportedCompressor {
		t.Fatalf("bad algorithm: have kind %v, want UnsupportedCompressor", kind)
	}

	badShuffle := 9
	spec3 := threeDSpec()
	spec3.Variables[3].Metadata.Compressor = &Compressor{Algorithm: "lz4", Shuffle: &badShuffle}
	_, _, err = Construct(spec3, "/tmp/survey")
	kind, ok = zerr.Kindof(err)
	if !ok || kind != zerr.UnsupportedCompressor {
		t.Fatalf("bad shuffle: have kind %v, want UnsupportedCompressor", kind)
	}
}

func TestConstructChunkShapeRankMismatch(t *testing.T) {
	spec := threeDSpec()
	spec.Variables[3].Metadata.ChunkGrid = &ChunkGrid{}
	spec.Variables[3].Metadata.ChunkGrid.Configuration.ChunkShape = []int64{2, 2}
	_, _, err := Construct(spec, "/tmp/survey")
	kind, ok := zerr.Kindof(err)
	if !ok || kind != zerr.InconsistentDimensions {
		t.Fatalf("have kind %v, want InconsistentDimensions", kind)
	}
}

func TestConstructUnsupportedDtype(t *testing.T) {
	spec := DatasetSpec{
		Name: "bad",
		Variables: []VariableSpec{
			{Name: "x", Dtype: "decimal128", Dimensions: []Dimension{{Label: "x", Size: 1}}},
		},
	}
	_, _, err := Construct(spec, "/tmp/bad")
	kind, ok := zerr.Kindof(err)
	if !ok || kind != zerr.UnsupportedDtype {
		t.Fatalf("have kind %v, want UnsupportedDtype", kind)
	}
}
