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
	"strings"
	"time"

	"github.com/scigrid/zdataset/backend"
	"github.com/scigrid/zdataset/dtype"
	"github.com/scigrid/zdataset/zerr"
)

// Metadata is the dataset-level metadata document produced by Construct
// (spec §3): name, apiVersion, createdOn, and optional attributes.
type Metadata struct {
	Name       string                 `json:"name"`
	ApiVersion string                 `json:"apiVersion"`
	CreatedOn  string                 `json:"createdOn"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// VariableBackendSpec pairs a backend.Spec (the zarr driver/kvstore/
// metadata document) with the variable-schema attributes document spec
// §4.1 says to publish to that variable's .zattrs.
type VariableBackendSpec struct {
	Name       string
	Dtype      dtype.DType
	Dimensions []Dimension
	Backend    backend.Spec
	Attributes map[string]interface{}
}

var allowedCompressors = map[string]bool{
	"blosclz": true, "lz4": true, "lz4hc": true, "zlib": true, "zstd": true,
}

// nowFunc is overridable for tests; production code uses time.Now.
var nowFunc = time.Now

// Construct validates spec (beyond the external JSON-schema conformance
// already assumed to have passed, per spec §1/§4.1) and expands it into a
// dataset Metadata document plus one VariableBackendSpec per variable.
func Construct(spec DatasetSpec, rootPath string) (Metadata, []VariableBackendSpec, error) {
	if err := checkInvariants(spec); err != nil {
		return Metadata{}, nil, err
	}

	out := make([]VariableBackendSpec, 0, len(spec.Variables))
	for _, v := range spec.Variables {
		vb, err := buildVariableSpec(v, rootPath, v.Coordinates)
		if err != nil {
			return Metadata{}, nil, err
		}
		out = append(out, vb)
	}

	meta := Metadata{
		Name:       spec.Name,
		ApiVersion: ApiVersion,
		CreatedOn:  nowFunc().UTC().Format(time.RFC3339),
		Attributes: spec.Attributes,
	}
	return meta, out, nil
}

// checkInvariants enforces spec §3 invariants 1–3: every coordinate name
// resolves to a declared variable, every label used by a non-dimension
// variable has a matching 1-D dimension-coordinate variable of the same
// name, and every label agrees on size across all variables that use it.
func checkInvariants(spec DatasetSpec) error {
	byName := make(map[string]VariableSpec, len(spec.Variables))
	for _, v := range spec.Variables {
		byName[v.Name] = v
	}

	// Invariant 1: coordinates[v][k] names an existing variable.
	for _, v := range spec.Variables {
		for _, c := range v.Coordinates {
			if _, ok := byName[c]; !ok {
				return zerr.New(zerr.UnknownCoordinate, "variable %q: unknown coordinate %q", v.Name, c)
			}
		}
	}

	// Invariant 3: every label agrees on size across variables; collect
	// 1-D dimension-coordinate variables along the way for invariant 2.
	sizes := make(map[string]int64)
	dimCoord := make(map[string]bool) // label -> is there a 1-D var named `label` whose one dim is `label`?
	labelsUsed := make(map[string]bool)
	for _, v := range spec.Variables {
		for _, d := range v.Dimensions {
			labelsUsed[d.Label] = true
			if existing, ok := sizes[d.Label]; ok {
				if existing != d.Size {
					return zerr.New(zerr.InconsistentDimensions,
						"label %q has conflicting sizes %d and %d (variable %q)", d.Label, existing, d.Size, v.Name)
				}
			} else {
				sizes[d.Label] = d.Size
			}
		}
		if v.Name != "" && len(v.Dimensions) == 1 && v.Dimensions[0].Label == v.Name {
			dimCoord[v.Name] = true
		}
	}

	// Invariant 2: every used label has a dimension-coordinate variable.
	for label := range labelsUsed {
		if !dimCoord[label] {
			return zerr.New(zerr.InconsistentDimensions,
				"label %q has no 1-D dimension-coordinate variable of the same name", label)
		}
	}
	return nil
}

func buildVariableSpec(v VariableSpec, rootPath string, coordNames []string) (VariableBackendSpec, error) {
	dt, err := resolveDType(v)
	if err != nil {
		return VariableBackendSpec{}, err
	}

	// Invariant 5: chunk_shape rank matches declared dimension rank.
	shape := make([]int64, len(v.Dimensions))
	for i, d := range v.Dimensions {
		shape[i] = d.Size
	}
	chunks := shape
	if v.Metadata.ChunkGrid != nil && len(v.Metadata.ChunkGrid.Configuration.ChunkShape) > 0 {
		chunks = v.Metadata.ChunkGrid.Configuration.ChunkShape
		if len(chunks) != len(shape) {
			return VariableBackendSpec{}, zerr.New(zerr.InconsistentDimensions,
				"variable %q: chunk_shape rank %d does not match dimension rank %d", v.Name, len(chunks), len(shape))
		}
	}

	zdtype, err := dt.ZarrMetadataDType()
	if err != nil {
		return VariableBackendSpec{}, err
	}
	fill, err := dt.FillValue()
	if err != nil {
		return VariableBackendSpec{}, err
	}
	compressor, err := buildCompressor(v.Metadata.Compressor)
	if err != nil {
		return VariableBackendSpec{}, err
	}

	kv := kvstoreSpec(rootPath, v.Name)
	metadata := map[string]interface{}{
		"dtype":               zdtype,
		"shape":               shape,
		"chunks":              chunks,
		"compressor":          compressor,
		"fill_value":          fill,
		"dimension_separator": "/",
		"order":               "C",
		"filters":             nil,
		"zarr_format":         2,
	}

	dimNames := make([]string, len(v.Dimensions))
	for i, d := range v.Dimensions {
		dimNames[i] = d.Label
	}
	attrs := map[string]interface{}{
		"dimension_names": dimNames,
	}
	if v.LongName != "" {
		attrs["long_name"] = v.LongName
	}
	if len(coordNames) > 0 {
		attrs["coordinates"] = strings.Join(coordNames, " ")
	}
	if len(v.Metadata.StatsV1) > 0 {
		attrs["statsV1"] = v.Metadata.StatsV1
	}
	if len(v.Metadata.Attributes) > 0 {
		attrs["attributes"] = v.Metadata.Attributes
	}

	return VariableBackendSpec{
		Name:       v.Name,
		Dtype:      dt,
		Dimensions: v.Dimensions,
		Backend: backend.Spec{
			Driver:   "zarr",
			KVStore:  kv,
			Metadata: metadata,
		},
		Attributes: attrs,
	}, nil
}

func resolveDType(v VariableSpec) (dtype.DType, error) {
	if len(v.Fields) > 0 {
		fields := make([]dtype.Field, len(v.Fields))
		for i, f := range v.Fields {
			fields[i] = dtype.Field{Name: f.Name, Type: dtype.Scalar(f.Type)}
		}
		return dtype.FromFields(fields)
	}
	s := dtype.Scalar(v.Dtype)
	if !s.Valid() {
		return dtype.DType{}, zerr.New(zerr.UnsupportedDtype, "unsupported dtype %q on variable %q", v.Dtype, v.Name)
	}
	return dtype.FromScalar(s), nil
}

func buildCompressor(c *Compressor) (map[string]interface{}, error) {
	id, algorithm, level, shuffle, blocksize := "blosc", "lz4", 5, 1, 0
	if c != nil {
		if c.ID != "" && c.ID != "blosc" {
			return nil, zerr.New(zerr.UnsupportedCompressor, "unsupported compressor %q (only blosc is accepted)", c.ID)
		}
		if c.Algorithm != "" {
			algorithm = c.Algorithm
		}
		if c.Level != nil {
			level = *c.Level
		}
		if c.Shuffle != nil {
			shuffle = *c.Shuffle
		}
		if c.BlockSize != nil {
			blocksize = *c.BlockSize
		}
	}
	if !allowedCompressors[algorithm] {
		return nil, zerr.New(zerr.UnsupportedCompressor, "unsupported blosc algorithm %q", algorithm)
	}
	if level < 0 || level > 9 {
		return nil, zerr.New(zerr.UnsupportedCompressor, "compressor level %d out of range [0,9]", level)
	}
	if shuffle < -1 || shuffle > 2 {
		return nil, zerr.New(zerr.UnsupportedCompressor, "compressor shuffle %d out of range [-1,2]", shuffle)
	}
	if blocksize < 0 {
		return nil, zerr.New(zerr.UnsupportedCompressor, "compressor blocksize %d must be >= 0", blocksize)
	}
	return map[string]interface{}{
		"id": id, "cname": algorithm, "clevel": level, "shuffle": shuffle, "blocksize": blocksize,
	}, nil
}

// kvstoreSpec derives the spec §4.1 kvstore document from rootPath and
// the variable name: gs://bucket/path and s3://bucket/path route to their
// cloud drivers; anything else is a local file path.
func kvstoreSpec(rootPath, variable string) map[string]interface{} {
	switch {
	case strings.HasPrefix(rootPath, "gs://"):
		bucket, path := splitBucketPath(rootPath, "gs://")
		return map[string]interface{}{"driver": "gcs", "bucket": bucket, "path": joinPath(path, variable)}
	case strings.HasPrefix(rootPath, "s3://"):
		bucket, path := splitBucketPath(rootPath, "s3://")
		return map[string]interface{}{"driver": "s3", "bucket": bucket, "path": joinPath(path, variable)}
	default:
		return map[string]interface{}{"driver": "file", "bucket": rootPath, "path": variable}
	}
}

func splitBucketPath(rootPath, scheme string) (bucket, path string) {
	rest := strings.TrimPrefix(rootPath, scheme)
	i := strings.IndexByte(rest, '/')
	if i < 0 {
		return rest, ""
	}
	return rest[:i], rest[i+1:]
}

func joinPath(path, variable string) string {
	if path == "" {
		return variable
	}
	return path + "/" + variable
}
