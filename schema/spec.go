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

// Package schema is the schema-driven dataset factory (spec §4.1): it
// validates a high-level dataset spec and expands it into per-variable
// backend specs.
package schema

import "encoding/json"

// ApiVersion is the only accepted value of metadata.apiVersion (spec
// invariant 4).
const ApiVersion = "1.0.0"

// Dimension is one (label, size) pair of a variable's declared shape.
type Dimension struct {
	Label string `json:"name"`
	Size  int64  `json:"size"`
}

// FieldSpec is one field of a structured dtype in the input document.
type FieldSpec struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ChunkGrid is the input document's chunk-grid sub-object.
type ChunkGrid struct {
	Configuration struct {
		ChunkShape []int64 `json:"chunkShape"`
	} `json:"configuration"`
}

// Compressor is the input document's compressor sub-object (spec §4.1).
type Compressor struct {
	ID        string `json:"id"`
	Algorithm string `json:"cname"`
	Level     *int   `json:"clevel,omitempty"`
	Shuffle   *int   `json:"shuffle,omitempty"`
	BlockSize *int   `json:"blocksize,omitempty"`
}

// VariableMetadata is the variable-level metadata sub-document: chunk
// grid, unit, and whatever UserAttributes fields (statsV1/attributes) are
// present at creation time.
type VariableMetadata struct {
	ChunkGrid  *ChunkGrid             `json:"chunkGrid,omitempty"`
	Compressor *Compressor            `json:"compressor,omitempty"`
	Unit       string                 `json:"unit,omitempty"`
	StatsV1    json.RawMessage        `json:"statsV1,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// VariableSpec is the external JSON-schema-validated shape of one
// variable within a dataset spec (spec §3, §4.1).
type VariableSpec struct {
	Name        string           `json:"name"`
	LongName    string           `json:"longName,omitempty"`
	Dtype       string           `json:"dtype,omitempty"`  // set for scalar dtypes
	Fields      []FieldSpec      `json:"fields,omitempty"` // set for structured dtypes
	Dimensions  []Dimension      `json:"dimensions"`
	Coordinates []string         `json:"coordinates,omitempty"`
	Metadata    VariableMetadata `json:"metadata"`
}

// DatasetSpec is the external JSON-schema-validated input document (spec
// §4.1's `construct(spec, root_path)` input, minus root_path which is
// supplied separately).
type DatasetSpec struct {
	Name       string                 `json:"name"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	Variables  []VariableSpec         `json:"variables"`
}

// Validator is the external JSON-schema conformance predicate spec §1
// treats as consumed, not part of the core. The default validator
// performs only a structural decode. Construct neither takes nor runs a
// Validator: a JSON-schema check (e.g. github.com/xeipuuv/gojsonschema),
// if any, is run by the caller on the raw document before it is decoded
// into a DatasetSpec.
type Validator func(raw []byte) error

// DecodeOnly is the default Validator: it only confirms raw decodes as a
// DatasetSpec, without enforcing the published JSON schema.
func DecodeOnly(raw []byte) error {
	var s DatasetSpec
	return json.Unmarshal(raw, &s)
}
