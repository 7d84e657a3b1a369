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

// Package metadata reads and writes the consolidated Zarr v2 documents a
// dataset root carries: .zgroup, root .zattrs, and the .zmetadata
// consolidation of every member's .zarray/.zattrs (spec §4.7, §6.1).
package metadata

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/scigrid/zdataset/backend"
	"github.com/scigrid/zdataset/zerr"
)

// coordinatesAttr joins coordinate names the CF-convention way the teacher's
// zattrs otherwise never touches, matching how variable.go already encodes
// and decodes its own "coordinates" attribute.
func coordinatesAttr(coordinates []string) string {
	return strings.Join(coordinates, " ")
}

// APIVersion is the value a dataset root .zattrs must carry under
// "apiVersion". The snake_case "api_version" key is the legacy marker
// spec §4.6 rejects with zerr.LegacyVersion.
const APIVersion = "1.0.0"

const (
	zgroupKey     = ".zgroup"
	rootZattrsKey = ".zattrs"
	zmetadataKey  = ".zmetadata"
)

// VariableEntry is one member's pair of per-variable documents, as they
// appear under "<name>/.zarray" and "<name>/.zattrs" in .zmetadata.
type VariableEntry struct {
	ZArray map[string]interface{}
	ZAttrs map[string]interface{}
}

// Consolidated is the parsed content of a dataset's .zmetadata, split back
// out into its root and per-variable pieces.
type Consolidated struct {
	ZGroup    map[string]interface{}
	RootAttrs map[string]interface{}
	Variables map[string]VariableEntry
}

// ZGroupDoc returns the fixed .zgroup document (spec §4.7).
func ZGroupDoc() map[string]interface{} {
	return map[string]interface{}{"zarr_format": 2}
}

// RootAttrsDoc builds the dataset-level .zattrs document: the full
// user-visible metadata document spec §3 describes (name, apiVersion,
// createdOn, attributes), not just the nested attributes map.
func RootAttrsDoc(name, createdOn string, attributes map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{
		"name":       name,
		"apiVersion": APIVersion,
		"createdOn":  createdOn,
	}
	if len(attributes) > 0 {
		out["attributes"] = attributes
	}
	return out
}

// BuildZMetadata assembles the consolidated document (spec §4.7): root
// .zgroup and .zattrs, plus every variable's .zarray/.zattrs keyed as
// "<name>/.zarray" and "<name>/.zattrs".
func BuildZMetadata(zgroup, rootAttrs map[string]interface{}, variables map[string]VariableEntry) map[string]interface{} {
	flat := map[string]interface{}{
		zgroupKey:     zgroup,
		rootZattrsKey: rootAttrs,
	}
	for name, v := range variables {
		flat[name+"/"+zarrayLeaf] = v.ZArray
		flat[name+"/"+zattrsLeaf] = v.ZAttrs
	}
	return map[string]interface{}{
		"zarr_consolidated_format": 1,
		"metadata":                 flat,
	}
}

const zarrayLeaf = ".zarray"
const zattrsLeaf = ".zattrs"

// WriteConsolidated writes .zgroup, root .zattrs, and .zmetadata to handle,
// waiting for every write to be acknowledged before returning (spec §4.6
// from_json / commit_metadata's "wait-all" barrier).
func WriteConsolidated(ctx context.Context, handle backend.KVHandle, zgroup, rootAttrs map[string]interface{}, variables map[string]VariableEntry) error {
	zmeta := BuildZMetadata(zgroup, rootAttrs, variables)

	zgroupBytes, err := json.Marshal(zgroup)
	if err != nil {
		return zerr.Wrap(zerr.BackendError, err, "metadata: marshal .zgroup")
	}
	rootAttrsBytes, err := json.Marshal(rootAttrs)
	if err != nil {
		return zerr.Wrap(zerr.BackendError, err, "metadata: marshal root .zattrs")
	}
	zmetaBytes, err := json.Marshal(zmeta)
	if err != nil {
		return zerr.Wrap(zerr.BackendError, err, "metadata: marshal .zmetadata")
	}

	if _, err := handle.Write(ctx, zgroupKey, zgroupBytes).Value(); err != nil {
		return zerr.WrapBackend(err, "metadata: writing .zgroup")
	}
	if _, err := handle.Write(ctx, rootZattrsKey, rootAttrsBytes).Value(); err != nil {
		return zerr.WrapBackend(err, "metadata: writing root .zattrs")
	}
	if _, err := handle.Write(ctx, zmetadataKey, zmetaBytes).Value(); err != nil {
		return zerr.WrapBackend(err, "metadata: writing .zmetadata")
	}
	return nil
}

// ReadConsolidated reads and parses .zmetadata, splitting it back into its
// root and per-variable documents. It fails with zerr.LegacyVersion if the
// root attributes carry the snake_case "api_version" key instead of
// "apiVersion" (spec §4.6 open).
func ReadConsolidated(ctx context.Context, handle backend.KVHandle) (Consolidated, error) {
	raw, err := handle.Read(ctx, zmetadataKey).Value()
	if err != nil {
		return Consolidated{}, zerr.WrapBackend(err, "metadata: reading .zmetadata")
	}
	var doc struct {
		Metadata map[string]json.RawMessage `json:"metadata"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Consolidated{}, zerr.Wrap(zerr.BackendError, err, "metadata: parsing .zmetadata")
	}

	out := Consolidated{Variables: make(map[string]VariableEntry)}
	for key, payload := range doc.Metadata {
		switch key {
		case zgroupKey:
			if err := json.Unmarshal(payload, &out.ZGroup); err != nil {
				return Consolidated{}, zerr.Wrap(zerr.BackendError, err, "metadata: parsing .zgroup")
			}
			continue
		case rootZattrsKey:
			if err := json.Unmarshal(payload, &out.RootAttrs); err != nil {
				return Consolidated{}, zerr.Wrap(zerr.BackendError, err, "metadata: parsing root .zattrs")
			}
			continue
		}
		name, leaf, ok := splitMemberKey(key)
		if !ok {
			continue
		}
		entry := out.Variables[name]
		var doc map[string]interface{}
		if err := json.Unmarshal(payload, &doc); err != nil {
			return Consolidated{}, zerr.Wrap(zerr.BackendError, err, "metadata: parsing %q", key)
		}
		switch leaf {
		case zarrayLeaf:
			entry.ZArray = doc
		case zattrsLeaf:
			entry.ZAttrs = doc
		default:
			continue
		}
		out.Variables[name] = entry
	}

	if _, legacy := out.RootAttrs["api_version"]; legacy {
		return Consolidated{}, zerr.New(zerr.LegacyVersion, "metadata: dataset root uses legacy api_version key")
	}
	return out, nil
}

func splitMemberKey(key string) (name, leaf string, ok bool) {
	idx := strings.LastIndex(key, "/")
	if idx < 0 {
		return "", "", false
	}
	return key[:idx], key[idx+1:], true
}

// VariableAttrsDoc builds a per-variable .zattrs document (spec §4.7):
// _ARRAY_DIMENSIONS is always present; coordinates, long_name, statsV1,
// and attributes appear only when non-empty.
func VariableAttrsDoc(dimNames []string, longName string, coordinates []string, statsV1 json.RawMessage, attributes map[string]interface{}) map[string]interface{} {
	doc := map[string]interface{}{
		"_ARRAY_DIMENSIONS": dimNames,
	}
	if longName != "" {
		doc["long_name"] = longName
	}
	if len(coordinates) > 0 {
		doc["coordinates"] = coordinatesAttr(coordinates)
	}
	if len(statsV1) > 0 && string(statsV1) != "null" {
		doc["statsV1"] = statsV1
	}
	if len(attributes) > 0 {
		doc["attributes"] = attributes
	}
	return doc
}
