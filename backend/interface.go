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

// Package backend declares the seam between zdataset's core (schema,
// variable, dataset) and the chunked-array engine spec §6.4 explicitly
// keeps out of scope: a labeled, chunked ArrayStore, a scheme-addressed
// KVStore, a Concat virtual view for repeated-label slicing, and a Future
// type for asynchronous I/O. Package backend/localzarr provides one
// concrete implementation of this interface.
package backend

import "context"

// Interval is a labeled axis's half-open extent [Min, Max).
type Interval struct {
	Label string
	Min   int64
	Max   int64
}

func (iv Interval) Size() int64 { return iv.Max - iv.Min }

// Domain is an ordered set of labeled intervals, e.g. an ArrayStore's
// declared shape or a Dataset's union domain.
type Domain []Interval

// ByLabel looks up an interval by label.
func (d Domain) ByLabel(label string) (Interval, bool) {
	for _, iv := range d {
		if iv.Label == label {
			return iv, true
		}
	}
	return Interval{}, false
}

// Spec is the backend-specific open/create specification produced by the
// schema factory (spec §4.1): driver, kvstore location, and Zarr
// metadata (dtype, shape, chunks, compressor, fill_value,
// dimension_separator).
type Spec struct {
	Driver   string                 `json:"driver"`
	KVStore  map[string]interface{} `json:"kvstore"`
	Metadata map[string]interface{} `json:"metadata"`
}

// OpenMode mirrors spec §6.3.
type OpenMode int

const (
	Open OpenMode = iota
	Create
	CreateClean
)

// ResizeMode selects whether Resize also truncates chunks now outside the
// new shape (spec §4.8 trim_dataset).
type ResizeMode int

const (
	ResizeMetadataOnly ResizeMode = iota
	ResizeTiedBounds
)

// Buffer is the wire-level payload moved in and out of an ArrayStore: a
// flat, C-ordered element buffer plus the shape it represents. Higher
// layers (vardata.Data) add labels on top of this.
type Buffer struct {
	Shape []int64
	Bytes []byte // raw encoded elements, C order
}

// ArrayStore is a single opened chunked array: spec §6.4's "per chunked
// array" surface.
type ArrayStore interface {
	Spec() Spec
	Domain() Domain
	ChunkShape() []int64
	Read(ctx context.Context) Future[Buffer]
	Write(ctx context.Context, buf Buffer) Future[struct{}]
	Resize(ctx context.Context, implicitDims []string, newShape []int64, mode ResizeMode) Future[struct{}]
}

// KVStore is the scheme-addressed key/value substrate an ArrayStore lays
// its chunks and metadata documents on top of (spec §6.2, §6.4).
type KVStore interface {
	Open(ctx context.Context, spec map[string]interface{}) (KVHandle, error)
}

// KVHandle is an opened KVStore location.
type KVHandle interface {
	Read(ctx context.Context, key string) Future[[]byte]
	Write(ctx context.Context, key string, data []byte) Future[struct{}]
	DeleteRange(ctx context.Context, prefix string) Future[struct{}]
	List(ctx context.Context, prefix string) Future[[]string]
}

// ConcatStores builds a virtual ArrayStore that reads/writes across stores as if
// they were one array, concatenated along axis in the given order. This is
// the mechanism spec §4.3/§9 require for repeated-label slicing.
func ConcatStores(axisLabel string, stores []ArrayStore) (ArrayStore, error) {
	return newConcatStore(axisLabel, stores)
}
