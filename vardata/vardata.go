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

// Package vardata is the in-memory labeled array returned by Variable.read
// (spec §4.4): a typed view over a reference-counted contiguous buffer,
// with origin-aware multi-index and flat-pointer access and a slice
// operation that mirrors Variable's label rules without touching the
// backend.
package vardata

import (
	"sync/atomic"

	"github.com/scigrid/zdataset/backend"
	"github.com/scigrid/zdataset/dtype"
	"github.com/scigrid/zdataset/zerr"
)

// maxDescriptors bounds the slice descriptor count, per spec §4.3.
const maxDescriptors = 32

// Descriptor narrows one labeled axis. Step must currently be 1 (spec
// §4.3); Label == "" is the inert sentinel used by fixed-arity overloads
// and is always ignored.
type Descriptor struct {
	Label       string
	Start, Stop int64
	Step        int64
}

// sharedBuffer is the reference-counted payload backing one or more Data
// views; every Slice that doesn't require concatenation shares the same
// sharedBuffer rather than copying.
type sharedBuffer struct {
	refs  int32
	bytes []byte
}

func newSharedBuffer(b []byte) *sharedBuffer { return &sharedBuffer{refs: 1, bytes: b} }

func (s *sharedBuffer) retain() { atomic.AddInt32(&s.refs, 1) }

func (s *sharedBuffer) release() int32 { return atomic.AddInt32(&s.refs, -1) }

// Data is an in-memory labeled array: name/longName carried along from the
// Variable it was read from, a dtype, this view's own labeled axes (origin
// reflects any slicing already applied), per-axis element strides into the
// shared buffer, and flattenedOffset, the element distance from the
// buffer's element 0 to this view's first element.
type Data struct {
	Name, LongName  string
	dt              dtype.DType
	elemSize        int64
	dims            backend.Domain
	strides         []int64
	flattenedOffset int64
	buf             *sharedBuffer
}

// New wraps a freshly decoded, tightly packed C-order buffer — the shape
// Variable.read() produces — as a Data with row-major strides and a zero
// flattened offset.
func New(name, longName string, dt dtype.DType, dims backend.Domain, elemSize int64, bytes []byte) Data {
	return Data{
		Name: name, LongName: longName, dt: dt, elemSize: elemSize,
		dims:    append(backend.Domain(nil), dims...),
		strides: rowMajorStrides(dims),
		buf:     newSharedBuffer(bytes),
	}
}

func rowMajorStrides(dims backend.Domain) []int64 {
	n := len(dims)
	strides := make([]int64, n)
	if n == 0 {
		return strides
	}
	strides[n-1] = 1
	for i := n - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * dims[i+1].Size()
	}
	return strides
}

// Retain increments the view's reference count on its shared buffer; pair
// with Release when a second owner (e.g. a cached copy) is done with it.
func (d Data) Retain() Data {
	d.buf.retain()
	return d
}

// Release decrements the reference count on the shared buffer. The
// contents must not be touched through this Data after calling Release.
func (d Data) Release() {
	d.buf.release()
}

// Dtype returns the element (or record) type of this view.
func (d Data) Dtype() dtype.DType { return d.dt }

// Rank returns the number of labeled axes.
func (d Data) Rank() int { return len(d.dims) }

// Dimensions returns this view's labeled axes (label, origin, size).
func (d Data) Dimensions() backend.Domain { return append(backend.Domain(nil), d.dims...) }

// NumSamples returns the product of all axis sizes.
func (d Data) NumSamples() int64 {
	n := int64(1)
	for _, iv := range d.dims {
		n *= iv.Size()
	}
	return n
}

// FlattenedOffset returns the element distance from the shared buffer's
// element 0 to this view's own origin, for tight-loop pointer-style code
// that walks the buffer directly.
func (d Data) FlattenedOffset() int64 { return d.flattenedOffset }

// Strides returns the per-axis element stride into the shared buffer.
func (d Data) Strides() []int64 { return append([]int64(nil), d.strides...) }

// IsContiguous reports whether this view's strides are exactly row-major
// for its own shape, i.e. whether Bytes can return a reference instead of
// a copy.
func (d Data) IsContiguous() bool {
	want := rowMajorStrides(d.dims)
	for i := range want {
		if want[i] != d.strides[i] {
			return false
		}
	}
	return true
}

// Bytes returns this view's elements as a single tightly packed buffer,
// materializing a copy when the view isn't already contiguous (e.g. after
// a concatenating Slice whose segments were themselves strided).
func (d Data) Bytes() []byte {
	if d.IsContiguous() {
		start := d.flattenedOffset * d.elemSize
		return d.buf.bytes[start : start+d.NumSamples()*d.elemSize]
	}
	return d.gatherContiguous()
}

// At returns the element (or record) bytes at the given multi-index,
// within this view's own coordinate space (0-based, not absolute labels).
func (d Data) At(index []int64) ([]byte, error) {
	if len(index) != len(d.dims) {
		return nil, zerr.New(zerr.InvalidSlice, "index rank %d does not match data rank %d", len(index), len(d.dims))
	}
	off := d.flattenedOffset
	for i, idx := range index {
		if idx < 0 || idx >= d.dims[i].Size() {
			return nil, zerr.New(zerr.InvalidSlice, "index %d out of bounds on axis %q (size %d)", idx, d.dims[i].Label, d.dims[i].Size())
		}
		off += idx * d.strides[i]
	}
	start := off * d.elemSize
	return d.buf.bytes[start : start+d.elemSize], nil
}

// Slice narrows labeled axes without any I/O, mirroring spec §4.3's
// clamp-to-domain and repeated-label-concatenation rules. A single
// descriptor per label never copies (it only adjusts origin/strides); a
// repeated label forces a materializing concatenation along that axis.
func (d Data) Slice(descs ...Descriptor) (Data, error) {
	if len(descs) > maxDescriptors {
		return Data{}, zerr.New(zerr.InvalidSlice, "too many slice descriptors (max %d)", maxDescriptors)
	}
	byLabel := make(map[string][]Descriptor)
	order := []string{}
	for _, desc := range descs {
		if desc.Label == "" {
			continue
		}
		if desc.Step != 0 && desc.Step != 1 {
			return Data{}, zerr.New(zerr.InvalidSlice, "slice step must be 1, got %d", desc.Step)
		}
		if desc.Start > desc.Stop {
			return Data{}, zerr.New(zerr.InvalidSlice, "slice start %d > stop %d on label %q", desc.Start, desc.Stop, desc.Label)
		}
		if _, seen := byLabel[desc.Label]; !seen {
			order = append(order, desc.Label)
		}
		byLabel[desc.Label] = append(byLabel[desc.Label], desc)
	}

	out := d
	for _, label := range order {
		group := byLabel[label]
		axis, iv, ok := findAxis(out.dims, label)
		if !ok {
			continue // unknown label silently ignored, per spec §4.3
		}
		if len(group) == 1 {
			var err error
			out, err = out.sliceSingle(axis, iv, group[0])
			if err != nil {
				return Data{}, err
			}
			continue
		}
		var err error
		out, err = out.sliceRepeated(axis, iv, group)
		if err != nil {
			return Data{}, err
		}
	}
	return out, nil
}

func findAxis(dims backend.Domain, label string) (int, backend.Interval, bool) {
	for i, iv := range dims {
		if iv.Label == label {
			return i, iv, true
		}
	}
	return 0, backend.Interval{}, false
}

func (d Data) sliceSingle(axis int, iv backend.Interval, desc Descriptor) (Data, error) {
	start, stop := clamp(desc, iv)
	if start > stop {
		return Data{}, zerr.New(zerr.InvalidSlice, "clamped slice is empty on label %q", iv.Label)
	}
	out := d
	out.dims = append(backend.Domain(nil), d.dims...)
	out.dims[axis] = backend.Interval{Label: iv.Label, Min: start, Max: stop}
	out.flattenedOffset = d.flattenedOffset + (start-iv.Min)*d.strides[axis]
	out.buf = d.buf.retainRef()
	return out, nil
}

func clamp(desc Descriptor, iv backend.Interval) (int64, int64) {
	start := desc.Start
	if start < iv.Min {
		start = iv.Min
	}
	stop := desc.Stop
	if stop > iv.Max {
		stop = iv.Max
	}
	return start, stop
}

// sliceRepeated implements the repeated-label branch of §4.3: every
// descriptor for this label must describe a disjoint sub-range; each is
// sliced independently and the results concatenated, in descriptor order,
// along axis. Concatenation always materializes a new contiguous buffer.
func (d Data) sliceRepeated(axis int, iv backend.Interval, group []Descriptor) (Data, error) {
	type seg struct{ start, stop int64 }
	segs := make([]seg, 0, len(group))
	for _, desc := range group {
		start, stop := clamp(desc, iv)
		if start > stop {
			return Data{}, zerr.New(zerr.InvalidSlice, "clamped slice is empty on label %q", iv.Label)
		}
		for _, other := range segs {
			if start < other.stop && other.start < stop {
				return Data{}, zerr.New(zerr.InvalidSlice, "repeated slice descriptors on label %q are not disjoint", iv.Label)
			}
		}
		segs = append(segs, seg{start, stop})
	}

	parts := make([][]byte, len(segs))
	partAxisSizes := make([]int64, len(segs))
	var axisTotal int64
	var baseShape []int64
	for i, s := range segs {
		view := d
		view.dims = append(backend.Domain(nil), d.dims...)
		view.dims[axis] = backend.Interval{Label: iv.Label, Min: s.start, Max: s.stop}
		view.flattenedOffset = d.flattenedOffset + (s.start-iv.Min)*d.strides[axis]
		parts[i] = view.gatherContiguous()
		partAxisSizes[i] = s.stop - s.start
		axisTotal += partAxisSizes[i]
		if baseShape == nil {
			baseShape = sizesOf(d.dims) // every segment agrees with d on every axis but axis
		}
	}

	outBytes := concatAlongAxis(parts, partAxisSizes, baseShape, axis, d.elemSize)

	outDims := append(backend.Domain(nil), d.dims...)
	outDims[axis] = backend.Interval{Label: iv.Label, Min: 0, Max: axisTotal}
	return Data{
		Name: d.Name, LongName: d.LongName, dt: d.dt, elemSize: d.elemSize,
		dims:    outDims,
		strides: rowMajorStrides(outDims),
		buf:     newSharedBuffer(outBytes),
	}, nil
}

func sizesOf(dims backend.Domain) []int64 {
	out := make([]int64, len(dims))
	for i, iv := range dims {
		out[i] = iv.Size()
	}
	return out
}

// gatherContiguous walks this view's strides recursively, copying one
// element at a time into a freshly allocated row-major buffer.
func (d Data) gatherContiguous() []byte {
	shape := sizesOf(d.dims)
	out := make([]byte, d.NumSamples()*d.elemSize)
	outStrides := rowMajorStrides(d.dims)
	idx := make([]int64, len(shape))
	var rec func(axis int)
	rec = func(axis int) {
		if axis == len(shape) {
			srcOff := d.flattenedOffset
			dstOff := int64(0)
			for i, v := range idx {
				srcOff += v * d.strides[i]
				dstOff += v * outStrides[i]
			}
			copy(out[dstOff*d.elemSize:dstOff*d.elemSize+d.elemSize], d.buf.bytes[srcOff*d.elemSize:srcOff*d.elemSize+d.elemSize])
			return
		}
		for i := int64(0); i < shape[axis]; i++ {
			idx[axis] = i
			rec(axis + 1)
		}
	}
	if len(shape) == 0 {
		copy(out, d.buf.bytes[d.flattenedOffset*d.elemSize:d.flattenedOffset*d.elemSize+d.elemSize])
		return out
	}
	rec(0)
	return out
}

// concatAlongAxis stitches already-contiguous, row-major parts together
// along axis: baseShape is the common shape of every part except at axis,
// where partAxisSizes gives each part's individual size.
func concatAlongAxis(parts [][]byte, partAxisSizes, baseShape []int64, axis int, elemSize int64) []byte {
	var axisTotal int64
	for _, s := range partAxisSizes {
		axisTotal += s
	}
	outShape := append([]int64(nil), baseShape...)
	outShape[axis] = axisTotal
	_, outInner := byteStrides(outShape, axis, elemSize)
	outerCount := productI64(baseShape[:axis])
	outOuter := outInner * axisTotal
	out := make([]byte, productI64(outShape)*elemSize)

	axisOffset := int64(0)
	for i, part := range parts {
		size := partAxisSizes[i]
		pOuter := outInner * size
		for o := int64(0); o < outerCount; o++ {
			srcBase := o * pOuter
			dstBase := o*outOuter + axisOffset*outInner
			n := size * outInner
			copy(out[dstBase:dstBase+n], part[srcBase:srcBase+n])
		}
		axisOffset += size
	}
	return out
}

func byteStrides(shape []int64, axis int, elemSize int64) (outer, inner int64) {
	inner = elemSize
	for i := len(shape) - 1; i > axis; i-- {
		inner *= shape[i]
	}
	outer = inner * shape[axis]
	return outer, inner
}

func productI64(shape []int64) int64 {
	p := int64(1)
	for _, s := range shape {
		p *= s
	}
	return p
}

func (s *sharedBuffer) retainRef() *sharedBuffer {
	s.retain()
	return s
}
