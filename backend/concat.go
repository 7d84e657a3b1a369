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

package backend

import (
	"context"
	"fmt"

	"github.com/scigrid/zdataset/zerr"
)

// concatStore is the Concat virtual view spec §4.3/§9 require for
// repeated-label slicing: N stores, each already independently sliced,
// stitched together along axisLabel in the order given. Reads concatenate
// each member's buffer along that axis; writes stripe the buffer back out
// to the member covering each offset range.
type concatStore struct {
	axisLabel string
	axisIndex int
	members   []ArrayStore
	domain    Domain
	chunks    []int64
}

func newConcatStore(axisLabel string, members []ArrayStore) (ArrayStore, error) {
	if len(members) == 0 {
		return nil, zerr.New(zerr.InvalidSlice, "concat: no member stores")
	}
	if len(members) == 1 {
		return members[0], nil
	}
	first := members[0].Domain()
	axisIndex := -1
	for i, iv := range first {
		if iv.Label == axisLabel {
			axisIndex = i
			break
		}
	}
	if axisIndex < 0 {
		return nil, zerr.New(zerr.UnknownDimension, "concat: axis %q not found", axisLabel)
	}
	domain := append(Domain(nil), first...)
	total := int64(0)
	for _, m := range members {
		d := m.Domain()
		iv, ok := d.ByLabel(axisLabel)
		if !ok {
			return nil, zerr.New(zerr.UnknownDimension, "concat: member missing axis %q", axisLabel)
		}
		total += iv.Size()
		for i, other := range d {
			if i == axisIndex {
				continue
			}
			if other.Size() != first[i].Size() {
				return nil, zerr.New(zerr.InconsistentDimensions,
					"concat: size mismatch on label %q across members", other.Label)
			}
		}
	}
	domain[axisIndex].Min = 0
	domain[axisIndex].Max = total
	return &concatStore{
		axisLabel: axisLabel,
		axisIndex: axisIndex,
		members:   members,
		domain:    domain,
		chunks:    members[0].ChunkShape(),
	}, nil
}

func (c *concatStore) Spec() Spec          { return c.members[0].Spec() }
func (c *concatStore) Domain() Domain      { return c.domain }
func (c *concatStore) ChunkShape() []int64 { return c.chunks }

func (c *concatStore) Read(ctx context.Context) Future[Buffer] {
	f, resolve := NewFuture[Buffer]()
	go func() {
		bufs := make([]Buffer, len(c.members))
		for i, m := range c.members {
			b, err := m.Read(ctx).Value()
			if err != nil {
				resolve(Buffer{}, err)
				return
			}
			bufs[i] = b
		}
		out, err := concatBuffers(bufs, c.axisIndex)
		resolve(out, err)
	}()
	return *f
}

func (c *concatStore) Write(ctx context.Context, buf Buffer) Future[struct{}] {
	f, resolve := NewFuture[struct{}]()
	go func() {
		parts, err := splitBuffer(buf, c.axisIndex, c.members)
		if err != nil {
			resolve(struct{}{}, err)
			return
		}
		for i, m := range c.members {
			if _, err := m.Write(ctx, parts[i]).Value(); err != nil {
				resolve(struct{}{}, err)
				return
			}
		}
		resolve(struct{}{}, nil)
	}()
	return *f
}

func (c *concatStore) Resize(ctx context.Context, implicitDims []string, newShape []int64, mode ResizeMode) Future[struct{}] {
	f, resolve := NewFuture[struct{}]()
	resolve(struct{}{}, fmt.Errorf("backend: resize is not supported on a concatenated view"))
	return *f
}

// concatBuffers stitches per-member buffers together along axis,
// assuming a uniform element width derived from total bytes / total
// elements (callers never mix dtypes across a repeated-label slice).
func concatBuffers(bufs []Buffer, axis int) (Buffer, error) {
	shape := append([]int64(nil), bufs[0].Shape...)
	var axisTotal int64
	for _, b := range bufs {
		axisTotal += b.Shape[axis]
	}
	shape[axis] = axisTotal

	elemSize, err := elemByteSize(bufs[0])
	if err != nil {
		return Buffer{}, err
	}
	outerStride, innerStride := strides(shape, axis, elemSize)
	out := make([]byte, product(shape)*int64(elemSize))
	preAxisCount := product(shape[:axis])

	axisOffsetElems := int64(0)
	for _, b := range bufs {
		bOuter, _ := strides(b.Shape, axis, elemSize)
		for o := int64(0); o < preAxisCount; o++ {
			srcBase := o * bOuter
			dstBase := o*outerStride + axisOffsetElems*innerStride
			n := b.Shape[axis] * innerStride
			copy(out[dstBase:dstBase+n], b.Bytes[srcBase:srcBase+n])
		}
		axisOffsetElems += b.Shape[axis]
	}
	return Buffer{Shape: shape, Bytes: out}, nil
}

// splitBuffer is the inverse of concatBuffers: it slices buf along axis
// into one part per member, matching each member's axis size.
func splitBuffer(buf Buffer, axis int, members []ArrayStore) ([]Buffer, error) {
	elemSize, err := elemByteSize(buf)
	if err != nil {
		return nil, err
	}
	outerStride, innerStride := strides(buf.Shape, axis, elemSize)
	parts := make([]Buffer, len(members))
	preAxisCount := product(buf.Shape[:axis])
	axisOffsetElems := int64(0)
	for i, m := range members {
		size := memberAxisSize(m, axis)
		shape := append([]int64(nil), buf.Shape...)
		shape[axis] = size
		data := make([]byte, product(shape)*int64(elemSize))
		for o := int64(0); o < preAxisCount; o++ {
			srcBase := o*outerStride + axisOffsetElems*innerStride
			dstBase := o * (size * innerStride)
			n := size * innerStride
			copy(data[dstBase:dstBase+n], buf.Bytes[srcBase:srcBase+n])
		}
		parts[i] = Buffer{Shape: shape, Bytes: data}
		axisOffsetElems += size
	}
	return parts, nil
}

func memberAxisSize(m ArrayStore, axis int) int64 {
	return m.Domain()[axis].Size()
}

func elemByteSize(b Buffer) (int64, error) {
	n := product(b.Shape)
	if n == 0 {
		return 0, nil
	}
	if len(b.Bytes)%int(n) != 0 {
		return 0, zerr.New(zerr.DtypeMismatch, "concat: buffer byte length not a multiple of element count")
	}
	return int64(len(b.Bytes)) / n, nil
}

// strides returns (outerStride, innerStride) in bytes for indexing a
// C-order buffer of shape at the given axis: innerStride is the byte
// stride of one step along axis, outerStride the stride of one step
// across everything at/after axis collapsed to size 1.
func strides(shape []int64, axis int, elemSize int64) (outer, inner int64) {
	inner = elemSize
	for i := len(shape) - 1; i > axis; i-- {
		inner *= shape[i]
	}
	outer = inner * shape[axis]
	return outer, inner
}

func product(shape []int64) int64 {
	p := int64(1)
	for _, s := range shape {
		p *= s
	}
	return p
}
