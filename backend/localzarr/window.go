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

package localzarr

import (
	"context"
	"fmt"

	"github.com/scigrid/zdataset/backend"
)

// Window is a half-open hyper-rectangular view over a base
// backend.ArrayStore, used to implement label-based slicing (spec §4.3)
// without copying the base store's chunks: reads/writes translate window
// coordinates to base coordinates by delegating to the base's full
// Read/Write. A Read reads the whole base and slices out the window; a
// Write reads the whole base, overlays the window and writes the whole
// base back, so every chunk of the base is touched, not only the chunks
// the window overlaps.
type Window struct {
	base   backend.ArrayStore
	domain backend.Domain // in the same absolute coordinate space as base.Domain()
}

// NewWindow clamps each requested interval to the base's domain (spec
// §4.3 "clamp-to-domain") and returns the resulting view. Labels not
// present on base are ignored, matching spec §4.3's composability rule.
func NewWindow(base backend.ArrayStore, requested []backend.Interval) (backend.ArrayStore, error) {
	baseDomain := base.Domain()
	out := append(backend.Domain(nil), baseDomain...)
	for _, req := range requested {
		for i, iv := range out {
			if iv.Label != req.Label {
				continue
			}
			min := req.Min
			if min < iv.Min {
				min = iv.Min
			}
			max := req.Max
			if max > iv.Max {
				max = iv.Max
			}
			if min > max {
				return nil, fmt.Errorf("localzarr: clamped slice is empty on label %q", req.Label)
			}
			out[i] = backend.Interval{Label: iv.Label, Min: min, Max: max}
		}
	}
	return &Window{base: base, domain: out}, nil
}

func (w *Window) Spec() backend.Spec     { return w.base.Spec() }
func (w *Window) Domain() backend.Domain { return w.domain }
func (w *Window) ChunkShape() []int64    { return w.base.ChunkShape() }

func (w *Window) Read(ctx context.Context) backend.Future[backend.Buffer] {
	f, resolve := backend.NewFuture[backend.Buffer]()
	go func() {
		full, err := w.base.Read(ctx).Value()
		if err != nil {
			resolve(backend.Buffer{}, err)
			return
		}
		baseDomain := w.base.Domain()
		origin := make([]int64, len(baseDomain))
		shape := make([]int64, len(baseDomain))
		for i, biv := range baseDomain {
			wiv := w.domain[i]
			origin[i] = wiv.Min - biv.Min
			shape[i] = wiv.Size()
		}
		elem, err := elemByteSize(full)
		if err != nil {
			resolve(backend.Buffer{}, err)
			return
		}
		data := make([]byte, product(shape)*elem)
		copyNDRegion(full.Bytes, full.Shape, origin, shape, data, elem, true)
		resolve(backend.Buffer{Shape: shape, Bytes: data}, nil)
	}()
	return *f
}

func (w *Window) Write(ctx context.Context, buf backend.Buffer) backend.Future[struct{}] {
	f, resolve := backend.NewFuture[struct{}]()
	go func() {
		full, err := w.base.Read(ctx).Value()
		if err != nil {
			resolve(struct{}{}, err)
			return
		}
		baseDomain := w.base.Domain()
		origin := make([]int64, len(baseDomain))
		for i, biv := range baseDomain {
			wiv := w.domain[i]
			origin[i] = wiv.Min - biv.Min
		}
		elem, err := elemByteSize(buf)
		if err != nil {
			resolve(struct{}{}, err)
			return
		}
		copyNDRegion(full.Bytes, full.Shape, origin, buf.Shape, buf.Bytes, elem, false)
		_, err = w.base.Write(ctx, full).Value()
		resolve(struct{}{}, err)
	}()
	return *f
}

func (w *Window) Resize(ctx context.Context, implicitDims []string, newShape []int64, mode backend.ResizeMode) backend.Future[struct{}] {
	f, resolve := backend.NewFuture[struct{}]()
	resolve(struct{}{}, fmt.Errorf("localzarr: resize is not supported on a sliced view; resize the unsliced variable"))
	return *f
}

func elemByteSize(b backend.Buffer) (int64, error) {
	n := int64(1)
	for _, s := range b.Shape {
		n *= s
	}
	if n == 0 {
		return 0, nil
	}
	return int64(len(b.Bytes)) / n, nil
}

func product(shape []int64) int64 {
	p := int64(1)
	for _, s := range shape {
		p *= s
	}
	return p
}
