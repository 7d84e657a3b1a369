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
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/scigrid/zdataset/backend"
	"github.com/scigrid/zdataset/zerr"
)

// Store is the concrete backend.ArrayStore for one Zarr v2 array: a
// KVHandle holding ".zarray"/".zattrs"/chunk keys, chunked per
// spec.Metadata.chunks, compressed per spec.Metadata.compressor, cached
// through a shared *backend.Context (spec §5's cache pool).
type Store struct {
	spec    backend.Spec
	handle  backend.KVHandle
	kvctx   *backend.Context
	codec   Codec
	shape   []int64
	chunks  []int64
	labels  []string
	elem    int64 // element byte width (structured records use their total record width)
	origin  []int64
}

// Open creates a Store from a backend.Spec and an already-opened
// backend.KVHandle. The caller (the variable package) is responsible for
// deriving the handle from spec.KVStore via a backend.KVStore. dimNames
// supplies the axis labels: .zarray never carries them (spec §6.1 reserves
// dimension names for .zattrs's _ARRAY_DIMENSIONS), so the caller resolves
// them from the schema factory's attributes document or an existing
// .zattrs before calling Open. A mismatched or empty dimNames falls back
// to synthetic "dim_N" labels.
func Open(spec backend.Spec, handle backend.KVHandle, zctx *backend.Context, elemWidth int64, dimNames []string) (*Store, error) {
	shape, err := int64Slice(spec.Metadata["shape"])
	if err != nil {
		return nil, err
	}
	chunks, err := int64Slice(spec.Metadata["chunks"])
	if err != nil {
		return nil, err
	}
	labels := dimNames
	if len(labels) != len(shape) {
		labels = make([]string, len(shape))
		for i := range labels {
			labels[i] = fmt.Sprintf("dim_%d", i)
		}
	}
	cfg := compressorFromMetadata(spec.Metadata["compressor"])
	codec, err := NewCodec(cfg)
	if err != nil {
		return nil, zerr.New(zerr.UnsupportedCompressor, "%v", err)
	}
	if zctx == nil {
		zctx = backend.DefaultContext(1)
	}
	return &Store{
		spec: spec, handle: handle, kvctx: zctx, codec: codec,
		shape: shape, chunks: chunks, labels: labels, elem: elemWidth,
		origin: make([]int64, len(shape)),
	}, nil
}

// compressorFromMetadata decodes the spec §4.1 `metadata.compressor`
// object, whose keys (cname/clevel/shuffle/blocksize) follow numcodecs'
// blosc naming as the schema factory writes them.
func compressorFromMetadata(v interface{}) CompressorConfig {
	m, ok := v.(map[string]interface{})
	if !ok {
		return DefaultCompressor()
	}
	cfg := DefaultCompressor()
	// Numbers are float64 after a JSON round trip and int when the map
	// comes straight from the schema factory.
	asInt := func(x interface{}) (int, bool) {
		switch n := x.(type) {
		case float64:
			return int(n), true
		case int:
			return n, true
		}
		return 0, false
	}
	if id, ok := m["id"].(string); ok {
		cfg.ID = id
	}
	if alg, ok := m["cname"].(string); ok {
		cfg.Algorithm = alg
	}
	if lvl, ok := asInt(m["clevel"]); ok {
		cfg.Level = lvl
	}
	if sh, ok := asInt(m["shuffle"]); ok {
		cfg.Shuffle = sh
	}
	if bs, ok := asInt(m["blocksize"]); ok {
		cfg.BlockSize = bs
	}
	return cfg
}

func int64Slice(v interface{}) ([]int64, error) {
	arr, ok := v.([]interface{})
	if !ok {
		if direct, ok := v.([]int64); ok {
			return direct, nil
		}
		return nil, zerr.New(zerr.BackendError, "localzarr: malformed shape/chunks field")
	}
	out := make([]int64, len(arr))
	for i, e := range arr {
		switch n := e.(type) {
		case float64:
			out[i] = int64(n)
		case int64:
			out[i] = n
		case int:
			out[i] = int64(n)
		default:
			return nil, zerr.New(zerr.BackendError, "localzarr: malformed shape/chunks element")
		}
	}
	return out, nil
}

func (s *Store) Spec() backend.Spec { return s.spec }

func (s *Store) Domain() backend.Domain {
	d := make(backend.Domain, len(s.shape))
	for i := range s.shape {
		d[i] = backend.Interval{Label: s.labels[i], Min: s.origin[i], Max: s.origin[i] + s.shape[i]}
	}
	return d
}

func (s *Store) ChunkShape() []int64 { return s.chunks }

// chunkKey builds the "/"-separated chunk key for the chunk containing
// element coordinates, per spec §4.1 dimension_separator and §6.1.
func chunkKey(coord []int64) string {
	parts := make([]string, len(coord))
	for i, c := range coord {
		parts[i] = strconv.FormatInt(c, 10)
	}
	return strings.Join(parts, "/")
}

func ceilDiv(a, b int64) int64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// allChunkCoords returns every chunk-grid coordinate whose chunk
// overlaps [0, shape) in every axis (i.e. the whole array).
func (s *Store) allChunkCoords() [][]int64 {
	nchunks := make([]int64, len(s.shape))
	for i := range s.shape {
		nchunks[i] = ceilDiv(s.shape[i], s.chunks[i])
	}
	var out [][]int64
	cur := make([]int64, len(nchunks))
	var rec func(axis int)
	rec = func(axis int) {
		if axis == len(nchunks) {
			out = append(out, append([]int64(nil), cur...))
			return
		}
		for c := int64(0); c < nchunks[axis]; c++ {
			cur[axis] = c
			rec(axis + 1)
		}
	}
	if len(nchunks) == 0 {
		return [][]int64{{}}
	}
	rec(0)
	return out
}

// Read fetches and decompresses every chunk, assembling them into one
// C-order Buffer covering the whole declared shape.
func (s *Store) Read(ctx context.Context) backend.Future[backend.Buffer] {
	f, resolve := backend.NewFuture[backend.Buffer]()
	go func() {
		total := int64(1)
		for _, n := range s.shape {
			total *= n
		}
		out := make([]byte, total*s.elem)

		coords := s.allChunkCoords()
		g, gctx := errgroup.WithContext(ctx)
		for _, coord := range coords {
			coord := coord
			g.Go(func() error {
				return s.readChunkInto(gctx, coord, out)
			})
		}
		if err := g.Wait(); err != nil {
			resolve(backend.Buffer{}, zerr.New(zerr.ReadFailed, "localzarr: %v", err))
			return
		}
		resolve(backend.Buffer{Shape: append([]int64(nil), s.shape...), Bytes: out}, nil)
	}()
	return *f
}

func (s *Store) readChunkInto(ctx context.Context, coord []int64, out []byte) error {
	key := chunkKey(coord)
	raw, err := s.kvctx.FetchChunk(ctx, s.handle, key)
	if err != nil {
		// Missing chunks decode as the fill value (left zero here); the
		// reference backend doesn't persist an explicit fill_value byte
		// pattern into unwritten regions beyond zero.
		return nil
	}
	data, err := s.codec.Decode(raw)
	if err != nil {
		return err
	}
	s.scatterChunk(coord, data, out)
	return nil
}

// scatterChunk copies a decoded chunk's bytes into their position in the
// full C-order array buffer.
func (s *Store) scatterChunk(coord []int64, data []byte, out []byte) {
	rank := len(s.shape)
	chunkOrigin := make([]int64, rank)
	chunkShape := make([]int64, rank)
	for i := 0; i < rank; i++ {
		chunkOrigin[i] = coord[i] * s.chunks[i]
		end := chunkOrigin[i] + s.chunks[i]
		if end > s.shape[i] {
			end = s.shape[i]
		}
		chunkShape[i] = end - chunkOrigin[i]
	}
	copyNDRegion(out, s.shape, chunkOrigin, chunkShape, data, s.elem, false)
}

// Write compresses and stores one chunk per the chunk grid, assuming buf
// covers the whole declared shape (sliced/windowed writes are handled by
// the window wrapper in window.go).
func (s *Store) Write(ctx context.Context, buf backend.Buffer) backend.Future[struct{}] {
	f, resolve := backend.NewFuture[struct{}]()
	go func() {
		coords := s.allChunkCoords()
		g, gctx := errgroup.WithContext(ctx)
		for _, coord := range coords {
			coord := coord
			g.Go(func() error {
				return s.writeChunkFrom(gctx, coord, buf.Bytes)
			})
		}
		if err := g.Wait(); err != nil {
			resolve(struct{}{}, zerr.New(zerr.BackendError, "localzarr: %v", err))
			return
		}
		resolve(struct{}{}, nil)
	}()
	return *f
}

func (s *Store) writeChunkFrom(ctx context.Context, coord []int64, full []byte) error {
	rank := len(s.shape)
	chunkOrigin := make([]int64, rank)
	chunkShape := make([]int64, rank)
	total := int64(1)
	for i := 0; i < rank; i++ {
		chunkOrigin[i] = coord[i] * s.chunks[i]
		end := chunkOrigin[i] + s.chunks[i]
		if end > s.shape[i] {
			end = s.shape[i]
		}
		chunkShape[i] = end - chunkOrigin[i]
		total *= chunkShape[i]
	}
	data := make([]byte, total*s.elem)
	copyNDRegion(full, s.shape, chunkOrigin, chunkShape, data, s.elem, true)
	compressed, err := s.codec.Encode(data)
	if err != nil {
		return err
	}
	_, err = s.handle.Write(ctx, chunkKey(coord), compressed).Value()
	return err
}

// Resize changes the store's declared shape and, when mode is
// ResizeTiedBounds, deletes chunks now entirely outside the new shape
// (spec §4.8 trim_dataset). implicitDims is accepted for interface
// parity with the backend contract; this reference backend treats every
// dimension as explicit.
func (s *Store) Resize(ctx context.Context, implicitDims []string, newShape []int64, mode backend.ResizeMode) backend.Future[struct{}] {
	f, resolve := backend.NewFuture[struct{}]()
	go func() {
		if len(newShape) != len(s.shape) {
			resolve(struct{}{}, zerr.New(zerr.InvalidSlice, "localzarr: resize rank mismatch"))
			return
		}
		old := s.shape
		s.shape = append([]int64(nil), newShape...)
		if mode == backend.ResizeTiedBounds {
			for _, coord := range s.chunkCoordsOutside(old, newShape) {
				if _, err := s.handle.DeleteRange(ctx, chunkKey(coord)).Value(); err != nil {
					resolve(struct{}{}, err)
					return
				}
			}
		}
		resolve(struct{}{}, nil)
	}()
	return *f
}

func (s *Store) chunkCoordsOutside(oldShape, newShape []int64) [][]int64 {
	nchunks := make([]int64, len(oldShape))
	for i := range oldShape {
		nchunks[i] = ceilDiv(oldShape[i], s.chunks[i])
	}
	var out [][]int64
	cur := make([]int64, len(nchunks))
	var rec func(axis int)
	rec = func(axis int) {
		if axis == len(nchunks) {
			outside := false
			for i, c := range cur {
				if c*s.chunks[i] >= newShape[i] {
					outside = true
					break
				}
			}
			if outside {
				out = append(out, append([]int64(nil), cur...))
			}
			return
		}
		for c := int64(0); c < nchunks[axis]; c++ {
			cur[axis] = c
			rec(axis + 1)
		}
	}
	rec(0)
	return out
}
