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

// Package variable implements the Variable handle (spec §4.3): a typed,
// labeled view over a chunked backing store, with label-based slicing,
// structured-dtype field selection, lazy async read/write, and in-place
// metadata editing with deferred publication.
package variable

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/scigrid/zdataset/attrs"
	"github.com/scigrid/zdataset/backend"
	"github.com/scigrid/zdataset/backend/localzarr"
	"github.com/scigrid/zdataset/dtype"
	"github.com/scigrid/zdataset/metadata"
	"github.com/scigrid/zdataset/vardata"
	"github.com/scigrid/zdataset/zerr"
)

// State is the variable-metadata lifecycle state (spec §4.3).
type State int

const (
	Clean State = iota
	Dirty
	Publishing
)

func (s State) String() string {
	switch s {
	case Clean:
		return "Clean"
	case Dirty:
		return "Dirty"
	case Publishing:
		return "Publishing"
	default:
		return "Unknown"
	}
}

const zarrayKey = ".zarray"
const zattrsKey = ".zattrs"

// Variable is the handle described by spec §4.3: immutable identity and
// shape/codec/dtype metadata, a shared UserAttributes reference, a
// must-republish flag tracked through a small state machine, and an opaque
// backend store carrying axis labels.
type Variable struct {
	name, longName string
	dt             dtype.DType
	chunkShape     []int64
	coordinates    []string
	backendSpec    backend.Spec
	store          backend.ArrayStore
	kv             backend.KVHandle
	zctx           *backend.Context
	attrs          *attrs.Handle
	state          State
}

func elemWidth(dt dtype.DType) (int64, error) { return dt.ElemWidth() }

// Open opens an existing variable (mode Open, fails if absent) or creates
// one from a freshly expanded backend.Spec (modes Create/CreateClean), per
// spec §4.3/§6.3. attributes is the schema factory's §4.1 per-variable
// attributes document (dimension_names, long_name, coordinates, statsV1,
// attributes) and is only consulted on create.
func Open(ctx context.Context, name string, spec backend.Spec, attributes map[string]interface{}, mode backend.OpenMode, kvstore backend.KVStore, zctx *backend.Context) (*Variable, error) {
	handle, err := kvstore.Open(ctx, spec.KVStore)
	if err != nil {
		return nil, zerr.WrapBackend(err, "variable %q: opening kvstore", name)
	}

	existing, existsErr := handle.Read(ctx, zarrayKey).Value()
	exists := existsErr == nil

	switch mode {
	case backend.Open:
		if !exists {
			return nil, zerr.New(zerr.BackendError, "variable %q: does not exist", name)
		}
	case backend.Create:
		if exists {
			return nil, zerr.New(zerr.BackendError, "variable %q: already exists", name)
		}
	case backend.CreateClean:
		if exists {
			if _, err := handle.DeleteRange(ctx, "").Value(); err != nil {
				return nil, zerr.WrapBackend(err, "variable %q: clearing existing contents", name)
			}
			exists = false
		}
	}

	var v *Variable
	if exists {
		v, err = openExisting(ctx, name, spec, handle, existing, zctx)
	} else {
		v, err = createNew(ctx, name, spec, attributes, handle, zctx)
	}
	if err != nil {
		return nil, err
	}
	v.kv = handle
	v.zctx = zctx
	return v, nil
}

func createNew(ctx context.Context, name string, spec backend.Spec, attributes map[string]interface{}, handle backend.KVHandle, zctx *backend.Context) (*Variable, error) {
	dt, err := dtype.FromZarrMetadata(spec.Metadata["dtype"])
	if err != nil {
		return nil, err
	}
	width, err := elemWidth(dt)
	if err != nil {
		return nil, err
	}
	dimNames := stringsFrom(attributes["dimension_names"])
	store, err := localzarr.Open(spec, handle, zctx, width, dimNames)
	if err != nil {
		return nil, err
	}

	zarrayBytes, err := json.Marshal(spec.Metadata)
	if err != nil {
		return nil, zerr.New(zerr.BackendError, "variable %q: encoding .zarray: %v", name, err)
	}
	if _, err := handle.Write(ctx, zarrayKey, zarrayBytes).Value(); err != nil {
		return nil, zerr.WrapBackend(err, "variable %q: writing .zarray", name)
	}

	attrHandle, err := attrs.FromVariableJSON(attrsDocFrom(attributes))
	if err != nil {
		return nil, err
	}

	longName, _ := attributes["long_name"].(string)
	coords := coordinatesFrom(attributes)

	v := &Variable{
		name: name, longName: longName, dt: dt,
		chunkShape: store.ChunkShape(), coordinates: coords,
		backendSpec: spec, store: store, kv: handle, attrs: attrHandle, state: Clean,
	}
	if err := v.writeZattrs(ctx, dimNames); err != nil {
		return nil, err
	}
	return v, nil
}

func coordinatesFrom(attributes map[string]interface{}) []string {
	raw, _ := attributes["coordinates"].(string)
	if raw == "" {
		return nil
	}
	return strings.Fields(raw)
}

// stringsFrom coerces either a []string or a JSON-decoded []interface{} of
// strings into a []string.
func stringsFrom(v interface{}) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []interface{}:
		out := make([]string, len(t))
		for i, e := range t {
			out[i], _ = e.(string)
		}
		return out
	default:
		return nil
	}
}

// attrsDocFrom builds an attrs.Doc out of the schema factory's attributes
// document's nested statsV1/attributes fields.
func attrsDocFrom(attributes map[string]interface{}) attrs.Doc {
	var doc attrs.Doc
	if raw, ok := attributes["statsV1"]; ok {
		doc.StatsV1, _ = json.Marshal(raw)
	}
	if raw, ok := attributes["attributes"].(map[string]interface{}); ok {
		doc.Attributes = raw
	}
	return doc
}

func openExisting(ctx context.Context, name string, spec backend.Spec, handle backend.KVHandle, zarrayBytes []byte, zctx *backend.Context) (*Variable, error) {
	var zarray map[string]interface{}
	if err := json.Unmarshal(zarrayBytes, &zarray); err != nil {
		return nil, zerr.New(zerr.BackendError, "variable %q: malformed .zarray: %v", name, err)
	}
	dt, err := dtype.FromZarrMetadata(zarray["dtype"])
	if err != nil {
		return nil, err
	}
	width, err := elemWidth(dt)
	if err != nil {
		return nil, err
	}
	reconciled := spec
	reconciled.Metadata = zarray

	zattrsBytes, err := handle.Read(ctx, zattrsKey).Value()
	var zattrs map[string]interface{}
	if err == nil {
		_ = json.Unmarshal(zattrsBytes, &zattrs)
	}
	dimNames := stringsFrom(zattrs["_ARRAY_DIMENSIONS"])

	store, err := localzarr.Open(reconciled, handle, zctx, width, dimNames)
	if err != nil {
		return nil, err
	}

	longName, _ := zattrs["long_name"].(string)
	var coords []string
	if raw, ok := zattrs["coordinates"].(string); ok {
		coords = strings.Fields(raw)
	}

	doc := attrs.Doc{}
	if raw, ok := zattrs["statsV1"]; ok {
		doc.StatsV1, _ = json.Marshal(raw)
	}
	if raw, ok := zattrs["attributes"].(map[string]interface{}); ok {
		doc.Attributes = raw
	}
	attrHandle, err := attrs.FromVariableJSON(doc)
	if err != nil {
		return nil, err
	}

	return &Variable{
		name: name, longName: longName, dt: dt,
		chunkShape: store.ChunkShape(), coordinates: coords,
		backendSpec: reconciled, store: store, attrs: attrHandle, state: Clean,
	}, nil
}

// writeZattrs serializes the current view to the variable's .zattrs, per
// spec §4.3's "open create" description: _ARRAY_DIMENSIONS, long_name
// (when non-empty), coordinates (when non-empty), and the nested
// statsV1/attributes.
func (v *Variable) writeZattrs(ctx context.Context, dimNames []string) error {
	if len(dimNames) == 0 {
		dimNames = make([]string, len(v.store.Domain()))
		for i, iv := range v.store.Domain() {
			dimNames[i] = iv.Label
		}
	}
	attrDoc := v.attrs.ToJSON()
	doc := metadata.VariableAttrsDoc(dimNames, v.longName, v.coordinates, attrDoc.StatsV1, attrDoc.Attributes)
	b, err := json.Marshal(doc)
	if err != nil {
		return zerr.New(zerr.BackendError, "variable %q: encoding .zattrs: %v", v.name, err)
	}
	if _, err := v.kv.Write(ctx, zattrsKey, b).Value(); err != nil {
		return zerr.WrapBackend(err, "variable %q: writing .zattrs", v.name)
	}
	return nil
}

// Name, LongName, Dtype, ChunkShape, StoreShape, and Spec are the plain
// introspection accessors of spec §4.3.
func (v *Variable) Name() string       { return v.name }
func (v *Variable) LongName() string   { return v.longName }
func (v *Variable) Dtype() dtype.DType { return v.dt }
func (v *Variable) Rank() int          { return len(v.store.Domain()) }
func (v *Variable) ChunkShape() []int64 {
	return append([]int64(nil), v.chunkShape...)
}
func (v *Variable) StoreShape() []int64 {
	d := v.store.Domain()
	out := make([]int64, len(d))
	for i, iv := range d {
		out[i] = iv.Size()
	}
	return out
}
func (v *Variable) Spec() backend.Spec { return v.backendSpec }
func (v *Variable) Coordinates() []string {
	return append([]string(nil), v.coordinates...)
}

// NumSamples returns the product of the store's axis sizes.
func (v *Variable) NumSamples() int64 {
	n := int64(1)
	for _, iv := range v.store.Domain() {
		n *= iv.Size()
	}
	return n
}

// Dimensions returns the variable's labeled axes (label, origin, size).
func (v *Variable) Dimensions() backend.Domain { return v.store.Domain() }

// Intervals returns the requested labels' half-open intervals, or every
// axis's interval when labels is empty.
func (v *Variable) Intervals(labels ...string) backend.Domain {
	d := v.store.Domain()
	if len(labels) == 0 {
		return d
	}
	out := make(backend.Domain, 0, len(labels))
	for _, l := range labels {
		if iv, ok := d.ByLabel(l); ok {
			out = append(out, iv)
		}
	}
	return out
}

// State reports the variable-metadata lifecycle state (spec §4.3).
func (v *Variable) State() State { return v.state }

// Read returns a future resolving to a labeled in-memory copy of the
// variable's full contents (spec §4.3 read).
func (v *Variable) Read(ctx context.Context) backend.Future[vardata.Data] {
	f, resolve := backend.NewFuture[vardata.Data]()
	go func() {
		buf, err := v.store.Read(ctx).Value()
		if err != nil {
			resolve(vardata.Data{}, zerr.Wrap(zerr.ReadFailed, err, "variable %q: read failed", v.name))
			return
		}
		width, _ := elemWidth(v.dt)
		resolve(vardata.New(v.name, v.longName, v.dt, v.store.Domain(), width, buf.Bytes), nil)
	}()
	return *f
}

// Write stripes data to the underlying chunks, requiring data.Dtype() to
// match the variable's dtype (spec §4.3 write, error DtypeMismatch).
func (v *Variable) Write(ctx context.Context, data vardata.Data) backend.Future[struct{}] {
	f, resolve := backend.NewFuture[struct{}]()
	if !data.Dtype().Equal(v.dt) {
		resolve(struct{}{}, zerr.New(zerr.DtypeMismatch, "variable %q: write dtype %s does not match variable dtype %s", v.name, data.Dtype(), v.dt))
		return *f
	}
	go func() {
		shape := make([]int64, data.Rank())
		for i, iv := range data.Dimensions() {
			shape[i] = iv.Size()
		}
		_, err := v.store.Write(ctx, backend.Buffer{Shape: shape, Bytes: data.Bytes()}).Value()
		resolve(struct{}{}, err)
	}()
	return *f
}

// Slice narrows labeled axes per spec §4.3: single descriptors per label
// clamp to the domain; repeated labels on the same axis concatenate their
// independently sliced sub-stores via backend.ConcatStores.
func (v *Variable) Slice(descs ...vardata.Descriptor) (*Variable, error) {
	if len(descs) > 32 {
		return nil, zerr.New(zerr.InvalidSlice, "too many slice descriptors (max 32)")
	}
	byLabel := make(map[string][]vardata.Descriptor)
	order := []string{}
	for _, d := range descs {
		if d.Label == "" {
			continue
		}
		if d.Step != 0 && d.Step != 1 {
			return nil, zerr.New(zerr.InvalidSlice, "slice step must be 1, got %d", d.Step)
		}
		if d.Start > d.Stop {
			return nil, zerr.New(zerr.InvalidSlice, "slice start %d > stop %d on label %q", d.Start, d.Stop, d.Label)
		}
		if _, seen := byLabel[d.Label]; !seen {
			order = append(order, d.Label)
		}
		byLabel[d.Label] = append(byLabel[d.Label], d)
	}

	store := v.store
	for _, label := range order {
		group := byLabel[label]
		if _, ok := store.Domain().ByLabel(label); !ok {
			continue
		}
		if len(group) == 1 {
			win, err := localzarr.NewWindow(store, []backend.Interval{{Label: label, Min: group[0].Start, Max: group[0].Stop}})
			if err != nil {
				return nil, err
			}
			store = win
			continue
		}
		iv, _ := store.Domain().ByLabel(label)
		if err := checkDisjoint(label, group, iv); err != nil {
			return nil, err
		}
		members := make([]backend.ArrayStore, len(group))
		for i, d := range group {
			win, err := localzarr.NewWindow(store, []backend.Interval{{Label: label, Min: d.Start, Max: d.Stop}})
			if err != nil {
				return nil, err
			}
			members[i] = win
		}
		cat, err := backend.ConcatStores(label, members)
		if err != nil {
			return nil, err
		}
		store = cat
	}

	out := *v
	out.store = store
	return &out, nil
}

// checkDisjoint enforces spec §4.3's repeated-label rule: every descriptor
// for the same label must describe a disjoint sub-range, same pairwise
// overlap check as vardata.Data.sliceRepeated, ported here since
// Variable.Slice builds backend.ConcatStores directly and never goes
// through vardata for this path.
func checkDisjoint(label string, group []vardata.Descriptor, iv backend.Interval) error {
	type seg struct{ start, stop int64 }
	segs := make([]seg, 0, len(group))
	for _, d := range group {
		start, stop := d.Start, d.Stop
		if start < iv.Min {
			start = iv.Min
		}
		if stop > iv.Max {
			stop = iv.Max
		}
		for _, other := range segs {
			if start < other.stop && other.start < stop {
				return zerr.New(zerr.InvalidSlice, "repeated slice descriptors on label %q are not disjoint", label)
			}
		}
		segs = append(segs, seg{start, stop})
	}
	return nil
}

// SelectField re-opens the backend store projecting one field of a
// structured dtype; an empty fieldName returns the raw-bytes view (spec
// §4.3 select_field).
func (v *Variable) SelectField(ctx context.Context, fieldName string) backend.Future[*Variable] {
	f, resolve := backend.NewFuture[*Variable]()
	go func() {
		if fieldName == "" {
			out := *v
			resolve(&out, nil)
			return
		}
		if !v.dt.IsStructured() {
			resolve(nil, zerr.New(zerr.NotStructured, "variable %q: select_field on non-structured dtype", v.name))
			return
		}
		field, err := v.dt.Field(fieldName)
		if err != nil {
			resolve(nil, err)
			return
		}
		out := *v
		out.dt = dtype.FromScalar(field.Type)
		resolve(&out, nil)
	}()
	return *f
}

// UpdateAttributes replaces the variable's UserAttributes and marks the
// variable Dirty (spec §4.3 update_attributes, §4.2).
func (v *Variable) UpdateAttributes(stats []attrs.SummaryStats, attributes map[string]interface{}) error {
	if err := v.attrs.Update(stats, attributes); err != nil {
		return err
	}
	v.state = Dirty
	return nil
}

// Attributes returns the variable's shared UserAttributes handle.
func (v *Variable) Attributes() *attrs.Handle { return v.attrs }

// PublishMetadata serializes the current view to the variable's .zattrs,
// clearing the dirty flag once the backend acknowledges (spec §4.3
// publish_metadata). The returned future resolves to a generation token
// (here, the publish wall-clock time) once durable.
func (v *Variable) PublishMetadata(ctx context.Context, now time.Time) backend.Future[time.Time] {
	f, resolve := backend.NewFuture[time.Time]()
	v.state = Publishing
	go func() {
		dimNames := make([]string, len(v.store.Domain()))
		for i, iv := range v.store.Domain() {
			dimNames[i] = iv.Label
		}
		if err := v.writeZattrs(ctx, dimNames); err != nil {
			v.state = Dirty
			resolve(time.Time{}, err)
			return
		}
		v.attrs.Publish()
		v.state = Clean
		resolve(now, nil)
	}()
	return *f
}

// Resize forwards to the backend store's resize (used by zutil.TrimDataset),
// then refreshes the variable's cached backend.Spec shape and marks it
// Dirty so a following PublishMetadata/CommitMetadata writes the new
// shape into .zarray rather than the stale one captured at open time.
func (v *Variable) Resize(ctx context.Context, implicitDims []string, newShape []int64, mode backend.ResizeMode) backend.Future[struct{}] {
	f, resolve := backend.NewFuture[struct{}]()
	go func() {
		if _, err := v.store.Resize(ctx, implicitDims, newShape, mode).Value(); err != nil {
			resolve(struct{}{}, err)
			return
		}
		v.backendSpec.Metadata = cloneMetadata(v.backendSpec.Metadata)
		v.backendSpec.Metadata["shape"] = append([]int64(nil), newShape...)
		v.state = Dirty
		resolve(struct{}{}, nil)
	}()
	return *f
}

func cloneMetadata(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
