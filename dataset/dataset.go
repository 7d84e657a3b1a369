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

// Package dataset aggregates a metadata document, a VariableCollection, a
// coordinate map, and a labeled union domain (spec §4.6). It is the
// top-level handle applications open and operate on.
package dataset

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scigrid/zdataset/backend"
	"github.com/scigrid/zdataset/backend/localzarr"
	"github.com/scigrid/zdataset/metadata"
	"github.com/scigrid/zdataset/schema"
	"github.com/scigrid/zdataset/varcollection"
	"github.com/scigrid/zdataset/variable"
	"github.com/scigrid/zdataset/vardata"
	"github.com/scigrid/zdataset/zerr"
	"github.com/scigrid/zdataset/zlog"
)

// Dataset is the handle described by spec §4.6.
type Dataset struct {
	meta     schema.Metadata
	vars     *varcollection.Collection
	coordMap map[string][]string // variable name -> its declared coordinate names
	domain   backend.Domain
	rootPath string
	kvstore  backend.KVStore
	rootKV   backend.KVHandle
	zctx     *backend.Context
}

// Metadata returns the dataset's root metadata document.
func (d *Dataset) Metadata() schema.Metadata { return d.meta }

// Variables returns the dataset's variable collection.
func (d *Dataset) Variables() *varcollection.Collection { return d.vars }

// Domain returns the dataset's labeled union domain.
func (d *Dataset) Domain() backend.Domain { return append(backend.Domain(nil), d.domain...) }

// Intervals returns the requested labels' union intervals, or every axis
// when labels is empty (spec §4.6, mirroring Variable.Intervals).
func (d *Dataset) Intervals(labels ...string) backend.Domain {
	if len(labels) == 0 {
		return d.Domain()
	}
	out := make(backend.Domain, 0, len(labels))
	for _, l := range labels {
		if iv, ok := d.domain.ByLabel(l); ok {
			out = append(out, iv)
		}
	}
	return out
}

// FromJSON validates spec via the schema factory, then opens every
// resulting variable in parallel (spec §2's "opened asynchronously in
// parallel", §4.6 from_json). On Create/CreateClean it also writes the
// dataset's consolidated .zattrs/.zgroup/.zmetadata.
func FromJSON(ctx context.Context, spec schema.DatasetSpec, rootPath string, mode backend.OpenMode, kvstore backend.KVStore, zctx *backend.Context) (*Dataset, error) {
	meta, varSpecs, err := schema.Construct(spec, rootPath)
	if err != nil {
		return nil, err
	}

	vars := varcollection.New()
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, vs := range varSpecs {
		vs := vs
		g.Go(func() error {
			v, err := variable.Open(gctx, vs.Name, vs.Backend, vs.Attributes, mode, kvstore, zctx)
			if err != nil {
				return zerr.Wrap(zerr.BackendError, err, "dataset %q: opening variable %q", meta.Name, vs.Name)
			}
			mu.Lock()
			vars.Add(v)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	domain, err := unionDomain(vars)
	if err != nil {
		return nil, err
	}

	rootKV, err := openRootKV(ctx, rootPath, kvstore)
	if err != nil {
		return nil, err
	}

	coordMap := make(map[string][]string)
	for _, v := range spec.Variables {
		if len(v.Coordinates) > 0 {
			coordMap[v.Name] = v.Coordinates
		}
	}

	d := &Dataset{
		meta: meta, vars: vars, coordMap: coordMap, domain: domain,
		rootPath: rootPath, kvstore: kvstore, rootKV: rootKV, zctx: zctx,
	}

	if mode != backend.Open {
		if err := d.writeConsolidated(ctx); err != nil {
			return nil, err
		}
		zlog.WithField("dataset", meta.Name).Info("dataset created")
	}
	return d, nil
}

// Open opens an existing dataset at rootPath: reads the consolidated
// .zmetadata, reconstructs a per-variable backend.Spec from each
// "<name>/.zarray" entry, and composes them (spec §4.6 open). Fails with
// zerr.LegacyVersion if the root document uses the pre-1.0 "api_version"
// key.
func Open(ctx context.Context, rootPath string, kvstore backend.KVStore, zctx *backend.Context) (*Dataset, error) {
	rootKV, err := openRootKV(ctx, rootPath, kvstore)
	if err != nil {
		return nil, err
	}

	consolidated, err := metadata.ReadConsolidated(ctx, rootKV)
	if err != nil {
		return nil, err
	}

	meta := metaFromRootAttrs(consolidated.RootAttrs)

	vars := varcollection.New()
	coordMap := make(map[string][]string)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for name, entry := range consolidated.Variables {
		name, entry := name, entry
		g.Go(func() error {
			spec := backend.Spec{
				Driver:   "zarr",
				KVStore:  localzarr.ParseRootPath(rootPath, name),
				Metadata: entry.ZArray,
			}
			v, err := variable.Open(gctx, name, spec, nil, backend.Open, kvstore, zctx)
			if err != nil {
				return zerr.Wrap(zerr.BackendError, err, "dataset: opening variable %q", name)
			}
			mu.Lock()
			vars.Add(v)
			if raw, ok := entry.ZAttrs["coordinates"].(string); ok && raw != "" {
				coordMap[name] = splitFields(raw)
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	domain, err := unionDomain(vars)
	if err != nil {
		return nil, err
	}

	return &Dataset{
		meta: meta, vars: vars, coordMap: coordMap, domain: domain,
		rootPath: rootPath, kvstore: kvstore, rootKV: rootKV, zctx: zctx,
	}, nil
}

func metaFromRootAttrs(attrs map[string]interface{}) schema.Metadata {
	name, _ := attrs["name"].(string)
	createdOn, _ := attrs["createdOn"].(string)
	m := schema.Metadata{Name: name, ApiVersion: schema.ApiVersion, CreatedOn: createdOn}
	if a, ok := attrs["attributes"].(map[string]interface{}); ok {
		m.Attributes = a
	}
	return m
}

func splitFields(s string) []string {
	var out []string
	start := -1
	for i, r := range s {
		if r == ' ' || r == '\t' {
			if start >= 0 {
				out = append(out, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, s[start:])
	}
	return out
}

func openRootKV(ctx context.Context, rootPath string, kvstore backend.KVStore) (backend.KVHandle, error) {
	handle, err := kvstore.Open(ctx, localzarr.ParseRootPath(rootPath, ""))
	if err != nil {
		return nil, zerr.WrapBackend(err, "dataset: opening root kvstore at %q", rootPath)
	}
	return handle, nil
}

// unionDomain merges every variable's Dimensions by label, failing with
// zerr.InconsistentDomain if two variables disagree on the same label's
// extent (spec §4.6 isel).
func unionDomain(vars *varcollection.Collection) (backend.Domain, error) {
	byLabel := make(map[string]backend.Interval)
	var order []string
	for _, v := range vars.Iter() {
		for _, iv := range v.Dimensions() {
			existing, ok := byLabel[iv.Label]
			if !ok {
				byLabel[iv.Label] = iv
				order = append(order, iv.Label)
				continue
			}
			if existing.Min != iv.Min || existing.Max != iv.Max {
				return nil, zerr.New(zerr.InconsistentDomain,
					"label %q has inconsistent extents [%d,%d) and [%d,%d) across variables",
					iv.Label, existing.Min, existing.Max, iv.Min, iv.Max)
			}
		}
	}
	sort.Strings(order)
	out := make(backend.Domain, len(order))
	for i, l := range order {
		out[i] = byLabel[l]
	}
	return out, nil
}

// Isel forwards every descriptor to every variable's Slice and recomputes
// the union domain (spec §4.6 isel).
func (d *Dataset) Isel(descs ...vardata.Descriptor) (*Dataset, error) {
	newVars := varcollection.New()
	for _, v := range d.vars.Iter() {
		nv, err := v.Slice(descs...)
		if err != nil {
			return nil, err
		}
		newVars.Add(nv)
	}
	domain, err := unionDomain(newVars)
	if err != nil {
		return nil, err
	}
	out := *d
	out.vars = newVars
	out.domain = domain
	return &out, nil
}

// Project implements spec §4.6's operator[label]: a new dataset containing
// exactly the named variable plus its transitive coordinate closure.
func (d *Dataset) Project(label string) (*Dataset, error) {
	if _, ok := d.vars.At(label); !ok {
		return nil, zerr.New(zerr.UnknownDimension, "dataset %q: no such variable %q", d.meta.Name, label)
	}
	keep := make(map[string]bool)
	var walk func(name string)
	walk = func(name string) {
		if keep[name] {
			return
		}
		keep[name] = true
		for _, c := range d.coordMap[name] {
			walk(c)
		}
	}
	walk(label)

	newVars := varcollection.New()
	newCoordMap := make(map[string][]string)
	for name := range keep {
		v, ok := d.vars.At(name)
		if !ok {
			return nil, zerr.New(zerr.UnknownCoordinate, "dataset %q: variable %q references unknown coordinate", d.meta.Name, name)
		}
		newVars.Add(v)
		if cs, ok := d.coordMap[name]; ok {
			newCoordMap[name] = cs
		}
	}
	domain, err := unionDomain(newVars)
	if err != nil {
		return nil, err
	}
	out := *d
	out.vars = newVars
	out.coordMap = newCoordMap
	out.domain = domain
	return &out, nil
}

// SelectField delegates to the named variable's SelectField and swaps the
// collection entry once the returned future resolves (spec §4.6
// select_field): safe to use concurrently only after the future completes.
func (d *Dataset) SelectField(ctx context.Context, varName, fieldName string) backend.Future[*variable.Variable] {
	f, resolve := backend.NewFuture[*variable.Variable]()
	v, ok := d.vars.At(varName)
	if !ok {
		resolve(nil, zerr.New(zerr.UnknownDimension, "dataset %q: no such variable %q", d.meta.Name, varName))
		return *f
	}
	go func() {
		nv, err := v.SelectField(ctx, fieldName).Value()
		if err != nil {
			resolve(nil, err)
			return
		}
		d.vars.Add(nv)
		resolve(nv, nil)
	}()
	return *f
}

// CommitMetadata rebuilds every variable's .zattrs from its current
// backend spec plus UserAttributes, then rewrites the consolidated
// .zmetadata (spec §4.6 commit_metadata): it succeeds only when every
// variable's publication and the root write are acknowledged, and fails
// with zerr.NoChanges if no variable reports dirty.
func (d *Dataset) CommitMetadata(ctx context.Context, now time.Time) backend.Future[struct{}] {
	f, resolve := backend.NewFuture[struct{}]()
	go func() {
		anyDirty := false
		for _, v := range d.vars.Iter() {
			if v.State() != variable.Clean {
				anyDirty = true
				break
			}
		}
		if !anyDirty {
			resolve(struct{}{}, zerr.New(zerr.NoChanges, "dataset %q: no variable reports dirty", d.meta.Name))
			return
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, v := range d.vars.Iter() {
			v := v
			g.Go(func() error {
				_, err := v.PublishMetadata(gctx, now).Value()
				return err
			})
		}
		if err := g.Wait(); err != nil {
			resolve(struct{}{}, err)
			return
		}
		if err := d.writeConsolidated(ctx); err != nil {
			resolve(struct{}{}, err)
			return
		}
		zlog.WithField("dataset", d.meta.Name).Info("metadata committed")
		resolve(struct{}{}, nil)
	}()
	return *f
}

// DeleteAll recursively removes every key under the dataset's root,
// including every variable's chunks and metadata documents (used by
// zutil.DeleteDataset, spec §4.8 delete_dataset).
func (d *Dataset) DeleteAll(ctx context.Context) backend.Future[struct{}] {
	return d.rootKV.DeleteRange(ctx, "")
}

// writeConsolidated rebuilds and writes .zgroup, root .zattrs, and
// .zmetadata from the collection's current state (spec §4.7).
func (d *Dataset) writeConsolidated(ctx context.Context) error {
	variables := make(map[string]metadata.VariableEntry, d.vars.Len())
	for _, v := range d.vars.Iter() {
		dimNames := make([]string, len(v.Dimensions()))
		for i, iv := range v.Dimensions() {
			dimNames[i] = iv.Label
		}
		attrDoc := v.Attributes().ToJSON()
		zattrs := metadata.VariableAttrsDoc(dimNames, v.LongName(), v.Coordinates(), attrDoc.StatsV1, attrDoc.Attributes)
		variables[v.Name()] = metadata.VariableEntry{
			ZArray: v.Spec().Metadata,
			ZAttrs: zattrs,
		}
	}
	rootAttrs := metadata.RootAttrsDoc(d.meta.Name, d.meta.CreatedOn, d.meta.Attributes)
	return metadata.WriteConsolidated(ctx, d.rootKV, metadata.ZGroupDoc(), rootAttrs, variables)
}
