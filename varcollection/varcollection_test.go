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

package varcollection

import (
	"context"
	"testing"

	"github.com/scigrid/zdataset/backend"
	"github.com/scigrid/zdataset/backend/localzarr"
	"github.com/scigrid/zdataset/schema"
	"github.com/scigrid/zdataset/variable"
)

func openToyVariable(t *testing.T, kv *localzarr.MemKV, name string, size int64) *variable.Variable {
	t.Helper()
	spec := schema.DatasetSpec{
		Name: "toy",
		Variables: []schema.VariableSpec{
			{Name: name, Dtype: "float64", Dimensions: []schema.Dimension{{Label: name, Size: size}}},
		},
	}
	_, specs, err := schema.Construct(spec, "toy")
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	v, err := variable.Open(context.Background(), name, specs[0].Backend, specs[0].Attributes, backend.Create, kv, nil)
	if err != nil {
		t.Fatalf("variable.Open(%s): %v", name, err)
	}
	return v
}

func TestCollectionAddAtKeysIter(t *testing.T) {
	kv := localzarr.NewMemKV()
	c := New()
	c.Add(openToyVariable(t, kv, "zed", 2))
	c.Add(openToyVariable(t, kv, "alpha", 3))
	c.Add(openToyVariable(t, kv, "mid", 4))

	if c.Len() != 3 {
		t.Fatalf("Len: have %d, want 3", c.Len())
	}
	keys := c.Keys()
	want := []string{"alpha", "mid", "zed"}
	for i, k := range want {
		if keys[i] != k {
			t.Errorf("Keys[%d]: have %q, want %q", i, keys[i], k)
		}
	}
	iter := c.Iter()
	if len(iter) != 3 || iter[0].Name() != "alpha" || iter[2].Name() != "zed" {
		t.Errorf("Iter order: have %v", names(iter))
	}

	v, ok := c.At("mid")
	if !ok || v.Name() != "mid" {
		t.Errorf("At(mid): have (%v, %v)", v, ok)
	}
	if _, ok := c.At("missing"); ok {
		t.Error("At(missing) should report false")
	}
	if !c.ContainsKey("alpha") || c.ContainsKey("missing") {
		t.Error("ContainsKey mismatch")
	}
}

func names(vs []*variable.Variable) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Name()
	}
	return out
}

func TestGetTypedViewMismatch(t *testing.T) {
	kv := localzarr.NewMemKV()
	c := New()
	c.Add(openToyVariable(t, kv, "x", 5))

	view, err := Get(c, "x", "float64", 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if view.Rank != 1 {
		t.Errorf("Rank: have %d, want 1", view.Rank)
	}

	if _, err := Get(c, "x", "int32", -1); err == nil {
		t.Error("expected TypeMismatch for wrong scalar type")
	}
	if _, err := Get(c, "x", "", 2); err == nil {
		t.Error("expected TypeMismatch for wrong rank")
	}
	if _, err := Get(c, "missing", "", -1); err == nil {
		t.Error("expected error for unknown variable")
	}
}
