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
	"reflect"
	"testing"

	"github.com/scigrid/zdataset/backend"
)

func TestWindowClampToDomain(t *testing.T) {
	ctx := context.Background()
	kv := NewMemKV()
	handle, _ := kv.Open(ctx, map[string]interface{}{"path": "v"})
	spec := toySpec([]int64{5}, []int64{5})
	store, err := Open(spec, handle, nil, 4, []string{"x"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.Write(ctx, backend.Buffer{Shape: []int64{5}, Bytes: i32Bytes(0, 1, 2, 3, 4)}).Value(); err != nil {
		t.Fatalf("Write: %v", err)
	}

	win, err := NewWindow(store, []backend.Interval{{Label: "x", Min: -10, Max: 3}})
	if err != nil {
		t.Fatalf("NewWindow: %v", err)
	}
	if win.Domain()[0].Min != 0 || win.Domain()[0].Max != 3 {
		t.Fatalf("clamped domain: have %v, want [0,3)", win.Domain()[0])
	}
	buf, err := win.Read(ctx).Value()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !reflect.DeepEqual(toI32(buf.Bytes), []int32{0, 1, 2}) {
		t.Errorf("windowed read: have %v, want [0 1 2]", toI32(buf.Bytes))
	}
}

func TestWindowWriteStripesIntoBase(t *testing.T) {
	ctx := context.Background()
	kv := NewMemKV()
	handle, _ := kv.Open(ctx, map[string]interface{}{"path": "v"})
	spec := toySpec([]int64{4}, []int64{4})
	store, err := Open(spec, handle, nil, 4, []string{"x"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.Write(ctx, backend.Buffer{Shape: []int64{4}, Bytes: i32Bytes(0, 0, 0, 0)}).Value(); err != nil {
		t.Fatalf("Write: %v", err)
	}
	win, err := NewWindow(store, []backend.Interval{{Label: "x", Min: 1, Max: 3}})
	if err != nil {
		t.Fatalf("NewWindow: %v", err)
	}
	if _, err := win.Write(ctx, backend.Buffer{Shape: []int64{2}, Bytes: i32Bytes(9, 9)}).Value(); err != nil {
		t.Fatalf("Write: %v", err)
	}
	full, err := store.Read(ctx).Value()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !reflect.DeepEqual(toI32(full.Bytes), []int32{0, 9, 9, 0}) {
		t.Errorf("base after windowed write: have %v, want [0 9 9 0]", toI32(full.Bytes))
	}
}

func TestWindowEmptyClampRejected(t *testing.T) {
	ctx := context.Background()
	kv := NewMemKV()
	handle, _ := kv.Open(ctx, map[string]interface{}{"path": "v"})
	spec := toySpec([]int64{4}, []int64{4})
	store, err := Open(spec, handle, nil, 4, []string{"x"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := NewWindow(store, []backend.Interval{{Label: "x", Min: 10, Max: 20}}); err == nil {
		t.Fatal("expected error for a clamp range entirely outside the domain")
	}
}
