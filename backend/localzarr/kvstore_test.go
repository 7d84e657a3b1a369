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
	"sort"
	"testing"
)

func TestMemKVWriteReadAndPrefixScope(t *testing.T) {
	ctx := context.Background()
	kv := NewMemKV()
	a, err := kv.Open(ctx, map[string]interface{}{"path": "varA"})
	if err != nil {
		t.Fatalf("Open a: %v", err)
	}
	b, err := kv.Open(ctx, map[string]interface{}{"path": "varB"})
	if err != nil {
		t.Fatalf("Open b: %v", err)
	}

	if _, err := a.Write(ctx, ".zarray", []byte("a-meta")).Value(); err != nil {
		t.Fatalf("Write a: %v", err)
	}
	if _, err := b.Write(ctx, ".zarray", []byte("b-meta")).Value(); err != nil {
		t.Fatalf("Write b: %v", err)
	}

	got, err := a.Read(ctx, ".zarray").Value()
	if err != nil || string(got) != "a-meta" {
		t.Fatalf("Read a: have (%q, %v)", got, err)
	}
	gotB, err := b.Read(ctx, ".zarray").Value()
	if err != nil || string(gotB) != "b-meta" {
		t.Fatalf("Read b: have (%q, %v)", gotB, err)
	}

	if _, err := a.Read(ctx, "missing").Value(); err == nil {
		t.Error("expected error reading an absent key")
	}
}

func TestMemKVDeleteRangePrefix(t *testing.T) {
	ctx := context.Background()
	kv := NewMemKV()
	h, err := kv.Open(ctx, map[string]interface{}{"path": "ds"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, k := range []string{"temperature/0", "temperature/1", "pressure/0"} {
		if _, err := h.Write(ctx, k, []byte("x")).Value(); err != nil {
			t.Fatalf("Write(%s): %v", k, err)
		}
	}

	if _, err := h.DeleteRange(ctx, "temperature").Value(); err != nil {
		t.Fatalf("DeleteRange: %v", err)
	}
	keys, err := h.List(ctx, "").Value()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	sort.Strings(keys)
	if len(keys) != 1 || keys[0] != "pressure/0" {
		t.Fatalf("after DeleteRange(temperature): have %v, want [pressure/0]", keys)
	}
}

func TestParseRootPathLocalAndCloud(t *testing.T) {
	local := ParseRootPath("/data/survey", "temperature")
	if local["driver"] != "file" || local["bucket"] != "/data/survey" || local["path"] != "temperature" {
		t.Errorf("local root path: have %v", local)
	}
	gcs := ParseRootPath("gs://bucket/survey", "temperature")
	if gcs["driver"] != "gcs" || gcs["bucket"] != "bucket" || gcs["path"] != "survey/temperature" {
		t.Errorf("gs:// root path: have %v", gcs)
	}
}
