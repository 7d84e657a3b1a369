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

package zconfig

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestDefaultMatchesGOMAXPROCS(t *testing.T) {
	ctx := Default()
	if ctx.ConcurrencyLimit != runtime.GOMAXPROCS(0) {
		t.Errorf("ConcurrencyLimit: have %d, want %d", ctx.ConcurrencyLimit, runtime.GOMAXPROCS(0))
	}
	if ctx.CacheBytesLimit != 1<<30 {
		t.Errorf("CacheBytesLimit: have %d, want %d", ctx.CacheBytesLimit, int64(1<<30))
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zdataset.yaml")
	contents := "cache_pool:\n  total_bytes_limit: 2048\ndata_copy_concurrency:\n  limit: 3\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ctx, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ctx.CacheBytesLimit != 2048 {
		t.Errorf("CacheBytesLimit: have %d, want 2048", ctx.CacheBytesLimit)
	}
	if ctx.ConcurrencyLimit != 3 {
		t.Errorf("ConcurrencyLimit: have %d, want 3", ctx.ConcurrencyLimit)
	}
}

func TestLoadFallsBackToDefaultsOnMissingKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zdataset.yaml")
	if err := os.WriteFile(path, []byte("unrelated: true\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ctx, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ctx.CacheBytesLimit != 1<<30 {
		t.Errorf("CacheBytesLimit fallback: have %d, want %d", ctx.CacheBytesLimit, int64(1<<30))
	}
	if ctx.ConcurrencyLimit != runtime.GOMAXPROCS(0) {
		t.Errorf("ConcurrencyLimit fallback: have %d, want %d", ctx.ConcurrencyLimit, runtime.GOMAXPROCS(0))
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml")); err == nil {
		t.Error("expected an error loading a nonexistent config file")
	}
}
