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

package zutil

import (
	"context"
	"testing"

	"github.com/scigrid/zdataset/backend/localzarr"
	"github.com/scigrid/zdataset/dataset"
)

func TestDeleteDatasetRemovesEveryKey(t *testing.T) {
	kv := localzarr.NewMemKV()
	buildTrimmableDataset(t, kv)

	handle, err := kv.Open(context.Background(), map[string]interface{}{"path": ""})
	if err != nil {
		t.Fatalf("Open root handle: %v", err)
	}
	before, err := handle.List(context.Background(), "").Value()
	if err != nil {
		t.Fatalf("List before: %v", err)
	}
	if len(before) == 0 {
		t.Fatal("expected a nonempty key set before delete")
	}

	if err := DeleteDataset(context.Background(), "survey", kv, nil); err != nil {
		t.Fatalf("DeleteDataset: %v", err)
	}

	after, err := handle.List(context.Background(), "").Value()
	if err != nil {
		t.Fatalf("List after: %v", err)
	}
	if len(after) != 0 {
		t.Errorf("expected no keys left after DeleteDataset, have %v", after)
	}
}

func TestDeleteDatasetOnMalformedPathFails(t *testing.T) {
	kv := localzarr.NewMemKV()
	if err := DeleteDataset(context.Background(), "nonexistent", kv, nil); err == nil {
		t.Error("expected an error deleting a path with no dataset at it")
	}
}

func TestDeleteDatasetReopenFails(t *testing.T) {
	kv := localzarr.NewMemKV()
	buildTrimmableDataset(t, kv)
	if err := DeleteDataset(context.Background(), "survey", kv, nil); err != nil {
		t.Fatalf("DeleteDataset: %v", err)
	}
	if _, err := dataset.Open(context.Background(), "survey", kv, nil); err == nil {
		t.Error("expected Open to fail after the dataset was deleted")
	}
}
