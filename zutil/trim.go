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

// Package zutil holds the dataset-wide maintenance operations spec §4.8
// calls out as a separate component from the core Dataset surface: trim
// (in-place resize) and delete (recursive removal).
package zutil

import (
	"context"
	"time"

	"github.com/scigrid/zdataset/backend"
	"github.com/scigrid/zdataset/dataset"
	"github.com/scigrid/zdataset/zerr"
	"github.com/scigrid/zdataset/zlog"
)

// AxisResize is one label's new extent for TrimDataset, expressed as a
// half-open [Start, Stop) interval against the variable's current domain
// (the same shape the caller would pass to Dataset.Isel).
type AxisResize struct {
	Label string
	Start int64
	Stop  int64
}

// TrimDataset opens the dataset at rootPath, resizes every variable whose
// dimensions include one of descs' labels to the corresponding new extent,
// and publishes the updated metadata (spec §4.8 trim_dataset).
//
// When deleteOutOfBounds is true, chunks that fall entirely outside the
// new bounds are also removed (backend.ResizeTiedBounds); otherwise the
// shape metadata changes but existing chunk data is left in place
// (backend.ResizeMetadataOnly).
//
// A structured-dtype variable's domain already excludes the record's
// trailing byte axis in this implementation (its Rank never grows past
// its declared dimensions, see DESIGN.md), so unlike a raw-bytes backend
// it needs no field-selection indirection before resizing: Resize is
// applied to it directly, the same as any scalar variable.
func TrimDataset(ctx context.Context, rootPath string, deleteOutOfBounds bool, descs []AxisResize, kvstore backend.KVStore, zctx *backend.Context) error {
	ds, err := dataset.Open(ctx, rootPath, kvstore, zctx)
	if err != nil {
		return err
	}

	mode := backend.ResizeMetadataOnly
	if deleteOutOfBounds {
		mode = backend.ResizeTiedBounds
	}

	byLabel := make(map[string]AxisResize, len(descs))
	for _, d := range descs {
		byLabel[d.Label] = d
	}

	for _, v := range ds.Variables().Iter() {
		dims := v.Dimensions()
		newShape := make([]int64, len(dims))
		changed := false
		for i, iv := range dims {
			newShape[i] = iv.Size()
			if ar, ok := byLabel[iv.Label]; ok {
				newShape[i] = ar.Stop - ar.Start
				changed = true
			}
		}
		if !changed {
			continue
		}
		if _, err := v.Resize(ctx, nil, newShape, mode).Value(); err != nil {
			return zerr.WrapBackend(err, "zutil: trim: resizing variable %q", v.Name())
		}
	}

	_, err = ds.CommitMetadata(ctx, time.Now()).Value()
	if err != nil {
		if kind, ok := zerr.Kindof(err); ok && kind == zerr.NoChanges {
			// Every descriptor's label matched no variable's dimensions:
			// trimming is a no-op, not a failure.
			return nil
		}
		return err
	}
	zlog.WithField("dataset", rootPath).Info("dataset trimmed")
	return nil
}
