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

	"github.com/scigrid/zdataset/backend"
	"github.com/scigrid/zdataset/dataset"
	"github.com/scigrid/zdataset/zerr"
	"github.com/scigrid/zdataset/zlog"
)

// DeleteDataset opens rootPath to confirm it is a well-formed dataset,
// then recursively removes every key under its root (spec §4.8
// delete_dataset). Opening first means a malformed or partial path fails
// with the same errors dataset.Open would raise, rather than silently
// deleting an unrelated prefix.
func DeleteDataset(ctx context.Context, rootPath string, kvstore backend.KVStore, zctx *backend.Context) error {
	ds, err := dataset.Open(ctx, rootPath, kvstore, zctx)
	if err != nil {
		return err
	}
	if _, err := ds.DeleteAll(ctx).Value(); err != nil {
		return zerr.WrapBackend(err, "zutil: delete: removing dataset root %q", rootPath)
	}
	zlog.WithField("dataset", rootPath).Info("dataset deleted")
	return nil
}
