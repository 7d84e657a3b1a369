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

// Package zconfig loads the process-wide backend.Context (spec §5) from a
// YAML, JSON or TOML config file (environment variables are not read), the way the teacher loads job configuration in
// cloud/jobspec.go and cloud/client.go.
package zconfig

import (
	"runtime"

	"github.com/lnashier/viper"

	"github.com/scigrid/zdataset/backend"
	"github.com/scigrid/zdataset/zerr"
)

// Default returns the context used when no configuration file is supplied:
// a 1 GiB cache and as many concurrent chunk operations as GOMAXPROCS,
// matching spec §5's "default with 1 GiB cache is used".
func Default() *backend.Context {
	return backend.DefaultContext(runtime.GOMAXPROCS(0))
}

// Load reads cache_pool.total_bytes_limit and data_copy_concurrency.limit
// from path via viper (YAML, JSON, and TOML are all auto-detected by
// extension) and builds the resulting backend.Context. Missing keys fall
// back to Default's values.
func Load(path string) (*backend.Context, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("cache_pool.total_bytes_limit", int64(1<<30))
	v.SetDefault("data_copy_concurrency.limit", runtime.GOMAXPROCS(0))

	if err := v.ReadInConfig(); err != nil {
		return nil, zerr.Wrap(zerr.BackendError, err, "zconfig: reading %q", path)
	}

	cacheLimit := v.GetInt64("cache_pool.total_bytes_limit")
	concurrency := v.GetInt("data_copy_concurrency.limit")
	return backend.NewContext(cacheLimit, concurrency), nil
}
