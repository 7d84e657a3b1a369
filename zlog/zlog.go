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

// Package zlog is the structured-logging entry point shared by every
// zdataset package. It wraps a single *logrus.Logger so a host application
// can redirect output or raise the level without the core importing a
// logging framework ad hoc per package.
package zlog

import (
	"io"

	"github.com/sirupsen/logrus"
)

// L is the logger used throughout zdataset. Replace its output/level/
// formatter from application code; library code never mutates it except
// through the helpers below.
var L = logrus.New()

// SetOutput redirects all zdataset logging.
func SetOutput(w io.Writer) { L.SetOutput(w) }

// SetLevel sets the minimum logged level.
func SetLevel(level logrus.Level) { L.SetLevel(level) }

// WithField is a shorthand for L.WithField.
func WithField(key string, value interface{}) *logrus.Entry {
	return L.WithField(key, value)
}
