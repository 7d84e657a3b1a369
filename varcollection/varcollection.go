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

// Package varcollection is the name-keyed Variable container (spec §4.5).
package varcollection

import (
	"sort"

	"github.com/scigrid/zdataset/variable"
	"github.com/scigrid/zdataset/zerr"
)

// Collection is a name → *variable.Variable map with typed lookup and
// deterministic iteration.
type Collection struct {
	vars map[string]*variable.Variable
}

// New returns an empty Collection.
func New() *Collection {
	return &Collection{vars: make(map[string]*variable.Variable)}
}

// Add inserts or replaces the variable under its own name.
func (c *Collection) Add(v *variable.Variable) {
	c.vars[v.Name()] = v
}

// At looks up a variable by name with no type cast.
func (c *Collection) At(name string) (*variable.Variable, bool) {
	v, ok := c.vars[name]
	return v, ok
}

// ContainsKey reports whether name is present.
func (c *Collection) ContainsKey(name string) bool {
	_, ok := c.vars[name]
	return ok
}

// Keys returns every variable name, sorted.
func (c *Collection) Keys() []string {
	keys := make([]string, 0, len(c.vars))
	for k := range c.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Iter returns every variable, sorted by name for determinism (spec §4.5).
func (c *Collection) Iter() []*variable.Variable {
	keys := c.Keys()
	out := make([]*variable.Variable, len(keys))
	for i, k := range keys {
		out[i] = c.vars[k]
	}
	return out
}

// Len reports the number of variables held.
func (c *Collection) Len() int { return len(c.vars) }

// TypedView is the cast-to-typed-view result of Get: the rank the caller
// expected and the variable's dtype, confirmed to conform before use.
type TypedView struct {
	Variable *variable.Variable
	Rank     int
}

// Get casts the named variable to a typed view, failing with
// zerr.TypeMismatch if the dtype or declared rank doesn't conform (spec
// §4.5 get<T,R>). wantRank < 0 skips the rank check.
func Get(c *Collection, name string, wantScalar string, wantRank int) (TypedView, error) {
	v, ok := c.At(name)
	if !ok {
		return TypedView{}, zerr.New(zerr.UnknownDimension, "no such variable %q", name)
	}
	if wantScalar != "" && (v.Dtype().IsStructured() || string(v.Dtype().Scalar) != wantScalar) {
		return TypedView{}, zerr.New(zerr.TypeMismatch, "variable %q has dtype %s, want %s", name, v.Dtype(), wantScalar)
	}
	if wantRank >= 0 && v.Rank() != wantRank {
		return TypedView{}, zerr.New(zerr.TypeMismatch, "variable %q has rank %d, want %d", name, v.Rank(), wantRank)
	}
	return TypedView{Variable: v, Rank: v.Rank()}, nil
}
