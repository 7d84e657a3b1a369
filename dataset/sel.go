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

package dataset

import (
	"context"

	"github.com/scigrid/zdataset/vardata"
	"github.com/scigrid/zdataset/zerr"
)

// SelKind distinguishes the three shapes a coordinate-based sel
// descriptor can take (spec §4.6 sel).
type SelKind int

const (
	SelValue SelKind = iota
	SelList
	SelRange
)

// SelDescriptor is a coordinate-value selector along one label. Only
// Value, Values, or Start/Stop is set, matching Kind. There is no
// integer-index variant: spec §4.6 forbids numeric-index descriptors in
// sel (use Isel for those).
type SelDescriptor struct {
	Label  string
	Kind   SelKind
	Value  interface{}
	Values []interface{}
	Start  interface{}
	Stop   interface{}
}

// Sel resolves coordinate values to element indices by reading each
// referenced coordinate variable, then delegates to Isel (spec §4.6 sel).
func (d *Dataset) Sel(ctx context.Context, descs ...SelDescriptor) (*Dataset, error) {
	byLabel := make(map[string][]SelDescriptor)
	var order []string
	for _, sd := range descs {
		if _, seen := byLabel[sd.Label]; !seen {
			order = append(order, sd.Label)
		}
		byLabel[sd.Label] = append(byLabel[sd.Label], sd)
	}

	var iselDescs []vardata.Descriptor
	for _, label := range order {
		group := byLabel[label]
		if len(group) > 1 {
			kind := group[0].Kind
			for _, g := range group[1:] {
				if g.Kind != kind {
					return nil, zerr.New(zerr.InvalidSlice, "sel: mixed descriptor types on label %q", label)
				}
			}
			if kind == SelValue {
				return nil, zerr.New(zerr.RepeatedSelLabel, "sel: repeated ValueDescriptor on label %q", label)
			}
			return nil, zerr.New(zerr.InvalidSlice, "sel: multiple descriptors on label %q", label)
		}

		resolved, err := d.resolveSelDescriptor(ctx, group[0])
		if err != nil {
			return nil, err
		}
		iselDescs = append(iselDescs, resolved...)
	}

	return d.Isel(iselDescs...)
}

func (d *Dataset) resolveSelDescriptor(ctx context.Context, sd SelDescriptor) ([]vardata.Descriptor, error) {
	values, err := d.readCoordinateValues(ctx, sd.Label)
	if err != nil {
		return nil, err
	}

	switch sd.Kind {
	case SelValue:
		var out []vardata.Descriptor
		for i, v := range values {
			if valuesEqual(v, sd.Value) {
				out = append(out, vardata.Descriptor{Label: sd.Label, Start: int64(i), Stop: int64(i) + 1, Step: 1})
			}
		}
		return out, nil

	case SelList:
		seen := make(map[interface{}]bool, len(sd.Values))
		for _, v := range sd.Values {
			key := v
			if seen[key] {
				return nil, zerr.New(zerr.RepeatedSelValue, "sel: repeated value in ListDescriptor on label %q", sd.Label)
			}
			seen[key] = true
		}
		var out []vardata.Descriptor
		for _, want := range sd.Values {
			idx := -1
			for i, v := range values {
				if valuesEqual(v, want) {
					idx = i
					break
				}
			}
			if idx < 0 {
				return nil, zerr.New(zerr.MissingCoordinate, "sel: value %v not found on coordinate %q", want, sd.Label)
			}
			out = append(out, vardata.Descriptor{Label: sd.Label, Start: int64(idx), Stop: int64(idx) + 1, Step: 1})
		}
		return out, nil

	case SelRange:
		if valuesLess(sd.Stop, sd.Start) {
			return nil, zerr.New(zerr.InvalidRange, "sel: range start %v > stop %v on label %q", sd.Start, sd.Stop, sd.Label)
		}
		startCount, stopCount := 0, 0
		minIdx, maxIdx := -1, -1
		for i, v := range values {
			if valuesEqual(v, sd.Start) {
				startCount++
			}
			if valuesEqual(v, sd.Stop) {
				stopCount++
			}
			if !valuesLess(v, sd.Start) && valuesLess(v, sd.Stop) {
				if minIdx < 0 {
					minIdx = i
				}
				maxIdx = i
			}
		}
		if startCount > 1 || stopCount > 1 {
			return nil, zerr.New(zerr.RepeatedCoordinate, "sel: range boundary matches multiple positions on label %q", sd.Label)
		}
		if minIdx < 0 {
			return []vardata.Descriptor{{Label: sd.Label, Start: 0, Stop: 0, Step: 1}}, nil
		}
		return []vardata.Descriptor{{Label: sd.Label, Start: int64(minIdx), Stop: int64(maxIdx) + 1, Step: 1}}, nil

	default:
		return nil, zerr.New(zerr.InvalidSlice, "sel: unknown descriptor kind on label %q", sd.Label)
	}
}

func (d *Dataset) readCoordinateValues(ctx context.Context, label string) ([]interface{}, error) {
	v, ok := d.vars.At(label)
	if !ok {
		return nil, zerr.New(zerr.UnknownCoordinate, "sel: no coordinate variable %q", label)
	}
	data, err := v.Read(ctx).Value()
	if err != nil {
		return nil, err
	}
	width, err := data.Dtype().ElemWidth()
	if err != nil {
		return nil, err
	}
	return decodeCoordValues(data.Dtype(), width, data.Bytes())
}
