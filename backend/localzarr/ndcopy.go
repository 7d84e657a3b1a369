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

// copyNDRegion copies the hyper-rectangular region [regionOrigin,
// regionOrigin+regionShape) of a C-order array of shape fullShape
// (elemSize bytes/element) to or from a tightly-packed buffer of exactly
// regionShape. When toRegion is true, data flows full -> region (a
// gather, as when extracting one chunk's worth of bytes from a caller's
// full-shape write buffer); when false, data flows region -> full (a
// scatter, as when placing a decoded chunk into the full output buffer).
func copyNDRegion(full []byte, fullShape, regionOrigin, regionShape []int64, region []byte, elemSize int64, toRegion bool) {
	rank := len(fullShape)
	fullStride := make([]int64, rank)
	regionStride := make([]int64, rank)
	fullStride[rank-1] = elemSize
	regionStride[rank-1] = elemSize
	for i := rank - 2; i >= 0; i-- {
		fullStride[i] = fullStride[i+1] * fullShape[i+1]
		regionStride[i] = regionStride[i+1] * regionShape[i+1]
	}

	var rec func(axis int, fullOff, regionOff int64)
	rec = func(axis int, fullOff, regionOff int64) {
		if axis == rank {
			if toRegion {
				copy(region[regionOff:regionOff+elemSize], full[fullOff:fullOff+elemSize])
			} else {
				copy(full[fullOff:fullOff+elemSize], region[regionOff:regionOff+elemSize])
			}
			return
		}
		for i := int64(0); i < regionShape[axis]; i++ {
			rec(axis+1, fullOff+(regionOrigin[axis]+i)*fullStride[axis], regionOff+i*regionStride[axis])
		}
	}
	if rank == 0 {
		if toRegion {
			copy(region, full)
		} else {
			copy(full, region)
		}
		return
	}
	rec(0, 0, 0)
}
