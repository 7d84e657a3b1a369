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

package attrs

// HistogramKind distinguishes the two wire shapes a Histogram can take.
type HistogramKind int

const (
	CenteredBin HistogramKind = iota
	EdgeDefined
)

// HistogramElem is the inferred element type of a histogram's bin values,
// per spec §3: integer-valued bin centers with no fractional content
// infer Int32; anything else, or more than one stat in the document,
// infers Float32.
type HistogramElem int

const (
	ElemFloat32 HistogramElem = iota
	ElemInt32
)

// Histogram is the polymorphic bin-count variant attached to a
// SummaryStats value.
type Histogram struct {
	Kind HistogramKind
	Elem HistogramElem

	// CenteredBin variant.
	BinCenters []float64

	// EdgeDefined variant.
	BinEdges []float64
	BinWidth []float64

	Counts []int32
}

// histogramDoc is the JSON shape of a Histogram as it appears nested
// under statsV1.
type histogramDoc struct {
	BinCenters []float64 `json:"binCenters,omitempty"`
	BinEdges   []float64 `json:"binEdges,omitempty"`
	BinWidths  []float64 `json:"binWidths,omitempty"`
	Counts     []int32   `json:"counts"`
}

func isWholeNumbers(vs []float64) bool {
	for _, v := range vs {
		if v != float64(int64(v)) {
			return false
		}
	}
	return true
}

// histogramFromDoc parses a histogramDoc, inferring Kind from which of
// BinCenters/BinEdges is present, and Elem per spec §3: a single stat's
// integer-valued centers infer Int32, otherwise Float32. multiStat is true
// when this histogram belongs to a document carrying more than one
// SummaryStats entry, which forces Float32 regardless of content.
func histogramFromDoc(h histogramDoc, multiStat bool) Histogram {
	out := Histogram{Counts: append([]int32(nil), h.Counts...)}
	if len(h.BinEdges) > 0 {
		out.Kind = EdgeDefined
		out.BinEdges = append([]float64(nil), h.BinEdges...)
		out.BinWidth = append([]float64(nil), h.BinWidths...)
		out.Elem = ElemFloat32
		if !multiStat && isWholeNumbers(h.BinEdges) {
			out.Elem = ElemInt32
		}
		return out
	}
	out.Kind = CenteredBin
	out.BinCenters = append([]float64(nil), h.BinCenters...)
	out.Elem = ElemFloat32
	if !multiStat && isWholeNumbers(h.BinCenters) {
		out.Elem = ElemInt32
	}
	return out
}

func (h Histogram) toDoc() histogramDoc {
	switch h.Kind {
	case EdgeDefined:
		return histogramDoc{BinEdges: h.BinEdges, BinWidths: h.BinWidth, Counts: h.Counts}
	default:
		return histogramDoc{BinCenters: h.BinCenters, Counts: h.Counts}
	}
}
