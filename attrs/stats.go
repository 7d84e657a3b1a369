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

import "encoding/json"

// SummaryStats is a single variable's summary statistics, with an
// optional attached Histogram.
type SummaryStats struct {
	Count      int64
	Min        float64
	Max        float64
	Sum        float64
	SumSquares float64
	Histogram  *Histogram // nil if absent
}

// statsDoc is the on-wire shape of one SummaryStats entry.
type statsDoc struct {
	Count      int64         `json:"count"`
	Min        float64       `json:"min"`
	Max        float64       `json:"max"`
	Sum        float64       `json:"sum"`
	SumSquares float64       `json:"sumSquares"`
	Histogram  *histogramDoc `json:"histogram,omitempty"`
}

func (s SummaryStats) toDoc() statsDoc {
	d := statsDoc{Count: s.Count, Min: s.Min, Max: s.Max, Sum: s.Sum, SumSquares: s.SumSquares}
	if s.Histogram != nil {
		hd := s.Histogram.toDoc()
		d.Histogram = &hd
	}
	return d
}

func statsFromDoc(d statsDoc, multiStat bool) SummaryStats {
	s := SummaryStats{Count: d.Count, Min: d.Min, Max: d.Max, Sum: d.Sum, SumSquares: d.SumSquares}
	if d.Histogram != nil {
		h := histogramFromDoc(*d.Histogram, multiStat)
		s.Histogram = &h
	}
	return s
}

// decodeStatsV1 decodes statsV1, which the wire format allows to be either
// a single object or a sequence of objects.
func decodeStatsV1(raw json.RawMessage) ([]SummaryStats, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var seq []statsDoc
	if err := json.Unmarshal(raw, &seq); err == nil {
		multi := len(seq) > 1
		out := make([]SummaryStats, len(seq))
		for i, d := range seq {
			out[i] = statsFromDoc(d, multi)
		}
		return out, nil
	}
	var single statsDoc
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, err
	}
	return []SummaryStats{statsFromDoc(single, false)}, nil
}

func encodeStatsV1(stats []SummaryStats) interface{} {
	if len(stats) == 0 {
		return nil
	}
	if len(stats) == 1 {
		return stats[0].toDoc()
	}
	docs := make([]statsDoc, len(stats))
	for i, s := range stats {
		docs[i] = s.toDoc()
	}
	return docs
}
