// Package stats holds the numeric primitives shared by the quality filter, the summary
// aggregator and the comparator.
package stats

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Stat is a statistic that may be undefined, e.g. the mean of zero values. An undefined Stat
// is never reported as zero.
type Stat struct {
	Value   float64
	Defined bool
}

// Def returns a defined statistic.
func Def(v float64) Stat { return Stat{Value: v, Defined: true} }

// Undefined is the "no data" statistic.
var Undefined = Stat{}

func (s Stat) String() string {
	if !s.Defined {
		return "n/a"
	}
	return fmt.Sprintf("%.4g", s.Value)
}

// Format renders the value with a printf verb, or "n/a".
func (s Stat) Format(verb string) string {
	if !s.Defined {
		return "n/a"
	}
	return fmt.Sprintf(verb, s.Value)
}

// Any returns the value or nil, for map-shaped output.
func (s Stat) Any() any {
	if !s.Defined || math.IsNaN(s.Value) {
		return nil
	}
	if math.IsInf(s.Value, 0) {
		return s.String()
	}
	return s.Value
}

// MarshalJSON encodes undefined statistics as null.
func (s Stat) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Any())
}

// Quantile computes the q-quantile of sorted values by linear interpolation between the
// closest ranks: pos = q*(n-1). Quantile([1 2 3 4], 0.5) == 2.5.
func Quantile(sorted []float64, q float64) Stat {
	if len(sorted) == 0 {
		return Undefined
	}
	if q <= 0 {
		return Def(sorted[0])
	}
	if q >= 1 {
		return Def(sorted[len(sorted)-1])
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return Def(sorted[lo])
	}
	w := pos - float64(lo)
	return Def(sorted[lo]*(1-w) + sorted[hi]*w)
}

// Sorted returns a sorted copy of vals.
func Sorted(vals []float64) []float64 {
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	return cp
}

// Mean is the arithmetic mean; undefined for no values.
func Mean(vals []float64) Stat {
	if len(vals) == 0 {
		return Undefined
	}
	return Def(stat.Mean(vals, nil))
}

// SampleStd is the n-1 standard deviation; undefined below two values.
func SampleStd(vals []float64) Stat {
	if len(vals) < 2 {
		return Undefined
	}
	return Def(stat.StdDev(vals, nil))
}

// PopMeanStd returns the mean and the population (n) standard deviation, the scale used for
// z-scores.
func PopMeanStd(vals []float64) (mean, std float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	return stat.PopMeanStdDev(vals, nil)
}

// MedianMAD computes the median and the median absolute deviation.
func MedianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := Sorted(vals)
	median = Quantile(cp, 0.5).Value
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = Quantile(dev, 0.5).Value
	return median, mad
}

// Pearson returns the correlation of paired samples; undefined for fewer than two pairs or
// a constant side.
func Pearson(x, y []float64) Stat {
	if len(x) != len(y) || len(x) < 2 {
		return Undefined
	}
	_, sx := stat.PopMeanStdDev(x, nil)
	_, sy := stat.PopMeanStdDev(y, nil)
	if sx == 0 || sy == 0 {
		return Undefined
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return Undefined
	}
	return Def(math.Max(-1, math.Min(1, r)))
}
