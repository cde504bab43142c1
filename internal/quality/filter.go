package quality

import (
	"fmt"
	"math"
	"strings"

	"github.com/KaramelBytes/sunlens-cli/internal/model"
	"github.com/KaramelBytes/sunlens-cli/internal/stats"
)

// Policy selects the outlier detection statistic of a metric.
type Policy string

const (
	// PolicyZScore flags |x-mean|/std > threshold, std being the population deviation.
	PolicyZScore Policy = "zscore"
	// PolicyMAD flags the robust z 0.6745*|x-median|/MAD above threshold.
	PolicyMAD Policy = "mad"
)

// MissingPolicy decides what happens to readings with missing values.
type MissingPolicy string

const (
	Retain MissingPolicy = "retain"
	Drop   MissingPolicy = "drop"
)

// DefaultThreshold is the |z| above which a value is an outlier.
const DefaultThreshold = 3.0

// ParsePolicy validates a policy name; empty selects the z-score.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyZScore:
		return PolicyZScore, nil
	case PolicyMAD:
		return PolicyMAD, nil
	}
	return "", fmt.Errorf("unknown outlier policy %q (use zscore or mad)", s)
}

// ParseMissingPolicy validates a missing-value policy name; empty selects retain.
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch MissingPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", Retain:
		return Retain, nil
	case Drop:
		return Drop, nil
	}
	return "", fmt.Errorf("unknown missing policy %q (use retain or drop)", s)
}

// Options controls one filter run.
type Options struct {
	// Metrics to filter. Empty means model.DefaultMetrics.
	Metrics []string
	// Threshold on |z|; values <= 0 use DefaultThreshold.
	Threshold float64
	// Policy applies to every metric without an entry in PerMetric.
	Policy    Policy
	PerMetric map[string]Policy
	Missing   MissingPolicy
	// SinglePass stops after the first detection pass. By default detection repeats on the
	// remaining values until a pass flags nothing new.
	SinglePass bool
}

// DefaultOptions returns z-score detection at |z| > 3 with missing values retained.
func DefaultOptions() Options {
	return Options{
		Metrics:   append([]string(nil), model.DefaultMetrics...),
		Threshold: DefaultThreshold,
		Policy:    PolicyZScore,
		Missing:   Retain,
	}
}

// MetricQuality summarizes the flags of one metric.
type MetricQuality struct {
	Metric         string
	Policy         Policy
	Total          int
	Missing        int
	Outliers       int
	Undeterminable int
	// Passes is the number of detection passes that ran.
	Passes int
	// Center and Scale are the statistics of the last pass (mean/std or median/MAD).
	Center float64
	Scale  float64
}

// Result is the output of one filter run.
type Result struct {
	Cleaned   *model.Dataset
	Flags     *FlagTable
	Metrics   []MetricQuality
	Threshold float64
	// Dropped lists reading IDs removed by the drop policy.
	Dropped []int
}

// Filter flags missing and outlying values of the requested metrics. The input dataset is
// not modified: the cleaned dataset is a copy where outlier values are masked as missing and,
// under the drop policy, readings with a missing metric value are removed.
func Filter(ds *model.Dataset, opt Options) (*Result, error) {
	if ds == nil {
		return nil, fmt.Errorf("filter: nil dataset")
	}
	metrics := opt.Metrics
	if len(metrics) == 0 {
		metrics = model.DefaultMetrics
	}
	thr := opt.Threshold
	if thr <= 0 {
		thr = DefaultThreshold
	}
	cols := make([]int, 0, len(metrics))
	names := make([]string, 0, len(metrics))
	seen := make(map[string]bool, len(metrics))
	for _, m := range metrics {
		j, err := ds.ColumnIndex(m)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", ds.Country, err)
		}
		// GHI, ghi and aliases of one column collapse to a single metric.
		if k := key(ds.Columns[j]); !seen[k] {
			seen[k] = true
			cols = append(cols, j)
			names = append(names, ds.Columns[j])
		}
	}

	ids := make([]int, ds.Len())
	for i, r := range ds.Readings {
		ids[i] = r.ID
	}
	table := newFlagTable(ids)
	res := &Result{Flags: table, Threshold: thr}
	for i, j := range cols {
		policy := opt.Policy
		if p, ok := lookupPolicy(opt.PerMetric, names[i]); ok {
			policy = p
		}
		if policy == "" {
			policy = PolicyZScore
		}
		flags, mq := detect(ds, j, policy, thr, opt.SinglePass)
		mq.Metric = names[i]
		table.set(names[i], flags)
		res.Metrics = append(res.Metrics, mq)
	}

	cleaned := ds.Clone()
	kept := cleaned.Readings[:0]
	for i, r := range cleaned.Readings {
		drop := false
		for k, j := range cols {
			switch table.flags[key(names[k])][i] {
			case Outlier:
				r.Values[j] = model.Missing()
			case Missing:
				if opt.Missing == Drop {
					drop = true
				}
			}
		}
		if drop {
			res.Dropped = append(res.Dropped, r.ID)
			continue
		}
		kept = append(kept, r)
	}
	out, err := model.NewDataset(ds.Country, ds.Source, cleaned.Columns, kept)
	if err != nil {
		return nil, fmt.Errorf("build cleaned dataset: %w", err)
	}
	res.Cleaned = out
	return res, nil
}

func lookupPolicy(m map[string]Policy, metric string) (Policy, bool) {
	for k, p := range m {
		if key(k) == key(metric) {
			return p, true
		}
	}
	return "", false
}

// detect flags one column. Readings with fewer than two present values are undeterminable.
func detect(ds *model.Dataset, col int, policy Policy, thr float64, singlePass bool) ([]Flag, MetricQuality) {
	flags := make([]Flag, ds.Len())
	mq := MetricQuality{Policy: policy, Total: ds.Len()}
	var active []int
	for i, r := range ds.Readings {
		if !r.Values[col].Valid {
			flags[i] = Missing
			mq.Missing++
			continue
		}
		active = append(active, i)
	}
	if len(active) < 2 {
		for _, i := range active {
			flags[i] = Undeterminable
		}
		mq.Undeterminable = len(active)
		return flags, mq
	}

	vals := make([]float64, 0, len(active))
	// Each pass removes at least one value, so the loop ends within len(active) passes.
	for len(active) >= 2 {
		vals = vals[:0]
		for _, i := range active {
			vals = append(vals, ds.Readings[i].Values[col].X)
		}
		center, scale := spread(vals, policy)
		mq.Passes++
		mq.Center, mq.Scale = center, scale
		if scale == 0 || math.IsNaN(scale) {
			break
		}
		next := active[:0:0]
		found := 0
		for k, i := range active {
			if zscore(vals[k], center, scale, policy) > thr {
				flags[i] = Outlier
				found++
				continue
			}
			next = append(next, i)
		}
		mq.Outliers += found
		active = next
		if found == 0 || singlePass {
			break
		}
	}
	return flags, mq
}

func spread(vals []float64, policy Policy) (center, scale float64) {
	if policy == PolicyMAD {
		return stats.MedianMAD(vals)
	}
	return stats.PopMeanStd(vals)
}

func zscore(x, center, scale float64, policy Policy) float64 {
	z := math.Abs(x-center) / scale
	if policy == PolicyMAD {
		z *= 0.6745
	}
	return z
}
