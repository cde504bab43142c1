package summary

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/sunlens-cli/internal/model"
	"github.com/KaramelBytes/sunlens-cli/internal/quality"
	"github.com/KaramelBytes/sunlens-cli/internal/stats"
)

// MetricSummary holds descriptive statistics of one metric's valid values.
// Valid + Missing + Outliers == Total.
type MetricSummary struct {
	Metric   string     `json:"metric"`
	Total    int        `json:"total"`
	Valid    int        `json:"valid"`
	Missing  int        `json:"missing"`
	Outliers int        `json:"outliers"`
	Mean     stats.Stat `json:"mean"`
	Median   stats.Stat `json:"median"`
	Std      stats.Stat `json:"std"`
	Min      stats.Stat `json:"min"`
	Max      stats.Stat `json:"max"`
	P25      stats.Stat `json:"p25"`
	P50      stats.Stat `json:"p50"`
	P75      stats.Stat `json:"p75"`
}

// CountrySummary aggregates one country's cleaned dataset.
type CountrySummary struct {
	Country model.Country   `json:"country"`
	Source  string          `json:"source"`
	Records int             `json:"records"`
	Metrics []MetricSummary `json:"metrics"`
}

// Metric returns the summary of a metric by (alias-aware) name.
func (c *CountrySummary) Metric(name string) (MetricSummary, bool) {
	want := model.CanonicalMetric(name)
	for _, m := range c.Metrics {
		if strings.EqualFold(m.Metric, want) {
			return m, true
		}
	}
	return MetricSummary{}, false
}

// Summarize computes per-metric statistics over the cleaned dataset of a filter result,
// using only values whose flag is valid. Metrics defaults to the filtered metrics.
// It never fails for lack of data: statistics without enough values are undefined.
func Summarize(res *quality.Result, metrics ...string) (*CountrySummary, error) {
	if res == nil || res.Cleaned == nil || res.Flags == nil {
		return nil, fmt.Errorf("summarize: incomplete filter result")
	}
	if len(metrics) == 0 {
		metrics = res.Flags.Metrics()
	}
	ds := res.Cleaned
	out := &CountrySummary{Country: ds.Country, Source: ds.Source, Records: ds.Len()}
	for _, m := range metrics {
		ms, err := summarizeMetric(res, m)
		if err != nil {
			return nil, err
		}
		out.Metrics = append(out.Metrics, ms)
	}
	return out, nil
}

// ValidValues returns the values of metric whose flag allows statistics, in reading order.
func ValidValues(res *quality.Result, metric string) ([]float64, error) {
	ds := res.Cleaned
	j, err := ds.ColumnIndex(metric)
	if err != nil {
		return nil, fmt.Errorf("summarize %s: %w", ds.Country, err)
	}
	name := ds.Columns[j]
	vals := make([]float64, 0, ds.Len())
	for _, r := range ds.Readings {
		flag, ok := res.Flags.Get(r.ID, name)
		if !ok {
			return nil, fmt.Errorf("summarize %s: metric not filtered: %w", ds.Country,
				&model.ColumnError{Column: name, Available: res.Flags.Metrics()})
		}
		if flag.Valid() && r.Values[j].Valid {
			vals = append(vals, r.Values[j].X)
		}
	}
	return vals, nil
}

func summarizeMetric(res *quality.Result, metric string) (MetricSummary, error) {
	ds := res.Cleaned
	j, err := ds.ColumnIndex(metric)
	if err != nil {
		return MetricSummary{}, fmt.Errorf("summarize %s: %w", ds.Country, err)
	}
	ms := MetricSummary{Metric: ds.Columns[j], Total: ds.Len()}
	for _, r := range ds.Readings {
		flag, _ := res.Flags.Get(r.ID, ms.Metric)
		switch flag {
		case quality.Missing:
			ms.Missing++
		case quality.Outlier:
			ms.Outliers++
		}
	}
	vals, err := ValidValues(res, metric)
	if err != nil {
		return MetricSummary{}, err
	}
	ms.Valid = len(vals)
	describe(&ms, vals)
	return ms, nil
}

func describe(ms *MetricSummary, vals []float64) {
	if len(vals) == 0 {
		return
	}
	sorted := stats.Sorted(vals)
	ms.Mean = stats.Mean(vals)
	ms.Std = stats.SampleStd(vals)
	ms.Min = stats.Def(sorted[0])
	ms.Max = stats.Def(sorted[len(sorted)-1])
	ms.P25 = stats.Quantile(sorted, 0.25)
	ms.P50 = stats.Quantile(sorted, 0.5)
	ms.P75 = stats.Quantile(sorted, 0.75)
	ms.Median = ms.P50
}

// ToMap flattens the summary into field name -> value rows for presentation layers.
func (c *CountrySummary) ToMap() map[string]any {
	metrics := make([]map[string]any, len(c.Metrics))
	for i, m := range c.Metrics {
		metrics[i] = m.ToMap()
	}
	return map[string]any{
		"country": c.Country.String(),
		"source":  c.Source,
		"records": c.Records,
		"metrics": metrics,
	}
}

// ToMap returns the metric statistics keyed by field name; undefined statistics are nil.
func (m MetricSummary) ToMap() map[string]any {
	return map[string]any{
		"metric":   m.Metric,
		"total":    m.Total,
		"valid":    m.Valid,
		"missing":  m.Missing,
		"outliers": m.Outliers,
		"mean":     m.Mean.Any(),
		"median":   m.Median.Any(),
		"std":      m.Std.Any(),
		"min":      m.Min.Any(),
		"max":      m.Max.Any(),
		"p25":      m.P25.Any(),
		"p50":      m.P50.Any(),
		"p75":      m.P75.Any(),
	}
}
