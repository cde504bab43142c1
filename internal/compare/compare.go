// Package compare runs the cross-country comparison of one metric: a one-way ANOVA over the
// per-country valid values and a ranking by mean.
package compare

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/KaramelBytes/sunlens-cli/internal/model"
	"github.com/KaramelBytes/sunlens-cli/internal/quality"
	"github.com/KaramelBytes/sunlens-cli/internal/stats"
	"github.com/KaramelBytes/sunlens-cli/internal/summary"
)

const (
	// MinCountries is the number of usable countries a comparison needs.
	MinCountries = 2
	// MinValues is the number of valid values a country needs to be usable.
	MinValues = 2
	// DefaultAlpha is the significance level used when none is configured.
	DefaultAlpha = 0.05
)

// Group is one country's valid values of the compared metric.
type Group struct {
	Country model.Country
	Values  []float64
}

// Row is one country's line of the ranking.
type Row struct {
	Country model.Country `json:"country"`
	Rank    int           `json:"rank"`
	Mean    float64       `json:"mean"`
	Std     stats.Stat    `json:"std"`
	Count   int           `json:"count"`
}

// Exclusion names a country left out of the comparison.
type Exclusion struct {
	Country model.Country `json:"country"`
	Valid   int           `json:"valid"`
	Reason  string        `json:"reason"`
}

// Result is the outcome of comparing one metric across countries.
type Result struct {
	Metric      string      `json:"metric"`
	F           stats.Stat  `json:"f"`
	PValue      stats.Stat  `json:"p_value"`
	DF1         int         `json:"df_between"`
	DF2         int         `json:"df_within"`
	Alpha       float64     `json:"alpha"`
	Significant bool        `json:"significant"`
	Rows        []Row       `json:"ranking"`
	Excluded    []Exclusion `json:"excluded,omitempty"`
}

// Row returns the ranking row of a country.
func (r *Result) Row(c model.Country) (Row, bool) {
	for _, row := range r.Rows {
		if row.Country == c {
			return row, true
		}
	}
	return Row{}, false
}

// moments is what the ANOVA needs from a group: size, mean and sum of squared deviations.
type moments struct {
	country model.Country
	n       int
	mean    float64
	ss      float64
	std     stats.Stat
}

// GroupsFrom collects the valid values of metric from per-country filter results, in
// canonical country order.
func GroupsFrom(results map[model.Country]*quality.Result, metric string) ([]Group, error) {
	out := make([]Group, 0, len(results))
	for _, c := range orderedCountries(results) {
		vals, err := summary.ValidValues(results[c], metric)
		if err != nil {
			return nil, fmt.Errorf("collect %s: %w", metric, err)
		}
		out = append(out, Group{Country: c, Values: vals})
	}
	return out, nil
}

// Compare runs the ANOVA and ranking over raw per-country values. Alpha outside (0,1) uses
// DefaultAlpha.
func Compare(groups []Group, metric string, alpha float64) (*Result, error) {
	ms := make([]moments, 0, len(groups))
	seen := map[model.Country]bool{}
	for _, g := range groups {
		if seen[g.Country] {
			return nil, fmt.Errorf("compare %s: duplicate country %s", metric, g.Country)
		}
		seen[g.Country] = true
		m := moments{country: g.Country, n: len(g.Values)}
		if m.n > 0 {
			m.mean = stats.Mean(g.Values).Value
			for _, v := range g.Values {
				d := v - m.mean
				m.ss += d * d
			}
			m.std = stats.SampleStd(g.Values)
		}
		ms = append(ms, m)
	}
	return run(ms, metric, alpha)
}

// CompareSummaries runs the same comparison from country summaries. The ANOVA only needs
// each group's count, mean and sample deviation, so the raw values are not required.
func CompareSummaries(summaries []*summary.CountrySummary, metric string, alpha float64) (*Result, error) {
	ms := make([]moments, 0, len(summaries))
	seen := map[model.Country]bool{}
	for _, s := range summaries {
		if seen[s.Country] {
			return nil, fmt.Errorf("compare %s: duplicate country %s", metric, s.Country)
		}
		seen[s.Country] = true
		m, ok := s.Metric(metric)
		if !ok {
			return nil, fmt.Errorf("compare %s: %w", s.Country, &model.ColumnError{Column: metric})
		}
		mo := moments{country: s.Country, n: m.Valid, mean: m.Mean.Value, std: m.Std}
		if m.Std.Defined {
			mo.ss = m.Std.Value * m.Std.Value * float64(m.Valid-1)
		}
		ms = append(ms, mo)
	}
	return run(ms, metric, alpha)
}

func run(ms []moments, metric string, alpha float64) (*Result, error) {
	if alpha <= 0 || alpha >= 1 {
		alpha = DefaultAlpha
	}
	res := &Result{Metric: model.CanonicalMetric(metric), Alpha: alpha}
	usable := ms[:0:0]
	for _, m := range ms {
		if m.n < MinValues {
			res.Excluded = append(res.Excluded, Exclusion{Country: m.country, Valid: m.n, Reason: exclusionReason(m.n)})
			continue
		}
		usable = append(usable, m)
	}
	sort.Slice(res.Excluded, func(i, j int) bool { return res.Excluded[i].Country < res.Excluded[j].Country })
	if len(usable) < MinCountries {
		names := make([]model.Country, len(usable))
		for i, m := range usable {
			names[i] = m.country
		}
		return nil, &InsufficientDataError{Metric: res.Metric, Usable: names, Excluded: res.Excluded}
	}

	anova(res, usable)
	res.Significant = res.PValue.Defined && res.PValue.Value < alpha
	res.Rows = rank(usable)
	return res, nil
}

func exclusionReason(n int) string {
	if n == 0 {
		return "no valid values"
	}
	return fmt.Sprintf("only %d valid value, need %d", n, MinValues)
}

// anova fills F, p and the degrees of freedom. A zero within-group variance gives F=+Inf when
// the means differ and leaves F undefined when they do not.
func anova(res *Result, ms []moments) {
	total := 0
	var weighted float64
	for _, m := range ms {
		total += m.n
		weighted += float64(m.n) * m.mean
	}
	grand := weighted / float64(total)
	var ssb, ssw float64
	for _, m := range ms {
		d := m.mean - grand
		ssb += float64(m.n) * d * d
		ssw += m.ss
	}
	res.DF1 = len(ms) - 1
	res.DF2 = total - len(ms)
	msb := ssb / float64(res.DF1)
	msw := ssw / float64(res.DF2)

	switch {
	case msw == 0 && msb == 0:
		res.F, res.PValue = stats.Undefined, stats.Undefined
	case msw == 0:
		res.F, res.PValue = stats.Def(math.Inf(1)), stats.Def(0)
	default:
		f := msb / msw
		dist := distuv.F{D1: float64(res.DF1), D2: float64(res.DF2)}
		res.F = stats.Def(f)
		res.PValue = stats.Def(dist.Survival(f))
	}
}

// rank orders by descending mean; equal means fall back to the country name.
func rank(ms []moments) []Row {
	sorted := append([]moments(nil), ms...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].mean != sorted[j].mean {
			return sorted[i].mean > sorted[j].mean
		}
		return sorted[i].country < sorted[j].country
	})
	rows := make([]Row, len(sorted))
	for i, m := range sorted {
		rows[i] = Row{Country: m.country, Rank: i + 1, Mean: m.mean, Std: m.std, Count: m.n}
	}
	return rows
}

func orderedCountries(results map[model.Country]*quality.Result) []model.Country {
	out := make([]model.Country, 0, len(results))
	for c := range results {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ToMap returns the result as field name -> value rows for presentation layers.
func (r *Result) ToMap() map[string]any {
	rows := make([]map[string]any, len(r.Rows))
	for i, row := range r.Rows {
		rows[i] = map[string]any{
			"country": row.Country.String(),
			"rank":    row.Rank,
			"mean":    row.Mean,
			"std":     row.Std.Any(),
			"count":   row.Count,
		}
	}
	excluded := make([]map[string]any, len(r.Excluded))
	for i, x := range r.Excluded {
		excluded[i] = map[string]any{"country": x.Country.String(), "valid": x.Valid, "reason": x.Reason}
	}
	return map[string]any{
		"metric":      r.Metric,
		"f":           r.F.Any(),
		"p_value":     r.PValue.Any(),
		"df_between":  r.DF1,
		"df_within":   r.DF2,
		"alpha":       r.Alpha,
		"significant": r.Significant,
		"ranking":     rows,
		"excluded":    excluded,
	}
}
