package compare

import (
	"fmt"

	"github.com/KaramelBytes/sunlens-cli/internal/model"
)

// Insights are the headline facts of a comparison.
type Insights struct {
	Best           model.Country `json:"best"`
	Worst          model.Country `json:"worst"`
	MostConsistent model.Country `json:"most_consistent,omitempty"`
	MostVariable   model.Country `json:"most_variable,omitempty"`
	// Spread is the gap between the best and the worst mean.
	Spread float64  `json:"spread"`
	Lines  []string `json:"lines"`
}

// Insights derives best/worst and consistency facts from the ranking. Countries without a
// defined deviation are skipped for the consistency facts.
func (r *Result) Insights() Insights {
	var in Insights
	if len(r.Rows) == 0 {
		return in
	}
	best, worst := r.Rows[0], r.Rows[len(r.Rows)-1]
	in.Best, in.Worst = best.Country, worst.Country
	in.Spread = best.Mean - worst.Mean

	var lo, hi *Row
	for i := range r.Rows {
		row := &r.Rows[i]
		if !row.Std.Defined {
			continue
		}
		if lo == nil || row.Std.Value < lo.Std.Value {
			lo = row
		}
		if hi == nil || row.Std.Value > hi.Std.Value {
			hi = row
		}
	}

	in.Lines = append(in.Lines,
		fmt.Sprintf("%s has the highest average %s (%.2f)", best.Country.DisplayName(), r.Metric, best.Mean),
		fmt.Sprintf("%s has the lowest average %s (%.2f), %.2f below the best", worst.Country.DisplayName(), r.Metric, worst.Mean, in.Spread),
	)
	if lo != nil {
		in.MostConsistent = lo.Country
		in.Lines = append(in.Lines, fmt.Sprintf("%s is the most consistent (std %.2f)", lo.Country.DisplayName(), lo.Std.Value))
	}
	if hi != nil && hi != lo {
		in.MostVariable = hi.Country
		in.Lines = append(in.Lines, fmt.Sprintf("%s is the most variable (std %.2f)", hi.Country.DisplayName(), hi.Std.Value))
	}
	if r.PValue.Defined {
		verdict := "not statistically significant"
		if r.Significant {
			verdict = "statistically significant"
		}
		in.Lines = append(in.Lines, fmt.Sprintf("Differences in %s are %s (p=%.4g, alpha=%.2g)", r.Metric, verdict, r.PValue.Value, r.Alpha))
	}
	return in
}
