// Package report renders pipeline results as Markdown and JSON.
package report

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/sunlens-cli/internal/compare"
	"github.com/KaramelBytes/sunlens-cli/internal/pipeline"
	"github.com/KaramelBytes/sunlens-cli/internal/quality"
	"github.com/KaramelBytes/sunlens-cli/internal/summary"
	"github.com/KaramelBytes/sunlens-cli/internal/utils"
)

const statFormat = "%.2f"

// Country renders the quality and summary sections of one country.
func Country(cr *pipeline.CountryRun) string {
	var b strings.Builder
	q := cr.Quality
	b.WriteString("[DATASET SUMMARY]\n")
	fmt.Fprintf(&b, "Country: %s\n", cr.Country.DisplayName())
	if cr.Source != "" {
		fmt.Fprintf(&b, "Source: %s\n", cr.Source)
	}
	fmt.Fprintf(&b, "Records: %d\n", cr.Summary.Records)
	if len(q.Dropped) > 0 {
		fmt.Fprintf(&b, "Dropped: %d readings with missing values\n", len(q.Dropped))
	}
	b.WriteString("\n[QUALITY]\n")
	for _, m := range q.Metrics {
		fmt.Fprintf(&b, "- %s: %s |z|>%.1f, missing %d, outliers %d", m.Metric, m.Policy, q.Threshold, m.Missing, m.Outliers)
		if m.Undeterminable > 0 {
			fmt.Fprintf(&b, ", undeterminable %d", m.Undeterminable)
		}
		if m.Passes > 1 {
			fmt.Fprintf(&b, " (%d passes)", m.Passes)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n[STATISTICS]\n")
	writeSummaryTable(&b, cr.Summary)

	if len(cr.Missing) > 0 {
		b.WriteString("\n[MISSING VALUES]\n")
		for _, m := range cr.Missing {
			if m.Missing == 0 {
				continue
			}
			fmt.Fprintf(&b, "- %s: %d (%.1f%%)\n", m.Column, m.Missing, m.Percent)
		}
		if totalMissing(cr.Missing) == 0 {
			b.WriteString("- none\n")
		}
	}
	writeCorrelations(&b, cr.Correlations)
	return b.String()
}

func writeSummaryTable(b *strings.Builder, s *summary.CountrySummary) {
	b.WriteString("| Metric | Valid | Missing | Outliers | Mean | Median | Std | Min | P25 | P75 | Max |\n")
	b.WriteString("| --- | --- | --- | --- | --- | --- | --- | --- | --- | --- | --- |\n")
	for _, m := range s.Metrics {
		fmt.Fprintf(b, "| %s | %d | %d | %d | %s | %s | %s | %s | %s | %s | %s |\n",
			m.Metric, m.Valid, m.Missing, m.Outliers,
			m.Mean.Format(statFormat), m.Median.Format(statFormat), m.Std.Format(statFormat),
			m.Min.Format(statFormat), m.P25.Format(statFormat), m.P75.Format(statFormat), m.Max.Format(statFormat))
	}
}

func writeCorrelations(b *strings.Builder, cs []summary.Correlation) {
	var defined []summary.Correlation
	for _, c := range cs {
		if c.R.Defined {
			defined = append(defined, c)
		}
	}
	if len(defined) == 0 {
		return
	}
	sort.SliceStable(defined, func(i, j int) bool {
		return math.Abs(defined[i].R.Value) > math.Abs(defined[j].R.Value)
	})
	b.WriteString("\n[CORRELATIONS]\n")
	for _, c := range defined {
		fmt.Fprintf(b, "- %s ~ %s: r=%.3f (n=%d)\n", c.A, c.B, c.R.Value, c.Pairs)
	}
}

func totalMissing(ms []quality.ColumnMissing) int {
	n := 0
	for _, m := range ms {
		n += m.Missing
	}
	return n
}

// Comparison renders the ANOVA, ranking and insights of a comparison.
func Comparison(res *compare.Result) string {
	var b strings.Builder
	b.WriteString("[COMPARISON]\n")
	fmt.Fprintf(&b, "Metric: %s\n", res.Metric)
	fmt.Fprintf(&b, "Test: one-way ANOVA, F(%d, %d) = %s, p = %s\n", res.DF1, res.DF2, res.F.Format("%.3f"), formatP(res))
	verdict := "no significant difference"
	if res.Significant {
		verdict = "significant difference"
	}
	fmt.Fprintf(&b, "Result: %s at alpha=%.2g\n", verdict, res.Alpha)

	b.WriteString("\n[RANKING]\n")
	b.WriteString("| Rank | Country | Mean | Std | Count |\n")
	b.WriteString("| --- | --- | --- | --- | --- |\n")
	for _, r := range res.Rows {
		fmt.Fprintf(&b, "| %d | %s | %.2f | %s | %d |\n", r.Rank, r.Country.DisplayName(), r.Mean, r.Std.Format(statFormat), r.Count)
	}
	if len(res.Excluded) > 0 {
		b.WriteString("\n[EXCLUDED]\n")
		for _, x := range res.Excluded {
			fmt.Fprintf(&b, "- %s: %s\n", x.Country.DisplayName(), x.Reason)
		}
	}
	if in := res.Insights(); len(in.Lines) > 0 {
		b.WriteString("\n[INSIGHTS]\n")
		for _, l := range in.Lines {
			fmt.Fprintf(&b, "- %s\n", l)
		}
	}
	return b.String()
}

func formatP(res *compare.Result) string {
	if !res.PValue.Defined {
		return "n/a"
	}
	if res.PValue.Value < 1e-4 {
		return "< 0.0001"
	}
	return fmt.Sprintf("%.4f", res.PValue.Value)
}

// Run renders every country followed by the comparison, when there is one, and notes.
func Run(run *pipeline.Run) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Solar potential report (run %s)\n\n", run.ID)
	for _, cr := range run.Countries {
		fmt.Fprintf(&b, "## %s\n\n", cr.Country.DisplayName())
		b.WriteString(Country(cr))
		b.WriteString("\n")
	}
	if run.Comparison != nil {
		b.WriteString("## Cross-country comparison\n\n")
		b.WriteString(Comparison(run.Comparison))
	}
	if len(run.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range run.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}

// JSON renders the run as indented JSON built from the presentation maps.
func JSON(run *pipeline.Run) ([]byte, error) {
	countries := make([]map[string]any, len(run.Countries))
	for i, cr := range run.Countries {
		m := cr.Summary.ToMap()
		m["missing"] = cr.Missing
		m["correlations"] = cr.Correlations
		m["quality"] = qualityMap(cr.Quality)
		countries[i] = m
	}
	doc := map[string]any{
		"run_id":     run.ID.String(),
		"started_at": run.StartedAt,
		"countries":  countries,
	}
	if run.Comparison != nil {
		cmp := run.Comparison.ToMap()
		cmp["insights"] = run.Comparison.Insights()
		doc["comparison"] = cmp
	}
	if len(run.Warnings) > 0 {
		doc["warnings"] = run.Warnings
	}
	return utils.PrettyJSON(doc)
}

func qualityMap(q *quality.Result) map[string]any {
	metrics := make([]map[string]any, len(q.Metrics))
	for i, m := range q.Metrics {
		metrics[i] = map[string]any{
			"metric":         m.Metric,
			"policy":         string(m.Policy),
			"missing":        m.Missing,
			"outliers":       m.Outliers,
			"undeterminable": m.Undeterminable,
			"passes":         m.Passes,
		}
	}
	return map[string]any{
		"threshold": q.Threshold,
		"dropped":   len(q.Dropped),
		"metrics":   metrics,
	}
}
