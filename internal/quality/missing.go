package quality

import "github.com/KaramelBytes/sunlens-cli/internal/model"

// ColumnMissing is one row of a missing-value report.
type ColumnMissing struct {
	Column  string  `json:"column"`
	Missing int     `json:"missing_count"`
	Percent float64 `json:"missing_percent"`
}

// MissingReport counts missing values per column of ds, in column order.
func MissingReport(ds *model.Dataset) []ColumnMissing {
	out := make([]ColumnMissing, len(ds.Columns))
	for j, c := range ds.Columns {
		out[j].Column = c
	}
	for _, r := range ds.Readings {
		for j, v := range r.Values {
			if !v.Valid {
				out[j].Missing++
			}
		}
	}
	if n := ds.Len(); n > 0 {
		for j := range out {
			out[j].Percent = float64(out[j].Missing) * 100 / float64(n)
		}
	}
	return out
}
