package summary

import (
	"github.com/KaramelBytes/sunlens-cli/internal/quality"
	"github.com/KaramelBytes/sunlens-cli/internal/stats"
)

// Correlation is the Pearson coefficient of two metrics over readings where both are valid.
type Correlation struct {
	A     string     `json:"a"`
	B     string     `json:"b"`
	Pairs int        `json:"pairs"`
	R     stats.Stat `json:"r"`
}

// Correlations returns every metric pair of the filter result, in metric order.
func Correlations(res *quality.Result, metrics ...string) ([]Correlation, error) {
	if len(metrics) == 0 {
		metrics = res.Flags.Metrics()
	}
	ds := res.Cleaned
	cols := make([]int, len(metrics))
	for i, m := range metrics {
		j, err := ds.ColumnIndex(m)
		if err != nil {
			return nil, err
		}
		cols[i] = j
	}
	var out []Correlation
	for a := 0; a < len(cols); a++ {
		for b := a + 1; b < len(cols); b++ {
			na, nb := ds.Columns[cols[a]], ds.Columns[cols[b]]
			var x, y []float64
			for _, r := range ds.Readings {
				va, vb := r.Values[cols[a]], r.Values[cols[b]]
				if !va.Valid || !vb.Valid || !validFlag(res, r.ID, na) || !validFlag(res, r.ID, nb) {
					continue
				}
				x = append(x, va.X)
				y = append(y, vb.X)
			}
			out = append(out, Correlation{A: na, B: nb, Pairs: len(x), R: stats.Pearson(x, y)})
		}
	}
	return out, nil
}

func validFlag(res *quality.Result, id int, metric string) bool {
	f, ok := res.Flags.Get(id, metric)
	return ok && f.Valid()
}
