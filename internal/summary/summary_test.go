package summary

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/sunlens-cli/internal/model"
	"github.com/KaramelBytes/sunlens-cli/internal/quality"
)

// filtered builds a GHI/Tamb dataset from paired columns and runs the default filter on it.
// NaN marks a missing value.
func filtered(t *testing.T, missing quality.MissingPolicy, ghi, tamb []float64) *quality.Result {
	t.Helper()
	require.Equal(t, len(ghi), len(tamb))
	rs := make([]model.Reading, len(ghi))
	for i := range ghi {
		rs[i] = model.Reading{ID: i, Values: []model.Value{val(ghi[i]), val(tamb[i])}}
	}
	ds, err := model.NewDataset(model.Benin, "benin.csv", []string{"GHI", "Tamb"}, rs)
	require.NoError(t, err)
	opt := quality.DefaultOptions()
	opt.Metrics = []string{"GHI", "Tamb"}
	opt.Missing = missing
	res, err := quality.Filter(ds, opt)
	require.NoError(t, err)
	return res
}

func val(x float64) model.Value {
	if math.IsNaN(x) {
		return model.Missing()
	}
	return model.Some(x)
}

func repeat(x float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = x
	}
	return out
}

func spikyGHI() []float64 {
	var out []float64
	for i := 0; i < 20; i++ {
		out = append(out, 100+float64(i%5))
	}
	return append(out, 1000, math.NaN())
}

func TestSummarizeExcludesFlaggedValues(t *testing.T) {
	res := filtered(t, quality.Retain, spikyGHI(), repeat(25, 22))
	cs, err := Summarize(res)
	require.NoError(t, err)
	assert.Equal(t, model.Benin, cs.Country)
	assert.Equal(t, 22, cs.Records)
	require.Len(t, cs.Metrics, 2)

	ghi, ok := cs.Metric("ghi")
	require.True(t, ok)
	assert.Equal(t, 22, ghi.Total)
	assert.Equal(t, 20, ghi.Valid)
	assert.Equal(t, 1, ghi.Missing)
	assert.Equal(t, 1, ghi.Outliers)
	assert.InDelta(t, 102, ghi.Mean.Value, 1e-9)
	assert.InDelta(t, 102, ghi.Median.Value, 1e-9)
	assert.Equal(t, ghi.Median, ghi.P50)
	assert.InDelta(t, math.Sqrt(40.0/19.0), ghi.Std.Value, 1e-9)
	assert.Equal(t, 100.0, ghi.Min.Value)
	assert.Equal(t, 104.0, ghi.Max.Value)
	assert.InDelta(t, 101, ghi.P25.Value, 1e-9)
	assert.InDelta(t, 103, ghi.P75.Value, 1e-9)

	tamb, ok := cs.Metric("temperature")
	require.True(t, ok)
	assert.Equal(t, 22, tamb.Valid)
	assert.Equal(t, 0.0, tamb.Std.Value)
	assert.True(t, tamb.Std.Defined)
}

func TestSummarizeCountsAddUp(t *testing.T) {
	for _, policy := range []quality.MissingPolicy{quality.Retain, quality.Drop} {
		t.Run(string(policy), func(t *testing.T) {
			tamb := repeat(25, 22)
			tamb[3] = math.NaN()
			res := filtered(t, policy, spikyGHI(), tamb)
			cs, err := Summarize(res)
			require.NoError(t, err)
			for _, m := range cs.Metrics {
				assert.Equal(t, res.Cleaned.Len(), m.Total, m.Metric)
				assert.Equal(t, m.Total, m.Valid+m.Missing+m.Outliers, m.Metric)
			}
		})
	}
}

func TestSummarizeAllMissingIsUndefined(t *testing.T) {
	nan := math.NaN()
	res := filtered(t, quality.Retain, []float64{nan, nan, nan}, []float64{20, 21, 22})
	cs, err := Summarize(res, "GHI")
	require.NoError(t, err)
	require.Len(t, cs.Metrics, 1)
	ghi := cs.Metrics[0]
	assert.Equal(t, 0, ghi.Valid)
	assert.Equal(t, 3, ghi.Missing)
	for _, s := range []struct {
		name string
		def  bool
	}{
		{"mean", ghi.Mean.Defined},
		{"median", ghi.Median.Defined},
		{"std", ghi.Std.Defined},
		{"min", ghi.Min.Defined},
		{"max", ghi.Max.Defined},
	} {
		assert.False(t, s.def, s.name)
	}
	assert.Nil(t, ghi.ToMap()["mean"])
}

func TestSummarizeSingleValue(t *testing.T) {
	nan := math.NaN()
	res := filtered(t, quality.Retain, []float64{nan, 640, nan}, []float64{20, 21, 22})
	cs, err := Summarize(res, "GHI")
	require.NoError(t, err)
	ghi := cs.Metrics[0]
	assert.Equal(t, 1, ghi.Valid)
	assert.Equal(t, 640.0, ghi.Mean.Value)
	assert.Equal(t, 640.0, ghi.P25.Value)
	assert.False(t, ghi.Std.Defined)
}

func TestSummarizeUnknownMetric(t *testing.T) {
	res := filtered(t, quality.Retain, []float64{1, 2}, []float64{3, 4})
	_, err := Summarize(res, "WS")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidColumn)

	_, err = Summarize(nil)
	assert.Error(t, err)
}

func TestValidValuesUnfilteredMetric(t *testing.T) {
	rs := []model.Reading{
		{ID: 0, Values: []model.Value{val(1), val(20)}},
		{ID: 1, Values: []model.Value{val(2), val(21)}},
	}
	ds, err := model.NewDataset(model.Togo, "togo.csv", []string{"GHI", "Tamb"}, rs)
	require.NoError(t, err)
	opt := quality.DefaultOptions()
	opt.Metrics = []string{"GHI"}
	res, err := quality.Filter(ds, opt)
	require.NoError(t, err)

	_, err = ValidValues(res, "temperature")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidColumn)
	assert.Contains(t, err.Error(), `"Tamb" (available: GHI)`)
}

func TestSummaryJSONUsesNull(t *testing.T) {
	nan := math.NaN()
	res := filtered(t, quality.Retain, []float64{nan, 5, nan}, []float64{1, 2, 3})
	cs, err := Summarize(res, "GHI")
	require.NoError(t, err)
	b, err := json.Marshal(cs.Metrics[0])
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Nil(t, got["std"])
	assert.Equal(t, 5.0, got["mean"])

	m := cs.ToMap()
	assert.Equal(t, "Benin", m["country"])
	assert.Len(t, m["metrics"], 1)
}

func TestCorrelations(t *testing.T) {
	ghi := []float64{100, 200, 300, 400, math.NaN()}
	tamb := []float64{20, 22, 24, 26, 28}
	res := filtered(t, quality.Retain, ghi, tamb)
	cs, err := Correlations(res)
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.Equal(t, "GHI", cs[0].A)
	assert.Equal(t, "Tamb", cs[0].B)
	assert.Equal(t, 4, cs[0].Pairs)
	assert.InDelta(t, 1, cs[0].R.Value, 1e-9)
}
