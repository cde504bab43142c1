package quality

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/sunlens-cli/internal/model"
)

// dataset builds a single-column GHI dataset; nil entries are missing.
func dataset(t *testing.T, vals ...*float64) *model.Dataset {
	t.Helper()
	rs := make([]model.Reading, len(vals))
	for i, v := range vals {
		rs[i] = model.Reading{ID: i, Values: []model.Value{model.Missing()}}
		if v != nil {
			rs[i].Values[0] = model.Some(*v)
		}
	}
	ds, err := model.NewDataset(model.Benin, "test", []string{model.GHI}, rs)
	require.NoError(t, err)
	return ds
}

func f(x float64) *float64 { return &x }

func ghiOnly() Options {
	opt := DefaultOptions()
	opt.Metrics = []string{model.GHI}
	return opt
}

// spiky has twenty values near 100 and one far away.
func spiky() []*float64 {
	var vals []*float64
	for i := 0; i < 20; i++ {
		vals = append(vals, f(100+float64(i%5)))
	}
	return append(vals, f(1000))
}

func TestFilterFlagsOutlier(t *testing.T) {
	ds := dataset(t, spiky()...)
	res, err := Filter(ds, ghiOnly())
	require.NoError(t, err)

	assert.Equal(t, []int{20}, res.Flags.Flagged(model.GHI, Outlier))
	flag, ok := res.Flags.Get(20, "ghi")
	require.True(t, ok)
	assert.Equal(t, Outlier, flag)

	// Masked in the cleaned copy, untouched in the input.
	assert.False(t, res.Cleaned.Readings[20].Values[0].Valid)
	assert.Equal(t, model.Some(1000), ds.Readings[20].Values[0])
	assert.Equal(t, 1, res.Metrics[0].Outliers)
	assert.Equal(t, 2, res.Metrics[0].Passes)
}

func TestFilterZeroStdFlagsNothing(t *testing.T) {
	ds := dataset(t, f(5), f(5), f(5), nil, f(5))
	for _, policy := range []Policy{PolicyZScore, PolicyMAD} {
		t.Run(string(policy), func(t *testing.T) {
			opt := ghiOnly()
			opt.Policy = policy
			opt.Threshold = 0.01
			res, err := Filter(ds, opt)
			require.NoError(t, err)
			assert.Zero(t, res.Flags.Count(model.GHI, Outlier))
			assert.Equal(t, 1, res.Flags.Count(model.GHI, Missing))
		})
	}
}

func TestFilterIdempotent(t *testing.T) {
	// Heavy tail: removing the largest value exposes the next one.
	vals := spiky()
	vals = append(vals, f(400), f(250), nil)
	ds := dataset(t, vals...)

	for _, policy := range []Policy{PolicyZScore, PolicyMAD} {
		t.Run(string(policy), func(t *testing.T) {
			opt := ghiOnly()
			opt.Policy = policy
			first, err := Filter(ds, opt)
			require.NoError(t, err)
			require.NotZero(t, first.Flags.Count(model.GHI, Outlier))

			second, err := Filter(first.Cleaned, opt)
			require.NoError(t, err)
			assert.Zero(t, second.Flags.Count(model.GHI, Outlier))
			assert.Equal(t,
				first.Flags.Count(model.GHI, Missing)+first.Flags.Count(model.GHI, Outlier),
				second.Flags.Count(model.GHI, Missing))
		})
	}
}

func TestFilterUndeterminable(t *testing.T) {
	ds := dataset(t, nil, f(42), nil)
	res, err := Filter(ds, ghiOnly())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Flags.Count(model.GHI, Undeterminable))
	assert.Equal(t, 2, res.Flags.Count(model.GHI, Missing))
	assert.Zero(t, res.Flags.Count(model.GHI, Outlier))
	assert.Equal(t, 0, res.Metrics[0].Passes)
}

func TestFilterMissingPolicy(t *testing.T) {
	rs := []model.Reading{
		{ID: 0, Values: []model.Value{model.Some(1), model.Some(10)}},
		{ID: 1, Values: []model.Value{model.Missing(), model.Some(11)}},
		{ID: 2, Values: []model.Value{model.Some(2), model.Missing()}},
		{ID: 3, Values: []model.Value{model.Some(3), model.Some(12)}},
	}
	ds, err := model.NewDataset(model.Togo, "t", []string{"GHI", "DNI"}, rs)
	require.NoError(t, err)

	opt := DefaultOptions()
	opt.Metrics = []string{"GHI", "DNI"}

	retained, err := Filter(ds, opt)
	require.NoError(t, err)
	assert.Equal(t, 4, retained.Cleaned.Len())
	assert.Empty(t, retained.Dropped)

	opt.Missing = Drop
	dropped, err := Filter(ds, opt)
	require.NoError(t, err)
	assert.Equal(t, 2, dropped.Cleaned.Len())
	assert.Equal(t, []int{1, 2}, dropped.Dropped)
	assert.Equal(t, 0, dropped.Cleaned.Readings[0].ID)
	assert.Equal(t, 3, dropped.Cleaned.Readings[1].ID)
	assert.Equal(t, 4, ds.Len())
}

func TestFilterInvalidColumn(t *testing.T) {
	ds := dataset(t, f(1), f(2))
	opt := ghiOnly()
	opt.Metrics = []string{"GHI", "WS"}
	_, err := Filter(ds, opt)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidColumn))
}

func TestFilterPerMetricPolicy(t *testing.T) {
	ds := dataset(t, spiky()...)
	opt := ghiOnly()
	opt.PerMetric = map[string]Policy{"ghi": PolicyMAD}
	res, err := Filter(ds, opt)
	require.NoError(t, err)
	assert.Equal(t, PolicyMAD, res.Metrics[0].Policy)
	assert.Contains(t, res.Flags.Flagged(model.GHI, Outlier), 20)
}

func TestFilterSinglePass(t *testing.T) {
	vals := spiky()
	vals = append(vals, f(400), f(250))
	ds := dataset(t, vals...)
	opt := ghiOnly()
	opt.SinglePass = true
	res, err := Filter(ds, opt)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Metrics[0].Passes)
}

func TestFilterDuplicateMetricNames(t *testing.T) {
	ds := dataset(t, spiky()...)
	opt := ghiOnly()
	opt.Metrics = []string{"GHI", "ghi", " Ghi "}
	res, err := Filter(ds, opt)
	require.NoError(t, err)
	require.Len(t, res.Metrics, 1)
	assert.Equal(t, model.GHI, res.Metrics[0].Metric)
	assert.Equal(t, 1, res.Metrics[0].Outliers)
	assert.Equal(t, []string{model.GHI}, res.Flags.Metrics())
}

func TestParsePolicies(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyZScore, p)
	p, err = ParsePolicy("MAD")
	require.NoError(t, err)
	assert.Equal(t, PolicyMAD, p)
	_, err = ParsePolicy("iqr")
	assert.Error(t, err)

	m, err := ParseMissingPolicy("Drop")
	require.NoError(t, err)
	assert.Equal(t, Drop, m)
	_, err = ParseMissingPolicy("impute")
	assert.Error(t, err)
}

func TestMissingReport(t *testing.T) {
	ds := dataset(t, f(1), nil, nil, f(4))
	rep := MissingReport(ds)
	require.Len(t, rep, 1)
	assert.Equal(t, ColumnMissing{Column: "GHI", Missing: 2, Percent: 50}, rep[0])
}
