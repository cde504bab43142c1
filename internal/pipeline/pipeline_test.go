package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/sunlens-cli/internal/compare"
	"github.com/KaramelBytes/sunlens-cli/internal/config"
	"github.com/KaramelBytes/sunlens-cli/internal/model"
	"github.com/KaramelBytes/sunlens-cli/internal/quality"
	"github.com/KaramelBytes/sunlens-cli/internal/sample"
)

// writeCountry writes a CSV whose GHI values are centred on mean.
func writeCountry(t *testing.T, dir, name string, mean float64) {
	t.Helper()
	var b strings.Builder
	b.WriteString("Timestamp,GHI,DNI,DHI,Tamb\n")
	for i, d := range []float64{-10, -5, 0, 5, 10, -10, -5, 0, 5, 10} {
		fmt.Fprintf(&b, "2021-08-09 10:%02d,%g,%g,%g,%g\n", i, mean+d, 2*mean+d, mean/2+d, 25+d/10)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(b.String()), 0o644))
}

func TestFromGlobal(t *testing.T) {
	g := &config.Global{
		DataDir:        "in",
		Countries:      []string{"togo", "sierra leone"},
		Metrics:        []string{"GHI", "temperature"},
		Threshold:      2.5,
		OutlierPolicy:  "mad",
		MetricPolicies: map[string]string{"tamb": "zscore"},
		MissingPolicy:  "drop",
		MissingTokens:  []string{"n/a"},
		MaxRows:        10,
		Alpha:          0.01,
		TargetMetric:   "dni",
	}
	cfg, err := FromGlobal(g)
	require.NoError(t, err)
	assert.Equal(t, "in", cfg.DataDir)
	assert.Equal(t, []model.Country{model.Togo, model.SierraLeone}, cfg.Countries)
	assert.Equal(t, quality.PolicyMAD, cfg.Filter.Policy)
	assert.Equal(t, quality.PolicyZScore, cfg.Filter.PerMetric["tamb"])
	assert.Equal(t, quality.Drop, cfg.Filter.Missing)
	assert.Equal(t, 2.5, cfg.Filter.Threshold)
	assert.Equal(t, 10, cfg.Load.MaxRows)
	assert.Equal(t, []string{"n/a"}, cfg.Load.MissingTokens)
	assert.Equal(t, "DNI", cfg.Target)
	assert.Equal(t, []string{"GHI", "temperature", "DNI"}, cfg.Filter.Metrics)
	assert.Equal(t, []string{"GHI", "temperature"}, g.Metrics)
	assert.Equal(t, 0.01, cfg.Alpha)

	g.TargetMetric = "tamb"
	cfg, err = FromGlobal(g)
	require.NoError(t, err)
	assert.Equal(t, []string{"GHI", "temperature"}, cfg.Filter.Metrics)

	g.Threshold = 0
	_, err = FromGlobal(g)
	assert.Error(t, err)
}

func TestLoadAndExecute(t *testing.T) {
	dir := t.TempDir()
	writeCountry(t, dir, "benin.csv", 200)
	writeCountry(t, dir, "sierra_leone.csv", 250)
	writeCountry(t, dir, "togo_clean.csv", 180)

	cfg := DefaultConfig()
	cfg.DataDir = dir
	p := New(cfg, zerolog.Nop())
	loaded, warnings, err := p.LoadCountries()
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, loaded, 3)

	dss := make([]*model.Dataset, len(loaded))
	for i, r := range loaded {
		dss[i] = r.Dataset
	}
	run, err := p.Execute(dss)
	require.NoError(t, err)
	assert.NotEqual(t, [16]byte{}, [16]byte(run.ID))
	require.Len(t, run.Countries, 3)
	require.NotNil(t, run.Comparison)

	var ranked []model.Country
	for _, r := range run.Comparison.Rows {
		ranked = append(ranked, r.Country)
	}
	assert.Equal(t, []model.Country{model.SierraLeone, model.Benin, model.Togo}, ranked)
	assert.True(t, run.Comparison.Significant)

	benin, ok := run.Country(model.Benin)
	require.True(t, ok)
	ghi, ok := benin.Summary.Metric("GHI")
	require.True(t, ok)
	assert.InDelta(t, 200, ghi.Mean.Value, 1e-9)
	assert.Len(t, benin.Correlations, 6)
}

func TestLoadCountriesMissingFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.DataDir = dir
	_, _, err := New(cfg, zerolog.Nop()).LoadCountries()
	assert.True(t, errors.Is(err, ErrNoData))

	writeCountry(t, dir, "togo.csv", 180)
	loaded, warnings, err := New(cfg, zerolog.Nop()).LoadCountries()
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
	assert.Len(t, warnings, 2)
}

func TestExecuteCountryFilterAndFailure(t *testing.T) {
	dss, err := sample.All(model.Countries, 50, 5)
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.Countries = []model.Country{model.Benin}
	run, err := New(cfg, zerolog.Nop()).Execute(dss)
	require.Error(t, err)
	assert.True(t, errors.Is(err, compare.ErrInsufficientData))
	require.NotNil(t, run)
	assert.Len(t, run.Countries, 1)
	assert.Nil(t, run.Comparison)
}

func TestExecuteUnknownTarget(t *testing.T) {
	dss, err := sample.All(model.Countries, 20, 5)
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.Target = "WD"
	_, err = New(cfg, zerolog.Nop()).Execute(dss)
	assert.ErrorIs(t, err, model.ErrInvalidColumn)
}

func TestExecuteTargetOutsideFilteredMetrics(t *testing.T) {
	dss, err := sample.All(model.Countries, 120, 9)
	require.NoError(t, err)
	for _, target := range []string{"WS", "rh"} {
		t.Run(target, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Target = target
			p := New(cfg, zerolog.Nop())
			assert.Len(t, p.Config().Filter.Metrics, len(model.DefaultMetrics)+1)
			assert.Len(t, cfg.Filter.Metrics, len(model.DefaultMetrics))

			run, err := p.Execute(dss)
			require.NoError(t, err)
			require.NotNil(t, run.Comparison)
			assert.True(t, strings.EqualFold(target, run.Comparison.Metric))
			assert.Len(t, run.Comparison.Rows, 3)
			_, ok := run.Countries[0].Summary.Metric(target)
			assert.True(t, ok)
		})
	}
}

func TestProfileRunSkipsComparison(t *testing.T) {
	dss, err := sample.All([]model.Country{model.Togo}, 30, 3)
	require.NoError(t, err)
	run, err := New(DefaultConfig(), zerolog.Nop()).ProfileRun(dss)
	require.NoError(t, err)
	assert.Nil(t, run.Comparison)
	require.Len(t, run.Countries, 1)
	assert.Equal(t, 30, run.Countries[0].Summary.Records)
}
