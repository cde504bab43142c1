package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/sunlens-cli/internal/model"
)

// isolate points HOME at a temp dir and runs the test from another empty dir so that no
// real config or .env leaks in.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "data", c.DataDir)
	assert.Equal(t, []string{"Benin", "SierraLeone", "Togo"}, c.Countries)
	assert.Equal(t, model.DefaultMetrics, c.Metrics)
	assert.Equal(t, 3.0, c.Threshold)
	assert.Equal(t, "zscore", c.OutlierPolicy)
	assert.Equal(t, "retain", c.MissingPolicy)
	assert.Equal(t, 0.05, c.Alpha)
	assert.Equal(t, "GHI", c.TargetMetric)
	assert.Equal(t, filepath.Join(home, ".sunlens", "runs.db"), c.ArchivePath)
	require.NoError(t, c.Validate())
}

func TestLoadPrecedence(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("threshold: 2.5\nmissing_policy: drop\nmetrics: [GHI, DNI]\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2.5, c.Threshold)
	assert.Equal(t, "drop", c.MissingPolicy)
	assert.Equal(t, []string{"GHI", "DNI"}, c.Metrics)

	t.Setenv("SUNLENS_THRESHOLD", "4")
	t.Setenv("SUNLENS_COUNTRIES", "benin, togo")
	c, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4.0, c.Threshold)
	assert.Equal(t, []string{"benin", "togo"}, c.Countries)
	cs, err := c.ParsedCountries()
	require.NoError(t, err)
	assert.Equal(t, []model.Country{model.Benin, model.Togo}, cs)
}

func TestLoadDotEnv(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile(".env", []byte("SUNLENS_ALPHA=0.01\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("SUNLENS_ALPHA") })
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.01, c.Alpha)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	isolate(t)
	c, err := Load("")
	require.NoError(t, err)
	require.NoError(t, c.Set("threshold", "2"))
	require.NoError(t, c.Set("metric_policies.temperature", "mad"))
	require.NoError(t, Save(c, ""))

	again, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2.0, again.Threshold)
	assert.Equal(t, map[string]string{"tamb": "mad"}, again.MetricPolicies)
}

func TestSetAndValidate(t *testing.T) {
	c := &Global{}
	tests := []struct {
		key, val string
		wantErr  bool
	}{
		{"threshold", "0", true},
		{"threshold", "3.5", false},
		{"alpha", "1", true},
		{"alpha", "0.1", false},
		{"outlier_policy", "MAD", false},
		{"outlier_policy", "iqr", true},
		{"missing_policy", "drop", false},
		{"countries", "Benin,Atlantis", true},
		{"countries", "benin, sierra leone", false},
		{"log_format", "xml", true},
		{"max_rows", "-1", true},
		{"nope", "x", true},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.val, func(t *testing.T) {
			err := c.Set(tt.key, tt.val)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
	c.Metrics = []string{"GHI"}
	require.NoError(t, c.Validate())
	assert.Equal(t, "mad", c.OutlierPolicy)

	c.Alpha = 0
	assert.Error(t, c.Validate())
}
