package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/sunlens-cli/internal/archive"
	"github.com/KaramelBytes/sunlens-cli/internal/compare"
	"github.com/KaramelBytes/sunlens-cli/internal/model"
)

// resetFlags clears values and Changed state that persist across invocations.
func resetFlags(c *cobra.Command) {
	reset := func(fl *pflag.Flag) {
		if sv, ok := fl.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = fl.Value.Set(fl.DefValue)
		}
		fl.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCmd executes the root command with args and returns stdout, stderr and the error.
func runCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	cfg = nil
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, errOut, err := runCmd(t, args...)
	if err != nil {
		t.Fatalf("command %v failed: %v\nstderr:\n%s", args, err, errOut)
	}
	return out
}

// isolate points HOME and the working directory at a fresh temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(home)
	return home
}

func TestCLI_SampleProfileCleanCompareHistory(t *testing.T) {
	home := isolate(t)

	out := mustRun(t, "sample", "--rows", "200", "--seed", "7")
	assert.Contains(t, out, "✓ Wrote 200 Sierra Leone readings")
	for _, name := range []string{"benin.csv", "sierra_leone.csv", "togo.csv"} {
		assert.FileExists(t, filepath.Join(home, "data", name))
	}
	_, _, err := runCmd(t, "sample")
	assert.Error(t, err, "existing files need --force")

	out = mustRun(t, "profile", "--log-level", "disabled")
	assert.Contains(t, out, "## Sierra Leone")
	assert.Contains(t, out, "[STATISTICS]")

	out = mustRun(t, "profile", "--json", "-o", "profile.json", filepath.Join("data", "togo.csv"))
	assert.Contains(t, out, "✓ Wrote profile to profile.json")
	assert.FileExists(t, filepath.Join(home, "profile.json"))

	out = mustRun(t, "clean", "--compress", "gzip")
	assert.Contains(t, out, "✓ Cleaned Benin: 200 readings")
	assert.FileExists(t, filepath.Join(home, "data", "benin_clean.csv.gz"))

	out = mustRun(t, "compare", "--xlsx", "report.xlsx", "--charts-dir", "charts", "-o", "report.md")
	assert.Contains(t, out, "✓ Wrote report to report.md")
	assert.Contains(t, out, "✓ Wrote workbook to report.xlsx")
	assert.FileExists(t, filepath.Join(home, "charts", "GHI_boxplot.png"))
	md, err := os.ReadFile(filepath.Join(home, "report.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "[RANKING]")
	assert.Contains(t, string(md), "Source: benin_clean.csv.gz")

	out = mustRun(t, "history")
	assert.Contains(t, out, "GHI [Benin,SierraLeone,Togo]")

	store, err := archive.Open(filepath.Join(home, ".sunlens", "runs.db"))
	require.NoError(t, err)
	runs, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.Len(t, runs, 1)

	out = mustRun(t, "history", "show", runs[0].ID.String()[:8])
	assert.Contains(t, out, "Run: "+runs[0].ID.String())
	assert.Contains(t, out, "| 1 |")
}

func TestCLI_CompareSingleCountryFails(t *testing.T) {
	isolate(t)
	out, _, err := runCmd(t, "compare", "--sample", "--rows", "50", "--countries", "togo")
	require.Error(t, err)
	assert.ErrorIs(t, err, compare.ErrInsufficientData)
	assert.Contains(t, out, "[DATASET SUMMARY]")

	out = mustRun(t, "history")
	assert.Contains(t, out, "failed")
}

func TestCLI_CompareSampleJSONNoArchive(t *testing.T) {
	home := isolate(t)
	out := mustRun(t, "compare", "--sample", "--rows", "300", "--metric", "tamb", "--json", "--no-archive", "--policy", "mad")
	assert.Contains(t, out, `"metric": "Tamb"`)
	assert.NoFileExists(t, filepath.Join(home, ".sunlens", "runs.db"))
}

func TestCLI_CompareMetricOutsideFilteredList(t *testing.T) {
	isolate(t)
	out := mustRun(t, "compare", "--sample", "--rows", "200", "--metric", "WS", "--metrics", "GHI", "--json", "--no-archive")
	assert.Contains(t, out, `"metric": "WS"`)
}

func TestCLI_NoDataFiles(t *testing.T) {
	isolate(t)
	_, errOut, err := runCmd(t, "profile")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no country data found")
	assert.Contains(t, errOut, "⚠ Warning: no data file for Benin")
}

func TestCLI_ConfigSetShow(t *testing.T) {
	home := isolate(t)
	mustRun(t, "config", "set", "threshold", "2.5")
	mustRun(t, "config", "set", "metric_policies.temperature", "mad")
	assert.FileExists(t, filepath.Join(home, ".sunlens", "config.yaml"))

	out := mustRun(t, "config", "show")
	assert.Contains(t, out, "threshold: 2.5")
	assert.Contains(t, out, "metric_policies.tamb: mad")

	out = mustRun(t, "config", "show", "--threshold", "4")
	assert.Contains(t, out, "threshold: 4")

	_, _, err := runCmd(t, "config", "set", "alpha", "2")
	assert.Error(t, err)
	_, _, err = runCmd(t, "config", "set", "nope", "1")
	assert.Error(t, err)
}

func TestCountryFromPath(t *testing.T) {
	cases := map[string]model.Country{
		"data/benin.csv":             model.Benin,
		"sierra_leone_clean.csv.gz":  model.SierraLeone,
		"/tmp/SierraLeone.xlsx":      model.SierraLeone,
		"togo-dapaong_qc.csv":        "",
		"processed/togo_clean.tsv":   model.Togo,
		"sierra-leone_clean.csv.zst": model.SierraLeone,
	}
	for path, want := range cases {
		t.Run(path, func(t *testing.T) {
			got, err := countryFromPath(path)
			if want == "" {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}
