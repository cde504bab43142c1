package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/sunlens-cli/internal/config"
	"github.com/KaramelBytes/sunlens-cli/internal/logging"
	"github.com/KaramelBytes/sunlens-cli/internal/pipeline"
)

var (
	// Global flags
	cfgFile   string
	debug     bool
	logLevel  string
	logFormat string
	// Run flags (override config if set)
	flagDataDir    string
	flagCountries  []string
	flagMetrics    []string
	flagThreshold  float64
	flagPolicy     string
	flagMissing    string
	flagAlpha      float64
	flagMaxRows    int
	flagSinglePass bool
	flagSheet      string

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "sunlens",
	Short: "SunLens CLI: solar data quality and cross-country comparison",
	Long: `SunLens cleans solar irradiance measurements (GHI, DNI, DHI, Tamb) for Benin, Sierra Leone
and Togo, summarizes each country and tests whether their solar potential differs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&cfgFile, "config", "", "config file (default is ~/.sunlens/config.yaml)")
	f.BoolVar(&debug, "debug", false, "enable debug output")
	f.StringVar(&logLevel, "log-level", "", "log level: trace|debug|info|warn|error|disabled (overrides config)")
	f.StringVar(&logFormat, "log-format", "", "log format: console|json (overrides config)")
	f.StringVarP(&flagDataDir, "data-dir", "d", "", "directory holding one data file per country (overrides config)")
	f.StringSliceVar(&flagCountries, "countries", nil, "countries to include, e.g. Benin,SierraLeone (overrides config)")
	f.StringSliceVar(&flagMetrics, "metrics", nil, "metrics to filter and summarize (overrides config)")
	f.Float64Var(&flagThreshold, "threshold", 0, "outlier |z| threshold (overrides config)")
	f.StringVar(&flagPolicy, "policy", "", "outlier policy: zscore|mad (overrides config)")
	f.StringVar(&flagMissing, "missing", "", "missing value policy: retain|drop (overrides config)")
	f.Float64Var(&flagAlpha, "alpha", 0, "significance level of the comparison (overrides config)")
	f.IntVar(&flagMaxRows, "max-rows", 0, "maximum rows to load per file (overrides config)")
	f.BoolVar(&flagSinglePass, "single-pass", false, "stop outlier detection after the first pass")
	f.StringVar(&flagSheet, "sheet", "", "XLSX: sheet name to read (default is the first sheet)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c
}

// currentConfig returns the loaded configuration, loading it on first use.
func currentConfig() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg = c
	return cfg, nil
}

// effectiveConfig returns a copy of the loaded configuration with CLI overrides applied.
func effectiveConfig() (*cfgpkg.Global, error) {
	c, err := currentConfig()
	if err != nil {
		return nil, err
	}
	g := *c
	f := rootCmd.PersistentFlags()
	if f.Changed("data-dir") {
		g.DataDir = flagDataDir
	}
	if f.Changed("countries") {
		g.Countries = flagCountries
	}
	if f.Changed("metrics") {
		g.Metrics = flagMetrics
	}
	if f.Changed("threshold") {
		g.Threshold = flagThreshold
	}
	if f.Changed("policy") {
		g.OutlierPolicy = flagPolicy
	}
	if f.Changed("missing") {
		g.MissingPolicy = flagMissing
	}
	if f.Changed("alpha") {
		g.Alpha = flagAlpha
	}
	if f.Changed("max-rows") {
		g.MaxRows = flagMaxRows
	}
	if f.Changed("log-level") {
		g.LogLevel = logLevel
	}
	if f.Changed("log-format") {
		g.LogFormat = logFormat
	}
	if debug {
		g.LogLevel = "debug"
	}
	return &g, nil
}

// runConfig resolves the pipeline configuration and a logger writing to the command's stderr.
func runConfig(cmd *cobra.Command) (*cfgpkg.Global, pipeline.Config, zerolog.Logger, error) {
	g, err := effectiveConfig()
	if err != nil {
		return nil, pipeline.Config{}, zerolog.Nop(), err
	}
	pc, err := pipeline.FromGlobal(g)
	if err != nil {
		return nil, pipeline.Config{}, zerolog.Nop(), err
	}
	pc.Filter.SinglePass = flagSinglePass
	pc.Load.Sheet = flagSheet
	log := logging.New(g.LogLevel, g.LogFormat, cmd.ErrOrStderr())
	return g, pc, log, nil
}
