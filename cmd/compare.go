package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/sunlens-cli/internal/archive"
	"github.com/KaramelBytes/sunlens-cli/internal/chart"
	"github.com/KaramelBytes/sunlens-cli/internal/compare"
	"github.com/KaramelBytes/sunlens-cli/internal/export"
	"github.com/KaramelBytes/sunlens-cli/internal/model"
	"github.com/KaramelBytes/sunlens-cli/internal/pipeline"
	"github.com/KaramelBytes/sunlens-cli/internal/quality"
	"github.com/KaramelBytes/sunlens-cli/internal/report"
	"github.com/KaramelBytes/sunlens-cli/internal/sample"
	"github.com/KaramelBytes/sunlens-cli/internal/utils"
)

var (
	cmpMetric     string
	cmpOutputPath string
	cmpJSON       bool
	cmpXLSXPath   string
	cmpChartsDir  string
	cmpNoArchive  bool
	cmpSample     bool
	cmpSampleRows int
	cmpSampleSeed uint64
)

var compareCmd = &cobra.Command{
	Use:   "compare [file...]",
	Short: "Compare a metric across countries with a one-way ANOVA and rank them",
	Long: `Compare profiles every country, tests whether the mean of the target metric differs across
countries and ranks them by mean. Use --sample to compare synthetic data instead of files.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, pc, log, err := runConfig(cmd)
		if err != nil {
			return err
		}
		if cmpMetric != "" {
			pc.Target = model.CanonicalMetric(cmpMetric)
		}
		p := pipeline.New(pc, log)

		var (
			dss      []*model.Dataset
			warnings []string
		)
		if cmpSample {
			if len(args) > 0 {
				return fmt.Errorf("--sample does not take file arguments")
			}
			dss, err = sample.All(pc.Countries, cmpSampleRows, cmpSampleSeed)
		} else {
			dss, warnings, err = loadDatasets(p, log, args, "")
			printWarnings(cmd.ErrOrStderr(), warnings)
		}
		if err != nil {
			return err
		}

		run, runErr := p.Execute(dss)
		if run == nil {
			return runErr
		}
		run.Warnings = warnings

		if !cmpNoArchive {
			if err := archiveRun(cmd, g.ArchivePath, run, runErr); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: %v\n", err)
			}
		}

		var out []byte
		if cmpJSON {
			b, err := report.JSON(run)
			if err != nil {
				return err
			}
			out = append(b, '\n')
		} else {
			out = []byte(report.Run(run))
		}
		if err := writeOutput(cmd, cmpOutputPath, out, "report"); err != nil {
			return err
		}
		if runErr != nil {
			var ide *compare.InsufficientDataError
			if errors.As(runErr, &ide) {
				return fmt.Errorf("%w (select at least %d countries with data)", runErr, compare.MinCountries)
			}
			return runErr
		}

		if cmpXLSXPath != "" {
			b, err := export.Workbook(run)
			if err != nil {
				return err
			}
			if err := utils.SafeWriteFile(cmpXLSXPath, b); err != nil {
				return fmt.Errorf("write workbook: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote workbook to %s\n", cmpXLSXPath)
		}
		if cmpChartsDir != "" {
			results := make(map[model.Country]*quality.Result, len(run.Countries))
			for _, cr := range run.Countries {
				results[cr.Country] = cr.Quality
			}
			groups, err := compare.GroupsFrom(results, run.Comparison.Metric)
			if err != nil {
				return err
			}
			paths, err := chart.SaveAll(cmpChartsDir, groups, run.Comparison)
			if err != nil {
				return fmt.Errorf("write charts: %w", err)
			}
			for _, path := range paths {
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote chart %s\n", path)
			}
		}
		return nil
	},
}

func archiveRun(cmd *cobra.Command, path string, run *pipeline.Run, runErr error) error {
	store, err := archive.Open(path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer store.Close()
	if err := store.Save(cmd.Context(), run, runErr); err != nil {
		return fmt.Errorf("archive run: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "✓ Archived run %s\n", run.ID)
	return nil
}

func init() {
	rootCmd.AddCommand(compareCmd)
	compareCmd.Flags().StringVarP(&cmpMetric, "metric", "m", "", "metric to compare (default from config target_metric)")
	compareCmd.Flags().StringVarP(&cmpOutputPath, "output", "o", "", "optional path to write the report")
	compareCmd.Flags().BoolVar(&cmpJSON, "json", false, "write JSON instead of Markdown")
	compareCmd.Flags().StringVar(&cmpXLSXPath, "xlsx", "", "optional path to write an XLSX workbook")
	compareCmd.Flags().StringVar(&cmpChartsDir, "charts-dir", "", "optional directory for PNG charts")
	compareCmd.Flags().BoolVar(&cmpNoArchive, "no-archive", false, "do not record the run in the archive")
	compareCmd.Flags().BoolVar(&cmpSample, "sample", false, "compare synthetic sample data")
	compareCmd.Flags().IntVar(&cmpSampleRows, "rows", 1000, "rows per country with --sample")
	compareCmd.Flags().Uint64Var(&cmpSampleSeed, "seed", 42, "random seed with --sample")
}
