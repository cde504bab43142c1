package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/sunlens-cli/internal/export"
	"github.com/KaramelBytes/sunlens-cli/internal/pipeline"
	"github.com/KaramelBytes/sunlens-cli/internal/utils"
)

var (
	cleanOutDir   string
	cleanCountry  string
	cleanCompress string
)

var cleanCmd = &cobra.Command{
	Use:   "clean [file...]",
	Short: "Write cleaned country datasets with outliers masked",
	Long: `Clean filters each country dataset and writes <country>_clean.csv, where outlier values
are blank and, under the drop policy, readings with missing values are removed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, pc, log, err := runConfig(cmd)
		if err != nil {
			return err
		}
		var ext string
		switch cleanCompress {
		case "", "none":
		case "gzip", "gz":
			ext = ".gz"
		case "zstd", "zst":
			ext = ".zst"
		default:
			return fmt.Errorf("unsupported --compress: %s (use gzip or zstd)", cleanCompress)
		}
		outDir := cleanOutDir
		if outDir == "" {
			outDir = g.DataDir
		}

		p := pipeline.New(pc, log)
		dss, warnings, err := loadDatasets(p, log, args, cleanCountry)
		printWarnings(cmd.ErrOrStderr(), warnings)
		if err != nil {
			return err
		}
		run, err := p.ProfileRun(dss)
		if err != nil {
			return err
		}
		for _, cr := range run.Countries {
			path := filepath.Join(outDir, utils.CleanedName(cr.Country.FileStems()[0])+ext)
			if err := export.WriteCSVFile(path, cr.Quality.Cleaned); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			outliers := 0
			for _, m := range cr.Quality.Metrics {
				outliers += m.Outliers
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Cleaned %s: %d readings, %d outliers masked, %d dropped -> %s\n",
				cr.Country.DisplayName(), cr.Quality.Cleaned.Len(), outliers, len(cr.Quality.Dropped), path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().StringVar(&cleanOutDir, "out-dir", "", "directory for cleaned files (default is the data directory)")
	cleanCmd.Flags().StringVar(&cleanCountry, "country", "", "country of a single file argument (inferred from the file name if omitted)")
	cleanCmd.Flags().StringVar(&cleanCompress, "compress", "", "compress output: gzip|zstd")
}
