package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/sunlens-cli/internal/pipeline"
	"github.com/KaramelBytes/sunlens-cli/internal/report"
)

var (
	profOutputPath string
	profJSON       bool
	profCountry    string
)

var profileCmd = &cobra.Command{
	Use:   "profile [file...]",
	Short: "Report data quality and summary statistics per country",
	Long: `Profile filters missing and outlying values and summarizes each metric per country.
Without arguments one file per configured country is discovered in the data directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, pc, log, err := runConfig(cmd)
		if err != nil {
			return err
		}
		p := pipeline.New(pc, log)
		dss, warnings, err := loadDatasets(p, log, args, profCountry)
		printWarnings(cmd.ErrOrStderr(), warnings)
		if err != nil {
			return err
		}
		run, err := p.ProfileRun(dss)
		if err != nil {
			return err
		}
		run.Warnings = warnings

		if profJSON {
			b, err := report.JSON(run)
			if err != nil {
				return err
			}
			return writeOutput(cmd, profOutputPath, append(b, '\n'), "profile")
		}
		var md strings.Builder
		for _, cr := range run.Countries {
			md.WriteString("## " + cr.Country.DisplayName() + "\n\n")
			md.WriteString(report.Country(cr))
			md.WriteString("\n")
		}
		return writeOutput(cmd, profOutputPath, []byte(md.String()), "profile")
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.Flags().StringVarP(&profOutputPath, "output", "o", "", "optional path to write the report")
	profileCmd.Flags().BoolVar(&profJSON, "json", false, "write JSON instead of Markdown")
	profileCmd.Flags().StringVar(&profCountry, "country", "", "country of a single file argument (inferred from the file name if omitted)")
}
