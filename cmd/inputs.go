package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/sunlens-cli/internal/loader"
	"github.com/KaramelBytes/sunlens-cli/internal/model"
	"github.com/KaramelBytes/sunlens-cli/internal/pipeline"
	"github.com/KaramelBytes/sunlens-cli/internal/utils"
)

// countryFromPath infers the country from a file name such as data/sierra_leone_clean.csv.gz.
func countryFromPath(path string) (model.Country, error) {
	base := strings.ToLower(filepath.Base(path))
	for _, ext := range []string{".gz", ".zst", ".zstd", ".csv", ".tsv", ".xlsx"} {
		base = strings.TrimSuffix(base, ext)
	}
	base = strings.TrimSuffix(base, "_clean")
	c, err := model.ParseCountry(base)
	if err != nil {
		return "", fmt.Errorf("cannot infer country from %s: use --country", path)
	}
	return c, nil
}

// loadDatasets loads the files named in args, or discovers one file per configured country in
// the data directory when args is empty. Load warnings are returned for the report.
func loadDatasets(p *pipeline.Pipeline, log zerolog.Logger, args []string, country string) ([]*model.Dataset, []string, error) {
	var results []*loader.Result
	var warnings []string
	if len(args) == 0 {
		rs, ws, err := p.LoadCountries()
		warnings = ws
		if err != nil {
			return nil, warnings, err
		}
		results = rs
	} else {
		if country != "" && len(args) > 1 {
			return nil, nil, fmt.Errorf("--country applies to a single file")
		}
		for _, path := range args {
			var (
				c   model.Country
				err error
			)
			if country != "" {
				c, err = model.ParseCountry(country)
			} else {
				c, err = countryFromPath(path)
			}
			if err != nil {
				return nil, nil, err
			}
			res, err := loader.Load(path, c, p.Config().Load)
			if err != nil {
				return nil, warnings, fmt.Errorf("load %s: %w", path, err)
			}
			log.Info().Str("country", c.String()).Str("file", path).Int("rows", res.Rows).Msg("loaded")
			for _, w := range res.Warnings {
				warnings = append(warnings, fmt.Sprintf("%s: %s", c, w))
			}
			results = append(results, res)
		}
	}
	dss := make([]*model.Dataset, len(results))
	for i, r := range results {
		dss[i] = r.Dataset
	}
	return dss, warnings, nil
}

func printWarnings(w io.Writer, warnings []string) {
	for _, msg := range warnings {
		fmt.Fprintf(w, "⚠ Warning: %s\n", msg)
	}
}

// writeOutput writes content to path, or to the command's stdout when path is empty.
func writeOutput(cmd *cobra.Command, path string, content []byte, what string) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(content)
		return err
	}
	if err := utils.SafeWriteFile(path, content); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s to %s\n", what, path)
	return nil
}
