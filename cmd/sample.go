package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/sunlens-cli/internal/export"
	"github.com/KaramelBytes/sunlens-cli/internal/sample"
)

var (
	sampleRows  int
	sampleSeed  uint64
	sampleForce bool
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Write synthetic country CSV files into the data directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		g, pc, _, err := runConfig(cmd)
		if err != nil {
			return err
		}
		dss, err := sample.All(pc.Countries, sampleRows, sampleSeed)
		if err != nil {
			return err
		}
		for _, ds := range dss {
			path := filepath.Join(g.DataDir, ds.Country.FileStems()[0]+".csv")
			if _, err := os.Stat(path); err == nil && !sampleForce {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := export.WriteCSVFile(path, ds); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d %s readings to %s\n", ds.Len(), ds.Country.DisplayName(), path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sampleCmd)
	sampleCmd.Flags().IntVar(&sampleRows, "rows", 1000, "readings per country")
	sampleCmd.Flags().Uint64Var(&sampleSeed, "seed", 42, "random seed")
	sampleCmd.Flags().BoolVar(&sampleForce, "force", false, "overwrite existing files")
}
