package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/sunlens-cli/internal/archive"
	"github.com/KaramelBytes/sunlens-cli/internal/model"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived comparison runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openArchive()
		if err != nil {
			return err
		}
		defer store.Close()
		runs, err := store.List(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(out, "(no runs)")
			return nil
		}
		for _, r := range runs {
			status := "not significant"
			switch {
			case r.Error != "":
				status = "failed"
			case r.Significant:
				status = "significant"
			}
			fmt.Fprintf(out, "- %s %s %s [%s] F=%s p=%s (%s)\n",
				r.ID.String()[:8], r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Metric,
				joinCountries(r.Countries), r.F.Format("%.3f"), r.PValue.Format("%.4g"), status)
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show an archived run; a unique ID prefix is enough",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openArchive()
		if err != nil {
			return err
		}
		defer store.Close()
		d, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Run: %s\n", d.ID)
		fmt.Fprintf(out, "Started: %s\n", d.StartedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Fprintf(out, "Countries: %s\n", joinCountries(d.Countries))
		fmt.Fprintf(out, "Filter: %s |z|>%.1f, missing %s\n", d.Policy, d.Threshold, d.Missing)
		fmt.Fprintf(out, "Metric: %s\n", d.Metric)
		if d.Error != "" {
			fmt.Fprintf(out, "Comparison failed: %s\n", d.Error)
		} else {
			fmt.Fprintf(out, "ANOVA: F = %s, p = %s, significant at alpha=%.2g: %t\n",
				d.F.Format("%.3f"), d.PValue.Format("%.4g"), d.Alpha, d.Significant)
		}
		if len(d.Rankings) > 0 {
			fmt.Fprintln(out, "\n| Rank | Country | Mean | Std | Count |")
			fmt.Fprintln(out, "| --- | --- | --- | --- | --- |")
			for _, r := range d.Rankings {
				fmt.Fprintf(out, "| %d | %s | %.2f | %s | %d |\n", r.Rank, r.Country.DisplayName(), r.Mean, r.Std.Format("%.2f"), r.Count)
			}
		}
		if len(d.Summaries) > 0 {
			fmt.Fprintln(out, "\n| Country | Metric | Valid | Missing | Outliers | Mean | Median | Std | Min | Max |")
			fmt.Fprintln(out, "| --- | --- | --- | --- | --- | --- | --- | --- | --- | --- |")
			for _, m := range d.Summaries {
				fmt.Fprintf(out, "| %s | %s | %d | %d | %d | %s | %s | %s | %s | %s |\n",
					m.Country.DisplayName(), m.Metric, m.Valid, m.Missing, m.Outliers,
					m.Mean.Format("%.2f"), m.Median.Format("%.2f"), m.Std.Format("%.2f"), m.Min.Format("%.2f"), m.Max.Format("%.2f"))
			}
		}
		return nil
	},
}

func openArchive() (*archive.Store, error) {
	g, err := effectiveConfig()
	if err != nil {
		return nil, err
	}
	return archive.Open(g.ArchivePath)
}

func joinCountries(cs []model.Country) string {
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.String()
	}
	return strings.Join(names, ",")
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum runs to list (0 = all)")
}
