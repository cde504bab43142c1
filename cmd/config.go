package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/sunlens-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set SunLens configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := effectiveConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "data_dir: %s\n", c.DataDir)
		fmt.Fprintf(out, "countries: %s\n", strings.Join(c.Countries, ","))
		fmt.Fprintf(out, "metrics: %s\n", strings.Join(c.Metrics, ","))
		fmt.Fprintf(out, "threshold: %g\n", c.Threshold)
		fmt.Fprintf(out, "outlier_policy: %s\n", c.OutlierPolicy)
		if len(c.MetricPolicies) > 0 {
			keys := make([]string, 0, len(c.MetricPolicies))
			for k := range c.MetricPolicies {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "metric_policies.%s: %s\n", k, c.MetricPolicies[k])
			}
		}
		fmt.Fprintf(out, "missing_policy: %s\n", c.MissingPolicy)
		fmt.Fprintf(out, "missing_tokens: %s\n", strings.Join(c.MissingTokens, ","))
		fmt.Fprintf(out, "max_rows: %d\n", c.MaxRows)
		fmt.Fprintf(out, "alpha: %g\n", c.Alpha)
		fmt.Fprintf(out, "target_metric: %s\n", c.TargetMetric)
		fmt.Fprintf(out, "log_level: %s\n", c.LogLevel)
		fmt.Fprintf(out, "log_format: %s\n", c.LogFormat)
		fmt.Fprintf(out, "archive_path: %s\n", c.ArchivePath)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		if err := c.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
