package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/sunlens-cli/internal/model"
	"github.com/KaramelBytes/sunlens-cli/internal/quality"
)

// EnvPrefix prefixes every environment override, e.g. SUNLENS_THRESHOLD.
const EnvPrefix = "SUNLENS"

// Global configuration structure.
type Global struct {
	DataDir   string   `mapstructure:"data_dir" yaml:"data_dir"`
	Countries []string `mapstructure:"countries" yaml:"countries"`
	Metrics   []string `mapstructure:"metrics" yaml:"metrics"`

	// Quality filter
	Threshold      float64           `mapstructure:"threshold" yaml:"threshold"`
	OutlierPolicy  string            `mapstructure:"outlier_policy" yaml:"outlier_policy"`
	MetricPolicies map[string]string `mapstructure:"metric_policies" yaml:"metric_policies,omitempty"`
	MissingPolicy  string            `mapstructure:"missing_policy" yaml:"missing_policy"`
	MissingTokens  []string          `mapstructure:"missing_tokens" yaml:"missing_tokens"`
	MaxRows        int               `mapstructure:"max_rows" yaml:"max_rows"`

	// Comparison
	Alpha        float64 `mapstructure:"alpha" yaml:"alpha"`
	TargetMetric string  `mapstructure:"target_metric" yaml:"target_metric"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	// Run archive (SQLite)
	ArchivePath string `mapstructure:"archive_path" yaml:"archive_path"`
}

// Dir returns ~/.sunlens.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".sunlens"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.sunlens/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "data")
	v.SetDefault("countries", countryNames(model.Countries))
	v.SetDefault("metrics", model.DefaultMetrics)
	v.SetDefault("threshold", quality.DefaultThreshold)
	v.SetDefault("outlier_policy", string(quality.PolicyZScore))
	v.SetDefault("metric_policies", map[string]string{})
	v.SetDefault("missing_policy", string(quality.Retain))
	v.SetDefault("missing_tokens", []string{"NA", "N/A", "NaN", "null", "-"})
	v.SetDefault("max_rows", 0)
	v.SetDefault("alpha", 0.05)
	v.SetDefault("target_metric", model.GHI)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("archive_path", "")
}

// Load loads configuration from defaults, the config file, a .env file in the working
// directory and the environment. Precedence: env > .env > config file > defaults; CLI flags
// are applied by the caller.
func Load(cfgFile string) (*Global, error) {
	// .env never overrides variables already set in the environment.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// Comma lists from the environment arrive as a single element.
	c.Countries = splitList(c.Countries)
	c.Metrics = splitList(c.Metrics)
	c.MissingTokens = splitList(c.MissingTokens)
	if c.ArchivePath == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		c.ArchivePath = filepath.Join(dir, "runs.db")
	}
	return &c, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Global) Validate() error {
	if c.Threshold <= 0 {
		return fmt.Errorf("invalid threshold %v: must be > 0", c.Threshold)
	}
	if c.Alpha <= 0 || c.Alpha >= 1 {
		return fmt.Errorf("invalid alpha %v: must be in (0, 1)", c.Alpha)
	}
	if c.MaxRows < 0 {
		return fmt.Errorf("invalid max_rows %d: must be >= 0", c.MaxRows)
	}
	if _, err := quality.ParsePolicy(c.OutlierPolicy); err != nil {
		return err
	}
	for m, p := range c.MetricPolicies {
		if _, err := quality.ParsePolicy(p); err != nil {
			return fmt.Errorf("metric_policies.%s: %w", m, err)
		}
	}
	if _, err := quality.ParseMissingPolicy(c.MissingPolicy); err != nil {
		return err
	}
	if _, err := c.ParsedCountries(); err != nil {
		return err
	}
	if len(c.Metrics) == 0 {
		return fmt.Errorf("metrics: at least one metric is required")
	}
	return nil
}

// ParsedCountries resolves the configured country names; empty means all countries.
func (c *Global) ParsedCountries() ([]model.Country, error) {
	if len(c.Countries) == 0 {
		return append([]model.Country(nil), model.Countries...), nil
	}
	seen := map[model.Country]bool{}
	var out []model.Country
	for _, s := range c.Countries {
		country, err := model.ParseCountry(s)
		if err != nil {
			return nil, err
		}
		if !seen[country] {
			seen[country] = true
			out = append(out, country)
		}
	}
	return out, nil
}

// Set assigns one key from its string form, as used by `config set`.
func (c *Global) Set(key, val string) error {
	switch key {
	case "data_dir":
		c.DataDir = val
	case "countries":
		next := &Global{Countries: splitList([]string{val})}
		if _, err := next.ParsedCountries(); err != nil {
			return err
		}
		c.Countries = next.Countries
	case "metrics":
		c.Metrics = splitList([]string{val})
	case "threshold":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("invalid float for threshold: %v", val)
		}
		c.Threshold = f
	case "outlier_policy":
		p, err := quality.ParsePolicy(val)
		if err != nil {
			return err
		}
		c.OutlierPolicy = string(p)
	case "missing_policy":
		p, err := quality.ParseMissingPolicy(val)
		if err != nil {
			return err
		}
		c.MissingPolicy = string(p)
	case "missing_tokens":
		c.MissingTokens = splitList([]string{val})
	case "max_rows":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for max_rows: %v", val)
		}
		c.MaxRows = i
	case "alpha":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f <= 0 || f >= 1 {
			return fmt.Errorf("invalid float for alpha: %v", val)
		}
		c.Alpha = f
	case "target_metric":
		c.TargetMetric = model.CanonicalMetric(val)
	case "log_level":
		c.LogLevel = strings.ToLower(val)
	case "log_format":
		switch strings.ToLower(val) {
		case "console", "json":
			c.LogFormat = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_format: %s (use console or json)", val)
		}
	case "archive_path":
		c.ArchivePath = val
	default:
		if m, ok := strings.CutPrefix(key, "metric_policies."); ok && m != "" {
			p, err := quality.ParsePolicy(val)
			if err != nil {
				return err
			}
			if c.MetricPolicies == nil {
				c.MetricPolicies = map[string]string{}
			}
			c.MetricPolicies[model.CanonicalMetric(m)] = string(p)
			return nil
		}
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func countryNames(cs []model.Country) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.String()
	}
	return out
}
