// Package pipeline wires loading, quality filtering, summarizing and comparison into one run.
// Every stage receives the run's Config explicitly; nothing is read from process-wide state.
package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/KaramelBytes/sunlens-cli/internal/compare"
	"github.com/KaramelBytes/sunlens-cli/internal/config"
	"github.com/KaramelBytes/sunlens-cli/internal/loader"
	"github.com/KaramelBytes/sunlens-cli/internal/model"
	"github.com/KaramelBytes/sunlens-cli/internal/quality"
	"github.com/KaramelBytes/sunlens-cli/internal/summary"
)

// ErrNoData indicates that no country file was found.
var ErrNoData = errors.New("no country data found")

// Config is the explicit configuration of one run.
type Config struct {
	DataDir   string
	Countries []model.Country
	Filter    quality.Options
	Load      loader.Options
	// Target is the metric compared across countries.
	Target string
	Alpha  float64
}

// DefaultConfig compares GHI across all countries with the default filter.
func DefaultConfig() Config {
	return Config{
		DataDir:   "data",
		Countries: append([]model.Country(nil), model.Countries...),
		Filter:    quality.DefaultOptions(),
		Load:      loader.DefaultOptions(),
		Target:    model.GHI,
		Alpha:     compare.DefaultAlpha,
	}
}

// FromGlobal builds a run Config from the loaded configuration.
func FromGlobal(g *config.Global) (Config, error) {
	if err := g.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	cfg := DefaultConfig()
	cfg.DataDir = g.DataDir
	countries, err := g.ParsedCountries()
	if err != nil {
		return Config{}, err
	}
	cfg.Countries = countries

	policy, _ := quality.ParsePolicy(g.OutlierPolicy)
	missing, _ := quality.ParseMissingPolicy(g.MissingPolicy)
	cfg.Filter = quality.Options{
		Metrics:   append([]string(nil), g.Metrics...),
		Threshold: g.Threshold,
		Policy:    policy,
		Missing:   missing,
	}
	if len(g.MetricPolicies) > 0 {
		cfg.Filter.PerMetric = map[string]quality.Policy{}
		for m, s := range g.MetricPolicies {
			p, _ := quality.ParsePolicy(s)
			cfg.Filter.PerMetric[m] = p
		}
	}
	cfg.Load.MaxRows = g.MaxRows
	if len(g.MissingTokens) > 0 {
		cfg.Load.MissingTokens = append([]string(nil), g.MissingTokens...)
	}
	if g.TargetMetric != "" {
		cfg.Target = model.CanonicalMetric(g.TargetMetric)
	}
	cfg.Alpha = g.Alpha
	cfg.includeTarget()
	return cfg, nil
}

// includeTarget adds the comparison metric to the filtered metrics when no
// configured name resolves to it.
func (c *Config) includeTarget() {
	if c.Target == "" {
		return
	}
	if len(c.Filter.Metrics) == 0 {
		c.Filter.Metrics = append([]string(nil), model.DefaultMetrics...)
	}
	want := model.CanonicalMetric(c.Target)
	for _, m := range c.Filter.Metrics {
		if strings.EqualFold(model.CanonicalMetric(m), want) {
			return
		}
	}
	c.Filter.Metrics = append(append([]string(nil), c.Filter.Metrics...), want)
}

// CountryRun is everything computed for one country.
type CountryRun struct {
	Country      model.Country
	Source       string
	Quality      *quality.Result
	Summary      *summary.CountrySummary
	Missing      []quality.ColumnMissing
	Correlations []summary.Correlation
}

// Run is the outcome of one pipeline execution.
type Run struct {
	ID         uuid.UUID
	StartedAt  time.Time
	Config     Config
	Countries  []*CountryRun
	Comparison *compare.Result
	Warnings   []string
}

// Country returns the run of one country.
func (r *Run) Country(c model.Country) (*CountryRun, bool) {
	for _, cr := range r.Countries {
		if cr.Country == c {
			return cr, true
		}
	}
	return nil, false
}

// Pipeline executes runs with a fixed Config.
type Pipeline struct {
	cfg Config
	log zerolog.Logger
}

// New returns a pipeline logging to log. The target metric is always among the filtered metrics.
func New(cfg Config, log zerolog.Logger) *Pipeline {
	cfg.includeTarget()
	return &Pipeline{cfg: cfg, log: log}
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// LoadCountries discovers and loads one file per configured country from the data
// directory. Countries without a file are skipped with a warning.
func (p *Pipeline) LoadCountries() ([]*loader.Result, []string, error) {
	found := loader.Discover(p.cfg.DataDir, p.cfg.Countries)
	var (
		out      []*loader.Result
		warnings []string
	)
	for _, c := range p.cfg.Countries {
		path, ok := found[c]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("no data file for %s in %s", c, p.cfg.DataDir))
			p.log.Warn().Str("country", c.String()).Str("dir", p.cfg.DataDir).Msg("no data file")
			continue
		}
		res, err := loader.Load(path, c, p.cfg.Load)
		if err != nil {
			return nil, warnings, fmt.Errorf("load %s: %w", c, err)
		}
		p.log.Info().
			Str("country", c.String()).
			Str("file", path).
			Int("rows", res.Rows).
			Int("loaded", res.Loaded).
			Msg("loaded")
		for _, w := range res.Warnings {
			warnings = append(warnings, fmt.Sprintf("%s: %s", c, w))
		}
		out = append(out, res)
	}
	if len(out) == 0 {
		return nil, warnings, fmt.Errorf("%w in %s", ErrNoData, p.cfg.DataDir)
	}
	return out, warnings, nil
}

// Profile filters and summarizes one dataset.
func (p *Pipeline) Profile(ds *model.Dataset) (*CountryRun, error) {
	res, err := quality.Filter(ds, p.cfg.Filter)
	if err != nil {
		return nil, err
	}
	for _, mq := range res.Metrics {
		p.log.Debug().
			Str("country", ds.Country.String()).
			Str("metric", mq.Metric).
			Str("policy", string(mq.Policy)).
			Int("missing", mq.Missing).
			Int("outliers", mq.Outliers).
			Int("undeterminable", mq.Undeterminable).
			Int("passes", mq.Passes).
			Msg("filtered")
	}
	if len(res.Dropped) > 0 {
		p.log.Info().Str("country", ds.Country.String()).Int("dropped", len(res.Dropped)).Msg("dropped readings with missing values")
	}
	sum, err := summary.Summarize(res)
	if err != nil {
		return nil, err
	}
	corr, err := summary.Correlations(res)
	if err != nil {
		return nil, err
	}
	return &CountryRun{
		Country:      ds.Country,
		Source:       ds.Source,
		Quality:      res,
		Summary:      sum,
		Missing:      quality.MissingReport(ds),
		Correlations: corr,
	}, nil
}

// Analyze profiles every dataset of a configured country, in the order given.
func (p *Pipeline) Analyze(datasets []*model.Dataset) ([]*CountryRun, error) {
	want := map[model.Country]bool{}
	for _, c := range p.cfg.Countries {
		want[c] = true
	}
	var out []*CountryRun
	for _, ds := range datasets {
		if len(want) > 0 && !want[ds.Country] {
			p.log.Debug().Str("country", ds.Country.String()).Msg("skipped by country filter")
			continue
		}
		cr, err := p.Profile(ds)
		if err != nil {
			return nil, err
		}
		out = append(out, cr)
	}
	return out, nil
}

// Compare runs the cross-country comparison of metric over profiled countries.
func (p *Pipeline) Compare(runs []*CountryRun, metric string) (*compare.Result, error) {
	results := make(map[model.Country]*quality.Result, len(runs))
	for _, cr := range runs {
		results[cr.Country] = cr.Quality
	}
	groups, err := compare.GroupsFrom(results, metric)
	if err != nil {
		return nil, err
	}
	res, err := compare.Compare(groups, metric, p.cfg.Alpha)
	if err != nil {
		return nil, err
	}
	for _, x := range res.Excluded {
		p.log.Warn().Str("country", x.Country.String()).Str("metric", res.Metric).Str("reason", x.Reason).Msg("excluded from comparison")
	}
	p.log.Info().
		Str("metric", res.Metric).
		Str("f", res.F.String()).
		Str("p", res.PValue.String()).
		Bool("significant", res.Significant).
		Msg("compared")
	return res, nil
}

// ProfileRun profiles the datasets without comparing them.
func (p *Pipeline) ProfileRun(datasets []*model.Dataset) (*Run, error) {
	run := &Run{ID: uuid.New(), StartedAt: time.Now().UTC(), Config: p.cfg}
	p.log.Debug().Str("run", run.ID.String()).Int("datasets", len(datasets)).Msg("run started")
	countries, err := p.Analyze(datasets)
	if err != nil {
		return nil, err
	}
	run.Countries = countries
	return run, nil
}

// Execute profiles the datasets and compares the target metric. When the comparison fails
// the returned run still carries the per-country results alongside the error.
func (p *Pipeline) Execute(datasets []*model.Dataset) (*Run, error) {
	run, err := p.ProfileRun(datasets)
	if err != nil {
		return nil, err
	}
	cmp, err := p.Compare(run.Countries, p.cfg.Target)
	if err != nil {
		return run, fmt.Errorf("compare %s: %w", p.cfg.Target, err)
	}
	run.Comparison = cmp
	return run, nil
}
