// Package chart draws distribution and ranking charts of a run with gonum/plot.
package chart

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/KaramelBytes/sunlens-cli/internal/compare"
)

// Size of every saved chart.
const (
	Width  = 8 * vg.Inch
	Height = 5 * vg.Inch
)

var palette = []color.RGBA{
	{R: 31, G: 119, B: 180, A: 255},
	{R: 255, G: 127, B: 14, A: 255},
	{R: 44, G: 160, B: 44, A: 255},
	{R: 214, G: 39, B: 40, A: 255},
}

func colorAt(i int) color.RGBA { return palette[i%len(palette)] }

// Boxplot draws one box per country of the valid values of metric.
func Boxplot(groups []compare.Group, metric string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s distribution by country", metric)
	p.Y.Label.Text = metric
	names := make([]string, 0, len(groups))
	for i, g := range groups {
		if len(g.Values) == 0 {
			continue
		}
		box, err := plotter.NewBoxPlot(vg.Points(40), float64(len(names)), plotter.Values(g.Values))
		if err != nil {
			return nil, fmt.Errorf("boxplot %s: %w", g.Country, err)
		}
		box.FillColor = colorAt(i)
		p.Add(box)
		names = append(names, g.Country.DisplayName())
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("boxplot %s: no values to draw", metric)
	}
	p.NominalX(names...)
	p.Add(plotter.NewGrid())
	return p, nil
}

// Histogram overlays normalized per-country histograms of metric.
func Histogram(groups []compare.Group, metric string, bins int) (*plot.Plot, error) {
	if bins <= 0 {
		bins = 30
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s histogram", metric)
	p.X.Label.Text = metric
	p.Y.Label.Text = "density"
	drawn := 0
	for i, g := range groups {
		if len(g.Values) < 2 {
			continue
		}
		h, err := plotter.NewHist(plotter.Values(g.Values), bins)
		if err != nil {
			return nil, fmt.Errorf("histogram %s: %w", g.Country, err)
		}
		h.Normalize(1)
		c := colorAt(i)
		c.A = 110
		h.FillColor = c
		h.LineStyle.Width = 0
		p.Add(h)
		p.Legend.Add(g.Country.DisplayName(), h)
		drawn++
	}
	if drawn == 0 {
		return nil, fmt.Errorf("histogram %s: no values to draw", metric)
	}
	p.Legend.Top = true
	return p, nil
}

// Ranking draws the mean of each ranked country as a bar, best first.
func Ranking(res *compare.Result) (*plot.Plot, error) {
	if res == nil || len(res.Rows) == 0 {
		return nil, fmt.Errorf("ranking: nothing to draw")
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Average %s ranking", res.Metric)
	p.Y.Label.Text = "mean " + res.Metric
	values := make(plotter.Values, len(res.Rows))
	names := make([]string, len(res.Rows))
	for i, r := range res.Rows {
		values[i] = r.Mean
		names[i] = fmt.Sprintf("#%d %s", r.Rank, r.Country.DisplayName())
	}
	bars, err := plotter.NewBarChart(values, vg.Points(40))
	if err != nil {
		return nil, fmt.Errorf("ranking: %w", err)
	}
	bars.Color = colorAt(0)
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(names...)
	p.Add(plotter.NewGrid())
	return p, nil
}

// Save writes p to path; the extension (png, svg, pdf) selects the format.
func Save(p *plot.Plot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir chart dir: %w", err)
	}
	if err := p.Save(Width, Height, path); err != nil {
		return fmt.Errorf("save chart: %w", err)
	}
	return nil
}

// Write renders p in format ("png", "svg", ...) to w.
func Write(p *plot.Plot, format string, w io.Writer) error {
	wt, err := p.WriterTo(Width, Height, format)
	if err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	return nil
}

// SaveAll writes the boxplot, histogram and ranking charts of metric into dir and returns
// the written paths.
func SaveAll(dir string, groups []compare.Group, res *compare.Result) ([]string, error) {
	metric := res.Metric
	var out []string
	box, err := Boxplot(groups, metric)
	if err != nil {
		return out, err
	}
	hist, err := Histogram(groups, metric, 0)
	if err != nil {
		return out, err
	}
	rank, err := Ranking(res)
	if err != nil {
		return out, err
	}
	charts := []struct {
		name string
		plot *plot.Plot
	}{{"boxplot", box}, {"histogram", hist}, {"ranking", rank}}
	for _, c := range charts {
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.png", metric, c.name))
		if err := Save(c.plot, path); err != nil {
			return out, err
		}
		out = append(out, path)
	}
	return out, nil
}
