package model

import (
	"fmt"
	"strings"
	"time"
)

// Country identifies the country a dataset was recorded in.
type Country string

const (
	Benin       Country = "Benin"
	SierraLeone Country = "SierraLeone"
	Togo        Country = "Togo"
)

// Countries lists the supported countries in canonical (name) order.
var Countries = []Country{Benin, SierraLeone, Togo}

func (c Country) String() string { return string(c) }

// DisplayName returns the human readable name, e.g. "Sierra Leone".
func (c Country) DisplayName() string {
	if c == SierraLeone {
		return "Sierra Leone"
	}
	return string(c)
}

// FileStems returns lower-case file name stems that may hold data for c.
func (c Country) FileStems() []string {
	switch c {
	case SierraLeone:
		return []string{"sierra_leone", "sierraleone", "sierra-leone"}
	default:
		return []string{strings.ToLower(string(c))}
	}
}

// ParseCountry accepts canonical names as well as case, space, dash and underscore variants.
func ParseCountry(s string) (Country, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(key)
	for _, c := range Countries {
		if strings.ToLower(string(c)) == key {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown country %q (use Benin, SierraLeone or Togo)", s)
}

// Canonical metric names.
const (
	GHI  = "GHI"
	DNI  = "DNI"
	DHI  = "DHI"
	Tamb = "Tamb"
)

// DefaultMetrics are analyzed when no metric list is configured.
var DefaultMetrics = []string{GHI, DNI, DHI, Tamb}

var metricAliases = map[string]string{
	"ghi":         GHI,
	"dni":         DNI,
	"dhi":         DHI,
	"tamb":        Tamb,
	"temperature": Tamb,
	"temp":        Tamb,
}

// CanonicalMetric maps header spellings and aliases onto the canonical metric name.
// Unknown names are returned trimmed and otherwise unchanged.
func CanonicalMetric(name string) string {
	n := strings.TrimSpace(name)
	if c, ok := metricAliases[strings.ToLower(n)]; ok {
		return c
	}
	return n
}

// Value is one optional measurement. A zero Value is missing; a measured zero has Valid set.
type Value struct {
	X     float64
	Valid bool
}

// Some returns a present value.
func Some(x float64) Value { return Value{X: x, Valid: true} }

// Missing returns an absent value.
func Missing() Value { return Value{} }

func (v Value) String() string {
	if !v.Valid {
		return "NA"
	}
	return fmt.Sprintf("%g", v.X)
}

// Reading is a single sensor observation. ID is the 0-based input row and identifies the
// reading across every pipeline stage. Values is aligned with the owning Dataset's Columns.
type Reading struct {
	ID        int
	Timestamp time.Time
	Values    []Value
}

// Dataset is the ordered set of readings for one country.
type Dataset struct {
	Country  Country
	Source   string
	Columns  []string
	Readings []Reading

	index map[string]int
}

// NewDataset validates the shape of readings and builds the column index.
// Readings keep the order they are given in.
func NewDataset(country Country, source string, columns []string, readings []Reading) (*Dataset, error) {
	if country == "" {
		return nil, fmt.Errorf("dataset: country is required")
	}
	idx := make(map[string]int, len(columns))
	cols := make([]string, len(columns))
	for i, c := range columns {
		name := CanonicalMetric(c)
		key := strings.ToLower(name)
		if _, dup := idx[key]; dup {
			return nil, fmt.Errorf("dataset: duplicate column %q", name)
		}
		idx[key] = i
		cols[i] = name
	}
	for _, r := range readings {
		if len(r.Values) != len(cols) {
			return nil, fmt.Errorf("dataset: reading %d has %d values, want %d", r.ID, len(r.Values), len(cols))
		}
	}
	return &Dataset{Country: country, Source: source, Columns: cols, Readings: readings, index: idx}, nil
}

// Len returns the number of readings.
func (d *Dataset) Len() int { return len(d.Readings) }

// ColumnIndex resolves a metric name (case-insensitive, aliases allowed).
func (d *Dataset) ColumnIndex(name string) (int, error) {
	if i, ok := d.index[strings.ToLower(CanonicalMetric(name))]; ok {
		return i, nil
	}
	return -1, &ColumnError{Column: name, Available: append([]string(nil), d.Columns...)}
}

// Column returns a copy of one metric's values in reading order.
func (d *Dataset) Column(name string) ([]Value, error) {
	j, err := d.ColumnIndex(name)
	if err != nil {
		return nil, err
	}
	out := make([]Value, len(d.Readings))
	for i, r := range d.Readings {
		out[i] = r.Values[j]
	}
	return out, nil
}

// Clone returns a deep copy; callers that derive a new dataset start from here.
func (d *Dataset) Clone() *Dataset {
	rs := make([]Reading, len(d.Readings))
	for i, r := range d.Readings {
		vals := make([]Value, len(r.Values))
		copy(vals, r.Values)
		rs[i] = Reading{ID: r.ID, Timestamp: r.Timestamp, Values: vals}
	}
	idx := make(map[string]int, len(d.index))
	for k, v := range d.index {
		idx[k] = v
	}
	return &Dataset{
		Country:  d.Country,
		Source:   d.Source,
		Columns:  append([]string(nil), d.Columns...),
		Readings: rs,
		index:    idx,
	}
}
