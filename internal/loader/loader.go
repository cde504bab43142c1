package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/sunlens-cli/internal/model"
)

// Options controls how raw country files are read.
type Options struct {
	// MaxRows limits rows loaded; 0 means unlimited.
	MaxRows int
	// Delimiter for CSV. If 0, chosen from the file extension.
	Delimiter rune
	// Numeric parsing locale. If DecimalSeparator is 0, auto-detect per value.
	DecimalSeparator   rune
	ThousandsSeparator rune
	// MissingTokens are field values (case-insensitive) read as missing. Empty fields always are.
	MissingTokens []string
	// Sheet selects an XLSX sheet by name; empty means the first sheet.
	Sheet string
}

// DefaultOptions returns the loader defaults.
func DefaultOptions() Options {
	return Options{
		MissingTokens: []string{"NA", "N/A", "NaN", "null", "-"},
	}
}

// Result is a loaded dataset plus load diagnostics.
type Result struct {
	Dataset *model.Dataset
	// Units found in header annotations, keyed by canonical column name.
	Units map[string]string
	// Rows is the number of data rows in the file; Loaded may be lower when MaxRows applies.
	Rows     int
	Loaded   int
	Warnings []string
}

// rowSource yields raw records; it returns io.EOF when exhausted.
type rowSource interface {
	Next() ([]string, error)
}

type csvRows struct{ r *csv.Reader }

func (c csvRows) Next() ([]string, error) { return c.r.Read() }

// Load reads one country's file. The format follows the extension: .csv/.tsv (optionally
// .gz or .zst compressed) or .xlsx.
func Load(path string, country model.Country, opt Options) (*Result, error) {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return loadXLSX(path, country, opt)
	}
	return loadCSV(path, country, opt)
}

func loadCSV(path string, country model.Country, opt Options) (*Result, error) {
	rc, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return Read(rc, filepath.Base(path), country, opt)
}

// Read loads CSV content from r. name is recorded as the dataset source.
func Read(r io.Reader, name string, country model.Country, opt Options) (*Result, error) {
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(name)
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comma = delim
	return build(csvRows{r: cr}, name, country, opt)
}

// column describes how one header position is handled.
type column struct {
	name     string
	unit     string
	required bool
	numCnt   int
	txtCnt   int
}

func build(src rowSource, name string, country model.Country, opt Options) (*Result, error) {
	header, err := src.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: empty file", name)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	header = append([]string(nil), header...)
	tsIdx := -1
	cols := make([]*column, len(header))
	units := map[string]string{}
	seen := map[string]bool{}
	for i, h := range header {
		clean, unit := splitUnits(strings.TrimPrefix(h, "\ufeff"))
		if tsIdx < 0 && isTimestampHeader(clean) {
			tsIdx = i
			continue
		}
		canon := model.CanonicalMetric(clean)
		if canon == "" || seen[strings.ToLower(canon)] {
			continue
		}
		seen[strings.ToLower(canon)] = true
		cols[i] = &column{name: canon, unit: unit, required: isRequired(canon)}
		if unit != "" {
			units[canon] = unit
		}
	}

	missing := map[string]bool{}
	for _, tok := range opt.MissingTokens {
		missing[strings.ToLower(strings.TrimSpace(tok))] = true
	}
	isMissing := func(v string) bool {
		v = strings.TrimSpace(v)
		return v == "" || missing[strings.ToLower(v)]
	}

	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = math.MaxInt
	}
	res := &Result{Units: units}
	var raw [][]string
	for {
		rec, err := src.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", res.Rows+1, err)
		}
		res.Rows++
		if res.Loaded >= maxRows {
			continue
		}
		res.Loaded++
		row := make([]string, len(header))
		copy(row, rec)
		raw = append(raw, row)
		for j, c := range cols {
			if c == nil || isMissing(row[j]) {
				continue
			}
			if _, ok := parseNumeric(row[j], opt); ok {
				c.numCnt++
			} else {
				c.txtCnt++
			}
		}
	}

	// Required metrics are always numeric; others only when numbers dominate.
	var keep []int
	var names []string
	for j, c := range cols {
		if c == nil {
			continue
		}
		if c.required || (c.numCnt > 0 && c.numCnt >= c.txtCnt) {
			keep = append(keep, j)
			names = append(names, c.name)
		}
	}
	for _, m := range model.DefaultMetrics {
		if !seen[strings.ToLower(m)] {
			res.Warnings = append(res.Warnings, fmt.Sprintf("column %s not present in %s", m, name))
		}
	}
	if tsIdx < 0 {
		res.Warnings = append(res.Warnings, "no timestamp column; readings are unordered in time")
	}

	readings := make([]model.Reading, len(raw))
	badTS := 0
	unparsed := map[string]int{}
	for i, row := range raw {
		r := model.Reading{ID: i, Values: make([]model.Value, len(keep))}
		if tsIdx >= 0 {
			// An empty cell means no timestamp was recorded.
			if raw := strings.TrimSpace(row[tsIdx]); raw != "" {
				if ts, ok := parseTimeMaybe(raw); ok {
					r.Timestamp = ts
				} else {
					badTS++
				}
			}
		}
		for k, j := range keep {
			v := row[j]
			if isMissing(v) {
				continue
			}
			if x, ok := parseNumeric(v, opt); ok && !math.IsNaN(x) && !math.IsInf(x, 0) {
				r.Values[k] = model.Some(x)
				continue
			}
			unparsed[names[k]]++
		}
		readings[i] = r
	}
	if badTS > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d rows with unparseable timestamp", badTS))
	}
	for _, n := range names {
		if c := unparsed[n]; c > 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%d non-numeric values in %s read as missing", c, n))
		}
	}
	if res.Loaded < res.Rows {
		res.Warnings = append(res.Warnings, fmt.Sprintf("loaded only %d/%d rows due to MaxRows", res.Loaded, res.Rows))
	}

	ds, err := model.NewDataset(country, name, names, readings)
	if err != nil {
		return nil, err
	}
	res.Dataset = ds
	return res, nil
}

func isRequired(name string) bool {
	for _, m := range model.DefaultMetrics {
		if m == name {
			return true
		}
	}
	return false
}
