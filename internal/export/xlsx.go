package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/sunlens-cli/internal/pipeline"
	"github.com/KaramelBytes/sunlens-cli/internal/stats"
)

// Sheet names of the run workbook.
const (
	SheetSummary    = "Summary"
	SheetComparison = "Comparison"
	SheetMissing    = "Missing"
)

var (
	summaryHeaders    = []string{"Country", "Metric", "Total", "Valid", "Missing", "Outliers", "Mean", "Median", "Std", "Min", "P25", "P75", "Max"}
	comparisonHeaders = []string{"Rank", "Country", "Mean", "Std", "Count"}
	missingHeaders    = []string{"Country", "Column", "Missing", "Missing %"}
)

// Workbook renders a run as an XLSX document: per-country summaries, the comparison and the
// missing-value report.
func Workbook(run *pipeline.Run) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, fmt.Errorf("rename default sheet: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFF2CC"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	var rows [][]any
	for _, cr := range run.Countries {
		for _, m := range cr.Summary.Metrics {
			rows = append(rows, []any{
				cr.Country.DisplayName(), m.Metric, m.Total, m.Valid, m.Missing, m.Outliers,
				cell(m.Mean), cell(m.Median), cell(m.Std), cell(m.Min), cell(m.P25), cell(m.P75), cell(m.Max),
			})
		}
	}
	if err := writeTable(f, SheetSummary, header, summaryHeaders, rows); err != nil {
		return nil, err
	}

	if run.Comparison != nil {
		if _, err := f.NewSheet(SheetComparison); err != nil {
			return nil, fmt.Errorf("create sheet: %w", err)
		}
		rows = rows[:0]
		for _, r := range run.Comparison.Rows {
			rows = append(rows, []any{r.Rank, r.Country.DisplayName(), r.Mean, cell(r.Std), r.Count})
		}
		if err := writeTable(f, SheetComparison, header, comparisonHeaders, rows); err != nil {
			return nil, err
		}
		c := run.Comparison
		next := len(rows) + 3
		facts := [][]any{
			{"Metric", c.Metric},
			{"F", cell(c.F)},
			{"p-value", cell(c.PValue)},
			{"df (between, within)", fmt.Sprintf("%d, %d", c.DF1, c.DF2)},
			{"Significant", c.Significant},
		}
		for _, x := range c.Excluded {
			facts = append(facts, []any{"Excluded", fmt.Sprintf("%s (%s)", x.Country.DisplayName(), x.Reason)})
		}
		for i, fact := range facts {
			cellName, err := excelize.CoordinatesToCellName(1, next+i)
			if err != nil {
				return nil, err
			}
			if err := f.SetSheetRow(SheetComparison, cellName, &fact); err != nil {
				return nil, fmt.Errorf("write %s: %w", SheetComparison, err)
			}
		}
	}

	if _, err := f.NewSheet(SheetMissing); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	rows = rows[:0]
	for _, cr := range run.Countries {
		for _, m := range cr.Missing {
			rows = append(rows, []any{cr.Country.DisplayName(), m.Column, m.Missing, m.Percent})
		}
	}
	if err := writeTable(f, SheetMissing, header, missingHeaders, rows); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeTable(f *excelize.File, sheet string, style int, headers []string, rows [][]any) error {
	for col, h := range headers {
		name, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, name, h); err != nil {
			return fmt.Errorf("write %s header: %w", sheet, err)
		}
		if err := f.SetCellStyle(sheet, name, name, style); err != nil {
			return fmt.Errorf("style %s header: %w", sheet, err)
		}
	}
	for i, row := range rows {
		name, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, name, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
		}
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze %s header: %w", sheet, err)
	}
	return nil
}

// cell leaves undefined statistics blank.
func cell(s stats.Stat) any {
	if v := s.Any(); v != nil {
		return v
	}
	return ""
}
