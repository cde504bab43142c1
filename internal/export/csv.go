// Package export writes cleaned datasets and run results to CSV and XLSX files.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/KaramelBytes/sunlens-cli/internal/model"
	"github.com/KaramelBytes/sunlens-cli/internal/utils"
)

// WriteCSV writes ds with a leading Timestamp column. Missing values are written as empty
// fields so the loader reads them back as missing.
func WriteCSV(w io.Writer, ds *model.Dataset) error {
	cw := csv.NewWriter(w)
	header := append([]string{"Timestamp"}, ds.Columns...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, len(header))
	for _, r := range ds.Readings {
		rec[0] = ""
		if !r.Timestamp.IsZero() {
			rec[0] = r.Timestamp.UTC().Format(time.RFC3339)
		}
		for j, v := range r.Values {
			rec[j+1] = ""
			if v.Valid {
				rec[j+1] = strconv.FormatFloat(v.X, 'f', -1, 64)
			}
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write reading %d: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes ds to path, gzip or zstd compressed when path ends in .gz or .zst.
// The file is replaced atomically.
func WriteCSVFile(path string, ds *model.Dataset) error {
	var (
		buf    bytes.Buffer
		w      io.Writer = &buf
		finish func() error
	)
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".gz"):
		zw := gzip.NewWriter(&buf)
		w, finish = zw, zw.Close
	case strings.HasSuffix(lower, ".zst"), strings.HasSuffix(lower, ".zstd"):
		enc, err := zstd.NewWriter(&buf)
		if err != nil {
			return fmt.Errorf("open zstd: %w", err)
		}
		w, finish = enc, enc.Close
	}
	if err := WriteCSV(w, ds); err != nil {
		return err
	}
	if finish != nil {
		if err := finish(); err != nil {
			return fmt.Errorf("compress %s: %w", path, err)
		}
	}
	return utils.SafeWriteFile(path, buf.Bytes())
}
