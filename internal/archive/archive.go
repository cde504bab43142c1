// Package archive keeps a history of pipeline runs in a SQLite database.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/KaramelBytes/sunlens-cli/internal/model"
	"github.com/KaramelBytes/sunlens-cli/internal/pipeline"
	"github.com/KaramelBytes/sunlens-cli/internal/stats"
)

// timeLayout has a fixed width so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrRunNotFound is returned by Get for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// Store is a SQLite run archive.
type Store struct {
	db *sql.DB
}

// Open opens (creating when needed) the archive at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("archive: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir archive dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	statements := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			metric TEXT NOT NULL,
			countries TEXT NOT NULL,
			threshold REAL NOT NULL,
			outlier_policy TEXT NOT NULL,
			missing_policy TEXT NOT NULL,
			alpha REAL NOT NULL,
			f_stat REAL,
			p_value REAL,
			significant INTEGER NOT NULL DEFAULT 0,
			error TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS metric_summaries (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			country TEXT NOT NULL,
			metric TEXT NOT NULL,
			total INTEGER NOT NULL,
			valid INTEGER NOT NULL,
			missing INTEGER NOT NULL,
			outliers INTEGER NOT NULL,
			mean REAL,
			median REAL,
			std REAL,
			min REAL,
			max REAL,
			PRIMARY KEY (run_id, country, metric)
		);`,
		`CREATE TABLE IF NOT EXISTS rankings (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			country TEXT NOT NULL,
			rank INTEGER NOT NULL,
			mean REAL NOT NULL,
			std REAL,
			count INTEGER NOT NULL,
			PRIMARY KEY (run_id, country)
		);`,
		`CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at);`,
	}
	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return err
		}
	}
	return nil
}

// RunRecord is one archived run.
type RunRecord struct {
	ID          uuid.UUID
	StartedAt   time.Time
	Metric      string
	Countries   []model.Country
	Threshold   float64
	Policy      string
	Missing     string
	Alpha       float64
	F           stats.Stat
	PValue      stats.Stat
	Significant bool
	// Error holds the comparison failure of runs that could not be compared.
	Error string
}

// Ranking is one archived ranking row.
type Ranking struct {
	Country model.Country
	Rank    int
	Mean    float64
	Std     stats.Stat
	Count   int
}

// MetricRow is one archived metric summary.
type MetricRow struct {
	Country  model.Country
	Metric   string
	Total    int
	Valid    int
	Missing  int
	Outliers int
	Mean     stats.Stat
	Median   stats.Stat
	Std      stats.Stat
	Min      stats.Stat
	Max      stats.Stat
}

// RunDetail is a run with its summaries and ranking.
type RunDetail struct {
	RunRecord
	Summaries []MetricRow
	Rankings  []Ranking
}

// Save archives a run. compareErr, when set, is stored in place of the comparison.
func (s *Store) Save(ctx context.Context, run *pipeline.Run, compareErr error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	cfg := run.Config
	countries := make([]string, len(run.Countries))
	for i, cr := range run.Countries {
		countries[i] = cr.Country.String()
	}
	var (
		f, p    any
		sig     bool
		errText any
		metric  = model.CanonicalMetric(cfg.Target)
	)
	if c := run.Comparison; c != nil {
		metric = c.Metric
		f, p, sig = nullable(c.F), nullable(c.PValue), c.Significant
	}
	if compareErr != nil {
		errText = compareErr.Error()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, metric, countries, threshold, outlier_policy,
			missing_policy, alpha, f_stat, p_value, significant, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.StartedAt.UTC().Format(timeLayout), metric,
		strings.Join(countries, ","), cfg.Filter.Threshold, string(cfg.Filter.Policy),
		string(cfg.Filter.Missing), cfg.Alpha, f, p, sig, errText,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	sumStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO metric_summaries (run_id, country, metric, total, valid, missing, outliers,
			mean, median, std, min, max)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare summaries: %w", err)
	}
	defer sumStmt.Close()
	for _, cr := range run.Countries {
		for _, m := range cr.Summary.Metrics {
			if _, err = sumStmt.ExecContext(ctx, run.ID.String(), cr.Country.String(), m.Metric,
				m.Total, m.Valid, m.Missing, m.Outliers,
				nullable(m.Mean), nullable(m.Median), nullable(m.Std), nullable(m.Min), nullable(m.Max),
			); err != nil {
				return fmt.Errorf("insert summary %s/%s: %w", cr.Country, m.Metric, err)
			}
		}
	}

	if run.Comparison != nil {
		rankStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO rankings (run_id, country, rank, mean, std, count)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare rankings: %w", err)
		}
		defer rankStmt.Close()
		for _, r := range run.Comparison.Rows {
			if _, err := rankStmt.ExecContext(ctx, run.ID.String(), r.Country.String(), r.Rank, r.Mean, nullable(r.Std), r.Count); err != nil {
				return fmt.Errorf("insert ranking %s: %w", r.Country, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const runColumns = `id, started_at, metric, countries, threshold, outlier_policy, missing_policy,
	alpha, f_stat, p_value, significant, error`

// List returns the most recent runs first; limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]RunRecord, error) {
	q := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var out []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// likeEscaper makes an ID prefix match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Get loads one run with its summaries and ranking. A unique ID prefix is accepted.
func (s *Store) Get(ctx context.Context, id string) (*RunDetail, error) {
	prefix := likeEscaper.Replace(strings.ToLower(id))
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id LIKE ? || '%' ESCAPE '\' LIMIT 2`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	var recs []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		recs = append(recs, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	switch len(recs) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case 2:
		return nil, fmt.Errorf("run id %q is ambiguous", id)
	}
	d := &RunDetail{RunRecord: recs[0]}
	runID := d.ID.String()

	srows, err := s.db.QueryContext(ctx, `
		SELECT country, metric, total, valid, missing, outliers, mean, median, std, min, max
		FROM metric_summaries WHERE run_id = ? ORDER BY country, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("get summaries: %w", err)
	}
	defer srows.Close()
	for srows.Next() {
		var (
			m                             MetricRow
			country                       string
			mean, median, std, minV, maxV sql.NullFloat64
		)
		if err := srows.Scan(&country, &m.Metric, &m.Total, &m.Valid, &m.Missing, &m.Outliers,
			&mean, &median, &std, &minV, &maxV); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		m.Country = model.Country(country)
		m.Mean, m.Median, m.Std, m.Min, m.Max = stat(mean), stat(median), stat(std), stat(minV), stat(maxV)
		d.Summaries = append(d.Summaries, m)
	}
	if err := srows.Err(); err != nil {
		return nil, err
	}

	rrows, err := s.db.QueryContext(ctx, `
		SELECT country, rank, mean, std, count FROM rankings WHERE run_id = ? ORDER BY rank`, runID)
	if err != nil {
		return nil, fmt.Errorf("get rankings: %w", err)
	}
	defer rrows.Close()
	for rrows.Next() {
		var (
			r       Ranking
			country string
			std     sql.NullFloat64
		)
		if err := rrows.Scan(&country, &r.Rank, &r.Mean, &std, &r.Count); err != nil {
			return nil, fmt.Errorf("scan ranking: %w", err)
		}
		r.Country = model.Country(country)
		r.Std = stat(std)
		d.Rankings = append(d.Rankings, r)
	}
	return d, rrows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (RunRecord, error) {
	var (
		rec                  RunRecord
		id, started, country string
		f, p                 sql.NullFloat64
		sig                  bool
		errText              sql.NullString
	)
	if err := sc.Scan(&id, &started, &rec.Metric, &country, &rec.Threshold, &rec.Policy,
		&rec.Missing, &rec.Alpha, &f, &p, &sig, &errText); err != nil {
		return rec, fmt.Errorf("scan run: %w", err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return rec, fmt.Errorf("parse run id: %w", err)
	}
	rec.ID = parsed
	if rec.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return rec, fmt.Errorf("parse run time: %w", err)
	}
	for _, c := range strings.Split(country, ",") {
		if c != "" {
			rec.Countries = append(rec.Countries, model.Country(c))
		}
	}
	rec.F, rec.PValue, rec.Significant = stat(f), stat(p), sig
	rec.Error = errText.String
	return rec, nil
}

// nullable maps undefined and infinite statistics to NULL.
func nullable(s stats.Stat) any {
	if v, ok := s.Any().(float64); ok {
		return v
	}
	return nil
}

func stat(n sql.NullFloat64) stats.Stat {
	if !n.Valid {
		return stats.Undefined
	}
	return stats.Def(n.Float64)
}
