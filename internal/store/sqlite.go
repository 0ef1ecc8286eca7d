package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/shade-units/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id                TEXT PRIMARY KEY,
	selection_mode    TEXT NOT NULL,
	index_field       TEXT NOT NULL,
	admin_level       TEXT NOT NULL,
	buffer_m          REAL NOT NULL,
	max_buffer_m      REAL NOT NULL,
	units_total       INTEGER NOT NULL,
	units_with_data   INTEGER NOT NULL,
	features_total    INTEGER NOT NULL,
	features_selected INTEGER NOT NULL,
	expanded_units    TEXT NOT NULL DEFAULT '[]',
	p10_threshold     REAL,
	p90_threshold     REAL,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS unit_stats (
	run_id               TEXT NOT NULL REFERENCES runs(id),
	position             INTEGER NOT NULL,
	unit_id              TEXT NOT NULL,
	unit_name            TEXT NOT NULL,
	admin_level          TEXT NOT NULL,
	expanded             INTEGER NOT NULL DEFAULT 0,
	count                INTEGER NOT NULL DEFAULT 0,
	mean                 REAL,
	std                  REAL,
	min                  REAL,
	max                  REAL,
	coverage_poor        REAL,
	coverage_acceptable  REAL,
	coverage_good        REAL,
	coverage_excellent   REAL,
	has_data             INTEGER NOT NULL DEFAULT 0,
	geometry             BLOB,
	PRIMARY KEY (run_id, unit_id)
);

CREATE TABLE IF NOT EXISTS decisions (
	run_id        TEXT NOT NULL REFERENCES runs(id),
	unit_name     TEXT NOT NULL,
	count_base    INTEGER NOT NULL,
	count_max     INTEGER NOT NULL,
	growth        REAL NOT NULL,
	p90_indicator REAL NOT NULL,
	expanded      INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, unit_name)
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_runs_mode ON runs(selection_mode);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, rec *RunRecord) (string, error) {
	if rec.Run.ID == "" {
		rec.Run.ID = uuid.New().String()
	}
	r := rec.Run

	expanded, err := json.Marshal(nonNil(r.Expanded))
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal expanded units")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, selection_mode, index_field, admin_level, buffer_m, max_buffer_m,
			units_total, units_with_data, features_total, features_selected, expanded_units,
			p10_threshold, p90_threshold, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Mode), r.IndexField, r.AdminLevel, r.BaseBuffer, r.MaxBuffer,
		r.UnitsTotal, r.UnitsWithData, r.FeaturesTotal, r.FeaturesChosen, string(expanded),
		r.Thresholds.P10, r.Thresholds.P90, r.CreatedAt,
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert run")
	}

	for i, u := range rec.Units {
		sm := u.Summary
		_, err = tx.ExecContext(ctx,
			`INSERT INTO unit_stats (run_id, position, unit_id, unit_name, admin_level, expanded,
				count, mean, std, min, max, coverage_poor, coverage_acceptable, coverage_good,
				coverage_excellent, has_data, geometry)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, i, u.UnitID, u.UnitName, u.AdminLevel, u.Expanded,
			sm.Count, sm.Mean, sm.Std, sm.Min, sm.Max,
			sm.Coverage.Poor, sm.Coverage.Acceptable, sm.Coverage.Good, sm.Coverage.Excellent,
			sm.HasData, u.Geometry,
		)
		if err != nil {
			return "", eris.Wrapf(err, "sqlite: insert unit stat %s", u.UnitID)
		}
	}

	for _, d := range rec.Decisions {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO decisions (run_id, unit_name, count_base, count_max, growth, p90_indicator, expanded)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.ID, d.UnitName, d.CountBase, d.CountMax, d.Growth, d.P90, d.Expanded,
		)
		if err != nil {
			return "", eris.Wrapf(err, "sqlite: insert decision %s", d.UnitName)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", eris.Wrap(err, "sqlite: commit run")
	}
	return r.ID, nil
}

const runColumns = `id, selection_mode, index_field, admin_level, buffer_m, max_buffer_m,
	units_total, units_with_data, features_total, features_selected, expanded_units,
	p10_threshold, p90_threshold, created_at`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	var args []any

	if filter.Mode != "" {
		query += ` AND selection_mode = ?`
		args = append(args, string(filter.Mode))
	}
	if filter.IndexField != "" {
		query += ` AND index_field = ?`
		args = append(args, filter.IndexField)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, listLimit(filter))
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) ListUnitStats(ctx context.Context, runID string) ([]model.UnitStat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, unit_id, unit_name, admin_level, expanded, count, mean, std, min, max,
			coverage_poor, coverage_acceptable, coverage_good, coverage_excellent, has_data, geometry
		 FROM unit_stats WHERE run_id = ? ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list unit stats %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var stats []model.UnitStat
	for rows.Next() {
		st, err := scanUnitStat(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan unit stat")
		}
		stats = append(stats, st)
	}
	return stats, eris.Wrap(rows.Err(), "sqlite: list unit stats iterate")
}

func (s *SQLiteStore) ListDecisions(ctx context.Context, runID string) ([]model.Decision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT unit_name, count_base, count_max, growth, p90_indicator, expanded
		 FROM decisions WHERE run_id = ? ORDER BY unit_name`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list decisions %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var decisions []model.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan decision")
		}
		decisions = append(decisions, d)
	}
	return decisions, eris.Wrap(rows.Err(), "sqlite: list decisions iterate")
}

var _ Store = (*SQLiteStore)(nil)
