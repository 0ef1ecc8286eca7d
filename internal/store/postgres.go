package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/shade-units/internal/db"
	"github.com/sells-group/shade-units/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var (
	unitStatColumns = []string{
		"run_id", "position", "unit_id", "unit_name", "admin_level", "expanded",
		"count", "mean", "std", "min", "max",
		"coverage_poor", "coverage_acceptable", "coverage_good", "coverage_excellent",
		"has_data", "geometry",
	}
	decisionColumns = []string{"run_id", "unit_name", "count_base", "count_max", "growth", "p90_indicator", "expanded"}
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	selection_mode    TEXT NOT NULL,
	index_field       TEXT NOT NULL,
	admin_level       TEXT NOT NULL,
	buffer_m          DOUBLE PRECISION NOT NULL,
	max_buffer_m      DOUBLE PRECISION NOT NULL,
	units_total       INTEGER NOT NULL,
	units_with_data   INTEGER NOT NULL,
	features_total    INTEGER NOT NULL,
	features_selected INTEGER NOT NULL,
	expanded_units    JSONB NOT NULL DEFAULT '[]',
	p10_threshold     DOUBLE PRECISION,
	p90_threshold     DOUBLE PRECISION,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS unit_stats (
	run_id              TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position            INTEGER NOT NULL,
	unit_id             TEXT NOT NULL,
	unit_name           TEXT NOT NULL,
	admin_level         TEXT NOT NULL,
	expanded            BOOLEAN NOT NULL DEFAULT false,
	count               INTEGER NOT NULL DEFAULT 0,
	mean                DOUBLE PRECISION,
	std                 DOUBLE PRECISION,
	min                 DOUBLE PRECISION,
	max                 DOUBLE PRECISION,
	coverage_poor       DOUBLE PRECISION,
	coverage_acceptable DOUBLE PRECISION,
	coverage_good       DOUBLE PRECISION,
	coverage_excellent  DOUBLE PRECISION,
	has_data            BOOLEAN NOT NULL DEFAULT false,
	geometry            BYTEA,
	PRIMARY KEY (run_id, unit_id)
);

CREATE TABLE IF NOT EXISTS decisions (
	run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	unit_name     TEXT NOT NULL,
	count_base    INTEGER NOT NULL,
	count_max     INTEGER NOT NULL,
	growth        DOUBLE PRECISION NOT NULL,
	p90_indicator DOUBLE PRECISION NOT NULL,
	expanded      BOOLEAN NOT NULL DEFAULT false,
	PRIMARY KEY (run_id, unit_name)
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_runs_mode ON runs(selection_mode);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SaveRun inserts the run header and bulk-loads unit stats and decisions
// with COPY in one transaction.
func (s *PostgresStore) SaveRun(ctx context.Context, rec *RunRecord) (string, error) {
	if rec.Run.ID == "" {
		rec.Run.ID = uuid.New().String()
	}
	r := rec.Run

	expanded, err := json.Marshal(nonNil(r.Expanded))
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal expanded units")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", eris.Wrap(err, "postgres: begin")
	}
	fail := func(err error) (string, error) {
		_ = tx.Rollback(ctx)
		return "", err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO runs (id, selection_mode, index_field, admin_level, buffer_m, max_buffer_m,
			units_total, units_with_data, features_total, features_selected, expanded_units,
			p10_threshold, p90_threshold, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		r.ID, string(r.Mode), r.IndexField, r.AdminLevel, r.BaseBuffer, r.MaxBuffer,
		r.UnitsTotal, r.UnitsWithData, r.FeaturesTotal, r.FeaturesChosen, expanded,
		r.Thresholds.P10, r.Thresholds.P90, r.CreatedAt,
	)
	if err != nil {
		return fail(eris.Wrap(err, "postgres: insert run"))
	}

	unitRows := make([][]any, 0, len(rec.Units))
	for i, u := range rec.Units {
		sm := u.Summary
		unitRows = append(unitRows, []any{
			r.ID, i, u.UnitID, u.UnitName, u.AdminLevel, u.Expanded,
			sm.Count, sm.Mean, sm.Std, sm.Min, sm.Max,
			sm.Coverage.Poor, sm.Coverage.Acceptable, sm.Coverage.Good, sm.Coverage.Excellent,
			sm.HasData, u.Geometry,
		})
	}
	if _, err := db.CopyFrom(ctx, tx, "unit_stats", unitStatColumns, unitRows); err != nil {
		return fail(eris.Wrap(err, "postgres: copy unit stats"))
	}

	decisionRows := make([][]any, 0, len(rec.Decisions))
	for _, d := range rec.Decisions {
		decisionRows = append(decisionRows, []any{r.ID, d.UnitName, d.CountBase, d.CountMax, d.Growth, d.P90, d.Expanded})
	}
	if _, err := db.CopyFrom(ctx, tx, "decisions", decisionColumns, decisionRows); err != nil {
		return fail(eris.Wrap(err, "postgres: copy decisions"))
	}

	if err := tx.Commit(ctx); err != nil {
		return "", eris.Wrap(err, "postgres: commit run")
	}
	return r.ID, nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, runID)
	r, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Mode != "" {
		query += fmt.Sprintf(` AND selection_mode = $%d`, argIdx)
		args = append(args, string(filter.Mode))
		argIdx++
	}
	if filter.IndexField != "" {
		query += fmt.Sprintf(` AND index_field = $%d`, argIdx)
		args = append(args, filter.IndexField)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) ListUnitStats(ctx context.Context, runID string) ([]model.UnitStat, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, unit_id, unit_name, admin_level, expanded, count, mean, std, min, max,
			coverage_poor, coverage_acceptable, coverage_good, coverage_excellent, has_data, geometry
		 FROM unit_stats WHERE run_id = $1 ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list unit stats %s", runID)
	}
	defer rows.Close()

	var stats []model.UnitStat
	for rows.Next() {
		st, err := scanUnitStat(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan unit stat")
		}
		stats = append(stats, st)
	}
	return stats, eris.Wrap(rows.Err(), "postgres: list unit stats iterate")
}

func (s *PostgresStore) ListDecisions(ctx context.Context, runID string) ([]model.Decision, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT unit_name, count_base, count_max, growth, p90_indicator, expanded
		 FROM decisions WHERE run_id = $1 ORDER BY unit_name`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list decisions %s", runID)
	}
	defer rows.Close()

	var decisions []model.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan decision")
		}
		decisions = append(decisions, d)
	}
	return decisions, eris.Wrap(rows.Err(), "postgres: list decisions iterate")
}

var _ Store = (*PostgresStore)(nil)
