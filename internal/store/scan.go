package store

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/shade-units/internal/model"
)

// scannable is satisfied by *sql.Row, *sql.Rows, pgx.Row and pgx.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var mode string
	var expanded []byte
	if err := row.Scan(
		&r.ID, &mode, &r.IndexField, &r.AdminLevel, &r.BaseBuffer, &r.MaxBuffer,
		&r.UnitsTotal, &r.UnitsWithData, &r.FeaturesTotal, &r.FeaturesChosen, &expanded,
		&r.Thresholds.P10, &r.Thresholds.P90, &r.CreatedAt,
	); err != nil {
		return nil, err
	}
	r.Mode = model.SelectionMode(mode)
	if len(expanded) > 0 {
		if err := json.Unmarshal(expanded, &r.Expanded); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal expanded units")
		}
	}
	r.Expanded = nonNil(r.Expanded)
	return &r, nil
}

func scanUnitStat(row scannable) (model.UnitStat, error) {
	var st model.UnitStat
	sm := &st.Summary
	err := row.Scan(
		&st.RunID, &st.UnitID, &st.UnitName, &st.AdminLevel, &st.Expanded,
		&sm.Count, &sm.Mean, &sm.Std, &sm.Min, &sm.Max,
		&sm.Coverage.Poor, &sm.Coverage.Acceptable, &sm.Coverage.Good, &sm.Coverage.Excellent,
		&sm.HasData, &st.Geometry,
	)
	return st, err
}

func scanDecision(row scannable) (model.Decision, error) {
	var d model.Decision
	err := row.Scan(&d.UnitName, &d.CountBase, &d.CountMax, &d.Growth, &d.P90, &d.Expanded)
	return d, err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
