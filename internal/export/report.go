package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/shade-units/internal/pipeline"
)

var (
	unitsHeader    = []string{"unit_id", "unit_name", "admin_level", "count", "mean", "std", "min", "max", "coverage_poor", "coverage_acceptable", "coverage_good", "coverage_excellent", "has_data", "expanded_buffer_unit"}
	adaptiveHeader = []string{"unit_name", "count_base", "count_max", "growth", "p90_indicator", "expanded"}
)

// WriteReport writes an XLSX workbook with a "units" sheet of summaries
// and an "adaptive" sheet with the selection decision table.
func WriteReport(path string, res *pipeline.Result) error {
	f := xlsx.NewFile()

	units, err := f.AddSheet("units")
	if err != nil {
		return eris.Wrap(err, "export: add units sheet")
	}
	header(units, unitsHeader)
	for _, u := range res.Units {
		row := units.AddRow()
		row.AddCell().SetString(u.ID)
		row.AddCell().SetString(u.Name)
		row.AddCell().SetString(u.AdminLevel)
		if s := u.Summary; s != nil {
			row.AddCell().SetInt(s.Count)
			for _, v := range []*float64{s.Mean, s.Std, s.Min, s.Max, s.Coverage.Poor, s.Coverage.Acceptable, s.Coverage.Good, s.Coverage.Excellent} {
				cell := row.AddCell()
				if v != nil {
					cell.SetFloat(*v)
				}
			}
			row.AddCell().SetBool(s.HasData)
		} else {
			row.AddCell().SetInt(0)
			for i := 0; i < 8; i++ {
				row.AddCell()
			}
			row.AddCell().SetBool(false)
		}
		row.AddCell().SetBool(u.Expanded)
	}

	adaptive, err := f.AddSheet("adaptive")
	if err != nil {
		return eris.Wrap(err, "export: add adaptive sheet")
	}
	header(adaptive, adaptiveHeader)
	for _, d := range res.Decisions {
		row := adaptive.AddRow()
		row.AddCell().SetString(d.UnitName)
		row.AddCell().SetInt(d.CountBase)
		row.AddCell().SetInt(d.CountMax)
		row.AddCell().SetFloat(d.Growth)
		row.AddCell().SetFloat(d.P90)
		row.AddCell().SetBool(d.Expanded)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save report %s", path)
	}
	return nil
}

func header(sheet *xlsx.Sheet, names []string) {
	row := sheet.AddRow()
	for _, n := range names {
		row.AddCell().SetString(n)
	}
}
