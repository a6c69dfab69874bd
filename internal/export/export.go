// Package export writes flat-file snapshots of the persisted dataset and the
// analysis results for downstream consumers that do not read the database.
package export

import (
	"context"
	"os"
	"path/filepath"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/hillwinds/benetl/internal/model"
	"github.com/hillwinds/benetl/internal/store"
)

// Exporter writes snapshot artifacts into a target directory.
type Exporter struct {
	store store.Store
	dir   string
}

// New builds an exporter writing into dir.
func New(st store.Store, dir string) *Exporter {
	return &Exporter{store: st, dir: dir}
}

// employeeRow flattens an enriched employee for flat-file output.
type employeeRow struct {
	PersonID     string `csv:"person_id"`
	FullName     string `csv:"full_name"`
	Title        string `csv:"title"`
	Email        string `csv:"email"`
	CompanyEIN   string `csv:"company_ein"`
	InferredEIN  string `csv:"inferred_ein"`
	EffectiveEIN string `csv:"effective_ein"`
	StartDate    string `csv:"start_date"`
	Notes        string `csv:"notes"`
}

func employeeRows(recs []model.EnrichedEmployee) []employeeRow {
	rows := make([]employeeRow, len(recs))
	for i, e := range recs {
		rows[i] = employeeRow{
			PersonID:     e.PersonID,
			FullName:     e.FullName,
			Title:        e.Title,
			Email:        e.Email,
			CompanyEIN:   e.CompanyEIN,
			InferredEIN:  e.InferredEIN,
			EffectiveEIN: e.EffectiveEIN(),
			StartDate:    e.StartDate.String(),
			Notes:        e.Notes,
		}
	}
	return rows
}

// Employees writes the employee snapshot as both CSV and XLSX and returns the
// paths written.
func (x *Exporter) Employees(ctx context.Context) ([]string, error) {
	recs, err := x.store.Employees(ctx)
	if err != nil {
		return nil, err
	}
	rows := employeeRows(recs)

	csvPath := filepath.Join(x.dir, "employees_clean.csv")
	if err := writeCSV(csvPath, rows); err != nil {
		return nil, err
	}
	xlsxPath := filepath.Join(x.dir, "employees_clean.xlsx")
	if err := writeEmployeesXLSX(xlsxPath, rows); err != nil {
		return nil, err
	}

	zap.L().Info("employee snapshot exported",
		zap.Int("rows", len(rows)),
		zap.String("dir", x.dir),
	)
	return []string{csvPath, xlsxPath}, nil
}

type gapRow struct {
	CompanyEIN  string `csv:"company_ein"`
	PlanType    string `csv:"plan_type"`
	GapStart    string `csv:"gap_start"`
	GapEnd      string `csv:"gap_end"`
	GapDays     int    `csv:"gap_days"`
	PrevCarrier string `csv:"prev_carrier"`
	NextCarrier string `csv:"next_carrier"`
}

type spikeRow struct {
	CompanyEIN   string  `csv:"company_ein"`
	BucketStart  string  `csv:"bucket_start"`
	BucketEnd    string  `csv:"bucket_end"`
	PrevCost     float64 `csv:"prev_cost"`
	CurrCost     float64 `csv:"curr_cost"`
	PctChange    float64 `csv:"pct_change"`
	ZeroBaseline bool    `csv:"zero_baseline"`
}

type rosterRow struct {
	CompanyEIN string  `csv:"company_ein"`
	Expected   int     `csv:"expected"`
	Actual     int     `csv:"actual"`
	Delta      int     `csv:"delta"`
	PctDiff    float64 `csv:"pct_diff"`
	Severity   string  `csv:"severity"`
}

// Analysis writes the three analysis result tables as CSV files and returns
// the paths written.
func (x *Exporter) Analysis(ctx context.Context) ([]string, error) {
	gaps, err := x.store.Gaps(ctx)
	if err != nil {
		return nil, err
	}
	spikes, err := x.store.Spikes(ctx)
	if err != nil {
		return nil, err
	}
	roster, err := x.store.Roster(ctx)
	if err != nil {
		return nil, err
	}

	gapRows := make([]gapRow, len(gaps))
	for i, g := range gaps {
		gapRows[i] = gapRow{
			CompanyEIN:  g.CompanyEIN,
			PlanType:    g.PlanType,
			GapStart:    g.GapStart.Format("2006-01-02"),
			GapEnd:      g.GapEnd.Format("2006-01-02"),
			GapDays:     g.GapDays,
			PrevCarrier: g.PrevCarrier,
			NextCarrier: g.NextCarrier,
		}
	}
	spikeRows := make([]spikeRow, len(spikes))
	for i, s := range spikes {
		spikeRows[i] = spikeRow{
			CompanyEIN:   s.CompanyEIN,
			BucketStart:  s.BucketStart.Format("2006-01-02"),
			BucketEnd:    s.BucketEnd.Format("2006-01-02"),
			PrevCost:     s.PrevCost,
			CurrCost:     s.CurrCost,
			PctChange:    s.PctChange,
			ZeroBaseline: s.ZeroBaseline,
		}
	}
	rosterRows := make([]rosterRow, len(roster))
	for i, m := range roster {
		rosterRows[i] = rosterRow{
			CompanyEIN: m.CompanyEIN,
			Expected:   m.Expected,
			Actual:     m.Actual,
			Delta:      m.Delta,
			PctDiff:    m.PctDiff,
			Severity:   m.Severity,
		}
	}

	var paths []string
	for _, f := range []struct {
		name  string
		write func(string) error
	}{
		{"plan_gaps.csv", func(p string) error { return writeCSV(p, gapRows) }},
		{"cost_spikes.csv", func(p string) error { return writeCSV(p, spikeRows) }},
		{"roster_mismatch.csv", func(p string) error { return writeCSV(p, rosterRows) }},
	} {
		path := filepath.Join(x.dir, f.name)
		if err := f.write(path); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeCSV[T any](path string, rows []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "export: mkdir for %s", path)
	}
	b, err := csvutil.Marshal(rows)
	if err != nil {
		return eris.Wrapf(err, "export: marshal %s", path)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}

var employeeHeader = []string{
	"person_id", "full_name", "title", "email",
	"company_ein", "inferred_ein", "effective_ein", "start_date", "notes",
}

func writeEmployeesXLSX(path string, rows []employeeRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "export: mkdir for %s", path)
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Employees")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range employeeHeader {
		header.AddCell().SetString(h)
	}
	for _, r := range rows {
		row := sheet.AddRow()
		for _, v := range []string{
			r.PersonID, r.FullName, r.Title, r.Email,
			r.CompanyEIN, r.InferredEIN, r.EffectiveEIN, r.StartDate, r.Notes,
		} {
			row.AddCell().SetString(v)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}
