// Package report writes capacity snapshots to an Excel workbook.
package report

import (
	"fmt"
	"io"
	"math"

	"github.com/xuri/excelize/v2"

	"github.com/zulandar/workyard/internal/capacity"
)

// Sheet names.
const (
	TeamSheet     = "Team"
	ManagersSheet = "Managers"
)

var (
	teamHeader = []interface{}{
		"Name", "Planned Hours", "Actual Hours", "Available Hours",
		"Utilization", "Band", "Data Quality", "Active Assignments",
	}
	managersHeader = []interface{}{
		"Manager", "People", "Planned Hours", "Actual Hours", "Available Hours",
		"Utilization", "Band", "Data Quality",
	}
)

// Build lays out the workbook: one row per person on Team, closed by the
// org roll-up, and one row per manager on Managers. The caller closes the
// returned file.
func Build(org capacity.Team, managers []capacity.Team) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := build(f, org, managers); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func build(f *excelize.File, org capacity.Team, managers []capacity.Team) error {
	if err := f.SetSheetName("Sheet1", TeamSheet); err != nil {
		return fmt.Errorf("report: rename sheet: %w", err)
	}
	if _, err := f.NewSheet(ManagersSheet); err != nil {
		return fmt.Errorf("report: add sheet: %w", err)
	}
	s, err := newStyles(f)
	if err != nil {
		return err
	}

	team := [][]interface{}{teamHeader}
	for _, m := range org.Members {
		team = append(team, teamRow(m))
	}
	team = append(team, teamRow(org.Summary))
	mgrs := [][]interface{}{managersHeader}
	for _, t := range managers {
		mgrs = append(mgrs, managerRow(t.Summary))
	}

	sheets := []struct {
		name    string
		rows    [][]interface{}
		percent []string
	}{
		{TeamSheet, team, []string{"E", "G"}},
		{ManagersSheet, mgrs, []string{"F", "H"}},
	}
	for _, sh := range sheets {
		if err := writeRows(f, sh.name, sh.rows); err != nil {
			return err
		}
		last := len(sh.rows)
		if err := setStyle(f, sh.name, "A1", "H1", s.bold); err != nil {
			return err
		}
		if last > 1 {
			// Utilization and data quality are fractions shown as percentages.
			for _, col := range sh.percent {
				if err := setStyle(f, sh.name, fmt.Sprintf("%s2", col), fmt.Sprintf("%s%d", col, last), s.percent); err != nil {
					return err
				}
			}
		}
		if err := f.SetColWidth(sh.name, "A", "A", 28); err != nil {
			return fmt.Errorf("report: column width: %w", err)
		}
		if err := f.SetColWidth(sh.name, "B", "H", 16); err != nil {
			return fmt.Errorf("report: column width: %w", err)
		}
	}
	// The org total closes the Team sheet.
	return setStyle(f, TeamSheet, fmt.Sprintf("A%d", len(team)), fmt.Sprintf("A%d", len(team)), s.bold)
}

// WriteWorkbook builds the workbook and writes it to w as .xlsx.
func WriteWorkbook(w io.Writer, org capacity.Team, managers []capacity.Team) error {
	f, err := Build(org, managers)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("report: write workbook: %w", err)
	}
	return nil
}

// SaveWorkbook builds the workbook and saves it at path.
func SaveWorkbook(path string, org capacity.Team, managers []capacity.Team) error {
	f, err := Build(org, managers)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("report: save %s: %w", path, err)
	}
	return nil
}

func teamRow(s capacity.Snapshot) []interface{} {
	return []interface{}{
		s.Name, round(s.PlannedHours), round(s.ActualHours), round(s.AvailableHours),
		round4(s.Utilization), s.Band.Label(), round4(s.DataQuality), s.ActiveAssignments,
	}
}

func managerRow(s capacity.Snapshot) []interface{} {
	return []interface{}{
		s.Name, s.People, round(s.PlannedHours), round(s.ActualHours), round(s.AvailableHours),
		round4(s.Utilization), s.Band.Label(), round4(s.DataQuality),
	}
}

type styles struct {
	bold    int
	percent int
}

func newStyles(f *excelize.File) (styles, error) {
	var s styles
	var err error
	if s.bold, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return s, fmt.Errorf("report: bold style: %w", err)
	}
	// Built-in number format 10 is 0.00%.
	if s.percent, err = f.NewStyle(&excelize.Style{NumFmt: 10}); err != nil {
		return s, fmt.Errorf("report: percent style: %w", err)
	}
	return s, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("report: %s row %d: %w", sheet, i+1, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("report: %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func setStyle(f *excelize.File, sheet, from, to string, style int) error {
	if err := f.SetCellStyle(sheet, from, to, style); err != nil {
		return fmt.Errorf("report: style %s %s:%s: %w", sheet, from, to, err)
	}
	return nil
}

func round(v float64) float64  { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
