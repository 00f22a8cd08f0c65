package report

import (
	"math"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	apperrors "impactcli/internal/errors"
	"impactcli/internal/impact"
	"impactcli/internal/preparation"
)

const (
	CoefficientsSheet = "Coefficients"
	ProfileSheet      = "Profile"
)

// SaveWorkbook writes observations and the profile into one xlsx file with a sheet each
func SaveWorkbook(obs []impact.Observation, profile []impact.ProfilePoint, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", CoefficientsSheet); err != nil {
		return apperrors.NewStorageError("rename sheet", err)
	}
	if err := writeRow(f, CoefficientsSheet, 1, toCells(observationsHeader)); err != nil {
		return err
	}
	for i, o := range obs {
		row := []interface{}{
			preparation.FormatTimestamp(o.Timestamp),
			cell(o.Beta),
			cell(o.AvgDepth),
			cell(o.StdErr),
			cell(o.TValue),
			cell(o.PValue),
			cell(o.RSquared),
			o.NObs,
		}
		if err := writeRow(f, CoefficientsSheet, i+2, row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(ProfileSheet); err != nil {
		return apperrors.NewStorageError("create sheet", err)
	}
	if err := writeRow(f, ProfileSheet, 1, toCells(profileHeader)); err != nil {
		return err
	}
	for i, p := range profile {
		row := []interface{}{
			p.Slot,
			cell(p.Beta),
			cell(p.Depth),
			cell(p.NormalizedBeta),
			cell(p.NormalizedDepth),
		}
		if err := writeRow(f, ProfileSheet, i+2, row); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(CoefficientsSheet, "A", "A", 20)

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return apperrors.NewStorageError("create output directory", err)
	}
	if err := f.SaveAs(outputPath); err != nil {
		return apperrors.NewStorageError("save workbook", err).WithContext("path", outputPath)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	axis, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return apperrors.NewStorageError("cell name", err)
	}
	if err := f.SetSheetRow(sheet, axis, &values); err != nil {
		return apperrors.NewStorageError("write row", err).WithContext("sheet", sheet)
	}
	return nil
}

func toCells(header []string) []interface{} {
	cells := make([]interface{}, len(header))
	for i, h := range header {
		cells[i] = h
	}
	return cells
}

// cell leaves NaN and infinite values blank
func cell(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
