// Package report renders concept progress as spreadsheets.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-progress/internal/progress"
)

const (
	SheetName   = "Progress"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var header = []any{"Concept ID", "Concept", "Confidence", "Band", "Last Attempted"}

// NameFunc resolves a concept id to a display name ("" if unknown).
type NameFunc func(conceptID string) string

// WriteProgress writes recs as an XLSX workbook to w.
func WriteProgress(w io.Writer, recs []progress.Record, name NameFunc) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetRowStyle(SheetName, 1, 1, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	percent, err := f.NewStyle(&excelize.Style{NumFmt: 10}) // 0.00%
	if err != nil {
		return fmt.Errorf("create percent style: %w", err)
	}

	for i, rec := range recs {
		row := i + 2
		displayName := ""
		if name != nil {
			displayName = name(rec.ConceptID)
		}
		values := []any{
			rec.ConceptID,
			displayName,
			rec.ConfidenceScore,
			progress.Band(rec.ConfidenceScore),
			rec.LastAttempted.UTC().Format(time.RFC3339),
		}

		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}

		scoreCell, _ := excelize.CoordinatesToCellName(3, row)
		if err := f.SetCellStyle(SheetName, scoreCell, scoreCell, percent); err != nil {
			return fmt.Errorf("style row %d: %w", row, err)
		}
	}

	if err := f.SetColWidth(SheetName, "A", "B", 24); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(SheetName, "E", "E", 22); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
