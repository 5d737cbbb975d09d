package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

const orphanSheet = "Orphans"

var orphanHeader = []any{"SO No", "SN", "Category", "Failed Step", "Error", "Run ID", "First Seen", "Last Seen", "Resolved At"}

// ExportOrphansXLSX writes orphans to an XLSX workbook at path and returns the
// number of rows written. The file is replaced atomically.
func (s *Store) ExportOrphansXLSX(ctx context.Context, path string, includeResolved bool) (int, error) {
	orphans, err := s.ListOrphans(ctx, includeResolved)
	if err != nil {
		return 0, err
	}
	if err := WriteOrphansXLSX(path, orphans); err != nil {
		return 0, err
	}
	return len(orphans), nil
}

// WriteOrphansXLSX renders orphans into a single-sheet workbook.
func WriteOrphansXLSX(path string, orphans []Orphan) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", orphanSheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	if err := f.SetSheetRow(orphanSheet, "A1", &orphanHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(orphanHeader))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(orphanSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}

	for i, o := range orphans {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		resolved := ""
		if o.Resolved() {
			resolved = o.ResolvedAt.Local().Format("2006-01-02 15:04:05")
		}
		row := []any{
			o.SONo,
			o.SN,
			o.Category,
			o.Step,
			o.Error,
			o.RunID,
			o.FirstSeen.Local().Format("2006-01-02 15:04:05"),
			o.LastSeen.Local().Format("2006-01-02 15:04:05"),
			resolved,
		}
		if err := f.SetSheetRow(orphanSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := f.SetColWidth(orphanSheet, "A", lastCol, 20); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(orphanSheet, "E", "E", 48); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetPanes(orphanSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	tmp := path + ".tmp.xlsx"
	if err := f.SaveAs(tmp); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("save workbook: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace workbook: %w", err)
	}
	return nil
}
