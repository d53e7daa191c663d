// Package export renders job history (C12) to Excel workbooks, in the
// same excelize idiom the teacher's report generator uses for its
// flow/analytics reports: one sheet per export, a bold header row, and
// a fixed column layout.
package export

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"fleetops/pkg/jobs"
)

const sheetName = "Jobs"

var columns = []string{"Job ID", "Kind", "Status", "Started At", "Ended At", "Duration (s)", "Error"}

// JobHistoryExcel renders jobs (most recently started first) to an XLSX
// workbook with one row per job.
func JobHistoryExcel(history []jobs.Job) ([]byte, error) {
	sorted := make([]jobs.Job, len(history))
	copy(sorted, history)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartedAt.After(sorted[j].StartedAt) })

	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(sheetName); err != nil {
		return nil, fmt.Errorf("export: new sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("export: delete default sheet: %w", err)
	}
	f.SetActiveSheet(0)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("export: header style: %w", err)
	}

	for col, title := range columns {
		cell := cellAddr(col, 1)
		if err := f.SetCellValue(sheetName, cell, title); err != nil {
			return nil, fmt.Errorf("export: write header %s: %w", cell, err)
		}
	}
	lastCol := cellAddr(len(columns)-1, 1)
	if err := f.SetCellStyle(sheetName, "A1", lastCol, headerStyle); err != nil {
		return nil, fmt.Errorf("export: style header: %w", err)
	}

	for i, j := range sorted {
		row := i + 2
		writeJobRow(f, row, j)
	}

	if err := f.SetColWidth(sheetName, "A", "G", 18); err != nil {
		return nil, fmt.Errorf("export: column widths: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("export: write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeJobRow(f *excelize.File, row int, j jobs.Job) {
	f.SetCellValue(sheetName, cellAddr(0, row), j.ID)
	f.SetCellValue(sheetName, cellAddr(1, row), string(j.Kind))
	f.SetCellValue(sheetName, cellAddr(2, row), string(j.Status))
	f.SetCellValue(sheetName, cellAddr(3, row), j.StartedAt.Format("2006-01-02 15:04:05"))

	if j.EndedAt != nil {
		f.SetCellValue(sheetName, cellAddr(4, row), j.EndedAt.Format("2006-01-02 15:04:05"))
		f.SetCellValue(sheetName, cellAddr(5, row), j.EndedAt.Sub(j.StartedAt).Seconds())
	} else {
		f.SetCellValue(sheetName, cellAddr(4, row), "")
		f.SetCellValue(sheetName, cellAddr(5, row), "")
	}

	f.SetCellValue(sheetName, cellAddr(6, row), j.Err)
}

// cellAddr converts a zero-based column index and a one-based row index
// into an A1-style cell reference, e.g. cellAddr(0, 1) == "A1".
func cellAddr(col, row int) string {
	name, err := excelize.ColumnNumberToName(col + 1)
	if err != nil {
		name = "A"
	}
	return fmt.Sprintf("%s%d", name, row)
}
