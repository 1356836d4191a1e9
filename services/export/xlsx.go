package exportsvc

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/catechism/core/timetable"
)

const (
	sheetName = "Timetable"
	headerRow = 3
)

var (
	header    = []interface{}{"#", "Date", "Session", "Activity", "Exams", "Note"}
	colWidths = map[string]float64{"A": 6, "B": 12, "C": 20, "D": 45, "E": 25, "F": 30}
)

// XLSXExporter writes preview rows to an Excel workbook, one row per PreviewRow.
type XLSXExporter struct{}

var _ timetable.Exporter = (*XLSXExporter)(nil)

func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (e *XLSXExporter) Ext() string { return ".xlsx" }

func (e *XLSXExporter) Export(w io.Writer, title string, rows []timetable.PreviewRow) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return errors.Wrap(err, "renaming sheet")
	}
	if err := writeTitle(f, title); err != nil {
		return err
	}
	if err := writeHeader(f); err != nil {
		return err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, headerRow+1+i)
		if err != nil {
			return errors.Wrap(err, "computing cell name")
		}
		values := []interface{}{
			row.OrderSchedule,
			row.Date.String(),
			row.SessionName,
			row.Title,
			strings.Join(row.Exams, ", "),
			row.Note,
		}
		if err = f.SetSheetRow(sheetName, cell, &values); err != nil {
			return errors.Wrapf(err, "writing row %d", i+1)
		}
	}

	for col, width := range colWidths {
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			return errors.Wrapf(err, "setting width of column %s", col)
		}
	}

	f.SetActiveSheet(0)
	return errors.Wrap(f.Write(w), "writing workbook")
}

func writeTitle(f *excelize.File, title string) error {
	lastCol, _ := excelize.ColumnNumberToName(len(header))
	if err := f.SetCellValue(sheetName, "A1", title); err != nil {
		return errors.Wrap(err, "writing title")
	}
	if err := f.MergeCell(sheetName, "A1", fmt.Sprintf("%s1", lastCol)); err != nil {
		return errors.Wrap(err, "merging title cells")
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return errors.Wrap(err, "creating title style")
	}
	return errors.Wrap(f.SetCellStyle(sheetName, "A1", "A1", style), "styling title")
}

func writeHeader(f *excelize.File) error {
	first := fmt.Sprintf("A%d", headerRow)
	if err := f.SetSheetRow(sheetName, first, &header); err != nil {
		return errors.Wrap(err, "writing header")
	}
	style, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 1}},
	})
	if err != nil {
		return errors.Wrap(err, "creating header style")
	}
	lastCol, _ := excelize.ColumnNumberToName(len(header))
	return errors.Wrap(f.SetCellStyle(sheetName, first, fmt.Sprintf("%s%d", lastCol, headerRow), style), "styling header")
}
