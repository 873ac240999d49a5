package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

const (
	SheetPoints   = "Points"
	SheetCheckins = "Check-ins"
)

// StudentRow is one student's line in the weekly report.
type StudentRow struct {
	Name    string
	Number  string
	Points  int
	Checked [7]bool
}

// WeeklyReport is everything the workbook shows for one ISO week.
type WeeklyReport struct {
	Year     int
	Week     int
	Dates    [7]string
	Students []StudentRow
}

// Filename is the download name of the workbook.
func (r WeeklyReport) Filename() string {
	return fmt.Sprintf("attendance_%d-W%02d.xlsx", r.Year, r.Week)
}

type sheetSpec struct {
	title  string
	header []string
	rows   [][]string
}

// Build renders the report into a new workbook with a points sheet and a
// student by weekday check-in grid.
func Build(r WeeklyReport) (*excelize.File, error) {
	points := sheetSpec{title: SheetPoints, header: []string{"Student", "Number", "Points"}}
	grid := sheetSpec{title: SheetCheckins, header: append([]string{"Student", "Number"}, r.Dates[:]...)}
	grid.header = append(grid.header, "Total")

	for _, s := range r.Students {
		points.rows = append(points.rows, []string{s.Name, s.Number, strconv.Itoa(s.Points)})

		row := []string{s.Name, s.Number}
		total := 0
		for _, ok := range s.Checked {
			if ok {
				row = append(row, "✓")
				total++
			} else {
				row = append(row, "")
			}
		}
		grid.rows = append(grid.rows, append(row, strconv.Itoa(total)))
	}

	f := excelize.NewFile()
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	for i, s := range []sheetSpec{points, grid} {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.title); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(s.title); err != nil {
			return nil, fmt.Errorf("new sheet: %w", err)
		}
		if err := writeSheet(f, s, bold); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Write streams the workbook to w.
func Write(w io.Writer, r WeeklyReport) error {
	f, err := Build(r)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func writeSheet(f *excelize.File, s sheetSpec, headerStyle int) error {
	for c, h := range s.header {
		cell := colName(c+1) + "1"
		if err := f.SetCellStr(s.title, cell, h); err != nil {
			return fmt.Errorf("set cell %s: %w", cell, err)
		}
	}
	end := colName(len(s.header)) + "1"
	_ = f.SetCellStyle(s.title, "A1", end, headerStyle)
	_ = f.AutoFilter(s.title, "A1:"+end, nil)

	for r, row := range s.rows {
		for c, val := range row {
			cell := fmt.Sprintf("%s%d", colName(c+1), r+2)
			if n, err := strconv.Atoi(val); err == nil && c >= 2 {
				if err := f.SetCellInt(s.title, cell, int64(n)); err != nil {
					return fmt.Errorf("set cell %s: %w", cell, err)
				}
				continue
			}
			if err := f.SetCellStr(s.title, cell, val); err != nil {
				return fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}

	// width by header and the first rows, clamped
	for c := 1; c <= len(s.header); c++ {
		w := len(s.header[c-1])
		for r := 0; r < len(s.rows) && r < 50; r++ {
			if l := len(s.rows[r][c-1]); l > w {
				w = l
			}
		}
		width := float64(w) * 1.1
		if width < 10 {
			width = 10
		}
		if width > 40 {
			width = 40
		}
		_ = f.SetColWidth(s.title, colName(c), colName(c), width)
	}
	return nil
}

func colName(n int) string {
	s := ""
	for n > 0 {
		n--
		s = string(rune('A'+(n%26))) + s
		n /= 26
	}
	return s
}
