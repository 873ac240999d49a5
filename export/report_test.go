package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleReport() WeeklyReport {
	return WeeklyReport{
		Year:  2024,
		Week:  11,
		Dates: [7]string{"2024-03-11", "2024-03-12", "2024-03-13", "2024-03-14", "2024-03-15", "2024-03-16", "2024-03-17"},
		Students: []StudentRow{
			{Name: "Amy", Number: "1001", Points: 3, Checked: [7]bool{true, true, false, true}},
			{Name: "Ben", Number: "1002", Points: 0},
		},
	}
}

func TestBuildSheets(t *testing.T) {
	f, err := Build(sampleReport())
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetPoints, SheetCheckins}, f.GetSheetList())

	points, err := f.GetRows(SheetPoints)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, []string{"Student", "Number", "Points"}, points[0])
	assert.Equal(t, []string{"Amy", "1001", "3"}, points[1])
	assert.Equal(t, []string{"Ben", "1002", "0"}, points[2])

	grid, err := f.GetRows(SheetCheckins)
	require.NoError(t, err)
	require.Len(t, grid, 3)
	assert.Equal(t, "2024-03-11", grid[0][2])
	assert.Equal(t, "Total", grid[0][9])
	assert.Equal(t, "✓", grid[1][2])
	assert.Equal(t, "", grid[1][4])
	assert.Equal(t, "3", grid[1][9])

	total, err := f.GetCellValue(SheetCheckins, "J3")
	require.NoError(t, err)
	assert.Equal(t, "0", total)
}

func TestWriteProducesReadableWorkbook(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleReport()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue(SheetPoints, "A2")
	require.NoError(t, err)
	assert.Equal(t, "Amy", v)
}

func TestFilenameAndColumns(t *testing.T) {
	assert.Equal(t, "attendance_2024-W03.xlsx", WeeklyReport{Year: 2024, Week: 3}.Filename())
	assert.Equal(t, "A", colName(1))
	assert.Equal(t, "Z", colName(26))
	assert.Equal(t, "AA", colName(27))
}
