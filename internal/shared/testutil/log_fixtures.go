package testutil

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"groutflow/pkg/contracts/domain"
)

// LogTestFixtures writes grout injection sensor logs for tests. Rows go
// out in the plain export layout (header row followed by data rows)
// unless a datalogger helper is used.
type LogTestFixtures struct {
	TestDataDir string
}

// NewLogTestFixtures creates a new fixtures manager rooted at testDataDir.
func NewLogTestFixtures(testDataDir string) *LogTestFixtures {
	return &LogTestFixtures{TestDataDir: testDataDir}
}

// LogRow is one sensor row in export cell order.
type LogRow struct {
	HoleID      string
	StageTop    float64
	StageBottom float64
	Timestamp   time.Time
	Mix         domain.Mix
	Flow        float64
	EffPressure float64
	Lugeon      float64
	MarshGrout  float64
	Volume      float64
}

// GetSteadyRows returns n rows for one hole sampled every 15 seconds
// with gently varying readings. The values are deliberately smooth so
// segmentation tests get a single regime unless they perturb them.
func (f *LogTestFixtures) GetSteadyRows(holeID string, n int) []LogRow {
	start := time.Date(2025, 6, 12, 8, 0, 0, 0, time.UTC)
	rows := make([]LogRow, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, LogRow{
			HoleID:      holeID,
			StageTop:    12.0,
			StageBottom: 17.0,
			Timestamp:   start.Add(time.Duration(i) * 15 * time.Second),
			Mix:         domain.MixA,
			Flow:        8.0 + 0.01*float64(i%7),
			EffPressure: 5.0 + 0.02*float64(i%5),
			Lugeon:      3.0,
			MarshGrout:  35.0,
			Volume:      2.0 * float64(i),
		})
	}
	return rows
}

// GetTwoRegimeRows returns rows whose flow steps from lowFlow to
// highFlow halfway through, giving change point tests a known split.
func (f *LogTestFixtures) GetTwoRegimeRows(holeID string, n int, lowFlow, highFlow float64) []LogRow {
	rows := f.GetSteadyRows(holeID, n)
	for i := range rows {
		if i < n/2 {
			rows[i].Flow = lowFlow
		} else {
			rows[i].Flow = highFlow
		}
	}
	return rows
}

// GetMixedHoleRows interleaves steady rows for several holes so
// grouping tests see out-of-order hole ids in one file.
func (f *LogTestFixtures) GetMixedHoleRows(holeIDs []string, perHole int) []LogRow {
	var rows []LogRow
	for i := 0; i < perHole; i++ {
		for _, id := range holeIDs {
			hole := f.GetSteadyRows(id, perHole)
			rows = append(rows, hole[i])
		}
	}
	return rows
}

// header returns the column names in the order cells are written.
func (f *LogTestFixtures) header() []string {
	return []string{
		domain.ColHoleNum, domain.ColStageTop, domain.ColStageBottom,
		domain.ColTimestamp, domain.ColMixNum, domain.ColFlow,
		domain.ColEffPressure, domain.ColLugeon, domain.ColMarshGrout,
		domain.ColVolume,
	}
}

func (f *LogTestFixtures) cells(row LogRow) []string {
	return []string{
		row.HoleID,
		strconv.FormatFloat(row.StageTop, 'f', 2, 64),
		strconv.FormatFloat(row.StageBottom, 'f', 2, 64),
		row.Timestamp.Format("2006-01-02 15:04:05"),
		strconv.Itoa(int(row.Mix)),
		strconv.FormatFloat(row.Flow, 'f', 3, 64),
		strconv.FormatFloat(row.EffPressure, 'f', 3, 64),
		strconv.FormatFloat(row.Lugeon, 'f', 3, 64),
		strconv.FormatFloat(row.MarshGrout, 'f', 1, 64),
		strconv.FormatFloat(row.Volume, 'f', 2, 64),
	}
}

// CreateWorkbook writes name (an .xlsx) under TestDataDir and returns
// its full path.
func (f *LogTestFixtures) CreateWorkbook(name string, rows []LogRow) (string, error) {
	wb := excelize.NewFile()
	defer wb.Close()

	sheet := wb.GetSheetName(0)
	if err := wb.SetSheetRow(sheet, "A1", stringsToAnySlice(f.header())); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		cell := fmt.Sprintf("A%d", i+2)
		if err := wb.SetSheetRow(sheet, cell, stringsToAnySlice(f.cells(row))); err != nil {
			return "", fmt.Errorf("write row %d: %w", i, err)
		}
	}

	path := filepath.Join(f.TestDataDir, name)
	if err := wb.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}

// CreateCSV writes name (a .csv) under TestDataDir and returns its
// full path.
func (f *LogTestFixtures) CreateCSV(name string, rows []LogRow) (string, error) {
	return f.writeCSV(name, nil, rows)
}

// CreateDataloggerCSV writes the hardware export variant: a TOA5
// environment row, then the header, then units and aggregation rows
// the loader discards.
func (f *LogTestFixtures) CreateDataloggerCSV(name string, rows []LogRow) (string, error) {
	header := f.header()
	preamble := [][]string{
		{"TOA5", "GroutRig01", "CR1000X", "12345", "CR1000X.Std.05", "CPU:grout.CR1X", "1234", "InjectionTable"},
		header,
		make([]string, len(header)),
		make([]string, len(header)),
	}
	return f.writeCSV(name, preamble, rows)
}

func (f *LogTestFixtures) writeCSV(name string, preamble [][]string, rows []LogRow) (string, error) {
	path := filepath.Join(f.TestDataDir, name)
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create csv: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if preamble == nil {
		preamble = [][]string{f.header()}
	}
	for _, rec := range preamble {
		if err := w.Write(rec); err != nil {
			return "", fmt.Errorf("write header: %w", err)
		}
	}
	for i, row := range rows {
		if err := w.Write(f.cells(row)); err != nil {
			return "", fmt.Errorf("write row %d: %w", i, err)
		}
	}
	w.Flush()
	return path, w.Error()
}

func stringsToAnySlice(cells []string) []interface{} {
	out := make([]interface{}, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	return out
}
