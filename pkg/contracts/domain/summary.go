package domain

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// SummaryStageNumber is the fixed value of the report's Stage column.
// The field exists for schema compatibility with downstream grouting
// spreadsheets and does not vary per hole.
const SummaryStageNumber = 6

// SummaryTimeLayout is the timestamp format used in the summary CSV.
const SummaryTimeLayout = "2006-01-02 15:04:05"

// SummaryHeaders is the exact column order of the per-mix-stage
// summary report. Single source of truth: the exporter writes it, the
// parser reads it, and tests assert against it. Changing a header here
// changes the file contract.
var SummaryHeaders = []string{
	"Hole ID",
	"Stage",
	"Stage Top",
	"Stage Bottom",
	"Time Start",
	"Time Finish",
	"Mix Duration (min)",
	"Mix",
	"Marsh",
	"Mix Volume",
	"Cumulative Volume",
	"Flow Avg (L/min)",
	"Effective Pressure Avg (bar)",
	"GuL Avg",
	"Extended Note",
}

// SummaryRow is one output record of the summary report: the
// denormalized join of a hole's fixed attributes with one mix
// segment's boundaries, volumes and derived statistics. For the
// terminal segment of a hole the three metric columns carry extrema
// rather than means; the Note column says which.
//
// Float fields use NaN for values that could not be derived; the CSV
// form writes those as empty cells and ParseSummaryRow restores them
// as NaN, so a write/read cycle reproduces the row exactly.
type SummaryRow struct {
	HoleID           string    `json:"hole_id" csv:"Hole ID" validate:"required"`
	Stage            int       `json:"stage" csv:"Stage"`
	StageTop         float64   `json:"stage_top" csv:"Stage Top"`
	StageBottom      float64   `json:"stage_bottom" csv:"Stage Bottom"`
	TimeStart        time.Time `json:"time_start" csv:"Time Start"`
	TimeFinish       time.Time `json:"time_finish" csv:"Time Finish"`
	DurationMinutes  float64   `json:"duration_minutes" csv:"Mix Duration (min)"`
	Mix              Mix       `json:"mix" csv:"Mix" validate:"required,min=1,max=5"`
	Marsh            float64   `json:"marsh" csv:"Marsh"`
	MixVolume        float64   `json:"mix_volume" csv:"Mix Volume"`
	CumulativeVolume float64   `json:"cumulative_volume" csv:"Cumulative Volume"`
	FlowAvg          float64   `json:"flow_avg" csv:"Flow Avg (L/min)"`
	EffPressureAvg   float64   `json:"eff_pressure_avg" csv:"Effective Pressure Avg (bar)"`
	LugeonAvg        float64   `json:"lugeon_avg" csv:"GuL Avg"`
	Note             string    `json:"note" csv:"Extended Note"`
}

// NewSummaryRow folds a hole, one of its segments and the segment's
// derived metrics into a report row.
func NewSummaryRow(hole *Hole, seg *MixSegment, metrics SegmentMetrics) SummaryRow {
	return SummaryRow{
		HoleID:           hole.ID,
		Stage:            SummaryStageNumber,
		StageTop:         hole.StageTop,
		StageBottom:      hole.StageBottom,
		TimeStart:        seg.Start,
		TimeFinish:       seg.End,
		DurationMinutes:  seg.DurationMinutes(),
		Mix:              seg.Mix,
		Marsh:            metrics.Marsh,
		MixVolume:        seg.InjectedVolume(),
		CumulativeVolume: seg.CumulativeVolume(),
		FlowAvg:          metrics.Flow,
		EffPressureAvg:   metrics.EffPressure,
		LugeonAvg:        metrics.Lugeon,
		Note:             metrics.Note,
	}
}

// CSVRow renders the row in SummaryHeaders order.
func (r SummaryRow) CSVRow() []string {
	return []string{
		r.HoleID,
		strconv.Itoa(r.Stage),
		FormatCSVFloat(r.StageTop),
		FormatCSVFloat(r.StageBottom),
		r.TimeStart.Format(SummaryTimeLayout),
		r.TimeFinish.Format(SummaryTimeLayout),
		FormatCSVFloat(r.DurationMinutes),
		strconv.Itoa(int(r.Mix)),
		FormatCSVFloat(r.Marsh),
		FormatCSVFloat(r.MixVolume),
		FormatCSVFloat(r.CumulativeVolume),
		FormatCSVFloat(r.FlowAvg),
		FormatCSVFloat(r.EffPressureAvg),
		FormatCSVFloat(r.LugeonAvg),
		r.Note,
	}
}

// ParseSummaryRow is the inverse of CSVRow.
func ParseSummaryRow(record []string) (SummaryRow, error) {
	if len(record) != len(SummaryHeaders) {
		return SummaryRow{}, fmt.Errorf("summary row has %d fields, want %d", len(record), len(SummaryHeaders))
	}

	stage, err := strconv.Atoi(record[1])
	if err != nil {
		return SummaryRow{}, fmt.Errorf("parse stage %q: %w", record[1], err)
	}
	start, err := time.Parse(SummaryTimeLayout, record[4])
	if err != nil {
		return SummaryRow{}, fmt.Errorf("parse start time %q: %w", record[4], err)
	}
	finish, err := time.Parse(SummaryTimeLayout, record[5])
	if err != nil {
		return SummaryRow{}, fmt.Errorf("parse finish time %q: %w", record[5], err)
	}
	mixCode, err := strconv.Atoi(record[7])
	if err != nil {
		return SummaryRow{}, fmt.Errorf("parse mix %q: %w", record[7], err)
	}
	mix, err := ParseMix(mixCode)
	if err != nil {
		return SummaryRow{}, err
	}

	return SummaryRow{
		HoleID:           record[0],
		Stage:            stage,
		StageTop:         ParseCSVFloat(record[2]),
		StageBottom:      ParseCSVFloat(record[3]),
		TimeStart:        start,
		TimeFinish:       finish,
		DurationMinutes:  ParseCSVFloat(record[6]),
		Mix:              mix,
		Marsh:            ParseCSVFloat(record[8]),
		MixVolume:        ParseCSVFloat(record[9]),
		CumulativeVolume: ParseCSVFloat(record[10]),
		FlowAvg:          ParseCSVFloat(record[11]),
		EffPressureAvg:   ParseCSVFloat(record[12]),
		LugeonAvg:        ParseCSVFloat(record[13]),
		Note:             record[14],
	}, nil
}

// FormatCSVFloat writes a float at full precision so a write/read
// cycle is lossless. NaN becomes an empty cell.
func FormatCSVFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseCSVFloat restores a float written by FormatCSVFloat. Empty and
// unparseable cells both come back as NaN, matching the missing-value
// convention used throughout the pipeline.
func ParseCSVFloat(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
