package domain

import "time"

// Chart view identifiers, switchable via a single selector in the UI.
const (
	ChartViewTimeseries = "timeseries"
	ChartViewScatter    = "scatter"
	ChartViewHistogram  = "histogram"
	ChartViewBox        = "box"
)

// Metric identifiers accepted by the histogram and box views. They
// reuse the source column names so the UI and the file contract agree.
const (
	MetricFlow        = ColFlow
	MetricEffPressure = ColEffPressure
	MetricLugeon      = ColLugeon
	MetricMarsh       = ColMarshGrout
)

// ChartRequest selects the data behind one chart invocation. Each
// invocation reloads the backing file from scratch; there is no
// caching, so repeated requests are idempotent.
type ChartRequest struct {
	HoleID string `json:"hole" validate:"required,alphanum,max=32"`
	Stage  string `json:"stage" validate:"required,max=8"`
	View   string `json:"view" validate:"required,oneof=timeseries scatter histogram box"`
	Metric string `json:"metric" validate:"omitempty,oneof=flow effPressure Lugeon vmarshGrout"`
}

// TimePoint is one timestamped value in a chart series. Samples whose
// cell failed numeric coercion are dropped before charting, so series
// never carry NaN.
type TimePoint struct {
	T time.Time `json:"t"`
	V float64   `json:"v"`
}

// XYPoint is one scatter point.
type XYPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MixSeries groups chart points by mix with the fixed label and color
// every view shares.
type MixSeries struct {
	Mix    Mix         `json:"mix"`
	Label  string      `json:"label"`
	Color  string      `json:"color"`
	Points []TimePoint `json:"points"`
}

// MarshChange marks a sample where the marsh reading changed from the
// previous sample; the time series view draws point markers there.
type MarshChange struct {
	T     time.Time `json:"t"`
	Marsh float64   `json:"marsh"`
}

// TimeseriesChart is the multi-series time plot: flow and effective
// pressure per mix, vertical markers at mix change points, point
// markers at marsh changes.
type TimeseriesChart struct {
	Selection    Selection     `json:"selection"`
	Flow         []MixSeries   `json:"flow"`
	EffPressure  []MixSeries   `json:"eff_pressure"`
	MixChanges   []time.Time   `json:"mix_changes"`
	MarshChanges []MarshChange `json:"marsh_changes"`
}

// ScatterGroup is the per-mix point cloud of flow vs effective
// pressure.
type ScatterGroup struct {
	Mix    Mix       `json:"mix"`
	Label  string    `json:"label"`
	Color  string    `json:"color"`
	Points []XYPoint `json:"points"`
}

// ScatterChart plots flow against effective pressure colored by mix.
type ScatterChart struct {
	Selection Selection      `json:"selection"`
	XLabel    string         `json:"x_label"`
	YLabel    string         `json:"y_label"`
	Groups    []ScatterGroup `json:"groups"`
}

// HistogramBin is one fixed-width bin with its sample count.
type HistogramBin struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int     `json:"count"`
}

// HistogramSeries is one mix's bin counts over the shared bin edges.
type HistogramSeries struct {
	Mix   Mix            `json:"mix"`
	Label string         `json:"label"`
	Color string         `json:"color"`
	Bins  []HistogramBin `json:"bins"`
}

// HistogramChart is the distribution view of one metric, binned over
// the full value range and split per mix.
type HistogramChart struct {
	Selection Selection         `json:"selection"`
	Metric    string            `json:"metric"`
	Series    []HistogramSeries `json:"series"`
}

// BoxStats is the five-number summary of one mix's metric values.
type BoxStats struct {
	Mix    Mix     `json:"mix"`
	Label  string  `json:"label"`
	Color  string  `json:"color"`
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
	Count  int     `json:"count"`
}

// BoxChart is the box plot view of one metric per mix.
type BoxChart struct {
	Selection Selection  `json:"selection"`
	Metric    string     `json:"metric"`
	Boxes     []BoxStats `json:"boxes"`
}
