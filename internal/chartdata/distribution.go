package chartdata

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"groutflow/pkg/contracts/domain"
)

// HistogramBins is the number of fixed-width bins the histogram view
// spreads over the metric's full value range.
const HistogramBins = 20

// ErrUnknownMetric reports a metric identifier outside the charted
// columns. The HTTP layer validates requests before calling in, so
// hitting this from a handler indicates a wiring bug.
var ErrUnknownMetric = errors.New("unknown metric")

// Histogram bins one metric over its full range across the hole, one
// bin series per mix so the distributions are comparable on shared
// edges.
func Histogram(sel domain.Selection, hole *domain.Hole, metric string) (domain.HistogramChart, error) {
	chart := domain.HistogramChart{Selection: sel, Metric: metric}

	all, perMix, err := collectMetric(hole, metric)
	if err != nil {
		return domain.HistogramChart{}, err
	}
	if len(all) == 0 {
		return chart, nil
	}

	low, high := all[0], all[0]
	for _, v := range all {
		low = math.Min(low, v)
		high = math.Max(high, v)
	}

	for _, mix := range hole.MixOrder() {
		chart.Series = append(chart.Series, domain.HistogramSeries{
			Mix:   mix,
			Label: mix.String(),
			Color: mix.Color(),
			Bins:  binValues(perMix[mix], low, high),
		})
	}
	return chart, nil
}

// Box computes the five-number summary of one metric per mix.
func Box(sel domain.Selection, hole *domain.Hole, metric string) (domain.BoxChart, error) {
	chart := domain.BoxChart{Selection: sel, Metric: metric}

	_, perMix, err := collectMetric(hole, metric)
	if err != nil {
		return domain.BoxChart{}, err
	}

	for _, mix := range hole.MixOrder() {
		values := perMix[mix]
		if len(values) == 0 {
			continue
		}
		sort.Float64s(values)
		chart.Boxes = append(chart.Boxes, domain.BoxStats{
			Mix:    mix,
			Label:  mix.String(),
			Color:  mix.Color(),
			Min:    values[0],
			Q1:     quantile(values, 0.25),
			Median: quantile(values, 0.5),
			Q3:     quantile(values, 0.75),
			Max:    values[len(values)-1],
			Count:  len(values),
		})
	}
	return chart, nil
}

// collectMetric gathers the readable values of one metric, both pooled
// and keyed by mix.
func collectMetric(hole *domain.Hole, metric string) ([]float64, map[domain.Mix][]float64, error) {
	perMix := make(map[domain.Mix][]float64)
	var all []float64

	for _, s := range hole.Samples {
		v, ok := metricValue(s, metric)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
		}
		if math.IsNaN(v) {
			continue
		}
		all = append(all, v)
		perMix[s.Mix] = append(perMix[s.Mix], v)
	}
	return all, perMix, nil
}

func metricValue(s domain.Sample, metric string) (float64, bool) {
	switch metric {
	case domain.MetricFlow:
		return s.Flow, true
	case domain.MetricEffPressure:
		return s.EffPressure, true
	case domain.MetricLugeon:
		return s.Lugeon, true
	case domain.MetricMarsh:
		return s.MarshGrout, true
	}
	return 0, false
}

// binValues counts values into HistogramBins equal-width bins spanning
// [low, high]. The last bin is closed on both sides so the maximum is
// not lost to rounding. A degenerate range collapses to a single bin.
func binValues(values []float64, low, high float64) []domain.HistogramBin {
	if high == low {
		return []domain.HistogramBin{{Low: low, High: high, Count: len(values)}}
	}

	width := (high - low) / HistogramBins
	bins := make([]domain.HistogramBin, HistogramBins)
	for i := range bins {
		bins[i].Low = low + float64(i)*width
		bins[i].High = low + float64(i+1)*width
	}
	bins[len(bins)-1].High = high

	for _, v := range values {
		idx := int((v - low) / width)
		if idx >= HistogramBins {
			idx = HistogramBins - 1
		}
		bins[idx].Count++
	}
	return bins
}

// quantile interpolates linearly between order statistics, matching
// the convention of the plotting stack the front end uses. The input
// must be sorted.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	frac := pos - float64(lower)
	if lower+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}
