package chartdata

import (
	"math"

	"groutflow/internal/segmentation"
	"groutflow/pkg/contracts/domain"
)

// Axis labels shared by the scatter view and the front end.
const (
	flowAxisLabel     = "Flow (L/min)"
	pressureAxisLabel = "Effective Pressure (bar)"
)

// Timeseries builds the time plot for one hole: flow and effective
// pressure traces split per mix, vertical markers at mix change
// points, and point markers wherever the marsh reading changed.
func Timeseries(sel domain.Selection, hole *domain.Hole) domain.TimeseriesChart {
	return domain.TimeseriesChart{
		Selection:    sel,
		Flow:         seriesPerMix(hole, func(s domain.Sample) float64 { return s.Flow }),
		EffPressure:  seriesPerMix(hole, func(s domain.Sample) float64 { return s.EffPressure }),
		MixChanges:   segmentation.ChangePoints(segmentation.Segment(hole)),
		MarshChanges: marshChanges(hole.Samples),
	}
}

// Scatter builds the flow vs effective pressure point cloud, one group
// per mix. Points missing either coordinate are dropped.
func Scatter(sel domain.Selection, hole *domain.Hole) domain.ScatterChart {
	chart := domain.ScatterChart{
		Selection: sel,
		XLabel:    flowAxisLabel,
		YLabel:    pressureAxisLabel,
	}

	for _, mix := range hole.MixOrder() {
		group := domain.ScatterGroup{
			Mix:   mix,
			Label: mix.String(),
			Color: mix.Color(),
		}
		for _, s := range hole.Samples {
			if s.Mix != mix || math.IsNaN(s.Flow) || math.IsNaN(s.EffPressure) {
				continue
			}
			group.Points = append(group.Points, domain.XYPoint{X: s.Flow, Y: s.EffPressure})
		}
		chart.Groups = append(chart.Groups, group)
	}
	return chart
}

// seriesPerMix splits one measurement into per-mix time series, in the
// order the mixes first appear in the hole. NaN readings are dropped.
func seriesPerMix(hole *domain.Hole, value func(domain.Sample) float64) []domain.MixSeries {
	var series []domain.MixSeries
	for _, mix := range hole.MixOrder() {
		s := domain.MixSeries{
			Mix:   mix,
			Label: mix.String(),
			Color: mix.Color(),
		}
		for _, sample := range hole.Samples {
			if sample.Mix != mix {
				continue
			}
			v := value(sample)
			if math.IsNaN(v) {
				continue
			}
			s.Points = append(s.Points, domain.TimePoint{T: sample.Timestamp, V: v})
		}
		series = append(series, s)
	}
	return series
}

// marshChanges returns the samples where the marsh reading differs
// from the previous readable one. The first readable reading counts as
// a change so the initial viscosity gets a marker too.
func marshChanges(samples []domain.Sample) []domain.MarshChange {
	var changes []domain.MarshChange
	previous := math.NaN()
	for _, s := range samples {
		if math.IsNaN(s.MarshGrout) {
			continue
		}
		if math.IsNaN(previous) || s.MarshGrout != previous {
			changes = append(changes, domain.MarshChange{T: s.Timestamp, Marsh: s.MarshGrout})
		}
		previous = s.MarshGrout
	}
	return changes
}
