package segmentation

import (
	"math"

	"groutflow/pkg/contracts/domain"
)

// TerminalWindowRows is the fixed trailing window of a hole's last
// segment, matching the closing ten minutes of recording.
const TerminalWindowRows = 10

// TerminalNote flags that the terminal segment's metric columns carry
// extrema, not means.
const TerminalNote = "Last mix: recorded minimum flow, minimum Lugeon, and maximum effective pressure over the last 10 minutes."

// SummarizeTerminal computes a hole's closing statistics over the
// trailing TerminalWindowRows rows (the whole segment when shorter):
// minimum flow, minimum Lugeon and maximum effective pressure. Unlike
// the stabilized averager there is no flow filter here; zero and
// negative flow are legitimate closing readings. The marsh value is
// the segment's very last reading, taken after the final mix change.
func SummarizeTerminal(seg *domain.MixSegment) domain.SegmentMetrics {
	window := tailWindow(seg.Samples, TerminalWindowRows)

	return domain.SegmentMetrics{
		Flow:        minOf(window, func(s domain.Sample) float64 { return s.Flow }),
		EffPressure: maxOf(window, func(s domain.Sample) float64 { return s.EffPressure }),
		Lugeon:      minOf(window, func(s domain.Sample) float64 { return s.Lugeon }),
		Marsh:       seg.FinalMarsh(),
		Note:        TerminalNote,
	}
}

func minOf(samples []domain.Sample, value func(domain.Sample) float64) float64 {
	best := math.NaN()
	for _, s := range samples {
		v := value(s)
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(best) || v < best {
			best = v
		}
	}
	return best
}

func maxOf(samples []domain.Sample, value func(domain.Sample) float64) float64 {
	best := math.NaN()
	for _, s := range samples {
		v := value(s)
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(best) || v > best {
			best = v
		}
	}
	return best
}
