package segmentation

import (
	"errors"
	"fmt"
	"math"

	"groutflow/pkg/contracts/domain"
)

// Window sizing for the stabilized averager. Sizes are row counts; the
// source logs one row per minute, so the note strings report them as
// minutes.
const (
	InitialWindowRows = 5
	WindowGrowthStep  = 5
)

// ErrNoPositiveFlow reports that a segment contains no sample with
// positive flow anywhere, so no stabilized average can exist at any
// window size.
var ErrNoPositiveFlow = errors.New("segment contains no positive flow samples")

// NoUsableDataNote is the report note attached to a segment whose
// stabilized average could not be computed.
const NoUsableDataNote = "No stabilized average: segment contains no positive flow samples"

// StabilizedAverages computes a non-terminal segment's reported flow,
// effective pressure and Lugeon values.
//
// Two windows are taken inside the segment: the last `before` rows and
// the first `after` rows, both starting at InitialWindowRows. Within a
// window, rows without positive flow (pump-off, transition noise,
// failed coercion) are discarded; if at least one row survives, the
// window's per-metric means are computed over surviving rows, skipping
// cells that failed coercion metric by metric. If either window has no
// surviving row, both sizes grow by WindowGrowthStep and the whole
// attempt restarts. The reported value of each metric is the equal
// weight mean of the two window means, however many rows contributed
// to each side.
//
// A window larger than the segment saturates to the whole segment.
// Growth stops once both windows already cover every row: a saturated
// attempt that still finds no positive flow can never be improved, so
// the segment is rejected with ErrNoPositiveFlow.
func StabilizedAverages(seg *domain.MixSegment) (domain.SegmentMetrics, error) {
	samples := seg.Samples
	n := len(samples)
	if n == 0 {
		return domain.SegmentMetrics{}, ErrNoPositiveFlow
	}

	before, after := InitialWindowRows, InitialWindowRows
	for {
		beforeWin := tailWindow(samples, before)
		afterWin := headWindow(samples, after)

		beforeMeans, beforeOK := flowFilteredMeans(beforeWin)
		afterMeans, afterOK := flowFilteredMeans(afterWin)

		if beforeOK && afterOK {
			return domain.SegmentMetrics{
				Flow:        (beforeMeans.flow + afterMeans.flow) / 2,
				EffPressure: (beforeMeans.effPressure + afterMeans.effPressure) / 2,
				Lugeon:      (beforeMeans.lugeon + afterMeans.lugeon) / 2,
				Marsh:       seg.StartingMarsh(),
				Note:        fmt.Sprintf("Extended period before: %d minutes, after: %d minutes", before, after),
				BeforeRows:  before,
				AfterRows:   after,
			}, nil
		}

		if before >= n && after >= n {
			return domain.SegmentMetrics{}, ErrNoPositiveFlow
		}
		before += WindowGrowthStep
		after += WindowGrowthStep
	}
}

// NoUsableDataMetrics is the fallback emitted for a segment rejected
// with ErrNoPositiveFlow: NaN statistics, the fixed note, and the
// segment's starting marsh reading, which does not depend on flow.
func NoUsableDataMetrics(seg *domain.MixSegment) domain.SegmentMetrics {
	return domain.SegmentMetrics{
		Flow:        math.NaN(),
		EffPressure: math.NaN(),
		Lugeon:      math.NaN(),
		Marsh:       seg.StartingMarsh(),
		Note:        NoUsableDataNote,
	}
}

func tailWindow(samples []domain.Sample, size int) []domain.Sample {
	if size >= len(samples) {
		return samples
	}
	return samples[len(samples)-size:]
}

func headWindow(samples []domain.Sample, size int) []domain.Sample {
	if size >= len(samples) {
		return samples
	}
	return samples[:size]
}

type windowMeans struct {
	flow        float64
	effPressure float64
	lugeon      float64
}

// flowFilteredMeans averages the three metrics over the window's
// positive-flow rows. ok is false when no row has positive flow. A
// metric cell that failed numeric coercion is excluded from that
// metric's mean only; a metric with no surviving cells comes back NaN
// and propagates into the final average.
func flowFilteredMeans(window []domain.Sample) (windowMeans, bool) {
	pumping := make([]domain.Sample, 0, len(window))
	for _, s := range window {
		if s.HasFlow() {
			pumping = append(pumping, s)
		}
	}
	if len(pumping) == 0 {
		return windowMeans{}, false
	}

	return windowMeans{
		flow:        meanOf(pumping, func(s domain.Sample) float64 { return s.Flow }),
		effPressure: meanOf(pumping, func(s domain.Sample) float64 { return s.EffPressure }),
		lugeon:      meanOf(pumping, func(s domain.Sample) float64 { return s.Lugeon }),
	}, true
}

func meanOf(samples []domain.Sample, value func(domain.Sample) float64) float64 {
	sum := 0.0
	count := 0
	for _, s := range samples {
		v := value(s)
		if math.IsNaN(v) {
			continue
		}
		sum += v
		count++
	}
	if count == 0 {
		return math.NaN()
	}
	return sum / float64(count)
}
