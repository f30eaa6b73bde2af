package domain

import (
	"math"
	"time"
)

// TerminalGrace is the fixed grace period appended to a hole's last
// segment, whose end is never observed as a next mix's first sample.
const TerminalGrace = 5 * time.Minute

// MixSegment is a maximal contiguous run of samples sharing one mix
// code within a hole. Start is the run's first sample timestamp. End
// is the next segment's Start, or the run's own last timestamp plus
// TerminalGrace when the segment is terminal, so a gap between one
// mix's last sample and the next mix's first is attributed to the
// earlier mix.
type MixSegment struct {
	Mix      Mix
	Samples  []Sample
	Start    time.Time
	End      time.Time
	Terminal bool
}

// DurationMinutes returns the segment length in minutes.
func (ms *MixSegment) DurationMinutes() float64 {
	return ms.End.Sub(ms.Start).Minutes()
}

// StartingMarsh is the first sample's marsh funnel reading, reported
// for non-terminal segments.
func (ms *MixSegment) StartingMarsh() float64 {
	if len(ms.Samples) == 0 {
		return math.NaN()
	}
	return ms.Samples[0].MarshGrout
}

// FinalMarsh is the last sample's marsh funnel reading, reported for
// the terminal segment.
func (ms *MixSegment) FinalMarsh() float64 {
	if len(ms.Samples) == 0 {
		return math.NaN()
	}
	return ms.Samples[len(ms.Samples)-1].MarshGrout
}

// InjectedVolume is the cumulative-volume delta across the segment.
func (ms *MixSegment) InjectedVolume() float64 {
	if len(ms.Samples) == 0 {
		return math.NaN()
	}
	return ms.Samples[len(ms.Samples)-1].Volume - ms.Samples[0].Volume
}

// CumulativeVolume is the cumulative volume at the segment's last
// sample.
func (ms *MixSegment) CumulativeVolume() float64 {
	if len(ms.Samples) == 0 {
		return math.NaN()
	}
	return ms.Samples[len(ms.Samples)-1].Volume
}

// SegmentMetrics carries the three reported statistics for a segment
// plus the marsh value and the note describing how they were derived.
// For non-terminal segments the statistics are stabilized window means
// and BeforeRows/AfterRows record the final window sizes; for the
// terminal segment they are extrema (min flow, max effective pressure,
// min Lugeon) and the window fields are zero.
type SegmentMetrics struct {
	Flow        float64
	EffPressure float64
	Lugeon      float64
	Marsh       float64
	Note        string
	BeforeRows  int
	AfterRows   int
}
