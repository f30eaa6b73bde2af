package segmentation

import (
	"time"

	"groutflow/pkg/contracts/domain"
)

// Segment partitions a hole's ordered samples into maximal contiguous
// runs of constant mix code, in time order. Every segment's End is the
// next segment's Start, so a gap between one mix's last sample and the
// next mix's first sample counts toward the earlier mix. The final
// segment has no observed successor; its End is its own last sample
// plus the fixed grace period, and it is flagged Terminal.
//
// A hole with a single mix code yields exactly one terminal segment.
func Segment(hole *domain.Hole) []domain.MixSegment {
	samples := hole.Samples
	if len(samples) == 0 {
		return nil
	}

	var segments []domain.MixSegment
	runStart := 0
	for i := 1; i <= len(samples); i++ {
		if i < len(samples) && samples[i].Mix == samples[runStart].Mix {
			continue
		}
		run := samples[runStart:i]
		segments = append(segments, domain.MixSegment{
			Mix:     run[0].Mix,
			Samples: run,
			Start:   run[0].Timestamp,
		})
		runStart = i
	}

	for i := range segments {
		if i < len(segments)-1 {
			segments[i].End = segments[i+1].Start
			continue
		}
		last := segments[i].Samples[len(segments[i].Samples)-1]
		segments[i].End = last.Timestamp.Add(domain.TerminalGrace)
		segments[i].Terminal = true
	}

	return segments
}

// ChangePoints returns the timestamps where the mix code changes: the
// Start of every segment after the first. The time series view draws
// its vertical markers at these instants.
func ChangePoints(segments []domain.MixSegment) []time.Time {
	if len(segments) < 2 {
		return nil
	}
	points := make([]time.Time, 0, len(segments)-1)
	for _, seg := range segments[1:] {
		points = append(points, seg.Start)
	}
	return points
}
