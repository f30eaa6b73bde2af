// Package report folds per-segment analysis results across all holes
// of one input file into the two output tables: the per-mix-stage
// summary and the mix occurrence count.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"groutflow/internal/segmentation"
	"groutflow/pkg/contracts/domain"
)

// Summary is the assembled output of one input file.
type Summary struct {
	Rows   []domain.SummaryRow
	Counts domain.MixCount
}

// Assembler walks holes in file encounter order and their segments in
// time order, attaching stabilized averages to non-terminal segments
// and extremal closing statistics to terminal ones.
type Assembler struct {
	logger *slog.Logger
}

// NewAssembler creates an assembler. A nil logger falls back to the
// process default.
func NewAssembler(logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{logger: logger}
}

// Assemble produces one SummaryRow per mix segment plus the mix tally.
// A segment without any positive flow cannot be averaged; it still
// gets a row, with empty statistics and an explanatory note, so the
// report never silently drops a stage.
func (a *Assembler) Assemble(ctx context.Context, holes []*domain.Hole) (*Summary, error) {
	summary := &Summary{Counts: domain.NewMixCount()}

	for _, hole := range holes {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("assembly canceled: %w", ctx.Err())
		default:
		}

		segments := segmentation.Segment(hole)
		a.logger.DebugContext(ctx, "assembling hole",
			slog.String("hole", hole.ID),
			slog.Int("samples", len(hole.Samples)),
			slog.Int("segments", len(segments)))

		for i := range segments {
			seg := &segments[i]

			var metrics domain.SegmentMetrics
			if seg.Terminal {
				metrics = segmentation.SummarizeTerminal(seg)
			} else {
				var err error
				metrics, err = segmentation.StabilizedAverages(seg)
				if errors.Is(err, segmentation.ErrNoPositiveFlow) {
					a.logger.WarnContext(ctx, "segment has no usable flow data",
						slog.String("hole", hole.ID),
						slog.String("mix", seg.Mix.String()),
						slog.Int("rows", len(seg.Samples)))
					metrics = segmentation.NoUsableDataMetrics(seg)
				} else if err != nil {
					return nil, fmt.Errorf("average segment %s/%s: %w", hole.ID, seg.Mix, err)
				}
			}

			summary.Rows = append(summary.Rows, domain.NewSummaryRow(hole, seg, metrics))
			summary.Counts.Add(seg.Mix)
		}
	}

	a.logger.InfoContext(ctx, "report assembled",
		slog.Int("holes", len(holes)),
		slog.Int("rows", len(summary.Rows)),
		slog.Int("segments_counted", summary.Counts.Total()))

	return summary, nil
}
