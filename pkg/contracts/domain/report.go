package domain

import (
	"time"
)

// ReportKind identifies which of the generated output tables a report
// file holds.
type ReportKind string

const (
	// ReportKindSummary is the per-segment analysis table.
	ReportKindSummary ReportKind = "summary"
	// ReportKindMixCount is the mixes-per-stage tally.
	ReportKindMixCount ReportKind = "mix_count"
)

// ReportFile describes one generated report CSV in the reports
// directory. Path is relative to that directory so clients can feed it
// straight back into the download endpoint.
type ReportFile struct {
	Name     string     `json:"name"`
	Path     string     `json:"path"`
	Kind     ReportKind `json:"kind"`
	Size     int64      `json:"size"`
	Modified time.Time  `json:"modified"`
}
