// Package segmentation implements the mix-stage analysis core for
// grout injection sensor streams.
//
// A hole's timestamp-ordered samples are partitioned into contiguous
// mix segments at change points of the mix code. Non-terminal segments
// are summarized with stabilized window averages that are robust to
// the pump instability around a transition; the terminal segment of a
// hole is summarized with extremal statistics over a fixed trailing
// window instead.
//
// # Files
//
//   - segmenter.go: change-point partitioning and segment boundaries
//   - averager.go: stabilized boundary-window averaging with bounded
//     window growth
//   - terminal.go: trailing-window extrema for a hole's last segment
//
// The package is purely computational: no I/O, no logging, no
// goroutines. Callers own orchestration, error reporting and output.
package segmentation
