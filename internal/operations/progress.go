package operations

import (
	"fmt"
	"sync"
	"time"
)

// ProgressTracker tracks per-item progress for a step that walks a
// known number of files, so status messages can carry an ETA.
type ProgressTracker struct {
	StepID    string
	Total     int
	Current   int
	StartTime time.Time
	Message   string
	mu        sync.Mutex
}

// NewProgressTracker creates a tracker for total items
func NewProgressTracker(stepID string, total int) *ProgressTracker {
	return &ProgressTracker{
		StepID:    stepID,
		Total:     total,
		StartTime: time.Now(),
	}
}

// Update sets the current progress
func (p *ProgressTracker) Update(current int, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Current = current
	p.Message = message
}

// Increment advances progress by one item
func (p *ProgressTracker) Increment(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Current++
	p.Message = message
}

// GetProgress returns the current progress state
func (p *ProgressTracker) GetProgress() (current, total int, percentage float64, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Total > 0 {
		percentage = float64(p.Current) / float64(p.Total) * 100
	}
	return p.Current, p.Total, percentage, p.Message
}

// GetETA estimates the time remaining from the rate so far
func (p *ProgressTracker) GetETA() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Current == 0 || p.Total == 0 {
		return "calculating..."
	}

	elapsed := time.Since(p.StartTime)
	rate := float64(p.Current) / elapsed.Seconds()
	if rate == 0 {
		return "calculating..."
	}

	remaining := time.Duration(float64(p.Total-p.Current) / rate * float64(time.Second))
	return formatDuration(remaining)
}

// IsComplete reports whether every item has been processed
func (p *ProgressTracker) IsComplete() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.Current >= p.Total
}

// GetElapsedTime returns the time since the tracker was created
func (p *ProgressTracker) GetElapsedTime() time.Duration {
	return time.Since(p.StartTime)
}

// GetElapsedTimeString returns the elapsed time in readable form
func (p *ProgressTracker) GetElapsedTimeString() string {
	return formatDuration(p.GetElapsedTime())
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%.0f seconds", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.1f minutes", d.Minutes())
	default:
		return fmt.Sprintf("%.1f hours", d.Hours())
	}
}
