package domain

import (
	"fmt"
	"math"
	"time"
)

// Source column names as they appear in the sensor export headers.
// The loader matches these case-sensitively; they are part of the
// external file contract, not an internal naming choice.
const (
	ColHoleNum     = "holeNum"
	ColStageTop    = "stageTop"
	ColStageBottom = "stageBottom"
	ColTimestamp   = "TIMESTAMP"
	ColMixNum      = "mixNum"
	ColFlow        = "flow"
	ColEffPressure = "effPressure"
	ColLugeon      = "Lugeon"
	ColMarshGrout  = "vmarshGrout"
	ColVolume      = "volume"
)

// RequiredColumns lists every column the loader must find before a
// file is considered usable.
var RequiredColumns = []string{
	ColHoleNum, ColStageTop, ColStageBottom, ColTimestamp, ColMixNum,
	ColFlow, ColEffPressure, ColLugeon, ColMarshGrout, ColVolume,
}

// Sample is one sensor reading from a grout injection log. Measurement
// fields use NaN for cells that failed numeric coercion; downstream
// statistics exclude NaN values instead of erroring. Samples are
// immutable once loaded and must stay timestamp-ordered within a hole.
type Sample struct {
	Timestamp   time.Time `json:"timestamp"`
	HoleID      string    `json:"hole_id"`
	StageTop    float64   `json:"stage_top"`
	StageBottom float64   `json:"stage_bottom"`
	Mix         Mix       `json:"mix"`
	Flow        float64   `json:"flow"`
	EffPressure float64   `json:"eff_pressure"`
	Lugeon      float64   `json:"lugeon"`
	MarshGrout  float64   `json:"marsh_grout"`
	Volume      float64   `json:"volume"`
}

// HasFlow reports whether the sample carries a usable pumping reading,
// meaning the flow cell coerced to a number greater than zero.
// Zero and negative flow mark pump-off or transition noise.
func (s Sample) HasFlow() bool {
	return !math.IsNaN(s.Flow) && s.Flow > 0
}

// Hole owns the ordered sample sequence recorded for one drill hole.
// Stage bounds are taken from the first sample and assumed constant
// across the hole.
type Hole struct {
	ID          string
	StageTop    float64
	StageBottom float64
	Samples     []Sample
}

// NewHole builds a Hole from timestamp-ordered samples. The caller
// (the loader) is responsible for ordering; NewHole only rejects the
// empty case, since every hole must produce at least one segment.
func NewHole(id string, samples []Sample) (*Hole, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("hole %s has no samples", id)
	}
	return &Hole{
		ID:          id,
		StageTop:    samples[0].StageTop,
		StageBottom: samples[0].StageBottom,
		Samples:     samples,
	}, nil
}

// MixOrder returns the first-occurrence order of mix codes as they
// appear in the hole's time series.
func (h *Hole) MixOrder() []Mix {
	seen := make(map[Mix]bool, 5)
	var order []Mix
	for _, s := range h.Samples {
		if !seen[s.Mix] {
			seen[s.Mix] = true
			order = append(order, s.Mix)
		}
	}
	return order
}
