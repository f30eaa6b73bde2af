package segmentation

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groutflow/pkg/contracts/domain"
)

func segmentOf(samples []domain.Sample) *domain.MixSegment {
	return &domain.MixSegment{
		Mix:     samples[0].Mix,
		Samples: samples,
		Start:   samples[0].Timestamp,
	}
}

func TestStabilizedAveragesInitialWindows(t *testing.T) {
	// Twelve pumping rows. Before window = rows 8..12, after window =
	// rows 1..5, both at the initial size of five.
	samples := make([]domain.Sample, 0, 12)
	for i := 0; i < 12; i++ {
		s := sampleAt(i, domain.MixA, float64(10+i))
		s.EffPressure = float64(2 + i)
		s.Lugeon = float64(i)
		samples = append(samples, s)
	}

	metrics, err := StabilizedAverages(segmentOf(samples))
	require.NoError(t, err)

	beforeFlow := (17.0 + 18 + 19 + 20 + 21) / 5
	afterFlow := (10.0 + 11 + 12 + 13 + 14) / 5
	assert.InDelta(t, (beforeFlow+afterFlow)/2, metrics.Flow, 1e-9)

	beforePressure := (9.0 + 10 + 11 + 12 + 13) / 5
	afterPressure := (2.0 + 3 + 4 + 5 + 6) / 5
	assert.InDelta(t, (beforePressure+afterPressure)/2, metrics.EffPressure, 1e-9)

	beforeLugeon := (7.0 + 8 + 9 + 10 + 11) / 5
	afterLugeon := (0.0 + 1 + 2 + 3 + 4) / 5
	assert.InDelta(t, (beforeLugeon+afterLugeon)/2, metrics.Lugeon, 1e-9)

	assert.Equal(t, 5, metrics.BeforeRows)
	assert.Equal(t, 5, metrics.AfterRows)
	assert.Equal(t, "Extended period before: 5 minutes, after: 5 minutes", metrics.Note)
	assert.Equal(t, samples[0].MarshGrout, metrics.Marsh)
}

func TestStabilizedAveragesExcludesPumpOffRows(t *testing.T) {
	// The after window holds two pump-off rows; only the pumping rows
	// contribute to its means.
	samples := []domain.Sample{
		sampleAt(0, domain.MixA, 0),
		sampleAt(1, domain.MixA, -1),
		sampleAt(2, domain.MixA, 6),
		sampleAt(3, domain.MixA, 8),
		sampleAt(4, domain.MixA, 10),
		sampleAt(5, domain.MixA, 12),
		sampleAt(6, domain.MixA, 14),
		sampleAt(7, domain.MixA, 16),
		sampleAt(8, domain.MixA, 18),
		sampleAt(9, domain.MixA, 20),
	}

	metrics, err := StabilizedAverages(segmentOf(samples))
	require.NoError(t, err)

	afterFlow := (6.0 + 8 + 10) / 3
	beforeFlow := (12.0 + 14 + 16 + 18 + 20) / 5
	assert.InDelta(t, (beforeFlow+afterFlow)/2, metrics.Flow, 1e-9)
	assert.Equal(t, 5, metrics.BeforeRows)
}

func TestStabilizedAveragesEqualWeightOfWindows(t *testing.T) {
	// One valid row on the before side against four on the after side:
	// the two window means still weigh equally.
	samples := []domain.Sample{
		sampleAt(0, domain.MixA, 2),
		sampleAt(1, domain.MixA, 2),
		sampleAt(2, domain.MixA, 2),
		sampleAt(3, domain.MixA, 2),
		sampleAt(4, domain.MixA, 0),
		sampleAt(5, domain.MixA, 0),
		sampleAt(6, domain.MixA, 0),
		sampleAt(7, domain.MixA, 0),
		sampleAt(8, domain.MixA, 0),
		sampleAt(9, domain.MixA, 10),
	}

	metrics, err := StabilizedAverages(segmentOf(samples))
	require.NoError(t, err)

	// before = rows 6..10 -> only the final row pumps, mean 10.
	// after = rows 1..5 -> four pumping rows, mean 2.
	assert.InDelta(t, 6.0, metrics.Flow, 1e-9)
}

func TestStabilizedAveragesGrowsWindows(t *testing.T) {
	// First five and last five rows are all pump-off; rows 6..10 pump.
	// The 5/5 attempt fails on both sides and the 10/10 attempt
	// succeeds.
	samples := make([]domain.Sample, 0, 15)
	for i := 0; i < 15; i++ {
		flow := 0.0
		if i >= 5 && i < 10 {
			flow = 20
		}
		samples = append(samples, sampleAt(i, domain.MixB, flow))
	}

	metrics, err := StabilizedAverages(segmentOf(samples))
	require.NoError(t, err)

	assert.Equal(t, 10, metrics.BeforeRows)
	assert.Equal(t, 10, metrics.AfterRows)
	assert.Equal(t, "Extended period before: 10 minutes, after: 10 minutes", metrics.Note)
	assert.InDelta(t, 20.0, metrics.Flow, 1e-9)

	// Grown sizes stay multiples of the growth step above the initial
	// size.
	assert.Zero(t, (metrics.BeforeRows-InitialWindowRows)%WindowGrowthStep)
}

func TestStabilizedAveragesShortSegmentSaturates(t *testing.T) {
	// Three rows against a five-row window: both windows are the whole
	// segment and the result is the plain segment mean.
	samples := []domain.Sample{
		sampleAt(0, domain.MixWater, 3),
		sampleAt(1, domain.MixWater, 6),
		sampleAt(2, domain.MixWater, 9),
	}

	metrics, err := StabilizedAverages(segmentOf(samples))
	require.NoError(t, err)
	assert.InDelta(t, 6.0, metrics.Flow, 1e-9)
	assert.Equal(t, InitialWindowRows, metrics.BeforeRows)
	assert.Equal(t, InitialWindowRows, metrics.AfterRows)
}

func TestStabilizedAveragesSkipsUnparseableCells(t *testing.T) {
	samples := []domain.Sample{
		sampleAt(0, domain.MixA, 10),
		sampleAt(1, domain.MixA, 10),
		sampleAt(2, domain.MixA, 10),
	}
	samples[1].Lugeon = math.NaN()

	metrics, err := StabilizedAverages(segmentOf(samples))
	require.NoError(t, err)

	// The NaN cell drops out of the Lugeon mean only.
	assert.InDelta(t, 1.5, metrics.Lugeon, 1e-9)
	assert.InDelta(t, 10.0, metrics.Flow, 1e-9)
}

func TestStabilizedAveragesNoPositiveFlow(t *testing.T) {
	tests := []struct {
		name  string
		flows []float64
	}{
		{name: "all zero", flows: []float64{0, 0, 0, 0}},
		{name: "zeros and negatives", flows: []float64{0, -2, 0, -1, 0, 0, 0}},
		{name: "all unparseable", flows: []float64{math.NaN(), math.NaN()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := make([]domain.Sample, 0, len(tt.flows))
			for i, f := range tt.flows {
				samples = append(samples, sampleAt(i, domain.MixC, f))
			}

			seg := segmentOf(samples)
			_, err := StabilizedAverages(seg)
			require.ErrorIs(t, err, ErrNoPositiveFlow)

			fallback := NoUsableDataMetrics(seg)
			assert.True(t, math.IsNaN(fallback.Flow))
			assert.True(t, math.IsNaN(fallback.EffPressure))
			assert.True(t, math.IsNaN(fallback.Lugeon))
			assert.Equal(t, NoUsableDataNote, fallback.Note)
			assert.Equal(t, samples[0].MarshGrout, fallback.Marsh)
		})
	}
}

func BenchmarkStabilizedAverages(b *testing.B) {
	samples := make([]domain.Sample, 0, 600)
	for i := 0; i < 600; i++ {
		samples = append(samples, sampleAt(i, domain.MixA, float64(5+i%40)))
	}
	seg := segmentOf(samples)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := StabilizedAverages(seg); err != nil {
			b.Fatal(err)
		}
	}
}

func ExampleStabilizedAverages() {
	samples := []domain.Sample{
		sampleAt(0, domain.MixA, 8),
		sampleAt(1, domain.MixA, 10),
		sampleAt(2, domain.MixA, 12),
	}
	metrics, _ := StabilizedAverages(segmentOf(samples))
	fmt.Printf("flow %.1f (%s)\n", metrics.Flow, metrics.Note)
	// Output: flow 10.0 (Extended period before: 5 minutes, after: 5 minutes)
}
