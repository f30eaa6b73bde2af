package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMix(t *testing.T) {
	tests := []struct {
		name      string
		code      int
		want      Mix
		wantLabel string
		wantErr   bool
	}{
		{name: "water", code: 1, want: MixWater, wantLabel: "Water"},
		{name: "mix a", code: 2, want: MixA, wantLabel: "Mix A"},
		{name: "mix b", code: 3, want: MixB, wantLabel: "Mix B"},
		{name: "mix c", code: 4, want: MixC, wantLabel: "Mix C"},
		{name: "mix d", code: 5, want: MixD, wantLabel: "Mix D"},
		{name: "zero", code: 0, wantErr: true},
		{name: "out of range", code: 6, wantErr: true},
		{name: "negative", code: -1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseMix(tt.code)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m)
			assert.Equal(t, tt.wantLabel, m.String())
			assert.True(t, m.Valid())
		})
	}
}

func TestAllMixesOrder(t *testing.T) {
	mixes := AllMixes()
	require.Len(t, mixes, 5)
	assert.Equal(t, []Mix{MixWater, MixA, MixB, MixC, MixD}, mixes)

	// Every mix carries a distinct label and a distinct display color.
	labels := make(map[string]bool)
	colors := make(map[string]bool)
	for _, m := range mixes {
		labels[m.String()] = true
		colors[m.Color()] = true
	}
	assert.Len(t, labels, 5)
	assert.Len(t, colors, 5)
}

func TestMixUnknownFallbacks(t *testing.T) {
	unknown := Mix(9)
	assert.False(t, unknown.Valid())
	assert.Equal(t, "Mix(9)", unknown.String())
	assert.NotEmpty(t, unknown.Color())
}
