package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSelectionName(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     Selection
		wantErr  bool
	}{
		{
			name:     "standard export name",
			filename: "P0012_S3_injection_log.xlsx",
			want:     Selection{HoleID: "P0012", Order: "P", Stage: 3, Filename: "P0012_S3_injection_log.xlsx"},
		},
		{
			name:     "path is reduced to base name",
			filename: "/data/uploads/Q0205_S12.csv",
			want:     Selection{HoleID: "Q0205", Order: "Q", Stage: 12, Filename: "Q0205_S12.csv"},
		},
		{
			name:     "minimal name",
			filename: "A1_S1",
			want:     Selection{HoleID: "A1", Order: "A", Stage: 1, Filename: "A1_S1"},
		},
		{name: "no stage token", filename: "P0012.xlsx", wantErr: true},
		{name: "no leading letter", filename: "0012_S3.xlsx", wantErr: true},
		{name: "stage without number", filename: "P0012_S.xlsx", wantErr: true},
		{name: "unrelated file", filename: "grout_injection_summary.csv", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := ParseSelectionName(tt.filename)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, sel)
		})
	}
}

func TestStageLabel(t *testing.T) {
	sel := Selection{HoleID: "P0012", Order: "P", Stage: 3, Filename: "P0012_S3.xlsx"}
	assert.Equal(t, "S3", sel.StageLabel())
}
