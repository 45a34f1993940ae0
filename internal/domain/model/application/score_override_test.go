package application

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScoreOverride(t *testing.T) {
	prev := 612.0
	tests := []struct {
		name      string
		by        string
		score     float64
		reason    string
		wantField string
	}{
		{"positive score", "analyst1", 720, "salary slip verified", ""},
		{"negative score", "analyst1", -15, "fraud flag", ""},
		{"zero score", "analyst1", 0, "reset", ""},
		{"missing reason", "analyst1", 700, "  ", "reason"},
		{"missing reviewer", "", 700, "ok", "overridden_by"},
		{"not a number", "analyst1", math.NaN(), "ok", "new_score"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := NewScoreOverride("01HX", "APP100", tt.by, &prev, tt.score, tt.reason, t0)
			if tt.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.score, o.NewScore)
				assert.Equal(t, 612.0, *o.PreviousScore)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}

func TestLatestScore(t *testing.T) {
	_, ok := LatestScore(nil)
	assert.False(t, ok)

	overrides := []ScoreOverride{
		{NewScore: 650, Timestamp: t0},
		{NewScore: 700, Timestamp: t0.Add(2 * time.Hour)},
		{NewScore: 680, Timestamp: t0.Add(time.Hour)},
	}
	score, ok := LatestScore(overrides)
	assert.True(t, ok)
	assert.Equal(t, 700.0, score)
}
