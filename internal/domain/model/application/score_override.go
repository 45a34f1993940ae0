package application

import (
	"math"
	"strings"
	"time"
)

// ScoreOverride records a reviewer manually adjusting a computed risk score.
// It is an audit entry only; no transition rules apply.
type ScoreOverride struct {
	ID            string    `json:"id" yaml:"id"`
	ApplicationID string    `json:"application_id" yaml:"application_id"`
	OverriddenBy  string    `json:"overridden_by" yaml:"overridden_by"`
	PreviousScore *float64  `json:"previous_score,omitempty" yaml:"previous_score,omitempty"`
	NewScore      float64   `json:"new_score" yaml:"new_score"`
	Reason        string    `json:"reason" yaml:"reason"`
	Timestamp     time.Time `json:"timestamp" yaml:"timestamp"`
}

// NewScoreOverride validates and builds a score override entry
func NewScoreOverride(
	id string,
	applicationID string,
	overriddenBy string,
	previousScore *float64,
	newScore float64,
	reason string,
	at time.Time,
) (ScoreOverride, error) {
	if strings.TrimSpace(applicationID) == "" {
		return ScoreOverride{}, NewValidationError("application_id", "application ID cannot be empty")
	}
	if strings.TrimSpace(overriddenBy) == "" {
		return ScoreOverride{}, NewValidationError("overridden_by", "reviewer is required")
	}
	if strings.TrimSpace(reason) == "" {
		return ScoreOverride{}, NewValidationError("reason", "an override requires a reason")
	}
	if math.IsNaN(newScore) || math.IsInf(newScore, 0) {
		return ScoreOverride{}, NewValidationError("new_score", "score must be a finite number")
	}

	return ScoreOverride{
		ID:            id,
		ApplicationID: applicationID,
		OverriddenBy:  strings.TrimSpace(overriddenBy),
		PreviousScore: previousScore,
		NewScore:      newScore,
		Reason:        strings.TrimSpace(reason),
		Timestamp:     at.UTC(),
	}, nil
}

// LatestScore returns the most recent override score, if any
func LatestScore(overrides []ScoreOverride) (float64, bool) {
	if len(overrides) == 0 {
		return 0, false
	}
	latest := overrides[0]
	for _, o := range overrides[1:] {
		if !o.Timestamp.Before(latest.Timestamp) {
			latest = o
		}
	}
	return latest.NewScore, true
}
