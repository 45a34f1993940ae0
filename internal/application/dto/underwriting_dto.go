package dto

import (
	"time"

	"github.com/YoshitsuguKoike/loanstage/internal/domain/service/underwriting"
)

// OverrideScoreRequest represents a reviewer adjusting a risk score
type OverrideScoreRequest struct {
	ApplicationID string  `json:"application_id"`
	NewScore      float64 `json:"new_score"`
	Reason        string  `json:"reason"`
	Actor         string  `json:"actor"`
}

// ScoreOverrideDTO represents one ledger entry
type ScoreOverrideDTO struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"application_id"`
	OverriddenBy  string    `json:"overridden_by"`
	PreviousScore *float64  `json:"previous_score,omitempty"`
	NewScore      float64   `json:"new_score"`
	Reason        string    `json:"reason"`
	Timestamp     time.Time `json:"timestamp"`
}

// AssessmentResponse is a credit assessment for one application
type AssessmentResponse struct {
	ApplicationID string                  `json:"application_id"`
	Stage         string                  `json:"stage"`
	Assessment    underwriting.Assessment `json:"assessment"`
}

// OfferResponse is a priced loan offer for one application
type OfferResponse struct {
	ApplicationID string                  `json:"application_id"`
	Stage         string                  `json:"stage"`
	Assessment    underwriting.Assessment `json:"assessment"`
	Offer         underwriting.Offer      `json:"offer"`
}
