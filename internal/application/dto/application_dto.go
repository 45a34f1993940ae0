package dto

import (
	"time"

	"github.com/YoshitsuguKoike/loanstage/internal/domain/model/application"
)

// ApplicationDTO represents an application in data transfer format
type ApplicationDTO struct {
	ID             string                `json:"id"`
	ApplicantName  string                `json:"applicant_name"`
	Stage          string                `json:"stage"`
	StageLabel     string                `json:"stage_label"`
	Tone           string                `json:"tone"`
	Progress       float64               `json:"progress"`
	AllowedTargets []string              `json:"allowed_targets"`
	Version        int                   `json:"version"`
	Terminal       bool                  `json:"terminal"`
	Applicant      application.Applicant `json:"applicant"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// TransitionDTO represents one history entry
type TransitionDTO struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
}

// SubmitApplicationRequest represents a request to create an application
type SubmitApplicationRequest struct {
	ID        string                `json:"id"` // Generated when empty
	Applicant application.Applicant `json:"applicant"`
}

// TransitionRequest represents a request to move an application to another stage
type TransitionRequest struct {
	ApplicationID string `json:"application_id"`
	Target        string `json:"target"`
	Actor         string `json:"actor"` // Falls back to the configured actor provider
	Note          string `json:"note"`

	// ExpectedStage pins the stage the caller last saw. When set, a concurrent
	// change is reported as a conflict instead of being retried.
	ExpectedStage string `json:"expected_stage,omitempty"`
}

// TransitionResponse is the result of a successful transition
type TransitionResponse struct {
	Application ApplicationDTO `json:"application"`
	Transition  TransitionDTO  `json:"transition"`
	Attempts    int            `json:"attempts"`
}

// HistoryResponse lists an application's transitions
type HistoryResponse struct {
	ApplicationID string          `json:"application_id"`
	Stage         string          `json:"stage"`
	Transitions   []TransitionDTO `json:"transitions"`
}

// ListApplicationsRequest represents filter criteria for listing applications
type ListApplicationsRequest struct {
	Stages []string `json:"stages"`
	Search string   `json:"search"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
}

// ListApplicationsResponse represents a page of applications
type ListApplicationsResponse struct {
	Applications []ApplicationDTO `json:"applications"`
	Count        int              `json:"count"`
}
