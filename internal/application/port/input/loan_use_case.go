package input

import (
	"context"

	"github.com/YoshitsuguKoike/loanstage/internal/application/dto"
)

// LoanUseCase defines the interface for loan application use cases
type LoanUseCase interface {
	// Submit creates a new application in the submitted stage
	Submit(ctx context.Context, req dto.SubmitApplicationRequest) (*dto.ApplicationDTO, error)

	// Transition moves an application to another stage under the application lock
	Transition(ctx context.Context, req dto.TransitionRequest) (*dto.TransitionResponse, error)

	// Get retrieves an application by ID
	Get(ctx context.Context, applicationID string) (*dto.ApplicationDTO, error)

	// History retrieves the transition history of an application
	History(ctx context.Context, applicationID string) (*dto.HistoryResponse, error)

	// List lists applications with filters
	List(ctx context.Context, req dto.ListApplicationsRequest) (*dto.ListApplicationsResponse, error)

	// OverrideScore appends a score override to the ledger
	OverrideScore(ctx context.Context, req dto.OverrideScoreRequest) (*dto.ScoreOverrideDTO, error)

	// ListOverrides lists score overrides of an application, oldest first
	ListOverrides(ctx context.Context, applicationID string) ([]dto.ScoreOverrideDTO, error)

	// Assess runs the credit assessment for an application
	Assess(ctx context.Context, applicationID string) (*dto.AssessmentResponse, error)

	// GenerateOffer prices a loan offer for an approved application
	GenerateOffer(ctx context.Context, applicationID string) (*dto.OfferResponse, error)
}
