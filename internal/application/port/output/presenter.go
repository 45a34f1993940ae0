package output

import (
	"github.com/YoshitsuguKoike/loanstage/internal/application/dto"
)

// Presenter defines the interface for presenting output to users
// Different implementations can format output for CLI, JSON, or other formats
type Presenter interface {
	// PresentSuccess presents a successful result
	PresentSuccess(message string, data interface{}) error

	// PresentError presents an error
	PresentError(err error) error
}

// ApplicationPresenter handles loan application views
type ApplicationPresenter interface {
	Presenter

	PresentApplication(app dto.ApplicationDTO) error
	PresentTransition(res dto.TransitionResponse) error
	PresentHistory(res dto.HistoryResponse) error
	PresentList(res dto.ListApplicationsResponse) error
	PresentOverrides(applicationID string, overrides []dto.ScoreOverrideDTO) error
	PresentAssessment(res dto.AssessmentResponse) error
	PresentOffer(res dto.OfferResponse) error
}
