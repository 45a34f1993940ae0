package presenter

import (
	"encoding/json"
	"io"

	"github.com/YoshitsuguKoike/loanstage/internal/application/dto"
	"github.com/YoshitsuguKoike/loanstage/internal/application/port/output"
)

// JSONPresenter implements output.ApplicationPresenter for programmatic consumption.
// Every document is an envelope with "success" and either "data" or "error".
type JSONPresenter struct {
	output io.Writer
}

// NewJSONPresenter creates a new JSON presenter
func NewJSONPresenter(output io.Writer) output.ApplicationPresenter {
	return &JSONPresenter{output: output}
}

// PresentSuccess presents a successful result as JSON
func (p *JSONPresenter) PresentSuccess(message string, data interface{}) error {
	result := map[string]interface{}{
		"success": true,
		"message": message,
		"data":    data,
	}
	return p.encode(result)
}

// PresentError presents an error as JSON and returns it
func (p *JSONPresenter) PresentError(err error) error {
	result := map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	}
	if code := ErrorCode(err); code != "" {
		result["code"] = code
	}
	if encErr := p.encode(result); encErr != nil {
		return encErr
	}
	return err
}

func (p *JSONPresenter) PresentApplication(app dto.ApplicationDTO) error {
	return p.PresentSuccess("application", app)
}

func (p *JSONPresenter) PresentTransition(res dto.TransitionResponse) error {
	return p.PresentSuccess("transitioned", res)
}

func (p *JSONPresenter) PresentHistory(res dto.HistoryResponse) error {
	return p.PresentSuccess("history", res)
}

func (p *JSONPresenter) PresentList(res dto.ListApplicationsResponse) error {
	return p.PresentSuccess("applications", res)
}

func (p *JSONPresenter) PresentOverrides(applicationID string, overrides []dto.ScoreOverrideDTO) error {
	if overrides == nil {
		overrides = []dto.ScoreOverrideDTO{}
	}
	return p.PresentSuccess("score overrides", map[string]interface{}{
		"application_id": applicationID,
		"overrides":      overrides,
	})
}

func (p *JSONPresenter) PresentAssessment(res dto.AssessmentResponse) error {
	return p.PresentSuccess("assessment", res)
}

func (p *JSONPresenter) PresentOffer(res dto.OfferResponse) error {
	return p.PresentSuccess("offer", res)
}

func (p *JSONPresenter) encode(v interface{}) error {
	enc := json.NewEncoder(p.output)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
