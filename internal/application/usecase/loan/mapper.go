package loan

import (
	"github.com/YoshitsuguKoike/loanstage/internal/application/dto"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/model/application"
)

func (uc *LoanUseCaseImpl) toDTO(app *application.Application) dto.ApplicationDTO {
	targets := uc.machine.AllowedTargets(app)
	allowed := make([]string, 0, len(targets))
	for _, s := range targets {
		allowed = append(allowed, s.String())
	}

	stage := app.CurrentStage()
	return dto.ApplicationDTO{
		ID:             app.ID().String(),
		ApplicantName:  app.Applicant().FullName(),
		Stage:          stage.String(),
		StageLabel:     stage.Label(),
		Tone:           string(stage.Tone()),
		Progress:       uc.machine.ProgressPercent(app),
		AllowedTargets: allowed,
		Version:        app.Version(),
		Terminal:       app.IsTerminal(),
		Applicant:      app.Applicant(),
		CreatedAt:      app.CreatedAt().Value(),
		UpdatedAt:      app.UpdatedAt().Value(),
	}
}

func toTransitionDTO(r application.TransitionRecord) dto.TransitionDTO {
	return dto.TransitionDTO{
		ID:        r.ID,
		From:      r.From.String(),
		To:        r.To.String(),
		Actor:     r.Actor,
		Timestamp: r.Timestamp,
		Note:      r.Note,
	}
}

func toOverrideDTO(o application.ScoreOverride) dto.ScoreOverrideDTO {
	return dto.ScoreOverrideDTO{
		ID:            o.ID,
		ApplicationID: o.ApplicationID,
		OverriddenBy:  o.OverriddenBy,
		PreviousScore: o.PreviousScore,
		NewScore:      o.NewScore,
		Reason:        o.Reason,
		Timestamp:     o.Timestamp,
	}
}
