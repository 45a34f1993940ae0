package repository

import (
	"context"

	"github.com/YoshitsuguKoike/loanstage/internal/domain/model"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/model/application"
)

// ScoreOverrideRepository is the append-only override ledger keyed by application id
type ScoreOverrideRepository interface {
	// Append records a new override
	Append(ctx context.Context, o application.ScoreOverride) error

	// ListByApplication returns overrides for one application, oldest first
	ListByApplication(ctx context.Context, id model.ApplicationID) ([]application.ScoreOverride, error)
}
