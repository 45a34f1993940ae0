package repository

import (
	"context"
	"errors"

	"github.com/YoshitsuguKoike/loanstage/internal/domain/model"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/model/application"
)

// Common repository errors
var (
	ErrNotFound      = errors.New("application not found")
	ErrConflict      = errors.New("application was modified concurrently")
	ErrAlreadyExists = errors.New("application already exists")
)

// ApplicationRepository persists loan applications with optimistic concurrency.
// The stored version of an application is the length of its history.
type ApplicationRepository interface {
	// Create stores a new application
	// Returns ErrAlreadyExists if the id is taken
	Create(ctx context.Context, app *application.Application) error

	// Load retrieves an application with its full history
	// Returns ErrNotFound if the application does not exist
	Load(ctx context.Context, id model.ApplicationID) (*application.Application, error)

	// Save appends the application's pending records
	// Returns ErrConflict if the stored version differs from app.ReadVersion()
	Save(ctx context.Context, app *application.Application) error

	// Exists reports whether an application id is taken
	Exists(ctx context.Context, id model.ApplicationID) (bool, error)

	// List retrieves applications by filter criteria, newest first
	List(ctx context.Context, filter ApplicationFilter) ([]*application.Application, error)
}

// ApplicationFilter defines criteria for listing applications
type ApplicationFilter struct {
	Stages []model.Stage // Filter by current stages
	Search string        // Case-insensitive match on id or applicant name
	Limit  int           // Limit number of results (0 = no limit)
	Offset int           // Offset for pagination
}
