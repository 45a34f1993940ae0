package service

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/YoshitsuguKoike/loanstage/internal/domain/model"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/model/application"
)

// Clock returns the current time
type Clock func() time.Time

// IDSource generates unique record identifiers
type IDSource func() string

// Collection answers whether an application id is already taken
type Collection interface {
	Contains(id model.ApplicationID) bool
}

// CollectionFunc adapts a function to Collection
type CollectionFunc func(id model.ApplicationID) bool

// Contains implements Collection
func (f CollectionFunc) Contains(id model.ApplicationID) bool { return f(id) }

// ApplicationStatusMachine enforces stage progression for loan applications.
// It does no I/O: persistence and notification belong to the caller.
type ApplicationStatusMachine struct {
	now   Clock
	newID IDSource
}

// StatusMachineOption configures an ApplicationStatusMachine
type StatusMachineOption func(*ApplicationStatusMachine)

// WithClock overrides the clock used for record timestamps
func WithClock(c Clock) StatusMachineOption {
	return func(m *ApplicationStatusMachine) { m.now = c }
}

// WithIDSource overrides the record id generator
func WithIDSource(s IDSource) StatusMachineOption {
	return func(m *ApplicationStatusMachine) { m.newID = s }
}

// NewApplicationStatusMachine creates a status machine using UTC wall time and ULIDs
func NewApplicationStatusMachine(opts ...StatusMachineOption) *ApplicationStatusMachine {
	m := &ApplicationStatusMachine{
		now:   func() time.Time { return time.Now().UTC() },
		newID: NewULIDSource(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewULIDSource returns a goroutine-safe monotonic ULID generator
func NewULIDSource() IDSource {
	var mu sync.Mutex
	entropy := ulid.Monotonic(rand.Reader, 0)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
	}
}

// Create builds a new application in the submitted stage.
// collection may be nil when the caller enforces uniqueness itself.
func (m *ApplicationStatusMachine) Create(
	id string,
	applicant application.Applicant,
	collection Collection,
) (*application.Application, error) {
	appID, err := model.NewApplicationID(id)
	if err != nil {
		return nil, application.NewValidationError("id", err.Error())
	}
	if collection != nil && collection.Contains(appID) {
		return nil, application.NewValidationError("id", "application "+appID.String()+" already exists")
	}
	return application.New(appID, applicant, m.now())
}

// TransitionTo moves app to target and returns the updated application.
// app itself is never modified, whether or not the call succeeds.
func (m *ApplicationStatusMachine) TransitionTo(
	app *application.Application,
	target model.Stage,
	actor string,
	note string,
) (*application.Application, error) {
	if app == nil {
		return nil, application.NewValidationError("application", "application is required")
	}

	// Terminal stages answer IllegalTransitionError whatever the input;
	// an empty rejection note is a ValidationError from any other stage.
	note = strings.TrimSpace(note)
	if err := application.CheckRejectionNote(app.CurrentStage(), target, note); err != nil {
		return nil, err
	}
	if err := application.CheckTransition(app.CurrentStage(), target); err != nil {
		return nil, err
	}

	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, application.NewValidationError("actor", "actor is required")
	}

	return app.Advance(application.TransitionRecord{
		ID:        m.newID(),
		From:      app.CurrentStage(),
		To:        target,
		Actor:     actor,
		Timestamp: m.now(),
		Note:      note,
	})
}

// ProgressPercent maps the current stage to [0,100] along the main line.
// Rejected counts as complete.
func (m *ApplicationStatusMachine) ProgressPercent(app *application.Application) float64 {
	return StageProgress(app.CurrentStage())
}

// StageProgress is ProgressPercent for a bare stage
func StageProgress(s model.Stage) float64 {
	if s == model.StageRejected {
		return 100
	}
	idx := s.Index()
	if idx < 0 {
		return 0
	}
	return float64(idx) / float64(len(model.MainLine())-1) * 100
}

// HistoryOf returns a copy of the application's transition history
func (m *ApplicationStatusMachine) HistoryOf(app *application.Application) []application.TransitionRecord {
	return app.History()
}

// AllowedTargets lists the stages app may move to next
func (m *ApplicationStatusMachine) AllowedTargets(app *application.Application) []model.Stage {
	return app.CurrentStage().Successors()
}
