package application

import (
	"fmt"
	"strings"
	"time"

	"github.com/YoshitsuguKoike/loanstage/internal/domain/model"
)

// Application is one loan application's lifecycle state.
// Values are never mutated after construction: every change returns a new
// *Application and the previous snapshot stays valid for whoever holds it.
type Application struct {
	id           model.ApplicationID
	applicant    Applicant
	currentStage model.Stage
	history      []TransitionRecord
	createdAt    model.Timestamp
	updatedAt    model.Timestamp

	// readVersion is the history length the store held when this value was
	// loaded. Stores compare it against their own version on save.
	readVersion int
}

// New creates an application in the submitted stage with an empty history
func New(id model.ApplicationID, applicant Applicant, createdAt time.Time) (*Application, error) {
	if id.IsZero() {
		return nil, NewValidationError("id", "application ID cannot be empty")
	}
	ts := model.NewTimestampFromTime(createdAt)
	return &Application{
		id:           id,
		applicant:    applicant,
		currentStage: model.StageSubmitted,
		createdAt:    ts,
		updatedAt:    ts,
	}, nil
}

// Reconstruct rebuilds an application from stored data.
// The history must form an unbroken chain starting at submitted.
func Reconstruct(
	id model.ApplicationID,
	applicant Applicant,
	history []TransitionRecord,
	createdAt time.Time,
	updatedAt time.Time,
) (*Application, error) {
	if id.IsZero() {
		return nil, NewValidationError("id", "application ID cannot be empty")
	}

	current := model.StageSubmitted
	for i, rec := range history {
		if rec.From != current {
			return nil, fmt.Errorf("history record %d starts at %s, expected %s", i, rec.From, current)
		}
		if !rec.From.CanTransitionTo(rec.To) {
			return nil, fmt.Errorf("history record %d: %s -> %s is not a legal transition", i, rec.From, rec.To)
		}
		current = rec.To
	}

	copied := make([]TransitionRecord, len(history))
	copy(copied, history)

	return &Application{
		id:           id,
		applicant:    applicant,
		currentStage: current,
		history:      copied,
		createdAt:    model.NewTimestampFromTime(createdAt),
		updatedAt:    model.NewTimestampFromTime(updatedAt),
		readVersion:  len(copied),
	}, nil
}

// ID returns the application ID
func (a *Application) ID() model.ApplicationID {
	return a.id
}

// Applicant returns the applicant snapshot
func (a *Application) Applicant() Applicant {
	return a.applicant
}

// CurrentStage returns the current lifecycle stage
func (a *Application) CurrentStage() model.Stage {
	return a.currentStage
}

// History returns a copy of the ordered transition history
func (a *Application) History() []TransitionRecord {
	out := make([]TransitionRecord, len(a.history))
	copy(out, a.history)
	return out
}

// Version is the number of recorded transitions
func (a *Application) Version() int {
	return len(a.history)
}

// ReadVersion is the store version this value was loaded at
func (a *Application) ReadVersion() int {
	return a.readVersion
}

// PendingRecords returns the records appended since the value was loaded
func (a *Application) PendingRecords() []TransitionRecord {
	if a.readVersion >= len(a.history) {
		return nil
	}
	out := make([]TransitionRecord, len(a.history)-a.readVersion)
	copy(out, a.history[a.readVersion:])
	return out
}

// Checkpoint returns a copy whose read version matches its history,
// i.e. what the store now holds after a successful save.
func (a *Application) Checkpoint() *Application {
	next := a.clone()
	next.readVersion = len(next.history)
	return next
}

// CreatedAt returns the creation timestamp
func (a *Application) CreatedAt() model.Timestamp {
	return a.createdAt
}

// UpdatedAt returns the last update timestamp
func (a *Application) UpdatedAt() model.Timestamp {
	return a.updatedAt
}

// IsTerminal reports whether the application accepts no further transitions
func (a *Application) IsTerminal() bool {
	return a.currentStage.IsTerminal()
}

// Advance returns a new application with rec appended.
// The receiver is left untouched whether or not Advance succeeds.
func (a *Application) Advance(rec TransitionRecord) (*Application, error) {
	if rec.From != a.currentStage {
		return nil, NewIllegalTransitionError(rec.From, rec.To,
			fmt.Sprintf("application is at %s", a.currentStage))
	}
	if err := CheckRejectionNote(a.currentStage, rec.To, rec.Note); err != nil {
		return nil, err
	}
	if err := CheckTransition(a.currentStage, rec.To); err != nil {
		return nil, err
	}
	if strings.TrimSpace(rec.Actor) == "" {
		return nil, NewValidationError("actor", "actor is required")
	}

	next := a.clone()
	next.history = append(next.history, rec)
	next.currentStage = rec.To
	next.updatedAt = model.NewTimestampFromTime(rec.Timestamp)
	return next, nil
}

// CheckTransition validates a move between two stages without an application.
// A terminal source is always illegal; an unknown target is invalid input.
func CheckTransition(from, to model.Stage) error {
	if from.IsTerminal() {
		return NewIllegalTransitionError(from, to, fmt.Sprintf("%s is a terminal stage", from))
	}
	if !to.IsValid() {
		return NewValidationError("target", fmt.Sprintf("unknown stage %q", string(to)))
	}
	if from == to {
		return NewIllegalTransitionError(from, to, "target is the current stage")
	}
	if !from.CanTransitionTo(to) {
		return NewIllegalTransitionError(from, to, "target is not a legal successor")
	}
	return nil
}

// CheckRejectionNote requires a note on every rejection out of a non-terminal stage
func CheckRejectionNote(from, to model.Stage, note string) error {
	if !from.IsTerminal() && to == model.StageRejected && strings.TrimSpace(note) == "" {
		return NewValidationError("note", "a rejection requires a note")
	}
	return nil
}

// clone copies the value with its own history backing array
func (a *Application) clone() *Application {
	next := *a
	next.history = make([]TransitionRecord, len(a.history), len(a.history)+1)
	copy(next.history, a.history)
	return &next
}
