package service

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YoshitsuguKoike/loanstage/internal/domain/model"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/model/application"
)

func newTestMachine() *ApplicationStatusMachine {
	clock := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	seq := 0
	return NewApplicationStatusMachine(
		WithClock(func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		}),
		WithIDSource(func() string {
			seq++
			return fmt.Sprintf("rec-%03d", seq)
		}),
	)
}

func mustCreate(t *testing.T, m *ApplicationStatusMachine, id string) *application.Application {
	t.Helper()
	app, err := m.Create(id, application.Applicant{FirstName: "Asha", LastName: "Verma"}, nil)
	require.NoError(t, err)
	return app
}

func TestCreate(t *testing.T) {
	m := newTestMachine()
	existing := map[string]bool{"APP001": true}
	coll := CollectionFunc(func(id model.ApplicationID) bool { return existing[id.String()] })

	app, err := m.Create("APP002", application.Applicant{}, coll)
	require.NoError(t, err)
	assert.Equal(t, model.StageSubmitted, app.CurrentStage())
	assert.Empty(t, app.History())

	_, err = m.Create("APP001", application.Applicant{}, coll)
	assert.True(t, application.IsValidation(err))

	_, err = m.Create("  ", application.Applicant{}, coll)
	assert.True(t, application.IsValidation(err))
}

func TestTransitionTo_RejectionScenario(t *testing.T) {
	m := newTestMachine()
	app := mustCreate(t, m, "APP001")

	app, err := m.TransitionTo(app, model.StageUnderReview, "analyst1", "")
	require.NoError(t, err)
	app, err = m.TransitionTo(app, model.StageCreditAssessment, "analyst1", "")
	require.NoError(t, err)
	app, err = m.TransitionTo(app, model.StageRejected, "manager1", "FOIR exceeds threshold")
	require.NoError(t, err)

	history := m.HistoryOf(app)
	require.Len(t, history, 3)
	assert.Equal(t, model.StageRejected, app.CurrentStage())
	assert.Equal(t, 100.0, m.ProgressPercent(app))
	assert.Equal(t, "manager1", history[2].Actor)
	assert.Equal(t, "FOIR exceeds threshold", history[2].Note)
	assert.Equal(t, "rec-003", history[2].ID)

	_, err = m.TransitionTo(app, model.StageApproved, "manager1", "")
	assert.True(t, application.IsIllegalTransition(err))
	assert.Empty(t, m.AllowedTargets(app))
}

func TestTransitionTo_FullMainLine(t *testing.T) {
	m := newTestMachine()
	app := mustCreate(t, m, "APP003")

	line := model.MainLine()
	for i, stage := range line[1:] {
		var err error
		app, err = m.TransitionTo(app, stage, "officer1", "")
		require.NoError(t, err, "step to %s", stage)
		assert.Equal(t, stage, app.CurrentStage())
		assert.Len(t, app.History(), i+1)
	}
	assert.Equal(t, 100.0, m.ProgressPercent(app))

	_, err := m.TransitionTo(app, model.StageRejected, "officer1", "too late")
	assert.True(t, application.IsIllegalTransition(err))
}

func TestTransitionTo_SelfTransitionIsIllegal(t *testing.T) {
	m := newTestMachine()
	app := mustCreate(t, m, "APP004")

	for _, stage := range model.MainLine()[:len(model.MainLine())-1] {
		_, err := m.TransitionTo(app, stage, "officer1", "")
		assert.True(t, application.IsIllegalTransition(err), "self transition at %s", stage)

		app, err = m.TransitionTo(app, stage.Successors()[0], "officer1", "")
		require.NoError(t, err)
	}
}

func TestTransitionTo_RejectRequiresNote(t *testing.T) {
	m := newTestMachine()
	for _, from := range []model.Stage{model.StageSubmitted, model.StageUnderReview, model.StageCreditAssessment} {
		t.Run(string(from), func(t *testing.T) {
			app := mustCreate(t, m, "APP005")
			for app.CurrentStage() != from {
				var err error
				app, err = m.TransitionTo(app, app.CurrentStage().Successors()[0], "analyst1", "")
				require.NoError(t, err)
			}

			_, err := m.TransitionTo(app, model.StageRejected, "manager1", "")
			assert.True(t, application.IsValidation(err))

			rejected, err := m.TransitionTo(app, model.StageRejected, "manager1", "insufficient income")
			require.NoError(t, err)
			assert.Equal(t, model.StageRejected, rejected.CurrentStage())
		})
	}
}

func TestTransitionTo_EmptyRejectionNoteIsAlwaysValidation(t *testing.T) {
	m := newTestMachine()
	app := mustCreate(t, m, "APP007")

	for _, stage := range model.MainLine() {
		if stage.IsTerminal() {
			break
		}
		t.Run(string(stage), func(t *testing.T) {
			_, err := m.TransitionTo(app, model.StageRejected, "manager1", "  ")
			assert.True(t, application.IsValidation(err), "error: %v", err)
			assert.False(t, application.IsIllegalTransition(err))
		})

		var err error
		app, err = m.TransitionTo(app, stage.Successors()[0], "officer1", "")
		require.NoError(t, err)
	}

	_, err := m.TransitionTo(app, model.StageRejected, "manager1", "")
	assert.True(t, application.IsIllegalTransition(err), "disbursed is terminal")
}

func TestTransitionTo_UnknownTargetIsValidation(t *testing.T) {
	m := newTestMachine()
	app := mustCreate(t, m, "APP008")

	_, err := m.TransitionTo(app, model.Stage("bogus"), "analyst1", "")
	assert.True(t, application.IsValidation(err), "error: %v", err)
}

func TestTransitionTo_TerminalBeatsMissingInput(t *testing.T) {
	m := newTestMachine()
	app := mustCreate(t, m, "APP006")
	app, err := m.TransitionTo(app, model.StageRejected, "manager1", "duplicate application")
	require.NoError(t, err)

	_, err = m.TransitionTo(app, model.StageRejected, "", "")
	assert.True(t, application.IsIllegalTransition(err))
}

func TestTransitionTo_FailureLeavesInputUnchanged(t *testing.T) {
	m := newTestMachine()
	app := mustCreate(t, m, "APP007")
	app, err := m.TransitionTo(app, model.StageUnderReview, "analyst1", "")
	require.NoError(t, err)

	before := app.History()
	attempts := []struct {
		target model.Stage
		actor  string
		note   string
	}{
		{model.StageApproved, "analyst1", ""},
		{model.StageUnderReview, "analyst1", ""},
		{model.StageCreditAssessment, "", ""},
		{model.StageRejected, "manager1", ""},
		{model.Stage("nowhere"), "analyst1", ""},
	}
	for _, a := range attempts {
		next, err := m.TransitionTo(app, a.target, a.actor, a.note)
		assert.Error(t, err)
		assert.Nil(t, next)
	}

	assert.Empty(t, cmp.Diff(before, app.History()))
	assert.Equal(t, model.StageUnderReview, app.CurrentStage())
}

func TestTransitionTo_TrimsActorAndNote(t *testing.T) {
	m := newTestMachine()
	app := mustCreate(t, m, "APP008")
	app, err := m.TransitionTo(app, model.StageRejected, "  manager1 ", "  missing payslips  ")
	require.NoError(t, err)

	rec := app.History()[0]
	assert.Equal(t, "manager1", rec.Actor)
	assert.Equal(t, "missing payslips", rec.Note)
}

func TestHistoryOf_IsIsolated(t *testing.T) {
	m := newTestMachine()
	app := mustCreate(t, m, "APP009")
	app, err := m.TransitionTo(app, model.StageUnderReview, "analyst1", "")
	require.NoError(t, err)

	h := m.HistoryOf(app)
	h[0].To = model.StageDisbursed
	assert.Equal(t, model.StageUnderReview, m.HistoryOf(app)[0].To)
}

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		stage model.Stage
		want  float64
	}{
		{model.StageSubmitted, 0},
		{model.StageCreditAssessment, 200.0 / 7},
		{model.StageApproved, 300.0 / 7},
		{model.StageDisbursed, 100},
		{model.StageRejected, 100},
	}
	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			assert.InDelta(t, tt.want, StageProgress(tt.stage), 1e-9)
		})
	}
}

// Random walks over legal and illegal targets: every success appends exactly
// one record, every failure appends none, progress never decreases.
func TestTransitionTo_RandomWalkInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	stages := model.AllStages()
	m := newTestMachine()

	for walk := 0; walk < 200; walk++ {
		app := mustCreate(t, m, fmt.Sprintf("APP%04d", walk))
		progress := m.ProgressPercent(app)

		for step := 0; step < 20; step++ {
			target := stages[rng.Intn(len(stages))]
			note := ""
			if rng.Intn(2) == 0 {
				note = "reason"
			}

			next, err := m.TransitionTo(app, target, "actor", note)
			if err != nil {
				assert.True(t, application.IsIllegalTransition(err) || application.IsValidation(err))
				continue
			}

			require.Len(t, next.History(), len(app.History())+1)
			last := next.History()[len(next.History())-1]
			assert.Equal(t, last.To, next.CurrentStage())
			assert.GreaterOrEqual(t, m.ProgressPercent(next), progress)

			progress = m.ProgressPercent(next)
			app = next
		}
	}
}

func TestNewULIDSource_Unique(t *testing.T) {
	next := NewULIDSource()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := next()
		require.Len(t, id, 26)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
