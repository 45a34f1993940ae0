package loan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/YoshitsuguKoike/loanstage/internal/application/dto"
	"github.com/YoshitsuguKoike/loanstage/internal/application/port/output"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/model"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/model/application"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/model/lock"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/repository"
)

// ==================== Test doubles ====================

type storedApp struct {
	app     *application.Application
	history []application.TransitionRecord
}

// memApplications is an in-memory ApplicationRepository with version checks
type memApplications struct {
	mu         sync.Mutex
	apps       map[string]storedApp
	saves      int
	beforeSave func(n int) // called with the save count before each save
}

func newMemApplications() *memApplications {
	return &memApplications{apps: make(map[string]storedApp)}
}

func (m *memApplications) Create(ctx context.Context, app *application.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.apps[app.ID().String()]; ok {
		return repository.ErrAlreadyExists
	}
	m.apps[app.ID().String()] = storedApp{app: app, history: app.History()}
	return nil
}

func (m *memApplications) Load(ctx context.Context, id model.ApplicationID) (*application.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.apps[id.String()]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return application.Reconstruct(s.app.ID(), s.app.Applicant(), s.history,
		s.app.CreatedAt().Value(), s.app.UpdatedAt().Value())
}

func (m *memApplications) Save(ctx context.Context, app *application.Application) error {
	m.mu.Lock()
	m.saves++
	hook, n := m.beforeSave, m.saves
	m.mu.Unlock()
	if hook != nil {
		hook(n)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.apps[app.ID().String()]
	if !ok {
		return repository.ErrNotFound
	}
	if len(s.history) != app.ReadVersion() {
		return repository.ErrConflict
	}
	m.apps[app.ID().String()] = storedApp{app: app, history: append(s.history, app.PendingRecords()...)}
	return nil
}

func (m *memApplications) Exists(ctx context.Context, id model.ApplicationID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.apps[id.String()]
	return ok, nil
}

func (m *memApplications) List(ctx context.Context, f repository.ApplicationFilter) ([]*application.Application, error) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.apps))
	for id := range m.apps {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	sort.Strings(ids)

	var out []*application.Application
	for _, id := range ids {
		appID, _ := model.NewApplicationID(id)
		app, err := m.Load(ctx, appID)
		if err != nil {
			return nil, err
		}
		if len(f.Stages) > 0 && !containsStage(f.Stages, app.CurrentStage()) {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(app.ID().String()+" "+app.Applicant().FullName()), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, app)
	}
	return out, nil
}

func containsStage(stages []model.Stage, s model.Stage) bool {
	for _, x := range stages {
		if x == s {
			return true
		}
	}
	return false
}

type memOverrides struct {
	mu      sync.Mutex
	entries []application.ScoreOverride
}

func (m *memOverrides) Append(ctx context.Context, o application.ScoreOverride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, o)
	return nil
}

func (m *memOverrides) ListByApplication(ctx context.Context, id model.ApplicationID) ([]application.ScoreOverride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []application.ScoreOverride
	for _, e := range m.entries {
		if e.ApplicationID == id.String() {
			out = append(out, e)
		}
	}
	return out, nil
}

type passthroughTx struct{}

func (passthroughTx) InTransaction(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type memLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	acquired int
}

type memLease struct {
	l  *memLocker
	id string
}

func (l *memLease) Owner() string { return "owner-" + l.id }

func (l *memLease) Release(ctx context.Context) error {
	l.l.mu.Lock()
	defer l.l.mu.Unlock()
	delete(l.l.held, l.id)
	return nil
}

func (m *memLocker) Acquire(ctx context.Context, id string) (output.Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[id] {
		return nil, fmt.Errorf("application %s: %w", id, lock.ErrLockHeld)
	}
	m.held[id] = true
	m.acquired++
	return &memLease{l: m, id: id}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []output.TransitionEvent
	err    error
}

func (n *recordingNotifier) Notify(ctx context.Context, e output.TransitionEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return n.err
}

type countingMetrics struct {
	mu       sync.Mutex
	outcomes []string
	retries  int
}

func (c *countingMetrics) TransitionAttempted(from, to, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, outcome)
}
func (c *countingMetrics) ConflictRetried() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retries++
}
func (c *countingMetrics) ApplicationSubmitted() {}
func (c *countingMetrics) ScoreOverridden()      {}

type staticActor string

func (a staticActor) Actor(context.Context) (string, error) { return string(a), nil }

// ==================== Fixture ====================

type fixture struct {
	uc        *LoanUseCaseImpl
	apps      *memApplications
	overrides *memOverrides
	locker    *memLocker
	notifier  *recordingNotifier
	metrics   *countingMetrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		apps:      newMemApplications(),
		overrides: &memOverrides{},
		locker:    &memLocker{held: make(map[string]bool)},
		notifier:  &recordingNotifier{},
		metrics:   &countingMetrics{},
	}
	clock := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	seq := 0
	f.uc = NewLoanUseCaseImpl(Dependencies{
		Applications:       f.apps,
		Overrides:          f.overrides,
		TxManager:          passthroughTx{},
		Locker:             f.locker,
		Notifier:           f.notifier,
		Actors:             staticActor("system"),
		Metrics:            f.metrics,
		Logger:             zap.NewNop(),
		MaxConflictRetries: 2,
		Clock: func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		},
		IDSource: func() string {
			seq++
			return fmt.Sprintf("ID%04d", seq)
		},
	})
	return f
}

func testApplicant() application.Applicant {
	score := 760
	return application.Applicant{
		FirstName:              "Asha",
		LastName:               "Verma",
		DateOfBirth:            "1990-05-14",
		Email:                  "asha.verma@example.com",
		Mobile:                 "9876543210",
		AddressLine1:           "12 MG Road",
		City:                   "Bengaluru",
		State:                  "Karnataka",
		PostalCode:             "560001",
		NationalIDType:         application.NationalIDAadhaar,
		NationalIDNumber:       "123412341234",
		EmploymentType:         "salaried",
		MonthlyIncome:          decimal.NewFromInt(85000),
		LoanProduct:            "personal",
		LoanAmount:             decimal.NewFromInt(300000),
		TenureMonths:           36,
		ExistingEMIObligations: decimal.NewFromInt(5000),
		BureauScore:            &score,
		Consent:                true,
	}
}

func (f *fixture) submit(t *testing.T, id string) {
	t.Helper()
	_, err := f.uc.Submit(context.Background(), dto.SubmitApplicationRequest{ID: id, Applicant: testApplicant()})
	require.NoError(t, err)
}

func (f *fixture) move(t *testing.T, id, target, actor, note string) *dto.TransitionResponse {
	t.Helper()
	res, err := f.uc.Transition(context.Background(), dto.TransitionRequest{
		ApplicationID: id, Target: target, Actor: actor, Note: note,
	})
	require.NoError(t, err)
	return res
}

// ==================== Tests ====================

func TestSubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	app, err := f.uc.Submit(ctx, dto.SubmitApplicationRequest{ID: "APP001", Applicant: testApplicant()})
	require.NoError(t, err)
	assert.Equal(t, "APP001", app.ID)
	assert.Equal(t, "submitted", app.Stage)
	assert.Equal(t, "Asha Verma", app.ApplicantName)
	assert.Equal(t, 0.0, app.Progress)
	assert.Equal(t, []string{"under-review", "rejected"}, app.AllowedTargets)

	_, err = f.uc.Submit(ctx, dto.SubmitApplicationRequest{ID: "APP001", Applicant: testApplicant()})
	assert.True(t, application.IsValidation(err), "duplicate id: %v", err)

	generated, err := f.uc.Submit(ctx, dto.SubmitApplicationRequest{Applicant: testApplicant()})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(generated.ID, "APP-"))

	bad := testApplicant()
	bad.Email = "nope"
	_, err = f.uc.Submit(ctx, dto.SubmitApplicationRequest{ID: "APP003", Applicant: bad})
	assert.True(t, application.IsValidation(err))
}

func TestTransition_RejectionScenario(t *testing.T) {
	f := newFixture(t)
	f.submit(t, "APP001")

	f.move(t, "APP001", "under-review", "analyst1", "")
	f.move(t, "APP001", "credit-assessment", "analyst1", "")
	res := f.move(t, "APP001", "rejected", "manager1", "FOIR exceeds threshold")

	assert.Equal(t, "rejected", res.Application.Stage)
	assert.Equal(t, 100.0, res.Application.Progress)
	assert.True(t, res.Application.Terminal)
	assert.Equal(t, "FOIR exceeds threshold", res.Transition.Note)

	hist, err := f.uc.History(context.Background(), "APP001")
	require.NoError(t, err)
	assert.Len(t, hist.Transitions, 3)

	_, err = f.uc.Transition(context.Background(), dto.TransitionRequest{
		ApplicationID: "APP001", Target: "approved", Actor: "manager1",
	})
	assert.True(t, application.IsIllegalTransition(err))

	require.Len(t, f.notifier.events, 3)
	assert.Equal(t, "credit-assessment", f.notifier.events[2].From)
	assert.Equal(t, "rejected", f.notifier.events[2].To)
	assert.Empty(t, f.locker.held, "lock must be released after every call")
}

func TestTransition_FallsBackToActorProvider(t *testing.T) {
	f := newFixture(t)
	f.submit(t, "APP001")

	res := f.move(t, "APP001", "under-review", "", "")
	assert.Equal(t, "system", res.Transition.Actor)
}

func TestTransition_InputErrors(t *testing.T) {
	f := newFixture(t)
	f.submit(t, "APP001")
	ctx := context.Background()

	tests := []struct {
		name  string
		req   dto.TransitionRequest
		check func(error) bool
	}{
		{"unknown target", dto.TransitionRequest{ApplicationID: "APP001", Target: "limbo"}, application.IsValidation},
		{"missing id", dto.TransitionRequest{Target: "under-review"}, application.IsValidation},
		{"not found", dto.TransitionRequest{ApplicationID: "APP404", Target: "under-review"},
			func(err error) bool { return errors.Is(err, repository.ErrNotFound) }},
		{"reject without note", dto.TransitionRequest{ApplicationID: "APP001", Target: "rejected"}, application.IsValidation},
		{"skip stage", dto.TransitionRequest{ApplicationID: "APP001", Target: "approved"}, application.IsIllegalTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.uc.Transition(ctx, tt.req)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}

	hist, err := f.uc.History(ctx, "APP001")
	require.NoError(t, err)
	assert.Empty(t, hist.Transitions, "failed calls must not append")
	assert.Empty(t, f.notifier.events)
}

func TestTransition_LockHeld(t *testing.T) {
	f := newFixture(t)
	f.submit(t, "APP001")
	f.locker.held["APP001"] = true

	_, err := f.uc.Transition(context.Background(), dto.TransitionRequest{
		ApplicationID: "APP001", Target: "under-review", Actor: "analyst1",
	})
	assert.ErrorIs(t, err, lock.ErrLockHeld)
	assert.Contains(t, f.metrics.outcomes, output.OutcomeLockHeld)
}

func TestTransition_RetryReportsIllegalAfterConcurrentRejection(t *testing.T) {
	f := newFixture(t)
	f.submit(t, "APP002")
	f.move(t, "APP002", "under-review", "analyst1", "")
	ctx := context.Background()

	// The concurrent writer records a rejection; our retry then fails as illegal.
	f.apps.beforeSave = func(n int) {
		if n != 2 {
			return
		}
		stale, err := f.apps.Load(ctx, mustID(t, "APP002"))
		require.NoError(t, err)
		next, err := f.uc.machine.TransitionTo(stale, model.StageRejected, "manager1", "duplicate")
		require.NoError(t, err)
		require.NoError(t, f.apps.Save(ctx, next))
	}

	_, err := f.uc.Transition(ctx, dto.TransitionRequest{
		ApplicationID: "APP002", Target: "credit-assessment", Actor: "analyst2",
	})
	assert.True(t, application.IsIllegalTransition(err), "got %v", err)
	assert.Equal(t, 1, f.metrics.retries)

	hist, err := f.uc.History(ctx, "APP002")
	require.NoError(t, err)
	require.Len(t, hist.Transitions, 2)
	assert.Equal(t, "rejected", hist.Transitions[1].To)
}

func TestTransition_RetryAppliesOnFreshState(t *testing.T) {
	f := newFixture(t)
	f.submit(t, "APP002")
	ctx := context.Background()

	// A writer bypassing the lock moves the application to under-review between
	// our load and save; the retry reloads and rejects from there.
	conflicts := 0
	f.apps.beforeSave = func(n int) {
		if conflicts > 0 {
			return
		}
		conflicts++
		stale, err := f.apps.Load(ctx, mustID(t, "APP002"))
		require.NoError(t, err)
		next, err := f.uc.machine.TransitionTo(stale, model.StageUnderReview, "analystA", "")
		require.NoError(t, err)
		require.NoError(t, f.apps.Save(ctx, next))
	}

	_, err := f.uc.Transition(ctx, dto.TransitionRequest{
		ApplicationID: "APP002", Target: "rejected", Actor: "manager1", Note: "incomplete KYC",
	})
	require.NoError(t, err, "rejected is legal from under-review too, so the retry lands")

	hist, err := f.uc.History(ctx, "APP002")
	require.NoError(t, err)
	require.Len(t, hist.Transitions, 2)
	assert.Equal(t, "under-review", hist.Transitions[1].From)
	assert.Equal(t, 1, f.metrics.retries)
}

func TestTransition_ExpectedStageSurfacesConflict(t *testing.T) {
	f := newFixture(t)
	f.submit(t, "APP002")
	ctx := context.Background()

	f.move(t, "APP002", "under-review", "analystA", "")

	_, err := f.uc.Transition(ctx, dto.TransitionRequest{
		ApplicationID: "APP002", Target: "under-review", Actor: "analystB", ExpectedStage: "submitted",
	})
	assert.ErrorIs(t, err, repository.ErrConflict)

	hist, err := f.uc.History(ctx, "APP002")
	require.NoError(t, err)
	assert.Len(t, hist.Transitions, 1)
}

func TestTransition_ExpectedStageConflictOnSave(t *testing.T) {
	f := newFixture(t)
	f.submit(t, "APP002")
	ctx := context.Background()

	f.apps.beforeSave = func(n int) {
		if n != 1 {
			return
		}
		stale, _ := f.apps.Load(ctx, mustID(t, "APP002"))
		next, _ := f.uc.machine.TransitionTo(stale, model.StageUnderReview, "analystA", "")
		require.NoError(t, f.apps.Save(ctx, next))
	}

	_, err := f.uc.Transition(ctx, dto.TransitionRequest{
		ApplicationID: "APP002", Target: "under-review", Actor: "analystB", ExpectedStage: "submitted",
	})
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.Equal(t, 0, f.metrics.retries)
}

func TestTransition_GivesUpAfterMaxRetries(t *testing.T) {
	f := newFixture(t)
	f.submit(t, "APP002")
	ctx := context.Background()

	// Every save races with a writer that moves the application forward one step
	racing := false
	f.apps.beforeSave = func(n int) {
		if racing {
			return
		}
		racing = true
		defer func() { racing = false }()

		stale, err := f.apps.Load(ctx, mustID(t, "APP002"))
		require.NoError(t, err)
		next, err := f.uc.machine.TransitionTo(stale, stale.CurrentStage().Successors()[0], "racer", "")
		require.NoError(t, err)
		require.NoError(t, f.apps.Save(ctx, next))
	}

	_, err := f.uc.Transition(ctx, dto.TransitionRequest{
		ApplicationID: "APP002", Target: "rejected", Actor: "manager1", Note: "fraud",
	})
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.Equal(t, 2, f.metrics.retries)

	app, err := f.uc.Get(ctx, "APP002")
	require.NoError(t, err)
	assert.Equal(t, "approved", app.Stage, "only the racer's writes landed")
}

func TestTransition_NotificationFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("broker unavailable")
	f.submit(t, "APP001")

	res := f.move(t, "APP001", "under-review", "analyst1", "")
	assert.Equal(t, "under-review", res.Application.Stage)
}

func TestList(t *testing.T) {
	f := newFixture(t)
	f.submit(t, "APP001")
	f.submit(t, "APP002")
	f.move(t, "APP002", "under-review", "analyst1", "")
	ctx := context.Background()

	all, err := f.uc.List(ctx, dto.ListApplicationsRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, all.Count)

	review, err := f.uc.List(ctx, dto.ListApplicationsRequest{Stages: []string{"under_review"}})
	require.NoError(t, err)
	require.Equal(t, 1, review.Count)
	assert.Equal(t, "APP002", review.Applications[0].ID)

	_, err = f.uc.List(ctx, dto.ListApplicationsRequest{Stages: []string{"bogus"}})
	assert.True(t, application.IsValidation(err))
}

func TestOverrideScore(t *testing.T) {
	f := newFixture(t)
	f.submit(t, "APP001")
	ctx := context.Background()

	first, err := f.uc.OverrideScore(ctx, dto.OverrideScoreRequest{
		ApplicationID: "APP001", NewScore: 690, Reason: "salary slip mismatch", Actor: "analyst1",
	})
	require.NoError(t, err)
	require.NotNil(t, first.PreviousScore)
	assert.Equal(t, 760.0, *first.PreviousScore)

	second, err := f.uc.OverrideScore(ctx, dto.OverrideScoreRequest{
		ApplicationID: "APP001", NewScore: -20, Reason: "fraud flag",
	})
	require.NoError(t, err)
	assert.Equal(t, 690.0, *second.PreviousScore)
	assert.Equal(t, "system", second.OverriddenBy)

	_, err = f.uc.OverrideScore(ctx, dto.OverrideScoreRequest{ApplicationID: "APP001", NewScore: 700, Actor: "a"})
	assert.True(t, application.IsValidation(err))

	_, err = f.uc.OverrideScore(ctx, dto.OverrideScoreRequest{ApplicationID: "APP404", NewScore: 1, Reason: "x", Actor: "a"})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	list, err := f.uc.ListOverrides(ctx, "APP001")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, -20.0, list[1].NewScore)

	app, err := f.uc.Get(ctx, "APP001")
	require.NoError(t, err)
	assert.Equal(t, "submitted", app.Stage, "overrides never move the stage")
}

func TestAssessAndOffer(t *testing.T) {
	f := newFixture(t)
	f.submit(t, "APP001")
	ctx := context.Background()

	as, err := f.uc.Assess(ctx, "APP001")
	require.NoError(t, err)
	assert.Equal(t, 760, as.Assessment.CreditScore)
	assert.Equal(t, "bureau", as.Assessment.ScoreSource)

	_, err = f.uc.GenerateOffer(ctx, "APP001")
	assert.True(t, application.IsValidation(err), "offer before approval")

	f.move(t, "APP001", "under-review", "analyst1", "")
	f.move(t, "APP001", "credit-assessment", "analyst1", "")
	f.move(t, "APP001", "approved", "manager1", "")

	_, err = f.uc.OverrideScore(ctx, dto.OverrideScoreRequest{
		ApplicationID: "APP001", NewScore: 700, Reason: "recent default", Actor: "analyst1",
	})
	require.NoError(t, err)

	offer, err := f.uc.GenerateOffer(ctx, "APP001")
	require.NoError(t, err)
	assert.Equal(t, "override", offer.Assessment.ScoreSource)
	assert.True(t, decimal.RequireFromString("12.5").Equal(offer.Offer.InterestRate))
	assert.Equal(t, "approved", offer.Stage)
}

func mustID(t *testing.T, s string) model.ApplicationID {
	t.Helper()
	id, err := model.NewApplicationID(s)
	require.NoError(t, err)
	return id
}
