package loan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/YoshitsuguKoike/loanstage/internal/application/dto"
	"github.com/YoshitsuguKoike/loanstage/internal/application/port/input"
	"github.com/YoshitsuguKoike/loanstage/internal/application/port/output"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/model"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/model/application"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/model/lock"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/repository"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/service"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/service/underwriting"
)

// DefaultMaxConflictRetries bounds reload-and-retry after a concurrent save
const DefaultMaxConflictRetries = 3

// Dependencies groups the collaborators of LoanUseCaseImpl
type Dependencies struct {
	Applications repository.ApplicationRepository
	Overrides    repository.ScoreOverrideRepository
	TxManager    output.TransactionManager
	Locker       output.Locker
	Notifier     output.Notifier
	Actors       output.ActorProvider
	Metrics      output.Metrics
	Machine      *service.ApplicationStatusMachine
	Logger       *zap.Logger

	MaxConflictRetries int
	Clock              service.Clock
	IDSource           service.IDSource
}

// LoanUseCaseImpl implements the LoanUseCase interface
type LoanUseCaseImpl struct {
	apps       repository.ApplicationRepository
	overrides  repository.ScoreOverrideRepository
	txManager  output.TransactionManager
	locker     output.Locker
	notifier   output.Notifier
	actors     output.ActorProvider
	metrics    output.Metrics
	machine    *service.ApplicationStatusMachine
	logger     *zap.Logger
	maxRetries int
	now        service.Clock
	newID      service.IDSource
}

var _ input.LoanUseCase = (*LoanUseCaseImpl)(nil)

// NewLoanUseCaseImpl creates a new loan use case implementation
func NewLoanUseCaseImpl(deps Dependencies) *LoanUseCaseImpl {
	uc := &LoanUseCaseImpl{
		apps:       deps.Applications,
		overrides:  deps.Overrides,
		txManager:  deps.TxManager,
		locker:     deps.Locker,
		notifier:   deps.Notifier,
		actors:     deps.Actors,
		metrics:    deps.Metrics,
		machine:    deps.Machine,
		logger:     deps.Logger,
		maxRetries: deps.MaxConflictRetries,
		now:        deps.Clock,
		newID:      deps.IDSource,
	}
	if uc.notifier == nil {
		uc.notifier = output.NopNotifier{}
	}
	if uc.metrics == nil {
		uc.metrics = output.NopMetrics{}
	}
	if uc.logger == nil {
		uc.logger = zap.NewNop()
	}
	if uc.now == nil {
		uc.now = func() time.Time { return time.Now().UTC() }
	}
	if uc.newID == nil {
		uc.newID = service.NewULIDSource()
	}
	if uc.machine == nil {
		uc.machine = service.NewApplicationStatusMachine(service.WithClock(uc.now), service.WithIDSource(uc.newID))
	}
	if uc.maxRetries < 0 {
		uc.maxRetries = 0
	}
	return uc
}

// Submit creates a new application in the submitted stage
func (uc *LoanUseCaseImpl) Submit(ctx context.Context, req dto.SubmitApplicationRequest) (*dto.ApplicationDTO, error) {
	if err := req.Applicant.Validate(uc.now()); err != nil {
		return nil, err
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = "APP-" + uc.newID()
	}

	var created *application.Application
	err := uc.txManager.InTransaction(ctx, func(txCtx context.Context) error {
		var lookupErr error
		taken := service.CollectionFunc(func(appID model.ApplicationID) bool {
			exists, err := uc.apps.Exists(txCtx, appID)
			if err != nil {
				lookupErr = err
			}
			return exists
		})

		app, err := uc.machine.Create(id, req.Applicant, taken)
		if lookupErr != nil {
			return fmt.Errorf("check application id: %w", lookupErr)
		}
		if err != nil {
			return err
		}
		if err := uc.apps.Create(txCtx, app); err != nil {
			return err
		}
		created = app
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.metrics.ApplicationSubmitted()
	uc.logger.Info("application submitted",
		zap.String("application_id", created.ID().String()),
		zap.String("applicant", created.Applicant().FullName()))

	out := uc.toDTO(created)
	return &out, nil
}

// Transition moves an application to another stage.
// The application lock is held across load, transition and save. A concurrent
// save is retried from a fresh load unless the caller pinned ExpectedStage.
func (uc *LoanUseCaseImpl) Transition(ctx context.Context, req dto.TransitionRequest) (*dto.TransitionResponse, error) {
	appID, err := model.NewApplicationID(req.ApplicationID)
	if err != nil {
		return nil, application.NewValidationError("application_id", err.Error())
	}
	target, err := model.ParseStage(req.Target)
	if err != nil {
		return nil, application.NewValidationError("target", err.Error())
	}
	var expected model.Stage
	if strings.TrimSpace(req.ExpectedStage) != "" {
		if expected, err = model.ParseStage(req.ExpectedStage); err != nil {
			return nil, application.NewValidationError("expected_stage", err.Error())
		}
	}
	actor, err := uc.resolveActor(ctx, req.Actor)
	if err != nil {
		return nil, err
	}

	logger := uc.logger.With(
		zap.String("application_id", appID.String()),
		zap.String("target", target.String()),
		zap.String("actor", actor))

	lease, err := uc.locker.Acquire(ctx, appID.String())
	if err != nil {
		if errors.Is(err, lock.ErrLockHeld) {
			uc.metrics.TransitionAttempted("", target.String(), output.OutcomeLockHeld)
		}
		return nil, err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("failed to release application lock", zap.Error(err))
		}
	}()

	for attempt := 1; ; attempt++ {
		current, err := uc.apps.Load(ctx, appID)
		if err != nil {
			return nil, err
		}
		from := current.CurrentStage()

		if expected != "" && from != expected {
			uc.metrics.TransitionAttempted(from.String(), target.String(), output.OutcomeConflict)
			return nil, fmt.Errorf("application %s is at %s, expected %s: %w",
				appID, from, expected, repository.ErrConflict)
		}

		next, err := uc.machine.TransitionTo(current, target, actor, req.Note)
		if err != nil {
			uc.metrics.TransitionAttempted(from.String(), target.String(), output.OutcomeRejected)
			return nil, err
		}

		err = uc.txManager.InTransaction(ctx, func(txCtx context.Context) error {
			return uc.apps.Save(txCtx, next)
		})
		if errors.Is(err, repository.ErrConflict) {
			uc.metrics.TransitionAttempted(from.String(), target.String(), output.OutcomeConflict)
			if expected != "" || attempt > uc.maxRetries {
				logger.Warn("transition conflict", zap.Int("attempt", attempt))
				return nil, err
			}
			uc.metrics.ConflictRetried()
			logger.Debug("transition conflict, reloading", zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			uc.metrics.TransitionAttempted(from.String(), target.String(), output.OutcomeError)
			return nil, err
		}

		saved := next.Checkpoint()
		history := saved.History()
		rec := history[len(history)-1]

		uc.metrics.TransitionAttempted(from.String(), target.String(), output.OutcomeSuccess)
		logger.Info("application transitioned",
			zap.String("from", from.String()),
			zap.Int("attempt", attempt))

		uc.notify(ctx, appID, rec)

		return &dto.TransitionResponse{
			Application: uc.toDTO(saved),
			Transition:  toTransitionDTO(rec),
			Attempts:    attempt,
		}, nil
	}
}

// Get retrieves an application by ID
func (uc *LoanUseCaseImpl) Get(ctx context.Context, applicationID string) (*dto.ApplicationDTO, error) {
	app, err := uc.load(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	out := uc.toDTO(app)
	return &out, nil
}

// History retrieves the transition history of an application
func (uc *LoanUseCaseImpl) History(ctx context.Context, applicationID string) (*dto.HistoryResponse, error) {
	app, err := uc.load(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	records := uc.machine.HistoryOf(app)
	transitions := make([]dto.TransitionDTO, 0, len(records))
	for _, r := range records {
		transitions = append(transitions, toTransitionDTO(r))
	}
	return &dto.HistoryResponse{
		ApplicationID: app.ID().String(),
		Stage:         app.CurrentStage().String(),
		Transitions:   transitions,
	}, nil
}

// List lists applications with filters
func (uc *LoanUseCaseImpl) List(ctx context.Context, req dto.ListApplicationsRequest) (*dto.ListApplicationsResponse, error) {
	filter := repository.ApplicationFilter{
		Search: strings.TrimSpace(req.Search),
		Limit:  req.Limit,
		Offset: req.Offset,
	}
	for _, s := range req.Stages {
		stage, err := model.ParseStage(s)
		if err != nil {
			return nil, application.NewValidationError("stage", err.Error())
		}
		filter.Stages = append(filter.Stages, stage)
	}

	apps, err := uc.apps.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := make([]dto.ApplicationDTO, 0, len(apps))
	for _, a := range apps {
		out = append(out, uc.toDTO(a))
	}
	return &dto.ListApplicationsResponse{Applications: out, Count: len(out)}, nil
}

// OverrideScore appends a score override to the ledger.
// The previous score is the latest override or the applicant's bureau score.
func (uc *LoanUseCaseImpl) OverrideScore(ctx context.Context, req dto.OverrideScoreRequest) (*dto.ScoreOverrideDTO, error) {
	actor, err := uc.resolveActor(ctx, req.Actor)
	if err != nil {
		return nil, err
	}

	var entry application.ScoreOverride
	err = uc.txManager.InTransaction(ctx, func(txCtx context.Context) error {
		app, err := uc.load(txCtx, req.ApplicationID)
		if err != nil {
			return err
		}
		existing, err := uc.overrides.ListByApplication(txCtx, app.ID())
		if err != nil {
			return err
		}

		var previous *float64
		if score, ok := application.LatestScore(existing); ok {
			previous = &score
		} else if app.Applicant().BureauScore != nil {
			score := float64(*app.Applicant().BureauScore)
			previous = &score
		}

		entry, err = application.NewScoreOverride(
			uc.newID(), app.ID().String(), actor, previous, req.NewScore, req.Reason, uc.now())
		if err != nil {
			return err
		}
		return uc.overrides.Append(txCtx, entry)
	})
	if err != nil {
		return nil, err
	}

	uc.metrics.ScoreOverridden()
	uc.logger.Info("score overridden",
		zap.String("application_id", entry.ApplicationID),
		zap.String("overridden_by", entry.OverriddenBy),
		zap.Float64("new_score", entry.NewScore))

	out := toOverrideDTO(entry)
	return &out, nil
}

// ListOverrides lists score overrides of an application, oldest first
func (uc *LoanUseCaseImpl) ListOverrides(ctx context.Context, applicationID string) ([]dto.ScoreOverrideDTO, error) {
	app, err := uc.load(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	entries, err := uc.overrides.ListByApplication(ctx, app.ID())
	if err != nil {
		return nil, err
	}
	out := make([]dto.ScoreOverrideDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, toOverrideDTO(e))
	}
	return out, nil
}

// Assess runs the credit assessment for an application
func (uc *LoanUseCaseImpl) Assess(ctx context.Context, applicationID string) (*dto.AssessmentResponse, error) {
	app, assessment, err := uc.assess(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	return &dto.AssessmentResponse{
		ApplicationID: app.ID().String(),
		Stage:         app.CurrentStage().String(),
		Assessment:    assessment,
	}, nil
}

// GenerateOffer prices a loan offer. The application must have been approved;
// moving it to offer-generated is a separate transition.
func (uc *LoanUseCaseImpl) GenerateOffer(ctx context.Context, applicationID string) (*dto.OfferResponse, error) {
	app, assessment, err := uc.assess(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.CurrentStage().Index() < model.StageApproved.Index() {
		return nil, application.NewValidationError("stage",
			fmt.Sprintf("an offer requires an approved application, %s is at %s", app.ID(), app.CurrentStage()))
	}

	offer, err := underwriting.GenerateOffer(app.Applicant(), assessment, uc.now())
	if err != nil {
		return nil, err
	}
	return &dto.OfferResponse{
		ApplicationID: app.ID().String(),
		Stage:         app.CurrentStage().String(),
		Assessment:    assessment,
		Offer:         offer,
	}, nil
}

func (uc *LoanUseCaseImpl) assess(ctx context.Context, applicationID string) (*application.Application, underwriting.Assessment, error) {
	app, err := uc.load(ctx, applicationID)
	if err != nil {
		return nil, underwriting.Assessment{}, err
	}
	overrides, err := uc.overrides.ListByApplication(ctx, app.ID())
	if err != nil {
		return nil, underwriting.Assessment{}, err
	}
	assessment, err := underwriting.Assess(app.Applicant(), overrides)
	if errors.Is(err, underwriting.ErrNoBureauScore) {
		return nil, underwriting.Assessment{}, application.NewValidationError("bureau_score", err.Error())
	}
	if err != nil {
		return nil, underwriting.Assessment{}, err
	}
	return app, assessment, nil
}

func (uc *LoanUseCaseImpl) load(ctx context.Context, applicationID string) (*application.Application, error) {
	appID, err := model.NewApplicationID(applicationID)
	if err != nil {
		return nil, application.NewValidationError("application_id", err.Error())
	}
	return uc.apps.Load(ctx, appID)
}

func (uc *LoanUseCaseImpl) resolveActor(ctx context.Context, explicit string) (string, error) {
	if actor := strings.TrimSpace(explicit); actor != "" {
		return actor, nil
	}
	if uc.actors == nil {
		return "", application.NewValidationError("actor", "actor is required")
	}
	actor, err := uc.actors.Actor(ctx)
	if err != nil {
		return "", application.NewValidationError("actor", err.Error())
	}
	return actor, nil
}

// notify hands the event to the notifier without letting failures reach the caller
func (uc *LoanUseCaseImpl) notify(ctx context.Context, appID model.ApplicationID, rec application.TransitionRecord) {
	event := output.TransitionEvent{
		RecordID:      rec.ID,
		ApplicationID: appID.String(),
		From:          rec.From.String(),
		To:            rec.To.String(),
		Actor:         rec.Actor,
		Note:          rec.Note,
		Timestamp:     rec.Timestamp,
	}
	if err := uc.notifier.Notify(context.WithoutCancel(ctx), event); err != nil {
		uc.logger.Warn("transition notification failed",
			zap.String("application_id", event.ApplicationID),
			zap.Error(err))
	}
}
