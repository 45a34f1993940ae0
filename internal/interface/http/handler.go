package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/YoshitsuguKoike/loanstage/internal/adapter/presenter"
	"github.com/YoshitsuguKoike/loanstage/internal/application/dto"
	"github.com/YoshitsuguKoike/loanstage/internal/application/port/input"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/model"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/model/application"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/model/lock"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/repository"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/service"
)

// Handler serves the loan application API
type Handler struct {
	loans  input.LoanUseCase
	logger *zap.Logger
}

// NewHandler creates a handler over the loan use case
func NewHandler(loans input.LoanUseCase, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{loans: loans, logger: logger}
}

// RegisterRoutes mounts the v1 API on r
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	v1 := r.Group("/v1")
	v1.GET("/stages", h.Stages)

	g := v1.Group("/applications")
	g.POST("", h.Submit)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.GET("/:id/history", h.History)
	g.POST("/:id/transitions", h.Transition)
	g.GET("/:id/overrides", h.ListOverrides)
	g.POST("/:id/overrides", h.OverrideScore)
	g.GET("/:id/assessment", h.Assess)
	g.GET("/:id/offer", h.Offer)
}

type transitionBody struct {
	Target        string `json:"target" binding:"required"`
	Note          string `json:"note"`
	Actor         string `json:"actor"`
	ExpectedStage string `json:"expected_stage"`
}

type overrideBody struct {
	NewScore *float64 `json:"new_score" binding:"required"`
	Reason   string   `json:"reason"`
	Actor    string   `json:"actor"`
}

type stageView struct {
	Stage    string   `json:"stage"`
	Label    string   `json:"label"`
	Tone     string   `json:"tone"`
	Progress float64  `json:"progress"`
	Next     []string `json:"next"`
	Terminal bool     `json:"terminal"`
}

// Stages handles GET /v1/stages
func (h *Handler) Stages(c *gin.Context) {
	stages := model.AllStages()
	views := make([]stageView, 0, len(stages))
	for _, s := range stages {
		next := make([]string, 0, 2)
		for _, n := range s.Successors() {
			next = append(next, n.String())
		}
		views = append(views, stageView{
			Stage:    s.String(),
			Label:    s.Label(),
			Tone:     string(s.Tone()),
			Progress: service.StageProgress(s),
			Next:     next,
			Terminal: s.IsTerminal(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"stages": views})
}

// Submit handles POST /v1/applications
func (h *Handler) Submit(c *gin.Context) {
	var req dto.SubmitApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	app, err := h.loans.Submit(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, app)
}

// List handles GET /v1/applications
func (h *Handler) List(c *gin.Context) {
	req := dto.ListApplicationsRequest{
		Stages: c.QueryArray("stage"),
		Search: c.Query("search"),
	}
	var err error
	if req.Limit, err = intQuery(c, "limit"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Offset, err = intQuery(c, "offset"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.loans.List(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Get handles GET /v1/applications/:id
func (h *Handler) Get(c *gin.Context) {
	app, err := h.loans.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// History handles GET /v1/applications/:id/history
func (h *Handler) History(c *gin.Context) {
	res, err := h.loans.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Transition handles POST /v1/applications/:id/transitions
func (h *Handler) Transition(c *gin.Context) {
	var body transitionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.loans.Transition(c.Request.Context(), dto.TransitionRequest{
		ApplicationID: c.Param("id"),
		Target:        body.Target,
		Actor:         body.Actor,
		Note:          body.Note,
		ExpectedStage: body.ExpectedStage,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListOverrides handles GET /v1/applications/:id/overrides
func (h *Handler) ListOverrides(c *gin.Context) {
	overrides, err := h.loans.ListOverrides(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if overrides == nil {
		overrides = []dto.ScoreOverrideDTO{}
	}
	c.JSON(http.StatusOK, gin.H{"application_id": c.Param("id"), "overrides": overrides})
}

// OverrideScore handles POST /v1/applications/:id/overrides
func (h *Handler) OverrideScore(c *gin.Context) {
	var body overrideBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	o, err := h.loans.OverrideScore(c.Request.Context(), dto.OverrideScoreRequest{
		ApplicationID: c.Param("id"),
		NewScore:      *body.NewScore,
		Reason:        body.Reason,
		Actor:         body.Actor,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

// Assess handles GET /v1/applications/:id/assessment
func (h *Handler) Assess(c *gin.Context) {
	res, err := h.loans.Assess(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Offer handles GET /v1/applications/:id/offer
func (h *Handler) Offer(c *gin.Context) {
	res, err := h.loans.GenerateOffer(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// fail writes err as a JSON error body, logging server-side failures
func (h *Handler) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()), zap.Error(err))
	}

	body := gin.H{"error": err.Error()}
	if code := presenter.ErrorCode(err); code != "" {
		body["code"] = code
	}
	c.JSON(status, body)
}

// StatusFor maps a use case error to an HTTP status
func StatusFor(err error) int {
	var validation *application.ValidationError
	var illegal *application.IllegalTransitionError
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &illegal):
		return http.StatusUnprocessableEntity
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrConflict),
		errors.Is(err, repository.ErrAlreadyExists),
		errors.Is(err, lock.ErrLockHeld):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func intQuery(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return n, nil
}
