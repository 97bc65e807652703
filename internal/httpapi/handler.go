package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/numbersense/internal/engine"
	"github.com/abhisek/numbersense/internal/logging"
	"github.com/abhisek/numbersense/internal/outcome"
	"github.com/abhisek/numbersense/internal/progression"
	"github.com/abhisek/numbersense/internal/risk"
	"github.com/abhisek/numbersense/internal/store"
)

// LearnerHandler serves the per-learner endpoints and batch screening.
type LearnerHandler struct {
	log *logging.Logger
	svc *engine.Service
}

func NewLearnerHandler(log *logging.Logger, svc *engine.Service) *LearnerHandler {
	if log == nil {
		log = logging.Nop()
	}
	return &LearnerHandler{
		log: log.With("handler", "LearnerHandler"),
		svc: svc,
	}
}

type submitRequest struct {
	ID            string    `json:"id"`
	Operation     string    `json:"operation" binding:"required"`
	Operand1      int       `json:"operand1"`
	Operand2      int       `json:"operand2"`
	CorrectAnswer int       `json:"correct_answer"`
	StudentAnswer int       `json:"student_answer"`
	Correct       bool      `json:"correct"`
	ElapsedMs     int       `json:"elapsed_ms"`
	NumberRange   int       `json:"number_range"`
	Strategy      string    `json:"strategy"`
	ErrorType     string    `json:"error_type"`
	SessionID     string    `json:"session_id"`
	Timestamp     time.Time `json:"timestamp"`
}

func (r submitRequest) outcome() (outcome.TaskOutcome, error) {
	op, err := outcome.ParseOperation(r.Operation)
	if err != nil {
		return outcome.TaskOutcome{}, err
	}
	strategy, err := outcome.ParseStrategy(r.Strategy)
	if err != nil {
		return outcome.TaskOutcome{}, err
	}
	return outcome.TaskOutcome{
		ID:            r.ID,
		Operation:     op,
		Operand1:      r.Operand1,
		Operand2:      r.Operand2,
		CorrectAnswer: r.CorrectAnswer,
		StudentAnswer: r.StudentAnswer,
		Correct:       r.Correct,
		ElapsedMs:     r.ElapsedMs,
		NumberRange:   r.NumberRange,
		Strategy:      strategy,
		ErrorType:     outcome.ErrorType(r.ErrorType),
		SessionID:     r.SessionID,
		Timestamp:     r.Timestamp,
	}, nil
}

type submitResponse struct {
	State      *progression.State      `json:"state"`
	Transition *progression.Transition `json:"transition,omitempty"`
}

// POST /api/v1/learners/:id/outcomes
func (h *LearnerHandler) SubmitOutcome(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	o, err := req.outcome()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_outcome", err)
		return
	}

	st, tr, err := h.svc.SubmitOutcome(c.Request.Context(), c.Param("id"), o)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, submitResponse{State: st, Transition: tr})
}

// GET /api/v1/learners/:id/risk
// Optional: narrate=true asks for a caregiver narrative.
func (h *LearnerHandler) GetRiskProfile(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := h.svc.ComputeRiskProfile(ctx, c.Param("id"))
	if err != nil {
		respondEngineError(c, err)
		return
	}

	if narrate, _ := strconv.ParseBool(c.Query("narrate")); narrate {
		np, err := h.svc.Narrate(ctx, p)
		switch {
		case errors.Is(err, engine.ErrNarrativeUnavailable):
			RespondError(c, http.StatusNotImplemented, "narrative_unavailable", err)
			return
		case err != nil:
			respondEngineError(c, err)
			return
		}
		p = np
	}
	RespondOK(c, p)
}

// GET /api/v1/learners/:id/support
func (h *LearnerHandler) GetSupport(c *gin.Context) {
	st, err := h.svc.ComputeSupportLevel(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	RespondOK(c, st)
}

// POST /api/v1/learners/:id/support/request
func (h *LearnerHandler) RequestSupport(c *gin.Context) {
	st, err := h.svc.RequestSupport(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	RespondOK(c, st)
}

type resetRequest struct {
	Level int `json:"level" binding:"required,min=1"`
}

// POST /api/v1/learners/:id/level/reset
func (h *LearnerHandler) ResetLevel(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	st, tr, err := h.svc.ResetLevel(c.Request.Context(), c.Param("id"), req.Level)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	RespondOK(c, submitResponse{State: st, Transition: tr})
}

type skillsRequest struct {
	Skills risk.SkillSnapshot `json:"skills" binding:"required"`
}

// PUT /api/v1/learners/:id/skills
func (h *LearnerHandler) SetSkills(c *gin.Context) {
	var req skillsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := h.svc.SetSkills(c.Request.Context(), c.Param("id"), req.Skills); err != nil {
		respondEngineError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type levelEvent struct {
	Sequence  int64               `json:"sequence"`
	From      int                 `json:"from"`
	To        int                 `json:"to"`
	Trigger   progression.Trigger `json:"trigger"`
	Timestamp time.Time           `json:"timestamp"`
}

type levelsResponse struct {
	State  *progression.State `json:"state"`
	Events []levelEvent       `json:"events"`
}

// GET /api/v1/learners/:id/levels
func (h *LearnerHandler) GetLevels(c *gin.Context) {
	st, events, err := h.svc.LevelHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	RespondOK(c, levelsResponse{State: st, Events: toLevelEvents(events)})
}

func toLevelEvents(events []store.LevelEvent) []levelEvent {
	out := make([]levelEvent, 0, len(events))
	for _, e := range events {
		out = append(out, levelEvent{
			Sequence: e.Sequence, From: e.From, To: e.To, Trigger: e.Trigger, Timestamp: e.Timestamp,
		})
	}
	return out
}

type screenRequest struct {
	Learners []string `json:"learners"`
}

type screenEntry struct {
	UserID  string        `json:"user_id"`
	Profile *risk.Profile `json:"profile,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// POST /api/v1/screen
// An empty learner list screens everyone with stored state.
func (h *LearnerHandler) Screen(c *gin.Context) {
	var req screenRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, "bad_request", err)
			return
		}
	}

	results, err := h.svc.BatchRiskProfiles(c.Request.Context(), req.Learners)
	if err != nil {
		respondEngineError(c, fmt.Errorf("screen: %w", err))
		return
	}
	out := make([]screenEntry, 0, len(results))
	for _, r := range results {
		e := screenEntry{UserID: r.UserID, Profile: r.Profile}
		if r.Err != nil {
			h.log.Warn("screening failed for learner", "user_id", r.UserID, "error", r.Err)
			e.Error = r.Err.Error()
		}
		out = append(out, e)
	}
	RespondOK(c, gin.H{"results": out})
}

func HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}
