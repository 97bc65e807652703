package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/numbersense/internal/engine"
	"github.com/abhisek/numbersense/internal/progression"
	"github.com/abhisek/numbersense/internal/store"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// respondEngineError maps engine and store errors to a status and code.
func respondEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidUser):
		RespondError(c, http.StatusBadRequest, "invalid_learner", err)
	case errors.Is(err, engine.ErrInvalidOutcome):
		RespondError(c, http.StatusBadRequest, "invalid_outcome", err)
	case errors.Is(err, engine.ErrInvalidSkills):
		RespondError(c, http.StatusBadRequest, "invalid_skills", err)
	case errors.Is(err, progression.ErrInvalidState):
		RespondError(c, http.StatusUnprocessableEntity, "invalid_state", err)
	case errors.Is(err, store.ErrConflict):
		RespondError(c, http.StatusConflict, "conflict", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal", err)
	}
}
