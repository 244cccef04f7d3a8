package handlers

import (
	"net/http"

	"fintracker/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

type APIError struct {
	Error   string              `json:"error"`
	Details string              `json:"details,omitempty"`
	Fields  []models.FieldError `json:"fields,omitempty"`
}

func badRequest(c *gin.Context, message, details string) {
	c.JSON(http.StatusBadRequest, APIError{Error: message, Details: details})
}

// fail maps a service error onto a status code. Only persistence and
// unexpected failures are logged at error level.
func (h *Handler) fail(c *gin.Context, op string, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, APIError{Error: "validation failed", Fields: verr.Fields})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, APIError{Error: "not found", Details: err.Error()})
	case errors.Is(err, models.ErrInvalidTransition):
		c.JSON(http.StatusConflict, APIError{Error: "invalid transition", Details: err.Error()})
	case errors.Is(err, models.ErrUpstreamUnavailable):
		h.log.Warnf("%s: %v", op, err)
		c.JSON(http.StatusServiceUnavailable, APIError{Error: "upstream unavailable"})
	default:
		h.log.Errorf("%s failed: %v", op, err)
		c.JSON(http.StatusInternalServerError, APIError{Error: "internal"})
	}
}
