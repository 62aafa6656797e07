package handler

import (
	"errors"
	"net/http"

	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

// writeServiceError maps the service error taxonomy onto HTTP status codes.
// Validation and authorization failures are final; 503 marks retryable lock
// contention.
func writeServiceError(c *gin.Context, err error) {
	var validationErr *service.ValidationError
	var revisionErr *service.RevisionConflictError
	var precondErr *service.PreconditionError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
	case errors.As(err, &revisionErr):
		c.JSON(http.StatusConflict, gin.H{
			"status":           "error",
			"status_code":      http.StatusConflict,
			"error":            err.Error(),
			"request_id":       revisionErr.RequestID.String(),
			"conflicting_with": revisionErr.ConflictingWith.String(),
		})
	case errors.As(err, &precondErr):
		c.JSON(http.StatusPreconditionFailed, response.Error(http.StatusPreconditionFailed, err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
	case errors.Is(err, service.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, response.Error(http.StatusForbidden, err.Error()))
	case errors.Is(err, service.ErrAlreadyDecided),
		errors.Is(err, service.ErrConflictingDecision),
		errors.Is(err, service.ErrSchedulingConflict),
		errors.Is(err, service.ErrReadOnly):
		c.JSON(http.StatusConflict, response.Error(http.StatusConflict, err.Error()))
	case errors.Is(err, service.ErrResourceBusy):
		c.JSON(http.StatusServiceUnavailable, response.Error(http.StatusServiceUnavailable, err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
	}
}

// callerID extracts the authenticated user id set by the auth middleware.
func callerID(c *gin.Context) (string, bool) {
	raw, exists := c.Get("userID")
	if !exists {
		return "", false
	}
	id, ok := raw.(string)
	return id, ok
}
