package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"spinwheel-backend/internal/services"
	"spinwheel-backend/internal/wheel"
)

// errorStatus maps engine errors to HTTP statuses.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrAlreadyProcessed):
		return http.StatusConflict, "already_processed"
	case errors.Is(err, services.ErrTxConflict):
		return http.StatusServiceUnavailable, "conflict"
	case errors.Is(err, services.ErrInvalidSignature):
		return http.StatusUnauthorized, "invalid_signature"
	case errors.Is(err, services.ErrChallengeNotFound):
		return http.StatusUnauthorized, "challenge_not_found"
	case errors.Is(err, services.ErrSessionNotFound):
		return http.StatusUnauthorized, "session_not_found"
	}

	code := wheel.Code(err)
	switch code {
	case "unauthorized":
		return http.StatusForbidden, code
	case "insufficient_funds", "insufficient_pool", "already_initialized":
		return http.StatusConflict, code
	case "not_initialized":
		return http.StatusNotFound, code
	case "calculation_error", "internal_error":
		return http.StatusInternalServerError, code
	default:
		return http.StatusBadRequest, code
	}
}

func respondError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	c.JSON(status, gin.H{
		"error":   code,
		"details": err.Error(),
	})
}

func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "invalid_request",
		"details": err.Error(),
	})
}
