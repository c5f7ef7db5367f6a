package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperr "github.com/adpulse/go-expiry-service/internal/shared/errors"
)

// statusFor maps application error codes to HTTP statuses.
func statusFor(err error) int {
	switch apperr.CodeOf(err) {
	case apperr.CodeValidation, apperr.CodeConfigMissing:
		return http.StatusBadRequest
	case apperr.CodeAuthFailure:
		return http.StatusUnauthorized
	case apperr.CodeNotFound, apperr.CodeGroupNotFound:
		return http.StatusNotFound
	case apperr.CodeJobAlreadyRunning:
		return http.StatusConflict
	case apperr.CodeRateLimited:
		return http.StatusTooManyRequests
	case apperr.CodeDeliveryFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error as JSON with its mapped status.
func respondError(c *gin.Context, err error) {
	var ae *apperr.AppError
	if errors.As(err, &ae) {
		c.JSON(statusFor(err), ae)
		return
	}
	c.JSON(http.StatusInternalServerError, apperr.NewInternalError("Internal error", err))
}
