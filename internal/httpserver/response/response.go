package response

import (
	"errors"
	"net/http"

	"github.com/fekuna/omnipos-offline-sync/internal/apperror"
	"github.com/gin-gonic/gin"
)

// Success writes {success: true, offline, ...data}.
func Success(c *gin.Context, status int, offline bool, data gin.H) {
	body := gin.H{"success": true, "offline": offline}
	for k, v := range data {
		body[k] = v
	}
	c.JSON(status, body)
}

// Error writes {success: false, offline, error} with a status derived from err.
func Error(c *gin.Context, err error) {
	c.JSON(StatusFor(err), gin.H{
		"success": false,
		"offline": errors.Is(err, apperror.ErrOffline) || apperror.IsInfrastructure(err),
		"error":   err.Error(),
	})
}

// BadRequest is for malformed request bodies.
func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "offline": false, "error": msg})
}

func StatusFor(err error) int {
	var (
		validation   *apperror.ValidationError
		insufficient *apperror.InsufficientStockError
		timeout      *apperror.TimeoutError
		network      *apperror.NetworkError
	)
	switch {
	case errors.As(err, &validation),
		errors.Is(err, apperror.ErrEmptyCart),
		errors.Is(err, apperror.ErrMissingContext):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &insufficient),
		errors.Is(err, apperror.ErrInvalidTransition),
		errors.Is(err, apperror.ErrSessionAlreadyOpen),
		errors.Is(err, apperror.ErrSessionNotOpen),
		errors.Is(err, apperror.ErrDuplicate),
		errors.Is(err, apperror.ErrDrainInProgress),
		errors.Is(err, apperror.ErrBlocked):
		return http.StatusConflict
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &network), errors.Is(err, apperror.ErrOffline):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
