package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/wanderlust/internal/api/middleware"
	"github.com/timmy/wanderlust/internal/domain"
)

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch domain.ErrorTypeOf(err) {
	case domain.ErrorTypeValidation:
		return http.StatusBadRequest
	case domain.ErrorTypeNotFound:
		return http.StatusNotFound
	case domain.ErrorTypeProviderUnavailable:
		return http.StatusServiceUnavailable
	}
	if errors.Is(err, domain.ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, domain.ErrProviderUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError writes err as {"error": ...}. Internal failures are logged and
// their details are not exposed.
func respondError(c *gin.Context, err error, action string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		middleware.GetLogger(c).WithError(err).Errorf("%s failed", action)
		c.JSON(status, gin.H{"error": action + " failed"})
		return
	}

	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		c.JSON(status, gin.H{"error": appErr.Message, "type": appErr.Type})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// badRequest reports a binding failure.
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error(), "type": domain.ErrorTypeValidation})
}
