package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Freeeeeet/booking_api/internal/service"
)

const internalErrorMessage = "Something went wrong, please try again later."

// statusFor возвращает HTTP-статус для ошибки сервиса
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrSchedulingViolation),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrNoTechnicianAvailable):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ErrorMessage текст ошибки для клиента. Внутренние ошибки не раскрываются.
func ErrorMessage(err error) string {
	var se *service.Error
	if errors.As(err, &se) {
		return se.Reason
	}
	if statusFor(err) == http.StatusInternalServerError {
		return internalErrorMessage
	}
	return err.Error()
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, gin.H{"message": ErrorMessage(err)})
}

func abortValidation(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
		"message": "The given data was invalid.",
		"errors":  err.Error(),
	})
}
