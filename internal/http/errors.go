package http

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"auth-vault/internal/service"
)

const internalErrorMessage = "Something went wrong! Please try again"

// statusFor traduce errores de servicio a status y mensaje publico.
func statusFor(err error) (int, string, bool) {
	switch {
	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusBadRequest, "User already exist", true
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials", true
	case errors.Is(err, service.ErrNotAuthenticated):
		return http.StatusUnauthorized, "Not authenticated", true
	case errors.Is(err, service.ErrEmailNotVerified):
		return http.StatusForbidden, "Please verify your email before logging in", true
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, "User not found", true
	case errors.Is(err, service.ErrOTPExpiredOrInvalid):
		return http.StatusBadRequest, "OTP expired or invalid", true
	case errors.Is(err, service.ErrTwoFactorNotEnabled):
		return http.StatusBadRequest, "2FA is not enabled for this account", true
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests, "Too many requests", true
	case errors.Is(err, service.ErrEmailSendFailure):
		return http.StatusServiceUnavailable, "Email delivery unavailable", true
	default:
		return http.StatusInternalServerError, internalErrorMessage, false
	}
}

// writeError responde con el envelope de error. Los errores no previstos se
// loguean y nunca se exponen al cliente.
func writeError(c *gin.Context, logger *zap.Logger, op string, err error) {
	status, msg, known := statusFor(err)
	var rle *service.RateLimitError
	if errors.As(err, &rle) && rle.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(rle.RetryAfter.Seconds()))))
	}
	if !known {
		logger.Error(op+" failed",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
		)
	}
	respondError(c, status, msg)
}
