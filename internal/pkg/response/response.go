// internal/pkg/response/response.go
package response

import (
	"errors"
	"net/http"

	xerrors "repurpose-service/internal/pkg/errors"

	"github.com/gin-gonic/gin"
)

// Response defines the standard API response format.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Success sends a successful response with a message and optional data.
func Success(c *gin.Context, status int, message string, data interface{}) {
	if status == 0 {
		status = http.StatusOK
	}

	c.JSON(status, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error sends a standardized error response.
func Error(c *gin.Context, code int, message string, err error, data ...interface{}) {
	c.Abort()

	resp := Response{
		Success: false,
		Message: message,
	}

	if err != nil {
		resp.Error = err.Error()
	}

	if len(data) > 0 {
		resp.Data = data[0]
	}

	c.JSON(code, resp)
}

// EngineError maps an engine outcome to its HTTP status and sends it,
// optionally attaching structured detail (balances, limits, upgrade hints)
// so the caller can render an accurate prompt.
func EngineError(c *gin.Context, err error, data ...interface{}) {
	Error(c, statusFor(err), err.Error(), err, data...)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, xerrors.ErrUserNotFound),
		errors.Is(err, xerrors.ErrCodeNotFound),
		errors.Is(err, xerrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, xerrors.ErrInsufficientCredits),
		errors.Is(err, xerrors.ErrMonthlyLimitReached):
		return http.StatusPaymentRequired
	case errors.Is(err, xerrors.ErrFeatureDisabled):
		return http.StatusForbidden
	case errors.Is(err, xerrors.ErrCodeExpired),
		errors.Is(err, xerrors.ErrCodeExhausted),
		errors.Is(err, xerrors.ErrCodeInactive),
		errors.Is(err, xerrors.ErrCodeAlreadyRedeemed):
		return http.StatusConflict
	case errors.Is(err, xerrors.ErrInvalidTier),
		errors.Is(err, xerrors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, xerrors.ErrConcurrencyTimeout):
		return http.StatusServiceUnavailable
	case errors.Is(err, xerrors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, xerrors.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// ValidationError sends a 400 Bad Request response for invalid input.
func ValidationError(c *gin.Context, message string, err error) {
	Error(c, http.StatusBadRequest, message, err)
}

// Unauthorized sends a 401 Unauthorized response.
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message, nil)
}

// Forbidden sends a 403 Forbidden response.
func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, message, nil)
}

// NotFound sends a 404 Not Found response.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message, nil)
}
