// internal/handlers/usage/usage_handler.go
package usage

import (
	"errors"
	"net/http"

	"repurpose-service/internal/domain/usage"
	"repurpose-service/internal/middleware"
	xerrors "repurpose-service/internal/pkg/errors"
	"repurpose-service/internal/pkg/response"
	service "repurpose-service/internal/service/usage"

	"github.com/gin-gonic/gin"
)

type UsageHandler struct {
	usageService *service.Service
}

func NewUsageHandler(usageService *service.Service) *UsageHandler {
	return &UsageHandler{usageService: usageService}
}

// Stats returns the caller's full usage rollup for the current month.
func (h *UsageHandler) Stats(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	stats, err := h.usageService.Stats(c.Request.Context(), userID)
	if err != nil {
		response.EngineError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "usage stats retrieved", stats)
}

// Check answers whether one more use of a feature is allowed.
func (h *UsageHandler) Check(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	feature := usage.Feature(c.Param("feature"))
	result, err := h.usageService.Check(c.Request.Context(), userID, feature)
	if err != nil {
		response.EngineError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "usage checked", result)
}

// Increment records use of a monthly feature after re-checking the cap.
func (h *UsageHandler) Increment(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	feature := usage.Feature(c.Param("feature"))

	var req struct {
		Amount int `json:"amount"`
	}
	// Body optional; empty body means one use.
	_ = c.ShouldBindJSON(&req)

	result, err := h.usageService.Increment(c.Request.Context(), userID, feature, req.Amount)
	if errors.Is(err, xerrors.ErrMonthlyLimitReached) {
		response.EngineError(c, err, result)
		return
	}
	if err != nil {
		response.EngineError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "usage recorded", result)
}
