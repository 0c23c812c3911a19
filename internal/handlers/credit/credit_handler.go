// internal/handlers/credit/credit_handler.go
package credit

import (
	"errors"
	"net/http"
	"strconv"

	"repurpose-service/internal/domain/credit"
	"repurpose-service/internal/middleware"
	xerrors "repurpose-service/internal/pkg/errors"
	"repurpose-service/internal/pkg/response"
	service "repurpose-service/internal/service/credit"
	"repurpose-service/internal/service/reconcile"

	"github.com/gin-gonic/gin"
)

type CreditHandler struct {
	creditService    *service.Service
	reconcileService *reconcile.Service
}

func NewCreditHandler(creditService *service.Service, reconcileService *reconcile.Service) *CreditHandler {
	return &CreditHandler{
		creditService:    creditService,
		reconcileService: reconcileService,
	}
}

// Debit charges the caller for an action.
func (h *CreditHandler) Debit(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	var req credit.DebitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.creditService.Deduct(c.Request.Context(), userID, &req)
	if errors.Is(err, xerrors.ErrInsufficientCredits) {
		// Carry the untouched balance so the client can render a prompt.
		response.EngineError(c, err, result)
		return
	}
	if err != nil {
		response.EngineError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "credits debited", result)
}

// Analytics returns the caller's per-action debit aggregates.
func (h *CreditHandler) Analytics(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	summaries, err := h.creditService.Analytics(c.Request.Context(), userID, days)
	if err != nil {
		response.EngineError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "usage analytics retrieved", gin.H{
		"days":    days,
		"actions": summaries,
	})
}

// History returns the caller's newest usage log rows.
func (h *CreditHandler) History(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := h.creditService.History(c.Request.Context(), userID, limit)
	if err != nil {
		response.EngineError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "usage history retrieved", entries)
}

// ResetCheck applies the caller's monthly rollover if it is due. Safe to
// call any time; does nothing when the reset date is in the future.
func (h *CreditHandler) ResetCheck(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	didReset, err := h.reconcileService.CheckAndReset(c.Request.Context(), userID)
	if err != nil {
		response.EngineError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "reset check complete", gin.H{
		"reset": didReset,
	})
}
