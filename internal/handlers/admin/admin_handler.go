// internal/handlers/admin/admin_handler.go
package admin

import (
	"net/http"
	"strconv"

	creditdomain "repurpose-service/internal/domain/credit"
	"repurpose-service/internal/domain/plan"
	"repurpose-service/internal/middleware"
	"repurpose-service/internal/pkg/response"
	service "repurpose-service/internal/service/admin"
	creditservice "repurpose-service/internal/service/credit"
	"repurpose-service/internal/service/reconcile"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	adminService     *service.Service
	creditService    *creditservice.Service
	reconcileService *reconcile.Service
}

func NewAdminHandler(adminService *service.Service, creditService *creditservice.Service, reconcileService *reconcile.Service) *AdminHandler {
	return &AdminHandler{
		adminService:     adminService,
		creditService:    creditService,
		reconcileService: reconcileService,
	}
}

// ListUsers returns the paginated LTD account listing.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	var filters plan.ListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.ValidationError(c, "invalid filters", err)
		return
	}

	result, err := h.adminService.Users(c.Request.Context(), &filters)
	if err != nil {
		response.EngineError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "users retrieved", result)
}

// GetUser returns one LTD account with redemption aggregates.
func (h *AdminHandler) GetUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ValidationError(c, "invalid user ID", err)
		return
	}

	user, err := h.adminService.User(c.Request.Context(), userID)
	if err != nil {
		response.EngineError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "user retrieved", user)
}

// UpdateUserPlan applies an admin plan adjustment.
func (h *AdminHandler) UpdateUserPlan(c *gin.Context) {
	adminID := middleware.MustGetUserID(c)

	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ValidationError(c, "invalid user ID", err)
		return
	}

	var req plan.AdminUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	user, err := h.adminService.UpdatePlan(c.Request.Context(), adminID, userID, &req)
	if err != nil {
		response.EngineError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "user plan updated", user)
}

// UserAuditTrail lists the admin actions taken against one user.
func (h *AdminHandler) UserAuditTrail(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ValidationError(c, "invalid user ID", err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries, err := h.adminService.AuditTrail(c.Request.Context(), userID, limit)
	if err != nil {
		response.EngineError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "audit trail retrieved", entries)
}

// AddCredits grants credits to a user account.
func (h *AdminHandler) AddCredits(c *gin.Context) {
	adminID := middleware.MustGetUserID(c)

	var req creditdomain.AddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.creditService.Add(c.Request.Context(), &req)
	if err != nil {
		response.EngineError(c, err)
		return
	}

	h.adminService.RecordAdminAction(c.Request.Context(), adminID, "add_credits", &req.UserID, map[string]interface{}{
		"amount": req.Amount,
		"reason": req.Reason,
	})

	response.Success(c, http.StatusOK, "credits added", result)
}

// ReconcileSweep runs one reconciliation pass on demand.
func (h *AdminHandler) ReconcileSweep(c *gin.Context) {
	result, err := h.reconcileService.Sweep(c.Request.Context())
	if err != nil {
		response.EngineError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "reconciliation sweep complete", result)
}
