// internal/handlers/entitlement/entitlement_handler.go
package entitlement

import (
	"net/http"

	"repurpose-service/internal/middleware"
	"repurpose-service/internal/pkg/response"
	service "repurpose-service/internal/service/entitlement"
	"repurpose-service/internal/tiers"

	"github.com/gin-gonic/gin"
)

type EntitlementHandler struct {
	entitlementService *service.Service
}

func NewEntitlementHandler(entitlementService *service.Service) *EntitlementHandler {
	return &EntitlementHandler{entitlementService: entitlementService}
}

// CheckFeature answers whether the caller may use a feature path.
func (h *EntitlementHandler) CheckFeature(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	path := c.Query("path")
	if path == "" {
		response.ValidationError(c, "path query parameter is required", nil)
		return
	}

	access, err := h.entitlementService.CheckFeatureAccess(c.Request.Context(), userID, path)
	if err != nil {
		response.EngineError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "feature access checked", access)
}

// CheckCredits answers whether the caller's balance covers an action. It
// never debits.
func (h *EntitlementHandler) CheckCredits(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	action := c.Query("action")
	if action == "" {
		response.ValidationError(c, "action query parameter is required", nil)
		return
	}

	var cost float64
	if raw := c.Query("cost"); raw != "" {
		var req struct {
			Cost float64 `form:"cost" binding:"gte=0"`
		}
		if err := c.ShouldBindQuery(&req); err != nil {
			response.ValidationError(c, "invalid cost", err)
			return
		}
		cost = req.Cost
	}

	access, err := h.entitlementService.CheckCreditAccess(c.Request.Context(), userID, action, cost)
	if err != nil {
		response.EngineError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "credit access checked", access)
}

// Features returns the caller's full feature view.
func (h *EntitlementHandler) Features(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	features, err := h.entitlementService.UserFeatures(c.Request.Context(), userID)
	if err != nil {
		response.EngineError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "features retrieved", gin.H{
		"features": features,
		"costs":    tiers.Costs(),
	})
}
