// internal/handlers/code/code_handler.go
package code

import (
	"net/http"
	"strconv"

	"repurpose-service/internal/domain/code"
	"repurpose-service/internal/middleware"
	"repurpose-service/internal/pkg/response"
	service "repurpose-service/internal/service/code"

	"github.com/gin-gonic/gin"
)

type CodeHandler struct {
	codeService *service.Service
}

func NewCodeHandler(codeService *service.Service) *CodeHandler {
	return &CodeHandler{codeService: codeService}
}

// ========== User Endpoints ==========

// Redeem redeems a code for the caller and applies the stacking rule.
func (h *CodeHandler) Redeem(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "valid code is required", err)
		return
	}

	result, err := h.codeService.RedeemCode(c.Request.Context(), userID, req.Code)
	if err != nil {
		response.EngineError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "code redeemed successfully", result)
}

// MyRedemptions returns the caller's redemption history.
func (h *CodeHandler) MyRedemptions(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	redemptions, err := h.codeService.UserRedemptions(c.Request.Context(), userID)
	if err != nil {
		response.EngineError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "redemptions retrieved", redemptions)
}

// ========== Admin Endpoints ==========

// Generate creates a batch of codes.
func (h *CodeHandler) Generate(c *gin.Context) {
	adminID := middleware.MustGetUserID(c)

	var params code.GenerateParams
	if err := c.ShouldBindJSON(&params); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	codes, batchID, err := h.codeService.GenerateCodes(c.Request.Context(), adminID, &params)
	if err != nil {
		response.EngineError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, "codes generated", gin.H{
		"batch_id": batchID,
		"count":    len(codes),
		"codes":    codes,
	})
}

// List returns the filtered code inventory.
func (h *CodeHandler) List(c *gin.Context) {
	var filters code.ListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.ValidationError(c, "invalid filters", err)
		return
	}

	result, err := h.codeService.List(c.Request.Context(), filters)
	if err != nil {
		response.EngineError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "codes retrieved", result)
}

// Stats returns aggregate code inventory statistics.
func (h *CodeHandler) Stats(c *gin.Context) {
	stats, err := h.codeService.Stats(c.Request.Context())
	if err != nil {
		response.EngineError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "code stats retrieved", stats)
}

// Get returns one code.
func (h *CodeHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ValidationError(c, "invalid code ID", err)
		return
	}

	ltdCode, err := h.codeService.Get(c.Request.Context(), id)
	if err != nil {
		response.EngineError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "code retrieved", ltdCode)
}

// Update edits one code.
func (h *CodeHandler) Update(c *gin.Context) {
	adminID := middleware.MustGetUserID(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ValidationError(c, "invalid code ID", err)
		return
	}

	var req code.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	updated, err := h.codeService.Update(c.Request.Context(), adminID, id, &req)
	if err != nil {
		response.EngineError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "code updated", updated)
}

// Delete removes one code (or deactivates it when it has redemptions).
func (h *CodeHandler) Delete(c *gin.Context) {
	adminID := middleware.MustGetUserID(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ValidationError(c, "invalid code ID", err)
		return
	}

	if err := h.codeService.Delete(c.Request.Context(), adminID, id); err != nil {
		response.EngineError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "code deleted", nil)
}

// RevokeBatch deactivates every active code in a batch.
func (h *CodeHandler) RevokeBatch(c *gin.Context) {
	adminID := middleware.MustGetUserID(c)

	batchID := c.Param("batch_id")
	if batchID == "" {
		response.ValidationError(c, "batch_id is required", nil)
		return
	}

	revoked, err := h.codeService.RevokeBatch(c.Request.Context(), adminID, batchID)
	if err != nil {
		response.EngineError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "batch revoked", gin.H{
		"batch_id": batchID,
		"revoked":  revoked,
	})
}
