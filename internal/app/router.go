// internal/app/router.go
package app

import (
	adminHandler "repurpose-service/internal/handlers/admin"
	codeHandler "repurpose-service/internal/handlers/code"
	creditHandler "repurpose-service/internal/handlers/credit"
	entitlementHandler "repurpose-service/internal/handlers/entitlement"
	tierHandler "repurpose-service/internal/handlers/tiers"
	usageHandler "repurpose-service/internal/handlers/usage"
	"repurpose-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	TierHandler        *tierHandler.TierHandler
	EntitlementHandler *entitlementHandler.EntitlementHandler
	CreditHandler      *creditHandler.CreditHandler
	CodeHandler        *codeHandler.CodeHandler
	UsageHandler       *usageHandler.UsageHandler
	AdminHandler       *adminHandler.AdminHandler
	AuthMiddleware     *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== Tier Catalog (public) ====================
	tiers := api.Group("/tiers")
	{
		tiers.GET("", h.TierHandler.ListTiers)
		tiers.GET("/compare", h.TierHandler.CompareTiers)
	}

	// ==================== Entitlements ====================
	entitlements := api.Group("/entitlements")
	entitlements.Use(h.AuthMiddleware.Auth())
	{
		entitlements.GET("/feature", h.EntitlementHandler.CheckFeature)   // ?path=scheduling.posts_per_month
		entitlements.GET("/credits", h.EntitlementHandler.CheckCredits)   // ?action=generate_post&cost=2
		entitlements.GET("/features", h.EntitlementHandler.Features)
	}

	// ==================== Credits ====================
	credits := api.Group("/credits")
	credits.Use(h.AuthMiddleware.Auth())
	{
		credits.POST("/debit", h.CreditHandler.Debit)
		credits.GET("/analytics", h.CreditHandler.Analytics) // ?days=30
		credits.GET("/history", h.CreditHandler.History)     // ?limit=50
		credits.POST("/reset-check", h.CreditHandler.ResetCheck)
	}

	// ==================== LTD Codes ====================
	codes := api.Group("/codes")
	codes.Use(h.AuthMiddleware.Auth())
	{
		codes.POST("/redeem", h.CodeHandler.Redeem)
		codes.GET("/redemptions", h.CodeHandler.MyRedemptions)
	}

	// ==================== Feature Usage ====================
	usage := api.Group("/usage")
	usage.Use(h.AuthMiddleware.Auth())
	{
		usage.GET("", h.UsageHandler.Stats)
		usage.GET("/:feature", h.UsageHandler.Check)
		usage.POST("/:feature", h.UsageHandler.Increment)
	}

	// ==================== ADMIN ROUTES ====================
	admin := api.Group("/admin")
	admin.Use(h.AuthMiddleware.Auth(), h.AuthMiddleware.RequireAdmin())
	{
		// Code management
		adminCodes := admin.Group("/codes")
		{
			adminCodes.POST("/generate", h.CodeHandler.Generate)
			adminCodes.GET("", h.CodeHandler.List)
			adminCodes.GET("/stats", h.CodeHandler.Stats)
			adminCodes.GET("/:id", h.CodeHandler.Get)
			adminCodes.PATCH("/:id", h.CodeHandler.Update)
			adminCodes.DELETE("/:id", h.CodeHandler.Delete)
			adminCodes.POST("/batch/:batch_id/revoke", h.CodeHandler.RevokeBatch)
		}

		// User and plan management
		adminUsers := admin.Group("/users")
		{
			adminUsers.GET("", h.AdminHandler.ListUsers)
			adminUsers.GET("/:id", h.AdminHandler.GetUser)
			adminUsers.PATCH("/:id/plan", h.AdminHandler.UpdateUserPlan)
			adminUsers.GET("/:id/audit", h.AdminHandler.UserAuditTrail)
		}

		admin.POST("/credits/add", h.AdminHandler.AddCredits)
		admin.POST("/reconcile/sweep", h.AdminHandler.ReconcileSweep)
	}
}
