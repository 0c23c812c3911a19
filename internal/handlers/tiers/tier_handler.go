// internal/handlers/tiers/tier_handler.go
package tiers

import (
	"net/http"

	"repurpose-service/internal/pkg/response"
	"repurpose-service/internal/tiers"

	"github.com/gin-gonic/gin"
)

// TierHandler serves the public tier catalog, the data behind the pricing
// page.
type TierHandler struct{}

func NewTierHandler() *TierHandler {
	return &TierHandler{}
}

// ListTiers returns all four tier configs.
func (h *TierHandler) ListTiers(c *gin.Context) {
	response.Success(c, http.StatusOK, "tiers retrieved", tiers.All())
}

// CompareTiers returns a feature-by-feature comparison across tiers.
func (h *TierHandler) CompareTiers(c *gin.Context) {
	paths := tiers.Paths()
	rows := make([]gin.H, 0, len(paths))
	for _, path := range paths {
		row := gin.H{"feature": path}
		for tier := tiers.MinTier; tier <= tiers.MaxTier; tier++ {
			row[tierKey(tier)] = tiers.FeatureValue(tier, path)
		}
		rows = append(rows, row)
	}
	response.Success(c, http.StatusOK, "tier comparison retrieved", gin.H{
		"features": rows,
	})
}

func tierKey(tier int) string {
	return [...]string{"tier_1", "tier_2", "tier_3", "tier_4"}[tier-1]
}
