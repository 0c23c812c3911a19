package tiers

// Metered actions.
const (
	ActionContentRepurposing    = "content_repurposing"
	ActionViralHook             = "viral_hook"
	ActionTrendContent          = "trend_content"
	ActionSchedulePost          = "schedule_post"
	ActionPerformancePrediction = "performance_prediction"
	ActionAIChatConversation    = "ai_chat_conversation"
	ActionStyleTraining         = "style_training"
	ActionBulkGeneration        = "bulk_generation"
)

// ActionCost is the price of one metered action: a base cost plus optional
// per-tier overrides (higher tiers pay less for some actions).
type ActionCost struct {
	Action        string          `json:"action"`
	BaseCost      float64         `json:"base_cost"`
	TierOverrides map[int]float64 `json:"tier_overrides,omitempty"`
}

var creditCosts = map[string]ActionCost{
	ActionContentRepurposing: {
		Action:   "Content Repurposing (per platform)",
		BaseCost: 1,
	},
	ActionViralHook: {
		Action:   "Viral Hook Generation",
		BaseCost: 2,
	},
	ActionTrendContent: {
		Action:   "Trend-Based Content",
		BaseCost: 1,
	},
	ActionSchedulePost: {
		Action:   "Schedule Post",
		BaseCost: 0.5,
	},
	ActionPerformancePrediction: {
		Action:   "AI Performance Prediction",
		BaseCost: 1,
	},
	ActionAIChatConversation: {
		Action:   "AI Chat (per 2 messages)",
		BaseCost: 0.5,
		TierOverrides: map[int]float64{
			3: 0.5,
			4: 0.3,
		},
	},
	ActionStyleTraining: {
		Action:   "Style Training Session",
		BaseCost: 5,
	},
	ActionBulkGeneration: {
		Action:   "Bulk Generation (per piece)",
		BaseCost: 0.9,
		TierOverrides: map[int]float64{
			4: 0.8,
		},
	},
}

// CreditCost resolves the credit price of an action for a tier. Unknown
// actions cost nothing; tier 0 means "no LTD tier" and always pays base.
func CreditCost(action string, tier int) float64 {
	cost, ok := creditCosts[action]
	if !ok {
		return 0
	}
	if override, ok := cost.TierOverrides[tier]; ok {
		return override
	}
	return cost.BaseCost
}

// Costs returns the full action cost table for display.
func Costs() map[string]ActionCost {
	out := make(map[string]ActionCost, len(creditCosts))
	for k, v := range creditCosts {
		out[k] = v
	}
	return out
}
