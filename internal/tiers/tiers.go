// Package tiers holds the immutable lifetime-deal tier catalog: what each
// tier includes, per-feature limits and per-action credit costs. Pure
// lookups, no I/O; the four configs are built once at package init and
// never mutated.
package tiers

import (
	"fmt"

	xerrors "repurpose-service/internal/pkg/errors"
)

// Limit is a numeric feature cap. Unlimited disables the comparison.
type Limit int

const Unlimited Limit = -1

// Allows reports whether current usage is below the cap.
func (l Limit) Allows(current int) bool {
	return l == Unlimited || current < int(l)
}

func (l Limit) String() string {
	if l == Unlimited {
		return "unlimited"
	}
	return fmt.Sprintf("%d", int(l))
}

type SupportTier string

const (
	SupportCommunity      SupportTier = "community"
	SupportPriority48h    SupportTier = "priority_48hr"
	SupportPriority24h    SupportTier = "priority_24hr"
	SupportPriorityChat4h SupportTier = "priority_chat_4hr"
)

type AlertCadence string

const (
	AlertsNone   AlertCadence = ""
	AlertsWeekly AlertCadence = "weekly"
	AlertsDaily  AlertCadence = "daily"
)

// Per-feature descriptors. Each feature is its own typed record so adding
// a tier or feature is a compile-time-checked change.

type ContentRepurposing struct {
	Platforms       int      `json:"platforms"`
	InputMethods    []string `json:"input_methods"`
	Templates       Limit    `json:"templates"`
	CustomTemplates Limit    `json:"custom_templates,omitempty"`
}

type TrendingTopics struct {
	Enabled            bool         `json:"enabled"`
	Hashtags           Limit        `json:"hashtags"`
	Sources            []string     `json:"sources"`
	Alerts             AlertCadence `json:"alerts,omitempty"`
	CompetitorTracking bool         `json:"competitor_tracking"`
}

type Analytics struct {
	HistoryDays            Limit    `json:"history_days"`
	Export                 bool     `json:"export"`
	Formats                []string `json:"formats,omitempty"`
	CompetitorBenchmarking bool     `json:"competitor_benchmarking"`
	TeamDashboard          bool     `json:"team_dashboard"`
}

type ViralHooks struct {
	Enabled   bool `json:"enabled"`
	Patterns  int  `json:"patterns,omitempty"`
	ABTesting bool `json:"ab_testing"`
}

type Scheduling struct {
	Enabled          bool  `json:"enabled"`
	PostsPerMonth    Limit `json:"posts_per_month,omitempty"`
	Bulk             bool  `json:"bulk"`
	AutoPosting      bool  `json:"auto_posting"`
	SmartSuggestions bool  `json:"smart_suggestions"`
}

type AIChat struct {
	Enabled          bool     `json:"enabled"`
	MessagesPerMonth Limit    `json:"messages_per_month,omitempty"`
	Models           []string `json:"models,omitempty"`
	CustomPrompts    bool     `json:"custom_prompts"`
}

type PredictivePerformance struct {
	Enabled          bool `json:"enabled"`
	OptimizationTips bool `json:"optimization_tips"`
}

type StyleTraining struct {
	Enabled     bool `json:"enabled"`
	Profiles    int  `json:"profiles,omitempty"`
	TeamSharing bool `json:"team_sharing"`
}

type BulkGeneration struct {
	Enabled   bool  `json:"enabled"`
	MaxPieces Limit `json:"max_pieces,omitempty"`
}

type TeamCollaboration struct {
	Enabled              bool `json:"enabled"`
	TeamMembers          int  `json:"team_members,omitempty"`
	RoleBasedPermissions bool `json:"role_based_permissions"`
}

type APIAccess struct {
	Enabled       bool  `json:"enabled"`
	CallsPerMonth Limit `json:"calls_per_month,omitempty"`
}

type WhiteLabel struct {
	Enabled        bool `json:"enabled"`
	RemoveBranding bool `json:"remove_branding"`
}

// Features describes everything a tier includes.
type Features struct {
	MonthlyCredits float64 `json:"monthly_credits"`
	RolloverMonths int     `json:"credit_rollover_months"`

	ContentRepurposing    ContentRepurposing    `json:"content_repurposing"`
	TrendingTopics        TrendingTopics        `json:"trending_topics"`
	Analytics             Analytics             `json:"analytics"`
	ContentHistoryDays    Limit                 `json:"content_history_days"`
	ViralHooks            ViralHooks            `json:"viral_hooks"`
	Scheduling            Scheduling            `json:"scheduling"`
	AIChat                AIChat                `json:"ai_chat"`
	PredictivePerformance PredictivePerformance `json:"predictive_performance"`
	StyleTraining         StyleTraining         `json:"style_training"`
	BulkGeneration        BulkGeneration        `json:"bulk_generation"`
	TeamCollaboration     TeamCollaboration     `json:"team_collaboration"`
	APIAccess             APIAccess             `json:"api_access"`
	WhiteLabel            WhiteLabel            `json:"white_label"`

	ProcessingSpeed  int         `json:"processing_speed"`
	Watermark        bool        `json:"watermark"`
	SupportTier      SupportTier `json:"support_tier"`
	EarlyAccess      bool        `json:"early_access"`
	DedicatedManager bool        `json:"dedicated_manager"`
}

// Config is one tier of the catalog.
type Config struct {
	Tier           int      `json:"tier"`
	Name           string   `json:"name"`
	Price          float64  `json:"price"`
	EarlyBirdPrice float64  `json:"early_bird_price,omitempty"`
	Description    string   `json:"description"`
	BestFor        string   `json:"best_for"`
	Popular        bool     `json:"popular,omitempty"`
	Features       Features `json:"features"`
}

const (
	MinTier = 1
	MaxTier = 4
)

var defaultInputMethods = []string{"text", "url", "youtube"}

// Tier 1: solo creators.
var tier1 = Config{
	Tier:           1,
	Name:           "License Tier 1",
	Price:          59,
	EarlyBirdPrice: 49,
	Description:    "Perfect for solo creators, bloggers, and small businesses",
	BestFor:        "Solo creators, bloggers, small business owners",
	Features: Features{
		MonthlyCredits: 100,
		RolloverMonths: 12,
		ContentRepurposing: ContentRepurposing{
			Platforms:    4,
			InputMethods: defaultInputMethods,
			Templates:    15,
		},
		TrendingTopics: TrendingTopics{
			Enabled:  true,
			Hashtags: 10,
			Sources:  []string{"reddit", "news"},
		},
		Analytics: Analytics{
			HistoryDays: 30,
		},
		ContentHistoryDays: 90,
		ProcessingSpeed:    1,
		Watermark:          true,
		SupportTier:        SupportCommunity,
	},
}

// Tier 2: content marketers.
var tier2 = Config{
	Tier:           2,
	Name:           "License Tier 2",
	Price:          139,
	EarlyBirdPrice: 119,
	Description:    "Ideal for content marketers, freelancers, and small agencies",
	BestFor:        "Content marketers, freelancers, small agencies",
	Features: Features{
		MonthlyCredits: 300,
		RolloverMonths: 12,
		ContentRepurposing: ContentRepurposing{
			Platforms:       4,
			InputMethods:    defaultInputMethods,
			Templates:       40,
			CustomTemplates: 5,
		},
		TrendingTopics: TrendingTopics{
			Enabled:  true,
			Hashtags: Unlimited,
			Sources:  []string{"reddit", "news", "google", "youtube"},
			Alerts:   AlertsWeekly,
		},
		Analytics: Analytics{
			HistoryDays: 180,
			Export:      true,
			Formats:     []string{"pdf", "excel"},
		},
		ContentHistoryDays: 180,
		ViralHooks: ViralHooks{
			Enabled:  true,
			Patterns: 50,
		},
		Scheduling: Scheduling{
			Enabled:       true,
			PostsPerMonth: 30,
		},
		ProcessingSpeed: 2,
		Watermark:       true,
		SupportTier:     SupportPriority48h,
	},
}

// Tier 3: agencies and power users. Most popular.
var tier3 = Config{
	Tier:           3,
	Name:           "License Tier 3",
	Price:          249,
	EarlyBirdPrice: 219,
	Description:    "Perfect for agencies, marketing teams, and power users",
	BestFor:        "Agencies, marketing teams, power users",
	Popular:        true,
	Features: Features{
		MonthlyCredits: 750,
		RolloverMonths: 12,
		ContentRepurposing: ContentRepurposing{
			Platforms:       4,
			InputMethods:    defaultInputMethods,
			Templates:       60,
			CustomTemplates: Unlimited,
		},
		TrendingTopics: TrendingTopics{
			Enabled:            true,
			Hashtags:           Unlimited,
			Sources:            []string{"reddit", "news", "google", "youtube"},
			Alerts:             AlertsWeekly,
			CompetitorTracking: true,
		},
		Analytics: Analytics{
			HistoryDays:            Unlimited,
			Export:                 true,
			Formats:                []string{"pdf", "excel", "csv"},
			CompetitorBenchmarking: true,
		},
		ContentHistoryDays: Unlimited,
		ViralHooks: ViralHooks{
			Enabled:  true,
			Patterns: 50,
		},
		Scheduling: Scheduling{
			Enabled:       true,
			PostsPerMonth: 100,
			Bulk:          true,
		},
		AIChat: AIChat{
			Enabled:          true,
			MessagesPerMonth: 200,
			Models:           []string{"qwen3-235b"},
		},
		PredictivePerformance: PredictivePerformance{
			Enabled:          true,
			OptimizationTips: true,
		},
		StyleTraining: StyleTraining{
			Enabled:  true,
			Profiles: 1,
		},
		BulkGeneration: BulkGeneration{
			Enabled:   true,
			MaxPieces: 5,
		},
		ProcessingSpeed: 3,
		SupportTier:     SupportPriority24h,
		EarlyAccess:     true,
	},
}

// Tier 4: enterprise.
var tier4 = Config{
	Tier:           4,
	Name:           "License Tier 4",
	Price:          449,
	EarlyBirdPrice: 399,
	Description:    "Enterprise solution for large agencies and teams",
	BestFor:        "Large agencies, enterprise teams",
	Features: Features{
		MonthlyCredits: 2000,
		RolloverMonths: 12,
		ContentRepurposing: ContentRepurposing{
			Platforms:       4,
			InputMethods:    defaultInputMethods,
			Templates:       60,
			CustomTemplates: Unlimited,
		},
		TrendingTopics: TrendingTopics{
			Enabled:            true,
			Hashtags:           Unlimited,
			Sources:            []string{"reddit", "news", "google", "youtube"},
			Alerts:             AlertsDaily,
			CompetitorTracking: true,
		},
		Analytics: Analytics{
			HistoryDays:            Unlimited,
			Export:                 true,
			Formats:                []string{"pdf", "excel", "csv"},
			CompetitorBenchmarking: true,
			TeamDashboard:          true,
		},
		ContentHistoryDays: Unlimited,
		ViralHooks: ViralHooks{
			Enabled:   true,
			Patterns:  50,
			ABTesting: true,
		},
		Scheduling: Scheduling{
			Enabled:          true,
			PostsPerMonth:    Unlimited,
			Bulk:             true,
			AutoPosting:      true,
			SmartSuggestions: true,
		},
		AIChat: AIChat{
			Enabled:          true,
			MessagesPerMonth: Unlimited,
			Models:           []string{"gpt-4o", "claude", "qwen"},
			CustomPrompts:    true,
		},
		PredictivePerformance: PredictivePerformance{
			Enabled:          true,
			OptimizationTips: true,
		},
		StyleTraining: StyleTraining{
			Enabled:     true,
			Profiles:    3,
			TeamSharing: true,
		},
		BulkGeneration: BulkGeneration{
			Enabled:   true,
			MaxPieces: Unlimited,
		},
		TeamCollaboration: TeamCollaboration{
			Enabled:              true,
			TeamMembers:          3,
			RoleBasedPermissions: true,
		},
		APIAccess: APIAccess{
			Enabled:       true,
			CallsPerMonth: 2500,
		},
		WhiteLabel: WhiteLabel{
			Enabled:        true,
			RemoveBranding: true,
		},
		ProcessingSpeed:  5,
		SupportTier:      SupportPriorityChat4h,
		EarlyAccess:      true,
		DedicatedManager: true,
	},
}

var catalog = [...]Config{tier1, tier2, tier3, tier4}

// All returns the full catalog ordered by tier.
func All() []Config {
	out := make([]Config, len(catalog))
	copy(out, catalog[:])
	return out
}

// Get returns the config for a tier, or ErrInvalidTier for anything
// outside 1..4.
func Get(tier int) (Config, error) {
	if tier < MinTier || tier > MaxTier {
		return Config{}, fmt.Errorf("%w: %d", xerrors.ErrInvalidTier, tier)
	}
	return catalog[tier-1], nil
}

// MonthlyCredits returns the monthly credit allowance for a tier, 0 for an
// invalid tier.
func MonthlyCredits(tier int) float64 {
	cfg, err := Get(tier)
	if err != nil {
		return 0
	}
	return cfg.Features.MonthlyCredits
}
