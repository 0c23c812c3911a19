// internal/service/entitlement/entitlement_service.go
package entitlement

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"repurpose-service/internal/domain/plan"
	"repurpose-service/internal/tiers"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// PlanStore loads plan snapshots. Satisfied by postgres.PlanRepository.
type PlanStore interface {
	FindByID(ctx context.Context, userID int64) (*plan.Record, error)
}

// FeatureAccess is the answer to "may this user use this feature".
type FeatureAccess struct {
	Allowed     bool        `json:"allowed"`
	Reason      string      `json:"reason,omitempty"`
	Limit       interface{} `json:"limit,omitempty"`
	UpgradeTier int         `json:"upgrade_tier,omitempty"`
	UpgradePlan string      `json:"upgrade_plan,omitempty"`
}

// CreditAccess is the read-only answer to "could this user afford this
// action right now". It never debits; the balance may move before the
// caller acts on it.
type CreditAccess struct {
	Allowed bool    `json:"allowed"`
	Current float64 `json:"current"`
	Cost    float64 `json:"cost"`
	Reason  string  `json:"reason,omitempty"`
}

const (
	planCacheTTL    = 60 * time.Second
	planCachePrefix = "plan:"
)

type Service struct {
	plans  PlanStore
	cache  redis.UniversalClient
	logger *zap.Logger
}

// NewService builds the resolver. cache may be nil; every lookup then goes
// straight to the store.
func NewService(plans PlanStore, cache redis.UniversalClient, logger *zap.Logger) *Service {
	return &Service{plans: plans, cache: cache, logger: logger}
}

// Plan returns a user's plan snapshot, served from the short-TTL cache
// when possible. Mutating flows must invalidate via InvalidatePlan; the
// TTL only bounds staleness for readers that race the invalidation.
func (s *Service) Plan(ctx context.Context, userID int64) (*plan.Record, error) {
	key := planCacheKey(userID)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key).Result(); err == nil {
			var rec plan.Record
			if err := json.Unmarshal([]byte(raw), &rec); err == nil {
				return &rec, nil
			}
		}
	}

	rec, err := s.plans.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(rec); err == nil {
			if err := s.cache.Set(ctx, key, raw, planCacheTTL).Err(); err != nil {
				s.logger.Debug("plan cache set failed", zap.Int64("user_id", userID), zap.Error(err))
			}
		}
	}
	return rec, nil
}

// InvalidatePlan drops the cached snapshot after any plan mutation.
func (s *Service) InvalidatePlan(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, planCacheKey(userID)).Err(); err != nil {
		s.logger.Warn("plan cache invalidation failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func planCacheKey(userID int64) string {
	return fmt.Sprintf("%s%d", planCachePrefix, userID)
}

// CheckFeatureAccess decides whether a user may use a feature, routing by
// plan type: LTD plans resolve against the tier catalog, subscription
// plans against the status rule table. LTD denials carry the minimum tier
// that would grant the feature.
func (s *Service) CheckFeatureAccess(ctx context.Context, userID int64, featurePath string) (*FeatureAccess, error) {
	rec, err := s.Plan(ctx, userID)
	if err != nil {
		return nil, err
	}

	if rec.IsLTD() {
		if !tiers.HasFeature(rec.Tier, featurePath) {
			return &FeatureAccess{
				Allowed:     false,
				Reason:      fmt.Sprintf("feature not available in tier %d", rec.Tier),
				UpgradeTier: tiers.MinimumTierFor(featurePath),
			}, nil
		}
		return &FeatureAccess{
			Allowed: true,
			Limit:   tiers.FeatureValue(rec.Tier, featurePath),
		}, nil
	}

	return subscriptionAccess(rec.SubscriptionStatus, featurePath), nil
}

// CheckCreditAccess reports whether the balance covers an action without
// touching it. cost 0 resolves the cost from the action and tier.
func (s *Service) CheckCreditAccess(ctx context.Context, userID int64, action string, cost float64) (*CreditAccess, error) {
	rec, err := s.Plan(ctx, userID)
	if err != nil {
		return nil, err
	}

	if cost <= 0 {
		cost = tiers.CreditCost(action, rec.Tier)
	}

	if rec.Credits < cost {
		return &CreditAccess{
			Allowed: false,
			Current: rec.Credits,
			Cost:    cost,
			Reason:  fmt.Sprintf("insufficient credits: required %.2f, available %.2f", cost, rec.Credits),
		}, nil
	}
	return &CreditAccess{Allowed: true, Current: rec.Credits, Cost: cost}, nil
}

// UserFeatures returns the full feature view for a user's plan.
func (s *Service) UserFeatures(ctx context.Context, userID int64) (map[string]interface{}, error) {
	rec, err := s.Plan(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec.IsLTD() {
		return tiers.FeatureMap(rec.Tier)
	}
	return subscriptionFeatures(rec.SubscriptionStatus), nil
}

// subscriptionAccessMap is the rule table for non-LTD plans: which
// top-level features each status unlocks.
var subscriptionAccessMap = map[plan.SubscriptionStatus][]string{
	plan.StatusFree: {
		"content_repurposing",
		"trending_topics",
	},
	plan.StatusStarter: {
		"content_repurposing",
		"trending_topics",
		"analytics",
	},
	plan.StatusPro: {
		"content_repurposing",
		"trending_topics",
		"analytics",
		"viral_hooks",
		"scheduling",
		"predictive_performance",
	},
	plan.StatusEnterprise: {
		"content_repurposing",
		"trending_topics",
		"analytics",
		"viral_hooks",
		"scheduling",
		"predictive_performance",
		"ai_chat",
		"style_training",
		"bulk_generation",
		"team_collaboration",
		"api_access",
	},
}

func subscriptionAccess(status plan.SubscriptionStatus, featurePath string) *FeatureAccess {
	// A plan row can carry an ltd_tier_* status while plan_type is still
	// mid-migration; treat it as allowed rather than deny on the seam.
	if plan.TierFromStatus(status) > 0 {
		return &FeatureAccess{Allowed: true}
	}

	baseFeature := featurePath
	if idx := strings.Index(featurePath, "."); idx >= 0 {
		baseFeature = featurePath[:idx]
	}

	for _, f := range subscriptionAccessMap[status] {
		if f == baseFeature {
			return &FeatureAccess{Allowed: true}
		}
	}

	upgrade := "enterprise"
	if status == plan.StatusFree {
		upgrade = "pro"
	}
	return &FeatureAccess{
		Allowed:     false,
		Reason:      fmt.Sprintf("feature requires the %s plan", upgrade),
		UpgradePlan: upgrade,
	}
}

func subscriptionFeatures(status plan.SubscriptionStatus) map[string]interface{} {
	basic := map[string]interface{}{
		"content_repurposing": map[string]interface{}{"enabled": true, "platforms": 2},
		"trending_topics":     map[string]interface{}{"enabled": true, "hashtags": 5},
		"analytics":           map[string]interface{}{"enabled": true, "history_days": 7},
	}
	if status != plan.StatusPro && status != plan.StatusEnterprise {
		return basic
	}

	pro := basic
	pro["content_repurposing"] = map[string]interface{}{"enabled": true, "platforms": 4}
	pro["trending_topics"] = map[string]interface{}{"enabled": true, "hashtags": "unlimited"}
	pro["analytics"] = map[string]interface{}{"enabled": true, "history_days": 30}
	pro["viral_hooks"] = map[string]interface{}{"enabled": true}
	pro["scheduling"] = map[string]interface{}{"enabled": true, "posts_per_month": 50}
	pro["predictive_performance"] = map[string]interface{}{"enabled": true}
	if status == plan.StatusPro {
		return pro
	}

	pro["analytics"] = map[string]interface{}{"enabled": true, "history_days": "unlimited"}
	pro["scheduling"] = map[string]interface{}{"enabled": true, "posts_per_month": "unlimited"}
	pro["ai_chat"] = map[string]interface{}{"enabled": true}
	pro["style_training"] = map[string]interface{}{"enabled": true}
	pro["bulk_generation"] = map[string]interface{}{"enabled": true}
	pro["team_collaboration"] = map[string]interface{}{"enabled": true}
	pro["api_access"] = map[string]interface{}{"enabled": true}
	return pro
}
