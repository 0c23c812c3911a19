// internal/service/usage/usage_service.go
package usage

import (
	"context"
	"fmt"
	"time"

	"repurpose-service/internal/domain/plan"
	"repurpose-service/internal/domain/usage"
	xerrors "repurpose-service/internal/pkg/errors"
	"repurpose-service/internal/tiers"

	"go.uber.org/zap"
)

// Store is the counter persistence surface. Satisfied by
// postgres.UsageRepository.
type Store interface {
	MonthlyCount(ctx context.Context, userID int64, feature usage.Feature, monthYear string) (int, error)
	MonthCounters(ctx context.Context, userID int64, monthYear string) ([]usage.Counter, error)
	IncrementMonthly(ctx context.Context, userID int64, feature usage.Feature, monthYear string, amount int) (int, error)
	StyleProfileCount(ctx context.Context, userID int64) (int, error)
	TeamMemberCount(ctx context.Context, ownerID int64) (int, error)
}

type PlanStore interface {
	FindByID(ctx context.Context, userID int64) (*plan.Record, error)
}

type Service struct {
	store  Store
	plans  PlanStore
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store Store, plans PlanStore, logger *zap.Logger) *Service {
	return &Service{store: store, plans: plans, logger: logger, now: time.Now}
}

// featurePath maps a counter feature to its catalog entitlement path.
func featurePath(f usage.Feature) string {
	switch f {
	case usage.FeatureScheduling:
		return "scheduling"
	case usage.FeatureAIChat:
		return "ai_chat"
	case usage.FeatureAPICalls:
		return "api_access"
	case usage.FeatureStyleProfiles:
		return "style_training"
	case usage.FeatureTeamSeats:
		return "team_collaboration"
	default:
		return ""
	}
}

// featureName is the human label used in denial reasons.
func featureName(f usage.Feature) string {
	switch f {
	case usage.FeatureScheduling:
		return "Content Scheduling"
	case usage.FeatureAIChat:
		return "AI Chat Assistant"
	case usage.FeatureAPICalls:
		return "API Access"
	case usage.FeatureStyleProfiles:
		return "Style Training"
	case usage.FeatureTeamSeats:
		return "Team Collaboration"
	default:
		return string(f)
	}
}

// limitFor resolves a tier's cap for one counter feature from the catalog.
// The second return is false when the tier does not have the feature at
// all.
func limitFor(tier int, f usage.Feature) (tiers.Limit, bool) {
	cfg, err := tiers.Get(tier)
	if err != nil {
		return 0, false
	}
	switch f {
	case usage.FeatureScheduling:
		return cfg.Features.Scheduling.PostsPerMonth, cfg.Features.Scheduling.Enabled
	case usage.FeatureAIChat:
		return cfg.Features.AIChat.MessagesPerMonth, cfg.Features.AIChat.Enabled
	case usage.FeatureAPICalls:
		return cfg.Features.APIAccess.CallsPerMonth, cfg.Features.APIAccess.Enabled
	case usage.FeatureStyleProfiles:
		return tiers.Limit(cfg.Features.StyleTraining.Profiles), cfg.Features.StyleTraining.Enabled
	case usage.FeatureTeamSeats:
		return tiers.Limit(cfg.Features.TeamCollaboration.TeamMembers), cfg.Features.TeamCollaboration.Enabled
	default:
		return 0, false
	}
}

// current reads the live count for a feature: monthly features from the
// month's counter row, persistent ones from their tables.
func (s *Service) current(ctx context.Context, userID int64, f usage.Feature) (int, error) {
	switch f {
	case usage.FeatureStyleProfiles:
		return s.store.StyleProfileCount(ctx, userID)
	case usage.FeatureTeamSeats:
		return s.store.TeamMemberCount(ctx, userID)
	default:
		return s.store.MonthlyCount(ctx, userID, f, usage.MonthKey(s.now()))
	}
}

// Check answers whether one more use of a feature is allowed right now.
func (s *Service) Check(ctx context.Context, userID int64, f usage.Feature) (*usage.CheckResult, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: unknown feature %q", xerrors.ErrInvalidInput, f)
	}
	rec, err := s.plans.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	limit, enabled := limitFor(rec.Tier, f)
	if !enabled {
		required := tiers.MinimumTierFor(featurePath(f))
		return &usage.CheckResult{
			Allowed: false,
			Current: 0,
			Limit:   0,
			Reason:  fmt.Sprintf("%s is a Tier %d+ feature", featureName(f), required),
		}, nil
	}

	current, err := s.current(ctx, userID, f)
	if err != nil {
		return nil, err
	}

	if !limit.Allows(current) {
		return &usage.CheckResult{
			Allowed: false,
			Current: current,
			Limit:   int(limit),
			Reason:  fmt.Sprintf("monthly %s limit reached (%s for Tier %d)", featureName(f), limit, rec.Tier),
		}, nil
	}
	return &usage.CheckResult{Allowed: true, Current: current, Limit: int(limit)}, nil
}

// Increment records amount uses of a monthly feature after re-checking the
// cap. Persistent features (style profiles, team seats) are counted from
// their own tables and cannot be incremented here.
func (s *Service) Increment(ctx context.Context, userID int64, f usage.Feature, amount int) (*usage.CheckResult, error) {
	if !f.Monthly() {
		return nil, fmt.Errorf("%w: %s is counted from live rows, not incremented", xerrors.ErrInvalidInput, f)
	}
	if amount < 1 {
		amount = 1
	}

	check, err := s.Check(ctx, userID, f)
	if err != nil {
		return nil, err
	}
	if !check.Allowed {
		return check, xerrors.ErrMonthlyLimitReached
	}

	count, err := s.store.IncrementMonthly(ctx, userID, f, usage.MonthKey(s.now()), amount)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("usage incremented",
		zap.Int64("user_id", userID),
		zap.String("feature", string(f)),
		zap.Int("count", count),
	)
	return &usage.CheckResult{Allowed: true, Current: count, Limit: check.Limit}, nil
}

// Stats is the full per-user usage rollup for the current month.
func (s *Service) Stats(ctx context.Context, userID int64) (*usage.Stats, error) {
	rec, err := s.plans.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	month := usage.MonthKey(s.now())
	counters, err := s.store.MonthCounters(ctx, userID, month)
	if err != nil {
		return nil, err
	}
	counts := make(map[usage.Feature]int, len(counters))
	for _, c := range counters {
		counts[c.Feature] = c.Count
	}

	stats := &usage.Stats{Month: month}
	fill := func(f usage.Feature, into *usage.FeatureStat) error {
		current := counts[f]
		if f == usage.FeatureStyleProfiles || f == usage.FeatureTeamSeats {
			var err error
			if current, err = s.current(ctx, userID, f); err != nil {
				return err
			}
		}
		limit, enabled := limitFor(rec.Tier, f)
		if !enabled {
			limit = 0
		}
		into.Current = current
		into.Limit = int(limit)
		into.TierRequired = tiers.MinimumTierFor(featurePath(f))
		return nil
	}

	if err := fill(usage.FeatureScheduling, &stats.Scheduling); err != nil {
		return nil, err
	}
	if err := fill(usage.FeatureAIChat, &stats.Chat); err != nil {
		return nil, err
	}
	if err := fill(usage.FeatureAPICalls, &stats.API); err != nil {
		return nil, err
	}
	if err := fill(usage.FeatureStyleProfiles, &stats.StyleProfiles); err != nil {
		return nil, err
	}
	if err := fill(usage.FeatureTeamSeats, &stats.TeamSeats); err != nil {
		return nil, err
	}
	return stats, nil
}
