package usage

import (
	"context"
	"testing"
	"time"

	"repurpose-service/internal/domain/plan"
	"repurpose-service/internal/domain/usage"
	xerrors "repurpose-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type counterKey struct {
	userID    int64
	feature   usage.Feature
	monthYear string
}

type fakeStore struct {
	monthly  map[counterKey]int
	profiles map[int64]int
	seats    map[int64]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		monthly:  map[counterKey]int{},
		profiles: map[int64]int{},
		seats:    map[int64]int{},
	}
}

func (s *fakeStore) MonthlyCount(ctx context.Context, userID int64, feature usage.Feature, monthYear string) (int, error) {
	return s.monthly[counterKey{userID, feature, monthYear}], nil
}

func (s *fakeStore) MonthCounters(ctx context.Context, userID int64, monthYear string) ([]usage.Counter, error) {
	var out []usage.Counter
	for key, count := range s.monthly {
		if key.userID == userID && key.monthYear == monthYear {
			out = append(out, usage.Counter{UserID: userID, Feature: key.feature, MonthYear: monthYear, Count: count})
		}
	}
	return out, nil
}

func (s *fakeStore) IncrementMonthly(ctx context.Context, userID int64, feature usage.Feature, monthYear string, amount int) (int, error) {
	key := counterKey{userID, feature, monthYear}
	s.monthly[key] += amount
	return s.monthly[key], nil
}

func (s *fakeStore) StyleProfileCount(ctx context.Context, userID int64) (int, error) {
	return s.profiles[userID], nil
}

func (s *fakeStore) TeamMemberCount(ctx context.Context, ownerID int64) (int, error) {
	return s.seats[ownerID], nil
}

type fakePlans struct {
	rec *plan.Record
}

func (p *fakePlans) FindByID(ctx context.Context, userID int64) (*plan.Record, error) {
	if p.rec == nil {
		return nil, xerrors.ErrUserNotFound
	}
	cp := *p.rec
	return &cp, nil
}

var fixedNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

func newTestService(store *fakeStore, tier int) *Service {
	rec := &plan.Record{
		UserID:             42,
		PlanType:           plan.PlanLTD,
		Tier:               tier,
		SubscriptionStatus: plan.StatusForTier(tier),
	}
	svc := NewService(store, &fakePlans{rec: rec}, zap.NewNop())
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestCheckTierGating(t *testing.T) {
	store := newFakeStore()

	// Scheduling opens at tier 2.
	res, err := newTestService(store, 1).Check(context.Background(), 42, usage.FeatureScheduling)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, "Content Scheduling is a Tier 2+ feature", res.Reason)

	res, err = newTestService(store, 2).Check(context.Background(), 42, usage.FeatureScheduling)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 30, res.Limit)

	// AI chat opens at tier 3, team seats at tier 4.
	res, err = newTestService(store, 2).Check(context.Background(), 42, usage.FeatureAIChat)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	res, err = newTestService(store, 3).Check(context.Background(), 42, usage.FeatureTeamSeats)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, "Team Collaboration is a Tier 4+ feature", res.Reason)
}

func TestCheckMonthlyCap(t *testing.T) {
	store := newFakeStore()
	store.monthly[counterKey{42, usage.FeatureScheduling, "2026-03"}] = 29
	svc := newTestService(store, 2)

	res, err := svc.Check(context.Background(), 42, usage.FeatureScheduling)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 29, res.Current)

	store.monthly[counterKey{42, usage.FeatureScheduling, "2026-03"}] = 30
	res, err = svc.Check(context.Background(), 42, usage.FeatureScheduling)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "limit reached")
}

// Tier 4 scheduling is unlimited; no count ever denies it.
func TestCheckUnlimited(t *testing.T) {
	store := newFakeStore()
	store.monthly[counterKey{42, usage.FeatureScheduling, "2026-03"}] = 1_000_000
	svc := newTestService(store, 4)

	res, err := svc.Check(context.Background(), 42, usage.FeatureScheduling)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

// A new month starts a fresh counter row; last month's usage is invisible.
func TestCheckNewMonthResetsCount(t *testing.T) {
	store := newFakeStore()
	store.monthly[counterKey{42, usage.FeatureScheduling, "2026-02"}] = 30
	svc := newTestService(store, 2)

	res, err := svc.Check(context.Background(), 42, usage.FeatureScheduling)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 0, res.Current)
}

func TestCheckPersistentFeatures(t *testing.T) {
	store := newFakeStore()
	store.profiles[42] = 1
	svc := newTestService(store, 3) // tier 3: 1 style profile

	res, err := svc.Check(context.Background(), 42, usage.FeatureStyleProfiles)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 1, res.Current)

	store.profiles[42] = 0
	res, err = svc.Check(context.Background(), 42, usage.FeatureStyleProfiles)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestCheckUnknownFeature(t *testing.T) {
	svc := newTestService(newFakeStore(), 2)
	_, err := svc.Check(context.Background(), 42, usage.Feature("bogus"))
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestIncrement(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, 2)

	res, err := svc.Increment(context.Background(), 42, usage.FeatureScheduling, 1)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Current)

	// amount < 1 coerces to 1
	res, err = svc.Increment(context.Background(), 42, usage.FeatureScheduling, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Current)

	res, err = svc.Increment(context.Background(), 42, usage.FeatureScheduling, 5)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Current)
}

func TestIncrementDeniedAtCap(t *testing.T) {
	store := newFakeStore()
	store.monthly[counterKey{42, usage.FeatureScheduling, "2026-03"}] = 30
	svc := newTestService(store, 2)

	res, err := svc.Increment(context.Background(), 42, usage.FeatureScheduling, 1)
	assert.ErrorIs(t, err, xerrors.ErrMonthlyLimitReached)
	require.NotNil(t, res)
	assert.False(t, res.Allowed)
	assert.Equal(t, 30, store.monthly[counterKey{42, usage.FeatureScheduling, "2026-03"}])
}

func TestIncrementRejectsPersistentFeatures(t *testing.T) {
	svc := newTestService(newFakeStore(), 4)
	_, err := svc.Increment(context.Background(), 42, usage.FeatureStyleProfiles, 1)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	_, err = svc.Increment(context.Background(), 42, usage.FeatureTeamSeats, 1)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestStats(t *testing.T) {
	store := newFakeStore()
	store.monthly[counterKey{42, usage.FeatureScheduling, "2026-03"}] = 12
	store.monthly[counterKey{42, usage.FeatureAIChat, "2026-03"}] = 40
	store.profiles[42] = 1
	store.seats[42] = 2
	svc := newTestService(store, 4)

	stats, err := svc.Stats(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, "2026-03", stats.Month)
	assert.Equal(t, 12, stats.Scheduling.Current)
	assert.Equal(t, -1, stats.Scheduling.Limit)
	assert.Equal(t, 2, stats.Scheduling.TierRequired)
	assert.Equal(t, 40, stats.Chat.Current)
	assert.Equal(t, 3, stats.Chat.TierRequired)
	assert.Equal(t, 2500, stats.API.Limit)
	assert.Equal(t, 1, stats.StyleProfiles.Current)
	assert.Equal(t, 3, stats.StyleProfiles.Limit)
	assert.Equal(t, 2, stats.TeamSeats.Current)
	assert.Equal(t, 3, stats.TeamSeats.Limit)
}

// A lower tier reports 0 limits for features it does not have.
func TestStatsGatedFeaturesZeroed(t *testing.T) {
	svc := newTestService(newFakeStore(), 1)

	stats, err := svc.Stats(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Scheduling.Limit)
	assert.Equal(t, 0, stats.Chat.Limit)
	assert.Equal(t, 4, stats.TeamSeats.TierRequired)
}
