package code

import (
	"context"
	"database/sql"
	"regexp"
	"strings"
	"testing"
	"time"

	"repurpose-service/internal/domain/code"
	"repurpose-service/internal/domain/notification"
	"repurpose-service/internal/domain/plan"
	xerrors "repurpose-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeTx satisfies pgx.Tx through embedding; only Commit and Rollback are
// ever reached in these tests.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(ctx context.Context) error   { t.committed = true; return nil }
func (t *fakeTx) Rollback(ctx context.Context) error { t.rolledBack = true; return nil }

type fakeDB struct {
	lastTx *fakeTx
}

func (d *fakeDB) BeginTx(ctx context.Context) (pgx.Tx, error) {
	d.lastTx = &fakeTx{}
	return d.lastTx, nil
}

type appliedRedemption struct {
	userID          int64
	newTier         int
	newMonthlyLimit float64
	creditsToAdd    float64
	newStatus       plan.SubscriptionStatus
}

type fakePlans struct {
	records map[int64]*plan.Record
	applied []appliedRedemption
}

func (p *fakePlans) FindForUpdateTx(ctx context.Context, tx pgx.Tx, userID int64) (*plan.Record, error) {
	rec, ok := p.records[userID]
	if !ok {
		return nil, xerrors.ErrUserNotFound
	}
	cp := *rec
	return &cp, nil
}

func (p *fakePlans) ApplyRedemptionTx(ctx context.Context, tx pgx.Tx, userID int64, newTier int, newMonthlyLimit, creditsToAdd float64, newStatus plan.SubscriptionStatus) error {
	p.applied = append(p.applied, appliedRedemption{userID, newTier, newMonthlyLimit, creditsToAdd, newStatus})
	return nil
}

type fakeStore struct {
	existing      map[string]bool
	existsCalls   int
	inserted      []*code.LTDCode
	codes         map[string]*code.LTDCode
	redeemed      map[int64]map[int64]bool // userID -> codeID
	redemptions   []*code.Redemption
	incrementedID []int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		existing: map[string]bool{},
		codes:    map[string]*code.LTDCode{},
		redeemed: map[int64]map[int64]bool{},
	}
}

func (s *fakeStore) ExistsByCode(ctx context.Context, codeStr string) (bool, error) {
	s.existsCalls++
	return s.existing[codeStr], nil
}

func (s *fakeStore) InsertBatchTx(ctx context.Context, tx pgx.Tx, codes []*code.LTDCode) error {
	s.inserted = append(s.inserted, codes...)
	return nil
}

func (s *fakeStore) FindByCodeForUpdateTx(ctx context.Context, tx pgx.Tx, codeStr string) (*code.LTDCode, error) {
	c, ok := s.codes[strings.ToUpper(codeStr)]
	if !ok {
		return nil, xerrors.ErrCodeNotFound
	}
	return c, nil
}

func (s *fakeStore) IncrementRedemptionsTx(ctx context.Context, tx pgx.Tx, codeID int64) error {
	s.incrementedID = append(s.incrementedID, codeID)
	return nil
}

func (s *fakeStore) HasUserRedeemedTx(ctx context.Context, tx pgx.Tx, userID, codeID int64) (bool, error) {
	return s.redeemed[userID][codeID], nil
}

func (s *fakeStore) InsertRedemptionTx(ctx context.Context, tx pgx.Tx, red *code.Redemption) error {
	s.redemptions = append(s.redemptions, red)
	return nil
}

func (s *fakeStore) GetByID(ctx context.Context, id int64) (*code.LTDCode, error) {
	return nil, xerrors.ErrCodeNotFound
}

func (s *fakeStore) List(ctx context.Context, filters code.ListFilters) (*code.ListResponse, error) {
	return &code.ListResponse{}, nil
}

func (s *fakeStore) Update(ctx context.Context, id int64, req *code.UpdateRequest) (*code.LTDCode, error) {
	return &code.LTDCode{ID: id}, nil
}

func (s *fakeStore) Delete(ctx context.Context, id int64) error { return nil }

func (s *fakeStore) RevokeBatch(ctx context.Context, batchID string) (int64, error) { return 0, nil }

func (s *fakeStore) Stats(ctx context.Context) (*code.Stats, error) { return &code.Stats{}, nil }

func (s *fakeStore) UserRedemptions(ctx context.Context, userID int64) ([]code.Redemption, error) {
	return nil, nil
}

type fakeCache struct {
	invalidated []int64
}

func (c *fakeCache) InvalidatePlan(ctx context.Context, userID int64) {
	c.invalidated = append(c.invalidated, userID)
}

type fakeNotifier struct {
	requests chan *notification.Request
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{requests: make(chan *notification.Request, 8)}
}

func (n *fakeNotifier) Notify(ctx context.Context, req *notification.Request) {
	n.requests <- req
}

func (n *fakeNotifier) wait(t *testing.T) *notification.Request {
	t.Helper()
	select {
	case req := <-n.requests:
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("no notification received")
		return nil
	}
}

func newTestService(store *fakeStore, plans *fakePlans) (*Service, *fakeDB, *fakeCache, *fakeNotifier) {
	db := &fakeDB{}
	cache := &fakeCache{}
	notifier := newFakeNotifier()
	svc := NewService(store, plans, db, cache, notifier, nil, zap.NewNop())
	return svc, db, cache, notifier
}

var codeFormatRe = regexp.MustCompile(`^LTD-T2-[0-9A-F]{4}-[0-9A-F]{4}$`)

func TestGenerateCodes(t *testing.T) {
	store := newFakeStore()
	svc, db, _, _ := newTestService(store, &fakePlans{})

	codes, batchID, err := svc.GenerateCodes(context.Background(), 7, &code.GenerateParams{
		Tier:     2,
		Quantity: 25,
	})
	require.NoError(t, err)
	require.Len(t, codes, 25)
	assert.True(t, strings.HasPrefix(batchID, "BATCH-"))
	assert.True(t, db.lastTx.committed)

	seen := map[string]bool{}
	for _, c := range codes {
		assert.Regexp(t, codeFormatRe, c.Code)
		assert.False(t, seen[c.Code], "duplicate code %s in batch", c.Code)
		seen[c.Code] = true

		assert.Equal(t, 2, c.Tier)
		assert.Equal(t, 1, c.MaxRedemptions)
		assert.True(t, c.IsActive)
		assert.Equal(t, batchID, c.BatchID)
		assert.Equal(t, int64(7), c.CreatedByAdminID.Int64)
	}
	assert.Len(t, store.inserted, 25)
}

func TestGenerateCodesCustomPrefixAndExpiry(t *testing.T) {
	store := newFakeStore()
	svc, _, _, _ := newTestService(store, &fakePlans{})

	expires := time.Now().Add(30 * 24 * time.Hour)
	codes, _, err := svc.GenerateCodes(context.Background(), 7, &code.GenerateParams{
		Tier:           3,
		Quantity:       3,
		Prefix:         "LAUNCH-",
		MaxRedemptions: 5,
		ExpiresAt:      &expires,
		Notes:          "launch promo",
	})
	require.NoError(t, err)
	for _, c := range codes {
		assert.True(t, strings.HasPrefix(c.Code, "LAUNCH-"))
		assert.Equal(t, 5, c.MaxRedemptions)
		assert.True(t, c.ExpiresAt.Valid)
		assert.Equal(t, "launch promo", c.Notes.String)
	}
}

// A lower-case admin prefix must not mint codes the upper-casing
// redemption lookup can never find.
func TestGenerateCodesNormalizesPrefix(t *testing.T) {
	store := newFakeStore()
	svc, _, _, _ := newTestService(store, &fakePlans{})

	codes, _, err := svc.GenerateCodes(context.Background(), 7, &code.GenerateParams{
		Tier:     2,
		Quantity: 4,
		Prefix:   " ltd-t2- ",
	})
	require.NoError(t, err)
	pattern := regexp.MustCompile(`^LTD-T2-[0-9A-F]{4}-[0-9A-F]{4}$`)
	for _, c := range codes {
		assert.Regexp(t, pattern, c.Code)
	}
}

func TestGenerateCodesRejectsBadParams(t *testing.T) {
	svc, _, _, _ := newTestService(newFakeStore(), &fakePlans{})
	ctx := context.Background()

	_, _, err := svc.GenerateCodes(ctx, 1, &code.GenerateParams{Tier: 0, Quantity: 10})
	assert.ErrorIs(t, err, xerrors.ErrInvalidTier)

	_, _, err = svc.GenerateCodes(ctx, 1, &code.GenerateParams{Tier: 5, Quantity: 10})
	assert.ErrorIs(t, err, xerrors.ErrInvalidTier)

	_, _, err = svc.GenerateCodes(ctx, 1, &code.GenerateParams{Tier: 2, Quantity: 0})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	_, _, err = svc.GenerateCodes(ctx, 1, &code.GenerateParams{Tier: 2, Quantity: 1001})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

// When every draw collides with committed inventory the batch must fail
// after the retry budget instead of spinning forever, and nothing may be
// inserted.
func TestGenerateCodesCollisionExhaustion(t *testing.T) {
	collide := &collidingStore{fakeStore: newFakeStore()}
	svc := NewService(collide, &fakePlans{}, &fakeDB{}, &fakeCache{}, newFakeNotifier(), nil, zap.NewNop())

	_, _, err := svc.GenerateCodes(context.Background(), 1, &code.GenerateParams{Tier: 1, Quantity: 1})
	assert.ErrorIs(t, err, xerrors.ErrDuplicateCodeGeneration)
	assert.Equal(t, 10, collide.calls)
	assert.Empty(t, collide.inserted)
}

type collidingStore struct {
	*fakeStore
	calls int
}

func (s *collidingStore) ExistsByCode(ctx context.Context, codeStr string) (bool, error) {
	s.calls++
	return true, nil
}

func TestRedeemCodeFirstRedemption(t *testing.T) {
	store := newFakeStore()
	store.codes["LTD-T2-AAAA-BBBB"] = &code.LTDCode{
		ID: 11, Code: "LTD-T2-AAAA-BBBB", Tier: 2, MaxRedemptions: 1, IsActive: true,
	}
	plans := &fakePlans{records: map[int64]*plan.Record{
		42: {
			UserID:             42,
			Email:              "sam@example.com",
			PlanType:           plan.PlanSubscription,
			SubscriptionStatus: plan.StatusFree,
			Credits:            10,
		},
	}}
	svc, db, cache, notifier := newTestService(store, plans)

	result, err := svc.RedeemCode(context.Background(), 42, "  ltd-t2-aaaa-bbbb  ")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, result.FirstRedemption)
	assert.Equal(t, 2, result.Tier)
	assert.Equal(t, 0, result.PreviousTier)
	assert.Equal(t, 300.0, result.CreditsAdded)
	assert.Equal(t, 310.0, result.CreditTotal)
	assert.Equal(t, 300.0, result.MonthlyLimit)
	assert.Equal(t, 1, result.StackedCodes)

	require.Len(t, plans.applied, 1)
	applied := plans.applied[0]
	assert.Equal(t, int64(42), applied.userID)
	assert.Equal(t, 2, applied.newTier)
	assert.Equal(t, 300.0, applied.newMonthlyLimit)
	assert.Equal(t, 300.0, applied.creditsToAdd)
	assert.Equal(t, plan.StatusLTDTier2, applied.newStatus)

	require.Len(t, store.redemptions, 1)
	assert.Equal(t, int64(11), store.redemptions[0].CodeID)
	assert.Equal(t, 2, store.redemptions[0].Tier)
	assert.Equal(t, 0, store.redemptions[0].PreviousTier)
	assert.Equal(t, []int64{11}, store.incrementedID)

	assert.True(t, db.lastTx.committed)
	assert.Equal(t, []int64{42}, cache.invalidated)

	req := notifier.wait(t)
	assert.Equal(t, notification.TemplateWelcome, req.Template)
	assert.Equal(t, "sam@example.com", req.Email)
}

// Stacking a tier 3 code on a tier 2 account: tier becomes the max, the
// code tier's allowance is added on top of the existing limit.
func TestRedeemCodeStacking(t *testing.T) {
	store := newFakeStore()
	store.codes["LTD-T3-CCCC-DDDD"] = &code.LTDCode{
		ID: 12, Code: "LTD-T3-CCCC-DDDD", Tier: 3, MaxRedemptions: 1, IsActive: true,
	}
	plans := &fakePlans{records: map[int64]*plan.Record{
		42: {
			UserID:             42,
			Email:              "sam@example.com",
			PlanType:           plan.PlanLTD,
			Tier:               2,
			SubscriptionStatus: plan.StatusLTDTier2,
			Credits:            120,
			MonthlyCreditLimit: 300,
			StackedCodes:       1,
		},
	}}
	svc, _, _, notifier := newTestService(store, plans)

	result, err := svc.RedeemCode(context.Background(), 42, "LTD-T3-CCCC-DDDD")
	require.NoError(t, err)

	assert.False(t, result.FirstRedemption)
	assert.Equal(t, 3, result.Tier)
	assert.Equal(t, 2, result.PreviousTier)
	assert.Equal(t, 750.0, result.CreditsAdded)
	assert.Equal(t, 1050.0, result.MonthlyLimit)
	assert.Equal(t, 870.0, result.CreditTotal)
	assert.Equal(t, 2, result.StackedCodes)

	req := notifier.wait(t)
	assert.Equal(t, notification.TemplateCodeStacked, req.Template)
}

// A lower-tier code stacked on a higher-tier account adds credits but
// never demotes the tier.
func TestRedeemCodeLowerTierKeepsCurrent(t *testing.T) {
	store := newFakeStore()
	store.codes["LTD-T1-EEEE-FFFF"] = &code.LTDCode{
		ID: 13, Code: "LTD-T1-EEEE-FFFF", Tier: 1, MaxRedemptions: 1, IsActive: true,
	}
	plans := &fakePlans{records: map[int64]*plan.Record{
		42: {
			UserID:             42,
			PlanType:           plan.PlanLTD,
			Tier:               3,
			SubscriptionStatus: plan.StatusLTDTier3,
			MonthlyCreditLimit: 750,
		},
	}}
	svc, _, _, _ := newTestService(store, plans)

	result, err := svc.RedeemCode(context.Background(), 42, "LTD-T1-EEEE-FFFF")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Tier)
	assert.Equal(t, 100.0, result.CreditsAdded)
	assert.Equal(t, 850.0, result.MonthlyLimit)
	assert.Equal(t, plan.StatusLTDTier3, plans.applied[0].newStatus)
}

func TestRedeemCodeValidation(t *testing.T) {
	newPlan := func() *fakePlans {
		return &fakePlans{records: map[int64]*plan.Record{
			42: {UserID: 42, PlanType: plan.PlanLTD, Tier: 1, MonthlyCreditLimit: 100},
		}}
	}

	t.Run("blank", func(t *testing.T) {
		svc, _, _, _ := newTestService(newFakeStore(), newPlan())
		_, err := svc.RedeemCode(context.Background(), 42, "   ")
		assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	})

	t.Run("not found", func(t *testing.T) {
		svc, _, _, _ := newTestService(newFakeStore(), newPlan())
		_, err := svc.RedeemCode(context.Background(), 42, "LTD-T1-0000-0000")
		assert.ErrorIs(t, err, xerrors.ErrCodeNotFound)
	})

	t.Run("inactive", func(t *testing.T) {
		store := newFakeStore()
		store.codes["X"] = &code.LTDCode{ID: 1, Code: "X", Tier: 1, MaxRedemptions: 1, IsActive: false}
		svc, db, _, _ := newTestService(store, newPlan())
		_, err := svc.RedeemCode(context.Background(), 42, "X")
		assert.ErrorIs(t, err, xerrors.ErrCodeInactive)
		assert.False(t, db.lastTx.committed)
	})

	t.Run("exhausted", func(t *testing.T) {
		store := newFakeStore()
		store.codes["X"] = &code.LTDCode{ID: 1, Code: "X", Tier: 1, MaxRedemptions: 2, CurrentRedemptions: 2, IsActive: true}
		svc, _, _, _ := newTestService(store, newPlan())
		_, err := svc.RedeemCode(context.Background(), 42, "X")
		assert.ErrorIs(t, err, xerrors.ErrCodeExhausted)
	})

	t.Run("expired", func(t *testing.T) {
		store := newFakeStore()
		store.codes["X"] = &code.LTDCode{
			ID: 1, Code: "X", Tier: 1, MaxRedemptions: 1, IsActive: true,
			ExpiresAt: sql.NullTime{Time: time.Now().Add(-time.Hour), Valid: true},
		}
		svc, _, _, _ := newTestService(store, newPlan())
		_, err := svc.RedeemCode(context.Background(), 42, "X")
		assert.ErrorIs(t, err, xerrors.ErrCodeExpired)
	})

	t.Run("already redeemed", func(t *testing.T) {
		store := newFakeStore()
		store.codes["X"] = &code.LTDCode{ID: 1, Code: "X", Tier: 1, MaxRedemptions: 5, IsActive: true}
		store.redeemed[42] = map[int64]bool{1: true}
		svc, db, cache, _ := newTestService(store, newPlan())
		_, err := svc.RedeemCode(context.Background(), 42, "X")
		assert.ErrorIs(t, err, xerrors.ErrCodeAlreadyRedeemed)
		assert.False(t, db.lastTx.committed)
		assert.Empty(t, cache.invalidated)
		assert.Empty(t, store.redemptions)
	})
}

func TestUpdateRejectsEmptyRequest(t *testing.T) {
	svc, _, _, _ := newTestService(newFakeStore(), &fakePlans{})
	_, err := svc.Update(context.Background(), 1, 10, &code.UpdateRequest{})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}
