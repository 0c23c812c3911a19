package credit

import (
	"context"
	"testing"
	"time"

	"repurpose-service/internal/domain/credit"
	"repurpose-service/internal/domain/notification"
	"repurpose-service/internal/domain/plan"
	xerrors "repurpose-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type debitCall struct {
	userID int64
	amount float64
	action string
}

type fakeStore struct {
	balance     float64
	debits      []debitCall
	debitErr    error
	lastDays    int
	lastLimit   int
	creditCalls []float64
}

func (s *fakeStore) Debit(ctx context.Context, userID int64, amount float64, action string, metadata map[string]interface{}) (float64, error) {
	s.debits = append(s.debits, debitCall{userID, amount, action})
	if s.debitErr != nil {
		return s.balance, s.debitErr
	}
	s.balance -= amount
	return s.balance, nil
}

func (s *fakeStore) Credit(ctx context.Context, userID int64, amount float64, reason string) (float64, error) {
	s.creditCalls = append(s.creditCalls, amount)
	s.balance += amount
	return s.balance, nil
}

func (s *fakeStore) Analytics(ctx context.Context, userID int64, days int) ([]credit.ActionSummary, error) {
	s.lastDays = days
	return nil, nil
}

func (s *fakeStore) RecentEntries(ctx context.Context, userID int64, limit int) ([]credit.UsageLogEntry, error) {
	s.lastLimit = limit
	return nil, nil
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
	return &fakeNotifier{requests: make(chan *notification.Request, 4)}
}

func (n *fakeNotifier) Notify(ctx context.Context, req *notification.Request) {
	n.requests <- req
}

func ltdRecord(credits, limit float64) *plan.Record {
	return &plan.Record{
		UserID:             42,
		Email:              "sam@example.com",
		PlanType:           plan.PlanLTD,
		Tier:               2,
		SubscriptionStatus: plan.StatusLTDTier2,
		Credits:            credits,
		MonthlyCreditLimit: limit,
	}
}

func newTestService(store *fakeStore, rec *plan.Record) (*Service, *fakeCache, *fakeNotifier) {
	cache := &fakeCache{}
	notifier := newFakeNotifier()
	svc := NewService(store, &fakePlans{rec: rec}, cache, notifier, zap.NewNop())
	return svc, cache, notifier
}

func TestDeductResolvesCostFromAction(t *testing.T) {
	store := &fakeStore{balance: 100}
	svc, cache, _ := newTestService(store, ltdRecord(100, 300))

	result, err := svc.Deduct(context.Background(), 42, &credit.DebitRequest{Action: "content_repurposing"})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 1.0, result.Charged)
	assert.Equal(t, 99.0, result.Remaining)
	require.Len(t, store.debits, 1)
	assert.Equal(t, 1.0, store.debits[0].amount)
	assert.Equal(t, []int64{42}, cache.invalidated)
}

func TestDeductExplicitAmountWins(t *testing.T) {
	store := &fakeStore{balance: 100}
	svc, _, _ := newTestService(store, ltdRecord(100, 300))

	result, err := svc.Deduct(context.Background(), 42, &credit.DebitRequest{Action: "bulk_generation", Amount: 2.5})
	require.NoError(t, err)
	assert.Equal(t, 2.5, result.Charged)
	assert.Equal(t, 2.5, store.debits[0].amount)
}

func TestDeductUnknownActionRejected(t *testing.T) {
	store := &fakeStore{balance: 100}
	svc, cache, _ := newTestService(store, ltdRecord(100, 300))

	_, err := svc.Deduct(context.Background(), 42, &credit.DebitRequest{Action: "no_such_action"})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	assert.Empty(t, store.debits)
	assert.Empty(t, cache.invalidated)
}

// An insufficient balance still returns the untouched balance so the
// caller can render an upgrade prompt.
func TestDeductInsufficientCredits(t *testing.T) {
	store := &fakeStore{balance: 0.3, debitErr: xerrors.ErrInsufficientCredits}
	svc, cache, _ := newTestService(store, ltdRecord(0.3, 300))

	result, err := svc.Deduct(context.Background(), 42, &credit.DebitRequest{Action: "content_repurposing"})
	assert.ErrorIs(t, err, xerrors.ErrInsufficientCredits)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, 0.3, result.Remaining)
	assert.Empty(t, cache.invalidated)
}

func TestDeductUserNotFound(t *testing.T) {
	svc, _, _ := newTestService(&fakeStore{}, nil)
	_, err := svc.Deduct(context.Background(), 42, &credit.DebitRequest{Action: "content_repurposing"})
	assert.ErrorIs(t, err, xerrors.ErrUserNotFound)
}

// Dropping under 20% of the monthly limit fires a low-credit warning.
func TestDeductLowCreditWarning(t *testing.T) {
	store := &fakeStore{balance: 60.5} // 60.5 - 1 = 59.5 < 0.2 * 300
	svc, _, notifier := newTestService(store, ltdRecord(60.5, 300))

	_, err := svc.Deduct(context.Background(), 42, &credit.DebitRequest{Action: "content_repurposing"})
	require.NoError(t, err)

	select {
	case req := <-notifier.requests:
		assert.Equal(t, notification.TemplateLowCredit, req.Template)
		assert.Equal(t, 59.5, req.Params["credits_remaining"])
		assert.Equal(t, 300.0, req.Params["monthly_credit_limit"])
	case <-time.After(2 * time.Second):
		t.Fatal("expected low-credit notification")
	}
}

func TestDeductNoWarningAboveThreshold(t *testing.T) {
	store := &fakeStore{balance: 100}
	svc, _, notifier := newTestService(store, ltdRecord(100, 300))

	_, err := svc.Deduct(context.Background(), 42, &credit.DebitRequest{Action: "content_repurposing"})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	select {
	case req := <-notifier.requests:
		t.Fatalf("unexpected notification %s", req.Template)
	default:
	}
}

func TestDeductNoWarningForSubscriptionPlan(t *testing.T) {
	store := &fakeStore{balance: 1.5}
	rec := &plan.Record{
		UserID:             42,
		PlanType:           plan.PlanSubscription,
		SubscriptionStatus: plan.StatusPro,
		Credits:            1.5,
		Tier:               0,
	}
	svc, _, notifier := newTestService(store, rec)

	_, err := svc.Deduct(context.Background(), 42, &credit.DebitRequest{Action: "content_repurposing", Amount: 1})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	select {
	case <-notifier.requests:
		t.Fatal("subscription plans never get low-credit warnings")
	default:
	}
}

func TestAdd(t *testing.T) {
	store := &fakeStore{balance: 10}
	svc, cache, _ := newTestService(store, ltdRecord(10, 300))

	result, err := svc.Add(context.Background(), &credit.AddRequest{UserID: 42, Amount: 25, Reason: "refund"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 35.0, result.NewTotal)
	assert.Equal(t, []int64{42}, cache.invalidated)
}

func TestAnalyticsDefaultsWindow(t *testing.T) {
	store := &fakeStore{}
	svc, _, _ := newTestService(store, ltdRecord(0, 0))

	_, err := svc.Analytics(context.Background(), 42, 0)
	require.NoError(t, err)
	assert.Equal(t, 30, store.lastDays)

	_, err = svc.Analytics(context.Background(), 42, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, store.lastDays)
}

func TestHistoryClampsLimit(t *testing.T) {
	store := &fakeStore{}
	svc, _, _ := newTestService(store, ltdRecord(0, 0))

	for _, tt := range []struct{ in, want int }{{0, 50}, {-3, 50}, {500, 50}, {120, 120}} {
		_, err := svc.History(context.Background(), 42, tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, store.lastLimit, "limit %d", tt.in)
	}
}
