// internal/service/credit/credit_service.go
package credit

import (
	"context"
	"errors"
	"time"

	"repurpose-service/internal/domain/credit"
	"repurpose-service/internal/domain/notification"
	"repurpose-service/internal/domain/plan"
	xerrors "repurpose-service/internal/pkg/errors"
	"repurpose-service/internal/tiers"

	"go.uber.org/zap"
)

// Store is the ledger persistence surface. Satisfied by
// postgres.CreditRepository.
type Store interface {
	Debit(ctx context.Context, userID int64, amount float64, action string, metadata map[string]interface{}) (float64, error)
	Credit(ctx context.Context, userID int64, amount float64, reason string) (float64, error)
	Analytics(ctx context.Context, userID int64, days int) ([]credit.ActionSummary, error)
	RecentEntries(ctx context.Context, userID int64, limit int) ([]credit.UsageLogEntry, error)
}

type PlanStore interface {
	FindByID(ctx context.Context, userID int64) (*plan.Record, error)
}

// PlanCache invalidates cached plan snapshots after balance mutations.
type PlanCache interface {
	InvalidatePlan(ctx context.Context, userID int64)
}

// Notifier requests a templated notification. Implementations own dedup
// and delivery; callers never wait on them.
type Notifier interface {
	Notify(ctx context.Context, req *notification.Request)
}

// lowCreditFraction is the balance/limit ratio below which a debit
// triggers a low-credit warning.
const lowCreditFraction = 0.20

type Service struct {
	store    Store
	plans    PlanStore
	cache    PlanCache
	notifier Notifier
	logger   *zap.Logger
}

func NewService(store Store, plans PlanStore, cache PlanCache, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		plans:    plans,
		cache:    cache,
		notifier: notifier,
		logger:   logger,
	}
}

// Deduct charges a user for an action. The repository re-reads the balance
// under a row lock, so a stale snapshot here can never overdraw the
// account. On ErrInsufficientCredits the result still carries the
// untouched balance for upgrade messaging.
func (s *Service) Deduct(ctx context.Context, userID int64, req *credit.DebitRequest) (*credit.DebitResult, error) {
	rec, err := s.plans.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	amount := req.Amount
	if amount <= 0 {
		amount = tiers.CreditCost(req.Action, rec.Tier)
	}
	if amount <= 0 {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "action has no credit cost")
	}

	remaining, err := s.store.Debit(ctx, userID, amount, req.Action, req.Metadata)
	if errors.Is(err, xerrors.ErrInsufficientCredits) {
		return &credit.DebitResult{Success: false, Remaining: remaining}, err
	}
	if err != nil {
		return nil, err
	}

	s.cache.InvalidatePlan(ctx, userID)
	s.logger.Info("credits debited",
		zap.Int64("user_id", userID),
		zap.String("action", req.Action),
		zap.Float64("amount", amount),
		zap.Float64("remaining", remaining),
	)

	s.maybeWarnLowCredits(rec, remaining)

	return &credit.DebitResult{Success: true, Remaining: remaining, Charged: amount}, nil
}

// Add grants credits (refunds, bonuses, admin adjustments).
func (s *Service) Add(ctx context.Context, req *credit.AddRequest) (*credit.AddResult, error) {
	newTotal, err := s.store.Credit(ctx, req.UserID, req.Amount, req.Reason)
	if err != nil {
		return nil, err
	}

	s.cache.InvalidatePlan(ctx, req.UserID)
	s.logger.Info("credits added",
		zap.Int64("user_id", req.UserID),
		zap.Float64("amount", req.Amount),
		zap.String("reason", req.Reason),
	)
	return &credit.AddResult{Success: true, NewTotal: newTotal}, nil
}

// Analytics returns per-action debit aggregates over a trailing window.
// days <= 0 defaults to 30.
func (s *Service) Analytics(ctx context.Context, userID int64, days int) ([]credit.ActionSummary, error) {
	if days <= 0 {
		days = 30
	}
	return s.store.Analytics(ctx, userID, days)
}

// History returns the newest usage log rows for a user.
func (s *Service) History(ctx context.Context, userID int64, limit int) ([]credit.UsageLogEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.RecentEntries(ctx, userID, limit)
}

// maybeWarnLowCredits fires a low-credit notification when a debit dropped
// the balance under the warning fraction of the monthly limit. Delivery is
// detached from the request; the notifier dedups repeats.
func (s *Service) maybeWarnLowCredits(rec *plan.Record, remaining float64) {
	if !rec.IsLTD() || rec.MonthlyCreditLimit <= 0 {
		return
	}
	if remaining/rec.MonthlyCreditLimit >= lowCreditFraction {
		return
	}

	req := &notification.Request{
		UserID:   rec.UserID,
		Email:    rec.Email,
		Name:     rec.Name,
		Template: notification.TemplateLowCredit,
		Params: map[string]interface{}{
			"credits_remaining":    remaining,
			"monthly_credit_limit": rec.MonthlyCreditLimit,
			"credit_reset_date":    rec.CreditResetDate,
		},
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.notifier.Notify(ctx, req)
	}()
}
