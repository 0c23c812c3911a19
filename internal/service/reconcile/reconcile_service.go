// internal/service/reconcile/reconcile_service.go
package reconcile

import (
	"context"
	"fmt"
	"time"

	"repurpose-service/internal/domain/notification"
	"repurpose-service/internal/domain/plan"
	xerrors "repurpose-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// PlanStore is the slice of plan persistence the monthly rollover needs.
type PlanStore interface {
	FindForUpdateTx(ctx context.Context, tx pgx.Tx, userID int64) (*plan.Record, error)
	ApplyResetTx(ctx context.Context, tx pgx.Tx, userID int64, newCredits, newRollover float64) error
	DueForReset(ctx context.Context, now time.Time, limit int) ([]int64, error)
	InactiveSince(ctx context.Context, cutoff time.Time, limit int) ([]plan.Record, error)
}

// CodeStore is the housekeeping slice of code persistence.
type CodeStore interface {
	ExpireStale(ctx context.Context, before time.Time) (int64, error)
}

type TxBeginner interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
}

type PlanCache interface {
	InvalidatePlan(ctx context.Context, userID int64)
}

type Notifier interface {
	Notify(ctx context.Context, req *notification.Request)
}

const (
	sweepBatchSize   = 500
	inactivityCutoff = 14 * 24 * time.Hour
)

type Service struct {
	plans    PlanStore
	codes    CodeStore
	db       TxBeginner
	cache    PlanCache
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(plans PlanStore, codes CodeStore, db TxBeginner, cache PlanCache, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{
		plans:    plans,
		codes:    codes,
		db:       db,
		cache:    cache,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// CheckAndReset performs the monthly rollover for one account if its reset
// date has passed. The plan row is locked and the date re-checked under
// the lock, so concurrent calls (sweep racing an on-demand check) apply
// the reset exactly once. Unused credits carry over capped at one month's
// allowance:
//
//	carried = min(credits, monthly_credit_limit)
//	credits = monthly_credit_limit + carried
//
// Returns true when a reset was applied.
func (s *Service) CheckAndReset(ctx context.Context, userID int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := s.plans.FindForUpdateTx(ctx, tx, userID)
	if err != nil {
		return false, err
	}

	if rec.PlanType != plan.PlanLTD {
		return false, nil
	}
	now := s.now()
	if rec.CreditResetDate.After(now) {
		return false, nil
	}

	carried := rec.Credits
	if carried > rec.MonthlyCreditLimit {
		carried = rec.MonthlyCreditLimit
	}
	if carried < 0 {
		carried = 0
	}
	newCredits := rec.MonthlyCreditLimit + carried

	if err := s.plans.ApplyResetTx(ctx, tx, userID, newCredits, carried); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit credit reset: %w", err)
	}

	s.cache.InvalidatePlan(ctx, userID)
	s.logger.Info("monthly credits reset",
		zap.Int64("user_id", userID),
		zap.Float64("new_credits", newCredits),
		zap.Float64("carried", carried),
	)
	return true, nil
}

// SweepResult summarizes one reconciliation pass.
type SweepResult struct {
	Checked int `json:"checked"`
	Reset   int `json:"reset"`
	Failed  int `json:"failed"`
}

// Sweep resets every account whose reset date has passed. Individual
// failures (including lock timeouts against a concurrent debit) are logged
// and skipped; the account stays due and the next pass retries it.
func (s *Service) Sweep(ctx context.Context) (*SweepResult, error) {
	ids, err := s.plans.DueForReset(ctx, s.now(), sweepBatchSize)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{Checked: len(ids)}
	for _, id := range ids {
		did, err := s.CheckAndReset(ctx, id)
		if err != nil {
			result.Failed++
			if xerrors.Retryable(err) {
				s.logger.Warn("reset skipped, row busy", zap.Int64("user_id", id))
			} else {
				s.logger.Error("reset failed", zap.Int64("user_id", id), zap.Error(err))
			}
			continue
		}
		if did {
			result.Reset++
		}
	}

	s.logger.Info("reconciliation sweep finished",
		zap.Int("checked", result.Checked),
		zap.Int("reset", result.Reset),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// ReengagementSweep asks the notifier to nudge LTD accounts inactive for
// two weeks or more. The notifier owns dedup, so re-running the sweep is
// harmless.
func (s *Service) ReengagementSweep(ctx context.Context) (int, error) {
	records, err := s.plans.InactiveSince(ctx, s.now().Add(-inactivityCutoff), 100)
	if err != nil {
		return 0, err
	}

	for _, rec := range records {
		s.notifier.Notify(ctx, &notification.Request{
			UserID:   rec.UserID,
			Email:    rec.Email,
			Name:     rec.Name,
			Template: notification.TemplateReengagement,
			Params: map[string]interface{}{
				"days_inactive": int(s.now().Sub(rec.LastLogin).Hours() / 24),
			},
		})
	}
	return len(records), nil
}

// ExpireStaleCodes deactivates codes whose expiry has passed. The redeem
// path already rejects expired codes; this keeps listings and stats
// honest.
func (s *Service) ExpireStaleCodes(ctx context.Context) (int64, error) {
	expired, err := s.codes.ExpireStale(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		s.logger.Info("stale codes deactivated", zap.Int64("expired", expired))
	}
	return expired, nil
}

// Run drives periodic sweeps until ctx is cancelled. Started as a
// goroutine by the server.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("reconciliation worker started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reconciliation worker stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("reconciliation sweep failed", zap.Error(err))
			}
			if _, err := s.ReengagementSweep(ctx); err != nil {
				s.logger.Error("reengagement sweep failed", zap.Error(err))
			}
			if _, err := s.ExpireStaleCodes(ctx); err != nil {
				s.logger.Error("code expiry sweep failed", zap.Error(err))
			}
		}
	}
}
