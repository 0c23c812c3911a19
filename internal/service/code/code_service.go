// internal/service/code/code_service.go
package code

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"repurpose-service/internal/domain/code"
	"repurpose-service/internal/domain/notification"
	"repurpose-service/internal/domain/plan"
	xerrors "repurpose-service/internal/pkg/errors"
	"repurpose-service/internal/tiers"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Store is the code persistence surface. Satisfied by
// postgres.CodeRepository.
type Store interface {
	ExistsByCode(ctx context.Context, codeStr string) (bool, error)
	InsertBatchTx(ctx context.Context, tx pgx.Tx, codes []*code.LTDCode) error
	FindByCodeForUpdateTx(ctx context.Context, tx pgx.Tx, codeStr string) (*code.LTDCode, error)
	IncrementRedemptionsTx(ctx context.Context, tx pgx.Tx, codeID int64) error
	HasUserRedeemedTx(ctx context.Context, tx pgx.Tx, userID, codeID int64) (bool, error)
	InsertRedemptionTx(ctx context.Context, tx pgx.Tx, red *code.Redemption) error
	GetByID(ctx context.Context, id int64) (*code.LTDCode, error)
	List(ctx context.Context, filters code.ListFilters) (*code.ListResponse, error)
	Update(ctx context.Context, id int64, req *code.UpdateRequest) (*code.LTDCode, error)
	Delete(ctx context.Context, id int64) error
	RevokeBatch(ctx context.Context, batchID string) (int64, error)
	Stats(ctx context.Context) (*code.Stats, error)
	UserRedemptions(ctx context.Context, userID int64) ([]code.Redemption, error)
}

// PlanStore is the slice of plan persistence redemption needs.
type PlanStore interface {
	FindForUpdateTx(ctx context.Context, tx pgx.Tx, userID int64) (*plan.Record, error)
	ApplyRedemptionTx(ctx context.Context, tx pgx.Tx, userID int64, newTier int, newMonthlyLimit, creditsToAdd float64, newStatus plan.SubscriptionStatus) error
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

// Auditor records admin actions. Best-effort; failures never fail the
// action itself.
type Auditor interface {
	RecordAdminAction(ctx context.Context, adminID int64, action string, targetUserID *int64, details map[string]interface{})
}

// maxGenerationAttempts bounds collision retries per code before the whole
// batch fails loudly.
const maxGenerationAttempts = 10

type Service struct {
	store    Store
	plans    PlanStore
	db       TxBeginner
	cache    PlanCache
	notifier Notifier
	auditor  Auditor
	logger   *zap.Logger
}

func NewService(store Store, plans PlanStore, db TxBeginner, cache PlanCache, notifier Notifier, auditor Auditor, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		plans:    plans,
		db:       db,
		cache:    cache,
		notifier: notifier,
		auditor:  auditor,
		logger:   logger,
	}
}

// GenerateCodes creates a batch of 1..1000 codes in one transaction under
// a shared batch id. A collision against existing codes retries with a
// fresh random part; running out of attempts fails the whole batch, no
// partial batch is ever committed.
func (s *Service) GenerateCodes(ctx context.Context, adminID int64, params *code.GenerateParams) ([]*code.LTDCode, string, error) {
	if params.Tier < tiers.MinTier || params.Tier > tiers.MaxTier {
		return nil, "", fmt.Errorf("%w: %d", xerrors.ErrInvalidTier, params.Tier)
	}
	if params.Quantity < 1 || params.Quantity > 1000 {
		return nil, "", xerrors.Wrap(xerrors.ErrInvalidInput, "quantity must be between 1 and 1000")
	}

	// Codes are stored upper-case; redemption upper-cases its input before
	// the lookup, so a mixed-case prefix would mint unredeemable codes.
	prefix := strings.ToUpper(strings.TrimSpace(params.Prefix))
	if prefix == "" {
		prefix = fmt.Sprintf("LTD-T%d-", params.Tier)
	}
	maxRedemptions := params.MaxRedemptions
	if maxRedemptions < 1 {
		maxRedemptions = 1
	}

	batchID := "BATCH-" + ulid.Make().String()

	seen := make(map[string]struct{}, params.Quantity)
	codes := make([]*code.LTDCode, 0, params.Quantity)
	for i := 0; i < params.Quantity; i++ {
		codeStr, err := s.uniqueCode(ctx, prefix, seen)
		if err != nil {
			return nil, "", err
		}
		seen[codeStr] = struct{}{}

		c := &code.LTDCode{
			Code:           codeStr,
			Tier:           params.Tier,
			MaxRedemptions: maxRedemptions,
			IsActive:       true,
			BatchID:        batchID,
		}
		if params.ExpiresAt != nil {
			c.ExpiresAt.Time, c.ExpiresAt.Valid = *params.ExpiresAt, true
		}
		if params.Notes != "" {
			c.Notes.String, c.Notes.Valid = params.Notes, true
		}
		if adminID > 0 {
			c.CreatedByAdminID.Int64, c.CreatedByAdminID.Valid = adminID, true
		}
		codes = append(codes, c)
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.store.InsertBatchTx(ctx, tx, codes); err != nil {
		return nil, "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, "", fmt.Errorf("failed to commit batch: %w", err)
	}

	s.logger.Info("code batch generated",
		zap.String("batch_id", batchID),
		zap.Int("tier", params.Tier),
		zap.Int("quantity", params.Quantity),
		zap.Int64("admin_id", adminID),
	)
	s.audit(ctx, adminID, "generate_codes", nil, map[string]interface{}{
		"batch_id": batchID,
		"tier":     params.Tier,
		"quantity": params.Quantity,
	})

	return codes, batchID, nil
}

// uniqueCode draws random codes until one misses both the committed
// inventory and the in-flight batch, failing after maxGenerationAttempts.
func (s *Service) uniqueCode(ctx context.Context, prefix string, seen map[string]struct{}) (string, error) {
	for attempt := 0; attempt < maxGenerationAttempts; attempt++ {
		codeStr, err := randomCode(prefix)
		if err != nil {
			return "", err
		}
		if _, dup := seen[codeStr]; dup {
			continue
		}
		exists, err := s.store.ExistsByCode(ctx, codeStr)
		if err != nil {
			return "", err
		}
		if !exists {
			return codeStr, nil
		}
	}
	return "", xerrors.ErrDuplicateCodeGeneration
}

// randomCode builds PREFIX plus 8 upper-hex characters grouped in fours,
// e.g. "LTD-T2-A1B2-C3D4".
func randomCode(prefix string) (string, error) {
	raw := make([]byte, 4)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	h := strings.ToUpper(hex.EncodeToString(raw))
	return prefix + h[:4] + "-" + h[4:], nil
}

// RedeemCode redeems a code for a user and applies the stacking rule: the
// tier becomes the max of current and code tier, the code tier's monthly
// allowance is added to both the limit and the live balance, and
// stacked_codes increments. Code row and plan row are locked in that
// order; each code is redeemable at most once per user.
func (s *Service) RedeemCode(ctx context.Context, userID int64, rawCode string) (*code.RedeemResult, error) {
	codeStr := strings.TrimSpace(rawCode)
	if codeStr == "" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "code is required")
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ltdCode, err := s.store.FindByCodeForUpdateTx(ctx, tx, codeStr)
	if err != nil {
		return nil, err
	}

	if !ltdCode.IsActive {
		return nil, xerrors.ErrCodeInactive
	}
	if ltdCode.Exhausted() {
		return nil, xerrors.ErrCodeExhausted
	}
	if ltdCode.Expired(time.Now()) {
		return nil, xerrors.ErrCodeExpired
	}

	already, err := s.store.HasUserRedeemedTx(ctx, tx, userID, ltdCode.ID)
	if err != nil {
		return nil, err
	}
	if already {
		return nil, xerrors.ErrCodeAlreadyRedeemed
	}

	rec, err := s.plans.FindForUpdateTx(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	firstRedemption := rec.PlanType != plan.PlanLTD
	previousTier := rec.Tier
	newTier := previousTier
	if ltdCode.Tier > newTier {
		newTier = ltdCode.Tier
	}

	creditsToAdd := tiers.MonthlyCredits(ltdCode.Tier)
	newMonthlyLimit := rec.MonthlyCreditLimit + creditsToAdd

	if err := s.plans.ApplyRedemptionTx(ctx, tx, userID, newTier, newMonthlyLimit, creditsToAdd, plan.StatusForTier(newTier)); err != nil {
		return nil, err
	}
	if err := s.store.InsertRedemptionTx(ctx, tx, &code.Redemption{
		UserID:       userID,
		CodeID:       ltdCode.ID,
		Tier:         ltdCode.Tier,
		CreditsAdded: creditsToAdd,
		PreviousTier: previousTier,
	}); err != nil {
		return nil, err
	}
	if err := s.store.IncrementRedemptionsTx(ctx, tx, ltdCode.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit redemption: %w", err)
	}

	s.cache.InvalidatePlan(ctx, userID)
	s.logger.Info("code redeemed",
		zap.Int64("user_id", userID),
		zap.String("code", ltdCode.Code),
		zap.Int("code_tier", ltdCode.Tier),
		zap.Int("new_tier", newTier),
		zap.Bool("first_redemption", firstRedemption),
	)

	s.notifyRedemption(rec, ltdCode.Tier, newTier, creditsToAdd, firstRedemption)

	return &code.RedeemResult{
		Success:         true,
		Tier:            newTier,
		PreviousTier:    previousTier,
		CreditsAdded:    creditsToAdd,
		CreditTotal:     rec.Credits + creditsToAdd,
		MonthlyLimit:    newMonthlyLimit,
		StackedCodes:    rec.StackedCodes + 1,
		FirstRedemption: firstRedemption,
	}, nil
}

func (s *Service) notifyRedemption(rec *plan.Record, codeTier, newTier int, creditsAdded float64, first bool) {
	template := notification.TemplateCodeStacked
	if first {
		template = notification.TemplateWelcome
	}
	req := &notification.Request{
		UserID:   rec.UserID,
		Email:    rec.Email,
		Name:     rec.Name,
		Template: template,
		Params: map[string]interface{}{
			"code_tier":     codeTier,
			"tier":          newTier,
			"credits_added": creditsAdded,
			"stacked_codes": rec.StackedCodes + 1,
		},
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.notifier.Notify(ctx, req)
	}()
}

// UserRedemptions returns a user's redemption history.
func (s *Service) UserRedemptions(ctx context.Context, userID int64) ([]code.Redemption, error) {
	return s.store.UserRedemptions(ctx, userID)
}

// List is the filtered admin code listing.
func (s *Service) List(ctx context.Context, filters code.ListFilters) (*code.ListResponse, error) {
	return s.store.List(ctx, filters)
}

// Get fetches one code for the admin surface.
func (s *Service) Get(ctx context.Context, id int64) (*code.LTDCode, error) {
	return s.store.GetByID(ctx, id)
}

// Update applies an admin edit to one code.
func (s *Service) Update(ctx context.Context, adminID, id int64, req *code.UpdateRequest) (*code.LTDCode, error) {
	if req.Empty() {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "no fields to update")
	}
	updated, err := s.store.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, adminID, "update_code", nil, map[string]interface{}{"code_id": id})
	return updated, nil
}

// Delete removes one code; redeemed codes are deactivated instead to keep
// the audit trail.
func (s *Service) Delete(ctx context.Context, adminID, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, adminID, "delete_code", nil, map[string]interface{}{"code_id": id})
	return nil
}

// RevokeBatch deactivates every active code in a batch.
func (s *Service) RevokeBatch(ctx context.Context, adminID int64, batchID string) (int64, error) {
	revoked, err := s.store.RevokeBatch(ctx, batchID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("batch revoked", zap.String("batch_id", batchID), zap.Int64("revoked", revoked))
	s.audit(ctx, adminID, "revoke_batch", nil, map[string]interface{}{
		"batch_id": batchID,
		"revoked":  revoked,
	})
	return revoked, nil
}

// Stats aggregates the code inventory.
func (s *Service) Stats(ctx context.Context) (*code.Stats, error) {
	return s.store.Stats(ctx)
}

func (s *Service) audit(ctx context.Context, adminID int64, action string, targetUserID *int64, details map[string]interface{}) {
	if s.auditor == nil {
		return
	}
	s.auditor.RecordAdminAction(ctx, adminID, action, targetUserID, details)
}
