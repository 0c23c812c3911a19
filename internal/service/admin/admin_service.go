// internal/service/admin/admin_service.go
package admin

import (
	"context"
	"fmt"

	"repurpose-service/internal/domain/audit"
	"repurpose-service/internal/domain/plan"
	xerrors "repurpose-service/internal/pkg/errors"
	"repurpose-service/internal/tiers"

	"go.uber.org/zap"
)

// PlanStore is the admin slice of plan persistence.
type PlanStore interface {
	ListLTDUsers(ctx context.Context, filters *plan.ListFilters) ([]plan.LTDUser, int64, error)
	LTDUserByID(ctx context.Context, userID int64) (*plan.LTDUser, error)
	AdminUpdate(ctx context.Context, userID int64, req *plan.AdminUpdateRequest) error
}

type AuditStore interface {
	Record(ctx context.Context, entry *audit.Entry) error
	ForUser(ctx context.Context, targetUserID int64, limit int) ([]audit.Entry, error)
}

type PlanCache interface {
	InvalidatePlan(ctx context.Context, userID int64)
}

type Service struct {
	plans  PlanStore
	audit  AuditStore
	cache  PlanCache
	logger *zap.Logger
}

func NewService(plans PlanStore, audit AuditStore, cache PlanCache, logger *zap.Logger) *Service {
	return &Service{plans: plans, audit: audit, cache: cache, logger: logger}
}

// Users is the paginated admin listing of LTD accounts.
func (s *Service) Users(ctx context.Context, filters *plan.ListFilters) (*plan.ListResponse, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 || filters.PageSize > 200 {
		filters.PageSize = 50
	}

	users, total, err := s.plans.ListLTDUsers(ctx, filters)
	if err != nil {
		return nil, err
	}
	totalPages := int((total + int64(filters.PageSize) - 1) / int64(filters.PageSize))
	return &plan.ListResponse{
		Users:      users,
		Total:      total,
		Page:       filters.Page,
		PageSize:   filters.PageSize,
		TotalPages: totalPages,
	}, nil
}

// User is the admin detail view of one LTD account.
func (s *Service) User(ctx context.Context, userID int64) (*plan.LTDUser, error) {
	return s.plans.LTDUserByID(ctx, userID)
}

// UpdatePlan applies an admin plan adjustment and records it in the audit
// log.
func (s *Service) UpdatePlan(ctx context.Context, adminID, userID int64, req *plan.AdminUpdateRequest) (*plan.LTDUser, error) {
	if req.Empty() {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "no fields to update")
	}
	if req.Tier != nil && (*req.Tier < tiers.MinTier || *req.Tier > tiers.MaxTier) {
		return nil, fmt.Errorf("%w: %d", xerrors.ErrInvalidTier, *req.Tier)
	}
	if req.Credits != nil && *req.Credits < 0 {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "credits cannot be negative")
	}
	if req.MonthlyCreditLimit != nil && *req.MonthlyCreditLimit < 0 {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "monthly credit limit cannot be negative")
	}

	if err := s.plans.AdminUpdate(ctx, userID, req); err != nil {
		return nil, err
	}
	s.cache.InvalidatePlan(ctx, userID)

	details := map[string]interface{}{}
	if req.Tier != nil {
		details["ltd_tier"] = *req.Tier
	}
	if req.Credits != nil {
		details["credits"] = *req.Credits
	}
	if req.MonthlyCreditLimit != nil {
		details["monthly_credit_limit"] = *req.MonthlyCreditLimit
	}
	s.RecordAdminAction(ctx, adminID, "update_user_plan", &userID, details)

	s.logger.Info("admin plan update",
		zap.Int64("admin_id", adminID),
		zap.Int64("user_id", userID),
	)
	return s.plans.LTDUserByID(ctx, userID)
}

// AuditTrail lists the admin actions recorded against one user, newest
// first.
func (s *Service) AuditTrail(ctx context.Context, userID int64, limit int) ([]audit.Entry, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return s.audit.ForUser(ctx, userID, limit)
}

// RecordAdminAction appends to the admin audit log. Best-effort: a failed
// audit write is logged, never propagated.
func (s *Service) RecordAdminAction(ctx context.Context, adminID int64, action string, targetUserID *int64, details map[string]interface{}) {
	err := s.audit.Record(ctx, &audit.Entry{
		AdminID:      adminID,
		Action:       action,
		TargetUserID: targetUserID,
		Details:      details,
	})
	if err != nil {
		s.logger.Warn("audit write failed",
			zap.Int64("admin_id", adminID),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}
