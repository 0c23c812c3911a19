// internal/repository/postgres/plan_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"repurpose-service/internal/domain/plan"
	xerrors "repurpose-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PlanRepository struct {
	db *pgxpool.Pool
}

func NewPlanRepository(db *pgxpool.Pool) *PlanRepository {
	return &PlanRepository{db: db}
}

const planColumns = `
	id, email, COALESCE(name, ''), plan_type, COALESCE(ltd_tier, 0),
	subscription_status, credits, monthly_credit_limit, rollover_credits,
	stacked_codes, credit_reset_date, last_login, created_at, updated_at
`

const ltdUserColumns = `
	u.id, u.email, COALESCE(u.name, ''), u.plan_type, COALESCE(u.ltd_tier, 0),
	u.subscription_status, u.credits, u.monthly_credit_limit, u.rollover_credits,
	u.stacked_codes, u.credit_reset_date, u.last_login, u.created_at, u.updated_at
`

func scanPlan(row pgx.Row) (*plan.Record, error) {
	var r plan.Record
	err := row.Scan(
		&r.UserID, &r.Email, &r.Name, &r.PlanType, &r.Tier,
		&r.SubscriptionStatus, &r.Credits, &r.MonthlyCreditLimit, &r.RolloverCredits,
		&r.StackedCodes, &r.CreditResetDate, &r.LastLogin, &r.CreatedAt, &r.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan plan record: %w", err)
	}
	return &r, nil
}

// FindByID loads a user's plan snapshot without locking.
func (r *PlanRepository) FindByID(ctx context.Context, userID int64) (*plan.Record, error) {
	query := `SELECT ` + planColumns + ` FROM users WHERE id = $1`
	return scanPlan(r.db.QueryRow(ctx, query, userID))
}

// FindForUpdateTx re-reads a plan row under the transaction's row lock.
// Every balance mutation must go through this, never a pre-transaction read.
func (r *PlanRepository) FindForUpdateTx(ctx context.Context, tx pgx.Tx, userID int64) (*plan.Record, error) {
	query := `SELECT ` + planColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	rec, err := scanPlan(tx.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, mapError(err)
	}
	return rec, nil
}

// ApplyRedemptionTx writes the stacking outcome of a code redemption onto
// the locked plan row.
func (r *PlanRepository) ApplyRedemptionTx(ctx context.Context, tx pgx.Tx, userID int64, newTier int, newMonthlyLimit, creditsToAdd float64, newStatus plan.SubscriptionStatus) error {
	query := `
		UPDATE users
		SET plan_type = 'ltd',
		    ltd_tier = $1,
		    subscription_status = $2,
		    monthly_credit_limit = $3,
		    credits = credits + $4,
		    stacked_codes = stacked_codes + 1,
		    credit_reset_date = COALESCE(credit_reset_date, NOW() + INTERVAL '1 month'),
		    updated_at = NOW()
		WHERE id = $5
	`
	tag, err := tx.Exec(ctx, query, newTier, newStatus, newMonthlyLimit, creditsToAdd, userID)
	if err != nil {
		return fmt.Errorf("failed to apply redemption: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrUserNotFound
	}
	return nil
}

// ApplyResetTx writes a reconciliation outcome onto the locked plan row and
// advances the reset date one month.
func (r *PlanRepository) ApplyResetTx(ctx context.Context, tx pgx.Tx, userID int64, newCredits, newRollover float64) error {
	query := `
		UPDATE users
		SET credits = $1,
		    rollover_credits = $2,
		    credit_reset_date = credit_reset_date + INTERVAL '1 month',
		    updated_at = NOW()
		WHERE id = $3
	`
	tag, err := tx.Exec(ctx, query, newCredits, newRollover, userID)
	if err != nil {
		return fmt.Errorf("failed to apply credit reset: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrUserNotFound
	}
	return nil
}

// DueForReset returns IDs of LTD accounts whose reset date has passed.
func (r *PlanRepository) DueForReset(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	query := `
		SELECT id FROM users
		WHERE plan_type = 'ltd' AND credit_reset_date <= $1
		ORDER BY credit_reset_date
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts due for reset: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AdminUpdate applies an admin plan adjustment. Only provided fields are
// touched.
func (r *PlanRepository) AdminUpdate(ctx context.Context, userID int64, req *plan.AdminUpdateRequest) error {
	fields := []string{}
	args := []interface{}{}
	argPos := 1

	if req.Tier != nil {
		fields = append(fields, fmt.Sprintf("ltd_tier = $%d", argPos))
		args = append(args, *req.Tier)
		argPos++
		fields = append(fields, fmt.Sprintf("subscription_status = $%d", argPos))
		args = append(args, plan.StatusForTier(*req.Tier))
		argPos++
	}
	if req.Credits != nil {
		fields = append(fields, fmt.Sprintf("credits = $%d", argPos))
		args = append(args, *req.Credits)
		argPos++
	}
	if req.MonthlyCreditLimit != nil {
		fields = append(fields, fmt.Sprintf("monthly_credit_limit = $%d", argPos))
		args = append(args, *req.MonthlyCreditLimit)
		argPos++
	}
	if len(fields) == 0 {
		return xerrors.ErrInvalidInput
	}
	fields = append(fields, "updated_at = NOW()")
	args = append(args, userID)

	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(fields, ", "), argPos)
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrUserNotFound
	}
	return nil
}

// ListLTDUsers returns LTD accounts joined with redemption aggregates.
func (r *PlanRepository) ListLTDUsers(ctx context.Context, filters *plan.ListFilters) ([]plan.LTDUser, int64, error) {
	conditions := []string{"u.plan_type = 'ltd'"}
	args := []interface{}{}
	argPos := 1

	if filters.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(u.email ILIKE $%d OR u.name ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+filters.Search+"%")
		argPos++
	}
	if filters.Tier > 0 {
		conditions = append(conditions, fmt.Sprintf("u.ltd_tier = $%d", argPos))
		args = append(args, filters.Tier)
		argPos++
	}
	whereClause := strings.Join(conditions, " AND ")

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM users u WHERE %s", whereClause)
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count ltd users: %w", err)
	}

	offset := (filters.Page - 1) * filters.PageSize
	query := fmt.Sprintf(`
		SELECT `+ltdUserColumns+`,
		       COUNT(lr.id) AS total_redemptions,
		       MAX(lr.redeemed_at) AS last_redeemed_at
		FROM users u
		LEFT JOIN ltd_redemptions lr ON lr.user_id = u.id
		WHERE %s
		GROUP BY u.id
		ORDER BY u.created_at DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, argPos, argPos+1)
	args = append(args, filters.PageSize, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list ltd users: %w", err)
	}
	defer rows.Close()

	users := []plan.LTDUser{}
	for rows.Next() {
		var u plan.LTDUser
		err := rows.Scan(
			&u.UserID, &u.Email, &u.Name, &u.PlanType, &u.Tier,
			&u.SubscriptionStatus, &u.Credits, &u.MonthlyCreditLimit, &u.RolloverCredits,
			&u.StackedCodes, &u.CreditResetDate, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt,
			&u.TotalRedemptions, &u.LastRedeemedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan ltd user: %w", err)
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

// LTDUserByID returns one LTD account with redemption aggregates.
func (r *PlanRepository) LTDUserByID(ctx context.Context, userID int64) (*plan.LTDUser, error) {
	query := `
		SELECT ` + ltdUserColumns + `,
		       COUNT(lr.id) AS total_redemptions,
		       MAX(lr.redeemed_at) AS last_redeemed_at
		FROM users u
		LEFT JOIN ltd_redemptions lr ON lr.user_id = u.id
		WHERE u.id = $1 AND u.plan_type = 'ltd'
		GROUP BY u.id
	`
	var u plan.LTDUser
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&u.UserID, &u.Email, &u.Name, &u.PlanType, &u.Tier,
		&u.SubscriptionStatus, &u.Credits, &u.MonthlyCreditLimit, &u.RolloverCredits,
		&u.StackedCodes, &u.CreditResetDate, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt,
		&u.TotalRedemptions, &u.LastRedeemedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find ltd user: %w", err)
	}
	return &u, nil
}

// InactiveSince returns LTD accounts that have not logged in since the
// cutoff, for reengagement notifications.
func (r *PlanRepository) InactiveSince(ctx context.Context, cutoff time.Time, limit int) ([]plan.Record, error) {
	query := `
		SELECT ` + planColumns + `
		FROM users
		WHERE plan_type = 'ltd' AND last_login < $1
		ORDER BY last_login
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list inactive users: %w", err)
	}
	defer rows.Close()

	records := []plan.Record{}
	for rows.Next() {
		var rec plan.Record
		err := rows.Scan(
			&rec.UserID, &rec.Email, &rec.Name, &rec.PlanType, &rec.Tier,
			&rec.SubscriptionStatus, &rec.Credits, &rec.MonthlyCreditLimit, &rec.RolloverCredits,
			&rec.StackedCodes, &rec.CreditResetDate, &rec.LastLogin, &rec.CreatedAt, &rec.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inactive user: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
