// internal/repository/postgres/code_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"repurpose-service/internal/domain/code"
	xerrors "repurpose-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

const codeColumns = `id, code, tier, max_redemptions, current_redemptions,
	expires_at, is_active, batch_id, notes, created_by_admin_id, created_at, updated_at`

type CodeRepository struct {
	db *pgxpool.Pool
}

func NewCodeRepository(db *pgxpool.Pool) *CodeRepository {
	return &CodeRepository{db: db}
}

func scanCode(row pgx.Row) (*code.LTDCode, error) {
	var c code.LTDCode
	err := row.Scan(
		&c.ID, &c.Code, &c.Tier, &c.MaxRedemptions, &c.CurrentRedemptions,
		&c.ExpiresAt, &c.IsActive, &c.BatchID, &c.Notes, &c.CreatedByAdminID,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan code: %w", mapError(err))
	}
	return &c, nil
}

// ExistsByCode reports whether a code string is already taken. Used during
// batch generation before the unique constraint gets a say.
func (r *CodeRepository) ExistsByCode(ctx context.Context, codeStr string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM ltd_codes WHERE code = $1)`, codeStr).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check code existence: %w", err)
	}
	return exists, nil
}

// InsertBatchTx inserts a generated batch in the caller's transaction so a
// partial batch never survives a failure. A unique violation surfaces as
// ErrDuplicateCodeGeneration so the generator can retry the colliding code.
func (r *CodeRepository) InsertBatchTx(ctx context.Context, tx pgx.Tx, codes []*code.LTDCode) error {
	for _, c := range codes {
		err := tx.QueryRow(ctx, `
			INSERT INTO ltd_codes (code, tier, max_redemptions, expires_at, batch_id, notes, created_by_admin_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at, updated_at
		`, c.Code, c.Tier, c.MaxRedemptions, c.ExpiresAt, c.BatchID, c.Notes, c.CreatedByAdminID).
			Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return fmt.Errorf("code %s: %w", c.Code, xerrors.ErrDuplicateCodeGeneration)
			}
			return fmt.Errorf("failed to insert code: %w", mapError(err))
		}
	}
	return nil
}

// FindByCodeForUpdateTx locks a code row for redemption. Lookup is
// case-insensitive on both sides so hand-seeded rows stay redeemable.
func (r *CodeRepository) FindByCodeForUpdateTx(ctx context.Context, tx pgx.Tx, codeStr string) (*code.LTDCode, error) {
	query := fmt.Sprintf(`SELECT %s FROM ltd_codes WHERE UPPER(code) = UPPER($1) FOR UPDATE`, codeColumns)
	return scanCode(tx.QueryRow(ctx, query, codeStr))
}

// IncrementRedemptionsTx consumes one redemption slot under the caller's
// row lock.
func (r *CodeRepository) IncrementRedemptionsTx(ctx context.Context, tx pgx.Tx, codeID int64) error {
	tag, err := tx.Exec(ctx,
		`UPDATE ltd_codes SET current_redemptions = current_redemptions + 1, updated_at = NOW() WHERE id = $1`,
		codeID,
	)
	if err != nil {
		return fmt.Errorf("failed to increment redemptions: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrCodeNotFound
	}
	return nil
}

// HasUserRedeemedTx reports whether the user already redeemed this specific
// code. Checked inside the redemption transaction so two concurrent
// attempts on the same code cannot both pass.
func (r *CodeRepository) HasUserRedeemedTx(ctx context.Context, tx pgx.Tx, userID, codeID int64) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM ltd_redemptions WHERE user_id = $1 AND code_id = $2)`,
		userID, codeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check prior redemption: %w", mapError(err))
	}
	return exists, nil
}

// InsertRedemptionTx writes the redemption audit row.
func (r *CodeRepository) InsertRedemptionTx(ctx context.Context, tx pgx.Tx, red *code.Redemption) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO ltd_redemptions (user_id, code_id, tier, credits_added, previous_tier)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, redeemed_at
	`, red.UserID, red.CodeID, red.Tier, red.CreditsAdded, red.PreviousTier).
		Scan(&red.ID, &red.RedeemedAt)
	if err != nil {
		return fmt.Errorf("failed to insert redemption: %w", mapError(err))
	}
	return nil
}

// GetByID fetches one code.
func (r *CodeRepository) GetByID(ctx context.Context, id int64) (*code.LTDCode, error) {
	query := fmt.Sprintf(`SELECT %s FROM ltd_codes WHERE id = $1`, codeColumns)
	return scanCode(r.db.QueryRow(ctx, query, id))
}

// List returns a filtered, paginated code listing for the admin surface.
func (r *CodeRepository) List(ctx context.Context, filters code.ListFilters) (*code.ListResponse, error) {
	conditions := []string{}
	args := []interface{}{}
	argPos := 1

	if len(filters.Tiers) > 0 {
		conditions = append(conditions, fmt.Sprintf("tier = ANY($%d)", argPos))
		args = append(args, pq.Array(filters.Tiers))
		argPos++
	}
	switch filters.Status {
	case code.StatusActive:
		conditions = append(conditions, "is_active = TRUE AND current_redemptions < max_redemptions AND (expires_at IS NULL OR expires_at > NOW())")
	case code.StatusExpired:
		conditions = append(conditions, "expires_at IS NOT NULL AND expires_at <= NOW()")
	case code.StatusRedeemed:
		conditions = append(conditions, "current_redemptions >= max_redemptions")
	case code.StatusDisabled:
		conditions = append(conditions, "is_active = FALSE")
	}
	if filters.BatchID != "" {
		conditions = append(conditions, fmt.Sprintf("batch_id = $%d", argPos))
		args = append(args, filters.BatchID)
		argPos++
	}
	if filters.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(code ILIKE $%d OR notes ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+filters.Search+"%")
		argPos++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM ltd_codes %s`, where)
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count codes: %w", err)
	}

	page := filters.Page
	if page < 1 {
		page = 1
	}
	pageSize := filters.PageSize
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	query := fmt.Sprintf(`SELECT %s FROM ltd_codes %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		codeColumns, where, argPos, argPos+1)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list codes: %w", err)
	}
	defer rows.Close()

	codes := []code.LTDCode{}
	for rows.Next() {
		c, err := scanCode(rows)
		if err != nil {
			return nil, err
		}
		codes = append(codes, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &code.ListResponse{
		Codes:      codes,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// Update applies the non-nil fields of an admin edit.
func (r *CodeRepository) Update(ctx context.Context, id int64, req *code.UpdateRequest) (*code.LTDCode, error) {
	setClauses := []string{"updated_at = NOW()"}
	args := []interface{}{}
	argPos := 1

	if req.MaxRedemptions != nil {
		setClauses = append(setClauses, fmt.Sprintf("max_redemptions = $%d", argPos))
		args = append(args, *req.MaxRedemptions)
		argPos++
	}
	if req.ExpiresAt != nil {
		setClauses = append(setClauses, fmt.Sprintf("expires_at = $%d", argPos))
		args = append(args, *req.ExpiresAt)
		argPos++
	}
	if req.IsActive != nil {
		setClauses = append(setClauses, fmt.Sprintf("is_active = $%d", argPos))
		args = append(args, *req.IsActive)
		argPos++
	}
	if req.Notes != nil {
		setClauses = append(setClauses, fmt.Sprintf("notes = $%d", argPos))
		args = append(args, *req.Notes)
		argPos++
	}

	query := fmt.Sprintf(`UPDATE ltd_codes SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(setClauses, ", "), argPos, codeColumns)
	args = append(args, id)

	return scanCode(r.db.QueryRow(ctx, query, args...))
}

// Delete removes one code. Codes with recorded redemptions are kept for the
// audit trail and deactivated instead.
func (r *CodeRepository) Delete(ctx context.Context, id int64) error {
	var redeemed bool
	err := r.db.QueryRow(ctx,
		`SELECT current_redemptions > 0 FROM ltd_codes WHERE id = $1`, id,
	).Scan(&redeemed)
	if errors.Is(err, pgx.ErrNoRows) {
		return xerrors.ErrCodeNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check code: %w", err)
	}

	if redeemed {
		_, err = r.db.Exec(ctx,
			`UPDATE ltd_codes SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	} else {
		_, err = r.db.Exec(ctx, `DELETE FROM ltd_codes WHERE id = $1`, id)
	}
	if err != nil {
		return fmt.Errorf("failed to delete code: %w", err)
	}
	return nil
}

// RevokeBatch deactivates every code in a batch and returns how many rows
// changed.
func (r *CodeRepository) RevokeBatch(ctx context.Context, batchID string) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE ltd_codes SET is_active = FALSE, updated_at = NOW() WHERE batch_id = $1 AND is_active = TRUE`,
		batchID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke batch: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Stats aggregates the whole code inventory in one pass.
func (r *CodeRepository) Stats(ctx context.Context) (*code.Stats, error) {
	var s code.Stats
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_active AND current_redemptions < max_redemptions AND (expires_at IS NULL OR expires_at > NOW())),
		       COUNT(*) FILTER (WHERE current_redemptions > 0),
		       COUNT(*) FILTER (WHERE current_redemptions >= max_redemptions),
		       COUNT(*) FILTER (WHERE expires_at IS NOT NULL AND expires_at <= NOW()),
		       COUNT(*) FILTER (WHERE tier = 1),
		       COUNT(*) FILTER (WHERE tier = 2),
		       COUNT(*) FILTER (WHERE tier = 3),
		       COUNT(*) FILTER (WHERE tier = 4)
		FROM ltd_codes
	`).Scan(
		&s.TotalCodes, &s.ActiveCodes, &s.RedeemedCodes, &s.FullyRedeemed,
		&s.ExpiredCodes, &s.Tier1Codes, &s.Tier2Codes, &s.Tier3Codes, &s.Tier4Codes,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load code stats: %w", err)
	}
	return &s, nil
}

// UserRedemptions returns a user's redemption history, newest first.
func (r *CodeRepository) UserRedemptions(ctx context.Context, userID int64) ([]code.Redemption, error) {
	rows, err := r.db.Query(ctx, `
		SELECT r.id, r.user_id, r.code_id, c.code, r.tier, r.credits_added, r.previous_tier, r.redeemed_at
		FROM ltd_redemptions r
		JOIN ltd_codes c ON c.id = r.code_id
		WHERE r.user_id = $1
		ORDER BY r.redeemed_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query redemptions: %w", err)
	}
	defer rows.Close()

	reds := []code.Redemption{}
	for rows.Next() {
		var red code.Redemption
		if err := rows.Scan(&red.ID, &red.UserID, &red.CodeID, &red.Code, &red.Tier,
			&red.CreditsAdded, &red.PreviousTier, &red.RedeemedAt); err != nil {
			return nil, fmt.Errorf("failed to scan redemption: %w", err)
		}
		reds = append(reds, red)
	}
	return reds, rows.Err()
}

// ExpireStale is housekeeping: flips is_active off for codes whose expiry
// passed before the given time. Returns rows changed.
func (r *CodeRepository) ExpireStale(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE ltd_codes SET is_active = FALSE, updated_at = NOW() WHERE is_active = TRUE AND expires_at IS NOT NULL AND expires_at <= $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire codes: %w", err)
	}
	return tag.RowsAffected(), nil
}
