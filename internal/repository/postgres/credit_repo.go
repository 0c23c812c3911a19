// internal/repository/postgres/credit_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"repurpose-service/internal/domain/credit"
	xerrors "repurpose-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CreditRepository struct {
	db *pgxpool.Pool
}

func NewCreditRepository(db *pgxpool.Pool) *CreditRepository {
	return &CreditRepository{db: db}
}

// Debit atomically charges a user. The balance is re-read under a row lock
// inside the transaction; a pre-transaction read is never trusted. When the
// balance is short, nothing is written and the current balance comes back
// with ErrInsufficientCredits.
func (r *CreditRepository) Debit(ctx context.Context, userID int64, amount float64, action string, metadata map[string]interface{}) (float64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := setLockTimeout(ctx, tx); err != nil {
		return 0, fmt.Errorf("failed to set lock timeout: %w", err)
	}

	var current float64
	err = tx.QueryRow(ctx, `SELECT credits FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, xerrors.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to lock plan row: %w", mapError(err))
	}

	if current < amount {
		return current, xerrors.ErrInsufficientCredits
	}

	var remaining float64
	err = tx.QueryRow(ctx,
		`UPDATE users SET credits = credits - $1, updated_at = NOW() WHERE id = $2 RETURNING credits`,
		amount, userID,
	).Scan(&remaining)
	if err != nil {
		return current, fmt.Errorf("failed to debit credits: %w", mapError(err))
	}

	if err := appendLogTx(ctx, tx, userID, action, amount, remaining, metadata); err != nil {
		return current, err
	}

	if err := tx.Commit(ctx); err != nil {
		return current, fmt.Errorf("failed to commit debit: %w", mapError(err))
	}
	return remaining, nil
}

// Credit atomically adds to a user's balance, logging a negative
// credits_used entry so additions stay distinguishable in analytics.
func (r *CreditRepository) Credit(ctx context.Context, userID int64, amount float64, reason string) (float64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := setLockTimeout(ctx, tx); err != nil {
		return 0, fmt.Errorf("failed to set lock timeout: %w", err)
	}

	var newTotal float64
	err = tx.QueryRow(ctx,
		`UPDATE users SET credits = credits + $1, updated_at = NOW() WHERE id = $2 RETURNING credits`,
		amount, userID,
	).Scan(&newTotal)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, xerrors.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to add credits: %w", mapError(err))
	}

	meta := map[string]interface{}{"reason": reason}
	if err := appendLogTx(ctx, tx, userID, "credit_addition", -amount, newTotal, meta); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit credit: %w", mapError(err))
	}
	return newTotal, nil
}

// appendLogTx writes one append-only usage log row inside the caller's
// transaction.
func appendLogTx(ctx context.Context, tx pgx.Tx, userID int64, action string, creditsUsed, remaining float64, metadata map[string]interface{}) error {
	var metadataJSON []byte
	if metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO credit_usage_log (user_id, action_type, credits_used, credits_remaining_after, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`, userID, action, creditsUsed, remaining, metadataJSON)
	if err != nil {
		return fmt.Errorf("failed to append usage log: %w", err)
	}
	return nil
}

// Analytics aggregates debits by action over a trailing window. Reads the
// append-only log only, so it takes no locks and may trail a concurrent
// debit slightly.
func (r *CreditRepository) Analytics(ctx context.Context, userID int64, days int) ([]credit.ActionSummary, error) {
	query := `
		SELECT action_type,
		       COUNT(*) AS usage_count,
		       SUM(credits_used) AS total_credits_used,
		       AVG(credits_used) AS avg_credits_per_action,
		       MAX(created_at) AS last_used
		FROM credit_usage_log
		WHERE user_id = $1
		  AND created_at >= NOW() - make_interval(days => $2)
		  AND credits_used > 0
		GROUP BY action_type
		ORDER BY total_credits_used DESC
	`
	rows, err := r.db.Query(ctx, query, userID, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage analytics: %w", err)
	}
	defer rows.Close()

	summaries := []credit.ActionSummary{}
	for rows.Next() {
		var s credit.ActionSummary
		if err := rows.Scan(&s.ActionType, &s.UsageCount, &s.TotalCreditsUsed, &s.AvgCreditsPerAction, &s.LastUsed); err != nil {
			return nil, fmt.Errorf("failed to scan analytics row: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// RecentEntries returns the newest usage log rows for a user.
func (r *CreditRepository) RecentEntries(ctx context.Context, userID int64, limit int) ([]credit.UsageLogEntry, error) {
	query := `
		SELECT id, user_id, action_type, credits_used, credits_remaining_after, metadata, created_at
		FROM credit_usage_log
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage log: %w", err)
	}
	defer rows.Close()

	entries := []credit.UsageLogEntry{}
	for rows.Next() {
		var e credit.UsageLogEntry
		var metadataJSON []byte
		if err := rows.Scan(&e.ID, &e.UserID, &e.ActionType, &e.CreditsUsed, &e.CreditsRemainingAfter, &metadataJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan usage log row: %w", err)
		}
		if len(metadataJSON) > 0 {
			json.Unmarshal(metadataJSON, &e.Metadata)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
