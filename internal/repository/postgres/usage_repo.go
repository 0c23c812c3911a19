// internal/repository/postgres/usage_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"repurpose-service/internal/domain/usage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UsageRepository struct {
	db *pgxpool.Pool
}

func NewUsageRepository(db *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{db: db}
}

// MonthlyCount reads one counter. A missing row is a count of zero, not an
// error; the row only appears on first increment.
func (r *UsageRepository) MonthlyCount(ctx context.Context, userID int64, feature usage.Feature, monthYear string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT count FROM monthly_feature_usage WHERE user_id = $1 AND feature = $2 AND month_year = $3`,
		userID, feature, monthYear,
	).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read usage counter: %w", err)
	}
	return count, nil
}

// IncrementMonthly bumps a counter by amount, creating the row for a fresh
// month on first use. The upsert makes concurrent increments safe without
// an explicit lock.
func (r *UsageRepository) IncrementMonthly(ctx context.Context, userID int64, feature usage.Feature, monthYear string, amount int) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		INSERT INTO monthly_feature_usage (user_id, feature, month_year, count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, feature, month_year)
		DO UPDATE SET count = monthly_feature_usage.count + EXCLUDED.count, updated_at = NOW()
		RETURNING count
	`, userID, feature, monthYear, amount).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to increment usage counter: %w", err)
	}
	return count, nil
}

// StyleProfileCount counts a user's live style profiles. Persistent
// features count rows, not monthly events.
func (r *UsageRepository) StyleProfileCount(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM style_profiles WHERE user_id = $1`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count style profiles: %w", err)
	}
	return count, nil
}

// TeamMemberCount counts accepted seats on a user's team, owner excluded.
func (r *UsageRepository) TeamMemberCount(ctx context.Context, ownerID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM team_members WHERE team_owner_id = $1 AND status = 'accepted'`, ownerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count team members: %w", err)
	}
	return count, nil
}

// MonthCounters returns every counter row a user has for one month.
func (r *UsageRepository) MonthCounters(ctx context.Context, userID int64, monthYear string) ([]usage.Counter, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, feature, month_year, count, updated_at
		FROM monthly_feature_usage
		WHERE user_id = $1 AND month_year = $2
		ORDER BY feature
	`, userID, monthYear)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage counters: %w", err)
	}
	defer rows.Close()

	counters := []usage.Counter{}
	for rows.Next() {
		var c usage.Counter
		if err := rows.Scan(&c.ID, &c.UserID, &c.Feature, &c.MonthYear, &c.Count, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan usage counter: %w", err)
		}
		counters = append(counters, c)
	}
	return counters, rows.Err()
}
