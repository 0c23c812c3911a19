// internal/repository/postgres/notification_repo.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"repurpose-service/internal/domain/notification"

	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationRepository struct {
	db *pgxpool.Pool
}

func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// RecordSent logs one delivered notification. The log doubles as the
// dedup source of truth when redis is unavailable.
func (r *NotificationRepository) RecordSent(ctx context.Context, userID int64, template notification.Template) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO notification_log (user_id, template) VALUES ($1, $2)`,
		userID, template,
	)
	if err != nil {
		return fmt.Errorf("failed to record notification: %w", err)
	}
	return nil
}

// SentSince reports whether the user already received this template after
// the given time.
func (r *NotificationRepository) SentSince(ctx context.Context, userID int64, template notification.Template, since time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM notification_log WHERE user_id = $1 AND template = $2 AND sent_at >= $3)`,
		userID, template, since,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check notification log: %w", err)
	}
	return exists, nil
}
