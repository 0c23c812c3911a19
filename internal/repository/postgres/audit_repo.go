// internal/repository/postgres/audit_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"repurpose-service/internal/domain/audit"

	"github.com/jackc/pgx/v5/pgxpool"
)

type AuditRepository struct {
	db *pgxpool.Pool
}

func NewAuditRepository(db *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record appends one audit row. Audit writes never fail the admin action
// they describe; callers log and continue on error.
func (r *AuditRepository) Record(ctx context.Context, entry *audit.Entry) error {
	var detailsJSON []byte
	if entry.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal audit details: %w", err)
		}
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO admin_audit_log (admin_id, action, target_user_id, details)
		VALUES ($1, $2, $3, $4)
	`, entry.AdminID, entry.Action, entry.TargetUserID, detailsJSON)
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

// ForUser returns the audit trail touching one user, newest first.
func (r *AuditRepository) ForUser(ctx context.Context, targetUserID int64, limit int) ([]audit.Entry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, admin_id, action, target_user_id, details, created_at
		FROM admin_audit_log
		WHERE target_user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, targetUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	entries := []audit.Entry{}
	for rows.Next() {
		var e audit.Entry
		var detailsJSON []byte
		if err := rows.Scan(&e.ID, &e.AdminID, &e.Action, &e.TargetUserID, &detailsJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if len(detailsJSON) > 0 {
			json.Unmarshal(detailsJSON, &e.Details)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
