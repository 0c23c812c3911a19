// internal/domain/audit/entity.go
package audit

import "time"

// Entry is one admin action on a user account or the code inventory.
type Entry struct {
	ID           int64                  `json:"id"`
	AdminID      int64                  `json:"admin_id"`
	Action       string                 `json:"action"`
	TargetUserID *int64                 `json:"target_user_id,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}
