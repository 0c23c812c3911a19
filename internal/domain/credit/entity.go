// internal/domain/credit/entity.go
package credit

import "time"

// UsageLogEntry is one append-only row of the credit usage log: positive
// CreditsUsed is a debit, negative is an addition. Rows are never updated
// or deleted; the log is the sole source of truth for usage analytics.
type UsageLogEntry struct {
	ID                    int64                  `json:"id" db:"id"`
	UserID                int64                  `json:"user_id" db:"user_id"`
	ActionType            string                 `json:"action_type" db:"action_type"`
	CreditsUsed           float64                `json:"credits_used" db:"credits_used"`
	CreditsRemainingAfter float64                `json:"credits_remaining_after" db:"credits_remaining_after"`
	Metadata              map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt             time.Time              `json:"created_at" db:"created_at"`
}

// ActionSummary is one analytics row: aggregated debits for a single
// action type over a trailing window.
type ActionSummary struct {
	ActionType          string    `json:"action_type"`
	UsageCount          int64     `json:"usage_count"`
	TotalCreditsUsed    float64   `json:"total_credits_used"`
	AvgCreditsPerAction float64   `json:"avg_credits_per_action"`
	LastUsed            time.Time `json:"last_used"`
}
