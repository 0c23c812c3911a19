// internal/domain/code/entity.go
package code

import (
	"database/sql"
	"time"
)

// LTDCode is one redeemable activation code. A code becomes inert once
// current_redemptions reaches max_redemptions, once it expires, or when an
// admin toggles is_active off; the redemption count is authoritative, there
// is no separate "used" flag.
type LTDCode struct {
	ID                 int64          `json:"id" db:"id"`
	Code               string         `json:"code" db:"code"`
	Tier               int            `json:"tier" db:"tier"`
	MaxRedemptions     int            `json:"max_redemptions" db:"max_redemptions"`
	CurrentRedemptions int            `json:"current_redemptions" db:"current_redemptions"`
	ExpiresAt          sql.NullTime   `json:"expires_at,omitempty" db:"expires_at"`
	IsActive           bool           `json:"is_active" db:"is_active"`
	BatchID            string         `json:"batch_id" db:"batch_id"`
	Notes              sql.NullString `json:"notes,omitempty" db:"notes"`
	CreatedByAdminID   sql.NullInt64  `json:"created_by_admin_id,omitempty" db:"created_by_admin_id"`
	CreatedAt          time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at" db:"updated_at"`
}

// Exhausted reports whether every redemption slot has been consumed.
func (c *LTDCode) Exhausted() bool {
	return c.CurrentRedemptions >= c.MaxRedemptions
}

// Expired reports whether the code's expiry has passed as of now.
func (c *LTDCode) Expired(now time.Time) bool {
	return c.ExpiresAt.Valid && !c.ExpiresAt.Time.After(now)
}

// Redemption is one audit row: who redeemed which code, and what it did to
// their plan.
type Redemption struct {
	ID           int64     `json:"id" db:"id"`
	UserID       int64     `json:"user_id" db:"user_id"`
	CodeID       int64     `json:"code_id" db:"code_id"`
	Code         string    `json:"code,omitempty" db:"code"`
	Tier         int       `json:"tier" db:"tier"`
	CreditsAdded float64   `json:"credits_added" db:"credits_added"`
	PreviousTier int       `json:"previous_tier" db:"previous_tier"`
	RedeemedAt   time.Time `json:"redeemed_at" db:"redeemed_at"`
}
