// internal/domain/code/dto.go
package code

import "time"

// GenerateParams describes one admin batch-generation request.
type GenerateParams struct {
	Tier           int        `json:"tier" binding:"required,min=1,max=4"`
	Quantity       int        `json:"quantity" binding:"required,min=1,max=1000"`
	Prefix         string     `json:"prefix,omitempty"`
	MaxRedemptions int        `json:"max_redemptions,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	Notes          string     `json:"notes,omitempty"`
}

// CodeStatus filters listings by lifecycle state.
type CodeStatus string

const (
	StatusActive   CodeStatus = "active"
	StatusExpired  CodeStatus = "expired"
	StatusRedeemed CodeStatus = "redeemed"
	StatusDisabled CodeStatus = "disabled"
)

// ListFilters narrows admin code listings.
type ListFilters struct {
	Tiers    []int      `form:"tiers"`
	Status   CodeStatus `form:"status"`
	BatchID  string     `form:"batch_id"`
	Search   string     `form:"search"`
	Page     int        `form:"page"`
	PageSize int        `form:"page_size"`
}

// ListResponse is a paginated code listing.
type ListResponse struct {
	Codes      []LTDCode `json:"codes"`
	Total      int64     `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalPages int       `json:"total_pages"`
}

// UpdateRequest mutates the admin-editable fields of one code. Nil fields
// are left untouched.
type UpdateRequest struct {
	MaxRedemptions *int       `json:"max_redemptions,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	IsActive       *bool      `json:"is_active,omitempty"`
	Notes          *string    `json:"notes,omitempty"`
}

// Empty reports whether the request changes nothing.
func (r *UpdateRequest) Empty() bool {
	return r.MaxRedemptions == nil && r.ExpiresAt == nil && r.IsActive == nil && r.Notes == nil
}

// RedeemResult is what a successful redemption did to the account.
type RedeemResult struct {
	Success         bool    `json:"success"`
	Tier            int     `json:"tier"`
	PreviousTier    int     `json:"previous_tier"`
	CreditsAdded    float64 `json:"credits_added"`
	CreditTotal     float64 `json:"credit_total"`
	MonthlyLimit    float64 `json:"monthly_credit_limit"`
	StackedCodes    int     `json:"stacked_codes"`
	FirstRedemption bool    `json:"first_redemption"`
}

// Stats aggregates the code inventory for the admin dashboard.
type Stats struct {
	TotalCodes    int64 `json:"total_codes"`
	ActiveCodes   int64 `json:"active_codes"`
	RedeemedCodes int64 `json:"redeemed_codes"`
	FullyRedeemed int64 `json:"fully_redeemed"`
	ExpiredCodes  int64 `json:"expired_codes"`
	Tier1Codes    int64 `json:"tier1_codes"`
	Tier2Codes    int64 `json:"tier2_codes"`
	Tier3Codes    int64 `json:"tier3_codes"`
	Tier4Codes    int64 `json:"tier4_codes"`
}
