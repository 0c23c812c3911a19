// internal/domain/plan/dto.go
package plan

import "time"

// AdminUpdateRequest is an admin-initiated adjustment of a user's LTD plan.
// Nil fields are left untouched.
type AdminUpdateRequest struct {
	Tier               *int     `json:"ltd_tier,omitempty"`
	Credits            *float64 `json:"credits,omitempty"`
	MonthlyCreditLimit *float64 `json:"monthly_credit_limit,omitempty"`
}

// Empty reports whether the request changes nothing.
func (r *AdminUpdateRequest) Empty() bool {
	return r.Tier == nil && r.Credits == nil && r.MonthlyCreditLimit == nil
}

// ListFilters narrows admin LTD user listings.
type ListFilters struct {
	Search   string `form:"search"`
	Tier     int    `form:"tier"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// LTDUser is the admin view of an LTD account: the plan row joined with
// redemption aggregates.
type LTDUser struct {
	Record
	TotalRedemptions int        `json:"total_redemptions"`
	LastRedeemedAt   *time.Time `json:"last_redeemed_at,omitempty"`
}

// ListResponse is a paginated admin user listing.
type ListResponse struct {
	Users      []LTDUser `json:"users"`
	Total      int64     `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalPages int       `json:"total_pages"`
}
