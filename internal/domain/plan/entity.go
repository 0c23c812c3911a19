// internal/domain/plan/entity.go
package plan

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

type PlanType string

const (
	PlanSubscription PlanType = "subscription"
	PlanLTD          PlanType = "ltd"
)

type SubscriptionStatus string

const (
	StatusFree       SubscriptionStatus = "free"
	StatusStarter    SubscriptionStatus = "starter"
	StatusPro        SubscriptionStatus = "pro"
	StatusEnterprise SubscriptionStatus = "enterprise"
	StatusLTDTier1   SubscriptionStatus = "ltd_tier_1"
	StatusLTDTier2   SubscriptionStatus = "ltd_tier_2"
	StatusLTDTier3   SubscriptionStatus = "ltd_tier_3"
	StatusLTDTier4   SubscriptionStatus = "ltd_tier_4"
)

// Record is one user's plan snapshot: the mutable per-user row the ledger,
// code registry and reconciliation job all contend on.
type Record struct {
	UserID             int64              `json:"user_id" db:"id"`
	Email              string             `json:"email" db:"email"`
	Name               string             `json:"name,omitempty" db:"name"`
	PlanType           PlanType           `json:"plan_type" db:"plan_type"`
	Tier               int                `json:"ltd_tier" db:"ltd_tier"` // 0 = no LTD tier
	SubscriptionStatus SubscriptionStatus `json:"subscription_status" db:"subscription_status"`
	Credits            float64            `json:"credits" db:"credits"`
	MonthlyCreditLimit float64            `json:"monthly_credit_limit" db:"monthly_credit_limit"`
	RolloverCredits    float64            `json:"rollover_credits" db:"rollover_credits"`
	StackedCodes       int                `json:"stacked_codes" db:"stacked_codes"`
	CreditResetDate    time.Time          `json:"credit_reset_date" db:"credit_reset_date"`
	LastLogin          time.Time          `json:"last_login" db:"last_login"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at"`
}

// IsLTD reports whether the record is on a lifetime deal with a tier set.
func (r *Record) IsLTD() bool {
	return r.PlanType == PlanLTD && r.Tier > 0
}

// StatusForTier maps an LTD tier to its subscription status value.
func StatusForTier(tier int) SubscriptionStatus {
	return SubscriptionStatus(fmt.Sprintf("ltd_tier_%d", tier))
}

var ltdStatusRe = regexp.MustCompile(`^ltd_tier_(\d)$`)

// TierFromStatus extracts the LTD tier from a subscription status, 0 when
// the status is not an LTD one.
func TierFromStatus(status SubscriptionStatus) int {
	m := ltdStatusRe.FindStringSubmatch(string(status))
	if m == nil {
		return 0
	}
	tier, _ := strconv.Atoi(m[1])
	if tier < 1 || tier > 4 {
		return 0
	}
	return tier
}
