// internal/domain/usage/entity.go
package usage

import "time"

// Feature names the gated, non-credit-metered features the monthly
// counters track.
type Feature string

const (
	FeatureScheduling    Feature = "scheduling"
	FeatureAIChat        Feature = "ai_chat"
	FeatureAPICalls      Feature = "api_calls"
	FeatureStyleProfiles Feature = "style_profiles"
	FeatureTeamSeats     Feature = "team_seats"
)

// MonthlyKind features count per calendar month; persistent ones (style
// profiles, team seats) count live rows instead.
func (f Feature) Monthly() bool {
	switch f {
	case FeatureScheduling, FeatureAIChat, FeatureAPICalls:
		return true
	default:
		return false
	}
}

// Valid reports whether the feature name is one the counters know.
func (f Feature) Valid() bool {
	switch f {
	case FeatureScheduling, FeatureAIChat, FeatureAPICalls, FeatureStyleProfiles, FeatureTeamSeats:
		return true
	default:
		return false
	}
}

// Counter is one user x feature x month row. A new month simply starts a
// new row; rows are never reset.
type Counter struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Feature   Feature   `json:"feature" db:"feature"`
	MonthYear string    `json:"month_year" db:"month_year"` // e.g. "2025-10"
	Count     int       `json:"count" db:"count"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CheckResult is the shared allow/deny shape for every limit check. Limit
// is -1 for unlimited.
type CheckResult struct {
	Allowed bool   `json:"allowed"`
	Current int    `json:"current"`
	Limit   int    `json:"limit"`
	Reason  string `json:"reason,omitempty"`
}

// FeatureStat is one feature's slice of the usage rollup.
type FeatureStat struct {
	Current      int `json:"current"`
	Limit        int `json:"limit"` // -1 = unlimited
	TierRequired int `json:"tier_required"`
}

// Stats is the full per-user usage rollup for the current month.
type Stats struct {
	Month         string      `json:"month"`
	Scheduling    FeatureStat `json:"scheduling"`
	Chat          FeatureStat `json:"chat"`
	API           FeatureStat `json:"api"`
	StyleProfiles FeatureStat `json:"style_profiles"`
	TeamSeats     FeatureStat `json:"team_seats"`
}

// MonthKey formats the counter key for a point in time, e.g. "2025-10".
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
