// internal/domain/credit/dto.go
package credit

// DebitRequest asks the ledger to charge a user for a performed action.
// Amount 0 means "resolve the cost from the action and the user's tier".
type DebitRequest struct {
	Action   string                 `json:"action" binding:"required"`
	Amount   float64                `json:"amount"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// DebitResult reports the outcome of a debit. On failure Remaining still
// carries the untouched balance so callers can render an upgrade prompt.
type DebitResult struct {
	Success   bool    `json:"success"`
	Remaining float64 `json:"remaining"`
	Charged   float64 `json:"charged,omitempty"`
}

// AddRequest grants credits (refunds, bonuses, admin adjustments).
type AddRequest struct {
	UserID int64   `json:"user_id" binding:"required"`
	Amount float64 `json:"amount" binding:"required,gt=0"`
	Reason string  `json:"reason" binding:"required"`
}

// AddResult reports a successful credit addition.
type AddResult struct {
	Success  bool    `json:"success"`
	NewTotal float64 `json:"new_total"`
}
