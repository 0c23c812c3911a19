// internal/domain/notification/entity.go
package notification

// Template names the notifications the engine can request. Rendering and
// delivery belong to the email collaborator; the engine only hands over a
// template name and its parameters.
type Template string

const (
	TemplateWelcome      Template = "ltd_welcome"
	TemplateCodeStacked  Template = "ltd_code_stacked"
	TemplateLowCredit    Template = "low_credit_warning"
	TemplateReengagement Template = "reengagement"
)

// Request is one "send this templated notification" instruction.
type Request struct {
	UserID   int64                  `json:"user_id"`
	Email    string                 `json:"email"`
	Name     string                 `json:"name,omitempty"`
	Template Template               `json:"template"`
	Params   map[string]interface{} `json:"params,omitempty"`
}
