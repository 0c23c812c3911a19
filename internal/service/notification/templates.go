// internal/service/notification/templates.go
package notification

import (
	"fmt"
	"time"

	"repurpose-service/internal/domain/notification"
)

// render turns a notification request into a subject and HTML body. The
// engine hands over template name + params; everything presentational
// lives here.
func render(req *notification.Request) (subject, body string) {
	name := req.Name
	if name == "" {
		name = "there"
	}

	switch req.Template {
	case notification.TemplateWelcome:
		tier, _ := req.Params["tier"].(int)
		credits, _ := req.Params["credits_added"].(float64)
		subject = "Welcome to your lifetime deal!"
		body = fmt.Sprintf(
			`<p>Hi %s,</p>
			<p>Your code has been redeemed and your lifetime deal is live. You are on <strong>Tier %d</strong> with <strong>%.0f credits</strong> ready to use this month.</p>
			<p>Your credits refresh every month, forever. Stack more codes any time to raise your tier and allowance.</p>`,
			name, tier, credits,
		)

	case notification.TemplateCodeStacked:
		tier, _ := req.Params["tier"].(int)
		credits, _ := req.Params["credits_added"].(float64)
		stacked, _ := req.Params["stacked_codes"].(int)
		subject = "Code stacked: your plan just grew"
		body = fmt.Sprintf(
			`<p>Hi %s,</p>
			<p>Another code stacked! You now have <strong>%d codes</strong> on your account, you are on <strong>Tier %d</strong>, and <strong>%.0f credits</strong> were added to your balance and monthly allowance.</p>`,
			name, stacked, tier, credits,
		)

	case notification.TemplateLowCredit:
		remaining, _ := req.Params["credits_remaining"].(float64)
		limit, _ := req.Params["monthly_credit_limit"].(float64)
		subject = "You're running low on credits"
		body = fmt.Sprintf(
			`<p>Hi %s,</p>
			<p>You have <strong>%.1f of %.0f credits</strong> left this month.</p>
			<p>Your allowance resets on your monthly cycle%s. Unused credits roll over, capped at one month's allowance.</p>`,
			name, remaining, limit, resetSuffix(req.Params),
		)

	case notification.TemplateReengagement:
		days, _ := req.Params["days_inactive"].(int)
		subject = "Your credits are waiting"
		body = fmt.Sprintf(
			`<p>Hi %s,</p>
			<p>It's been %d days since your last visit, and your monthly credits have kept refreshing the whole time. Come turn them into content.</p>`,
			name, days,
		)

	default:
		subject = "Account update"
		body = fmt.Sprintf(`<p>Hi %s,</p><p>There's news on your account.</p>`, name)
	}
	return subject, body
}

func resetSuffix(params map[string]interface{}) string {
	t, ok := params["credit_reset_date"].(time.Time)
	if !ok || t.IsZero() {
		return ""
	}
	return " on " + t.Format("January 2")
}
