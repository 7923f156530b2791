package alerting

import (
	"fmt"
	"strings"

	"pharmacy-stock-alerts/pkg/models"
)

// RenderTemplate substitutes alert fields into a stored channel template.
// Pure function; unknown placeholders are left as-is. Supported placeholders:
// {product}, {message}, {quantity}, {threshold}, {rule}, {urgency}, {days_remaining}.
func RenderTemplate(template string, alert *models.Alert) string {
	if template == "" {
		template = "[{urgency}] {message}"
	}

	daysRemaining := ""
	if alert.DaysRemaining != nil {
		daysRemaining = fmt.Sprintf("%d", *alert.DaysRemaining)
	}

	replacer := strings.NewReplacer(
		"{product}", alert.ProductCode,
		"{message}", alert.Message,
		"{quantity}", fmt.Sprintf("%.2f", alert.CurrentQuantity),
		"{threshold}", fmt.Sprintf("%.2f", alert.RuleThreshold),
		"{rule}", alert.RuleName,
		"{urgency}", string(alert.Urgency),
		"{days_remaining}", daysRemaining,
	)
	return replacer.Replace(template)
}
