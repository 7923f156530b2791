package alerting

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"pharmacy-stock-alerts/pkg/common"
	"pharmacy-stock-alerts/pkg/metrics"
	"pharmacy-stock-alerts/pkg/models"
)

// EvaluationReport summarizes one tenant run.
type EvaluationReport struct {
	TenantID        string         `json:"tenant_id"`
	Created         []models.Alert `json:"created"`
	Updated         int            `json:"updated"`
	Suppressed      int            `json:"suppressed"`
	SkippedProducts int            `json:"skipped_products"`
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      time.Time      `json:"finished_at"`
}

var recommendedActions = map[models.RuleType][]string{
	models.RuleTypeStockLow:     {"create reorder", "adjust threshold", "transfer stock"},
	models.RuleTypeStockout:     {"create emergency reorder", "contact supplier", "propose substitute"},
	models.RuleTypeExpiration:   {"promote", "transfer", "return to supplier"},
	models.RuleTypeOverstock:    {"pause reorders", "transfer stock", "negotiate return"},
	models.RuleTypeSlowRotation: {"promote", "reduce facing", "review assortment"},
}

func compare(metric float64, op models.ThresholdOperator, threshold float64) bool {
	switch op {
	case models.OperatorLt:
		return metric < threshold
	case models.OperatorLte:
		return metric <= threshold
	case models.OperatorGt:
		return metric > threshold
	case models.OperatorGte:
		return metric >= threshold
	case models.OperatorEq:
		return metric == threshold
	default:
		return false
	}
}

// ruleMetric picks the product metric a rule compares against. ok is false
// when the rule does not apply to the product (e.g. expiration rule on a
// product without an expiry date).
func ruleMetric(rule *models.ThresholdRule, product *models.Product, now time.Time) (metric float64, days *int, ok bool) {
	switch rule.RuleType {
	case models.RuleTypeStockLow, models.RuleTypeStockout, models.RuleTypeOverstock:
		return product.CurrentQuantity, nil, true
	case models.RuleTypeExpiration:
		d, has := product.DaysUntilExpiry(now)
		if !has {
			return 0, nil, false
		}
		return float64(d), &d, true
	case models.RuleTypeSlowRotation:
		idle := now.Sub(product.UpdatedAt).Hours() / 24
		return idle, nil, true
	default:
		return 0, nil, false
	}
}

// breach reports whether the rule fires for the product. Expired stock
// breaches an expiration rule unconditionally.
func breach(rule *models.ThresholdRule, metric float64, days *int) bool {
	if rule.RuleType == models.RuleTypeExpiration && days != nil && *days <= 0 {
		return true
	}
	return compare(metric, rule.Operator, rule.Threshold)
}

// deriveUrgency maps rule priority and breach magnitude onto the alert
// urgency. Zero stock and expired stock are always critical; a breach past
// half the threshold bumps the rule priority one step.
func deriveUrgency(rule *models.ThresholdRule, metric float64, days *int) models.Priority {
	if days != nil && *days <= 0 {
		return models.PriorityCritical
	}
	switch rule.RuleType {
	case models.RuleTypeStockLow, models.RuleTypeStockout:
		if metric <= 0 {
			return models.PriorityCritical
		}
	}

	rank := models.UrgencyRank(rule.Priority)
	if severeBreach(rule, metric) {
		rank++
	}
	return models.PriorityFromRank(rank)
}

func severeBreach(rule *models.ThresholdRule, metric float64) bool {
	switch rule.Operator {
	case models.OperatorLt, models.OperatorLte:
		return metric <= rule.Threshold/2
	case models.OperatorGt, models.OperatorGte:
		return rule.Threshold > 0 && metric >= rule.Threshold*1.5
	default:
		return false
	}
}

func breachMessage(rule *models.ThresholdRule, product *models.Product, metric float64, days *int) string {
	switch rule.RuleType {
	case models.RuleTypeExpiration:
		if days != nil && *days <= 0 {
			return fmt.Sprintf("%s expired %d day(s) ago", product.Name, -*days)
		}
		return fmt.Sprintf("%s expires in %.0f day(s), threshold %.0f", product.Name, metric, rule.Threshold)
	case models.RuleTypeStockout:
		return fmt.Sprintf("%s is out of stock", product.Name)
	case models.RuleTypeOverstock:
		return fmt.Sprintf("Stock %.2f of %s above threshold %.2f", metric, product.Name, rule.Threshold)
	case models.RuleTypeSlowRotation:
		return fmt.Sprintf("%s had no movement for %.0f day(s), threshold %.0f", product.Name, metric, rule.Threshold)
	default:
		return fmt.Sprintf("Stock %.2f of %s below threshold %.2f", metric, product.Name, rule.Threshold)
	}
}

func validateProduct(product *models.Product) error {
	if product.Code == "" {
		return fmt.Errorf("product has empty code")
	}
	if math.IsNaN(product.CurrentQuantity) || math.IsInf(product.CurrentQuantity, 0) {
		return fmt.Errorf("product %s has non-finite quantity", product.Code)
	}
	if product.CurrentQuantity < 0 {
		return fmt.Errorf("product %s has negative quantity %.2f", product.Code, product.CurrentQuantity)
	}
	return nil
}

// escalationLevel computes how many escalation steps an alert of the given
// age has earned under the settings, capped at max_escalation_level.
func escalationLevel(settings *models.GlobalAlertSettings, age time.Duration) int {
	if !settings.EscalationEnabled || settings.EscalationDelayMinutes <= 0 {
		return 0
	}
	level := int(age.Minutes()) / settings.EscalationDelayMinutes
	if level > settings.MaxEscalationLevel {
		level = settings.MaxEscalationLevel
	}
	if level < 0 {
		level = 0
	}
	return level
}

// evaluate runs one tenant evaluation. Runs for the same tenant never
// overlap; a busy tenant returns LockContentionError and the tick is skipped.
func (e *Engine) evaluate(ctx context.Context, tenantID string) (*EvaluationReport, error) {
	logger := common.GetLoggerWith(
		common.LoggerNameAlertingCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryEvaluator),
		zap.String("tenant_id", tenantID),
	)

	release, ok := e.locks.TryAcquire(tenantID)
	if !ok {
		logger.Info("Evaluation skipped, previous run still in flight")
		metrics.EvaluatorRuns.WithLabelValues("skipped_lock").Inc()
		return nil, &LockContentionError{TenantID: tenantID}
	}
	defer release()

	start := time.Now()
	defer func() {
		metrics.EvaluationDuration.Observe(time.Since(start).Seconds())
	}()

	settings, err := e.getSettings(tenantID)
	if err != nil {
		metrics.EvaluatorRuns.WithLabelValues("error").Inc()
		return nil, err
	}

	rules, err := e.listRules(tenantID, RuleFilter{ActiveOnly: true})
	if err != nil {
		metrics.EvaluatorRuns.WithLabelValues("error").Inc()
		return nil, err
	}

	products, err := e.listProducts(tenantID)
	if err != nil {
		metrics.EvaluatorRuns.WithLabelValues("error").Inc()
		return nil, err
	}

	var activeAlerts []models.Alert
	if err := e.Db.Conn.
		Where("tenant_id = ? AND status = ?", tenantID, models.AlertStatusActive).
		Find(&activeAlerts).Error; err != nil {
		metrics.EvaluatorRuns.WithLabelValues("error").Inc()
		return nil, err
	}

	// product+rule -> unresolved alert, for idempotent updates
	activeByKey := make(map[string]*models.Alert, len(activeAlerts))
	for idx := range activeAlerts {
		a := &activeAlerts[idx]
		activeByKey[a.ProductCode+"/"+a.RuleID] = a
	}

	now := time.Now()
	cooldown := time.Duration(settings.DuplicateCooldownMinutes) * time.Minute

	// product+rule_type pairs resolved inside the cooldown window
	cooldownByKey := make(map[string]bool)
	if cooldown > 0 {
		var recent []models.Alert
		if err := e.Db.Conn.
			Where("tenant_id = ? AND status IN ? AND resolved_at > ?",
				tenantID,
				[]models.AlertStatus{models.AlertStatusTreated, models.AlertStatusIgnored},
				now.Add(-cooldown)).
			Find(&recent).Error; err != nil {
			metrics.EvaluatorRuns.WithLabelValues("error").Inc()
			return nil, err
		}
		for _, a := range recent {
			cooldownByKey[a.ProductCode+"/"+string(a.RuleType)] = true
		}
	}

	report := &EvaluationReport{TenantID: tenantID, StartedAt: start, Created: []models.Alert{}}

	for pi := range products {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = time.Now()
			logger.Warn("Evaluation aborted by deadline", zap.Error(err))
			metrics.EvaluatorRuns.WithLabelValues("error").Inc()
			return report, err
		}

		product := &products[pi]
		if err := validateProduct(product); err != nil {
			// malformed record is skipped, never fatal to the batch
			logger.Warn("Skipping malformed product", zap.String("product", product.Code), zap.Error(err))
			report.SkippedProducts++
			continue
		}

		for ri := range rules {
			rule := &rules[ri]

			metric, days, applies := ruleMetric(rule, product, now)
			if !applies || !breach(rule, metric, days) {
				continue
			}

			urgency := deriveUrgency(rule, metric, days)
			message := breachMessage(rule, product, metric, days)

			if existing, found := activeByKey[product.Code+"/"+rule.ID]; found {
				level := escalationLevel(settings, now.Sub(existing.CreatedAt))
				if level > existing.EscalationLevel {
					urgency = models.PriorityFromRank(models.UrgencyRank(urgency) + level - existing.EscalationLevel)
					existing.EscalationLevel = level
				} else if models.UrgencyRank(existing.Urgency) > models.UrgencyRank(urgency) {
					// never de-escalate an already escalated alert
					urgency = existing.Urgency
				}

				existing.Message = message
				existing.CurrentQuantity = product.CurrentQuantity
				existing.DaysRemaining = days
				existing.Urgency = urgency

				if err := e.Db.Conn.Save(existing).Error; err != nil {
					logger.Error("Failed to update alert", zap.String("product", product.Code), zap.Error(err))
					continue
				}
				report.Updated++
				continue
			}

			if cooldownByKey[product.Code+"/"+string(rule.RuleType)] {
				logger.Info("Alert suppressed by cooldown",
					zap.String("product", product.Code), zap.String("rule_type", string(rule.RuleType)))
				report.Suppressed++
				continue
			}

			alert := models.Alert{
				ID:                 uuid.NewString(),
				TenantID:           tenantID,
				ProductCode:        product.Code,
				Message:            message,
				CurrentQuantity:    product.CurrentQuantity,
				DaysRemaining:      days,
				Urgency:            urgency,
				Status:             models.AlertStatusActive,
				RecommendedActions: recommendedActions[rule.RuleType],
				CreatedAt:          now,
				RuleID:             rule.ID,
				RuleName:           rule.Name,
				RuleType:           rule.RuleType,
				RuleOperator:       rule.Operator,
				RuleThreshold:      rule.Threshold,
				RulePriority:       rule.Priority,
			}

			logger.Info("Alert found", zap.Reflect("alert", alert))

			if err := e.Db.Conn.Create(&alert).Error; err != nil {
				logger.Error("Failed to save alert", zap.String("product", product.Code), zap.Error(err))
				continue
			}
			metrics.AlertsCreated.Inc()
			activeByKey[product.Code+"/"+rule.ID] = &alert
			report.Created = append(report.Created, alert)

			logger.Info("Alert saved", zap.Reflect("alert", alert))
		}
	}

	if settings.AlertRetentionDays > 0 {
		cutoff := now.AddDate(0, 0, -settings.AlertRetentionDays)
		if err := e.Db.Conn.
			Where("tenant_id = ? AND status IN ? AND resolved_at < ?",
				tenantID,
				[]models.AlertStatus{models.AlertStatusTreated, models.AlertStatusIgnored},
				cutoff).
			Delete(&models.Alert{}).Error; err != nil {
			logger.Warn("Retention purge failed", zap.Error(err))
		}
	}

	report.FinishedAt = time.Now()
	metrics.EvaluatorRuns.WithLabelValues("completed").Inc()
	logger.Info("Evaluation completed",
		zap.Int("created", len(report.Created)),
		zap.Int("updated", report.Updated),
		zap.Int("suppressed", report.Suppressed),
		zap.Int("skipped_products", report.SkippedProducts))

	return report, nil
}

type IEvaluatorImpl struct {
	engine *Engine
}

func (ie *IEvaluatorImpl) Evaluate(ctx context.Context, tenantID string) (*EvaluationReport, error) {
	return ie.engine.evaluate(ctx, tenantID)
}

func (e *Engine) GetIEvaluator() IEvaluator {
	return &IEvaluatorImpl{engine: e}
}
