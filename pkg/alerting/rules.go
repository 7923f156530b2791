package alerting

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"pharmacy-stock-alerts/pkg/common"
	"pharmacy-stock-alerts/pkg/models"
)

// RulePatch carries rule fields to change; nil fields are left untouched.
type RulePatch struct {
	Name        *string
	Description *string
	RuleType    *models.RuleType
	Operator    *models.ThresholdOperator
	Threshold   *float64
	Priority    *models.Priority
	Channels    *[]models.Channel
	Recipients  *map[models.Channel][]string
	IsActive    *bool
}

type RuleFilter struct {
	ActiveOnly bool
	RuleType   models.RuleType
}

var validRuleTypes = map[models.RuleType]bool{
	models.RuleTypeStockLow:     true,
	models.RuleTypeExpiration:   true,
	models.RuleTypeStockout:     true,
	models.RuleTypeOverstock:    true,
	models.RuleTypeSlowRotation: true,
}

var validOperators = map[models.ThresholdOperator]bool{
	models.OperatorLt:  true,
	models.OperatorLte: true,
	models.OperatorGt:  true,
	models.OperatorGte: true,
	models.OperatorEq:  true,
}

var validPriorities = map[models.Priority]bool{
	models.PriorityLow:      true,
	models.PriorityMedium:   true,
	models.PriorityHigh:     true,
	models.PriorityCritical: true,
}

var validChannels = map[models.Channel]bool{
	models.ChannelDashboard: true,
	models.ChannelEmail:     true,
	models.ChannelSMS:       true,
	models.ChannelWhatsApp:  true,
}

func validateRule(rule *models.ThresholdRule) error {
	if rule.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if !validRuleTypes[rule.RuleType] {
		return &ValidationError{Field: "rule_type", Reason: "unknown rule type"}
	}
	if !validOperators[rule.Operator] {
		return &ValidationError{Field: "threshold_operator", Reason: "unknown operator"}
	}
	if rule.Threshold < 0 {
		return &ValidationError{Field: "threshold_value", Reason: "must be >= 0"}
	}
	if !validPriorities[rule.Priority] {
		return &ValidationError{Field: "priority", Reason: "unknown priority"}
	}
	for _, ch := range rule.Channels {
		if !validChannels[ch] {
			return &ValidationError{Field: "notification_channels", Reason: "unknown channel " + string(ch)}
		}
	}
	if rule.IsActive {
		if len(rule.Channels) == 0 {
			return &ValidationError{Field: "notification_channels", Reason: "active rule needs at least one channel"}
		}
		for _, ch := range rule.Channels {
			if ch == models.ChannelDashboard {
				continue
			}
			if len(rule.Recipients[ch]) == 0 {
				return &ValidationError{Field: "recipients", Reason: "channel " + string(ch) + " has no recipients"}
			}
		}
	}
	return nil
}

func (e *Engine) createRule(tenantID string, input *models.ThresholdRule) (*models.ThresholdRule, error) {
	logger := common.GetLoggerWith(
		common.LoggerNameAlertingCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryRule),
	)

	rule := models.ThresholdRule{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		Name:        input.Name,
		Description: input.Description,
		RuleType:    input.RuleType,
		Operator:    input.Operator,
		Threshold:   input.Threshold,
		Priority:    input.Priority,
		Channels:    input.Channels,
		Recipients:  input.Recipients,
		IsActive:    input.IsActive,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if err := validateRule(&rule); err != nil {
		return nil, err
	}

	if err := e.Db.Conn.Create(&rule).Error; err != nil {
		return nil, err
	}

	logger.Info("Rule created", zap.Reflect("rule", rule))
	return &rule, nil
}

func (e *Engine) getRule(tenantID, id string) (*models.ThresholdRule, error) {
	var rule models.ThresholdRule
	err := e.Db.Conn.First(&rule, "id = ? AND tenant_id = ?", id, tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Entity: "rule", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (e *Engine) updateRule(tenantID, id string, patch *RulePatch) (*models.ThresholdRule, error) {
	logger := common.GetLoggerWith(
		common.LoggerNameAlertingCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryRule),
	)

	rule, err := e.getRule(tenantID, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		rule.Name = *patch.Name
	}
	if patch.Description != nil {
		rule.Description = *patch.Description
	}
	if patch.RuleType != nil {
		rule.RuleType = *patch.RuleType
	}
	if patch.Operator != nil {
		rule.Operator = *patch.Operator
	}
	if patch.Threshold != nil {
		rule.Threshold = *patch.Threshold
	}
	if patch.Priority != nil {
		rule.Priority = *patch.Priority
	}
	if patch.Channels != nil {
		rule.Channels = *patch.Channels
	}
	if patch.Recipients != nil {
		rule.Recipients = *patch.Recipients
	}
	if patch.IsActive != nil {
		rule.IsActive = *patch.IsActive
	}
	rule.UpdatedAt = time.Now()

	if err := validateRule(rule); err != nil {
		return nil, err
	}

	if err := e.Db.Conn.Save(rule).Error; err != nil {
		return nil, err
	}

	logger.Info("Rule updated", zap.Reflect("rule", rule))
	return rule, nil
}

// deleteRule removes the rule permanently. Alerts keep their snapshot of the
// rule parameters, so nothing is orphaned.
func (e *Engine) deleteRule(tenantID, id string) error {
	logger := common.GetLoggerWith(
		common.LoggerNameAlertingCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryRule),
	)

	result := e.Db.Conn.Where("id = ? AND tenant_id = ?", id, tenantID).Delete(&models.ThresholdRule{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &NotFoundError{Entity: "rule", ID: id}
	}

	logger.Info("Rule deleted", zap.String("rule_id", id))
	return nil
}

func (e *Engine) toggleRuleActive(tenantID, id string) (*models.ThresholdRule, error) {
	rule, err := e.getRule(tenantID, id)
	if err != nil {
		return nil, err
	}

	rule.IsActive = !rule.IsActive
	rule.UpdatedAt = time.Now()

	if rule.IsActive {
		if err := validateRule(rule); err != nil {
			return nil, err
		}
	}

	if err := e.Db.Conn.Save(rule).Error; err != nil {
		return nil, err
	}
	return rule, nil
}

func (e *Engine) listRules(tenantID string, filter RuleFilter) ([]models.ThresholdRule, error) {
	query := e.Db.Conn.Where("tenant_id = ?", tenantID)
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if filter.RuleType != "" {
		query = query.Where("rule_type = ?", filter.RuleType)
	}

	var rules []models.ThresholdRule
	err := query.Order("created_at asc").Find(&rules).Error
	return rules, err
}

type IRuleStoreImpl struct {
	engine *Engine
}

func (ir *IRuleStoreImpl) CreateRule(tenantID string, input *models.ThresholdRule) (*models.ThresholdRule, error) {
	return ir.engine.createRule(tenantID, input)
}

func (ir *IRuleStoreImpl) UpdateRule(tenantID, id string, patch *RulePatch) (*models.ThresholdRule, error) {
	return ir.engine.updateRule(tenantID, id, patch)
}

func (ir *IRuleStoreImpl) DeleteRule(tenantID, id string) error {
	return ir.engine.deleteRule(tenantID, id)
}

func (ir *IRuleStoreImpl) ToggleRuleActive(tenantID, id string) (*models.ThresholdRule, error) {
	return ir.engine.toggleRuleActive(tenantID, id)
}

func (ir *IRuleStoreImpl) GetRule(tenantID, id string) (*models.ThresholdRule, error) {
	return ir.engine.getRule(tenantID, id)
}

func (ir *IRuleStoreImpl) ListRules(tenantID string, filter RuleFilter) ([]models.ThresholdRule, error) {
	return ir.engine.listRules(tenantID, filter)
}

func (e *Engine) GetIRuleStore() IRuleStore {
	return &IRuleStoreImpl{engine: e}
}
