package alerting

import (
	"context"

	"pharmacy-stock-alerts/pkg/db"
	"pharmacy-stock-alerts/pkg/models"
	"pharmacy-stock-alerts/pkg/notify"
)

type IRuleStore interface {
	CreateRule(tenantID string, input *models.ThresholdRule) (*models.ThresholdRule, error)
	UpdateRule(tenantID string, id string, patch *RulePatch) (*models.ThresholdRule, error)
	DeleteRule(tenantID string, id string) error
	ToggleRuleActive(tenantID string, id string) (*models.ThresholdRule, error)
	GetRule(tenantID string, id string) (*models.ThresholdRule, error)
	ListRules(tenantID string, filter RuleFilter) ([]models.ThresholdRule, error)
}

type IEvaluator interface {
	Evaluate(ctx context.Context, tenantID string) (*EvaluationReport, error)
}

type ILifecycle interface {
	MarkTreated(tenantID string, alertID string, actorID string, notes string) (*models.Alert, error)
	MarkIgnored(tenantID string, alertID string, notes string) (*models.Alert, error)
}

type IDispatcher interface {
	Dispatch(ctx context.Context, alert *models.Alert, rule *models.ThresholdRule) []DispatchResult
}

type IQuery interface {
	QueryAlerts(tenantID string, filter QueryFilter) (*QueryResult, error)
	ExportCSV(tenantID string, filter QueryFilter) ([]byte, error)
}

type ISettings interface {
	GetSettings(tenantID string) (*models.GlobalAlertSettings, error)
	UpsertSettings(tenantID string, input *models.GlobalAlertSettings) (*models.GlobalAlertSettings, error)
	GetChannelConfig(tenantID string, channel models.Channel) (*models.NotificationChannelConfig, error)
	UpsertChannelConfig(tenantID string, input *models.NotificationChannelConfig) (*models.NotificationChannelConfig, error)
	ListChannelConfigs(tenantID string) ([]models.NotificationChannelConfig, error)
}

type IInventory interface {
	UpsertProduct(tenantID string, input *models.Product) error
	ListProducts(tenantID string) ([]models.Product, error)
}

// Engine wires the alerting services over one shared database handle, the
// provider registry and the per-tenant evaluation locks.
type Engine struct {
	Db        db.DB
	Providers notify.Registry

	Rules      IRuleStore
	Evaluator  IEvaluator
	Lifecycle  ILifecycle
	Dispatcher IDispatcher
	Query      IQuery
	Settings   ISettings
	Inventory  IInventory

	locks           *TenantLockStore
	dispatchLimiter *DispatchLimiterStore
}

type ServiceOpts struct {
	Rules      IRuleStore
	Evaluator  IEvaluator
	Lifecycle  ILifecycle
	Dispatcher IDispatcher
	Query      IQuery
	Settings   ISettings
	Inventory  IInventory
}

func NewEngine(dbInstance db.DB, providers notify.Registry) *Engine {
	return &Engine{
		Db:              dbInstance,
		Providers:       providers,
		locks:           NewTenantLockStore(),
		dispatchLimiter: NewDispatchLimiterStore(),
	}
}

func (e *Engine) WithServices(opts ServiceOpts) *Engine {
	if opts.Rules != nil {
		e.Rules = opts.Rules
	}
	if opts.Evaluator != nil {
		e.Evaluator = opts.Evaluator
	}
	if opts.Lifecycle != nil {
		e.Lifecycle = opts.Lifecycle
	}
	if opts.Dispatcher != nil {
		e.Dispatcher = opts.Dispatcher
	}
	if opts.Query != nil {
		e.Query = opts.Query
	}
	if opts.Settings != nil {
		e.Settings = opts.Settings
	}
	if opts.Inventory != nil {
		e.Inventory = opts.Inventory
	}
	return e
}

// WithDefaultServices installs the real implementations for every service
// slot, mirroring the common construction in cmd/server and tests.
func (e *Engine) WithDefaultServices() *Engine {
	return e.WithServices(ServiceOpts{
		Rules:      e.GetIRuleStore(),
		Evaluator:  e.GetIEvaluator(),
		Lifecycle:  e.GetILifecycle(),
		Dispatcher: e.GetIDispatcher(),
		Query:      e.GetIQuery(),
		Settings:   e.GetISettings(),
		Inventory:  e.GetIInventory(),
	})
}
