package alerting

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"pharmacy-stock-alerts/pkg/common"
	"pharmacy-stock-alerts/pkg/models"
)

// Scheduler drives periodic evaluation for every tenant with saved settings.
// Each tick is a bounded unit of work; overlap protection comes from the
// evaluator's per-tenant lock, so a slow run makes the next tick skip, not
// queue.
type Scheduler struct {
	Engine       *Engine
	TickInterval time.Duration
	RunTimeout   time.Duration

	lastRun map[string]time.Time
}

func NewScheduler(engine *Engine) *Scheduler {
	return &Scheduler{
		Engine:       engine,
		TickInterval: time.Minute,
		RunTimeout:   2 * time.Minute,
		lastRun:      make(map[string]time.Time),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	logger := common.GetLoggerWith(common.LoggerNameScheduler)

	ticker := time.NewTicker(s.TickInterval)
	defer ticker.Stop()

	logger.Info("Scheduler started", zap.Duration("tick", s.TickInterval))

	for {
		select {
		case <-ctx.Done():
			logger.Info("Scheduler stopped")
			return
		case now := <-ticker.C:
			s.runDueTenants(ctx, now)
		}
	}
}

func (s *Scheduler) runDueTenants(ctx context.Context, now time.Time) {
	logger := common.GetLoggerWith(common.LoggerNameScheduler)

	var allSettings []models.GlobalAlertSettings
	if err := s.Engine.Db.Conn.Where("system_enabled = ?", true).Find(&allSettings).Error; err != nil {
		logger.Error("Failed to list tenant settings", zap.Error(err))
		return
	}

	for _, settings := range allSettings {
		frequency := time.Duration(settings.CheckFrequencyMinutes) * time.Minute
		if last, seen := s.lastRun[settings.TenantID]; seen && now.Sub(last) < frequency {
			continue
		}
		s.lastRun[settings.TenantID] = now
		s.RunOnce(ctx, settings.TenantID)
	}
}

// RunOnce evaluates one tenant and fans out notifications for every alert the
// run created. Lock contention is an expected skip, not an error.
func (s *Scheduler) RunOnce(ctx context.Context, tenantID string) {
	logger := common.GetLoggerWith(common.LoggerNameScheduler, zap.String("tenant_id", tenantID))

	runCtx, cancel := context.WithTimeout(ctx, s.RunTimeout)
	defer cancel()

	report, err := s.Engine.Evaluator.Evaluate(runCtx, tenantID)
	if err != nil {
		var contention *LockContentionError
		if errors.As(err, &contention) {
			logger.Info("Tick skipped, evaluation in flight")
			return
		}
		logger.Error("Evaluation failed", zap.Error(err))
		return
	}

	for i := range report.Created {
		alert := &report.Created[i]
		rule, err := s.Engine.Rules.GetRule(tenantID, alert.RuleID)
		if err != nil {
			// rule deleted mid-run; the alert snapshot stands on its own
			logger.Warn("Rule gone before dispatch", zap.String("rule_id", alert.RuleID))
			continue
		}

		results := s.Engine.Dispatcher.Dispatch(runCtx, alert, rule)
		for _, r := range results {
			if !r.Succeeded() {
				logger.Info("Dispatch result",
					zap.String("alert_id", alert.ID),
					zap.String("channel", string(r.Channel)),
					zap.String("status", string(r.Status)),
					zap.String("reason", r.Reason))
			}
		}
	}
}
