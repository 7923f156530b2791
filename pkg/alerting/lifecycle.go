package alerting

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"pharmacy-stock-alerts/pkg/common"
	"pharmacy-stock-alerts/pkg/metrics"
	"pharmacy-stock-alerts/pkg/models"
)

func (e *Engine) getAlert(tenantID, alertID string) (*models.Alert, error) {
	var alert models.Alert
	err := e.Db.Conn.First(&alert, "id = ? AND tenant_id = ?", alertID, tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Entity: "alert", ID: alertID}
	}
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// resolve moves an active alert into a terminal state. Transitions out of
// treated/ignored do not exist; a recurring condition yields a fresh alert
// from the evaluator instead.
func (e *Engine) resolve(tenantID, alertID string, target models.AlertStatus, actorID, notes, op string) (*models.Alert, error) {
	logger := common.GetLoggerWith(
		common.LoggerNameAlertingCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryLifecycle),
	)

	alert, err := e.getAlert(tenantID, alertID)
	if err != nil {
		return nil, err
	}

	if alert.Status != models.AlertStatusActive {
		return nil, &StateError{AlertID: alertID, From: alert.Status, Op: op}
	}

	now := time.Now()
	alert.Status = target
	alert.ResolvedAt = &now
	alert.ResolvedBy = actorID
	alert.ResolutionNotes = notes

	if err := e.Db.Conn.Save(alert).Error; err != nil {
		return nil, err
	}

	metrics.AlertsResolved.WithLabelValues(string(target)).Inc()
	logger.Info("Alert resolved",
		zap.String("alert_id", alertID),
		zap.String("status", string(target)),
		zap.String("resolved_by", actorID))

	return alert, nil
}

func (e *Engine) markTreated(tenantID, alertID, actorID, notes string) (*models.Alert, error) {
	if actorID == "" {
		return nil, &ValidationError{Field: "actor_id", Reason: "must not be empty"}
	}
	return e.resolve(tenantID, alertID, models.AlertStatusTreated, actorID, notes, "treat")
}

func (e *Engine) markIgnored(tenantID, alertID, notes string) (*models.Alert, error) {
	return e.resolve(tenantID, alertID, models.AlertStatusIgnored, "", notes, "ignore")
}

type ILifecycleImpl struct {
	engine *Engine
}

func (il *ILifecycleImpl) MarkTreated(tenantID, alertID, actorID, notes string) (*models.Alert, error) {
	return il.engine.markTreated(tenantID, alertID, actorID, notes)
}

func (il *ILifecycleImpl) MarkIgnored(tenantID, alertID, notes string) (*models.Alert, error) {
	return il.engine.markIgnored(tenantID, alertID, notes)
}

func (e *Engine) GetILifecycle() ILifecycle {
	return &ILifecycleImpl{engine: e}
}
