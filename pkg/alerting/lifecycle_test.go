package alerting

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmacy-stock-alerts/pkg/common"
	"pharmacy-stock-alerts/pkg/models"
	_ "pharmacy-stock-alerts/pkg/testing"
)

func seedActiveAlert(t *testing.T, engine *Engine, tenantID string) *models.Alert {
	t.Helper()
	seedRule(t, engine, tenantID, models.RuleTypeStockLow, models.OperatorLt, 10, models.PriorityMedium)
	seedProduct(t, engine, tenantID, "ALERTPROD", 3)

	report, err := engine.Evaluator.Evaluate(context.Background(), tenantID)
	require.NoError(t, err)
	require.Len(t, report.Created, 1)
	return &report.Created[0]
}

func TestMarkTreated(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl, engine, _, _, _ := GetMockEngineWithMemorySqliteDialector(t, false, false, false)
	defer ctrl.Finish()

	tenantID := uuid.NewString()
	alert := seedActiveAlert(t, engine, tenantID)

	treated, err := engine.Lifecycle.MarkTreated(tenantID, alert.ID, "user-42", "reordered 100 units")
	require.NoError(t, err)

	assert.Equal(t, models.AlertStatusTreated, treated.Status)
	assert.Equal(t, "user-42", treated.ResolvedBy)
	assert.Equal(t, "reordered 100 units", treated.ResolutionNotes)
	assert.NotNil(t, treated.ResolvedAt)
}

func TestMarkTreatedTwiceFailsWithStateError(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl, engine, _, _, _ := GetMockEngineWithMemorySqliteDialector(t, false, false, false)
	defer ctrl.Finish()

	tenantID := uuid.NewString()
	alert := seedActiveAlert(t, engine, tenantID)

	_, err := engine.Lifecycle.MarkTreated(tenantID, alert.ID, "user-42", "done")
	require.NoError(t, err)

	_, err = engine.Lifecycle.MarkTreated(tenantID, alert.ID, "user-43", "again")
	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, models.AlertStatusTreated, stateErr.From)
}

func TestMarkIgnored(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl, engine, _, _, _ := GetMockEngineWithMemorySqliteDialector(t, false, false, false)
	defer ctrl.Finish()

	tenantID := uuid.NewString()
	alert := seedActiveAlert(t, engine, tenantID)

	ignored, err := engine.Lifecycle.MarkIgnored(tenantID, alert.ID, "insufficient demand")
	require.NoError(t, err)

	assert.Equal(t, models.AlertStatusIgnored, ignored.Status)
	assert.Equal(t, "insufficient demand", ignored.ResolutionNotes)
	assert.NotNil(t, ignored.ResolvedAt)

	// ignore is terminal too
	_, err = engine.Lifecycle.MarkTreated(tenantID, alert.ID, "user-1", "late treat")
	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
}

func TestMarkTreatedUnknownAlert(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl, engine, _, _, _ := GetMockEngineWithMemorySqliteDialector(t, false, false, false)
	defer ctrl.Finish()

	_, err := engine.Lifecycle.MarkTreated(uuid.NewString(), uuid.NewString(), "user-1", "")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestMarkTreatedRequiresActor(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl, engine, _, _, _ := GetMockEngineWithMemorySqliteDialector(t, false, false, false)
	defer ctrl.Finish()

	tenantID := uuid.NewString()
	alert := seedActiveAlert(t, engine, tenantID)

	_, err := engine.Lifecycle.MarkTreated(tenantID, alert.ID, "", "no actor")
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestAlertInvisibleToOtherTenant(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl, engine, _, _, _ := GetMockEngineWithMemorySqliteDialector(t, false, false, false)
	defer ctrl.Finish()

	tenantID := uuid.NewString()
	alert := seedActiveAlert(t, engine, tenantID)

	_, err := engine.Lifecycle.MarkTreated(uuid.NewString(), alert.ID, "intruder", "")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
}
