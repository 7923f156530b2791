package alerting

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmacy-stock-alerts/pkg/common"
	"pharmacy-stock-alerts/pkg/models"
	_ "pharmacy-stock-alerts/pkg/testing"
)

func seedInventory(t *testing.T, engine *Engine, tenantID string) {
	t.Helper()
	products := []models.Product{
		{Code: "P001", Name: "Amoxicillin", Category: "antibiotics", CurrentQuantity: 0, CriticalThreshold: 5, LowThreshold: 10, UnitPrice: 4},
		{Code: "P002", Name: "Paracetamol", Category: "analgesics", CurrentQuantity: 3, CriticalThreshold: 5, LowThreshold: 10, UnitPrice: 1.5},
		{Code: "P003", Name: "Ibuprofen", Category: "analgesics", CurrentQuantity: 8, CriticalThreshold: 5, LowThreshold: 10, UnitPrice: 2},
		{Code: "P004", Name: "Vitamin C", Category: "supplements", CurrentQuantity: 50, CriticalThreshold: 5, LowThreshold: 10, UnitPrice: 0.8},
		{Code: "P005", Name: "Aspirin", Category: "analgesics", CurrentQuantity: 9, CriticalThreshold: 5, LowThreshold: 10, UnitPrice: 1.2},
	}
	for i := range products {
		require.NoError(t, engine.Inventory.UpsertProduct(tenantID, &products[i]))
	}
}

func TestQueryMetricsAndPagination(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl, engine, _, _, _ := GetMockEngineWithMemorySqliteDialector(t, false, false, false)
	defer ctrl.Finish()

	tenantID := uuid.NewString()
	seedInventory(t, engine, tenantID)

	page1, err := engine.Query.QueryAlerts(tenantID, QueryFilter{Page: 1, Limit: 2})
	require.NoError(t, err)

	assert.Equal(t, 5, page1.TotalCount)
	assert.Equal(t, 3, page1.TotalPages)
	assert.Len(t, page1.Items, 2)

	// metrics cover the full filtered set, not the page
	assert.Equal(t, 1, page1.Metrics.RuptureItems)
	assert.Equal(t, 1, page1.Metrics.CriticalItems)
	assert.Equal(t, 2, page1.Metrics.LowItems)

	// totalCount equals the unpaginated list length for the same filter
	all, err := engine.Query.QueryAlerts(tenantID, QueryFilter{Page: 1, Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, page1.TotalCount, len(all.Items))

	lastPage, err := engine.Query.QueryAlerts(tenantID, QueryFilter{Page: 3, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, lastPage.Items, 1)

	beyond, err := engine.Query.QueryAlerts(tenantID, QueryFilter{Page: 9, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, beyond.Items, 0)
	assert.Equal(t, 5, beyond.TotalCount)
}

func TestQueryFilters(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl, engine, _, _, _ := GetMockEngineWithMemorySqliteDialector(t, false, false, false)
	defer ctrl.Finish()

	tenantID := uuid.NewString()
	seedInventory(t, engine, tenantID)

	byCategory, err := engine.Query.QueryAlerts(tenantID, QueryFilter{Category: "analgesics", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, byCategory.TotalCount)

	bySearch, err := engine.Query.QueryAlerts(tenantID, QueryFilter{Search: "Amox", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, bySearch.TotalCount)
	assert.Equal(t, "P001", bySearch.Items[0].Code)
	assert.Equal(t, models.StockStatusRupture, bySearch.Items[0].Status)

	byStatus, err := engine.Query.QueryAlerts(tenantID, QueryFilter{Status: models.StockStatusLow, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, byStatus.TotalCount)
	// status filter restricts metrics the same way
	assert.Equal(t, 0, byStatus.Metrics.RuptureItems)
	assert.Equal(t, 2, byStatus.Metrics.LowItems)
}

func TestQueryIncludesActiveAlerts(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl, engine, _, _, _ := GetMockEngineWithMemorySqliteDialector(t, false, false, false)
	defer ctrl.Finish()

	tenantID := uuid.NewString()
	seedInventory(t, engine, tenantID)
	seedRule(t, engine, tenantID, models.RuleTypeStockout, models.OperatorEq, 0, models.PriorityCritical)

	_, err := engine.Evaluator.Evaluate(context.Background(), tenantID)
	require.NoError(t, err)

	result, err := engine.Query.QueryAlerts(tenantID, QueryFilter{Search: "P001", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, result.TotalCount)
	require.Len(t, result.Items[0].ActiveAlerts, 1)
	assert.Equal(t, models.RuleTypeStockout, result.Items[0].ActiveAlerts[0].RuleType)
}

func TestExportCSV(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl, engine, _, _, _ := GetMockEngineWithMemorySqliteDialector(t, false, false, false)
	defer ctrl.Finish()

	tenantID := uuid.NewString()
	seedInventory(t, engine, tenantID)

	data, err := engine.Query.ExportCSV(tenantID, QueryFilter{Category: "analgesics"})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 4, "header plus one row per filtered product")

	assert.Equal(t, "code,name,status,current_stock,critical_threshold,low_threshold,value", lines[0])
	assert.Equal(t, "P002,Paracetamol,critical,3.00,5.00,10.00,4.50", lines[1])
}

func TestExportCSVEmptyFilteredSet(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl, engine, _, _, _ := GetMockEngineWithMemorySqliteDialector(t, false, false, false)
	defer ctrl.Finish()

	tenantID := uuid.NewString()

	data, err := engine.Query.ExportCSV(tenantID, QueryFilter{})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 1, "header only")
	assert.Equal(t, "code,name,status,current_stock,critical_threshold,low_threshold,value", lines[0])
}
