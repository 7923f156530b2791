package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "pharmacy-stock-alerts/pkg/testing"

	"pharmacy-stock-alerts/pkg/alerting"
	"pharmacy-stock-alerts/pkg/common"
	"pharmacy-stock-alerts/pkg/db"
	"pharmacy-stock-alerts/pkg/models"
	"pharmacy-stock-alerts/pkg/notify"
)

func setupTestServer() *RestfulServer {
	engine := alerting.
		NewEngine(*db.GetInstance(db.UseMemorySqliteDialector()), notify.Registry{}).
		WithDefaultServices()

	rs := &RestfulServer{
		Server: gin.Default(),
		Engine: engine,
		// default we use no limiter, if need, later assign it rs.RateLimiterStore = alerting.NewRateLimiterStore(...)
	}

	rs.Setup()

	return rs
}

func doJSON(rs *RestfulServer, method, path string, payload any) *httptest.ResponseRecorder {
	var body *bytes.Reader
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	rs.Server.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	rs := setupTestServer()

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()

	rs.Server.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRuleCRUD(t *testing.T) {
	common.SetTestLoggerNop()

	rs := setupTestServer()

	tenantID := uuid.NewString()
	base := "/tenants/" + tenantID

	ruleReq := RuleRequest{
		Name:      "low stock watch",
		RuleType:  models.RuleTypeStockLow,
		Operator:  models.OperatorLte,
		Threshold: 10,
		Priority:  models.PriorityMedium,
		Channels:  []models.Channel{models.ChannelDashboard},
		IsActive:  true,
	}

	w := doJSON(rs, "POST", base+"/rules", ruleReq)
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.ThresholdRule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, tenantID, created.TenantID)

	// update threshold through PUT
	ruleReq.Threshold = 12
	w = doJSON(rs, "PUT", base+"/rules/"+created.ID, ruleReq)
	require.Equal(t, http.StatusOK, w.Code)

	var updated models.ThresholdRule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, 12.0, updated.Threshold)

	// toggle flips active off
	w = doJSON(rs, "POST", base+"/rules/"+created.ID+"/toggle", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var toggled models.ThresholdRule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &toggled))
	assert.False(t, toggled.IsActive)

	w = doJSON(rs, "GET", base+"/rules", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var rules []models.ThresholdRule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rules))
	assert.Len(t, rules, 1)

	w = doJSON(rs, "DELETE", base+"/rules/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(rs, "DELETE", base+"/rules/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRuleCRUD_EdgeCases(t *testing.T) {
	common.SetTestLoggerNop()

	{
		rs := setupTestServer()
		tenantID := uuid.NewString()
		// unknown rule type should be rejected
		w := doJSON(rs, "POST", "/tenants/"+tenantID+"/rules", RuleRequest{
			Name:      "bad",
			RuleType:  "temperature",
			Operator:  models.OperatorLt,
			Threshold: 1,
			Priority:  models.PriorityLow,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}

	{
		rs := setupTestServer()
		tenantID := uuid.NewString()
		w := doJSON(rs, "PUT", "/tenants/"+tenantID+"/rules/"+uuid.NewString(), RuleRequest{
			Name:      "ghost",
			RuleType:  models.RuleTypeStockLow,
			Operator:  models.OperatorLt,
			Threshold: 1,
			Priority:  models.PriorityLow,
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	}
}

func TestEvaluateAndGetAlerts(t *testing.T) {
	common.SetTestLoggerNop()

	rs := setupTestServer()

	tenantID := uuid.NewString()
	base := "/tenants/" + tenantID

	w := doJSON(rs, "POST", base+"/rules", RuleRequest{
		Name:      "low stock watch",
		RuleType:  models.RuleTypeStockLow,
		Operator:  models.OperatorLte,
		Threshold: 10,
		Priority:  models.PriorityMedium,
		Channels:  []models.Channel{models.ChannelDashboard},
		IsActive:  true,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(rs, "POST", base+"/products", ProductRequest{
		Code:              "P001",
		Name:              "Amoxicillin",
		Category:          "antibiotics",
		CurrentQuantity:   6,
		CriticalThreshold: 5,
		LowThreshold:      10,
		UnitPrice:         2.5,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(rs, "POST", base+"/alerts/evaluate", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var evalResp EvaluateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &evalResp))
	require.Len(t, evalResp.Report.Created, 1)

	alert := evalResp.Report.Created[0]
	assert.Equal(t, "P001", alert.ProductCode)
	assert.Equal(t, models.AlertStatusActive, alert.Status)

	// the dashboard channel always reports sent
	results := evalResp.Dispatched[alert.ID]
	require.Len(t, results, 1)
	assert.Equal(t, alerting.DispatchSent, results[0].Status)

	w = doJSON(rs, "GET", base+"/alerts", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var result alerting.QueryResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.Len(t, result.Items, 1)
	assert.Equal(t, "P001", result.Items[0].Code)
	assert.Len(t, result.Items[0].ActiveAlerts, 1)
}

func TestTreatAndIgnoreAlert(t *testing.T) {
	common.SetTestLoggerNop()

	rs := setupTestServer()

	tenantID := uuid.NewString()
	base := "/tenants/" + tenantID

	w := doJSON(rs, "POST", base+"/rules", RuleRequest{
		Name:      "stockout watch",
		RuleType:  models.RuleTypeStockout,
		Operator:  models.OperatorLte,
		Threshold: 0,
		Priority:  models.PriorityCritical,
		Channels:  []models.Channel{models.ChannelDashboard},
		IsActive:  true,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(rs, "POST", base+"/products", ProductRequest{
		Code:              "P002",
		Name:              "Paracetamol",
		CurrentQuantity:   0,
		CriticalThreshold: 5,
		LowThreshold:      10,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(rs, "POST", base+"/alerts/evaluate", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var evalResp EvaluateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &evalResp))
	require.Len(t, evalResp.Report.Created, 1)
	alertID := evalResp.Report.Created[0].ID

	// missing actor_id is rejected before touching the alert
	w = doJSON(rs, "POST", base+"/alerts/"+alertID+"/treat", map[string]string{"notes": "no actor"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(rs, "POST", base+"/alerts/"+alertID+"/treat", TreatRequest{ActorID: "pharmacist-1", Notes: "reordered"})
	require.Equal(t, http.StatusOK, w.Code)

	var treated models.Alert
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &treated))
	assert.Equal(t, models.AlertStatusTreated, treated.Status)
	assert.Equal(t, "pharmacist-1", treated.ResolvedBy)

	// resolving again conflicts
	w = doJSON(rs, "POST", base+"/alerts/"+alertID+"/ignore", IgnoreRequest{Notes: "too late"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// unknown alert id
	w = doJSON(rs, "POST", base+"/alerts/"+uuid.NewString()+"/treat", TreatRequest{ActorID: "pharmacist-1"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportAlertsCSV(t *testing.T) {
	common.SetTestLoggerNop()

	rs := setupTestServer()

	tenantID := uuid.NewString()
	base := "/tenants/" + tenantID

	w := doJSON(rs, "POST", base+"/products", ProductRequest{
		Code:              "P003",
		Name:              "Ibuprofen",
		CurrentQuantity:   3,
		CriticalThreshold: 5,
		LowThreshold:      10,
		UnitPrice:         1.5,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(rs, "GET", base+"/alerts/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "stock_alerts.csv")

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "code,name,status,current_stock,critical_threshold,low_threshold,value", lines[0])
	assert.Equal(t, "P003,Ibuprofen,critical,3.00,5.00,10.00,4.50", lines[1])
}

func TestSettingsEndpoints(t *testing.T) {
	common.SetTestLoggerNop()

	rs := setupTestServer()

	tenantID := uuid.NewString()
	base := "/tenants/" + tenantID

	// first read returns the defaults
	w := doJSON(rs, "GET", base+"/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var settings models.GlobalAlertSettings
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &settings))
	assert.True(t, settings.SystemEnabled)
	assert.Equal(t, 60, settings.CheckFrequencyMinutes)

	settings.CheckFrequencyMinutes = 15
	settings.MaxAlertsPerHour = 100
	w = doJSON(rs, "PUT", base+"/settings", settings)
	require.Equal(t, http.StatusOK, w.Code)

	var saved models.GlobalAlertSettings
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &saved))
	assert.Equal(t, 15, saved.CheckFrequencyMinutes)

	// zero frequency is rejected
	settings.CheckFrequencyMinutes = 0
	w = doJSON(rs, "PUT", base+"/settings", settings)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(rs, "PUT", base+"/channels/email", models.NotificationChannelConfig{
		Enabled:  true,
		SMTPHost: "smtp.example.com",
		SMTPPort: 587,
		SenderID: "alerts@example.com",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(rs, "GET", base+"/channels", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var configs []models.NotificationChannelConfig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &configs))
	require.Len(t, configs, 1)
	assert.Equal(t, models.ChannelEmail, configs[0].Channel)
}

func setupTestServerWithLimiter(limiter *alerting.RateLimiterStore) *RestfulServer {
	engine := alerting.
		NewEngine(*db.GetInstance(db.UseMemorySqliteDialector()), notify.Registry{}).
		WithDefaultServices()

	rs := &RestfulServer{
		Server:           gin.Default(),
		Engine:           engine,
		RateLimiterStore: limiter,
	}

	rs.Setup()

	return rs
}

func TestGetAlertsWithLimiter(t *testing.T) {
	common.SetTestLoggerNop()

	rs := setupTestServerWithLimiter(alerting.NewRateLimiterStore(2, 2))

	tenantID := uuid.NewString()
	base := "/tenants/" + tenantID

	// 3 requests in quick succession — only 2 should be allowed
	for i := range 3 {
		w := doJSON(rs, "GET", base+"/alerts", nil)
		if i < 2 {
			require.Equal(t, http.StatusOK, w.Code, "request %d should be allowed", i+1)
		} else {
			require.Equal(t, http.StatusTooManyRequests, w.Code, "request %d should be rate limited", i+1)
		}
	}

	// POST /limiter bypasses the limiter check and resets the bucket
	w := doJSON(rs, "POST", base+"/limiter", LimiterRequest{Rate: 2, Burst: 2})
	require.Equal(t, http.StatusOK, w.Code, "limiter request should be allowed")

	w = doJSON(rs, "GET", base+"/alerts", nil)
	require.Equal(t, http.StatusOK, w.Code, "request after reset should be allowed")
}

func TestLimiter(t *testing.T) {
	common.SetTestLoggerNop()

	rs := setupTestServerWithLimiter(alerting.NewRateLimiterStore(0, 0))

	tenantID := uuid.NewString()
	base := "/tenants/" + tenantID

	// nothing should pass below
	{
		w := doJSON(rs, "GET", base+"/alerts", nil)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	}

	{
		w := doJSON(rs, "POST", base+"/alerts/evaluate", nil)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	}

	{
		w := doJSON(rs, "POST", base+"/rules", RuleRequest{Name: "blocked"})
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	}
}

func TestPostLimiter_EdgeCases(t *testing.T) {
	common.SetTestLoggerNop()

	{
		rs := setupTestServerWithLimiter(alerting.NewRateLimiterStore(2, 2))
		tenantID := uuid.NewString()
		// empty payload should be rejected
		w := doJSON(rs, "POST", "/tenants/"+tenantID+"/limiter", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}

	{
		rs := setupTestServer() // default without limiter store
		tenantID := uuid.NewString()

		// without limiter store setting the limiter is accepted but has no effect
		w := doJSON(rs, "POST", "/tenants/"+tenantID+"/limiter", LimiterRequest{Rate: 2, Burst: 2})
		require.Equal(t, http.StatusOK, w.Code, "limiter request should be allowed")

		w = doJSON(rs, "GET", "/tenants/"+tenantID+"/alerts", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
