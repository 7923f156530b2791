package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"pharmacy-stock-alerts/pkg/alerting"
	"pharmacy-stock-alerts/pkg/models"

	"github.com/gin-gonic/gin"

	z "github.com/Oudwins/zog"
	"github.com/Oudwins/zog/zhttp"
)

// respondError maps the alerting error taxonomy onto HTTP statuses. A skipped
// evaluation tick is not an error condition for the caller.
func respondError(c *gin.Context, err error) {
	var validationErr *alerting.ValidationError
	var notFoundErr *alerting.NotFoundError
	var stateErr *alerting.StateError
	var contentionErr *alerting.LockContentionError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &stateErr):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &contentionErr):
		c.JSON(http.StatusAccepted, gin.H{"skipped": true, "reason": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

type EvaluateResponse struct {
	Report     *alerting.EvaluationReport           `json:"report"`
	Dispatched map[string][]alerting.DispatchResult `json:"dispatched"`
}

func (rs *RestfulServer) PostEvaluate(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	if !rs.CheckTenantLimiter(tenantID) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	runCtx, cancelRun := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancelRun()

	report, err := rs.Engine.Evaluator.Evaluate(runCtx, tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	dispatched := make(map[string][]alerting.DispatchResult)
	for i := range report.Created {
		alert := &report.Created[i]
		rule, err := rs.Engine.Rules.GetRule(tenantID, alert.RuleID)
		if err != nil {
			continue
		}
		dispatched[alert.ID] = rs.Engine.Dispatcher.Dispatch(runCtx, alert, rule)
	}

	c.JSON(http.StatusOK, EvaluateResponse{Report: report, Dispatched: dispatched})
}

func (rs *RestfulServer) GetAlerts(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	if !rs.CheckTenantLimiter(tenantID) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	filter := queryFilterFromParams(c)

	result, err := rs.Engine.Query.QueryAlerts(tenantID, filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (rs *RestfulServer) GetAlertsExport(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	if !rs.CheckTenantLimiter(tenantID) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	filter := queryFilterFromParams(c)

	data, err := rs.Engine.Query.ExportCSV(tenantID, filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="stock_alerts.csv"`)
	c.Data(http.StatusOK, "text/csv", data)
}

type TreatRequest struct {
	ActorID string `json:"actor_id"`
	Notes   string `json:"notes"`
}

var treatRequestSchema = z.Struct(z.Shape{
	"ActorID": z.String().Required(),
	"Notes":   z.String(),
})

func (rs *RestfulServer) PostTreatAlert(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	alertID := c.Param("alert_id")

	if !rs.CheckTenantLimiter(tenantID) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	var req TreatRequest
	if err := treatRequestSchema.Parse(zhttp.Request(c.Request), &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err})
		return
	}

	alert, err := rs.Engine.Lifecycle.MarkTreated(tenantID, alertID, req.ActorID, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, alert)
}

type IgnoreRequest struct {
	Notes string `json:"notes"`
}

var ignoreRequestSchema = z.Struct(z.Shape{
	"Notes": z.String(),
})

func (rs *RestfulServer) PostIgnoreAlert(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	alertID := c.Param("alert_id")

	if !rs.CheckTenantLimiter(tenantID) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	var req IgnoreRequest
	if err := ignoreRequestSchema.Parse(zhttp.Request(c.Request), &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err})
		return
	}

	alert, err := rs.Engine.Lifecycle.MarkIgnored(tenantID, alertID, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, alert)
}

// RuleRequest carries nested channel/recipient shapes, so it binds through
// gin and relies on the rule store's own validation.
type RuleRequest struct {
	Name        string                      `json:"name"`
	Description string                      `json:"description"`
	RuleType    models.RuleType             `json:"rule_type"`
	Operator    models.ThresholdOperator    `json:"threshold_operator"`
	Threshold   float64                     `json:"threshold_value"`
	Priority    models.Priority             `json:"priority"`
	Channels    []models.Channel            `json:"notification_channels"`
	Recipients  map[models.Channel][]string `json:"recipients"`
	IsActive    bool                        `json:"is_active"`
}

func (rs *RestfulServer) PostRule(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	if !rs.CheckTenantLimiter(tenantID) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule, err := rs.Engine.Rules.CreateRule(tenantID, &models.ThresholdRule{
		Name:        req.Name,
		Description: req.Description,
		RuleType:    req.RuleType,
		Operator:    req.Operator,
		Threshold:   req.Threshold,
		Priority:    req.Priority,
		Channels:    req.Channels,
		Recipients:  req.Recipients,
		IsActive:    req.IsActive,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, rule)
}

func (rs *RestfulServer) PutRule(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	ruleID := c.Param("rule_id")

	if !rs.CheckTenantLimiter(tenantID) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	patch := &alerting.RulePatch{
		Name:        &req.Name,
		Description: &req.Description,
		RuleType:    &req.RuleType,
		Operator:    &req.Operator,
		Threshold:   &req.Threshold,
		Priority:    &req.Priority,
		Channels:    &req.Channels,
		Recipients:  &req.Recipients,
		IsActive:    &req.IsActive,
	}

	rule, err := rs.Engine.Rules.UpdateRule(tenantID, ruleID, patch)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rule)
}

func (rs *RestfulServer) DeleteRule(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	ruleID := c.Param("rule_id")

	if !rs.CheckTenantLimiter(tenantID) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	if err := rs.Engine.Rules.DeleteRule(tenantID, ruleID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (rs *RestfulServer) PostToggleRule(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	ruleID := c.Param("rule_id")

	if !rs.CheckTenantLimiter(tenantID) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	rule, err := rs.Engine.Rules.ToggleRuleActive(tenantID, ruleID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rule)
}

func (rs *RestfulServer) GetRules(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	if !rs.CheckTenantLimiter(tenantID) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	filter := alerting.RuleFilter{
		ActiveOnly: c.Query("active") == "true",
		RuleType:   models.RuleType(c.Query("rule_type")),
	}

	rules, err := rs.Engine.Rules.ListRules(tenantID, filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rules)
}

func (rs *RestfulServer) GetSettings(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	if !rs.CheckTenantLimiter(tenantID) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	settings, err := rs.Engine.Settings.GetSettings(tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, settings)
}

func (rs *RestfulServer) PutSettings(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	if !rs.CheckTenantLimiter(tenantID) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	var req models.GlobalAlertSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings, err := rs.Engine.Settings.UpsertSettings(tenantID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, settings)
}

func (rs *RestfulServer) GetChannels(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	if !rs.CheckTenantLimiter(tenantID) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	configs, err := rs.Engine.Settings.ListChannelConfigs(tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, configs)
}

func (rs *RestfulServer) PutChannel(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	channel := models.Channel(c.Param("channel"))

	if !rs.CheckTenantLimiter(tenantID) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	var req models.NotificationChannelConfig
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Channel = channel

	config, err := rs.Engine.Settings.UpsertChannelConfig(tenantID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, config)
}

type ProductRequest struct {
	Code              string    `json:"code"`
	Name              string    `json:"name"`
	Category          string    `json:"category"`
	CurrentQuantity   float64   `json:"current_quantity"`
	CriticalThreshold float64   `json:"critical_threshold"`
	LowThreshold      float64   `json:"low_threshold"`
	UnitPrice         float64   `json:"unit_price"`
	ExpiryDate        time.Time `json:"expiry_date"`
}

var productRequestSchema = z.Struct(z.Shape{
	"Code":              z.String().Required(),
	"Name":              z.String().Required(),
	"Category":          z.String(),
	"CurrentQuantity":   z.Float64().Required(),
	"CriticalThreshold": z.Float64().Required(),
	"LowThreshold":      z.Float64().Required(),
	"UnitPrice":         z.Float64(),
	"ExpiryDate":        z.Time(),
})

func (rs *RestfulServer) PostProduct(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	if !rs.CheckTenantLimiter(tenantID) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	var req ProductRequest
	if err := productRequestSchema.Parse(zhttp.Request(c.Request), &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err})
		return
	}

	product := models.Product{
		Code:              req.Code,
		Name:              req.Name,
		Category:          req.Category,
		CurrentQuantity:   req.CurrentQuantity,
		CriticalThreshold: req.CriticalThreshold,
		LowThreshold:      req.LowThreshold,
		UnitPrice:         req.UnitPrice,
	}
	if !req.ExpiryDate.IsZero() {
		product.ExpiryDate = &req.ExpiryDate
	}

	if err := rs.Engine.Inventory.UpsertProduct(tenantID, &product); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusOK)
}

func (rs *RestfulServer) GetProducts(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	if !rs.CheckTenantLimiter(tenantID) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	products, err := rs.Engine.Inventory.ListProducts(tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, products)
}

type LimiterRequest struct {
	Rate  float64 `json:"rate"`
	Burst int     `json:"burst"`
}

var limiterRequestSchema = z.Struct(z.Shape{
	"rate":  z.Float64().Required(),
	"burst": z.Int().Required(),
})

func (rs *RestfulServer) PostLimiter(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	var req LimiterRequest
	if err := limiterRequestSchema.Parse(zhttp.Request(c.Request), &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err})
		return
	}

	rs.SetLimiter(tenantID, req.Rate, req.Burst)

	c.Status(http.StatusOK)
}

func (rs *RestfulServer) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func queryFilterFromParams(c *gin.Context) alerting.QueryFilter {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return alerting.QueryFilter{
		Search:   c.Query("search"),
		Category: c.Query("category"),
		Status:   models.StockStatus(c.Query("status")),
		Page:     page,
		Limit:    limit,
	}
}
