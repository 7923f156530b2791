package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
	"pharmacy-stock-alerts/pkg/alerting"
)

type RestfulServer struct {
	Server           *gin.Engine
	Engine           *alerting.Engine
	RateLimiterStore *alerting.RateLimiterStore
}

func (rs *RestfulServer) GetLimiter(tenantID string) *rate.Limiter {
	if rs.RateLimiterStore == nil {
		return nil
	} else {
		return rs.RateLimiterStore.GetLimiter(tenantID)
	}
}

func (rs *RestfulServer) CheckTenantLimiter(tenantID string) bool {
	limiter := rs.GetLimiter(tenantID)
	if limiter == nil {
		return true
	}
	return limiter.Allow()
}

func (rs *RestfulServer) SetLimiter(tenantID string, tenantRate float64, tenantBurst int) {
	if rs.RateLimiterStore == nil {
		return
	}
	rs.RateLimiterStore.SetLimiter(tenantID, rate.Limit(tenantRate), tenantBurst)
}

func (rs *RestfulServer) Setup() {
	rs.Server.GET("/healthz", rs.HealthCheck)
	rs.Server.GET("/metrics", gin.WrapH(promhttp.Handler()))

	tenants := rs.Server.Group("/tenants/:tenant_id")
	{
		tenants.POST("/alerts/evaluate", rs.PostEvaluate)
		tenants.GET("/alerts", rs.GetAlerts)
		tenants.GET("/alerts/export", rs.GetAlertsExport)
		tenants.POST("/alerts/:alert_id/treat", rs.PostTreatAlert)
		tenants.POST("/alerts/:alert_id/ignore", rs.PostIgnoreAlert)

		tenants.GET("/rules", rs.GetRules)
		tenants.POST("/rules", rs.PostRule)
		tenants.PUT("/rules/:rule_id", rs.PutRule)
		tenants.DELETE("/rules/:rule_id", rs.DeleteRule)
		tenants.POST("/rules/:rule_id/toggle", rs.PostToggleRule)

		tenants.GET("/settings", rs.GetSettings)
		tenants.PUT("/settings", rs.PutSettings)
		tenants.GET("/channels", rs.GetChannels)
		tenants.PUT("/channels/:channel", rs.PutChannel)

		tenants.GET("/products", rs.GetProducts)
		tenants.POST("/products", rs.PostProduct)

		tenants.POST("/limiter", rs.PostLimiter)
	}
}
