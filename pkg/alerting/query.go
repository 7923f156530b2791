package alerting

import (
	"pharmacy-stock-alerts/pkg/models"
)

type QueryFilter struct {
	Search   string
	Category string
	Status   models.StockStatus
	Page     int
	Limit    int
}

// AlertProductView is one row of the aggregation view: a product with its
// derived stock state and its currently active alerts.
type AlertProductView struct {
	Code              string             `json:"code"`
	Name              string             `json:"name"`
	Category          string             `json:"category"`
	Status            models.StockStatus `json:"status"`
	CurrentQuantity   float64            `json:"current_stock"`
	CriticalThreshold float64            `json:"critical_threshold"`
	LowThreshold      float64            `json:"low_threshold"`
	Value             float64            `json:"value"`
	ActiveAlerts      []models.Alert     `json:"active_alerts"`
}

type QueryMetrics struct {
	RuptureItems  int `json:"ruptureItems"`
	CriticalItems int `json:"criticalItems"`
	LowItems      int `json:"lowItems"`
}

type QueryResult struct {
	Items      []AlertProductView `json:"items"`
	TotalCount int                `json:"totalCount"`
	TotalPages int                `json:"totalPages"`
	Metrics    QueryMetrics       `json:"metrics"`
}

// filteredViews materializes the full filtered set once, so items, totalCount
// and metrics are all computed from the same predicate.
func (e *Engine) filteredViews(tenantID string, filter QueryFilter) ([]AlertProductView, error) {
	query := e.Db.Conn.Where("tenant_id = ?", tenantID)
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("code LIKE ? OR name LIKE ?", like, like)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}

	var products []models.Product
	if err := query.Order("code asc").Find(&products).Error; err != nil {
		return nil, err
	}

	var activeAlerts []models.Alert
	if err := e.Db.Conn.
		Where("tenant_id = ? AND status = ?", tenantID, models.AlertStatusActive).
		Order("created_at desc").
		Find(&activeAlerts).Error; err != nil {
		return nil, err
	}

	alertsByProduct := make(map[string][]models.Alert)
	for _, a := range activeAlerts {
		alertsByProduct[a.ProductCode] = append(alertsByProduct[a.ProductCode], a)
	}

	views := make([]AlertProductView, 0, len(products))
	for i := range products {
		p := &products[i]
		status := p.StockStatus()
		if filter.Status != "" && status != filter.Status {
			continue
		}
		views = append(views, AlertProductView{
			Code:              p.Code,
			Name:              p.Name,
			Category:          p.Category,
			Status:            status,
			CurrentQuantity:   p.CurrentQuantity,
			CriticalThreshold: p.CriticalThreshold,
			LowThreshold:      p.LowThreshold,
			Value:             p.StockValue(),
			ActiveAlerts:      alertsByProduct[p.Code],
		})
	}
	return views, nil
}

func (e *Engine) queryAlerts(tenantID string, filter QueryFilter) (*QueryResult, error) {
	views, err := e.filteredViews(tenantID, filter)
	if err != nil {
		return nil, err
	}

	var queryMetrics QueryMetrics
	for _, v := range views {
		switch v.Status {
		case models.StockStatusRupture:
			queryMetrics.RuptureItems++
		case models.StockStatusCritical:
			queryMetrics.CriticalItems++
		case models.StockStatusLow:
			queryMetrics.LowItems++
		}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}

	totalCount := len(views)
	totalPages := (totalCount + limit - 1) / limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (page - 1) * limit
	if start > totalCount {
		start = totalCount
	}
	end := start + limit
	if end > totalCount {
		end = totalCount
	}

	return &QueryResult{
		Items:      views[start:end],
		TotalCount: totalCount,
		TotalPages: totalPages,
		Metrics:    queryMetrics,
	}, nil
}

type IQueryImpl struct {
	engine *Engine
}

func (iq *IQueryImpl) QueryAlerts(tenantID string, filter QueryFilter) (*QueryResult, error) {
	return iq.engine.queryAlerts(tenantID, filter)
}

func (iq *IQueryImpl) ExportCSV(tenantID string, filter QueryFilter) ([]byte, error) {
	return iq.engine.exportCSV(tenantID, filter)
}

func (e *Engine) GetIQuery() IQuery {
	return &IQueryImpl{engine: e}
}
