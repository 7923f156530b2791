package alerting

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm/clause"
	"pharmacy-stock-alerts/pkg/common"
	"pharmacy-stock-alerts/pkg/models"
)

func (e *Engine) upsertProduct(tenantID string, input *models.Product) error {
	logger := common.GetLoggerWith(
		common.LoggerNameAlertingCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryProduct),
	)

	if input.Code == "" {
		return &ValidationError{Field: "code", Reason: "must not be empty"}
	}

	product := *input
	product.TenantID = tenantID
	product.UpdatedAt = time.Now()

	logger.Info("Received product for tenant", zap.Reflect("product", product))

	err := e.Db.Conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}, {Name: "tenant_id"}},
		UpdateAll: true,
	}).Create(&product).Error

	if err == nil {
		logger.Info("Upserted product for tenant", zap.Reflect("product", product))
	}

	return err
}

func (e *Engine) listProducts(tenantID string) ([]models.Product, error) {
	var products []models.Product
	err := e.Db.Conn.Where("tenant_id = ?", tenantID).Order("code asc").Find(&products).Error
	return products, err
}

type IInventoryImpl struct {
	engine *Engine
}

func (ii *IInventoryImpl) UpsertProduct(tenantID string, input *models.Product) error {
	return ii.engine.upsertProduct(tenantID, input)
}

func (ii *IInventoryImpl) ListProducts(tenantID string) ([]models.Product, error) {
	return ii.engine.listProducts(tenantID)
}

func (e *Engine) GetIInventory() IInventory {
	return &IInventoryImpl{engine: e}
}
