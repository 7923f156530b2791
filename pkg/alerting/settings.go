package alerting

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"pharmacy-stock-alerts/pkg/common"
	"pharmacy-stock-alerts/pkg/models"
)

// defaultSettings are applied for tenants that never saved settings.
func defaultSettings(tenantID string) *models.GlobalAlertSettings {
	return &models.GlobalAlertSettings{
		TenantID:                 tenantID,
		SystemEnabled:            true,
		CheckFrequencyMinutes:    60,
		BusinessHoursOnly:        false,
		BusinessStartTime:        "08:00",
		BusinessEndTime:          "19:00",
		AlertRetentionDays:       90,
		EscalationEnabled:        false,
		EscalationDelayMinutes:   120,
		MaxEscalationLevel:       3,
		MaxAlertsPerHour:         0,
		DuplicateCooldownMinutes: 60,
	}
}

func parseClock(value string) (int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func validateSettings(s *models.GlobalAlertSettings) error {
	if s.CheckFrequencyMinutes <= 0 {
		return &ValidationError{Field: "check_frequency_minutes", Reason: "must be > 0"}
	}
	if s.AlertRetentionDays < 0 {
		return &ValidationError{Field: "alert_retention_days", Reason: "must be >= 0"}
	}
	if s.MaxAlertsPerHour < 0 {
		return &ValidationError{Field: "max_alerts_per_hour", Reason: "must be >= 0"}
	}
	if s.DuplicateCooldownMinutes < 0 {
		return &ValidationError{Field: "duplicate_alert_cooldown_minutes", Reason: "must be >= 0"}
	}
	if s.EscalationEnabled {
		if s.EscalationDelayMinutes <= 0 {
			return &ValidationError{Field: "escalation_delay_minutes", Reason: "must be > 0 when escalation is enabled"}
		}
		if s.MaxEscalationLevel <= 0 {
			return &ValidationError{Field: "max_escalation_level", Reason: "must be > 0 when escalation is enabled"}
		}
	}
	if s.BusinessHoursOnly {
		start, err := parseClock(s.BusinessStartTime)
		if err != nil {
			return &ValidationError{Field: "business_start_time", Reason: "expected HH:MM"}
		}
		end, err := parseClock(s.BusinessEndTime)
		if err != nil {
			return &ValidationError{Field: "business_end_time", Reason: "expected HH:MM"}
		}
		if start >= end {
			return &ValidationError{Field: "business_start_time", Reason: "must be before business_end_time"}
		}
	}
	return nil
}

// validateChannelConfig checks the fields relevant to the channel type only.
func validateChannelConfig(c *models.NotificationChannelConfig) error {
	switch c.Channel {
	case models.ChannelDashboard:
		return nil
	case models.ChannelEmail:
		if c.Enabled {
			if c.SMTPHost == "" {
				return &ValidationError{Field: "smtp_host", Reason: "required for enabled email channel"}
			}
			if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
				return &ValidationError{Field: "smtp_port", Reason: "must be in 1..65535"}
			}
			if c.SenderID == "" {
				return &ValidationError{Field: "sender_id", Reason: "required for enabled email channel"}
			}
		}
		return nil
	case models.ChannelSMS, models.ChannelWhatsApp:
		if c.Enabled {
			if c.Provider == "" {
				return &ValidationError{Field: "provider", Reason: "required for enabled " + string(c.Channel) + " channel"}
			}
			if c.APIToken == "" {
				return &ValidationError{Field: "api_token", Reason: "required for enabled " + string(c.Channel) + " channel"}
			}
		}
		return nil
	default:
		return &ValidationError{Field: "channel", Reason: "unknown channel " + string(c.Channel)}
	}
}

func (e *Engine) getSettings(tenantID string) (*models.GlobalAlertSettings, error) {
	var settings models.GlobalAlertSettings
	err := e.Db.Conn.First(&settings, "tenant_id = ?", tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return defaultSettings(tenantID), nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (e *Engine) upsertSettings(tenantID string, input *models.GlobalAlertSettings) (*models.GlobalAlertSettings, error) {
	logger := common.GetLoggerWith(
		common.LoggerNameAlertingCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategorySettings),
	)

	settings := *input
	settings.TenantID = tenantID
	settings.UpdatedAt = time.Now()

	if err := validateSettings(&settings); err != nil {
		return nil, err
	}

	err := e.Db.Conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}},
		UpdateAll: true,
	}).Create(&settings).Error
	if err != nil {
		return nil, err
	}

	logger.Info("Settings upserted", zap.Reflect("settings", settings))
	return &settings, nil
}

func (e *Engine) getChannelConfig(tenantID string, channel models.Channel) (*models.NotificationChannelConfig, error) {
	var config models.NotificationChannelConfig
	err := e.Db.Conn.First(&config, "tenant_id = ? AND channel = ?", tenantID, channel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Entity: "channel config", ID: string(channel)}
	}
	if err != nil {
		return nil, err
	}
	return &config, nil
}

func (e *Engine) upsertChannelConfig(tenantID string, input *models.NotificationChannelConfig) (*models.NotificationChannelConfig, error) {
	logger := common.GetLoggerWith(
		common.LoggerNameAlertingCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategorySettings),
	)

	config := *input
	config.TenantID = tenantID
	config.UpdatedAt = time.Now()

	if err := validateChannelConfig(&config); err != nil {
		return nil, err
	}

	err := e.Db.Conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "channel"}},
		UpdateAll: true,
	}).Create(&config).Error
	if err != nil {
		return nil, err
	}

	logger.Info("Channel config upserted",
		zap.String("channel", string(config.Channel)), zap.Bool("enabled", config.Enabled))
	return &config, nil
}

func (e *Engine) listChannelConfigs(tenantID string) ([]models.NotificationChannelConfig, error) {
	var configs []models.NotificationChannelConfig
	err := e.Db.Conn.Where("tenant_id = ?", tenantID).Order("channel asc").Find(&configs).Error
	return configs, err
}

type ISettingsImpl struct {
	engine *Engine
}

func (is *ISettingsImpl) GetSettings(tenantID string) (*models.GlobalAlertSettings, error) {
	return is.engine.getSettings(tenantID)
}

func (is *ISettingsImpl) UpsertSettings(tenantID string, input *models.GlobalAlertSettings) (*models.GlobalAlertSettings, error) {
	return is.engine.upsertSettings(tenantID, input)
}

func (is *ISettingsImpl) GetChannelConfig(tenantID string, channel models.Channel) (*models.NotificationChannelConfig, error) {
	return is.engine.getChannelConfig(tenantID, channel)
}

func (is *ISettingsImpl) UpsertChannelConfig(tenantID string, input *models.NotificationChannelConfig) (*models.NotificationChannelConfig, error) {
	return is.engine.upsertChannelConfig(tenantID, input)
}

func (is *ISettingsImpl) ListChannelConfigs(tenantID string) ([]models.NotificationChannelConfig, error) {
	return is.engine.listChannelConfigs(tenantID)
}

func (e *Engine) GetISettings() ISettings {
	return &ISettingsImpl{engine: e}
}
