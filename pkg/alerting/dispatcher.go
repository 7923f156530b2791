package alerting

import (
	"context"
	"time"

	"go.uber.org/zap"
	"pharmacy-stock-alerts/pkg/common"
	"pharmacy-stock-alerts/pkg/metrics"
	"pharmacy-stock-alerts/pkg/models"
)

type DispatchStatus string

const (
	DispatchSent        DispatchStatus = "sent"
	DispatchFailed      DispatchStatus = "failed"
	DispatchSkipped     DispatchStatus = "skipped"
	DispatchRateLimited DispatchStatus = "rate_limited"
)

// DispatchResult is the per-channel outcome of one alert fan-out.
type DispatchResult struct {
	Channel models.Channel `json:"channel"`
	Status  DispatchStatus `json:"status"`
	Reason  string         `json:"reason,omitempty"`
}

func (r DispatchResult) Succeeded() bool {
	return r.Status == DispatchSent
}

// withinBusinessHours checks the settings window against local wall-clock
// time. Settings not using business hours always pass.
func withinBusinessHours(settings *models.GlobalAlertSettings, now time.Time) bool {
	if !settings.BusinessHoursOnly {
		return true
	}
	start, err := parseClock(settings.BusinessStartTime)
	if err != nil {
		return true
	}
	end, err := parseClock(settings.BusinessEndTime)
	if err != nil {
		return true
	}
	minutes := now.Hour()*60 + now.Minute()
	return minutes >= start && minutes < end
}

// dispatch fans an alert out to the rule's channels. Channels are independent:
// one failure never blocks the others, and provider failures are reported in
// the result list, never returned. Retry is the caller's responsibility.
func (e *Engine) dispatch(ctx context.Context, alert *models.Alert, rule *models.ThresholdRule) []DispatchResult {
	logger := common.GetLoggerWith(
		common.LoggerNameAlertingCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryDispatcher),
		zap.String("alert_id", alert.ID),
	)

	results := make([]DispatchResult, 0, len(rule.Channels))

	settings, err := e.getSettings(alert.TenantID)
	if err != nil {
		for _, ch := range rule.Channels {
			results = append(results, DispatchResult{Channel: ch, Status: DispatchFailed, Reason: err.Error()})
		}
		return results
	}

	skipAll := ""
	if !settings.SystemEnabled {
		skipAll = "alert system disabled"
	} else if !withinBusinessHours(settings, time.Now()) {
		skipAll = "outside business hours"
	}

	for _, channel := range rule.Channels {
		result := e.dispatchChannel(ctx, alert, rule, settings, channel, skipAll)
		metrics.Dispatches.WithLabelValues(string(channel), string(result.Status)).Inc()
		if result.Status != DispatchSent {
			logger.Info("Channel not delivered",
				zap.String("channel", string(channel)),
				zap.String("status", string(result.Status)),
				zap.String("reason", result.Reason))
		}
		results = append(results, result)
	}

	return results
}

func (e *Engine) dispatchChannel(
	ctx context.Context,
	alert *models.Alert,
	rule *models.ThresholdRule,
	settings *models.GlobalAlertSettings,
	channel models.Channel,
	skipAll string,
) DispatchResult {
	if skipAll != "" {
		return DispatchResult{Channel: channel, Status: DispatchSkipped, Reason: skipAll}
	}

	// the stored alert row is the dashboard notification
	if channel == models.ChannelDashboard {
		return DispatchResult{Channel: channel, Status: DispatchSent}
	}

	config, err := e.getChannelConfig(alert.TenantID, channel)
	if err != nil {
		return DispatchResult{Channel: channel, Status: DispatchSkipped, Reason: "channel not configured"}
	}
	if !config.Enabled {
		return DispatchResult{Channel: channel, Status: DispatchSkipped, Reason: "channel disabled"}
	}

	if err := ctx.Err(); err != nil {
		return DispatchResult{Channel: channel, Status: DispatchFailed, Reason: "timeout: " + err.Error()}
	}

	if !e.dispatchLimiter.Allow(alert.TenantID, settings.MaxAlertsPerHour) {
		return DispatchResult{Channel: channel, Status: DispatchRateLimited, Reason: "max_alerts_per_hour exceeded"}
	}

	provider, ok := e.Providers.Get(channel)
	if !ok {
		return DispatchResult{Channel: channel, Status: DispatchFailed, Reason: "no provider registered"}
	}

	message := RenderTemplate(config.MessageTemplate, alert)

	var lastErr error
	delivered := 0
	for _, recipient := range rule.Recipients[channel] {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		if err := provider.Send(ctx, recipient, message); err != nil {
			lastErr = &ProviderError{Channel: channel, Err: err}
			continue
		}
		delivered++
	}

	if delivered == 0 && lastErr != nil {
		return DispatchResult{Channel: channel, Status: DispatchFailed, Reason: lastErr.Error()}
	}
	if lastErr != nil {
		// partial delivery still counts as a failure the caller can see
		return DispatchResult{Channel: channel, Status: DispatchFailed,
			Reason: "partial delivery: " + lastErr.Error()}
	}
	return DispatchResult{Channel: channel, Status: DispatchSent}
}

type IDispatcherImpl struct {
	engine *Engine
}

func (id *IDispatcherImpl) Dispatch(ctx context.Context, alert *models.Alert, rule *models.ThresholdRule) []DispatchResult {
	return id.engine.dispatch(ctx, alert, rule)
}

func (e *Engine) GetIDispatcher() IDispatcher {
	return &IDispatcherImpl{engine: e}
}
