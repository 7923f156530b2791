package alerting

import (
	"bufio"
	"encoding/json"
	"io"
	"testing"

	"go.uber.org/mock/gomock"
	"pharmacy-stock-alerts/pkg/alerting/mocks"
	"pharmacy-stock-alerts/pkg/db"
	"pharmacy-stock-alerts/pkg/models"
	"pharmacy-stock-alerts/pkg/notify"
)

func GetMockEngineWithMemorySqliteDialector(t *testing.T, useMockEmail, useMockSMS, useMockWhatsApp bool) (
	*gomock.Controller,
	*Engine,
	*mocks.MockProvider,
	*mocks.MockProvider,
	*mocks.MockProvider,
) {
	ctrl := gomock.NewController(t)

	mockEmail := mocks.NewMockProvider(ctrl)
	mockSMS := mocks.NewMockProvider(ctrl)
	mockWhatsApp := mocks.NewMockProvider(ctrl)

	registry := notify.Registry{}
	if useMockEmail {
		registry[models.ChannelEmail] = mockEmail
	}
	if useMockSMS {
		registry[models.ChannelSMS] = mockSMS
	}
	if useMockWhatsApp {
		registry[models.ChannelWhatsApp] = mockWhatsApp
	}

	dialector := db.UseMemorySqliteDialector()
	dbInstance := db.GetInstance(dialector) // ensure migrations
	engine := NewEngine(*dbInstance, registry).WithDefaultServices()

	return ctrl, engine, mockEmail, mockSMS, mockWhatsApp
}

func ParseLogs(r io.Reader) []any {
	scanner := bufio.NewScanner(r)
	var logs []any

	for scanner.Scan() {
		line := scanner.Text()
		var j any
		if err := json.Unmarshal([]byte(line), &j); err == nil {
			logs = append(logs, j)
		}
	}
	return logs
}
