package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"pharmacy-stock-alerts/pkg/common"
)

// GatewaySender posts messages to a provider-pluggable REST gateway. Both the
// SMS gateway and the WhatsApp Business API are reached this way; only the
// endpoint, the auth token and the payload field names differ.
type GatewaySender struct {
	Name     string
	URL      string
	Token    string
	SenderID string
	Client   *http.Client
}

func NewSMSSender(url, token, senderID string) *GatewaySender {
	return &GatewaySender{
		Name:     "sms",
		URL:      url,
		Token:    token,
		SenderID: senderID,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func NewWhatsAppSender(url, token, senderID string) *GatewaySender {
	return &GatewaySender{
		Name:     "whatsapp",
		URL:      url,
		Token:    token,
		SenderID: senderID,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type gatewayPayload struct {
	To      string `json:"to"`
	From    string `json:"from,omitempty"`
	Message string `json:"message"`
}

func (s *GatewaySender) Send(ctx context.Context, recipient string, message string) error {
	logger := common.GetLoggerWith(common.LoggerNameNotify,
		zap.String(common.LoggerFieldCategory, s.Name))

	body, err := json.Marshal(gatewayPayload{To: recipient, From: s.SenderID, Message: message})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		logger.Warn("gateway send failed", zap.String("recipient", recipient), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		err := fmt.Errorf("%s gateway returned status %d", s.Name, resp.StatusCode)
		logger.Warn("gateway send rejected", zap.String("recipient", recipient), zap.Error(err))
		return err
	}

	logger.Info("gateway message sent", zap.String("recipient", recipient))
	return nil
}
