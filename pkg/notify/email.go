package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"
	"pharmacy-stock-alerts/pkg/common"
)

// EmailSender delivers through a plain SMTP relay.
type EmailSender struct {
	HostPort string
	Sender   string
	Auth     smtp.Auth

	// sendMail is swappable in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailSender(hostPort, sender string, auth smtp.Auth) *EmailSender {
	return &EmailSender{
		HostPort: hostPort,
		Sender:   sender,
		Auth:     auth,
		sendMail: smtp.SendMail,
	}
}

func (s *EmailSender) Send(ctx context.Context, recipient string, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	logger := common.GetLoggerWith(common.LoggerNameNotify,
		zap.String(common.LoggerFieldCategory, "email"))

	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Stock alert\r\n\r\n%s\r\n",
		s.Sender, recipient, message)

	if err := s.sendMail(s.HostPort, s.Auth, s.Sender, []string{recipient}, []byte(body)); err != nil {
		logger.Warn("email send failed", zap.String("recipient", recipient), zap.Error(err))
		return err
	}

	logger.Info("email sent", zap.String("recipient", recipient))
	return nil
}
