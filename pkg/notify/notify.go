package notify

import (
	"context"

	"pharmacy-stock-alerts/pkg/models"
)

//go:generate mockgen -source=notify.go -destination=../alerting/mocks/mock_provider.go -package=mocks

// Provider is one external delivery channel. Implementations must honor the
// context deadline and return an error only for delivery failures.
type Provider interface {
	Send(ctx context.Context, recipient string, message string) error
}

// Registry maps a channel to its provider. The dashboard channel has no
// provider; the stored alert row is the dashboard notification.
type Registry map[models.Channel]Provider

func (r Registry) Get(channel models.Channel) (Provider, bool) {
	p, ok := r[channel]
	return p, ok
}
