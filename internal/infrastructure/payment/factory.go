package payment

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/saaskit/backend/internal/infrastructure/config"
)

// NewProvider builds the payment provider selected by payment.provider.
func NewProvider(cfg config.PaymentConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Provider {
	case "stripe":
		return NewStripeProvider(&StripeConfig{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
	}
}
