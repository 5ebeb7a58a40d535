package providers

import (
	"fmt"

	"github.com/imrishuroy/go-storefront-orderflow/internal/config"
	"github.com/imrishuroy/go-storefront-orderflow/internal/dispatch"
)

// EmailFromConfig returns the configured email sender, or nil when email is
// disabled.
func EmailFromConfig(cfg config.EmailConfig, p config.ProvidersConfig) (dispatch.EmailSender, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "sendgrid":
		return &SendGrid{
			APIKey: cfg.SendGridAPIKey,
			From:   cfg.From,
			URL:    cfg.SendGridURL,
			Client: NewHTTPClient(p.InsecureSkipVerify),
		}, nil
	case "smtp":
		return NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.From, p.InsecureSkipVerify), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

// WhatsAppFromConfig returns the Green API sender, or nil when the gateway
// is not configured.
func WhatsAppFromConfig(cfg config.WhatsAppConfig, p config.ProvidersConfig) dispatch.MessageSender {
	if !cfg.Enabled() {
		return nil
	}
	return &GreenAPI{
		Host:       cfg.Host,
		InstanceID: cfg.InstanceID,
		Token:      cfg.Token,
		Client:     NewHTTPClient(p.InsecureSkipVerify),
	}
}
