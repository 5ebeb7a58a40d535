package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STOREFRONT_APP_RUN_LOCAL", "true")
	t.Setenv("STOREFRONT_EMAIL_SENDGRID_API_KEY", "")
	t.Setenv("STOREFRONT_EMAIL_PROVIDER", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "storefront", cfg.App.Name)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "natura", cfg.App.DefaultBrand)
	assert.Equal(t, "/static", cfg.App.StaticPrefix)
	assert.Equal(t, "data/productos.csv", cfg.Catalog.ProductsFile)
	assert.Equal(t, "data/consultoras.csv", cfg.Catalog.ConsultantsFile)
	assert.Equal(t, 10*time.Second, cfg.Dispatch.Timeout)
	assert.Equal(t, "none", cfg.Email.Provider)
	assert.Equal(t, "@c.us", cfg.WhatsApp.ChatSuffix)
	assert.False(t, cfg.WhatsApp.Enabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STOREFRONT_APP_PORT", "9090")
	t.Setenv("STOREFRONT_EMAIL_SENDGRID_API_KEY", "SG.test")
	t.Setenv("STOREFRONT_EMAIL_FROM", "shop@example.com")
	t.Setenv("STOREFRONT_EMAIL_ORDERS_MAILBOX", "pedidos@example.com")
	t.Setenv("STOREFRONT_DISPATCH_TIMEOUT", "3s")
	t.Setenv("STOREFRONT_DISPATCH_QUEUE_URL", "https://sqs.us-east-1.amazonaws.com/123/notifications")
	t.Setenv("STOREFRONT_DISPATCH_LEDGER_TABLE", "order-ledger")
	t.Setenv("STOREFRONT_WHATSAPP_HOST", "7105.api.greenapi.com")
	t.Setenv("STOREFRONT_WHATSAPP_INSTANCE_ID", "7105")
	t.Setenv("STOREFRONT_WHATSAPP_TOKEN", "token")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, "sendgrid", cfg.Email.Provider)
	assert.Equal(t, "pedidos@example.com", cfg.Email.OrdersMailbox)
	assert.False(t, cfg.App.RunLocal)
	assert.Equal(t, 3*time.Second, cfg.Dispatch.Timeout)
	assert.True(t, cfg.WhatsApp.Enabled())
}

func TestLoad_LambdaModeRequiresQueueAndLedger(t *testing.T) {
	t.Setenv("STOREFRONT_APP_RUN_LOCAL", "false")
	t.Setenv("STOREFRONT_EMAIL_PROVIDER", "none")
	t.Setenv("STOREFRONT_DISPATCH_QUEUE_URL", "")
	t.Setenv("STOREFRONT_DISPATCH_LEDGER_TABLE", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dispatch.queue_url")
}

// validConfig is a complete local configuration with email enabled.
func validConfig() *Config {
	cfg := &Config{
		App: AppConfig{RunLocal: true},
		Email: EmailConfig{
			Provider:       "sendgrid",
			SendGridAPIKey: "k",
			From:           "shop@example.com",
			OrdersMailbox:  "pedidos@example.com",
		},
	}
	applyDefaults(cfg)
	return cfg
}

func TestValidate_AcceptsCompleteConfig(t *testing.T) {
	assert.NoError(t, validConfig().validate())

	cfg := validConfig()
	cfg.App.RunLocal = false
	cfg.Dispatch.QueueURL = "https://sqs.local/q"
	cfg.Dispatch.LedgerTable = "order-ledger"
	assert.NoError(t, cfg.validate())

	cfg = validConfig()
	cfg.Email = EmailConfig{Provider: "none"}
	assert.NoError(t, cfg.validate(), "no orders mailbox needed with email disabled")
}

func TestValidate_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"sendgrid without key", func(c *Config) { c.Email.SendGridAPIKey = "" }, "sendgrid_api_key"},
		{"sendgrid without sender", func(c *Config) { c.Email.From = "" }, "email.from"},
		{"smtp without host", func(c *Config) { c.Email.Provider = "smtp" }, "smtp_host"},
		{"unknown provider", func(c *Config) { c.Email.Provider = "pigeon" }, "pigeon"},
		{"email without orders mailbox", func(c *Config) { c.Email.OrdersMailbox = "" }, "orders_mailbox"},
		{"lambda without queue", func(c *Config) {
			c.App.RunLocal = false
			c.Dispatch.LedgerTable = "order-ledger"
		}, "dispatch.queue_url"},
		{"lambda without ledger", func(c *Config) {
			c.App.RunLocal = false
			c.Dispatch.QueueURL = "https://sqs.local/q"
		}, "dispatch.ledger_table"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
