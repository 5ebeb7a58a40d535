package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Log       LogConfig
	Catalog   CatalogConfig
	Dispatch  DispatchConfig
	Email     EmailConfig
	WhatsApp  WhatsAppConfig
	Providers ProvidersConfig
	HTTP      HTTPConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name          string
	Env           string
	Port          string
	RunLocal      bool
	PublicBaseURL string // used when building storefront links
	DefaultBrand  string
	StaticDir     string
	StaticPrefix  string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	FileEnable bool
	Filename   string
}

// CatalogConfig points at the tabular snapshots loaded at startup.
type CatalogConfig struct {
	ProductsFile     string
	ConsultantsFile  string
	PlaceholderImage string
	ReloadCron       string // empty disables scheduled reloads
}

// DispatchConfig controls the background notification pipeline.
type DispatchConfig struct {
	QueueSize        int
	Workers          int
	Timeout          time.Duration // per provider call
	ShutdownTimeout  time.Duration
	QueueURL         string // SQS queue; empty keeps dispatch in-process
	LedgerTable      string // DynamoDB table; empty keeps the ledger in memory
	MetricsNamespace string // CloudWatch namespace; empty disables metrics
}

// EmailConfig selects and configures the email provider.
type EmailConfig struct {
	Provider       string // sendgrid, smtp, none
	From           string
	OrdersMailbox  string
	SendGridAPIKey string
	SendGridURL    string
	SMTPHost       string
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string
}

// WhatsAppConfig holds the messaging gateway credentials.
type WhatsAppConfig struct {
	Host       string
	InstanceID string
	Token      string
	ChatSuffix string
}

// Enabled reports whether the gateway has enough settings to be called.
func (w WhatsAppConfig) Enabled() bool {
	return w.Host != "" && w.InstanceID != "" && w.Token != ""
}

// ProvidersConfig holds settings shared by the outbound provider clients.
type ProvidersConfig struct {
	InsecureSkipVerify bool
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	CORSAllowOrigins []string
}

// Load reads configuration.
// Priority (highest to lowest):
// 1. Environment variables with STOREFRONT_ prefix (e.g., STOREFRONT_EMAIL_SENDGRID_API_KEY)
// 2. .env file in the working directory
// 3. config.yaml
// 4. Built-in defaults
func Load() (*Config, error) {
	// a missing .env is the normal case outside local development
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:          v.GetString("app.name"),
			Env:           v.GetString("app.env"),
			Port:          v.GetString("app.port"),
			RunLocal:      v.GetBool("app.run_local"),
			PublicBaseURL: v.GetString("app.public_base_url"),
			DefaultBrand:  v.GetString("app.default_brand"),
			StaticDir:     v.GetString("app.static_dir"),
			StaticPrefix:  v.GetString("app.static_prefix"),
		},
		Log: LogConfig{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			FileEnable: v.GetBool("log.file_enable"),
			Filename:   v.GetString("log.filename"),
		},
		Catalog: CatalogConfig{
			ProductsFile:     v.GetString("catalog.products_file"),
			ConsultantsFile:  v.GetString("catalog.consultants_file"),
			PlaceholderImage: v.GetString("catalog.placeholder_image"),
			ReloadCron:       v.GetString("catalog.reload_cron"),
		},
		Dispatch: DispatchConfig{
			QueueSize:        v.GetInt("dispatch.queue_size"),
			Workers:          v.GetInt("dispatch.workers"),
			Timeout:          v.GetDuration("dispatch.timeout"),
			ShutdownTimeout:  v.GetDuration("dispatch.shutdown_timeout"),
			QueueURL:         v.GetString("dispatch.queue_url"),
			LedgerTable:      v.GetString("dispatch.ledger_table"),
			MetricsNamespace: v.GetString("dispatch.metrics_namespace"),
		},
		Email: EmailConfig{
			Provider:       v.GetString("email.provider"),
			From:           v.GetString("email.from"),
			OrdersMailbox:  v.GetString("email.orders_mailbox"),
			SendGridAPIKey: v.GetString("email.sendgrid_api_key"),
			SendGridURL:    v.GetString("email.sendgrid_url"),
			SMTPHost:       v.GetString("email.smtp_host"),
			SMTPPort:       v.GetInt("email.smtp_port"),
			SMTPUsername:   v.GetString("email.smtp_username"),
			SMTPPassword:   v.GetString("email.smtp_password"),
		},
		WhatsApp: WhatsAppConfig{
			Host:       v.GetString("whatsapp.host"),
			InstanceID: v.GetString("whatsapp.instance_id"),
			Token:      v.GetString("whatsapp.token"),
			ChatSuffix: v.GetString("whatsapp.chat_suffix"),
		},
		Providers: ProvidersConfig{
			InsecureSkipVerify: v.GetBool("providers.insecure_skip_verify"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "storefront"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.App.PublicBaseURL == "" {
		cfg.App.PublicBaseURL = "http://127.0.0.1:" + cfg.App.Port
	}
	if cfg.App.DefaultBrand == "" {
		cfg.App.DefaultBrand = "natura"
	}
	if cfg.App.StaticDir == "" {
		cfg.App.StaticDir = "static"
	}
	if cfg.App.StaticPrefix == "" {
		cfg.App.StaticPrefix = "/static"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		if cfg.App.Env == "production" {
			cfg.Log.Format = "json"
		} else {
			cfg.Log.Format = "console"
		}
	}
	if cfg.Log.Filename == "" {
		cfg.Log.Filename = "logs/storefront.log"
	}
	if cfg.Catalog.ProductsFile == "" {
		cfg.Catalog.ProductsFile = "data/productos.csv"
	}
	if cfg.Catalog.ConsultantsFile == "" {
		cfg.Catalog.ConsultantsFile = "data/consultoras.csv"
	}
	if cfg.Catalog.PlaceholderImage == "" {
		cfg.Catalog.PlaceholderImage = "https://via.placeholder.com/300?text=Sin+Imagen"
	}
	if cfg.Dispatch.QueueSize == 0 {
		cfg.Dispatch.QueueSize = 256
	}
	if cfg.Dispatch.Workers == 0 {
		cfg.Dispatch.Workers = 4
	}
	if cfg.Dispatch.Timeout == 0 {
		cfg.Dispatch.Timeout = 10 * time.Second
	}
	if cfg.Dispatch.ShutdownTimeout == 0 {
		cfg.Dispatch.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Email.Provider == "" {
		if cfg.Email.SendGridAPIKey != "" {
			cfg.Email.Provider = "sendgrid"
		} else {
			cfg.Email.Provider = "none"
		}
	}
	if cfg.Email.SendGridURL == "" {
		cfg.Email.SendGridURL = "https://api.sendgrid.com/v3/mail/send"
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = 587
	}
	if cfg.WhatsApp.ChatSuffix == "" {
		cfg.WhatsApp.ChatSuffix = "@c.us"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if len(cfg.HTTP.CORSAllowOrigins) == 0 {
		cfg.HTTP.CORSAllowOrigins = []string{"*"}
	}
}

func (c *Config) validate() error {
	switch c.Email.Provider {
	case "none":
	case "sendgrid":
		if c.Email.SendGridAPIKey == "" {
			return fmt.Errorf("email.sendgrid_api_key is required for the sendgrid provider")
		}
		if c.Email.From == "" {
			return fmt.Errorf("email.from is required when email is enabled")
		}
	case "smtp":
		if c.Email.SMTPHost == "" {
			return fmt.Errorf("email.smtp_host is required for the smtp provider")
		}
		if c.Email.From == "" {
			return fmt.Errorf("email.from is required when email is enabled")
		}
	default:
		return fmt.Errorf("unknown email.provider %q", c.Email.Provider)
	}
	if c.Email.Provider != "none" && c.Email.OrdersMailbox == "" {
		return fmt.Errorf("email.orders_mailbox is required when email is enabled")
	}
	// outside app.run_local the process runs on Lambda, where in-process
	// background work and memory do not outlive the invocation
	if !c.App.RunLocal {
		if c.Dispatch.QueueURL == "" {
			return fmt.Errorf("dispatch.queue_url is required unless app.run_local is set")
		}
		if c.Dispatch.LedgerTable == "" {
			return fmt.Errorf("dispatch.ledger_table is required unless app.run_local is set")
		}
	}
	if c.Dispatch.QueueSize < 0 || c.Dispatch.Workers < 0 {
		return fmt.Errorf("dispatch.queue_size and dispatch.workers must be positive")
	}
	return nil
}
