package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-orderflow/internal/aws"
	"github.com/imrishuroy/go-storefront-orderflow/internal/compose"
	"github.com/imrishuroy/go-storefront-orderflow/internal/config"
	"github.com/imrishuroy/go-storefront-orderflow/internal/dispatch"
	"github.com/imrishuroy/go-storefront-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-storefront-orderflow/internal/logger"
	"github.com/imrishuroy/go-storefront-orderflow/internal/providers"
)

const ledgerTTL = 48 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		FileEnable: cfg.Log.FileEnable,
		Filename:   cfg.Log.Filename,
	})
	defer func() { _ = zlog.Sync() }()

	clients, err := aws.NewAWSClients(context.Background(), aws.Services{
		Ledger:  !cfg.App.RunLocal && cfg.Dispatch.LedgerTable != "",
		Metrics: cfg.Dispatch.MetricsNamespace != "",
	})
	if err != nil {
		zlog.Fatal("failed to init aws clients", zap.Error(err))
	}

	ledger := workerLedger(cfg, clients.DynamoDB)
	if ledger == nil {
		zlog.Info("running without the order ledger; every message is dispatched")
	}

	var metrics dispatch.Metrics = dispatch.NopMetrics{}
	if cfg.Dispatch.MetricsNamespace != "" {
		metrics = aws.NewMetrics(clients.CloudWatch, cfg.Dispatch.MetricsNamespace)
	}

	emailSender, err := providers.EmailFromConfig(cfg.Email, cfg.Providers)
	if err != nil {
		zlog.Fatal("failed to configure email provider", zap.Error(err))
	}

	dispatcher := dispatch.New(dispatch.Options{
		Composer:   compose.Composer{OrdersMailbox: cfg.Email.OrdersMailbox},
		Email:      emailSender,
		WhatsApp:   providers.WhatsAppFromConfig(cfg.WhatsApp, cfg.Providers),
		ChatSuffix: cfg.WhatsApp.ChatSuffix,
		Timeout:    cfg.Dispatch.Timeout,
		Ledger:     ledger,
		Metrics:    metrics,
	}, zlog)
	p := NewProcessor(dispatcher, zlog)

	// With app.run_local, process a single event built from LOCAL_SQS_BODY.
	if cfg.App.RunLocal {
		event := events.SQSEvent{
			Records: []events.SQSMessage{{MessageId: "local-1", Body: localBody()}},
		}
		resp, err := p.Handle(context.Background(), event)
		if err != nil || len(resp.BatchItemFailures) > 0 {
			zlog.Fatal("local handler error", zap.Error(err), zap.Int("failures", len(resp.BatchItemFailures)))
		}
		return
	}

	lambda.Start(p.Handle)
}

// workerLedger returns the DynamoDB ledger, or nil for local runs. A local
// body was never accepted by the API, so it has no PENDING record to claim.
func workerLedger(cfg *config.Config, db aws.DynamoDBAPI) dispatch.Ledger {
	if cfg.App.RunLocal || cfg.Dispatch.LedgerTable == "" {
		return nil
	}
	return idempotency.NewStore(db, cfg.Dispatch.LedgerTable, ledgerTTL)
}

func localBody() string {
	if body := os.Getenv("LOCAL_SQS_BODY"); body != "" {
		return body
	}
	return `{"order_id":"local-order-1","order":{"consultant_id":"5","items":[{"sku":"A1","description":"Cream","quantity":2}],"customer":{"name":"Ana","phone":"5551234567"}},"consultant":{"id":"5","nombre":"Lesly","telefono":"5551234567","email":"lesly@example.com"}}`
}
