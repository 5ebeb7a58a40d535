package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-orderflow/internal/aws"
	"github.com/imrishuroy/go-storefront-orderflow/internal/catalog"
	"github.com/imrishuroy/go-storefront-orderflow/internal/compose"
	"github.com/imrishuroy/go-storefront-orderflow/internal/config"
	"github.com/imrishuroy/go-storefront-orderflow/internal/dispatch"
	"github.com/imrishuroy/go-storefront-orderflow/internal/handlers"
	"github.com/imrishuroy/go-storefront-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-storefront-orderflow/internal/logger"
	"github.com/imrishuroy/go-storefront-orderflow/internal/providers"
)

const ledgerTTL = 48 * time.Hour

func main() {
	decimal.MarshalJSONWithoutQuotes = true

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

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// the catalog must be complete before any traffic is accepted
	store := catalog.NewStore(catalog.Options{
		ProductsFile:    cfg.Catalog.ProductsFile,
		ConsultantsFile: cfg.Catalog.ConsultantsFile,
		Resolve: catalog.ResolveOptions{
			StaticPrefix:     cfg.App.StaticPrefix,
			PlaceholderImage: cfg.Catalog.PlaceholderImage,
		},
	}, zlog)
	if err := store.Load(); err != nil {
		zlog.Fatal("failed to load catalog", zap.Error(err))
	}
	if cfg.Catalog.ReloadCron != "" {
		sched, err := store.ScheduleReload(cfg.Catalog.ReloadCron)
		if err != nil {
			zlog.Fatal("failed to schedule catalog reload", zap.Error(err))
		}
		defer sched.Stop()
	}

	services := aws.Services{
		Ledger:  cfg.Dispatch.LedgerTable != "",
		Queue:   cfg.Dispatch.QueueURL != "",
		Metrics: cfg.Dispatch.MetricsNamespace != "",
	}
	var clients *aws.AWSClients
	if services.Any() {
		clients, err = aws.NewAWSClients(context.Background(), services)
		if err != nil {
			zlog.Fatal("failed to init aws clients", zap.Error(err))
		}
	}

	var ledger idempotency.Ledger = idempotency.NewMemoryStore(ledgerTTL)
	if cfg.Dispatch.LedgerTable != "" {
		ledger = idempotency.NewStore(clients.DynamoDB, cfg.Dispatch.LedgerTable, ledgerTTL)
	}

	emailSender, err := providers.EmailFromConfig(cfg.Email, cfg.Providers)
	if err != nil {
		zlog.Fatal("failed to configure email provider", zap.Error(err))
	}
	whatsappSender := providers.WhatsAppFromConfig(cfg.WhatsApp, cfg.Providers)

	var metrics dispatch.Metrics = dispatch.NopMetrics{}
	if cfg.Dispatch.MetricsNamespace != "" {
		metrics = aws.NewMetrics(clients.CloudWatch, cfg.Dispatch.MetricsNamespace)
	}

	dispatcher := dispatch.New(dispatch.Options{
		Composer:   compose.Composer{OrdersMailbox: cfg.Email.OrdersMailbox},
		Email:      emailSender,
		WhatsApp:   whatsappSender,
		ChatSuffix: cfg.WhatsApp.ChatSuffix,
		Timeout:    cfg.Dispatch.Timeout,
		Ledger:     ledger,
		Metrics:    metrics,
	}, zlog)

	var (
		scheduler handlers.Scheduler
		queue     *dispatch.Queue
	)
	if cfg.Dispatch.QueueURL != "" {
		scheduler = aws.NewPublisher(clients.SQS, cfg.Dispatch.QueueURL)
		zlog.Info("dispatching through sqs", zap.String("queue_url", cfg.Dispatch.QueueURL))
	} else {
		queue, err = dispatch.NewQueue(dispatcher, cfg.Dispatch.QueueSize, cfg.Dispatch.Workers, zlog)
		if err != nil {
			zlog.Fatal("failed to create dispatch queue", zap.Error(err))
		}
		queue.Start()
		scheduler = queue
	}

	r := handlers.NewRouter(handlers.HandlerConfig{
		Catalog:          store,
		Ledger:           ledger,
		Scheduler:        scheduler,
		EmailEnabled:     dispatcher.EmailEnabled(),
		WhatsAppEnabled:  dispatcher.WhatsAppEnabled(),
		ChatSuffix:       cfg.WhatsApp.ChatSuffix,
		DefaultBrand:     cfg.App.DefaultBrand,
		PublicBaseURL:    cfg.App.PublicBaseURL,
		StaticDir:        cfg.App.StaticDir,
		StaticPrefix:     cfg.App.StaticPrefix,
		CORSAllowOrigins: cfg.HTTP.CORSAllowOrigins,
		Logger:           zlog,
	})

	if !cfg.App.RunLocal {
		// config validation guarantees the SQS publisher and DynamoDB ledger here
		adapter := ginadapter.New(r)
		lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
			return adapter.ProxyWithContext(ctx, req)
		})
		return
	}

	serve(cfg, r, queue, zlog)
}

// serve runs the HTTP server until SIGINT/SIGTERM, then drains the queue.
func serve(cfg *config.Config, r *gin.Engine, queue *dispatch.Queue, zlog *zap.Logger) {
	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		zlog.Info("running local server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("failed to run local server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Dispatch.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("http shutdown", zap.Error(err))
	}
	if queue != nil {
		if err := queue.Shutdown(shutdownCtx); err != nil {
			zlog.Error("dispatch queue shutdown", zap.Error(err))
		}
	}
}
