package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"payment-webhook-service/internal/config"
	"payment-webhook-service/internal/db"
	"payment-webhook-service/internal/gateway"
	"payment-webhook-service/internal/kafka"
	"payment-webhook-service/internal/logging"
	"payment-webhook-service/internal/memstore"
	"payment-webhook-service/internal/metrics"
	"payment-webhook-service/internal/notification"
	"payment-webhook-service/internal/outbox"
	"payment-webhook-service/internal/push"
	"payment-webhook-service/internal/reconcile"
	"payment-webhook-service/internal/relay"
	"payment-webhook-service/internal/tenant"
	"payment-webhook-service/internal/webhook"
)

type stores struct {
	sales         reconcile.Store
	audit         webhook.AuditStore
	tenants       tenant.Store
	templates     notification.TemplateStore
	notifications notification.NotificationStore
	profiles      notification.ProfileStore
	outbox        outbox.Store
	close         func()
}

func main() {
	cfg := config.MustLoadConfig("config")
	logger := logging.GetLogger(cfg.Logs)
	metrics.Setup(cfg.Metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg.Database, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer st.close()

	var cache tenant.Cache
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer client.Close()
		cache = tenant.NewRedisCache(client, time.Duration(cfg.Redis.TTLMs)*time.Millisecond)
	}

	resolver := tenant.NewResolver(st.tenants, cache, tenant.Defaults{
		Currency: cfg.Notification.DefaultCurrency,
		Locale:   cfg.Notification.DefaultLocale,
	}, logger)
	engine := reconcile.NewEngine(st.sales, logger)
	pushClient := push.NewClient(cfg.Push.URL, cfg.Push.APIKey, cfg.Push.TimeoutMs, logger)
	dispatcher := notification.NewDispatcher(st.templates, st.notifications, st.profiles, pushClient, logger)
	service := webhook.NewService(gateway.NewDefaultRegistry(), resolver, st.audit, engine, dispatcher, logger).
		WithNotifyTimeout(time.Duration(cfg.Notification.TimeoutMs) * time.Millisecond)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /liveness", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /metrics", metrics.Handler())
	webhook.NewHandler(service, cfg.Server.MaxBodyBytes, logger).Register(mux)

	var readers sync.WaitGroup
	var processor *relay.Processor
	if cfg.Kafka.Enabled {
		eventWriter := kafka.NewWriter(cfg.Kafka, cfg.Kafka.Topic.SaleEvents)
		defer eventWriter.Close()

		outbox.NewProducer(st.outbox, eventWriter, cfg.Outbox, logger).Start(ctx)

		webhookReader := kafka.NewReader(cfg.Kafka.Broker.URL, cfg.Kafka.Topic.GatewayWebhooks, cfg.Kafka.Reader.GroupID)
		defer webhookReader.Close()

		processor = relay.NewProcessor(service, cfg.Relay.Parallelism, logger)
		readers.Add(1)
		go func() {
			defer readers.Done()
			kafka.ReadMessages(ctx, webhookReader, logger, processor.Process, kafka.NewMetrics("gateway_webhook"))
		}()
	}

	server := &http.Server{Addr: ":" + cfg.Server.Port, Handler: mux}
	go func() {
		logger.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutMs)*time.Millisecond)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down HTTP server", "error", err)
	}

	readers.Wait()
	if processor != nil {
		processor.Wait()
	}
	logger.Info("Stopped")
}

func openStores(ctx context.Context, cfg config.Database, logger *slog.Logger) (*stores, error) {
	if cfg.Driver == "memory" {
		logger.Warn("Using in-memory storage, data is lost on restart")
		m := memstore.New()
		return &stores{
			sales:         m,
			audit:         m,
			tenants:       m,
			templates:     m,
			notifications: m,
			profiles:      m,
			outbox:        m,
			close:         func() {},
		}, nil
	}

	connStr := db.GetConnStr(cfg)
	if err := db.RunMigrations(connStr); err != nil {
		return nil, err
	}

	pool, err := db.GetPool(ctx, connStr)
	if err != nil {
		return nil, err
	}

	notifications := db.NewNotificationRepository(pool)
	return &stores{
		sales:         db.NewSaleRepository(pool),
		audit:         db.NewAuditRepository(pool),
		tenants:       db.NewTenantRepository(pool),
		templates:     notifications,
		notifications: notifications,
		profiles:      notifications,
		outbox:        db.NewOutboxRepository(pool),
		close:         pool.Close,
	}, nil
}
