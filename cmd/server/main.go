// main wires the process: config, stores (durable when Postgres/Redis are
// configured, in-memory otherwise), the domain services, the bot dispatcher,
// and the HTTP gateway. Business logic lives in the internal packages.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fixdesk/internal/audit"
	"fixdesk/internal/conversation"
	convstore "fixdesk/internal/conversation/store"
	"fixdesk/internal/jwtauth"
	locservice "fixdesk/internal/location/service"
	locstore "fixdesk/internal/location/store"
	"fixdesk/internal/notify"
	partymetrics "fixdesk/internal/party/metrics"
	partyservice "fixdesk/internal/party/service"
	partystore "fixdesk/internal/party/store"
	"fixdesk/internal/platform/config"
	"fixdesk/internal/platform/httpserver"
	"fixdesk/internal/platform/logger"
	"fixdesk/internal/platform/postgres"
	"fixdesk/internal/platform/redis"
	"fixdesk/internal/report"
	requestmetrics "fixdesk/internal/request/metrics"
	requestservice "fixdesk/internal/request/service"
	requeststore "fixdesk/internal/request/store"
	"fixdesk/internal/transport/bot"
	httptransport "fixdesk/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	db, err := postgres.Open(cfg.Postgres)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			log.Error("schema setup failed", "error", err)
			os.Exit(1)
		}
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	kafkaSink, err := audit.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
	if err != nil {
		log.Error("kafka connection failed", "error", err)
		os.Exit(1)
	}
	var auditSink audit.Sink
	if kafkaSink != nil {
		defer kafkaSink.Close()
		auditSink = kafkaSink
	}
	auditPublisher := audit.NewPublisher(audit.NewInMemoryStore(), auditSink)

	// Stores: Postgres when configured, process memory otherwise.
	var (
		catalogStore locservice.CatalogStore
		seedTarget   locstore.Seedable
		parties      partyservice.PartyStore
		requests     requestservice.RequestStore
		reportSource report.RequestSource
	)
	if db != nil {
		pgCatalog := locstore.NewPostgres(db)
		catalogStore, seedTarget = pgCatalog, pgCatalog
		parties = partystore.NewPostgres(db)
		pgRequests := requeststore.NewPostgres(db)
		requests, reportSource = pgRequests, pgRequests
	} else {
		log.Warn("POSTGRES_URL not set, running on in-memory stores")
		memCatalog := locstore.NewInMemory()
		catalogStore, seedTarget = memCatalog, memCatalog
		parties = partystore.NewInMemory()
		memRequests := requeststore.NewInMemory()
		requests, reportSource = memRequests, memRequests
	}
	if err := locstore.SeedCatalog(ctx, seedTarget); err != nil {
		log.Error("catalog seeding failed", "error", err)
		os.Exit(1)
	}

	var conversations conversation.Store
	if redisClient != nil {
		conversations = convstore.NewRedis(redisClient)
	} else {
		log.Warn("REDIS_URL not set, conversations will not survive restarts")
		conversations = convstore.NewInMemory()
	}

	var sender notify.Sender
	if cfg.Notify.WebhookURL != "" {
		sender = notify.NewWebhookSender(cfg.Notify.WebhookURL, cfg.Notify.Timeout)
	} else {
		log.Warn("NOTIFY_WEBHOOK_URL not set, notices go to the log")
		sender = notify.NewLogSender(log)
	}
	notifier := notify.NewDispatcher(sender, log)

	locationService := locservice.New(catalogStore, locservice.WithLogger(log))
	partyService := partyservice.New(parties,
		partyservice.WithLogger(log),
		partyservice.WithNotifier(notifier),
		partyservice.WithAuditPublisher(auditPublisher),
		partyservice.WithMetrics(partymetrics.New()),
		partyservice.WithBootstrapAdmins(cfg.Bootstrap.AdminPrincipalIDs))
	requestService := requestservice.New(requests, partyService,
		requestservice.WithLogger(log),
		requestservice.WithNotifier(notifier),
		requestservice.WithAuditPublisher(auditPublisher),
		requestservice.WithMetrics(requestmetrics.New()))
	reporter := report.New(reportSource, partyService, report.WithLogger(log))

	engine := conversation.New(conversations, conversation.Scripts(locationService),
		conversation.WithLogger(log))
	dispatcher := bot.New(engine, partyService, requestService, locationService,
		bot.WithLogger(log))

	tokens := jwtauth.New(cfg.Server.JWTSigningKey, "fixdesk", "fixdesk-ops")
	handler := httptransport.NewHandler(dispatcher, reporter, partyService, tokens, log)
	srv := httpserver.New(cfg.Server.Addr, httptransport.NewRouter(handler))

	go func() {
		log.Info("fixdesk listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("fixdesk stopped")
}
