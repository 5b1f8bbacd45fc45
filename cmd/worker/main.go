package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/intake-api/internal/config"
	"github.com/jwalitptl/intake-api/internal/email"
	"github.com/jwalitptl/intake-api/internal/handler/health"
	metricsHandler "github.com/jwalitptl/intake-api/internal/handler/metrics"
	"github.com/jwalitptl/intake-api/internal/middleware"
	"github.com/jwalitptl/intake-api/internal/repository/postgres"
	"github.com/jwalitptl/intake-api/internal/worker"
	"github.com/jwalitptl/intake-api/pkg/logger"
	"github.com/jwalitptl/intake-api/pkg/messaging"
	"github.com/jwalitptl/intake-api/pkg/messaging/redis"
	"github.com/jwalitptl/intake-api/pkg/metrics"
	pkgworker "github.com/jwalitptl/intake-api/pkg/worker"
)

const metricsNamespace = "intake_worker"

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	lg := logger.Setup(&logger.Config{
		Level:   logger.ParseLevel(cfg.Log.Level),
		Pretty:  cfg.Log.Pretty,
		Service: "intake-worker",
	})
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	broker := newBroker(ctx, cfg)
	defer broker.Close()

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(metricsNamespace, "", registry)

	outboxRepo := postgres.NewOutboxRepository(postgres.NewBaseRepository(db))
	processor := pkgworker.NewOutboxProcessor(
		outboxRepo,
		broker,
		cfg.Outbox.ToWorkerConfig(),
		lg.WithFields(map[string]interface{}{"component": "outbox_processor"}),
		m,
	)

	srv := healthServer(cfg.Worker.HealthPort, registry, m,
		health.Check{Name: "database", Ping: db.PingContext},
		health.Check{Name: "broker", Ping: broker.Ping},
	)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Health check server failed")
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()

	if cfg.SMTP.Enabled() {
		sender := email.NewSMTPSender(email.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
		notifier := worker.NewNotifier(broker, sender, cfg.SMTP.NotifyTo, lg, m)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := notifier.Start(ctx); err != nil {
				log.Error().Err(err).Msg("Notifier stopped")
			}
		}()
	} else {
		log.Info().Msg("SMTP not configured; briefing notifications disabled")
	}

	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Health server forced to shutdown")
	}
}

// newBroker connects to Redis when a URL is configured. Without one the
// processor and notifier share an in-process broker.
func newBroker(ctx context.Context, cfg *config.Config) messaging.Broker {
	if cfg.Redis.URL == "" {
		log.Warn().Msg("No Redis URL configured; events stay in process")
		return messaging.NewMemoryBroker()
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	broker, err := redis.NewRedisBroker(connectCtx, cfg.Redis.ToBrokerConfig(), &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Redis broker")
	}
	return broker
}

func healthServer(port int, registry *prometheus.Registry, m *metrics.Metrics, checks ...health.Check) *http.Server {
	engine := gin.New()
	engine.Use(middleware.Recovery(m))

	metricsH := metricsHandler.New(metricsNamespace, registry)
	engine.Use(metricsH.Middleware())
	health.NewHandler(checks...).RegisterRoutes(engine)
	engine.GET("/metrics", metricsH.Handler())

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
