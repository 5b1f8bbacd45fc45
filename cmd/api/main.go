package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/intake-api/internal/config"
	"github.com/jwalitptl/intake-api/internal/handler"
	appointmentHandler "github.com/jwalitptl/intake-api/internal/handler/appointment"
	authHandler "github.com/jwalitptl/intake-api/internal/handler/auth"
	briefingHandler "github.com/jwalitptl/intake-api/internal/handler/briefing"
	chatHandler "github.com/jwalitptl/intake-api/internal/handler/chat"
	"github.com/jwalitptl/intake-api/internal/handler/health"
	metricsHandler "github.com/jwalitptl/intake-api/internal/handler/metrics"
	patientHandler "github.com/jwalitptl/intake-api/internal/handler/patient"
	"github.com/jwalitptl/intake-api/internal/middleware"
	"github.com/jwalitptl/intake-api/internal/repository/postgres"
	"github.com/jwalitptl/intake-api/internal/router"
	appointmentService "github.com/jwalitptl/intake-api/internal/service/appointment"
	authService "github.com/jwalitptl/intake-api/internal/service/auth"
	briefingService "github.com/jwalitptl/intake-api/internal/service/briefing"
	chatService "github.com/jwalitptl/intake-api/internal/service/chat"
	eventService "github.com/jwalitptl/intake-api/internal/service/event"
	patientService "github.com/jwalitptl/intake-api/internal/service/patient"
	"github.com/jwalitptl/intake-api/pkg/auth"
	"github.com/jwalitptl/intake-api/pkg/llm"
	"github.com/jwalitptl/intake-api/pkg/logger"
	"github.com/jwalitptl/intake-api/pkg/metrics"
	"github.com/jwalitptl/intake-api/pkg/security"
)

const metricsNamespace = "intake"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	lg := logger.Setup(&logger.Config{
		Level:   logger.ParseLevel(cfg.Log.Level),
		Pretty:  cfg.Log.Pretty,
		Service: "intake-api",
	})
	if lg.ZL.GetLevel() > logger.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(metricsNamespace, "", registry)

	// Initialize repositories
	base := postgres.NewBaseRepository(db)
	patientRepo := postgres.NewPatientRepository(base)
	ehrRepo := postgres.NewEHRRepository(base)
	narrativeRepo := postgres.NewNarrativeRepository(base)
	conversationRepo := postgres.NewConversationRepository(base)
	briefingRepo := postgres.NewBriefingRepository(base)
	appointmentRepo := postgres.NewAppointmentRepository(base)
	outboxRepo := postgres.NewOutboxRepository(base)

	llmClient := llm.NewAnthropicClient(llm.Config{
		BaseURL:           cfg.LLM.BaseURL,
		APIKey:            cfg.LLM.APIKey,
		Model:             cfg.LLM.Model,
		Timeout:           cfg.LLM.Timeout,
		MaxRetries:        cfg.LLM.MaxRetries,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		Burst:             cfg.LLM.Burst,
	}, m, lg.WithFields(map[string]interface{}{"component": "llm"}))
	if !llmClient.Configured() {
		log.Warn().Msg("ANTHROPIC_API_KEY is not set; chat and synthesis requests will fail")
	}

	// Initialize services
	eventSvc := eventService.NewService(outboxRepo)
	patientSvc := patientService.NewService(
		patientRepo,
		ehrRepo,
		narrativeRepo,
		briefingRepo,
		cache.New(cfg.Cache.TTL, cfg.Cache.CleanupInterval),
	)
	appointmentSvc := appointmentService.NewService(appointmentRepo, patientSvc, &base, eventSvc)
	briefingSvc := briefingService.NewService(briefingRepo, patientSvc, llmClient, &base, eventSvc, m, briefingService.Options{
		MaxTokens:   cfg.LLM.SynthesisMaxTokens,
		Temperature: cfg.LLM.SynthesisTemperature,
	})
	chatSvc := chatService.NewService(conversationRepo, patientSvc, llmClient, briefingSvc, m, chatService.Options{
		MaxTokens:   cfg.LLM.ChatMaxTokens,
		Temperature: cfg.LLM.ChatTemperature,
	})

	// Initialize handlers
	apiHandlers := []router.Handler{
		patientHandler.NewHandler(patientSvc, appointmentSvc),
		appointmentHandler.NewHandler(appointmentSvc),
		chatHandler.NewHandler(chatSvc),
		briefingHandler.NewHandler(briefingSvc),
	}

	var authMiddleware *middleware.AuthMiddleware
	if cfg.Auth.Enabled {
		jwtSvc := auth.NewJWTService(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.Expiry)
		authSvc := authService.NewService(jwtSvc, security.NewBcryptHasher(bcrypt.DefaultCost), cfg.Auth.Clients)
		authMiddleware = middleware.NewAuthMiddleware(authSvc, router.AuthTokenPath)
		apiHandlers = append(apiHandlers, authHandler.NewHandler(authSvc))
		log.Info().Int("clients", len(cfg.Auth.Clients)).Msg("API authentication enabled")
	}

	// Setup router
	r, err := router.NewRouter(
		routerConfig(cfg, m),
		handler.NewHandler(),
		health.NewHandler(health.Check{Name: "database", Ping: db.PingContext}),
		metricsHandler.New(metricsNamespace, registry),
		authMiddleware,
		apiHandlers...,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build router")
	}
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("model", llmClient.Model()).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

func routerConfig(cfg *config.Config, m *metrics.Metrics) router.RouterConfig {
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.CORS.AllowedOrigins

	timeout := middleware.DefaultTimeoutConfig()
	timeout.Duration = cfg.Server.RequestTimeout
	timeout.LongDuration = cfg.Server.LLMTimeout

	sizeLimit := middleware.DefaultSizeLimitConfig()
	if cfg.Server.MaxBodySize > 0 {
		sizeLimit.MaxBodySize = cfg.Server.MaxBodySize
	}

	rc := router.RouterConfig{
		CORSConfig:      cors,
		TimeoutConfig:   timeout,
		SizeLimitConfig: sizeLimit,
		SecurityConfig:  middleware.DefaultSecurityConfig(),
		Metrics:         m,
	}
	if cfg.RateLimit.Enabled {
		rc.RateLimit = &middleware.RateLimiterConfig{
			Rate:  rate.Limit(cfg.RateLimit.RequestsPerSecond),
			Burst: cfg.RateLimit.Burst,
			TTL:   cfg.Cache.CleanupInterval,
		}
	}
	return rc
}
