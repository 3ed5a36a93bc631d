package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gleeworld/comms-gateway/internal/platform/config"
	"github.com/gleeworld/comms-gateway/internal/platform/database"
	"github.com/gleeworld/comms-gateway/internal/platform/logger"
	"github.com/gleeworld/comms-gateway/internal/platform/messagebroker"

	"github.com/gleeworld/comms-gateway/internal/comms_service/adapters/senders"
	"github.com/gleeworld/comms-gateway/internal/comms_service/app"
	"github.com/gleeworld/comms-gateway/internal/comms_service/dispatcher"
	"github.com/gleeworld/comms-gateway/internal/comms_service/repository/postgres"
	"github.com/gleeworld/comms-gateway/internal/comms_service/resolver"
	transportHTTP "github.com/gleeworld/comms-gateway/internal/comms_service/transport/http"
)

const (
	serviceName          = "comms_service"
	natsJobSubject       = "comms.jobs.send"
	natsJobQueueGroup    = "comms_send_workers"
	shutdownTimeout      = 15 * time.Second
	httpReadWriteTimeout = 30 * time.Second
)

func main() {
	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger = appLogger.With("service", serviceName)
	appLogger.Info("Starting service...")

	appLogger.Info("Configuration loaded",
		"log_level", cfg.LogLevel,
		"nats_url", cfg.NATSUrl,
		"postgres_dsn_present", cfg.PostgresDSN != "",
		"http_port", cfg.CommsServicePort,
		"dispatch_workers", cfg.DispatchWorkerCount,
	)

	dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to initialize database connection pool", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Database connection pool initialized")

	natsClient, err := messagebroker.NewNATSClient(cfg.NATSUrl, serviceName, appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to NATS", "url", cfg.NATSUrl, "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	appLogger.Info("NATS client connected", "url", cfg.NATSUrl)

	// Repositories
	commRepo := postgres.NewPgCommunicationRepository(dbPool, appLogger)
	deliveryRepo := postgres.NewPgDeliveryRepository(dbPool, appLogger)
	profileRepo := postgres.NewPgProfileRepository(dbPool, appLogger)
	boardRepo := postgres.NewPgBoardMemberRepository(dbPool, appLogger)
	notificationRepo := postgres.NewPgNotificationRepository(dbPool, appLogger)

	// Channel senders; mocks stand in when a provider is not configured.
	var emailSender senders.EmailSender = senders.NewSMTPMailer(
		cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom, appLogger)

	var bulkSender senders.BulkEmailSender
	if cfg.SendGridAPIKey != "" {
		bulkSender = senders.NewSendGridMailer(cfg.SendGridAPIKey, cfg.SendGridFromName, cfg.SendGridFromEmail, appLogger)
	} else {
		appLogger.Warn("SendGrid API key not configured, using mock bulk email sender")
		bulkSender = senders.NewMockBulkEmailSender(appLogger, "", 0)
	}

	var smsSender senders.SMSSender
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		smsSender = senders.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, appLogger)
	} else {
		appLogger.Warn("Twilio credentials not configured, using mock SMS sender")
		smsSender = senders.NewMockSMSSender(appLogger, "", 0)
	}

	// Pipeline components
	res := resolver.New(profileRepo, boardRepo, appLogger, nil)
	disp := dispatcher.New(
		deliveryRepo, profileRepo, notificationRepo,
		emailSender, bulkSender, smsSender,
		appLogger, cfg.DispatchWorkerCount, cfg.ChannelSendTimeout(), nil,
	)
	appService := app.NewCommsAppService(commRepo, res, disp, natsClient, appLogger, nil)

	if err := appService.StartConsumingJobs(mainCtx, natsJobSubject, natsJobQueueGroup); err != nil {
		appLogger.Error("Failed to start NATS job consumer", "error", err)
		os.Exit(1)
	}
	defer appService.StopConsumingJobs()

	// HTTP API
	router := chi.NewRouter()
	router.Use(chi_middleware.RequestID)
	router.Use(chi_middleware.RealIP)
	router.Use(chi_middleware.Recoverer)
	router.Use(chi_middleware.Timeout(5 * time.Minute)) // Dispatch of large sends runs in-request.

	handler := transportHTTP.NewCommunicationHandler(appService, appLogger)
	router.Route("/api/v1", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	apiServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.CommsServicePort),
		Handler:      router,
		ReadTimeout:  httpReadWriteTimeout,
		WriteTimeout: 5 * time.Minute,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: metricsMux,
	}

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		appLogger.Info("HTTP server starting", "address", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server failed to serve", "error", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		appLogger.Info("Metrics server starting", "address", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Metrics server failed to serve", "error", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		stopSignal := make(chan os.Signal, 1)
		signal.Notify(stopSignal, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-stopSignal:
			appLogger.Info("Received termination signal", "signal", sig.String())
			mainCancel()
		case <-groupCtx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("HTTP server shutdown error", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Metrics server shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Service exited with error", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Service stopped gracefully.")
}
