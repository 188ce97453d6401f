package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/practice-api/internal/config"
	"github.com/jwalitptl/practice-api/internal/email"
	anamnesishandler "github.com/jwalitptl/practice-api/internal/handler/anamnesis"
	appointmenthandler "github.com/jwalitptl/practice-api/internal/handler/appointment"
	"github.com/jwalitptl/practice-api/internal/handler/health"
	patienthandler "github.com/jwalitptl/practice-api/internal/handler/patient"
	pricinghandler "github.com/jwalitptl/practice-api/internal/handler/pricing"
	sessionhandler "github.com/jwalitptl/practice-api/internal/handler/session"
	"github.com/jwalitptl/practice-api/internal/middleware"
	"github.com/jwalitptl/practice-api/internal/router"
	anamnesissvc "github.com/jwalitptl/practice-api/internal/service/anamnesis"
	appointmentsvc "github.com/jwalitptl/practice-api/internal/service/appointment"
	"github.com/jwalitptl/practice-api/internal/service/notification"
	patientsvc "github.com/jwalitptl/practice-api/internal/service/patient"
	pricingsvc "github.com/jwalitptl/practice-api/internal/service/pricing"
	sessionsvc "github.com/jwalitptl/practice-api/internal/service/session"
	"github.com/jwalitptl/practice-api/pkg/auth"
	"github.com/jwalitptl/practice-api/pkg/logger"
	"github.com/jwalitptl/practice-api/pkg/messaging/redis"
	"github.com/jwalitptl/practice-api/pkg/metrics"
	"github.com/jwalitptl/practice-api/pkg/worker"
)

const notificationTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(metricsNamespace)
	if err := m.Register(registry); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	store, err := openStore(ctx, cfg, m)
	if err != nil {
		return err
	}
	defer store.Close()

	checks := map[string]health.Pinger{"store": store}
	if cfg.Redis.Enabled() {
		broker, err := redis.NewRedisBroker(ctx, cfg.Redis.ToBrokerConfig(), &log.ZL, m)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer broker.Close()
		checks["redis"] = broker

		if cfg.Outbox.Enabled {
			processor, err := worker.NewOutboxProcessor(store, broker, cfg.Outbox.ToWorkerConfig(cfg.Redis.ChannelPrefix), log.With("component", "outbox_relay"), m)
			if err != nil {
				return fmt.Errorf("invalid outbox config: %w", err)
			}
			go processor.Start(ctx)
			go worker.NewOutboxCleanupWorker(store.Outbox(), cfg.Outbox.Retention, cfg.Outbox.CleanupInterval, log).Start(ctx)
		}
	}

	tokens, err := auth.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	if err != nil {
		return err
	}

	notifier := notification.NewService(email.New(cfg.SMTP), notificationTimeout)
	defer notifier.Wait()

	appointments := appointmentsvc.NewService(store, appointmentsvc.Config{
		DefaultDuration: cfg.Practice.DefaultSessionDuration,
		DefaultPrice:    cfg.Practice.DefaultSessionPrice,
		Location:        cfg.Practice.Location(),
	}, notifier, m)

	handlers := []router.Handler{
		patienthandler.NewHandler(patientsvc.NewService(store, cfg.Practice.Location())),
		anamnesishandler.NewHandler(anamnesissvc.NewService(store)),
		pricinghandler.NewHandler(pricingsvc.NewService(store, cfg.Practice.DefaultSessionPrice)),
		sessionhandler.NewHandler(sessionsvc.NewService(store, cfg.Practice.DefaultSessionDuration)),
		appointmenthandler.NewHandler(appointments),
	}

	routerCfg := router.RouterConfig{
		Debug:          cfg.Server.Debug,
		RequestTimeout: cfg.Server.Timeout,
	}
	if cfg.RateLimit.Enabled {
		routerCfg.RateLimit = &middleware.RateLimiterConfig{
			RPS:     cfg.RateLimit.RequestsPerSecond,
			Burst:   cfg.RateLimit.Burst,
			IdleTTL: cfg.RateLimit.IdleTTL,
		}
	}
	r := router.NewRouter(middleware.NewAuthMiddleware(tokens), health.NewHandler(checks), handlers, m, registry, routerCfg)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server exited")
	return nil
}
