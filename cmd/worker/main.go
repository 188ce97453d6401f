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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/practice-api/internal/config"
	"github.com/jwalitptl/practice-api/internal/repository/postgres"
	"github.com/jwalitptl/practice-api/pkg/logger"
	"github.com/jwalitptl/practice-api/pkg/messaging/redis"
	"github.com/jwalitptl/practice-api/pkg/metrics"
	"github.com/jwalitptl/practice-api/pkg/worker"
)

func main() {
	var configPath, healthAddr string
	cmd := &cobra.Command{
		Use:           "practice-worker",
		Short:         "Relay committed domain events from the outbox to Redis",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			l := logger.FromSettings(cfg.Log.Level, cfg.Log.Console)
			log.Logger = l.ZL

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, l, healthAddr)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config.yml")
	cmd.Flags().StringVar(&healthAddr, "health-addr", ":8081", "listen address for health and metrics")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, l *logger.Logger, healthAddr string) error {
	if cfg.Database.Driver != "postgres" {
		return fmt.Errorf("the relay needs the postgres driver, got %q", cfg.Database.Driver)
	}
	if !cfg.Redis.Enabled() {
		return errors.New("redis.url is required")
	}

	registry := prometheus.NewRegistry()
	m := metrics.New("practice_worker")
	if err := m.Register(registry); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	store, err := postgres.NewStore(ctx, db, m)
	if err != nil {
		db.Close()
		return err
	}
	defer store.Close()

	broker, err := redis.NewRedisBroker(ctx, cfg.Redis.ToBrokerConfig(), &l.ZL, m)
	if err != nil {
		return fmt.Errorf("failed to create redis broker: %w", err)
	}
	defer broker.Close()

	processor, err := worker.NewOutboxProcessor(store, broker, cfg.Outbox.ToWorkerConfig(cfg.Redis.ChannelPrefix), l.With("component", "outbox_relay"), m)
	if err != nil {
		return fmt.Errorf("invalid outbox config: %w", err)
	}

	srv := healthServer(healthAddr, registry, func(ctx context.Context) error {
		if err := store.Ping(ctx); err != nil {
			return err
		}
		return broker.Ping(ctx)
	})
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error(err, "health server failed")
		}
	}()

	go worker.NewOutboxCleanupWorker(store.Outbox(), cfg.Outbox.Retention, cfg.Outbox.CleanupInterval, l).Start(ctx)

	l.Info("outbox relay started", "poll_interval", cfg.Outbox.PollInterval.String())
	processor.Start(ctx)
	l.Info("outbox relay stopped")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func healthServer(addr string, gatherer prometheus.Gatherer, ready func(context.Context) error) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := ready(ctx); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}
