// eventsd is the embedding process: it owns configuration, logging, the
// Postgres connection pool, and the admin HTTP surface in front of the
// scheduler core, which itself takes no environment variables.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arjunbhagat/eventsched/config"
	"github.com/arjunbhagat/eventsched/internal/activationqueue"
	"github.com/arjunbhagat/eventsched/internal/catalog"
	"github.com/arjunbhagat/eventsched/internal/email"
	"github.com/arjunbhagat/eventsched/internal/facade"
	"github.com/arjunbhagat/eventsched/internal/health"
	"github.com/arjunbhagat/eventsched/internal/infrastructure/postgres"
	ctxlog "github.com/arjunbhagat/eventsched/internal/log"
	"github.com/arjunbhagat/eventsched/internal/metrics"
	"github.com/arjunbhagat/eventsched/internal/notifier"
	"github.com/arjunbhagat/eventsched/internal/schedulerloop"
	httptransport "github.com/arjunbhagat/eventsched/internal/transport/http"
	"github.com/arjunbhagat/eventsched/internal/transport/http/handler"
	"github.com/arjunbhagat/eventsched/internal/workerpool"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()
	logger.Info("db connected")

	metrics.Register()
	checker := health.NewChecker(pool, logger, prometheus.DefaultRegisterer)

	var gateway catalog.Gateway = postgres.NewEventRepository(pool)
	queue := activationqueue.New()
	invoker := workerpool.NewHTTPInvoker()

	var notify workerpool.Notifier
	if cfg.NotifyEnabled {
		sender := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)
		notify = notifier.New(sender, logger)
	}

	wpool := workerpool.New(gateway, queue, invoker, notify, logger, cfg.WorkerCount)
	loop := schedulerloop.New(queue, wpool, logger, time.Duration(cfg.PollIntervalSec)*time.Second)
	eventsFacade := facade.New(gateway, queue, loop)

	if err := eventsFacade.Start(ctx); err != nil {
		logger.Error("scheduler failed to start", "error", err)
	}

	eventsHandler := handler.NewEventsHandler(eventsFacade, logger)

	srv := http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httptransport.NewRouter(logger, eventsHandler, checker, []byte(cfg.AdminJWTSecret)),
	}

	metricsSrv := metrics.NewServer(":" + cfg.MetricsPort)

	go func() {
		logger.Info("admin server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	eventsFacade.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("event scheduler shut down")
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
