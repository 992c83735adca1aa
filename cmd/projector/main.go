package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/example/marketplace/internal/app"
	"github.com/example/marketplace/internal/config"
	"github.com/example/marketplace/internal/infrastructure/kafka"
	"github.com/example/marketplace/internal/metrics"
	"github.com/example/marketplace/internal/projection"
	"github.com/example/marketplace/internal/telemetry"
)

var logger = log.WithField("component", "projector-worker")

func main() {
	if err := run(); err != nil {
		logger.WithError(err).Fatal("exit")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := telemetry.SetupLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backends, err := app.Open(cfg)
	if err != nil {
		return err
	}
	defer backends.Close()

	reg := prometheus.NewRegistry()
	projector := projection.NewProjector(backends.ReadStore, metrics.NewWorkflow(reg))

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, "marketplace-projector")
	defer consumer.Close()

	metricsServer := &http.Server{
		Addr:              ":9101",
		Handler:           metrics.Handler(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("topic", cfg.KafkaTopic).Info("consuming")
		if err := consumer.Consume(gctx, projector.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "metrics server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
