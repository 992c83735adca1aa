package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/example/marketplace/internal/app"
	"github.com/example/marketplace/internal/config"
	"github.com/example/marketplace/internal/email"
	"github.com/example/marketplace/internal/infrastructure/kafka"
	"github.com/example/marketplace/internal/notification"
	"github.com/example/marketplace/internal/telemetry"
)

var logger = log.WithField("component", "notifier-worker")

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

	mailer := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom).WithTimeout(cfg.SMTPTimeout)
	handler := notification.NewHandler(mailer, backends.ReadStore)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, "marketplace-notifier")
	defer consumer.Close()

	logger.WithFields(log.Fields{
		"topic": cfg.KafkaTopic,
		"smtp":  cfg.SMTPHost + ":" + cfg.SMTPPort,
	}).Info("consuming")
	if err := consumer.Consume(ctx, handler.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("stopped")
	return nil
}
