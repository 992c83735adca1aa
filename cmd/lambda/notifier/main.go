package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	log "github.com/sirupsen/logrus"

	"github.com/example/marketplace/internal/app"
	"github.com/example/marketplace/internal/config"
	"github.com/example/marketplace/internal/email"
	"github.com/example/marketplace/internal/infrastructure/kinesis"
	"github.com/example/marketplace/internal/notification"
	"github.com/example/marketplace/internal/telemetry"
)

var (
	logger   = log.WithField("component", "lambda-notifier")
	notifier *notification.Handler
)

func init() {
	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("load config")
	}
	if err := telemetry.SetupLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		logger.WithError(err).Fatal("setup logging")
	}
	backends, err := app.Open(cfg)
	if err != nil {
		logger.WithError(err).Fatal("open backends")
	}
	notifier = notification.NewHandler(
		email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom).WithTimeout(cfg.SMTPTimeout),
		backends.ReadStore,
	)
	logger.Info("initialized")
}

func handler(ctx context.Context, kinesisEvent events.KinesisEvent) (events.KinesisEventResponse, error) {
	resp := kinesis.Dispatch(ctx, kinesisEvent, notifier.Handle)
	logger.WithFields(log.Fields{
		"records":  len(kinesisEvent.Records),
		"failures": len(resp.BatchItemFailures),
	}).Info("batch processed")
	return resp, nil
}

func main() {
	lambda.Start(handler)
}
