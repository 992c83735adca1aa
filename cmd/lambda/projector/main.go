package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	log "github.com/sirupsen/logrus"

	"github.com/example/marketplace/internal/app"
	"github.com/example/marketplace/internal/config"
	"github.com/example/marketplace/internal/infrastructure/kinesis"
	"github.com/example/marketplace/internal/projection"
	"github.com/example/marketplace/internal/telemetry"
)

var (
	logger    = log.WithField("component", "lambda-projector")
	projector *projection.Projector
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
	projector = projection.NewProjector(backends.ReadStore, nil)
	logger.Info("initialized")
}

func handler(ctx context.Context, kinesisEvent events.KinesisEvent) (events.KinesisEventResponse, error) {
	resp := kinesis.Dispatch(ctx, kinesisEvent, projector.Apply)
	logger.WithFields(log.Fields{
		"records":  len(kinesisEvent.Records),
		"failures": len(resp.BatchItemFailures),
	}).Info("batch processed")
	return resp, nil
}

func main() {
	lambda.Start(handler)
}
