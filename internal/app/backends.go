// Package app opens the storage backends selected by the configuration and
// shares them between the binaries.
package app

import (
	"context"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/example/marketplace/internal/config"
	"github.com/example/marketplace/internal/infrastructure/sequence"
	"github.com/example/marketplace/internal/infrastructure/store"
)

var logger = log.WithField("component", "app")

// Backends holds the opened stores. DB is nil unless some backend lives in
// PostgreSQL.
type Backends struct {
	DB        *sqlx.DB
	ReadStore store.ReadStoreInterface
	Sequence  sequence.Generator

	cfg     *config.Config
	closers []func() error
}

// Open connects the read store and the sequence generator. The event store
// is opened separately because its publisher usually depends on the read
// store.
func Open(cfg *config.Config) (*Backends, error) {
	b := &Backends{cfg: cfg}

	if cfg.NeedsPostgres() {
		db, err := store.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		b.DB = db
		b.closers = append(b.closers, db.Close)
		logger.Info("connected to postgres")
	}

	switch cfg.ReadStore {
	case config.StorePostgres:
		b.ReadStore = store.NewPostgresReadStore(b.DB)
	default:
		b.ReadStore = store.NewReadStore()
	}

	switch cfg.Sequence {
	case config.StorePostgres:
		b.Sequence = sequence.NewPostgresGenerator(b.DB)
	case config.StoreRedis:
		client := sequence.NewRedisClient(cfg.RedisAddr)
		b.closers = append(b.closers, client.Close)
		b.Sequence = sequence.NewRedisGenerator(client, "marketplace:seq:")
	default:
		b.Sequence = sequence.NewMemoryGenerator()
	}

	logger.WithFields(log.Fields{
		"read_store": cfg.ReadStore,
		"sequence":   cfg.Sequence,
	}).Info("backends opened")
	return b, nil
}

// OpenEventStore opens the configured event store. Committed events are
// handed to publisher, which may be nil.
func (b *Backends) OpenEventStore(ctx context.Context, publisher store.Publisher) (store.EventStoreInterface, error) {
	switch b.cfg.EventStore {
	case config.StorePostgres:
		return store.NewPostgresEventStore(b.DB.DB, publisher), nil
	case config.StoreDynamo:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "load aws config")
		}
		es := store.NewDynamoEventStore(dynamodb.NewFromConfig(awsCfg), b.cfg.DynamoEventsTable, b.cfg.DynamoSnapshotsTable)
		if publisher == nil {
			return es, nil
		}
		return store.WithPublisher(es, publisher), nil
	default:
		return store.NewEventStore(publisher), nil
	}
}

// Close releases every connection in reverse opening order.
func (b *Backends) Close() error {
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}
