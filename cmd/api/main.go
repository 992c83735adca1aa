package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/example/marketplace/internal/api"
	"github.com/example/marketplace/internal/app"
	"github.com/example/marketplace/internal/auth"
	"github.com/example/marketplace/internal/command"
	"github.com/example/marketplace/internal/config"
	"github.com/example/marketplace/internal/domain/user"
	"github.com/example/marketplace/internal/email"
	"github.com/example/marketplace/internal/infrastructure/kafka"
	"github.com/example/marketplace/internal/infrastructure/store"
	"github.com/example/marketplace/internal/metrics"
	"github.com/example/marketplace/internal/notification"
	"github.com/example/marketplace/internal/projection"
	"github.com/example/marketplace/internal/query"
	"github.com/example/marketplace/internal/readmodel"
	"github.com/example/marketplace/internal/telemetry"
)

var logger = log.WithField("component", "api")

func main() {
	cliApp := &cli.App{
		Name:  "marketplace-api",
		Usage: "multi-vendor marketplace order and settlement service",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply PostgreSQL schema migrations",
				Action: migrate,
			},
			{
				Name:   "replay",
				Usage:  "rebuild the read models from the event store",
				Action: replay,
			},
			{
				Name:  "create-admin",
				Usage: "register an administrator account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
					&cli.StringFlag{Name: "name", Value: "Administrator"},
				},
				Action: createAdmin,
			},
		},
		DefaultCommand: "serve",
	}

	if err := cliApp.Run(os.Args); err != nil {
		logger.WithError(err).Fatal("exit")
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := telemetry.SetupLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.CheckJWTSecret(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, "marketplace-api", cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(flushCtx); err != nil {
			logger.WithError(err).Warn("tracer shutdown")
		}
	}()

	backends, err := app.Open(cfg)
	if err != nil {
		return err
	}
	defer backends.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	workflow := metrics.NewWorkflow(reg)
	projector := projection.NewProjector(backends.ReadStore, workflow)

	// Inline projection applies events synchronously after commit; kafka
	// projection leaves it to the projector worker.
	var publisher store.Publisher = projector
	if cfg.Projection == config.ProjectionKafka {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		publisher = producer
	}

	eventStore, err := backends.OpenEventStore(ctx, publisher)
	if err != nil {
		return err
	}
	if cfg.ReadStore == config.StoreMemory && cfg.EventStore != config.StoreMemory {
		if _, _, err := app.Replay(ctx, eventStore, projector.Apply); err != nil {
			return err
		}
	}

	mailer := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom).WithTimeout(cfg.SMTPTimeout)
	cmdHandler := command.NewHandler(
		eventStore,
		backends.ReadStore,
		backends.Sequence,
		notification.NewEmailNotifier(mailer, backends.ReadStore),
		workflow,
	)
	cmdHandler.SetNotifyTimeout(cfg.NotifyTimeout)
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	router := api.NewRouter(api.RouterConfig{
		Handlers:     api.NewHandlers(cmdHandler, query.NewHandler(backends.ReadStore)),
		AuthHandlers: api.NewAuthHandlers(user.NewService(eventStore), jwtService, backends.ReadStore),
		JWTService:   jwtService,
		Metrics:      metrics.NewServerMetrics(reg, "api"),
		Gatherer:     reg,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithFields(log.Fields{
			"addr":        cfg.HTTPAddr,
			"event_store": cfg.EventStore,
			"read_store":  cfg.ReadStore,
			"projection":  cfg.Projection,
		}).Info("server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	err = g.Wait()
	cmdHandler.Wait()
	return err
}

func migrate(*cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.Migrate(db.DB); err != nil {
		return err
	}
	logger.Info("migrations applied")
	return nil
}

func replay(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	backends, err := app.Open(cfg)
	if err != nil {
		return err
	}
	defer backends.Close()

	eventStore, err := backends.OpenEventStore(c.Context, nil)
	if err != nil {
		return err
	}
	projector := projection.NewProjector(backends.ReadStore, nil)
	_, failed, err := app.Replay(c.Context, eventStore, projector.Apply)
	if err != nil {
		return err
	}
	if failed > 0 {
		return errors.Errorf("%d events could not be projected", failed)
	}
	return nil
}

func createAdmin(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	backends, err := app.Open(cfg)
	if err != nil {
		return err
	}
	defer backends.Close()

	projector := projection.NewProjector(backends.ReadStore, nil)
	eventStore, err := backends.OpenEventStore(c.Context, projector)
	if err != nil {
		return err
	}
	if cfg.ReadStore == config.StoreMemory {
		if _, _, err := app.Replay(c.Context, eventStore, projector.Apply); err != nil {
			return err
		}
	}

	addr := c.String("email")
	taken, err := emailTaken(backends.ReadStore, addr)
	if err != nil {
		return err
	}
	if taken {
		return errors.Errorf("email %s already registered", addr)
	}

	u, err := user.NewService(eventStore).RegisterAdmin(c.Context, addr, c.String("password"), c.String("name"))
	if err != nil {
		return err
	}
	logger.WithField("user_id", u.ID).Info("administrator created")
	return nil
}

func emailTaken(rs store.ReadStoreInterface, addr string) (bool, error) {
	users, err := rs.GetAll(readmodel.Users)
	if err != nil {
		return false, errors.Wrap(err, "list users")
	}
	for _, item := range users {
		if u, ok := item.(*readmodel.UserReadModel); ok && strings.EqualFold(u.Email, addr) {
			return true, nil
		}
	}
	return false, nil
}
