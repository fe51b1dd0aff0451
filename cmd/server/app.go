package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"dronewatch/internal/drone/feed"
	"dronewatch/internal/geofence"
	"dronewatch/internal/owner/directory"
	"dronewatch/internal/platform/config"
	"dronewatch/internal/platform/httpserver"
	"dronewatch/internal/platform/kafka"
	"dronewatch/internal/platform/logger"
	platformmetrics "dronewatch/internal/platform/metrics"
	"dronewatch/internal/platform/postgres"
	redisclient "dronewatch/internal/platform/redis"
	"dronewatch/internal/reconcile"
	reconcilemetrics "dronewatch/internal/reconcile/metrics"
	"dronewatch/internal/scheduler"
	httptransport "dronewatch/internal/transport/http"
	"dronewatch/internal/violation/outbox"
	"dronewatch/internal/violation/store"
)

// violationStore is what the job and the API need from either backend.
type violationStore interface {
	reconcile.Store
	httptransport.ViolationReader
	EnsureSchema(ctx context.Context) error
}

type app struct {
	cfg    config.Config
	logger *slog.Logger

	db       *sql.DB
	redis    *redisclient.Client
	producer *kafka.Producer

	feed      *feed.Client
	store     violationStore
	scheduler *scheduler.Scheduler
	relay     *outbox.Relay
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	a := &app{cfg: cfg, logger: log}
	if err := a.initStorage(ctx); err != nil {
		a.close()
		return nil, err
	}
	if err := a.initPipeline(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) initStorage(ctx context.Context) error {
	if a.cfg.Database.URL == "" {
		a.logger.Warn("DATABASE_URL not set, violations are kept in memory")
		a.store = store.NewInMemory()
		return nil
	}

	db, err := postgres.ConnectWithRetry(ctx, a.cfg.Database.URL, a.cfg.Database.ConnectAttempts, a.cfg.Database.ConnectDelay, a.logger)
	if err != nil {
		return err
	}
	a.db = db

	var opts []store.PostgresOption
	if a.cfg.OutboxEnabled() {
		opts = append(opts, store.WithPostgresOutbox())
	}
	pg := store.NewPostgres(db, opts...)
	if err := pg.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	a.store = pg

	if a.cfg.OutboxEnabled() {
		if err := a.initRelay(ctx, pg); err != nil {
			return err
		}
	} else if len(a.cfg.Kafka.Brokers) > 0 {
		a.logger.Warn("KAFKA_BROKERS ignored without DATABASE_URL")
	}
	return nil
}

func (a *app) initRelay(ctx context.Context, pg *store.PostgresStore) error {
	producer, err := kafka.NewProducer(a.cfg.Kafka.Brokers, a.cfg.Kafka.ViolationsTopic)
	if err != nil {
		return err
	}
	a.producer = producer
	if err := producer.EnsureTopic(ctx, 1, 1); err != nil {
		return err
	}

	relay, err := outbox.New(pg, producer, a.logger,
		outbox.WithInterval(a.cfg.Kafka.OutboxPollInterval),
		outbox.WithBatchSize(a.cfg.Kafka.OutboxBatchSize),
		outbox.WithMetrics(outbox.NewMetrics()),
	)
	if err != nil {
		return fmt.Errorf("create outbox relay: %w", err)
	}
	a.relay = relay
	return nil
}

func (a *app) initPipeline(ctx context.Context) error {
	feedClient, err := feed.New(a.cfg.Feed.URL, a.logger, feed.WithTimeout(a.cfg.Feed.Timeout))
	if err != nil {
		return fmt.Errorf("create feed client: %w", err)
	}
	a.feed = feedClient

	if a.cfg.Owner.URLTemplate == "" {
		a.logger.Warn("USERS_API_URL_TEMPLATE not set, reconciliation ticks will abort")
	}
	ownerOpts := []directory.Option{directory.WithTimeout(a.cfg.Owner.Timeout)}
	if a.cfg.Owner.RatePerSecond > 0 {
		ownerOpts = append(ownerOpts, directory.WithRateLimit(a.cfg.Owner.RatePerSecond))
	}
	owners, err := directory.New(a.cfg.Owner.URLTemplate, a.logger, ownerOpts...)
	if err != nil {
		return fmt.Errorf("create owner directory client: %w", err)
	}

	job, err := reconcile.New(feedClient, owners, a.store, a.logger,
		reconcile.WithZone(geofence.NewZone(a.cfg.NFZ.Radius)),
		reconcile.WithTimeout(a.cfg.Reconcile.Timeout),
		reconcile.WithConcurrency(a.cfg.Owner.Concurrency),
		reconcile.WithMetrics(reconcilemetrics.New()),
		reconcile.WithTracer(otel.Tracer("dronewatch/reconcile")),
	)
	if err != nil {
		return fmt.Errorf("create reconcile job: %w", err)
	}

	schedOpts := []scheduler.Option{
		scheduler.WithInterval(a.cfg.Reconcile.Interval),
		scheduler.WithTickTimeout(a.cfg.Reconcile.Timeout),
		scheduler.WithMetrics(scheduler.NewMetrics()),
	}
	redis, err := redisclient.New(ctx, a.cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redis != nil {
		a.redis = redis
		schedOpts = append(schedOpts, scheduler.WithLocker(scheduler.NewRedisLocker(redis.Client)))
	}
	a.scheduler, err = scheduler.New("reconcile", job, a.logger, schedOpts...)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	return nil
}

// serve runs the HTTP API, and the scheduler and relay when withWorker is set,
// until ctx is cancelled.
func (a *app) serve(ctx context.Context, withWorker bool) error {
	if a.cfg.NFZ.Secret == "" {
		a.logger.Warn("NFZ_SECRET_KEY not set, /nfz rejects every request")
	}
	handler := httptransport.New(a.feed, a.store, a.cfg.NFZ.QueryWindow, a.logger)
	router := httptransport.NewRouter(handler, a.cfg.NFZ.Secret, platformmetrics.NewHTTP(), a.logger)
	srv := httpserver.New(a.cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	if withWorker {
		g.Go(func() error { return a.work(gctx) })
	}
	g.Go(func() error {
		a.logger.Info("starting dronewatch", "addr", a.cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// work runs the scheduler and, when configured, the outbox relay.
func (a *app) work(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error {
		a.scheduler.Start(ctx)
		return nil
	})
	if a.relay != nil {
		g.Go(func() error { return a.relay.Run(ctx) })
	}
	return g.Wait()
}

func (a *app) close() {
	if a.producer != nil {
		a.producer.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close database", "error", err)
		}
	}
}
