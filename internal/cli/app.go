package cli

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"posbackend/internal/clock"
	"posbackend/internal/config"
	"posbackend/internal/database"
	"posbackend/internal/events"
	"posbackend/internal/kv"
	"posbackend/internal/metrics"
	"posbackend/internal/remote"
	"posbackend/internal/store"
	"posbackend/internal/syncer"
)

// app holds the wired service components shared by every subcommand.
type app struct {
	cfg       config.Config
	logger    *zap.Logger
	clock     clock.Clock
	location  *time.Location
	metrics   *metrics.Registry
	store     *store.Store
	client    *remote.Client
	scheduler *syncer.Scheduler

	closers []func() error
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		clock:   clock.Real(),
		metrics: metrics.NewRegistry(),
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Warn("using local time zone", zap.Error(err))
	}
	a.location = loc

	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, backend.Close)

	var publisher events.Publisher = events.Nop{}
	if cfg.KafkaEnabled() {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		a.closers = append(a.closers, kp.Close)
		publisher = kp
		logger.Info("publishing order events", zap.String("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	a.store = store.New(backend, logger.Named("store"),
		store.WithPublisher(publisher),
		store.WithMetrics(a.metrics),
		store.WithNodeID(cfg.NodeID),
		store.WithClock(a.clock),
	)
	a.closers = append(a.closers, func() error {
		a.store.Shutdown()
		return nil
	})
	if err := a.store.Load(ctx); err != nil {
		a.Close()
		return nil, errors.Wrap(err, "load persisted state")
	}

	normalizer := remote.NewNormalizer(cfg.StrictSource)
	normalizer.Location = a.location
	a.client = remote.NewClient(cfg.RemoteBaseURL, cfg.RemoteTimeout, normalizer, logger.Named("remote"))

	a.scheduler = syncer.New(a.client, a.store, logger.Named("sync"),
		syncer.WithClock(a.clock),
		syncer.WithInterval(cfg.SyncInterval),
		syncer.WithFilters(remote.Filters{PerPage: cfg.RemotePerPage}),
		syncer.WithMetrics(a.metrics),
	)
	return a, nil
}

func openBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (kv.Store, error) {
	switch cfg.PersistBackend {
	case config.BackendMemory:
		logger.Warn("using in-memory persistence, state is lost on exit")
		return kv.NewMemory(), nil
	case config.BackendMongo:
		client, err := database.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, errors.Wrap(err, "connect mongo")
		}
		db := client.Database(cfg.DBName)
		logger.Info("mongo connected", zap.String("db", db.Name()))
		if err := database.EnsureStateIndexes(db, logger); err != nil {
			logger.Warn("state index warning", zap.Error(err))
		}
		return kv.NewMongo(db), nil
	default:
		backend, err := kv.NewPebble(cfg.PebbleDir)
		if err != nil {
			return nil, err
		}
		logger.Info("pebble opened", zap.String("dir", cfg.PebbleDir))
		return backend, nil
	}
}

// Close releases backends in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}
