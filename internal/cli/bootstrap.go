package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/config"
	"storefront/internal/apiclient"
	"storefront/internal/app"
	"storefront/internal/broker"
	"storefront/internal/cart"
	"storefront/internal/catalog"
	"storefront/internal/redisclient"
	"storefront/internal/session"
	"storefront/internal/store"
	"storefront/internal/util"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// runtime is a fully wired storefront. Commands build one, act on App and
// call close when done.
type runtime struct {
	cfg     *config.Config
	app     *app.App
	client  *apiclient.Client
	persist *store.Persistent
	events  *broker.ActivityPublisher
	tracer  *sdktrace.TracerProvider
	logger  *zap.Logger
}

func bootstrap(ctx context.Context) (*runtime, error) {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Observ.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger := util.GetLogger()

	tp, err := util.InitTracer("storefront", cfg.Observ.JaegerEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	pricing, err := cart.ParsePricing(cfg.Business.TaxRate, cfg.Business.FlatShippingRate)
	if err != nil {
		return nil, err
	}

	kv, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	persist := store.NewPersistent(kv)

	client := apiclient.New(cfg.API.BaseURL, cfg.API.Timeout)
	sessions := session.NewManager(client, persist)
	client.Use(sessions)

	engine := cart.NewEngine(client, sessions, persist, pricing)

	var events *broker.ActivityPublisher
	if cfg.Kafka.Enabled() {
		events = broker.NewActivityPublisher(broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicActivity))
		sessions.WithEvents(events)
		engine.WithEvents(events)
		logger.Debug("Activity events enabled", zap.String("topic", cfg.Kafka.TopicActivity))
	}

	a := app.New(app.Deps{
		Backend:   client,
		Sessions:  sessions,
		Cart:      engine,
		Catalog:   catalog.New(client),
		BannerTTL: cfg.Business.BannerTTL,
	})
	a.Start(ctx)

	return &runtime{
		cfg:     cfg,
		app:     a,
		client:  client,
		persist: persist,
		events:  events,
		tracer:  tp,
		logger:  logger,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.KV, error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		return store.OpenSQLite(ctx, cfg.Store.Path, cfg.Store.Namespace)
	case config.BackendPostgres:
		return store.OpenPostgres(ctx, cfg.Database.URL, cfg.Store.Namespace)
	case config.BackendRedis:
		return redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Store.Namespace)
	case config.BackendMemory:
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func (r *runtime) close() error {
	var errs []error
	if r.events != nil {
		if err := r.events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close activity publisher: %w", err))
		}
	}
	if err := r.persist.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close store: %w", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.tracer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shut down tracer: %w", err))
	}

	util.SyncLogger()
	return errors.Join(errs...)
}

// withRuntime bootstraps, runs fn and tears down
func withRuntime(ctx context.Context, fn func(*runtime) error) error {
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	runErr := fn(rt)
	if err := rt.close(); err != nil {
		rt.logger.Warn("Shutdown incomplete", zap.Error(err))
	}
	return runErr
}
