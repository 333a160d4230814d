package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-checkout/internal/config"
	"github.com/noah-isme/toko-checkout/internal/events"
	"github.com/noah-isme/toko-checkout/internal/health"
	"github.com/noah-isme/toko-checkout/internal/lock"
	"github.com/noah-isme/toko-checkout/internal/obs"
	"github.com/noah-isme/toko-checkout/internal/order"
	"github.com/noah-isme/toko-checkout/internal/payment"
	"github.com/noah-isme/toko-checkout/internal/paytm"
	"github.com/noah-isme/toko-checkout/internal/resilience"
)

const (
	breakerMinRequests = 5
	breakerOpenFor     = 30 * time.Second
	statusBackoff      = 200 * time.Millisecond
	eventUniqueWindow  = 10 * time.Minute
	eventMaxRetry      = 10
)

// Dependencies are the clients and services shared by the API and the worker.
type Dependencies struct {
	DB        *pgxpool.Pool
	Redis     *redis.Client
	TaskRedis asynq.RedisConnOpt
	Tasks     *asynq.Client
	Orders    order.Store
	Paytm     paytm.Client
	Breaker   *resilience.Breaker
	Bus       *events.Bus
	Confirmer *payment.Confirmer

	paytmReady bool
	closers    []func() error
}

// Options tune Build for a particular binary.
type Options struct {
	// Name is reported to Postgres as application_name.
	Name         string
	RedisMetrics bool
}

// Build connects to the backing stores and assembles the payment services. Without
// DATABASE_URL orders are kept in memory.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	d := &Dependencies{}

	if cfg.UsePostgres() {
		if cfg.AutoMigrate {
			if err := order.Migrate(cfg.DatabaseURL); err != nil {
				return nil, err
			}
			logger.Info().Msg("database migrated")
		}
		pool, err := newPool(ctx, cfg.DatabaseURL, opts.Name)
		if err != nil {
			return nil, err
		}
		d.DB = pool
		d.Orders = order.PGStore{DB: pool}
		d.closers = append(d.closers, func() error { pool.Close(); return nil })
	} else {
		logger.Warn().Msg("DATABASE_URL not set, orders are kept in memory")
		d.Orders = order.NewMemoryStore()
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		d.Close(logger)
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	d.Redis = redis.NewClient(redisOpts)
	d.closers = append(d.closers, d.Redis.Close)
	if err := redisotel.InstrumentTracing(d.Redis); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if opts.RedisMetrics {
		if err := redisotel.InstrumentMetrics(d.Redis); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := d.Redis.Ping(ctx).Err(); err != nil {
		d.Close(logger)
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	d.TaskRedis, err = asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		d.Close(logger)
		return nil, fmt.Errorf("parse task redis url: %w", err)
	}
	d.Tasks = asynq.NewClient(d.TaskRedis)
	d.closers = append(d.closers, d.Tasks.Close)
	d.Bus = &events.Bus{Client: d.Tasks, MaxRetry: eventMaxRetry, Unique: eventUniqueWindow}

	d.Breaker = resilience.NewBreaker(breakerMinRequests, cfg.PaytmBreakerRatio, breakerOpenFor).
		WithTarget("paytm").
		WithLogger(logger)
	d.Paytm = newPaytmClient(cfg, d.Breaker, logger)
	d.paytmReady = cfg.PaytmConfigured()
	if !d.paytmReady {
		logger.Warn().Msg("PAYTM_MID or PAYTM_MKEY not set, payments are disabled")
	}

	d.Confirmer = &payment.Confirmer{
		Orders:  d.Orders,
		Gateway: d.Gateway(),
		Locker:  lock.Locker{R: d.Redis},
		LockTTL: cfg.ConfirmLockTTL,
		Events:  d.Bus,
		Logger:  logger.With().Str("component", "confirm").Logger(),
	}
	return d, nil
}

// Gateway returns the gateway client, or nil when credentials are missing.
func (d *Dependencies) Gateway() payment.Gateway {
	if !d.paytmReady {
		return nil
	}
	return d.Paytm
}

// Readiness probes the shared stores for the health endpoints.
func (d *Dependencies) Readiness() health.Checker {
	return readiness{db: d.DB, redis: d.Redis}
}

// Close releases connections in reverse order of creation.
func (d *Dependencies) Close(logger zerolog.Logger) {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			logger.Error().Err(err).Msg("close dependency")
		}
	}
	d.closers = nil
}

func newPool(ctx context.Context, databaseURL, name string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	if name != "" {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = name
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func newPaytmClient(cfg *config.Config, breaker *resilience.Breaker, logger zerolog.Logger) paytm.Client {
	httpClient := paytm.NewHTTPClient(cfg.PaytmTimeout)
	return paytm.Client{
		MID:         cfg.PaytmMID,
		MerchantKey: cfg.PaytmMerchantKey,
		Website:     cfg.PaytmWebsite,
		Host:        cfg.PaytmHost,
		CallbackURL: cfg.PaytmCallbackURL,
		Initiate: resilience.HTTPClient{
			Client:      httpClient,
			Breaker:     breaker,
			MaxAttempts: 1,
			Timeout:     cfg.PaytmTimeout,
			Target:      "paytm-initiate",
			Logger:      &logger,
		},
		Status: resilience.HTTPClient{
			Client:      httpClient,
			Breaker:     breaker,
			MaxAttempts: cfg.PaytmStatusRetry,
			BaseBackoff: statusBackoff,
			Jitter:      0.2,
			Timeout:     cfg.PaytmTimeout,
			Target:      "paytm-status",
			Logger:      &logger,
		},
	}
}

type readiness struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readiness) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return health.ErrSkipped
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readiness) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}
