// Package setup wires the cbrates components out of the application configuration
package setup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/sig-0/cbrates/cache"
	"github.com/sig-0/cbrates/cmd/env"
	"github.com/sig-0/cbrates/config"
	"github.com/sig-0/cbrates/dispatch"
	"github.com/sig-0/cbrates/metrics"
	"github.com/sig-0/cbrates/provider/cbr"
	"github.com/sig-0/cbrates/queue"
	"github.com/sig-0/cbrates/queue/amqp"
	queuememory "github.com/sig-0/cbrates/queue/memory"
	"github.com/sig-0/cbrates/rates"
	"github.com/sig-0/cbrates/storage"
	"github.com/sig-0/cbrates/storage/bolt"
	"github.com/sig-0/cbrates/storage/memory"
	"github.com/sig-0/cbrates/storage/redis"
	"github.com/sig-0/cbrates/storage/sql"
)

const (
	feedBackoff = 500 * time.Millisecond
	pingTimeout = 5 * time.Second
)

// purger is implemented by backends that do not expire entries natively
type purger interface {
	Purge(ctx context.Context) (int, error)
}

// App holds the wired components.
// Resources it acquires are released by Close
type App struct {
	Orchestrator *dispatch.Orchestrator
	Registry     *prometheus.Registry

	storage storage.Storage
	logger  *slog.Logger
	closers []func() error
}

// New wires the components described by the configuration
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Registry: prometheus.NewRegistry(),
		logger:   logger,
	}

	if err := app.wire(ctx, cfg); err != nil {
		// Release whatever was acquired before the failure
		_ = app.Close()

		return nil, err
	}

	return app, nil
}

func (a *App) wire(ctx context.Context, cfg *config.Config) error {
	var (
		logger = a.logger
		err    error
	)

	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := metrics.New(a.Registry)

	a.storage, err = a.openStorage(ctx, cfg.Cache)
	if err != nil {
		return err
	}

	rateCache := cache.New(
		a.storage,
		cache.WithTTL(cfg.Cache.TTL),
		cache.WithLogger(logger),
		cache.WithMetrics(m),
	)

	feed := cbr.NewClient(
		cfg.Feed.URL,
		cbr.WithTimeout(cfg.Feed.Timeout),
		cbr.WithRetries(cfg.Feed.Retries, feedBackoff),
		cbr.WithLogger(logger),
		cbr.WithMetrics(m),
	)

	resolver := rates.New(feed, rateCache, rates.WithLogger(logger))

	q, err := a.openQueue(cfg.Queue)
	if err != nil {
		return err
	}

	a.Orchestrator = dispatch.New(
		resolver,
		q,
		dispatch.WithLogger(logger),
		dispatch.WithQueueName(cfg.Queue.Name),
		dispatch.WithPollWait(cfg.Queue.PollWait),
		dispatch.WithMaxWait(cfg.Queue.MaxWait),
		dispatch.WithMetrics(m),
	)

	return nil
}

// openStorage opens the configured cache backend
func (a *App) openStorage(ctx context.Context, cfg config.CacheConfig) (storage.Storage, error) {
	switch cfg.Backend {
	case config.CacheBolt:
		s, err := bolt.Open(cfg.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("unable to open bolt cache: %w", err)
		}

		a.closers = append(a.closers, s.Close)

		return s, nil
	case config.CacheRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		s := redis.NewStorage(client)
		a.closers = append(a.closers, s.Close)

		pingCtx, cancelFn := context.WithTimeout(ctx, pingTimeout)
		defer cancelFn()

		if err := client.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("unable to reach redis (ping): %w", err)
		}

		return s, nil
	case config.CacheSQL:
		dsn := os.Getenv(env.Prefix + env.DBURLSuffix)
		if dsn == "" {
			return nil, fmt.Errorf("missing %s", env.Prefix+env.DBURLSuffix)
		}

		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("unable to open DB connection: %w", err)
		}

		a.closers = append(a.closers, func() error {
			pool.Close()

			return nil
		})

		pingCtx, cancelFn := context.WithTimeout(ctx, pingTimeout)
		defer cancelFn()

		if err := pool.Ping(pingCtx); err != nil {
			return nil, fmt.Errorf("unable to reach DB (ping): %w", err)
		}

		a.logger.Info("DB ping success")

		return sql.NewStorage(pool), nil
	default:
		return memory.NewStorage(), nil
	}
}

// openQueue opens the configured job queue
func (a *App) openQueue(cfg config.QueueConfig) (queue.Queue, error) {
	var q queue.Queue

	switch cfg.Backend {
	case config.QueueAMQP:
		aq, err := amqp.Dial(cfg.URL, amqp.WithLogger(a.logger))
		if err != nil {
			return nil, err
		}

		q = aq
	default:
		q = queuememory.New(queuememory.WithLogger(a.logger))
	}

	a.closers = append(a.closers, q.Close)

	return q, nil
}

// RunPurge periodically drops expired cache entries,
// for backends that do not expire them natively [BLOCKING]
func (a *App) RunPurge(ctx context.Context, interval time.Duration) error {
	p, ok := a.storage.(purger)
	if !ok {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			removed, err := p.Purge(ctx)
			if err != nil {
				a.logger.Error(
					"unable to purge expired rates",
					"err", err,
				)

				continue
			}

			a.logger.Debug(
				"purged expired rates",
				"removed", removed,
			)
		}
	}
}

// Close releases the acquired resources, in reverse order
func (a *App) Close() error {
	var errs []error

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}

	a.closers = nil

	return errors.Join(errs...)
}

// NewLogger creates a text logger writing to w, at the given level
// (debug, info, warn, error)
func NewLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level

	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: lvl,
	})), nil
}

// LoadConfig reads the configuration at path,
// falling back to the defaults when no path is given
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}

	cfg, err := config.Read(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read config, %w", err)
	}

	return cfg, nil
}
