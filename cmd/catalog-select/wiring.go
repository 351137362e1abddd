package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/catalog-select/internal/config"
	"github.com/Sternrassler/catalog-select/pkg/catalog"
	"github.com/Sternrassler/catalog-select/pkg/logging"
	"github.com/Sternrassler/catalog-select/pkg/selection"
)

const redisPingTimeout = 3 * time.Second

// app is the wired object graph shared by all commands.
type app struct {
	redis  *redis.Client
	client *catalog.Client
	ctl    *selection.Controller
}

// newApp connects the optional cache and builds client, retry decorator and
// controller from cfg. An unreachable Redis disables caching instead of
// failing.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := logging.NewLogger("catalog-select")
	a := &app{}

	if cfg.Redis.URL != "" {
		opts, err := cfg.RedisOptions()
		if err != nil {
			return nil, fmt.Errorf("redis options: %w", err)
		}
		rdb := redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		err = rdb.Ping(pingCtx).Err()
		cancel()

		if err != nil {
			logger.Warn().Err(err).Str("addr", opts.Addr).Msg("Redis unavailable - continuing without cache")
			_ = rdb.Close()
		} else {
			logger.Info().Str("addr", opts.Addr).Msg("Connected to Redis")
			a.redis = rdb
		}
	}

	client, err := catalog.New(cfg.ClientConfig(a.redis))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("catalog client: %w", err)
	}
	a.client = client

	fetcher := catalog.NewRetryFetcher(client, cfg.RetryConfig())

	ctl, err := selection.New(fetcher,
		selection.WithPageSize(cfg.Catalog.PageSize),
		selection.WithMaxWalkPages(cfg.Catalog.MaxWalkPages),
		selection.WithWalkPageTimeout(cfg.Catalog.WalkPageTimeout),
		selection.WithLogger(logging.NewLogger("selection-controller")),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("selection controller: %w", err)
	}
	a.ctl = ctl

	logger.Debug().
		Str("base_url", cfg.Catalog.BaseURL).
		Int("page_size", cfg.Catalog.PageSize).
		Bool("cache", a.redis != nil).
		Msg("Application wired")

	return a, nil
}

// Close releases the client and Redis connections.
func (a *app) Close() error {
	var errs []error
	if a.client != nil {
		errs = append(errs, a.client.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}
