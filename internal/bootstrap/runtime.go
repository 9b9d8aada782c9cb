// Package bootstrap assembles the stores, cache, locks, dispatcher, and
// services shared by the HTTP server and the admin CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"zing/internal/cache"
	"zing/internal/config"
	"zing/internal/database"
	"zing/internal/events"
	"zing/internal/keylock"
	"zing/internal/observability"
	"zing/internal/repository"
	"zing/internal/service"

	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// Migrate applies pending schema versions after connecting.
	Migrate bool
	// SyncFanout writes notifications on the publishing goroutine.
	SyncFanout bool
	// Now overrides the feed clock.
	Now    func() time.Time
	Logger *slog.Logger
}

// Runtime is the fully wired core.
type Runtime struct {
	Config *config.Config
	DB     *gorm.DB
	Cache  *cache.Cache
	Locks  *keylock.Striped

	Users         repository.UserRepository
	Follows       repository.FollowRepository
	Posts         repository.PostRepository
	Notifications repository.NotificationRepository

	Dispatcher *events.Dispatcher

	GraphService        *service.GraphService
	PostService         *service.PostService
	FeedService         *service.FeedService
	NotificationService *service.NotificationService
}

// InitRuntime connects to the database and Redis and wires the services.
// Redis is optional: an unreachable server leaves the cache disabled.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if opts.Migrate {
		if err := database.Migrate(ctx, db); err != nil {
			closeDB(db)
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}

	c := cache.Connect(ctx, cfg.RedisURL)
	return NewRuntime(cfg, db, c, opts), nil
}

// NewRuntime wires the services over already-initialized dependencies.
// Tests use it with an in-memory database and a nil or miniredis cache.
func NewRuntime(cfg *config.Config, db *gorm.DB, c *cache.Cache, opts Options) *Runtime {
	logger := opts.Logger
	if logger == nil {
		logger = observability.Logger
	}

	rt := &Runtime{
		Config:        cfg,
		DB:            db,
		Cache:         c,
		Locks:         keylock.New(cfg.LockStripes),
		Users:         repository.NewUserRepository(db),
		Follows:       repository.NewFollowRepository(db),
		Posts:         repository.NewPostRepository(db),
		Notifications: repository.NewNotificationRepository(db),
	}

	rt.NotificationService = service.NewNotificationService(rt.Notifications, c)
	rt.Dispatcher = events.NewDispatcher(rt.NotificationService, events.DispatcherConfig{
		Workers:      cfg.FanoutWorkers,
		QueueSize:    cfg.FanoutQueueSize,
		Sync:         opts.SyncFanout,
		InlineOnFull: true,
		Logger:       logger,
	})

	feedCfg := service.DefaultFeedConfig()
	if cfg.FeedPageSize > 0 {
		feedCfg.PageSize = cfg.FeedPageSize
	}
	feedCfg.TrendingWindow = cfg.TrendingWindow()
	feedCfg.TrendingTTL = cfg.TrendingCacheTTL()
	if opts.Now != nil {
		feedCfg.Now = opts.Now
	}

	rt.GraphService = service.NewGraphService(rt.Users, rt.Follows, rt.Posts, rt.Locks, rt.Dispatcher)
	rt.PostService = service.NewPostService(rt.Posts, rt.Users, rt.Locks, rt.Dispatcher)
	rt.FeedService = service.NewFeedService(rt.Posts, rt.Users, rt.Follows, c, feedCfg)
	rt.PostService.OnDelete(rt.FeedService.InvalidateTrending)
	return rt
}

// Ping checks the database and, when enabled, Redis.
func (r *Runtime) Ping(ctx context.Context) (dbErr, redisErr error) {
	sqlDB, err := r.DB.DB()
	if err != nil {
		dbErr = err
	} else {
		dbErr = sqlDB.PingContext(ctx)
	}
	if r.Cache.Enabled() {
		redisErr = r.Cache.Client().Ping(ctx).Err()
	}
	return dbErr, redisErr
}

// Close drains the dispatcher, then releases Redis and the database pool.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	if err := r.Dispatcher.Close(ctx); err != nil && !errors.Is(err, events.ErrDispatcherClosed) {
		errs = append(errs, fmt.Errorf("drain dispatcher: %w", err))
	}
	if err := r.Cache.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close redis: %w", err))
	}
	if sqlDB, err := r.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
