package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"travel/internal/app"
	"travel/internal/config"
	"travel/internal/logger"
)

const connectTimeout = 10 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:           "travel",
		Short:         "Travel booking backend: listings, bookings and payments",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runtime holds the process-wide connections shared by every command.
type runtime struct {
	cfg   *config.Config
	log   *zap.Logger
	nrApp *newrelic.Application
	db    *sql.DB
	redis *redis.Client
}

// openRuntime opens only the backends the command needs.
func openRuntime(cfg *config.Config, needDB, needRedis bool) (*runtime, error) {
	log, err := logger.New(cfg.Log.Path, cfg.Log.Debug)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	rt := &runtime{cfg: cfg, log: log}

	// New Relic goes first so the database and Redis clients are instrumented.
	rt.nrApp = app.NewNewRelicApp(cfg.NewRelic, log)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if needDB {
		rt.db, err = app.NewDatabase(ctx, cfg.Database, rt.nrApp)
		if err != nil {
			rt.close()
			return nil, err
		}
		log.Info("connected to PostgreSQL", zap.String("host", cfg.Database.Host))
	}

	if needRedis {
		rt.redis, err = app.NewRedisClient(ctx, cfg.Redis, rt.nrApp)
		if err != nil {
			rt.close()
			return nil, err
		}
		log.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	return rt, nil
}

func (rt *runtime) build() (*app.Components, error) {
	return app.Build(app.Options{
		Config:   rt.cfg,
		Logger:   rt.log,
		DB:       rt.db,
		Redis:    rt.redis,
		NewRelic: rt.nrApp,
	})
}

func (rt *runtime) close() {
	if rt.redis != nil {
		_ = rt.redis.Close()
	}
	if rt.db != nil {
		_ = rt.db.Close()
	}
	if rt.nrApp != nil {
		rt.nrApp.Shutdown(5 * time.Second)
	}
	_ = rt.log.Sync()
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func usesPostgres(cfg *config.Config) bool {
	return cfg.Server.Store == app.StorePostgres || cfg.Server.Store == ""
}

func usesRedis(cfg *config.Config) bool {
	return cfg.Notification.Queue == app.QueueRedis || cfg.Notification.Queue == ""
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// errNoSharedQueue is returned when a standalone worker would consume a
// queue no other process can write to.
var errNoSharedQueue = errors.New("worker needs NOTIFY_QUEUE=redis")
