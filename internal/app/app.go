package app

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/newrelic"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"travel/internal/auth"
	"travel/internal/config"
	"travel/internal/gateway"
	"travel/internal/handler"
	"travel/internal/notification"
	"travel/internal/redis"
	"travel/internal/repository"
	"travel/internal/repository/memory"
	"travel/internal/repository/postgres"
	"travel/internal/service"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	QueueRedis  = "redis"
	QueueMemory = "memory"

	SinkSMTP = "smtp"
	SinkLog  = "log"
)

// ErrMissingBackend is returned when the configuration selects a backend
// whose connection was not provided.
var ErrMissingBackend = errors.New("backend not configured")

// Options are the already-opened connections the application is built on.
type Options struct {
	Config *config.Config
	Logger *zap.Logger

	// DB is required when the ledger store is postgres.
	DB *sql.DB
	// Redis is required when the notification queue is redis. It also
	// enables the listing cache, shared payment locks and idempotent replay.
	Redis *goredis.Client

	NewRelic *newrelic.Application

	// Gateway overrides the HTTP gateway client.
	Gateway service.Gateway
	// Sink overrides the configured notification sink.
	Sink notification.Sink
}

// Components is the wired application.
type Components struct {
	Store      repository.Store
	Queue      notification.Queue
	Dispatcher *notification.Dispatcher
	Tokens     *auth.TokenManager

	Users    *service.UserService
	Listings *service.ListingService
	Reviews  *service.ReviewService
	Bookings *service.BookingService
	Payments *service.PaymentService

	Router *gin.Engine
}

// Build wires stores, services, the dispatcher and the HTTP router.
func Build(opts Options) (*Components, error) {
	cfg := opts.Config
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	store, err := newStore(cfg.Server.Store, opts.DB)
	if err != nil {
		return nil, err
	}

	queue, err := newQueue(cfg.Notification.Queue, opts.Redis)
	if err != nil {
		return nil, err
	}

	var (
		locks       redis.LockStoreInterface = service.NewLocalLocker()
		cache       redis.ListingCacheInterface
		redisClient goredis.Cmdable
	)
	if opts.Redis != nil {
		locks = redis.NewLockStore(opts.Redis)
		cache = redis.NewCacheStore(opts.Redis)
		redisClient = opts.Redis
	}

	gw := opts.Gateway
	if gw == nil {
		gw = gateway.NewClient(gateway.Config{
			BaseURL:   cfg.Gateway.BaseURL,
			SecretKey: cfg.Gateway.SecretKey,
			Timeout:   cfg.Gateway.Timeout,
		}, log)
	}

	sink := opts.Sink
	if sink == nil {
		sink, err = newSink(cfg.Notification, log)
		if err != nil {
			return nil, err
		}
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)
	notifier := service.NewNotificationService(queue, log)

	payments := service.NewPaymentService(store, gw, locks, notifier, service.PaymentConfig{
		DefaultCurrency:     cfg.Payments.DefaultCurrency,
		SupportedCurrencies: cfg.Payments.SupportedCurrencies,
		GatewayTimeout:      cfg.Gateway.Timeout,
		InitializeLockTTL:   cfg.Payments.InitializeLockTTL,
		CallbackURL:         cfg.Gateway.CallbackURL,
		ReturnURL:           cfg.Gateway.ReturnURL,
	}, log)

	c := &Components{
		Store:  store,
		Queue:  queue,
		Tokens: tokens,

		Users:    service.NewUserService(store, tokens, log),
		Listings: service.NewListingService(store, cache, log),
		Reviews:  service.NewReviewService(store),
		Bookings: service.NewBookingService(store, payments, log),
		Payments: payments,
	}

	c.Dispatcher = notification.NewDispatcher(queue, notification.NewStoreRenderer(store), sink, notification.DispatcherConfig{
		Workers:      cfg.Notification.Workers,
		MaxAttempts:  cfg.Notification.MaxAttempts,
		BaseBackoff:  cfg.Notification.BaseBackoff,
		MaxBackoff:   cfg.Notification.MaxBackoff,
		PollInterval: cfg.Notification.PollInterval,
	}, log)

	c.Router = NewRouter(RouterDeps{
		UserHandler:    handler.NewUserHandler(c.Users),
		ListingHandler: handler.NewListingHandler(c.Listings, c.Reviews),
		BookingHandler: handler.NewBookingHandler(c.Bookings, c.Payments),
		PaymentHandler: handler.NewPaymentHandler(c.Payments),
		Tokens:         tokens,
		RedisClient:    redisClient,
		NewRelicApp:    opts.NewRelic,
		Logger:         log,
	})

	return c, nil
}

func newStore(kind string, db *sql.DB) (repository.Store, error) {
	switch kind {
	case StoreMemory:
		return memory.NewStore(), nil
	case StorePostgres, "":
		if db == nil {
			return nil, fmt.Errorf("postgres ledger store: %w", ErrMissingBackend)
		}
		return postgres.NewStore(db), nil
	default:
		return nil, fmt.Errorf("unknown ledger store %q", kind)
	}
}

func newQueue(kind string, client *goredis.Client) (notification.Queue, error) {
	switch kind {
	case QueueMemory:
		return notification.NewMemoryQueue(), nil
	case QueueRedis, "":
		if client == nil {
			return nil, fmt.Errorf("redis notification queue: %w", ErrMissingBackend)
		}
		return redis.NewJobQueue(client), nil
	default:
		return nil, fmt.Errorf("unknown notification queue %q", kind)
	}
}

func newSink(cfg config.NotificationConfig, log *zap.Logger) (notification.Sink, error) {
	switch cfg.Sink {
	case SinkLog:
		return notification.NewLogSink(log), nil
	case SinkSMTP, "":
		return notification.NewSMTPSink(notification.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.From,
			FromName: "Travel Bookings",
		}), nil
	default:
		return nil, fmt.Errorf("unknown notification sink %q", cfg.Sink)
	}
}
