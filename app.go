package main

import (
	"context"
	"fmt"
	"time"

	"hospital-booking-server/internal/cache"
	"hospital-booking-server/internal/config"
	"hospital-booking-server/internal/logger"
	"hospital-booking-server/internal/metrics"
	"hospital-booking-server/internal/models"
	"hospital-booking-server/internal/notify"
	"hospital-booking-server/internal/repository"
	"hospital-booking-server/internal/repository/memory"
	"hospital-booking-server/internal/services"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	serviceName   = "hospital-booking-server"
	queueCacheTTL = 5 * time.Second
	streamMaxLen  = 10000
)

// app holds everything a command needs, built from the environment.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	store   repository.Store
	svc     *services.Services
	metrics *metrics.Metrics

	closers []func()
}

func newApp(serving bool) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		return nil, fmt.Errorf("error creating logger: %w", err)
	}
	a := &app{cfg: cfg, log: log, metrics: newMetrics(serving)}
	a.closers = append(a.closers, func() { _ = log.Sync() })

	if err := a.openStore(); err != nil {
		a.Close()
		return nil, err
	}

	deps := services.Deps{
		Store:   a.store,
		Clinic:  cfg.Clinic,
		Metrics: a.metrics,
		Log:     log,
	}
	notifiers := notify.Multi{notify.NewLogNotifier(log)}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if cfg.Redis.Addr != "" {
		client, err := connectRedis(ctx, cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, queue cache and event stream disabled", zap.Error(err))
		} else {
			a.closers = append(a.closers, func() { _ = client.Close() })
			deps.Cache = cache.NewRedisQueueCache(client, queueCacheTTL, log)
			notifiers = append(notifiers, notify.NewRedisNotifier(client, notify.DefaultStream, streamMaxLen))
		}
	}
	if cfg.MQTT.Broker != "" && serving {
		client, err := notify.ConnectMQTT(cfg.MQTT)
		if err != nil {
			log.Warn("mqtt unavailable, display boards disabled", zap.Error(err))
		} else {
			a.closers = append(a.closers, func() { client.Disconnect(250) })
			notifiers = append(notifiers, notify.NewMQTTNotifier(client))
		}
	}
	deps.Notifier = notifiers

	a.svc = services.New(deps, cfg)
	return a, nil
}

func (a *app) openStore() error {
	if a.cfg.Database.Driver == "memory" {
		a.log.Warn("using the in-memory store; data is lost on exit")
		a.store = memory.New()
		return nil
	}
	db, err := models.InitDB(models.DatabaseConfig{
		Driver: a.cfg.Database.Driver,
		DSN:    a.cfg.Database.DSN,
		Debug:  a.cfg.Log.Level == "debug",
	})
	if err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		return fmt.Errorf("error migrating database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, func() { _ = sqlDB.Close() })
	}
	a.store = repository.NewGormStore(db)
	return nil
}

// Close releases connections in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func connectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("REDIS_ADDR is not set")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

var _ notify.Subscriber = (mqtt.Client)(nil)
