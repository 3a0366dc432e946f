package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/restaurant-reservation/internal/config"
	"github.com/iliyamo/restaurant-reservation/internal/cron"
	"github.com/iliyamo/restaurant-reservation/internal/database"
	"github.com/iliyamo/restaurant-reservation/internal/logger"
	"github.com/iliyamo/restaurant-reservation/internal/metrics"
	"github.com/iliyamo/restaurant-reservation/internal/queue"
	"github.com/iliyamo/restaurant-reservation/internal/repository"
)

// app holds the shared process dependencies built by every subcommand that
// touches the database.
type app struct {
	cfg  *config.Config
	logg *logger.Logger
	db   *sql.DB
	rdb  *redis.Client

	registry       *prometheus.Registry
	bookingMetrics *metrics.BookingMetrics
	cronMetrics    *metrics.CronJobMetrics

	reservations *repository.ReservationRepo
	restaurants  *repository.RestaurantRepo
	users        *repository.UserRepo
	publisher    *queue.Publisher
}

func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logg := logger.New(logger.Options{
		ServiceName: "restaurant-reservation",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
		Output:      os.Stdout,
	})
	return cfg, logg, nil
}

// newApp opens MySQL and, when requireRedis is false, tolerates Redis being
// down by running without it.
func newApp(ctx context.Context, requireRedis bool) (*app, error) {
	cfg, logg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	if cfg.DB.MigrationsAuto {
		if err := database.Migrate(ctx, db, "up"); err != nil {
			_ = db.Close()
			return nil, err
		}
		logg.Info(ctx, "migrations applied")
	}

	rdb, err := config.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		if requireRedis {
			_ = db.Close()
			return nil, err
		}
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "redis unavailable; cache, rate limit and sweep lock disabled")
		rdb = nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	users := repository.NewUserRepo(db)
	return &app{
		cfg:            cfg,
		logg:           logg,
		db:             db,
		rdb:            rdb,
		registry:       reg,
		bookingMetrics: metrics.NewBookingMetrics(reg),
		cronMetrics:    metrics.NewCronJobMetrics(reg),
		reservations:   repository.NewReservationRepo(db),
		restaurants:    repository.NewRestaurantRepo(db),
		users:          users,
		publisher:      queue.NewPublisher(cfg.RabbitMQ, users, logg),
	}, nil
}

func (a *app) Close() {
	if err := a.publisher.Close(); err != nil {
		a.logg.Warn(a.logg.WithField(context.Background(), "error", err.Error()), "close broker connection")
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	_ = a.db.Close()
}

// sweepService builds the expiry and reminder jobs behind the Redis lock.
func (a *app) sweepService() (*cron.Service, error) {
	var lock cron.Lock = cron.NoopLock{}
	if a.rdb != nil {
		l, err := cron.NewRedisLock(cron.RedisClient(a.rdb), a.cfg.Sweep.LockKey, a.cfg.Sweep.LockTTL)
		if err != nil {
			return nil, err
		}
		lock = l
	}
	loc := a.cfg.App.Location()
	now := func() time.Time { return time.Now().UTC() }

	reminders, err := cron.NewReminderJob(cron.ReminderJobParams{
		Store:       a.reservations,
		Sender:      a.publisher,
		Logger:      a.logg,
		Now:         now,
		Location:    loc,
		Window:      a.cfg.Sweep.ReminderWindow,
		SendTimeout: a.cfg.Sweep.SendTimeout,
		Concurrency: a.cfg.Sweep.Concurrency,
		Recorder:    a.bookingMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("reminder job: %w", err)
	}
	registry := cron.NewRegistry(
		cron.NewExpiryJob(a.reservations, a.logg, now, a.bookingMetrics),
		reminders,
	)
	return cron.NewService(cron.ServiceParams{
		Logger:   a.logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  a.cronMetrics,
		Interval: a.cfg.Sweep.Interval,
	})
}
