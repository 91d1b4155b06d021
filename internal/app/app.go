package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"equipahub-backend/docs"
	"equipahub-backend/internal/equipment"
	"equipahub-backend/internal/events"
	"equipahub-backend/internal/kafka"
	"equipahub-backend/internal/loanrequests"
	"equipahub-backend/internal/loans"
	"equipahub-backend/internal/notifications"
	"equipahub-backend/internal/platform/auth"
	"equipahub-backend/internal/platform/clock"
	"equipahub-backend/internal/platform/config"
	"equipahub-backend/internal/platform/db"
	"equipahub-backend/internal/platform/logger/sl"
	"equipahub-backend/internal/platform/metrics"
	"equipahub-backend/internal/platform/redisx"
	"equipahub-backend/internal/reservations"
	"equipahub-backend/internal/scheduler"
)

// App 各依存をまとめる
type App struct {
	Config  *config.Config
	DB      *sql.DB
	RDB     *redis.Client
	Kafka   *kafka.Producer
	Metrics *metrics.Metrics

	Equipment     *equipment.Service
	Loans         *loans.Service
	Reservations  *reservations.Service
	Requests      *loanrequests.Service
	Notifications *notifications.Service
	Scheduler     *scheduler.Scheduler

	log *slog.Logger
}

// New connects the store (and Redis/Kafka when configured) and wires every service.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	const op = "app.New"

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("connected to DB", slog.String("driver", db.DriverName(cfg.DB)), slog.String("dbname", cfg.DB.DBName))

	a := &App{Config: cfg, DB: conn, Metrics: metrics.New(), log: log}

	if cfg.Redis.Addr != "" {
		rdb, err := redisx.Connect(ctx, cfg.Redis)
		if err != nil {
			if cfg.Scheduler.Cooldown == "redis" {
				conn.Close()
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			log.Warn("redis unavailable, falling back to history cooldown", sl.Err(err))
		} else {
			a.RDB = rdb
		}
	}
	if len(cfg.Kafka.Brokers) > 0 {
		a.Kafka = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		log.Info("kafka producer ready", slog.String("topic", cfg.Kafka.Topic))
	}

	a.wire(clock.Real())
	return a, nil
}

func (a *App) wire(clk clock.Clock) {
	cfg, log, loc := a.Config, a.log, a.Config.Location()

	a.Notifications = notifications.NewService(a.DB,
		notifications.WithClock(clk), notifications.WithLogger(log), notifications.WithMetrics(a.Metrics))

	emitters := events.Multi{notifications.NewMapper(a.Notifications, auth.NewStore(a.DB), log)}
	if a.Kafka != nil {
		emitters = append(emitters, a.Kafka)
	}

	reg := equipment.NewRegister(clk)
	a.Equipment = equipment.NewService(a.DB, reg, equipment.WithClock(clk), equipment.WithLogger(log))
	a.Loans = loans.NewService(a.DB, reg,
		loans.WithClock(clk), loans.WithEmitter(emitters), loans.WithLogger(log),
		loans.WithMetrics(a.Metrics), loans.WithLocation(loc))
	a.Reservations = reservations.NewService(a.DB, reg, a.Loans,
		reservations.WithClock(clk), reservations.WithEmitter(emitters), reservations.WithLogger(log),
		reservations.WithMetrics(a.Metrics), reservations.WithLocation(loc),
		reservations.WithGraceDays(cfg.Booking.ReservationGraceDays))
	a.Requests = loanrequests.NewService(a.DB, reg, a.Loans,
		loanrequests.WithClock(clk), loanrequests.WithEmitter(emitters), loanrequests.WithLogger(log),
		loanrequests.WithMetrics(a.Metrics), loanrequests.WithLocation(loc),
		loanrequests.WithThreshold(cfg.Booking.BulkThreshold))

	var cooldown scheduler.Cooldown = scheduler.NewHistoryCooldown(a.Notifications)
	if cfg.Scheduler.Cooldown == "redis" && a.RDB != nil {
		cooldown = scheduler.NewRedisCooldown(a.RDB)
	}
	a.Scheduler = scheduler.New(a.DB, reg, a.Loans, a.Reservations, a.Notifications,
		scheduler.WithCooldown(cooldown), scheduler.WithClock(clk), scheduler.WithLogger(log),
		scheduler.WithMetrics(a.Metrics),
		scheduler.WithReminderWindow(cfg.Scheduler.ReminderWindow),
		scheduler.WithOverdueWindow(cfg.Scheduler.OverdueWindow))
}

// Router builds the gin engine with every route under /api/v1.
func (a *App) Router() *gin.Engine {
	cfg := a.Config

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	_ = r.SetTrustedProxies(nil)

	if cfg.Mode == "dev" {
		// CORS（開発中のみ必要）
		origins := cfg.HTTP.CORSOrigins
		if len(origins) == 0 {
			origins = []string{"http://localhost:3000"}
		}
		r.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length", "Location", "Content-Disposition"},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowCredentials: true,
		}))
	}

	// ヘルス
	r.GET("/healthz", func(c *gin.Context) {
		if err := a.DB.PingContext(c.Request.Context()); err != nil {
			c.String(http.StatusServiceUnavailable, "db unavailable")
			return
		}
		c.String(http.StatusOK, "ok")
	})
	r.GET("/metrics", gin.WrapH(a.Metrics.Handler()))

	docs.SwaggerInfo.BasePath = "/api/v1"
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// /api/v1
	api := r.Group("/api/v1")
	api.Use(auth.RequireAuth([]byte(cfg.Auth.JWTSecret)))
	equipment.RegisterRoutes(api, a.Equipment)
	loans.RegisterRoutes(api, a.Loans)
	reservations.RegisterRoutes(api, a.Reservations)
	loanrequests.RegisterRoutes(api, a.Requests)
	notifications.RegisterRoutes(api, a.Notifications)
	scheduler.RegisterRoutes(api, a.Scheduler, cfg.Scheduler.HoursBefore)

	return r
}

func (a *App) Close() error {
	var errs []error
	if a.Kafka != nil {
		errs = append(errs, a.Kafka.Close())
	}
	if a.RDB != nil {
		errs = append(errs, a.RDB.Close())
	}
	errs = append(errs, a.DB.Close())
	return errors.Join(errs...)
}
