package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hiveride/dispatch/internal/dispatch"
	"github.com/hiveride/dispatch/internal/notify"
	"github.com/hiveride/dispatch/internal/presence"
	"github.com/hiveride/dispatch/internal/rides"
	"github.com/hiveride/dispatch/pkg/config"
	"github.com/hiveride/dispatch/pkg/database"
	"github.com/hiveride/dispatch/pkg/eventbus"
	"github.com/hiveride/dispatch/pkg/logger"
	"github.com/hiveride/dispatch/pkg/middleware"
	redisclient "github.com/hiveride/dispatch/pkg/redis"
)

const (
	serviceName = "dispatch-service"
	version     = "1.0.0"
)

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting dispatch service",
		zap.String("service", serviceName),
		zap.String("version", version),
		zap.String("environment", cfg.Server.Environment),
	)

	db, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)
	logger.Info("Connected to database")

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(cfg.Database.MigrationsPath, cfg.Database.DSN()); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
		logger.Info("Database migrations applied")
	}

	redisClient, err := redisclient.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}()
	logger.Info("Connected to redis")

	var bus *eventbus.Bus
	if cfg.NATS.Enabled {
		bus, err = eventbus.Connect(cfg.NATS.URL, serviceName)
		if err != nil {
			logger.Warn("Failed to connect to NATS, continuing without event bus", zap.Error(err))
		} else {
			defer bus.Close()
			logger.Info("Connected to NATS", zap.String("url", cfg.NATS.URL))
		}
	}

	var pushClient notify.PushClient
	if cfg.Firebase.Enabled {
		fcm, err := notify.NewFirebaseClient(cfg.Firebase.CredentialsPath)
		if err != nil {
			logger.Warn("Failed to initialize FCM, continuing without push", zap.Error(err))
		} else {
			pushClient = fcm
			logger.Info("FCM push enabled", zap.String("project_id", cfg.Firebase.ProjectID))
		}
	}

	notifyRepo := notify.NewRepository(db)
	notifier := notify.NewDispatcher(pushClient, notifyRepo)

	presenceService := presence.NewService(redisClient, cfg.Dispatch)

	store := dispatch.NewStore(redisClient, cfg.Dispatch)
	queue := dispatch.NewQueue(redisClient, cfg.Dispatch)
	timers := dispatch.NewTimerSet()

	ridesRepo := rides.NewRepository(db)
	engine := dispatch.NewEngine(store, queue, timers, notifier, ridesRepo, presenceService, bus, cfg.Dispatch)
	statusReader := dispatch.NewStatusReader(store)

	ridesService := rides.NewService(ridesRepo, engine, store, statusReader, presenceService, notifier, bus, cfg.Dispatch)

	sweeper := dispatch.NewSweeper(store, engine, ridesService, cfg.Dispatch)
	sweeper.Start()
	defer sweeper.Stop()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger())

	router.GET("/health", func(c *gin.Context) {
		checks := gin.H{"database": "ok", "redis": "ok"}
		status := http.StatusOK

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			checks["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{"service": serviceName, "version": version, "checks": checks})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rides.NewHandler(ridesService).RegisterRoutes(router, cfg.JWT.Secret)
	presence.NewHandler(presenceService, cfg.Dispatch).RegisterRoutes(router, cfg.JWT.Secret)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	// Open offers resolve through Redis TTLs and peer sweepers once the
	// in-process timers stop.
	timers.Shutdown()

	logger.Info("Server stopped")
}
