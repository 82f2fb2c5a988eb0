package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bookflow/bookflow/internal/config"
	v1 "github.com/bookflow/bookflow/internal/handler/v1"
	"github.com/bookflow/bookflow/internal/repository"
	"github.com/bookflow/bookflow/internal/service"
	"github.com/bookflow/bookflow/pkg/auth"
	"github.com/bookflow/bookflow/pkg/database"
	"github.com/bookflow/bookflow/pkg/logger"
	"github.com/bookflow/bookflow/pkg/metrics"
	"github.com/bookflow/bookflow/pkg/tracer"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting bookflow api",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	tp, err := tracer.Init(cfg.Tracing)
	if err != nil {
		log.Fatal("failed to initialize tracer", zap.Error(err))
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := database.Migrate(db, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	collector := metrics.NewCollector("bookflow")
	jwtManager := auth.NewJWTManager(cfg.JWT)
	clock := service.SystemClock()

	userRepo := repository.NewUserRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	appointmentRepo := repository.NewAppointmentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	notificationService := service.NewNotificationService(notificationRepo, log, collector)
	authService := service.NewAuthService(userRepo, jwtManager, log)
	availabilityService := service.NewAvailabilityService(availabilityRepo, notificationService, clock, cfg.Booking, collector, log)
	bookingService := service.NewBookingService(appointmentRepo, availabilityRepo, notificationService, clock, cfg.Booking.HoldTTL, collector, log)

	sweeper := service.NewHoldSweeper(appointmentRepo, clock, collector, log)
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@every "+cfg.Booking.HoldSweepInterval.String(), sweeper.Run); err != nil {
		log.Fatal("failed to schedule hold expiry sweep", zap.Error(err))
	}
	scheduler.Start()

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	v1.RegisterRoutes(engine, v1.RouterDeps{
		Auth:          v1.NewAuthHandler(authService, log),
		Availability:  v1.NewAvailabilityHandler(availabilityService, log),
		Booking:       v1.NewBookingHandler(bookingService, log),
		Notifications: v1.NewNotificationHandler(notificationService, log),
		JWTManager:    jwtManager,
		Collector:     collector,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}

	// Stop accepting new sweep runs, then wait for an in-flight run.
	<-scheduler.Stop().Done()

	notificationService.Shutdown()

	if err := tp.Shutdown(ctx); err != nil {
		log.Error("tracer shutdown failed", zap.Error(err))
	}

	log.Info("shutdown complete")
}
