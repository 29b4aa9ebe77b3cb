package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/sanctuary/api/handler"
	"github.com/fastygo/sanctuary/internal/calendar"
	"github.com/fastygo/sanctuary/internal/config"
	"github.com/fastygo/sanctuary/internal/infrastructure/buffer"
	kafkaInfra "github.com/fastygo/sanctuary/internal/infrastructure/kafka"
	"github.com/fastygo/sanctuary/internal/infrastructure/monitor"
	"github.com/fastygo/sanctuary/internal/middleware"
	"github.com/fastygo/sanctuary/internal/router"
	"github.com/fastygo/sanctuary/internal/services"
	"github.com/fastygo/sanctuary/internal/services/lifecycle"
	"github.com/fastygo/sanctuary/pkg/clock"
	"github.com/fastygo/sanctuary/pkg/httpcontext"
	"github.com/fastygo/sanctuary/pkg/logger"
	"github.com/fastygo/sanctuary/usecase"
	attendanceUC "github.com/fastygo/sanctuary/usecase/attendance"
	auditUC "github.com/fastygo/sanctuary/usecase/audit"
	favoriteUC "github.com/fastygo/sanctuary/usecase/favorite"
	prayerUC "github.com/fastygo/sanctuary/usecase/prayerrequest"
	scheduleUC "github.com/fastygo/sanctuary/usecase/schedule"
	seriesUC "github.com/fastygo/sanctuary/usecase/series"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
		Service:  cfg.AppName,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	store, err := openStorage(appCtx, cfg, manager, zapLogger)
	if err != nil {
		zapLogger.Fatal("storage initialization failed", zap.Error(err))
	}

	bufferStore, err := buffer.Open(cfg.Buffer.Path, "buffer", cfg.Buffer.MaxSize)
	if err != nil {
		zapLogger.Fatal("failed to open buffer store", zap.Error(err))
	}
	manager.RegisterCloser("buffer", bufferStore)

	mon := monitor.New(store.dependencies, bufferStore, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	bufferProcessor := services.NewBufferProcessor(
		bufferStore,
		mon,
		store.attendance,
		store.prayerRequests,
		zapLogger,
		services.ProcessorConfig{
			Interval:   cfg.Buffer.SyncInterval,
			BatchSize:  50,
			MaxRetries: cfg.Buffer.MaxRetry,
			Retention:  time.Duration(cfg.Buffer.RetentionHours) * time.Hour,
		},
	)
	bufferProcessor.Start()
	manager.Register("buffer_processor", func(ctx context.Context) error {
		bufferProcessor.Stop(ctx)
		return nil
	})

	bufferBridge := services.NewBufferBridge(bufferProcessor)

	auditUseCase := auditUC.New(store.events, zapLogger)
	publishers := usecase.FanOut{auditUseCase}
	if cfg.Kafka.Enabled() {
		publisher := kafkaInfra.NewPublisher(kafkaInfra.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), zapLogger)
		publishers = append(publishers, publisher)
		manager.RegisterCloser("kafka", publisher)
		zapLogger.Info("kafka publishing enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	systemClock := clock.System{}

	seriesUseCase := seriesUC.New(seriesUC.Deps{
		Series:     store.series,
		Activities: store.activities,
		Locker:     store.locker,
		Clock:      systemClock,
		Events:     publishers,
	}, seriesUC.Config{
		HorizonMonths: cfg.Schedule.HorizonMonths,
		SweepInterval: cfg.Schedule.SweepInterval,
		LockTimeout:   cfg.Storage.LockTTL,
	}, zapLogger)

	scheduleUseCase := scheduleUC.New(scheduleUC.Deps{
		Activities: store.activities,
		Series:     seriesUseCase,
		Clock:      systemClock,
		Events:     publishers,
	}, scheduleUC.Config{Location: cfg.Schedule.Location}, zapLogger)

	attendanceUseCase := attendanceUC.New(attendanceUC.Deps{
		Activities: store.activities,
		Attendance: store.attendance,
		Buffer:     bufferBridge,
		Clock:      systemClock,
		Events:     publishers,
	}, zapLogger)

	prayerUseCase := prayerUC.New(prayerUC.Deps{
		Requests: store.prayerRequests,
		Buffer:   bufferBridge,
		Clock:    systemClock,
		Events:   publishers,
	}, zapLogger)

	favoriteUseCase := favoriteUC.New(favoriteUC.Deps{
		Favorites: store.favorites,
		Series:    store.series,
		Clock:     systemClock,
		Events:    publishers,
	}, zapLogger)

	horizon, err := services.NewHorizonScheduler(seriesUseCase, cfg.Schedule.SweepSchedule, time.Minute, zapLogger)
	if err != nil {
		zapLogger.Fatal("invalid horizon sweep schedule", zap.Error(err))
	}
	horizon.Start()
	manager.Register("horizon_scheduler", func(ctx context.Context) error {
		horizon.Stop(ctx)
		return nil
	})

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)
	feed := calendar.NewFeed(calendar.Config{Name: cfg.Calendar.Name, ProdID: cfg.Calendar.ProdID})

	handlers := router.Handlers{
		Activity:      apiHandler.NewActivityHandler(scheduleUseCase, attendanceUseCase, ctxAdapter, zapLogger),
		Series:        apiHandler.NewSeriesHandler(seriesUseCase, ctxAdapter, zapLogger),
		PrayerRequest: apiHandler.NewPrayerRequestHandler(prayerUseCase, ctxAdapter, zapLogger),
		Dashboard:     apiHandler.NewDashboardHandler(scheduleUseCase, ctxAdapter, zapLogger),
		Calendar:      apiHandler.NewCalendarHandler(scheduleUseCase, feed, ctxAdapter, zapLogger),
		History:       apiHandler.NewHistoryHandler(auditUseCase, ctxAdapter, zapLogger),
		Favorite:      apiHandler.NewFavoriteHandler(favoriteUseCase, ctxAdapter, zapLogger),
		Health:        apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}
	if cfg.HTTP.EnableMetrics {
		handlers.Metrics = apiHandler.MetricsHandler(nil)
	}

	authMiddleware := middleware.JWTAuth(middleware.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Issuer:     cfg.JWT.Issuer,
		QueryToken: []string{router.CalendarPath},
	}, zapLogger)
	r := router.New(handlers, authMiddleware)

	server := &fasthttp.Server{
		Handler:      middleware.RequestMetrics(zapLogger)(r.Handler),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started",
			zap.String("address", cfg.Address()),
			zap.String("storage", cfg.Storage.Driver),
			zap.String("locks", cfg.Storage.LockDriver))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
