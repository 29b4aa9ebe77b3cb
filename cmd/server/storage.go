package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fastygo/sanctuary/internal/config"
	"github.com/fastygo/sanctuary/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/sanctuary/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/sanctuary/internal/infrastructure/redis"
	"github.com/fastygo/sanctuary/internal/services/lifecycle"
	"github.com/fastygo/sanctuary/repository"
	"github.com/fastygo/sanctuary/repository/memory"
	"github.com/fastygo/sanctuary/repository/postgres"
	redisRepo "github.com/fastygo/sanctuary/repository/redis"
)

// storage bundles the repositories selected by STORAGE_DRIVER and LOCK_DRIVER.
type storage struct {
	activities     repository.ActivityRepository
	series         repository.SeriesRepository
	prayerRequests repository.PrayerRequestRepository
	attendance     repository.AttendanceRepository
	favorites      repository.FavoriteRepository
	events         repository.EventRepository
	locker         repository.SeriesLocker
	dependencies   []monitor.Dependency
}

func openStorage(ctx context.Context, cfg *config.Config, manager *lifecycle.Manager, logger *zap.Logger) (*storage, error) {
	s := &storage{}

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		if err := pgInfra.RunMigrations(cfg, logger); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		pool, err := pgInfra.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		manager.Register("postgres", func(ctx context.Context) error {
			pool.Close()
			return nil
		})
		s.activities = postgres.NewActivityRepository(pool)
		s.series = postgres.NewSeriesRepository(pool)
		s.prayerRequests = postgres.NewPrayerRequestRepository(pool)
		s.attendance = postgres.NewAttendanceRepository(pool)
		s.favorites = postgres.NewFavoriteRepository(pool)
		s.events = postgres.NewEventRepository(pool)
		s.dependencies = append(s.dependencies, monitor.PostgresDependency(pool))
	default:
		logger.Warn("using in-memory storage, data is lost on restart")
		s.activities = memory.NewActivityStore()
		s.series = memory.NewSeriesStore()
		s.prayerRequests = memory.NewPrayerRequestStore()
		s.attendance = memory.NewAttendanceStore()
		s.favorites = memory.NewFavoriteStore()
		s.events = memory.NewEventLog()
	}

	switch cfg.Storage.LockDriver {
	case config.DriverRedis:
		client, err := redisInfra.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		manager.RegisterCloser("redis", client)
		s.locker = redisRepo.NewSeriesLocker(client, cfg.Storage.LockTTL)
		s.dependencies = append(s.dependencies, monitor.RedisDependency(client))
	default:
		s.locker = memory.NewLocker()
	}
	return s, nil
}
