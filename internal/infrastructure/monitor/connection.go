package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fastygo/sanctuary/internal/infrastructure/buffer"
)

// Dependency is one checked backend. Required dependencies decide IsOnline.
type Dependency struct {
	Name     string
	Required bool
	Timeout  time.Duration
	Check    func(ctx context.Context) error
}

// PostgresDependency pings the pool.
func PostgresDependency(pool *pgxpool.Pool) Dependency {
	return Dependency{Name: "postgresql", Required: true, Timeout: 3 * time.Second, Check: pool.Ping}
}

// RedisDependency pings the client.
func RedisDependency(client redislib.UniversalClient) Dependency {
	return Dependency{Name: "redis", Required: true, Timeout: 2 * time.Second, Check: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}}
}

type Monitor struct {
	dependencies []Dependency
	buffer       *buffer.Store

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func New(dependencies []Dependency, buf *buffer.Store, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		dependencies: dependencies,
		buffer:       buf,
		interval:     interval,
		stopCh:       make(chan struct{}),
		logger:       logger,
	}
}

func (m *Monitor) Start() {
	m.Refresh()
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Online
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Refresh()
		case <-m.stopCh:
			return
		}
	}
}

// Refresh runs every dependency check once and stores the result.
func (m *Monitor) Refresh() {
	status := Status{
		Components: make(map[string]bool, len(m.dependencies)),
		Online:     true,
		LastCheck:  time.Now(),
	}
	for _, p := range m.dependencies {
		ok := m.check(p)
		status.Components[p.Name] = ok
		if p.Required && !ok {
			status.Online = false
		}
	}
	status.Buffer, status.BufferSize, status.Buffered = m.checkBuffer()

	m.mu.Lock()
	previous := m.status
	m.status = status
	m.mu.Unlock()

	if !previous.LastCheck.IsZero() && previous.Online != status.Online {
		m.logger.Warn("connectivity changed", zap.Bool("online", status.Online), zap.Any("components", status.Components))
	}
}

func (m *Monitor) check(p Dependency) bool {
	if p.Check == nil {
		return false
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return p.Check(ctx) == nil
}

func (m *Monitor) checkBuffer() (bool, int, map[string]int) {
	if m.buffer == nil {
		return false, 0, nil
	}
	size, err := m.buffer.Size()
	if err != nil {
		m.logger.Warn("buffer size check failed", zap.Error(err))
		return false, size, nil
	}
	counts, err := m.buffer.CountByEntity()
	if err != nil {
		m.logger.Warn("buffer entity count failed", zap.Error(err))
	}
	return true, size, counts
}
