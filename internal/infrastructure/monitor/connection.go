package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Monitor periodically pings the wired backends and caches the result for
// the health endpoint. Backends not configured for the selected storage
// driver are simply reported healthy-by-absence.
type Monitor struct {
	driver string
	pg     *pgxpool.Pool
	redis  *redislib.Client

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	stopCh   chan struct{}
	logger   *zap.Logger
}

func New(driver string, pg *pgxpool.Pool, redis *redislib.Client, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		driver:   driver,
		pg:       pg,
		redis:    redis,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

func (m *Monitor) Start() {
	go m.loop()
}

func (m *Monitor) Stop() {
	close(m.stopCh)
}

// IsOnline reports whether every configured backend answered its last ping.
// A backend counts as unhealthy only after a failed ping.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return healthy(m.status.PostgreSQL) && healthy(m.status.Redis)
}

func healthy(b *bool) bool {
	return b == nil || *b
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.refresh()
	for {
		select {
		case <-ticker.C:
			m.refresh()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Monitor) refresh() {
	status := Status{
		Driver:    m.driver,
		LastCheck: time.Now(),
	}
	if m.pg != nil {
		ok := m.checkPostgres()
		status.PostgreSQL = &ok
	}
	if m.redis != nil {
		ok := m.checkRedis()
		status.Redis = &ok
	}

	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}

func (m *Monitor) checkPostgres() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return m.pg.Ping(ctx) == nil
}

func (m *Monitor) checkRedis() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return m.redis.Ping(ctx).Err() == nil
}
