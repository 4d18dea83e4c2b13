//go:build integration

package containers

import (
	"sync"
	"testing"
)

// Manager starts each container at most once per test binary and shares it
// across suites. Ryuk removes the containers when the binary exits.
type Manager struct {
	mu       sync.Mutex
	redis    *RedisContainer
	mongo    *MongoContainer
	postgres *PostgresContainer
	redpanda *RedpandaContainer
}

var (
	manager     *Manager
	managerOnce sync.Once
)

// GetManager returns the process-wide container manager.
func GetManager() *Manager {
	managerOnce.Do(func() {
		manager = &Manager{}
	})
	return manager
}

// GetRedis returns the shared Redis container, starting it on first use.
func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redis == nil {
		m.redis = NewRedisContainer(t)
	}
	return m.redis
}

// GetMongo returns the shared MongoDB container, starting it on first use.
func (m *Manager) GetMongo(t *testing.T) *MongoContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mongo == nil {
		m.mongo = NewMongoContainer(t)
	}
	return m.mongo
}

// GetPostgres returns the shared PostgreSQL container, starting it on first use.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.postgres == nil {
		m.postgres = NewPostgresContainer(t)
	}
	return m.postgres
}

// GetRedpanda returns the shared Redpanda broker, starting it on first use.
func (m *Manager) GetRedpanda(t *testing.T) *RedpandaContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redpanda == nil {
		m.redpanda = NewRedpandaContainer(t)
	}
	return m.redpanda
}
