package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/rueidis"
	"github.com/robalyx/draftguard/internal/setup/config"
	"go.uber.org/zap"
)

const (
	// CacheDBIndex holds the shared ADP snapshot.
	CacheDBIndex = 0

	// QueueDBIndex holds the post-draft analysis queue and its dead letters.
	QueueDBIndex = 1

	// WorkerStatusDBIndex holds worker heartbeats and the last batch summaries.
	WorkerStatusDBIndex = 2
)

// Manager maintains a thread-safe mapping of database indices to Redis clients.
// Clients are created lazily on first use and shared afterwards.
type Manager struct {
	clients map[int]rueidis.Client
	config  *config.Redis
	logger  *zap.Logger
	mu      sync.Mutex
}

// NewManager initializes the Redis connection manager with an empty client pool.
func NewManager(config *config.Redis, logger *zap.Logger) *Manager {
	return &Manager{
		clients: make(map[int]rueidis.Client),
		config:  config,
		logger:  logger.Named("redis"),
	}
}

// GetClient retrieves or creates the client for a database index.
func (m *Manager) GetClient(dbIndex int) (rueidis.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if client, exists := m.clients[dbIndex]; exists {
		return client, nil
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)},
		Username:    m.config.Username,
		Password:    m.config.Password,
		SelectDB:    dbIndex,
		ClientName:  "draftguard",
		// Nothing reads through DoCache
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis client for DB %d: %w", dbIndex, err)
	}

	m.clients[dbIndex] = client
	m.logger.Info("Created new Redis client", zap.Int("dbIndex", dbIndex))
	return client, nil
}

// Close shuts down every client. It is safe to call more than once.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for dbIndex, client := range m.clients {
		client.Close()
		delete(m.clients, dbIndex)
		m.logger.Info("Closed Redis client", zap.Int("dbIndex", dbIndex))
	}
}

// Ping checks every open client and joins their failures.
func (m *Manager) Ping(ctx context.Context) error {
	m.mu.Lock()
	clients := make(map[int]rueidis.Client, len(m.clients))
	for dbIndex, client := range m.clients {
		clients[dbIndex] = client
	}
	m.mu.Unlock()

	var errs []error
	for dbIndex, client := range clients {
		if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
			errs = append(errs, fmt.Errorf("redis db %d: %w", dbIndex, err))
		}
	}
	return errors.Join(errs...)
}
