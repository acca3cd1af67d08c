package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/phrazzld/studycycle-api/internal/config"
	"github.com/phrazzld/studycycle-api/internal/domain"
	"github.com/phrazzld/studycycle-api/internal/platform/logger"
	"github.com/phrazzld/studycycle-api/internal/store"
)

// Open connects to Redis and verifies the connection with a PING.
func Open(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// LambdaCache stores forgetting rates as JSON values keyed by user ID.
type LambdaCache struct {
	client goredis.Cmdable
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

var _ store.LambdaStore = (*LambdaCache)(nil)

// NewLambdaCache creates a cache. A zero ttl keeps entries until overwritten.
func NewLambdaCache(client goredis.Cmdable, prefix string, ttl time.Duration, log *slog.Logger) *LambdaCache {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &LambdaCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: log.With("component", "redis_lambda_cache"),
	}
}

func (c *LambdaCache) key(userID uuid.UUID) string {
	return c.prefix + userID.String()
}

// GetUserLambda returns the cached rate for the user.
func (c *LambdaCache) GetUserLambda(ctx context.Context, userID uuid.UUID) (*domain.UserLambda, error) {
	log := logger.FromContextOrDefault(ctx, c.logger)

	raw, err := c.client.Get(ctx, c.key(userID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, store.ErrUserLambdaNotFound
	}
	if err != nil {
		log.Error("failed to read cached lambda", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to read cached lambda: %w", err)
	}

	var ul domain.UserLambda
	if err := json.Unmarshal(raw, &ul); err != nil {
		log.Warn("discarding undecodable cached lambda", "error", err, "user_id", userID)
		return nil, store.ErrUserLambdaNotFound
	}
	return &ul, nil
}

// SetUserLambda overwrites the cached rate. Concurrent writers race and the
// last one wins.
func (c *LambdaCache) SetUserLambda(ctx context.Context, ul *domain.UserLambda) error {
	if err := ul.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	raw, err := json.Marshal(ul)
	if err != nil {
		return fmt.Errorf("failed to encode lambda: %w", err)
	}
	if err := c.client.Set(ctx, c.key(ul.UserID), raw, c.ttl).Err(); err != nil {
		logger.FromContextOrDefault(ctx, c.logger).Error("failed to cache lambda",
			"error", err,
			"user_id", ul.UserID)
		return fmt.Errorf("failed to cache lambda: %w", err)
	}
	return nil
}

// MapLambdaStore is an in-process store.LambdaStore.
type MapLambdaStore struct {
	mu      sync.RWMutex
	lambdas map[uuid.UUID]domain.UserLambda
}

var _ store.LambdaStore = (*MapLambdaStore)(nil)

// NewMapLambdaStore creates an empty in-process store.
func NewMapLambdaStore() *MapLambdaStore {
	return &MapLambdaStore{lambdas: make(map[uuid.UUID]domain.UserLambda)}
}

// GetUserLambda returns a copy of the stored rate.
func (m *MapLambdaStore) GetUserLambda(_ context.Context, userID uuid.UUID) (*domain.UserLambda, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ul, ok := m.lambdas[userID]
	if !ok {
		return nil, store.ErrUserLambdaNotFound
	}
	return &ul, nil
}

// SetUserLambda overwrites the stored rate.
func (m *MapLambdaStore) SetUserLambda(_ context.Context, ul *domain.UserLambda) error {
	if err := ul.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lambdas[ul.UserID] = *ul
	return nil
}

// NewLocalLambdaStore returns a Redis-backed cache when cfg names an address
// and an in-process map otherwise. The returned close function releases the
// Redis connection and is never nil.
func NewLocalLambdaStore(
	ctx context.Context,
	cfg config.RedisConfig,
	log *slog.Logger,
) (store.LambdaStore, func() error, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Addr == "" {
		log.Info("redis not configured, keeping lambdas in process memory")
		return NewMapLambdaStore(), func() error { return nil }, nil
	}

	client, err := Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	log.Info("using redis lambda cache", "addr", cfg.Addr, "key_prefix", cfg.KeyPrefix)
	return NewLambdaCache(client, cfg.KeyPrefix, ttl, log), client.Close, nil
}
