package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/gradebook/internal/models"
)

// RedisSnapshotRepository keeps the gradebook document under a single Redis key.
type RedisSnapshotRepository struct {
	client *redis.Client
	key    string
	logger *zap.Logger
}

// NewRedisSnapshotRepository constructs the repository.
func NewRedisSnapshotRepository(client *redis.Client, key string, logger *zap.Logger) *RedisSnapshotRepository {
	if key == "" {
		key = "gradebook"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSnapshotRepository{client: client, key: key, logger: logger}
}

// Load fetches and decodes the stored document.
func (r *RedisSnapshotRepository) Load(ctx context.Context) (*models.Database, error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	return decodeSnapshot(raw)
}

// Save overwrites the stored document without expiry.
func (r *RedisSnapshotRepository) Save(ctx context.Context, db models.Database) error {
	payload, err := encodeSnapshot(db, false)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, payload, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	r.logger.Debug("gradebook snapshot stored", zap.String("key", r.key), zap.Int("bytes", len(payload)))
	return nil
}

// Close releases the underlying Redis connection.
func (r *RedisSnapshotRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
