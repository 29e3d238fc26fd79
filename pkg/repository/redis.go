package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
	"github.com/go-redis/redis/v8"
)

const idempotencyPending = "pending"

// RedisRepository holds the product read cache and order idempotency keys.
type RedisRepository struct {
	client *redis.Client
	config *config.RedisConfig
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return &RedisRepository{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
		config: cfg,
	}
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func (r *RedisRepository) setJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

func (r *RedisRepository) getJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func productKey(id string) string {
	return fmt.Sprintf("product:%s", id)
}

// GetProduct returns the cached product, or false on a miss.
func (r *RedisRepository) GetProduct(ctx context.Context, id string) (*models.Product, bool, error) {
	var p models.Product
	err := r.getJSON(ctx, productKey(id), &p)
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached product %s: %w", id, err)
	}
	return &p, true, nil
}

func (r *RedisRepository) SetProduct(ctx context.Context, p *models.Product, ttl time.Duration) error {
	return r.setJSON(ctx, productKey(p.ID.Hex()), p, ttl)
}

func (r *RedisRepository) InvalidateProducts(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}
	return r.client.Del(ctx, keys...).Err()
}

func idempotencyKey(userID, key string) string {
	return fmt.Sprintf("idem:order:%s:%s", userID, key)
}

// ClaimIdempotencyKey marks key as in flight. When another request already
// claimed it, ok is false and orderID holds the order it produced, or is empty
// while that request is still running.
func (r *RedisRepository) ClaimIdempotencyKey(ctx context.Context, userID, key string, ttl time.Duration) (ok bool, orderID string, err error) {
	k := idempotencyKey(userID, key)
	ok, err = r.client.SetNX(ctx, k, idempotencyPending, ttl).Result()
	if err != nil || ok {
		return ok, "", err
	}
	val, err := r.client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	if val == idempotencyPending {
		val = ""
	}
	return false, val, nil
}

func (r *RedisRepository) CompleteIdempotencyKey(ctx context.Context, userID, key, orderID string, ttl time.Duration) error {
	return r.client.Set(ctx, idempotencyKey(userID, key), orderID, ttl).Err()
}

// ReleaseIdempotencyKey forgets a claim whose request failed so it can be retried.
func (r *RedisRepository) ReleaseIdempotencyKey(ctx context.Context, userID, key string) error {
	return r.client.Del(ctx, idempotencyKey(userID, key)).Err()
}
