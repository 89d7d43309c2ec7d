// Package snapshot keeps the client store's last committed list in redis so
// a restarted client can render something before its first List returns.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"paylesscars/internal/negotiation/domain"
	"paylesscars/internal/negotiation/ports"
	"paylesscars/internal/negotiation/transport"
	"paylesscars/platform/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
)

const keyPrefix = "negotiations:snapshot:"

// RedisStore implements ports.SnapshotStore.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ports.SnapshotStore = (*RedisStore)(nil)

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Open connects to cfg.GetRedisURL(). The caller owns Close.
func Open(ctx context.Context, cfg config.SnapshotConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewRedisStore(client, cfg.GetSnapshotTTL()), nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Load(ctx context.Context, userID uuid.UUID) ([]domain.Negotiation, error) {
	raw, err := r.client.Get(ctx, key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET: %w", err)
	}

	var payload []transport.NegotiationResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("json.Unmarshal: %w", err)
	}

	negotiations := make([]domain.Negotiation, 0, len(payload))
	for _, item := range payload {
		n, err := transport.FromNegotiationResponse(item)
		if err != nil {
			return nil, fmt.Errorf("transport.FromNegotiationResponse: %w", err)
		}
		negotiations = append(negotiations, n)
	}
	return negotiations, nil
}

func (r *RedisStore) Save(ctx context.Context, userID uuid.UUID, negotiations []domain.Negotiation) error {
	payload, err := json.Marshal(lo.Map(negotiations, func(n domain.Negotiation, _ int) transport.NegotiationResponse {
		return transport.ToNegotiationResponse(n)
	}))
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	if err := r.client.Set(ctx, key(userID), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET: %w", err)
	}
	return nil
}

func key(userID uuid.UUID) string {
	return keyPrefix + userID.String()
}
