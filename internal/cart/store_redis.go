package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/mosaikshop/storefront/pkg/redis"
)

// RedisGuestStore keeps the guest cart under a single namespaced redis key.
// Used when several gateway processes share one terminal identity.
type RedisGuestStore struct {
	client *redis.Client
	key    string
}

// NewRedisGuestStore builds the redis backing for the given storage key.
func NewRedisGuestStore(client *redis.Client, storageKey string) (*RedisGuestStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if storageKey == "" {
		return nil, fmt.Errorf("storage key required")
	}
	return &RedisGuestStore{client: client, key: client.GuestCartKey(storageKey)}, nil
}

func (s *RedisGuestStore) Load(ctx context.Context) ([]Item, error) {
	payload, err := s.client.Get(ctx, s.key)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading guest cart: %w", err)
	}
	return decodeItems([]byte(payload)), nil
}

func (s *RedisGuestStore) Save(ctx context.Context, items []Item) error {
	payload, err := encodeItems(items)
	if err != nil {
		return fmt.Errorf("encoding guest cart: %w", err)
	}
	if err := s.client.Set(ctx, s.key, payload, 0); err != nil {
		return fmt.Errorf("saving guest cart: %w", err)
	}
	return nil
}

func (s *RedisGuestStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key); err != nil {
		return fmt.Errorf("clearing guest cart: %w", err)
	}
	return nil
}
