package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/curriculum-api/pkg/cache"
)

// RedisCollectionStore keeps each collection under <prefix>:collection:<name>.
type RedisCollectionStore struct {
	client *redis.Client
	prefix string
}

// NewRedisCollectionStore constructs the store.
func NewRedisCollectionStore(client *redis.Client, prefix string) *RedisCollectionStore {
	return &RedisCollectionStore{client: client, prefix: prefix}
}

func (s *RedisCollectionStore) key(collection string) string {
	return cache.Key(s.prefix, "collection", collection)
}

// Load reads the collection value.
func (s *RedisCollectionStore) Load(ctx context.Context, collection string) (json.RawMessage, error) {
	raw, err := s.client.Get(ctx, s.key(collection)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", collection, err)
	}
	return raw, nil
}

// ReplaceAll overwrites the collection value without expiry.
func (s *RedisCollectionStore) ReplaceAll(ctx context.Context, collection string, payload json.RawMessage) error {
	if err := s.client.Set(ctx, s.key(collection), []byte(payload), 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", collection, err)
	}
	return nil
}

// ReplaceBatch writes several collections inside one MULTI/EXEC.
func (s *RedisCollectionStore) ReplaceBatch(ctx context.Context, payloads map[string]json.RawMessage) error {
	if len(payloads) == 0 {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, name := range sortedNames(payloads) {
			pipe.Set(ctx, s.key(name), []byte(payloads[name]), 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis replace batch: %w", err)
	}
	return nil
}
