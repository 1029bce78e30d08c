package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"eventcache/internal/domain/record"
	"eventcache/internal/store"

	"github.com/redis/go-redis/v9"
)

const opTimeout = 5 * time.Second

// RecordStore keeps handling records as plain keys with a server-side TTL.
// Redis evicts expired keys on its own, so this store does not implement
// store.ExpiryQuerier; the cleanup scheduler detects that and stands down.
type RecordStore struct {
	client *redis.Client
	prefix string
}

func NewRecordStore(client *redis.Client, prefix string) *RecordStore {
	return &RecordStore{client: client, prefix: prefix}
}

func (s *RecordStore) key(id string) string {
	return fmt.Sprintf("%s:%s", s.prefix, id)
}

// Insert uses SETNX as the atomic insert-if-absent primitive: of two
// concurrent inserts with the same id exactly one observes true.
func (s *RecordStore) Insert(ctx context.Context, rec *record.HandlingRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal handling record: %w", err)
	}

	ttl := rec.ExpiresAt.Sub(rec.RecordedAt)

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	ok, err := s.client.SetNX(ctx, s.key(rec.ID), payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("setnx handling record: %w", err)
	}
	if !ok {
		return store.ErrDuplicateKey
	}

	return nil
}

func (s *RecordStore) DeleteByID(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return fmt.Errorf("del handling record: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}

	return nil
}
