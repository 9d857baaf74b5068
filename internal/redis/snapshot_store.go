package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/tickerpulse/internal/domain"
)

// SnapshotStore persists computed aggregates in Redis so results survive
// restarts and are shared across replicas. Entries expire after the
// configured TTL; a missing snapshot is a miss, not an error.
type SnapshotStore struct {
	rdb *goredis.Client
	ttl time.Duration
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)

func NewSnapshotStore(client *Client, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{rdb: client.rdb, ttl: ttl}
}

// GetSnapshot returns the cached aggregate for a symbol, or nil when no
// snapshot exists.
func (s *SnapshotStore) GetSnapshot(ctx context.Context, symbol string) (*domain.AggregateResult, error) {
	data, err := s.rdb.Get(ctx, snapshotKey(symbol)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot failed: %w", err)
	}

	var result domain.AggregateResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode snapshot failed: %w", err)
	}

	return &result, nil
}

func (s *SnapshotStore) SetSnapshot(ctx context.Context, symbol string, result domain.AggregateResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode snapshot failed: %w", err)
	}

	if err := s.rdb.Set(ctx, snapshotKey(symbol), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set snapshot failed: %w", err)
	}
	return nil
}

func (s *SnapshotStore) Invalidate(ctx context.Context, symbol string) error {
	if err := s.rdb.Del(ctx, snapshotKey(symbol)).Err(); err != nil {
		return fmt.Errorf("invalidate snapshot failed: %w", err)
	}
	return nil
}

func snapshotKey(symbol string) string {
	return "snapshot:" + symbol
}
