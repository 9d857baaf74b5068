package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/tickerpulse/internal/domain"
)

// Debouncer suppresses repeated refreshes of the same symbol across all
// replicas. The winner is decided by SETNX; key expiry releases the slot
// without any cleanup work.
type Debouncer struct {
	rdb      *goredis.Client
	interval time.Duration
}

var _ domain.RefreshDebouncer = (*Debouncer)(nil)

func NewDebouncer(client *Client, interval time.Duration) *Debouncer {
	return &Debouncer{rdb: client.rdb, interval: interval}
}

// TryAcquire reports whether this caller won the refresh slot for the symbol.
func (d *Debouncer) TryAcquire(ctx context.Context, symbol string) (bool, error) {
	set, err := d.rdb.SetNX(ctx, refreshKey(symbol), "1", d.interval).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check refresh debounce: %w", err)
	}
	return set, nil
}

func refreshKey(symbol string) string {
	return "refresh:" + symbol
}
