package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaderElector_TryAcquire_SingleInstance(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	elector := NewLeaderElector(client, "instance-1")

	// First acquisition should succeed
	acquired, err := elector.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, acquired, "first instance should acquire leadership")

	// Verify key exists in Redis
	val, err := client.rdb.Get(ctx, "maintainer:leader").Result()
	require.NoError(t, err)
	assert.Equal(t, "instance-1", val)

	// Verify TTL is set
	ttl, err := client.rdb.TTL(ctx, "maintainer:leader").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl.Seconds(), 20.0, "TTL should be ~30s")
	assert.LessOrEqual(t, ttl.Seconds(), 30.0)
}

func TestLeaderElector_TryAcquire_MultipleInstances(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	elector1 := NewLeaderElector(client, "instance-1")
	elector2 := NewLeaderElector(client, "instance-2")

	// Instance 1 becomes leader
	acquired1, err := elector1.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, acquired1)

	// Instance 2 should fail to acquire
	acquired2, err := elector2.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, acquired2, "instance 2 should NOT become leader")

	// Verify instance 1 is still the leader
	val, err := client.rdb.Get(ctx, "maintainer:leader").Result()
	require.NoError(t, err)
	assert.Equal(t, "instance-1", val)
}

func TestLeaderElector_Renew_Success(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	elector := NewLeaderElector(client, "instance-1")

	acquired, err := elector.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	err = elector.Renew(ctx)
	require.NoError(t, err)

	// Verify TTL was refreshed
	ttl, err := client.rdb.TTL(ctx, "maintainer:leader").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl.Seconds(), 25.0, "TTL should be refreshed to ~30s")
}

func TestLeaderElector_Renew_LockLost(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	elector := NewLeaderElector(client, "instance-1")

	acquired, err := elector.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	// Simulate lock expiry
	err = client.rdb.Del(ctx, "maintainer:leader").Err()
	require.NoError(t, err)

	// Renew should fail
	err = elector.Renew(ctx)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "leader lock lost")
}

func TestLeaderElector_Renew_LockStolen(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	elector1 := NewLeaderElector(client, "instance-1")

	acquired, err := elector1.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	// Simulate lock stolen (force instance 2 to become leader)
	err = client.rdb.Set(ctx, "maintainer:leader", "instance-2", 30*time.Second).Err()
	require.NoError(t, err)

	// Instance 1 tries to renew - should fail
	err = elector1.Renew(ctx)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "leader lock stolen by instance-2")
}

func TestLeaderElector_Release_Success(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	elector := NewLeaderElector(client, "instance-1")

	acquired, err := elector.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	err = elector.Release(ctx)
	require.NoError(t, err)

	// Verify key is deleted
	_, err = client.rdb.Get(ctx, "maintainer:leader").Result()
	assert.ErrorIs(t, err, goredis.Nil, "lock key should be deleted")
}

func TestLeaderElector_Release_NotLeader(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	elector1 := NewLeaderElector(client, "instance-1")
	elector2 := NewLeaderElector(client, "instance-2")

	acquired, err := elector1.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	// Instance 2 tries to release (should be a no-op, not delete instance 1's lock)
	err = elector2.Release(ctx)
	require.NoError(t, err)

	// Verify instance 1 is still the leader
	val, err := client.rdb.Get(ctx, "maintainer:leader").Result()
	require.NoError(t, err)
	assert.Equal(t, "instance-1", val, "instance 1 should still be leader")
}

func TestLeaderElector_GracefulRelease_ImmediateTakeover(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	elector1 := NewLeaderElector(client, "instance-1")
	elector2 := NewLeaderElector(client, "instance-2")

	acquired, err := elector1.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	err = elector1.Release(ctx)
	require.NoError(t, err)

	// Instance 2 can immediately become leader (no waiting for TTL)
	acquired, err = elector2.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, acquired, "instance 2 should become leader immediately after release")

	val, err := client.rdb.Get(ctx, "maintainer:leader").Result()
	require.NoError(t, err)
	assert.Equal(t, "instance-2", val)
}

func TestLeaderElector_Failover_AfterTTLExpiry(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	elector1 := NewLeaderElector(client, "instance-1")
	elector1.lockTTL = 200 * time.Millisecond

	acquired, err := elector1.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	// Wait for the lease to expire
	time.Sleep(300 * time.Millisecond)

	// Instance 2 should be able to become leader
	elector2 := NewLeaderElector(client, "instance-2")
	acquired, err = elector2.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, acquired, "instance 2 should become leader after TTL expiry")

	val, err := client.rdb.Get(ctx, "maintainer:leader").Result()
	require.NoError(t, err)
	assert.Equal(t, "instance-2", val)
}
