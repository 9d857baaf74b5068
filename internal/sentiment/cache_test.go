package sentiment

import (
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/tickerpulse/internal/domain"
)

func TestResultCache_CacheMiss(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache := NewResultCache(10*time.Second, clock)

	// Get for an unknown symbol should return a miss
	result, hit := cache.Get("MISS")
	assert.False(t, hit, "Should be cache miss for unknown symbol")
	assert.Nil(t, result, "Result should be nil on miss")
}

func TestResultCache_CacheHit(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache := NewResultCache(10*time.Second, clock)

	aggregate := domain.AggregateResult{
		Symbol:           "GME",
		MeanCompound:     0.42,
		SubmissionCount:  17,
		TokenFrequencies: map[string]int{"moon": 9, "hold": 4},
	}

	cache.Set("GME", aggregate)

	result, hit := cache.Get("GME")
	require.True(t, hit, "Should be cache hit")
	require.NotNil(t, result)
	assert.Equal(t, "GME", result.Symbol)
	assert.Equal(t, 0.42, result.MeanCompound)
	assert.Equal(t, 17, result.SubmissionCount)
	assert.Equal(t, map[string]int{"moon": 9, "hold": 4}, result.TokenFrequencies)
}

func TestResultCache_TTLExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache := NewResultCache(10*time.Second, clock)

	cache.Set("GME", domain.AggregateResult{Symbol: "GME"})

	// Immediately after set, should hit
	_, hit := cache.Get("GME")
	assert.True(t, hit, "Should hit immediately after set")

	// Still within TTL
	clock.Advance(9 * time.Second)
	_, hit = cache.Get("GME")
	assert.True(t, hit, "Should still hit at 9 seconds")

	// Past TTL
	clock.Advance(2 * time.Second)
	_, hit = cache.Get("GME")
	assert.False(t, hit, "Should miss after TTL expires")
}

func TestResultCache_ExplicitInvalidation(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache := NewResultCache(10*time.Second, clock)

	cache.Set("GME", domain.AggregateResult{Symbol: "GME"})

	_, hit := cache.Get("GME")
	assert.True(t, hit)

	cache.Invalidate("GME")

	_, hit = cache.Get("GME")
	assert.False(t, hit, "Should miss after explicit invalidation")
}

func TestResultCache_Clear(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache := NewResultCache(10*time.Second, clock)

	for i := 0; i < 5; i++ {
		cache.Set(fmt.Sprintf("SYM%d", i), domain.AggregateResult{})
	}

	assert.Equal(t, 5, cache.Size(), "Should have 5 entries")

	cache.Clear()

	assert.Equal(t, 0, cache.Size(), "Should have 0 entries after clear")
}

func TestResultCache_EvictExpired(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache := NewResultCache(10*time.Second, clock)

	// Stagger three entries five seconds apart. With a 10s TTL they expire
	// at t=10s, t=15s and t=20s respectively.
	cache.Set("GME", domain.AggregateResult{})
	clock.Advance(5 * time.Second)
	cache.Set("AMC", domain.AggregateResult{})
	clock.Advance(5 * time.Second)
	cache.Set("TSLA", domain.AggregateResult{})

	assert.Equal(t, 3, cache.Size())

	// t=11s: only the first entry has expired
	clock.Advance(1 * time.Second)

	evicted := cache.EvictExpired()
	assert.Equal(t, 1, evicted, "Should evict 1 expired entry")
	assert.Equal(t, 2, cache.Size(), "Should have 2 remaining")

	_, hitAMC := cache.Get("AMC")
	_, hitTSLA := cache.Get("TSLA")
	assert.True(t, hitAMC, "AMC should still be cached")
	assert.True(t, hitTSLA, "TSLA should still be cached")

	// t=16s: the second entry has expired as well
	clock.Advance(5 * time.Second)

	evicted = cache.EvictExpired()
	assert.Equal(t, 1, evicted, "Should evict 1 more entry")
	assert.Equal(t, 1, cache.Size(), "Should have 1 remaining")

	_, hitTSLA = cache.Get("TSLA")
	assert.True(t, hitTSLA, "TSLA should still be cached")
}

func TestResultCache_SizeIncludesExpired(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache := NewResultCache(10*time.Second, clock)

	assert.Equal(t, 0, cache.Size(), "New cache should be empty")

	for i := 0; i < 10; i++ {
		cache.Set(fmt.Sprintf("SYM%d", i), domain.AggregateResult{})
	}

	assert.Equal(t, 10, cache.Size(), "Should have 10 entries")

	// Size counts expired entries until eviction runs
	clock.Advance(11 * time.Second)
	assert.Equal(t, 10, cache.Size(), "Size includes expired entries")

	cache.EvictExpired()
	assert.Equal(t, 0, cache.Size(), "All expired entries evicted")
}

func TestResultCache_UpdateExisting(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache := NewResultCache(10*time.Second, clock)

	cache.Set("GME", domain.AggregateResult{Symbol: "GME", MeanCompound: 0.1})

	result, hit := cache.Get("GME")
	require.True(t, hit)
	assert.Equal(t, 0.1, result.MeanCompound)

	cache.Set("GME", domain.AggregateResult{Symbol: "GME", MeanCompound: 0.9})

	result, hit = cache.Get("GME")
	require.True(t, hit)
	assert.Equal(t, 0.9, result.MeanCompound, "Should return updated value")
}

func TestResultCache_ConcurrentAccess(t *testing.T) {
	// This test verifies thread safety with -race flag
	clock := clockwork.NewRealClock()
	cache := NewResultCache(10*time.Second, clock)

	aggregate := domain.AggregateResult{Symbol: "GME"}
	done := make(chan bool)

	go func() {
		for i := 0; i < 100; i++ {
			cache.Set("GME", aggregate)
		}
		done <- true
	}()

	go func() {
		for i := 0; i < 100; i++ {
			cache.Get("GME")
		}
		done <- true
	}()

	go func() {
		for i := 0; i < 100; i++ {
			cache.Invalidate("GME")
		}
		done <- true
	}()

	<-done
	<-done
	<-done
}

func TestResultCache_EvictionTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache := NewResultCache(5*time.Second, clock)

	for i := 0; i < 5; i++ {
		cache.Set(fmt.Sprintf("SYM%d", i), domain.AggregateResult{})
	}

	assert.Equal(t, 5, cache.Size())

	stopEviction := cache.StartEvictionTimer(1 * time.Second)
	defer stopEviction()

	// Expire everything, then trigger one tick of the eviction timer.
	clock.Advance(6 * time.Second)
	clock.Advance(1 * time.Second)

	assert.Eventually(t, func() bool {
		return cache.Size() == 0
	}, time.Second, 10*time.Millisecond, "Eviction timer should clean up expired entries")
}

func TestResultCache_ZeroTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache := NewResultCache(0, clock)

	cache.Set("GME", domain.AggregateResult{})

	// After any time advancement the entry is gone
	clock.Advance(1 * time.Nanosecond)
	_, hit := cache.Get("GME")
	assert.False(t, hit, "Should expire immediately with zero TTL")
}
