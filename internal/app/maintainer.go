package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/tickerpulse/internal/domain"
	"github.com/pscheid92/tickerpulse/internal/metrics"
)

const (
	leaseCheckInterval = 10 * time.Second
	releaseTimeout     = 5 * time.Second
)

// LeaderElector gates the background sweep to a single replica.
type LeaderElector interface {
	TryAcquire(ctx context.Context) (bool, error)
	Renew(ctx context.Context) error
	Release(ctx context.Context) error
}

// Refresher is the slice of the service the maintainer drives.
type Refresher interface {
	Refresh(ctx context.Context, symbol string) (domain.RefreshOutcome, error)
	TrackedSymbols() []string
}

// Maintainer periodically refreshes every tracked symbol on one replica.
// Leadership is a Redis lease: the lease loop acquires and renews it on a
// short cadence, the sweep loop fires on the refresh interval and only acts
// while the lease is held.
type Maintainer struct {
	service  Refresher
	elector  LeaderElector
	clock    clockwork.Clock
	interval time.Duration

	isLeader bool
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewMaintainer creates the background refresh loop. Call Start to run it.
func NewMaintainer(service Refresher, elector LeaderElector, clock clockwork.Clock, interval time.Duration) *Maintainer {
	return &Maintainer{
		service:  service,
		elector:  elector,
		clock:    clock,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the maintainer goroutine. It runs one sweep attempt
// immediately so a fresh deployment does not wait a full interval for data.
func (m *Maintainer) Start(ctx context.Context) {
	m.wg.Add(1)
	go m.run(ctx)
}

// Stop ends the loop and releases leadership if held.
func (m *Maintainer) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()

	if m.isLeader {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := m.elector.Release(ctx); err != nil {
			slog.Error("Failed to release maintainer leadership", "error", err)
		}
		m.isLeader = false
		metrics.MaintainerIsLeader.Set(0)
	}
}

func (m *Maintainer) run(ctx context.Context) {
	defer m.wg.Done()

	leaseTicker := m.clock.NewTicker(leaseCheckInterval)
	defer leaseTicker.Stop()
	sweepTicker := m.clock.NewTicker(m.interval)
	defer sweepTicker.Stop()

	m.maintainLease(ctx)
	if m.isLeader {
		m.sweep(ctx)
	}

	for {
		select {
		case <-leaseTicker.Chan():
			m.maintainLease(ctx)
		case <-sweepTicker.Chan():
			if !m.isLeader {
				metrics.MaintainerRunsTotal.WithLabelValues("skipped").Inc()
				continue
			}
			m.sweep(ctx)
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// maintainLease acquires leadership when free and renews it when held. The
// lease TTL is shorter than the sweep interval, so renewal runs on its own
// cadence instead of piggybacking on sweeps.
func (m *Maintainer) maintainLease(ctx context.Context) {
	if m.isLeader {
		if err := m.elector.Renew(ctx); err != nil {
			slog.Warn("Lost maintainer leadership", "error", err)
			m.isLeader = false
			metrics.MaintainerIsLeader.Set(0)
		}
		return
	}

	acquired, err := m.elector.TryAcquire(ctx)
	if err != nil {
		slog.Warn("Leader election attempt failed", "error", err)
		return
	}
	if acquired {
		slog.Info("Acquired maintainer leadership")
		m.isLeader = true
		metrics.MaintainerIsLeader.Set(1)
	}
}

// sweep refreshes every tracked symbol. Debounced symbols were refreshed
// recently (e.g. by a manual trigger) and count as fine.
func (m *Maintainer) sweep(ctx context.Context) {
	symbols := m.service.TrackedSymbols()
	slog.Debug("Starting refresh sweep", "symbols", len(symbols))

	failed := 0
	for _, symbol := range symbols {
		if _, err := m.service.Refresh(ctx, symbol); err != nil {
			if errors.Is(err, domain.ErrRefreshDebounced) {
				slog.Debug("Sweep skipped recently refreshed symbol", "symbol", symbol)
				continue
			}
			slog.Error("Sweep refresh failed", "symbol", symbol, "error", err)
			failed++
		}
	}

	switch {
	case failed == 0:
		metrics.MaintainerRunsTotal.WithLabelValues("ok").Inc()
	case failed < len(symbols):
		metrics.MaintainerRunsTotal.WithLabelValues("partial").Inc()
	default:
		metrics.MaintainerRunsTotal.WithLabelValues("error").Inc()
	}
}
