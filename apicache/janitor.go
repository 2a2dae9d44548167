package apicache

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

type janitor struct {
	cancel context.CancelFunc
	group  *errgroup.Group
}

// Start launches the cache sweep and the counter sweep. It is a no-op if the
// janitor is already running. Both loops stop when ctx ends or Close is called.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.janitor != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m.every(ctx, m.opts.CacheSweepInterval, m.SweepCache)
		return nil
	})
	g.Go(func() error {
		m.every(ctx, m.opts.CounterSweepInterval, m.SweepCounters)
		return nil
	})
	m.janitor = &janitor{cancel: cancel, group: g}

	m.log.Debug().
		Dur("cache_sweep", m.opts.CacheSweepInterval).
		Dur("counter_sweep", m.opts.CounterSweepInterval).
		Dur("horizon", m.opts.CleanupHorizon).
		Msg("janitor started")
}

// Close stops the janitor and waits for both loops to return.
func (m *Manager) Close() error {
	m.mu.Lock()
	j := m.janitor
	m.janitor = nil
	m.mu.Unlock()

	if j == nil {
		return nil
	}
	j.cancel()
	return j.group.Wait()
}

// SweepCache reaps TTL-expired entries, then drops anything older than the
// cleanup horizon.
func (m *Manager) SweepCache() {
	expired := m.store.Expire()
	swept := m.store.Sweep(m.opts.CleanupHorizon)
	if expired+swept > 0 {
		m.log.Debug().Int("expired", expired).Int("swept", swept).Msg("cache sweep")
	}
}

// SweepCounters discards rate counters from past windows.
func (m *Manager) SweepCounters() {
	if n := m.limiter.Sweep(); n > 0 {
		m.log.Debug().Int("removed", n).Msg("counter sweep")
	}
}

func (m *Manager) every(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
