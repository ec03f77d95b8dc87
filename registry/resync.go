package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JPKribs/snapcontrol/internal"
	"github.com/JPKribs/snapcontrol/snapcast"
	"golang.org/x/sync/errgroup"
)

// MARK: StartResync
// Runs SyncOnce every period until StopResync or Close. Passes never overlap.
func (r *Registry) StartResync(period time.Duration) error {
	if period <= 0 {
		return fmt.Errorf("%w: resync period must be positive", internal.ErrInvalidArgument)
	}

	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return fmt.Errorf("%w: registry", internal.ErrConnectionClosed)
	}

	r.resyncMu.Lock()
	defer r.resyncMu.Unlock()
	if r.resyncCancel != nil {
		return fmt.Errorf("%w: resync already running", internal.ErrInvalidArgument)
	}

	ctx, cancel := context.WithCancel(r.lifetime)
	done := make(chan struct{})
	r.resyncCancel = cancel
	r.resyncDone = done

	go r.resyncLoop(ctx, period, done)

	r.logger.Info("Resync started", "period", period.String())
	return nil
}

// MARK: StopResync
func (r *Registry) StopResync() {
	r.resyncMu.Lock()
	cancel, done := r.resyncCancel, r.resyncDone
	r.resyncCancel = nil
	r.resyncDone = nil
	r.resyncMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	r.logger.Info("Resync stopped")
}

// MARK: resyncLoop
func (r *Registry) resyncLoop(ctx context.Context, period time.Duration, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(period)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			report := r.SyncOnce(ctx)
			r.logger.Debug("Resync pass finished",
				"refreshed", report.Refreshed,
				"skipped", report.Skipped,
				"failed", report.Failed,
				"duration", report.Duration.String())
			timer.Reset(period)
		}
	}
}

// MARK: SyncOnce
// Refreshes every CONNECTED control server with bounded concurrency. Failures are logged
// and counted; they never unregister an entry. A pass waits for any pass already running.
func (r *Registry) SyncOnce(ctx context.Context) SyncReport {
	r.passMu.Lock()
	defer r.passMu.Unlock()

	start := time.Now()

	var (
		mu     sync.Mutex
		report SyncReport
		g      errgroup.Group
	)
	g.SetLimit(r.opts.SyncConcurrency)

	for _, entry := range r.control.snapshot() {
		conn := entry.Value
		if conn.State() != snapcast.StateConnected {
			report.Skipped++
			continue
		}

		g.Go(func() error {
			refreshCtx := ctx
			if r.opts.RequestTimeout > 0 {
				var cancel context.CancelFunc
				refreshCtx, cancel = context.WithTimeout(ctx, r.opts.RequestTimeout)
				defer cancel()
			}

			err := conn.Refresh(refreshCtx)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil && ctx.Err() != nil:
				report.Skipped++
				r.metrics.RefreshResult("cancelled")
				r.logger.Debug("Refresh cancelled", "name", entry.Key, "error", err)
				return nil
			case err != nil:
				report.Failed++
				r.metrics.RefreshResult("failed")
				r.logger.Warn("Failed to refresh control server", "name", entry.Key, "error", err)
				return nil
			}
			report.Refreshed++
			r.metrics.RefreshResult("ok")
			return nil
		})
	}

	_ = g.Wait()

	report.Duration = time.Since(start)
	r.metrics.ObserveResync(report.Duration)

	r.resyncMu.Lock()
	last := report
	r.lastSync = &last
	r.lastSyncAt = time.Now()
	r.resyncMu.Unlock()

	return report
}
