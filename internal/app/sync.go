package app

import (
	"context"
	"time"
)

const (
	retryInterval = time.Second
	maxBackoff    = 30 * time.Second
)

// syncLoop reapplies levels whenever the level file changes or the API
// updates a level. Failed reloads are retried with exponential backoff.
func (d *Daemon) syncLoop(ctx context.Context, changes <-chan struct{}) {
	var retry <-chan time.Time
	failures := 0

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
		case <-d.levelsChanged:
		case <-retry:
		}
		retry = nil

		if err := d.SyncLevels(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			delay := calculateBackoff(failures, retryInterval)
			d.named.WithError(err).WithField("retry_in", delay.String()).Warn("level sync failed")
			retry = time.After(delay)
			continue
		}
		failures = 0
	}
}

// calculateBackoff doubles the interval per consecutive failure, capped at
// maxBackoff.
func calculateBackoff(failures int, interval time.Duration) time.Duration {
	if failures <= 0 {
		return interval
	}
	backoff := interval
	for i := 0; i < failures; i++ {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}
