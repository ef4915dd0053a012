package storage

import (
	"context"
	"time"

	"github.com/YuujiKamura/tonsuu-checker/internal/logger"
	"github.com/YuujiKamura/tonsuu-checker/internal/service"
	"github.com/YuujiKamura/tonsuu-checker/internal/store"
)

// Retention periodically removes estimates and snapshots older than the
// retention period.
type Retention struct {
	*service.ServiceBase

	store         *store.Store
	snapshots     *Snapshots
	retentionDays int
	interval      time.Duration
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewRetention creates the retention service. A retentionDays of zero
// disables cleanup.
func NewRetention(st *store.Store, snaps *Snapshots, retentionDays int, log *logger.Logger) *Retention {
	ctx, cancel := context.WithCancel(context.Background())
	return &Retention{
		ServiceBase:   service.NewServiceBase("retention", log),
		store:         st,
		snapshots:     snaps,
		retentionDays: retentionDays,
		interval:      6 * time.Hour,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start begins periodic enforcement.
func (r *Retention) Start(ctx context.Context) error {
	r.GetStatus().SetStatus(service.StatusStarting)
	if r.retentionDays <= 0 {
		r.LogInfo("Retention disabled")
		r.GetStatus().SetStatus(service.StatusRunning)
		return nil
	}

	go r.run()
	r.GetStatus().SetStatus(service.StatusRunning)
	return nil
}

// Stop halts enforcement.
func (r *Retention) Stop(ctx context.Context) error {
	r.GetStatus().SetStatus(service.StatusStopping)
	r.cancel()
	r.GetStatus().SetStatus(service.StatusStopped)
	return nil
}

func (r *Retention) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.enforce()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.enforce()
		}
	}
}

func (r *Retention) enforce() {
	cutoff := time.Now().AddDate(0, 0, -r.retentionDays)

	deleted, err := r.store.DeleteOlderThan(r.ctx, cutoff)
	if err != nil {
		r.LogError("Failed to delete expired estimates", err)
	} else if deleted > 0 {
		r.LogInfo("Deleted expired estimates", "count", deleted, "cutoff", cutoff)
	}

	dirs, err := r.snapshots.DeleteOlderThan(cutoff)
	if err != nil {
		r.LogError("Failed to delete expired snapshots", err)
	} else if dirs > 0 {
		r.LogInfo("Deleted expired snapshot directories", "count", dirs, "cutoff", cutoff)
	}
}
