// Package worker runs the periodic ranking refresh. The score log is
// the source of truth; this worker rebuilds every derived view from it
// so cache drift never outlives one interval.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/geometry-runner/internal/config"
)

// Refresher rebuilds the derived ranking views from the score log.
type Refresher interface {
	RefreshRankings(ctx context.Context) error
}

// SyncWorker periodically recomputes rankings and rewrites the cached
// projections and realtime totals.
type SyncWorker struct {
	service Refresher
	config  *config.SyncConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewSyncWorker creates a new sync worker
func NewSyncWorker(service Refresher, cfg *config.SyncConfig, logger *slog.Logger) *SyncWorker {
	return &SyncWorker{
		service: service,
		config:  cfg,
		logger:  logger,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start begins the background refresh process
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("sync worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background refresh process
func (w *SyncWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("sync worker stopped")
	return nil
}

// run is the main worker loop
func (w *SyncWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

func (w *SyncWorker) refresh(ctx context.Context) {
	w.logger.Debug("starting ranking refresh cycle")
	startTime := time.Now()

	if err := w.service.RefreshRankings(ctx); err != nil {
		w.logger.Error("ranking refresh failed", "error", err)
		return
	}

	w.logger.Info("ranking refresh completed", "duration", time.Since(startTime))
}

// IsRunning returns whether the worker is currently running
func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single refresh cycle (useful at startup and for
// manual triggers)
func (w *SyncWorker) RunOnce(ctx context.Context) {
	w.refresh(ctx)
}
