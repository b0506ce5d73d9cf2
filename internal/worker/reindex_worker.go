// Package worker runs the background jobs of the reader.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arxiv-daily/internal/logging"
	"github.com/arxiv-daily/internal/search"
)

// Rebuilder rebuilds an index from a paper source
type Rebuilder interface {
	Rebuild(ctx context.Context, src search.Source) (uint64, error)
}

// ReindexWorker periodically rebuilds the search index so newly written
// day files become searchable without a restart.
type ReindexWorker struct {
	index    Rebuilder
	source   search.Source
	interval time.Duration

	mu        sync.RWMutex
	running   bool
	lastRun   time.Time
	lastCount uint64
	lastErr   error
	rebuilds  int
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// ReindexWorkerConfig holds configuration for a reindex worker
type ReindexWorkerConfig struct {
	Index    Rebuilder
	Source   search.Source
	Interval time.Duration // default 10 minutes
}

// ReindexStatus is a snapshot of the worker state
type ReindexStatus struct {
	Running   bool      `json:"running"`
	LastRun   time.Time `json:"last_run"`
	Documents uint64    `json:"documents"`
	Rebuilds  int       `json:"rebuilds"`
	LastError string    `json:"last_error,omitempty"`
}

// NewReindexWorker creates a new reindex worker
func NewReindexWorker(cfg *ReindexWorkerConfig) (*ReindexWorker, error) {
	if cfg.Index == nil {
		return nil, fmt.Errorf("index cannot be nil")
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("paper source cannot be nil")
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	return &ReindexWorker{
		index:    cfg.Index,
		source:   cfg.Source,
		interval: interval,
	}, nil
}

// Start builds the index once and then keeps rebuilding it every interval
// until Stop is called or ctx is cancelled.
func (w *ReindexWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("reindex worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	logging.FromContext(ctx).WithField("interval", w.interval.String()).Info("Starting reindex worker")

	// an initial failure is logged; the loop retries on the next tick
	_ = w.RunOnce(ctx)

	go w.loop(ctx)
	return nil
}

// Stop signals the loop to exit and waits for it
func (w *ReindexWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("reindex worker is not running")
	}
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	logging.Info("Reindex worker stopped")
	return nil
}

func (w *ReindexWorker) loop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			_ = w.RunOnce(ctx)
		}
	}
}

// RunOnce rebuilds the index now and records the outcome
func (w *ReindexWorker) RunOnce(ctx context.Context) error {
	count, err := w.index.Rebuild(ctx, w.source)

	w.mu.Lock()
	w.lastRun = time.Now()
	w.lastErr = err
	if err == nil {
		w.lastCount = count
		w.rebuilds++
	}
	w.mu.Unlock()

	if err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Search index rebuild failed")
	}
	return err
}

// Status returns current worker status
func (w *ReindexWorker) Status() *ReindexStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	status := &ReindexStatus{
		Running:   w.running,
		LastRun:   w.lastRun,
		Documents: w.lastCount,
		Rebuilds:  w.rebuilds,
	}
	if w.lastErr != nil {
		status.LastError = w.lastErr.Error()
	}
	return status
}
