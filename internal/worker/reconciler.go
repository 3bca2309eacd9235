package worker

import (
	"context"
	"sync"
	"time"

	"storefront-service/internal/redisclient"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

const sweepLockKey = "reconcile-sweep"

// RunInfo is the observable state of the scheduled sweep.
type RunInfo struct {
	InFlight bool      `json:"in_flight"`
	LastRun  time.Time `json:"last_run"`
	NextRun  time.Time `json:"next_run"`
	LastErr  string    `json:"last_error,omitempty"`
	Runs     int64     `json:"runs"`
}

// SweepFunc is one reconciliation pass: retry unprocessed ledger events
// and pull-sync stale pending orders.
type SweepFunc func(ctx context.Context) error

// Reconciler runs the sweep on a schedule with single-flight semantics: a
// tick that lands while a run is still going is skipped, never stacked.
// A Redis lock extends the same guarantee across replicas.
type Reconciler struct {
	interval time.Duration
	sweep    SweepFunc
	locker   *redisclient.Client
	logger   *zap.Logger

	mu   sync.Mutex
	info RunInfo
}

// NewReconciler creates the scheduled sweep. locker may be nil, in which
// case only the in-process single-flight guard applies.
func NewReconciler(interval time.Duration, sweep SweepFunc, locker *redisclient.Client) *Reconciler {
	return &Reconciler{
		interval: interval,
		sweep:    sweep,
		locker:   locker,
		logger:   util.GetLogger(),
	}
}

// Start blocks, running the sweep every interval until ctx is cancelled.
func (r *Reconciler) Start(ctx context.Context) error {
	r.logger.Info("Starting reconciliation sweep",
		zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.setNextRun(time.Now().Add(r.interval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reconciliation sweep stopped")
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
			r.setNextRun(time.Now().Add(r.interval))
		}
	}
}

// Status returns a snapshot of the sweep state.
func (r *Reconciler) Status() RunInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.info
}

// tick runs one sweep unless one is already in flight here or on another
// replica.
func (r *Reconciler) tick(ctx context.Context) {
	r.mu.Lock()
	if r.info.InFlight {
		r.mu.Unlock()
		util.ReconcileSweepSkipped.Inc()
		return
	}
	r.info.InFlight = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.info.InFlight = false
		r.mu.Unlock()
	}()

	if r.locker != nil {
		acquired, err := r.locker.AcquireLock(ctx, sweepLockKey, r.interval)
		if err != nil {
			r.logger.Warn("Sweep lock unavailable, running unguarded", zap.Error(err))
		} else if !acquired {
			util.ReconcileSweepSkipped.Inc()
			return
		} else {
			defer func() {
				if err := r.locker.ReleaseLock(ctx, sweepLockKey); err != nil {
					r.logger.Warn("Failed to release sweep lock", zap.Error(err))
				}
			}()
		}
	}

	util.ReconcileSweepRuns.Inc()
	err := r.sweep(ctx)

	r.mu.Lock()
	r.info.LastRun = time.Now()
	r.info.Runs++
	if err != nil {
		r.info.LastErr = err.Error()
	} else {
		r.info.LastErr = ""
	}
	r.mu.Unlock()

	if err != nil {
		r.logger.Error("Reconciliation sweep failed", zap.Error(err))
	}
}

func (r *Reconciler) setNextRun(t time.Time) {
	r.mu.Lock()
	r.info.NextRun = t
	r.mu.Unlock()
}
