// Package eventloop wires the reconciliation engine's three event
// producers — the orchestrator watch stream, the registry pub/sub
// listener, and a periodic full sweep — to the reconciler. Watch and
// pub/sub events go into a single coalescing work queue consumed by one
// reconcile worker (spec.md §5's option (a): a unified queue of job ids
// rather than a per-key lock); full sweeps hold the same lock as that
// worker, so no two reconciles run at once.
package eventloop

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/train-conductor/conductor/internal/metrics"
	"github.com/train-conductor/conductor/pkg/orchestrator"
	"github.com/train-conductor/conductor/pkg/registry"
)

// defaultReconcileInterval is spec.md §6's reconcile_interval default.
const defaultReconcileInterval = 30 * time.Second

// watchRetryBackoff is how long the watch producer waits before
// retrying after a non-stale error (connection refused, timeout).
const watchRetryBackoff = 5 * time.Second

// Orchestrator is the subset the event loop needs beyond what the
// reconciler already depends on: the watch stream itself.
type Orchestrator interface {
	Watch(ctx context.Context, namespace, cursor string) (orchestrator.Watcher, error)
}

// Registry is the subset the event loop needs: the pub/sub listener.
type Registry interface {
	StartListener(ctx context.Context, cb func(registry.PubSubMessage)) error
}

// Reconciler is the subset the event loop drives.
type Reconciler interface {
	Reconcile(ctx context.Context, jobID string, recordHint *registry.Record, orchHint *orchestrator.Job) error
	FullSweep(ctx context.Context) (cursor string, err error)
}

// Config holds the event loop's tunables.
type Config struct {
	Namespace         string
	ReconcileInterval time.Duration
}

// Loop is the running conductor: the watch and listener push job ids
// into a bounded coalescing queue drained by a single worker, and every
// full sweep holds the worker's lock, so that two events for the same
// job id never race each other's reconcile.
type Loop struct {
	orch       Orchestrator
	reg        Registry
	reconciler Reconciler
	namespace  string
	interval   time.Duration
	queue      *workQueue
	breaker    *gobreaker.CircuitBreaker
	log        *logrus.Entry

	// reconcileMu serialises the worker's reconciles with full sweeps.
	reconcileMu sync.Mutex
}

func New(orch Orchestrator, reg Registry, r Reconciler, cfg Config) *Loop {
	interval := cfg.ReconcileInterval
	if interval <= 0 {
		interval = defaultReconcileInterval
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "orchestrator-watch",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return &Loop{
		orch:       orch,
		reg:        reg,
		reconciler: r,
		namespace:  cfg.Namespace,
		interval:   interval,
		queue:      newWorkQueue(),
		breaker:    breaker,
		log:        logrus.WithField("component", "eventloop"),
	}
}

// Run performs an initial full sweep to establish a resource cursor,
// then starts the three producers and the worker, and blocks until ctx
// is canceled or a producer returns a non-context error. Shutdown is
// graceful: canceling ctx stops every goroutine and Run returns once
// they have all exited.
func (l *Loop) Run(ctx context.Context) error {
	cursor, err := l.reconciler.FullSweep(ctx)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return l.runWatch(ctx, cursor) })
	g.Go(func() error { return l.runListener(ctx) })
	g.Go(func() error { return l.runTimer(ctx) })
	g.Go(func() error { return l.runWorker(ctx) })
	return g.Wait()
}

func (l *Loop) runWorker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.queue.Notify():
			for _, jobID := range l.queue.Drain() {
				l.reconcileMu.Lock()
				err := l.reconciler.Reconcile(ctx, jobID, nil, nil)
				l.reconcileMu.Unlock()
				if err != nil {
					l.log.WithField("job_id", jobID).WithError(err).Error("reconcile failed")
				}
			}
		}
	}
}

func (l *Loop) runTimer(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := l.fullSweep(ctx); err != nil {
				l.log.WithError(err).Error("periodic full sweep failed")
			}
		}
	}
}

func (l *Loop) runListener(ctx context.Context) error {
	for {
		err := l.reg.StartListener(ctx, func(msg registry.PubSubMessage) {
			l.queue.Push(msg.JobID)
		})
		if ctx.Err() != nil {
			return nil
		}
		l.log.WithError(err).Error("registry listener disconnected, retrying")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(watchRetryBackoff):
		}
	}
}

// runWatch owns the watch-then-resweep loop of spec.md §5: each
// reconnect goes through the circuit breaker so that a persistently
// unreachable orchestrator stops hammering it and instead backs off.
func (l *Loop) runWatch(ctx context.Context, cursor string) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		metrics.WatchReconnectsTotal.Inc()
		result, err := l.breaker.Execute(func() (interface{}, error) {
			return l.orch.Watch(ctx, l.namespace, cursor)
		})
		if err != nil {
			if err == orchestrator.ErrWatchStale {
				l.log.Warn("watch cursor stale at connect, resweeping")
				newCursor, sweepErr := l.fullSweep(ctx)
				if sweepErr == nil {
					cursor = newCursor
					continue
				}
				l.log.WithError(sweepErr).Error("resweep after stale watch failed")
			}
			l.log.WithError(err).Error("watch connect failed")
			if !l.sleep(ctx, watchRetryBackoff) {
				return nil
			}
			continue
		}

		w := result.(orchestrator.Watcher)
		l.drainWatch(ctx, w)

		if err := w.Err(); err != nil {
			if err == orchestrator.ErrWatchStale {
				l.log.Warn("watch cursor stale, resweeping")
				newCursor, sweepErr := l.fullSweep(ctx)
				if sweepErr != nil {
					l.log.WithError(sweepErr).Error("resweep after stale watch failed")
					if !l.sleep(ctx, watchRetryBackoff) {
						return nil
					}
					continue
				}
				cursor = newCursor
				continue
			}
			l.log.WithError(err).Error("watch ended with error")
			if !l.sleep(ctx, watchRetryBackoff) {
				return nil
			}
		}
	}
}

func (l *Loop) drainWatch(ctx context.Context, w orchestrator.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case ev, ok := <-w.Events():
			if !ok {
				return
			}
			l.queue.Push(ev.Job.JobID)
		}
	}
}

// fullSweep runs a full sweep under reconcileMu, so that it never
// overlaps a reconcile run by the worker.
func (l *Loop) fullSweep(ctx context.Context) (string, error) {
	l.reconcileMu.Lock()
	defer l.reconcileMu.Unlock()
	return l.reconciler.FullSweep(ctx)
}

// sleep waits for d or ctx cancellation, reporting which happened.
func (l *Loop) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
