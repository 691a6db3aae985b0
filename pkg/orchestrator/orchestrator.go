// Package orchestrator is the narrow contract onto the container batch
// system: list/watch/create/delete jobs, list pods by label, read pod
// logs. Production wiring is k8s.io/client-go against batch/v1 Jobs;
// the reconciliation engine only ever sees the Orchestrator interface.
package orchestrator

import (
	"context"
	"errors"
)

// ErrNotFound is returned by GetJob when no job with that name exists.
var ErrNotFound = errors.New("orchestrator: job not found")

// ErrAlreadyExists is returned by CreateJob when a job with the
// derived name already exists — the Materialiser treats this as
// "already submitted" and lets the next reconcile observe it.
var ErrAlreadyExists = errors.New("orchestrator: job already exists")

// ErrWatchStale is returned by Watch, or by the watch stream's Err(),
// when the resource cursor the watch was started from is too old (the
// HTTP 410 "Gone" equivalent) and the caller must perform a full sweep.
var ErrWatchStale = errors.New("orchestrator: watch cursor stale")

// Watcher streams job events starting from a resource cursor.
type Watcher interface {
	// Events yields one WatchEvent per change. The channel is closed
	// when the watch ends, whether cleanly or due to an error; check
	// Err() after the channel closes to distinguish the two.
	Events() <-chan WatchEvent
	// Err returns the terminal error, or ErrWatchStale if the cursor
	// this watch was started from has expired server-side. Nil if the
	// channel closed because Stop was called or the context ended.
	Err() error
	Stop()
}

// Orchestrator is the interface the reconciliation engine depends on.
type Orchestrator interface {
	// ListJobs enumerates every job in the namespace along with the
	// resource cursor to resume a watch from.
	ListJobs(ctx context.Context, namespace string) (jobs []Job, cursor string, err error)
	// Watch starts a watch stream from the given resource cursor.
	Watch(ctx context.Context, namespace, cursor string) (Watcher, error)
	// GetJob reads a single job by its derived name. Returns
	// ErrNotFound if absent.
	GetJob(ctx context.Context, namespace, name string) (Job, error)
	// CreateJob submits spec as a batch job. Returns ErrAlreadyExists
	// if the derived name is already taken.
	CreateJob(ctx context.Context, spec JobSpec) (Job, error)
	// DeleteJob requests deletion with background pod propagation.
	DeleteJob(ctx context.Context, namespace, name string) error
	// PodLogs concatenates the logs of every pod carrying
	// job-name=jobName, in list order.
	PodLogs(ctx context.Context, namespace, jobName string) (string, error)
}
