package reconciler

import (
	"context"
	"time"

	"github.com/train-conductor/conductor/internal/metrics"
	"github.com/train-conductor/conductor/pkg/orchestrator"
)

// FullSweep enumerates both sides, pairs them by job id, and invokes
// Reconcile for every id in either set. It tolerates registry entries
// being added or removed mid-scan: a missed entry is caught on the
// next sweep or by event delivery (spec.md §4.6).
//
// It returns the orchestrator resource cursor for the watch to resume
// from.
func (r *Reconciler) FullSweep(ctx context.Context) (string, error) {
	r.log.Info("beginning full reconcile")
	start := time.Now()
	defer func() { metrics.FullSweepDurationSeconds.Observe(time.Since(start).Seconds()) }()

	jobs, cursor, err := r.orch.ListJobs(ctx, r.namespace)
	if err != nil {
		return "", err
	}
	byJobID := make(map[string]orchestrator.Job, len(jobs))
	for _, j := range jobs {
		if j.JobID != "" {
			byJobID[j.JobID] = j
		}
	}

	scanCursor := "0"
	for {
		next, ids, err := r.reg.IterateEntries(ctx, scanCursor)
		if err != nil {
			return "", err
		}
		records, err := r.reg.ReadManyEntries(ctx, ids)
		if err != nil {
			return "", err
		}
		for _, jobID := range ids {
			rec := records[jobID]
			recHint := rec

			var orchHint *orchestrator.Job
			if orchJob, ok := byJobID[jobID]; ok {
				orchHint = &orchJob
			}
			delete(byJobID, jobID)

			if err := r.Reconcile(ctx, jobID, &recHint, orchHint); err != nil {
				r.log.WithField("job_id", jobID).WithError(err).Error("full sweep: reconcile failed")
			}
		}
		if next == "0" {
			break
		}
		scanCursor = next
	}

	// Residual orchestrator jobs: present in k8s, not seen during the
	// registry scan. Re-read the record rather than assuming absence —
	// it may have been added mid-scan.
	for jobID, job := range byJobID {
		job := job
		if err := r.Reconcile(ctx, jobID, nil, &job); err != nil {
			r.log.WithField("job_id", jobID).WithError(err).Error("full sweep: reconcile failed for residual orchestrator job")
		}
	}

	r.log.Info("completed full reconcile")
	return cursor, nil
}
