// Package reaper issues the background-propagation delete for an
// orchestrator job and marks the registry record deleted.
package reaper

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/train-conductor/conductor/pkg/registry"
)

// Orchestrator is the subset reaper.Reaper needs.
type Orchestrator interface {
	DeleteJob(ctx context.Context, namespace, name string) error
}

// Registry is the subset reaper.Reaper needs.
type Registry interface {
	WriteField(ctx context.Context, jobID, field, value string) error
}

type Reaper struct {
	orch Orchestrator
	reg  Registry
	log  *logrus.Entry
}

func New(orch Orchestrator, reg Registry) *Reaper {
	return &Reaper{orch: orch, reg: reg, log: logrus.WithField("component", "reaper")}
}

// Reap requests deletion with background pod propagation and, on
// success, writes deleted=1. jobID may be empty for the orphan-job
// case, in which case the registry write is skipped — there is no
// record to mark (spec.md §9's "orphan handling when record re-appears
// mid-delete").
func (r *Reaper) Reap(ctx context.Context, jobID, jobName, namespace string) error {
	if err := r.orch.DeleteJob(ctx, namespace, jobName); err != nil {
		r.log.WithField("job_id", jobID).WithError(err).Error("unable to delete job, will try again later")
		return nil
	}
	r.log.WithField("job_id", jobID).Info("deleted job")

	if jobID == "" {
		return nil
	}
	if err := r.reg.WriteField(ctx, jobID, registry.FieldDeleted, "1"); err != nil {
		return err
	}
	return nil
}
