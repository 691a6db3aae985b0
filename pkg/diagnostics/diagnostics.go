// Package diagnostics captures pod logs for a job that reached a
// terminal status (completed or failed) and stores them on the
// registry record, before the job is reaped.
package diagnostics

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/train-conductor/conductor/pkg/orchestrator"
	"github.com/train-conductor/conductor/pkg/registry"
)

// Orchestrator is the subset diagnostics.Capturer needs.
type Orchestrator interface {
	PodLogs(ctx context.Context, namespace, jobName string) (string, error)
}

// Registry is the subset diagnostics.Capturer needs.
type Registry interface {
	WriteField(ctx context.Context, jobID, field, value string) error
}

type Capturer struct {
	orch Orchestrator
	reg  Registry
	log  *logrus.Entry
}

func New(orch Orchestrator, reg Registry) *Capturer {
	return &Capturer{orch: orch, reg: reg, log: logrus.WithField("component", "diagnostics")}
}

// Capture enumerates pods carrying job-name=job.Name, concatenates
// their logs in iteration order, and writes the concatenation to the
// record's errors field.
func (c *Capturer) Capture(ctx context.Context, jobID, namespace string, job orchestrator.Job) error {
	logs, err := c.orch.PodLogs(ctx, namespace, job.Name)
	if err != nil {
		c.log.WithField("job_id", jobID).WithError(err).Error("failed to capture pod logs")
		return nil
	}
	return c.reg.WriteField(ctx, jobID, registry.FieldErrors, logs)
}
