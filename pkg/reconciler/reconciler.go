// Package reconciler is the centre of the conductor: the level-
// triggered decision function that drives a (registry record,
// orchestrator job) pair toward agreement, plus the full-sweep
// enumeration that seeds it from scratch.
package reconciler

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/train-conductor/conductor/internal/metrics"
	"github.com/train-conductor/conductor/pkg/orchestrator"
	"github.com/train-conductor/conductor/pkg/registry"
)

// Materialiser is the subset reconciler.Reconciler needs.
type Materialiser interface {
	Materialise(ctx context.Context, jobID string, record registry.Record) error
}

// Reaper is the subset reconciler.Reconciler needs.
type Reaper interface {
	Reap(ctx context.Context, jobID, jobName, namespace string) error
}

// Capturer is the subset reconciler.Reconciler needs.
type Capturer interface {
	Capture(ctx context.Context, jobID, namespace string, job orchestrator.Job) error
}

// Orchestrator is the subset reconciler.Reconciler needs for lazy
// lookups of the hinted-absent side and for full-sweep enumeration.
type Orchestrator interface {
	GetJob(ctx context.Context, namespace, name string) (orchestrator.Job, error)
	ListJobs(ctx context.Context, namespace string) (jobs []orchestrator.Job, cursor string, err error)
}

// Registry is the subset reconciler.Reconciler needs for lazy lookups,
// status writes, and full-sweep enumeration.
type Registry interface {
	ReadRecord(ctx context.Context, jobID string) (registry.Record, error)
	WriteField(ctx context.Context, jobID, field, value string) error
	IterateEntries(ctx context.Context, cursor string) (nextCursor string, jobIDs []string, err error)
	ReadManyEntries(ctx context.Context, jobIDs []string) (map[string]registry.Record, error)
}

// Reconciler ties the pure Decide function to the effectful
// Materialiser / Reaper / Capturer / Orchestrator / Registry.
type Reconciler struct {
	orch         Orchestrator
	reg          Registry
	materialiser Materialiser
	reaper       Reaper
	capturer     Capturer
	namespace    string
	log          *logrus.Entry
}

func New(orch Orchestrator, reg Registry, m Materialiser, r Reaper, c Capturer, namespace string) *Reconciler {
	return &Reconciler{
		orch:         orch,
		reg:          reg,
		materialiser: m,
		reaper:       r,
		capturer:     c,
		namespace:    namespace,
		log:          logrus.WithField("component", "reconciler"),
	}
}

// Reconcile is the entry point: given a job id and optional hints for
// either side, it resolves whichever side is missing, decides, and
// executes. Both hints are optimisations only — a nil hint always
// triggers a lazy read, never an assumption of absence.
func (r *Reconciler) Reconcile(ctx context.Context, jobID string, recordHint *registry.Record, orchHint *orchestrator.Job) error {
	record, recordPresent, err := r.resolveRecord(ctx, jobID, recordHint)
	if err != nil {
		metrics.ReconcileErrorsTotal.Inc()
		return err
	}
	orchJob, orchPresent, err := r.resolveOrchJob(ctx, jobID, orchHint)
	if err != nil {
		metrics.ReconcileErrorsTotal.Inc()
		return err
	}

	actions := Decide(recordPresent, record, orchPresent, orchJob)
	for _, action := range actions {
		if err := r.execute(ctx, jobID, record, orchJob, action); err != nil {
			metrics.ReconcileErrorsTotal.Inc()
			return err
		}
	}
	return nil
}

func (r *Reconciler) resolveRecord(ctx context.Context, jobID string, hint *registry.Record) (registry.Record, bool, error) {
	if hint != nil {
		return *hint, hint.Present, nil
	}
	rec, err := r.reg.ReadRecord(ctx, jobID)
	if err != nil {
		return registry.Record{}, false, err
	}
	return rec, rec.Present, nil
}

func (r *Reconciler) resolveOrchJob(ctx context.Context, jobID string, hint *orchestrator.Job) (orchestrator.Job, bool, error) {
	if hint != nil {
		return *hint, true, nil
	}
	name := orchestrator.GenerateName(jobID)
	job, err := r.orch.GetJob(ctx, r.namespace, name)
	if err == orchestrator.ErrNotFound {
		return orchestrator.Job{}, false, nil
	}
	if err != nil {
		return orchestrator.Job{}, false, err
	}
	return job, true, nil
}

func (r *Reconciler) execute(ctx context.Context, jobID string, record registry.Record, orchJob orchestrator.Job, action Action) error {
	log := r.log.WithField("job_id", jobID)
	metrics.ReconcileTotal.WithLabelValues(string(action.Kind)).Inc()
	switch action.Kind {
	case ActionNone:
		return nil
	case ActionOrphanReap:
		log.Info("orphan job, reaping")
		return r.reaper.Reap(ctx, "", orchJob.Name, r.namespace)
	case ActionSettle:
		log.Info("settling completed record, marking deleted")
		return r.reg.WriteField(ctx, jobID, registry.FieldDeleted, "1")
	case ActionLaunch:
		log.Info("launching job")
		return r.materialiser.Materialise(ctx, jobID, record)
	case ActionCancelReap:
		log.Info("record canceled, reaping")
		return r.reaper.Reap(ctx, jobID, orchJob.Name, r.namespace)
	case ActionUpdateStatus:
		log.WithField("from", record.Status).WithField("to", action.NewStatus).
			Debug("orchestrator status disagrees with record, updating")
		return r.reg.WriteField(ctx, jobID, registry.FieldStatus, string(action.NewStatus))
	case ActionFinalise:
		log.Info("job reached terminal state, capturing diagnostics and reaping")
		if err := r.capturer.Capture(ctx, jobID, r.namespace, orchJob); err != nil {
			return err
		}
		return r.reaper.Reap(ctx, jobID, orchJob.Name, r.namespace)
	default:
		return nil
	}
}
