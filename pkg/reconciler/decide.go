package reconciler

import (
	"github.com/train-conductor/conductor/pkg/orchestrator"
	"github.com/train-conductor/conductor/pkg/registry"
	"github.com/train-conductor/conductor/pkg/status"
)

// ActionKind names one row of spec.md §4.5's decision table.
type ActionKind string

const (
	// ActionNone means the pair is already at a fixed point.
	ActionNone ActionKind = "NONE"
	// ActionOrphanReap: an orchestrator job has no registry record.
	ActionOrphanReap ActionKind = "ORPHAN_REAP"
	// ActionSettle: a completed, undeleted record whose orchestrator
	// job is confirmed absent gets deleted=1.
	ActionSettle ActionKind = "SETTLE"
	// ActionLaunch: a non-terminal record with no orchestrator job
	// gets materialised.
	ActionLaunch ActionKind = "LAUNCH"
	// ActionCancelReap: an externally-canceled record's job is reaped.
	ActionCancelReap ActionKind = "CANCEL_REAP"
	// ActionUpdateStatus: the record's status is overwritten with the
	// mapped orchestrator status.
	ActionUpdateStatus ActionKind = "UPDATE_STATUS"
	// ActionFinalise: a job that just reached a terminal mapped status
	// gets its diagnostics captured, then reaped.
	ActionFinalise ActionKind = "FINALISE"
)

// Action is one effect to perform. NewStatus is only meaningful for
// ActionUpdateStatus.
type Action struct {
	Kind      ActionKind
	NewStatus status.Status
}

// Decide is the Reconciler's pure decision function: given the fully
// resolved state of both sides (never hints — those are resolved
// before Decide is called), it returns the ordered list of actions to
// perform. It is total, side-effect free, and — per spec.md §4.5's
// tie-break note — can return more than one action in the same call
// (Update followed by Finalise) when a job transitions straight to
// terminal.
func Decide(recordPresent bool, record registry.Record, orchPresent bool, orchJob orchestrator.Job) []Action {
	if !recordPresent {
		if orchPresent {
			return []Action{{Kind: ActionOrphanReap}}
		}
		return nil
	}

	recStatus := status.Parse(record.Status)

	if !orchPresent {
		if status.IsCompleted(recStatus) {
			if record.Deleted {
				return nil // quiescent
			}
			return []Action{{Kind: ActionSettle}}
		}
		return []Action{{Kind: ActionLaunch}}
	}

	// Both present.
	if recStatus == status.Canceled {
		return []Action{{Kind: ActionCancelReap}}
	}

	var actions []Action
	mapped := status.FromJobStatus(orchJob.Status)
	if mapped != recStatus {
		actions = append(actions, Action{Kind: ActionUpdateStatus, NewStatus: mapped})
	}
	if status.IsCompleted(mapped) && !record.Deleted {
		actions = append(actions, Action{Kind: ActionFinalise})
	}
	return actions
}
