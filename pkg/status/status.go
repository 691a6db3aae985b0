// Package status defines the training-job status lattice.
//
// The lattice is total: every job record carries exactly one of these
// values, there is no implicit "unknown" state beyond PlaceholderUnset.
package status

// Status is a training job's position in the lifecycle lattice.
type Status string

const (
	// PlaceholderUnset is used only when a registry record carries no
	// status field yet; it is never written by the conductor.
	PlaceholderUnset Status = "PLACEHOLDER_UNSET"
	Queued           Status = "QUEUED"
	Pending          Status = "PENDING"
	Running          Status = "RUNNING"
	Completed        Status = "COMPLETED"
	Failed           Status = "FAILED"
	Canceled         Status = "CANCELED"
)

// completedStates backs the COMPLETED_STATES set-membership predicate.
var completedStates = map[Status]struct{}{
	Completed: {},
	Failed:    {},
	Canceled:  {},
}

// IsCompleted reports whether s is one of COMPLETED, FAILED, CANCELED.
func IsCompleted(s Status) bool {
	_, ok := completedStates[s]
	return ok
}

// Parse converts a raw registry string into a Status, defaulting to
// PlaceholderUnset for an empty or unrecognized value rather than
// erroring — the registry is the source of truth and a record with no
// status field yet is not a failure.
func Parse(raw string) Status {
	switch Status(raw) {
	case Queued, Pending, Running, Completed, Failed, Canceled:
		return Status(raw)
	default:
		return PlaceholderUnset
	}
}

// JobStatus is the subset of an orchestrator job's status block the
// mapper needs: whether the pod has started, and the terminal pod
// counters. It is satisfied by the orchestrator package's job wrapper
// without this package importing k8s.io/api.
type JobStatus struct {
	Started   bool
	Succeeded int32
	Failed    int32
}

// FromJobStatus is the Status Mapper: a pure, total function from an
// orchestrator job's observed status block to a lattice value.
//
// PENDING and CANCELED are never produced here — PENDING is written
// only by the Materialiser on submission, CANCELED only by an external
// actor editing the registry record directly.
func FromJobStatus(s JobStatus) Status {
	switch {
	case !s.Started:
		return Queued
	case s.Succeeded > 0:
		return Completed
	case s.Failed > 0:
		return Failed
	default:
		return Running
	}
}
