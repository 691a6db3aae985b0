package reconciler

import (
	"testing"

	"github.com/train-conductor/conductor/pkg/orchestrator"
	"github.com/train-conductor/conductor/pkg/registry"
	"github.com/train-conductor/conductor/pkg/status"
)

func kinds(actions []Action) []ActionKind {
	out := make([]ActionKind, len(actions))
	for i, a := range actions {
		out[i] = a.Kind
	}
	return out
}

func assertKinds(t *testing.T, got []Action, want ...ActionKind) {
	t.Helper()
	gk := kinds(got)
	if len(gk) != len(want) {
		t.Fatalf("got actions %v, want %v", gk, want)
	}
	for i := range want {
		if gk[i] != want[i] {
			t.Fatalf("got actions %v, want %v", gk, want)
		}
	}
}

func TestDecideOrphan(t *testing.T) {
	actions := Decide(false, registry.Record{}, true, orchestrator.Job{Name: "x"})
	assertKinds(t, actions, ActionOrphanReap)
}

func TestDecideNoRecordNoJob(t *testing.T) {
	actions := Decide(false, registry.Record{}, false, orchestrator.Job{})
	assertKinds(t, actions)
}

func TestDecideQuiescent(t *testing.T) {
	rec := registry.Record{Present: true, Status: string(status.Completed), Deleted: true}
	actions := Decide(true, rec, false, orchestrator.Job{})
	assertKinds(t, actions)
}

func TestDecideSettle(t *testing.T) {
	rec := registry.Record{Present: true, Status: string(status.Completed), Deleted: false}
	actions := Decide(true, rec, false, orchestrator.Job{})
	assertKinds(t, actions, ActionSettle)
}

func TestDecideLaunch(t *testing.T) {
	rec := registry.Record{Present: true, Status: string(status.Queued)}
	actions := Decide(true, rec, false, orchestrator.Job{})
	assertKinds(t, actions, ActionLaunch)
}

func TestDecideCancel(t *testing.T) {
	rec := registry.Record{Present: true, Status: string(status.Canceled)}
	job := orchestrator.Job{Status: status.JobStatus{Started: true}}
	actions := Decide(true, rec, true, job)
	assertKinds(t, actions, ActionCancelReap)
}

func TestDecideUpdateOnly(t *testing.T) {
	rec := registry.Record{Present: true, Status: string(status.Pending)}
	job := orchestrator.Job{Status: status.JobStatus{Started: true}} // maps to RUNNING
	actions := Decide(true, rec, true, job)
	assertKinds(t, actions, ActionUpdateStatus)
	if actions[0].NewStatus != status.Running {
		t.Errorf("expected RUNNING, got %s", actions[0].NewStatus)
	}
}

func TestDecideUpdateThenFinalise(t *testing.T) {
	rec := registry.Record{Present: true, Status: string(status.Running)}
	job := orchestrator.Job{Status: status.JobStatus{Started: true, Succeeded: 1}} // maps to COMPLETED
	actions := Decide(true, rec, true, job)
	assertKinds(t, actions, ActionUpdateStatus, ActionFinalise)
}

func TestDecideFinaliseOnlyWhenStatusAlreadyMatches(t *testing.T) {
	rec := registry.Record{Present: true, Status: string(status.Completed), Deleted: false}
	job := orchestrator.Job{Status: status.JobStatus{Started: true, Succeeded: 1}}
	actions := Decide(true, rec, true, job)
	assertKinds(t, actions, ActionFinalise)
}

func TestDecideNoActionWhenSettledAndAgreeing(t *testing.T) {
	rec := registry.Record{Present: true, Status: string(status.Completed), Deleted: true}
	job := orchestrator.Job{Status: status.JobStatus{Started: true, Succeeded: 1}}
	actions := Decide(true, rec, true, job)
	assertKinds(t, actions)
}

func TestDecideIdempotent(t *testing.T) {
	rec := registry.Record{Present: true, Status: string(status.Running)}
	job := orchestrator.Job{Status: status.JobStatus{Started: true, Succeeded: 1}}
	first := Decide(true, rec, true, job)
	second := Decide(true, rec, true, job)
	assertKinds(t, first, kinds(second)...)
}
