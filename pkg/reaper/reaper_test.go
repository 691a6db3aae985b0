package reaper

import (
	"context"
	"testing"

	"github.com/train-conductor/conductor/pkg/orchestrator"
	"github.com/train-conductor/conductor/pkg/registry"
)

func TestReapDeletesAndMarksRecord(t *testing.T) {
	ctx := context.Background()
	orch := orchestrator.NewFake()
	reg := registry.NewMemoryRegistry()
	reg.Seed("A", registry.Record{Status: "CANCELED"})
	orch.Seed(orchestrator.Job{Name: "train-conductor-tuning-job.A", JobID: "A"})

	r := New(orch, reg)
	if err := r.Reap(ctx, "A", "train-conductor-tuning-job.A", "training"); err != nil {
		t.Fatalf("reap: %v", err)
	}

	deleted := orch.Deleted()
	if len(deleted) != 1 || deleted[0] != "train-conductor-tuning-job.A" {
		t.Fatalf("unexpected deletions: %v", deleted)
	}
	rec, _ := reg.ReadRecord(ctx, "A")
	if !rec.Deleted {
		t.Error("expected record to be marked deleted")
	}
}

func TestReapOrphanSkipsRegistryWrite(t *testing.T) {
	ctx := context.Background()
	orch := orchestrator.NewFake()
	reg := registry.NewMemoryRegistry()
	orch.Seed(orchestrator.Job{Name: "train-conductor-tuning-job.Z", JobID: "Z"})

	r := New(orch, reg)
	if err := r.Reap(ctx, "", "train-conductor-tuning-job.Z", "training"); err != nil {
		t.Fatalf("reap: %v", err)
	}
	if len(orch.Deleted()) != 1 {
		t.Fatalf("expected delete call, got %v", orch.Deleted())
	}
	rec, _ := reg.ReadRecord(ctx, "Z")
	if rec.Present {
		t.Errorf("expected no registry record created for orphan reap, got %+v", rec)
	}
}
