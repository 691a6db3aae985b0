package registry

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRegistry(t *testing.T) (*RedisRegistry, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisRegistry(client), mr
}

func TestReadRecordAbsent(t *testing.T) {
	reg, _ := newTestRegistry(t)
	rec, err := reg.ReadRecord(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Present {
		t.Fatalf("expected absent record, got %+v", rec)
	}
}

func TestWriteFieldThenReadRecord(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	if err := reg.WriteField(ctx, "A", FieldStatus, "QUEUED"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := reg.WriteField(ctx, "A", FieldParameters, `{"num_gpus":2}`); err != nil {
		t.Fatalf("write: %v", err)
	}

	rec, err := reg.ReadRecord(ctx, "A")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !rec.Present || rec.Status != "QUEUED" || rec.Parameters != `{"num_gpus":2}` {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestWriteFieldDeleted(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)
	if err := reg.WriteField(ctx, "A", FieldDeleted, "1"); err != nil {
		t.Fatalf("write: %v", err)
	}
	rec, err := reg.ReadRecord(ctx, "A")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !rec.Deleted {
		t.Fatalf("expected deleted=true, got %+v", rec)
	}
}

func TestIterateEntriesTerminates(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)
	for _, id := range []string{"A", "B", "C"} {
		if err := reg.WriteField(ctx, id, FieldStatus, "QUEUED"); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	seen := map[string]bool{}
	cursor := "0"
	for {
		next, ids, err := reg.IterateEntries(ctx, cursor)
		if err != nil {
			t.Fatalf("iterate: %v", err)
		}
		for _, id := range ids {
			seen[id] = true
		}
		if next == "0" {
			break
		}
		cursor = next
	}

	for _, id := range []string{"A", "B", "C"} {
		if !seen[id] {
			t.Errorf("expected to see job id %s in scan, saw %v", id, seen)
		}
	}
}

func TestReadManyEntries(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)
	for _, id := range []string{"A", "B"} {
		if err := reg.WriteField(ctx, id, FieldStatus, "RUNNING"); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	out, err := reg.ReadManyEntries(ctx, []string{"A", "B", "missing"})
	if err != nil {
		t.Fatalf("read many: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 entries, got %d: %+v", len(out), out)
	}
	if out["A"].Status != "RUNNING" || out["B"].Status != "RUNNING" {
		t.Fatalf("unexpected entries: %+v", out)
	}
}

func TestStartListenerDeliversMessages(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	reg, _ := newTestRegistry(t)

	received := make(chan PubSubMessage, 1)
	go func() {
		_ = reg.StartListener(ctx, func(msg PubSubMessage) {
			select {
			case received <- msg:
			default:
			}
		})
	}()

	// Give the subscriber time to attach before publishing.
	time.Sleep(50 * time.Millisecond)
	if err := reg.WriteField(context.Background(), "A", FieldStatus, "RUNNING"); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case msg := <-received:
		if msg.JobID != "A" {
			t.Errorf("expected job id A, got %s", msg.JobID)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for pub/sub message")
	}
}
