package registry

import (
	"context"
	"sort"
	"sync"
)

// MemoryRegistry is an in-memory Registry for unit tests, mirroring
// the teacher's boskos/storage.inMemoryStore pattern of a mutex-backed
// map standing in for the real persistence layer.
type MemoryRegistry struct {
	mu        sync.Mutex
	records   map[string]Record
	listeners []func(PubSubMessage)
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{records: map[string]Record{}}
}

// Seed installs a record directly, bypassing WriteField, for test
// fixtures describing pre-existing registry state.
func (m *MemoryRegistry) Seed(jobID string, rec Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Present = true
	m.records[jobID] = rec
}

// Delete removes a record entirely, simulating an external actor
// deleting the registry entry mid-reconcile.
func (m *MemoryRegistry) Delete(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, jobID)
}

func (m *MemoryRegistry) ReadRecord(_ context.Context, jobID string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[jobID], nil
}

func (m *MemoryRegistry) WriteField(_ context.Context, jobID, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.records[jobID]
	rec.Present = true
	switch field {
	case FieldStatus:
		rec.Status = value
	case FieldParameters:
		rec.Parameters = value
	case FieldDeleted:
		rec.Deleted = value == deletedTrue
	case FieldSubmissionTimestamp:
		rec.SubmissionTimestamp = value
	case FieldJobName:
		rec.JobName = value
	case FieldNamespace:
		rec.Namespace = value
	case FieldErrors:
		rec.Errors = value
	}
	m.records[jobID] = rec
	for _, cb := range m.listeners {
		cb(PubSubMessage{JobID: jobID})
	}
	return nil
}

func (m *MemoryRegistry) IterateEntries(_ context.Context, cursor string) (string, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	// The in-memory fake has no real pagination; it always returns
	// every key in a single batch and terminates immediately.
	_ = cursor
	return "0", ids, nil
}

func (m *MemoryRegistry) ReadManyEntries(_ context.Context, jobIDs []string) (map[string]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Record, len(jobIDs))
	for _, id := range jobIDs {
		if rec, ok := m.records[id]; ok {
			out[id] = rec
		}
	}
	return out, nil
}

func (m *MemoryRegistry) StartListener(ctx context.Context, cb func(PubSubMessage)) error {
	m.mu.Lock()
	m.listeners = append(m.listeners, cb)
	m.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}
