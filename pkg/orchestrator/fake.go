package orchestrator

import (
	"context"
	"sync"
)

// Fake is an in-memory Orchestrator for unit tests, in the spirit of
// the teacher's hand-written fakes (boskos/ranch_test.go) rather than
// a generated mock.
type Fake struct {
	mu       sync.Mutex
	jobs     map[string]Job // keyed by name
	podLogs  map[string]string // keyed by job name
	created  []JobSpec
	deleted  []string
	watchers []*fakeWatcher
	cursor   int
}

func NewFake() *Fake {
	return &Fake{
		jobs:    map[string]Job{},
		podLogs: map[string]string{},
	}
}

// Seed installs a job directly, bypassing CreateJob, to set up test
// fixtures that represent pre-existing orchestrator state.
func (f *Fake) Seed(j Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[j.Name] = j
}

// SetPodLogs configures what PodLogs returns for a given job name.
func (f *Fake) SetPodLogs(jobName, logs string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.podLogs[jobName] = logs
}

// Created returns every spec passed to CreateJob, in call order.
func (f *Fake) Created() []JobSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]JobSpec, len(f.created))
	copy(out, f.created)
	return out
}

// Deleted returns every job name passed to DeleteJob, in call order.
func (f *Fake) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.deleted))
	copy(out, f.deleted)
	return out
}

func (f *Fake) ListJobs(_ context.Context, namespace string) ([]Job, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var jobs []Job
	for _, j := range f.jobs {
		jobs = append(jobs, j)
	}
	f.cursor++
	return jobs, cursorString(f.cursor), nil
}

func (f *Fake) GetJob(_ context.Context, _ string, name string) (Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[name]
	if !ok {
		return Job{}, ErrNotFound
	}
	return j, nil
}

func (f *Fake) CreateJob(_ context.Context, spec JobSpec) (Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := GenerateName(spec.JobID)
	if _, exists := f.jobs[name]; exists {
		return Job{}, ErrAlreadyExists
	}
	f.created = append(f.created, spec)
	j := Job{Name: name, JobID: spec.JobID}
	f.jobs[name] = j
	return j, nil
}

func (f *Fake) DeleteJob(_ context.Context, _ string, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.jobs[name]; !ok {
		return nil
	}
	delete(f.jobs, name)
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *Fake) PodLogs(_ context.Context, _ string, jobName string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.podLogs[jobName], nil
}

func (f *Fake) Watch(_ context.Context, _, _ string) (Watcher, error) {
	w := &fakeWatcher{events: make(chan WatchEvent, 16)}
	f.mu.Lock()
	f.watchers = append(f.watchers, w)
	f.mu.Unlock()
	return w, nil
}

// Push delivers a synthetic watch event to every open watcher — tests
// use this to simulate orchestrator-side changes.
func (f *Fake) Push(ev WatchEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.watchers {
		select {
		case w.events <- ev:
		default:
		}
	}
}

func cursorString(n int) string {
	return string(rune('0' + n))
}

type fakeWatcher struct {
	events chan WatchEvent
	err    error
}

func (w *fakeWatcher) Events() <-chan WatchEvent { return w.events }
func (w *fakeWatcher) Err() error                { return w.err }
func (w *fakeWatcher) Stop()                     { close(w.events) }
