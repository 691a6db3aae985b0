package eventloop

import (
	"sync"

	"github.com/train-conductor/conductor/internal/metrics"
)

// workQueue is the bounded, coalescing work queue of spec.md §5: a
// pending-set of job ids guarded by a mutex, with duplicate entries
// collapsed while they wait to be drained. It bounds memory under
// event storms because the set can never grow past the number of
// distinct job ids in flight, however many events fire for each.
type workQueue struct {
	mu      sync.Mutex
	pending map[string]struct{}
	notify  chan struct{}
}

func newWorkQueue() *workQueue {
	return &workQueue{
		pending: make(map[string]struct{}),
		notify:  make(chan struct{}, 1),
	}
}

// Push enqueues a job id. If it is already pending, this is a no-op
// beyond the set insertion — that is the coalescing.
func (q *workQueue) Push(jobID string) {
	if jobID == "" {
		return
	}
	q.mu.Lock()
	_, already := q.pending[jobID]
	q.pending[jobID] = struct{}{}
	depth := len(q.pending)
	q.mu.Unlock()
	metrics.QueueDepth.Set(float64(depth))
	if already {
		return
	}
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Notify returns the channel that signals new work is pending.
func (q *workQueue) Notify() <-chan struct{} {
	return q.notify
}

// Drain empties the pending set and returns its contents. Order is
// unspecified — spec.md §5 promises ordering only within a single job
// id, never across ids.
func (q *workQueue) Drain() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]string, 0, len(q.pending))
	for id := range q.pending {
		ids = append(ids, id)
	}
	q.pending = make(map[string]struct{})
	metrics.QueueDepth.Set(0)
	return ids
}
