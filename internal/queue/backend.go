package queue

import (
	"context"
	"sort"
	"sync"
)

// Backend stores jobs and orders the pending set by priority. Two
// implementations exist: redis for shared deployments and an in-process
// fallback used when redis is unreachable.
type Backend interface {
	// Push adds or re-adds a job to the pending set.
	Push(ctx context.Context, job *Job) error
	// Pop removes and returns the highest-priority pending job, or nil
	// when the queue is empty.
	Pop(ctx context.Context) (*Job, error)
	// Get returns a job by id regardless of state, or nil when unknown.
	Get(ctx context.Context, id string) (*Job, error)
	// Update persists the job's current state.
	Update(ctx context.Context, job *Job) error
	// RemovePending takes a job out of the pending set without running
	// it. Returns false when the job was not pending.
	RemovePending(ctx context.Context, id string) (bool, error)
	// Stats counts jobs by state.
	Stats(ctx context.Context) (Stats, error)
}

// memoryBackend is the in-process fallback. Pending jobs are kept sorted
// by priority (then FIFO within a priority).
type memoryBackend struct {
	mu      sync.Mutex
	pending []string
	jobs    map[string]*Job
	seq     map[string]int
	nextSeq int
}

// NewMemoryBackend returns an empty in-process backend.
func NewMemoryBackend() Backend {
	return &memoryBackend{jobs: make(map[string]*Job), seq: make(map[string]int)}
}

func (b *memoryBackend) Push(ctx context.Context, job *Job) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cp := *job
	b.jobs[job.ID] = &cp
	if _, ok := b.seq[job.ID]; !ok {
		b.nextSeq++
		b.seq[job.ID] = b.nextSeq
	}
	b.pending = append(b.pending, job.ID)
	sort.SliceStable(b.pending, func(i, j int) bool {
		ji, jj := b.jobs[b.pending[i]], b.jobs[b.pending[j]]
		if ji.Priority != jj.Priority {
			return ji.Priority > jj.Priority
		}
		return b.seq[b.pending[i]] < b.seq[b.pending[j]]
	})
	return nil
}

func (b *memoryBackend) Pop(ctx context.Context) (*Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.pending) == 0 {
		return nil, nil
	}
	id := b.pending[0]
	b.pending = b.pending[1:]
	cp := *b.jobs[id]
	return &cp, nil
}

func (b *memoryBackend) Get(ctx context.Context, id string) (*Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	job, ok := b.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *job
	return &cp, nil
}

func (b *memoryBackend) Update(ctx context.Context, job *Job) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cp := *job
	b.jobs[job.ID] = &cp
	return nil
}

func (b *memoryBackend) RemovePending(ctx context.Context, id string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, pid := range b.pending {
		if pid == id {
			b.pending = append(b.pending[:i], b.pending[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (b *memoryBackend) Stats(ctx context.Context) (Stats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var s Stats
	for _, job := range b.jobs {
		switch job.Status {
		case StatusQueued:
			s.Queued++
		case StatusProcessing:
			s.Processing++
		case StatusCompleted:
			s.Completed++
		case StatusFailed:
			s.Failed++
		case StatusCancelled:
			s.Cancelled++
		}
	}
	return s, nil
}
