package job

import "sync"

// Registry is the process-wide table of jobs, owned by the host and
// injected into both the pipeline and the polling endpoint. Each record is
// written only by its own pipeline goroutine; the registry map itself is
// guarded for concurrent registration and lookup.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

// Register creates and stores a Pending job record for id. The record is
// visible to pollers before the background execution observes it.
func (r *Registry) Register(id string) *Job {
	j := newJob(id)

	r.mu.Lock()
	r.jobs[id] = j
	r.mu.Unlock()

	return j
}

// Get returns the current snapshot for id. Unknown ids yield a safe
// "pending, zero progress" view and found=false rather than an error.
func (r *Registry) Get(id string) (Snapshot, bool) {
	r.mu.RLock()
	j, ok := r.jobs[id]
	r.mu.RUnlock()

	if !ok {
		return Snapshot{State: StatePending}, false
	}
	return j.Snapshot(), true
}

// Len reports how many jobs are registered. Records live for the process
// lifetime; there is no eviction.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
